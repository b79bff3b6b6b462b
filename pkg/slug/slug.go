// Package slug turns post titles into URL-safe identifiers.
package slug

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	fallbackPrefix = "post"
	// MaxLength keeps slugs short enough for routes and the unique index.
	MaxLength = 96
	// MaxAttempts is the number of counter suffixes tried before the time token.
	MaxAttempts = 10
)

var ErrEmptyCandidate = errors.New("slug candidate must not be empty")

// Make converts a title to a slug.
//
// The rules are:
//   - diacritics are folded to their base letter ("Café" becomes "cafe")
//   - letters are lowercased
//   - every run of characters outside [a-z0-9] becomes a single hyphen
//   - leading and trailing hyphens are trimmed
//
// A title with nothing left after these rules gets a fallback derived from
// the title itself, so Make never returns "" and stays deterministic.
//
//	Make("My First Post!")  // "my-first-post"
//	Make("  Hello,  World") // "hello-world"
//	Make("!!!")             // "post-" + 8 hex chars
func Make(title string) string {
	folded := fold(title)

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	s := b.String()
	if len(s) > MaxLength {
		s = strings.TrimRight(s[:MaxLength], "-")
	}
	if s == "" {
		return fallback(title)
	}
	return s
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func fallback(title string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(title))
	return fallbackPrefix + "-" + strings.ReplaceAll(id.String(), "-", "")[:8]
}

// ExistsFunc reports whether a slug is already taken.
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// Resolve returns candidate if it is free, otherwise the first free
// "candidate-N" for N in [2, MaxAttempts]. When all of those are taken it
// appends a token built from the current time, which is not checked again.
func Resolve(ctx context.Context, candidate string, exists ExistsFunc) (string, error) {
	return resolve(ctx, candidate, exists, time.Now)
}

func resolve(ctx context.Context, candidate string, exists ExistsFunc, now func() time.Time) (string, error) {
	if candidate == "" {
		return "", ErrEmptyCandidate
	}

	taken, err := exists(ctx, candidate)
	if err != nil {
		return "", err
	}
	if !taken {
		return candidate, nil
	}

	for n := 2; n <= MaxAttempts; n++ {
		next := candidate + "-" + strconv.Itoa(n)
		taken, err := exists(ctx, next)
		if err != nil {
			return "", err
		}
		if !taken {
			return next, nil
		}
	}

	return candidate + "-" + strconv.FormatInt(now().UnixNano(), 36), nil
}
