package utils

import "unicode/utf8"

const ellipsis = "…"

// Truncate shortens s to keep runes followed by an ellipsis when s is longer
// than limit runes.
func Truncate(s string, limit, keep int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)
	if keep > len(runes) {
		keep = len(runes)
	}
	return string(runes[:keep]) + ellipsis
}
