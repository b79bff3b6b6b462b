package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// memoryRepo is a process-local Default used when no Redis is configured.
type memoryRepo struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemory() Default {
	return &memoryRepo{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (r *memoryRepo) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprint(v)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := memoryEntry{value: s}
	if ttl > 0 {
		entry.expiresAt = r.now().Add(ttl)
	}
	r.entries[key] = entry
	return nil
}

func (r *memoryRepo) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.Set(ctx, key, valueJSON, ttl)
}

func (r *memoryRepo) Get(_ context.Context, key string) *redis.StringCmd {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.lookup(key)
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(entry.value, nil)
}

func (r *memoryRepo) Del(_ context.Context, keys ...string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for _, key := range keys {
		if _, ok := r.lookup(key); ok {
			deleted++
		}
		delete(r.entries, key)
	}
	return redis.NewIntResult(deleted, nil)
}

// Scan returns every matching key in one page, so the cursor is always 0.
func (r *memoryRepo) Scan(_ context.Context, _ uint64, match string, _ int64) *redis.ScanCmd {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0)
	for key := range r.entries {
		if _, ok := r.lookup(key); !ok {
			continue
		}
		matched, err := path.Match(match, key)
		if err != nil {
			return redis.NewScanCmdResult(nil, 0, err)
		}
		if matched {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return redis.NewScanCmdResult(keys, 0, nil)
}

// lookup must be called with mu held. Expired entries are dropped.
func (r *memoryRepo) lookup(key string) (memoryEntry, bool) {
	entry, ok := r.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !r.now().Before(entry.expiresAt) {
		delete(r.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}
