package cache

import (
	"context"
	"time"
)

// Entry is a cached value with its provenance.
type Entry[V any] struct {
	Value    V         `json:"value"`
	Provider string    `json:"provider"`
	StoredAt time.Time `json:"stored_at"`
}

// Age returns how long ago the entry was stored.
func (e Entry[V]) Age() time.Duration {
	return time.Since(e.StoredAt)
}

// Fresh reports whether the entry is younger than maxAge.
// A non-positive maxAge treats every entry as stale.
func (e Entry[V]) Fresh(maxAge time.Duration) bool {
	return maxAge > 0 && e.Age() < maxAge
}

// Store persists entries keyed by canonical query strings.
//
// Load returns entries regardless of age. Callers decide freshness via
// Entry.Fresh, which keeps stale data reachable as a last resort.
type Store[V any] interface {
	// Load retrieves the entry for key. Returns (nil, nil) on a miss.
	Load(ctx context.Context, key string) (*Entry[V], error)
	// Save overwrites the entry for key.
	Save(ctx context.Context, key string, entry Entry[V]) error
	// Clear removes entries whose key starts with prefix. An empty
	// prefix removes everything. Returns the number removed.
	Clear(ctx context.Context, prefix string) (int, error)
}
