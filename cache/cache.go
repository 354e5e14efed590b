package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache wraps a Store with the freshness rules specializations use.
type Cache[V any] struct {
	store Store[V]
}

// New creates a Cache over the given store.
func New[V any](store Store[V]) *Cache[V] {
	return &Cache[V]{store: store}
}

// Get returns the entry for key if it is younger than maxAge.
// The second return is false on a miss or when the entry is stale.
func (c *Cache[V]) Get(ctx context.Context, key string, maxAge time.Duration) (*Entry[V], bool, error) {
	entry, err := c.store.Load(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("cache get %q: %w", key, err)
	}
	if entry == nil || !entry.Fresh(maxAge) {
		return entry, false, nil
	}
	return entry, true, nil
}

// GetStale returns the entry for key regardless of age, or nil on a
// miss. Used only after dispatch is fully exhausted.
func (c *Cache[V]) GetStale(ctx context.Context, key string) (*Entry[V], error) {
	entry, err := c.store.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cache get stale %q: %w", key, err)
	}
	return entry, nil
}

// Set overwrites the entry for key, stamping the current time and the
// provider the value came from.
func (c *Cache[V]) Set(ctx context.Context, key string, value V, providerID string) error {
	entry := Entry[V]{
		Value:    value,
		Provider: providerID,
		StoredAt: time.Now(),
	}
	if err := c.store.Save(ctx, key, entry); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// Clear removes entries under prefix and returns how many were removed.
func (c *Cache[V]) Clear(ctx context.Context, prefix string) (int, error) {
	return c.store.Clear(ctx, prefix)
}
