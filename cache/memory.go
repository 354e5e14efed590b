package cache

import (
	"context"
	"strings"
	"sync"
)

// Memory is an in-memory Store. Entries live until cleared, matching
// the stale-as-fallback contract.
type Memory[V any] struct {
	mu    sync.RWMutex
	items map[string]Entry[V]
}

// NewMemory creates a new in-memory store.
func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{
		items: make(map[string]Entry[V]),
	}
}

// Load retrieves the entry for key. Returns (nil, nil) on a miss.
func (s *Memory[V]) Load(_ context.Context, key string) (*Entry[V], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Save overwrites the entry for key.
func (s *Memory[V]) Save(_ context.Context, key string, entry Entry[V]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry
	return nil
}

// Clear removes entries whose key starts with prefix and returns how
// many were removed.
func (s *Memory[V]) Clear(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.items {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			delete(s.items, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of entries. Useful for test assertions.
func (s *Memory[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// compile-time interface check
var _ Store[any] = (*Memory[any])(nil)
