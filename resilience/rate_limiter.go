package resilience

import (
	"sync"
	"time"
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool
	// Remaining is the number of requests left in the current window,
	// or -1 when the key is not limited.
	Remaining int
	// ResetAt is when the oldest recorded request leaves the window.
	ResetAt time.Time
}

// SlidingLimiterConfig configures a sliding window limiter.
type SlidingLimiterConfig struct {
	// OnLimit is called when a check is denied.
	OnLimit func(key string)
}

// SlidingLimiter bounds request rates per key over a trailing window.
//
// Each key holds the timestamps of its recent requests; entries older
// than the window are purged lazily on each check. The limit and window
// are supplied per call, so one limiter serves keys with different
// budgets.
type SlidingLimiter struct {
	config SlidingLimiterConfig

	mu      sync.RWMutex
	buckets map[string]*window
}

// window holds the recorded timestamps for one key.
type window struct {
	mu     sync.Mutex
	stamps []time.Time
	seen   time.Time
}

// NewSlidingLimiter creates a new sliding window limiter.
func NewSlidingLimiter(config SlidingLimiterConfig) *SlidingLimiter {
	return &SlidingLimiter{
		config:  config,
		buckets: make(map[string]*window),
	}
}

// Check records a request against the key if the limit permits.
//
// Purge and append happen atomically with respect to the key, so
// concurrent callers for the same key never exceed the limit within
// any trailing window. A non-positive limit or window disables
// limiting for the call.
func (l *SlidingLimiter) Check(key string, limit int, windowSize time.Duration) Decision {
	if limit <= 0 || windowSize <= 0 {
		return Decision{Allowed: true, Remaining: -1}
	}

	w := l.bucket(key)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-windowSize)

	// Drop expired timestamps in place.
	keep := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	w.stamps = keep
	w.seen = now

	if len(w.stamps) < limit {
		w.stamps = append(w.stamps, now)
		return Decision{
			Allowed:   true,
			Remaining: limit - len(w.stamps),
			ResetAt:   w.stamps[0].Add(windowSize),
		}
	}

	if l.config.OnLimit != nil {
		l.config.OnLimit(key)
	}

	return Decision{
		Allowed:   false,
		Remaining: 0,
		ResetAt:   w.stamps[0].Add(windowSize),
	}
}

// Reset discards all recorded requests for a key. Used when a key's
// budget changes so stale timestamps do not count against the new one.
func (l *SlidingLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Prune removes keys with no activity within the given duration and
// returns how many were removed.
//
// A checker racing the prune may append to an orphaned window; the next
// check for that key starts a fresh one.
func (l *SlidingLimiter) Prune(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.buckets {
		w.mu.Lock()
		stale := w.seen.Before(cutoff)
		w.mu.Unlock()

		if stale {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Keys returns the number of tracked keys.
func (l *SlidingLimiter) Keys() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// bucket returns the window for a key, creating it if needed.
func (l *SlidingLimiter) bucket(key string) *window {
	l.mu.RLock()
	w, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.buckets[key]; ok {
		return w
	}
	w = &window{}
	l.buckets[key] = w
	return w
}
