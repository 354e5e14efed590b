// Package cache stores the last good result per query key.
//
// Entries are written on every successful dispatch and never expire on
// their own. Freshness is decided by the reader, so an entry that has
// aged past its freshness window stays readable and can be served as a
// stale fallback once every provider has failed. An explicit Clear is
// the only eviction.
//
// Two stores are provided: Memory for single-process use and tests,
// and Redis for deployments where stale fallbacks must survive
// restarts. The Cache type wraps either store with the freshness rules
// specializations rely on:
//
//	store := cache.NewMemory[QuoteSet]()
//	c := cache.New(store)
//
//	c.Set(ctx, key, quotes, "alpha")
//	entry, ok, _ := c.Get(ctx, key, 5*time.Minute) // fresh only
//	entry, _ = c.GetStale(ctx, key)                // last resort
package cache
