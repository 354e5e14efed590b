// Package marketdata is the quotes specialization over the provider
// registry. The Service validates provider responses before trusting
// them, caches last-good results under canonical keys, and degrades
// through fresh cache, stale cache, and an optional synthetic fallback
// when every provider is down:
//
//	reg := provider.New[marketdata.Provider](provider.DefaultOptions(marketdata.Capability))
//	svc := marketdata.NewService(reg, cache.NewMemory[marketdata.QuoteSet](), marketdata.ServiceConfig{})
//
//	res, err := svc.GetQuotes(ctx, marketdata.QuoteRequest{
//	    Symbols: []string{"BTC", "ETH"},
//	}, marketdata.FetchOptions{})
//
// Results carry their provenance (live, cache, stale_cache, fallback)
// and a stale flag so callers can render degraded data honestly.
package marketdata
