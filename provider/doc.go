// Package provider implements a generic registry of interchangeable
// backends for a single capability, with priority-ordered failover,
// rolling health tracking, and per-provider rate limiting.
//
// A registry is generic over the capability interface its providers
// implement, so required methods are checked at compile time. Runtime
// registration validates configuration only:
//
//	reg := provider.New[QuoteFetcher](provider.DefaultOptions("quotes"))
//	cfg := provider.DefaultConfig()
//	cfg.Priority = 10
//	err := reg.Register("alpha", alphaClient, cfg)
//
// Dispatch walks the fallback chain (enabled providers, priority then
// weight descending), skipping providers that are rate limited or whose
// rolling success rate falls below the eligibility threshold. A failed
// attempt moves on to the next-best provider; a provider is never
// retried within the same request:
//
//	res, err := provider.Execute(ctx, reg, provider.Requirements{
//	    Operation: "fetch_quotes",
//	}, func(ctx context.Context, id string, p QuoteFetcher) (QuoteSet, error) {
//	    return p.FetchQuotes(ctx, req)
//	})
//
// Every attempt is emitted as a structured audit event; AuditSink
// implementations fan events out to logs, metrics, or event streams.
//
// Background probing keeps idle providers' statistics fresh: Start
// spawns a probe loop that calls Healthy on providers implementing
// HealthChecker, and a prune loop that drops idle rate-limit keys.
// Stop (or Close) joins both.
package provider
