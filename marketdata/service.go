package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/quotelab/feedgate/cache"
	goerrors "github.com/quotelab/feedgate/errors"
	"github.com/quotelab/feedgate/logger"
	"github.com/quotelab/feedgate/observability"
	"github.com/quotelab/feedgate/provider"
)

// DefaultCacheMaxAge is the freshness window when the caller does not
// override it.
const DefaultCacheMaxAge = 5 * time.Minute

// ServiceConfig configures the quote service.
type ServiceConfig struct {
	// CacheMaxAge is the default freshness window for cached quotes.
	CacheMaxAge time.Duration

	// Environment is this deployment's environment name, matched
	// against each provider's environment scope on dispatch.
	Environment string

	// Fallback, when set, produces synthetic quotes after providers
	// and cache are both exhausted.
	Fallback FallbackSource
}

// Service is the quotes specialization over the generic registry: it
// adds response validation, canonical cache keys, and the degradation
// ladder live, cache, stale cache, synthetic fallback.
type Service struct {
	registry *provider.Registry[Provider]
	cache    *cache.Cache[QuoteSet]
	cfg      ServiceConfig
	log      *logger.Logger
}

// NewService wires the service over a registry and a cache store.
func NewService(registry *provider.Registry[Provider], store cache.Store[QuoteSet], cfg ServiceConfig) *Service {
	if cfg.CacheMaxAge <= 0 {
		cfg.CacheMaxAge = DefaultCacheMaxAge
	}
	return &Service{
		registry: registry,
		cache:    cache.New[QuoteSet](store),
		cfg:      cfg,
		log:      logger.Get("marketdata"),
	}
}

// Registry exposes the underlying registry for admin operations.
func (s *Service) Registry() *provider.Registry[Provider] { return s.registry }

// GetQuotes returns quotes for the requested symbols. Fresh cache
// short-circuits dispatch unless ForceRefresh is set. When every
// provider fails, the service degrades through the cache (fresh, then
// stale) and the synthetic fallback before surfacing the dispatch
// error; degraded results are flagged so callers can render them as
// such.
func (s *Service) GetQuotes(ctx context.Context, req QuoteRequest, opts FetchOptions) (*QuoteResult, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanDispatch)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrCapability, Capability)
	observability.SetSpanAttribute(ctx, "symbols", req.Symbols)

	result, err := s.resolve(ctx, req, opts)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}
	observability.SetSpanAttribute(ctx, observability.AttrSource, string(result.Source))
	if result.Provider != "" {
		observability.SetSpanAttribute(ctx, observability.AttrProvider, result.Provider)
	}
	return result, nil
}

// resolve walks the ladder for a normalized request.
func (s *Service) resolve(ctx context.Context, req QuoteRequest, opts FetchOptions) (*QuoteResult, error) {
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = s.cfg.CacheMaxAge
	}
	key := quoteKey(req)

	if !opts.ForceRefresh {
		if result := s.fromCache(ctx, key, maxAge); result != nil {
			return result, nil
		}
	}

	res, dispatchErr := provider.Execute(ctx, s.registry, provider.Requirements{
		Operation:     "fetch_quotes",
		Environment:   s.cfg.Environment,
		Feature:       opts.Feature,
		ForceProvider: opts.Provider,
	}, func(ctx context.Context, id string, p Provider) (QuoteSet, error) {
		quotes, err := p.FetchQuotes(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := validateQuotes(id, req, quotes); err != nil {
			return nil, err
		}
		return quotes, nil
	})

	if dispatchErr == nil {
		if err := s.cache.Set(ctx, key, res.Value, res.ProviderID); err != nil {
			s.log.Warn("quote cache write failed", map[string]interface{}{
				logger.FieldCacheKey: key,
				logger.FieldError:    err.Error(),
			})
		}
		return &QuoteResult{
			Quotes:    res.Value,
			Provider:  res.ProviderID,
			Source:    SourceLive,
			FetchedAt: time.Now(),
			Attempts:  res.Attempts,
			Latency:   res.Latency,
			LatencyMs: res.Latency.Milliseconds(),
		}, nil
	}

	if !exhausted(dispatchErr) {
		return nil, dispatchErr
	}

	// Every provider is down. Degrade through the cache before giving up.
	if result := s.fromCache(ctx, key, maxAge); result != nil {
		return result, nil
	}
	if result := s.fromStale(ctx, key); result != nil {
		s.log.Warn("serving stale quotes", map[string]interface{}{
			logger.FieldCacheKey: key,
			"age":                time.Since(result.FetchedAt).String(),
		})
		return result, nil
	}
	if s.cfg.Fallback != nil {
		quotes, err := s.cfg.Fallback.Generate(ctx, req)
		if err == nil {
			s.log.Warn("serving synthetic fallback quotes", map[string]interface{}{
				logger.FieldCacheKey: key,
			})
			return &QuoteResult{
				Quotes:    quotes,
				Source:    SourceFallback,
				Stale:     true,
				FetchedAt: time.Now(),
			}, nil
		}
		s.log.Error("fallback source failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
	return nil, dispatchErr
}

// ClearCache removes cached quotes under the given sub-prefix. An
// empty prefix clears every entry of this capability.
func (s *Service) ClearCache(ctx context.Context, prefix string) (int, error) {
	return s.cache.Clear(ctx, Capability+":"+prefix)
}

// Health returns the registry health report.
func (s *Service) Health() provider.HealthReport {
	return s.registry.HealthReport()
}

// ProviderStats returns one provider's health entry.
func (s *Service) ProviderStats(id string) (provider.ProviderHealth, error) {
	return s.registry.ProviderStats(id)
}

func (s *Service) fromCache(ctx context.Context, key string, maxAge time.Duration) *QuoteResult {
	ctx, span := observability.StartSpan(ctx, observability.SpanCacheLookup)
	defer span.End()

	entry, ok, err := s.cache.Get(ctx, key, maxAge)
	if err != nil {
		observability.SetSpanError(ctx, err)
		s.log.Warn("quote cache read failed", map[string]interface{}{
			logger.FieldCacheKey: key,
			logger.FieldError:    err.Error(),
		})
		return nil
	}
	observability.SetSpanAttribute(ctx, "hit", ok)
	if !ok {
		return nil
	}
	return &QuoteResult{
		Quotes:    entry.Value,
		Provider:  entry.Provider,
		Source:    SourceCache,
		FetchedAt: entry.StoredAt,
	}
}

func (s *Service) fromStale(ctx context.Context, key string) *QuoteResult {
	ctx, span := observability.StartSpan(ctx, observability.SpanCacheLookup)
	defer span.End()

	entry, err := s.cache.GetStale(ctx, key)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil
	}
	observability.SetSpanAttribute(ctx, "hit", entry != nil)
	if entry == nil {
		return nil
	}
	return &QuoteResult{
		Quotes:    entry.Value,
		Provider:  entry.Provider,
		Source:    SourceStale,
		Stale:     true,
		FetchedAt: entry.StoredAt,
	}
}

// exhausted reports whether dispatch failed because no provider could
// serve, which is when cache fallback applies. Cancellation and input
// errors propagate untouched.
func exhausted(err error) bool {
	var appErr *goerrors.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == goerrors.ErrCodeNoProviders || appErr.Code == goerrors.ErrCodeAllProvidersFailed
}
