package provider

import (
	"context"
	"time"

	goerrors "github.com/quotelab/feedgate/errors"
	"github.com/quotelab/feedgate/logger"
	"github.com/quotelab/feedgate/resilience"
)

// Requirements narrows the candidate set for one dispatch.
// The zero value dispatches to the full chain.
type Requirements struct {
	// Operation labels the call in logs and audit events, e.g. "fetch_quotes".
	Operation string

	// Environment keeps only providers that list it, or list nothing.
	Environment string

	// Feature keeps only providers that advertise it. Empty matches all.
	Feature string

	// ForceProvider pins the dispatch to a single provider. The pin still
	// has to pass the enablement, filter, and health gates.
	ForceProvider string

	// Exclude skips the named providers for this request.
	Exclude []string

	// MaxAttempts overrides the registry default when positive.
	MaxAttempts int
}

// Result carries the outcome of a successful dispatch.
type Result[R any] struct {
	Value      R
	ProviderID string
	Latency    time.Duration
	Attempts   int
}

// Operation is a single call against a backend instance. The provider
// id is passed so callers can label validation errors and log lines.
type Operation[T, R any] func(ctx context.Context, providerID string, instance T) (R, error)

// candidate is a provider that passed the dispatch gates, with a copy
// of the config it passed them under.
type candidate struct {
	id  string
	cfg Config
}

// Execute dispatches op with failover. Each attempt picks the best
// remaining candidate from the chain, so a request never hits the same
// provider twice. Rate limited picks consume an attempt but leave the
// provider's health stats alone. Failed attempts wait RetryDelay times
// the attempt number before the next pick.
//
// Execute is a function rather than a method so the operation result
// can be typed per call site.
func Execute[T, R any](ctx context.Context, r *Registry[T], req Requirements, op Operation[T, R]) (*Result[R], error) {
	if r.closed.Load() {
		return nil, goerrors.ServiceUnavailable(r.opts.Capability)
	}
	if err := ctx.Err(); err != nil {
		return nil, goerrors.Canceled(req.Operation).WithCause(err)
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = r.opts.MaxAttempts
	}

	excluded := make(map[string]bool, len(req.Exclude)+maxAttempts)
	for _, id := range req.Exclude {
		excluded[id] = true
	}

	backoff := resilience.Backoff{Base: r.opts.RetryDelay}
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		picks := r.candidatesFor(req, excluded)
		if len(picks) == 0 {
			if lastErr == nil {
				return nil, goerrors.NoProviders(r.opts.Capability)
			}
			r.emit(EventExhausted, map[string]any{
				"operation": req.Operation,
				"attempts":  attempt - 1,
				"error":     lastErr.Error(),
			})
			return nil, goerrors.AllProvidersFailed(r.opts.Capability, attempt-1, lastErr)
		}

		pick := picks[0]
		excluded[pick.id] = true

		if decision := r.checkLimit(pick.id, pick.cfg); !decision.Allowed {
			lastErr = goerrors.RateLimited(pick.id, decision.ResetAt)
			r.emitAttempt(req.Operation, pick.id, OutcomeRateLimited, 0, attempt)
			continue
		}

		entry := r.get(pick.id)
		if entry == nil {
			// Deregistered between selection and dispatch.
			continue
		}

		timeout := pick.cfg.Timeout
		if timeout <= 0 {
			timeout = r.opts.AttemptTimeout
		}
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		value, err := op(attemptCtx, pick.id, entry.instance)
		latency := time.Since(start)
		cancel()

		if err == nil {
			r.recordSuccess(pick.id, latency)
			r.emitAttempt(req.Operation, pick.id, OutcomeSuccess, latency, attempt)
			return &Result[R]{
				Value:      value,
				ProviderID: pick.id,
				Latency:    latency,
				Attempts:   attempt,
			}, nil
		}

		// The caller walked away. Stop without blaming the provider.
		if ctx.Err() != nil {
			r.emitAttempt(req.Operation, pick.id, OutcomeCanceled, latency, attempt)
			return nil, goerrors.Canceled(req.Operation).WithCause(ctx.Err())
		}

		r.recordFailure(pick.id)
		r.emitAttempt(req.Operation, pick.id, OutcomeFailure, latency, attempt)
		lastErr = goerrors.ProviderFailed(pick.id, err)
		r.log.Warn("provider attempt failed", map[string]interface{}{
			logger.FieldCapability: r.opts.Capability,
			logger.FieldProvider:   pick.id,
			logger.FieldOperation:  req.Operation,
			logger.FieldAttempt:    attempt,
			logger.FieldError:      err.Error(),
		})

		if attempt < maxAttempts {
			if err := resilience.Sleep(ctx, backoff.Delay(attempt)); err != nil {
				return nil, goerrors.Canceled(req.Operation).WithCause(err)
			}
		}
	}

	if lastErr == nil {
		return nil, goerrors.NoProviders(r.opts.Capability)
	}
	r.emit(EventExhausted, map[string]any{
		"operation": req.Operation,
		"attempts":  maxAttempts,
		"error":     lastErr.Error(),
	})
	return nil, goerrors.AllProvidersFailed(r.opts.Capability, maxAttempts, lastErr)
}

// candidatesFor returns the providers that pass every dispatch gate, in
// chain order. A pinned provider collapses the set to itself when it
// qualifies and to nothing when it does not.
func (r *Registry[T]) candidatesFor(req Requirements, excluded map[string]bool) []candidate {
	chain := *r.chain.Load()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]candidate, 0, len(chain))
	for _, id := range chain {
		if excluded[id] {
			continue
		}
		entry := r.entries[id]
		if entry == nil {
			continue
		}
		cfg := entry.config
		if !cfg.Enabled {
			continue
		}
		if !cfg.supportsEnvironment(req.Environment) {
			continue
		}
		if !cfg.supportsFeature(req.Feature) {
			continue
		}
		if !entry.health.Eligible() {
			continue
		}
		out = append(out, candidate{id: id, cfg: cfg})
	}

	if req.ForceProvider != "" {
		for _, c := range out {
			if c.id == req.ForceProvider {
				return []candidate{c}
			}
		}
		return nil
	}
	return out
}

func (r *Registry[T]) emitAttempt(operation, id, outcome string, latency time.Duration, attempt int) {
	r.emit(EventAttempt, map[string]any{
		"operation":  operation,
		"provider":   id,
		"outcome":    outcome,
		"latency_ms": latency.Milliseconds(),
		"attempt":    attempt,
	})
}
