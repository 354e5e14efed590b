package provider

import (
	"context"
	"time"

	"github.com/quotelab/feedgate/logger"
)

// Start launches the background health probe and rate limiter cleanup
// loops. Starting an already started or closed registry is a no-op.
// The loops run until Stop or Close.
func (r *Registry[T]) Start() {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if r.closed.Load() || r.stopLoops != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.stopLoops = cancel
	r.loops.Add(2)
	go r.probeLoop(ctx)
	go r.pruneLoop(ctx)

	r.log.Info("registry background loops started", map[string]interface{}{
		logger.FieldCapability: r.opts.Capability,
		"probe_interval":       r.opts.ProbeInterval.String(),
		"prune_interval":       r.opts.PruneInterval.String(),
	})
}

// Stop cancels the background loops and waits for them to exit.
func (r *Registry[T]) Stop() {
	r.lifecycleMu.Lock()
	stop := r.stopLoops
	r.stopLoops = nil
	r.lifecycleMu.Unlock()

	if stop == nil {
		return
	}
	stop()
	r.loops.Wait()
}

func (r *Registry[T]) probeLoop(ctx context.Context) {
	defer r.loops.Done()

	ticker := time.NewTicker(r.opts.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.probePass(ctx)
		}
	}
}

func (r *Registry[T]) pruneLoop(ctx context.Context) {
	defer r.loops.Done()

	ticker := time.NewTicker(r.opts.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.limiter.Prune(r.opts.PruneIdle); n > 0 {
				r.log.Debug("pruned idle rate limit keys", map[string]interface{}{
					logger.FieldCapability: r.opts.Capability,
					"keys":                 n,
				})
			}
		}
	}
}

// probePass probes every provider that has health checks enabled and
// implements HealthChecker. A pass that starts while the previous one
// is still running is skipped instead of queued, so slow providers
// cannot stack probe work.
func (r *Registry[T]) probePass(ctx context.Context) {
	if !r.probing.CompareAndSwap(false, true) {
		r.log.Debug("probe pass skipped, previous pass still running", map[string]interface{}{
			logger.FieldCapability: r.opts.Capability,
		})
		return
	}
	defer r.probing.Store(false)

	targets := r.probeTargets()
	if len(targets) == 0 {
		return
	}

	done := make(chan struct{}, len(targets))
	for _, t := range targets {
		go func(id string, hc HealthChecker) {
			defer func() { done <- struct{}{} }()
			err := r.probeGate.Execute(ctx, func() error {
				r.probeOne(ctx, id, hc)
				return nil
			})
			if err != nil {
				r.log.Debug("probe slot unavailable", map[string]interface{}{
					logger.FieldProvider: id,
					logger.FieldError:    err.Error(),
				})
			}
		}(t.id, t.hc)
	}
	for range targets {
		<-done
	}
}

type probeTarget struct {
	id string
	hc HealthChecker
}

func (r *Registry[T]) probeTargets() []probeTarget {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]probeTarget, 0, len(r.entries))
	for id, entry := range r.entries {
		if !entry.config.HealthCheck {
			continue
		}
		if hc, ok := any(entry.instance).(HealthChecker); ok {
			out = append(out, probeTarget{id: id, hc: hc})
		}
	}
	return out
}

// probeOne runs a single health check under ProbeTimeout and records
// the answer into the provider's stats, so idle providers keep fresh
// statistics without traffic. A timeout counts as a failure.
func (r *Registry[T]) probeOne(ctx context.Context, id string, hc HealthChecker) {
	probeCtx, cancel := context.WithTimeout(ctx, r.opts.ProbeTimeout)
	defer cancel()

	start := time.Now()
	healthy := hc.Healthy(probeCtx)
	elapsed := time.Since(start)

	if healthy && probeCtx.Err() == nil {
		r.recordSuccess(id, elapsed)
	} else {
		r.recordFailure(id)
	}

	r.emit(EventProbe, map[string]any{
		"provider":   id,
		"healthy":    healthy,
		"latency_ms": elapsed.Milliseconds(),
	})
}
