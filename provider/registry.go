package provider

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goerrors "github.com/quotelab/feedgate/errors"
	"github.com/quotelab/feedgate/logger"
	"github.com/quotelab/feedgate/resilience"
)

// Options configures a Registry. Zero fields are filled in by New from
// DefaultOptions, so callers only set what they want to change.
type Options struct {
	// Capability names the backend kind this registry manages, e.g. "quotes".
	// It prefixes rate limit keys and appears in logs and audit events.
	Capability string

	// MaxAttempts bounds a single dispatch, counting rate limited picks.
	MaxAttempts int

	// RetryDelay is the base delay between failed attempts. The actual
	// wait grows linearly with the attempt number.
	RetryDelay time.Duration

	// AttemptTimeout caps each individual provider call.
	AttemptTimeout time.Duration

	// HealthThreshold is the minimum rolling success rate a provider needs
	// to stay eligible for dispatch.
	HealthThreshold float64

	// ProbeInterval is the period of the background health probe loop.
	ProbeInterval time.Duration

	// ProbeTimeout caps a single health probe.
	ProbeTimeout time.Duration

	// ProbeConcurrency caps how many providers are probed in parallel.
	ProbeConcurrency int

	// PruneInterval is the period of the rate limiter cleanup loop.
	PruneInterval time.Duration

	// PruneIdle is how long a rate limit key may sit unused before the
	// cleanup loop drops it.
	PruneIdle time.Duration

	// Audit receives lifecycle and dispatch events. Defaults to NopSink.
	Audit AuditSink

	// Logger overrides the package logger.
	Logger *logger.Logger
}

// DefaultOptions returns the options used by New for unset fields.
func DefaultOptions(capability string) Options {
	return Options{
		Capability:       capability,
		MaxAttempts:      3,
		RetryDelay:       time.Second,
		AttemptTimeout:   30 * time.Second,
		HealthThreshold:  resilience.DefaultEligibilityThreshold,
		ProbeInterval:    time.Minute,
		ProbeTimeout:     5 * time.Second,
		ProbeConcurrency: 4,
		PruneInterval:    5 * time.Minute,
		PruneIdle:        10 * time.Minute,
		Audit:            NopSink{},
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions(o.Capability)
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = def.RetryDelay
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = def.AttemptTimeout
	}
	if o.HealthThreshold <= 0 || o.HealthThreshold > 1 {
		o.HealthThreshold = def.HealthThreshold
	}
	if o.ProbeInterval <= 0 {
		o.ProbeInterval = def.ProbeInterval
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = def.ProbeTimeout
	}
	if o.ProbeConcurrency <= 0 {
		o.ProbeConcurrency = def.ProbeConcurrency
	}
	if o.PruneInterval <= 0 {
		o.PruneInterval = def.PruneInterval
	}
	if o.PruneIdle <= 0 {
		o.PruneIdle = def.PruneIdle
	}
	if o.Audit == nil {
		o.Audit = NopSink{}
	}
	return o
}

// registration is the per-provider record: the backend instance, its
// dispatch config, and its rolling health stats. The config is guarded
// by the registry mutex; the tracker has its own lock.
type registration[T any] struct {
	instance T
	config   Config
	health   *resilience.HealthTracker
}

// Registry manages a set of interchangeable backends for one capability.
// Dispatch walks the priority chain with failover, health gating, and
// per-provider rate limits; see Execute.
//
// All methods are safe for concurrent use.
type Registry[T any] struct {
	opts      Options
	log       *logger.Logger
	audit     AuditSink
	limiter   *resilience.SlidingLimiter
	probeGate *resilience.Bulkhead

	mu      sync.RWMutex
	entries map[string]*registration[T]

	// chain is the precomputed dispatch order, rebuilt synchronously on
	// every mutation so readers never pay for sorting.
	chain atomic.Pointer[[]string]

	lifecycleMu sync.Mutex
	stopLoops   context.CancelFunc
	loops       sync.WaitGroup
	probing     atomic.Bool
	closed      atomic.Bool
}

// New creates an empty registry for the given capability.
// Call Start to launch the background probe and cleanup loops.
func New[T any](opts Options) *Registry[T] {
	opts = opts.withDefaults()

	log := opts.Logger
	if log == nil {
		log = logger.Get("provider")
	}

	r := &Registry[T]{
		opts:    opts,
		log:     log,
		audit:   opts.Audit,
		entries: make(map[string]*registration[T]),
	}
	r.limiter = resilience.NewSlidingLimiter(resilience.SlidingLimiterConfig{
		OnLimit: func(key string) {
			r.log.Warn("provider rate limit reached", map[string]interface{}{
				logger.FieldCapability: opts.Capability,
				"limit_key":            key,
			})
		},
	})
	r.probeGate = resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          opts.Capability + "-probe",
		MaxConcurrent: opts.ProbeConcurrency,
		MaxWait:       opts.ProbeTimeout,
	})

	empty := make([]string, 0)
	r.chain.Store(&empty)
	return r
}

// Capability returns the capability name this registry was created for.
func (r *Registry[T]) Capability() string { return r.opts.Capability }

// Register adds a backend under the given id. Registering an id twice
// replaces the previous registration, resets its health stats and rate
// limit window, and re-sorts the chain.
//
// When the config enables health checks and the instance implements
// HealthChecker, one probe runs synchronously so the provider starts
// with a real data point instead of an assumed clean slate.
func (r *Registry[T]) Register(id string, instance T, cfg Config) error {
	if r.closed.Load() {
		return goerrors.ServiceUnavailable(r.opts.Capability)
	}
	if id == "" {
		return goerrors.InvalidProvider(id, "id is required")
	}
	if any(instance) == nil {
		return goerrors.InvalidProvider(id, "instance is required")
	}
	if err := cfg.Validate(); err != nil {
		return goerrors.InvalidProvider(id, "invalid config").WithCause(err)
	}

	tracker := resilience.NewHealthTracker(resilience.HealthConfig{
		Name:                 id,
		EligibilityThreshold: r.opts.HealthThreshold,
		OnStatusChange: func(name string, from, to resilience.Status) {
			r.log.Info("provider status changed", map[string]interface{}{
				logger.FieldCapability: r.opts.Capability,
				logger.FieldProvider:   name,
				"from":                 from.String(),
				"to":                   to.String(),
			})
		},
	})

	r.mu.Lock()
	_, replaced := r.entries[id]
	r.entries[id] = &registration[T]{
		instance: instance,
		config:   cfg,
		health:   tracker,
	}
	r.rebuildLocked()
	r.mu.Unlock()

	r.limiter.Reset(r.limitKey(id))

	r.emit(EventRegistered, map[string]any{
		"provider": id,
		"priority": cfg.Priority,
		"weight":   cfg.Weight,
		"enabled":  cfg.Enabled,
		"replaced": replaced,
	})
	r.log.Info("provider registered", map[string]interface{}{
		logger.FieldCapability: r.opts.Capability,
		logger.FieldProvider:   id,
		"priority":             cfg.Priority,
		"enabled":              cfg.Enabled,
	})

	if cfg.HealthCheck {
		if hc, ok := any(instance).(HealthChecker); ok {
			r.probeOne(context.Background(), id, hc)
		}
	}
	return nil
}

// Deregister removes a provider and its rate limit state. The instance
// is closed if it implements Closeable.
func (r *Registry[T]) Deregister(ctx context.Context, id string) error {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return goerrors.NotFound("provider", id)
	}
	delete(r.entries, id)
	r.rebuildLocked()
	r.mu.Unlock()

	r.limiter.Reset(r.limitKey(id))
	r.emit(EventDeregistered, map[string]any{"provider": id})

	if c, ok := any(entry.instance).(Closeable); ok {
		if err := c.Close(ctx); err != nil {
			r.log.Error("provider close failed", map[string]interface{}{
				logger.FieldProvider: id,
				logger.FieldError:    err.Error(),
			})
			return goerrors.Wrap(err)
		}
	}
	return nil
}

// SetEnabled flips a provider in or out of the dispatch chain without
// touching the rest of its config or its health stats.
func (r *Registry[T]) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return goerrors.NotFound("provider", id)
	}
	entry.config.Enabled = enabled
	r.rebuildLocked()
	r.mu.Unlock()

	name := EventDisabled
	if enabled {
		name = EventEnabled
	}
	r.emit(name, map[string]any{"provider": id})
	r.log.Info("provider toggled", map[string]interface{}{
		logger.FieldCapability: r.opts.Capability,
		logger.FieldProvider:   id,
		"enabled":              enabled,
	})
	return nil
}

// UpdateConfig applies a partial config update. Unset patch fields keep
// their current values. Changing the rate limit budget restarts the
// provider's window from empty.
func (r *Registry[T]) UpdateConfig(id string, patch ConfigPatch) error {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return goerrors.NotFound("provider", id)
	}
	updated := patch.apply(entry.config)
	if err := updated.Validate(); err != nil {
		r.mu.Unlock()
		return goerrors.InvalidProvider(id, "invalid config").WithCause(err)
	}
	limitChanged := !rateLimitEqual(entry.config.RateLimit, updated.RateLimit)
	entry.config = updated
	r.rebuildLocked()
	r.mu.Unlock()

	if limitChanged {
		r.limiter.Reset(r.limitKey(id))
	}
	r.emit(EventConfigUpdated, map[string]any{
		"provider": id,
		"priority": updated.Priority,
		"weight":   updated.Weight,
		"enabled":  updated.Enabled,
	})
	return nil
}

// Instance returns the registered backend for id.
func (r *Registry[T]) Instance(id string) (T, error) {
	r.mu.RLock()
	entry, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, goerrors.NotFound("provider", id)
	}
	return entry.instance, nil
}

// GetConfig returns a copy of the provider's current config.
func (r *Registry[T]) GetConfig(id string) (Config, error) {
	r.mu.RLock()
	entry, ok := r.entries[id]
	var cfg Config
	if ok {
		cfg = entry.config
	}
	r.mu.RUnlock()

	if !ok {
		return Config{}, goerrors.NotFound("provider", id)
	}
	return cfg, nil
}

// IDs returns all registered provider ids in lexical order, enabled or not.
func (r *Registry[T]) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Chain returns the current dispatch order: enabled providers sorted by
// priority, then weight, then id.
func (r *Registry[T]) Chain() []string {
	snap := *r.chain.Load()
	out := make([]string, len(snap))
	copy(out, snap)
	return out
}

// Len returns the number of registered providers.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close stops the background loops, closes every Closeable instance, and
// marks the registry unusable. It returns the first close error seen.
func (r *Registry[T]) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.Stop()

	r.mu.RLock()
	instances := make(map[string]T, len(r.entries))
	for id, entry := range r.entries {
		instances[id] = entry.instance
	}
	r.mu.RUnlock()

	var firstErr error
	for id, instance := range instances {
		c, ok := any(instance).(Closeable)
		if !ok {
			continue
		}
		if err := c.Close(ctx); err != nil {
			r.log.Error("provider close failed", map[string]interface{}{
				logger.FieldProvider: id,
				logger.FieldError:    err.Error(),
			})
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	r.emit(EventClosed, map[string]any{"providers": len(instances)})
	r.log.Info("registry closed", map[string]interface{}{
		logger.FieldCapability: r.opts.Capability,
	})
	return firstErr
}

// rebuildLocked recomputes the dispatch chain. Callers hold r.mu.
func (r *Registry[T]) rebuildLocked() {
	entries := make([]chainEntry, 0, len(r.entries))
	for id, e := range r.entries {
		entries = append(entries, chainEntry{
			id:       id,
			priority: e.config.Priority,
			weight:   e.config.Weight,
			enabled:  e.config.Enabled,
		})
	}
	chain := buildChain(entries)
	r.chain.Store(&chain)
}

// get returns the registration for id, or nil.
func (r *Registry[T]) get(id string) *registration[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}

func (r *Registry[T]) limitKey(id string) string {
	return r.opts.Capability + ":" + id
}

// checkLimit consumes one rate limit slot for the provider, or reports
// why it cannot. Providers without a budget are always allowed.
func (r *Registry[T]) checkLimit(id string, cfg Config) resilience.Decision {
	if cfg.RateLimit == nil {
		return resilience.Decision{Allowed: true, Remaining: -1}
	}
	return r.limiter.Check(r.limitKey(id), cfg.RateLimit.Requests, cfg.RateLimit.Window)
}

func (r *Registry[T]) recordSuccess(id string, latency time.Duration) {
	if entry := r.get(id); entry != nil {
		entry.health.RecordSuccess(latency)
	}
}

func (r *Registry[T]) recordFailure(id string) {
	if entry := r.get(id); entry != nil {
		entry.health.RecordFailure()
	}
}

// emit sends an audit event, stamping the capability on every payload.
func (r *Registry[T]) emit(name string, payload map[string]any) {
	if payload == nil {
		payload = make(map[string]any, 1)
	}
	payload["capability"] = r.opts.Capability
	r.audit.Send(Event{Name: name, Timestamp: time.Now(), Payload: payload})
}

func rateLimitEqual(a, b *RateLimit) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Requests == b.Requests && a.Window == b.Window
}
