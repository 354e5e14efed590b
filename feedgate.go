// Package feedgate assembles the market data stack: a provider registry
// with failover and health gating, the quote service over it, a cached
// store, an audit event stream, and the HTTP surface. Embedders build an
// App once, register their backends on App.Registry, and hand control to
// App.Run.
//
//	cfg, err := feedgate.LoadConfig()
//	app, err := feedgate.New(cfg)
//	app.Registry.Register("coingecko", gecko, provider.Config{Priority: 10, Enabled: true})
//	app.Registry.Register("binance", binance, provider.Config{Priority: 5, Enabled: true})
//	app.Run(context.Background())
package feedgate

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quotelab/feedgate/cache"
	"github.com/quotelab/feedgate/component"
	"github.com/quotelab/feedgate/config"
	"github.com/quotelab/feedgate/events"
	"github.com/quotelab/feedgate/logger"
	"github.com/quotelab/feedgate/marketdata"
	"github.com/quotelab/feedgate/observability"
	"github.com/quotelab/feedgate/provider"
	"github.com/quotelab/feedgate/server"
	"github.com/quotelab/feedgate/util"
	"github.com/quotelab/feedgate/version"
)

// eventsStreamPath is where the SSE audit stream is served.
const eventsStreamPath = "/v1/events"

// defaultGracefulTimeout bounds shutdown when no override is given.
const defaultGracefulTimeout = 15 * time.Second

// RegistryConfig tunes dispatch and health probing. Duration fields take
// strings like "500ms" or "30s"; unset fields fall back to the registry
// package defaults.
type RegistryConfig struct {
	// Capability names the backend kind this service manages.
	Capability string `yaml:"capability" mapstructure:"capability"`

	// MaxAttempts bounds one dispatch, counting rate limited picks.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`

	// RetryDelay is the base wait between failed attempts.
	RetryDelay string `yaml:"retry_delay" mapstructure:"retry_delay"`

	// AttemptTimeout caps each individual provider call.
	AttemptTimeout string `yaml:"attempt_timeout" mapstructure:"attempt_timeout"`

	// HealthThreshold is the rolling success rate a provider needs to
	// stay in the dispatch chain (0 to 1).
	HealthThreshold float64 `yaml:"health_threshold" mapstructure:"health_threshold"`

	// ProbeInterval is the period of the background health probe loop.
	ProbeInterval string `yaml:"probe_interval" mapstructure:"probe_interval"`

	// AuditThrottle is the minimum interval between audit events of the
	// same name on the SSE stream. Zero streams every event.
	AuditThrottle string `yaml:"audit_throttle" mapstructure:"audit_throttle"`
}

// ApplyDefaults fills in the capability and stream throttle.
func (c *RegistryConfig) ApplyDefaults() {
	if c.Capability == "" {
		c.Capability = marketdata.Capability
	}
	if c.AuditThrottle == "" {
		c.AuditThrottle = "1s"
	}
}

// Validate checks numeric ranges and that duration strings parse.
func (c *RegistryConfig) Validate() error {
	if c.Capability == "" {
		return fmt.Errorf("registry.capability is required")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("registry.max_attempts must be non-negative (got: %d)", c.MaxAttempts)
	}
	if c.HealthThreshold < 0 || c.HealthThreshold > 1 {
		return fmt.Errorf("registry.health_threshold must be between 0 and 1 (got: %v)", c.HealthThreshold)
	}
	for name, value := range map[string]string{
		"registry.retry_delay":     c.RetryDelay,
		"registry.attempt_timeout": c.AttemptTimeout,
		"registry.probe_interval":  c.ProbeInterval,
		"registry.audit_throttle":  c.AuditThrottle,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}
	return nil
}

// options translates the config into registry options. Zero fields stay
// zero so the registry defaults apply.
func (c RegistryConfig) options(audit provider.AuditSink, log *logger.Logger) provider.Options {
	return provider.Options{
		Capability:      c.Capability,
		MaxAttempts:     c.MaxAttempts,
		RetryDelay:      duration(c.RetryDelay),
		AttemptTimeout:  duration(c.AttemptTimeout),
		HealthThreshold: c.HealthThreshold,
		ProbeInterval:   duration(c.ProbeInterval),
		Audit:           audit,
		Logger:          log,
	}
}

// CacheConfig selects the quote store and its freshness window.
type CacheConfig struct {
	// MaxAge is the default freshness window, e.g. "30s". Unset falls
	// back to the quote service default.
	MaxAge string `yaml:"max_age" mapstructure:"max_age"`

	// Redis switches the store from in-process memory to Redis.
	Redis cache.RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// ApplyDefaults fills in the Redis connection defaults.
func (c *CacheConfig) ApplyDefaults() {
	c.Redis.ApplyDefaults()
}

// Validate checks the freshness window and the Redis settings.
func (c *CacheConfig) Validate() error {
	if c.MaxAge != "" {
		d, err := time.ParseDuration(c.MaxAge)
		if err != nil {
			return fmt.Errorf("invalid cache.max_age %q: %w", c.MaxAge, err)
		}
		if d < 0 {
			return fmt.Errorf("cache.max_age must be non-negative (got: %s)", c.MaxAge)
		}
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("cache.redis: %w", err)
	}
	return nil
}

func (c CacheConfig) maxAge() time.Duration {
	return duration(c.MaxAge)
}

// ObservabilityConfig controls the OpenTelemetry pipeline. Disabled by
// default; logs and the operational endpoints work without it.
type ObservabilityConfig struct {
	// Enabled turns the OTLP trace and metric exporters on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Endpoint is the OTLP HTTP collector address (host:port).
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	// Insecure allows plaintext export, for local collectors.
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`

	// SampleRate is the trace sampling ratio (0 to 1).
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`

	// MetricsInterval is the metric export period, e.g. "15s".
	MetricsInterval string `yaml:"metrics_interval" mapstructure:"metrics_interval"`
}

// ApplyDefaults targets a local collector when no endpoint is set.
func (c *ObservabilityConfig) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
		c.Insecure = true
	}
	if c.MetricsInterval == "" {
		c.MetricsInterval = "15s"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 1.0
	}
}

// Validate checks the exporter settings. Disabled sections are skipped.
func (c *ObservabilityConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("observability.endpoint is required when enabled")
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("observability.sample_rate must be between 0 and 1 (got: %v)", c.SampleRate)
	}
	if _, err := time.ParseDuration(c.MetricsInterval); err != nil {
		return fmt.Errorf("invalid observability.metrics_interval %q: %w", c.MetricsInterval, err)
	}
	return nil
}

// Config is the full service configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Registry      RegistryConfig      `yaml:"registry" mapstructure:"registry"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Server        server.Config       `yaml:"server" mapstructure:"server"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

var _ config.Config = (*Config)(nil)

// ApplyDefaults fills every section with its defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "feedgate"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Registry.ApplyDefaults()
	c.Cache.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Registry.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	return c.Observability.Validate()
}

// LoadConfig reads the configuration from the standard YAML and .env
// search paths, applies defaults, and validates it.
func LoadConfig(opts ...config.LoaderOption) (*Config, error) {
	cfg := &Config{}
	if err := config.Load("feedgate", cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// duration parses a config duration string that Validate has already
// checked. Empty or invalid strings come back as zero.
func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// Option customizes App construction.
type Option func(*appOptions)

type appOptions struct {
	fallback        marketdata.FallbackSource
	auditSinks      []provider.AuditSink
	gracefulTimeout time.Duration
}

// WithFallback installs a synthetic quote source used after providers
// and cache are both exhausted.
func WithFallback(fs marketdata.FallbackSource) Option {
	return func(o *appOptions) { o.fallback = fs }
}

// WithAuditSink adds a sink that receives every registry audit event
// alongside the built-in stream and metrics sinks.
func WithAuditSink(sink provider.AuditSink) Option {
	return func(o *appOptions) {
		if sink != nil {
			o.auditSinks = append(o.auditSinks, sink)
		}
	}
}

// WithGracefulTimeout overrides how long Shutdown waits for components.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		if d > 0 {
			o.gracefulTimeout = d
		}
	}
}

// App is the wired service. The exported fields are the handles an
// embedder works with: Registry to add backends, Service for in-process
// quote access, Server to mount extra handlers.
type App struct {
	Config     *Config
	Registry   *provider.Registry[marketdata.Provider]
	Service    *marketdata.Service
	Server     *server.Server
	Events     *events.Component
	Components *component.Registry

	log             *logger.Logger
	gracefulTimeout time.Duration
}

// New builds the full stack from a config: audit sinks, registry, cache
// store, quote service, and HTTP server, all registered on a component
// registry in dependency order. Nothing is started yet; call Run or
// Start after registering providers.
func New(cfg *Config, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	logger.Init(&cfg.Logging)
	log := logger.GetGlobalLogger()

	o := appOptions{gracefulTimeout: defaultGracefulTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	eventsComp := events.NewComponent(eventsStreamPath)

	sinks := []provider.AuditSink{
		events.NewSinkBridge(eventsComp.Hub(), duration(cfg.Registry.AuditThrottle)),
	}
	if cfg.Observability.Enabled {
		metrics, err := observability.NewMetrics(observability.Meter(instrumentationName))
		if err != nil {
			return nil, fmt.Errorf("building dispatch instruments: %w", err)
		}
		sinks = append(sinks, observability.NewMetricsSink(metrics))
	}
	sinks = append(sinks, o.auditSinks...)

	registry := provider.New[marketdata.Provider](
		cfg.Registry.options(provider.Multi(sinks...), log),
	)

	var store cache.Store[marketdata.QuoteSet]
	var redisStore *cache.Redis[marketdata.QuoteSet]
	if cfg.Cache.Redis.Enabled {
		rs, err := cache.NewRedis[marketdata.QuoteSet](cfg.Cache.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("building redis cache: %w", err)
		}
		redisStore = rs
		store = rs
	} else {
		store = cache.NewMemory[marketdata.QuoteSet]()
	}

	service := marketdata.NewService(registry, store, marketdata.ServiceConfig{
		CacheMaxAge: cfg.Cache.maxAge(),
		Environment: cfg.Environment,
		Fallback:    o.fallback,
	})

	srv := server.New(cfg.Server, server.WithLogger(log))

	// Registration order is start order; Stop runs in reverse, so the
	// server drains first and telemetry flushes last.
	comps := []component.Component{}
	if cfg.Observability.Enabled {
		comps = append(comps, newTelemetryComponent(cfg, registry.HealthReport))
	}
	comps = append(comps, eventsComp)
	if redisStore != nil {
		comps = append(comps, newCacheComponent(redisStore, cfg.Cache.Redis.Addr))
	}
	comps = append(comps, &registryComponent{registry: registry})
	comps = append(comps, server.NewComponent(srv))

	components := component.NewRegistry()
	for _, c := range comps {
		if err := components.Register(c); err != nil {
			return nil, err
		}
	}

	srv.RegisterDefaultEndpoints(cfg.Name, components.HealthAll, registry.HealthReport)
	srv.RegisterAPI(server.API{
		Quotes:    service,
		Providers: registry,
		Cache:     service,
		Events:    eventsComp.Hub(),
	})
	srv.ApplyMiddleware()

	return &App{
		Config:          cfg,
		Registry:        registry,
		Service:         service,
		Server:          srv,
		Events:          eventsComp,
		Components:      components,
		log:             log,
		gracefulTimeout: o.gracefulTimeout,
	}, nil
}

// Version returns the configured version, or the build version when the
// config leaves it empty.
func (a *App) Version() string {
	return util.Coalesce(a.Config.Version, version.Short())
}

// Start brings every component up and prints the startup summary. It
// does not block; most services call Run instead and let it manage the
// signal wait. Providers registered before Start get probed and served
// from the first request on.
func (a *App) Start(ctx context.Context) error {
	start := time.Now()

	a.log.Info("Starting service", map[string]interface{}{
		"name":    a.Config.Name,
		"version": a.Version(),
	})

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	a.log.Info("All components started", logger.DurationFields("start", time.Since(start)))

	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status == component.StatusHealthy {
			continue
		}
		a.log.Warn("Component not healthy after startup", map[string]interface{}{
			"component": h.Name,
			"status":    string(h.Status),
			"message":   h.Message,
		})
	}

	writeSummary(os.Stdout, a.Config.Name, a.Version(), time.Since(start), a.Components)
	return nil
}

// Run starts the stack, blocks until a shutdown signal or context
// cancellation, and then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	a.log.Info("Service ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)

	return a.Shutdown(context.Background())
}

// WaitForSignal blocks until SIGINT, SIGTERM, or context cancellation.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.log.Info("Received shutdown signal", map[string]interface{}{
			"signal": sig.String(),
		})
		return sig
	case <-ctx.Done():
		a.log.Info("Context canceled, shutting down")
		return nil
	}
}

// Shutdown stops every component in reverse start order within the
// graceful timeout. Calling it on a stack that never started, or a
// second time, is a no-op.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("Shutting down service", map[string]interface{}{
		"timeout": a.gracefulTimeout.String(),
	})

	stopCtx, cancel := context.WithTimeout(ctx, a.gracefulTimeout)
	defer cancel()

	if err := a.Components.StopAll(stopCtx); err != nil {
		a.log.Error("Shutdown completed with errors", logger.ErrorFields("shutdown", err))
		return err
	}

	a.log.Info("Service shutdown complete")
	return nil
}
