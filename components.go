package feedgate

import (
	"context"
	"fmt"
	"sync"

	"github.com/quotelab/feedgate/cache"
	"github.com/quotelab/feedgate/component"
	"github.com/quotelab/feedgate/marketdata"
	"github.com/quotelab/feedgate/observability"
	"github.com/quotelab/feedgate/provider"
	"github.com/quotelab/feedgate/version"
)

// instrumentationName scopes the OpenTelemetry instruments created by
// the assembly.
const instrumentationName = "github.com/quotelab/feedgate"

// registryComponent runs the provider registry's background loops under
// the component lifecycle and reports pool health from the eligibility
// picture.
type registryComponent struct {
	registry *provider.Registry[marketdata.Provider]
}

var (
	_ component.Component   = (*registryComponent)(nil)
	_ component.Describable = (*registryComponent)(nil)
)

func (c *registryComponent) Name() string { return "registry" }

// Start launches the health probe and rate limit cleanup loops.
func (c *registryComponent) Start(_ context.Context) error {
	c.registry.Start()
	return nil
}

// Stop halts the loops and closes every provider that supports it.
func (c *registryComponent) Stop(ctx context.Context) error {
	return c.registry.Close(ctx)
}

// Health grades the pool: healthy while at least one provider is
// dispatchable, degraded otherwise. An empty or ineligible pool is
// degraded rather than unhealthy because stale cache can still answer.
func (c *registryComponent) Health(_ context.Context) component.Health {
	report := c.registry.HealthReport()

	if len(report.Providers) == 0 {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusDegraded,
			Message: "no providers registered",
		}
	}

	eligible := 0
	for _, p := range report.Providers {
		if p.Enabled && p.Eligible {
			eligible++
		}
	}
	if eligible == 0 {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusDegraded,
			Message: "no providers eligible for dispatch",
		}
	}

	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d/%d providers eligible", eligible, len(report.Providers)),
	}
}

// Describe returns infrastructure summary info for the startup display.
func (c *registryComponent) Describe() component.Description {
	return component.Description{
		Name:    "Provider Registry",
		Type:    "registry",
		Details: fmt.Sprintf("capability %s, %d providers", c.registry.Capability(), c.registry.Len()),
	}
}

// cacheComponent manages the Redis-backed quote store's connection.
// The in-memory store needs no lifecycle, so this only exists when
// Redis is configured.
type cacheComponent struct {
	store *cache.Redis[marketdata.QuoteSet]
	addr  string
}

var (
	_ component.Component   = (*cacheComponent)(nil)
	_ component.Describable = (*cacheComponent)(nil)
)

func newCacheComponent(store *cache.Redis[marketdata.QuoteSet], addr string) *cacheComponent {
	return &cacheComponent{store: store, addr: addr}
}

func (c *cacheComponent) Name() string { return "cache" }

// Start verifies the connection so a bad address fails the boot instead
// of the first request.
func (c *cacheComponent) Start(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.addr, err)
	}
	return nil
}

func (c *cacheComponent) Stop(_ context.Context) error {
	return c.store.Close()
}

func (c *cacheComponent) Health(ctx context.Context) component.Health {
	if err := c.store.Ping(ctx); err != nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: err.Error(),
		}
	}
	return component.Health{
		Name:   c.Name(),
		Status: component.StatusHealthy,
	}
}

// Describe returns infrastructure summary info for the startup display.
func (c *cacheComponent) Describe() component.Description {
	return component.Description{
		Name:    "Quote Cache",
		Type:    "redis",
		Details: c.addr,
	}
}

// telemetryComponent owns the OpenTelemetry pipeline: trace and metric
// exporters plus the provider uptime gauge. Teardown funcs accumulate
// as pieces come up so a partial start can unwind cleanly.
type telemetryComponent struct {
	serviceName    string
	serviceVersion string
	environment    string
	cfg            ObservabilityConfig
	report         func() provider.HealthReport

	mu        sync.Mutex
	started   bool
	teardowns []func(context.Context) error
}

var (
	_ component.Component   = (*telemetryComponent)(nil)
	_ component.Describable = (*telemetryComponent)(nil)
)

func newTelemetryComponent(cfg *Config, report func() provider.HealthReport) *telemetryComponent {
	ver := cfg.Version
	if ver == "" {
		ver = version.Short()
	}
	return &telemetryComponent{
		serviceName:    cfg.Name,
		serviceVersion: ver,
		environment:    cfg.Environment,
		cfg:            cfg.Observability,
		report:         report,
	}
}

func (c *telemetryComponent) Name() string { return "telemetry" }

// Start initializes the tracer and meter providers against the OTLP
// collector and registers the provider uptime gauge.
func (c *telemetryComponent) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	tracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    c.serviceName,
		ServiceVersion: c.serviceVersion,
		Environment:    c.environment,
		Endpoint:       c.cfg.Endpoint,
		Insecure:       c.cfg.Insecure,
		SampleRate:     c.cfg.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	c.teardowns = append(c.teardowns, tracer.Shutdown)

	meter, err := observability.InitMeter(ctx, observability.MeterConfig{
		ServiceName:    c.serviceName,
		ServiceVersion: c.serviceVersion,
		Environment:    c.environment,
		Endpoint:       c.cfg.Endpoint,
		Insecure:       c.cfg.Insecure,
		Interval:       duration(c.cfg.MetricsInterval),
	})
	if err != nil {
		c.unwindLocked(ctx)
		return fmt.Errorf("initializing meter: %w", err)
	}
	c.teardowns = append(c.teardowns, meter.Shutdown)

	gauge, err := observability.RegisterHealthGauge(observability.Meter(instrumentationName), c.report)
	if err != nil {
		c.unwindLocked(ctx)
		return fmt.Errorf("registering uptime gauge: %w", err)
	}
	c.teardowns = append(c.teardowns, func(context.Context) error {
		return gauge.Unregister()
	})

	c.started = true
	return nil
}

// Stop flushes and shuts the exporters down, newest first.
func (c *telemetryComponent) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.started = false
	return c.unwindLocked(ctx)
}

// unwindLocked runs accumulated teardowns in reverse. Callers hold c.mu.
func (c *telemetryComponent) unwindLocked(ctx context.Context) error {
	var firstErr error
	for i := len(c.teardowns) - 1; i >= 0; i-- {
		if err := c.teardowns[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.teardowns = nil
	return firstErr
}

func (c *telemetryComponent) Health(_ context.Context) component.Health {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: "exporters not started",
		}
	}
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("exporting to %s", c.cfg.Endpoint),
	}
}

// Describe returns infrastructure summary info for the startup display.
func (c *telemetryComponent) Describe() component.Description {
	return component.Description{
		Name:    "Telemetry",
		Type:    "otel",
		Details: c.cfg.Endpoint,
	}
}
