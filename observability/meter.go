package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/quotelab/feedgate/logger"
	"github.com/quotelab/feedgate/provider"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the dispatch instruments.
type Metrics struct {
	dispatchTotal    metric.Int64Counter
	dispatchErrors   metric.Int64Counter
	dispatchDuration metric.Float64Histogram
	rateLimitDenied  metric.Int64Counter
}

// NewMetrics creates the dispatch instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	dispatchTotal, err := meter.Int64Counter("feedgate.dispatch.total",
		metric.WithDescription("Dispatch attempts by capability, provider and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating feedgate.dispatch.total counter: %w", err)
	}

	dispatchErrors, err := meter.Int64Counter("feedgate.dispatch.errors",
		metric.WithDescription("Failed dispatch attempts and exhaustions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating feedgate.dispatch.errors counter: %w", err)
	}

	dispatchDuration, err := meter.Float64Histogram("feedgate.dispatch.duration",
		metric.WithDescription("Duration of dispatch attempts in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating feedgate.dispatch.duration histogram: %w", err)
	}

	rateLimitDenied, err := meter.Int64Counter("feedgate.ratelimit.denied",
		metric.WithDescription("Dispatch picks denied by a provider rate limit"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating feedgate.ratelimit.denied counter: %w", err)
	}

	return &Metrics{
		dispatchTotal:    dispatchTotal,
		dispatchErrors:   dispatchErrors,
		dispatchDuration: dispatchDuration,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

// RecordAttempt records one dispatch attempt.
func (m *Metrics) RecordAttempt(ctx context.Context, capability, providerID, outcome string, latency time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("capability", capability),
		attribute.String("provider", providerID),
		attribute.String("outcome", outcome),
	)
	m.dispatchTotal.Add(ctx, 1, attrs)

	switch outcome {
	case provider.OutcomeFailure:
		m.dispatchErrors.Add(ctx, 1, attrs)
	case provider.OutcomeRateLimited:
		m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(
			attribute.String("capability", capability),
			attribute.String("provider", providerID),
		))
		// A denied pick never ran, so there is no duration to record.
		return
	}

	m.dispatchDuration.Record(ctx, latency.Seconds(), metric.WithAttributes(
		attribute.String("capability", capability),
		attribute.String("provider", providerID),
	))
}

// RecordExhaustion records a dispatch that ran out of providers.
func (m *Metrics) RecordExhaustion(ctx context.Context, capability string) {
	m.dispatchErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("capability", capability),
		attribute.String("outcome", "exhausted"),
	))
}

// RegisterHealthGauge registers an observable gauge reporting every
// provider's uptime percentage, read from source at collection time.
func RegisterHealthGauge(meter metric.Meter, source func() provider.HealthReport) (metric.Registration, error) {
	gauge, err := meter.Float64ObservableGauge("feedgate.provider.uptime",
		metric.WithDescription("Rolling uptime percentage per provider"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating feedgate.provider.uptime gauge: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		report := source()
		for _, p := range report.Providers {
			o.ObserveFloat64(gauge, p.UptimePercent, metric.WithAttributes(
				attribute.String("capability", report.Capability),
				attribute.String("provider", p.ID),
			))
		}
		return nil
	}, gauge)
}
