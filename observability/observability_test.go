package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/quotelab/feedgate/provider"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
	if !cfg.Insecure {
		t.Error("expected Insecure to be true")
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("test-service")

	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %s", cfg.ServiceName)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
}

func TestNewMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}
	if metrics == nil {
		t.Fatal("expected non-nil metrics")
	}

	ctx := context.Background()
	metrics.RecordAttempt(ctx, "quotes", "alpha", provider.OutcomeSuccess, 100*time.Millisecond)
	metrics.RecordAttempt(ctx, "quotes", "alpha", provider.OutcomeFailure, 50*time.Millisecond)
	metrics.RecordAttempt(ctx, "quotes", "alpha", provider.OutcomeRateLimited, 0)
	metrics.RecordExhaustion(ctx, "quotes")
}

// collectMetrics builds real instruments behind a manual reader so
// tests can assert on the recorded data points.
func collectMetrics(t *testing.T, record func(*Metrics)) metricdata.ResourceMetrics {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}
	record(metrics)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collecting metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func counterTotal(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()

	m, ok := findMetric(rm, name)
	if !ok {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected %s to be an int64 sum, got %T", name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordsDispatchCounts(t *testing.T) {
	rm := collectMetrics(t, func(m *Metrics) {
		ctx := context.Background()
		m.RecordAttempt(ctx, "quotes", "alpha", provider.OutcomeSuccess, 20*time.Millisecond)
		m.RecordAttempt(ctx, "quotes", "beta", provider.OutcomeSuccess, 30*time.Millisecond)
		m.RecordAttempt(ctx, "quotes", "alpha", provider.OutcomeFailure, 10*time.Millisecond)
	})

	if got := counterTotal(t, rm, "feedgate.dispatch.total"); got != 3 {
		t.Errorf("expected 3 dispatch attempts, got %d", got)
	}
	if got := counterTotal(t, rm, "feedgate.dispatch.errors"); got != 1 {
		t.Errorf("expected 1 dispatch error, got %d", got)
	}

	m, ok := findMetric(rm, "feedgate.dispatch.duration")
	if !ok {
		t.Fatal("expected feedgate.dispatch.duration to be recorded")
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected histogram data, got %T", m.Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 3 {
		t.Errorf("expected 3 duration samples, got %d", count)
	}
}

func TestMetrics_RateLimitDeniedSkipsDuration(t *testing.T) {
	rm := collectMetrics(t, func(m *Metrics) {
		m.RecordAttempt(context.Background(), "quotes", "alpha", provider.OutcomeRateLimited, 0)
	})

	if got := counterTotal(t, rm, "feedgate.ratelimit.denied"); got != 1 {
		t.Errorf("expected 1 rate limit denial, got %d", got)
	}
	if got := counterTotal(t, rm, "feedgate.dispatch.total"); got != 1 {
		t.Errorf("expected denial to count as an attempt, got %d", got)
	}
	if _, ok := findMetric(rm, "feedgate.dispatch.duration"); ok {
		t.Error("denied pick should not record a duration sample")
	}
}

func TestRegisterHealthGauge(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	report := provider.HealthReport{
		Capability:    "quotes",
		OverallHealth: 75,
		Providers: []provider.ProviderHealth{
			{ID: "alpha", UptimePercent: 100},
			{ID: "beta", UptimePercent: 50},
		},
	}

	reg, err := RegisterHealthGauge(mp.Meter("test"), func() provider.HealthReport { return report })
	if err != nil {
		t.Fatalf("unexpected error registering gauge: %v", err)
	}
	defer reg.Unregister()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collecting metrics: %v", err)
	}

	m, ok := findMetric(rm, "feedgate.provider.uptime")
	if !ok {
		t.Fatal("expected feedgate.provider.uptime to be observed")
	}
	gauge, ok := m.Data.(metricdata.Gauge[float64])
	if !ok {
		t.Fatalf("expected gauge data, got %T", m.Data)
	}
	if len(gauge.DataPoints) != 2 {
		t.Fatalf("expected one data point per provider, got %d", len(gauge.DataPoints))
	}

	byProvider := make(map[string]float64, len(gauge.DataPoints))
	for _, dp := range gauge.DataPoints {
		id, _ := dp.Attributes.Value(attribute.Key("provider"))
		byProvider[id.AsString()] = dp.Value
	}
	if byProvider["alpha"] != 100 {
		t.Errorf("expected alpha uptime 100, got %f", byProvider["alpha"])
	}
	if byProvider["beta"] != 50 {
		t.Errorf("expected beta uptime 50, got %f", byProvider["beta"])
	}
}

func TestMetricsSink_RoutesAuditEvents(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}
	sink := NewMetricsSink(metrics)

	sink.Send(provider.Event{
		Name:      provider.EventAttempt,
		Timestamp: time.Now(),
		Payload: map[string]any{
			"capability": "quotes",
			"provider":   "alpha",
			"outcome":    provider.OutcomeFailure,
			"latency_ms": int64(25),
			"attempt":    1,
		},
	})
	sink.Send(provider.Event{
		Name:      provider.EventExhausted,
		Timestamp: time.Now(),
		Payload: map[string]any{
			"capability": "quotes",
			"attempts":   2,
			"error":      "boom",
		},
	})
	// Registry lifecycle events carry no dispatch data and are ignored.
	sink.Send(provider.Event{Name: provider.EventRegistered, Payload: map[string]any{"capability": "quotes"}})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collecting metrics: %v", err)
	}

	if got := counterTotal(t, rm, "feedgate.dispatch.total"); got != 1 {
		t.Errorf("expected 1 dispatch attempt, got %d", got)
	}
	if got := counterTotal(t, rm, "feedgate.dispatch.errors"); got != 2 {
		t.Errorf("expected failure plus exhaustion to count 2 errors, got %d", got)
	}
}

func TestNewServiceHealth(t *testing.T) {
	sh := NewServiceHealth("feedgate", "1.0.0")

	if sh.Service != "feedgate" {
		t.Errorf("expected Service 'feedgate', got %s", sh.Service)
	}
	if sh.Version != "1.0.0" {
		t.Errorf("expected Version '1.0.0', got %s", sh.Version)
	}
	if sh.Status != HealthStatusUp {
		t.Errorf("expected Status 'up', got %s", sh.Status)
	}
}

func TestServiceHealth_AddComponent(t *testing.T) {
	sh := NewServiceHealth("feedgate", "1.0.0")

	sh.AddComponent(Health{Name: "cache", Status: HealthStatusUp})
	if sh.Status != HealthStatusUp {
		t.Errorf("expected status 'up' after healthy component, got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "providers", Status: HealthStatusDegraded, Message: "1 of 2 providers eligible"})
	if sh.Status != HealthStatusDegraded {
		t.Errorf("expected status 'degraded', got %s", sh.Status)
	}

	sh.AddComponent(Health{Name: "events", Status: HealthStatusDown, Message: "hub stopped"})
	if sh.Status != HealthStatusDown {
		t.Errorf("expected status 'down', got %s", sh.Status)
	}

	if len(sh.Components) != 3 {
		t.Errorf("expected 3 components, got %d", len(sh.Components))
	}
}

func TestServiceHealth_DegradedDoesNotOverrideDown(t *testing.T) {
	sh := NewServiceHealth("feedgate", "1.0.0")
	sh.AddComponent(Health{Name: "a", Status: HealthStatusDown})
	sh.AddComponent(Health{Name: "b", Status: HealthStatusDegraded})

	if sh.Status != HealthStatusDown {
		t.Errorf("expected 'down' not overridden by 'degraded', got %s", sh.Status)
	}
}

func TestProviderComponent_EmptyRegistry(t *testing.T) {
	h := ProviderComponent(provider.HealthReport{Capability: "quotes"})

	if h.Status != HealthStatusDegraded {
		t.Errorf("expected degraded for empty registry, got %s", h.Status)
	}
	if h.Message != "no providers registered" {
		t.Errorf("unexpected message %q", h.Message)
	}
	if h.Name != "quotes-providers" {
		t.Errorf("unexpected component name %q", h.Name)
	}
}

func TestProviderComponent_AllEligible(t *testing.T) {
	h := ProviderComponent(provider.HealthReport{
		Capability:    "quotes",
		OverallHealth: 100,
		Providers: []provider.ProviderHealth{
			{ID: "alpha", Status: "healthy", Enabled: true, Eligible: true},
			{ID: "beta", Status: "healthy", Enabled: true, Eligible: true},
		},
	})

	if h.Status != HealthStatusUp {
		t.Errorf("expected up, got %s", h.Status)
	}
	if h.Details["alpha"] != "healthy" {
		t.Errorf("expected per-provider status in details, got %q", h.Details["alpha"])
	}
}

func TestProviderComponent_PartiallyEligible(t *testing.T) {
	h := ProviderComponent(provider.HealthReport{
		Capability: "quotes",
		Providers: []provider.ProviderHealth{
			{ID: "alpha", Status: "healthy", Enabled: true, Eligible: true},
			{ID: "beta", Status: "unhealthy", Enabled: true, Eligible: false},
		},
	})

	if h.Status != HealthStatusDegraded {
		t.Errorf("expected degraded, got %s", h.Status)
	}
	if h.Message != "1 of 2 providers eligible" {
		t.Errorf("unexpected message %q", h.Message)
	}
}

func TestProviderComponent_NoneEligible(t *testing.T) {
	h := ProviderComponent(provider.HealthReport{
		Capability: "quotes",
		Providers: []provider.ProviderHealth{
			{ID: "alpha", Status: "offline", Enabled: false, Eligible: true},
			{ID: "beta", Status: "unhealthy", Enabled: true, Eligible: false},
		},
	})

	if h.Status != HealthStatusDown {
		t.Errorf("expected down, got %s", h.Status)
	}
	if h.Message != "no eligible providers" {
		t.Errorf("unexpected message %q", h.Message)
	}
}

func TestTracer(t *testing.T) {
	tracer := Tracer("test-tracer")
	if tracer == nil {
		t.Fatal("expected non-nil tracer")
	}
}

func TestMeter(t *testing.T) {
	meter := Meter("test-meter")
	if meter == nil {
		t.Fatal("expected non-nil meter")
	}
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()
	ctx, span := StartSpan(ctx, "test-operation")
	defer span.End()

	if span == nil {
		t.Fatal("expected non-nil span")
	}
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()
	span := SpanFromContext(ctx)
	if span == nil {
		t.Fatal("expected non-nil span (noop)")
	}

	// With a real span
	ctx, s := StartSpan(ctx, "test")
	defer s.End()
	got := SpanFromContext(ctx)
	if got == nil {
		t.Fatal("expected non-nil span from context")
	}
}

func TestSetSpanAttribute(t *testing.T) {
	// Use SDK tracer so span.IsRecording() returns true
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	otel.SetTracerProvider(tp)

	ctx, span := StartSpan(context.Background(), "test-attrs")
	defer span.End()

	// Test all supported types - should not panic
	SetSpanAttribute(ctx, "string-key", "value")
	SetSpanAttribute(ctx, "int-key", 42)
	SetSpanAttribute(ctx, "int64-key", int64(100))
	SetSpanAttribute(ctx, "float-key", 3.14)
	SetSpanAttribute(ctx, "bool-key", true)
	SetSpanAttribute(ctx, "string-slice-key", []string{"a", "b"})

	// Unsupported type - should not panic, just ignored
	SetSpanAttribute(ctx, "unsupported-key", struct{}{})
}

func TestSetSpanAttributeNoSpan(t *testing.T) {
	// With background context (no recording span), should not panic
	ctx := context.Background()
	SetSpanAttribute(ctx, "key", "value")
}

func TestSetSpanError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	otel.SetTracerProvider(tp)

	ctx, span := StartSpan(context.Background(), "test-error")
	defer span.End()

	SetSpanError(ctx, fmt.Errorf("test error"))
}

func TestSetSpanErrorNoSpan(t *testing.T) {
	ctx := context.Background()
	// Should not panic with background context
	SetSpanError(ctx, fmt.Errorf("no span error"))
}

func TestHealthStatusConstants(t *testing.T) {
	if HealthStatusUp != "up" {
		t.Errorf("expected 'up', got %q", HealthStatusUp)
	}
	if HealthStatusDown != "down" {
		t.Errorf("expected 'down', got %q", HealthStatusDown)
	}
	if HealthStatusDegraded != "degraded" {
		t.Errorf("expected 'degraded', got %q", HealthStatusDegraded)
	}
}
