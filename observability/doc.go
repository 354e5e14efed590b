// Package observability provides OpenTelemetry tracing and metrics for
// the dispatch pipeline, plus health aggregation for the HTTP surface.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("feedgate"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanDispatch)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("feedgate"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("feedgate"))
//
// Dispatch attempts reach the instruments through an audit sink:
//
//	opts := provider.DefaultOptions(marketdata.Capability)
//	opts.Audit = observability.NewMetricsSink(metrics)
//
// Health checks:
//
//	health := observability.NewServiceHealth("feedgate", version.Version)
//	health.AddComponent(observability.ProviderComponent(registry.HealthReport()))
package observability
