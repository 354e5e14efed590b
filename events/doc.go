// Package events streams registry audit events to SSE subscribers.
//
// A Hub fans events out to connected clients, each subscribed with an
// event-name glob ("dispatch.*", "provider.probe", "*"). SinkBridge
// implements provider.AuditSink, so the registry's audit trail feeds
// the stream directly:
//
//	comp := events.NewComponent("/v1/events")
//	comp.Start(ctx)
//
//	opts := provider.DefaultOptions(marketdata.Capability)
//	opts.Audit = events.NewSinkBridge(comp.Hub(), time.Second)
//
// Slow subscribers lose events rather than blocking the hub, and the
// bridge throttles each event name to one send per interval.
package events
