package observability

import (
	"context"
	"time"

	"github.com/quotelab/feedgate/provider"
)

// MetricsSink bridges registry audit events into the dispatch
// instruments. Wire it into provider.Options.Audit, usually combined
// with other sinks via provider.Multi.
type MetricsSink struct {
	metrics *Metrics
}

// NewMetricsSink creates an audit sink backed by the given instruments.
func NewMetricsSink(metrics *Metrics) *MetricsSink {
	return &MetricsSink{metrics: metrics}
}

// Send implements provider.AuditSink.
func (s *MetricsSink) Send(event provider.Event) {
	capability, _ := event.Payload["capability"].(string)

	switch event.Name {
	case provider.EventAttempt:
		providerID, _ := event.Payload["provider"].(string)
		outcome, _ := event.Payload["outcome"].(string)
		latency := time.Duration(0)
		if ms, ok := event.Payload["latency_ms"].(int64); ok {
			latency = time.Duration(ms) * time.Millisecond
		}
		s.metrics.RecordAttempt(context.Background(), capability, providerID, outcome, latency)
	case provider.EventExhausted:
		s.metrics.RecordExhaustion(context.Background(), capability)
	}
}
