package provider

import (
	"time"

	"github.com/quotelab/feedgate/logger"
)

// Event names emitted by the registry and executor.
const (
	EventRegistered    = "provider.registered"
	EventDeregistered  = "provider.deregistered"
	EventEnabled       = "provider.enabled"
	EventDisabled      = "provider.disabled"
	EventConfigUpdated = "provider.config_updated"
	EventProbe         = "provider.probe"
	EventAttempt       = "dispatch.attempt"
	EventExhausted     = "dispatch.exhausted"
	EventClosed        = "registry.closed"
)

// Attempt outcomes carried in EventAttempt payloads.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeRateLimited = "rate_limited"
	OutcomeCanceled    = "canceled"
)

// Event is one structured audit record. Every registration, dispatch
// attempt, and failover exhaustion produces one.
type Event struct {
	Name      string         `json:"name"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// AuditSink receives audit events. Sinks run on the dispatch path, so
// implementations must be fast and non-blocking; drop rather than
// block.
type AuditSink interface {
	Send(event Event)
}

// NopSink discards every event.
type NopSink struct{}

// Send implements AuditSink.
func (NopSink) Send(Event) {}

// LogSink writes audit events through the structured logger. Dispatch
// attempts log at debug to keep request-rate noise out of production
// logs; registry mutations log at info and exhaustions at warn.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a logging audit sink.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

// Send implements AuditSink.
func (s *LogSink) Send(event Event) {
	fields := make(map[string]interface{}, len(event.Payload)+1)
	for k, v := range event.Payload {
		fields[k] = v
	}
	fields[logger.FieldEvent] = event.Name

	switch event.Name {
	case EventAttempt, EventProbe:
		s.log.Debug("audit event", fields)
	case EventExhausted:
		s.log.Warn("audit event", fields)
	default:
		s.log.Info("audit event", fields)
	}
}

// MultiSink fans events out to several sinks in order.
type MultiSink []AuditSink

// Send implements AuditSink.
func (m MultiSink) Send(event Event) {
	for _, s := range m {
		s.Send(event)
	}
}

// Multi combines sinks into one. Nil sinks are skipped.
func Multi(sinks ...AuditSink) AuditSink {
	out := make(MultiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
