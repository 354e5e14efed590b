package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quotelab/feedgate/logger"
	"github.com/quotelab/feedgate/provider"
)

// StreamEvent is the wire form of an audit event on the SSE stream.
type StreamEvent struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// SinkBridge forwards registry audit events onto an SSE broadcaster.
// A minimum interval per event name caps how often high-frequency
// events (dispatch attempts, probes) reach subscribers; events inside
// the window are dropped, not queued.
type SinkBridge struct {
	broadcaster Broadcaster
	minInterval time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewSinkBridge creates a bridge onto b. minInterval of zero disables
// throttling.
func NewSinkBridge(b Broadcaster, minInterval time.Duration) *SinkBridge {
	return &SinkBridge{
		broadcaster: b,
		minInterval: minInterval,
		lastSent:    make(map[string]time.Time),
	}
}

// Send implements provider.AuditSink.
func (s *SinkBridge) Send(event provider.Event) {
	if s.throttled(event.Name) {
		return
	}

	stream := StreamEvent{
		ID:        uuid.NewString(),
		Name:      event.Name,
		Timestamp: event.Timestamp,
		Payload:   event.Payload,
	}
	data, err := json.Marshal(stream)
	if err != nil {
		logger.Warn("[SSE] Dropping unencodable audit event", map[string]interface{}{
			"event": event.Name,
			"error": err.Error(),
		})
		return
	}

	s.broadcaster.Broadcast(event.Name, data)
}

// throttled reports whether an event with this name was already sent
// inside the minimum interval, recording the send time otherwise.
func (s *SinkBridge) throttled(name string) bool {
	if s.minInterval <= 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if last, ok := s.lastSent[name]; ok && now.Sub(last) < s.minInterval {
		return true
	}
	s.lastSent[name] = now
	return false
}

// Ensure SinkBridge implements provider.AuditSink.
var _ provider.AuditSink = (*SinkBridge)(nil)
