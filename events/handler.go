package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quotelab/feedgate/logger"
)

// SSE event types used by the stream itself. Audit event names come
// from the provider package.
const (
	// EventTypeConnected is sent when a client successfully connects.
	EventTypeConnected = "connected"

	// EventTypeKeepAlive is used for keep-alive comments.
	EventTypeKeepAlive = "keepalive"
)

// ConnectedEvent is sent when a client successfully connects.
type ConnectedEvent struct {
	ClientID string `json:"client_id"`
	Pattern  string `json:"pattern"`
}

// ServeSSE handles an SSE connection for a subscriber. pattern is an
// event-name glob ("dispatch.*", "provider.probe", "*"); a malformed
// pattern connects but matches nothing. This is the main entry point
// called from HTTP handlers.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, clientID, pattern string) {
	// Check SSE support (requires http.Flusher interface)
	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("[SSE] Streaming not supported", map[string]interface{}{
			"client_id": clientID,
		})
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Disable write deadline for SSE connections using ResponseController.
	// SSE connections are long-lived and must not be terminated by the
	// server's WriteTimeout setting.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Warn("[SSE] Could not disable write deadline", map[string]interface{}{
			"client_id": clientID,
			"error":     err.Error(),
		})
		// Continue anyway - the connection might still work with keep-alives
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Create and register the subscriber
	client := NewClient(clientID, pattern)
	hub.Register(client)
	defer func() {
		hub.Unregister(client)
	}()

	// Send initial connection event
	connectedEvent := ConnectedEvent{
		ClientID: clientID,
		Pattern:  client.Pattern(),
	}
	connectedData, _ := json.Marshal(connectedEvent)
	_, _ = fmt.Fprintf(w, "event: %s\n", EventTypeConnected)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", connectedData)
	flusher.Flush()

	logger.Debug("[SSE] Client connected", map[string]interface{}{
		"client_id":   clientID,
		"pattern":     client.Pattern(),
		"remote_addr": r.RemoteAddr,
	})

	// Event loop - stream events to client
	// Keep-alive interval should be less than proxy timeouts (typically 60s).
	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			// Client disconnected (browser closed, network issue, etc.)
			logger.Debug("[SSE] Client disconnected", map[string]interface{}{
				"client_id": clientID,
				"reason":    ctx.Err().Error(),
			})
			return

		case event, ok := <-client.Events():
			if !ok {
				// Channel closed, client unregistered
				logger.Debug("[SSE] Events channel closed", map[string]interface{}{
					"client_id": clientID,
				})
				return
			}
			// Send event in SSE format: data: {...}\n\n
			_, _ = fmt.Fprintf(w, "data: %s\n\n", event)
			flusher.Flush()

		case <-keepAlive.C:
			// Send keep-alive comment (SSE spec: lines starting with : are comments)
			// This keeps the connection alive through proxies and load balancers
			_, _ = fmt.Fprintf(w, ": %s %d\n\n", EventTypeKeepAlive, time.Now().Unix())
			flusher.Flush()
		}
	}
}
