package events

import (
	"path/filepath"
	"sync"

	"github.com/quotelab/feedgate/logger"
)

// Client represents a connected SSE subscriber.
type Client struct {
	id      string      // Unique client ID
	pattern string      // Event-name glob this client subscribed to
	events  chan []byte // Channel for sending events to client
}

// NewClient creates a subscriber for event names matching pattern.
// An empty pattern subscribes to every event.
func NewClient(id, pattern string) *Client {
	if pattern == "" {
		pattern = "*"
	}
	return &Client{
		id:      id,
		pattern: pattern,
		events:  make(chan []byte, 256), // Buffered channel
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() string {
	return c.id
}

// Pattern returns the event-name glob this client subscribed to.
func (c *Client) Pattern() string {
	return c.pattern
}

// Events returns the channel for receiving events.
func (c *Client) Events() <-chan []byte {
	return c.events
}

// Send sends data to the client's event channel.
// Returns false if the channel is full (client is slow).
func (c *Client) Send(data []byte) bool {
	select {
	case c.events <- data:
		return true
	default:
		// Channel full, client is too slow
		logger.Warn("[SSE] Client channel full, dropping message", map[string]interface{}{
			"client_id": c.id,
		})
		return false
	}
}

// Close closes the client's event channel.
func (c *Client) Close() {
	close(c.events)
}

// Hub fans audit events out to SSE subscribers. Each subscriber holds
// an event-name glob; a broadcast reaches every client whose pattern
// matches the event's name.
type Hub struct {
	clients    map[string]*Client // client ID -> Client
	register   chan *Client       // Channel for registering clients
	unregister chan *Client       // Channel for unregistering clients
	broadcast  chan *Message      // Channel for broadcasting messages
	done       chan struct{}      // Signals the hub to stop
	stopped    bool               // Whether the hub has been stopped
	mu         sync.RWMutex       // Protects clients map for reads during matching
}

// Message represents an event to broadcast.
type Message struct {
	Name string // Event name, matched against client subscription globs
	Data []byte // Encoded event to send
}

// NewHub creates a new event hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop.
// It blocks until Stop is called. This should be run in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			logger.Debug("[SSE_HUB] Client registered", map[string]interface{}{
				"client_id":     client.id,
				"pattern":       client.pattern,
				"total_clients": total,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			logger.Debug("[SSE_HUB] Client unregistered", map[string]interface{}{
				"client_id":     client.id,
				"total_clients": total,
			})

		case msg := <-h.broadcast:
			h.broadcastToSubscribers(msg.Name, msg.Data)
		}
	}
}

// Stop signals the hub to shut down. It closes all client connections
// and causes Run to return. Safe to call multiple times.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
}

// Stopped reports whether Stop has been called.
func (h *Hub) Stopped() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stopped
}

// closeAllClients disconnects all clients during shutdown.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.Close()
		delete(h.clients, id)
	}
	logger.Debug("[SSE_HUB] All clients closed during shutdown")
}

// Register adds a client to the hub. No-op after Stop.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub. No-op after Stop, where
// closeAllClients already released every client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sends data to every client whose subscription matches name.
// It never blocks: when the hub is stopped or the broadcast buffer is
// full the event is dropped.
func (h *Hub) Broadcast(name string, data []byte) {
	msg := &Message{Name: name, Data: data}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		logger.Warn("[SSE_HUB] Broadcast buffer full, dropping event", map[string]interface{}{
			"event": name,
		})
	}
}

// broadcastToSubscribers sends data to matching clients.
// This is called from the hub's main goroutine.
func (h *Hub) broadcastToSubscribers(name string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	matchCount := 0
	for _, client := range h.clients {
		matched, err := filepath.Match(client.pattern, name)
		if err != nil {
			logger.Error("[SSE_HUB] Pattern match error", map[string]interface{}{
				"pattern": client.pattern,
				"error":   err.Error(),
			})
			continue
		}
		if matched {
			if client.Send(data) {
				matchCount++
			}
		}
	}

	logger.Debug("[SSE_HUB] Broadcast processed", map[string]interface{}{
		"event":         name,
		"match_count":   matchCount,
		"total_clients": len(h.clients),
		"data_size":     len(data),
	})
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetClientIDs returns a list of all connected client IDs.
func (h *Hub) GetClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// GetClient returns a client by ID, or nil if not found.
func (h *Hub) GetClient(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

// Ensure Hub implements Broadcaster.
var _ Broadcaster = (*Hub)(nil)
