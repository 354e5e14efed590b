package events

// Broadcaster is an interface for broadcasting events to subscribers.
// This allows the audit bridge to depend on an abstraction rather than
// a concrete Hub.
type Broadcaster interface {
	// Broadcast sends data to all clients whose subscription pattern
	// matches the event name.
	Broadcast(name string, data []byte)
}
