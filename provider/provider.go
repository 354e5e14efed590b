package provider

import "context"

// HealthChecker is optionally implemented by providers that can answer
// a liveness probe. Probes run on registration and periodically for
// registrations with health checks enabled; a false answer or a probe
// timeout is recorded as a failure, which keeps idle providers'
// statistics fresh without traffic.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Closeable is optionally implemented by providers that hold resources
// requiring explicit cleanup (connections, subprocesses). The registry
// calls Close on every closeable provider during disposal.
type Closeable interface {
	Close(ctx context.Context) error
}
