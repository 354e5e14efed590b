// Package server provides the HTTP surface of the service: a Gin engine
// mounted on an http.ServeMux with HTTP/2 cleartext (h2c) support.
//
// The server follows the component pattern with lifecycle management,
// operational endpoints, and a configurable middleware stack.
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: X-Request-Id generation and propagation
//   - CORS: cross-origin resource sharing configuration
//   - BodySizeLimit: request body size limits
//   - RequestLogger: request logging with status-tiered levels
//   - Auth: bearer-token authentication for the admin routes
//   - RateLimit: per-client sliding-window limiting for the quotes route
//
// # Endpoints
//
// Operational endpoints (server/endpoint):
//
//   - /health: component health plus the per-provider report
//   - /health/live, /health/ready: Kubernetes probes
//   - /info: service and build version information
//   - /metrics: runtime snapshot
//
// API endpoints under /v1: quotes dispatch, provider stats and admin
// operations, cache invalidation, and the SSE audit stream.
//
// # Usage
//
//	cfg := server.Config{Port: 8080}
//	cfg.ApplyDefaults()
//
//	srv := server.New(cfg)
//	srv.RegisterDefaultEndpoints("feedgate", checker, registry.HealthReport)
//	srv.RegisterAPI(server.API{Quotes: svc, Providers: registry, Cache: svc, Events: hub})
//	srv.ApplyMiddleware()
//
//	if err := srv.Start(ctx); err != nil {
//		return err
//	}
//	defer srv.Stop(ctx)
package server
