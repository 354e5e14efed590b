// Package component defines the lifecycle interface shared by the
// stack's long-running pieces: the provider registry, the cache store,
// the event hub, and the HTTP server.
//
// Components are registered with a Registry, which starts them in
// registration order and stops them in reverse. A failed start rolls
// back the components already started.
package component
