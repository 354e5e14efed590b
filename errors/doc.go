// Package errors provides unified error handling for the feedgate gateway.
// It implements structured error types with error codes, HTTP status mapping,
// and retryable detection following RFC 7807 and Google AIP-193, extended
// with the dispatch taxonomy used by the provider registry (provider faults,
// rate-limit denials, candidate exhaustion, upstream data validation).
package errors
