package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Connection/Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeRateLimited indicates the request was denied by a rate limit.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Dispatch/failover errors
const (
	// ErrCodeInvalidProvider indicates a provider registration was rejected.
	ErrCodeInvalidProvider ErrorCode = "INVALID_PROVIDER"
	// ErrCodeProviderFailed indicates a provider operation failed.
	ErrCodeProviderFailed ErrorCode = "PROVIDER_OPERATION_FAILED"
	// ErrCodeNoProviders indicates no provider passed eligibility filtering.
	ErrCodeNoProviders ErrorCode = "NO_AVAILABLE_PROVIDERS"
	// ErrCodeAllProvidersFailed indicates every dispatch attempt failed.
	ErrCodeAllProvidersFailed ErrorCode = "ALL_PROVIDERS_FAILED"
	// ErrCodeValidationFailed indicates a provider returned structurally invalid data.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrCodeCanceled indicates the caller canceled the request.
	ErrCodeCanceled ErrorCode = "CANCELED"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeConflict indicates a conflict with the current state of the resource.
	ErrCodeConflict ErrorCode = "CONFLICT"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Authentication/Authorization errors
const (
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeForbidden indicates the request is forbidden.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"
	// ErrCodeInvalidToken indicates the authentication token is invalid.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeRateLimited:        true,
	ErrCodeProviderFailed:     true,
	ErrCodeNoProviders:        true,
	ErrCodeAllProvidersFailed: true,
	ErrCodeValidationFailed:   true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
