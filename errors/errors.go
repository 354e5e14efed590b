package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// StatusClientClosedRequest is the nginx-convention status reported when the
// caller abandons a request before it completes.
const StatusClientClosedRequest = 499

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// Wrap converts any error into an AppError. A nil error stays nil, an
// AppError anywhere in the chain is returned as-is, anything else becomes an
// internal error with the original as cause.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// --- Dispatch Error Constructors ---

// InvalidProvider creates a new AppError for a rejected provider registration.
func InvalidProvider(id, reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidProvider, Message: fmt.Sprintf("Provider registration rejected: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"provider": id},
	}
}

// RateLimited creates a new AppError for a request denied by a rate limit.
// resetAt tells the caller when the window slides open again.
func RateLimited(key string, resetAt time.Time) *AppError {
	return &AppError{
		Code: ErrCodeRateLimited, Message: "Too many requests. Please wait a moment and try again.",
		HTTPStatus: http.StatusTooManyRequests, Retryable: true,
		Details: map[string]any{"key": key, "reset_at": resetAt.UTC().Format(time.RFC3339)},
	}
}

// ProviderFailed creates a new AppError wrapping a provider operation error.
func ProviderFailed(id string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeProviderFailed, Message: fmt.Sprintf("Provider %s failed to complete the operation.", id),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"provider": id}, Cause: cause,
	}
}

// NoProviders creates a new AppError for an empty dispatch candidate set.
func NoProviders(capability string) *AppError {
	return &AppError{
		Code: ErrCodeNoProviders, Message: fmt.Sprintf("No available providers for %s.", capability),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"capability": capability},
	}
}

// AllProvidersFailed creates a new AppError raised when every attempt of a
// dispatch failed; cause carries the last provider error.
func AllProvidersFailed(capability string, attempts int, cause error) *AppError {
	return &AppError{
		Code: ErrCodeAllProvidersFailed, Message: fmt.Sprintf("All providers failed for %s after %d attempts.", capability, attempts),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"capability": capability, "attempts": attempts}, Cause: cause,
	}
}

// ValidationFailed creates a new AppError for structurally invalid provider data.
func ValidationFailed(id, reason string) *AppError {
	return &AppError{
		Code: ErrCodeValidationFailed, Message: fmt.Sprintf("Provider %s returned invalid data: %s", id, reason),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"provider": id},
	}
}

// Canceled creates a new AppError for a caller-canceled request.
func Canceled(operation string) *AppError {
	return &AppError{
		Code: ErrCodeCanceled, Message: "The request was canceled.",
		HTTPStatus: StatusClientClosedRequest, Retryable: false,
		Details: map[string]any{"operation": operation},
	}
}

// --- Common Error Constructors ---

// ServiceUnavailable creates a new AppError for a service that is temporarily unavailable.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// Timeout creates a new AppError for a request that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// Conflict creates a new AppError for a conflict with the current state of the resource.
func Conflict(reason string) *AppError {
	return &AppError{
		Code: ErrCodeConflict, Message: reason,
		HTTPStatus: http.StatusConflict, Retryable: false,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// Unauthorized creates a new AppError for unauthorized access.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// Forbidden creates a new AppError for forbidden access.
func Forbidden(reason string) *AppError {
	if reason == "" {
		reason = "You don't have permission to perform this action."
	}
	return &AppError{
		Code: ErrCodeForbidden, Message: reason,
		HTTPStatus: http.StatusForbidden, Retryable: false,
	}
}

// InvalidToken creates a new AppError for an invalid authentication token.
func InvalidToken() *AppError {
	return &AppError{
		Code: ErrCodeInvalidToken, Message: "Invalid authentication token.",
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
