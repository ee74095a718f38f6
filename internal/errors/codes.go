// Package errors defines the typed error taxonomy for chat operations.
package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for chat operations.
type ErrorCode string

const (
	// ErrCodeUnauthorized indicates authentication failure.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeNotFound indicates the referenced record does not exist or does
	// not belong to the caller. The two cases are deliberately
	// indistinguishable so that existence of other users' data never leaks.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeUpstreamUnavailable indicates the model provider kept failing
	// after retries were exhausted.
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	// ErrCodeUpstreamRejected indicates a non-retryable model provider error
	// (bad credentials, malformed request).
	ErrCodeUpstreamRejected ErrorCode = "UPSTREAM_REJECTED"
	// ErrCodeStorageError indicates an underlying persistence failure.
	ErrCodeStorageError ErrorCode = "STORAGE_ERROR"
)

// ChatError represents a structured error for chat operations.
type ChatError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ChatError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *ChatError) WithContext(key string, value interface{}) *ChatError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Convenience constructors for common error types.

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *ChatError {
	return &ChatError{Code: ErrCodeUnauthorized, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *ChatError {
	return &ChatError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// InvalidArgument creates an invalid argument error. The field name goes
// into context so callers can surface the offending field.
func InvalidArgument(field, msg string) *ChatError {
	e := &ChatError{Code: ErrCodeInvalidArgument, Message: msg}
	if field != "" {
		e.WithContext("field", field)
	}
	return e
}

// NotFound creates a not-found error.
func NotFound(msg string) *ChatError {
	return &ChatError{Code: ErrCodeNotFound, Message: msg}
}

// UpstreamUnavailable creates an upstream unavailable error.
func UpstreamUnavailable(msg string, cause error) *ChatError {
	return &ChatError{Code: ErrCodeUpstreamUnavailable, Message: msg, Cause: cause}
}

// UpstreamRejected creates an upstream rejected error.
func UpstreamRejected(msg string, cause error) *ChatError {
	return &ChatError{Code: ErrCodeUpstreamRejected, Message: msg, Cause: cause}
}

// StorageError wraps a persistence failure. Raw details stay server-side.
func StorageError(msg string, cause error) *ChatError {
	return &ChatError{Code: ErrCodeStorageError, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if chatErr, ok := err.(*ChatError); ok {
		return chatErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a ChatError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if chatErr, ok := err.(*ChatError); ok {
		return chatErr.Code
	}
	return defaultCode
}
