package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for common backend failures.
var (
	// Context/Token errors
	ErrContextLengthExceeded = errors.New("context length exceeded")

	// Safety/Content errors
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// Rate limiting errors
	ErrRateLimit = errors.New("rate limit exceeded")

	// Authentication errors
	ErrAuthentication = errors.New("authentication failed")

	// Network errors
	ErrNetwork            = errors.New("network error")
	ErrServiceUnavailable = errors.New("service unavailable")

	// Request errors
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidResponse = errors.New("invalid response")
)

// ErrorCode represents a provider error code.
type ErrorCode string

const (
	ErrorCodeContextLength   ErrorCode = "context_length_exceeded"
	ErrorCodeContentBlocked  ErrorCode = "content_blocked"
	ErrorCodeRateLimit       ErrorCode = "rate_limit"
	ErrorCodeAuth            ErrorCode = "authentication_failed"
	ErrorCodeNetwork         ErrorCode = "network_error"
	ErrorCodeUnavailable     ErrorCode = "service_unavailable"
	ErrorCodeInvalidRequest  ErrorCode = "invalid_request"
	ErrorCodeInvalidResponse ErrorCode = "invalid_response"
)

var codeSentinels = map[ErrorCode]error{
	ErrorCodeContextLength:   ErrContextLengthExceeded,
	ErrorCodeContentBlocked:  ErrContentBlocked,
	ErrorCodeRateLimit:       ErrRateLimit,
	ErrorCodeAuth:            ErrAuthentication,
	ErrorCodeNetwork:         ErrNetwork,
	ErrorCodeUnavailable:     ErrServiceUnavailable,
	ErrorCodeInvalidRequest:  ErrInvalidRequest,
	ErrorCodeInvalidResponse: ErrInvalidResponse,
}

// ProviderError wraps backend errors with enough context to diagnose them.
// Backend errors are never retried by the orchestrator; Retryable only
// tells the caller whether trying again later could help.
type ProviderError struct {
	Code       ErrorCode
	Message    string
	StatusCode int // HTTP status, 0 when not applicable
	Underlying error
	Retryable  bool
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Underlying != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Underlying)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// Is lets errors.Is match a ProviderError against the sentinel for its code.
func (e *ProviderError) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && sentinel == target
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.StatusCode
	}
	return 0
}
