package llm

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType categorizes provider failures into a provider-neutral taxonomy.
type ErrorType string

const (
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeServerError    ErrorType = "server_error"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeMalformed      ErrorType = "malformed_response"
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// ErrRetryExhausted is wrapped around the last attempt's error when a
// retry policy runs out of attempts.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// Error is the provider-neutral error surfaced by all adapters. The
// original provider error remains reachable through Unwrap.
type Error struct {
	Type        ErrorType
	Message     string
	Retryable   bool
	RetryAfter  time.Duration // non-zero when the provider supplied a pacing hint
	StatusCode  int
	ProviderErr error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.ProviderErr
}

// NewRateLimitError creates a retryable rate limit error with an optional
// provider-supplied retry-after hint.
func NewRateLimitError(msg string, retryAfter time.Duration, cause error) *Error {
	return &Error{
		Type:        ErrorTypeRateLimit,
		Message:     msg,
		Retryable:   true,
		RetryAfter:  retryAfter,
		StatusCode:  429,
		ProviderErr: cause,
	}
}

// NewAuthenticationError creates a non-retryable authentication error.
func NewAuthenticationError(msg string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeAuthentication,
		Message:     msg,
		Retryable:   false,
		StatusCode:  401,
		ProviderErr: cause,
	}
}

// NewInvalidRequestError creates a non-retryable invalid request error.
func NewInvalidRequestError(msg string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeInvalidRequest,
		Message:     msg,
		Retryable:   false,
		StatusCode:  400,
		ProviderErr: cause,
	}
}

// NewServerError creates a retryable server-side error.
func NewServerError(msg string, statusCode int, cause error) *Error {
	return &Error{
		Type:        ErrorTypeServerError,
		Message:     msg,
		Retryable:   true,
		StatusCode:  statusCode,
		ProviderErr: cause,
	}
}

// NewTimeoutError creates a retryable timeout error.
func NewTimeoutError(msg string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeTimeout,
		Message:     msg,
		Retryable:   true,
		ProviderErr: cause,
	}
}

// NewMalformedResponseError creates a non-retryable error for responses
// that could not be decoded into the canonical model.
func NewMalformedResponseError(msg string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeMalformed,
		Message:     msg,
		Retryable:   false,
		ProviderErr: cause,
	}
}

// NewNetworkError creates a retryable network transport error.
func NewNetworkError(msg string, cause error) *Error {
	return &Error{
		Type:        ErrorTypeNetwork,
		Message:     msg,
		Retryable:   true,
		ProviderErr: cause,
	}
}

// IsRateLimitError reports whether err is a rate limit error.
func IsRateLimitError(err error) bool {
	var llmErr *Error
	return errors.As(err, &llmErr) && llmErr.Type == ErrorTypeRateLimit
}

// IsRetryableError reports whether err is worth retrying.
func IsRetryableError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// ExtractRetryAfter returns the provider-supplied retry-after hint from
// err, or zero when none was supplied.
func ExtractRetryAfter(err error) time.Duration {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.RetryAfter
	}
	return 0
}
