package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain const errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidPayload = errors.New("cannot parse this object")
	ErrUnsupported    = errors.New("channel is not supported")
	ErrNoToken        = errors.New("credential cache is empty")
	ErrNoWorker       = errors.New("no worker registered for channel")
)

// ValidationError describes a rejected ingestion field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// ProviderError is a non-2xx response from an outbound provider.
type ProviderError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
}

// NewProviderError builds a ProviderError with retryability derived
// from the status code: 5xx and 429 are transient, other 4xx are
// permanent. 401 never reaches here for push; the sender refreshes the
// token and retries inside the call, and an escaped 401 stays
// retryable.
func NewProviderError(statusCode int, message string) ProviderError {
	retryable := statusCode >= 500 ||
		statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusUnauthorized
	return ProviderError{
		StatusCode: statusCode,
		Message:    message,
		Retryable:  retryable,
	}
}

// TransportError is a request that never produced a provider response.
// Always retryable.
type TransportError struct {
	Err error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("cannot send request: %v", e.Err)
}

func (e TransportError) Unwrap() error {
	return e.Err
}

// IsTerminal classifies a delivery error. Terminal errors are routed
// straight to the dead-letter queue instead of the retry loop: a
// malformed payload or a permanent provider rejection will not get
// better by requeueing.
func IsTerminal(err error) bool {
	if errors.Is(err, ErrInvalidPayload) || errors.Is(err, ErrUnsupported) {
		return true
	}
	var pe ProviderError
	if errors.As(err, &pe) {
		return !pe.Retryable
	}
	return false
}
