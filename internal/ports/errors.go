package ports

import (
	"errors"
	"fmt"
	"time"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrRateLimited indicates that the service has rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the service returned an invalid
	// response.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrAuthenticationFailed indicates that authentication with the
	// service failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNotFound indicates that the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// RecordSourceError represents a failed call to the record store.
// It includes the API content type, the HTTP status when one was received
// and any rate limit information.
type RecordSourceError struct {
	// Operation is the API content type that was requested, such as
	// "record" or "participantList".
	Operation string

	// StatusCode is the HTTP status returned, or 0 when the request did
	// not complete.
	StatusCode int

	// Err is the underlying error that occurred.
	Err error

	// RetryAfter indicates how long to wait before retrying, if applicable.
	RetryAfter *time.Duration
}

// Error implements the error interface for RecordSourceError.
func (e *RecordSourceError) Error() string {
	msg := fmt.Sprintf("record source error: operation=%s, err=%v", e.Operation, e.Err)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(", status=%d", e.StatusCode)
	}
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(", retry_after=%v", *e.RetryAfter)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *RecordSourceError) Unwrap() error { return e.Err }

// IsRetryable returns true if the error is temporary and the operation
// can be retried.
func (e *RecordSourceError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewRecordSourceError creates a new RecordSourceError with the given details.
func NewRecordSourceError(operation string, status int, err error) *RecordSourceError {
	return &RecordSourceError{
		Operation:  operation,
		StatusCode: status,
		Err:        err,
	}
}

// IsRetryable reports whether err, or any error it wraps, is a retryable
// RecordSourceError.
func IsRetryable(err error) bool {
	var rse *RecordSourceError
	if errors.As(err, &rse) {
		return rse.IsRetryable()
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// StoreError represents an error from mirror store operations.
type StoreError struct {
	// Operation is the name of the store operation that failed.
	Operation string

	// Err is the underlying error that caused the operation to fail.
	Err error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: operation=%s, err=%v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError creates a new StoreError with the given details.
func NewStoreError(operation string, err error) *StoreError {
	return &StoreError{Operation: operation, Err: err}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
