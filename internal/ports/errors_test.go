package ports

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestRecordSourceError tests message formatting, unwrapping and the
// retryable classification.
func TestRecordSourceError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := NewRecordSourceError("record", 0, ErrInvalidResponse)

		assert.Equal(t, "record source error: operation=record, err=invalid response", err.Error())
		assert.True(t, errors.Is(err, ErrInvalidResponse))
	})

	t.Run("with status and retry after", func(t *testing.T) {
		retryAfter := 30 * time.Second
		err := &RecordSourceError{
			Operation:  "record",
			StatusCode: 429,
			Err:        ErrRateLimited,
			RetryAfter: &retryAfter,
		}

		assert.Contains(t, err.Error(), "status=429")
		assert.Contains(t, err.Error(), "retry_after=30s")
	})

	t.Run("retryable classification", func(t *testing.T) {
		tests := []struct {
			err  error
			want bool
		}{
			{ErrRateLimited, true},
			{ErrServiceUnavailable, true},
			{ErrTimeout, true},
			{ErrAuthenticationFailed, false},
			{ErrInvalidResponse, false},
			{ErrNotFound, false},
		}
		for _, tt := range tests {
			rse := NewRecordSourceError("record", 0, tt.err)
			assert.Equal(t, tt.want, rse.IsRetryable(), tt.err.Error())
			assert.Equal(t, tt.want, IsRetryable(fmt.Errorf("wrapped: %w", rse)), tt.err.Error())
		}
	})

	t.Run("plain errors", func(t *testing.T) {
		assert.True(t, IsRetryable(fmt.Errorf("x: %w", ErrTimeout)))
		assert.False(t, IsRetryable(errors.New("boom")))
	})
}

func TestStoreAndConfigErrors(t *testing.T) {
	base := errors.New("connection refused")

	se := NewStoreError("insert", base)
	assert.Equal(t, "store error: operation=insert, err=connection refused", se.Error())
	assert.ErrorIs(t, se, base)

	ce := NewConfigError("redcap.token", ErrConfigNotFound)
	assert.Equal(t, "config error: key=redcap.token, err=configuration not found", ce.Error())
	assert.ErrorIs(t, ce, ErrConfigNotFound)
}
