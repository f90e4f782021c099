package redcap

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aphrc/proposal-review/internal/ports"
)

// retryAPI implements automatic retry logic with exponential backoff.
// Only transient failures are retried; authentication and decoding
// errors return immediately.
type retryAPI struct {
	next       CoreAPI
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware creates middleware that retries transient failures up to
// maxRetries times with exponential backoff and jitter.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreAPI) CoreAPI {
		return &retryAPI{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

// DoRequest executes the request with automatic retry logic.
func (r *retryAPI) DoRequest(ctx context.Context, content string, params map[string]string) ([]byte, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		attempts++
		body, err := r.next.DoRequest(ctx, content, params)
		if err == nil {
			return body, nil
		}

		lastErr = err

		if errors.Is(err, ErrCircuitOpen) || ctx.Err() != nil || !ports.IsRetryable(err) {
			break
		}

		if attempt == r.maxRetries {
			break
		}

		delay := r.calculateDelay(attempt, err)
		log.Debugf("REDCap %s request failed (attempt %d), retrying in %v: %v", content, attempt+1, delay, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
			// Continue to next attempt.
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

func (r *retryAPI) calculateDelay(attempt int, err error) time.Duration {
	var rse *ports.RecordSourceError
	if errors.As(err, &rse) && rse.RetryAfter != nil {
		return min(*rse.RetryAfter, r.maxDelay)
	}

	// Exponential backoff with jitter.
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	// #nosec G115 - attempt is bounded between 0 and 30
	multiplier := 1 << uint(attempt)
	delay := time.Duration(float64(r.baseDelay) * float64(multiplier))

	// Add jitter (±25%)
	// #nosec G404 - Using weak RNG is acceptable for jitter calculation
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - (delay / 4)

	if delay > r.maxDelay {
		delay = r.maxDelay
	}

	return delay
}

// Endpoint returns the endpoint of the wrapped implementation.
func (r *retryAPI) Endpoint() string { return r.next.Endpoint() }
