package redcap

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without contacting REDCap while the breaker
// is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState is the position of the REDCap breaker.
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	// StateHalfOpen admits one trial request once the cooldown is over.
	StateHalfOpen
)

var stateNames = map[CircuitBreakerState]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half_open",
}

func (s CircuitBreakerState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// CircuitBreakerMetrics receives the outcome of every request that passes
// the breaker middleware.
type CircuitBreakerMetrics interface {
	RecordState(state CircuitBreakerState)
	RecordTrip()
	RecordSuccess()
	RecordFailure()
}

// CircuitBreaker stops calling REDCap after threshold consecutive
// failures and waits cooldown before a trial request. Requests abandoned
// by their caller are not held against the server.
type CircuitBreaker struct {
	mu        sync.RWMutex
	state     CircuitBreakerState
	failures  int
	threshold int
	cooldown  time.Duration
	openedAt  time.Time
	now       func() time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Call runs fn unless the breaker is open. The lock is held for the whole
// call so a half-open breaker lets exactly one trial through.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
	}

	err := fn()
	switch {
	case err == nil:
		cb.failures = 0
		cb.state = StateClosed
	case errors.Is(err, context.Canceled):
		if cb.state == StateHalfOpen {
			cb.state = StateOpen
		}
	default:
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.threshold {
			cb.trip()
		}
	}
	return err
}

func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
}

func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

type breakerAPI struct {
	next    CoreAPI
	breaker *CircuitBreaker
	metrics CircuitBreakerMetrics
}

// CircuitBreakerMiddleware guards the client with a breaker that opens
// after maxFailures consecutive failed requests.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	return CircuitBreakerMiddlewareWithMetrics(maxFailures, cooldown, nil)
}

// CircuitBreakerMiddlewareWithMetrics is CircuitBreakerMiddleware reporting
// to metrics. A nil metrics is allowed.
func CircuitBreakerMiddlewareWithMetrics(maxFailures int, cooldown time.Duration, metrics CircuitBreakerMetrics) Middleware {
	breaker := NewCircuitBreaker(maxFailures, cooldown)
	return func(next CoreAPI) CoreAPI {
		return &breakerAPI{next: next, breaker: breaker, metrics: metrics}
	}
}

func (b *breakerAPI) DoRequest(ctx context.Context, content string, params map[string]string) (body []byte, err error) {
	err = b.breaker.Call(func() error {
		var callErr error
		body, callErr = b.next.DoRequest(ctx, content, params)
		return callErr
	})
	b.report(err)
	return body, err
}

func (b *breakerAPI) report(err error) {
	if b.metrics == nil {
		return
	}
	switch {
	case err == nil:
		b.metrics.RecordSuccess()
	case errors.Is(err, ErrCircuitOpen):
		b.metrics.RecordTrip()
	default:
		b.metrics.RecordFailure()
	}
	b.metrics.RecordState(b.breaker.State())
}

func (b *breakerAPI) Endpoint() string { return b.next.Endpoint() }
