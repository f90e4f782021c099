package redcap

import (
	"context"
	"sync"
	"time"
)

// mockCore is a configurable CoreAPI for middleware tests.
type mockCore struct {
	mu sync.Mutex

	Body          []byte
	Error         error
	ResponseDelay time.Duration

	// FailUntilAttempt fails the first N calls, then succeeds.
	FailUntilAttempt int

	CallCount   int
	LastContent string
	LastParams  map[string]string
	LastContext context.Context
}

func newMockCore() *mockCore {
	return &mockCore{Body: []byte(`[]`)}
}

func (m *mockCore) DoRequest(ctx context.Context, content string, params map[string]string) ([]byte, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastContent = content
	m.LastParams = params
	m.LastContext = ctx
	call := m.CallCount
	delay := m.ResponseDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.FailUntilAttempt > 0 && call <= m.FailUntilAttempt {
		if m.Error != nil {
			return nil, m.Error
		}
		return nil, errTransient
	}
	if m.FailUntilAttempt == 0 && m.Error != nil {
		return nil, m.Error
	}
	return m.Body, nil
}

func (m *mockCore) Endpoint() string { return "https://redcap.test/api/" }

func (m *mockCore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
