package redcap

import (
	"context"
	"time"
)

// timeoutAPI bounds each request, retries included when it sits outside
// the retry middleware.
type timeoutAPI struct {
	next    CoreAPI
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that enforces request timeouts.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreAPI) CoreAPI {
		return &timeoutAPI{
			next:    next,
			timeout: timeout,
		}
	}
}

// DoRequest executes the request with a timeout context.
func (t *timeoutAPI) DoRequest(ctx context.Context, content string, params map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoRequest(ctx, content, params)
}

// Endpoint returns the endpoint of the wrapped implementation.
func (t *timeoutAPI) Endpoint() string { return t.next.Endpoint() }
