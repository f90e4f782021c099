package redcap

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedAPI implements rate limiting using a token bucket algorithm.
// REDCap enforces a per-user request quota, so calls are paced locally
// instead of being rejected upstream.
type rateLimitedAPI struct {
	next    CoreAPI
	limiter *rate.Limiter
}

// RateLimitMiddleware creates middleware that enforces rate limiting using a token bucket algorithm.
// The limit parameter sets requests per second, while burst allows
// temporary spikes above the sustained rate.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)

	return func(next CoreAPI) CoreAPI {
		return &rateLimitedAPI{
			next:    next,
			limiter: limiter,
		}
	}
}

// DoRequest waits for rate limit permission before forwarding the request.
func (r *rateLimitedAPI) DoRequest(ctx context.Context, content string, params map[string]string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.DoRequest(ctx, content, params)
}

// Endpoint returns the endpoint of the wrapped implementation.
func (r *rateLimitedAPI) Endpoint() string { return r.next.Endpoint() }
