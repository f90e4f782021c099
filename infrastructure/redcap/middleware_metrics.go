package redcap

import (
	"context"
	"errors"
	"time"

	"github.com/aphrc/proposal-review/internal/ports"
)

// Metric names recorded by MetricsMiddleware.
const (
	MetricRequestDuration = "redcap_request_duration_seconds"
	MetricRequestsTotal   = "redcap_requests_total"
)

// metricsAPI records latency and outcome of every request.
type metricsAPI struct {
	next      CoreAPI
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that collects request metrics.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreAPI) CoreAPI {
		return &metricsAPI{
			next:      next,
			collector: collector,
		}
	}
}

// DoRequest executes the request while collecting metrics.
func (m *metricsAPI) DoRequest(ctx context.Context, content string, params map[string]string) ([]byte, error) {
	start := time.Now()
	body, err := m.next.DoRequest(ctx, content, params)

	if m.collector == nil {
		return body, err
	}

	labels := map[string]string{
		"operation": content,
		"status":    requestStatus(ctx, err),
	}
	m.collector.RecordHistogram(MetricRequestDuration, time.Since(start).Seconds(), labels)
	m.collector.RecordCounter(MetricRequestsTotal, 1, labels)

	return body, err
}

func requestStatus(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ports.ErrTimeout) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ports.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ports.ErrAuthenticationFailed):
		return "unauthorized"
	default:
		return "error"
	}
}

// Endpoint returns the endpoint of the wrapped implementation.
func (m *metricsAPI) Endpoint() string { return m.next.Endpoint() }
