package redcap

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracedAPI wraps each request in a span.
type tracedAPI struct {
	next        CoreAPI
	serviceName string
	tracer      trace.Tracer
}

// TracingMiddleware creates middleware that adds distributed tracing to requests.
// The token is never recorded.
func TracingMiddleware(serviceName string) Middleware {
	return func(next CoreAPI) CoreAPI {
		return &tracedAPI{
			next:        next,
			serviceName: serviceName,
			tracer:      otel.Tracer("redcap-client"),
		}
	}
}

// DoRequest executes the request within a trace span.
func (t *tracedAPI) DoRequest(ctx context.Context, content string, params map[string]string) ([]byte, error) {
	ctx, span := t.tracer.Start(ctx, "redcap.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("service.name", t.serviceName),
			attribute.String("redcap.content", content),
			attribute.String("redcap.endpoint", t.next.Endpoint()),
			attribute.Int("redcap.params", len(params)),
		),
	)
	defer span.End()

	body, err := t.next.DoRequest(ctx, content, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("redcap.response.bytes", len(body)))
	span.SetStatus(codes.Ok, "")
	return body, nil
}

// Endpoint returns the endpoint of the wrapped implementation.
func (t *tracedAPI) Endpoint() string { return t.next.Endpoint() }
