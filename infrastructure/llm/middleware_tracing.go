package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracedLLM wraps each request in an OpenTelemetry span.
type tracedLLM struct {
	next        CoreLLM
	serviceName string
	tracer      trace.Tracer
}

// TracingMiddleware creates middleware that records an "llm.request" span
// per call using the global tracer provider.
func TracingMiddleware(serviceName string) Middleware {
	return TracingMiddlewareWithProvider(serviceName, otel.GetTracerProvider())
}

// TracingMiddlewareWithProvider is TracingMiddleware with an explicit
// tracer provider.
func TracingMiddlewareWithProvider(serviceName string, tp trace.TracerProvider) Middleware {
	tracer := tp.Tracer("github.com/ahrav/go-qgen/infrastructure/llm")
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{next: next, serviceName: serviceName, tracer: tracer}
	}
}

// DoRequest executes the request within a span carrying the model,
// prompt size and token usage.
func (t *tracedLLM) DoRequest(ctx context.Context, req Request) (Response, error) {
	ctx, span := t.tracer.Start(ctx, "llm.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("service.name", t.serviceName),
			attribute.String("llm.model", t.next.GetModel()),
			attribute.Int("llm.prompt.length", len(req.Prompt)),
			attribute.Int("llm.candidates", req.Candidates),
		),
	)
	defer span.End()

	resp, err := t.next.DoRequest(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}

	span.SetAttributes(
		attribute.Int("llm.completions", len(resp.Texts)),
		attribute.Int("llm.tokens.input", resp.TokensIn),
		attribute.Int("llm.tokens.output", resp.TokensOut),
	)
	return resp, nil
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracedLLM) GetModel() string { return t.next.GetModel() }
