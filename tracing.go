package gantry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Span is the handle a tracer returns for one request. It is attached to
// the context by the Tracing stage and closed by the Telemetry stage.
type Span interface {
	// SetStatus records the final HTTP status on the span.
	SetStatus(status int)
	// RecordError notes a request failure on the span.
	RecordError(err error)
	// End closes the span.
	End()
}

// Tracer creates spans per request. Implement this with your preferred
// tracing backend; OtelTracer adapts OpenTelemetry.
type Tracer interface {
	StartSpan(ctx context.Context, rc *RequestContext, req *Request) (context.Context, Span)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopSpan) SetStatus(int)     {}
func (noopSpan) RecordError(error) {}
func (noopSpan) End()              {}

func (noopTracer) StartSpan(ctx context.Context, _ *RequestContext, _ *Request) (context.Context, Span) {
	return ctx, noopSpan{}
}

// OtelTracer adapts OpenTelemetry to the Tracer interface. Caller-provided
// trace context (traceparent et al.) is extracted from request headers via
// the globally configured propagator.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer returns a Tracer backed by the global OpenTelemetry
// provider.
func NewOtelTracer() *OtelTracer {
	return &OtelTracer{tracer: otel.Tracer("github.com/gantryhttp/gantry")}
}

// StartSpan implements Tracer.
func (t *OtelTracer) StartSpan(ctx context.Context, rc *RequestContext, req *Request) (context.Context, Span) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(req.Header))

	ctx, span := t.tracer.Start(ctx, req.Method+" "+req.Path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
			attribute.String("request.id", rc.ID),
		),
	)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) SetStatus(status int) {
	s.span.SetAttributes(attribute.Int("http.response.status_code", status))
}

func (s otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

func (s otelSpan) End() {
	s.span.End()
}

// stageTracing opens the request span, keyed by the request id minted in
// the previous stage. The span-bearing context is handed to the remaining
// stages and the handler; the span itself is closed by the Telemetry
// post-stage.
func (p *Pipeline) stageTracing(ctx context.Context, rc *RequestContext, req *Request) StageOutcome {
	spanCtx, span := p.tracer.StartSpan(ctx, rc, req)
	rc.span = span
	rc.spanCtx = spanCtx
	return Continue()
}
