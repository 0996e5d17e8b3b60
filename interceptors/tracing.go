package interceptors

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/broady/shapeclient"
	"github.com/broady/shapeclient/transport"
)

// TracerName is the instrumentation name of spans created by Tracing.
const TracerName = "github.com/broady/shapeclient"

// Tracing records one client span per call with an event per attempt, and
// injects the span context into outgoing request headers.
type Tracing struct {
	shapeclient.NopInterceptor
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	spans      calls[trace.Span]
}

// NewTracing creates a tracing interceptor. A nil provider uses the global
// tracer provider; the global propagator is used for header injection.
func NewTracing(tp trace.TracerProvider) *Tracing {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracing{
		tracer:     tp.Tracer(TracerName),
		propagator: otel.GetTextMapPropagator(),
	}
}

// WithPropagator sets the propagator used to inject headers.
func (t *Tracing) WithPropagator(p propagation.TextMapPropagator) *Tracing {
	t.propagator = p
	return t
}

func (t *Tracing) ReadBeforeExecution(ctx context.Context, in *shapeclient.InputContext) error {
	_, span := t.tracer.Start(ctx, in.Service.Name()+"/"+in.Operation.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "shapeclient"),
			attribute.String("rpc.service", in.Service.Name()),
			attribute.String("rpc.method", in.Operation.Name),
		),
	)
	t.spans.start(in, span)
	return nil
}

func (t *Tracing) ModifyBeforeTransmit(ctx context.Context, rc *shapeclient.RequestContext) (*transport.Request, error) {
	span, ok := t.spans.get(rc.InputContext)
	if !ok {
		return rc.Request, nil
	}
	span.AddEvent("attempt", trace.WithAttributes(
		attribute.Int("attempt", rc.Attempt),
		attribute.String("http.request.method", rc.Request.Method),
	))
	t.propagator.Inject(trace.ContextWithSpan(ctx, span), propagation.HeaderCarrier(rc.Request.Header))
	return rc.Request, nil
}

func (t *Tracing) ReadAfterExecution(_ context.Context, out *shapeclient.OutputContext) error {
	span, ok := t.spans.finish(out.InputContext)
	if !ok {
		return nil
	}
	span.SetAttributes(attribute.Int("rpc.attempts", out.Attempt))
	if out.Response != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", out.Response.StatusCode))
	}
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	return nil
}
