// Package tracing wraps OpenTelemetry span creation behind the module's own
// thin Tracer interface so callers never import the otel SDK directly.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/fabianmarian8/sentinel-sub000"

// Span is the narrow span surface callers use.
type Span interface {
	End()
	SetAttribute(key string, value string)
	RecordError(err error)
}

// Tracer starts spans against the process-wide otel TracerProvider.
type Tracer struct {
	tracer trace.Tracer
}

func New() *Tracer {
	return &Tracer{tracer: otel.Tracer(instrumentationName)}
}

func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, otelSpan{span: span}
}

type otelSpan struct{ span trace.Span }

func (s otelSpan) End() { s.span.End() }

func (s otelSpan) SetAttribute(key string, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

func (s otelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
}

// ExtractIDs returns the trace and span id of the active span, or empty
// strings outside any span, for log correlation.
func ExtractIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
