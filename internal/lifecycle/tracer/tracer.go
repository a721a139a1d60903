// Package tracer is a small tracing port so lifecycle execution can be
// spanned without coupling the service to the OpenTelemetry SDK.
package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Tracer starts spans around lifecycle operations. The returned end function
// records the terminal error, if any, and closes the span.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error))
}

// Otel traces through the global OpenTelemetry tracer provider.
type Otel struct {
	tracer oteltrace.Tracer
}

func NewOtel() *Otel {
	return &Otel{tracer: otel.Tracer("leadcrm/lifecycle")}
}

func (t *Otel) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := t.tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// Noop discards spans. Used in tests and when tracing is not configured.
type Noop struct{}

func NewNoop() Noop {
	return Noop{}
}

func (Noop) Start(ctx context.Context, _ string, _ ...attribute.KeyValue) (context.Context, func(err error)) {
	return ctx, func(error) {}
}
