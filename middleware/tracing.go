package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for fieldline tracing.
const tracerName = "github.com/fieldline/fieldline"

// Tracing returns middleware that wraps each operation in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop
// tracer is used and this middleware becomes a pass-through with zero
// overhead.
//
// Span attributes include: fieldline.op, fieldline.tenant.id, and
// fieldline.job.id when the operation is scoped to a single job.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, op *Op, next Handler) error {
		attrs := []attribute.KeyValue{
			attribute.String("fieldline.op", op.Name),
			attribute.String("fieldline.tenant.id", op.TenantID.String()),
		}
		if !op.JobID.IsNil() {
			attrs = append(attrs, attribute.String("fieldline.job.id", op.JobID.String()))
		}

		ctx, span := tracer.Start(ctx, op.Name,
			trace.WithAttributes(attrs...),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
