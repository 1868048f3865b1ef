package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for fieldline metrics.
const meterName = "github.com/fieldline/fieldline"

// Metrics returns middleware that records per-operation metrics using
// the global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - fieldline.op.duration (Float64Histogram): execution time in seconds,
//     with attributes: op, status ("ok" or "error")
//   - fieldline.op.calls (Int64Counter): total calls,
//     with attributes: op, status ("ok" or "error")
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"fieldline.op.duration",
		metric.WithDescription("Duration of engine operations in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	calls, cErr := meter.Int64Counter(
		"fieldline.op.calls",
		metric.WithDescription("Total number of engine operation calls"),
		metric.WithUnit("{call}"),
	)
	_ = cErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, op *Op, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("op", op.Name),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		calls.Add(ctx, 1, attrs)

		return err
	}
}
