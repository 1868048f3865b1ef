// Package observability provides an OpenTelemetry-based metrics
// extension for Fieldline. The MetricsExtension implements lifecycle
// hooks to record system-wide counters for job creation, confirmation,
// decline, retention movements, and sweep outcomes.
//
// For per-operation latency and tracing, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
