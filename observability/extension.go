package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/ext"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/fieldline/fieldline/observability"

// Compile-time interface checks.
var (
	_ ext.Extension      = (*MetricsExtension)(nil)
	_ ext.JobsCreated    = (*MetricsExtension)(nil)
	_ ext.JobUpdated     = (*MetricsExtension)(nil)
	_ ext.JobConfirmed   = (*MetricsExtension)(nil)
	_ ext.JobDeclined    = (*MetricsExtension)(nil)
	_ ext.JobsArchived   = (*MetricsExtension)(nil)
	_ ext.JobsRestored   = (*MetricsExtension)(nil)
	_ ext.JobsDeleted    = (*MetricsExtension)(nil)
	_ ext.SweepCompleted = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle counters through the
// OTel metric API. Register it as an extension to track create rates,
// confirmation and decline counts, retention movements, and sweep
// outcomes. If no MeterProvider is configured globally, every
// instrument is a noop and the extension costs nothing.
type MetricsExtension struct {
	jobsCreated   metric.Int64Counter
	jobsUpdated   metric.Int64Counter
	jobsConfirmed metric.Int64Counter
	jobsDeclined  metric.Int64Counter
	jobsArchived  metric.Int64Counter
	jobsRestored  metric.Int64Counter
	jobsDeleted   metric.Int64Counter
	sweepRuns     metric.Int64Counter
	sweepArchived metric.Int64Counter
	sweepPurged   metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. Use this variant to inject a specific MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}
	// On error the OTel API returns noop instruments, so the extension
	// degrades gracefully.
	m.jobsCreated, _ = meter.Int64Counter("fieldline.jobs.created",
		metric.WithDescription("Jobs persisted, including series occurrences"),
		metric.WithUnit("{job}"))
	m.jobsUpdated, _ = meter.Int64Counter("fieldline.jobs.updated",
		metric.WithDescription("Job field updates"),
		metric.WithUnit("{job}"))
	m.jobsConfirmed, _ = meter.Int64Counter("fieldline.jobs.confirmed",
		metric.WithDescription("Customer confirmations"),
		metric.WithUnit("{job}"))
	m.jobsDeclined, _ = meter.Int64Counter("fieldline.jobs.declined",
		metric.WithDescription("Customer declines"),
		metric.WithUnit("{job}"))
	m.jobsArchived, _ = meter.Int64Counter("fieldline.jobs.archived",
		metric.WithDescription("Jobs moved to the archive"),
		metric.WithUnit("{job}"))
	m.jobsRestored, _ = meter.Int64Counter("fieldline.jobs.restored",
		metric.WithDescription("Jobs restored from the archive"),
		metric.WithUnit("{job}"))
	m.jobsDeleted, _ = meter.Int64Counter("fieldline.jobs.deleted",
		metric.WithDescription("Jobs permanently deleted"),
		metric.WithUnit("{job}"))
	m.sweepRuns, _ = meter.Int64Counter("fieldline.sweep.runs",
		metric.WithDescription("Archival sweep passes"),
		metric.WithUnit("{run}"))
	m.sweepArchived, _ = meter.Int64Counter("fieldline.sweep.archived",
		metric.WithDescription("Jobs archived by sweep passes"),
		metric.WithUnit("{job}"))
	m.sweepPurged, _ = meter.Int64Counter("fieldline.sweep.purged",
		metric.WithDescription("Jobs purged by sweep passes"),
		metric.WithUnit("{job}"))
	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobsCreated implements ext.JobsCreated.
func (m *MetricsExtension) OnJobsCreated(ctx context.Context, jobs []*job.Job) error {
	m.jobsCreated.Add(ctx, int64(len(jobs)))
	return nil
}

// OnJobUpdated implements ext.JobUpdated.
func (m *MetricsExtension) OnJobUpdated(ctx context.Context, _ *job.Job) error {
	m.jobsUpdated.Add(ctx, 1)
	return nil
}

// OnJobConfirmed implements ext.JobConfirmed.
func (m *MetricsExtension) OnJobConfirmed(ctx context.Context, _ *job.Job) error {
	m.jobsConfirmed.Add(ctx, 1)
	return nil
}

// OnJobDeclined implements ext.JobDeclined.
func (m *MetricsExtension) OnJobDeclined(ctx context.Context, _ *job.Job, _ string) error {
	m.jobsDeclined.Add(ctx, 1)
	return nil
}

// ── Retention lifecycle hooks ───────────────────────

// OnJobsArchived implements ext.JobsArchived.
func (m *MetricsExtension) OnJobsArchived(ctx context.Context, _ id.TenantID, jobIDs []id.JobID) error {
	m.jobsArchived.Add(ctx, int64(len(jobIDs)))
	return nil
}

// OnJobsRestored implements ext.JobsRestored.
func (m *MetricsExtension) OnJobsRestored(ctx context.Context, _ id.TenantID, jobIDs []id.JobID) error {
	m.jobsRestored.Add(ctx, int64(len(jobIDs)))
	return nil
}

// OnJobsDeleted implements ext.JobsDeleted.
func (m *MetricsExtension) OnJobsDeleted(ctx context.Context, _ id.TenantID, jobIDs []id.JobID) error {
	m.jobsDeleted.Add(ctx, int64(len(jobIDs)))
	return nil
}

// ── Sweep hooks ─────────────────────────────────────

// OnSweepCompleted implements ext.SweepCompleted.
func (m *MetricsExtension) OnSweepCompleted(ctx context.Context, report *fieldline.SweepReport) error {
	status := "ok"
	if report.Failed() {
		status = "error"
	}
	m.sweepRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.Bool("dry_run", report.DryRun),
	))
	if !report.DryRun {
		m.sweepArchived.Add(ctx, int64(report.ArchivedCount))
		m.sweepPurged.Add(ctx, int64(report.DeletedCount))
	}
	return nil
}
