// Package ext defines the extension system for Fieldline.
// Extensions are notified of lifecycle events (jobs created, confirmed,
// archived, swept, etc.) and can react to them — logging, metrics,
// customer notifications, audit trails.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobsCreated is called after jobs are persisted. A single create
// produces a one-element slice; a recurring series delivers every
// occurrence in one call.
type JobsCreated interface {
	OnJobsCreated(ctx context.Context, jobs []*job.Job) error
}

// JobUpdated is called after a job's fields are updated. The job
// carries the post-update state.
type JobUpdated interface {
	OnJobUpdated(ctx context.Context, j *job.Job) error
}

// JobConfirmed is called when a customer confirms a pending job.
type JobConfirmed interface {
	OnJobConfirmed(ctx context.Context, j *job.Job) error
}

// JobDeclined is called when a customer declines a pending job.
type JobDeclined interface {
	OnJobDeclined(ctx context.Context, j *job.Job, reason string) error
}

// ──────────────────────────────────────────────────
// Retention lifecycle hooks
// ──────────────────────────────────────────────────

// JobsArchived is called after jobs are moved to the archive.
type JobsArchived interface {
	OnJobsArchived(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) error
}

// JobsRestored is called after archived jobs are restored to active.
type JobsRestored interface {
	OnJobsRestored(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) error
}

// JobsDeleted is called after jobs are permanently deleted.
type JobsDeleted interface {
	OnJobsDeleted(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// SweepCompleted is called after an archival sweep pass finishes,
// whether or not every tenant succeeded.
type SweepCompleted interface {
	OnSweepCompleted(ctx context.Context, report *fieldline.SweepReport) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
