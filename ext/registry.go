package ext

import (
	"context"
	"log/slog"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobsCreatedEntry struct {
	name string
	hook JobsCreated
}

type jobUpdatedEntry struct {
	name string
	hook JobUpdated
}

type jobConfirmedEntry struct {
	name string
	hook JobConfirmed
}

type jobDeclinedEntry struct {
	name string
	hook JobDeclined
}

type jobsArchivedEntry struct {
	name string
	hook JobsArchived
}

type jobsRestoredEntry struct {
	name string
	hook JobsRestored
}

type jobsDeletedEntry struct {
	name string
	hook JobsDeleted
}

type sweepCompletedEntry struct {
	name string
	hook SweepCompleted
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	jobsCreated    []jobsCreatedEntry
	jobUpdated     []jobUpdatedEntry
	jobConfirmed   []jobConfirmedEntry
	jobDeclined    []jobDeclinedEntry
	jobsArchived   []jobsArchivedEntry
	jobsRestored   []jobsRestoredEntry
	jobsDeleted    []jobsDeletedEntry
	sweepCompleted []sweepCompletedEntry
	shutdown       []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobsCreated); ok {
		r.jobsCreated = append(r.jobsCreated, jobsCreatedEntry{name, h})
	}
	if h, ok := e.(JobUpdated); ok {
		r.jobUpdated = append(r.jobUpdated, jobUpdatedEntry{name, h})
	}
	if h, ok := e.(JobConfirmed); ok {
		r.jobConfirmed = append(r.jobConfirmed, jobConfirmedEntry{name, h})
	}
	if h, ok := e.(JobDeclined); ok {
		r.jobDeclined = append(r.jobDeclined, jobDeclinedEntry{name, h})
	}
	if h, ok := e.(JobsArchived); ok {
		r.jobsArchived = append(r.jobsArchived, jobsArchivedEntry{name, h})
	}
	if h, ok := e.(JobsRestored); ok {
		r.jobsRestored = append(r.jobsRestored, jobsRestoredEntry{name, h})
	}
	if h, ok := e.(JobsDeleted); ok {
		r.jobsDeleted = append(r.jobsDeleted, jobsDeletedEntry{name, h})
	}
	if h, ok := e.(SweepCompleted); ok {
		r.sweepCompleted = append(r.sweepCompleted, sweepCompletedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobsCreated notifies all extensions that implement JobsCreated.
func (r *Registry) EmitJobsCreated(ctx context.Context, jobs []*job.Job) {
	for _, e := range r.jobsCreated {
		if err := e.hook.OnJobsCreated(ctx, jobs); err != nil {
			r.logHookError("OnJobsCreated", e.name, err)
		}
	}
}

// EmitJobUpdated notifies all extensions that implement JobUpdated.
func (r *Registry) EmitJobUpdated(ctx context.Context, j *job.Job) {
	for _, e := range r.jobUpdated {
		if err := e.hook.OnJobUpdated(ctx, j); err != nil {
			r.logHookError("OnJobUpdated", e.name, err)
		}
	}
}

// EmitJobConfirmed notifies all extensions that implement JobConfirmed.
func (r *Registry) EmitJobConfirmed(ctx context.Context, j *job.Job) {
	for _, e := range r.jobConfirmed {
		if err := e.hook.OnJobConfirmed(ctx, j); err != nil {
			r.logHookError("OnJobConfirmed", e.name, err)
		}
	}
}

// EmitJobDeclined notifies all extensions that implement JobDeclined.
func (r *Registry) EmitJobDeclined(ctx context.Context, j *job.Job, reason string) {
	for _, e := range r.jobDeclined {
		if err := e.hook.OnJobDeclined(ctx, j, reason); err != nil {
			r.logHookError("OnJobDeclined", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Retention event emitters
// ──────────────────────────────────────────────────

// EmitJobsArchived notifies all extensions that implement JobsArchived.
func (r *Registry) EmitJobsArchived(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) {
	for _, e := range r.jobsArchived {
		if err := e.hook.OnJobsArchived(ctx, tenantID, jobIDs); err != nil {
			r.logHookError("OnJobsArchived", e.name, err)
		}
	}
}

// EmitJobsRestored notifies all extensions that implement JobsRestored.
func (r *Registry) EmitJobsRestored(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) {
	for _, e := range r.jobsRestored {
		if err := e.hook.OnJobsRestored(ctx, tenantID, jobIDs); err != nil {
			r.logHookError("OnJobsRestored", e.name, err)
		}
	}
}

// EmitJobsDeleted notifies all extensions that implement JobsDeleted.
func (r *Registry) EmitJobsDeleted(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) {
	for _, e := range r.jobsDeleted {
		if err := e.hook.OnJobsDeleted(ctx, tenantID, jobIDs); err != nil {
			r.logHookError("OnJobsDeleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitSweepCompleted notifies all extensions that implement SweepCompleted.
func (r *Registry) EmitSweepCompleted(ctx context.Context, report *fieldline.SweepReport) {
	for _, e := range r.sweepCompleted {
		if err := e.hook.OnSweepCompleted(ctx, report); err != nil {
			r.logHookError("OnSweepCompleted", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the caller.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
