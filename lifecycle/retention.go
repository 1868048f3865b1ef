package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/authz"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
	"github.com/fieldline/fieldline/middleware"
)

// PermanentDeleteOptions tunes one PermanentDelete call.
type PermanentDeleteOptions struct {
	// Force allows deleting a job that was never archived. Without it,
	// permanent deletion is only permitted on already-archived jobs.
	Force bool

	// Series cascades the delete to every occurrence of the job's series.
	Series bool
}

// Archive moves a job out of the default views by stamping ArchivedAt.
// Archiving an already-archived job is a no-op that keeps the original
// stamp. series cascades to every occurrence of the job's series.
func (m *Manager) Archive(ctx context.Context, tenantID id.TenantID, actor authz.Actor, jobID id.JobID, series bool) error {
	op := &middleware.Op{Name: "job.archive", TenantID: tenantID, JobID: jobID}

	return m.run(ctx, op, func(ctx context.Context) error {
		existing, err := m.store.GetJob(ctx, tenantID, jobID)
		if err != nil {
			return err
		}
		req := authz.Request{Action: authz.ActionUpdate, TenantID: tenantID, Existing: existing}
		if err := m.authorize(ctx, actor, req); err != nil {
			return err
		}
		if existing.Retention() == job.RetentionTrashed {
			return fieldline.ErrJobTrashed
		}

		ids, err := m.cascadeIDs(ctx, tenantID, existing, series)
		if err != nil {
			return err
		}
		if err := m.store.ArchiveJobs(ctx, tenantID, ids, time.Now().UTC()); err != nil {
			return persistFail("archive jobs", err)
		}

		m.extensions.EmitJobsArchived(ctx, tenantID, ids)

		return nil
	})
}

// Restore moves an archived job back to active by clearing ArchivedAt.
// Restoring a trashed job fails: the purge path is one-way. series
// cascades to every occurrence of the job's series.
func (m *Manager) Restore(ctx context.Context, tenantID id.TenantID, actor authz.Actor, jobID id.JobID, series bool) error {
	op := &middleware.Op{Name: "job.restore", TenantID: tenantID, JobID: jobID}

	return m.run(ctx, op, func(ctx context.Context) error {
		existing, err := m.store.GetJob(ctx, tenantID, jobID)
		if err != nil {
			return err
		}
		req := authz.Request{Action: authz.ActionUpdate, TenantID: tenantID, Existing: existing}
		if err := m.authorize(ctx, actor, req); err != nil {
			return err
		}
		switch existing.Retention() {
		case job.RetentionTrashed:
			return fieldline.ErrJobTrashed
		case job.RetentionActive:
			return fieldline.ErrNotArchived
		}

		ids, err := m.cascadeIDs(ctx, tenantID, existing, series)
		if err != nil {
			return err
		}
		if err := m.store.RestoreJobs(ctx, tenantID, ids); err != nil {
			return persistFail("restore jobs", err)
		}

		m.extensions.EmitJobsRestored(ctx, tenantID, ids)

		return nil
	})
}

// PermanentDelete removes the job's row entirely. There is no way back: no
// retention state survives a permanent delete, only the archive snapshot
// taken by the sweep, if one was taken. Deleting a job that was never
// archived requires opts.Force.
func (m *Manager) PermanentDelete(ctx context.Context, tenantID id.TenantID, actor authz.Actor, jobID id.JobID, opts PermanentDeleteOptions) error {
	op := &middleware.Op{Name: "job.delete", TenantID: tenantID, JobID: jobID}

	return m.run(ctx, op, func(ctx context.Context) error {
		existing, err := m.store.GetJob(ctx, tenantID, jobID)
		if err != nil {
			return err
		}
		req := authz.Request{Action: authz.ActionDelete, TenantID: tenantID, Existing: existing}
		if err := m.authorize(ctx, actor, req); err != nil {
			return err
		}
		if existing.ArchivedAt == nil && !opts.Force {
			return fmt.Errorf("%w: permanent delete requires an archived job or force", fieldline.ErrNotArchived)
		}

		ids, err := m.cascadeIDs(ctx, tenantID, existing, opts.Series)
		if err != nil {
			return err
		}
		if err := m.store.DeleteJobs(ctx, tenantID, ids); err != nil {
			return persistFail("delete jobs", err)
		}

		m.releaseRule(ctx, tenantID, existing.SeriesID)
		m.extensions.EmitJobsDeleted(ctx, tenantID, ids)

		return nil
	})
}

// cascadeIDs resolves the target set of a retention operation: the one
// job, or every occurrence of its series when the caller asked for a
// series-wide action and the job has a series.
func (m *Manager) cascadeIDs(ctx context.Context, tenantID id.TenantID, existing *job.Job, series bool) ([]id.JobID, error) {
	if !series || existing.SeriesID.IsNil() {
		return []id.JobID{existing.ID}, nil
	}

	siblings, err := m.store.ListSeries(ctx, tenantID, existing.SeriesID)
	if err != nil {
		return nil, err
	}
	ids := make([]id.JobID, len(siblings))
	for i, s := range siblings {
		ids[i] = s.ID
	}

	return ids, nil
}
