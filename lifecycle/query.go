package lifecycle

import (
	"context"
	"time"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/authz"
	"github.com/fieldline/fieldline/conflict"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
	"github.com/fieldline/fieldline/middleware"
)

// Filter controls GetAll. The zero value lists every active job the actor
// may see.
type Filter struct {
	// From and To bound job start times to the half-open range [From, To).
	From *time.Time
	To   *time.Time

	// IncludeArchived adds archived jobs; ShowDeleted adds trashed ones.
	IncludeArchived bool
	ShowDeleted     bool

	// AssignedUserID narrows to jobs carrying an assignment for that user.
	AssignedUserID id.UserID

	// Limit caps the result; zero means no limit. Offset skips rows.
	Limit  int
	Offset int
}

// Stats summarizes a tenant's jobs for dashboards.
type Stats struct {
	Total       int64                        `json:"total"`
	ByStatus    map[job.WorkStatus]int64     `json:"by_status"`
	ByRetention map[job.RetentionState]int64 `json:"by_retention"`
}

// GetAll lists the tenant's jobs, start time ascending with unscheduled
// jobs last. An actor without the see-other-jobs capability is limited to
// jobs they created or are assigned to.
func (m *Manager) GetAll(ctx context.Context, tenantID id.TenantID, actor authz.Actor, f Filter) ([]*job.Job, error) {
	if err := checkReadScope(tenantID, actor); err != nil {
		return nil, err
	}

	var jobs []*job.Job
	op := &middleware.Op{Name: "job.list", TenantID: tenantID}
	err := m.run(ctx, op, func(ctx context.Context) error {
		lf := job.ListFilter{
			From:            f.From,
			To:              f.To,
			IncludeArchived: f.IncludeArchived,
			ShowDeleted:     f.ShowDeleted,
			AssignedUserID:  f.AssignedUserID,
			Limit:           f.Limit,
			Offset:          f.Offset,
		}

		if actor.SeesOtherJobs() {
			var err error
			jobs, err = m.store.ListJobs(ctx, tenantID, lf)

			return err
		}

		// Restricted actors see jobs they created or are assigned to.
		// That is an OR the store filters cannot express, so fetch the
		// page-less result, filter, then page in process.
		lf.Limit, lf.Offset = 0, 0
		all, err := m.store.ListJobs(ctx, tenantID, lf)
		if err != nil {
			return err
		}
		visible := all[:0]
		for _, j := range all {
			if visibleTo(actor, j) {
				visible = append(visible, j)
			}
		}
		jobs = page(visible, f.Limit, f.Offset)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return jobs, nil
}

// GetByID returns one job within the tenant. A job hidden from the actor
// by the read scope reports not found, the same as a job outside the
// tenant.
func (m *Manager) GetByID(ctx context.Context, tenantID id.TenantID, actor authz.Actor, jobID id.JobID) (*job.Job, error) {
	if err := checkReadScope(tenantID, actor); err != nil {
		return nil, err
	}

	var found *job.Job
	op := &middleware.Op{Name: "job.get", TenantID: tenantID, JobID: jobID}
	err := m.run(ctx, op, func(ctx context.Context) error {
		j, err := m.store.GetJob(ctx, tenantID, jobID)
		if err != nil {
			return err
		}
		if !actor.SeesOtherJobs() && !visibleTo(actor, j) {
			return fieldline.ErrJobNotFound
		}
		found = j

		return nil
	})
	if err != nil {
		return nil, err
	}

	return found, nil
}

// CheckConflicts exposes the detector for live what-if checks: the outer
// layer calls it while the user drags a slot around. Pass id.Nil as
// excludeJobID when the job does not exist yet.
func (m *Manager) CheckConflicts(ctx context.Context, tenantID id.TenantID, w conflict.Window, excludeJobID id.JobID) ([]conflict.Conflict, error) {
	var found []conflict.Conflict
	op := &middleware.Op{Name: "job.conflicts", TenantID: tenantID, JobID: excludeJobID}
	err := m.run(ctx, op, func(ctx context.Context) error {
		var err error
		found, err = m.detector.FindConflicts(ctx, tenantID, w, excludeJobID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return found, nil
}

// Stats counts the tenant's jobs by work status and retention state.
func (m *Manager) Stats(ctx context.Context, tenantID id.TenantID) (*Stats, error) {
	if tenantID.IsNil() {
		return nil, fieldline.ErrTenantRequired
	}

	var stats *Stats
	op := &middleware.Op{Name: "job.stats", TenantID: tenantID}
	err := m.run(ctx, op, func(ctx context.Context) error {
		total, err := m.store.CountJobs(ctx, tenantID, job.CountFilter{})
		if err != nil {
			return err
		}
		s := &Stats{
			Total:       total,
			ByStatus:    make(map[job.WorkStatus]int64),
			ByRetention: make(map[job.RetentionState]int64),
		}

		statuses := []job.WorkStatus{
			job.StatusPendingConfirmation, job.StatusScheduled,
			job.StatusInProgress, job.StatusCompleted, job.StatusCancelled,
		}
		for _, status := range statuses {
			n, err := m.store.CountJobs(ctx, tenantID, job.CountFilter{Status: status})
			if err != nil {
				return err
			}
			s.ByStatus[status] = n
		}

		retentions := []job.RetentionState{
			job.RetentionActive, job.RetentionArchived, job.RetentionTrashed,
		}
		for _, retention := range retentions {
			n, err := m.store.CountJobs(ctx, tenantID, job.CountFilter{Retention: retention})
			if err != nil {
				return err
			}
			s.ByRetention[retention] = n
		}

		stats = s

		return nil
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// checkReadScope verifies the actor belongs to the tenant they are reading.
func checkReadScope(tenantID id.TenantID, actor authz.Actor) error {
	if tenantID.IsNil() || actor.TenantID.IsNil() {
		return fieldline.ErrTenantRequired
	}
	if actor.TenantID.String() != tenantID.String() {
		return fieldline.NewAuthzError(authz.ReasonCrossTenant)
	}

	return nil
}

// visibleTo applies the restricted read scope: a job is visible to an
// actor without see-other-jobs when they created it or are assigned to it.
func visibleTo(actor authz.Actor, j *job.Job) bool {
	if !j.CreatedByID.IsNil() && j.CreatedByID.String() == actor.UserID.String() {
		return true
	}

	return j.IsAssignedTo(actor.UserID)
}

// page applies limit/offset to an in-process result.
func page(jobs []*job.Job, limit, offset int) []*job.Job {
	if offset > 0 {
		if offset >= len(jobs) {
			return nil
		}
		jobs = jobs[offset:]
	}
	if limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}

	return jobs
}
