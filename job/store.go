package job

import (
	"context"
	"time"

	"github.com/fieldline/fieldline/id"
)

// ListFilter controls tenant job listings. The zero value lists every
// active job for the tenant.
type ListFilter struct {
	// From and To bound the job start time to the half-open range [From, To).
	// Jobs without a start time match only unranged queries.
	From *time.Time
	To   *time.Time

	// IncludeArchived adds archived jobs to the result.
	IncludeArchived bool

	// ShowDeleted adds soft-deleted (trashed) jobs to the result.
	ShowDeleted bool

	// CreatedByID, when set, limits results to jobs created by that user.
	CreatedByID id.UserID

	// AssignedUserID, when set, limits results to jobs carrying an
	// assignment for that user.
	AssignedUserID id.UserID

	// SeriesID, when set, limits results to occurrences of one series.
	SeriesID id.SeriesID

	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
}

// CountFilter controls job count queries.
type CountFilter struct {
	// Status filters by work status. Empty means all statuses.
	Status WorkStatus
	// Retention filters by retention state. Empty means all states.
	Retention RetentionState
}

// Store defines the persistence contract for jobs. Every read and write is
// scoped by an explicit tenant id; implementations must never match rows
// across tenants.
//
// Ordering: all listing methods return jobs by start time ascending, jobs
// without a start time last, ties broken by creation time.
type Store interface {
	// CreateJob persists a new job.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by id within the tenant.
	GetJob(ctx context.Context, tenantID id.TenantID, jobID id.JobID) (*Job, error)

	// UpdateJob persists changes to an existing job, matched by tenant and id.
	UpdateJob(ctx context.Context, j *Job) error

	// DeleteJob removes a job row entirely (hard delete).
	DeleteJob(ctx context.Context, tenantID id.TenantID, jobID id.JobID) error

	// DeleteJobs removes several job rows entirely. Missing ids are skipped.
	DeleteJobs(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) error

	// ListJobs returns the tenant's jobs matching the filter.
	ListJobs(ctx context.Context, tenantID id.TenantID, filter ListFilter) ([]*Job, error)

	// ListSeries returns all occurrences of one series, ordered by start.
	ListSeries(ctx context.Context, tenantID id.TenantID, seriesID id.SeriesID) ([]*Job, error)

	// ListActiveBetween returns active jobs whose window overlaps the
	// half-open range [from, to). Jobs without a window never match.
	ListActiveBetween(ctx context.Context, tenantID id.TenantID, from, to time.Time) ([]*Job, error)

	// ListArchiveCandidates returns active jobs whose end time is before
	// the cutoff.
	ListArchiveCandidates(ctx context.Context, tenantID id.TenantID, cutoff time.Time) ([]*Job, error)

	// ListPurgeCandidates returns archived, non-trashed jobs whose
	// ArchivedAt is before the cutoff.
	ListPurgeCandidates(ctx context.Context, tenantID id.TenantID, cutoff time.Time) ([]*Job, error)

	// ArchiveJobs stamps ArchivedAt on the given jobs. Already-archived
	// jobs keep their original stamp (idempotent).
	ArchiveJobs(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID, at time.Time) error

	// RestoreJobs clears ArchivedAt on the given jobs.
	RestoreJobs(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) error

	// CountJobs returns the number of the tenant's jobs matching the filter.
	CountJobs(ctx context.Context, tenantID id.TenantID, filter CountFilter) (int64, error)
}
