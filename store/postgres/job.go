package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
)

// jobColumns is the canonical column list; scanJob must stay in sync.
const jobColumns = `id, tenant_id, title, description,
	start_time, end_time, to_be_scheduled, status,
	archived_at, deleted_at,
	contact_id, service_id, quote_id, invoice_id, series_id, created_by_id,
	assigned_to, breaks, decline_reason,
	created_at, updated_at`

// querier is the subset of pgxpool.Pool and pgx.Tx the write helpers
// need, so series writes can reuse them inside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CreateJob persists a new job.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	if j.TenantID.IsNil() {
		return fieldline.ErrTenantRequired
	}
	return insertJob(ctx, s.pool, j)
}

// GetJob retrieves a job by id within the tenant.
func (s *Store) GetJob(ctx context.Context, tenantID id.TenantID, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM fieldline_jobs WHERE tenant_id = $1 AND id = $2`,
		tenantID, jobID,
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fieldline.ErrJobNotFound
		}
		return nil, fmt.Errorf("fieldline/postgres: get job: %w", err)
	}
	return j, nil
}

// UpdateJob persists changes to an existing job, matched by tenant and id.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	assignedTo, err := job.EncodeAssignments(j.AssignedTo)
	if err != nil {
		return err
	}
	breaks, err := encodeBreaks(j.Breaks)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE fieldline_jobs SET
			title = $3, description = $4,
			start_time = $5, end_time = $6, to_be_scheduled = $7, status = $8,
			archived_at = $9, deleted_at = $10,
			contact_id = $11, service_id = $12, quote_id = $13, invoice_id = $14,
			series_id = $15, created_by_id = $16,
			assigned_to = $17, breaks = $18, decline_reason = $19,
			updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`,
		j.TenantID, j.ID,
		j.Title, j.Description,
		j.StartTime, j.EndTime, j.ToBeScheduled, string(j.Status),
		j.ArchivedAt, j.DeletedAt,
		j.ContactID, j.ServiceID, j.QuoteID, j.InvoiceID,
		j.SeriesID, j.CreatedByID,
		assignedTo, breaks, j.DeclineReason,
	)
	if err != nil {
		return fmt.Errorf("fieldline/postgres: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fieldline.ErrJobNotFound
	}
	return nil
}

// DeleteJob removes a job row entirely (hard delete).
func (s *Store) DeleteJob(ctx context.Context, tenantID id.TenantID, jobID id.JobID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM fieldline_jobs WHERE tenant_id = $1 AND id = $2`,
		tenantID, jobID,
	)
	if err != nil {
		return fmt.Errorf("fieldline/postgres: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fieldline.ErrJobNotFound
	}
	return nil
}

// DeleteJobs removes several job rows entirely. Missing ids are skipped.
func (s *Store) DeleteJobs(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) error {
	if len(jobIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM fieldline_jobs WHERE tenant_id = $1 AND id = ANY($2)`,
		tenantID, idStrings(jobIDs),
	)
	if err != nil {
		return fmt.Errorf("fieldline/postgres: delete jobs: %w", err)
	}
	return nil
}

// ListJobs returns the tenant's jobs matching the filter.
func (s *Store) ListJobs(ctx context.Context, tenantID id.TenantID, filter job.ListFilter) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM fieldline_jobs WHERE tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	// Retention gating: trashed rows need ShowDeleted, archived (and not
	// trashed) rows need IncludeArchived.
	if !filter.ShowDeleted {
		query += " AND deleted_at IS NULL"
	}
	if !filter.IncludeArchived {
		query += " AND (archived_at IS NULL OR deleted_at IS NOT NULL)"
	}

	// Half-open start time range. NULL start times never match a ranged
	// query, which SQL comparison semantics give us for free.
	if filter.From != nil {
		query += fmt.Sprintf(" AND start_time >= $%d", argIdx)
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND start_time < $%d", argIdx)
		args = append(args, *filter.To)
		argIdx++
	}

	if !filter.CreatedByID.IsNil() {
		query += fmt.Sprintf(" AND created_by_id = $%d", argIdx)
		args = append(args, filter.CreatedByID)
		argIdx++
	}
	if !filter.AssignedUserID.IsNil() {
		query += fmt.Sprintf(" AND assigned_to @> $%d::jsonb", argIdx)
		args = append(args, fmt.Sprintf(`[{"user_id":%q}]`, filter.AssignedUserID.String()))
		argIdx++
	}
	if !filter.SeriesID.IsNil() {
		query += fmt.Sprintf(" AND series_id = $%d", argIdx)
		args = append(args, filter.SeriesID)
		argIdx++
	}

	query += " ORDER BY start_time ASC NULLS LAST, created_at ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fieldline/postgres: list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListSeries returns all occurrences of one series, ordered by start.
func (s *Store) ListSeries(ctx context.Context, tenantID id.TenantID, seriesID id.SeriesID) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM fieldline_jobs
		WHERE tenant_id = $1 AND series_id = $2
		ORDER BY start_time ASC NULLS LAST, created_at ASC`,
		tenantID, seriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("fieldline/postgres: list series: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListActiveBetween returns active jobs whose window overlaps the
// half-open range [from, to).
func (s *Store) ListActiveBetween(ctx context.Context, tenantID id.TenantID, from, to time.Time) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM fieldline_jobs
		WHERE tenant_id = $1
		  AND archived_at IS NULL AND deleted_at IS NULL
		  AND start_time < $3 AND end_time > $2
		ORDER BY start_time ASC, created_at ASC`,
		tenantID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("fieldline/postgres: list active between: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListArchiveCandidates returns active jobs whose end time is before the
// cutoff.
func (s *Store) ListArchiveCandidates(ctx context.Context, tenantID id.TenantID, cutoff time.Time) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM fieldline_jobs
		WHERE tenant_id = $1
		  AND archived_at IS NULL AND deleted_at IS NULL
		  AND end_time < $2
		ORDER BY start_time ASC, created_at ASC`,
		tenantID, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("fieldline/postgres: list archive candidates: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListPurgeCandidates returns archived, non-trashed jobs whose ArchivedAt
// is before the cutoff.
func (s *Store) ListPurgeCandidates(ctx context.Context, tenantID id.TenantID, cutoff time.Time) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM fieldline_jobs
		WHERE tenant_id = $1
		  AND archived_at IS NOT NULL AND deleted_at IS NULL
		  AND archived_at < $2
		ORDER BY archived_at ASC, created_at ASC`,
		tenantID, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("fieldline/postgres: list purge candidates: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ArchiveJobs stamps ArchivedAt on the given jobs. Already-archived jobs
// keep their original stamp.
func (s *Store) ArchiveJobs(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID, at time.Time) error {
	if len(jobIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE fieldline_jobs
		SET archived_at = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = ANY($2) AND archived_at IS NULL`,
		tenantID, idStrings(jobIDs), at,
	)
	if err != nil {
		return fmt.Errorf("fieldline/postgres: archive jobs: %w", err)
	}
	return nil
}

// RestoreJobs clears ArchivedAt on the given jobs.
func (s *Store) RestoreJobs(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) error {
	if len(jobIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE fieldline_jobs
		SET archived_at = NULL, updated_at = NOW()
		WHERE tenant_id = $1 AND id = ANY($2) AND archived_at IS NOT NULL`,
		tenantID, idStrings(jobIDs),
	)
	if err != nil {
		return fmt.Errorf("fieldline/postgres: restore jobs: %w", err)
	}
	return nil
}

// CountJobs returns the number of the tenant's jobs matching the filter.
func (s *Store) CountJobs(ctx context.Context, tenantID id.TenantID, filter job.CountFilter) (int64, error) {
	query := `SELECT COUNT(*) FROM fieldline_jobs WHERE tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
	}
	switch filter.Retention {
	case job.RetentionActive:
		query += " AND archived_at IS NULL AND deleted_at IS NULL"
	case job.RetentionArchived:
		query += " AND archived_at IS NOT NULL AND deleted_at IS NULL"
	case job.RetentionTrashed:
		query += " AND deleted_at IS NOT NULL"
	}

	var count int64
	err := s.pool.QueryRow(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("fieldline/postgres: count jobs: %w", err)
	}
	return count, nil
}

// insertJob writes one job row through q, which is either the pool or an
// open transaction.
func insertJob(ctx context.Context, q querier, j *job.Job) error {
	assignedTo, err := job.EncodeAssignments(j.AssignedTo)
	if err != nil {
		return err
	}
	breaks, err := encodeBreaks(j.Breaks)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO fieldline_jobs (
			id, tenant_id, title, description,
			start_time, end_time, to_be_scheduled, status,
			archived_at, deleted_at,
			contact_id, service_id, quote_id, invoice_id, series_id, created_by_id,
			assigned_to, breaks, decline_reason,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10,
			$11, $12, $13, $14, $15, $16,
			$17, $18, $19,
			$20, $21
		)`,
		j.ID, j.TenantID, j.Title, j.Description,
		j.StartTime, j.EndTime, j.ToBeScheduled, string(j.Status),
		j.ArchivedAt, j.DeletedAt,
		j.ContactID, j.ServiceID, j.QuoteID, j.InvoiceID, j.SeriesID, j.CreatedByID,
		assignedTo, breaks, j.DeclineReason,
		j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fieldline.ErrJobAlreadyExists
		}
		return fmt.Errorf("fieldline/postgres: insert job: %w", err)
	}
	return nil
}

// scanJob scans a single job row. Column order follows jobColumns.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j          job.Job
		statusStr  string
		assignedTo []byte
		breaksRaw  []byte
	)
	err := row.Scan(
		&j.ID, &j.TenantID, &j.Title, &j.Description,
		&j.StartTime, &j.EndTime, &j.ToBeScheduled, &statusStr,
		&j.ArchivedAt, &j.DeletedAt,
		&j.ContactID, &j.ServiceID, &j.QuoteID, &j.InvoiceID, &j.SeriesID, &j.CreatedByID,
		&assignedTo, &breaksRaw, &j.DeclineReason,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = job.WorkStatus(statusStr)

	j.AssignedTo, err = job.NormalizeAssignments(assignedTo)
	if err != nil {
		return nil, err
	}
	j.Breaks, err = decodeBreaks(breaksRaw)
	if err != nil {
		return nil, err
	}

	return &j, nil
}

// collectJobs collects all jobs from query rows.
func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("fieldline/postgres: scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fieldline/postgres: iterate job rows: %w", err)
	}
	return jobs, nil
}

// encodeBreaks marshals breaks for the jsonb column. Empty encodes as the
// empty array so the column stays NOT NULL.
func encodeBreaks(breaks []job.Break) ([]byte, error) {
	if len(breaks) == 0 {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(breaks)
	if err != nil {
		return nil, fmt.Errorf("fieldline/postgres: encode breaks: %w", err)
	}
	return data, nil
}

// decodeBreaks is the inverse of encodeBreaks; the empty array decodes to
// nil.
func decodeBreaks(raw []byte) ([]job.Break, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var breaks []job.Break
	if err := json.Unmarshal(raw, &breaks); err != nil {
		return nil, fmt.Errorf("fieldline/postgres: decode breaks: %w", err)
	}
	if len(breaks) == 0 {
		return nil, nil
	}
	return breaks, nil
}
