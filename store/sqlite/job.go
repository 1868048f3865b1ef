package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

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

// execer is the subset of *sql.DB and *sql.Tx the write helpers need, so
// series writes can reuse them inside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// rowScanner abstracts over *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateJob persists a new job.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	if j.TenantID.IsNil() {
		return fieldline.ErrTenantRequired
	}
	return insertJob(ctx, s.db, j)
}

// GetJob retrieves a job by id within the tenant.
func (s *Store) GetJob(ctx context.Context, tenantID id.TenantID, jobID id.JobID) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM fieldline_jobs WHERE tenant_id = ? AND id = ?`,
		tenantID, jobID,
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fieldline.ErrJobNotFound
		}
		return nil, fmt.Errorf("fieldline/sqlite: get job: %w", err)
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

	res, err := s.db.ExecContext(ctx, `
		UPDATE fieldline_jobs SET
			title = ?, description = ?,
			start_time = ?, end_time = ?, to_be_scheduled = ?, status = ?,
			archived_at = ?, deleted_at = ?,
			contact_id = ?, service_id = ?, quote_id = ?, invoice_id = ?,
			series_id = ?, created_by_id = ?,
			assigned_to = ?, breaks = ?, decline_reason = ?,
			updated_at = ?
		WHERE tenant_id = ? AND id = ?`,
		j.Title, j.Description,
		utcPtr(j.StartTime), utcPtr(j.EndTime), j.ToBeScheduled, string(j.Status),
		utcPtr(j.ArchivedAt), utcPtr(j.DeletedAt),
		j.ContactID, j.ServiceID, j.QuoteID, j.InvoiceID,
		j.SeriesID, j.CreatedByID,
		string(assignedTo), string(breaks), j.DeclineReason,
		time.Now().UTC(),
		j.TenantID, j.ID,
	)
	if err != nil {
		return fmt.Errorf("fieldline/sqlite: update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fieldline/sqlite: update job: %w", err)
	}
	if affected == 0 {
		return fieldline.ErrJobNotFound
	}
	return nil
}

// DeleteJob removes a job row entirely (hard delete).
func (s *Store) DeleteJob(ctx context.Context, tenantID id.TenantID, jobID id.JobID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM fieldline_jobs WHERE tenant_id = ? AND id = ?`,
		tenantID, jobID,
	)
	if err != nil {
		return fmt.Errorf("fieldline/sqlite: delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fieldline/sqlite: delete job: %w", err)
	}
	if affected == 0 {
		return fieldline.ErrJobNotFound
	}
	return nil
}

// DeleteJobs removes several job rows entirely. Missing ids are skipped.
func (s *Store) DeleteJobs(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) error {
	if len(jobIDs) == 0 {
		return nil
	}
	query := `DELETE FROM fieldline_jobs WHERE tenant_id = ? AND id IN (` + placeholders(len(jobIDs)) + `)`
	args := make([]any, 0, len(jobIDs)+1)
	args = append(args, tenantID)
	for _, jobID := range jobIDs {
		args = append(args, jobID)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("fieldline/sqlite: delete jobs: %w", err)
	}
	return nil
}

// ListJobs returns the tenant's jobs matching the filter.
func (s *Store) ListJobs(ctx context.Context, tenantID id.TenantID, filter job.ListFilter) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM fieldline_jobs WHERE tenant_id = ?`
	args := []any{tenantID}

	// Retention gating: trashed rows need ShowDeleted, archived (and not
	// trashed) rows need IncludeArchived.
	if !filter.ShowDeleted {
		query += " AND deleted_at IS NULL"
	}
	if !filter.IncludeArchived {
		query += " AND (archived_at IS NULL OR deleted_at IS NOT NULL)"
	}

	// Half-open start time range. NULL start times never match a ranged
	// query.
	if filter.From != nil {
		query += " AND start_time >= ?"
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		query += " AND start_time < ?"
		args = append(args, filter.To.UTC())
	}

	if !filter.CreatedByID.IsNil() {
		query += " AND created_by_id = ?"
		args = append(args, filter.CreatedByID)
	}
	if !filter.AssignedUserID.IsNil() {
		query += ` AND EXISTS (
			SELECT 1 FROM json_each(fieldline_jobs.assigned_to)
			WHERE json_extract(value, '$.user_id') = ?
		)`
		args = append(args, filter.AssignedUserID)
	}
	if !filter.SeriesID.IsNil() {
		query += " AND series_id = ?"
		args = append(args, filter.SeriesID)
	}

	query += " ORDER BY start_time ASC NULLS LAST, created_at ASC"

	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1 // no limit, offset only
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fieldline/sqlite: list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListSeries returns all occurrences of one series, ordered by start.
func (s *Store) ListSeries(ctx context.Context, tenantID id.TenantID, seriesID id.SeriesID) ([]*job.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM fieldline_jobs
		WHERE tenant_id = ? AND series_id = ?
		ORDER BY start_time ASC NULLS LAST, created_at ASC`,
		tenantID, seriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("fieldline/sqlite: list series: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListActiveBetween returns active jobs whose window overlaps the
// half-open range [from, to).
func (s *Store) ListActiveBetween(ctx context.Context, tenantID id.TenantID, from, to time.Time) ([]*job.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM fieldline_jobs
		WHERE tenant_id = ?
		  AND archived_at IS NULL AND deleted_at IS NULL
		  AND start_time < ? AND end_time > ?
		ORDER BY start_time ASC, created_at ASC`,
		tenantID, to.UTC(), from.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("fieldline/sqlite: list active between: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListArchiveCandidates returns active jobs whose end time is before the
// cutoff.
func (s *Store) ListArchiveCandidates(ctx context.Context, tenantID id.TenantID, cutoff time.Time) ([]*job.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM fieldline_jobs
		WHERE tenant_id = ?
		  AND archived_at IS NULL AND deleted_at IS NULL
		  AND end_time < ?
		ORDER BY start_time ASC, created_at ASC`,
		tenantID, cutoff.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("fieldline/sqlite: list archive candidates: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListPurgeCandidates returns archived, non-trashed jobs whose ArchivedAt
// is before the cutoff.
func (s *Store) ListPurgeCandidates(ctx context.Context, tenantID id.TenantID, cutoff time.Time) ([]*job.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM fieldline_jobs
		WHERE tenant_id = ?
		  AND archived_at IS NOT NULL AND deleted_at IS NULL
		  AND archived_at < ?
		ORDER BY archived_at ASC, created_at ASC`,
		tenantID, cutoff.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("fieldline/sqlite: list purge candidates: %w", err)
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
	query := `UPDATE fieldline_jobs SET archived_at = ?, updated_at = ?
		WHERE tenant_id = ? AND id IN (` + placeholders(len(jobIDs)) + `) AND archived_at IS NULL`
	args := make([]any, 0, len(jobIDs)+3)
	args = append(args, at.UTC(), time.Now().UTC(), tenantID)
	for _, jobID := range jobIDs {
		args = append(args, jobID)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("fieldline/sqlite: archive jobs: %w", err)
	}
	return nil
}

// RestoreJobs clears ArchivedAt on the given jobs.
func (s *Store) RestoreJobs(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) error {
	if len(jobIDs) == 0 {
		return nil
	}
	query := `UPDATE fieldline_jobs SET archived_at = NULL, updated_at = ?
		WHERE tenant_id = ? AND id IN (` + placeholders(len(jobIDs)) + `) AND archived_at IS NOT NULL`
	args := make([]any, 0, len(jobIDs)+2)
	args = append(args, time.Now().UTC(), tenantID)
	for _, jobID := range jobIDs {
		args = append(args, jobID)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("fieldline/sqlite: restore jobs: %w", err)
	}
	return nil
}

// CountJobs returns the number of the tenant's jobs matching the filter.
func (s *Store) CountJobs(ctx context.Context, tenantID id.TenantID, filter job.CountFilter) (int64, error) {
	query := `SELECT COUNT(*) FROM fieldline_jobs WHERE tenant_id = ?`
	args := []any{tenantID}

	if filter.Status != "" {
		query += " AND status = ?"
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
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("fieldline/sqlite: count jobs: %w", err)
	}
	return count, nil
}

// insertJob writes one job row through q, which is either the database or
// an open transaction.
func insertJob(ctx context.Context, q execer, j *job.Job) error {
	assignedTo, err := job.EncodeAssignments(j.AssignedTo)
	if err != nil {
		return err
	}
	breaks, err := encodeBreaks(j.Breaks)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO fieldline_jobs (
			id, tenant_id, title, description,
			start_time, end_time, to_be_scheduled, status,
			archived_at, deleted_at,
			contact_id, service_id, quote_id, invoice_id, series_id, created_by_id,
			assigned_to, breaks, decline_reason,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.TenantID, j.Title, j.Description,
		utcPtr(j.StartTime), utcPtr(j.EndTime), j.ToBeScheduled, string(j.Status),
		utcPtr(j.ArchivedAt), utcPtr(j.DeletedAt),
		j.ContactID, j.ServiceID, j.QuoteID, j.InvoiceID, j.SeriesID, j.CreatedByID,
		string(assignedTo), string(breaks), j.DeclineReason,
		j.CreatedAt.UTC(), j.UpdatedAt.UTC(),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fieldline.ErrJobAlreadyExists
		}
		return fmt.Errorf("fieldline/sqlite: insert job: %w", err)
	}
	return nil
}

// scanJob scans a single job row. Column order follows jobColumns.
func scanJob(row rowScanner) (*job.Job, error) {
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
func collectJobs(rows *sql.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("fieldline/sqlite: scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fieldline/sqlite: iterate job rows: %w", err)
	}
	return jobs, nil
}

// encodeBreaks marshals breaks for the TEXT column. Empty encodes as the
// empty array so the column stays NOT NULL.
func encodeBreaks(breaks []job.Break) ([]byte, error) {
	if len(breaks) == 0 {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(breaks)
	if err != nil {
		return nil, fmt.Errorf("fieldline/sqlite: encode breaks: %w", err)
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
		return nil, fmt.Errorf("fieldline/sqlite: decode breaks: %w", err)
	}
	if len(breaks) == 0 {
		return nil, nil
	}
	return breaks, nil
}

// utcPtr normalizes an optional timestamp to UTC so stored strings
// compare correctly.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
