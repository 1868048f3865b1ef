package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/sweep"
)

const runColumns = `id, archived_count, deleted_count, errors, dry_run,
	started_at, finished_at, created_at, updated_at`

// CreateRun records one sweep execution.
func (s *Store) CreateRun(ctx context.Context, r *sweep.Run) error {
	errs, err := encodeSweepErrors(r.Report.Errors)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fieldline_sweep_runs (
			id, archived_count, deleted_count, errors, dry_run,
			started_at, finished_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Report.ArchivedCount, r.Report.DeletedCount, errs, r.Report.DryRun,
		r.Report.StartedAt.UTC(), r.Report.FinishedAt.UTC(), r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fieldline.ErrRunAlreadyExists
		}
		return fmt.Errorf("fieldline/sqlite: create run: %w", err)
	}
	return nil
}

// GetRun retrieves one sweep run by id.
func (s *Store) GetRun(ctx context.Context, runID id.SweepRunID) (*sweep.Run, error) {
	var (
		r       sweep.Run
		errsRaw []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM fieldline_sweep_runs WHERE id = ?`,
		runID,
	).Scan(
		&r.ID, &r.Report.ArchivedCount, &r.Report.DeletedCount, &errsRaw, &r.Report.DryRun,
		&r.Report.StartedAt, &r.Report.FinishedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, fieldline.ErrRunNotFound
		}
		return nil, fmt.Errorf("fieldline/sqlite: get run: %w", err)
	}

	r.Report.Errors, err = decodeSweepErrors(errsRaw)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns sweep runs, most recent first. A limit of zero or less
// returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*sweep.Run, error) {
	query := `SELECT ` + runColumns + ` FROM fieldline_sweep_runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fieldline/sqlite: list runs: %w", err)
	}
	defer rows.Close()

	var runs []*sweep.Run
	for rows.Next() {
		var (
			r       sweep.Run
			errsRaw []byte
		)
		scanErr := rows.Scan(
			&r.ID, &r.Report.ArchivedCount, &r.Report.DeletedCount, &errsRaw, &r.Report.DryRun,
			&r.Report.StartedAt, &r.Report.FinishedAt, &r.CreatedAt, &r.UpdatedAt,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("fieldline/sqlite: scan run row: %w", scanErr)
		}
		r.Report.Errors, scanErr = decodeSweepErrors(errsRaw)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fieldline/sqlite: iterate run rows: %w", err)
	}
	return runs, nil
}

// ListTenants returns the distinct tenants that own at least one job.
func (s *Store) ListTenants(ctx context.Context) ([]id.TenantID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT tenant_id FROM fieldline_jobs ORDER BY tenant_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("fieldline/sqlite: list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []id.TenantID
	for rows.Next() {
		var tenantID id.TenantID
		if scanErr := rows.Scan(&tenantID); scanErr != nil {
			return nil, fmt.Errorf("fieldline/sqlite: scan tenant row: %w", scanErr)
		}
		tenants = append(tenants, tenantID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fieldline/sqlite: iterate tenant rows: %w", err)
	}
	return tenants, nil
}

// encodeSweepErrors marshals the per-job error list. Empty encodes as the
// empty array so the column stays NOT NULL.
func encodeSweepErrors(errs []fieldline.SweepError) (string, error) {
	if len(errs) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(errs)
	if err != nil {
		return "", fmt.Errorf("fieldline/sqlite: encode sweep errors: %w", err)
	}
	return string(data), nil
}

// decodeSweepErrors is the inverse of encodeSweepErrors; the empty array
// decodes to nil.
func decodeSweepErrors(raw []byte) ([]fieldline.SweepError, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var errs []fieldline.SweepError
	if err := json.Unmarshal(raw, &errs); err != nil {
		return nil, fmt.Errorf("fieldline/sqlite: decode sweep errors: %w", err)
	}
	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}
