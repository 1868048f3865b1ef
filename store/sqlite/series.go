package sqlite

import (
	"context"
	"fmt"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
	"github.com/fieldline/fieldline/recurrence"
	"github.com/fieldline/fieldline/store"
)

// CreateSeries persists a rule and its expanded occurrences in a single
// transaction. Either everything lands or nothing does.
func (s *Store) CreateSeries(ctx context.Context, rule *recurrence.Rule, jobs []*job.Job) error {
	if rule == nil || len(jobs) == 0 {
		return fieldline.NewValidationError("series", "rule and at least one occurrence required")
	}
	if rule.TenantID.IsNil() {
		return fieldline.ErrTenantRequired
	}
	for _, j := range jobs {
		if j.TenantID.IsNil() {
			return fieldline.ErrTenantRequired
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("fieldline/sqlite: begin create series: %w", err)
	}
	// Rollback is a no-op once Commit succeeds.
	defer tx.Rollback() //nolint:errcheck

	if err := insertRule(ctx, tx, rule); err != nil {
		return err
	}
	for _, j := range jobs {
		if err := insertJob(ctx, tx, j); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("fieldline/sqlite: commit create series: %w", err)
	}
	return nil
}

// ReplaceFutureOccurrences deletes the tail of a series and inserts its
// replacements in a single transaction. The old rule is removed when no
// occurrence references it afterwards.
func (s *Store) ReplaceFutureOccurrences(ctx context.Context, tenantID id.TenantID, split store.SeriesSplit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("fieldline/sqlite: begin replace occurrences: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if len(split.DeleteIDs) > 0 {
		query := `DELETE FROM fieldline_jobs WHERE tenant_id = ? AND id IN (` + placeholders(len(split.DeleteIDs)) + `)`
		args := make([]any, 0, len(split.DeleteIDs)+1)
		args = append(args, tenantID)
		for _, jobID := range split.DeleteIDs {
			args = append(args, jobID)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("fieldline/sqlite: delete occurrences: %w", err)
		}
	}

	if !split.SeriesID.IsNil() {
		var remaining bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM fieldline_jobs WHERE tenant_id = ? AND series_id = ?)`,
			tenantID, split.SeriesID,
		).Scan(&remaining)
		if err != nil {
			return fmt.Errorf("fieldline/sqlite: check series references: %w", err)
		}
		if !remaining {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM fieldline_rules WHERE tenant_id = ? AND id = ?`,
				tenantID, split.SeriesID,
			)
			if err != nil {
				return fmt.Errorf("fieldline/sqlite: delete orphaned rule: %w", err)
			}
		}
	}

	if split.NewRule != nil {
		if err := insertRule(ctx, tx, split.NewRule); err != nil {
			return err
		}
	}
	for _, j := range split.Replacements {
		if err := insertJob(ctx, tx, j); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("fieldline/sqlite: commit replace occurrences: %w", err)
	}
	return nil
}
