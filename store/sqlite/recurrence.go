package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/recurrence"
)

const ruleColumns = `id, tenant_id, frequency, repeat_interval,
	occurrence_count, until_date, days_of_week, created_at, updated_at`

// CreateRule persists a new recurrence rule.
func (s *Store) CreateRule(ctx context.Context, r *recurrence.Rule) error {
	if r.TenantID.IsNil() {
		return fieldline.ErrTenantRequired
	}
	return insertRule(ctx, s.db, r)
}

// GetRule retrieves a rule by id within the tenant.
func (s *Store) GetRule(ctx context.Context, tenantID id.TenantID, seriesID id.SeriesID) (*recurrence.Rule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM fieldline_rules WHERE tenant_id = ? AND id = ?`,
		tenantID, seriesID,
	)

	r, err := scanRule(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fieldline.ErrRuleNotFound
		}
		return nil, fmt.Errorf("fieldline/sqlite: get rule: %w", err)
	}
	return r, nil
}

// DeleteRule removes a rule by id within the tenant.
func (s *Store) DeleteRule(ctx context.Context, tenantID id.TenantID, seriesID id.SeriesID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM fieldline_rules WHERE tenant_id = ? AND id = ?`,
		tenantID, seriesID,
	)
	if err != nil {
		return fmt.Errorf("fieldline/sqlite: delete rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("fieldline/sqlite: delete rule: %w", err)
	}
	if affected == 0 {
		return fieldline.ErrRuleNotFound
	}
	return nil
}

// ListRules returns the tenant's rules ordered by creation time.
func (s *Store) ListRules(ctx context.Context, tenantID id.TenantID) ([]*recurrence.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM fieldline_rules
		WHERE tenant_id = ?
		ORDER BY created_at ASC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("fieldline/sqlite: list rules: %w", err)
	}
	defer rows.Close()

	var rules []*recurrence.Rule
	for rows.Next() {
		r, scanErr := scanRule(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("fieldline/sqlite: scan rule row: %w", scanErr)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fieldline/sqlite: iterate rule rows: %w", err)
	}
	return rules, nil
}

// insertRule writes one rule row through q.
func insertRule(ctx context.Context, q execer, r *recurrence.Rule) error {
	daysOfWeek, err := encodeDaysOfWeek(r.DaysOfWeek)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO fieldline_rules (
			id, tenant_id, frequency, repeat_interval,
			occurrence_count, until_date, days_of_week, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TenantID, string(r.Frequency), r.Interval,
		r.Count, utcPtr(r.UntilDate), daysOfWeek, r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fieldline.ErrRuleAlreadyExists
		}
		return fmt.Errorf("fieldline/sqlite: insert rule: %w", err)
	}
	return nil
}

// scanRule scans a single rule row. Column order follows ruleColumns.
func scanRule(row rowScanner) (*recurrence.Rule, error) {
	var (
		r            recurrence.Rule
		frequencyStr string
		daysRaw      []byte
	)
	err := row.Scan(
		&r.ID, &r.TenantID, &frequencyStr, &r.Interval,
		&r.Count, &r.UntilDate, &daysRaw, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Frequency = recurrence.Frequency(frequencyStr)

	if len(daysRaw) > 0 {
		var days []time.Weekday
		if err := json.Unmarshal(daysRaw, &days); err != nil {
			return nil, fmt.Errorf("fieldline/sqlite: decode days of week: %w", err)
		}
		if len(days) > 0 {
			r.DaysOfWeek = days
		}
	}

	return &r, nil
}

// encodeDaysOfWeek marshals the custom-frequency weekday set. Empty
// encodes as NULL.
func encodeDaysOfWeek(days []time.Weekday) (any, error) {
	if len(days) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(days)
	if err != nil {
		return nil, fmt.Errorf("fieldline/sqlite: encode days of week: %w", err)
	}
	return string(data), nil
}
