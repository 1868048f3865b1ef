package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

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
	return insertRule(ctx, s.pool, r)
}

// GetRule retrieves a rule by id within the tenant.
func (s *Store) GetRule(ctx context.Context, tenantID id.TenantID, seriesID id.SeriesID) (*recurrence.Rule, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM fieldline_rules WHERE tenant_id = $1 AND id = $2`,
		tenantID, seriesID,
	)

	r, err := scanRule(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fieldline.ErrRuleNotFound
		}
		return nil, fmt.Errorf("fieldline/postgres: get rule: %w", err)
	}
	return r, nil
}

// DeleteRule removes a rule by id within the tenant.
func (s *Store) DeleteRule(ctx context.Context, tenantID id.TenantID, seriesID id.SeriesID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM fieldline_rules WHERE tenant_id = $1 AND id = $2`,
		tenantID, seriesID,
	)
	if err != nil {
		return fmt.Errorf("fieldline/postgres: delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fieldline.ErrRuleNotFound
	}
	return nil
}

// ListRules returns the tenant's rules ordered by creation time.
func (s *Store) ListRules(ctx context.Context, tenantID id.TenantID) ([]*recurrence.Rule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+ruleColumns+` FROM fieldline_rules
		WHERE tenant_id = $1
		ORDER BY created_at ASC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("fieldline/postgres: list rules: %w", err)
	}
	defer rows.Close()

	var rules []*recurrence.Rule
	for rows.Next() {
		r, scanErr := scanRule(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("fieldline/postgres: scan rule row: %w", scanErr)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fieldline/postgres: iterate rule rows: %w", err)
	}
	return rules, nil
}

// insertRule writes one rule row through q.
func insertRule(ctx context.Context, q querier, r *recurrence.Rule) error {
	daysOfWeek, err := encodeDaysOfWeek(r.DaysOfWeek)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO fieldline_rules (
			id, tenant_id, frequency, repeat_interval,
			occurrence_count, until_date, days_of_week, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.TenantID, string(r.Frequency), r.Interval,
		r.Count, r.UntilDate, daysOfWeek, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fieldline.ErrRuleAlreadyExists
		}
		return fmt.Errorf("fieldline/postgres: insert rule: %w", err)
	}
	return nil
}

// scanRule scans a single rule row. Column order follows ruleColumns.
func scanRule(row pgx.Row) (*recurrence.Rule, error) {
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
			return nil, fmt.Errorf("fieldline/postgres: decode days of week: %w", err)
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
		return nil, fmt.Errorf("fieldline/postgres: encode days of week: %w", err)
	}
	return data, nil
}
