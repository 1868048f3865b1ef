package recurrence

import (
	"context"

	"github.com/fieldline/fieldline/id"
)

// SeriesStore defines the persistence contract for recurrence rules.
// Rules are tenant-owned; implementations must never match rows across
// tenants.
type SeriesStore interface {
	// CreateRule persists a new rule.
	CreateRule(ctx context.Context, r *Rule) error

	// GetRule retrieves a rule by id within the tenant.
	GetRule(ctx context.Context, tenantID id.TenantID, ruleID id.SeriesID) (*Rule, error)

	// DeleteRule removes a rule. Jobs referencing it keep their SeriesID;
	// callers delete rules only once no occurrence references them.
	DeleteRule(ctx context.Context, tenantID id.TenantID, ruleID id.SeriesID) error

	// ListRules returns the tenant's rules ordered by creation time.
	ListRules(ctx context.Context, tenantID id.TenantID) ([]*Rule, error)
}
