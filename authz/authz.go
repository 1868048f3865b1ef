// Package authz evaluates whether an actor may perform a job mutation.
// Decisions combine tenant scoping, role, per-user capability flags, and
// the tenant's subscription tier. Every deny carries a caller-facing
// reason naming the specific ground, never a generic refusal.
package authz

import (
	"context"

	"github.com/fieldline/fieldline/id"
)

// Role is an actor's position in the tenant.
type Role string

const (
	// RoleOwner is the account owner.
	RoleOwner Role = "owner"
	// RoleAdmin manages the account alongside the owner.
	RoleAdmin Role = "admin"
	// RoleEmployee is a regular team member with configurable capabilities.
	RoleEmployee Role = "employee"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleEmployee:
		return true
	default:
		return false
	}
}

// Elevated reports whether the role carries full management rights.
func (r Role) Elevated() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Capabilities are the per-user permission flags. They are configurable
// for employees; owners and admins always hold all of them.
type Capabilities struct {
	CanCreateJobs           bool `json:"can_create_jobs"`
	CanScheduleAppointments bool `json:"can_schedule_appointments"`
	CanSeeOtherJobs         bool `json:"can_see_other_jobs"`
}

// FullCapabilities returns every flag set.
func FullCapabilities() Capabilities {
	return Capabilities{
		CanCreateJobs:           true,
		CanScheduleAppointments: true,
		CanSeeOtherJobs:         true,
	}
}

// Tier is the tenant's subscription level. Team features (assigning jobs
// to other users) require TierTeam.
type Tier string

const (
	// TierSingle is the one-person plan.
	TierSingle Tier = "single"
	// TierTeam unlocks multi-user features.
	TierTeam Tier = "team"
)

// SubscriptionSource resolves a tenant's subscription tier. Implemented by
// the billing collaborator.
type SubscriptionSource interface {
	Tier(ctx context.Context, tenantID id.TenantID) (Tier, error)
}

// StaticTier is a SubscriptionSource that always answers with one tier.
// Useful for tests and single-plan installs.
type StaticTier Tier

// Tier implements SubscriptionSource.
func (t StaticTier) Tier(context.Context, id.TenantID) (Tier, error) {
	return Tier(t), nil
}

// Actor is the authenticated user a mutation runs as.
type Actor struct {
	UserID       id.UserID
	TenantID     id.TenantID
	Role         Role
	Capabilities Capabilities
}

// EffectiveCapabilities applies the role default: owners and admins hold
// every flag regardless of what was stored; employees keep their
// configured flags.
func (a Actor) EffectiveCapabilities() Capabilities {
	if a.Role.Elevated() {
		return FullCapabilities()
	}

	return a.Capabilities
}

// SeesOtherJobs reports whether listings should include jobs the actor
// did not create.
func (a Actor) SeesOtherJobs() bool {
	return a.EffectiveCapabilities().CanSeeOtherJobs
}
