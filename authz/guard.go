package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
)

// Action is the kind of mutation being attempted.
type Action string

const (
	// ActionCreate covers new jobs, recurring or not.
	ActionCreate Action = "create"
	// ActionUpdate covers edits, archive/restore, and status transitions.
	ActionUpdate Action = "update"
	// ActionDelete covers permanent deletion.
	ActionDelete Action = "delete"
)

// Deny reasons. These are caller-facing strings rendered directly in the
// UI, so their wording is part of the contract.
const (
	ReasonCrossTenant    = "job belongs to a different workspace"
	ReasonUnknownRole    = "unknown role"
	ReasonCannotCreate   = "you do not have permission to create jobs"
	ReasonCannotSchedule = "you do not have permission to schedule appointments"
	ReasonAssignRole     = "Only admins and owners can assign jobs to team members."
	ReasonAssignTier     = "A team subscription is required to assign jobs to team members."
	ReasonNotYourJob     = "you can only modify jobs you created"
)

// Request describes one attempted mutation for the guard.
type Request struct {
	// Action is what the caller wants to do.
	Action Action

	// TenantID is the owning tenant of the resource being touched.
	TenantID id.TenantID

	// Existing is the stored job for update/delete. Nil on create.
	Existing *job.Job

	// Scheduled is true when the payload carries a concrete start/end
	// window. Creating a scheduled job needs the scheduling capability;
	// an unscheduled (to-be-scheduled) job does not.
	Scheduled bool

	// Assigning is true when the payload leaves the job with one or more
	// assigned users.
	Assigning bool
}

// Guard is the authorization gate evaluated before every job mutation.
type Guard struct {
	subs   SubscriptionSource
	logger *slog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// New creates a Guard. subs resolves subscription tiers; passing nil
// defaults to TierSingle, which denies all assignment.
func New(subs SubscriptionSource, opts ...Option) *Guard {
	g := &Guard{
		subs:   subs,
		logger: slog.Default(),
	}
	if g.subs == nil {
		g.subs = StaticTier(TierSingle)
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Authorize decides one request. It returns nil to allow, a
// *fieldline.AuthzError to deny, or a wrapped lookup error when the
// subscription source fails.
//
// All rules must hold:
//  1. Creating requires the create or scheduling capability; a scheduled
//     payload additionally requires the scheduling capability.
//  2. Assigning users requires an elevated role and a team subscription.
//  3. Updating or deleting an existing job requires an elevated role, the
//     see-other-jobs capability, or being the job's creator.
//  4. The actor's tenant must match the resource tenant, always.
func (g *Guard) Authorize(ctx context.Context, actor Actor, req Request) error {
	if actor.TenantID.IsNil() || req.TenantID.IsNil() {
		return fieldline.ErrTenantRequired
	}
	if actor.TenantID.String() != req.TenantID.String() {
		return g.deny(actor, req, ReasonCrossTenant)
	}
	if !actor.Role.Valid() {
		return g.deny(actor, req, ReasonUnknownRole)
	}

	caps := actor.EffectiveCapabilities()

	switch req.Action {
	case ActionCreate:
		if !caps.CanCreateJobs && !caps.CanScheduleAppointments {
			return g.deny(actor, req, ReasonCannotCreate)
		}
		if req.Scheduled && !caps.CanScheduleAppointments {
			return g.deny(actor, req, ReasonCannotSchedule)
		}
	case ActionUpdate, ActionDelete:
		if req.Existing != nil && !g.mayTouch(actor, caps, req.Existing) {
			return g.deny(actor, req, ReasonNotYourJob)
		}
	}

	if req.Assigning {
		if !actor.Role.Elevated() {
			return g.deny(actor, req, ReasonAssignRole)
		}
		tier, err := g.subs.Tier(ctx, actor.TenantID)
		if err != nil {
			return fmt.Errorf("authz: subscription lookup: %w", err)
		}
		if tier != TierTeam {
			return g.deny(actor, req, ReasonAssignTier)
		}
	}

	return nil
}

// deny logs the refused request and returns the caller-facing error.
func (g *Guard) deny(actor Actor, req Request, reason string) error {
	g.logger.Debug("authorization denied",
		"action", string(req.Action),
		"tenant_id", req.TenantID.String(),
		"user_id", actor.UserID.String(),
		"role", string(actor.Role),
		"reason", reason)

	return fieldline.NewAuthzError(reason)
}

// mayTouch applies rule 3 to an existing job.
func (g *Guard) mayTouch(actor Actor, caps Capabilities, existing *job.Job) bool {
	if actor.Role.Elevated() {
		return true
	}
	if caps.CanSeeOtherJobs {
		return true
	}

	return !existing.CreatedByID.IsNil() && existing.CreatedByID.String() == actor.UserID.String()
}
