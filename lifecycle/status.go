package lifecycle

import (
	"context"
	"fmt"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/authz"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
	"github.com/fieldline/fieldline/middleware"
)

// Confirm moves a pending-confirmation job to scheduled, making the
// booking firm.
func (m *Manager) Confirm(ctx context.Context, tenantID id.TenantID, actor authz.Actor, jobID id.JobID) (*job.Job, error) {
	return m.transition(ctx, "job.confirm", tenantID, actor, jobID, job.StatusScheduled, "")
}

// Decline moves a pending-confirmation job to cancelled. The reason is
// required and recorded on the job; the contact is notified through the
// notify extension, fire-and-forget.
func (m *Manager) Decline(ctx context.Context, tenantID id.TenantID, actor authz.Actor, jobID id.JobID, reason string) (*job.Job, error) {
	if reason == "" {
		return nil, fieldline.NewValidationError("reason", "a decline reason is required")
	}

	return m.transition(ctx, "job.decline", tenantID, actor, jobID, job.StatusCancelled, reason)
}

// transition applies the confirm/decline status change shared path.
func (m *Manager) transition(ctx context.Context, opName string, tenantID id.TenantID, actor authz.Actor, jobID id.JobID, to job.WorkStatus, declineReason string) (*job.Job, error) {
	var updated *job.Job
	op := &middleware.Op{Name: opName, TenantID: tenantID, JobID: jobID}
	err := m.run(ctx, op, func(ctx context.Context) error {
		existing, err := m.store.GetJob(ctx, tenantID, jobID)
		if err != nil {
			return err
		}
		req := authz.Request{Action: authz.ActionUpdate, TenantID: tenantID, Existing: existing}
		if err := m.authorize(ctx, actor, req); err != nil {
			return err
		}
		switch existing.Retention() {
		case job.RetentionTrashed:
			return fieldline.ErrJobTrashed
		case job.RetentionArchived:
			return fieldline.ErrJobArchived
		}
		if existing.Status != job.StatusPendingConfirmation {
			return fmt.Errorf("%w: %s is not awaiting confirmation", fieldline.ErrInvalidTransition, existing.Status)
		}

		next := existing.Clone()
		next.Status = to
		next.DeclineReason = declineReason
		if err := m.store.UpdateJob(ctx, next); err != nil {
			return persistFail(opName, err)
		}

		updated = next
		if to == job.StatusCancelled {
			m.extensions.EmitJobDeclined(ctx, next, declineReason)
		} else {
			m.extensions.EmitJobConfirmed(ctx, next)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}
