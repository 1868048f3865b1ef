package lifecycle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/authz"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
	"github.com/fieldline/fieldline/lifecycle"
)

// pendingBooking creates a job that awaits contractor confirmation.
func pendingBooking(t *testing.T, m *lifecycle.Manager, tenantID id.TenantID, actor authz.Actor) *job.Job {
	t.Helper()
	d := scheduledDraft(id.NewContactID(), at(2, 9), at(2, 10))
	d.Status = job.StatusPendingConfirmation

	return mustCreate(t, m, tenantID, actor, d)[0]
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	m, st, rec := newManager(t)
	tenantID := id.NewTenantID()
	actor := owner(tenantID)
	ctx := context.Background()

	pending := pendingBooking(t, m, tenantID, actor)

	confirmed, err := m.Confirm(ctx, tenantID, actor, pending.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed.Status != job.StatusScheduled {
		t.Errorf("status = %q, want scheduled", confirmed.Status)
	}

	stored, _ := st.GetJob(ctx, tenantID, pending.ID)
	if stored.Status != job.StatusScheduled {
		t.Errorf("stored status = %q, want scheduled", stored.Status)
	}
	if got := rec.lastConfirmed(); got == nil || got.ID != pending.ID {
		t.Errorf("JobConfirmed saw %v", got)
	}
}

func TestConfirmRequiresPendingStatus(t *testing.T) {
	t.Parallel()

	m, _, _ := newManager(t)
	tenantID := id.NewTenantID()
	actor := owner(tenantID)

	// Already scheduled: nothing to confirm.
	created := mustCreate(t, m, tenantID, actor, scheduledDraft(id.NewContactID(), at(2, 9), at(2, 10)))

	_, err := m.Confirm(context.Background(), tenantID, actor, created[0].ID)
	if !errors.Is(err, fieldline.ErrInvalidTransition) {
		t.Fatalf("Confirm on scheduled = %v, want ErrInvalidTransition", err)
	}
}

func TestDecline(t *testing.T) {
	t.Parallel()

	m, st, rec := newManager(t)
	tenantID := id.NewTenantID()
	actor := owner(tenantID)
	ctx := context.Background()

	pending := pendingBooking(t, m, tenantID, actor)

	declined, err := m.Decline(ctx, tenantID, actor, pending.ID, "fully booked that week")
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if declined.Status != job.StatusCancelled {
		t.Errorf("status = %q, want cancelled", declined.Status)
	}
	if declined.DeclineReason != "fully booked that week" {
		t.Errorf("decline reason = %q", declined.DeclineReason)
	}

	stored, _ := st.GetJob(ctx, tenantID, pending.ID)
	if stored.DeclineReason != "fully booked that week" {
		t.Errorf("stored reason = %q", stored.DeclineReason)
	}
	if got := rec.lastDeclined(); got != "fully booked that week" {
		t.Errorf("JobDeclined saw reason %q", got)
	}
}

func TestDeclineRequiresReason(t *testing.T) {
	t.Parallel()

	m, _, _ := newManager(t)
	tenantID := id.NewTenantID()
	actor := owner(tenantID)

	pending := pendingBooking(t, m, tenantID, actor)

	_, err := m.Decline(context.Background(), tenantID, actor, pending.ID, "")
	var verr *fieldline.ValidationError
	if !errors.As(err, &verr) || verr.Field != "reason" {
		t.Fatalf("Decline without reason = %v, want reason ValidationError", err)
	}
}

func TestConfirmArchivedRejected(t *testing.T) {
	t.Parallel()

	m, _, _ := newManager(t)
	tenantID := id.NewTenantID()
	actor := owner(tenantID)
	ctx := context.Background()

	pending := pendingBooking(t, m, tenantID, actor)
	if err := m.Archive(ctx, tenantID, actor, pending.ID, false); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	if _, err := m.Confirm(ctx, tenantID, actor, pending.ID); !errors.Is(err, fieldline.ErrJobArchived) {
		t.Fatalf("Confirm on archived = %v, want ErrJobArchived", err)
	}
	if _, err := m.Decline(ctx, tenantID, actor, pending.ID, "too late"); !errors.Is(err, fieldline.ErrJobArchived) {
		t.Fatalf("Decline on archived = %v, want ErrJobArchived", err)
	}
}
