package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fieldline/fieldline/directory"
	"github.com/fieldline/fieldline/ext"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*Extension)(nil)
	_ ext.JobsCreated  = (*Extension)(nil)
	_ ext.JobUpdated   = (*Extension)(nil)
	_ ext.JobConfirmed = (*Extension)(nil)
	_ ext.JobDeclined  = (*Extension)(nil)
)

// timeFormat renders a job window in notification bodies.
const timeFormat = "Mon, Jan 2 2006 at 3:04 PM"

// fallbackContactName is used when the contact cannot be resolved.
const fallbackContactName = "The customer"

// Extension bridges lifecycle events to outbound notifications.
// Confirmations and declines notify the job's creator; assignment
// changes notify the assigned users. Send failures are logged and never
// propagated — a lost notification must not roll back the mutation that
// triggered it.
type Extension struct {
	notifier directory.Notifier
	contacts directory.ContactDirectory // nil = bodies fall back to a generic name
	enabled  map[directory.NotificationKind]bool
	logger   *slog.Logger
}

// New creates an Extension that delivers through the provided Notifier.
func New(n directory.Notifier, opts ...Option) *Extension {
	e := &Extension{
		notifier: n,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "notify-hook" }

// ── Confirmation hooks ──────────────────────────────

// OnJobConfirmed implements ext.JobConfirmed.
func (e *Extension) OnJobConfirmed(ctx context.Context, j *job.Job) error {
	if !e.kindEnabled(directory.NotifyJobConfirmed) {
		return nil
	}
	name := e.contactName(ctx, j.TenantID, j.ContactID)
	e.send(ctx, directory.Notification{
		TenantID:  j.TenantID,
		JobID:     j.ID,
		ContactID: j.ContactID,
		UserID:    j.CreatedByID,
		Kind:      directory.NotifyJobConfirmed,
		Subject:   fmt.Sprintf("Appointment confirmed: %s", j.Title),
		Body:      fmt.Sprintf("%s confirmed %q for %s.", name, j.Title, window(j)),
	})
	return nil
}

// OnJobDeclined implements ext.JobDeclined.
func (e *Extension) OnJobDeclined(ctx context.Context, j *job.Job, reason string) error {
	if !e.kindEnabled(directory.NotifyJobDeclined) {
		return nil
	}
	name := e.contactName(ctx, j.TenantID, j.ContactID)
	body := fmt.Sprintf("%s declined %q.", name, j.Title)
	if reason != "" {
		body = fmt.Sprintf("%s Reason: %s", body, reason)
	}
	e.send(ctx, directory.Notification{
		TenantID:  j.TenantID,
		JobID:     j.ID,
		ContactID: j.ContactID,
		UserID:    j.CreatedByID,
		Kind:      directory.NotifyJobDeclined,
		Subject:   fmt.Sprintf("Appointment declined: %s", j.Title),
		Body:      body,
	})
	return nil
}

// ── Assignment hooks ────────────────────────────────

// OnJobsCreated implements ext.JobsCreated. Each assigned user gets one
// notification per create, even when the create produced a whole series.
func (e *Extension) OnJobsCreated(ctx context.Context, jobs []*job.Job) error {
	if !e.kindEnabled(directory.NotifyAssignmentChanged) {
		return nil
	}

	// Batch per user so a 50-occurrence series does not fan out into 50
	// messages per assignee.
	type perUser struct {
		first *job.Job
		count int
	}
	byUser := make(map[id.UserID]*perUser)
	var order []id.UserID
	for _, j := range jobs {
		for _, a := range j.AssignedTo {
			pu, ok := byUser[a.UserID]
			if !ok {
				pu = &perUser{first: j}
				byUser[a.UserID] = pu
				order = append(order, a.UserID)
			}
			pu.count++
		}
	}

	for _, userID := range order {
		pu := byUser[userID]
		n := directory.Notification{
			TenantID: pu.first.TenantID,
			JobID:    pu.first.ID,
			UserID:   userID,
			Kind:     directory.NotifyAssignmentChanged,
		}
		if pu.count == 1 {
			n.Subject = fmt.Sprintf("New assignment: %s", pu.first.Title)
			n.Body = fmt.Sprintf("You are assigned to %q on %s.", pu.first.Title, window(pu.first))
		} else {
			n.Subject = fmt.Sprintf("New assignments: %s", pu.first.Title)
			n.Body = fmt.Sprintf("You are assigned to %d occurrences of %q, starting %s.",
				pu.count, pu.first.Title, window(pu.first))
		}
		e.send(ctx, n)
	}
	return nil
}

// OnJobUpdated implements ext.JobUpdated. Every user assigned after the
// update is told the schedule changed.
func (e *Extension) OnJobUpdated(ctx context.Context, j *job.Job) error {
	if !e.kindEnabled(directory.NotifyAssignmentChanged) {
		return nil
	}
	for _, a := range j.AssignedTo {
		e.send(ctx, directory.Notification{
			TenantID: j.TenantID,
			JobID:    j.ID,
			UserID:   a.UserID,
			Kind:     directory.NotifyAssignmentChanged,
			Subject:  fmt.Sprintf("Schedule updated: %s", j.Title),
			Body:     fmt.Sprintf("%q is now %s.", j.Title, window(j)),
		})
	}
	return nil
}

// ── Internal helpers ────────────────────────────────

func (e *Extension) kindEnabled(kind directory.NotificationKind) bool {
	return e.enabled == nil || e.enabled[kind]
}

// contactName resolves the contact's display name, falling back to a
// generic form when no directory is wired or the lookup fails.
func (e *Extension) contactName(ctx context.Context, tenantID id.TenantID, contactID id.ContactID) string {
	if e.contacts == nil || contactID.IsNil() {
		return fallbackContactName
	}
	ref, err := e.contacts.GetContact(ctx, tenantID, contactID)
	if err != nil {
		e.logger.Debug("notify: contact lookup failed",
			slog.String("contact_id", contactID.String()),
			slog.String("error", err.Error()),
		)
		return fallbackContactName
	}
	return ref.Name
}

// window describes when the job happens, in words a recipient can read.
func window(j *job.Job) string {
	if !j.HasWindow() {
		return "a date to be scheduled"
	}
	return j.StartTime.Format(timeFormat)
}

// send delivers one notification, logging failures instead of returning
// them.
func (e *Extension) send(ctx context.Context, n directory.Notification) {
	if err := e.notifier.Send(ctx, n); err != nil {
		e.logger.Warn("notify: failed to send notification",
			slog.String("kind", string(n.Kind)),
			slog.String("job_id", n.JobID.String()),
			slog.String("error", err.Error()),
		)
	}
}
