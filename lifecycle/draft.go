package lifecycle

import (
	"time"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/authz"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
	"github.com/fieldline/fieldline/recurrence"
)

// Draft is the caller's request for a new job. The Manager assigns ids and
// timestamps; a draft never carries them.
type Draft struct {
	Title       string
	Description string

	// StartTime and EndTime are the concrete window, set together.
	// ToBeScheduled true leaves both nil for a job booked without a slot.
	StartTime     *time.Time
	EndTime       *time.Time
	ToBeScheduled bool

	// Status is the initial work status. Empty defaults to scheduled;
	// booking flows that need contractor sign-off pass
	// job.StatusPendingConfirmation.
	Status job.WorkStatus

	ContactID id.ContactID
	ServiceID id.ServiceID
	QuoteID   id.QuoteID
	InvoiceID id.InvoiceID

	AssignedTo []job.Assignment
	Breaks     []job.Break

	// Recurrence turns the draft into a series: the draft window is the
	// first occurrence and every expansion inherits its duration. Only
	// Frequency, Interval, Count or UntilDate, and DaysOfWeek are read;
	// the Manager assigns the rule's id and tenant.
	Recurrence *recurrence.Rule
}

// CreateOptions tunes one Create call.
type CreateOptions struct {
	// Force persists the job even when the detector reports overlapping
	// bookings.
	Force bool
}

// job materializes the draft into a persistable row owned by the tenant
// and stamped with the acting user.
func (d Draft) job(tenantID id.TenantID, actor authz.Actor) *job.Job {
	status := d.Status
	if status == "" {
		status = job.StatusScheduled
	}

	j := &job.Job{
		Entity:        fieldline.NewEntity(),
		ID:            id.NewJobID(),
		TenantID:      tenantID,
		Title:         d.Title,
		Description:   d.Description,
		ToBeScheduled: d.ToBeScheduled,
		Status:        status,
		ContactID:     d.ContactID,
		ServiceID:     d.ServiceID,
		QuoteID:       d.QuoteID,
		InvoiceID:     d.InvoiceID,
		CreatedByID:   actor.UserID,
	}
	if d.StartTime != nil {
		start := *d.StartTime
		j.StartTime = &start
	}
	if d.EndTime != nil {
		end := *d.EndTime
		j.EndTime = &end
	}
	if len(d.AssignedTo) > 0 {
		j.AssignedTo = append([]job.Assignment(nil), d.AssignedTo...)
	}
	if len(d.Breaks) > 0 {
		j.Breaks = append([]job.Break(nil), d.Breaks...)
	}

	return j
}

// scheduled reports whether the draft carries a concrete window, which is
// what the guard's scheduling capability gates.
func (d Draft) scheduled() bool {
	return d.StartTime != nil && d.EndTime != nil
}
