package job

import (
	"time"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/id"
)

// WorkStatus represents the work state of a job, independent of retention.
type WorkStatus string

const (
	// StatusPendingConfirmation means the booking awaits contractor
	// confirmation before it becomes firm.
	StatusPendingConfirmation WorkStatus = "pending_confirmation"
	// StatusScheduled means the job is confirmed and on the calendar.
	StatusScheduled WorkStatus = "scheduled"
	// StatusInProgress means work has started.
	StatusInProgress WorkStatus = "in_progress"
	// StatusCompleted means work finished. Terminal on the work axis.
	StatusCompleted WorkStatus = "completed"
	// StatusCancelled means the job was called off. Terminal.
	StatusCancelled WorkStatus = "cancelled"
)

// Valid reports whether s is a known work status.
func (s WorkStatus) Valid() bool {
	switch s {
	case StatusPendingConfirmation, StatusScheduled, StatusInProgress,
		StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the work-status transition s → next is
// legal. Cancellation is reachable from every pre-completed state.
func (s WorkStatus) CanTransitionTo(next WorkStatus) bool {
	switch s {
	case StatusPendingConfirmation:
		return next == StatusScheduled || next == StatusCancelled
	case StatusScheduled:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

// RetentionState is the derived position of a job on the retention axis.
type RetentionState string

const (
	// RetentionActive means the job is live: neither archived nor trashed.
	RetentionActive RetentionState = "active"
	// RetentionArchived means ArchivedAt is set and the job is out of all
	// default views but recoverable.
	RetentionArchived RetentionState = "archived"
	// RetentionTrashed means DeletedAt is set (soft). Hard deletion removes
	// the row entirely and has no state.
	RetentionTrashed RetentionState = "trashed"
)

// Job represents one schedulable unit of work owned by a tenant.
type Job struct {
	fieldline.Entity

	ID       id.JobID    `json:"id"`
	TenantID id.TenantID `json:"tenant_id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	ToBeScheduled bool       `json:"to_be_scheduled,omitempty"`

	Status WorkStatus `json:"status"`

	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`

	ContactID   id.ContactID `json:"contact_id"`
	ServiceID   id.ServiceID `json:"service_id,omitempty"`
	QuoteID     id.QuoteID   `json:"quote_id,omitempty"`
	InvoiceID   id.InvoiceID `json:"invoice_id,omitempty"`
	SeriesID    id.SeriesID  `json:"series_id,omitempty"`
	CreatedByID id.UserID    `json:"created_by_id,omitempty"`

	AssignedTo []Assignment `json:"assigned_to,omitempty"`
	Breaks     []Break      `json:"breaks,omitempty"`

	// DeclineReason is recorded when a pending_confirmation job is declined.
	DeclineReason string `json:"decline_reason,omitempty"`
}

// HasWindow reports whether the job has a concrete time window.
func (j *Job) HasWindow() bool {
	return j.StartTime != nil && j.EndTime != nil
}

// Retention derives the retention state from the lifecycle timestamps.
// DeletedAt wins over ArchivedAt: a trashed job stays trashed even though
// its ArchivedAt is still set from the archival step.
func (j *Job) Retention() RetentionState {
	switch {
	case j.DeletedAt != nil:
		return RetentionTrashed
	case j.ArchivedAt != nil:
		return RetentionArchived
	default:
		return RetentionActive
	}
}

// IsActive reports whether the job is on the live path: not archived, not
// trashed.
func (j *Job) IsActive() bool {
	return j.ArchivedAt == nil && j.DeletedAt == nil
}

// IsAssignedTo reports whether the job carries an assignment for the user.
func (j *Job) IsAssignedTo(userID id.UserID) bool {
	for i := range j.AssignedTo {
		if j.AssignedTo[i].UserID == userID {
			return true
		}
	}

	return false
}

// Validate checks the structural invariants common to create and update.
func (j *Job) Validate() error {
	if j.TenantID.IsNil() {
		return fieldline.NewValidationError("tenant_id", "required")
	}
	if j.Title == "" {
		return fieldline.NewValidationError("title", "required")
	}
	if j.ContactID.IsNil() {
		return fieldline.NewValidationError("contact_id", "required")
	}
	if j.ToBeScheduled && (j.StartTime != nil || j.EndTime != nil) {
		return fieldline.NewValidationError("to_be_scheduled", "unscheduled job must not carry times")
	}
	if (j.StartTime == nil) != (j.EndTime == nil) {
		return fieldline.NewValidationError("end_time", "start and end must be set together")
	}
	if j.HasWindow() && j.EndTime.Before(*j.StartTime) {
		return fieldline.NewValidationError("end_time", "must not precede start time")
	}
	if !j.Status.Valid() {
		return fieldline.NewValidationError("status", "unknown work status")
	}
	for i := range j.AssignedTo {
		if err := j.AssignedTo[i].Validate(); err != nil {
			return err
		}
	}
	for i := range j.Breaks {
		if err := j.Breaks[i].Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate cached rows.
func (j *Job) Clone() *Job {
	cp := *j
	cp.StartTime = copyTime(j.StartTime)
	cp.EndTime = copyTime(j.EndTime)
	cp.ArchivedAt = copyTime(j.ArchivedAt)
	cp.DeletedAt = copyTime(j.DeletedAt)
	if j.AssignedTo != nil {
		cp.AssignedTo = make([]Assignment, len(j.AssignedTo))
		for i := range j.AssignedTo {
			cp.AssignedTo[i] = *j.AssignedTo[i].clone()
		}
	}
	if j.Breaks != nil {
		cp.Breaks = append([]Break(nil), j.Breaks...)
	}

	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t

	return &v
}
