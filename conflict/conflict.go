// Package conflict detects overlapping bookings inside one tenant's
// calendar. Conflicts are advisory: the detector reports them, the caller
// decides whether to respect them.
package conflict

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/directory"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
)

// Window is a half-open candidate time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open windows intersect. Touching
// endpoints do not overlap: [10:00,11:00) and [11:00,12:00) are clear.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Conflict is one overlapping booking, annotated so the caller can render
// it without a second query.
type Conflict struct {
	JobID       id.JobID  `json:"job_id"`
	Title       string    `json:"title"`
	ContactName string    `json:"contact_name,omitempty"`
	Start       time.Time `json:"start_time"`
	End         time.Time `json:"end_time"`
}

// Error is the advisory signal carrying the full conflict set. The request
// was not persisted; retrying with force bypasses the check.
type Error struct {
	Conflicts []Conflict
}

func (e *Error) Error() string {
	if len(e.Conflicts) == 1 {
		return "fieldline: 1 scheduling conflict detected"
	}

	return fmt.Sprintf("fieldline: %d scheduling conflicts detected", len(e.Conflicts))
}

// JobSource is the read view the detector needs. Satisfied by job.Store.
type JobSource interface {
	ListActiveBetween(ctx context.Context, tenantID id.TenantID, from, to time.Time) ([]*job.Job, error)
}

// Detector finds overlapping active bookings for a tenant.
type Detector struct {
	source   JobSource
	contacts directory.ContactDirectory
	logger   *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithContacts supplies the contact lookup used to annotate conflicts.
// Without it, ContactName stays empty.
func WithContacts(contacts directory.ContactDirectory) Option {
	return func(d *Detector) { d.contacts = contacts }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// New creates a Detector reading from the given source.
func New(source JobSource, opts ...Option) *Detector {
	d := &Detector{
		source: source,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// FindConflicts returns every active job in the tenant whose window
// overlaps the candidate, ordered by start time. excludeJobID omits the job
// being edited from its own check; pass id.Nil when creating.
//
// A failed contact lookup degrades to an empty ContactName; the advisory
// surface never fails because an annotation was unavailable.
func (d *Detector) FindConflicts(ctx context.Context, tenantID id.TenantID, w Window, excludeJobID id.JobID) ([]Conflict, error) {
	if tenantID.IsNil() {
		return nil, fieldline.ErrTenantRequired
	}
	if w.End.Before(w.Start) {
		return nil, fieldline.NewValidationError("end_time", "must not precede start time")
	}
	if !w.End.After(w.Start) {
		// Empty candidate window overlaps nothing.
		return nil, nil
	}

	candidates, err := d.source.ListActiveBetween(ctx, tenantID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("conflict: list active jobs: %w", err)
	}

	return d.collect(ctx, tenantID, w, excludeJobID, candidates, nil), nil
}

// FindAssigneeConflicts is FindConflicts narrowed to jobs sharing at least
// one assigned user with the given set. An empty set behaves like
// FindConflicts.
func (d *Detector) FindAssigneeConflicts(ctx context.Context, tenantID id.TenantID, w Window, excludeJobID id.JobID, assignees []id.UserID) ([]Conflict, error) {
	if len(assignees) == 0 {
		return d.FindConflicts(ctx, tenantID, w, excludeJobID)
	}
	if tenantID.IsNil() {
		return nil, fieldline.ErrTenantRequired
	}
	if w.End.Before(w.Start) {
		return nil, fieldline.NewValidationError("end_time", "must not precede start time")
	}
	if !w.End.After(w.Start) {
		return nil, nil
	}

	candidates, err := d.source.ListActiveBetween(ctx, tenantID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("conflict: list active jobs: %w", err)
	}

	set := make(map[string]bool, len(assignees))
	for _, uid := range assignees {
		set[uid.String()] = true
	}

	return d.collect(ctx, tenantID, w, excludeJobID, candidates, set), nil
}

// collect filters candidates down to annotated conflicts, sorted by start.
func (d *Detector) collect(ctx context.Context, tenantID id.TenantID, w Window, excludeJobID id.JobID, candidates []*job.Job, assignees map[string]bool) []Conflict {
	names := map[string]string{}
	var out []Conflict
	for _, j := range candidates {
		if !excludeJobID.IsNil() && j.ID.String() == excludeJobID.String() {
			continue
		}
		if !j.HasWindow() {
			continue
		}
		if !w.Overlaps(Window{Start: *j.StartTime, End: *j.EndTime}) {
			continue
		}
		if assignees != nil && !sharesAssignee(j, assignees) {
			continue
		}
		out = append(out, Conflict{
			JobID:       j.ID,
			Title:       j.Title,
			ContactName: d.contactName(ctx, tenantID, j.ContactID, names),
			Start:       *j.StartTime,
			End:         *j.EndTime,
		})
	}

	sort.Slice(out, func(i, k int) bool {
		if !out[i].Start.Equal(out[k].Start) {
			return out[i].Start.Before(out[k].Start)
		}

		return out[i].JobID.String() < out[k].JobID.String()
	})

	return out
}

func sharesAssignee(j *job.Job, assignees map[string]bool) bool {
	for _, a := range j.AssignedTo {
		if assignees[a.UserID.String()] {
			return true
		}
	}

	return false
}

// contactName resolves one contact's display name, caching per call.
func (d *Detector) contactName(ctx context.Context, tenantID id.TenantID, contactID id.ContactID, cache map[string]string) string {
	if d.contacts == nil || contactID.IsNil() {
		return ""
	}
	key := contactID.String()
	if name, ok := cache[key]; ok {
		return name
	}
	ref, err := d.contacts.GetContact(ctx, tenantID, contactID)
	if err != nil {
		d.logger.Warn("conflict annotation lookup failed",
			"tenant_id", tenantID.String(),
			"contact_id", key,
			"error", err)
		cache[key] = ""

		return ""
	}
	cache[key] = ref.Name

	return ref.Name
}
