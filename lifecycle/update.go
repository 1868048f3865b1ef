package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/authz"
	"github.com/fieldline/fieldline/conflict"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
	"github.com/fieldline/fieldline/middleware"
	"github.com/fieldline/fieldline/recurrence"
	"github.com/fieldline/fieldline/store"
)

// UpdateScope says how far an edit reaches when the job belongs to a
// series.
type UpdateScope string

const (
	// ScopeThisOnly edits the one occurrence, detaching it from its
	// series. The zero value of UpdateScope means ScopeThisOnly.
	ScopeThisOnly UpdateScope = "this_only"
	// ScopeAllFuture replaces the edited occurrence and every later
	// sibling by regenerating them from a new rule; earlier occurrences
	// are untouched.
	ScopeAllFuture UpdateScope = "all_future"
)

// UpdateOptions tunes one Update call.
type UpdateOptions struct {
	Scope UpdateScope

	// Force persists the edit even when the detector reports overlapping
	// bookings.
	Force bool
}

// Changes is a partial edit. Nil fields are left unchanged.
type Changes struct {
	Title       *string
	Description *string

	// StartTime and EndTime move the window; set them together.
	StartTime *time.Time
	EndTime   *time.Time

	// ToBeScheduled true clears the window and marks the job unscheduled.
	// Setting a window clears the flag.
	ToBeScheduled *bool

	// Status requests a work-status transition, checked against the legal
	// transitions from the job's current status.
	Status *job.WorkStatus

	ContactID *id.ContactID
	ServiceID *id.ServiceID
	QuoteID   *id.QuoteID
	InvoiceID *id.InvoiceID

	// AssignedTo and Breaks replace wholesale: nil leaves them unchanged,
	// a pointer to an empty slice clears them.
	AssignedTo *[]job.Assignment
	Breaks     *[]job.Break
}

// apply writes the non-nil changes onto j.
func (c Changes) apply(j *job.Job) {
	if c.Title != nil {
		j.Title = *c.Title
	}
	if c.Description != nil {
		j.Description = *c.Description
	}
	if c.StartTime != nil {
		start := *c.StartTime
		j.StartTime = &start
	}
	if c.EndTime != nil {
		end := *c.EndTime
		j.EndTime = &end
	}
	if j.HasWindow() {
		j.ToBeScheduled = false
	}
	if c.ToBeScheduled != nil {
		j.ToBeScheduled = *c.ToBeScheduled
		if j.ToBeScheduled {
			j.StartTime, j.EndTime = nil, nil
		}
	}
	if c.Status != nil {
		j.Status = *c.Status
	}
	if c.ContactID != nil {
		j.ContactID = *c.ContactID
	}
	if c.ServiceID != nil {
		j.ServiceID = *c.ServiceID
	}
	if c.QuoteID != nil {
		j.QuoteID = *c.QuoteID
	}
	if c.InvoiceID != nil {
		j.InvoiceID = *c.InvoiceID
	}
	if c.AssignedTo != nil {
		j.AssignedTo = append([]job.Assignment(nil), (*c.AssignedTo)...)
	}
	if c.Breaks != nil {
		j.Breaks = append([]job.Break(nil), (*c.Breaks)...)
	}
}

// assigning reports whether the edit explicitly assigns users, which is
// what the guard's team-tier rule gates. Leaving an existing assignment
// untouched is not an assignment.
func (c Changes) assigning() bool {
	return c.AssignedTo != nil && len(*c.AssignedTo) > 0
}

// touchesLinks reports whether the edit changes any directory reference.
func (c Changes) touchesLinks() bool {
	return c.ContactID != nil || c.ServiceID != nil || c.QuoteID != nil || c.InvoiceID != nil
}

// Update applies a partial edit to one job, honoring series scope.
//
// On a series occurrence, ScopeThisOnly first detaches the occurrence —
// clears its SeriesID — and then edits it independently; the rest of the
// series is untouched. ScopeAllFuture replaces the edited occurrence and
// every later sibling: the future slice is deleted and regenerated from a
// new rule anchored at the edited window, in one transaction, while
// earlier occurrences keep their rows and ids. A job outside any series
// has no siblings and both scopes edit just the job.
//
// The detector re-runs on the resulting window unless opts.Force; a
// *conflict.Error means nothing was persisted. An all-future edit reports
// through the JobsDeleted and JobsCreated hooks, matching what happened to
// the rows; a this-only edit emits JobUpdated.
//
// Returns the persisted jobs ordered by start: one element for this-only,
// the replacement occurrences for all-future.
func (m *Manager) Update(ctx context.Context, tenantID id.TenantID, actor authz.Actor, jobID id.JobID, changes Changes, opts UpdateOptions) ([]*job.Job, error) {
	var updated []*job.Job
	op := &middleware.Op{Name: "job.update", TenantID: tenantID, JobID: jobID}
	err := m.run(ctx, op, func(ctx context.Context) error {
		var err error
		updated, err = m.update(ctx, tenantID, actor, jobID, changes, opts)

		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (m *Manager) update(ctx context.Context, tenantID id.TenantID, actor authz.Actor, jobID id.JobID, changes Changes, opts UpdateOptions) ([]*job.Job, error) {
	scope := opts.Scope
	if scope == "" {
		scope = ScopeThisOnly
	}
	if scope != ScopeThisOnly && scope != ScopeAllFuture {
		return nil, fieldline.NewValidationError("scope", fmt.Sprintf("unknown update scope %q", scope))
	}

	existing, err := m.store.GetJob(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}

	req := authz.Request{
		Action:    authz.ActionUpdate,
		TenantID:  tenantID,
		Existing:  existing,
		Scheduled: changes.StartTime != nil,
		Assigning: changes.assigning(),
	}
	if err := m.authorize(ctx, actor, req); err != nil {
		return nil, err
	}

	switch existing.Retention() {
	case job.RetentionTrashed:
		return nil, fieldline.ErrJobTrashed
	case job.RetentionArchived:
		// Work status is frozen while archived. An all-future edit
		// regenerates rows, which would silently resurrect archived
		// occurrences, so it needs a restore first too.
		if changes.Status != nil || scope == ScopeAllFuture {
			return nil, fieldline.ErrJobArchived
		}
	}

	if changes.Status != nil && *changes.Status != existing.Status {
		if !existing.Status.CanTransitionTo(*changes.Status) {
			return nil, fmt.Errorf("%w: %s to %s", fieldline.ErrInvalidTransition, existing.Status, *changes.Status)
		}
	}

	updated := existing.Clone()
	changes.apply(updated)
	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if changes.touchesLinks() {
		if err := m.validateLinks(ctx, tenantID, updated); err != nil {
			return nil, err
		}
	}

	if scope == ScopeAllFuture && !existing.SeriesID.IsNil() && existing.HasWindow() {
		return m.replaceFuture(ctx, tenantID, existing, updated, opts)
	}

	return m.updateOne(ctx, tenantID, updated, opts)
}

// updateOne persists a this-only edit, detaching the occurrence from its
// series when it has one.
func (m *Manager) updateOne(ctx context.Context, tenantID id.TenantID, updated *job.Job, opts UpdateOptions) ([]*job.Job, error) {
	detachedFrom := updated.SeriesID
	updated.SeriesID = id.Nil

	if updated.HasWindow() && updated.IsActive() && !opts.Force {
		found, err := m.detector.FindConflicts(ctx, tenantID, conflict.Window{Start: *updated.StartTime, End: *updated.EndTime}, updated.ID)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return nil, &conflict.Error{Conflicts: found}
		}
	}

	if err := m.store.UpdateJob(ctx, updated); err != nil {
		return nil, persistFail("update job", err)
	}

	// Detaching may have orphaned the rule.
	if !detachedFrom.IsNil() {
		m.releaseRule(ctx, tenantID, detachedFrom)
	}

	m.extensions.EmitJobUpdated(ctx, updated)

	return []*job.Job{updated}, nil
}

// replaceFuture regenerates the edited occurrence and every later sibling
// from a new rule anchored at the edited window.
func (m *Manager) replaceFuture(ctx context.Context, tenantID id.TenantID, existing, updated *job.Job, opts UpdateOptions) ([]*job.Job, error) {
	rule, err := m.store.GetRule(ctx, tenantID, existing.SeriesID)
	if err != nil {
		return nil, err
	}
	siblings, err := m.store.ListSeries(ctx, tenantID, existing.SeriesID)
	if err != nil {
		return nil, err
	}

	// The future slice is the edited occurrence and everything starting
	// at or after it.
	var deleteIDs []id.JobID
	skip := make(map[string]bool)
	for _, s := range siblings {
		if s.StartTime == nil || s.StartTime.Before(*existing.StartTime) {
			continue
		}
		deleteIDs = append(deleteIDs, s.ID)
		skip[s.ID.String()] = true
	}

	next := splitRule(rule, len(deleteIDs))
	windows, err := recurrence.Expand(recurrence.Anchor{
		Start:    *updated.StartTime,
		Duration: updated.EndTime.Sub(*updated.StartTime),
	}, next)
	if err != nil {
		return nil, err
	}

	if !opts.Force {
		found, err := m.collectConflicts(ctx, tenantID, windows, skip)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return nil, &conflict.Error{Conflicts: found}
		}
	}

	replacements := make([]*job.Job, len(windows))
	for i, w := range windows {
		replacements[i] = occurrence(updated, w, next.ID)
	}

	split := store.SeriesSplit{
		SeriesID:     existing.SeriesID,
		DeleteIDs:    deleteIDs,
		NewRule:      next,
		Replacements: replacements,
	}
	if err := m.store.ReplaceFutureOccurrences(ctx, tenantID, split); err != nil {
		return nil, persistFail(fmt.Sprintf("replace %d future occurrences", len(deleteIDs)), err)
	}

	m.extensions.EmitJobsDeleted(ctx, tenantID, deleteIDs)
	m.extensions.EmitJobsCreated(ctx, replacements)

	return replacements, nil
}

// splitRule derives the rule for a regenerated future slice. The cadence
// carries over; a count-bound rule is rebounded to the number of
// occurrences being replaced, an until-bound rule keeps its end date.
func splitRule(old *recurrence.Rule, replacing int) *recurrence.Rule {
	next := old.Clone()
	next.Entity = fieldline.NewEntity()
	next.ID = id.NewSeriesID()
	if next.Count != nil {
		count := replacing
		next.Count = &count
	}

	return next
}
