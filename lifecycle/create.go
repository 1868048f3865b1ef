package lifecycle

import (
	"context"
	"fmt"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/authz"
	"github.com/fieldline/fieldline/conflict"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
	"github.com/fieldline/fieldline/middleware"
	"github.com/fieldline/fieldline/recurrence"
)

// Create persists a new job, or a whole series when the draft carries a
// recurrence rule. The guard runs first, then validation and reference
// checks, then — for scheduled drafts — the conflict detector. A series is
// expanded up front and written in one transaction: either the rule and
// every occurrence land, or nothing does.
//
// Conflicts are advisory: without opts.Force the call returns a
// *conflict.Error listing every overlapping booking and persists nothing;
// retrying with Force persists anyway.
//
// The created jobs come back ordered by start time, one element for a
// plain job, every occurrence for a series.
func (m *Manager) Create(ctx context.Context, tenantID id.TenantID, actor authz.Actor, draft Draft, opts CreateOptions) ([]*job.Job, error) {
	var created []*job.Job
	op := &middleware.Op{Name: "job.create", TenantID: tenantID}
	err := m.run(ctx, op, func(ctx context.Context) error {
		var err error
		created, err = m.create(ctx, tenantID, actor, draft, opts)

		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (m *Manager) create(ctx context.Context, tenantID id.TenantID, actor authz.Actor, draft Draft, opts CreateOptions) ([]*job.Job, error) {
	req := authz.Request{
		Action:    authz.ActionCreate,
		TenantID:  tenantID,
		Scheduled: draft.scheduled(),
		Assigning: len(draft.AssignedTo) > 0,
	}
	if err := m.authorize(ctx, actor, req); err != nil {
		return nil, err
	}

	base := draft.job(tenantID, actor)
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if err := m.validateLinks(ctx, tenantID, base); err != nil {
		return nil, err
	}

	if draft.Recurrence != nil {
		return m.createSeries(ctx, tenantID, base, draft.Recurrence, opts)
	}

	if base.HasWindow() && !opts.Force {
		found, err := m.detector.FindConflicts(ctx, tenantID, conflict.Window{Start: *base.StartTime, End: *base.EndTime}, id.Nil)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return nil, &conflict.Error{Conflicts: found}
		}
	}

	if err := m.store.CreateJob(ctx, base); err != nil {
		return nil, persistFail("create job", err)
	}

	created := []*job.Job{base}
	m.extensions.EmitJobsCreated(ctx, created)

	return created, nil
}

// createSeries expands the rule from the draft window and persists the
// rule plus every occurrence in one transaction.
func (m *Manager) createSeries(ctx context.Context, tenantID id.TenantID, base *job.Job, spec *recurrence.Rule, opts CreateOptions) ([]*job.Job, error) {
	if !base.HasWindow() {
		return nil, fieldline.NewValidationError("start_time", "a recurring job requires a concrete first occurrence")
	}

	rule := spec.Clone()
	rule.Entity = fieldline.NewEntity()
	rule.ID = id.NewSeriesID()
	rule.TenantID = tenantID

	windows, err := recurrence.Expand(recurrence.Anchor{
		Start:    *base.StartTime,
		Duration: base.EndTime.Sub(*base.StartTime),
	}, rule)
	if err != nil {
		return nil, err
	}

	if !opts.Force {
		found, err := m.collectConflicts(ctx, tenantID, windows, nil)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return nil, &conflict.Error{Conflicts: found}
		}
	}

	occurrences := make([]*job.Job, len(windows))
	for i, w := range windows {
		occurrences[i] = occurrence(base, w, rule.ID)
	}

	if err := m.store.CreateSeries(ctx, rule, occurrences); err != nil {
		return nil, persistFail(fmt.Sprintf("create series of %d", len(occurrences)), err)
	}

	m.extensions.EmitJobsCreated(ctx, occurrences)

	return occurrences, nil
}

// occurrence clones the base job into one series row with its own identity
// and the window the expansion produced.
func occurrence(base *job.Job, w recurrence.Window, seriesID id.SeriesID) *job.Job {
	j := base.Clone()
	j.Entity = fieldline.NewEntity()
	j.ID = id.NewJobID()
	j.SeriesID = seriesID
	start, end := w.Start, w.End
	j.StartTime, j.EndTime = &start, &end

	return j
}
