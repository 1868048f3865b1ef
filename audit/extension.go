package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/ext"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension      = (*Extension)(nil)
	_ ext.JobsCreated    = (*Extension)(nil)
	_ ext.JobUpdated     = (*Extension)(nil)
	_ ext.JobConfirmed   = (*Extension)(nil)
	_ ext.JobDeclined    = (*Extension)(nil)
	_ ext.JobsArchived   = (*Extension)(nil)
	_ ext.JobsRestored   = (*Extension)(nil)
	_ ext.JobsDeleted    = (*Extension)(nil)
	_ ext.SweepCompleted = (*Extension)(nil)
)

// Recorder is the interface audit trail backends must implement. It is
// defined locally so this package does not depend on any particular trail
// store — callers inject their backend at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *Event) error
}

// Event is one entry in the audit trail.
type Event struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	TenantID   string         `json:"tenant_id,omitempty"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
//
// Example bridging to a trail store:
//
//	audit.RecorderFunc(func(ctx context.Context, evt *audit.Event) error {
//	    return trail.Append(ctx, evt.TenantID, evt.Action, evt.Metadata)
//	})
type RecorderFunc func(ctx context.Context, event *Event) error

func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges Fieldline lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided
// Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobsCreated implements ext.JobsCreated. A recurring series delivers
// every occurrence in one call and is recorded as a single event carrying
// the occurrence count and series id.
func (e *Extension) OnJobsCreated(ctx context.Context, jobs []*job.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	first := jobs[0]
	kv := []any{"count", len(jobs), "title", first.Title}
	if !first.SeriesID.IsNil() {
		kv = append(kv, "series_id", first.SeriesID.String())
	}
	return e.record(ctx, ActionJobsCreated, SeverityInfo, OutcomeSuccess,
		ResourceJob, soleJobID(jobs), CategoryJob, first.TenantID.String(), "",
		kv...)
}

// OnJobUpdated implements ext.JobUpdated.
func (e *Extension) OnJobUpdated(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobUpdated, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, j.TenantID.String(), "",
		"title", j.Title,
		"status", string(j.Status),
	)
}

// OnJobConfirmed implements ext.JobConfirmed.
func (e *Extension) OnJobConfirmed(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobConfirmed, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, j.TenantID.String(), "",
		"title", j.Title,
		"contact_id", j.ContactID.String(),
	)
}

// OnJobDeclined implements ext.JobDeclined. The customer's stated reason
// lands in the event's Reason field.
func (e *Extension) OnJobDeclined(ctx context.Context, j *job.Job, reason string) error {
	return e.record(ctx, ActionJobDeclined, SeverityWarning, OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, j.TenantID.String(), reason,
		"title", j.Title,
		"contact_id", j.ContactID.String(),
	)
}

// ── Retention lifecycle hooks ───────────────────────

// OnJobsArchived implements ext.JobsArchived.
func (e *Extension) OnJobsArchived(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) error {
	return e.record(ctx, ActionJobsArchived, SeverityInfo, OutcomeSuccess,
		ResourceJob, soleID(jobIDs), CategoryRetention, tenantID.String(), "",
		"count", len(jobIDs),
		"job_ids", idStrings(jobIDs),
	)
}

// OnJobsRestored implements ext.JobsRestored.
func (e *Extension) OnJobsRestored(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) error {
	return e.record(ctx, ActionJobsRestored, SeverityInfo, OutcomeSuccess,
		ResourceJob, soleID(jobIDs), CategoryRetention, tenantID.String(), "",
		"count", len(jobIDs),
		"job_ids", idStrings(jobIDs),
	)
}

// OnJobsDeleted implements ext.JobsDeleted. Deletion is irreversible, so
// the event is recorded at warning severity.
func (e *Extension) OnJobsDeleted(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) error {
	return e.record(ctx, ActionJobsDeleted, SeverityWarning, OutcomeSuccess,
		ResourceJob, soleID(jobIDs), CategoryRetention, tenantID.String(), "",
		"count", len(jobIDs),
		"job_ids", idStrings(jobIDs),
	)
}

// ── Sweep hooks ─────────────────────────────────────

// OnSweepCompleted implements ext.SweepCompleted. A pass that finished
// with per-tenant errors is recorded as a failure.
func (e *Extension) OnSweepCompleted(ctx context.Context, report *fieldline.SweepReport) error {
	severity, outcome := SeverityInfo, OutcomeSuccess
	if report.Failed() {
		severity, outcome = SeverityWarning, OutcomeFailure
	}
	return e.record(ctx, ActionSweepCompleted, severity, outcome,
		ResourceSweepRun, "", CategorySweep, "", "",
		"archived_count", report.ArchivedCount,
		"deleted_count", report.DeletedCount,
		"error_count", len(report.Errors),
		"dry_run", report.DryRun,
		"took_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	tenantID, reason string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &Event{
		Action:     action,
		Resource:   resource,
		Category:   category,
		TenantID:   tenantID,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit: failed to record event",
			slog.String("action", action),
			slog.String("tenant_id", tenantID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}

// soleID returns the only id's string form, or "" for batches. Batch
// events carry their ids in metadata instead.
func soleID(ids []id.JobID) string {
	if len(ids) == 1 {
		return ids[0].String()
	}
	return ""
}

func soleJobID(jobs []*job.Job) string {
	if len(jobs) == 1 {
		return jobs[0].ID.String()
	}
	return ""
}

func idStrings(ids []id.JobID) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}
