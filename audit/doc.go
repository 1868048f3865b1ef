// Package audit is a Fieldline extension that bridges lifecycle events to
// an audit trail backend.
//
// Every job, retention, and sweep lifecycle hook emits a structured audit
// event through the [Recorder] interface. The extension assigns severity
// levels (info for routine operations, warning for declines and permanent
// deletions) and tenant-scoped metadata (titles, counts, ids, sweep
// totals), so a tenant's trail answers "who changed this schedule and
// when" without consulting application logs.
//
// # Usage
//
//	audit.New(audit.RecorderFunc(func(ctx context.Context, evt *audit.Event) error {
//	    return trail.Append(ctx, evt.TenantID, evt.Action, evt.Metadata)
//	}))
//
// # Selective filtering
//
//	audit.New(recorder,
//	    audit.WithActions(
//	        audit.ActionJobDeclined,
//	        audit.ActionJobsDeleted,
//	        audit.ActionSweepCompleted,
//	    ),
//	)
package audit
