// Package ext defines the extension system for Fieldline.
//
// Extensions are notified of lifecycle events and can react to them —
// recording metrics, sending customer notifications, writing audit
// logs, etc. Each lifecycle hook is a separate interface so extensions
// opt in only to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobConfirmed(ctx context.Context, j *job.Job) error {
//	    log.Printf("job %s confirmed", j.ID)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobsCreated] — jobs were persisted (one call per create, even for a series)
//   - [JobUpdated] — a job's fields were changed
//   - [JobConfirmed] — customer confirmed a pending job
//   - [JobDeclined] — customer declined a pending job
//
// # Retention Hooks
//
//   - [JobsArchived] — jobs were moved to the archive
//   - [JobsRestored] — archived jobs were restored
//   - [JobsDeleted] — jobs were permanently deleted
//
// # Other Hooks
//
//   - [SweepCompleted] — an archival sweep pass finished
//   - [Shutdown] — the manager is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
