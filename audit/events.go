package audit

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the recorded event.
const (
	ActionJobsCreated    = "jobs.created"
	ActionJobUpdated     = "job.updated"
	ActionJobConfirmed   = "job.confirmed"
	ActionJobDeclined    = "job.declined"
	ActionJobsArchived   = "jobs.archived"
	ActionJobsRestored   = "jobs.restored"
	ActionJobsDeleted    = "jobs.deleted"
	ActionSweepCompleted = "sweep.completed"
)

// Audit event categories group related actions.
const (
	CategoryJob       = "fieldline.job"
	CategoryRetention = "fieldline.retention"
	CategorySweep     = "fieldline.sweep"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob      = "job"
	ResourceSweepRun = "sweep_run"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobsCreated,
		ActionJobUpdated,
		ActionJobConfirmed,
		ActionJobDeclined,
		ActionJobsArchived,
		ActionJobsRestored,
		ActionJobsDeleted,
		ActionSweepCompleted,
	}
}
