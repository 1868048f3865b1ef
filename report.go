package fieldline

import (
	"time"

	"github.com/fieldline/fieldline/id"
)

// Sweep stages, used in SweepError to say where a tenant's pass failed.
const (
	SweepStageSnapshot = "snapshot"
	SweepStageArchive  = "archive"
	SweepStagePurge    = "purge"
)

// SweepError records one failure inside a sweep pass. JobID is nil for
// failures that are not tied to a single job (a purge query failing, for
// example). The message is a plain string so reports serialize cleanly
// into run history.
type SweepError struct {
	TenantID id.TenantID `json:"tenant_id"`
	JobID    id.JobID    `json:"job_id,omitempty"`
	Stage    string      `json:"stage"`
	Message  string      `json:"message"`
}

// SweepReport summarizes one archival sweep pass. Counts cover every
// tenant the pass visited; Errors holds one entry per failure, so a
// partially failed pass still reports the work it completed.
type SweepReport struct {
	ArchivedCount int          `json:"archived_count"`
	DeletedCount  int          `json:"deleted_count"`
	Errors        []SweepError `json:"errors,omitempty"`
	DryRun        bool         `json:"dry_run"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
}

// Failed reports whether any tenant failed during the pass.
func (r *SweepReport) Failed() bool { return len(r.Errors) > 0 }
