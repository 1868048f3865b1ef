package sweep

import (
	"context"
	"time"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/id"
)

// Run is one recorded execution of the archival sweep. The report carries
// the counts, errors, and timing of the pass; the Entity timestamps record
// when the row itself was written.
type Run struct {
	fieldline.Entity

	ID     id.SweepRunID         `json:"id"`
	Report fieldline.SweepReport `json:"report"`
}

// Duration returns how long the pass took.
func (r *Run) Duration() time.Duration {
	return r.Report.FinishedAt.Sub(r.Report.StartedAt)
}

// Clone returns a deep copy.
func (r *Run) Clone() *Run {
	cp := *r
	if r.Report.Errors != nil {
		cp.Report.Errors = append([]fieldline.SweepError(nil), r.Report.Errors...)
	}

	return &cp
}

// RunStore persists sweep run history. Runs are append-only; there is no
// update or delete.
type RunStore interface {
	// CreateRun records a completed sweep pass.
	CreateRun(ctx context.Context, r *Run) error

	// GetRun returns a single run by ID. Returns fieldline.ErrRunNotFound
	// if no run with that ID exists.
	GetRun(ctx context.Context, runID id.SweepRunID) (*Run, error)

	// ListRuns returns runs ordered most recent first. A limit <= 0
	// returns all runs.
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
}
