package fieldline

import "time"

// Config holds the shared lifecycle and sweep tuning knobs. Components read
// their defaults from here; functional options override per component.
type Config struct {
	// ArchiveAfter is how long after a job's end time the sweep archives it.
	ArchiveAfter time.Duration

	// PurgeAfter is the grace period an archived job remains recoverable
	// before the sweep deletes it permanently.
	PurgeAfter time.Duration

	// SweepConcurrency bounds how many tenants one sweep run processes in
	// parallel.
	SweepConcurrency int

	// UploadTimeout caps a single archive snapshot write so one hung object
	// store call cannot stall the run.
	UploadTimeout time.Duration

	// OperationTimeout is the default deadline applied by the timeout
	// middleware around lifecycle operations. Zero disables it.
	OperationTimeout time.Duration
}

// DefaultConfig returns a Config with the production defaults.
func DefaultConfig() Config {
	return Config{
		ArchiveAfter:     365 * 24 * time.Hour,
		PurgeAfter:       30 * 24 * time.Hour,
		SweepConcurrency: 4,
		UploadTimeout:    30 * time.Second,
		OperationTimeout: 30 * time.Second,
	}
}
