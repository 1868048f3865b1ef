package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/backoff"
	"github.com/fieldline/fieldline/blob"
	"github.com/fieldline/fieldline/directory"
	"github.com/fieldline/fieldline/ext"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
	"github.com/fieldline/fieldline/recurrence"
)

// Store is the persistence surface the sweep requires: tenant enumeration,
// the candidate queries, the archive and delete writes, rule lookups for
// snapshots, and run history. The composite store.Store satisfies it.
type Store interface {
	RunStore

	// ListTenants returns the distinct tenants that own at least one job.
	ListTenants(ctx context.Context) ([]id.TenantID, error)

	// ListArchiveCandidates returns active jobs whose end time is before
	// the cutoff.
	ListArchiveCandidates(ctx context.Context, tenantID id.TenantID, cutoff time.Time) ([]*job.Job, error)

	// ListPurgeCandidates returns archived jobs whose ArchivedAt is before
	// the cutoff.
	ListPurgeCandidates(ctx context.Context, tenantID id.TenantID, cutoff time.Time) ([]*job.Job, error)

	// ArchiveJobs stamps ArchivedAt on the given jobs.
	ArchiveJobs(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID, at time.Time) error

	// DeleteJobs removes job rows entirely.
	DeleteJobs(ctx context.Context, tenantID id.TenantID, jobIDs []id.JobID) error

	// GetRule retrieves a series rule for snapshot denormalization.
	GetRule(ctx context.Context, tenantID id.TenantID, ruleID id.SeriesID) (*recurrence.Rule, error)
}

// RunOptions tunes one sweep pass.
type RunOptions struct {
	// DryRun walks both stages without uploading snapshots or touching job
	// rows; the report counts what a real pass would have done.
	DryRun bool
}

// Sweeper executes archival sweep passes. Construct one with New and share
// it; concurrent Run calls are safe, though the Scheduler never overlaps
// them.
type Sweeper struct {
	store      Store
	archive    blob.ArchiveStore
	dir        directory.Directory
	extensions *ext.Registry
	config     fieldline.Config
	logger     *slog.Logger

	limiter  *rate.Limiter
	strategy backoff.Strategy
	attempts int

	exts []ext.Extension
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

// WithConfig overrides the default sweep tuning: the archive and purge
// windows, tenant concurrency, and the per-upload timeout.
func WithConfig(cfg fieldline.Config) Option {
	return func(s *Sweeper) { s.config = cfg }
}

// WithDirectory wires the platform lookups used to denormalize contact,
// service, quote, and invoice summaries into snapshots. Without it,
// snapshots carry the job and rule only.
func WithDirectory(d directory.Directory) Option {
	return func(s *Sweeper) { s.dir = d }
}

// WithExtension registers an extension with the Sweeper's registry; each
// completed pass is announced through the SweepCompleted hook.
func WithExtension(e ext.Extension) Option {
	return func(s *Sweeper) { s.exts = append(s.exts, e) }
}

// WithRateLimiter bounds snapshot uploads across the whole pass. The
// default limiter is unlimited.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(s *Sweeper) { s.limiter = l }
}

// WithBackoff sets the retry delay strategy for snapshot uploads.
func WithBackoff(strategy backoff.Strategy) Option {
	return func(s *Sweeper) { s.strategy = strategy }
}

// WithUploadAttempts sets how many times a snapshot upload is tried before
// the job is skipped for this pass.
func WithUploadAttempts(n int) Option {
	return func(s *Sweeper) { s.attempts = n }
}

// New creates a Sweeper writing snapshots to archive.
func New(st Store, archive blob.ArchiveStore, opts ...Option) (*Sweeper, error) {
	if st == nil {
		return nil, fieldline.ErrNoStore
	}
	if archive == nil {
		return nil, errors.New("sweep: archive store required")
	}

	s := &Sweeper{
		store:    st,
		archive:  archive,
		config:   fieldline.DefaultConfig(),
		logger:   slog.Default(),
		limiter:  rate.NewLimiter(rate.Inf, 0),
		strategy: backoff.DefaultStrategy(),
		attempts: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.SweepConcurrency < 1 {
		s.config.SweepConcurrency = 1
	}
	if s.attempts < 1 {
		s.attempts = 1
	}

	s.extensions = ext.NewRegistry(s.logger)
	for _, e := range s.exts {
		s.extensions.Register(e)
	}

	return s, nil
}

// Extensions returns the Sweeper's extension registry.
func (s *Sweeper) Extensions() *ext.Registry { return s.extensions }

// Run executes one sweep pass over every tenant and returns its report.
// Per-tenant and per-job failures are recorded in the report, never
// returned; the error is non-nil only when the pass could not run at all
// (tenant enumeration failed or the context was cancelled).
//
// Each completed pass is appended to run history and announced through the
// SweepCompleted hook, dry or not.
func (s *Sweeper) Run(ctx context.Context, opts RunOptions) (*fieldline.SweepReport, error) {
	start := time.Now().UTC()
	report := &fieldline.SweepReport{DryRun: opts.DryRun, StartedAt: start}

	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("sweep: list tenants: %w", err)
	}

	s.logger.Info("sweep pass starting",
		slog.Int("tenants", len(tenants)),
		slog.Bool("dry_run", opts.DryRun),
	)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.config.SweepConcurrency)
	for _, tenantID := range tenants {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := s.sweepTenant(ctx, tenantID, start, opts.DryRun)

			mu.Lock()
			report.ArchivedCount += res.archived
			report.DeletedCount += res.deleted
			report.Errors = append(report.Errors, res.errors...)
			mu.Unlock()

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sweep: pass aborted: %w", err)
	}
	report.FinishedAt = time.Now().UTC()

	s.logger.Info("sweep pass finished",
		slog.Int("archived", report.ArchivedCount),
		slog.Int("deleted", report.DeletedCount),
		slog.Int("errors", len(report.Errors)),
		slog.Bool("dry_run", report.DryRun),
		slog.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)

	s.record(ctx, report)
	s.extensions.EmitSweepCompleted(ctx, report)

	return report, nil
}

// tenantResult is what one tenant's pass contributes to the report.
type tenantResult struct {
	archived int
	deleted  int
	errors   []fieldline.SweepError
}

// sweepTenant runs both stages for one tenant. Cutoffs are anchored to the
// pass's start instant so every tenant sees the same boundary.
func (s *Sweeper) sweepTenant(ctx context.Context, tenantID id.TenantID, start time.Time, dryRun bool) tenantResult {
	var res tenantResult

	// Stage 1: snapshot, then archive. Only jobs whose snapshot made it to
	// the blob store get the ArchivedAt stamp; the rest stay active for the
	// next pass.
	candidates, err := s.store.ListArchiveCandidates(ctx, tenantID, start.Add(-s.config.ArchiveAfter))
	if err != nil {
		res.errors = append(res.errors, stageError(tenantID, id.Nil, fieldline.SweepStageArchive, err))
	}
	var ready []id.JobID
	for _, j := range candidates {
		if dryRun {
			ready = append(ready, j.ID)
			continue
		}
		if err := s.snapshot(ctx, tenantID, j); err != nil {
			s.logger.Warn("snapshot failed, job stays active",
				slog.String("tenant_id", tenantID.String()),
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
			res.errors = append(res.errors, stageError(tenantID, j.ID, fieldline.SweepStageSnapshot, err))
			continue
		}
		ready = append(ready, j.ID)
	}
	switch {
	case len(ready) == 0:
	case dryRun:
		res.archived = len(ready)
	default:
		if err := s.store.ArchiveJobs(ctx, tenantID, ready, start); err != nil {
			res.errors = append(res.errors, stageError(tenantID, id.Nil, fieldline.SweepStageArchive, err))
		} else {
			res.archived = len(ready)
		}
	}

	// Stage 2: purge archived jobs past the grace period. The snapshot from
	// stage 1 of an earlier pass is all that remains of them.
	purgeable, err := s.store.ListPurgeCandidates(ctx, tenantID, start.Add(-s.config.PurgeAfter))
	if err != nil {
		res.errors = append(res.errors, stageError(tenantID, id.Nil, fieldline.SweepStagePurge, err))

		return res
	}
	ids := make([]id.JobID, len(purgeable))
	for i, j := range purgeable {
		ids[i] = j.ID
	}
	switch {
	case len(ids) == 0:
	case dryRun:
		res.deleted = len(ids)
	default:
		if err := s.store.DeleteJobs(ctx, tenantID, ids); err != nil {
			res.errors = append(res.errors, stageError(tenantID, id.Nil, fieldline.SweepStagePurge, err))
		} else {
			res.deleted = len(ids)
		}
	}

	return res
}

// snapshot uploads the job's archive document, retrying transient failures.
// The limiter gates each attempt and the upload timeout caps each write so
// one hung blob call cannot stall the pass.
func (s *Sweeper) snapshot(ctx context.Context, tenantID id.TenantID, j *job.Job) error {
	snap := s.buildSnapshot(ctx, tenantID, j)
	payload, err := snap.Encode()
	if err != nil {
		return &fieldline.ArchiveWriteError{TenantID: tenantID, JobID: j.ID, Err: err}
	}

	key := snap.Key()
	err = backoff.Retry(ctx, s.attempts, s.strategy, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		uctx := ctx
		if s.config.UploadTimeout > 0 {
			var cancel context.CancelFunc
			uctx, cancel = context.WithTimeout(ctx, s.config.UploadTimeout)
			defer cancel()
		}

		return s.archive.Put(uctx, key, payload)
	})
	if err != nil {
		return &fieldline.ArchiveWriteError{TenantID: tenantID, JobID: j.ID, Err: err}
	}

	return nil
}

// buildSnapshot assembles the archive document: the job joined with its
// directory records and series rule. Joins are best-effort; a reference
// that no longer resolves leaves its field empty rather than blocking the
// archive.
func (s *Sweeper) buildSnapshot(ctx context.Context, tenantID id.TenantID, j *job.Job) *blob.Snapshot {
	snap := &blob.Snapshot{
		TenantID: tenantID,
		TakenAt:  time.Now().UTC(),
		Job:      j,
	}

	if s.dir != nil {
		if !j.ContactID.IsNil() {
			if ref, err := s.dir.GetContact(ctx, tenantID, j.ContactID); err == nil {
				snap.Contact = ref
			}
		}
		if !j.ServiceID.IsNil() {
			if ref, err := s.dir.GetService(ctx, tenantID, j.ServiceID); err == nil {
				snap.Service = ref
			}
		}
		if !j.QuoteID.IsNil() {
			if ref, err := s.dir.GetQuote(ctx, tenantID, j.QuoteID); err == nil {
				snap.Quote = ref
			}
		}
		if !j.InvoiceID.IsNil() {
			if ref, err := s.dir.GetInvoice(ctx, tenantID, j.InvoiceID); err == nil {
				snap.Invoice = ref
			}
		}
	}
	if !j.SeriesID.IsNil() {
		if rule, err := s.store.GetRule(ctx, tenantID, j.SeriesID); err == nil {
			snap.Rule = rule
		}
	}

	return snap
}

// record appends the pass to run history. The pass itself already
// happened, so history is best-effort: a failure here only logs.
func (s *Sweeper) record(ctx context.Context, report *fieldline.SweepReport) {
	run := &Run{
		Entity: fieldline.NewEntity(),
		ID:     id.NewSweepRunID(),
		Report: *report,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		s.logger.Warn("failed to record sweep run",
			slog.String("run_id", run.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func stageError(tenantID id.TenantID, jobID id.JobID, stage string, err error) fieldline.SweepError {
	return fieldline.SweepError{
		TenantID: tenantID,
		JobID:    jobID,
		Stage:    stage,
		Message:  err.Error(),
	}
}
