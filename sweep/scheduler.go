package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// scheduleParser accepts standard 5-field cron expressions plus
// descriptors like "@daily" and "@every 24h".
var scheduleParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Scheduler runs sweep passes on a cron cadence. A tick that fires while
// the previous pass is still in flight is skipped, so slow passes never
// stack.
type Scheduler struct {
	sweeper *Sweeper
	spec    string
	logger  *slog.Logger
	loc     *time.Location

	mu   sync.Mutex
	cron *cronlib.Cron
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the scheduler's logger. The default is the
// sweeper's own logger.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithLocation sets the time zone cron expressions are evaluated in. The
// default is the process's local zone.
func WithLocation(loc *time.Location) SchedulerOption {
	return func(s *Scheduler) { s.loc = loc }
}

// NewScheduler creates a Scheduler that runs sweeper on the given cron
// schedule. The expression is validated up front: five fields or a
// descriptor ("30 3 * * *", "@daily", "@every 12h").
func NewScheduler(sweeper *Sweeper, spec string, opts ...SchedulerOption) (*Scheduler, error) {
	if sweeper == nil {
		return nil, errors.New("sweep: sweeper required")
	}
	if _, err := scheduleParser.Parse(spec); err != nil {
		return nil, fmt.Errorf("sweep: invalid schedule %q: %w", spec, err)
	}

	s := &Scheduler{
		sweeper: sweeper,
		spec:    spec,
		logger:  sweeper.logger,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Start launches the cron runner. It returns an error if the scheduler is
// already running.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("sweep: scheduler already started")
	}

	cl := cronLogger{logger: s.logger}
	c := cronlib.New(
		cronlib.WithParser(scheduleParser),
		cronlib.WithLocation(s.loc),
		cronlib.WithChain(cronlib.Recover(cl), cronlib.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(s.spec, s.tick); err != nil {
		return fmt.Errorf("sweep: schedule %q: %w", s.spec, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("sweep scheduler started", slog.String("schedule", s.spec))

	return nil
}

// Stop halts the cron runner and waits for an in-flight pass to finish,
// or for ctx to expire, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	stopped := c.Stop()
	select {
	case <-stopped.Done():
		s.logger.Info("sweep scheduler stopped")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick runs one scheduled pass. Failures are logged; the next tick tries
// again.
func (s *Scheduler) tick() {
	report, err := s.sweeper.Run(context.Background(), RunOptions{})
	if err != nil {
		s.logger.Error("scheduled sweep failed", slog.String("error", err.Error()))

		return
	}
	if report.Failed() {
		s.logger.Warn("scheduled sweep finished with errors",
			slog.Int("errors", len(report.Errors)),
		)
	}
}

// cronLogger adapts slog to the cron library's logger. The runner's
// routine messages and the chain's skip notices land at debug; recovered
// panics come through Error.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, kv ...any) {
	l.logger.Debug(msg, kv...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.logger.Error(msg, append(kv, slog.String("error", err.Error()))...)
}
