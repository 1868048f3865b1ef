package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/authz"
	"github.com/fieldline/fieldline/conflict"
	"github.com/fieldline/fieldline/directory"
	"github.com/fieldline/fieldline/ext"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
	"github.com/fieldline/fieldline/middleware"
	"github.com/fieldline/fieldline/observability"
	"github.com/fieldline/fieldline/recurrence"
	"github.com/fieldline/fieldline/store"
)

// Store is the persistence surface the Manager requires: single-job reads
// and writes, series rule lookups, and the transactional series operations.
// The composite store.Store satisfies it.
type Store interface {
	job.Store

	// GetRule retrieves a series rule by id within the tenant.
	GetRule(ctx context.Context, tenantID id.TenantID, ruleID id.SeriesID) (*recurrence.Rule, error)

	// DeleteRule removes a rule once no occurrence references it.
	DeleteRule(ctx context.Context, tenantID id.TenantID, ruleID id.SeriesID) error

	// CreateSeries persists a rule and its expanded occurrences atomically.
	CreateSeries(ctx context.Context, rule *recurrence.Rule, jobs []*job.Job) error

	// ReplaceFutureOccurrences applies an all-future series edit atomically.
	ReplaceFutureOccurrences(ctx context.Context, tenantID id.TenantID, split store.SeriesSplit) error
}

// Manager owns the job lifecycle. Construct one with New and share it; the
// Manager itself is stateless and safe for concurrent use.
type Manager struct {
	store      Store
	guard      *authz.Guard
	detector   *conflict.Detector
	dir        directory.Directory
	extensions *ext.Registry
	mw         middleware.Middleware
	config     fieldline.Config
	logger     *slog.Logger

	// Collected by options, registered into the registry in New.
	exts    []ext.Extension
	userMws []middleware.Middleware

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithConfig overrides the default lifecycle tuning (operation timeout and
// the sweep windows the Manager never reads itself but hands to callers).
func WithConfig(cfg fieldline.Config) Option {
	return func(m *Manager) { m.config = cfg }
}

// WithGuard sets the authorization guard. The default guard resolves every
// tenant to the single-user tier, which denies all assignment.
func WithGuard(g *authz.Guard) Option {
	return func(m *Manager) { m.guard = g }
}

// WithDirectory wires the platform lookups used to validate contact,
// service, quote, and invoice references at create time and to annotate
// conflicts with contact names. Without it, reference validation is
// skipped and conflict annotations stay empty.
func WithDirectory(d directory.Directory) Option {
	return func(m *Manager) { m.dir = d }
}

// WithExtension registers an extension with the Manager's registry.
func WithExtension(e ext.Extension) Option {
	return func(m *Manager) { m.exts = append(m.exts, e) }
}

// WithMiddleware appends middleware after the default chain.
func WithMiddleware(mw middleware.Middleware) Option {
	return func(m *Manager) { m.userMws = append(m.userMws, mw) }
}

// WithTracerProvider sets a custom OTel TracerProvider. When unset, the
// global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) { m.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for both the metrics
// middleware and the observability extension. When unset, the global
// otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(m *Manager) { m.meterProvider = mp }
}

// New creates a Manager on the given store.
func New(st Store, opts ...Option) (*Manager, error) {
	if st == nil {
		return nil, fieldline.ErrNoStore
	}

	m := &Manager{
		store:  st,
		config: fieldline.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.guard == nil {
		m.guard = authz.New(nil, authz.WithLogger(m.logger))
	}

	detectorOpts := []conflict.Option{conflict.WithLogger(m.logger)}
	if m.dir != nil {
		detectorOpts = append(detectorOpts, conflict.WithContacts(m.dir))
	}
	m.detector = conflict.New(st, detectorOpts...)

	// Build tracing middleware (custom provider or global).
	var tracingMw middleware.Middleware
	if m.tracerProvider != nil {
		tracer := m.tracerProvider.Tracer("github.com/fieldline/fieldline")
		tracingMw = middleware.TracingWithTracer(tracer)
	} else {
		tracingMw = middleware.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw middleware.Middleware
	if m.meterProvider != nil {
		meter := m.meterProvider.Meter("github.com/fieldline/fieldline")
		metricsMw = middleware.MetricsWithMeter(meter)
	} else {
		metricsMw = middleware.Metrics()
	}

	// Register the observability metrics extension before user extensions
	// so its counters see every event.
	var obsExt *observability.MetricsExtension
	if m.meterProvider != nil {
		meter := m.meterProvider.Meter("github.com/fieldline/fieldline/observability")
		obsExt = observability.NewMetricsExtensionWithMeter(meter)
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	m.extensions = ext.NewRegistry(m.logger)
	m.extensions.Register(obsExt)
	for _, e := range m.exts {
		m.extensions.Register(e)
	}

	// Default middleware stack: recover → tracing → metrics → logging →
	// timeout, then user middleware innermost.
	mws := []middleware.Middleware{
		middleware.Recover(m.logger),
		tracingMw,
		metricsMw,
		middleware.Logging(m.logger),
		middleware.Timeout(m.config.OperationTimeout),
	}
	mws = append(mws, m.userMws...)
	m.mw = middleware.Chain(mws...)

	return m, nil
}

// Extensions returns the extension registry, for wiring collaborators that
// emit into the same hooks (the sweep scheduler, for example).
func (m *Manager) Extensions() *ext.Registry { return m.extensions }

// Guard returns the authorization guard.
func (m *Manager) Guard() *authz.Guard { return m.guard }

// Detector returns the conflict detector.
func (m *Manager) Detector() *conflict.Detector { return m.detector }

// Config returns the Manager's effective configuration.
func (m *Manager) Config() fieldline.Config { return m.config }

// Shutdown notifies every registered extension that the Manager is going
// away, giving buffering extensions a last chance to flush. The store is
// owned by the caller and may be shared with a sweep; Shutdown does not
// close it.
func (m *Manager) Shutdown(ctx context.Context) {
	m.logger.Info("lifecycle manager shutting down")
	m.extensions.EmitShutdown(ctx)
}

// run executes one operation through the middleware chain.
func (m *Manager) run(ctx context.Context, op *middleware.Op, fn middleware.Handler) error {
	return m.mw(ctx, op, fn)
}

// passthrough lists the domain outcomes a store may legitimately report;
// callers match these directly, so they are never buried inside a
// PersistenceError.
var passthrough = []error{
	fieldline.ErrJobNotFound,
	fieldline.ErrRuleNotFound,
	fieldline.ErrJobAlreadyExists,
	fieldline.ErrRuleAlreadyExists,
	fieldline.ErrTenantRequired,
}

// persistFail classifies a write failure. Domain outcomes pass through;
// everything else is wrapped so callers can tell "the mutation was not
// applied" from a domain rejection.
func persistFail(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range passthrough {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	var verr *fieldline.ValidationError
	if errors.As(err, &verr) {
		return err
	}

	return &fieldline.PersistenceError{Op: op, Err: err}
}

// authorize runs the guard for one mutation.
func (m *Manager) authorize(ctx context.Context, actor authz.Actor, req authz.Request) error {
	return m.guard.Authorize(ctx, actor, req)
}

// validateLinks checks the job's directory references inside the tenant.
// A nil directory skips validation; an unknown reference is a validation
// error naming the field.
func (m *Manager) validateLinks(ctx context.Context, tenantID id.TenantID, j *job.Job) error {
	if m.dir == nil {
		return nil
	}

	if !j.ContactID.IsNil() {
		if _, err := m.dir.GetContact(ctx, tenantID, j.ContactID); err != nil {
			return linkErr("contact_id", err)
		}
	}
	if !j.ServiceID.IsNil() {
		if _, err := m.dir.GetService(ctx, tenantID, j.ServiceID); err != nil {
			return linkErr("service_id", err)
		}
	}
	if !j.QuoteID.IsNil() {
		if _, err := m.dir.GetQuote(ctx, tenantID, j.QuoteID); err != nil {
			return linkErr("quote_id", err)
		}
	}
	if !j.InvoiceID.IsNil() {
		if _, err := m.dir.GetInvoice(ctx, tenantID, j.InvoiceID); err != nil {
			return linkErr("invoice_id", err)
		}
	}

	return nil
}

func linkErr(field string, err error) error {
	if errors.Is(err, directory.ErrNotFound) {
		return fieldline.NewValidationError(field, "not found in this workspace")
	}

	return err
}

// collectConflicts runs the detector once per occurrence window and merges
// the results, deduplicating bookings that collide with more than one
// occurrence. skip holds job ids being replaced in the same transaction;
// colliding with a row that is about to be deleted is not a conflict.
func (m *Manager) collectConflicts(ctx context.Context, tenantID id.TenantID, windows []recurrence.Window, skip map[string]bool) ([]conflict.Conflict, error) {
	seen := map[string]bool{}
	var out []conflict.Conflict
	for _, w := range windows {
		found, err := m.detector.FindConflicts(ctx, tenantID, conflict.Window{Start: w.Start, End: w.End}, id.Nil)
		if err != nil {
			return nil, err
		}
		for _, c := range found {
			key := c.JobID.String()
			if skip[key] || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, k int) bool {
		if !out[i].Start.Equal(out[k].Start) {
			return out[i].Start.Before(out[k].Start)
		}

		return out[i].JobID.String() < out[k].JobID.String()
	})

	return out, nil
}

// releaseRule removes a series rule once no occurrence references it.
// The mutation that orphaned the rule has already committed, so cleanup is
// best-effort: a failure here only logs.
func (m *Manager) releaseRule(ctx context.Context, tenantID id.TenantID, seriesID id.SeriesID) {
	if seriesID.IsNil() {
		return
	}
	remaining, err := m.store.ListSeries(ctx, tenantID, seriesID)
	if err != nil || len(remaining) > 0 {
		return
	}
	if err := m.store.DeleteRule(ctx, tenantID, seriesID); err != nil && !errors.Is(err, fieldline.ErrRuleNotFound) {
		m.logger.Warn("failed to remove orphaned series rule",
			slog.String("tenant_id", tenantID.String()),
			slog.String("series_id", seriesID.String()),
			slog.String("error", err.Error()),
		)
	}
}
