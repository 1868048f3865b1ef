package lifecycle_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/authz"
	"github.com/fieldline/fieldline/directory"
	"github.com/fieldline/fieldline/ext"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
	"github.com/fieldline/fieldline/lifecycle"
	"github.com/fieldline/fieldline/middleware"
	"github.com/fieldline/fieldline/store/memory"
)

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// at returns a deterministic instant on the given March 2026 day.
func at(day, hour int) time.Time {
	return time.Date(2026, time.March, day, hour, 0, 0, 0, time.UTC)
}

func owner(tenantID id.TenantID) authz.Actor {
	return authz.Actor{
		UserID:   id.NewUserID(),
		TenantID: tenantID,
		Role:     authz.RoleOwner,
	}
}

func employee(tenantID id.TenantID, caps authz.Capabilities) authz.Actor {
	return authz.Actor{
		UserID:       id.NewUserID(),
		TenantID:     tenantID,
		Role:         authz.RoleEmployee,
		Capabilities: caps,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newManager builds a Manager on a fresh in-memory store with a recorder
// extension registered. Extra options append after the defaults.
func newManager(t *testing.T, opts ...lifecycle.Option) (*lifecycle.Manager, *memory.Store, *recorder) {
	t.Helper()
	st := memory.New()
	rec := &recorder{}
	base := []lifecycle.Option{
		lifecycle.WithLogger(discardLogger()),
		lifecycle.WithExtension(rec),
	}
	m, err := lifecycle.New(st, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return m, st, rec
}

// teamGuard allows assignment: elevated roles on the team tier.
func teamGuard() lifecycle.Option {
	return lifecycle.WithGuard(authz.New(authz.StaticTier(authz.TierTeam)))
}

func scheduledDraft(contactID id.ContactID, start, end time.Time) lifecycle.Draft {
	return lifecycle.Draft{
		Title:     "Mow the lawn",
		ContactID: contactID,
		StartTime: &start,
		EndTime:   &end,
	}
}

// mustCreate persists a draft as the given actor and fails the test on any
// error.
func mustCreate(t *testing.T, m *lifecycle.Manager, tenantID id.TenantID, actor authz.Actor, draft lifecycle.Draft) []*job.Job {
	t.Helper()
	created, err := m.Create(context.Background(), tenantID, actor, draft, lifecycle.CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	return created
}

func ptr[T any](v T) *T {
	return &v
}

// ──────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────

// fakeDirectory resolves only the references registered on it.
type fakeDirectory struct {
	contacts map[string]*directory.ContactRef
	services map[string]*directory.ServiceRef
	quotes   map[string]*directory.QuoteRef
	invoices map[string]*directory.InvoiceRef
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		contacts: map[string]*directory.ContactRef{},
		services: map[string]*directory.ServiceRef{},
		quotes:   map[string]*directory.QuoteRef{},
		invoices: map[string]*directory.InvoiceRef{},
	}
}

func (d *fakeDirectory) addContact(name string) id.ContactID {
	contactID := id.NewContactID()
	d.contacts[contactID.String()] = &directory.ContactRef{ID: contactID, Name: name}

	return contactID
}

func (d *fakeDirectory) addService(name string) id.ServiceID {
	serviceID := id.NewServiceID()
	d.services[serviceID.String()] = &directory.ServiceRef{ID: serviceID, Name: name}

	return serviceID
}

func (d *fakeDirectory) GetContact(_ context.Context, _ id.TenantID, contactID id.ContactID) (*directory.ContactRef, error) {
	if ref, ok := d.contacts[contactID.String()]; ok {
		return ref, nil
	}

	return nil, directory.ErrNotFound
}

func (d *fakeDirectory) GetService(_ context.Context, _ id.TenantID, serviceID id.ServiceID) (*directory.ServiceRef, error) {
	if ref, ok := d.services[serviceID.String()]; ok {
		return ref, nil
	}

	return nil, directory.ErrNotFound
}

func (d *fakeDirectory) GetQuote(_ context.Context, _ id.TenantID, quoteID id.QuoteID) (*directory.QuoteRef, error) {
	if ref, ok := d.quotes[quoteID.String()]; ok {
		return ref, nil
	}

	return nil, directory.ErrNotFound
}

func (d *fakeDirectory) GetInvoice(_ context.Context, _ id.TenantID, invoiceID id.InvoiceID) (*directory.InvoiceRef, error) {
	if ref, ok := d.invoices[invoiceID.String()]; ok {
		return ref, nil
	}

	return nil, directory.ErrNotFound
}

// recorder captures every lifecycle event for assertions. When fail is
// set, each hook also returns an error so tests can prove hook failures
// never surface.
type recorder struct {
	mu   sync.Mutex
	fail bool

	created   [][]*job.Job
	updated   []*job.Job
	confirmed []*job.Job
	declined  []string
	archived  [][]id.JobID
	restored  [][]id.JobID
	deleted   [][]id.JobID
	shutdowns int
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) hookErr() error {
	if r.fail {
		return errors.New("recorder: hook failure")
	}

	return nil
}

func (r *recorder) OnJobsCreated(_ context.Context, jobs []*job.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, jobs)

	return r.hookErr()
}

func (r *recorder) OnJobUpdated(_ context.Context, j *job.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, j)

	return r.hookErr()
}

func (r *recorder) OnJobConfirmed(_ context.Context, j *job.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = append(r.confirmed, j)

	return r.hookErr()
}

func (r *recorder) OnJobDeclined(_ context.Context, _ *job.Job, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.declined = append(r.declined, reason)

	return r.hookErr()
}

func (r *recorder) OnJobsArchived(_ context.Context, _ id.TenantID, jobIDs []id.JobID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.archived = append(r.archived, jobIDs)

	return r.hookErr()
}

func (r *recorder) OnJobsRestored(_ context.Context, _ id.TenantID, jobIDs []id.JobID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restored = append(r.restored, jobIDs)

	return r.hookErr()
}

func (r *recorder) OnJobsDeleted(_ context.Context, _ id.TenantID, jobIDs []id.JobID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, jobIDs)

	return r.hookErr()
}

func (r *recorder) OnShutdown(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdowns++

	return r.hookErr()
}

func (r *recorder) createdBatches() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.created)
}

func (r *recorder) lastCreated() []*job.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.created) == 0 {
		return nil
	}

	return r.created[len(r.created)-1]
}

func (r *recorder) lastUpdated() *job.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updated) == 0 {
		return nil
	}

	return r.updated[len(r.updated)-1]
}

func (r *recorder) lastConfirmed() *job.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.confirmed) == 0 {
		return nil
	}

	return r.confirmed[len(r.confirmed)-1]
}

func (r *recorder) lastDeclined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.declined) == 0 {
		return ""
	}

	return r.declined[len(r.declined)-1]
}

func (r *recorder) lastArchived() []id.JobID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.archived) == 0 {
		return nil
	}

	return r.archived[len(r.archived)-1]
}

func (r *recorder) lastRestored() []id.JobID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.restored) == 0 {
		return nil
	}

	return r.restored[len(r.restored)-1]
}

func (r *recorder) lastDeleted() []id.JobID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.deleted) == 0 {
		return nil
	}

	return r.deleted[len(r.deleted)-1]
}

func (r *recorder) shutdownCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.shutdowns
}

// Interface checks for the fakes.
var (
	_ ext.Extension       = (*recorder)(nil)
	_ ext.JobsCreated     = (*recorder)(nil)
	_ ext.JobUpdated      = (*recorder)(nil)
	_ ext.JobConfirmed    = (*recorder)(nil)
	_ ext.JobDeclined     = (*recorder)(nil)
	_ ext.JobsArchived    = (*recorder)(nil)
	_ ext.JobsRestored    = (*recorder)(nil)
	_ ext.JobsDeleted     = (*recorder)(nil)
	_ ext.Shutdown        = (*recorder)(nil)
	_ directory.Directory = (*fakeDirectory)(nil)
)

// ──────────────────────────────────────────────────
// Manager construction
// ──────────────────────────────────────────────────

func TestNewRequiresStore(t *testing.T) {
	t.Parallel()

	if _, err := lifecycle.New(nil); !errors.Is(err, fieldline.ErrNoStore) {
		t.Fatalf("New(nil) = %v, want ErrNoStore", err)
	}
}

func TestOperationsRunThroughMiddleware(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	names := []string{}
	counting := func(ctx context.Context, op *middleware.Op, next middleware.Handler) error {
		mu.Lock()
		names = append(names, op.Name)
		mu.Unlock()

		return next(ctx)
	}

	m, _, _ := newManager(t, lifecycle.WithMiddleware(counting))
	tenantID := id.NewTenantID()
	actor := owner(tenantID)

	created := mustCreate(t, m, tenantID, actor, scheduledDraft(id.NewContactID(), at(2, 9), at(2, 10)))
	if _, err := m.GetByID(context.Background(), tenantID, actor, created[0].ID); err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"job.create", "job.get"}
	if len(names) != len(want) {
		t.Fatalf("middleware saw %v, want %v", names, want)
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("op[%d] = %q, want %q", i, names[i], name)
		}
	}
}

func TestHookFailureDoesNotBlockMutation(t *testing.T) {
	t.Parallel()

	m, st, rec := newManager(t)
	rec.fail = true
	tenantID := id.NewTenantID()

	created := mustCreate(t, m, tenantID, owner(tenantID), scheduledDraft(id.NewContactID(), at(2, 9), at(2, 10)))

	if _, err := st.GetJob(context.Background(), tenantID, created[0].ID); err != nil {
		t.Fatalf("job not persisted despite hook failure: %v", err)
	}
	if rec.createdBatches() != 1 {
		t.Fatalf("created batches = %d, want 1", rec.createdBatches())
	}
}

func TestShutdownNotifiesExtensions(t *testing.T) {
	t.Parallel()

	m, _, rec := newManager(t)
	m.Shutdown(context.Background())

	if got := rec.shutdownCalls(); got != 1 {
		t.Fatalf("shutdown hooks fired %d times, want 1", got)
	}
}

func TestOperationTimeoutApplies(t *testing.T) {
	t.Parallel()

	slow := func(ctx context.Context, _ *middleware.Op, next middleware.Handler) error {
		select {
		case <-time.After(200 * time.Millisecond):
			return next(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	cfg := fieldline.DefaultConfig()
	cfg.OperationTimeout = 10 * time.Millisecond
	m, _, _ := newManager(t, lifecycle.WithConfig(cfg), lifecycle.WithMiddleware(slow))
	tenantID := id.NewTenantID()

	_, err := m.Create(context.Background(), tenantID, owner(tenantID),
		scheduledDraft(id.NewContactID(), at(2, 9), at(2, 10)), lifecycle.CreateOptions{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Create under timeout = %v, want DeadlineExceeded", err)
	}
}
