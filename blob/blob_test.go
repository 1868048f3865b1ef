package blob

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/directory"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
	"github.com/fieldline/fieldline/recurrence"
)

// ──────────────────────────────────────────────────
// Key and snapshot tests
// ──────────────────────────────────────────────────

func TestKey(t *testing.T) {
	t.Parallel()
	tenantID := id.NewTenantID()
	jobID := id.NewJobID()

	key := Key(tenantID, jobID)
	parts := strings.Split(key, "/")
	if len(parts) != 2 {
		t.Fatalf("Key() = %q, want tenantID/jobID", key)
	}
	if parts[0] != tenantID.String() || parts[1] != jobID.String() {
		t.Errorf("Key() = %q, want %s/%s", key, tenantID, jobID)
	}
}

func newSnapshot() *Snapshot {
	tenantID := id.NewTenantID()
	start := time.Date(2026, time.March, 9, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	count := 4

	j := &job.Job{
		Entity:    fieldline.NewEntity(),
		ID:        id.NewJobID(),
		TenantID:  tenantID,
		Title:     "Quarterly boiler service",
		StartTime: &start,
		EndTime:   &end,
		Status:    job.StatusScheduled,
		ContactID: id.NewContactID(),
	}

	return &Snapshot{
		TenantID: tenantID,
		TakenAt:  time.Date(2026, time.August, 1, 3, 0, 0, 0, time.UTC),
		Job:      j,
		Contact:  &directory.ContactRef{ID: j.ContactID, Name: "Priya Raman", Email: "priya@example.com"},
		Rule: &recurrence.Rule{
			Entity:    fieldline.NewEntity(),
			ID:        id.NewSeriesID(),
			TenantID:  tenantID,
			Frequency: recurrence.FrequencyMonthly,
			Interval:  3,
			Count:     &count,
		},
	}
}

func TestSnapshotEncodeDecode(t *testing.T) {
	t.Parallel()
	snap := newSnapshot()

	data, err := snap.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}

	if got.Job.ID != snap.Job.ID {
		t.Errorf("job id = %s, want %s", got.Job.ID, snap.Job.ID)
	}
	if got.Job.Title != snap.Job.Title {
		t.Errorf("title = %q, want %q", got.Job.Title, snap.Job.Title)
	}
	if got.Contact == nil || got.Contact.Name != "Priya Raman" {
		t.Errorf("contact = %+v, want Priya Raman", got.Contact)
	}
	if got.Rule == nil || got.Rule.Frequency != recurrence.FrequencyMonthly {
		t.Errorf("rule = %+v, want monthly rule", got.Rule)
	}
	if !got.TakenAt.Equal(snap.TakenAt) {
		t.Errorf("taken at = %v, want %v", got.TakenAt, snap.TakenAt)
	}
	if got.Key() != snap.Key() {
		t.Errorf("key = %q, want %q", got.Key(), snap.Key())
	}
}

func TestDecodeSnapshotRejectsGarbage(t *testing.T) {
	t.Parallel()
	if _, err := DecodeSnapshot([]byte("not json")); err == nil {
		t.Error("DecodeSnapshot accepted garbage")
	}
}

// ──────────────────────────────────────────────────
// Backend conformance tests
// ──────────────────────────────────────────────────

// testStores builds one of every backend that runs without a server.
func testStores(t *testing.T) map[string]ArchiveStore {
	t.Helper()

	fsStore, err := NewFS(filepath.Join(t.TempDir(), "archive"))
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	return map[string]ArchiveStore{
		"memory": NewMemory(),
		"fs":     fsStore,
	}
}

func TestArchiveStorePutGetExists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			key := Key(id.NewTenantID(), id.NewJobID())
			payload := []byte(`{"title":"Gutter clean"}`)

			if err := s.Put(ctx, key, payload); err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, err := s.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != string(payload) {
				t.Errorf("Get = %q, want %q", got, payload)
			}

			ok, err := s.Exists(ctx, key)
			if err != nil {
				t.Fatalf("Exists: %v", err)
			}
			if !ok {
				t.Error("Exists = false after Put")
			}
		})
	}
}

func TestArchiveStoreMissingKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			key := Key(id.NewTenantID(), id.NewJobID())

			if _, err := s.Get(ctx, key); !errors.Is(err, fieldline.ErrSnapshotNotFound) {
				t.Errorf("Get error = %v, want ErrSnapshotNotFound", err)
			}

			ok, err := s.Exists(ctx, key)
			if err != nil {
				t.Fatalf("Exists: %v", err)
			}
			if ok {
				t.Error("Exists = true for missing key")
			}
		})
	}
}

func TestArchiveStorePutReplaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			key := Key(id.NewTenantID(), id.NewJobID())

			if err := s.Put(ctx, key, []byte("first")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := s.Put(ctx, key, []byte("second")); err != nil {
				t.Fatalf("Put again: %v", err)
			}

			got, err := s.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != "second" {
				t.Errorf("Get = %q, want %q", got, "second")
			}
		})
	}
}

func TestArchiveStoreRejectsBadKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "../escape", "/absolute", "ten/../../etc/passwd"} {
				if err := s.Put(ctx, key, []byte("x")); err == nil {
					t.Errorf("Put(%q) succeeded, want error", key)
				}
			}
		})
	}
}

func TestSnapshotRoundTripThroughStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemory()
	snap := newSnapshot()

	data, err := snap.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := s.Put(ctx, snap.Key(), data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	raw, err := s.Get(ctx, snap.Key())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, err := DecodeSnapshot(raw)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if got.Job.Title != snap.Job.Title {
		t.Errorf("title = %q, want %q", got.Job.Title, snap.Job.Title)
	}
}

// ──────────────────────────────────────────────────
// Backend-specific tests
// ──────────────────────────────────────────────────

func TestMemoryCopiesPayload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemory()
	key := Key(id.NewTenantID(), id.NewJobID())

	payload := []byte("original")
	if err := s.Put(ctx, key, payload); err != nil {
		t.Fatalf("Put: %v", err)
	}
	payload[0] = 'X'

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "original" {
		t.Errorf("Get = %q after caller mutation, want %q", got, "original")
	}

	got[0] = 'Y'
	again, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(again) != "original" {
		t.Errorf("Get = %q after reader mutation, want %q", again, "original")
	}
}

func TestMemoryLen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemory()

	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}

	key := Key(id.NewTenantID(), id.NewJobID())
	if err := s.Put(ctx, key, []byte("a")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, Key(id.NewTenantID(), id.NewJobID()), []byte("b")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}

	// Replacing an existing key must not grow the store.
	if err := s.Put(ctx, key, []byte("a2")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d after replace, want 2", s.Len())
	}
}

func TestFSLayout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()

	s, err := NewFS(root)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	tenantID := id.NewTenantID()
	jobID := id.NewJobID()
	if err := s.Put(ctx, Key(tenantID, jobID), []byte("{}")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	want := filepath.Join(root, tenantID.String(), jobID.String()+".json")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("snapshot file not at %s: %v", want, err)
	}
}

func TestFSRequiresRoot(t *testing.T) {
	t.Parallel()
	if _, err := NewFS(""); err == nil {
		t.Error(`NewFS("") succeeded, want error`)
	}
}

func TestFSCreatesRoot(t *testing.T) {
	t.Parallel()
	root := filepath.Join(t.TempDir(), "deep", "archive")

	if _, err := NewFS(root); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root not created: %v", err)
	}
}
