package lifecycle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/lifecycle"
)

func TestArchiveAndRestore(t *testing.T) {
	t.Parallel()

	m, st, rec := newManager(t)
	tenantID := id.NewTenantID()
	actor := owner(tenantID)
	ctx := context.Background()

	created := mustCreate(t, m, tenantID, actor, scheduledDraft(id.NewContactID(), at(2, 9), at(2, 10)))
	jobID := created[0].ID

	if err := m.Archive(ctx, tenantID, actor, jobID, false); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	stored, err := st.GetJob(ctx, tenantID, jobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.ArchivedAt == nil {
		t.Fatal("ArchivedAt not stamped")
	}
	if got := rec.lastArchived(); len(got) != 1 || got[0] != jobID {
		t.Errorf("JobsArchived saw %v", got)
	}

	if err := m.Restore(ctx, tenantID, actor, jobID, false); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	stored, _ = st.GetJob(ctx, tenantID, jobID)
	if stored.ArchivedAt != nil {
		t.Fatal("ArchivedAt survived restore")
	}
	if got := rec.lastRestored(); len(got) != 1 || got[0] != jobID {
		t.Errorf("JobsRestored saw %v", got)
	}
}

func TestArchiveIsIdempotent(t *testing.T) {
	t.Parallel()

	m, st, _ := newManager(t)
	tenantID := id.NewTenantID()
	actor := owner(tenantID)
	ctx := context.Background()

	created := mustCreate(t, m, tenantID, actor, scheduledDraft(id.NewContactID(), at(2, 9), at(2, 10)))
	jobID := created[0].ID

	if err := m.Archive(ctx, tenantID, actor, jobID, false); err != nil {
		t.Fatalf("first Archive: %v", err)
	}
	first, _ := st.GetJob(ctx, tenantID, jobID)

	if err := m.Archive(ctx, tenantID, actor, jobID, false); err != nil {
		t.Fatalf("second Archive: %v", err)
	}
	second, _ := st.GetJob(ctx, tenantID, jobID)
	if !second.ArchivedAt.Equal(*first.ArchivedAt) {
		t.Errorf("re-archive moved the stamp: %v → %v", first.ArchivedAt, second.ArchivedAt)
	}
}

func TestArchiveSeriesCascade(t *testing.T) {
	t.Parallel()

	m, st, rec := newManager(t)
	tenantID := id.NewTenantID()
	actor := owner(tenantID)
	ctx := context.Background()

	occurrences := weeklySeries(t, m, tenantID, actor, 3)

	// Archiving from the middle occurrence still reaches the whole series.
	if err := m.Archive(ctx, tenantID, actor, occurrences[1].ID, true); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	for _, o := range occurrences {
		stored, err := st.GetJob(ctx, tenantID, o.ID)
		if err != nil {
			t.Fatalf("GetJob(%s): %v", o.ID, err)
		}
		if stored.ArchivedAt == nil {
			t.Errorf("occurrence %s not archived", o.ID)
		}
	}
	if got := rec.lastArchived(); len(got) != 3 {
		t.Errorf("JobsArchived saw %d ids, want 3", len(got))
	}
}

func TestRestoreRequiresArchived(t *testing.T) {
	t.Parallel()

	m, _, _ := newManager(t)
	tenantID := id.NewTenantID()
	actor := owner(tenantID)

	created := mustCreate(t, m, tenantID, actor, scheduledDraft(id.NewContactID(), at(2, 9), at(2, 10)))

	err := m.Restore(context.Background(), tenantID, actor, created[0].ID, false)
	if !errors.Is(err, fieldline.ErrNotArchived) {
		t.Fatalf("Restore on active job = %v, want ErrNotArchived", err)
	}
}

func TestArchiveAndRestoreRejectTrashed(t *testing.T) {
	t.Parallel()

	m, st, _ := newManager(t)
	tenantID := id.NewTenantID()
	actor := owner(tenantID)
	ctx := context.Background()

	created := mustCreate(t, m, tenantID, actor, scheduledDraft(id.NewContactID(), at(2, 9), at(2, 10)))
	trash(t, st, tenantID, created[0].ID)

	if err := m.Archive(ctx, tenantID, actor, created[0].ID, false); !errors.Is(err, fieldline.ErrJobTrashed) {
		t.Fatalf("Archive on trashed = %v, want ErrJobTrashed", err)
	}
	if err := m.Restore(ctx, tenantID, actor, created[0].ID, false); !errors.Is(err, fieldline.ErrJobTrashed) {
		t.Fatalf("Restore on trashed = %v, want ErrJobTrashed", err)
	}
}

func TestPermanentDeleteRequiresArchiveOrForce(t *testing.T) {
	t.Parallel()

	m, st, rec := newManager(t)
	tenantID := id.NewTenantID()
	actor := owner(tenantID)
	ctx := context.Background()

	created := mustCreate(t, m, tenantID, actor, scheduledDraft(id.NewContactID(), at(2, 9), at(2, 10)))
	jobID := created[0].ID

	// Active and unforced: refused.
	err := m.PermanentDelete(ctx, tenantID, actor, jobID, lifecycle.PermanentDeleteOptions{})
	if !errors.Is(err, fieldline.ErrNotArchived) {
		t.Fatalf("delete active = %v, want ErrNotArchived", err)
	}
	if _, err := st.GetJob(ctx, tenantID, jobID); err != nil {
		t.Fatalf("refused delete removed the job: %v", err)
	}

	// Force bypasses the archive requirement.
	if err := m.PermanentDelete(ctx, tenantID, actor, jobID, lifecycle.PermanentDeleteOptions{Force: true}); err != nil {
		t.Fatalf("forced delete: %v", err)
	}
	if _, err := st.GetJob(ctx, tenantID, jobID); !errors.Is(err, fieldline.ErrJobNotFound) {
		t.Fatalf("GetJob after delete = %v, want ErrJobNotFound", err)
	}
	if got := rec.lastDeleted(); len(got) != 1 || got[0] != jobID {
		t.Errorf("JobsDeleted saw %v", got)
	}

	// Archived jobs delete without force.
	other := mustCreate(t, m, tenantID, actor, scheduledDraft(id.NewContactID(), at(3, 9), at(3, 10)))
	if err := m.Archive(ctx, tenantID, actor, other[0].ID, false); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := m.PermanentDelete(ctx, tenantID, actor, other[0].ID, lifecycle.PermanentDeleteOptions{}); err != nil {
		t.Fatalf("delete archived: %v", err)
	}
}

func TestPermanentDeleteSeriesCascade(t *testing.T) {
	t.Parallel()

	m, st, rec := newManager(t)
	tenantID := id.NewTenantID()
	actor := owner(tenantID)
	ctx := context.Background()

	occurrences := weeklySeries(t, m, tenantID, actor, 2)
	seriesID := occurrences[0].SeriesID

	err := m.PermanentDelete(ctx, tenantID, actor, occurrences[0].ID,
		lifecycle.PermanentDeleteOptions{Force: true, Series: true})
	if err != nil {
		t.Fatalf("PermanentDelete: %v", err)
	}

	for _, o := range occurrences {
		if _, err := st.GetJob(ctx, tenantID, o.ID); !errors.Is(err, fieldline.ErrJobNotFound) {
			t.Errorf("occurrence %s survived: %v", o.ID, err)
		}
	}
	// The orphaned rule goes with the last occurrence.
	if _, err := st.GetRule(ctx, tenantID, seriesID); !errors.Is(err, fieldline.ErrRuleNotFound) {
		t.Fatalf("GetRule = %v, want ErrRuleNotFound", err)
	}
	if got := rec.lastDeleted(); len(got) != 2 {
		t.Errorf("JobsDeleted saw %d ids, want 2", len(got))
	}
}
