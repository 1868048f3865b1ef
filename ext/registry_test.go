package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/ext"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnJobsCreated(_ context.Context, _ []*job.Job) error {
	e.calls = append(e.calls, "OnJobsCreated")
	return nil
}

func (e *allHooksExt) OnJobUpdated(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobUpdated")
	return nil
}

func (e *allHooksExt) OnJobConfirmed(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobConfirmed")
	return nil
}

func (e *allHooksExt) OnJobDeclined(_ context.Context, _ *job.Job, _ string) error {
	e.calls = append(e.calls, "OnJobDeclined")
	return nil
}

func (e *allHooksExt) OnJobsArchived(_ context.Context, _ id.TenantID, _ []id.JobID) error {
	e.calls = append(e.calls, "OnJobsArchived")
	return nil
}

func (e *allHooksExt) OnJobsRestored(_ context.Context, _ id.TenantID, _ []id.JobID) error {
	e.calls = append(e.calls, "OnJobsRestored")
	return nil
}

func (e *allHooksExt) OnJobsDeleted(_ context.Context, _ id.TenantID, _ []id.JobID) error {
	e.calls = append(e.calls, "OnJobsDeleted")
	return nil
}

func (e *allHooksExt) OnSweepCompleted(_ context.Context, _ *fieldline.SweepReport) error {
	e.calls = append(e.calls, "OnSweepCompleted")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// confirmOnlyExt only implements the confirmation hooks.
type confirmOnlyExt struct {
	calls []string
}

func (e *confirmOnlyExt) Name() string { return "confirm-only" }

func (e *confirmOnlyExt) OnJobConfirmed(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobConfirmed")
	return nil
}

func (e *confirmOnlyExt) OnJobDeclined(_ context.Context, _ *job.Job, _ string) error {
	e.calls = append(e.calls, "OnJobDeclined")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnJobConfirmed(_ context.Context, _ *job.Job) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	co := &confirmOnlyExt{}
	r.Register(all)
	r.Register(co)

	ctx := context.Background()
	j := &job.Job{Title: "Test job"}

	// Both implement OnJobConfirmed → both called.
	r.EmitJobConfirmed(ctx, j)
	if len(all.calls) != 1 || all.calls[0] != "OnJobConfirmed" {
		t.Fatalf("all: expected [OnJobConfirmed], got %v", all.calls)
	}
	if len(co.calls) != 1 || co.calls[0] != "OnJobConfirmed" {
		t.Fatalf("co: expected [OnJobConfirmed], got %v", co.calls)
	}

	// Only all implements OnJobUpdated → co not called.
	r.EmitJobUpdated(ctx, j)
	if len(all.calls) != 2 || all.calls[1] != "OnJobUpdated" {
		t.Fatalf("all: expected OnJobUpdated as 2nd, got %v", all.calls)
	}
	if len(co.calls) != 1 {
		t.Fatalf("co: should still have 1 call, got %v", co.calls)
	}
}

func TestRegistry_AllJobHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	j := &job.Job{Title: "Test job"}

	r.EmitJobsCreated(ctx, []*job.Job{j})
	r.EmitJobUpdated(ctx, j)
	r.EmitJobConfirmed(ctx, j)
	r.EmitJobDeclined(ctx, j, "customer cancelled")

	expected := []string{
		"OnJobsCreated", "OnJobUpdated", "OnJobConfirmed", "OnJobDeclined",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_AllRetentionHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	tenant := id.NewTenantID()
	ids := []id.JobID{id.NewJobID(), id.NewJobID()}

	r.EmitJobsArchived(ctx, tenant, ids)
	r.EmitJobsRestored(ctx, tenant, ids)
	r.EmitJobsDeleted(ctx, tenant, ids)

	expected := []string{"OnJobsArchived", "OnJobsRestored", "OnJobsDeleted"}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_SweepAndShutdownHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	r.EmitSweepCompleted(ctx, &fieldline.SweepReport{ArchivedCount: 3})
	r.EmitShutdown(ctx)

	if len(all.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d: %v", len(all.calls), all.calls)
	}
	if all.calls[0] != "OnSweepCompleted" {
		t.Errorf("call[0] = %q, want OnSweepCompleted", all.calls[0])
	}
	if all.calls[1] != "OnShutdown" {
		t.Errorf("call[1] = %q, want OnShutdown", all.calls[1])
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	failing := &failingExt{}
	all := &allHooksExt{}

	// Register failing first, then all-hooks. Both should be called.
	r.Register(failing)
	r.Register(all)

	ctx := context.Background()
	j := &job.Job{Title: "Test job"}

	// No panic, no error propagation. allHooksExt should still fire.
	r.EmitJobConfirmed(ctx, j)

	if len(all.calls) != 1 || all.calls[0] != "OnJobConfirmed" {
		t.Fatalf("all: expected [OnJobConfirmed] despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ctx := context.Background()

	// None of these should panic or error.
	r.EmitJobsCreated(ctx, []*job.Job{{}})
	r.EmitJobUpdated(ctx, &job.Job{})
	r.EmitJobConfirmed(ctx, &job.Job{})
	r.EmitJobDeclined(ctx, &job.Job{}, "x")
	r.EmitJobsArchived(ctx, id.NewTenantID(), nil)
	r.EmitJobsRestored(ctx, id.NewTenantID(), nil)
	r.EmitJobsDeleted(ctx, id.NewTenantID(), nil)
	r.EmitSweepCompleted(ctx, &fieldline.SweepReport{})
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ext1 := &allHooksExt{}
	ext2 := &allHooksExt{}
	r.Register(ext1)
	r.Register(ext2)

	ctx := context.Background()
	r.EmitJobConfirmed(ctx, &job.Job{})

	// Both should be called.
	if len(ext1.calls) != 1 {
		t.Errorf("ext1: expected 1 call, got %d", len(ext1.calls))
	}
	if len(ext2.calls) != 1 {
		t.Errorf("ext2: expected 1 call, got %d", len(ext2.calls))
	}
}
