// Package store defines the aggregate persistence interface. Each subsystem
// (job, recurrence, sweep) defines its own store interface; the composite
// Store composes them and adds the cross-entity operations that must be
// atomic. Backends: Postgres, SQLite, and Memory.
package store

import (
	"context"

	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
	"github.com/fieldline/fieldline/recurrence"
	"github.com/fieldline/fieldline/sweep"
)

// TenantLister enumerates tenants for the archival sweep.
type TenantLister interface {
	// ListTenants returns the distinct tenants that own at least one job.
	ListTenants(ctx context.Context) ([]id.TenantID, error)
}

// SeriesSplit describes an all-future series edit: the occurrences to
// remove, the rule generating their replacements, and the replacement
// occurrences themselves. NewRule is nil when the replacements are
// detached one-offs.
type SeriesSplit struct {
	SeriesID     id.SeriesID
	DeleteIDs    []id.JobID
	NewRule      *recurrence.Rule
	Replacements []*job.Job
}

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface; a single backend
// (postgres, sqlite, memory) implements all of them. Operations that span
// jobs and rules live here because they must commit or fail as one unit.
type Store interface {
	job.Store
	recurrence.SeriesStore
	sweep.RunStore
	TenantLister

	// CreateSeries persists a rule and its expanded occurrences in one
	// transaction: either the rule and every job land, or nothing does.
	CreateSeries(ctx context.Context, rule *recurrence.Rule, jobs []*job.Job) error

	// ReplaceFutureOccurrences deletes the split's occurrences and inserts
	// the replacement rule and jobs in one transaction. If the delete
	// leaves the old rule unreferenced, the rule row is removed too.
	ReplaceFutureOccurrences(ctx context.Context, tenantID id.TenantID, split SeriesSplit) error

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
