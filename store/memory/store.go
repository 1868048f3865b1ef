// Package memory implements store.Store entirely in process memory.
// Safe for concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fieldline/fieldline"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
	"github.com/fieldline/fieldline/recurrence"
	"github.com/fieldline/fieldline/store"
	"github.com/fieldline/fieldline/sweep"
)

// Ensure Store implements the composite interface at compile time.
var _ store.Store = (*Store)(nil)

// Store is a fully in-memory implementation of store.Store. All reads and
// writes hand out deep copies so callers can never mutate cached rows.
type Store struct {
	mu sync.RWMutex

	jobs  map[string]*job.Job
	rules map[string]*recurrence.Rule
	runs  map[string]*sweep.Run
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:  make(map[string]*job.Job),
		rules: make(map[string]*recurrence.Rule),
		runs:  make(map[string]*sweep.Run),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// CreateJob persists a new job.
func (m *Store) CreateJob(_ context.Context, j *job.Job) error {
	if j.TenantID.IsNil() {
		return fieldline.ErrTenantRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return fieldline.ErrJobAlreadyExists
	}
	m.jobs[key] = j.Clone()
	return nil
}

// GetJob retrieves a job by id within the tenant.
func (m *Store) GetJob(_ context.Context, tenantID id.TenantID, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok || j.TenantID != tenantID {
		return nil, fieldline.ErrJobNotFound
	}
	return j.Clone(), nil
}

// UpdateJob persists changes to an existing job, matched by tenant and id.
func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	existing, ok := m.jobs[key]
	if !ok || existing.TenantID != j.TenantID {
		return fieldline.ErrJobNotFound
	}
	cp := j.Clone()
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[key] = cp
	return nil
}

// DeleteJob removes a job row entirely.
func (m *Store) DeleteJob(_ context.Context, tenantID id.TenantID, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	j, ok := m.jobs[key]
	if !ok || j.TenantID != tenantID {
		return fieldline.ErrJobNotFound
	}
	delete(m.jobs, key)
	return nil
}

// DeleteJobs removes several job rows entirely. Missing ids are skipped.
func (m *Store) DeleteJobs(_ context.Context, tenantID id.TenantID, jobIDs []id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, jobID := range jobIDs {
		key := jobID.String()
		if j, ok := m.jobs[key]; ok && j.TenantID == tenantID {
			delete(m.jobs, key)
		}
	}
	return nil
}

// ListJobs returns the tenant's jobs matching the filter.
func (m *Store) ListJobs(_ context.Context, tenantID id.TenantID, filter job.ListFilter) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.TenantID != tenantID || !matches(j, filter) {
			continue
		}
		result = append(result, j.Clone())
	}
	sortJobs(result)

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// ListSeries returns all occurrences of one series, ordered by start.
func (m *Store) ListSeries(_ context.Context, tenantID id.TenantID, seriesID id.SeriesID) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*job.Job
	for _, j := range m.jobs {
		if j.TenantID != tenantID || j.SeriesID != seriesID {
			continue
		}
		result = append(result, j.Clone())
	}
	sortJobs(result)
	return result, nil
}

// ListActiveBetween returns active jobs whose window overlaps the
// half-open range [from, to).
func (m *Store) ListActiveBetween(_ context.Context, tenantID id.TenantID, from, to time.Time) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*job.Job
	for _, j := range m.jobs {
		if j.TenantID != tenantID || !j.IsActive() || !j.HasWindow() {
			continue
		}
		if j.StartTime.Before(to) && j.EndTime.After(from) {
			result = append(result, j.Clone())
		}
	}
	sortJobs(result)
	return result, nil
}

// ListArchiveCandidates returns active jobs whose end time is before the
// cutoff. Jobs without a window are never candidates.
func (m *Store) ListArchiveCandidates(_ context.Context, tenantID id.TenantID, cutoff time.Time) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*job.Job
	for _, j := range m.jobs {
		if j.TenantID != tenantID || !j.IsActive() || j.EndTime == nil {
			continue
		}
		if j.EndTime.Before(cutoff) {
			result = append(result, j.Clone())
		}
	}
	sortJobs(result)
	return result, nil
}

// ListPurgeCandidates returns archived, non-trashed jobs whose ArchivedAt
// is before the cutoff.
func (m *Store) ListPurgeCandidates(_ context.Context, tenantID id.TenantID, cutoff time.Time) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*job.Job
	for _, j := range m.jobs {
		if j.TenantID != tenantID || j.ArchivedAt == nil || j.DeletedAt != nil {
			continue
		}
		if j.ArchivedAt.Before(cutoff) {
			result = append(result, j.Clone())
		}
	}
	sortJobs(result)
	return result, nil
}

// ArchiveJobs stamps ArchivedAt on the given jobs. Already-archived jobs
// keep their original stamp; missing ids are skipped.
func (m *Store) ArchiveJobs(_ context.Context, tenantID id.TenantID, jobIDs []id.JobID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, jobID := range jobIDs {
		j, ok := m.jobs[jobID.String()]
		if !ok || j.TenantID != tenantID || j.ArchivedAt != nil {
			continue
		}
		stamp := at
		j.ArchivedAt = &stamp
		j.UpdatedAt = now
	}
	return nil
}

// RestoreJobs clears ArchivedAt on the given jobs. Missing ids are skipped.
func (m *Store) RestoreJobs(_ context.Context, tenantID id.TenantID, jobIDs []id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, jobID := range jobIDs {
		j, ok := m.jobs[jobID.String()]
		if !ok || j.TenantID != tenantID || j.ArchivedAt == nil {
			continue
		}
		j.ArchivedAt = nil
		j.UpdatedAt = now
	}
	return nil
}

// CountJobs returns the number of the tenant's jobs matching the filter.
func (m *Store) CountJobs(_ context.Context, tenantID id.TenantID, filter job.CountFilter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, j := range m.jobs {
		if j.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.Retention != "" && j.Retention() != filter.Retention {
			continue
		}
		count++
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Recurrence Store
// ──────────────────────────────────────────────────

// CreateRule persists a new rule.
func (m *Store) CreateRule(_ context.Context, r *recurrence.Rule) error {
	if r.TenantID.IsNil() {
		return fieldline.ErrTenantRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := r.ID.String()
	if _, exists := m.rules[key]; exists {
		return fieldline.ErrRuleAlreadyExists
	}
	m.rules[key] = r.Clone()
	return nil
}

// GetRule retrieves a rule by id within the tenant.
func (m *Store) GetRule(_ context.Context, tenantID id.TenantID, ruleID id.SeriesID) (*recurrence.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rules[ruleID.String()]
	if !ok || r.TenantID != tenantID {
		return nil, fieldline.ErrRuleNotFound
	}
	return r.Clone(), nil
}

// DeleteRule removes a rule.
func (m *Store) DeleteRule(_ context.Context, tenantID id.TenantID, ruleID id.SeriesID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ruleID.String()
	r, ok := m.rules[key]
	if !ok || r.TenantID != tenantID {
		return fieldline.ErrRuleNotFound
	}
	delete(m.rules, key)
	return nil
}

// ListRules returns the tenant's rules ordered by creation time.
func (m *Store) ListRules(_ context.Context, tenantID id.TenantID) ([]*recurrence.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*recurrence.Rule
	for _, r := range m.rules {
		if r.TenantID != tenantID {
			continue
		}
		result = append(result, r.Clone())
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})
	return result, nil
}

// ──────────────────────────────────────────────────
// Sweep Run Store
// ──────────────────────────────────────────────────

// CreateRun records a completed sweep pass.
func (m *Store) CreateRun(_ context.Context, r *sweep.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := r.ID.String()
	if _, exists := m.runs[key]; exists {
		return fieldline.ErrRunAlreadyExists
	}
	m.runs[key] = r.Clone()
	return nil
}

// GetRun returns a single run by id.
func (m *Store) GetRun(_ context.Context, runID id.SweepRunID) (*sweep.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.runs[runID.String()]
	if !ok {
		return nil, fieldline.ErrRunNotFound
	}
	return r.Clone(), nil
}

// ListRuns returns runs ordered most recent first.
func (m *Store) ListRuns(_ context.Context, limit int) ([]*sweep.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*sweep.Run, 0, len(m.runs))
	for _, r := range m.runs {
		result = append(result, r.Clone())
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].Report.StartedAt.After(result[k].Report.StartedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Tenants and cross-entity operations
// ──────────────────────────────────────────────────

// ListTenants returns the distinct tenants that own at least one job.
func (m *Store) ListTenants(_ context.Context) ([]id.TenantID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]id.TenantID)
	for _, j := range m.jobs {
		seen[j.TenantID.String()] = j.TenantID
	}

	result := make([]id.TenantID, 0, len(seen))
	for _, tenantID := range seen {
		result = append(result, tenantID)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].String() < result[k].String()
	})
	return result, nil
}

// CreateSeries persists a rule and its expanded occurrences atomically.
func (m *Store) CreateSeries(_ context.Context, rule *recurrence.Rule, jobs []*job.Job) error {
	if rule == nil || len(jobs) == 0 {
		return fieldline.NewValidationError("series", "rule and at least one occurrence required")
	}
	if rule.TenantID.IsNil() {
		return fieldline.ErrTenantRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Check everything before touching state so the write is all-or-nothing.
	if _, exists := m.rules[rule.ID.String()]; exists {
		return fieldline.ErrRuleAlreadyExists
	}
	for _, j := range jobs {
		if _, exists := m.jobs[j.ID.String()]; exists {
			return fieldline.ErrJobAlreadyExists
		}
	}

	m.rules[rule.ID.String()] = rule.Clone()
	for _, j := range jobs {
		m.jobs[j.ID.String()] = j.Clone()
	}
	return nil
}

// ReplaceFutureOccurrences deletes the split's occurrences and inserts the
// replacement rule and jobs atomically.
func (m *Store) ReplaceFutureOccurrences(_ context.Context, tenantID id.TenantID, split store.SeriesSplit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if split.NewRule != nil {
		if _, exists := m.rules[split.NewRule.ID.String()]; exists {
			return fieldline.ErrRuleAlreadyExists
		}
	}
	for _, j := range split.Replacements {
		if _, exists := m.jobs[j.ID.String()]; exists {
			return fieldline.ErrJobAlreadyExists
		}
	}

	for _, jobID := range split.DeleteIDs {
		key := jobID.String()
		if j, ok := m.jobs[key]; ok && j.TenantID == tenantID {
			delete(m.jobs, key)
		}
	}

	// Drop the old rule once no occurrence references it.
	if !split.SeriesID.IsNil() {
		var referenced bool
		for _, j := range m.jobs {
			if j.SeriesID == split.SeriesID {
				referenced = true
				break
			}
		}
		if !referenced {
			if r, ok := m.rules[split.SeriesID.String()]; ok && r.TenantID == tenantID {
				delete(m.rules, split.SeriesID.String())
			}
		}
	}

	if split.NewRule != nil {
		m.rules[split.NewRule.ID.String()] = split.NewRule.Clone()
	}
	for _, j := range split.Replacements {
		m.jobs[j.ID.String()] = j.Clone()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// sortJobs orders jobs by start time ascending, jobs without a start time
// last, ties broken by creation time.
func sortJobs(jobs []*job.Job) {
	sort.Slice(jobs, func(i, k int) bool {
		a, b := jobs[i], jobs[k]
		switch {
		case a.StartTime == nil && b.StartTime == nil:
			return a.CreatedAt.Before(b.CreatedAt)
		case a.StartTime == nil:
			return false
		case b.StartTime == nil:
			return true
		case a.StartTime.Equal(*b.StartTime):
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return a.StartTime.Before(*b.StartTime)
		}
	})
}

// matches reports whether j passes the list filter. Retention gating comes
// first: trashed rows need ShowDeleted, archived rows need IncludeArchived.
func matches(j *job.Job, f job.ListFilter) bool {
	switch j.Retention() {
	case job.RetentionTrashed:
		if !f.ShowDeleted {
			return false
		}
	case job.RetentionArchived:
		if !f.IncludeArchived {
			return false
		}
	case job.RetentionActive:
	}

	if f.From != nil || f.To != nil {
		if j.StartTime == nil {
			return false
		}
		if f.From != nil && j.StartTime.Before(*f.From) {
			return false
		}
		if f.To != nil && !j.StartTime.Before(*f.To) {
			return false
		}
	}

	if !f.CreatedByID.IsNil() && j.CreatedByID != f.CreatedByID {
		return false
	}
	if !f.AssignedUserID.IsNil() && !j.IsAssignedTo(f.AssignedUserID) {
		return false
	}
	if !f.SeriesID.IsNil() && j.SeriesID != f.SeriesID {
		return false
	}
	return true
}
