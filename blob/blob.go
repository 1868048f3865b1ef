// Package blob stores archive snapshots: the denormalized record of a job
// written immediately before the archival sweep stamps it. Snapshots are
// keyed "tenantID/jobID" and survive the job's eventual purge, so a
// tenant's history stays auditable after the row itself is gone.
//
// Three backends ship with Fieldline: Memory for tests and single-process
// setups, FS for a local archive directory, and Redis for shared
// deployments. All of them treat a second Put to the same key as a
// replace, which lets the sweep retry a partially failed pass without
// special casing.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldline/fieldline/directory"
	"github.com/fieldline/fieldline/id"
	"github.com/fieldline/fieldline/job"
	"github.com/fieldline/fieldline/recurrence"
)

// ArchiveStore is the contract the archival sweep writes through. Get and
// Exists serve audit readback; nothing in the engine deletes a snapshot.
type ArchiveStore interface {
	// Put writes the payload under key, replacing any previous payload.
	Put(ctx context.Context, key string, payload []byte) error

	// Get returns the payload stored under key. Returns
	// fieldline.ErrSnapshotNotFound if the key has never been written.
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether a payload is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases backend resources.
	Close() error
}

// Key builds the canonical snapshot key for a job: "tenantID/jobID".
func Key(tenantID id.TenantID, jobID id.JobID) string {
	return tenantID.String() + "/" + jobID.String()
}

// validateKey rejects keys that would escape a backend's namespace.
func validateKey(key string) error {
	if key == "" {
		return errors.New("blob: empty key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("blob: invalid key %q", key)
	}

	return nil
}

// Snapshot is the archive document. It denormalizes the directory records
// that gave the job meaning (contact, service, quote, invoice) plus the
// recurrence rule, so the document reads standalone long after those
// records change or disappear.
type Snapshot struct {
	TenantID id.TenantID `json:"tenant_id"`
	TakenAt  time.Time   `json:"taken_at"`

	Job *job.Job `json:"job"`

	Contact *directory.ContactRef `json:"contact,omitempty"`
	Service *directory.ServiceRef `json:"service,omitempty"`
	Quote   *directory.QuoteRef   `json:"quote,omitempty"`
	Invoice *directory.InvoiceRef `json:"invoice,omitempty"`
	Rule    *recurrence.Rule      `json:"rule,omitempty"`
}

// Key returns the snapshot's canonical storage key.
func (s *Snapshot) Key() string { return Key(s.TenantID, s.Job.ID) }

// Encode serializes the snapshot for storage.
func (s *Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("blob: encode snapshot: %w", err)
	}

	return data, nil
}

// DecodeSnapshot parses a stored snapshot payload.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("blob: decode snapshot: %w", err)
	}

	return &s, nil
}
