package fieldline

import (
	"errors"
	"fmt"

	"github.com/fieldline/fieldline/id"
)

var (
	// Store errors.
	ErrNoStore         = errors.New("fieldline: no store configured")
	ErrStoreClosed     = errors.New("fieldline: store closed")
	ErrMigrationFailed = errors.New("fieldline: migration failed")

	// Not found errors.
	ErrJobNotFound      = errors.New("fieldline: job not found")
	ErrRuleNotFound     = errors.New("fieldline: recurrence rule not found")
	ErrRunNotFound      = errors.New("fieldline: sweep run not found")
	ErrSnapshotNotFound = errors.New("fieldline: archive snapshot not found")

	// Duplicate errors.
	ErrJobAlreadyExists  = errors.New("fieldline: job already exists")
	ErrRuleAlreadyExists = errors.New("fieldline: recurrence rule already exists")
	ErrRunAlreadyExists  = errors.New("fieldline: sweep run already exists")

	// State errors.
	ErrInvalidTransition = errors.New("fieldline: invalid status transition")
	ErrJobArchived       = errors.New("fieldline: job is archived")
	ErrNotArchived       = errors.New("fieldline: job is not archived")
	ErrJobTrashed        = errors.New("fieldline: job is trashed")

	// Scope errors.
	ErrTenantRequired = errors.New("fieldline: tenant id required")
)

// ValidationError reports a malformed request: a bad recurrence rule, a
// missing required field, an inverted time range. Nothing is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError for the given field.
// Field may be empty when the problem is not tied to a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("fieldline: validation: %s", e.Reason)
	}

	return fmt.Sprintf("fieldline: validation: %s: %s", e.Field, e.Reason)
}

// AuthzError reports a guard denial. Reason is caller-facing and names the
// specific ground for denial (insufficient role, subscription required,
// not your job) rather than a generic refusal.
type AuthzError struct {
	Reason string
}

// NewAuthzError builds an AuthzError with the given reason.
func NewAuthzError(reason string) *AuthzError {
	return &AuthzError{Reason: reason}
}

func (e *AuthzError) Error() string {
	return "fieldline: not authorized: " + e.Reason
}

// PersistenceError wraps a storage failure. The mutation is considered not
// applied; callers may retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("fieldline: persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ArchiveWriteError reports a failed archive snapshot write for one job
// during a sweep. The batch continues; the job stays active and remains
// eligible for the next run.
type ArchiveWriteError struct {
	TenantID id.TenantID
	JobID    id.JobID
	Err      error
}

func (e *ArchiveWriteError) Error() string {
	return fmt.Sprintf("fieldline: archive write %s/%s: %v", e.TenantID, e.JobID, e.Err)
}

func (e *ArchiveWriteError) Unwrap() error { return e.Err }
