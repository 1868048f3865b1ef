// Package id defines TypeID-based identity types for all Fieldline entities.
//
// Every entity in Fieldline uses a single ID struct with a prefix that
// identifies the entity type. IDs are K-sortable (UUIDv7-based), globally
// unique, and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all Fieldline entity types.
const (
	PrefixJob      Prefix = "job"
	PrefixTenant   Prefix = "ten"
	PrefixSeries   Prefix = "ser"
	PrefixContact  Prefix = "cta"
	PrefixUser     Prefix = "usr"
	PrefixService  Prefix = "svc"
	PrefixQuote    Prefix = "qte"
	PrefixInvoice  Prefix = "inv"
	PrefixSweepRun Prefix = "swp"
)

// ID is the primary identifier type for all Fieldline entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "job_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// MustParseWithPrefix is like ParseWithPrefix but panics on error.
func MustParseWithPrefix(s string, expected Prefix) ID {
	parsed, err := ParseWithPrefix(s, expected)
	if err != nil {
		panic(fmt.Sprintf("id: must parse with prefix %q: %v", expected, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases per entity
// ──────────────────────────────────────────────────

// JobID is a type-safe identifier for jobs (prefix: "job").
type JobID = ID

// TenantID is a type-safe identifier for tenants (prefix: "ten").
type TenantID = ID

// SeriesID is a type-safe identifier for recurrence series (prefix: "ser").
type SeriesID = ID

// ContactID is a type-safe identifier for contacts (prefix: "cta").
type ContactID = ID

// UserID is a type-safe identifier for users (prefix: "usr").
type UserID = ID

// ServiceID is a type-safe identifier for services (prefix: "svc").
type ServiceID = ID

// QuoteID is a type-safe identifier for quotes (prefix: "qte").
type QuoteID = ID

// InvoiceID is a type-safe identifier for invoices (prefix: "inv").
type InvoiceID = ID

// SweepRunID is a type-safe identifier for sweep runs (prefix: "swp").
type SweepRunID = ID

// AnyID is a type alias that accepts any valid prefix.
type AnyID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewJobID generates a new unique job ID.
func NewJobID() ID { return New(PrefixJob) }

// NewTenantID generates a new unique tenant ID.
func NewTenantID() ID { return New(PrefixTenant) }

// NewSeriesID generates a new unique series ID.
func NewSeriesID() ID { return New(PrefixSeries) }

// NewContactID generates a new unique contact ID.
func NewContactID() ID { return New(PrefixContact) }

// NewUserID generates a new unique user ID.
func NewUserID() ID { return New(PrefixUser) }

// NewServiceID generates a new unique service ID.
func NewServiceID() ID { return New(PrefixService) }

// NewQuoteID generates a new unique quote ID.
func NewQuoteID() ID { return New(PrefixQuote) }

// NewInvoiceID generates a new unique invoice ID.
func NewInvoiceID() ID { return New(PrefixInvoice) }

// NewSweepRunID generates a new unique sweep run ID.
func NewSweepRunID() ID { return New(PrefixSweepRun) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseJobID parses a string and validates the "job" prefix.
func ParseJobID(s string) (ID, error) { return ParseWithPrefix(s, PrefixJob) }

// ParseTenantID parses a string and validates the "ten" prefix.
func ParseTenantID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTenant) }

// ParseSeriesID parses a string and validates the "ser" prefix.
func ParseSeriesID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSeries) }

// ParseContactID parses a string and validates the "cta" prefix.
func ParseContactID(s string) (ID, error) { return ParseWithPrefix(s, PrefixContact) }

// ParseUserID parses a string and validates the "usr" prefix.
func ParseUserID(s string) (ID, error) { return ParseWithPrefix(s, PrefixUser) }

// ParseServiceID parses a string and validates the "svc" prefix.
func ParseServiceID(s string) (ID, error) { return ParseWithPrefix(s, PrefixService) }

// ParseQuoteID parses a string and validates the "qte" prefix.
func ParseQuoteID(s string) (ID, error) { return ParseWithPrefix(s, PrefixQuote) }

// ParseInvoiceID parses a string and validates the "inv" prefix.
func ParseInvoiceID(s string) (ID, error) { return ParseWithPrefix(s, PrefixInvoice) }

// ParseSweepRunID parses a string and validates the "swp" prefix.
func ParseSweepRunID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSweepRun) }

// ParseAny parses a string into an ID without type checking the prefix.
func ParseAny(s string) (ID, error) { return Parse(s) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
