// Package directory defines the read-only contracts Fieldline consumes from
// the surrounding platform: contact, service, quote, and invoice lookups
// plus outbound notification dispatch. The engine validates foreign keys
// and denormalizes display names through these interfaces; it never owns
// the underlying records.
package directory

import (
	"context"
	"errors"

	"github.com/fieldline/fieldline/id"
)

// ErrNotFound is returned by lookups when the id does not exist in the
// tenant's scope.
var ErrNotFound = errors.New("directory: not found")

// ContactRef is the denormalized view of a contact.
type ContactRef struct {
	ID    id.ContactID
	Name  string
	Email string
}

// ServiceRef is the denormalized view of a service offering.
type ServiceRef struct {
	ID   id.ServiceID
	Name string
}

// QuoteRef is the denormalized view of a quote.
type QuoteRef struct {
	ID     id.QuoteID
	Number string
	Total  float64
}

// InvoiceRef is the denormalized view of an invoice.
type InvoiceRef struct {
	ID     id.InvoiceID
	Number string
	Total  float64
}

// ContactDirectory resolves contacts within a tenant.
type ContactDirectory interface {
	GetContact(ctx context.Context, tenantID id.TenantID, contactID id.ContactID) (*ContactRef, error)
}

// ServiceDirectory resolves services within a tenant.
type ServiceDirectory interface {
	GetService(ctx context.Context, tenantID id.TenantID, serviceID id.ServiceID) (*ServiceRef, error)
}

// QuoteDirectory resolves quotes within a tenant.
type QuoteDirectory interface {
	GetQuote(ctx context.Context, tenantID id.TenantID, quoteID id.QuoteID) (*QuoteRef, error)
}

// InvoiceDirectory resolves invoices within a tenant.
type InvoiceDirectory interface {
	GetInvoice(ctx context.Context, tenantID id.TenantID, invoiceID id.InvoiceID) (*InvoiceRef, error)
}

// Directory bundles every lookup the engine consumes.
type Directory interface {
	ContactDirectory
	ServiceDirectory
	QuoteDirectory
	InvoiceDirectory
}

// NotificationKind names the lifecycle event behind a notification.
type NotificationKind string

const (
	// NotifyJobConfirmed tells the contact their booking is firm.
	NotifyJobConfirmed NotificationKind = "job_confirmed"
	// NotifyJobDeclined tells the contact their booking was declined.
	NotifyJobDeclined NotificationKind = "job_declined"
	// NotifyAssignmentChanged tells an assigned user their schedule changed.
	NotifyAssignmentChanged NotificationKind = "assignment_changed"
)

// Notification is one outbound message. Exactly one of ContactID or UserID
// identifies the recipient.
type Notification struct {
	TenantID  id.TenantID
	JobID     id.JobID
	ContactID id.ContactID
	UserID    id.UserID
	Kind      NotificationKind
	Subject   string
	Body      string
}

// Notifier dispatches notifications. Calls are fire-and-forget from the
// engine's point of view: a Send failure is logged and never rolls back
// the mutation that triggered it.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
