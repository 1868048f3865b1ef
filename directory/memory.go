package directory

import (
	"context"
	"sync"

	"github.com/fieldline/fieldline/id"
)

// Compile-time interface checks.
var (
	_ Directory = (*Memory)(nil)
	_ Notifier  = (*MemoryNotifier)(nil)
)

// Memory is an in-memory Directory for tests and examples. Records are
// registered up front with the Add methods; lookups are tenant-scoped like
// the real platform's.
type Memory struct {
	mu       sync.RWMutex
	contacts map[string]*ContactRef
	services map[string]*ServiceRef
	quotes   map[string]*QuoteRef
	invoices map[string]*InvoiceRef
}

// NewMemory creates an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{
		contacts: make(map[string]*ContactRef),
		services: make(map[string]*ServiceRef),
		quotes:   make(map[string]*QuoteRef),
		invoices: make(map[string]*InvoiceRef),
	}
}

func scopedKey(tenantID id.TenantID, entityID id.ID) string {
	return tenantID.String() + "/" + entityID.String()
}

// AddContact registers a contact for a tenant.
func (m *Memory) AddContact(tenantID id.TenantID, ref ContactRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[scopedKey(tenantID, ref.ID)] = &ref
}

// AddService registers a service for a tenant.
func (m *Memory) AddService(tenantID id.TenantID, ref ServiceRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[scopedKey(tenantID, ref.ID)] = &ref
}

// AddQuote registers a quote for a tenant.
func (m *Memory) AddQuote(tenantID id.TenantID, ref QuoteRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[scopedKey(tenantID, ref.ID)] = &ref
}

// AddInvoice registers an invoice for a tenant.
func (m *Memory) AddInvoice(tenantID id.TenantID, ref InvoiceRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[scopedKey(tenantID, ref.ID)] = &ref
}

// GetContact implements ContactDirectory.
func (m *Memory) GetContact(_ context.Context, tenantID id.TenantID, contactID id.ContactID) (*ContactRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.contacts[scopedKey(tenantID, contactID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ref

	return &cp, nil
}

// GetService implements ServiceDirectory.
func (m *Memory) GetService(_ context.Context, tenantID id.TenantID, serviceID id.ServiceID) (*ServiceRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.services[scopedKey(tenantID, serviceID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ref

	return &cp, nil
}

// GetQuote implements QuoteDirectory.
func (m *Memory) GetQuote(_ context.Context, tenantID id.TenantID, quoteID id.QuoteID) (*QuoteRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.quotes[scopedKey(tenantID, quoteID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ref

	return &cp, nil
}

// GetInvoice implements InvoiceDirectory.
func (m *Memory) GetInvoice(_ context.Context, tenantID id.TenantID, invoiceID id.InvoiceID) (*InvoiceRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.invoices[scopedKey(tenantID, invoiceID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ref

	return &cp, nil
}

// MemoryNotifier records notifications instead of sending them.
type MemoryNotifier struct {
	mu   sync.Mutex
	sent []Notification

	// Err, when set, is returned by every Send. Lets tests exercise the
	// fire-and-forget contract.
	Err error
}

// NewMemoryNotifier creates an empty recording notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

// Send implements Notifier.
func (n *MemoryNotifier) Send(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, msg)

	return nil
}

// Sent returns a copy of everything recorded so far.
func (n *MemoryNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]Notification(nil), n.sent...)
}
