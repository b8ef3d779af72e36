package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/renewly/renewly/internal/domain/invoice"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]

	// casMu serializes status transitions and payment recording so the
	// compare-and-set semantics match the SQL implementation
	casMu sync.Mutex

	linesMu sync.RWMutex
	lines   map[string][]*invoice.Line // map[invoiceID][]lines

	keyMu  sync.Mutex
	byKey  map[string]string // map[idempotencyKey]invoiceID
	seqMu  sync.Mutex
	seqNum int
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore[*invoice.Invoice](),
		lines:         make(map[string][]*invoice.Line),
		byKey:         make(map[string]string),
	}
}

func invoiceFilterFn(ctx context.Context, inv *invoice.Invoice, filter interface{}) bool {
	if inv == nil || inv.Status == types.StatusDeleted {
		return false
	}
	if !checkTenant(ctx, inv.TenantID) {
		return false
	}

	f, ok := filter.(*types.InvoiceFilter)
	if !ok || f == nil {
		return true
	}

	if f.CustomerID != "" && inv.CustomerID != f.CustomerID {
		return false
	}
	if f.SubscriptionID != "" {
		if inv.SubscriptionID == nil || *inv.SubscriptionID != f.SubscriptionID {
			return false
		}
	}
	if len(f.InvoiceStatus) > 0 && !lo.Contains(f.InvoiceStatus, inv.InvoiceStatus) {
		return false
	}
	return true
}

func invoiceSortFn(i, j *invoice.Invoice) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryInvoiceStore) CreateWithLines(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").Mark(ierr.ErrValidation)
	}

	s.keyMu.Lock()
	defer s.keyMu.Unlock()

	if inv.IdempotencyKey != nil {
		if _, exists := s.byKey[*inv.IdempotencyKey]; exists {
			return ierr.NewError("invoice already generated").
				WithHint("An invoice for this idempotency key already exists").
				WithReportableDetails(map[string]any{
					"idempotency_key": *inv.IdempotencyKey,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
	}

	stored := *inv
	stored.Lines = nil
	if err := s.InMemoryStore.Create(ctx, inv.ID, &stored); err != nil {
		return err
	}

	s.linesMu.Lock()
	for _, line := range inv.Lines {
		lc := *line
		s.lines[inv.ID] = append(s.lines[inv.ID], &lc)
	}
	s.linesMu.Unlock()

	if inv.IdempotencyKey != nil {
		s.byKey[*inv.IdempotencyKey] = inv.ID
	}
	return nil
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || inv.Status == types.StatusDeleted {
		return nil, ierr.NewError("invoice not found").
			WithHintf("Invoice with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}

	cp := *inv
	cp.Lines = s.activeLines(id)
	return &cp, nil
}

func (s *InMemoryInvoiceStore) activeLines(invoiceID string) []*invoice.Line {
	s.linesMu.RLock()
	defer s.linesMu.RUnlock()

	var out []*invoice.Line
	for _, line := range s.lines[invoiceID] {
		lc := *line
		out = append(out, &lc)
	}
	return out
}

// Update writes the mutable document fields. The invoice status is owned
// by UpdateStatus and RecordPayment and never touched here.
func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	s.casMu.Lock()
	defer s.casMu.Unlock()

	existing, err := s.InMemoryStore.Get(ctx, inv.ID)
	if err != nil || existing.Status == types.StatusDeleted {
		return ierr.NewError("invoice not found").
			WithHintf("Invoice with ID %s was not found", inv.ID).
			Mark(ierr.ErrNotFound)
	}

	existing.InvoiceNumber = inv.InvoiceNumber
	existing.DueDate = inv.DueDate
	existing.PaymentTerms = inv.PaymentTerms
	existing.Subtotal = inv.Subtotal
	existing.TaxTotal = inv.TaxTotal
	existing.DiscountAmount = inv.DiscountAmount
	existing.Total = inv.Total
	existing.Touch(ctx)
	return nil
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	invoices, err := s.InMemoryStore.List(ctx, filter, invoiceFilterFn, invoiceSortFn)
	if err != nil {
		return nil, err
	}

	out := make([]*invoice.Invoice, len(invoices))
	for i, inv := range invoices {
		cp := *inv
		cp.Lines = s.activeLines(inv.ID)
		out[i] = &cp
	}
	return out, nil
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, invoiceFilterFn)
}

func (s *InMemoryInvoiceStore) GetByIdempotencyKey(ctx context.Context, key string) (*invoice.Invoice, error) {
	s.keyMu.Lock()
	id, exists := s.byKey[key]
	s.keyMu.Unlock()

	if !exists {
		return nil, ierr.NewError("invoice not found").
			WithHint("No invoice exists for this idempotency key").
			Mark(ierr.ErrNotFound)
	}
	return s.Get(ctx, id)
}

func (s *InMemoryInvoiceStore) UpdateStatus(ctx context.Context, id string, from, to types.InvoiceStatus) error {
	s.casMu.Lock()
	defer s.casMu.Unlock()

	existing, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || existing.Status == types.StatusDeleted || existing.InvoiceStatus != from {
		return ierr.NewError("invoice status changed concurrently").
			WithHintf("Invoice is no longer in status %s", from).
			WithReportableDetails(map[string]any{
				"invoice_id":      id,
				"expected_status": from,
				"target_status":   to,
			}).
			Mark(ierr.ErrIllegalTransition)
	}

	existing.InvoiceStatus = to
	existing.Touch(ctx)
	return nil
}

func (s *InMemoryInvoiceStore) RecordPayment(ctx context.Context, id string, amountPaid decimal.Decimal) error {
	s.casMu.Lock()
	defer s.casMu.Unlock()

	existing, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || existing.Status == types.StatusDeleted ||
		existing.InvoiceStatus != types.InvoiceStatusConfirmed {
		return ierr.NewError("invoice is not payable").
			WithHint("The invoice has already been paid or is not confirmed").
			WithReportableDetails(map[string]any{
				"invoice_id": id,
			}).
			Mark(ierr.ErrAlreadyPaid)
	}

	now := time.Now().UTC()
	existing.InvoiceStatus = types.InvoiceStatusPaid
	existing.AmountPaid = amountPaid
	existing.PaidAt = &now
	existing.Touch(ctx)
	return nil
}

func (s *InMemoryInvoiceStore) NextInvoiceNumber(ctx context.Context) (string, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.seqNum++
	return fmt.Sprintf("INV-%06d", s.seqNum), nil
}

// Clear removes all invoices and lines
func (s *InMemoryInvoiceStore) Clear() {
	s.InMemoryStore.Clear()
	s.linesMu.Lock()
	s.lines = make(map[string][]*invoice.Line)
	s.linesMu.Unlock()
	s.keyMu.Lock()
	s.byKey = make(map[string]string)
	s.keyMu.Unlock()
}
