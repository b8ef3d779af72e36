package testutil

import (
	"context"

	"github.com/renewly/renewly/internal/domain/payment"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Payment](),
	}
}

func paymentFilterFn(ctx context.Context, p *payment.Payment, filter interface{}) bool {
	if p == nil || p.Status == types.StatusDeleted {
		return false
	}
	if !checkTenant(ctx, p.TenantID) {
		return false
	}

	f, ok := filter.(*types.PaymentFilter)
	if !ok || f == nil {
		return true
	}

	if f.InvoiceID != "" && p.InvoiceID != f.InvoiceID {
		return false
	}
	return true
}

func paymentSortFn(i, j *payment.Payment) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if p == nil {
		return ierr.NewError("payment cannot be nil").Mark(ierr.ErrValidation)
	}

	cp := *p
	return s.InMemoryStore.Create(ctx, p.ID, &cp)
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewError("payment not found").
			WithHintf("Payment with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryPaymentStore) GetByInvoiceID(ctx context.Context, invoiceID string) (*payment.Payment, error) {
	filter := &types.PaymentFilter{
		QueryFilter: types.NoLimitQueryFilter,
		InvoiceID:   invoiceID,
	}
	payments, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, ierr.NewError("payment not found").
			WithHintf("Invoice %s has no recorded payment", invoiceID).
			Mark(ierr.ErrNotFound)
	}
	return payments[0], nil
}

func (s *InMemoryPaymentStore) List(ctx context.Context, filter *types.PaymentFilter) ([]*payment.Payment, error) {
	payments, err := s.InMemoryStore.List(ctx, filter, paymentFilterFn, paymentSortFn)
	if err != nil {
		return nil, err
	}

	out := make([]*payment.Payment, len(payments))
	for i, p := range payments {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

func (s *InMemoryPaymentStore) Count(ctx context.Context, filter *types.PaymentFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, paymentFilterFn)
}
