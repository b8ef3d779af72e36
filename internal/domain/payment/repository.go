package payment

import (
	"context"

	"github.com/renewly/renewly/internal/types"
)

// Repository provides access to payment storage
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetByInvoiceID(ctx context.Context, invoiceID string) (*Payment, error)
	List(ctx context.Context, filter *types.PaymentFilter) ([]*Payment, error)
	Count(ctx context.Context, filter *types.PaymentFilter) (int, error)
}
