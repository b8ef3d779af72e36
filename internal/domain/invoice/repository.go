package invoice

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/renewly/renewly/internal/types"
)

// Repository provides access to invoice storage
type Repository interface {
	// CreateWithLines persists the invoice and its line snapshots in one
	// atomic write.
	CreateWithLines(ctx context.Context, inv *Invoice) error

	Get(ctx context.Context, id string) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)
	Count(ctx context.Context, filter *types.InvoiceFilter) (int, error)

	// GetByIdempotencyKey returns the invoice generated for the key, or a
	// not found error.
	GetByIdempotencyKey(ctx context.Context, key string) (*Invoice, error)

	// UpdateStatus atomically moves the invoice from `from` to `to`,
	// failing with an illegal transition error when the stored status no
	// longer matches `from`.
	UpdateStatus(ctx context.Context, id string, from, to types.InvoiceStatus) error

	// RecordPayment marks the invoice paid and settles the paid amount.
	// The status flip is a compare-and-set from confirmed so concurrent
	// payment attempts produce exactly one payment.
	RecordPayment(ctx context.Context, id string, amountPaid decimal.Decimal) error

	// NextInvoiceNumber issues the next unique, monotonic invoice number.
	NextInvoiceNumber(ctx context.Context) (string, error)
}
