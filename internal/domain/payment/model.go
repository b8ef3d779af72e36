package payment

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// Payment is a settlement record against an invoice. An invoice carries
// at most one payment; the invoice status flip guards against duplicates.
type Payment struct {
	// ID is the unique identifier for the payment
	ID string `db:"id" json:"id"`

	// InvoiceID is the invoice this payment settles
	InvoiceID string `db:"invoice_id" json:"invoice_id"`

	// Amount is the settled amount
	Amount decimal.Decimal `db:"amount" json:"amount"`

	// PaymentMethod is how the payment was made
	PaymentMethod types.PaymentMethod `db:"payment_method" json:"payment_method"`

	// PaymentDate is when the payment was received
	PaymentDate time.Time `db:"payment_date" json:"payment_date"`

	// Reference is an external reference such as a bank statement line
	Reference string `db:"reference" json:"reference,omitempty"`

	// IdempotencyKey deduplicates repeated recording attempts
	IdempotencyKey *string `db:"idempotency_key" json:"idempotency_key,omitempty"`

	types.BaseModel
}

// Validate validates the payment
func (p *Payment) Validate() error {
	if p.InvoiceID == "" {
		return ierr.NewError("invoice id is required").
			WithHint("A payment must reference an invoice").
			Mark(ierr.ErrValidation)
	}
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return ierr.NewError("invalid payment amount").
			WithHint("Payment amount must be greater than zero").
			WithReportableDetails(map[string]any{
				"amount": p.Amount,
			}).
			Mark(ierr.ErrValidation)
	}
	return p.PaymentMethod.Validate()
}
