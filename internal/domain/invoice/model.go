package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/pricing"
	"github.com/renewly/renewly/internal/types"
)

// Invoice is a billing document. Its lines are immutable snapshots taken
// at generation time; stored totals are caches whose source of truth is
// the totals recomputation over the lines.
type Invoice struct {
	// ID is the unique identifier for the invoice
	ID string `db:"id" json:"id"`

	// InvoiceNumber is the human-readable document number, assigned on
	// confirmation
	InvoiceNumber *string `db:"invoice_number" json:"invoice_number,omitempty"`

	// CustomerID is the identifier for the invoiced customer
	CustomerID string `db:"customer_id" json:"customer_id"`

	// SubscriptionID links the invoice back to the subscription that
	// produced it, if any
	SubscriptionID *string `db:"subscription_id" json:"subscription_id,omitempty"`

	// InvoiceStatus is the lifecycle status of the invoice
	InvoiceStatus types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`

	// BillingReason records why the invoice was generated
	BillingReason types.InvoiceBillingReason `db:"billing_reason" json:"billing_reason"`

	// IdempotencyKey deduplicates invoice generation for the same cause
	IdempotencyKey *string `db:"idempotency_key" json:"idempotency_key,omitempty"`

	IssueDate time.Time  `db:"issue_date" json:"issue_date"`
	DueDate   *time.Time `db:"due_date" json:"due_date,omitempty"`
	PaidAt    *time.Time `db:"paid_at" json:"paid_at,omitempty"`

	// PaymentTerms is carried over from the originating subscription
	PaymentTerms string `db:"payment_terms" json:"payment_terms,omitempty"`

	// Cached totals, refreshed whenever lines change
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	TaxTotal       decimal.Decimal `db:"tax_total" json:"tax_total"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	Total          decimal.Decimal `db:"total" json:"total"`

	// AmountPaid is the sum of recorded payments
	AmountPaid decimal.Decimal `db:"amount_paid" json:"amount_paid"`

	Lines []*Line `json:"lines,omitempty"`

	types.BaseModel
}

// Line is an immutable snapshot of a priced position at generation time
type Line struct {
	ID        string `db:"id" json:"id"`
	InvoiceID string `db:"invoice_id" json:"invoice_id"`
	ProductID string `db:"product_id" json:"product_id"`

	// DisplayName is the product name frozen at generation time
	DisplayName string `db:"display_name" json:"display_name"`

	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPrice       decimal.Decimal `db:"unit_price" json:"unit_price"`
	DiscountPercent decimal.Decimal `db:"discount_percent" json:"discount_percent"`
	TaxID           *string         `db:"tax_id" json:"tax_id,omitempty"`

	// Amount is the frozen line amount
	Amount decimal.Decimal `db:"amount" json:"amount"`

	types.BaseModel
}

// ToPricingLine converts the line for totals recomputation
func (l *Line) ToPricingLine() pricing.Line {
	return pricing.Line{
		ProductID:       l.ProductID,
		Quantity:        l.Quantity,
		UnitPrice:       l.UnitPrice,
		DiscountPercent: l.DiscountPercent,
		TaxID:           l.TaxID,
	}
}

// PricingLines converts all lines for totals recomputation
func (i *Invoice) PricingLines() []pricing.Line {
	lines := make([]pricing.Line, len(i.Lines))
	for idx, l := range i.Lines {
		lines[idx] = l.ToPricingLine()
	}
	return lines
}

// AmountRemaining is the unpaid portion of the invoice total
func (i *Invoice) AmountRemaining() decimal.Decimal {
	remaining := i.Total.Sub(i.AmountPaid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Validate validates the invoice
func (i *Invoice) Validate() error {
	if i.CustomerID == "" {
		return ierr.NewError("customer id is required").
			WithHint("An invoice must belong to a customer").
			Mark(ierr.ErrValidation)
	}
	if err := i.InvoiceStatus.Validate(); err != nil {
		return err
	}
	if err := i.BillingReason.Validate(); err != nil {
		return err
	}
	if i.Total.IsNegative() {
		return ierr.NewError("invoice total cannot be negative").
			WithReportableDetails(map[string]any{
				"total": i.Total,
			}).
			Mark(ierr.ErrValidation)
	}
	if i.DueDate != nil && i.DueDate.Before(i.IssueDate) {
		return ierr.NewError("due date before issue date").
			WithHint("Due date must be on or after the issue date").
			Mark(ierr.ErrValidation)
	}
	return nil
}
