package subscription

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/pricing"
	"github.com/renewly/renewly/internal/types"
)

// Subscription is a customer's recurring commitment to a plan. It owns
// its lines exclusively; lines are mutable only while the subscription
// is in draft or quotation.
type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// SubscriptionNumber is the human-readable document number, finalized
	// the first time the subscription leaves draft
	SubscriptionNumber *string `db:"subscription_number" json:"subscription_number,omitempty"`

	// CustomerID is the identifier for the customer in our system
	CustomerID string `db:"customer_id" json:"customer_id"`

	// PlanID is the identifier for the recurring plan in the catalog
	PlanID string `db:"plan_id" json:"plan_id"`

	// SubscriptionStatus is the lifecycle status of the subscription
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	// StartDate is the start date of the subscription
	StartDate time.Time `db:"start_date" json:"start_date"`

	// ExpirationDate is the end of the committed term, if any
	ExpirationDate *time.Time `db:"expiration_date" json:"expiration_date,omitempty"`

	// NextInvoiceDate is when the next cycle invoice is due to be generated
	NextInvoiceDate *time.Time `db:"next_invoice_date" json:"next_invoice_date,omitempty"`

	// PaymentTerms is free-form terms text copied onto generated invoices
	PaymentTerms string `db:"payment_terms" json:"payment_terms,omitempty"`

	// Notes is free-form internal annotation
	Notes string `db:"notes" json:"notes,omitempty"`

	// OriginSubscriptionID records the subscription this one was renewed
	// or upsold from. Weak reference, lookup only.
	OriginSubscriptionID *string `db:"origin_subscription_id" json:"origin_subscription_id,omitempty"`

	Lines []*Line `json:"lines,omitempty"`

	types.BaseModel
}

// Line is a priced product position on a subscription
type Line struct {
	ID             string `db:"id" json:"id"`
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`
	ProductID      string `db:"product_id" json:"product_id"`

	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPrice       decimal.Decimal `db:"unit_price" json:"unit_price"`
	DiscountPercent decimal.Decimal `db:"discount_percent" json:"discount_percent"`

	// TaxID references a catalog tax rate applied to this line, if any
	TaxID *string `db:"tax_id" json:"tax_id,omitempty"`

	types.BaseModel
}

// Amount is the derived line amount; it is never stored as source of truth
func (l *Line) Amount() (decimal.Decimal, error) {
	return pricing.LineAmount(l.Quantity, l.UnitPrice, l.DiscountPercent)
}

// ToPricingLine converts the line for totals aggregation
func (l *Line) ToPricingLine() pricing.Line {
	return pricing.Line{
		ProductID:       l.ProductID,
		Quantity:        l.Quantity,
		UnitPrice:       l.UnitPrice,
		DiscountPercent: l.DiscountPercent,
		TaxID:           l.TaxID,
	}
}

// Validate validates the line
func (l *Line) Validate() error {
	if l.ProductID == "" {
		return ierr.NewError("product id is required").
			WithHint("Every subscription line must reference a product").
			Mark(ierr.ErrValidation)
	}
	_, err := l.Amount()
	return err
}

// Validate validates the subscription
func (s *Subscription) Validate() error {
	if s.CustomerID == "" {
		return ierr.NewError("customer id is required").
			WithHint("A subscription must belong to a customer").
			Mark(ierr.ErrValidation)
	}
	if s.PlanID == "" {
		return ierr.NewError("plan id is required").
			WithHint("A subscription must reference a recurring plan").
			Mark(ierr.ErrValidation)
	}
	if err := s.SubscriptionStatus.Validate(); err != nil {
		return err
	}
	if s.ExpirationDate != nil && s.ExpirationDate.Before(s.StartDate) {
		return ierr.NewError("expiration date before start date").
			WithHint("Expiration date must be after the start date").
			Mark(ierr.ErrValidation)
	}
	for _, line := range s.Lines {
		if err := line.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// LinesMutable reports whether the subscription's lines may be edited
func (s *Subscription) LinesMutable() bool {
	return s.SubscriptionStatus.LinesMutable()
}

// PricingLines converts all lines for totals aggregation
func (s *Subscription) PricingLines() []pricing.Line {
	lines := make([]pricing.Line, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = l.ToPricingLine()
	}
	return lines
}
