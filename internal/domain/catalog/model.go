package catalog

import (
	"github.com/shopspring/decimal"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// Product is a sellable item in the catalog
type Product struct {
	// ID is the unique identifier for the product
	ID string `db:"id" json:"id"`

	// Name is the customer-facing product name
	Name string `db:"name" json:"name"`

	// Description is optional marketing copy
	Description string `db:"description" json:"description,omitempty"`

	// ListPrice is the default unit price before any variant override
	ListPrice decimal.Decimal `db:"list_price" json:"list_price"`

	// DefaultTaxID is the tax applied to the product unless overridden
	DefaultTaxID *string `db:"default_tax_id" json:"default_tax_id,omitempty"`

	types.BaseModel
}

// Variant is a concrete sellable variation of a product
type Variant struct {
	ID        string `db:"id" json:"id"`
	ProductID string `db:"product_id" json:"product_id"`

	// Name distinguishes the variant, e.g. a seat tier
	Name string `db:"name" json:"name"`

	// PriceDelta adjusts the product list price for this variant
	PriceDelta decimal.Decimal `db:"price_delta" json:"price_delta"`

	types.BaseModel
}

// Plan is a recurring plan template subscriptions are created from
type Plan struct {
	// ID is the unique identifier for the plan
	ID string `db:"id" json:"id"`

	// Name is the customer-facing plan name
	Name string `db:"name" json:"name"`

	// BillingPeriod is the cadence cycle invoices are generated on
	BillingPeriod types.BillingPeriod `db:"billing_period" json:"billing_period"`

	// PaymentTerms is default terms text copied onto subscriptions
	PaymentTerms string `db:"payment_terms" json:"payment_terms,omitempty"`

	types.BaseModel
}

// Tax is a named tax rate referenced by document lines
type Tax struct {
	// ID is the unique identifier for the tax
	ID string `db:"id" json:"id"`

	// Name is the display name, e.g. "VAT 15%"
	Name string `db:"name" json:"name"`

	// RatePercent is the tax rate as a percentage
	RatePercent decimal.Decimal `db:"rate_percent" json:"rate_percent"`

	types.BaseModel
}

// UnitPrice resolves the effective price of a product with an optional
// variant applied.
func (p *Product) UnitPrice(v *Variant) decimal.Decimal {
	if v == nil {
		return p.ListPrice
	}
	return p.ListPrice.Add(v.PriceDelta)
}

// Validate validates the plan
func (p *Plan) Validate() error {
	if p.Name == "" {
		return ierr.NewError("plan name is required").
			WithHint("Please provide a plan name").
			Mark(ierr.ErrValidation)
	}
	return p.BillingPeriod.Validate()
}

// Validate validates the tax
func (t *Tax) Validate() error {
	if t.RatePercent.IsNegative() {
		return ierr.NewError("invalid tax rate").
			WithHint("Tax rate cannot be negative").
			WithReportableDetails(map[string]any{
				"rate_percent": t.RatePercent,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
