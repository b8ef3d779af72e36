package discount

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/pricing"
	"github.com/renewly/renewly/internal/types"
)

// Discount is a redeemable discount code with optional validity window,
// usage cap and eligibility constraints.
type Discount struct {
	// ID is the unique identifier for the discount
	ID string `db:"id" json:"id"`

	// Code is the customer-facing redemption code, unique per tenant
	Code string `db:"code" json:"code"`

	// DiscountType determines how Value is interpreted
	DiscountType types.DiscountType `db:"discount_type" json:"discount_type"`

	// Value is a fixed amount or a percentage depending on DiscountType
	Value decimal.Decimal `db:"value" json:"value"`

	// MinPurchase is the minimum document subtotal required to redeem
	MinPurchase decimal.Decimal `db:"min_purchase" json:"min_purchase"`

	// MinQuantity is the minimum total item quantity required to redeem
	MinQuantity decimal.Decimal `db:"min_quantity" json:"min_quantity"`

	// StartDate and EndDate bound the validity window when set
	StartDate *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate   *time.Time `db:"end_date" json:"end_date,omitempty"`

	// UsageLimit caps total redemptions; zero means unlimited
	UsageLimit int `db:"usage_limit" json:"usage_limit"`

	// TimesUsed counts successful redemptions
	TimesUsed int `db:"times_used" json:"times_used"`

	// ProductID restricts the discount to documents containing the
	// product, when set
	ProductID *string `db:"product_id" json:"product_id,omitempty"`

	types.BaseModel
}

// Validate validates the discount definition
func (d *Discount) Validate() error {
	if d.Code == "" {
		return ierr.NewError("discount code is required").
			WithHint("Please provide a discount code").
			Mark(ierr.ErrValidation)
	}
	if err := d.DiscountType.Validate(); err != nil {
		return err
	}
	if d.Value.LessThanOrEqual(decimal.Zero) {
		return ierr.NewError("invalid discount value").
			WithHint("Discount value must be greater than zero").
			WithReportableDetails(map[string]any{
				"value": d.Value,
			}).
			Mark(ierr.ErrValidation)
	}
	if d.DiscountType == types.DiscountTypePercentage && d.Value.GreaterThan(decimal.NewFromInt(100)) {
		return ierr.NewError("invalid discount percentage").
			WithHint("Percentage discounts cannot exceed 100").
			WithReportableDetails(map[string]any{
				"value": d.Value,
			}).
			Mark(ierr.ErrValidation)
	}
	if d.UsageLimit < 0 {
		return ierr.NewError("invalid usage limit").
			WithHint("Usage limit cannot be negative").
			Mark(ierr.ErrValidation)
	}
	if d.StartDate != nil && d.EndDate != nil && d.EndDate.Before(*d.StartDate) {
		return ierr.NewError("end date before start date").
			WithHint("The validity window end must be after its start").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsActive reports whether the discount record itself is usable
func (d *Discount) IsActive() bool {
	return d.Status == types.StatusPublished
}

// InValidityWindow reports whether now falls inside the configured
// date window
func (d *Discount) InValidityWindow(now time.Time) bool {
	if d.StartDate != nil && now.Before(*d.StartDate) {
		return false
	}
	if d.EndDate != nil && now.After(*d.EndDate) {
		return false
	}
	return true
}

// UsageExhausted reports whether the redemption cap has been reached
func (d *Discount) UsageExhausted() bool {
	return d.UsageLimit > 0 && d.TimesUsed >= d.UsageLimit
}

// ToPricingDiscount converts the discount for totals aggregation
func (d *Discount) ToPricingDiscount() *pricing.Discount {
	return &pricing.Discount{Type: d.DiscountType, Value: d.Value}
}
