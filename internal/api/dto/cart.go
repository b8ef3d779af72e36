package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/renewly/renewly/internal/domain/cart"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/pricing"
	"github.com/renewly/renewly/internal/validator"
)

// AddCartItemRequest stages a product in the customer's cart
type AddCartItemRequest struct {
	CustomerID string           `json:"customer_id" binding:"required"`
	ProductID  string           `json:"product_id" binding:"required"`
	VariantID  *string          `json:"variant_id,omitempty"`
	Quantity   decimal.Decimal  `json:"quantity" binding:"required"`
	UnitPrice  *decimal.Decimal `json:"unit_price,omitempty"`
}

// UpdateCartItemRequest changes a staged item's quantity
type UpdateCartItemRequest struct {
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
}

// CheckoutRequest converts a cart into an active subscription with its
// first invoice
type CheckoutRequest struct {
	CustomerID   string     `json:"customer_id" binding:"required"`
	PlanID       string     `json:"plan_id" binding:"required"`
	DiscountCode *string    `json:"discount_code,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	PaymentTerms string     `json:"payment_terms,omitempty"`
}

// CartResponse is the API shape of a cart
type CartResponse struct {
	*cart.Cart
	Totals *pricing.Totals `json:"totals,omitempty"`
}

// CheckoutResponse returns the documents produced by a checkout
type CheckoutResponse struct {
	Subscription *SubscriptionResponse `json:"subscription"`
	Invoice      *InvoiceResponse      `json:"invoice"`
}

func (r *AddCartItemRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Quantity.LessThanOrEqual(decimal.Zero) {
		return ierr.NewError("invalid quantity").
			WithHint("Quantity must be greater than zero").
			WithReportableDetails(map[string]any{
				"quantity": r.Quantity,
			}).
			Mark(ierr.ErrValidation)
	}
	if r.UnitPrice != nil && r.UnitPrice.IsNegative() {
		return ierr.NewError("invalid unit price").
			WithHint("Unit price must be non-negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *UpdateCartItemRequest) Validate() error {
	if r.Quantity.LessThanOrEqual(decimal.Zero) {
		return ierr.NewError("invalid quantity").
			WithHint("Quantity must be greater than zero").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *CheckoutRequest) Validate() error {
	return validator.ValidateRequest(r)
}
