package dto

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/renewly/renewly/internal/domain/discount"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
	"github.com/renewly/renewly/internal/validator"
)

// CreateDiscountRequest defines a new discount code
type CreateDiscountRequest struct {
	Code         string             `json:"code" binding:"required"`
	DiscountType types.DiscountType `json:"discount_type" binding:"required"`
	Value        decimal.Decimal    `json:"value" binding:"required"`
	MinPurchase  decimal.Decimal    `json:"min_purchase"`
	MinQuantity  decimal.Decimal    `json:"min_quantity"`
	StartDate    *time.Time         `json:"start_date,omitempty"`
	EndDate      *time.Time         `json:"end_date,omitempty"`
	UsageLimit   int                `json:"usage_limit"`
	ProductID    *string            `json:"product_id,omitempty"`
}

// UpdateDiscountRequest updates a discount definition
type UpdateDiscountRequest struct {
	Value       *decimal.Decimal `json:"value,omitempty"`
	MinPurchase *decimal.Decimal `json:"min_purchase,omitempty"`
	MinQuantity *decimal.Decimal `json:"min_quantity,omitempty"`
	StartDate   *time.Time       `json:"start_date,omitempty"`
	EndDate     *time.Time       `json:"end_date,omitempty"`
	UsageLimit  *int             `json:"usage_limit,omitempty"`
	ProductID   *string          `json:"product_id,omitempty"`
}

// ValidateDiscountRequest checks a code against a prospective purchase
type ValidateDiscountRequest struct {
	Code string `json:"code" binding:"required"`

	// Purchase context the code is evaluated against
	Subtotal   decimal.Decimal `json:"subtotal"`
	Quantity   decimal.Decimal `json:"quantity"`
	ProductIDs []string        `json:"product_ids,omitempty"`
}

// ValidateDiscountResponse reports the validation outcome. Reason is
// set when Valid is false.
type ValidateDiscountResponse struct {
	Valid    bool              `json:"valid"`
	Reason   string            `json:"reason,omitempty"`
	Discount *DiscountResponse `json:"discount,omitempty"`
}

// DiscountResponse is the API shape of a discount
type DiscountResponse struct {
	*discount.Discount
}

// ListDiscountsResponse is a paginated discount list
type ListDiscountsResponse = types.ListResponse[*DiscountResponse]

func (r *CreateDiscountRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.DiscountType.Validate(); err != nil {
		return err
	}
	if r.Value.LessThanOrEqual(decimal.Zero) {
		return ierr.NewError("invalid discount value").
			WithHint("Discount value must be greater than zero").
			Mark(ierr.ErrValidation)
	}
	if r.UsageLimit < 0 {
		return ierr.NewError("invalid usage limit").
			WithHint("Usage limit cannot be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *ValidateDiscountRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ToDiscount builds the domain object for creation
func (r *CreateDiscountRequest) ToDiscount(ctx context.Context) *discount.Discount {
	return &discount.Discount{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DISCOUNT),
		Code:         r.Code,
		DiscountType: r.DiscountType,
		Value:        r.Value,
		MinPurchase:  r.MinPurchase,
		MinQuantity:  r.MinQuantity,
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		UsageLimit:   r.UsageLimit,
		ProductID:    r.ProductID,
		BaseModel:    types.GetDefaultBaseModel(ctx),
	}
}
