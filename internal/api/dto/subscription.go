package dto

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/renewly/renewly/internal/domain/subscription"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/pricing"
	"github.com/renewly/renewly/internal/types"
	"github.com/renewly/renewly/internal/validator"
)

// CreateSubscriptionRequest creates a draft subscription
type CreateSubscriptionRequest struct {
	CustomerID     string                           `json:"customer_id" binding:"required"`
	PlanID         string                           `json:"plan_id" binding:"required"`
	StartDate      time.Time                        `json:"start_date"`
	ExpirationDate *time.Time                       `json:"expiration_date,omitempty"`
	PaymentTerms   string                           `json:"payment_terms,omitempty"`
	Notes          string                           `json:"notes,omitempty"`
	Lines          []CreateSubscriptionLineRequest `json:"lines,omitempty"`
}

// CreateSubscriptionLineRequest adds a line to a subscription
type CreateSubscriptionLineRequest struct {
	ProductID       string           `json:"product_id" binding:"required"`
	Quantity        decimal.Decimal  `json:"quantity" binding:"required"`
	UnitPrice       *decimal.Decimal `json:"unit_price,omitempty"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	TaxID           *string          `json:"tax_id,omitempty"`
}

// UpdateSubscriptionRequest updates draft metadata
type UpdateSubscriptionRequest struct {
	StartDate      *time.Time `json:"start_date,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	PaymentTerms   *string    `json:"payment_terms,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
}

// UpdateSubscriptionLineRequest changes a line on a mutable subscription
type UpdateSubscriptionLineRequest struct {
	Quantity        *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice       *decimal.Decimal `json:"unit_price,omitempty"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	TaxID           *string          `json:"tax_id,omitempty"`
}

// UpsellSubscriptionRequest derives an upsell draft from an active
// subscription
type UpsellSubscriptionRequest struct {
	Lines []CreateSubscriptionLineRequest `json:"lines" binding:"required,min=1"`
}

// SubscriptionResponse is the API shape of a subscription
type SubscriptionResponse struct {
	*subscription.Subscription
	Totals *pricing.Totals `json:"totals,omitempty"`
}

// ListSubscriptionsResponse is a paginated subscription list
type ListSubscriptionsResponse = types.ListResponse[*SubscriptionResponse]

func (r *CreateSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	for _, line := range r.Lines {
		if err := line.Validate(); err != nil {
			return err
		}
	}
	if r.ExpirationDate != nil && !r.StartDate.IsZero() && r.ExpirationDate.Before(r.StartDate) {
		return ierr.NewError("expiration date before start date").
			WithHint("Expiration date must be after the start date").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *CreateSubscriptionLineRequest) Validate() error {
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

func (r *UpsellSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	for _, line := range r.Lines {
		if err := line.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ToSubscription builds the domain object for creation. Line unit
// prices left empty are resolved from the catalog by the service.
func (r *CreateSubscriptionRequest) ToSubscription(ctx context.Context) *subscription.Subscription {
	startDate := r.StartDate
	if startDate.IsZero() {
		startDate = time.Now().UTC()
	}

	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:         r.CustomerID,
		PlanID:             r.PlanID,
		SubscriptionStatus: types.SubscriptionStatusDraft,
		StartDate:          startDate,
		ExpirationDate:     r.ExpirationDate,
		PaymentTerms:       r.PaymentTerms,
		Notes:              r.Notes,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}

	for _, lr := range r.Lines {
		line := &subscription.Line{
			ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_LINE),
			SubscriptionID:  sub.ID,
			ProductID:       lr.ProductID,
			Quantity:        lr.Quantity,
			DiscountPercent: lr.DiscountPercent,
			TaxID:           lr.TaxID,
			BaseModel:       types.GetDefaultBaseModel(ctx),
		}
		if lr.UnitPrice != nil {
			line.UnitPrice = *lr.UnitPrice
		}
		sub.Lines = append(sub.Lines, line)
	}
	return sub
}
