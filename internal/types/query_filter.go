package types

import "github.com/samber/lo"

// QueryFilter represents a generic query filter with optional fields
type QueryFilter struct {
	Limit  *int    `json:"limit,omitempty" form:"limit"`
	Offset *int    `json:"offset,omitempty" form:"offset"`
	Status *Status `json:"status,omitempty" form:"status"`
	Sort   *string `json:"sort,omitempty" form:"sort"`
	Order  *string `json:"order,omitempty" form:"order"`
}

// DefaultQueryFilter defines default values for query filters
var DefaultQueryFilter = QueryFilter{
	Limit:  lo.ToPtr(50),
	Offset: lo.ToPtr(0),
	Status: lo.ToPtr(StatusPublished),
	Sort:   lo.ToPtr("created_at"),
	Order:  lo.ToPtr("desc"),
}

// NoLimitQueryFilter returns a filter with no pagination limits
var NoLimitQueryFilter = QueryFilter{
	Status: lo.ToPtr(StatusPublished),
	Sort:   lo.ToPtr("created_at"),
	Order:  lo.ToPtr("desc"),
}

// BaseFilter is the minimal interface list queries rely on
type BaseFilter interface {
	GetLimit() int
	GetOffset() int
	GetStatus() Status
	GetSort() string
	GetOrder() string
	IsUnlimited() bool
}

// GetLimit returns the limit value or default if not set
func (f QueryFilter) GetLimit() int {
	if f.Limit == nil {
		return *DefaultQueryFilter.Limit
	}
	return *f.Limit
}

// GetOffset returns the offset value or default if not set
func (f QueryFilter) GetOffset() int {
	if f.Offset == nil {
		return *DefaultQueryFilter.Offset
	}
	return *f.Offset
}

// GetStatus returns the status value or default if not set
func (f QueryFilter) GetStatus() Status {
	if f.Status == nil {
		return *DefaultQueryFilter.Status
	}
	return *f.Status
}

// GetSort returns the sort value or default if not set
func (f QueryFilter) GetSort() string {
	if f.Sort == nil {
		return *DefaultQueryFilter.Sort
	}
	return *f.Sort
}

// GetOrder returns the order value or default if not set
func (f QueryFilter) GetOrder() string {
	if f.Order == nil {
		return *DefaultQueryFilter.Order
	}
	return *f.Order
}

// IsUnlimited reports whether pagination is disabled for this filter
func (f QueryFilter) IsUnlimited() bool {
	return f.Limit == nil && f.Offset == nil && f.Sort != nil
}

// SubscriptionFilter represents filters for subscription queries
type SubscriptionFilter struct {
	QueryFilter

	CustomerID           string               `json:"customer_id,omitempty" form:"customer_id"`
	PlanID               string               `json:"plan_id,omitempty" form:"plan_id"`
	SubscriptionStatus   []SubscriptionStatus `json:"subscription_status,omitempty" form:"subscription_status"`
	OriginSubscriptionID string               `json:"origin_subscription_id,omitempty" form:"origin_subscription_id"`
}

// Validate validates the subscription filter
func (f SubscriptionFilter) Validate() error {
	for _, status := range f.SubscriptionStatus {
		if err := status.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// InvoiceFilter represents filters for invoice queries
type InvoiceFilter struct {
	QueryFilter

	CustomerID     string          `json:"customer_id,omitempty" form:"customer_id"`
	SubscriptionID string          `json:"subscription_id,omitempty" form:"subscription_id"`
	InvoiceStatus  []InvoiceStatus `json:"invoice_status,omitempty" form:"invoice_status"`
}

// Validate validates the invoice filter
func (f InvoiceFilter) Validate() error {
	for _, status := range f.InvoiceStatus {
		if err := status.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DiscountFilter represents filters for discount queries
type DiscountFilter struct {
	QueryFilter

	Code      string        `json:"code,omitempty" form:"code"`
	Type      *DiscountType `json:"type,omitempty" form:"type"`
	ProductID string        `json:"product_id,omitempty" form:"product_id"`
}

// PaymentFilter represents filters for payment queries
type PaymentFilter struct {
	QueryFilter

	InvoiceID string `json:"invoice_id,omitempty" form:"invoice_id"`
}
