package types

import (
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/samber/lo"
)

// DiscountType represents the type of discount (fixed or percentage)
type DiscountType string

const (
	// DiscountTypeFixed represents a fixed amount off the document total
	DiscountTypeFixed DiscountType = "fixed"
	// DiscountTypePercentage represents a percentage off the document total
	DiscountTypePercentage DiscountType = "percentage"
)

func (t DiscountType) String() string {
	return string(t)
}

func (t DiscountType) Validate() error {
	allowed := []DiscountType{DiscountTypeFixed, DiscountTypePercentage}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid discount type").
			WithHint("Discount type must be fixed or percentage").
			WithReportableDetails(map[string]any{
				"discount_type":  t,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
