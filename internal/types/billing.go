package types

import (
	"time"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/samber/lo"
)

// BillingPeriod is the cadence at which an active subscription is invoiced
type BillingPeriod string

const (
	BillingPeriodMonthly   BillingPeriod = "monthly"
	BillingPeriodQuarterly BillingPeriod = "quarterly"
	BillingPeriodYearly    BillingPeriod = "yearly"
)

func (p BillingPeriod) String() string {
	return string(p)
}

func (p BillingPeriod) Validate() error {
	allowed := []BillingPeriod{
		BillingPeriodMonthly,
		BillingPeriodQuarterly,
		BillingPeriodYearly,
	}
	if !lo.Contains(allowed, p) {
		return ierr.NewError("invalid billing period").
			WithHint("Billing period must be monthly, quarterly or yearly").
			WithReportableDetails(map[string]any{
				"billing_period": p,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// NextDate advances a billing anchor by one billing period
func (p BillingPeriod) NextDate(from time.Time) time.Time {
	switch p {
	case BillingPeriodQuarterly:
		return from.AddDate(0, 3, 0)
	case BillingPeriodYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}
