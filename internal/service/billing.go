package service

import (
	"context"
	"time"

	"github.com/renewly/renewly/internal/idempotency"
	"github.com/renewly/renewly/internal/types"
)

// BillingService drives the recurring billing sweep
type BillingService interface {
	// ProcessDueSubscriptions generates cycle invoices for every active
	// subscription whose next invoice date has arrived and advances its
	// schedule. Returns the number of invoices generated. A failure on
	// one subscription does not stop the sweep.
	ProcessDueSubscriptions(ctx context.Context, asOf time.Time) (int, error)
}

type billingService struct {
	ServiceParams
	invoiceService InvoiceService
}

func NewBillingService(params ServiceParams) BillingService {
	return &billingService{
		ServiceParams:  params,
		invoiceService: NewInvoiceService(params),
	}
}

func (s *billingService) ProcessDueSubscriptions(ctx context.Context, asOf time.Time) (int, error) {
	due, err := s.SubRepo.ListDue(ctx, asOf)
	if err != nil {
		return 0, err
	}

	generated := 0
	for _, sub := range due {
		billed, err := s.processOne(ctx, sub.ID)
		if err != nil {
			s.Logger.Errorw("cycle billing failed for subscription",
				"subscription_id", sub.ID,
				"error", err,
			)
			continue
		}
		if billed {
			generated++
		}
	}

	s.Logger.Infow("billing sweep finished",
		"due", len(due),
		"generated", generated,
		"as_of", asOf,
	)
	return generated, nil
}

func (s *billingService) processOne(ctx context.Context, subscriptionID string) (bool, error) {
	billed := false
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		// Reload inside the transaction so the schedule advance and the
		// invoice ride on the same snapshot.
		sub, err := s.SubRepo.Get(ctx, subscriptionID)
		if err != nil {
			return err
		}
		if sub.NextInvoiceDate == nil {
			return nil
		}

		periodStart := *sub.NextInvoiceDate

		// A subscription expiring before its next cycle stops billing
		if sub.ExpirationDate != nil && periodStart.After(*sub.ExpirationDate) {
			sub.NextInvoiceDate = nil
			return s.SubRepo.Update(ctx, sub)
		}

		// One invoice per subscription per period, no matter how often
		// the sweep runs.
		key := s.IdempotencyGenerator.GenerateKey(idempotency.ScopeSubscriptionInvoice, map[string]interface{}{
			"subscription_id": sub.ID,
			"period_start":    periodStart.Format(time.RFC3339),
		})

		if _, err := s.invoiceService.GenerateForSubscription(ctx, sub, GenerateParams{
			Reason:         types.InvoiceBillingReasonSubscriptionCycle,
			IdempotencyKey: &key,
		}); err != nil {
			return err
		}
		billed = true

		plan, err := s.CatalogRepo.GetPlan(ctx, sub.PlanID)
		if err != nil {
			return err
		}
		next := plan.BillingPeriod.NextDate(periodStart)
		sub.NextInvoiceDate = &next
		return s.SubRepo.Update(ctx, sub)
	})
	return billed, err
}
