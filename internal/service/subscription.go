package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/renewly/renewly/internal/api/dto"
	"github.com/renewly/renewly/internal/domain/subscription"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/pricing"
	"github.com/renewly/renewly/internal/types"
)

// SubscriptionService manages the subscription lifecycle
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error)
	UpdateSubscription(ctx context.Context, id string, req *dto.UpdateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	DeleteSubscription(ctx context.Context, id string) error

	// ExecuteAction runs a lifecycle transition
	ExecuteAction(ctx context.Context, id string, action types.SubscriptionAction) (*dto.SubscriptionResponse, error)

	AddLine(ctx context.Context, id string, req *dto.CreateSubscriptionLineRequest) (*dto.SubscriptionResponse, error)
	UpdateLine(ctx context.Context, id, lineID string, req *dto.UpdateSubscriptionLineRequest) (*dto.SubscriptionResponse, error)
	RemoveLine(ctx context.Context, id, lineID string) (*dto.SubscriptionResponse, error)

	// RenewSubscription derives a renewal draft from the subscription
	RenewSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)

	// UpsellSubscription derives an upsell draft carrying the original
	// lines plus the requested additions
	UpsellSubscription(ctx context.Context, id string, req *dto.UpsellSubscriptionRequest) (*dto.SubscriptionResponse, error)
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{ServiceParams: params}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.CatalogRepo.GetPlan(ctx, req.PlanID); err != nil {
		return nil, err
	}

	sub := req.ToSubscription(ctx)
	if err := s.resolveLinePrices(ctx, sub.Lines); err != nil {
		return nil, err
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		return s.SubRepo.Create(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created subscription",
		"subscription_id", sub.ID,
		"customer_id", sub.CustomerID,
		"plan_id", sub.PlanID,
	)
	return s.toResponse(ctx, sub)
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(ctx, sub)
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error) {
	if filter == nil {
		filter = &types.SubscriptionFilter{QueryFilter: types.DefaultQueryFilter}
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	count, err := s.SubRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.SubscriptionResponse, len(subs))
	for i, sub := range subs {
		items[i], err = s.toResponse(ctx, sub)
		if err != nil {
			return nil, err
		}
	}

	resp := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *subscriptionService) UpdateSubscription(ctx context.Context, id string, req *dto.UpdateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sub.LinesMutable() {
		return nil, ierr.NewError("subscription is not editable").
			WithHintf("A subscription in status %s cannot be edited", sub.SubscriptionStatus).
			WithReportableDetails(map[string]any{
				"subscription_id": id,
				"status":          sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if req.StartDate != nil {
		sub.StartDate = *req.StartDate
	}
	if req.ExpirationDate != nil {
		sub.ExpirationDate = req.ExpirationDate
	}
	if req.PaymentTerms != nil {
		sub.PaymentTerms = *req.PaymentTerms
	}
	if req.Notes != nil {
		sub.Notes = *req.Notes
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return s.toResponse(ctx, sub)
}

// DeleteSubscription removes a subscription. Only drafts can be
// deleted; anything further along must be cancelled instead.
func (s *subscriptionService) DeleteSubscription(ctx context.Context, id string) error {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if sub.SubscriptionStatus != types.SubscriptionStatusDraft {
		return ierr.NewError("subscription cannot be deleted").
			WithHintf("Only draft subscriptions can be deleted, this one is %s", sub.SubscriptionStatus).
			WithReportableDetails(map[string]any{
				"subscription_id": id,
				"status":          sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrConflict)
	}
	return s.SubRepo.Delete(ctx, id)
}

func (s *subscriptionService) ExecuteAction(ctx context.Context, id string, action types.SubscriptionAction) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	from := sub.SubscriptionStatus
	to, err := types.NextSubscriptionStatus(from, action)
	if err != nil {
		return nil, err
	}

	if action == types.SubscriptionActionConfirm && len(sub.Lines) == 0 {
		return nil, ierr.NewError("subscription has no lines").
			WithHint("Add at least one line before confirming").
			Mark(ierr.ErrInvalidOperation)
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		// The compare-and-set makes sure a concurrent transition cannot
		// apply twice.
		if err := s.SubRepo.UpdateStatus(ctx, id, from, to); err != nil {
			return err
		}
		return s.applyTransitionEffects(ctx, sub, to)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("subscription transitioned",
		"subscription_id", id,
		"action", action,
		"from", from,
		"to", to,
	)

	sub.SubscriptionStatus = to
	return s.toResponse(ctx, sub)
}

// applyTransitionEffects runs the side effects a transition carries:
// number assignment on leaving draft and billing schedule setup on
// activation.
func (s *subscriptionService) applyTransitionEffects(ctx context.Context, sub *subscription.Subscription, to types.SubscriptionStatus) error {
	changed := false

	if to == types.SubscriptionStatusQuotation && sub.SubscriptionNumber == nil {
		number, err := s.SubRepo.NextSubscriptionNumber(ctx)
		if err != nil {
			return err
		}
		sub.SubscriptionNumber = &number
		changed = true
	}

	if to == types.SubscriptionStatusActive && sub.NextInvoiceDate == nil {
		plan, err := s.CatalogRepo.GetPlan(ctx, sub.PlanID)
		if err != nil {
			return err
		}
		next := plan.BillingPeriod.NextDate(sub.StartDate)
		sub.NextInvoiceDate = &next
		changed = true
	}

	if !changed {
		return nil
	}
	return s.SubRepo.Update(ctx, sub)
}

func (s *subscriptionService) AddLine(ctx context.Context, id string, req *dto.CreateSubscriptionLineRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireMutableLines(sub); err != nil {
		return nil, err
	}

	line := &subscription.Line{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_LINE),
		SubscriptionID:  sub.ID,
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		DiscountPercent: req.DiscountPercent,
		TaxID:           req.TaxID,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	if req.UnitPrice != nil {
		line.UnitPrice = *req.UnitPrice
	}
	if err := s.resolveLinePrices(ctx, []*subscription.Line{line}); err != nil {
		return nil, err
	}
	if err := line.Validate(); err != nil {
		return nil, err
	}

	if err := s.SubRepo.AddLine(ctx, line); err != nil {
		return nil, err
	}
	sub.Lines = append(sub.Lines, line)
	return s.toResponse(ctx, sub)
}

func (s *subscriptionService) UpdateLine(ctx context.Context, id, lineID string, req *dto.UpdateSubscriptionLineRequest) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireMutableLines(sub); err != nil {
		return nil, err
	}

	line, found := lo.Find(sub.Lines, func(l *subscription.Line) bool { return l.ID == lineID })
	if !found {
		return nil, ierr.NewError("subscription line not found").
			WithHintf("Line %s does not belong to subscription %s", lineID, id).
			Mark(ierr.ErrNotFound)
	}

	if req.Quantity != nil {
		line.Quantity = *req.Quantity
	}
	if req.UnitPrice != nil {
		line.UnitPrice = *req.UnitPrice
	}
	if req.DiscountPercent != nil {
		line.DiscountPercent = *req.DiscountPercent
	}
	if req.TaxID != nil {
		line.TaxID = req.TaxID
	}
	if err := line.Validate(); err != nil {
		return nil, err
	}

	if err := s.SubRepo.UpdateLine(ctx, line); err != nil {
		return nil, err
	}
	return s.toResponse(ctx, sub)
}

func (s *subscriptionService) RemoveLine(ctx context.Context, id, lineID string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireMutableLines(sub); err != nil {
		return nil, err
	}

	if err := s.SubRepo.RemoveLine(ctx, id, lineID); err != nil {
		return nil, err
	}
	sub.Lines = lo.Filter(sub.Lines, func(l *subscription.Line, _ int) bool { return l.ID != lineID })
	return s.toResponse(ctx, sub)
}

// RenewSubscription copies the subscription into a fresh draft whose
// term starts where the original ends.
func (s *subscriptionService) RenewSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	origin, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	renewableFrom := []types.SubscriptionStatus{
		types.SubscriptionStatusActive,
		types.SubscriptionStatusClosed,
	}
	if !lo.Contains(renewableFrom, origin.SubscriptionStatus) {
		return nil, ierr.NewError("subscription cannot be renewed").
			WithHintf("A subscription in status %s cannot be renewed", origin.SubscriptionStatus).
			WithReportableDetails(map[string]any{
				"subscription_id": id,
				"status":          origin.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	draft := s.deriveDraft(ctx, origin)
	if origin.ExpirationDate != nil {
		// The renewed term picks up the day after the original ends
		draft.StartDate = origin.ExpirationDate.AddDate(0, 0, 1)
		if plan, err := s.CatalogRepo.GetPlan(ctx, origin.PlanID); err == nil {
			end := plan.BillingPeriod.NextDate(draft.StartDate)
			draft.ExpirationDate = &end
		}
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		return s.SubRepo.Create(ctx, draft)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("derived renewal draft",
		"origin_subscription_id", id,
		"subscription_id", draft.ID,
	)
	return s.toResponse(ctx, draft)
}

// UpsellSubscription copies the subscription into a fresh draft and
// appends the requested lines on top of the originals.
func (s *subscriptionService) UpsellSubscription(ctx context.Context, id string, req *dto.UpsellSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	origin, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if origin.SubscriptionStatus != types.SubscriptionStatusActive {
		return nil, ierr.NewError("subscription cannot be upsold").
			WithHintf("Only active subscriptions can be upsold, this one is %s", origin.SubscriptionStatus).
			WithReportableDetails(map[string]any{
				"subscription_id": id,
				"status":          origin.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	draft := s.deriveDraft(ctx, origin)
	for _, lr := range req.Lines {
		line := &subscription.Line{
			ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_LINE),
			SubscriptionID:  draft.ID,
			ProductID:       lr.ProductID,
			Quantity:        lr.Quantity,
			DiscountPercent: lr.DiscountPercent,
			TaxID:           lr.TaxID,
			BaseModel:       types.GetDefaultBaseModel(ctx),
		}
		if lr.UnitPrice != nil {
			line.UnitPrice = *lr.UnitPrice
		}
		draft.Lines = append(draft.Lines, line)
	}
	if err := s.resolveLinePrices(ctx, draft.Lines); err != nil {
		return nil, err
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		return s.SubRepo.Create(ctx, draft)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("derived upsell draft",
		"origin_subscription_id", id,
		"subscription_id", draft.ID,
		"added_lines", len(req.Lines),
	)
	return s.toResponse(ctx, draft)
}

// deriveDraft copies a subscription into a new draft linked back to its
// origin. The draft's term starts today unless the caller overrides it;
// document numbers are never carried over.
func (s *subscriptionService) deriveDraft(ctx context.Context, origin *subscription.Subscription) *subscription.Subscription {
	draft := &subscription.Subscription{
		ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:           origin.CustomerID,
		PlanID:               origin.PlanID,
		SubscriptionStatus:   types.SubscriptionStatusDraft,
		StartDate:            time.Now().UTC(),
		ExpirationDate:       origin.ExpirationDate,
		PaymentTerms:         origin.PaymentTerms,
		Notes:                origin.Notes,
		OriginSubscriptionID: &origin.ID,
		BaseModel:            types.GetDefaultBaseModel(ctx),
	}

	for _, l := range origin.Lines {
		draft.Lines = append(draft.Lines, &subscription.Line{
			ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_LINE),
			SubscriptionID:  draft.ID,
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			TaxID:           l.TaxID,
			BaseModel:       types.GetDefaultBaseModel(ctx),
		})
	}
	return draft
}

// resolveLinePrices fills empty unit prices and tax references from the
// catalog
func (s *subscriptionService) resolveLinePrices(ctx context.Context, lines []*subscription.Line) error {
	for _, line := range lines {
		if !line.UnitPrice.IsZero() && line.TaxID != nil {
			continue
		}
		product, err := s.CatalogRepo.GetProduct(ctx, line.ProductID)
		if err != nil {
			return err
		}
		if line.UnitPrice.IsZero() {
			line.UnitPrice = product.ListPrice
		}
		if line.TaxID == nil {
			line.TaxID = product.DefaultTaxID
		}
	}
	return nil
}

func (s *subscriptionService) requireMutableLines(sub *subscription.Subscription) error {
	if sub.LinesMutable() {
		return nil
	}
	return ierr.NewError("subscription lines are locked").
		WithHintf("Lines cannot change once a subscription is %s", sub.SubscriptionStatus).
		WithReportableDetails(map[string]any{
			"subscription_id": sub.ID,
			"status":          sub.SubscriptionStatus,
		}).
		Mark(ierr.ErrInvalidOperation)
}

func (s *subscriptionService) taxLookup(ctx context.Context) pricing.TaxLookup {
	return func(taxID string) (decimal.Decimal, error) {
		tax, err := s.CatalogRepo.GetTax(ctx, taxID)
		if err != nil {
			return decimal.Zero, err
		}
		return tax.RatePercent, nil
	}
}

func (s *subscriptionService) toResponse(ctx context.Context, sub *subscription.Subscription) (*dto.SubscriptionResponse, error) {
	totals, err := pricing.DocumentTotals(sub.PricingLines(), s.taxLookup(ctx), nil)
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{Subscription: sub, Totals: &totals}, nil
}
