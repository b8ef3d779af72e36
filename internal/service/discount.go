package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/renewly/renewly/internal/api/dto"
	"github.com/renewly/renewly/internal/domain/discount"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// PurchaseContext is the prospective purchase a discount is evaluated
// against
type PurchaseContext struct {
	Subtotal   decimal.Decimal
	Quantity   decimal.Decimal
	ProductIDs []string
}

// DiscountService manages discount codes and redemption
type DiscountService interface {
	CreateDiscount(ctx context.Context, req *dto.CreateDiscountRequest) (*dto.DiscountResponse, error)
	GetDiscount(ctx context.Context, id string) (*dto.DiscountResponse, error)
	GetDiscountByCode(ctx context.Context, code string) (*dto.DiscountResponse, error)
	ListDiscounts(ctx context.Context, filter *types.DiscountFilter) (*dto.ListDiscountsResponse, error)
	UpdateDiscount(ctx context.Context, id string, req *dto.UpdateDiscountRequest) (*dto.DiscountResponse, error)
	DeleteDiscount(ctx context.Context, id string) error

	// ValidateDiscount reports whether the code can be applied to the
	// purchase, with the first failing check as the reason
	ValidateDiscount(ctx context.Context, req *dto.ValidateDiscountRequest) (*dto.ValidateDiscountResponse, error)

	// CheckDiscount resolves and validates a code, returning a typed
	// error on the first failing check. Used by checkout.
	CheckDiscount(ctx context.Context, code string, purchase PurchaseContext) (*discount.Discount, error)

	// RedeemDiscount atomically consumes one redemption
	RedeemDiscount(ctx context.Context, id string) error
}

type discountService struct {
	ServiceParams
}

func NewDiscountService(params ServiceParams) DiscountService {
	return &discountService{ServiceParams: params}
}

func (s *discountService) CreateDiscount(ctx context.Context, req *dto.CreateDiscountRequest) (*dto.DiscountResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	d := req.ToDiscount(ctx)
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if err := s.DiscountRepo.Create(ctx, d); err != nil {
		return nil, err
	}

	s.Logger.Infow("created discount", "discount_id", d.ID, "code", d.Code)
	return &dto.DiscountResponse{Discount: d}, nil
}

func (s *discountService) GetDiscount(ctx context.Context, id string) (*dto.DiscountResponse, error) {
	d, err := s.DiscountRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.DiscountResponse{Discount: d}, nil
}

func (s *discountService) GetDiscountByCode(ctx context.Context, code string) (*dto.DiscountResponse, error) {
	d, err := s.DiscountRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return &dto.DiscountResponse{Discount: d}, nil
}

func (s *discountService) ListDiscounts(ctx context.Context, filter *types.DiscountFilter) (*dto.ListDiscountsResponse, error) {
	if filter == nil {
		filter = &types.DiscountFilter{QueryFilter: types.DefaultQueryFilter}
	}

	discounts, err := s.DiscountRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	count, err := s.DiscountRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.DiscountResponse, len(discounts))
	for i, d := range discounts {
		items[i] = &dto.DiscountResponse{Discount: d}
	}

	resp := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *discountService) UpdateDiscount(ctx context.Context, id string, req *dto.UpdateDiscountRequest) (*dto.DiscountResponse, error) {
	d, err := s.DiscountRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Value != nil {
		d.Value = *req.Value
	}
	if req.MinPurchase != nil {
		d.MinPurchase = *req.MinPurchase
	}
	if req.MinQuantity != nil {
		d.MinQuantity = *req.MinQuantity
	}
	if req.StartDate != nil {
		d.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		d.EndDate = req.EndDate
	}
	if req.UsageLimit != nil {
		d.UsageLimit = *req.UsageLimit
	}
	if req.ProductID != nil {
		d.ProductID = req.ProductID
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if err := s.DiscountRepo.Update(ctx, d); err != nil {
		return nil, err
	}
	return &dto.DiscountResponse{Discount: d}, nil
}

func (s *discountService) DeleteDiscount(ctx context.Context, id string) error {
	return s.DiscountRepo.Delete(ctx, id)
}

func (s *discountService) ValidateDiscount(ctx context.Context, req *dto.ValidateDiscountRequest) (*dto.ValidateDiscountResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	d, err := s.CheckDiscount(ctx, req.Code, PurchaseContext{
		Subtotal:   req.Subtotal,
		Quantity:   req.Quantity,
		ProductIDs: req.ProductIDs,
	})
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, err
		}
		return &dto.ValidateDiscountResponse{
			Valid:  false,
			Reason: ierr.ErrorMessage(err),
		}, nil
	}

	return &dto.ValidateDiscountResponse{
		Valid:    true,
		Discount: &dto.DiscountResponse{Discount: d},
	}, nil
}

// CheckDiscount runs the eligibility checks in a fixed order so the
// caller always sees the same first failure: record active, validity
// window, usage limit, minimum purchase, minimum quantity, product
// scope.
func (s *discountService) CheckDiscount(ctx context.Context, code string, purchase PurchaseContext) (*discount.Discount, error) {
	d, err := s.DiscountRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if !d.IsActive() {
		return nil, ierr.NewError("discount is not active").
			WithHintf("Discount code %s is not active", code).
			WithReportableDetails(map[string]any{
				"code": code,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	if !d.InValidityWindow(time.Now().UTC()) {
		return nil, ierr.NewError("discount is outside its validity window").
			WithHintf("Discount code %s is expired or not yet valid", code).
			WithReportableDetails(map[string]any{
				"code":       code,
				"start_date": d.StartDate,
				"end_date":   d.EndDate,
			}).
			Mark(ierr.ErrDiscountExpired)
	}

	if d.UsageExhausted() {
		return nil, ierr.NewError("discount usage limit reached").
			WithHintf("Discount code %s has no redemptions left", code).
			WithReportableDetails(map[string]any{
				"code":        code,
				"usage_limit": d.UsageLimit,
				"times_used":  d.TimesUsed,
			}).
			Mark(ierr.ErrUsageLimitExceeded)
	}

	if d.MinPurchase.IsPositive() && purchase.Subtotal.LessThan(d.MinPurchase) {
		return nil, ierr.NewError("purchase below discount minimum").
			WithHintf("This discount requires a purchase of at least %s", d.MinPurchase).
			WithReportableDetails(map[string]any{
				"code":         code,
				"min_purchase": d.MinPurchase,
				"subtotal":     purchase.Subtotal,
			}).
			Mark(ierr.ErrValidation)
	}

	if d.MinQuantity.IsPositive() && purchase.Quantity.LessThan(d.MinQuantity) {
		return nil, ierr.NewError("quantity below discount minimum").
			WithHintf("This discount requires at least %s items", d.MinQuantity).
			WithReportableDetails(map[string]any{
				"code":         code,
				"min_quantity": d.MinQuantity,
				"quantity":     purchase.Quantity,
			}).
			Mark(ierr.ErrValidation)
	}

	if d.ProductID != nil {
		found := false
		for _, pid := range purchase.ProductIDs {
			if pid == *d.ProductID {
				found = true
				break
			}
		}
		if !found {
			return nil, ierr.NewError("discount does not apply to these products").
				WithHintf("Discount code %s only applies to a specific product", code).
				WithReportableDetails(map[string]any{
					"code":       code,
					"product_id": *d.ProductID,
				}).
				Mark(ierr.ErrDiscountScopeMismatch)
		}
	}

	return d, nil
}

func (s *discountService) RedeemDiscount(ctx context.Context, id string) error {
	return s.DiscountRepo.IncrementRedemptions(ctx, id)
}
