package testutil

import (
	"context"
	"sync"

	"github.com/renewly/renewly/internal/domain/discount"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// InMemoryDiscountStore implements discount.Repository
type InMemoryDiscountStore struct {
	*InMemoryStore[*discount.Discount]

	// redeemMu serializes redemptions so the usage cap is never oversold,
	// matching the guarded SQL increment
	redeemMu sync.Mutex
}

func NewInMemoryDiscountStore() *InMemoryDiscountStore {
	return &InMemoryDiscountStore{
		InMemoryStore: NewInMemoryStore[*discount.Discount](),
	}
}

func discountFilterFn(ctx context.Context, d *discount.Discount, filter interface{}) bool {
	if d == nil || d.Status == types.StatusDeleted {
		return false
	}
	if !checkTenant(ctx, d.TenantID) {
		return false
	}

	f, ok := filter.(*types.DiscountFilter)
	if !ok || f == nil {
		return true
	}

	if f.Code != "" && d.Code != f.Code {
		return false
	}
	if f.Type != nil && d.DiscountType != *f.Type {
		return false
	}
	if f.ProductID != "" {
		if d.ProductID == nil || *d.ProductID != f.ProductID {
			return false
		}
	}
	return true
}

func discountSortFn(i, j *discount.Discount) bool {
	if i == nil || j == nil {
		return false
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryDiscountStore) Create(ctx context.Context, d *discount.Discount) error {
	if d == nil {
		return ierr.NewError("discount cannot be nil").Mark(ierr.ErrValidation)
	}

	if existing, err := s.GetByCode(ctx, d.Code); err == nil && existing != nil {
		return ierr.NewError("discount code already exists").
			WithHintf("A discount with code %s already exists", d.Code).
			Mark(ierr.ErrAlreadyExists)
	}

	cp := *d
	return s.InMemoryStore.Create(ctx, d.ID, &cp)
}

func (s *InMemoryDiscountStore) Get(ctx context.Context, id string) (*discount.Discount, error) {
	d, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || d.Status == types.StatusDeleted {
		return nil, ierr.NewError("discount not found").
			WithHintf("Discount with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (s *InMemoryDiscountStore) GetByCode(ctx context.Context, code string) (*discount.Discount, error) {
	filter := &types.DiscountFilter{
		QueryFilter: types.NoLimitQueryFilter,
		Code:        code,
	}
	discounts, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(discounts) == 0 {
		return nil, ierr.NewError("discount not found").
			WithHintf("No discount exists with code %s", code).
			Mark(ierr.ErrNotFound)
	}
	return discounts[0], nil
}

// Update writes the discount definition fields. Code and usage counter
// are immutable here; redemptions go through IncrementRedemptions.
func (s *InMemoryDiscountStore) Update(ctx context.Context, d *discount.Discount) error {
	s.redeemMu.Lock()
	defer s.redeemMu.Unlock()

	existing, err := s.InMemoryStore.Get(ctx, d.ID)
	if err != nil || existing.Status == types.StatusDeleted {
		return ierr.NewError("discount not found").
			WithHintf("Discount with ID %s was not found", d.ID).
			Mark(ierr.ErrNotFound)
	}

	existing.DiscountType = d.DiscountType
	existing.Value = d.Value
	existing.MinPurchase = d.MinPurchase
	existing.MinQuantity = d.MinQuantity
	existing.StartDate = d.StartDate
	existing.EndDate = d.EndDate
	existing.UsageLimit = d.UsageLimit
	existing.ProductID = d.ProductID
	existing.Touch(ctx)
	return nil
}

func (s *InMemoryDiscountStore) Delete(ctx context.Context, id string) error {
	s.redeemMu.Lock()
	defer s.redeemMu.Unlock()

	existing, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || existing.Status == types.StatusDeleted {
		return ierr.NewError("discount not found").
			WithHintf("Discount with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	existing.Status = types.StatusDeleted
	existing.Touch(ctx)
	return nil
}

func (s *InMemoryDiscountStore) List(ctx context.Context, filter *types.DiscountFilter) ([]*discount.Discount, error) {
	discounts, err := s.InMemoryStore.List(ctx, filter, discountFilterFn, discountSortFn)
	if err != nil {
		return nil, err
	}

	out := make([]*discount.Discount, len(discounts))
	for i, d := range discounts {
		cp := *d
		out[i] = &cp
	}
	return out, nil
}

func (s *InMemoryDiscountStore) Count(ctx context.Context, filter *types.DiscountFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, discountFilterFn)
}

func (s *InMemoryDiscountStore) IncrementRedemptions(ctx context.Context, id string) error {
	s.redeemMu.Lock()
	defer s.redeemMu.Unlock()

	existing, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || existing.Status == types.StatusDeleted {
		return ierr.NewError("discount not found").
			WithHintf("Discount with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}

	if existing.UsageLimit > 0 && existing.TimesUsed >= existing.UsageLimit {
		return ierr.NewError("discount usage limit reached").
			WithHint("The discount has no redemptions left").
			WithReportableDetails(map[string]any{
				"discount_id": id,
				"usage_limit": existing.UsageLimit,
			}).
			Mark(ierr.ErrUsageLimitExceeded)
	}

	existing.TimesUsed++
	existing.Touch(ctx)
	return nil
}
