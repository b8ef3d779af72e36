package discount

import (
	"context"

	"github.com/renewly/renewly/internal/types"
)

// Repository provides access to discount storage
type Repository interface {
	Create(ctx context.Context, d *Discount) error
	Get(ctx context.Context, id string) (*Discount, error)
	GetByCode(ctx context.Context, code string) (*Discount, error)
	Update(ctx context.Context, d *Discount) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter *types.DiscountFilter) ([]*Discount, error)
	Count(ctx context.Context, filter *types.DiscountFilter) (int, error)

	// IncrementRedemptions atomically bumps the usage counter, honoring
	// the usage limit. It fails with a usage limit error when the cap is
	// already reached, so concurrent redemptions never oversell.
	IncrementRedemptions(ctx context.Context, id string) error
}
