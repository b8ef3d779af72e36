package subscription

import (
	"context"
	"time"

	"github.com/renewly/renewly/internal/types"
)

// Repository provides access to subscription storage. Status changes go
// through UpdateStatus, which is a compare-and-set on the stored status
// so concurrent transitions produce exactly one winner.
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)
	Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error)

	// UpdateStatus atomically moves the subscription from `from` to `to`.
	// It fails with an illegal transition error when the stored status no
	// longer matches `from`.
	UpdateStatus(ctx context.Context, id string, from, to types.SubscriptionStatus) error

	// ListDue returns active subscriptions whose next invoice date has
	// arrived as of the given time.
	ListDue(ctx context.Context, asOf time.Time) ([]*Subscription, error)

	// NextSubscriptionNumber issues the next unique, monotonic
	// subscription number.
	NextSubscriptionNumber(ctx context.Context) (string, error)

	// Line operations; ownership stays with the subscription aggregate
	AddLine(ctx context.Context, line *Line) error
	UpdateLine(ctx context.Context, line *Line) error
	RemoveLine(ctx context.Context, subscriptionID, lineID string) error
}
