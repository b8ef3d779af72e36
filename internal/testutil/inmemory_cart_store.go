package testutil

import (
	"context"
	"sync"

	"github.com/renewly/renewly/internal/domain/cart"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

// InMemoryCartStore implements cart.Repository
type InMemoryCartStore struct {
	*InMemoryStore[*cart.Cart]

	itemsMu sync.RWMutex
	items   map[string][]*cart.Item // map[cartID][]items
}

func NewInMemoryCartStore() *InMemoryCartStore {
	return &InMemoryCartStore{
		InMemoryStore: NewInMemoryStore[*cart.Cart](),
		items:         make(map[string][]*cart.Item),
	}
}

func (s *InMemoryCartStore) Create(ctx context.Context, c *cart.Cart) error {
	if c == nil {
		return ierr.NewError("cart cannot be nil").Mark(ierr.ErrValidation)
	}

	stored := *c
	stored.Items = nil
	if err := s.InMemoryStore.Create(ctx, c.ID, &stored); err != nil {
		return err
	}

	for _, item := range c.Items {
		if err := s.AddItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryCartStore) Get(ctx context.Context, id string) (*cart.Cart, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || c.Status == types.StatusDeleted {
		return nil, ierr.NewError("cart not found").
			WithHintf("Cart with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}

	cp := *c
	cp.Items = s.activeItems(id)
	return &cp, nil
}

func (s *InMemoryCartStore) activeItems(cartID string) []*cart.Item {
	s.itemsMu.RLock()
	defer s.itemsMu.RUnlock()

	var out []*cart.Item
	for _, item := range s.items[cartID] {
		if item.Status == types.StatusDeleted {
			continue
		}
		ic := *item
		out = append(out, &ic)
	}
	return out
}

func (s *InMemoryCartStore) GetOpenByCustomer(ctx context.Context, customerID string) (*cart.Cart, error) {
	carts, err := s.InMemoryStore.List(ctx, nil,
		func(ctx context.Context, c *cart.Cart, _ interface{}) bool {
			return c != nil && checkTenant(ctx, c.TenantID) &&
				c.CustomerID == customerID && c.Status == types.StatusPublished
		},
		func(i, j *cart.Cart) bool {
			return i.CreatedAt.After(j.CreatedAt)
		})
	if err != nil {
		return nil, err
	}
	if len(carts) == 0 {
		return nil, ierr.NewError("cart not found").
			WithHintf("Customer %s has no open cart", customerID).
			WithReportableDetails(map[string]any{
				"customer_id": customerID,
			}).
			Mark(ierr.ErrNotFound)
	}

	cp := *carts[0]
	cp.Items = s.activeItems(cp.ID)
	return &cp, nil
}

func (s *InMemoryCartStore) AddItem(ctx context.Context, item *cart.Item) error {
	if item == nil {
		return ierr.NewError("item cannot be nil").Mark(ierr.ErrValidation)
	}

	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()

	ic := *item
	s.items[item.CartID] = append(s.items[item.CartID], &ic)
	return nil
}

func (s *InMemoryCartStore) UpdateItem(ctx context.Context, item *cart.Item) error {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()

	for _, existing := range s.items[item.CartID] {
		if existing.ID != item.ID || existing.Status == types.StatusDeleted {
			continue
		}
		existing.Quantity = item.Quantity
		existing.UnitPrice = item.UnitPrice
		existing.Touch(ctx)
		return nil
	}

	return ierr.NewError("cart item not found").
		WithHintf("Cart item with ID %s was not found", item.ID).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryCartStore) RemoveItem(ctx context.Context, cartID, itemID string) error {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()

	for _, existing := range s.items[cartID] {
		if existing.ID != itemID || existing.Status == types.StatusDeleted {
			continue
		}
		existing.Status = types.StatusDeleted
		existing.Touch(ctx)
		return nil
	}

	return ierr.NewError("cart item not found").
		WithHintf("Cart item with ID %s was not found", itemID).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryCartStore) Clear(ctx context.Context, cartID string) error {
	c, err := s.InMemoryStore.Get(ctx, cartID)
	if err != nil || c.Status != types.StatusPublished {
		return ierr.NewError("cart not found").
			WithHintf("Cart with ID %s was not found", cartID).
			Mark(ierr.ErrNotFound)
	}

	s.itemsMu.Lock()
	for _, item := range s.items[cartID] {
		if item.Status != types.StatusDeleted {
			item.Status = types.StatusDeleted
			item.Touch(ctx)
		}
	}
	s.itemsMu.Unlock()

	c.Status = types.StatusArchived
	c.Touch(ctx)
	return nil
}

// ClearAll removes all carts and items between tests
func (s *InMemoryCartStore) ClearAll() {
	s.InMemoryStore.Clear()
	s.itemsMu.Lock()
	s.items = make(map[string][]*cart.Item)
	s.itemsMu.Unlock()
}
