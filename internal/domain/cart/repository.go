package cart

import "context"

// Repository provides access to cart storage
type Repository interface {
	Create(ctx context.Context, c *Cart) error
	Get(ctx context.Context, id string) (*Cart, error)

	// GetOpenByCustomer returns the customer's open cart, or a not found
	// error when none exists.
	GetOpenByCustomer(ctx context.Context, customerID string) (*Cart, error)

	AddItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	RemoveItem(ctx context.Context, cartID, itemID string) error

	// Clear removes all items and archives the cart
	Clear(ctx context.Context, cartID string) error
}
