package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/renewly/renewly/internal/domain/cart"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
	"github.com/renewly/renewly/internal/types"
)

type cartRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewCartRepository(client postgres.IClient, logger *logger.Logger) cart.Repository {
	return &cartRepository{client: client, logger: logger}
}

const cartColumns = `
	id, cart_number, customer_id, tenant_id, status, created_at,
	updated_at, created_by, updated_by
`

const cartItemColumns = `
	id, cart_id, product_id, variant_id, quantity, unit_price, tax_id,
	tenant_id, status, created_at, updated_at, created_by, updated_by
`

func (r *cartRepository) Create(ctx context.Context, c *cart.Cart) error {
	r.logger.Debugw("creating cart", "cart_id", c.ID, "customer_id", c.CustomerID)

	query := `
	INSERT INTO carts (` + cartColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		c.ID,
		c.CartNumber,
		c.CustomerID,
		c.TenantID,
		c.Status,
		c.CreatedAt,
		c.UpdatedAt,
		c.CreatedBy,
		c.UpdatedBy,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create cart").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *cartRepository) Get(ctx context.Context, id string) (*cart.Cart, error) {
	query := `
	SELECT ` + cartColumns + `
	FROM carts
	WHERE id = $1 AND tenant_id = $2 AND status != $3
	`

	var c cart.Cart
	err := r.client.Querier(ctx).GetContext(ctx, &c, query,
		id, types.GetTenantID(ctx), types.StatusDeleted)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("cart not found").
				WithHintf("Cart with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get cart").
			Mark(ierr.ErrDatabase)
	}

	items, err := r.getItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return &c, nil
}

func (r *cartRepository) GetOpenByCustomer(ctx context.Context, customerID string) (*cart.Cart, error) {
	query := `
	SELECT ` + cartColumns + `
	FROM carts
	WHERE customer_id = $1 AND tenant_id = $2 AND status = $3
	ORDER BY created_at DESC
	LIMIT 1
	`

	var c cart.Cart
	err := r.client.Querier(ctx).GetContext(ctx, &c, query,
		customerID, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("cart not found").
				WithHintf("Customer %s has no open cart", customerID).
				WithReportableDetails(map[string]any{
					"customer_id": customerID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get cart").
			Mark(ierr.ErrDatabase)
	}

	items, err := r.getItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return &c, nil
}

func (r *cartRepository) getItems(ctx context.Context, cartID string) ([]*cart.Item, error) {
	query := `
	SELECT ` + cartItemColumns + `
	FROM cart_items
	WHERE cart_id = $1 AND status != $2
	ORDER BY created_at
	`

	var items []*cart.Item
	err := r.client.Querier(ctx).SelectContext(ctx, &items, query, cartID, types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to get cart items").
			Mark(ierr.ErrDatabase)
	}
	return items, nil
}

func (r *cartRepository) AddItem(ctx context.Context, item *cart.Item) error {
	query := `
	INSERT INTO cart_items (` + cartItemColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.client.Querier(ctx).ExecContext(ctx, query,
		item.ID,
		item.CartID,
		item.ProductID,
		item.VariantID,
		item.Quantity,
		item.UnitPrice,
		item.TaxID,
		item.TenantID,
		item.Status,
		item.CreatedAt,
		item.UpdatedAt,
		item.CreatedBy,
		item.UpdatedBy,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to add cart item").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *cartRepository) UpdateItem(ctx context.Context, item *cart.Item) error {
	query := `
	UPDATE cart_items SET
		quantity = $3, unit_price = $4, updated_at = $5, updated_by = $6
	WHERE id = $1 AND cart_id = $2 AND status != $7
	`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		item.ID,
		item.CartID,
		item.Quantity,
		item.UnitPrice,
		time.Now().UTC(),
		types.GetUserID(ctx),
		types.StatusDeleted,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update cart item").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "cart item", item.ID)
}

func (r *cartRepository) RemoveItem(ctx context.Context, cartID, itemID string) error {
	query := `
	UPDATE cart_items SET status = $3, updated_at = $4, updated_by = $5
	WHERE id = $1 AND cart_id = $2 AND status != $3
	`

	result, err := r.client.Querier(ctx).ExecContext(ctx, query,
		itemID, cartID, types.StatusDeleted, time.Now().UTC(), types.GetUserID(ctx))
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to remove cart item").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "cart item", itemID)
}

// Clear archives the cart and soft deletes its items
func (r *cartRepository) Clear(ctx context.Context, cartID string) error {
	now := time.Now().UTC()
	userID := types.GetUserID(ctx)

	itemQuery := `
	UPDATE cart_items SET status = $2, updated_at = $3, updated_by = $4
	WHERE cart_id = $1 AND status != $2
	`
	if _, err := r.client.Querier(ctx).ExecContext(ctx, itemQuery,
		cartID, types.StatusDeleted, now, userID); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to clear cart items").
			Mark(ierr.ErrDatabase)
	}

	cartQuery := `
	UPDATE carts SET status = $2, updated_at = $3, updated_by = $4
	WHERE id = $1 AND status = $5
	`
	result, err := r.client.Querier(ctx).ExecContext(ctx, cartQuery,
		cartID, types.StatusArchived, now, userID, types.StatusPublished)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to archive cart").
			Mark(ierr.ErrDatabase)
	}
	return requireRowAffected(result, "cart", cartID)
}
