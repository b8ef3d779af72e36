package postgres

import (
	"context"
	"database/sql"

	"github.com/renewly/renewly/internal/cache"
	"github.com/renewly/renewly/internal/domain/catalog"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
	"github.com/renewly/renewly/internal/types"
)

// catalogRepository reads catalog reference data with a read-through
// cache. The catalog changes rarely, pricing reads it constantly.
type catalogRepository struct {
	client postgres.IClient
	cache  cache.Cache
	logger *logger.Logger
}

func NewCatalogRepository(client postgres.IClient, c cache.Cache, logger *logger.Logger) catalog.Repository {
	return &catalogRepository{client: client, cache: c, logger: logger}
}

const productColumns = `
	id, name, description, list_price, default_tax_id,
	tenant_id, status, created_at, updated_at, created_by, updated_by
`

const variantColumns = `
	id, product_id, name, price_delta,
	tenant_id, status, created_at, updated_at, created_by, updated_by
`

const planColumns = `
	id, name, billing_period, payment_terms,
	tenant_id, status, created_at, updated_at, created_by, updated_by
`

const taxColumns = `
	id, name, rate_percent,
	tenant_id, status, created_at, updated_at, created_by, updated_by
`

func (r *catalogRepository) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	key := cache.GenerateKey(cache.PrefixProduct, types.GetTenantID(ctx), id)
	if cached, found := r.cache.Get(ctx, key); found {
		if p, ok := cached.(*catalog.Product); ok {
			return p, nil
		}
	}

	query := `
	SELECT ` + productColumns + `
	FROM products
	WHERE id = $1 AND tenant_id = $2 AND status = $3
	`

	var p catalog.Product
	err := r.client.Querier(ctx).GetContext(ctx, &p, query,
		id, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("product not found").
				WithHintf("Product with ID %s was not found", id).
				WithReportableDetails(map[string]any{
					"product_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get product").
			Mark(ierr.ErrDatabase)
	}

	r.cache.Set(ctx, key, &p, cache.DefaultExpiration)
	return &p, nil
}

func (r *catalogRepository) GetVariant(ctx context.Context, id string) (*catalog.Variant, error) {
	key := cache.GenerateKey(cache.PrefixVariant, types.GetTenantID(ctx), id)
	if cached, found := r.cache.Get(ctx, key); found {
		if v, ok := cached.(*catalog.Variant); ok {
			return v, nil
		}
	}

	query := `
	SELECT ` + variantColumns + `
	FROM product_variants
	WHERE id = $1 AND tenant_id = $2 AND status = $3
	`

	var v catalog.Variant
	err := r.client.Querier(ctx).GetContext(ctx, &v, query,
		id, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("product variant not found").
				WithHintf("Variant with ID %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get product variant").
			Mark(ierr.ErrDatabase)
	}

	r.cache.Set(ctx, key, &v, cache.DefaultExpiration)
	return &v, nil
}

func (r *catalogRepository) GetPlan(ctx context.Context, id string) (*catalog.Plan, error) {
	key := cache.GenerateKey(cache.PrefixPlan, types.GetTenantID(ctx), id)
	if cached, found := r.cache.Get(ctx, key); found {
		if p, ok := cached.(*catalog.Plan); ok {
			return p, nil
		}
	}

	query := `
	SELECT ` + planColumns + `
	FROM plans
	WHERE id = $1 AND tenant_id = $2 AND status = $3
	`

	var p catalog.Plan
	err := r.client.Querier(ctx).GetContext(ctx, &p, query,
		id, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("plan not found").
				WithHintf("Plan with ID %s was not found", id).
				WithReportableDetails(map[string]any{
					"plan_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get plan").
			Mark(ierr.ErrDatabase)
	}

	r.cache.Set(ctx, key, &p, cache.DefaultExpiration)
	return &p, nil
}

func (r *catalogRepository) GetTax(ctx context.Context, id string) (*catalog.Tax, error) {
	key := cache.GenerateKey(cache.PrefixTax, types.GetTenantID(ctx), id)
	if cached, found := r.cache.Get(ctx, key); found {
		if t, ok := cached.(*catalog.Tax); ok {
			return t, nil
		}
	}

	query := `
	SELECT ` + taxColumns + `
	FROM taxes
	WHERE id = $1 AND tenant_id = $2 AND status = $3
	`

	var t catalog.Tax
	err := r.client.Querier(ctx).GetContext(ctx, &t, query,
		id, types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("tax not found").
				WithHintf("Tax with ID %s was not found", id).
				WithReportableDetails(map[string]any{
					"tax_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get tax").
			Mark(ierr.ErrDatabase)
	}

	r.cache.Set(ctx, key, &t, cache.DefaultExpiration)
	return &t, nil
}

func (r *catalogRepository) ListTaxes(ctx context.Context) ([]*catalog.Tax, error) {
	query := `
	SELECT ` + taxColumns + `
	FROM taxes
	WHERE tenant_id = $1 AND status = $2
	ORDER BY name
	`

	var taxes []*catalog.Tax
	err := r.client.Querier(ctx).SelectContext(ctx, &taxes, query,
		types.GetTenantID(ctx), types.StatusPublished)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list taxes").
			Mark(ierr.ErrDatabase)
	}
	return taxes, nil
}
