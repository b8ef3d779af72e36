package catalog

import "context"

// Repository provides read access to the catalog. The catalog is
// reference data for billing; it is maintained elsewhere.
type Repository interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetVariant(ctx context.Context, id string) (*Variant, error)
	GetPlan(ctx context.Context, id string) (*Plan, error)
	GetTax(ctx context.Context, id string) (*Tax, error)
	ListTaxes(ctx context.Context) ([]*Tax, error)
}
