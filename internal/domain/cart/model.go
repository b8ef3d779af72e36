package cart

import (
	"github.com/shopspring/decimal"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/pricing"
	"github.com/renewly/renewly/internal/types"
)

// Cart is a customer's staging area for a checkout. One open cart per
// customer; checkout drains it.
type Cart struct {
	// ID is the unique identifier for the cart
	ID string `db:"id" json:"id"`

	// CartNumber is a short human-readable reference
	CartNumber string `db:"cart_number" json:"cart_number"`

	// CustomerID is the customer the cart belongs to
	CustomerID string `db:"customer_id" json:"customer_id"`

	Items []*Item `json:"items,omitempty"`

	types.BaseModel
}

// Item is a product staged in a cart
type Item struct {
	ID     string `db:"id" json:"id"`
	CartID string `db:"cart_id" json:"cart_id"`

	ProductID string `db:"product_id" json:"product_id"`

	// VariantID pins a concrete product variant, when the product has them
	VariantID *string `db:"variant_id" json:"variant_id,omitempty"`

	Quantity  decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`

	// TaxID references a catalog tax rate applied to this item, if any
	TaxID *string `db:"tax_id" json:"tax_id,omitempty"`

	types.BaseModel
}

// Validate validates the cart item
func (i *Item) Validate() error {
	if i.ProductID == "" {
		return ierr.NewError("product id is required").
			WithHint("Every cart item must reference a product").
			Mark(ierr.ErrValidation)
	}
	if i.Quantity.LessThanOrEqual(decimal.Zero) {
		return ierr.NewError("invalid quantity").
			WithHint("Quantity must be greater than zero").
			WithReportableDetails(map[string]any{
				"quantity": i.Quantity,
			}).
			Mark(ierr.ErrValidation)
	}
	if i.UnitPrice.IsNegative() {
		return ierr.NewError("invalid unit price").
			WithHint("Unit price must be non-negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsEmpty reports whether the cart has no items
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Subtotal sums the undiscounted item amounts
func (c *Cart) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range c.Items {
		subtotal = subtotal.Add(item.Quantity.Mul(item.UnitPrice))
	}
	return subtotal
}

// TotalQuantity sums the item quantities
func (c *Cart) TotalQuantity() decimal.Decimal {
	qty := decimal.Zero
	for _, item := range c.Items {
		qty = qty.Add(item.Quantity)
	}
	return qty
}

// ContainsProduct reports whether any item references the product
func (c *Cart) ContainsProduct(productID string) bool {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

// PricingLines converts the items for totals aggregation
func (c *Cart) PricingLines() []pricing.Line {
	lines := make([]pricing.Line, len(c.Items))
	for i, item := range c.Items {
		lines[i] = pricing.Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			TaxID:     item.TaxID,
		}
	}
	return lines
}
