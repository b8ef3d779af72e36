// Package pricing holds the pure monetary calculations shared by
// subscriptions, invoices and checkout. All arithmetic is done on
// decimals so document totals reconcile exactly against payments.
package pricing

import (
	"github.com/shopspring/decimal"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

var oneHundred = decimal.NewFromInt(100)

// Line is the minimal shape of a priced document line
type Line struct {
	ProductID       string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	TaxID           *string
}

// Discount is a document-level reduction resolved from a discount code
type Discount struct {
	Type  types.DiscountType
	Value decimal.Decimal
}

// Totals is the result of aggregating a document's lines
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxTotal       decimal.Decimal `json:"tax_total"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
}

// TaxLookup resolves a tax reference to its rate percentage. Implemented
// by the catalog; nil rates are treated as untaxed lines.
type TaxLookup func(taxID string) (decimal.Decimal, error)

// LineAmount computes quantity * unitPrice * (1 - discountPercent/100),
// clamped to zero from below.
func LineAmount(quantity decimal.Decimal, unitPrice decimal.Decimal, discountPercent decimal.Decimal) (decimal.Decimal, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ierr.NewError("invalid quantity").
			WithHint("Quantity must be greater than zero").
			WithReportableDetails(map[string]any{
				"quantity": quantity,
			}).
			Mark(ierr.ErrValidation)
	}
	if unitPrice.IsNegative() {
		return decimal.Zero, ierr.NewError("invalid unit price").
			WithHint("Unit price must be non-negative").
			WithReportableDetails(map[string]any{
				"unit_price": unitPrice,
			}).
			Mark(ierr.ErrValidation)
	}
	if discountPercent.IsNegative() || discountPercent.GreaterThan(oneHundred) {
		return decimal.Zero, ierr.NewError("invalid discount percent").
			WithHint("Discount percent must be between 0 and 100").
			WithReportableDetails(map[string]any{
				"discount_percent": discountPercent,
			}).
			Mark(ierr.ErrValidation)
	}

	amount := quantity.Mul(unitPrice).Mul(oneHundred.Sub(discountPercent)).Div(oneHundred)
	if amount.IsNegative() {
		return decimal.Zero, nil
	}
	return amount, nil
}

// TaxAmount computes amount * taxRatePercent / 100
func TaxAmount(amount decimal.Decimal, taxRatePercent decimal.Decimal) decimal.Decimal {
	return amount.Mul(taxRatePercent).Div(oneHundred)
}

// DiscountAmount resolves a document-level discount against a subtotal.
// The result never exceeds the subtotal.
func DiscountAmount(subtotal decimal.Decimal, discount *Discount) decimal.Decimal {
	if discount == nil {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch discount.Type {
	case types.DiscountTypeFixed:
		amount = discount.Value
	case types.DiscountTypePercentage:
		amount = subtotal.Mul(discount.Value).Div(oneHundred)
	default:
		return decimal.Zero
	}

	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// DocumentTotals aggregates lines into subtotal, tax total and grand
// total. The discount applies at document level, after per-line
// discounts have already been folded into each line amount. The
// identity total = subtotal + taxTotal - discountAmount holds exactly.
func DocumentTotals(lines []Line, taxLookup TaxLookup, discount *Discount) (Totals, error) {
	subtotal := decimal.Zero
	taxTotal := decimal.Zero

	for _, line := range lines {
		amount, err := LineAmount(line.Quantity, line.UnitPrice, line.DiscountPercent)
		if err != nil {
			return Totals{}, err
		}
		subtotal = subtotal.Add(amount)

		if line.TaxID == nil || taxLookup == nil {
			continue
		}
		rate, err := taxLookup(*line.TaxID)
		if err != nil {
			return Totals{}, err
		}
		taxTotal = taxTotal.Add(TaxAmount(amount, rate))
	}

	discountAmount := DiscountAmount(subtotal, discount)

	return Totals{
		Subtotal:       subtotal,
		TaxTotal:       taxTotal,
		DiscountAmount: discountAmount,
		Total:          subtotal.Add(taxTotal).Sub(discountAmount),
	}, nil
}
