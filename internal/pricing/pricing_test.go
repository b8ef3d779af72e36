package pricing

import (
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
)

func TestLineAmount(t *testing.T) {
	tests := []struct {
		name            string
		quantity        decimal.Decimal
		unitPrice       decimal.Decimal
		discountPercent decimal.Decimal
		want            string
		wantErr         bool
	}{
		{
			name:            "no discount",
			quantity:        decimal.NewFromInt(3),
			unitPrice:       decimal.NewFromInt(50),
			discountPercent: decimal.Zero,
			want:            "150",
		},
		{
			name:            "ten percent off two units",
			quantity:        decimal.NewFromInt(2),
			unitPrice:       decimal.NewFromInt(100),
			discountPercent: decimal.NewFromInt(10),
			want:            "180",
		},
		{
			name:            "full discount",
			quantity:        decimal.NewFromInt(5),
			unitPrice:       decimal.NewFromInt(20),
			discountPercent: decimal.NewFromInt(100),
			want:            "0",
		},
		{
			name:            "fractional unit price stays exact",
			quantity:        decimal.NewFromInt(3),
			unitPrice:       decimal.RequireFromString("0.10"),
			discountPercent: decimal.Zero,
			want:            "0.3",
		},
		{
			name:            "zero quantity rejected",
			quantity:        decimal.Zero,
			unitPrice:       decimal.NewFromInt(10),
			discountPercent: decimal.Zero,
			wantErr:         true,
		},
		{
			name:            "negative quantity rejected",
			quantity:        decimal.NewFromInt(-1),
			unitPrice:       decimal.NewFromInt(10),
			discountPercent: decimal.Zero,
			wantErr:         true,
		},
		{
			name:            "discount above 100 rejected",
			quantity:        decimal.NewFromInt(1),
			unitPrice:       decimal.NewFromInt(10),
			discountPercent: decimal.NewFromInt(101),
			wantErr:         true,
		},
		{
			name:            "negative unit price rejected",
			quantity:        decimal.NewFromInt(1),
			unitPrice:       decimal.NewFromInt(-10),
			discountPercent: decimal.Zero,
			wantErr:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LineAmount(tt.quantity, tt.unitPrice, tt.discountPercent)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ierr.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s want %s", got, tt.want)
		})
	}
}

func TestTaxAmount(t *testing.T) {
	got := TaxAmount(decimal.NewFromInt(500), decimal.NewFromInt(15))
	assert.True(t, got.Equal(decimal.NewFromInt(75)))

	got = TaxAmount(decimal.RequireFromString("99.99"), decimal.Zero)
	assert.True(t, got.IsZero())
}

func TestDocumentTotals(t *testing.T) {
	taxLookup := func(taxID string) (decimal.Decimal, error) {
		if taxID == "tax_15" {
			return decimal.NewFromInt(15), nil
		}
		return decimal.Zero, nil
	}

	lines := []Line{
		{
			ProductID: "prod_1",
			Quantity:  decimal.NewFromInt(2),
			UnitPrice: decimal.NewFromInt(100),
			TaxID:     lo.ToPtr("tax_15"),
		},
		{
			ProductID:       "prod_2",
			Quantity:        decimal.NewFromInt(3),
			UnitPrice:       decimal.NewFromInt(100),
			DiscountPercent: decimal.Zero,
			TaxID:           lo.ToPtr("tax_15"),
		},
	}

	totals, err := DocumentTotals(lines, taxLookup, nil)
	require.NoError(t, err)

	assert.True(t, totals.Subtotal.Equal(decimal.NewFromInt(500)))
	assert.True(t, totals.TaxTotal.Equal(decimal.NewFromInt(75)))
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(575)))
}

func TestDocumentTotalsWithDiscount(t *testing.T) {
	lines := []Line{
		{
			ProductID: "prod_1",
			Quantity:  decimal.NewFromInt(4),
			UnitPrice: decimal.NewFromInt(50),
		},
	}

	t.Run("percentage discount", func(t *testing.T) {
		totals, err := DocumentTotals(lines, nil, &Discount{
			Type:  types.DiscountTypePercentage,
			Value: decimal.NewFromInt(10),
		})
		require.NoError(t, err)
		assert.True(t, totals.Subtotal.Equal(decimal.NewFromInt(200)))
		assert.True(t, totals.DiscountAmount.Equal(decimal.NewFromInt(20)))
		assert.True(t, totals.Total.Equal(decimal.NewFromInt(180)))
	})

	t.Run("fixed discount capped at subtotal", func(t *testing.T) {
		totals, err := DocumentTotals(lines, nil, &Discount{
			Type:  types.DiscountTypeFixed,
			Value: decimal.NewFromInt(500),
		})
		require.NoError(t, err)
		assert.True(t, totals.DiscountAmount.Equal(decimal.NewFromInt(200)))
		assert.True(t, totals.Total.IsZero())
	})

	t.Run("totals identity holds exactly", func(t *testing.T) {
		totals, err := DocumentTotals(lines, nil, &Discount{
			Type:  types.DiscountTypePercentage,
			Value: decimal.RequireFromString("33.33"),
		})
		require.NoError(t, err)
		assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.TaxTotal).Sub(totals.DiscountAmount)))
	})
}

func TestDocumentTotalsIdempotent(t *testing.T) {
	taxLookup := func(string) (decimal.Decimal, error) {
		return decimal.RequireFromString("7.25"), nil
	}

	lines := []Line{
		{Quantity: decimal.NewFromInt(7), UnitPrice: decimal.RequireFromString("19.99"), TaxID: lo.ToPtr("tax_x"), DiscountPercent: decimal.NewFromInt(5)},
		{Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("0.01")},
	}

	first, err := DocumentTotals(lines, taxLookup, nil)
	require.NoError(t, err)
	second, err := DocumentTotals(lines, taxLookup, nil)
	require.NoError(t, err)

	assert.True(t, first.Subtotal.Equal(second.Subtotal))
	assert.True(t, first.TaxTotal.Equal(second.TaxTotal))
	assert.True(t, first.Total.Equal(second.Total))
}

func TestDocumentTotalsPropagatesLineErrors(t *testing.T) {
	lines := []Line{
		{Quantity: decimal.Zero, UnitPrice: decimal.NewFromInt(10)},
	}

	_, err := DocumentTotals(lines, nil, nil)
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}
