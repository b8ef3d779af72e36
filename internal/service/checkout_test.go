package service

import (
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/renewly/renewly/internal/api/dto"
	"github.com/renewly/renewly/internal/domain/cart"
	"github.com/renewly/renewly/internal/domain/catalog"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/testutil"
	"github.com/renewly/renewly/internal/types"
)

type CheckoutServiceSuite struct {
	testutil.BaseServiceTestSuite
	service         CheckoutService
	discountService DiscountService
}

func TestCheckoutService(t *testing.T) {
	suite.Run(t, new(CheckoutServiceSuite))
}

func (s *CheckoutServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := ServiceParams{
		Logger:               s.GetLogger(),
		Config:               s.GetConfig(),
		DB:                   s.GetDB(),
		IdempotencyGenerator: s.GetIdempotencyGenerator(),
		Dispatcher:           s.GetDispatcher(),
		SubRepo:              s.GetStores().SubscriptionRepo,
		InvoiceRepo:          s.GetStores().InvoiceRepo,
		PaymentRepo:          s.GetStores().PaymentRepo,
		DiscountRepo:         s.GetStores().DiscountRepo,
		CartRepo:             s.GetStores().CartRepo,
		CatalogRepo:          s.GetStores().CatalogRepo,
	}
	s.service = NewCheckoutService(params)
	s.discountService = NewDiscountService(params)
	s.setupTestData()
}

func (s *CheckoutServiceSuite) setupTestData() {
	catalogStore := s.GetStores().CatalogRepo.(*testutil.InMemoryCatalogStore)

	catalogStore.AddTax(&catalog.Tax{
		ID:          "tax_vat",
		Name:        "VAT 15%",
		RatePercent: decimal.NewFromInt(15),
		BaseModel:   types.GetDefaultBaseModel(s.GetContext()),
	})
	catalogStore.AddProduct(&catalog.Product{
		ID:           "prod_hosting",
		Name:         "Web Hosting",
		ListPrice:    decimal.NewFromInt(100),
		DefaultTaxID: lo.ToPtr("tax_vat"),
		BaseModel:    types.GetDefaultBaseModel(s.GetContext()),
	})
	catalogStore.AddVariant(&catalog.Variant{
		ID:         "var_pro",
		ProductID:  "prod_hosting",
		Name:       "Pro",
		PriceDelta: decimal.NewFromInt(40),
		BaseModel:  types.GetDefaultBaseModel(s.GetContext()),
	})
	catalogStore.AddPlan(&catalog.Plan{
		ID:            "plan_monthly",
		Name:          "Monthly Plan",
		BillingPeriod: types.BillingPeriodMonthly,
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	})
}

func (s *CheckoutServiceSuite) addItem(req *dto.AddCartItemRequest) *dto.CartResponse {
	resp, err := s.service.AddItem(s.GetContext(), req)
	s.Require().NoError(err)
	return resp
}

func (s *CheckoutServiceSuite) TestAddItemResolvesListPrice() {
	resp := s.addItem(&dto.AddCartItemRequest{
		CustomerID: "cust_1",
		ProductID:  "prod_hosting",
		Quantity:   decimal.NewFromInt(2),
	})

	s.Require().Len(resp.Items, 1)
	item := resp.Items[0]
	s.True(item.UnitPrice.Equal(decimal.NewFromInt(100)))
	s.Require().NotNil(item.TaxID)
	s.Equal("tax_vat", *item.TaxID)

	// 2 x 100 plus 15% tax
	s.True(resp.Totals.Subtotal.Equal(decimal.NewFromInt(200)))
	s.True(resp.Totals.Total.Equal(decimal.NewFromInt(230)))
}

func (s *CheckoutServiceSuite) TestAddItemVariantPricing() {
	resp := s.addItem(&dto.AddCartItemRequest{
		CustomerID: "cust_1",
		ProductID:  "prod_hosting",
		VariantID:  lo.ToPtr("var_pro"),
		Quantity:   decimal.NewFromInt(1),
	})

	// List price plus the variant delta
	s.True(resp.Items[0].UnitPrice.Equal(decimal.NewFromInt(140)))
}

func (s *CheckoutServiceSuite) TestAddItemExplicitPriceWins() {
	resp := s.addItem(&dto.AddCartItemRequest{
		CustomerID: "cust_1",
		ProductID:  "prod_hosting",
		Quantity:   decimal.NewFromInt(1),
		UnitPrice:  lo.ToPtr(decimal.NewFromInt(80)),
	})
	s.True(resp.Items[0].UnitPrice.Equal(decimal.NewFromInt(80)))
}

func (s *CheckoutServiceSuite) TestAddItemReusesOpenCart() {
	first := s.addItem(&dto.AddCartItemRequest{
		CustomerID: "cust_1",
		ProductID:  "prod_hosting",
		Quantity:   decimal.NewFromInt(1),
	})
	second := s.addItem(&dto.AddCartItemRequest{
		CustomerID: "cust_1",
		ProductID:  "prod_hosting",
		VariantID:  lo.ToPtr("var_pro"),
		Quantity:   decimal.NewFromInt(1),
	})

	s.Equal(first.ID, second.ID)
	s.Len(second.Items, 2)
}

func (s *CheckoutServiceSuite) TestUpdateAndRemoveItem() {
	resp := s.addItem(&dto.AddCartItemRequest{
		CustomerID: "cust_1",
		ProductID:  "prod_hosting",
		Quantity:   decimal.NewFromInt(1),
	})
	itemID := resp.Items[0].ID

	updated, err := s.service.UpdateItem(s.GetContext(), "cust_1", itemID, &dto.UpdateCartItemRequest{
		Quantity: decimal.NewFromInt(4),
	})
	s.NoError(err)
	s.True(updated.Items[0].Quantity.Equal(decimal.NewFromInt(4)))

	removed, err := s.service.RemoveItem(s.GetContext(), "cust_1", itemID)
	s.NoError(err)
	s.Empty(removed.Items)
}

func (s *CheckoutServiceSuite) TestCheckoutEmptyCart() {
	_, err := s.service.Checkout(s.GetContext(), &dto.CheckoutRequest{
		CustomerID: "cust_nobody",
		PlanID:     "plan_monthly",
	})
	s.Error(err)

	// A cart emptied after filling fails the same way
	resp := s.addItem(&dto.AddCartItemRequest{
		CustomerID: "cust_1",
		ProductID:  "prod_hosting",
		Quantity:   decimal.NewFromInt(1),
	})
	_, err = s.service.RemoveItem(s.GetContext(), "cust_1", resp.Items[0].ID)
	s.Require().NoError(err)

	_, err = s.service.Checkout(s.GetContext(), &dto.CheckoutRequest{
		CustomerID: "cust_1",
		PlanID:     "plan_monthly",
	})
	s.Error(err)
}

func (s *CheckoutServiceSuite) TestCheckout() {
	s.addItem(&dto.AddCartItemRequest{
		CustomerID: "cust_1",
		ProductID:  "prod_hosting",
		Quantity:   decimal.NewFromInt(2),
	})

	resp, err := s.service.Checkout(s.GetContext(), &dto.CheckoutRequest{
		CustomerID: "cust_1",
		PlanID:     "plan_monthly",
	})
	s.NoError(err)
	s.Require().NotNil(resp)

	// The subscription came out active with a number and a billing
	// schedule
	s.Equal(types.SubscriptionStatusActive, resp.Subscription.SubscriptionStatus)
	s.NotNil(resp.Subscription.SubscriptionNumber)
	s.NotNil(resp.Subscription.NextInvoiceDate)
	s.Len(resp.Subscription.Lines, 1)

	// The first invoice snapshots the cart pricing
	s.Equal(types.InvoiceBillingReasonCheckout, resp.Invoice.BillingReason)
	s.True(resp.Invoice.Subtotal.Equal(decimal.NewFromInt(200)))
	s.True(resp.Invoice.TaxTotal.Equal(decimal.NewFromInt(30)))
	s.True(resp.Invoice.Total.Equal(decimal.NewFromInt(230)))

	// The cart was drained
	_, err = s.service.GetCart(s.GetContext(), "cust_1")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *CheckoutServiceSuite) TestCheckoutWithDiscount() {
	created, err := s.discountService.CreateDiscount(s.GetContext(), &dto.CreateDiscountRequest{
		Code:         "SAVE10",
		DiscountType: types.DiscountTypePercentage,
		Value:        decimal.NewFromInt(10),
		UsageLimit:   5,
	})
	s.Require().NoError(err)

	s.addItem(&dto.AddCartItemRequest{
		CustomerID: "cust_1",
		ProductID:  "prod_hosting",
		Quantity:   decimal.NewFromInt(2),
	})

	resp, err := s.service.Checkout(s.GetContext(), &dto.CheckoutRequest{
		CustomerID:   "cust_1",
		PlanID:       "plan_monthly",
		DiscountCode: lo.ToPtr("SAVE10"),
	})
	s.NoError(err)

	// 200 subtotal, 30 tax, 20 off
	s.True(resp.Invoice.DiscountAmount.Equal(decimal.NewFromInt(20)))
	s.True(resp.Invoice.Total.Equal(decimal.NewFromInt(210)))

	// The redemption was consumed
	got, err := s.discountService.GetDiscount(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(1, got.TimesUsed)
}

func (s *CheckoutServiceSuite) TestCheckoutInvalidDiscountFailsEarly() {
	s.addItem(&dto.AddCartItemRequest{
		CustomerID: "cust_1",
		ProductID:  "prod_hosting",
		Quantity:   decimal.NewFromInt(1),
	})

	_, err := s.service.Checkout(s.GetContext(), &dto.CheckoutRequest{
		CustomerID:   "cust_1",
		PlanID:       "plan_monthly",
		DiscountCode: lo.ToPtr("NOPE"),
	})
	s.Error(err)

	// Nothing was created and the cart is still open
	subs, lerr := s.GetStores().SubscriptionRepo.List(s.GetContext(), &types.SubscriptionFilter{
		QueryFilter: types.NoLimitQueryFilter,
		CustomerID:  "cust_1",
	})
	s.NoError(lerr)
	s.Empty(subs)

	c, gerr := s.service.GetCart(s.GetContext(), "cust_1")
	s.NoError(gerr)
	s.Len(c.Items, 1)
}

func (s *CheckoutServiceSuite) TestCheckoutCompensatesOnFailure() {
	s.addItem(&dto.AddCartItemRequest{
		CustomerID: "cust_1",
		ProductID:  "prod_hosting",
		Quantity:   decimal.NewFromInt(1),
	})

	// Slip an item with a dangling tax reference past the service so
	// invoice generation fails mid-checkout
	c, err := s.GetStores().CartRepo.GetOpenByCustomer(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	s.Require().NoError(s.GetStores().CartRepo.AddItem(s.GetContext(), &cart.Item{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CART_ITEM),
		CartID:    c.ID,
		ProductID: "prod_hosting",
		Quantity:  decimal.NewFromInt(1),
		UnitPrice: decimal.NewFromInt(100),
		TaxID:     lo.ToPtr("tax_missing"),
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}))

	_, err = s.service.Checkout(s.GetContext(), &dto.CheckoutRequest{
		CustomerID: "cust_1",
		PlanID:     "plan_monthly",
	})
	s.Error(err)

	// The committed subscription was taken back out
	subs, lerr := s.GetStores().SubscriptionRepo.List(s.GetContext(), &types.SubscriptionFilter{
		QueryFilter: types.NoLimitQueryFilter,
		CustomerID:  "cust_1",
	})
	s.NoError(lerr)
	s.Empty(subs)

	// The cart survived for another attempt
	open, gerr := s.GetStores().CartRepo.GetOpenByCustomer(s.GetContext(), "cust_1")
	s.NoError(gerr)
	s.Len(open.Items, 2)
}

func (s *CheckoutServiceSuite) TestCheckoutUnknownPlan() {
	s.addItem(&dto.AddCartItemRequest{
		CustomerID: "cust_1",
		ProductID:  "prod_hosting",
		Quantity:   decimal.NewFromInt(1),
	})

	_, err := s.service.Checkout(s.GetContext(), &dto.CheckoutRequest{
		CustomerID: "cust_1",
		PlanID:     "plan_missing",
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}
