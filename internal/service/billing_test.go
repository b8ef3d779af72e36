package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/renewly/renewly/internal/api/dto"
	"github.com/renewly/renewly/internal/domain/catalog"
	"github.com/renewly/renewly/internal/testutil"
	"github.com/renewly/renewly/internal/types"
)

type BillingServiceSuite struct {
	testutil.BaseServiceTestSuite
	service     BillingService
	subsService SubscriptionService
}

func TestBillingService(t *testing.T) {
	suite.Run(t, new(BillingServiceSuite))
}

func (s *BillingServiceSuite) SetupTest() {
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
	s.service = NewBillingService(params)
	s.subsService = NewSubscriptionService(params)
	s.setupTestData()
}

func (s *BillingServiceSuite) setupTestData() {
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
	catalogStore.AddPlan(&catalog.Plan{
		ID:            "plan_monthly",
		Name:          "Monthly Plan",
		BillingPeriod: types.BillingPeriodMonthly,
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	})
}

// createActiveSubscription activates a subscription whose billing
// schedule starts one plan period after start.
func (s *BillingServiceSuite) createActiveSubscription(customerID string, start time.Time, expiration *time.Time) string {
	resp, err := s.subsService.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		CustomerID:     customerID,
		PlanID:         "plan_monthly",
		StartDate:      start,
		ExpirationDate: expiration,
		Lines: []dto.CreateSubscriptionLineRequest{
			{ProductID: "prod_hosting", Quantity: decimal.NewFromInt(1)},
		},
	})
	s.Require().NoError(err)

	for _, action := range []types.SubscriptionAction{
		types.SubscriptionActionToQuotation,
		types.SubscriptionActionConfirm,
		types.SubscriptionActionActivate,
	} {
		_, err = s.subsService.ExecuteAction(s.GetContext(), resp.ID, action)
		s.Require().NoError(err)
	}
	return resp.ID
}

func (s *BillingServiceSuite) subscriptionInvoices(subscriptionID string) []*dto.InvoiceResponse {
	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), &types.InvoiceFilter{
		QueryFilter:    types.NoLimitQueryFilter,
		SubscriptionID: subscriptionID,
	})
	s.Require().NoError(err)

	out := make([]*dto.InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		out[i] = &dto.InvoiceResponse{Invoice: inv}
	}
	return out
}

func (s *BillingServiceSuite) TestSweepGeneratesCycleInvoice() {
	start := s.GetNow().AddDate(0, -1, -10)
	subID := s.createActiveSubscription("cust_1", start, nil)

	generated, err := s.service.ProcessDueSubscriptions(s.GetContext(), s.GetNow())
	s.NoError(err)
	s.Equal(1, generated)

	invoices := s.subscriptionInvoices(subID)
	s.Require().Len(invoices, 1)
	s.Equal(types.InvoiceBillingReasonSubscriptionCycle, invoices[0].BillingReason)
	s.True(invoices[0].Total.Equal(decimal.NewFromInt(115)))

	// The schedule advanced one period past the billed one
	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), subID)
	s.NoError(err)
	s.Require().NotNil(sub.NextInvoiceDate)
	s.WithinDuration(start.AddDate(0, 2, 0), *sub.NextInvoiceDate, time.Second)
}

func (s *BillingServiceSuite) TestSweepRerunDoesNotDoubleBill() {
	start := s.GetNow().AddDate(0, -1, -10)
	subID := s.createActiveSubscription("cust_1", start, nil)

	generated, err := s.service.ProcessDueSubscriptions(s.GetContext(), s.GetNow())
	s.NoError(err)
	s.Equal(1, generated)

	generated, err = s.service.ProcessDueSubscriptions(s.GetContext(), s.GetNow())
	s.NoError(err)
	s.Equal(0, generated)

	s.Len(s.subscriptionInvoices(subID), 1)
}

func (s *BillingServiceSuite) TestSweepSkipsSubscriptionsNotYetDue() {
	subID := s.createActiveSubscription("cust_1", s.GetNow(), nil)

	generated, err := s.service.ProcessDueSubscriptions(s.GetContext(), s.GetNow())
	s.NoError(err)
	s.Equal(0, generated)
	s.Empty(s.subscriptionInvoices(subID))
}

func (s *BillingServiceSuite) TestSweepStopsBillingAtExpiration() {
	start := s.GetNow().AddDate(0, 0, -40)
	expiration := s.GetNow().AddDate(0, 0, -15)
	subID := s.createActiveSubscription("cust_1", start, &expiration)

	generated, err := s.service.ProcessDueSubscriptions(s.GetContext(), s.GetNow())
	s.NoError(err)
	s.Equal(0, generated)

	// No invoice past the expiration and the schedule is switched off
	s.Empty(s.subscriptionInvoices(subID))
	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), subID)
	s.NoError(err)
	s.Nil(sub.NextInvoiceDate)

	// A later sweep finds nothing to do
	generated, err = s.service.ProcessDueSubscriptions(s.GetContext(), s.GetNow())
	s.NoError(err)
	s.Equal(0, generated)
}

func (s *BillingServiceSuite) TestSweepContinuesPastFailures() {
	start := s.GetNow().AddDate(0, -1, -10)
	brokenID := s.createActiveSubscription("cust_1", start, nil)
	healthyID := s.createActiveSubscription("cust_2", start, nil)

	// Point the broken subscription's line at a tax that no longer
	// exists so its invoice generation fails
	broken, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), brokenID)
	s.Require().NoError(err)
	s.Require().Len(broken.Lines, 1)
	line := broken.Lines[0]
	line.TaxID = lo.ToPtr("tax_missing")
	s.Require().NoError(s.GetStores().SubscriptionRepo.UpdateLine(s.GetContext(), line))

	generated, err := s.service.ProcessDueSubscriptions(s.GetContext(), s.GetNow())
	s.NoError(err)
	s.Equal(1, generated)

	s.Empty(s.subscriptionInvoices(brokenID))
	s.Len(s.subscriptionInvoices(healthyID), 1)
}
