package service

import (
	"sync"
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

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  SubscriptionService
	testData struct {
		plan    *catalog.Plan
		product *catalog.Product
		addon   *catalog.Product
		tax     *catalog.Tax
	}
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewSubscriptionService(ServiceParams{
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
	})
	s.setupTestData()
}

func (s *SubscriptionServiceSuite) setupTestData() {
	catalogStore := s.GetStores().CatalogRepo.(*testutil.InMemoryCatalogStore)

	s.testData.tax = &catalog.Tax{
		ID:          "tax_vat",
		Name:        "VAT 15%",
		RatePercent: decimal.NewFromInt(15),
		BaseModel:   types.GetDefaultBaseModel(s.GetContext()),
	}
	catalogStore.AddTax(s.testData.tax)

	s.testData.product = &catalog.Product{
		ID:           "prod_hosting",
		Name:         "Web Hosting",
		ListPrice:    decimal.NewFromInt(100),
		DefaultTaxID: lo.ToPtr("tax_vat"),
		BaseModel:    types.GetDefaultBaseModel(s.GetContext()),
	}
	catalogStore.AddProduct(s.testData.product)

	s.testData.addon = &catalog.Product{
		ID:        "prod_backup",
		Name:      "Backup Service",
		ListPrice: decimal.NewFromInt(50),
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	catalogStore.AddProduct(s.testData.addon)

	s.testData.plan = &catalog.Plan{
		ID:            "plan_monthly",
		Name:          "Monthly Plan",
		BillingPeriod: types.BillingPeriodMonthly,
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}
	catalogStore.AddPlan(s.testData.plan)
}

func (s *SubscriptionServiceSuite) createDraft() *dto.SubscriptionResponse {
	resp, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		CustomerID: "cust_1",
		PlanID:     s.testData.plan.ID,
		StartDate:  s.GetNow(),
		Lines: []dto.CreateSubscriptionLineRequest{
			{ProductID: s.testData.product.ID, Quantity: decimal.NewFromInt(2)},
		},
	})
	s.NoError(err)
	s.Require().NotNil(resp)
	return resp
}

func (s *SubscriptionServiceSuite) advanceTo(id string, actions ...types.SubscriptionAction) *dto.SubscriptionResponse {
	var resp *dto.SubscriptionResponse
	var err error
	for _, action := range actions {
		resp, err = s.service.ExecuteAction(s.GetContext(), id, action)
		s.Require().NoError(err)
	}
	return resp
}

func (s *SubscriptionServiceSuite) TestCreateSubscription() {
	resp := s.createDraft()

	s.Equal(types.SubscriptionStatusDraft, resp.SubscriptionStatus)
	s.Nil(resp.SubscriptionNumber)
	s.Len(resp.Lines, 1)

	// Price and tax resolved from the catalog
	line := resp.Lines[0]
	s.True(line.UnitPrice.Equal(decimal.NewFromInt(100)))
	s.Require().NotNil(line.TaxID)
	s.Equal("tax_vat", *line.TaxID)

	// 2 x 100 = 200 subtotal, 15% tax
	s.True(resp.Totals.Subtotal.Equal(decimal.NewFromInt(200)))
	s.True(resp.Totals.TaxTotal.Equal(decimal.NewFromInt(30)))
	s.True(resp.Totals.Total.Equal(decimal.NewFromInt(230)))
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionUnknownPlan() {
	_, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		CustomerID: "cust_1",
		PlanID:     "plan_missing",
	})
	s.Error(err)
}

func (s *SubscriptionServiceSuite) TestExecuteActionAssignsNumberOnQuotation() {
	draft := s.createDraft()

	resp := s.advanceTo(draft.ID, types.SubscriptionActionToQuotation)
	s.Equal(types.SubscriptionStatusQuotation, resp.SubscriptionStatus)
	s.Require().NotNil(resp.SubscriptionNumber)
	s.Equal("SUB-000001", *resp.SubscriptionNumber)

	// The number sticks across further transitions
	resp = s.advanceTo(draft.ID, types.SubscriptionActionConfirm)
	got, err := s.service.GetSubscription(s.GetContext(), draft.ID)
	s.NoError(err)
	s.Require().NotNil(got.SubscriptionNumber)
	s.Equal("SUB-000001", *got.SubscriptionNumber)
	s.Equal(types.SubscriptionStatusConfirmed, resp.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestActivateSetsNextInvoiceDate() {
	draft := s.createDraft()
	s.advanceTo(draft.ID,
		types.SubscriptionActionToQuotation,
		types.SubscriptionActionConfirm,
		types.SubscriptionActionActivate,
	)

	got, err := s.service.GetSubscription(s.GetContext(), draft.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, got.SubscriptionStatus)
	s.Require().NotNil(got.NextInvoiceDate)
	s.WithinDuration(got.StartDate.AddDate(0, 1, 0), *got.NextInvoiceDate, time.Second)
}

func (s *SubscriptionServiceSuite) TestIllegalTransitionRejected() {
	draft := s.createDraft()

	// A draft cannot be confirmed or activated directly
	_, err := s.service.ExecuteAction(s.GetContext(), draft.ID, types.SubscriptionActionConfirm)
	s.Error(err)
	_, err = s.service.ExecuteAction(s.GetContext(), draft.ID, types.SubscriptionActionActivate)
	s.Error(err)

	got, gerr := s.service.GetSubscription(s.GetContext(), draft.ID)
	s.NoError(gerr)
	s.Equal(types.SubscriptionStatusDraft, got.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestConfirmRequiresLines() {
	resp, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		CustomerID: "cust_1",
		PlanID:     s.testData.plan.ID,
	})
	s.NoError(err)

	s.advanceTo(resp.ID, types.SubscriptionActionToQuotation)
	_, err = s.service.ExecuteAction(s.GetContext(), resp.ID, types.SubscriptionActionConfirm)
	s.Error(err)
}

func (s *SubscriptionServiceSuite) TestLinesLockAfterConfirm() {
	draft := s.createDraft()
	lineID := draft.Lines[0].ID

	s.advanceTo(draft.ID,
		types.SubscriptionActionToQuotation,
		types.SubscriptionActionConfirm,
	)

	_, err := s.service.AddLine(s.GetContext(), draft.ID, &dto.CreateSubscriptionLineRequest{
		ProductID: s.testData.addon.ID,
		Quantity:  decimal.NewFromInt(1),
	})
	s.Error(err)

	_, err = s.service.UpdateLine(s.GetContext(), draft.ID, lineID, &dto.UpdateSubscriptionLineRequest{
		Quantity: lo.ToPtr(decimal.NewFromInt(5)),
	})
	s.Error(err)

	_, err = s.service.RemoveLine(s.GetContext(), draft.ID, lineID)
	s.Error(err)
}

func (s *SubscriptionServiceSuite) TestLineEditsWhileMutable() {
	draft := s.createDraft()

	resp, err := s.service.AddLine(s.GetContext(), draft.ID, &dto.CreateSubscriptionLineRequest{
		ProductID: s.testData.addon.ID,
		Quantity:  decimal.NewFromInt(3),
	})
	s.NoError(err)
	s.Len(resp.Lines, 2)

	// Added line priced from the catalog
	for _, l := range resp.Lines {
		if l.ProductID == s.testData.addon.ID {
			s.True(l.UnitPrice.Equal(decimal.NewFromInt(50)))
		}
	}

	resp, err = s.service.UpdateLine(s.GetContext(), draft.ID, draft.Lines[0].ID, &dto.UpdateSubscriptionLineRequest{
		Quantity: lo.ToPtr(decimal.NewFromInt(10)),
	})
	s.NoError(err)

	resp, err = s.service.RemoveLine(s.GetContext(), draft.ID, draft.Lines[0].ID)
	s.NoError(err)
	s.Len(resp.Lines, 1)
}

func (s *SubscriptionServiceSuite) TestDeleteOnlyDrafts() {
	draft := s.createDraft()
	s.NoError(s.service.DeleteSubscription(s.GetContext(), draft.ID))

	other := s.createDraft()
	s.advanceTo(other.ID,
		types.SubscriptionActionToQuotation,
		types.SubscriptionActionConfirm,
	)
	err := s.service.DeleteSubscription(s.GetContext(), other.ID)
	s.Error(err)
}

func (s *SubscriptionServiceSuite) TestConcurrentConfirmSingleWinner() {
	draft := s.createDraft()
	s.advanceTo(draft.ID, types.SubscriptionActionToQuotation)

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.ExecuteAction(s.GetContext(), draft.ID, types.SubscriptionActionConfirm)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	s.Equal(1, succeeded)

	got, err := s.service.GetSubscription(s.GetContext(), draft.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusConfirmed, got.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestRenewSubscription() {
	draft := s.createDraft()
	expiration := s.GetNow().AddDate(1, 0, 0)
	_, err := s.service.UpdateSubscription(s.GetContext(), draft.ID, &dto.UpdateSubscriptionRequest{
		ExpirationDate: &expiration,
	})
	s.NoError(err)

	s.advanceTo(draft.ID,
		types.SubscriptionActionToQuotation,
		types.SubscriptionActionConfirm,
		types.SubscriptionActionActivate,
	)

	renewal, err := s.service.RenewSubscription(s.GetContext(), draft.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusDraft, renewal.SubscriptionStatus)
	s.Nil(renewal.SubscriptionNumber)
	s.Require().NotNil(renewal.OriginSubscriptionID)
	s.Equal(draft.ID, *renewal.OriginSubscriptionID)

	// The renewal term starts the day after the original ends
	s.WithinDuration(expiration.AddDate(0, 0, 1), renewal.StartDate, time.Second)
	s.Len(renewal.Lines, 1)
	s.True(renewal.Lines[0].UnitPrice.Equal(decimal.NewFromInt(100)))

	// The origin is untouched
	origin, err := s.service.GetSubscription(s.GetContext(), draft.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, origin.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestRenewWithoutExpirationStartsToday() {
	draft := s.createDraft()
	s.advanceTo(draft.ID,
		types.SubscriptionActionToQuotation,
		types.SubscriptionActionConfirm,
		types.SubscriptionActionActivate,
	)

	renewal, err := s.service.RenewSubscription(s.GetContext(), draft.ID)
	s.NoError(err)
	s.WithinDuration(time.Now().UTC(), renewal.StartDate, time.Minute)
	s.Nil(renewal.ExpirationDate)
}

func (s *SubscriptionServiceSuite) TestRenewRequiresRunningSubscription() {
	draft := s.createDraft()
	_, err := s.service.RenewSubscription(s.GetContext(), draft.ID)
	s.Error(err)
}

func (s *SubscriptionServiceSuite) TestRenewPausedSubscriptionRejected() {
	draft := s.createDraft()
	s.advanceTo(draft.ID,
		types.SubscriptionActionToQuotation,
		types.SubscriptionActionConfirm,
		types.SubscriptionActionActivate,
		types.SubscriptionActionPause,
	)

	_, err := s.service.RenewSubscription(s.GetContext(), draft.ID)
	s.Error(err)
}

func (s *SubscriptionServiceSuite) TestUpsellSubscription() {
	draft := s.createDraft()
	s.advanceTo(draft.ID,
		types.SubscriptionActionToQuotation,
		types.SubscriptionActionConfirm,
		types.SubscriptionActionActivate,
	)

	upsell, err := s.service.UpsellSubscription(s.GetContext(), draft.ID, &dto.UpsellSubscriptionRequest{
		Lines: []dto.CreateSubscriptionLineRequest{
			{ProductID: s.testData.addon.ID, Quantity: decimal.NewFromInt(1)},
		},
	})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusDraft, upsell.SubscriptionStatus)
	s.Require().NotNil(upsell.OriginSubscriptionID)
	s.Equal(draft.ID, *upsell.OriginSubscriptionID)

	// Original lines carried over plus the addition
	s.Len(upsell.Lines, 2)
}

func (s *SubscriptionServiceSuite) TestUpsellRequiresActiveSubscription() {
	draft := s.createDraft()
	_, err := s.service.UpsellSubscription(s.GetContext(), draft.ID, &dto.UpsellSubscriptionRequest{
		Lines: []dto.CreateSubscriptionLineRequest{
			{ProductID: s.testData.addon.ID, Quantity: decimal.NewFromInt(1)},
		},
	})
	s.Error(err)
}

func (s *SubscriptionServiceSuite) TestUpdateLockedSubscription() {
	draft := s.createDraft()
	s.advanceTo(draft.ID,
		types.SubscriptionActionToQuotation,
		types.SubscriptionActionConfirm,
	)

	notes := "late edit"
	_, err := s.service.UpdateSubscription(s.GetContext(), draft.ID, &dto.UpdateSubscriptionRequest{
		Notes: &notes,
	})
	s.Error(err)
}
