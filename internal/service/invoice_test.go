package service

import (
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/renewly/renewly/internal/api/dto"
	"github.com/renewly/renewly/internal/domain/catalog"
	"github.com/renewly/renewly/internal/domain/subscription"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/testutil"
	"github.com/renewly/renewly/internal/types"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service     InvoiceService
	subsService SubscriptionService
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
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
	s.service = NewInvoiceService(params)
	s.subsService = NewSubscriptionService(params)
	s.setupTestData()
}

func (s *InvoiceServiceSuite) setupTestData() {
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
		ListPrice:    decimal.NewFromInt(500),
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

// createConfirmedSubscription seeds a confirmed subscription with one
// hosting line: 500 subtotal, 75 tax, 575 total.
func (s *InvoiceServiceSuite) createConfirmedSubscription() *subscription.Subscription {
	resp, err := s.subsService.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		CustomerID: "cust_1",
		PlanID:     "plan_monthly",
		StartDate:  s.GetNow(),
		Lines: []dto.CreateSubscriptionLineRequest{
			{ProductID: "prod_hosting", Quantity: decimal.NewFromInt(1)},
		},
	})
	s.Require().NoError(err)

	for _, action := range []types.SubscriptionAction{
		types.SubscriptionActionToQuotation,
		types.SubscriptionActionConfirm,
	} {
		_, err = s.subsService.ExecuteAction(s.GetContext(), resp.ID, action)
		s.Require().NoError(err)
	}

	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), resp.ID)
	s.Require().NoError(err)
	return sub
}

func (s *InvoiceServiceSuite) confirmInvoice(id string) *dto.InvoiceResponse {
	resp, err := s.service.ConfirmInvoice(s.GetContext(), id)
	s.Require().NoError(err)
	return resp
}

func (s *InvoiceServiceSuite) TestGenerateFromSubscription() {
	sub := s.createConfirmedSubscription()

	resp, err := s.service.GenerateFromSubscription(s.GetContext(), &dto.GenerateInvoiceRequest{
		SubscriptionID: sub.ID,
	})
	s.NoError(err)
	s.Require().NotNil(resp)

	s.Equal(types.InvoiceStatusDraft, resp.InvoiceStatus)
	s.Equal(types.InvoiceBillingReasonManual, resp.BillingReason)
	s.Nil(resp.InvoiceNumber)
	s.Require().NotNil(resp.SubscriptionID)
	s.Equal(sub.ID, *resp.SubscriptionID)

	s.True(resp.Subtotal.Equal(decimal.NewFromInt(500)))
	s.True(resp.TaxTotal.Equal(decimal.NewFromInt(75)))
	s.True(resp.Total.Equal(decimal.NewFromInt(575)))

	// Line snapshot carries the product name and the frozen amount
	s.Require().Len(resp.Lines, 1)
	s.Equal("Web Hosting", resp.Lines[0].DisplayName)
	s.True(resp.Lines[0].Amount.Equal(decimal.NewFromInt(500)))
}

func (s *InvoiceServiceSuite) TestGenerateRequiresBillableSubscription() {
	resp, err := s.subsService.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		CustomerID: "cust_1",
		PlanID:     "plan_monthly",
		Lines: []dto.CreateSubscriptionLineRequest{
			{ProductID: "prod_hosting", Quantity: decimal.NewFromInt(1)},
		},
	})
	s.Require().NoError(err)

	_, err = s.service.GenerateFromSubscription(s.GetContext(), &dto.GenerateInvoiceRequest{
		SubscriptionID: resp.ID,
	})
	s.Error(err)
}

func (s *InvoiceServiceSuite) TestGenerateIsIdempotentPerKey() {
	sub := s.createConfirmedSubscription()
	key := "inv-key-1"

	first, err := s.service.GenerateForSubscription(s.GetContext(), sub, GenerateParams{
		Reason:         types.InvoiceBillingReasonSubscriptionCycle,
		IdempotencyKey: &key,
	})
	s.NoError(err)

	second, err := s.service.GenerateForSubscription(s.GetContext(), sub, GenerateParams{
		Reason:         types.InvoiceBillingReasonSubscriptionCycle,
		IdempotencyKey: &key,
	})
	s.NoError(err)
	s.Equal(first.ID, second.ID)

	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), &types.InvoiceFilter{
		QueryFilter:    types.NoLimitQueryFilter,
		SubscriptionID: sub.ID,
	})
	s.NoError(err)
	s.Len(invoices, 1)
}

func (s *InvoiceServiceSuite) TestConfirmAssignsNumber() {
	sub := s.createConfirmedSubscription()
	draft, err := s.service.GenerateFromSubscription(s.GetContext(), &dto.GenerateInvoiceRequest{
		SubscriptionID: sub.ID,
	})
	s.Require().NoError(err)

	resp := s.confirmInvoice(draft.ID)
	s.Equal(types.InvoiceStatusConfirmed, resp.InvoiceStatus)
	s.Require().NotNil(resp.InvoiceNumber)
	s.Equal("INV-000001", *resp.InvoiceNumber)
	s.True(resp.Total.Equal(decimal.NewFromInt(575)))

	// Confirming twice is an illegal transition
	_, err = s.service.ConfirmInvoice(s.GetContext(), draft.ID)
	s.Error(err)
	s.True(ierr.IsIllegalTransition(err))
}

func (s *InvoiceServiceSuite) TestPayInvoice() {
	sub := s.createConfirmedSubscription()
	draft, err := s.service.GenerateFromSubscription(s.GetContext(), &dto.GenerateInvoiceRequest{
		SubscriptionID: sub.ID,
	})
	s.Require().NoError(err)
	s.confirmInvoice(draft.ID)

	// Amount defaults to the invoice total
	pay, err := s.service.PayInvoice(s.GetContext(), draft.ID, &dto.RecordPaymentRequest{
		PaymentMethod: types.PaymentMethodBankTransfer,
	})
	s.NoError(err)
	s.True(pay.Amount.Equal(decimal.NewFromInt(575)))

	inv, err := s.service.GetInvoice(s.GetContext(), draft.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)
	s.True(inv.AmountPaid.Equal(decimal.NewFromInt(575)))
	s.NotNil(inv.PaidAt)
}

func (s *InvoiceServiceSuite) TestPayInvoiceAmountMismatch() {
	sub := s.createConfirmedSubscription()
	draft, err := s.service.GenerateFromSubscription(s.GetContext(), &dto.GenerateInvoiceRequest{
		SubscriptionID: sub.ID,
	})
	s.Require().NoError(err)
	s.confirmInvoice(draft.ID)

	_, err = s.service.PayInvoice(s.GetContext(), draft.ID, &dto.RecordPaymentRequest{
		Amount:        lo.ToPtr(decimal.NewFromInt(100)),
		PaymentMethod: types.PaymentMethodCash,
	})
	s.Error(err)

	inv, gerr := s.service.GetInvoice(s.GetContext(), draft.ID)
	s.NoError(gerr)
	s.Equal(types.InvoiceStatusConfirmed, inv.InvoiceStatus)
}

func (s *InvoiceServiceSuite) TestPayInvoiceTwice() {
	sub := s.createConfirmedSubscription()
	draft, err := s.service.GenerateFromSubscription(s.GetContext(), &dto.GenerateInvoiceRequest{
		SubscriptionID: sub.ID,
	})
	s.Require().NoError(err)
	s.confirmInvoice(draft.ID)

	_, err = s.service.PayInvoice(s.GetContext(), draft.ID, &dto.RecordPaymentRequest{
		PaymentMethod: types.PaymentMethodCreditCard,
	})
	s.NoError(err)

	_, err = s.service.PayInvoice(s.GetContext(), draft.ID, &dto.RecordPaymentRequest{
		PaymentMethod: types.PaymentMethodCreditCard,
	})
	s.Error(err)
	s.True(ierr.IsAlreadyPaid(err))
}

func (s *InvoiceServiceSuite) TestPayDraftInvoiceRejected() {
	sub := s.createConfirmedSubscription()
	draft, err := s.service.GenerateFromSubscription(s.GetContext(), &dto.GenerateInvoiceRequest{
		SubscriptionID: sub.ID,
	})
	s.Require().NoError(err)

	_, err = s.service.PayInvoice(s.GetContext(), draft.ID, &dto.RecordPaymentRequest{
		PaymentMethod: types.PaymentMethodCash,
	})
	s.Error(err)
	s.True(ierr.IsIllegalTransition(err))
}

func (s *InvoiceServiceSuite) TestConcurrentPaySingleWinner() {
	sub := s.createConfirmedSubscription()
	draft, err := s.service.GenerateFromSubscription(s.GetContext(), &dto.GenerateInvoiceRequest{
		SubscriptionID: sub.ID,
	})
	s.Require().NoError(err)
	s.confirmInvoice(draft.ID)

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.PayInvoice(s.GetContext(), draft.ID, &dto.RecordPaymentRequest{
				PaymentMethod: types.PaymentMethodCreditCard,
			})
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

	// Exactly one payment row was recorded
	payments, err := s.GetStores().PaymentRepo.List(s.GetContext(), &types.PaymentFilter{
		QueryFilter: types.NoLimitQueryFilter,
		InvoiceID:   draft.ID,
	})
	s.NoError(err)
	s.Len(payments, 1)
}

func (s *InvoiceServiceSuite) TestCancelAndReopen() {
	sub := s.createConfirmedSubscription()
	draft, err := s.service.GenerateFromSubscription(s.GetContext(), &dto.GenerateInvoiceRequest{
		SubscriptionID: sub.ID,
	})
	s.Require().NoError(err)

	cancelled, err := s.service.CancelInvoice(s.GetContext(), draft.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusCancelled, cancelled.InvoiceStatus)

	reopened, err := s.service.BackToDraft(s.GetContext(), draft.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusDraft, reopened.InvoiceStatus)
}

func (s *InvoiceServiceSuite) TestPaidInvoiceCannotBeCancelled() {
	sub := s.createConfirmedSubscription()
	draft, err := s.service.GenerateFromSubscription(s.GetContext(), &dto.GenerateInvoiceRequest{
		SubscriptionID: sub.ID,
	})
	s.Require().NoError(err)
	s.confirmInvoice(draft.ID)

	_, err = s.service.PayInvoice(s.GetContext(), draft.ID, &dto.RecordPaymentRequest{
		PaymentMethod: types.PaymentMethodCheck,
	})
	s.Require().NoError(err)

	_, err = s.service.CancelInvoice(s.GetContext(), draft.ID)
	s.Error(err)
	s.True(ierr.IsIllegalTransition(err))
}

func (s *InvoiceServiceSuite) TestSendInvoice() {
	sub := s.createConfirmedSubscription()
	draft, err := s.service.GenerateFromSubscription(s.GetContext(), &dto.GenerateInvoiceRequest{
		SubscriptionID: sub.ID,
	})
	s.Require().NoError(err)

	// Drafts cannot be sent
	_, err = s.service.SendInvoice(s.GetContext(), draft.ID)
	s.Error(err)

	s.confirmInvoice(draft.ID)
	sent, err := s.service.SendInvoice(s.GetContext(), draft.ID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusConfirmed, sent.InvoiceStatus)
}
