package service

import (
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/renewly/renewly/internal/api/dto"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/testutil"
	"github.com/renewly/renewly/internal/types"
)

type DiscountServiceSuite struct {
	testutil.BaseServiceTestSuite
	service DiscountService
}

func TestDiscountService(t *testing.T) {
	suite.Run(t, new(DiscountServiceSuite))
}

func (s *DiscountServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewDiscountService(ServiceParams{
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
}

func (s *DiscountServiceSuite) createDiscount(req *dto.CreateDiscountRequest) *dto.DiscountResponse {
	resp, err := s.service.CreateDiscount(s.GetContext(), req)
	s.Require().NoError(err)
	return resp
}

func (s *DiscountServiceSuite) TestCreateDiscount() {
	resp := s.createDiscount(&dto.CreateDiscountRequest{
		Code:         "WELCOME10",
		DiscountType: types.DiscountTypePercentage,
		Value:        decimal.NewFromInt(10),
	})
	s.Equal("WELCOME10", resp.Code)
	s.Equal(0, resp.TimesUsed)
}

func (s *DiscountServiceSuite) TestCreateDuplicateCode() {
	s.createDiscount(&dto.CreateDiscountRequest{
		Code:         "WELCOME10",
		DiscountType: types.DiscountTypePercentage,
		Value:        decimal.NewFromInt(10),
	})

	_, err := s.service.CreateDiscount(s.GetContext(), &dto.CreateDiscountRequest{
		Code:         "WELCOME10",
		DiscountType: types.DiscountTypeFixed,
		Value:        decimal.NewFromInt(5),
	})
	s.Error(err)
}

func (s *DiscountServiceSuite) TestCreateDiscountInvalidValue() {
	_, err := s.service.CreateDiscount(s.GetContext(), &dto.CreateDiscountRequest{
		Code:         "BROKEN",
		DiscountType: types.DiscountTypeFixed,
		Value:        decimal.Zero,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *DiscountServiceSuite) TestValidateUnknownCode() {
	_, err := s.service.ValidateDiscount(s.GetContext(), &dto.ValidateDiscountRequest{
		Code:     "NOPE",
		Subtotal: decimal.NewFromInt(100),
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *DiscountServiceSuite) TestValidateDiscount() {
	s.createDiscount(&dto.CreateDiscountRequest{
		Code:         "SAVE20",
		DiscountType: types.DiscountTypePercentage,
		Value:        decimal.NewFromInt(20),
	})

	resp, err := s.service.ValidateDiscount(s.GetContext(), &dto.ValidateDiscountRequest{
		Code:     "SAVE20",
		Subtotal: decimal.NewFromInt(100),
		Quantity: decimal.NewFromInt(1),
	})
	s.NoError(err)
	s.True(resp.Valid)
	s.Empty(resp.Reason)
	s.Require().NotNil(resp.Discount)
	s.Equal("SAVE20", resp.Discount.Code)
}

func (s *DiscountServiceSuite) TestValidateExpiredDiscount() {
	past := s.GetNow().AddDate(0, -1, 0)
	s.createDiscount(&dto.CreateDiscountRequest{
		Code:         "EXPIRED",
		DiscountType: types.DiscountTypeFixed,
		Value:        decimal.NewFromInt(5),
		EndDate:      &past,
	})

	resp, err := s.service.ValidateDiscount(s.GetContext(), &dto.ValidateDiscountRequest{
		Code:     "EXPIRED",
		Subtotal: decimal.NewFromInt(100),
	})
	s.NoError(err)
	s.False(resp.Valid)
	s.NotEmpty(resp.Reason)
}

func (s *DiscountServiceSuite) TestValidateNotYetStarted() {
	future := s.GetNow().AddDate(0, 1, 0)
	s.createDiscount(&dto.CreateDiscountRequest{
		Code:         "SOON",
		DiscountType: types.DiscountTypeFixed,
		Value:        decimal.NewFromInt(5),
		StartDate:    &future,
	})

	resp, err := s.service.ValidateDiscount(s.GetContext(), &dto.ValidateDiscountRequest{
		Code:     "SOON",
		Subtotal: decimal.NewFromInt(100),
	})
	s.NoError(err)
	s.False(resp.Valid)
}

func (s *DiscountServiceSuite) TestValidateMinPurchase() {
	s.createDiscount(&dto.CreateDiscountRequest{
		Code:         "BIG50",
		DiscountType: types.DiscountTypeFixed,
		Value:        decimal.NewFromInt(50),
		MinPurchase:  decimal.NewFromInt(500),
	})

	resp, err := s.service.ValidateDiscount(s.GetContext(), &dto.ValidateDiscountRequest{
		Code:     "BIG50",
		Subtotal: decimal.NewFromInt(100),
	})
	s.NoError(err)
	s.False(resp.Valid)

	resp, err = s.service.ValidateDiscount(s.GetContext(), &dto.ValidateDiscountRequest{
		Code:     "BIG50",
		Subtotal: decimal.NewFromInt(600),
	})
	s.NoError(err)
	s.True(resp.Valid)
}

func (s *DiscountServiceSuite) TestValidateMinQuantity() {
	s.createDiscount(&dto.CreateDiscountRequest{
		Code:         "BULK",
		DiscountType: types.DiscountTypePercentage,
		Value:        decimal.NewFromInt(15),
		MinQuantity:  decimal.NewFromInt(10),
	})

	resp, err := s.service.ValidateDiscount(s.GetContext(), &dto.ValidateDiscountRequest{
		Code:     "BULK",
		Subtotal: decimal.NewFromInt(1000),
		Quantity: decimal.NewFromInt(3),
	})
	s.NoError(err)
	s.False(resp.Valid)
}

func (s *DiscountServiceSuite) TestValidateProductScope() {
	s.createDiscount(&dto.CreateDiscountRequest{
		Code:         "HOSTONLY",
		DiscountType: types.DiscountTypePercentage,
		Value:        decimal.NewFromInt(10),
		ProductID:    lo.ToPtr("prod_hosting"),
	})

	resp, err := s.service.ValidateDiscount(s.GetContext(), &dto.ValidateDiscountRequest{
		Code:       "HOSTONLY",
		Subtotal:   decimal.NewFromInt(100),
		ProductIDs: []string{"prod_backup"},
	})
	s.NoError(err)
	s.False(resp.Valid)

	resp, err = s.service.ValidateDiscount(s.GetContext(), &dto.ValidateDiscountRequest{
		Code:       "HOSTONLY",
		Subtotal:   decimal.NewFromInt(100),
		ProductIDs: []string{"prod_backup", "prod_hosting"},
	})
	s.NoError(err)
	s.True(resp.Valid)
}

func (s *DiscountServiceSuite) TestCheckDiscountFirstFailureOrder() {
	// Expired and over its usage limit at the same time: the validity
	// window check wins.
	past := s.GetNow().Add(-time.Hour)
	created := s.createDiscount(&dto.CreateDiscountRequest{
		Code:         "STACKED",
		DiscountType: types.DiscountTypeFixed,
		Value:        decimal.NewFromInt(5),
		EndDate:      &past,
		UsageLimit:   1,
	})
	s.NoError(s.service.RedeemDiscount(s.GetContext(), created.ID))

	_, err := s.service.CheckDiscount(s.GetContext(), "STACKED", PurchaseContext{
		Subtotal: decimal.NewFromInt(100),
	})
	s.Error(err)
	s.True(ierr.IsDiscountExpired(err))
}

func (s *DiscountServiceSuite) TestRedeemUpToLimit() {
	created := s.createDiscount(&dto.CreateDiscountRequest{
		Code:         "LIMITED",
		DiscountType: types.DiscountTypeFixed,
		Value:        decimal.NewFromInt(5),
		UsageLimit:   2,
	})

	s.NoError(s.service.RedeemDiscount(s.GetContext(), created.ID))
	s.NoError(s.service.RedeemDiscount(s.GetContext(), created.ID))

	err := s.service.RedeemDiscount(s.GetContext(), created.ID)
	s.Error(err)
	s.True(ierr.IsUsageLimitExceeded(err))

	got, gerr := s.service.GetDiscount(s.GetContext(), created.ID)
	s.NoError(gerr)
	s.Equal(2, got.TimesUsed)
}

func (s *DiscountServiceSuite) TestConcurrentRedemptionsHonorLimit() {
	const limit = 5
	created := s.createDiscount(&dto.CreateDiscountRequest{
		Code:         "RACE",
		DiscountType: types.DiscountTypePercentage,
		Value:        decimal.NewFromInt(10),
		UsageLimit:   limit,
	})

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.service.RedeemDiscount(s.GetContext(), created.ID)
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
	s.Equal(limit, succeeded)

	got, err := s.service.GetDiscount(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(limit, got.TimesUsed)
}

func (s *DiscountServiceSuite) TestUnlimitedRedemptions() {
	created := s.createDiscount(&dto.CreateDiscountRequest{
		Code:         "FOREVER",
		DiscountType: types.DiscountTypeFixed,
		Value:        decimal.NewFromInt(1),
	})

	for i := 0; i < 10; i++ {
		s.NoError(s.service.RedeemDiscount(s.GetContext(), created.ID))
	}

	got, err := s.service.GetDiscount(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(10, got.TimesUsed)
}

func (s *DiscountServiceSuite) TestUpdateDiscountPreservesUsage() {
	created := s.createDiscount(&dto.CreateDiscountRequest{
		Code:         "TWEAK",
		DiscountType: types.DiscountTypeFixed,
		Value:        decimal.NewFromInt(5),
		UsageLimit:   10,
	})
	s.NoError(s.service.RedeemDiscount(s.GetContext(), created.ID))

	updated, err := s.service.UpdateDiscount(s.GetContext(), created.ID, &dto.UpdateDiscountRequest{
		Value: lo.ToPtr(decimal.NewFromInt(7)),
	})
	s.NoError(err)
	s.True(updated.Value.Equal(decimal.NewFromInt(7)))

	got, err := s.service.GetDiscount(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(1, got.TimesUsed)
}

func (s *DiscountServiceSuite) TestDeleteDiscount() {
	created := s.createDiscount(&dto.CreateDiscountRequest{
		Code:         "GONE",
		DiscountType: types.DiscountTypeFixed,
		Value:        decimal.NewFromInt(5),
	})

	s.NoError(s.service.DeleteDiscount(s.GetContext(), created.ID))

	_, err := s.service.GetDiscountByCode(s.GetContext(), "GONE")
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}
