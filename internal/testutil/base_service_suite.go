package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/renewly/renewly/internal/config"
	"github.com/renewly/renewly/internal/domain/cart"
	"github.com/renewly/renewly/internal/domain/catalog"
	"github.com/renewly/renewly/internal/domain/discount"
	"github.com/renewly/renewly/internal/domain/invoice"
	"github.com/renewly/renewly/internal/domain/payment"
	"github.com/renewly/renewly/internal/domain/subscription"
	"github.com/renewly/renewly/internal/idempotency"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/notification"
	"github.com/renewly/renewly/internal/postgres"
	"github.com/renewly/renewly/internal/types"
	"github.com/renewly/renewly/internal/validator"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	SubscriptionRepo subscription.Repository
	InvoiceRepo      invoice.Repository
	PaymentRepo      payment.Repository
	DiscountRepo     discount.Repository
	CartRepo         cart.Repository
	CatalogRepo      catalog.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx        context.Context
	stores     Stores
	db         postgres.IClient
	logger     *logger.Logger
	config     *config.Configuration
	generator  *idempotency.Generator
	dispatcher *notification.Dispatcher
	now        time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.config = config.GetDefaultConfig()

	var err error
	s.logger, err = logger.NewLogger(s.config)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = context.Background()
	s.ctx = context.WithValue(s.ctx, types.CtxTenantID, types.DefaultTenantID)
	s.ctx = context.WithValue(s.ctx, types.CtxUserID, types.DefaultUserID)
	s.ctx = context.WithValue(s.ctx, types.CtxRequestID, types.GenerateUUID())
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		InvoiceRepo:      NewInMemoryInvoiceStore(),
		PaymentRepo:      NewInMemoryPaymentStore(),
		DiscountRepo:     NewInMemoryDiscountStore(),
		CartRepo:         NewInMemoryCartStore(),
		CatalogRepo:      NewInMemoryCatalogStore(),
	}

	s.db = NewMockPostgresClient(s.logger)
	s.generator = idempotency.NewGenerator()
	s.dispatcher = notification.NewDispatcher(notification.NewLogNotifier(s.logger), s.logger)
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.SubscriptionRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
	s.stores.PaymentRepo.(*InMemoryPaymentStore).Clear()
	s.stores.DiscountRepo.(*InMemoryDiscountStore).Clear()
	s.stores.CartRepo.(*InMemoryCartStore).ClearAll()
	s.stores.CatalogRepo.(*InMemoryCatalogStore).Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetIdempotencyGenerator returns the test idempotency key generator
func (s *BaseServiceTestSuite) GetIdempotencyGenerator() *idempotency.Generator {
	return s.generator
}

// GetDispatcher returns the test notification dispatcher
func (s *BaseServiceTestSuite) GetDispatcher() *notification.Dispatcher {
	return s.dispatcher
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// GetUUID returns a new unique identifier string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
