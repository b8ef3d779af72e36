package service

import (
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
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	IdempotencyGenerator *idempotency.Generator
	Dispatcher           *notification.Dispatcher

	// Repositories
	SubRepo      subscription.Repository
	InvoiceRepo  invoice.Repository
	PaymentRepo  payment.Repository
	DiscountRepo discount.Repository
	CartRepo     cart.Repository
	CatalogRepo  catalog.Repository
}
