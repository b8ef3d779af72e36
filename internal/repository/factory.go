package repository

import (
	"github.com/renewly/renewly/internal/cache"
	"github.com/renewly/renewly/internal/domain/cart"
	"github.com/renewly/renewly/internal/domain/catalog"
	"github.com/renewly/renewly/internal/domain/discount"
	"github.com/renewly/renewly/internal/domain/invoice"
	"github.com/renewly/renewly/internal/domain/payment"
	"github.com/renewly/renewly/internal/domain/subscription"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/postgres"
	postgresRepo "github.com/renewly/renewly/internal/repository/postgres"
)

func NewSubscriptionRepository(client postgres.IClient, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(client, logger)
}

func NewInvoiceRepository(client postgres.IClient, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(client, logger)
}

func NewPaymentRepository(client postgres.IClient, logger *logger.Logger) payment.Repository {
	return postgresRepo.NewPaymentRepository(client, logger)
}

func NewDiscountRepository(client postgres.IClient, logger *logger.Logger) discount.Repository {
	return postgresRepo.NewDiscountRepository(client, logger)
}

func NewCartRepository(client postgres.IClient, logger *logger.Logger) cart.Repository {
	return postgresRepo.NewCartRepository(client, logger)
}

func NewCatalogRepository(client postgres.IClient, c cache.Cache, logger *logger.Logger) catalog.Repository {
	return postgresRepo.NewCatalogRepository(client, c, logger)
}
