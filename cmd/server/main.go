package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"

	"github.com/renewly/renewly/internal/api"
	v1 "github.com/renewly/renewly/internal/api/v1"
	"github.com/renewly/renewly/internal/cache"
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
	"github.com/renewly/renewly/internal/repository"
	"github.com/renewly/renewly/internal/service"
	"github.com/renewly/renewly/internal/types"
	"github.com/renewly/renewly/internal/validator"
)

// @title Renewly API
// @version 1.0
// @description Recurring billing API service
// @BasePath /v1
// @schemes http https

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Notifications
			provideNotifier,
			notification.NewDispatcher,

			// Idempotency
			idempotency.NewGenerator,

			// Repositories
			repository.NewSubscriptionRepository,
			repository.NewInvoiceRepository,
			repository.NewPaymentRepository,
			repository.NewDiscountRepository,
			repository.NewCartRepository,
			repository.NewCatalogRepository,
		),
		postgres.Module(),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			provideServiceParams,

			service.NewSubscriptionService,
			service.NewInvoiceService,
			service.NewDiscountService,
			service.NewCheckoutService,
			service.NewBillingService,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(startServer),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideNotifier(log *logger.Logger) notification.Notifier {
	return notification.NewLogNotifier(log)
}

func provideServiceParams(
	cfg *config.Configuration,
	log *logger.Logger,
	db postgres.IClient,
	generator *idempotency.Generator,
	dispatcher *notification.Dispatcher,
	subRepo subscription.Repository,
	invoiceRepo invoice.Repository,
	paymentRepo payment.Repository,
	discountRepo discount.Repository,
	cartRepo cart.Repository,
	catalogRepo catalog.Repository,
) service.ServiceParams {
	return service.ServiceParams{
		Logger:               log,
		Config:               cfg,
		DB:                   db,
		IdempotencyGenerator: generator,
		Dispatcher:           dispatcher,
		SubRepo:              subRepo,
		InvoiceRepo:          invoiceRepo,
		PaymentRepo:          paymentRepo,
		DiscountRepo:         discountRepo,
		CartRepo:             cartRepo,
		CatalogRepo:          catalogRepo,
	}
}

func provideHandlers(
	log *logger.Logger,
	subscriptionService service.SubscriptionService,
	invoiceService service.InvoiceService,
	discountService service.DiscountService,
	checkoutService service.CheckoutService,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(log),
		Subscription: v1.NewSubscriptionHandler(subscriptionService, log),
		Invoice:      v1.NewInvoiceHandler(invoiceService, log),
		Discount:     v1.NewDiscountHandler(discountService, log),
		Cart:         v1.NewCartHandler(checkoutService, log),
	}
}

func provideRouter(handlers api.Handlers) *gin.Engine {
	return api.NewRouter(handlers)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	billingService service.BillingService,
	log *logger.Logger,
) {
	startAPIServer(lc, r, cfg, log)
	startBillingCron(lc, cfg, billingService, log)
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting API server...")
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}

// startBillingCron schedules the recurring billing sweep. Each run bills
// every active subscription whose next invoice date has arrived.
func startBillingCron(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	billingService service.BillingService,
	log *logger.Logger,
) {
	c := cron.New()

	_, err := c.AddFunc(cfg.Billing.CronSchedule, func() {
		ctx := context.Background()
		ctx = context.WithValue(ctx, types.CtxTenantID, types.DefaultTenantID)
		ctx = context.WithValue(ctx, types.CtxUserID, types.DefaultUserID)
		ctx = context.WithValue(ctx, types.CtxRequestID, types.GenerateUUID())

		generated, err := billingService.ProcessDueSubscriptions(ctx, time.Now().UTC())
		if err != nil {
			log.Errorw("billing sweep failed", "error", err)
			return
		}
		log.Infow("billing sweep run complete", "generated", generated)
	})
	if err != nil {
		log.Fatalf("Failed to schedule billing sweep: %v", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting billing cron", "schedule", cfg.Billing.CronSchedule)
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping billing cron")
			stopCtx := c.Stop()
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
}
