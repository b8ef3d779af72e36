package api

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	v1 "github.com/renewly/renewly/internal/api/v1"
	"github.com/renewly/renewly/internal/rest/middleware"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Subscription *v1.SubscriptionHandler
	Invoice      *v1.InvoiceHandler
	Discount     *v1.DiscountHandler
	Cart         *v1.CartHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.TenantMiddleware)
	router.Use(middleware.ErrorHandler())

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", handlers.Health.Health)

	// v1 routes
	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	// Subscription routes
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.CreateSubscription)
		subscriptions.GET("", handlers.Subscription.ListSubscriptions)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.PUT("/:id", handlers.Subscription.UpdateSubscription)
		subscriptions.DELETE("/:id", handlers.Subscription.DeleteSubscription)
		subscriptions.POST("/:id/actions/:action", handlers.Subscription.ExecuteAction)
		subscriptions.POST("/:id/lines", handlers.Subscription.AddLine)
		subscriptions.PUT("/:id/lines/:line_id", handlers.Subscription.UpdateLine)
		subscriptions.DELETE("/:id/lines/:line_id", handlers.Subscription.RemoveLine)
		subscriptions.POST("/:id/renew", handlers.Subscription.RenewSubscription)
		subscriptions.POST("/:id/upsell", handlers.Subscription.UpsellSubscription)
	}

	// Invoice routes
	invoices := router.Group("/invoices")
	{
		invoices.POST("", handlers.Invoice.GenerateInvoice)
		invoices.GET("", handlers.Invoice.ListInvoices)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.POST("/:id/confirm", handlers.Invoice.ConfirmInvoice)
		invoices.POST("/:id/send", handlers.Invoice.SendInvoice)
		invoices.POST("/:id/payments", handlers.Invoice.PayInvoice)
		invoices.POST("/:id/cancel", handlers.Invoice.CancelInvoice)
		invoices.POST("/:id/reopen", handlers.Invoice.BackToDraft)
	}

	// Discount routes
	discounts := router.Group("/discounts")
	{
		discounts.POST("", handlers.Discount.CreateDiscount)
		discounts.GET("", handlers.Discount.ListDiscounts)
		discounts.POST("/validate", handlers.Discount.ValidateDiscount)
		discounts.GET("/:id", handlers.Discount.GetDiscount)
		discounts.PUT("/:id", handlers.Discount.UpdateDiscount)
		discounts.DELETE("/:id", handlers.Discount.DeleteDiscount)
	}

	// Cart and checkout routes
	carts := router.Group("/carts")
	{
		carts.POST("/items", handlers.Cart.AddItem)
		carts.GET("/:customer_id", handlers.Cart.GetCart)
		carts.PUT("/:customer_id/items/:item_id", handlers.Cart.UpdateItem)
		carts.DELETE("/:customer_id/items/:item_id", handlers.Cart.RemoveItem)
	}
	router.POST("/checkout", handlers.Cart.Checkout)
}
