package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/renewly/renewly/internal/api/dto"
	"github.com/renewly/renewly/internal/domain/cart"
	"github.com/renewly/renewly/internal/domain/discount"
	"github.com/renewly/renewly/internal/domain/invoice"
	"github.com/renewly/renewly/internal/domain/subscription"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/idempotency"
	"github.com/renewly/renewly/internal/pricing"
	"github.com/renewly/renewly/internal/types"
)

// CheckoutService manages carts and converts them into subscriptions
type CheckoutService interface {
	GetCart(ctx context.Context, customerID string) (*dto.CartResponse, error)
	AddItem(ctx context.Context, req *dto.AddCartItemRequest) (*dto.CartResponse, error)
	UpdateItem(ctx context.Context, customerID, itemID string, req *dto.UpdateCartItemRequest) (*dto.CartResponse, error)
	RemoveItem(ctx context.Context, customerID, itemID string) (*dto.CartResponse, error)

	// Checkout turns the customer's cart into a confirmed, active
	// subscription with its first invoice, redeeming the discount code
	// if one is given. The whole conversion is all or nothing.
	Checkout(ctx context.Context, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
}

type checkoutService struct {
	ServiceParams
	subscriptionService SubscriptionService
	invoiceService      InvoiceService
	discountService     DiscountService
}

func NewCheckoutService(params ServiceParams) CheckoutService {
	return &checkoutService{
		ServiceParams:       params,
		subscriptionService: NewSubscriptionService(params),
		invoiceService:      NewInvoiceService(params),
		discountService:     NewDiscountService(params),
	}
}

func (s *checkoutService) GetCart(ctx context.Context, customerID string) (*dto.CartResponse, error) {
	c, err := s.CartRepo.GetOpenByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.toCartResponse(ctx, c)
}

func (s *checkoutService) AddItem(ctx context.Context, req *dto.AddCartItemRequest) (*dto.CartResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	product, err := s.CatalogRepo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	c, err := s.getOrCreateCart(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	item := &cart.Item{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CART_ITEM),
		CartID:    c.ID,
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		TaxID:     product.DefaultTaxID,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}

	switch {
	case req.UnitPrice != nil:
		item.UnitPrice = *req.UnitPrice
	case req.VariantID != nil:
		variant, err := s.CatalogRepo.GetVariant(ctx, *req.VariantID)
		if err != nil {
			return nil, err
		}
		item.UnitPrice = product.UnitPrice(variant)
	default:
		item.UnitPrice = product.ListPrice
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}
	if err := s.CartRepo.AddItem(ctx, item); err != nil {
		return nil, err
	}
	c.Items = append(c.Items, item)
	return s.toCartResponse(ctx, c)
}

func (s *checkoutService) UpdateItem(ctx context.Context, customerID, itemID string, req *dto.UpdateCartItemRequest) (*dto.CartResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c, err := s.CartRepo.GetOpenByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	for _, item := range c.Items {
		if item.ID != itemID {
			continue
		}
		item.Quantity = req.Quantity
		if err := s.CartRepo.UpdateItem(ctx, item); err != nil {
			return nil, err
		}
		return s.toCartResponse(ctx, c)
	}

	return nil, ierr.NewError("cart item not found").
		WithHintf("Item %s is not in the cart", itemID).
		Mark(ierr.ErrNotFound)
}

func (s *checkoutService) RemoveItem(ctx context.Context, customerID, itemID string) (*dto.CartResponse, error) {
	c, err := s.CartRepo.GetOpenByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if err := s.CartRepo.RemoveItem(ctx, c.ID, itemID); err != nil {
		return nil, err
	}

	remaining := make([]*cart.Item, 0, len(c.Items))
	for _, item := range c.Items {
		if item.ID != itemID {
			remaining = append(remaining, item)
		}
	}
	c.Items = remaining
	return s.toCartResponse(ctx, c)
}

func (s *checkoutService) Checkout(ctx context.Context, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c, err := s.CartRepo.GetOpenByCustomer(ctx, req.CustomerID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, s.emptyCartError(req.CustomerID)
		}
		return nil, err
	}
	if c.IsEmpty() {
		return nil, s.emptyCartError(req.CustomerID)
	}

	if _, err := s.CatalogRepo.GetPlan(ctx, req.PlanID); err != nil {
		return nil, err
	}

	// Validate the discount up front so an invalid code fails the
	// checkout before any documents exist.
	var disc *discount.Discount
	if req.DiscountCode != nil {
		disc, err = s.discountService.CheckDiscount(ctx, *req.DiscountCode, PurchaseContext{
			Subtotal:   c.Subtotal(),
			Quantity:   c.TotalQuantity(),
			ProductIDs: productIDs(c),
		})
		if err != nil {
			return nil, err
		}
	}

	sub := s.buildSubscription(ctx, req, c)
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		return s.SubRepo.Create(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	inv, err := s.completeCheckout(ctx, sub, c, disc)
	if err != nil {
		// The subscription was already committed; take it back out so a
		// failed checkout leaves nothing behind.
		if derr := s.SubRepo.Delete(ctx, sub.ID); derr != nil {
			s.Logger.Errorw("failed to compensate partial checkout",
				"subscription_id", sub.ID,
				"error", derr,
			)
		}
		return nil, err
	}

	s.Logger.Infow("completed checkout",
		"customer_id", req.CustomerID,
		"subscription_id", sub.ID,
		"invoice_id", inv.ID,
		"cart_id", c.ID,
	)

	subResp, err := s.subscriptionService.GetSubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	return &dto.CheckoutResponse{
		Subscription: subResp,
		Invoice:      &dto.InvoiceResponse{Invoice: inv},
	}, nil
}

// completeCheckout runs everything after the subscription row exists:
// lifecycle transitions, first invoice, discount redemption and cart
// drain, all in one transaction.
func (s *checkoutService) completeCheckout(ctx context.Context, sub *subscription.Subscription, c *cart.Cart, disc *discount.Discount) (*invoice.Invoice, error) {
	var inv *invoice.Invoice

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		for _, action := range []types.SubscriptionAction{
			types.SubscriptionActionToQuotation,
			types.SubscriptionActionConfirm,
		} {
			resp, err := s.subscriptionService.ExecuteAction(ctx, sub.ID, action)
			if err != nil {
				return err
			}
			sub.SubscriptionStatus = resp.SubscriptionStatus
			sub.SubscriptionNumber = resp.SubscriptionNumber
		}

		key := s.IdempotencyGenerator.GenerateKey(idempotency.ScopeCheckoutInvoice, map[string]interface{}{
			"cart_id": c.ID,
		})
		generated, err := s.invoiceService.GenerateForSubscription(ctx, sub, GenerateParams{
			Reason:         types.InvoiceBillingReasonCheckout,
			Discount:       disc,
			IdempotencyKey: &key,
		})
		if err != nil {
			return err
		}
		inv = generated

		if disc != nil {
			// Atomic check-and-increment; an exhausted code fails the
			// whole checkout here.
			if err := s.DiscountRepo.IncrementRedemptions(ctx, disc.ID); err != nil {
				return err
			}
		}

		if _, err := s.subscriptionService.ExecuteAction(ctx, sub.ID, types.SubscriptionActionActivate); err != nil {
			return err
		}
		sub.SubscriptionStatus = types.SubscriptionStatusActive

		return s.CartRepo.Clear(ctx, c.ID)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *checkoutService) buildSubscription(ctx context.Context, req *dto.CheckoutRequest, c *cart.Cart) *subscription.Subscription {
	startDate := time.Now().UTC()
	if req.StartDate != nil {
		startDate = *req.StartDate
	}

	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:         req.CustomerID,
		PlanID:             req.PlanID,
		SubscriptionStatus: types.SubscriptionStatusDraft,
		StartDate:          startDate,
		PaymentTerms:       req.PaymentTerms,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}

	for _, item := range c.Items {
		sub.Lines = append(sub.Lines, &subscription.Line{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_LINE),
			SubscriptionID: sub.ID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			TaxID:          item.TaxID,
			BaseModel:      types.GetDefaultBaseModel(ctx),
		})
	}
	return sub
}

func (s *checkoutService) getOrCreateCart(ctx context.Context, customerID string) (*cart.Cart, error) {
	c, err := s.CartRepo.GetOpenByCustomer(ctx, customerID)
	if err == nil {
		return c, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	c = &cart.Cart{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CART),
		CartNumber: types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_CART),
		CustomerID: customerID,
		BaseModel:  types.GetDefaultBaseModel(ctx),
	}
	if err := s.CartRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *checkoutService) emptyCartError(customerID string) error {
	return ierr.NewError("cart is empty").
		WithHint("Add at least one item to the cart before checking out").
		WithReportableDetails(map[string]any{
			"customer_id": customerID,
		}).
		Mark(ierr.ErrEmptyCart)
}

func (s *checkoutService) toCartResponse(ctx context.Context, c *cart.Cart) (*dto.CartResponse, error) {
	totals, err := pricing.DocumentTotals(c.PricingLines(), s.cartTaxLookup(ctx), nil)
	if err != nil {
		return nil, err
	}
	return &dto.CartResponse{Cart: c, Totals: &totals}, nil
}

func (s *checkoutService) cartTaxLookup(ctx context.Context) pricing.TaxLookup {
	return func(taxID string) (decimal.Decimal, error) {
		tax, err := s.CatalogRepo.GetTax(ctx, taxID)
		if err != nil {
			return decimal.Zero, err
		}
		return tax.RatePercent, nil
	}
}

func productIDs(c *cart.Cart) []string {
	ids := make([]string, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ProductID
	}
	return ids
}
