package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/renewly/renewly/internal/api/dto"
	"github.com/renewly/renewly/internal/domain/discount"
	"github.com/renewly/renewly/internal/domain/invoice"
	"github.com/renewly/renewly/internal/domain/payment"
	"github.com/renewly/renewly/internal/domain/subscription"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/idempotency"
	"github.com/renewly/renewly/internal/notification"
	"github.com/renewly/renewly/internal/pricing"
	"github.com/renewly/renewly/internal/types"
)

// GenerateParams carries the context an invoice is generated under
type GenerateParams struct {
	Reason         types.InvoiceBillingReason
	Discount       *discount.Discount
	IdempotencyKey *string
}

// InvoiceService manages the invoice lifecycle and payment recording
type InvoiceService interface {
	// GenerateFromSubscription creates a draft invoice snapshotting the
	// subscription's current lines. The subscription must be confirmed
	// or active.
	GenerateFromSubscription(ctx context.Context, req *dto.GenerateInvoiceRequest) (*dto.InvoiceResponse, error)

	// GenerateForSubscription is the shared generation path used by
	// checkout and the billing sweep.
	GenerateForSubscription(ctx context.Context, sub *subscription.Subscription, params GenerateParams) (*invoice.Invoice, error)

	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)

	// ConfirmInvoice freezes the invoice, assigns its number and locks
	// the totals
	ConfirmInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)

	// SendInvoice dispatches the invoice to the customer. Delivery is
	// fire-and-forget; a failed send leaves the invoice confirmed.
	SendInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)

	// PayInvoice records a payment settling the invoice in full
	PayInvoice(ctx context.Context, id string, req *dto.RecordPaymentRequest) (*dto.PaymentResponse, error)

	CancelInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)

	// BackToDraft reopens a cancelled invoice for correction
	BackToDraft(ctx context.Context, id string) (*dto.InvoiceResponse, error)
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{ServiceParams: params}
}

func (s *invoiceService) GenerateFromSubscription(ctx context.Context, req *dto.GenerateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}

	inv, err := s.GenerateForSubscription(ctx, sub, GenerateParams{
		Reason: types.InvoiceBillingReasonManual,
	})
	if err != nil {
		return nil, err
	}
	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) GenerateForSubscription(ctx context.Context, sub *subscription.Subscription, params GenerateParams) (*invoice.Invoice, error) {
	if sub.SubscriptionStatus != types.SubscriptionStatusConfirmed &&
		sub.SubscriptionStatus != types.SubscriptionStatusActive {
		return nil, ierr.NewError("subscription is not billable").
			WithHintf("Invoices can only be generated for confirmed or active subscriptions, this one is %s", sub.SubscriptionStatus).
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"status":          sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	if len(sub.Lines) == 0 {
		return nil, ierr.NewError("subscription has no lines").
			WithHint("Cannot generate an invoice without lines").
			Mark(ierr.ErrInvalidOperation)
	}

	// Repeat generation for the same cause returns the original invoice
	if params.IdempotencyKey != nil {
		existing, err := s.InvoiceRepo.GetByIdempotencyKey(ctx, *params.IdempotencyKey)
		if err == nil {
			s.Logger.Infow("invoice already generated for key",
				"idempotency_key", *params.IdempotencyKey,
				"invoice_id", existing.ID,
			)
			return existing, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	var pricingDiscount *pricing.Discount
	if params.Discount != nil {
		pricingDiscount = params.Discount.ToPricingDiscount()
	}
	totals, err := pricing.DocumentTotals(sub.PricingLines(), s.taxLookup(ctx), pricingDiscount)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	dueDate := now.AddDate(0, 0, types.InvoiceDefaultDueDays)

	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		CustomerID:     sub.CustomerID,
		SubscriptionID: &sub.ID,
		InvoiceStatus:  types.InvoiceStatusDraft,
		BillingReason:  params.Reason,
		IdempotencyKey: params.IdempotencyKey,
		IssueDate:      now,
		DueDate:        &dueDate,
		PaymentTerms:   sub.PaymentTerms,
		Subtotal:       totals.Subtotal,
		TaxTotal:       totals.TaxTotal,
		DiscountAmount: totals.DiscountAmount,
		Total:          totals.Total,
		AmountPaid:     decimal.Zero,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}

	for _, l := range sub.Lines {
		amount, err := l.Amount()
		if err != nil {
			return nil, err
		}
		displayName := l.ProductID
		if product, perr := s.CatalogRepo.GetProduct(ctx, l.ProductID); perr == nil {
			displayName = product.Name
		}
		inv.Lines = append(inv.Lines, &invoice.Line{
			ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE),
			InvoiceID:       inv.ID,
			ProductID:       l.ProductID,
			DisplayName:     displayName,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			TaxID:           l.TaxID,
			Amount:          amount,
			BaseModel:       types.GetDefaultBaseModel(ctx),
		})
	}

	if err := inv.Validate(); err != nil {
		return nil, err
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		return s.InvoiceRepo.CreateWithLines(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("generated invoice",
		"invoice_id", inv.ID,
		"subscription_id", sub.ID,
		"billing_reason", params.Reason,
		"total", inv.Total,
	)
	return inv, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = &types.InvoiceFilter{QueryFilter: types.DefaultQueryFilter}
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	count, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		items[i] = &dto.InvoiceResponse{Invoice: inv}
	}

	resp := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *invoiceService) ConfirmInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := types.ValidateInvoiceTransition(inv.InvoiceStatus, types.InvoiceStatusConfirmed); err != nil {
		return nil, err
	}

	// Recompute totals from the line snapshots before freezing them
	totals, err := pricing.DocumentTotals(inv.PricingLines(), s.taxLookup(ctx), nil)
	if err != nil {
		return nil, err
	}
	if !inv.DiscountAmount.IsZero() {
		totals.DiscountAmount = inv.DiscountAmount
		totals.Total = totals.Subtotal.Add(totals.TaxTotal).Sub(inv.DiscountAmount)
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.InvoiceRepo.UpdateStatus(ctx, id, inv.InvoiceStatus, types.InvoiceStatusConfirmed); err != nil {
			return err
		}

		if inv.InvoiceNumber == nil {
			number, err := s.InvoiceRepo.NextInvoiceNumber(ctx)
			if err != nil {
				return err
			}
			inv.InvoiceNumber = &number
		}
		inv.Subtotal = totals.Subtotal
		inv.TaxTotal = totals.TaxTotal
		inv.DiscountAmount = totals.DiscountAmount
		inv.Total = totals.Total
		return s.InvoiceRepo.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	inv.InvoiceStatus = types.InvoiceStatusConfirmed
	s.Logger.Infow("confirmed invoice",
		"invoice_id", id,
		"invoice_number", inv.InvoiceNumber,
		"total", inv.Total,
	)
	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) SendInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.InvoiceStatus != types.InvoiceStatusConfirmed {
		return nil, ierr.NewError("invoice is not sendable").
			WithHintf("Only confirmed invoices can be sent, this one is %s", inv.InvoiceStatus).
			WithReportableDetails(map[string]any{
				"invoice_id": id,
				"status":     inv.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	s.Dispatcher.DispatchAsync(&notification.Event{
		Type:       notification.EventInvoiceSent,
		CustomerID: inv.CustomerID,
		Payload: map[string]any{
			"invoice_id":     inv.ID,
			"invoice_number": inv.InvoiceNumber,
			"total":          inv.Total,
			"due_date":       inv.DueDate,
		},
	})

	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) PayInvoice(ctx context.Context, id string, req *dto.RecordPaymentRequest) (*dto.PaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch inv.InvoiceStatus {
	case types.InvoiceStatusPaid:
		return nil, ierr.NewError("invoice already paid").
			WithHintf("Invoice %s has already been settled", id).
			WithReportableDetails(map[string]any{
				"invoice_id": id,
			}).
			Mark(ierr.ErrAlreadyPaid)
	case types.InvoiceStatusConfirmed:
		// payable
	default:
		return nil, ierr.NewError("invoice is not payable").
			WithHintf("Only confirmed invoices can be paid, this one is %s", inv.InvoiceStatus).
			WithReportableDetails(map[string]any{
				"invoice_id": id,
				"status":     inv.InvoiceStatus,
			}).
			Mark(ierr.ErrIllegalTransition)
	}

	// Amount defaults to the full total; anything else must match it
	// exactly since partial payments are not supported.
	amount := inv.Total
	if req.Amount != nil {
		amount = *req.Amount
	}
	if !amount.Equal(inv.Total) {
		return nil, ierr.NewError("payment amount mismatch").
			WithHintf("Payment of %s does not match the invoice total %s", amount, inv.Total).
			WithAmountDetails(id, amount, inv.Total).
			Mark(ierr.ErrAmountMismatch)
	}

	paymentDate := time.Now().UTC()
	if req.PaymentDate != nil {
		paymentDate = *req.PaymentDate
	}

	key := s.IdempotencyGenerator.GenerateKey(idempotency.ScopePayment, map[string]interface{}{
		"invoice_id": id,
	})

	p := &payment.Payment{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:      id,
		Amount:         amount,
		PaymentMethod:  req.PaymentMethod,
		PaymentDate:    paymentDate,
		Reference:      req.Reference,
		IdempotencyKey: &key,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		// The compare-and-set on invoice status makes exactly one of any
		// concurrent payment attempts succeed.
		if err := s.InvoiceRepo.RecordPayment(ctx, id, amount); err != nil {
			return err
		}
		return s.PaymentRepo.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("recorded payment",
		"payment_id", p.ID,
		"invoice_id", id,
		"amount", amount,
		"payment_method", req.PaymentMethod,
	)

	s.Dispatcher.DispatchAsync(&notification.Event{
		Type:       notification.EventInvoicePaid,
		CustomerID: inv.CustomerID,
		Payload: map[string]any{
			"invoice_id": inv.ID,
			"payment_id": p.ID,
			"amount":     amount,
		},
	})

	return &dto.PaymentResponse{Payment: p}, nil
}

func (s *invoiceService) CancelInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := types.ValidateInvoiceTransition(inv.InvoiceStatus, types.InvoiceStatusCancelled); err != nil {
		return nil, err
	}

	if err := s.InvoiceRepo.UpdateStatus(ctx, id, inv.InvoiceStatus, types.InvoiceStatusCancelled); err != nil {
		return nil, err
	}
	inv.InvoiceStatus = types.InvoiceStatusCancelled
	s.Logger.Infow("cancelled invoice", "invoice_id", id)
	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) BackToDraft(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := types.ValidateInvoiceTransition(inv.InvoiceStatus, types.InvoiceStatusDraft); err != nil {
		return nil, err
	}

	if err := s.InvoiceRepo.UpdateStatus(ctx, id, inv.InvoiceStatus, types.InvoiceStatusDraft); err != nil {
		return nil, err
	}
	inv.InvoiceStatus = types.InvoiceStatusDraft
	s.Logger.Infow("reopened invoice", "invoice_id", id)
	return &dto.InvoiceResponse{Invoice: inv}, nil
}

func (s *invoiceService) taxLookup(ctx context.Context) pricing.TaxLookup {
	return func(taxID string) (decimal.Decimal, error) {
		tax, err := s.CatalogRepo.GetTax(ctx, taxID)
		if err != nil {
			return decimal.Zero, err
		}
		return tax.RatePercent, nil
	}
}
