package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/renewly/renewly/internal/domain/invoice"
	"github.com/renewly/renewly/internal/domain/payment"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/renewly/renewly/internal/types"
	"github.com/renewly/renewly/internal/validator"
)

// GenerateInvoiceRequest generates an invoice from a subscription
type GenerateInvoiceRequest struct {
	SubscriptionID string `json:"subscription_id" binding:"required"`
}

// RecordPaymentRequest records a payment against a confirmed invoice.
// Amount defaults to the invoice total when omitted.
type RecordPaymentRequest struct {
	Amount        *decimal.Decimal    `json:"amount,omitempty"`
	PaymentMethod types.PaymentMethod `json:"payment_method" binding:"required"`
	PaymentDate   *time.Time          `json:"payment_date,omitempty"`
	Reference     string              `json:"reference,omitempty"`
}

// InvoiceResponse is the API shape of an invoice
type InvoiceResponse struct {
	*invoice.Invoice
}

// PaymentResponse is the API shape of a payment
type PaymentResponse struct {
	*payment.Payment
}

// ListInvoicesResponse is a paginated invoice list
type ListInvoicesResponse = types.ListResponse[*InvoiceResponse]

func (r *GenerateInvoiceRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *RecordPaymentRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.PaymentMethod.Validate(); err != nil {
		return err
	}
	if r.Amount != nil && r.Amount.LessThanOrEqual(decimal.Zero) {
		return ierr.NewError("invalid payment amount").
			WithHint("Payment amount must be greater than zero").
			WithReportableDetails(map[string]any{
				"amount": r.Amount,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
