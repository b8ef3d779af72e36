package types

import (
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus is the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusConfirmed InvoiceStatus = "confirmed"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusConfirmed,
		InvoiceStatusPaid,
		InvoiceStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Invalid invoice status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// invoiceStatusTransitions is the authoritative transition table for
// invoices. cancelled -> draft is the administrative back-to-draft path.
var invoiceStatusTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:     {InvoiceStatusConfirmed, InvoiceStatusCancelled},
	InvoiceStatusConfirmed: {InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusPaid:      {},
	InvoiceStatusCancelled: {InvoiceStatusDraft},
}

// ValidateInvoiceTransition returns an illegal transition error when the
// requested status change is not in the transition table.
func ValidateInvoiceTransition(from, to InvoiceStatus) error {
	if lo.Contains(invoiceStatusTransitions[from], to) {
		return nil
	}
	return ierr.NewError("illegal invoice transition").
		WithHintf("Cannot move an invoice from %s to %s", from, to).
		WithReportableDetails(map[string]any{
			"from":       from,
			"to":         to,
			"allowed_to": invoiceStatusTransitions[from],
		}).
		Mark(ierr.ErrIllegalTransition)
}

// InvoiceBillingReason records why an invoice was created
type InvoiceBillingReason string

const (
	InvoiceBillingReasonCheckout          InvoiceBillingReason = "checkout"
	InvoiceBillingReasonSubscriptionCycle InvoiceBillingReason = "subscription_cycle"
	InvoiceBillingReasonManual            InvoiceBillingReason = "manual"
)

func (r InvoiceBillingReason) Validate() error {
	allowed := []InvoiceBillingReason{
		InvoiceBillingReasonCheckout,
		InvoiceBillingReasonSubscriptionCycle,
		InvoiceBillingReasonManual,
	}
	if !lo.Contains(allowed, r) {
		return ierr.NewError("invalid invoice billing reason").
			WithHint("Invalid invoice billing reason").
			WithReportableDetails(map[string]any{
				"billing_reason":  r,
				"allowed_reasons": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// InvoiceDefaultDueDays is the default payment window for generated invoices
const InvoiceDefaultDueDays = 30
