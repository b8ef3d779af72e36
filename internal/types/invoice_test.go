package types

import (
	"testing"

	"github.com/stretchr/testify/assert"

	ierr "github.com/renewly/renewly/internal/errors"
)

func TestInvoiceStatusValidate(t *testing.T) {
	assert.NoError(t, InvoiceStatusDraft.Validate())
	assert.NoError(t, InvoiceStatusConfirmed.Validate())
	assert.NoError(t, InvoiceStatusPaid.Validate())
	assert.NoError(t, InvoiceStatusCancelled.Validate())

	err := InvoiceStatus("archived").Validate()
	assert.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestInvoiceBillingReasonValidate(t *testing.T) {
	assert.NoError(t, InvoiceBillingReasonCheckout.Validate())
	assert.NoError(t, InvoiceBillingReasonSubscriptionCycle.Validate())
	assert.NoError(t, InvoiceBillingReasonManual.Validate())

	err := InvoiceBillingReason("refund").Validate()
	assert.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}
