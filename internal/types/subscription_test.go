package types

import (
	"testing"

	"github.com/stretchr/testify/assert"

	ierr "github.com/renewly/renewly/internal/errors"
)

func TestNextSubscriptionStatus(t *testing.T) {
	cases := []struct {
		from   SubscriptionStatus
		action SubscriptionAction
		to     SubscriptionStatus
		ok     bool
	}{
		{SubscriptionStatusDraft, SubscriptionActionToQuotation, SubscriptionStatusQuotation, true},
		{SubscriptionStatusQuotation, SubscriptionActionConfirm, SubscriptionStatusConfirmed, true},
		{SubscriptionStatusConfirmed, SubscriptionActionActivate, SubscriptionStatusActive, true},
		{SubscriptionStatusActive, SubscriptionActionPause, SubscriptionStatusPaused, true},
		{SubscriptionStatusPaused, SubscriptionActionActivate, SubscriptionStatusActive, true},
		{SubscriptionStatusActive, SubscriptionActionClose, SubscriptionStatusClosed, true},
		{SubscriptionStatusConfirmed, SubscriptionActionCancel, SubscriptionStatusCancelled, true},
		{SubscriptionStatusCancelled, SubscriptionActionBackToDraft, SubscriptionStatusDraft, true},

		{SubscriptionStatusDraft, SubscriptionActionConfirm, "", false},
		{SubscriptionStatusDraft, SubscriptionActionActivate, "", false},
		{SubscriptionStatusConfirmed, SubscriptionActionToQuotation, "", false},
		{SubscriptionStatusClosed, SubscriptionActionActivate, "", false},
		{SubscriptionStatusCancelled, SubscriptionActionConfirm, "", false},
		{SubscriptionStatusPaused, SubscriptionActionPause, "", false},
	}

	for _, tc := range cases {
		got, err := NextSubscriptionStatus(tc.from, tc.action)
		if tc.ok {
			assert.NoError(t, err, "%s from %s", tc.action, tc.from)
			assert.Equal(t, tc.to, got)
		} else {
			assert.Error(t, err, "%s from %s", tc.action, tc.from)
			assert.True(t, ierr.IsIllegalTransition(err))
		}
	}
}

func TestNextSubscriptionStatusUnknownAction(t *testing.T) {
	_, err := NextSubscriptionStatus(SubscriptionStatusDraft, SubscriptionAction("explode"))
	assert.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestLinesMutable(t *testing.T) {
	assert.True(t, SubscriptionStatusDraft.LinesMutable())
	assert.True(t, SubscriptionStatusQuotation.LinesMutable())
	assert.False(t, SubscriptionStatusConfirmed.LinesMutable())
	assert.False(t, SubscriptionStatusActive.LinesMutable())
	assert.False(t, SubscriptionStatusCancelled.LinesMutable())
}

func TestValidateInvoiceTransition(t *testing.T) {
	assert.NoError(t, ValidateInvoiceTransition(InvoiceStatusDraft, InvoiceStatusConfirmed))
	assert.NoError(t, ValidateInvoiceTransition(InvoiceStatusDraft, InvoiceStatusCancelled))
	assert.NoError(t, ValidateInvoiceTransition(InvoiceStatusConfirmed, InvoiceStatusPaid))
	assert.NoError(t, ValidateInvoiceTransition(InvoiceStatusConfirmed, InvoiceStatusCancelled))
	assert.NoError(t, ValidateInvoiceTransition(InvoiceStatusCancelled, InvoiceStatusDraft))

	// Paid is terminal; drafts cannot jump straight to paid
	assert.Error(t, ValidateInvoiceTransition(InvoiceStatusPaid, InvoiceStatusCancelled))
	assert.Error(t, ValidateInvoiceTransition(InvoiceStatusPaid, InvoiceStatusDraft))
	assert.Error(t, ValidateInvoiceTransition(InvoiceStatusDraft, InvoiceStatusPaid))
}
