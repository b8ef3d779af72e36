package types

import (
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/samber/lo"
)

// PaymentMethod is how an invoice was settled
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCheck        PaymentMethod = "check"
)

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) Validate() error {
	allowed := []PaymentMethod{
		PaymentMethodCreditCard,
		PaymentMethodBankTransfer,
		PaymentMethodCash,
		PaymentMethodCheck,
	}
	if !lo.Contains(allowed, m) {
		return ierr.NewError("invalid payment method").
			WithHint("Invalid payment method").
			WithReportableDetails(map[string]any{
				"payment_method": m,
				"allowed_values": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
