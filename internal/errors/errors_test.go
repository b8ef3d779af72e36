package errors

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewErrorResponse(t *testing.T) {
	err := NewError("payment amount mismatch").
		WithHint("Payment does not match the invoice total").
		WithAmountDetails("inv_1", decimal.NewFromInt(100), decimal.NewFromInt(575)).
		Mark(ErrAmountMismatch)

	resp := NewErrorResponse(err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Payment does not match the invoice total", resp.Error.Display)
	assert.Equal(t, "inv_1", resp.Error.Details["document_id"])
	assert.Equal(t, "100", resp.Error.Details["amount"])
	assert.Equal(t, "575", resp.Error.Details["expected"])
}

func TestNewErrorResponseWithoutHint(t *testing.T) {
	resp := NewErrorResponse(NewError("boom").Mark(ErrSystem))
	assert.Equal(t, "An unexpected error occurred", resp.Error.Display)
}

func TestHTTPStatusFromErr(t *testing.T) {
	assert.Equal(t, http.StatusNotFound,
		HTTPStatusFromErr(NewError("missing").Mark(ErrNotFound)))
	assert.Equal(t, http.StatusConflict,
		HTTPStatusFromErr(NewError("raced").Mark(ErrIllegalTransition)))
	assert.Equal(t, http.StatusInternalServerError,
		HTTPStatusFromErr(NewError("unmarked").Error()))
}
