package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Sentinel errors shared across the billing engine. Services mark
// errors with exactly one of these so callers can match with errors.Is
// and the HTTP layer can map them to status codes.
var (
	ErrNotFound              = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists         = new(ErrCodeAlreadyExists, "resource already exists")
	ErrValidation            = new(ErrCodeValidation, "validation error")
	ErrInvalidOperation      = new(ErrCodeInvalidOperation, "invalid operation")
	ErrIllegalTransition     = new(ErrCodeIllegalTransition, "illegal status transition")
	ErrConflict              = new(ErrCodeConflict, "referential integrity conflict")
	ErrAmountMismatch        = new(ErrCodeAmountMismatch, "payment amount mismatch")
	ErrAlreadyPaid           = new(ErrCodeAlreadyPaid, "invoice already paid")
	ErrUsageLimitExceeded    = new(ErrCodeUsageLimitExceeded, "discount usage limit exceeded")
	ErrDiscountExpired       = new(ErrCodeDiscountExpired, "discount not valid at this time")
	ErrDiscountScopeMismatch = new(ErrCodeDiscountScopeMismatch, "discount does not apply to these products")
	ErrEmptyCart             = new(ErrCodeEmptyCart, "cart is empty")
	ErrPermissionDenied      = new(ErrCodePermissionDenied, "permission denied")
	ErrDatabase              = new(ErrCodeDatabase, "database error")
	ErrSystem                = new(ErrCodeSystemError, "system error")

	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrNotFound:              http.StatusNotFound,
		ErrAlreadyExists:         http.StatusConflict,
		ErrValidation:            http.StatusBadRequest,
		ErrInvalidOperation:      http.StatusBadRequest,
		ErrIllegalTransition:     http.StatusConflict,
		ErrConflict:              http.StatusConflict,
		ErrAmountMismatch:        http.StatusBadRequest,
		ErrAlreadyPaid:           http.StatusConflict,
		ErrUsageLimitExceeded:    http.StatusUnprocessableEntity,
		ErrDiscountExpired:       http.StatusUnprocessableEntity,
		ErrDiscountScopeMismatch: http.StatusUnprocessableEntity,
		ErrEmptyCart:             http.StatusBadRequest,
		ErrPermissionDenied:      http.StatusForbidden,
		ErrDatabase:              http.StatusInternalServerError,
		ErrSystem:                http.StatusInternalServerError,
	}
)

const (
	ErrCodeNotFound              = "not_found"
	ErrCodeAlreadyExists         = "already_exists"
	ErrCodeValidation            = "validation_error"
	ErrCodeInvalidOperation      = "invalid_operation"
	ErrCodeIllegalTransition     = "illegal_transition"
	ErrCodeConflict              = "conflict"
	ErrCodeAmountMismatch        = "amount_mismatch"
	ErrCodeAlreadyPaid           = "already_paid"
	ErrCodeUsageLimitExceeded    = "usage_limit_exceeded"
	ErrCodeDiscountExpired       = "discount_expired"
	ErrCodeDiscountScopeMismatch = "discount_scope_mismatch"
	ErrCodeEmptyCart             = "empty_cart"
	ErrCodePermissionDenied      = "permission_denied"
	ErrCodeDatabase              = "database_error"
	ErrCodeSystemError           = "system_error"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsIllegalTransition checks if an error is a state machine violation
func IsIllegalTransition(err error) bool {
	return errors.Is(err, ErrIllegalTransition)
}

// IsConflict checks if an error is a referential integrity conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsAlreadyPaid checks if an error is a repeated payment attempt
func IsAlreadyPaid(err error) bool {
	return errors.Is(err, ErrAlreadyPaid)
}

// IsUsageLimitExceeded checks if an error is a discount over-redemption
func IsUsageLimitExceeded(err error) bool {
	return errors.Is(err, ErrUsageLimitExceeded)
}

// IsDiscountExpired checks if an error is a discount outside its
// validity window
func IsDiscountExpired(err error) bool {
	return errors.Is(err, ErrDiscountExpired)
}

// ErrorMessage returns the user-facing message for an error, preferring
// the first hint attached by the builder.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		return hints[0]
	}
	return err.Error()
}

func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}
