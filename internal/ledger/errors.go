package ledger

import "errors"

// Validation failures. Nothing is written when one is returned.
var (
	ErrAmountRequired    = errors.New("amount is required")
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	ErrNegativeQuantity  = errors.New("new quantity must not be negative")
	ErrReasonRequired    = errors.New("a reason is required for adjustments")
	ErrUnknownAction     = errors.New("unknown action")
)

// State conflicts. Nothing is written when one is returned.
var (
	ErrItemNotFound      = errors.New("item not found or inactive")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// IsValidation reports whether err is a caller input problem.
func IsValidation(err error) bool {
	return errors.Is(err, ErrAmountRequired) ||
		errors.Is(err, ErrNonPositiveAmount) ||
		errors.Is(err, ErrNegativeQuantity) ||
		errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, ErrUnknownAction)
}
