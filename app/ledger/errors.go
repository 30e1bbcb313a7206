package ledger

import (
	"errors"
	"strings"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrBillNotFound    = errors.New("bill not found or not payable")

	// ErrPersistence wraps a transaction that could not commit. No
	// partial state survives it.
	ErrPersistence = errors.New("ledger transaction failed")
)

// ValidationError lists every constraint a create request violated, so
// the caller can fix all of them in one round trip.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
