package service

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrProviderUnsupported = errors.New("provider is not supported")
	ErrCallbackRejected    = errors.New("callback rejected")
)

// InitiationError reports a provider rejection that happened after the
// pending payment was already recorded; Reference identifies that
// attempt so the caller can surface it.
type InitiationError struct {
	Reference string
	Err       error
}

func (e *InitiationError) Error() string {
	return "payment initiation failed for " + e.Reference + ": " + e.Err.Error()
}

func (e *InitiationError) Unwrap() error { return e.Err }
