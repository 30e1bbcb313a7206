package provider

import (
	"errors"
	"fmt"
)

var (
	ErrProviderNotSupported = errors.New("provider is not supported")
	ErrBadSignature         = errors.New("webhook signature mismatch")
)

// ProviderError marks a failure talking to or understanding an external
// provider. It is always retryable from the client's point of view.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s failed: status=%d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newProviderError(provider, op string, statusCode int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, StatusCode: statusCode, Err: err}
}
