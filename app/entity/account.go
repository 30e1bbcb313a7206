package entity

import "time"

// Account is the billed entity behind a bill: a registered business or a
// rated property, selected by the bill's type. Its running counters move
// with the bill's balance in the same transaction, never independently.
type Account struct {
	ID uint64

	AccountNumber string
	Name          string

	AmountPayableCents    int64
	PreviousPaymentsCents int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
