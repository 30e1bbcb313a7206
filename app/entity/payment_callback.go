package entity

import "time"

const (
	CallbackStatusProcessed int32 = 10
	CallbackStatusIgnored   int32 = 15
	CallbackStatusRejected  int32 = 20
)

// PaymentCallback stores every webhook we receive, accepted or not,
// with its raw payload for the audit trail.
type PaymentCallback struct {
	ID uint64

	PaymentID *uint64

	Provider    string
	Reference   string
	Signature   string
	PayloadJSON string
	Status      int32
	Error       *string

	CreatedAt time.Time
}
