package entity

import "time"

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

// Terminal reports whether no further status transition is allowed.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusSuccessful, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	default:
		return false
	}
}

type PaymentMethod string

const (
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
)

// Payment is one attempt to settle a bill. Rows are never deleted and,
// after creation, the ledger is the only writer.
type Payment struct {
	ID uint64

	Reference     string
	BillID        uint64
	BillNumber    string
	AccountNumber string

	AmountCents int64
	Currency    string

	Method   PaymentMethod
	Provider string

	Status PaymentStatus

	PayerName  string
	PayerEmail string
	PayerPhone string

	ProviderTxnID *string
	FailureReason *string

	// Notes carries payer metadata and the latest raw provider payload
	// for the audit trail.
	Notes map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}
