package entity

import "time"

type BillStatus string

const (
	BillStatusPending       BillStatus = "pending"
	BillStatusPartiallyPaid BillStatus = "partially_paid"
	BillStatusPaid          BillStatus = "paid"
)

type BillType string

const (
	BillTypeBusiness BillType = "business"
	BillTypeProperty BillType = "property"
)

// Bill is the payable obligation being settled. AmountPayableCents only
// ever decreases, floored at zero, inside a ledger transaction.
type Bill struct {
	ID uint64

	BillNumber string
	BillType   BillType
	AccountID  uint64

	AmountPayableCents int64
	Status             BillStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (b *Bill) Payable() bool {
	return b.AmountPayableCents > 0 && b.Status != BillStatusPaid
}
