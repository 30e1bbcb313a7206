package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/civicpay-solutions/ms-go-revenue-payments/app/entity"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/ledger"
)

// LedgerStore backs the ledger with MySQL. InTx gives the ledger a
// row-locked view over one transaction; everything inside commits or
// rolls back together.
type LedgerStore struct {
	db       *sql.DB
	payments *PaymentRepository
	bills    *BillRepository
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{
		db:       db,
		payments: NewPaymentRepository(db),
		bills:    NewBillRepository(db),
	}
}

func (s *LedgerStore) CreatePayment(ctx context.Context, payment *entity.Payment) error {
	return s.payments.Create(ctx, payment)
}

func (s *LedgerStore) FindBillByID(ctx context.Context, id uint64) (*entity.Bill, error) {
	return s.bills.FindByID(ctx, id)
}

func (s *LedgerStore) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	wrapped := &ledgerTx{
		payments: NewPaymentRepository(sqlTx),
		bills:    NewBillRepository(sqlTx),
		db:       sqlTx,
	}

	if err := fn(ctx, wrapped); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			// %w keeps the ledger's sentinels matchable through errors.Is.
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	return sqlTx.Commit()
}

type ledgerTx struct {
	payments *PaymentRepository
	bills    *BillRepository
	db       DBTX
}

func (t *ledgerTx) GetPaymentForUpdate(ctx context.Context, id uint64) (*entity.Payment, error) {
	return t.payments.FindByIDForUpdate(ctx, id)
}

func (t *ledgerTx) UpdatePayment(ctx context.Context, payment *entity.Payment) error {
	return t.payments.Update(ctx, payment)
}

func (t *ledgerTx) GetBillForUpdate(ctx context.Context, id uint64) (*entity.Bill, error) {
	return t.bills.FindByIDForUpdate(ctx, id)
}

func (t *ledgerTx) UpdateBill(ctx context.Context, bill *entity.Bill) error {
	return t.bills.Update(ctx, bill)
}

// CreditAccount applies the same delta the bill absorbed to the owning
// account: amount_payable down (floored at zero), previous_payments up.
func (t *ledgerTx) CreditAccount(ctx context.Context, billType entity.BillType, accountID uint64, deltaCents int64) error {
	var table string
	switch billType {
	case entity.BillTypeBusiness:
		table = "businesses"
	case entity.BillTypeProperty:
		table = "properties"
	default:
		return fmt.Errorf("unknown bill type %q", billType)
	}

	query := `
		UPDATE ` + table + ` SET
			amount_payable_cents = GREATEST(amount_payable_cents - ?, 0),
			previous_payments_cents = previous_payments_cents + ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := t.db.ExecContext(ctx, query, deltaCents, deltaCents, time.Now().UTC(), accountID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("account %d not found in %s", accountID, table)
	}

	return nil
}
