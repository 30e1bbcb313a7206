package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/civicpay-solutions/ms-go-revenue-payments/app/entity"
)

var ErrBillNotFound = errors.New("bill not found")

const billColumns = `id, bill_number, bill_type, account_id,
	amount_payable_cents, status, created_at, updated_at`

type BillRepository struct {
	db DBTX
}

func NewBillRepository(db DBTX) *BillRepository {
	return &BillRepository{db: db}
}

func (r *BillRepository) FindByID(ctx context.Context, id uint64) (*entity.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = ?`
	return r.findOne(ctx, query, id)
}

// FindByIDForUpdate takes a row lock; only valid inside a transaction.
func (r *BillRepository) FindByIDForUpdate(ctx context.Context, id uint64) (*entity.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = ? FOR UPDATE`
	return r.findOne(ctx, query, id)
}

func (r *BillRepository) Update(ctx context.Context, bill *entity.Bill) error {
	query := `
		UPDATE bills SET
			amount_payable_cents = ?,
			status = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		bill.AmountPayableCents,
		string(bill.Status),
		bill.UpdatedAt,
		bill.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBillNotFound
	}

	return nil
}

func (r *BillRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Bill, error) {
	bill := &entity.Bill{}
	var billType, status string

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&bill.ID,
		&bill.BillNumber,
		&billType,
		&bill.AccountID,
		&bill.AmountPayableCents,
		&status,
		&bill.CreatedAt,
		&bill.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	bill.BillType = entity.BillType(billType)
	bill.Status = entity.BillStatus(status)
	return bill, nil
}
