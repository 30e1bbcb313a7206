package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/civicpay-solutions/ms-go-revenue-payments/app/entity"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")
)

const paymentColumns = `id, reference, bill_id, bill_number, account_number,
	amount_cents, currency, method, provider, status,
	payer_name, payer_email, payer_phone,
	provider_txn_id, failure_reason, notes_json,
	created_at, updated_at`

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	notesJSON, err := serializeNotes(payment.Notes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payments (
			reference, bill_id, bill_number, account_number,
			amount_cents, currency, method, provider, status,
			payer_name, payer_email, payer_phone,
			provider_txn_id, failure_reason, notes_json,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.Reference,
		payment.BillID,
		payment.BillNumber,
		payment.AccountNumber,
		payment.AmountCents,
		payment.Currency,
		string(payment.Method),
		payment.Provider,
		string(payment.Status),
		payment.PayerName,
		payment.PayerEmail,
		payment.PayerPhone,
		nullableStringValue(payment.ProviderTxnID),
		nullableStringValue(payment.FailureReason),
		notesJSON,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	payment.ID = uint64(id)
	return nil
}

func (r *PaymentRepository) Update(ctx context.Context, payment *entity.Payment) error {
	notesJSON, err := serializeNotes(payment.Notes)
	if err != nil {
		return err
	}

	query := `
		UPDATE payments SET
			status = ?,
			provider_txn_id = ?,
			failure_reason = ?,
			notes_json = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(payment.Status),
		nullableStringValue(payment.ProviderTxnID),
		nullableStringValue(payment.FailureReason),
		notesJSON,
		payment.UpdatedAt,
		payment.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentNotFound
	}

	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uint64) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	return r.findOne(ctx, query, id)
}

// FindByIDForUpdate takes a row lock; only valid inside a transaction.
func (r *PaymentRepository) FindByIDForUpdate(ctx context.Context, id uint64) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ? FOR UPDATE`
	return r.findOne(ctx, query, id)
}

func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference = ? LIMIT 1`
	return r.findOne(ctx, query, reference)
}

func (r *PaymentRepository) FindByReferenceAndBill(ctx context.Context, reference string, billID uint64) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference = ? AND bill_id = ? LIMIT 1`
	return r.findOne(ctx, query, reference, billID)
}

// ListStalePending returns pending payments with a known provider
// transaction id that have not moved since before.
func (r *PaymentRepository) ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ?
		  AND provider_txn_id IS NOT NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`
	return r.list(ctx, query, string(entity.PaymentStatusPending), before, limit)
}

// ListExpiredPending returns pending payments created before cutoff.
func (r *PaymentRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ?
		  AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`
	return r.list(ctx, query, string(entity.PaymentStatusPending), cutoff, limit)
}

func (r *PaymentRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Payment, error) {
	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, args...), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *PaymentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var method, status string
	var providerTxnID sql.NullString
	var failureReason sql.NullString
	var notesJSON string

	err := scan.Scan(
		&payment.ID,
		&payment.Reference,
		&payment.BillID,
		&payment.BillNumber,
		&payment.AccountNumber,
		&payment.AmountCents,
		&payment.Currency,
		&method,
		&payment.Provider,
		&status,
		&payment.PayerName,
		&payment.PayerEmail,
		&payment.PayerPhone,
		&providerTxnID,
		&failureReason,
		&notesJSON,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	payment.Method = entity.PaymentMethod(method)
	payment.Status = entity.PaymentStatus(status)
	payment.ProviderTxnID = stringPtrFromNull(providerTxnID)
	payment.FailureReason = stringPtrFromNull(failureReason)

	notes, err := parseNotes(notesJSON)
	if err != nil {
		return err
	}
	payment.Notes = notes

	return nil
}
