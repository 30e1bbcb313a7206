// Package ledger is the transactional core of payment reconciliation.
// It is the only component that mutates payment, bill, and account rows,
// and it always mutates them together or not at all.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/civicpay-solutions/ms-go-revenue-payments/app/entity"
)

// Tx is the row-locked view of the ledger tables inside one database
// transaction. GetPaymentForUpdate and GetBillForUpdate hold their row
// locks until the transaction ends, which closes the race between a
// webhook and a concurrent client poll.
type Tx interface {
	GetPaymentForUpdate(ctx context.Context, id uint64) (*entity.Payment, error)
	UpdatePayment(ctx context.Context, payment *entity.Payment) error
	GetBillForUpdate(ctx context.Context, id uint64) (*entity.Bill, error)
	UpdateBill(ctx context.Context, bill *entity.Bill) error
	CreditAccount(ctx context.Context, billType entity.BillType, accountID uint64, deltaCents int64) error
}

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	CreatePayment(ctx context.Context, payment *entity.Payment) error
	FindBillByID(ctx context.Context, id uint64) (*entity.Bill, error)
}

type eventRecorder interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
}

// Outcome is what a provider reported about a payment attempt. Raw and
// Notes are stashed in the payment notes for the audit trail. The
// payment's ProviderTxnID is its provider verification key: it is set
// once and never overwritten, because providers report other ids (a
// settlement id, a checkout handle) that cannot be used to look the
// payment up again.
type Outcome struct {
	ProviderTxnID  *string
	ProviderStatus string
	Raw            string
	Notes          map[string]string
}

type CreatePaymentInput struct {
	BillID        uint64 `validate:"required"`
	BillNumber    string
	AccountNumber string `validate:"required"`

	AmountCents int64 `validate:"gt=0"`

	Method   entity.PaymentMethod `validate:"required"`
	Provider string               `validate:"required"`

	PayerName  string `validate:"required"`
	PayerEmail string `validate:"required,email"`
	PayerPhone string `validate:"required"`

	Notes map[string]string
}

type Ledger struct {
	store    Store
	events   eventRecorder
	validate *validator.Validate
	dialCode string
	currency string
	logger   logrus.FieldLogger
}

func New(store Store, events eventRecorder, dialCode, currency string, logger logrus.FieldLogger) *Ledger {
	return &Ledger{
		store:    store,
		events:   events,
		validate: validator.New(),
		dialCode: dialCode,
		currency: currency,
		logger:   logger,
	}
}

// CreatePending validates the request and inserts a pending payment
// with a fresh system reference. All violated constraints are reported
// together; the bill must exist and still be payable, and the amount
// must not exceed its outstanding balance at read time.
func (l *Ledger) CreatePending(ctx context.Context, input *CreatePaymentInput) (*entity.Payment, error) {
	violations := make([]string, 0, 4)

	normalizedPhone, phoneErr := NormalizePhone(input.PayerPhone, l.dialCode)
	if input.PayerPhone != "" && phoneErr != nil {
		violations = append(violations, "payerPhone is not a valid phone number")
	}

	if err := l.validate.Struct(input); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrors {
				violations = append(violations, describeViolation(fe))
			}
		} else {
			return nil, err
		}
	}

	bill, err := l.store.FindBillByID(ctx, input.BillID)
	if err != nil {
		return nil, err
	}
	if bill == nil || !bill.Payable() {
		return nil, ErrBillNotFound
	}
	if input.AmountCents > bill.AmountPayableCents {
		violations = append(violations, "amount exceeds the bill's outstanding payable")
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	now := time.Now().UTC()
	payment := &entity.Payment{
		Reference:     newReference(now),
		BillID:        bill.ID,
		BillNumber:    bill.BillNumber,
		AccountNumber: strings.TrimSpace(input.AccountNumber),
		AmountCents:   input.AmountCents,
		Currency:      l.currency,
		Method:        input.Method,
		Provider:      strings.ToLower(strings.TrimSpace(input.Provider)),
		Status:        entity.PaymentStatusPending,
		PayerName:     strings.TrimSpace(input.PayerName),
		PayerEmail:    strings.TrimSpace(input.PayerEmail),
		PayerPhone:    normalizedPhone,
		Notes:         cloneNotes(input.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := l.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	l.recordEvent(ctx, payment.ID, "payment_created", nil, payment.Status, "")

	return payment, nil
}

// ApplySuccess marks the payment successful and applies its amount to
// the bill and the owning account as one atomic unit. A payment that is
// already terminal is left untouched and the call reports success, so
// duplicate provider notifications are harmless. The returned bool says
// whether the transition happened in this call; callers gate payer
// notifications on it so a concurrent webhook and poll never both send.
func (l *Ledger) ApplySuccess(ctx context.Context, paymentID uint64, outcome Outcome) (bool, error) {
	var applied bool
	var oldStatus entity.PaymentStatus

	err := l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		payment, err := tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return ErrPaymentNotFound
		}
		if payment.Status.Terminal() {
			if payment.Status != entity.PaymentStatusSuccessful {
				l.logger.WithFields(logrus.Fields{
					"payment_id": paymentID,
					"status":     payment.Status,
				}).Warn("Ignoring success outcome for payment already in a terminal state")
			}
			return nil
		}

		oldStatus = payment.Status
		now := time.Now().UTC()

		payment.Status = entity.PaymentStatusSuccessful
		stashOutcome(payment, outcome)
		payment.UpdatedAt = now
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return err
		}

		bill, err := tx.GetBillForUpdate(ctx, payment.BillID)
		if err != nil {
			return err
		}
		if bill == nil {
			return ErrBillNotFound
		}

		delta := payment.AmountCents
		if delta > bill.AmountPayableCents {
			delta = bill.AmountPayableCents
		}
		bill.AmountPayableCents -= delta
		if bill.AmountPayableCents == 0 {
			bill.Status = entity.BillStatusPaid
		} else {
			bill.Status = entity.BillStatusPartiallyPaid
		}
		bill.UpdatedAt = now
		if err := tx.UpdateBill(ctx, bill); err != nil {
			return err
		}

		if err := tx.CreditAccount(ctx, bill.BillType, bill.AccountID, delta); err != nil {
			return err
		}

		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) || errors.Is(err, ErrBillNotFound) {
			return false, err
		}
		l.logger.WithError(err).WithField("payment_id", paymentID).Error("Success transaction rolled back")
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if applied {
		old := oldStatus
		l.recordEvent(ctx, paymentID, "payment_succeeded", &old, entity.PaymentStatusSuccessful, outcome.Raw)
	}

	return applied, nil
}

// ApplyFailure moves a pending payment to failed or cancelled. Bill and
// account rows are untouched; a terminal payment is never overridden.
// The returned bool reports whether this call made the transition.
func (l *Ledger) ApplyFailure(ctx context.Context, paymentID uint64, target entity.PaymentStatus, reason string, outcome Outcome) (bool, error) {
	if target != entity.PaymentStatusFailed && target != entity.PaymentStatusCancelled {
		return false, fmt.Errorf("invalid failure status %q", target)
	}

	var applied bool
	var oldStatus entity.PaymentStatus

	err := l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		payment, err := tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return ErrPaymentNotFound
		}
		if payment.Status.Terminal() {
			if payment.Status == entity.PaymentStatusSuccessful {
				l.logger.WithField("payment_id", paymentID).Warn("Ignoring failure outcome for payment already successful")
			}
			return nil
		}

		oldStatus = payment.Status
		now := time.Now().UTC()

		payment.Status = target
		reason = strings.TrimSpace(reason)
		if reason != "" {
			payment.FailureReason = &reason
		}
		stashOutcome(payment, outcome)
		payment.UpdatedAt = now

		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return err
		}

		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return false, err
		}
		l.logger.WithError(err).WithField("payment_id", paymentID).Error("Failure transaction rolled back")
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if applied {
		old := oldStatus
		l.recordEvent(ctx, paymentID, "payment_"+string(target), &old, target, outcome.Raw)
	}

	return applied, nil
}

// RecordPending stores the latest raw provider outcome on a payment
// without changing its status, keeping intermediate provider state in
// the audit trail.
func (l *Ledger) RecordPending(ctx context.Context, paymentID uint64, outcome Outcome) error {
	err := l.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		payment, err := tx.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return ErrPaymentNotFound
		}
		if payment.Status.Terminal() {
			return nil
		}

		stashOutcome(payment, outcome)
		payment.UpdatedAt = time.Now().UTC()
		return tx.UpdatePayment(ctx, payment)
	})
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// ApplyStatus dispatches a canonical provider outcome to the matching
// transition. The returned bool reports whether a terminal transition
// happened in this call; recording a still-pending outcome is never a
// transition.
func (l *Ledger) ApplyStatus(ctx context.Context, paymentID uint64, status entity.PaymentStatus, outcome Outcome) (bool, error) {
	switch status {
	case entity.PaymentStatusSuccessful:
		return l.ApplySuccess(ctx, paymentID, outcome)
	case entity.PaymentStatusFailed, entity.PaymentStatusCancelled:
		reason := outcome.ProviderStatus
		if reason == "" {
			reason = string(status)
		}
		return l.ApplyFailure(ctx, paymentID, status, "provider reported "+reason, outcome)
	default:
		return false, l.RecordPending(ctx, paymentID, outcome)
	}
}

func (l *Ledger) recordEvent(ctx context.Context, paymentID uint64, eventType string, oldStatus *entity.PaymentStatus, newStatus entity.PaymentStatus, raw string) {
	event := &entity.PaymentEvent{
		PaymentID: paymentID,
		EventType: eventType,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		CreatedAt: time.Now().UTC(),
	}
	if raw != "" {
		event.PayloadJSON = &raw
	}
	if err := l.events.Create(ctx, event); err != nil {
		l.logger.WithError(err).WithField("payment_id", paymentID).Warn("Failed to record payment event")
	}
}

func stashOutcome(payment *entity.Payment, outcome Outcome) {
	if payment.Notes == nil {
		payment.Notes = map[string]string{}
	}
	if outcome.Raw != "" {
		payment.Notes["provider_payload"] = outcome.Raw
	}
	if outcome.ProviderStatus != "" {
		payment.Notes["provider_status"] = outcome.ProviderStatus
	}
	for k, v := range outcome.Notes {
		payment.Notes[k] = v
	}
	if outcome.ProviderTxnID != nil {
		reported := strings.TrimSpace(*outcome.ProviderTxnID)
		switch {
		case reported == "":
		case payment.ProviderTxnID == nil || strings.TrimSpace(*payment.ProviderTxnID) == "":
			payment.ProviderTxnID = &reported
		case *payment.ProviderTxnID != reported:
			payment.Notes["provider_reported_txn_id"] = reported
		}
	}
}

func newReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "PAY-" + now.Format("20060102150405") + "-" + suffix
}

func describeViolation(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

func cloneNotes(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
