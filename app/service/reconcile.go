package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/civicpay-solutions/ms-go-revenue-payments/app/entity"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/ledger"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/notify"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/provider"
	"github.com/civicpay-solutions/ms-go-revenue-payments/config"
)

const (
	VerifyStatusCompleted = "completed"
	VerifyStatusFailed    = "failed"
	VerifyStatusPending   = "pending"
)

type paymentRepository interface {
	FindByReference(ctx context.Context, reference string) (*entity.Payment, error)
	FindByReferenceAndBill(ctx context.Context, reference string, billID uint64) (*entity.Payment, error)
	ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Payment, error)
}

type callbackRepository interface {
	Create(ctx context.Context, callback *entity.PaymentCallback) error
}

type paymentLedger interface {
	CreatePending(ctx context.Context, input *ledger.CreatePaymentInput) (*entity.Payment, error)
	ApplySuccess(ctx context.Context, paymentID uint64, outcome ledger.Outcome) (bool, error)
	ApplyFailure(ctx context.Context, paymentID uint64, target entity.PaymentStatus, reason string, outcome ledger.Outcome) (bool, error)
	ApplyStatus(ctx context.Context, paymentID uint64, status entity.PaymentStatus, outcome ledger.Outcome) (bool, error)
}

// ReconciliationService is where the two provider-outcome entry paths
// converge: the webhook callback and the client-driven verify poll.
// Both funnel into the ledger; everything after the ledger commit is
// best-effort.
type ReconciliationService struct {
	paymentRepo  paymentRepository
	callbackRepo callbackRepository
	ledger       paymentLedger
	providerReg  *provider.Registry
	notifier     notify.Dispatcher
	paymentsCfg  config.PaymentsConfig
	logger       logrus.FieldLogger
	activity     logrus.FieldLogger
}

func NewReconciliationService(
	paymentRepo paymentRepository,
	callbackRepo callbackRepository,
	paymentLedger paymentLedger,
	providerReg *provider.Registry,
	notifier notify.Dispatcher,
	paymentsCfg config.PaymentsConfig,
	logger logrus.FieldLogger,
	activity logrus.FieldLogger,
) *ReconciliationService {
	return &ReconciliationService{
		paymentRepo:  paymentRepo,
		callbackRepo: callbackRepo,
		ledger:       paymentLedger,
		providerReg:  providerReg,
		notifier:     notifier,
		paymentsCfg:  paymentsCfg,
		logger:       logger,
		activity:     activity,
	}
}

type InitiateInput struct {
	Provider      string
	BillID        uint64
	BillNumber    string
	AccountNumber string
	AmountCents   int64
	PayerName     string
	PayerEmail    string
	PayerPhone    string
	ChargePhone   string
	Description   string
}

type InitiateResult struct {
	Reference            string
	ProviderTxnID        *string
	CheckoutURL          *string
	RequiresConfirmation bool
	Message              string
}

// InitiatePayment records a pending payment in the ledger, then asks
// the provider to start the charge. A provider rejection marks the
// payment failed; the payer simply starts a fresh attempt.
func (s *ReconciliationService) InitiatePayment(ctx context.Context, input *InitiateInput) (*InitiateResult, error) {
	providerClient, err := s.providerReg.Get(input.Provider)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}

	payment, err := s.ledger.CreatePending(ctx, &ledger.CreatePaymentInput{
		BillID:        input.BillID,
		BillNumber:    input.BillNumber,
		AccountNumber: input.AccountNumber,
		AmountCents:   input.AmountCents,
		Method:        methodForProvider(providerClient.Name()),
		Provider:      providerClient.Name(),
		PayerName:     input.PayerName,
		PayerEmail:    input.PayerEmail,
		PayerPhone:    input.PayerPhone,
		Notes:         map[string]string{"description": strings.TrimSpace(input.Description)},
	})
	if err != nil {
		return nil, err
	}

	chargePhone := payment.PayerPhone
	if trimmed := strings.TrimSpace(input.ChargePhone); trimmed != "" {
		if normalized, phoneErr := ledger.NormalizePhone(trimmed, s.paymentsCfg.CountryDialCode); phoneErr == nil {
			chargePhone = normalized
		}
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = "Bill " + payment.BillNumber
	}

	out, err := providerClient.Initiate(ctx, &provider.InitiateInput{
		Reference:   payment.Reference,
		AmountCents: payment.AmountCents,
		Currency:    payment.Currency,
		PayerName:   payment.PayerName,
		PayerEmail:  payment.PayerEmail,
		PayerPhone:  chargePhone,
		Description: description,
		CallbackURL: s.callbackURL(providerClient.Name()),
	})
	if err != nil {
		s.logger.WithError(err).WithField("reference", payment.Reference).Warn("Provider initiation failed")
		if _, ledgerErr := s.ledger.ApplyFailure(ctx, payment.ID, entity.PaymentStatusFailed,
			"provider initiation failed", ledger.Outcome{}); ledgerErr != nil {
			s.logger.WithError(ledgerErr).WithField("reference", payment.Reference).Error("Failed to mark payment failed after initiation error")
		}
		s.logActivity(payment, "payment initiation failed")
		return nil, &InitiationError{Reference: payment.Reference, Err: err}
	}

	if out.ProviderTxnID != nil || len(out.Notes) > 0 {
		if _, err := s.ledger.ApplyStatus(ctx, payment.ID, entity.PaymentStatusPending,
			ledger.Outcome{ProviderTxnID: out.ProviderTxnID, Notes: out.Notes}); err != nil {
			s.logger.WithError(err).WithField("reference", payment.Reference).Warn("Failed to record provider transaction id")
		}
	}

	s.logActivity(payment, "payment initiated with "+providerClient.Name())

	return &InitiateResult{
		Reference:            payment.Reference,
		ProviderTxnID:        out.ProviderTxnID,
		CheckoutURL:          out.CheckoutURL,
		RequiresConfirmation: out.RequiresConfirmation,
		Message:              out.Message,
	}, nil
}

type CallbackInput struct {
	Provider  string
	Payload   []byte
	Signature string
}

// HandleCallback processes a provider webhook. A payment we cannot find
// is acknowledged anyway (nil return) so the provider stops retrying;
// only a bad provider name, a rejected payload, or an internal failure
// surface as errors.
func (s *ReconciliationService) HandleCallback(ctx context.Context, input *CallbackInput) error {
	providerClient, err := s.providerReg.Get(input.Provider)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return ErrProviderUnsupported
		}
		return err
	}

	event, err := providerClient.ParseWebhook(input.Payload, input.Signature)
	if err != nil {
		entry := s.logger.WithError(err).WithField("provider", providerClient.Name())
		if errors.Is(err, provider.ErrBadSignature) {
			entry.Warn("Webhook signature verification failed")
		} else {
			entry.Warn("Webhook payload rejected")
		}
		s.persistCallback(ctx, nil, providerClient.Name(), "", input, entity.CallbackStatusRejected, err.Error())
		return ErrCallbackRejected
	}

	payment, err := s.paymentRepo.FindByReference(ctx, event.Reference)
	if err != nil {
		return err
	}
	if payment == nil {
		s.logger.WithFields(logrus.Fields{
			"provider":  providerClient.Name(),
			"reference": event.Reference,
		}).Warn("Webhook references an unknown payment, acknowledging without action")
		s.persistCallback(ctx, nil, providerClient.Name(), event.Reference, input, entity.CallbackStatusIgnored, "payment not found")
		return nil
	}

	canonical := provider.MapStatus(providerClient.Name(), event.ProviderStatus)
	outcome := ledger.Outcome{
		ProviderTxnID:  event.ProviderTxnID,
		ProviderStatus: event.ProviderStatus,
		Raw:            string(input.Payload),
	}

	applied, err := s.ledger.ApplyStatus(ctx, payment.ID, canonical, outcome)
	if err != nil {
		return err
	}

	if applied {
		s.notifyOutcome(ctx, payment, canonical)
		s.logActivity(payment, "payment "+string(canonical)+" via "+providerClient.Name()+" webhook")
	}

	s.persistCallback(ctx, &payment.ID, providerClient.Name(), event.Reference, input, entity.CallbackStatusProcessed, "")
	return nil
}

type VerifyResult struct {
	Status        string
	Retry         bool
	Message       string
	Reference     string
	AmountCents   int64
	ProviderTxnID string
}

// VerifyPayment is the client-driven poll. Terminal payments answer
// immediately without a provider call; otherwise the payment is checked
// against the provider and the outcome funnelled through the ledger
// exactly like a webhook.
func (s *ReconciliationService) VerifyPayment(ctx context.Context, reference string, billID uint64) (*VerifyResult, error) {
	var payment *entity.Payment
	var err error
	if billID > 0 {
		payment, err = s.paymentRepo.FindByReferenceAndBill(ctx, reference, billID)
	} else {
		payment, err = s.paymentRepo.FindByReference(ctx, reference)
	}
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	switch payment.Status {
	case entity.PaymentStatusSuccessful:
		return s.completedResult(payment), nil
	case entity.PaymentStatusFailed:
		return s.failedResult(payment, "payment failed"), nil
	case entity.PaymentStatusCancelled:
		return s.failedResult(payment, "payment was cancelled"), nil
	}

	providerClient, err := s.providerReg.Get(payment.Provider)
	if err != nil {
		return nil, err
	}

	out, err := providerClient.Verify(ctx, payment.Reference, storedTxnID(payment))
	if err != nil {
		s.logger.WithError(err).WithField("reference", payment.Reference).Warn("Provider verification failed")
		return &VerifyResult{
			Status:    VerifyStatusPending,
			Retry:     true,
			Message:   "could not confirm the payment status yet, please try again shortly",
			Reference: payment.Reference,
		}, nil
	}

	canonical := provider.MapStatus(providerClient.Name(), out.ProviderStatus)
	outcome := ledger.Outcome{
		ProviderTxnID:  out.ProviderTxnID,
		ProviderStatus: out.ProviderStatus,
		Raw:            out.Raw,
	}

	applied, err := s.ledger.ApplyStatus(ctx, payment.ID, canonical, outcome)
	if err != nil {
		return nil, err
	}

	switch canonical {
	case entity.PaymentStatusSuccessful:
		if applied {
			s.notifyOutcome(ctx, payment, canonical)
			s.logActivity(payment, "payment successful via "+providerClient.Name()+" verification")
		}
		return s.completedResult(payment), nil
	case entity.PaymentStatusFailed, entity.PaymentStatusCancelled:
		if applied {
			s.notifyOutcome(ctx, payment, canonical)
			s.logActivity(payment, "payment "+string(canonical)+" via "+providerClient.Name()+" verification")
		}
		message := "payment failed"
		if canonical == entity.PaymentStatusCancelled {
			message = "payment was cancelled"
		}
		return s.failedResult(payment, message), nil
	default:
		return &VerifyResult{
			Status:    VerifyStatusPending,
			Retry:     true,
			Message:   "payment is still being processed, please try again shortly",
			Reference: payment.Reference,
		}, nil
	}
}

func (s *ReconciliationService) GetPayment(ctx context.Context, reference string) (*entity.Payment, error) {
	payment, err := s.paymentRepo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

func (s *ReconciliationService) completedResult(payment *entity.Payment) *VerifyResult {
	result := &VerifyResult{
		Status:      VerifyStatusCompleted,
		Message:     "payment completed",
		Reference:   payment.Reference,
		AmountCents: payment.AmountCents,
	}
	if payment.ProviderTxnID != nil {
		result.ProviderTxnID = *payment.ProviderTxnID
	}
	return result
}

func (s *ReconciliationService) failedResult(payment *entity.Payment, message string) *VerifyResult {
	return &VerifyResult{
		Status:    VerifyStatusFailed,
		Message:   message,
		Reference: payment.Reference,
	}
}

func (s *ReconciliationService) notifyOutcome(ctx context.Context, payment *entity.Payment, status entity.PaymentStatus) {
	var err error
	if status == entity.PaymentStatusSuccessful {
		err = s.notifier.PaymentSucceeded(ctx, payment)
	} else {
		err = s.notifier.PaymentFailed(ctx, payment)
	}
	if err != nil {
		s.logger.WithError(err).WithField("reference", payment.Reference).Warn("Notification dispatch failed")
	}
}

func (s *ReconciliationService) persistCallback(
	ctx context.Context,
	paymentID *uint64,
	providerName string,
	reference string,
	input *CallbackInput,
	status int32,
	errMessage string,
) {
	callback := &entity.PaymentCallback{
		PaymentID:   paymentID,
		Provider:    providerName,
		Reference:   reference,
		Signature:   strings.TrimSpace(input.Signature),
		PayloadJSON: string(input.Payload),
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	if errMessage != "" {
		trimmed := truncate(errMessage, 1024)
		callback.Error = &trimmed
	}
	if err := s.callbackRepo.Create(ctx, callback); err != nil {
		s.logger.WithError(err).WithField("provider", providerName).Warn("Failed to persist callback record")
	}
}

func (s *ReconciliationService) logActivity(payment *entity.Payment, message string) {
	s.activity.WithFields(logrus.Fields{
		"reference": payment.Reference,
		"bill":      payment.BillNumber,
		"account":   payment.AccountNumber,
	}).Info(message)
}

func (s *ReconciliationService) callbackURL(providerName string) string {
	base := strings.TrimRight(strings.TrimSpace(s.paymentsCfg.PublicBaseURL), "/")
	if base == "" {
		return ""
	}
	return base + "/api/payments/callback?provider=" + providerName
}

func storedTxnID(payment *entity.Payment) string {
	if payment.ProviderTxnID == nil {
		return ""
	}
	return strings.TrimSpace(*payment.ProviderTxnID)
}

func methodForProvider(name string) entity.PaymentMethod {
	switch name {
	case provider.MTNMoMoName:
		return entity.PaymentMethodMobileMoney
	case provider.PaystackName:
		return entity.PaymentMethodCard
	default:
		return entity.PaymentMethodBankTransfer
	}
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
