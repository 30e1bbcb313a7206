package service

import (
	"context"
	"time"

	"github.com/civicpay-solutions/ms-go-revenue-payments/app/entity"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/ledger"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/provider"
)

const defaultBatchSize = int32(100)

// RunReconcileBatch sweeps pending payments that have a provider
// transaction id but have not moved in a while, re-verifying each one
// through the normal ledger path. It catches sessions the payer
// abandoned without ever polling.
func (s *ReconciliationService) RunReconcileBatch(ctx context.Context) error {
	now := time.Now().UTC()
	before := now.Add(-s.paymentsCfg.ReconcileStaleAfter)
	items, err := s.paymentRepo.ListStalePending(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, payment := range items {
		if payment == nil {
			continue
		}
		if err := s.reconcileOne(ctx, payment); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

// RunExpirePendingBatch cancels pending payments older than the
// configured window. The payer never completed the flow; bills and
// accounts are untouched.
func (s *ReconciliationService) RunExpirePendingBatch(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.paymentsCfg.PendingTimeout)
	items, err := s.paymentRepo.ListExpiredPending(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, payment := range items {
		if payment == nil {
			continue
		}

		applied, err := s.ledger.ApplyFailure(ctx, payment.ID, entity.PaymentStatusCancelled,
			"payment window expired", ledger.Outcome{})
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if applied {
			s.logActivity(payment, "payment expired")
		}
	}

	return firstErr
}

func (s *ReconciliationService) reconcileOne(ctx context.Context, payment *entity.Payment) error {
	providerClient, err := s.providerReg.Get(payment.Provider)
	if err != nil {
		return err
	}

	out, err := providerClient.Verify(ctx, payment.Reference, storedTxnID(payment))
	if err != nil {
		return err
	}

	canonical := provider.MapStatus(providerClient.Name(), out.ProviderStatus)
	if canonical == entity.PaymentStatusPending {
		return nil
	}

	outcome := ledger.Outcome{
		ProviderTxnID:  out.ProviderTxnID,
		ProviderStatus: out.ProviderStatus,
		Raw:            out.Raw,
	}
	applied, err := s.ledger.ApplyStatus(ctx, payment.ID, canonical, outcome)
	if err != nil {
		return err
	}
	if applied {
		s.notifyOutcome(ctx, payment, canonical)
		s.logActivity(payment, "payment "+string(canonical)+" via reconcile sweep")
	}
	return nil
}

func (s *ReconciliationService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
