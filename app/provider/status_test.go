package provider

import (
	"testing"

	"github.com/civicpay-solutions/ms-go-revenue-payments/app/entity"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		provider string
		status   string
		want     entity.PaymentStatus
	}{
		{MTNMoMoName, "SUCCESSFUL", entity.PaymentStatusSuccessful},
		{MTNMoMoName, "failed", entity.PaymentStatusFailed},
		{MTNMoMoName, "PENDING", entity.PaymentStatusPending},
		{MTNMoMoName, "ongoing", entity.PaymentStatusPending},
		{MTNMoMoName, "rejected", entity.PaymentStatusCancelled},
		{MTNMoMoName, "TIMEOUT", entity.PaymentStatusCancelled},
		{MTNMoMoName, "expired", entity.PaymentStatusCancelled},
		{PaystackName, "success", entity.PaymentStatusSuccessful},
		{PaystackName, "FAILED", entity.PaymentStatusFailed},
		{PaystackName, "abandoned", entity.PaymentStatusCancelled},
		{PaystackName, "reversed", entity.PaymentStatusCancelled},
		{PaystackName, "queued", entity.PaymentStatusPending},
		{PaystackName, " Processing ", entity.PaymentStatusPending},
	}
	for _, tc := range cases {
		if got := MapStatus(tc.provider, tc.status); got != tc.want {
			t.Fatalf("MapStatus(%q, %q) = %q, want %q", tc.provider, tc.status, got, tc.want)
		}
	}
}

func TestMapStatusUnknownVocabularyIsPending(t *testing.T) {
	if got := MapStatus(MTNMoMoName, "some_new_state"); got != entity.PaymentStatusPending {
		t.Fatalf("unknown status mapped to %q, want pending", got)
	}
	if got := MapStatus("unknown-provider", "success"); got != entity.PaymentStatusPending {
		t.Fatalf("unknown provider mapped to %q, want pending", got)
	}
	if got := MapStatus(PaystackName, ""); got != entity.PaymentStatusPending {
		t.Fatalf("empty status mapped to %q, want pending", got)
	}
}

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	p := NewPaystackProvider(PaystackConfig{SecretKey: "sk_test"})
	reg := NewRegistry(p)

	got, err := reg.Get(" Paystack ")
	if err != nil {
		t.Fatalf("registry lookup failed: %v", err)
	}
	if got.Name() != PaystackName {
		t.Fatalf("unexpected provider: %s", got.Name())
	}

	if _, err := reg.Get("stripe"); err != ErrProviderNotSupported {
		t.Fatalf("expected ErrProviderNotSupported, got %v", err)
	}
}
