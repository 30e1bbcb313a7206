package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func momoTestServer(t *testing.T, requestToPay http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/collection/token/":
			user, _, ok := r.BasicAuth()
			if !ok || user != "api-user" {
				t.Fatalf("token request missing basic auth, user=%q", user)
			}
			_, _ = w.Write([]byte(`{"access_token": "momo-token", "expires_in": 3600}`))
		default:
			if r.Header.Get("Authorization") != "Bearer momo-token" {
				t.Fatalf("unexpected authorization header: %s", r.Header.Get("Authorization"))
			}
			requestToPay(w, r)
		}
	}))
}

func TestMTNMoMoInitiate(t *testing.T) {
	var gotBody map[string]interface{}
	var gotReferenceID string
	srv := momoTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collection/v1_0/requesttopay" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		gotReferenceID = r.Header.Get("X-Reference-Id")
		if r.Header.Get("X-Target-Environment") != "sandbox" {
			t.Fatalf("unexpected target environment: %s", r.Header.Get("X-Target-Environment"))
		}
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "sub-key" {
			t.Fatalf("unexpected subscription key: %s", r.Header.Get("Ocp-Apim-Subscription-Key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	})
	defer srv.Close()

	p := NewMTNMoMoProvider(MTNMoMoConfig{
		BaseURL:         srv.URL,
		SubscriptionKey: "sub-key",
		APIUser:         "api-user",
		APIKey:          "api-key",
	})

	out, err := p.Initiate(context.Background(), &InitiateInput{
		Reference:   "PAY-20260101120000-AB12CD",
		AmountCents: 15050,
		Currency:    "GHS",
		PayerPhone:  "233241234567",
		Description: "Bill BILL-001",
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	if gotBody["amount"].(string) != "150.50" {
		t.Fatalf("amount should be a major-unit decimal string, got %v", gotBody["amount"])
	}
	if gotBody["externalId"].(string) != "PAY-20260101120000-AB12CD" {
		t.Fatalf("unexpected externalId: %v", gotBody["externalId"])
	}
	payer := gotBody["payer"].(map[string]interface{})
	if payer["partyId"].(string) != "233241234567" || payer["partyIdType"].(string) != "MSISDN" {
		t.Fatalf("unexpected payer: %v", payer)
	}

	if out.ProviderTxnID == nil || *out.ProviderTxnID != gotReferenceID {
		t.Fatalf("provider txn id should be the X-Reference-Id header, got %v want %s", out.ProviderTxnID, gotReferenceID)
	}
	if _, err := uuid.Parse(*out.ProviderTxnID); err != nil {
		t.Fatalf("provider txn id is not a uuid: %v", err)
	}
	if !out.RequiresConfirmation {
		t.Fatal("momo initiation must require handset confirmation")
	}
}

func TestMTNMoMoInitiateRejectedIsProviderError(t *testing.T) {
	srv := momoTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message": "duplicated reference id"}`))
	})
	defer srv.Close()

	p := NewMTNMoMoProvider(MTNMoMoConfig{BaseURL: srv.URL, SubscriptionKey: "sub-key", APIUser: "api-user", APIKey: "api-key"})
	_, err := p.Initiate(context.Background(), &InitiateInput{Reference: "PAY-X", AmountCents: 100, Currency: "GHS", PayerPhone: "233241234567"})

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.StatusCode != http.StatusConflict {
		t.Fatalf("unexpected status code: %d", provErr.StatusCode)
	}
}

func TestMTNMoMoVerify(t *testing.T) {
	srv := momoTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// The lookup must key on the X-Reference-Id from initiation,
		// never on our payment reference.
		if r.URL.Path != "/collection/v1_0/requesttopay/6f1a26a0-6cf5-4ade-b693-a24b3fd4c0be" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"amount": "150.50",
			"currency": "GHS",
			"externalId": "PAY-20260101120000-AB12CD",
			"financialTransactionId": "363440463",
			"status": "SUCCESSFUL"
		}`))
	})
	defer srv.Close()

	p := NewMTNMoMoProvider(MTNMoMoConfig{BaseURL: srv.URL, SubscriptionKey: "sub-key", APIUser: "api-user", APIKey: "api-key"})
	out, err := p.Verify(context.Background(), "PAY-20260101120000-AB12CD", "6f1a26a0-6cf5-4ade-b693-a24b3fd4c0be")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if out.ProviderStatus != "SUCCESSFUL" {
		t.Fatalf("unexpected provider status: %s", out.ProviderStatus)
	}
	if out.ProviderTxnID == nil || *out.ProviderTxnID != "363440463" {
		t.Fatalf("unexpected provider txn id: %v", out.ProviderTxnID)
	}
	if out.AmountCents == nil || *out.AmountCents != 15050 {
		t.Fatalf("unexpected amount: %v", out.AmountCents)
	}
}

func TestMTNMoMoVerifyRequiresTransactionID(t *testing.T) {
	p := NewMTNMoMoProvider(MTNMoMoConfig{})
	if _, err := p.Verify(context.Background(), "PAY-X", ""); err == nil {
		t.Fatal("expected an error without a transaction id")
	}
}

func TestMTNMoMoTokenIsCachedAcrossCalls(t *testing.T) {
	tokenCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collection/token/" {
			tokenCalls++
			_, _ = w.Write([]byte(`{"access_token": "momo-token", "expires_in": 3600}`))
			return
		}
		_, _ = w.Write([]byte(`{"externalId": "PAY-X", "status": "PENDING"}`))
	}))
	defer srv.Close()

	p := NewMTNMoMoProvider(MTNMoMoConfig{BaseURL: srv.URL, SubscriptionKey: "sub-key", APIUser: "api-user", APIKey: "api-key"})
	for i := 0; i < 3; i++ {
		if _, err := p.Verify(context.Background(), "PAY-X", "6f1a26a0-6cf5-4ade-b693-a24b3fd4c0be"); err != nil {
			t.Fatalf("verify %d failed: %v", i, err)
		}
	}
	if tokenCalls != 1 {
		t.Fatalf("expected 1 token request, got %d", tokenCalls)
	}
}

func TestMTNMoMoParseWebhook(t *testing.T) {
	p := NewMTNMoMoProvider(MTNMoMoConfig{})

	event, err := p.ParseWebhook([]byte(`{
		"amount": "150.50",
		"externalId": "PAY-20260101120000-AB12CD",
		"financialTransactionId": "363440463",
		"status": "FAILED",
		"reason": {"code": "PAYER_NOT_FOUND", "message": "payer not found"}
	}`), "")
	if err != nil {
		t.Fatalf("parse webhook failed: %v", err)
	}

	if event.Reference != "PAY-20260101120000-AB12CD" {
		t.Fatalf("unexpected reference: %s", event.Reference)
	}
	if event.ProviderStatus != "FAILED" {
		t.Fatalf("unexpected status: %s", event.ProviderStatus)
	}
	if event.EventType != "requesttopay.failed" {
		t.Fatalf("unexpected event type: %s", event.EventType)
	}
}

func TestMTNMoMoParseWebhookRequiresExternalID(t *testing.T) {
	p := NewMTNMoMoProvider(MTNMoMoConfig{})
	if _, err := p.ParseWebhook([]byte(`{"status": "SUCCESSFUL"}`), ""); err == nil {
		t.Fatal("expected error for callback without externalId")
	}
	if _, err := p.ParseWebhook([]byte(`not-json`), ""); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
