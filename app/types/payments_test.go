package types

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func processRequestContext(body string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/mtnmomo/process", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("provider")
	ctx.SetParamValues("MtnMomo")
	return ctx
}

func TestNewProcessPaymentRequestFromContext(t *testing.T) {
	ctx := processRequestContext(`{
		"amount": 150.50,
		"payerName": " Kofi Mensah ",
		"payerEmail": "kofi@example.com",
		"payerPhone": "0241234567",
		"billId": 12,
		"billNumber": "BILL-001",
		"accountNumber": "ACC-001",
		"momoNumber": "0209876543"
	}`)

	req, err := NewProcessPaymentRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("from context failed: %v", err)
	}

	if req.Provider != "mtnmomo" {
		t.Fatalf("provider should be lowercased from the path, got %q", req.Provider)
	}
	if req.PayerName != "Kofi Mensah" {
		t.Fatalf("payer name not trimmed: %q", req.PayerName)
	}
	if req.BillID != 12 {
		t.Fatalf("unexpected bill id: %d", req.BillID)
	}

	if err := req.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	cents, err := req.AmountCents()
	if err != nil {
		t.Fatalf("amount cents failed: %v", err)
	}
	if cents != 15050 {
		t.Fatalf("unexpected amount: %d", cents)
	}
}

func TestProcessPaymentRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing amount", `{"billId": 12}`},
		{"bad amount", `{"amount": 12.345, "billId": 12}`},
		{"negative amount", `{"amount": -5, "billId": 12}`},
		{"missing bill", `{"amount": 150.00}`},
	}
	for _, tc := range cases {
		req, err := NewProcessPaymentRequestFromContext(processRequestContext(tc.body))
		if err != nil {
			t.Fatalf("%s: from context failed: %v", tc.name, err)
		}
		if err := req.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestNewVerifyPaymentRequestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/paystack/verify", bytes.NewBufferString(`{"reference": " PAY-1 ", "bill_id": 3}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := e.NewContext(req, httptest.NewRecorder())

	parsed, err := NewVerifyPaymentRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("from context failed: %v", err)
	}
	if parsed.Reference != "PAY-1" || parsed.BillID != 3 {
		t.Fatalf("unexpected request: %+v", parsed)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	empty, err := NewVerifyPaymentRequestFromContext(e.NewContext(
		httptest.NewRequest(http.MethodPost, "/api/payments/paystack/verify", nil),
		httptest.NewRecorder(),
	))
	if err != nil {
		t.Fatalf("empty body should bind: %v", err)
	}
	if err := empty.Validate(); err == nil {
		t.Fatal("expected validation error for missing reference")
	}
}

func TestNewCallbackRequestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/callback?provider=Paystack", bytes.NewBufferString(`{"event": "charge.success"}`))
	req.Header.Set("X-Paystack-Signature", "abc123")
	ctx := e.NewContext(req, httptest.NewRecorder())

	parsed, err := NewCallbackRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("from context failed: %v", err)
	}
	if parsed.Provider != "paystack" {
		t.Fatalf("provider should be lowercased, got %q", parsed.Provider)
	}
	if parsed.Signature != "abc123" {
		t.Fatalf("unexpected signature: %q", parsed.Signature)
	}
	if string(parsed.Payload) != `{"event": "charge.success"}` {
		t.Fatalf("payload must be the raw body, got %q", string(parsed.Payload))
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
}

func TestCallbackRequestValidate(t *testing.T) {
	missingProvider := &CallbackRequest{Payload: []byte(`{}`)}
	if err := missingProvider.Validate(); err == nil {
		t.Fatal("expected validation error for missing provider")
	}
	missingPayload := &CallbackRequest{Provider: "paystack"}
	if err := missingPayload.Validate(); err == nil {
		t.Fatal("expected validation error for missing payload")
	}
}
