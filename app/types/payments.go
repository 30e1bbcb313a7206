package types

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/civicpay-solutions/ms-go-revenue-payments/app/money"
)

type ProcessPaymentRequest struct {
	Provider string `json:"-"`

	Amount        json.Number `json:"amount"`
	PayerName     string      `json:"payerName"`
	PayerEmail    string      `json:"payerEmail"`
	PayerPhone    string      `json:"payerPhone"`
	BillID        uint64      `json:"billId"`
	BillNumber    string      `json:"billNumber"`
	AccountNumber string      `json:"accountNumber"`

	// Provider-specific: the mobile-money number to charge when it
	// differs from the payer's contact phone.
	MomoNumber  string `json:"momoNumber"`
	Description string `json:"description"`
}

func NewProcessPaymentRequestFromContext(ctx echo.Context) (*ProcessPaymentRequest, error) {
	var body ProcessPaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Provider = strings.ToLower(strings.TrimSpace(ctx.Param("provider")))
	body.PayerName = strings.TrimSpace(body.PayerName)
	body.PayerEmail = strings.TrimSpace(body.PayerEmail)
	body.PayerPhone = strings.TrimSpace(body.PayerPhone)
	body.BillNumber = strings.TrimSpace(body.BillNumber)
	body.AccountNumber = strings.TrimSpace(body.AccountNumber)
	body.MomoNumber = strings.TrimSpace(body.MomoNumber)
	body.Description = strings.TrimSpace(body.Description)

	return &body, nil
}

func (r *ProcessPaymentRequest) Validate() error {
	if r.Provider == "" {
		return errors.New("provider is required")
	}
	if strings.TrimSpace(r.Amount.String()) == "" {
		return errors.New("amount is required")
	}
	if _, err := r.AmountCents(); err != nil {
		return errors.New("amount must be a positive decimal number")
	}
	if r.BillID == 0 {
		return errors.New("billId is required")
	}
	return nil
}

// AmountCents converts the major-unit request amount to minor units.
func (r *ProcessPaymentRequest) AmountCents() (int64, error) {
	return money.ParseMajor(r.Amount.String())
}

type VerifyPaymentRequest struct {
	Provider  string `json:"-"`
	Reference string `json:"reference"`
	BillID    uint64 `json:"bill_id"`
}

func NewVerifyPaymentRequestFromContext(ctx echo.Context) (*VerifyPaymentRequest, error) {
	var body VerifyPaymentRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	body.Provider = strings.ToLower(strings.TrimSpace(ctx.Param("provider")))
	body.Reference = strings.TrimSpace(body.Reference)

	return &body, nil
}

func (r *VerifyPaymentRequest) Validate() error {
	if r.Reference == "" {
		return errors.New("reference is required")
	}
	return nil
}

type CallbackRequest struct {
	Provider  string
	Signature string
	Payload   []byte
}

func NewCallbackRequestFromContext(ctx echo.Context) (*CallbackRequest, error) {
	signature := strings.TrimSpace(ctx.Request().Header.Get("X-Paystack-Signature"))
	if signature == "" {
		signature = strings.TrimSpace(ctx.Request().Header.Get("X-Provider-Signature"))
	}

	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}

	return &CallbackRequest{
		Provider:  strings.ToLower(strings.TrimSpace(ctx.QueryParam("provider"))),
		Signature: signature,
		Payload:   rawBody,
	}, nil
}

func (r *CallbackRequest) Validate() error {
	if r.Provider == "" {
		return errors.New("provider is required")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	return nil
}

type ProcessPaymentResponse struct {
	Success              bool   `json:"success"`
	Reference            string `json:"reference,omitempty"`
	TransactionID        string `json:"transaction_id,omitempty"`
	CheckoutURL          string `json:"checkout_url,omitempty"`
	RequiresConfirmation bool   `json:"requires_confirmation,omitempty"`
	Message              string `json:"message"`
}

type VerifyPaymentResponse struct {
	Success       bool   `json:"success"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	Reference     string `json:"reference"`
	Amount        string `json:"amount,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Retry         bool   `json:"retry,omitempty"`
}

type PaymentResponse struct {
	Reference     string `json:"reference"`
	BillNumber    string `json:"bill_number"`
	AccountNumber string `json:"account_number"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Method        string `json:"method"`
	Provider      string `json:"provider"`
	Status        string `json:"status"`
	PayerName     string `json:"payer_name"`
	TransactionID string `json:"transaction_id,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type PaymentEnvelopeResponse struct {
	Payment *PaymentResponse `json:"payment"`
}

type CallbackAckResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
