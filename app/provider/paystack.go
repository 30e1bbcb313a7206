package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const PaystackName = "paystack"

type PaystackConfig struct {
	BaseURL     string
	SecretKey   string
	HTTPTimeout time.Duration
}

// PaystackProvider drives the Paystack card checkout. Paystack already
// speaks minor units, so amounts pass through unconverted. Webhooks are
// authenticated with an HMAC-SHA512 of the raw body under the secret key.
type PaystackProvider struct {
	cfg    PaystackConfig
	client *http.Client
}

func NewPaystackProvider(cfg PaystackConfig) *PaystackProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.paystack.co"
	}

	return &PaystackProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *PaystackProvider) Name() string {
	return PaystackName
}

func (p *PaystackProvider) Initiate(ctx context.Context, input *InitiateInput) (*InitiateOutput, error) {
	if strings.TrimSpace(p.cfg.SecretKey) == "" {
		return nil, newProviderError(PaystackName, "initiate", 0, errors.New("secret key is not configured"))
	}

	body := map[string]interface{}{
		"email":     input.PayerEmail,
		"amount":    input.AmountCents,
		"currency":  input.Currency,
		"reference": input.Reference,
		"metadata": map[string]string{
			"payer_name":  input.PayerName,
			"payer_phone": input.PayerPhone,
			"description": input.Description,
		},
	}
	if strings.TrimSpace(input.CallbackURL) != "" {
		body["callback_url"] = input.CallbackURL
	}

	respBody, err := p.postJSON(ctx, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, newProviderError(PaystackName, "initiate", 0, err)
	}
	if !payload.Status {
		return nil, newProviderError(PaystackName, "initiate", 0, fmt.Errorf("transaction initialize rejected: %s", payload.Message))
	}

	out := &InitiateOutput{
		RequiresConfirmation: false,
		Message:              payload.Message,
	}
	// The access code only opens the checkout; verification keys on our
	// reference, so it must not become the stored transaction id.
	if s := strings.TrimSpace(payload.Data.AccessCode); s != "" {
		out.Notes = map[string]string{"paystack_access_code": s}
	}
	if s := strings.TrimSpace(payload.Data.AuthorizationURL); s != "" {
		out.CheckoutURL = &s
	}

	return out, nil
}

// Verify looks a transaction up by our payment reference, which is what
// Paystack keys verification on; the stored transaction id is ignored.
func (p *PaystackProvider) Verify(ctx context.Context, reference, _ string) (*VerifyOutput, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, newProviderError(PaystackName, "verify", 0, errors.New("missing reference"))
	}

	endpoint := p.cfg.BaseURL + "/transaction/verify/" + url.PathEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, newProviderError(PaystackName, "verify", 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, newProviderError(PaystackName, "verify", 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newProviderError(PaystackName, "verify", 0, err)
	}
	if resp.StatusCode >= 400 {
		return nil, newProviderError(PaystackName, "verify", resp.StatusCode, fmt.Errorf("transaction verify failed: %s", strings.TrimSpace(string(respBody))))
	}

	var payload struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
			Amount int64  `json:"amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, newProviderError(PaystackName, "verify", 0, err)
	}
	if !payload.Status {
		return nil, newProviderError(PaystackName, "verify", 0, fmt.Errorf("transaction verify rejected: %s", payload.Message))
	}

	out := &VerifyOutput{
		ProviderStatus: payload.Data.Status,
		Message:        payload.Message,
		Raw:            string(respBody),
	}
	if payload.Data.ID > 0 {
		id := strconv.FormatInt(payload.Data.ID, 10)
		out.ProviderTxnID = &id
	}
	if payload.Data.Amount > 0 {
		amount := payload.Data.Amount
		out.AmountCents = &amount
	}

	return out, nil
}

// ParseWebhook verifies the X-Paystack-Signature header against the raw
// body before reading anything out of it. The comparison covers the
// full digest.
func (p *PaystackProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if !p.verifySignature(payload, signature) {
		return nil, newProviderError(PaystackName, "parse_webhook", 0, ErrBadSignature)
	}

	var body struct {
		Event string `json:"event"`
		Data  struct {
			ID        int64  `json:"id"`
			Reference string `json:"reference"`
			Status    string `json:"status"`
			Amount    int64  `json:"amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, newProviderError(PaystackName, "parse_webhook", 0, err)
	}
	if strings.TrimSpace(body.Data.Reference) == "" {
		return nil, newProviderError(PaystackName, "parse_webhook", 0, errors.New("webhook is missing data.reference"))
	}

	event := &WebhookEvent{
		Reference:      strings.TrimSpace(body.Data.Reference),
		ProviderStatus: body.Data.Status,
		EventType:      body.Event,
	}
	if body.Data.ID > 0 {
		id := strconv.FormatInt(body.Data.ID, 10)
		event.ProviderTxnID = &id
	}
	if body.Data.Amount > 0 {
		amount := body.Data.Amount
		event.AmountCents = &amount
	}

	return event, nil
}

func (p *PaystackProvider) verifySignature(payload []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || strings.TrimSpace(p.cfg.SecretKey) == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(p.cfg.SecretKey))
	_, _ = mac.Write(payload)
	expected := mac.Sum(nil)

	candidate, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(candidate, expected)
}

func (p *PaystackProvider) postJSON(ctx context.Context, path string, body interface{}) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, newProviderError(PaystackName, "request", 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, newProviderError(PaystackName, "request", 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, newProviderError(PaystackName, "request", 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newProviderError(PaystackName, "request", 0, err)
	}
	if resp.StatusCode >= 400 {
		return nil, newProviderError(PaystackName, "request", resp.StatusCode, fmt.Errorf("path=%s body=%s", path, strings.TrimSpace(string(respBody))))
	}

	return respBody, nil
}
