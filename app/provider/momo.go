package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/civicpay-solutions/ms-go-revenue-payments/app/money"
)

const MTNMoMoName = "mtnmomo"

type MTNMoMoConfig struct {
	BaseURL           string
	SubscriptionKey   string
	APIUser           string
	APIKey            string
	TargetEnvironment string
	HTTPTimeout       time.Duration
}

// MTNMoMoProvider drives the MTN Mobile Money collections API. The
// provider transaction id is the X-Reference-Id we generate per
// requesttopay; the payer confirms the charge on their handset, so
// initiation always reports requires_confirmation.
type MTNMoMoProvider struct {
	cfg    MTNMoMoConfig
	client *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewMTNMoMoProvider(cfg MTNMoMoConfig) *MTNMoMoProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.TargetEnvironment == "" {
		cfg.TargetEnvironment = "sandbox"
	}

	return &MTNMoMoProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *MTNMoMoProvider) Name() string {
	return MTNMoMoName
}

func (p *MTNMoMoProvider) Initiate(ctx context.Context, input *InitiateInput) (*InitiateOutput, error) {
	if strings.TrimSpace(p.cfg.SubscriptionKey) == "" {
		return nil, newProviderError(MTNMoMoName, "initiate", 0, errors.New("subscription key is not configured"))
	}

	token, err := p.token(ctx)
	if err != nil {
		return nil, newProviderError(MTNMoMoName, "initiate", 0, err)
	}

	referenceID := uuid.NewString()
	body := map[string]interface{}{
		"amount":     money.FormatMajor(input.AmountCents),
		"currency":   input.Currency,
		"externalId": input.Reference,
		"payer": map[string]string{
			"partyIdType": "MSISDN",
			"partyId":     input.PayerPhone,
		},
		"payerMessage": input.Description,
		"payeeNote":    input.Description,
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, newProviderError(MTNMoMoName, "initiate", 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/collection/v1_0/requesttopay", bytes.NewReader(encoded))
	if err != nil {
		return nil, newProviderError(MTNMoMoName, "initiate", 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Reference-Id", referenceID)
	req.Header.Set("X-Target-Environment", p.cfg.TargetEnvironment)
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.SubscriptionKey)
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(input.CallbackURL) != "" {
		req.Header.Set("X-Callback-Url", input.CallbackURL)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, newProviderError(MTNMoMoName, "initiate", 0, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		return nil, newProviderError(MTNMoMoName, "initiate", resp.StatusCode, fmt.Errorf("requesttopay rejected: %s", strings.TrimSpace(string(respBody))))
	}

	return &InitiateOutput{
		ProviderTxnID:        &referenceID,
		RequiresConfirmation: true,
		Message:              "payment request sent, approve it on your phone",
	}, nil
}

// Verify keys on the X-Reference-Id we generated at initiation; our
// payment reference means nothing to the requesttopay status endpoint.
func (p *MTNMoMoProvider) Verify(ctx context.Context, _, providerTxnID string) (*VerifyOutput, error) {
	if strings.TrimSpace(providerTxnID) == "" {
		return nil, newProviderError(MTNMoMoName, "verify", 0, errors.New("missing provider transaction id"))
	}

	token, err := p.token(ctx)
	if err != nil {
		return nil, newProviderError(MTNMoMoName, "verify", 0, err)
	}

	endpoint := p.cfg.BaseURL + "/collection/v1_0/requesttopay/" + url.PathEscape(providerTxnID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, newProviderError(MTNMoMoName, "verify", 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Target-Environment", p.cfg.TargetEnvironment)
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.SubscriptionKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, newProviderError(MTNMoMoName, "verify", 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newProviderError(MTNMoMoName, "verify", 0, err)
	}
	if resp.StatusCode >= 400 {
		return nil, newProviderError(MTNMoMoName, "verify", resp.StatusCode, fmt.Errorf("requesttopay lookup failed: %s", strings.TrimSpace(string(respBody))))
	}

	var payload momoTransaction
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, newProviderError(MTNMoMoName, "verify", 0, err)
	}

	out := &VerifyOutput{
		ProviderStatus: payload.Status,
		Message:        payload.Reason.Message,
		Raw:            string(respBody),
	}
	if s := strings.TrimSpace(payload.FinancialTransactionID); s != "" {
		out.ProviderTxnID = &s
	}
	if cents, err := money.ParseMajor(payload.Amount); err == nil {
		out.AmountCents = &cents
	}

	return out, nil
}

// ParseWebhook handles the requesttopay resource MoMo pushes to the
// callback URL. MoMo has no signature scheme; authenticity rests on the
// unguessable callback reference, so the signature argument is unused.
func (p *MTNMoMoProvider) ParseWebhook(payload []byte, _ string) (*WebhookEvent, error) {
	var body momoTransaction
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, newProviderError(MTNMoMoName, "parse_webhook", 0, err)
	}
	if strings.TrimSpace(body.ExternalID) == "" {
		return nil, newProviderError(MTNMoMoName, "parse_webhook", 0, errors.New("callback is missing externalId"))
	}

	event := &WebhookEvent{
		Reference:      strings.TrimSpace(body.ExternalID),
		ProviderStatus: body.Status,
		EventType:      "requesttopay." + strings.ToLower(strings.TrimSpace(body.Status)),
	}
	if s := strings.TrimSpace(body.FinancialTransactionID); s != "" {
		event.ProviderTxnID = &s
	}
	if cents, err := money.ParseMajor(body.Amount); err == nil {
		event.AmountCents = &cents
	}

	return event, nil
}

type momoTransaction struct {
	Amount                 string `json:"amount"`
	Currency               string `json:"currency"`
	ExternalID             string `json:"externalId"`
	FinancialTransactionID string `json:"financialTransactionId"`
	Status                 string `json:"status"`
	Reason                 struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"reason"`
}

func (p *MTNMoMoProvider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/collection/token/", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.cfg.APIUser, p.cfg.APIKey)
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.SubscriptionKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("token request failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return "", err
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", errors.New("token response is missing access_token")
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 60 {
		expiresIn = 3600
	}
	p.accessToken = payload.AccessToken
	p.tokenExpiry = time.Now().Add(time.Duration(expiresIn-60) * time.Second)

	return p.accessToken, nil
}
