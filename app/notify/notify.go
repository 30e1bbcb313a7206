// Package notify dispatches payer-facing notifications after a payment
// reaches a terminal state. Dispatch is best-effort: reconciliation
// never fails because a notification could not be delivered.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/civicpay-solutions/ms-go-revenue-payments/app/entity"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/money"
)

type Dispatcher interface {
	PaymentSucceeded(ctx context.Context, payment *entity.Payment) error
	PaymentFailed(ctx context.Context, payment *entity.Payment) error
}

type SMSConfig struct {
	GatewayURL  string
	APIKey      string
	SenderID    string
	HTTPTimeout time.Duration
}

// SMSDispatcher posts a message per terminal payment to the configured
// SMS gateway. Delivery beyond that POST is the gateway's problem.
type SMSDispatcher struct {
	cfg    SMSConfig
	client *http.Client
	logger logrus.FieldLogger
}

func NewSMSDispatcher(cfg SMSConfig, logger logrus.FieldLogger) *SMSDispatcher {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMSDispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (d *SMSDispatcher) PaymentSucceeded(ctx context.Context, payment *entity.Payment) error {
	message := fmt.Sprintf(
		"Payment of %s %s for bill %s received. Reference: %s. Thank you.",
		payment.Currency, money.FormatMajor(payment.AmountCents), payment.BillNumber, payment.Reference,
	)
	return d.send(ctx, payment.PayerPhone, message)
}

func (d *SMSDispatcher) PaymentFailed(ctx context.Context, payment *entity.Payment) error {
	message := fmt.Sprintf(
		"Payment %s for bill %s was not completed. You can retry at any time.",
		payment.Reference, payment.BillNumber,
	)
	return d.send(ctx, payment.PayerPhone, message)
}

func (d *SMSDispatcher) send(ctx context.Context, to, message string) error {
	if strings.TrimSpace(d.cfg.GatewayURL) == "" {
		return fmt.Errorf("sms gateway url is not configured")
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("recipient phone is empty")
	}

	body, err := json.Marshal(map[string]string{
		"to":      to,
		"from":    d.cfg.SenderID,
		"message": message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", d.cfg.APIKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status=%d", resp.StatusCode)
	}

	d.logger.WithField("to", to).Debug("SMS dispatched")
	return nil
}

// NopDispatcher is used when no SMS gateway is configured.
type NopDispatcher struct{}

func (NopDispatcher) PaymentSucceeded(context.Context, *entity.Payment) error { return nil }
func (NopDispatcher) PaymentFailed(context.Context, *entity.Payment) error   { return nil }
