package provider

import "context"

// InitiateInput carries everything an adapter needs to start a charge.
// PayerPhone is already normalized to international form (233...).
// Amounts are minor units; each adapter owns its own unit conversion.
type InitiateInput struct {
	Reference   string
	AmountCents int64
	Currency    string

	PayerName  string
	PayerEmail string
	PayerPhone string

	Description string
	CallbackURL string
}

// InitiateOutput reports how a charge was started. ProviderTxnID is
// set only when it is the provider's verification key for this payment;
// ids the provider hands back for other purposes go in Notes.
type InitiateOutput struct {
	ProviderTxnID        *string
	CheckoutURL          *string
	RequiresConfirmation bool
	Message              string
	Notes                map[string]string
}

type VerifyOutput struct {
	ProviderStatus string
	ProviderTxnID  *string
	AmountCents    *int64
	Message        string
	Raw            string
}

// WebhookEvent is the provider-neutral view of a callback payload.
// Reference is our payment reference as echoed back by the provider.
type WebhookEvent struct {
	Reference      string
	ProviderTxnID  *string
	ProviderStatus string
	AmountCents    *int64
	EventType      string
}

// Provider adapts one external payment processor. Implementations never
// panic across this boundary; every failure is an error the service can
// treat as retryable. Verify receives both our payment reference and
// the stored provider transaction id because each processor keys status
// lookups on a different one; the adapter picks.
type Provider interface {
	Name() string
	Initiate(ctx context.Context, input *InitiateInput) (*InitiateOutput, error)
	Verify(ctx context.Context, reference, providerTxnID string) (*VerifyOutput, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
