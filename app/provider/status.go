package provider

import (
	"strings"

	"github.com/civicpay-solutions/ms-go-revenue-payments/app/entity"
)

// Per-provider status vocabularies. Rejections and abandonments map to
// cancelled rather than failed so refunds and reporting can tell a
// declined charge from a payer who walked away.
var statusTables = map[string]map[string]entity.PaymentStatus{
	MTNMoMoName: {
		"pending":    entity.PaymentStatusPending,
		"ongoing":    entity.PaymentStatusPending,
		"created":    entity.PaymentStatusPending,
		"successful": entity.PaymentStatusSuccessful,
		"failed":     entity.PaymentStatusFailed,
		"rejected":   entity.PaymentStatusCancelled,
		"timeout":    entity.PaymentStatusCancelled,
		"expired":    entity.PaymentStatusCancelled,
	},
	PaystackName: {
		"success":    entity.PaymentStatusSuccessful,
		"failed":     entity.PaymentStatusFailed,
		"abandoned":  entity.PaymentStatusCancelled,
		"reversed":   entity.PaymentStatusCancelled,
		"pending":    entity.PaymentStatusPending,
		"ongoing":    entity.PaymentStatusPending,
		"processing": entity.PaymentStatusPending,
		"queued":     entity.PaymentStatusPending,
	},
}

// MapStatus translates a provider status string to the canonical enum.
// Matching is case-insensitive; anything unrecognized, including an
// unknown provider name, maps to pending. Never assume an outcome from
// vocabulary we do not know.
func MapStatus(providerName, providerStatus string) entity.PaymentStatus {
	table, ok := statusTables[strings.ToLower(strings.TrimSpace(providerName))]
	if !ok {
		return entity.PaymentStatusPending
	}
	status, ok := table[strings.ToLower(strings.TrimSpace(providerStatus))]
	if !ok {
		return entity.PaymentStatusPending
	}
	return status
}
