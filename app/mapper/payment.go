package mapper

import (
	"time"

	"github.com/civicpay-solutions/ms-go-revenue-payments/app/entity"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/money"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/types"
)

func PaymentToResponse(item *entity.Payment) *types.PaymentResponse {
	if item == nil {
		return nil
	}

	return &types.PaymentResponse{
		Reference:     item.Reference,
		BillNumber:    item.BillNumber,
		AccountNumber: item.AccountNumber,
		Amount:        money.FormatMajor(item.AmountCents),
		Currency:      item.Currency,
		Method:        string(item.Method),
		Provider:      item.Provider,
		Status:        string(item.Status),
		PayerName:     item.PayerName,
		TransactionID: derefString(item.ProviderTxnID),
		CreatedAt:     item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
