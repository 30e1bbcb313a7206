package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/civicpay-solutions/ms-go-revenue-payments/app/factory"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/ledger"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/mapper"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/money"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/provider"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/service"
	"github.com/civicpay-solutions/ms-go-revenue-payments/app/types"
)

type PaymentController struct {
	reconciliation *service.ReconciliationService
	logger         logrus.FieldLogger
}

func NewPaymentController(reconciliation *service.ReconciliationService) *PaymentController {
	return &PaymentController{
		reconciliation: reconciliation,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) ProcessPayment(ctx echo.Context) error {
	req, err := types.NewProcessPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	amountCents, err := req.AmountCents()
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "amount must be a positive decimal number")
	}

	result, err := c.reconciliation.InitiatePayment(ctx.Request().Context(), &service.InitiateInput{
		Provider:      req.Provider,
		BillID:        req.BillID,
		BillNumber:    req.BillNumber,
		AccountNumber: req.AccountNumber,
		AmountCents:   amountCents,
		PayerName:     req.PayerName,
		PayerEmail:    req.PayerEmail,
		PayerPhone:    req.PayerPhone,
		ChargePhone:   req.MomoNumber,
		Description:   req.Description,
	})
	if err != nil {
		var validationErr *ledger.ValidationError
		var providerErr *provider.ProviderError
		switch {
		case errors.As(err, &validationErr):
			return c.writeError(ctx, http.StatusBadRequest, validationErr.Error())
		case errors.Is(err, service.ErrProviderUnsupported):
			return c.writeError(ctx, http.StatusBadRequest, "unknown payment provider")
		case errors.Is(err, ledger.ErrBillNotFound):
			return c.writeError(ctx, http.StatusNotFound, "bill not found or already settled")
		case errors.As(err, &providerErr):
			// Provider rejections surface as a soft failure the payer can retry.
			resp := &types.ProcessPaymentResponse{
				Success: false,
				Message: "the payment could not be started, please try again",
			}
			var initErr *service.InitiationError
			if errors.As(err, &initErr) {
				resp.Reference = initErr.Reference
			}
			return ctx.JSON(http.StatusOK, resp)
		default:
			c.logger.WithError(err).Error("Process payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.ProcessPaymentResponse{
		Success:              true,
		Reference:            result.Reference,
		TransactionID:        deref(result.ProviderTxnID),
		CheckoutURL:          deref(result.CheckoutURL),
		RequiresConfirmation: result.RequiresConfirmation,
		Message:              result.Message,
	})
}

func (c *PaymentController) VerifyPayment(ctx echo.Context) error {
	req, err := types.NewVerifyPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.reconciliation.VerifyPayment(ctx.Request().Context(), req.Reference, req.BillID)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		}
		c.logger.WithError(err).Error("Verify payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	resp := &types.VerifyPaymentResponse{
		Success:       result.Status == service.VerifyStatusCompleted,
		Status:        result.Status,
		Message:       result.Message,
		Reference:     result.Reference,
		TransactionID: result.ProviderTxnID,
		Retry:         result.Retry,
	}
	if result.AmountCents > 0 {
		resp.Amount = money.FormatMajor(result.AmountCents)
	}

	return ctx.JSON(http.StatusOK, resp)
}

func (c *PaymentController) HandleProviderCallback(ctx echo.Context) error {
	req, err := types.NewCallbackRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	err = c.reconciliation.HandleCallback(ctx.Request().Context(), &service.CallbackInput{
		Provider:  req.Provider,
		Payload:   req.Payload,
		Signature: req.Signature,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProviderUnsupported):
			return c.writeError(ctx, http.StatusBadRequest, "unknown provider")
		case errors.Is(err, service.ErrCallbackRejected):
			return c.writeError(ctx, http.StatusBadRequest, "callback rejected")
		default:
			// 5xx tells the provider to redeliver the webhook later.
			c.logger.WithError(err).Error("Handle provider callback failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.CallbackAckResponse{Status: "success"})
}

func (c *PaymentController) GetPayment(ctx echo.Context) error {
	reference := strings.TrimSpace(ctx.Param("reference"))
	if reference == "" {
		return c.writeError(ctx, http.StatusBadRequest, "reference is required")
	}

	payment, err := c.reconciliation.GetPayment(ctx.Request().Context(), reference)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		}
		c.logger.WithError(err).Error("Get payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToResponse(payment)})
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
