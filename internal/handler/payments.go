package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-ticket-booking/internal/service"
)

// PaymentHandler exposes the intent/confirm handshake and the transaction
// history.
type PaymentHandler struct {
	Payments *service.PaymentService
}

func NewPaymentHandler(s *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{Payments: s}
}

type intentReq struct {
	BookingID uint64 `json:"bookingId" validate:"required"`
}

func paymentCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), paymentTimeout)
}

// Config: GET /v1/payments/config
func (h *PaymentHandler) Config(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Payments.Config())
}

// CreateIntent: POST /v1/payments/create-payment-intent {bookingId}
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	var req intentReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := paymentCtx(c)
	defer cancel()
	res, err := h.Payments.CreateIntent(ctx, currentSession(c), req.BookingID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Confirm: POST /v1/payments/confirm-payment {bookingId, paymentIntentId}
func (h *PaymentHandler) Confirm(c echo.Context) error {
	var req service.ConfirmInput
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := paymentCtx(c)
	defer cancel()
	res, err := h.Payments.Confirm(ctx, currentSession(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) ListTransactions(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	items, err := h.Payments.ListTransactions(ctx, currentSession(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *PaymentHandler) GetTransaction(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	txn, err := h.Payments.GetTransaction(ctx, currentSession(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, txn)
}

func (h *PaymentHandler) ListAllTransactions(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	items, err := h.Payments.ListAllTransactions(ctx, currentSession(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}
