package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
	"github.com/iliyamo/travel-ticket-booking/internal/service"
	"github.com/iliyamo/travel-ticket-booking/internal/session"
)

type (
	ticketOp  func(context.Context, session.Session, uint64) (*model.Ticket, error)
	bookingOp func(context.Context, session.Session, uint64) (*service.BookingView, error)
	userOp    func(context.Context, session.Session, uint64) (*model.User, error)
)

// BookingHandler exposes the booking state machine.
type BookingHandler struct {
	Bookings *service.BookingService
}

func NewBookingHandler(s *service.BookingService) *BookingHandler {
	return &BookingHandler{Bookings: s}
}

// Create: POST /v1/bookings {ticketId, bookingQuantity}
func (h *BookingHandler) Create(c echo.Context) error {
	var in service.CreateBookingInput
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	b, err := h.Bookings.Create(ctx, currentSession(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *BookingHandler) Get(c echo.Context) error {
	return h.apply(c, h.Bookings.Get)
}

func (h *BookingHandler) Cancel(c echo.Context) error {
	return h.apply(c, h.Bookings.Cancel)
}

func (h *BookingHandler) Accept(c echo.Context) error {
	return h.apply(c, h.Bookings.Accept)
}

func (h *BookingHandler) Reject(c echo.Context) error {
	return h.apply(c, h.Bookings.Reject)
}

func (h *BookingHandler) apply(c echo.Context, op bookingOp) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	b, err := op(ctx, currentSession(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) ListMine(c echo.Context) error {
	return h.list(c, h.Bookings.ListMine)
}

func (h *BookingHandler) ListVendorRequests(c echo.Context) error {
	return h.list(c, h.Bookings.ListVendorRequests)
}

func (h *BookingHandler) ListAll(c echo.Context) error {
	return h.list(c, h.Bookings.ListAll)
}

func (h *BookingHandler) list(c echo.Context, op func(context.Context, session.Session) ([]service.BookingView, error)) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	items, err := op(ctx, currentSession(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Revenue: GET /v1/vendor/revenue
func (h *BookingHandler) Revenue(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	rev, err := h.Bookings.VendorRevenue(ctx, currentSession(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, rev)
}
