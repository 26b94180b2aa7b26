package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
	"github.com/iliyamo/travel-ticket-booking/internal/service"
)

// TicketHandler serves the public catalogue and the vendor/admin ticket
// tools.
type TicketHandler struct {
	Tickets *service.TicketService
}

func NewTicketHandler(s *service.TicketService) *TicketHandler {
	return &TicketHandler{Tickets: s}
}

// ListPublic: GET /v1/tickets?search=&transportType=&sortBy=&page=&limit=
func (h *TicketHandler) ListPublic(c echo.Context) error {
	q := model.TicketQuery{
		Search: strings.TrimSpace(c.QueryParam("search")),
		SortBy: model.TicketSortOrder(strings.TrimSpace(c.QueryParam("sortBy"))),
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
	}
	if tt := strings.TrimSpace(c.QueryParam("transportType")); tt != "" && !strings.EqualFold(tt, "all") {
		mode, err := model.ParseTransportMode(tt)
		if err != nil {
			return respondError(c, service.ErrInvalidInput.WithMessage(err.Error()))
		}
		q.Transport = mode
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	page, err := h.Tickets.ListPublic(ctx, q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Latest: GET /v1/tickets/latest?limit=6
func (h *TicketHandler) Latest(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	items, err := h.Tickets.Latest(ctx, queryInt(c, "limit"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Advertised: GET /v1/tickets/advertised
func (h *TicketHandler) Advertised(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	items, err := h.Tickets.Advertised(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// Get: GET /v1/tickets/:id.  Unapproved tickets are visible to their
// vendor and to admins only.
func (h *TicketHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	t, err := h.Tickets.Get(ctx, currentSession(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// ---- vendor ----

func (h *TicketHandler) Create(c echo.Context) error {
	var in service.TicketInput
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	t, err := h.Tickets.Create(ctx, currentSession(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *TicketHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var in service.TicketInput
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	t, err := h.Tickets.Update(ctx, currentSession(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Tickets.Delete(ctx, currentSession(c), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TicketHandler) ListMine(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	items, err := h.Tickets.ListMine(ctx, currentSession(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// ---- admin ----

func (h *TicketHandler) ListAll(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	items, err := h.Tickets.ListAll(ctx, currentSession(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *TicketHandler) Approve(c echo.Context) error {
	return h.review(c, h.Tickets.Approve)
}

func (h *TicketHandler) Reject(c echo.Context) error {
	return h.review(c, h.Tickets.Reject)
}

func (h *TicketHandler) ToggleAdvertise(c echo.Context) error {
	return h.review(c, h.Tickets.ToggleAdvertise)
}

func (h *TicketHandler) review(c echo.Context, op ticketOp) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	t, err := op(ctx, currentSession(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}
