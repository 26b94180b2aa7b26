package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-ticket-booking/internal/service"
)

// UserHandler is the admin user management API.
type UserHandler struct {
	Users *service.UserService
}

func NewUserHandler(s *service.UserService) *UserHandler {
	return &UserHandler{Users: s}
}

// List: GET /v1/users?role=vendor&query=ali
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	items, err := h.Users.List(ctx, currentSession(c), strings.TrimSpace(c.QueryParam("role")), strings.TrimSpace(c.QueryParam("query")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *UserHandler) Stats(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	st, err := h.Users.Stats(ctx, currentSession(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *UserHandler) Get(c echo.Context) error         { return h.apply(c, h.Users.Get) }
func (h *UserHandler) MakeAdmin(c echo.Context) error   { return h.apply(c, h.Users.MakeAdmin) }
func (h *UserHandler) MakeVendor(c echo.Context) error  { return h.apply(c, h.Users.MakeVendor) }
func (h *UserHandler) MarkFraud(c echo.Context) error   { return h.apply(c, h.Users.MarkFraud) }
func (h *UserHandler) UnmarkFraud(c echo.Context) error { return h.apply(c, h.Users.UnmarkFraud) }

func (h *UserHandler) apply(c echo.Context, op userOp) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	u, err := op(ctx, currentSession(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Users.Delete(ctx, currentSession(c), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
