package handler // handler defines http handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-ticket-booking/internal/middleware"
	"github.com/iliyamo/travel-ticket-booking/internal/service"
	"github.com/iliyamo/travel-ticket-booking/internal/session"
)

// Per-request deadlines.  Payment calls go out to the processor and get
// more room.
const (
	requestTimeout = 5 * time.Second
	paymentTimeout = 20 * time.Second
)

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// currentSession returns the caller's session or the zero session for
// anonymous requests.  Services reject the zero session where it matters.
func currentSession(c echo.Context) session.Session {
	sess, _ := middleware.CurrentSession(c)
	return sess
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id == 0 {
		return 0, service.ErrInvalidInput.WithMessage("invalid " + name)
	}
	return id, nil
}

// queryInt reads an optional integer query parameter; bad values read as 0.
func queryInt(c echo.Context, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.QueryParam(name)))
	if err != nil {
		return 0
	}
	return n
}
