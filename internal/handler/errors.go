package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-ticket-booking/internal/service"
)

// statusFor maps a service error to its HTTP status.
func statusFor(e *service.Error) int {
	switch {
	case errors.Is(e, service.ErrUnauthenticated), errors.Is(e, service.ErrBadCredentials), errors.Is(e, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(e, service.ErrStorage):
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindPrecondition, service.KindConflict, service.KindAvailability:
		return http.StatusConflict
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindExternal:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": code, "message": text}.  Errors that are
// not service errors are passed to echo's error handler so they are logged
// and rendered as 500.
func respondError(c echo.Context, err error) error {
	se := service.AsError(err)
	if se == nil {
		return err
	}
	return c.JSON(statusFor(se), echo.Map{"error": se.Code, "message": se.Message})
}
