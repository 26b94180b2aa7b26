package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-ticket-booking/internal/model"
)

// RequireRole returns a middleware that lets the request through only when
// the session attached by JWTAuth carries one of the given roles.  Missing
// sessions get 401, other roles 403.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, ok := CurrentSession(c)
			if !ok {
				return unauthorized(c, "authentication required")
			}
			if !allowed[sess.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "role " + sess.Role.String() + " may not call this endpoint"})
			}
			return next(c)
		}
	}
}
