package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-ticket-booking/internal/session"
	"github.com/iliyamo/travel-ticket-booking/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the caller's session in the request context.  Handlers read it
// back with CurrentSession.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return unauthorized(c, "missing bearer token")
			}
			sess, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return unauthorized(c, "invalid token")
			}
			attach(c, sess)
			return next(c)
		}
	}
}

// OptionalAuth attaches a session when a valid bearer token is present and
// otherwise lets the request through anonymously.  Used on public routes
// whose answer depends on who is asking.
func OptionalAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearer(c); ok {
				if sess, err := utils.ParseAccessToken(secret, raw); err == nil {
					attach(c, sess)
				}
			}
			return next(c)
		}
	}
}

// CurrentSession returns the authenticated caller, if any.
func CurrentSession(c echo.Context) (session.Session, bool) {
	return session.FromContext(c.Request().Context())
}

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

func attach(c echo.Context, sess session.Session) {
	req := c.Request()
	c.SetRequest(req.WithContext(session.NewContext(req.Context(), sess)))
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated", "message": msg})
}
