package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// userID identifies the caller for rate limit and idempotency keys.  It
// returns "guest" when no session is attached.
func userID(c echo.Context) string {
	if sess, ok := CurrentSession(c); ok {
		return strconv.FormatUint(sess.UserID, 10)
	}
	return "guest"
}
