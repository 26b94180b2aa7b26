package middleware

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/travel-ticket-booking/internal/metrics"
)

const requestIDKey = "request_id"

// RequestID propagates X-Request-Id or assigns a fresh UUID.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			c.Set(requestIDKey, id)
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

// GetRequestID returns the id assigned by RequestID.
func GetRequestID(c echo.Context) string {
	id, _ := c.Get(requestIDKey).(string)
	return id
}

// RequestLogger logs one line per request and records its latency.
func RequestLogger(log logrus.FieldLogger, monitor *metrics.Monitor) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			latency := time.Since(start)
			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			monitor.ObserveRequest(c.Request().Method, route, strconv.Itoa(status), latency)

			fields := logrus.Fields{
				"request_id": GetRequestID(c),
				"method":     c.Request().Method,
				"path":       c.Request().URL.Path,
				"route":      route,
				"status":     status,
				"latency_ms": latency.Milliseconds(),
				"ip":         c.RealIP(),
			}
			if sess, ok := CurrentSession(c); ok {
				fields["user_id"] = sess.UserID
			}
			entry := log.WithFields(fields)
			switch {
			case status >= 500:
				entry.Error("request")
			case status >= 400:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
			return nil
		}
	}
}
