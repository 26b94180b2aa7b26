package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-ticket-booking/internal/metrics"
)

// Pinger is anything Health can probe, such as *sql.DB or a Redis client
// adapter.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness and dependency state.
type HealthHandler struct {
	Checks map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{Checks: checks}
}

// Health returns 200 "ok" when every registered dependency answers, or 503
// naming the ones that did not.
func (h *HealthHandler) Health(c echo.Context) error {
	if len(h.Checks) == 0 {
		return c.String(http.StatusOK, "ok")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	failed := echo.Map{}
	for name, p := range h.Checks {
		if err := p.PingContext(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "failed": failed})
	}
	return c.String(http.StatusOK, "ok")
}

// Metrics serves the Prometheus exposition format.
func Metrics() echo.HandlerFunc {
	return echo.WrapHandler(metrics.Handler())
}
