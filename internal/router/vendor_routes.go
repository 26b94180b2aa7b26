package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-ticket-booking/internal/handler"
	"github.com/iliyamo/travel-ticket-booking/internal/middleware"
	"github.com/iliyamo/travel-ticket-booking/internal/model"
)

// RegisterVendor registers vendor-scoped endpoints under /v1/vendor.
func RegisterVendor(e *echo.Echo, t *handler.TicketHandler, b *handler.BookingHandler) {
	g := e.Group("/v1/vendor", middleware.RequireRole(model.RoleVendor))

	// ---- Tickets ----
	g.POST("/tickets", t.Create)
	g.GET("/tickets", t.ListMine)
	g.PUT("/tickets/:id", t.Update)
	g.DELETE("/tickets/:id", t.Delete)

	// ---- Booking requests ----
	g.GET("/bookings", b.ListVendorRequests)
	g.PATCH("/bookings/:id/accept", b.Accept)
	g.PATCH("/bookings/:id/reject", b.Reject)
	g.GET("/revenue", b.Revenue)
}
