package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-ticket-booking/internal/handler"
	"github.com/iliyamo/travel-ticket-booking/internal/middleware"
	"github.com/iliyamo/travel-ticket-booking/internal/model"
)

// RegisterAdmin registers the admin console endpoints.
func RegisterAdmin(e *echo.Echo, t *handler.TicketHandler, b *handler.BookingHandler, p *handler.PaymentHandler, u *handler.UserHandler) {
	g := e.Group("/v1", middleware.RequireRole(model.RoleAdmin))

	// ---- Users ----
	g.GET("/users", u.List)
	g.GET("/users/stats", u.Stats)
	g.GET("/users/:id", u.Get)
	g.PUT("/users/:id/make-admin", u.MakeAdmin)
	g.PUT("/users/:id/make-vendor", u.MakeVendor)
	g.PUT("/users/:id/mark-fraud", u.MarkFraud)
	g.PUT("/users/:id/unmark-fraud", u.UnmarkFraud)
	g.DELETE("/users/:id", u.Delete)

	// ---- Tickets ----
	g.GET("/admin/tickets", t.ListAll)
	g.PATCH("/admin/tickets/:id/approve", t.Approve)
	g.PATCH("/admin/tickets/:id/reject", t.Reject)
	g.PATCH("/admin/tickets/:id/advertise", t.ToggleAdvertise)

	// ---- Bookings and payments ----
	g.GET("/admin/bookings", b.ListAll)
	g.GET("/payments/admin/transactions", p.ListAllTransactions)
}
