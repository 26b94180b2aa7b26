package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/travel-ticket-booking/internal/handler"
	"github.com/iliyamo/travel-ticket-booking/internal/middleware"
	"github.com/iliyamo/travel-ticket-booking/internal/model"
)

// RegisterUser registers the traveller endpoints.  Booking detail is open
// to any signed-in role because the service decides visibility; creation,
// cancellation and payment are for the user role.
func RegisterUser(e *echo.Echo, b *handler.BookingHandler, p *handler.PaymentHandler, idempotent echo.MiddlewareFunc) {
	signedIn := middleware.RequireRole(model.RoleUser, model.RoleVendor, model.RoleAdmin)
	e.GET("/v1/bookings/:id", b.Get, signedIn)
	e.GET("/v1/payments/config", p.Config, signedIn)
	e.GET("/v1/payments/transactions/:id", p.GetTransaction, signedIn)

	g := e.Group("/v1", middleware.RequireRole(model.RoleUser))
	g.POST("/bookings", b.Create)
	g.GET("/bookings/mine", b.ListMine)
	g.PATCH("/bookings/:id/cancel", b.Cancel)

	g.POST("/payments/create-payment-intent", p.CreateIntent)
	g.POST("/payments/confirm-payment", p.Confirm, idempotent)
	g.GET("/payments/transactions", p.ListTransactions)
}
