package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/travel-ticket-booking/internal/config"
	"github.com/iliyamo/travel-ticket-booking/internal/handler"
	"github.com/iliyamo/travel-ticket-booking/internal/metrics"
	"github.com/iliyamo/travel-ticket-booking/internal/middleware"
)

// Deps is everything the HTTP layer is built from.  Redis may be nil, in
// which case rate limiting, caching and idempotency are pass-through.
type Deps struct {
	Auth     *handler.AuthHandler
	Tickets  *handler.TicketHandler
	Bookings *handler.BookingHandler
	Payments *handler.PaymentHandler
	Users    *handler.UserHandler
	Health   *handler.HealthHandler

	JWTSecret   string
	Redis       *redis.Client
	RateLimit   config.RateLimitConfig
	Cache       config.CacheConfig
	Idempotency config.IdempotencyConfig
	Monitor     *metrics.Monitor
	Log         logrus.FieldLogger
}

// New builds the echo instance with global middleware and every route.
// OptionalAuth runs globally so the rate limiter and request log can key on
// the caller; role groups then only check the attached session.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(
		middleware.RequestID(),
		middleware.RequestLogger(d.Log, d.Monitor),
		middleware.OptionalAuth(d.JWTSecret),
		middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Monitor, d.Log),
	)

	RegisterRoutes(e, d.Health)
	RegisterAuth(e, d.Auth, d.JWTSecret)
	RegisterPublic(e, d.Tickets, middleware.NewRedisCache(d.Cache, d.Redis, d.Log))
	RegisterUser(e, d.Bookings, d.Payments, middleware.Idempotency(d.Idempotency, d.Redis, d.Log))
	RegisterVendor(e, d.Tickets, d.Bookings)
	RegisterAdmin(e, d.Tickets, d.Bookings, d.Payments, d.Users)
	return e
}

// RegisterRoutes registers the operational endpoints.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", handler.Metrics())
}

// RegisterAuth registers authentication routes.  Register, login, refresh
// and logout need no session; /me and /profile do.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout) // refresh_token in body, or bearer to end every session

	auth := e.Group("/v1/auth", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.PUT("/profile", a.UpdateProfile)
}

// RegisterPublic registers the anonymous ticket catalogue.  Ticket detail
// is not cached because unapproved tickets are visible to their owner.
func RegisterPublic(e *echo.Echo, t *handler.TicketHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/tickets")
	g.GET("", t.ListPublic, cache)
	g.GET("/latest", t.Latest, cache)
	g.GET("/advertised", t.Advertised, cache)
	g.GET("/:id", t.Get)
}
