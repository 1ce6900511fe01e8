package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking/internal/handler"
	"github.com/iliyamo/hotel-booking/internal/middleware"
	"github.com/iliyamo/hotel-booking/internal/model"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	Hotels   *handler.HotelHandler
	Bookings *handler.BookingHandler
	Loyalty  *handler.LoyaltyHandler
}

// Middlewares are the optional Redis-backed layers.  A nil entry is
// skipped.
type Middlewares struct {
	RateLimit        echo.MiddlewareFunc
	BookingRateLimit echo.MiddlewareFunc // stacked on routes that reserve rooms or move money
	Cache            echo.MiddlewareFunc
}

// RegisterRoutes registers the health check, the unauthenticated auth and
// browse endpoints, and the protected booking API under /v1.
func RegisterRoutes(e *echo.Echo, h Handlers, mw Middlewares, jwtSecret string) {
	e.GET("/healthz", h.Health.Health)

	// Session bootstrap: no access token yet.
	g := e.Group("/v1/auth")
	g.POST("/register", h.Auth.Register)
	g.POST("/login", h.Auth.Login)
	g.POST("/refresh", h.Auth.Refresh)

	// Hotel lookup is public and served through the response cache.
	pub := e.Group("/v1/hotels")
	if mw.Cache != nil {
		pub.Use(mw.Cache)
	}
	pub.GET("/:id", h.Hotels.GetHotel)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleGuest, model.RoleManager, model.RoleAdmin))
	// Limit after authentication so buckets are keyed per user.
	if mw.RateLimit != nil {
		auth.Use(mw.RateLimit)
	}
	auth.GET("/me", h.Auth.Me)
	auth.POST("/logout", h.Auth.Logout)

	auth.POST("/hotels", h.Hotels.CreateHotel, middleware.RequireRole(model.RoleManager, model.RoleAdmin))

	var mutate []echo.MiddlewareFunc
	if mw.BookingRateLimit != nil {
		mutate = append(mutate, mw.BookingRateLimit)
	}
	auth.POST("/bookings", h.Bookings.CreateBooking, mutate...)
	auth.GET("/bookings/:id", h.Bookings.GetBooking)
	auth.POST("/bookings/:id/payment", h.Bookings.Pay, mutate...)
	auth.POST("/bookings/:id/cancel", h.Bookings.Cancel, mutate...)
	auth.GET("/my-bookings", h.Bookings.ListMyBookings)

	auth.GET("/loyalty", h.Loyalty.GetLoyalty)
	auth.GET("/admin/loyalty/:user_id/reconcile", h.Loyalty.Reconcile, middleware.RequireRole(model.RoleAdmin))
}
