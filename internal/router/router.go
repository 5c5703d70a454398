// Package router wires the HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/renholm/studio-class-booking/internal/handler"
	"github.com/renholm/studio-class-booking/internal/middleware"
)

// Deps carries everything the route table needs.
type Deps struct {
	Booking      *handler.BookingHandler
	Cancellation *handler.CancellationHandler
	Studio       *handler.StudioHandler
	RateLimit    echo.MiddlewareFunc
}

// Register attaches all routes to the Echo instance. Client routes
// require X-Client-ID, studio routes X-Studio-ID; browsing and health
// are open.
func Register(e *echo.Echo, d Deps) {
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	if d.RateLimit != nil {
		e.Use(d.RateLimit)
	}

	e.GET("/healthz", handler.Health)

	v1 := e.Group("/v1")
	v1.GET("/sessions", d.Booking.ListSessions)
	v1.GET("/sessions/:id", d.Booking.GetSession)

	client := v1.Group("", middleware.RequireClient())
	client.POST("/sessions/:id/reservations", d.Booking.CreateReservation)
	client.GET("/clients/reservations", d.Booking.ListReservations)
	client.POST("/reservations/:id/cancel", d.Cancellation.CancelReservation)
	client.POST("/sessions/:id/waitlist", d.Booking.JoinWaitlist)
	client.POST("/waitlist/claims/:ref/accept", d.Booking.AcceptClaim)

	studio := v1.Group("/studio", middleware.RequireStudio())
	studio.POST("/sessions", d.Studio.CreateSession)
	studio.PATCH("/sessions/:id", d.Studio.UpdateSession)
	studio.DELETE("/sessions/:id", d.Studio.CancelSession)
}
