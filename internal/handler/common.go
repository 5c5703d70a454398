// Package handler defines the HTTP handlers of the booking API: public
// session browsing, client reservations and waitlist actions, and the
// studio's session management including full-session cancellation.
package handler

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/renholm/studio-class-booking/internal/middleware"
)

// clientID returns the caller's client identity placed in the context by
// the identity middleware.
func clientID(c echo.Context) uint64 {
	return middleware.CallerID(c, middleware.ClientIDKey)
}

// studioID returns the caller's studio identity placed in the context by
// the identity middleware.
func studioID(c echo.Context) uint64 {
	return middleware.CallerID(c, middleware.StudioIDKey)
}

// pathID parses the named path parameter as a positive integer ID.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}
