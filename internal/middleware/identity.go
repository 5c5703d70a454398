// Package middleware carries the Echo middleware of the HTTP surface:
// caller identity extraction and the Redis token-bucket rate limiter.
package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys set by the identity middleware.
const (
	ClientIDKey = "client_id"
	StudioIDKey = "studio_id"
)

// Header names carrying the caller identity established upstream.
const (
	clientIDHeader = "X-Client-ID"
	studioIDHeader = "X-Studio-ID"
)

// RequireClient extracts the client identity from X-Client-ID and stores
// it in the context. Requests without a parseable positive ID are
// rejected.
func RequireClient() echo.MiddlewareFunc {
	return requireIdentity(clientIDHeader, ClientIDKey)
}

// RequireStudio extracts the studio identity from X-Studio-ID and stores
// it in the context.
func RequireStudio() echo.MiddlewareFunc {
	return requireIdentity(studioIDHeader, StudioIDKey)
}

func requireIdentity(header, key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(header)
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || id == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error":   "unauthorized",
					"message": "missing or invalid " + header + " header",
				})
			}
			c.Set(key, id)
			return next(c)
		}
	}
}

// CallerID returns the identity the middleware stored under key, or 0
// when the middleware did not run.
func CallerID(c echo.Context, key string) uint64 {
	if v, ok := c.Get(key).(uint64); ok {
		return v
	}
	return 0
}
