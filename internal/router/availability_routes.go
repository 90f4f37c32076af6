package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parksavvy/internal/handler"
)

// RegisterAvailability registers the public availability endpoints.  cache
// wraps only the raw hints route; the aggregate routes recompute from a
// fresh fetch on every request.  Pass nil to serve hints uncached.
func RegisterAvailability(e *echo.Echo, h *handler.AvailabilityHandler, cache echo.MiddlewareFunc) {
	var mw []echo.MiddlewareFunc
	if cache != nil {
		mw = append(mw, cache)
	}
	e.GET("/v1/parking-hints", h.Hints, mw...)
	e.GET("/v1/availability/areas", h.Areas)
	e.GET("/v1/availability/groups", h.Groups)
	e.GET("/v1/availability/groups/:key", h.Group)
}
