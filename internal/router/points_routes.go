package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parksavvy/internal/handler"
	"github.com/iliyamo/parksavvy/internal/middleware"
	"github.com/iliyamo/parksavvy/internal/model"
)

// RegisterPoints registers the points endpoints.  Both require a valid JWT;
// spending is additionally rate limited when limiter is non-nil.
func RegisterPoints(e *echo.Echo, h *handler.PointsHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/points",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.GET("", h.GetPoints)
	if limiter != nil {
		g.POST("/use", h.UsePoints, limiter)
	} else {
		g.POST("/use", h.UsePoints)
	}
}
