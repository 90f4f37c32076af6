package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parksavvy/internal/handler"
	"github.com/iliyamo/parksavvy/internal/middleware"
	"github.com/iliyamo/parksavvy/internal/model"
)

// RegisterParking registers the spot catalogue, its ADMIN management routes
// and the per-user favorites.
func RegisterParking(e *echo.Echo, p *handler.ParkingSpotHandler, f *handler.FavoriteHandler, jwtSecret string) {
	// ---- Public ----
	e.GET("/v1/parking-spots", p.ListSpots)
	e.GET("/v1/parking-spots/:id", p.GetSpot)

	// ---- Admin ----
	admin := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	admin.POST("/parking-spots", p.CreateSpot)
	admin.PUT("/parking-spots/:id", p.UpdateSpot)
	admin.PATCH("/parking-spots/:id", p.UpdateSpot)
	admin.DELETE("/parking-spots/:id", p.DeleteSpot)

	// ---- Favorites ----
	fav := e.Group("/v1/favorites",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	fav.GET("", f.ListFavorites)
	fav.POST("", f.AddFavorite)
	fav.DELETE("/:parkingSpotId", f.RemoveFavorite)
}
