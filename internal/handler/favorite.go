package handler

import (
    "database/sql"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parksavvy/internal/repository"
)

// FavoriteHandler serves /v1/favorites for the authenticated user.
type FavoriteHandler struct {
    Favorites *repository.FavoriteRepo
    Spots     *repository.ParkingSpotRepo
}

func NewFavoriteHandler(f *repository.FavoriteRepo, s *repository.ParkingSpotRepo) *FavoriteHandler {
    return &FavoriteHandler{Favorites: f, Spots: s}
}

// ListFavorites handles GET /v1/favorites
func (h *FavoriteHandler) ListFavorites(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    items, err := h.Favorites.ListSpots(c.Request().Context(), uid)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// AddFavorite handles POST /v1/favorites {parking_spot_id}
func (h *FavoriteHandler) AddFavorite(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    var body struct {
        ParkingSpotID uint64 `json:"parking_spot_id"`
    }
    if err := c.Bind(&body); err != nil || body.ParkingSpotID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "parking_spot_id required"})
    }
    ctx := c.Request().Context()
    ok, err := h.Spots.Exists(ctx, body.ParkingSpotID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
    }
    if !ok {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "parking spot not found"})
    }
    fav, err := h.Favorites.Add(ctx, uid, body.ParkingSpotID)
    if err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "already in favorites"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not add favorite"})
    }
    return c.JSON(http.StatusCreated, fav)
}

// RemoveFavorite handles DELETE /v1/favorites/:parkingSpotId
func (h *FavoriteHandler) RemoveFavorite(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    spotID, ok := parseIDParam(c, "parkingSpotId")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid parking spot id"})
    }
    if err := h.Favorites.Remove(c.Request().Context(), uid, spotID); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "favorite not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not remove favorite"})
    }
    return c.NoContent(http.StatusNoContent)
}
