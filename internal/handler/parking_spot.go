package handler

import (
    "database/sql"
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parksavvy/internal/availability"
    "github.com/iliyamo/parksavvy/internal/model"
    "github.com/iliyamo/parksavvy/internal/repository"
)

// ParkingSpotHandler serves the public spot catalogue and the admin CRUD.
// Availability is optional; without it sub-spot markers are always unknown.
type ParkingSpotHandler struct {
    Spots        *repository.ParkingSpotRepo
    Availability *AvailabilityHandler
}

func NewParkingSpotHandler(spots *repository.ParkingSpotRepo, avail *AvailabilityHandler) *ParkingSpotHandler {
    return &ParkingSpotHandler{Spots: spots, Availability: avail}
}

type subSpotReq struct {
    AreaID      string `json:"area_id"`
    CapacityEst int    `json:"capacity_est"`
}

// spotReq uses pointers so PATCH can tell "absent" from "zero".
type spotReq struct {
    Name       *string       `json:"name"`
    Address    *string       `json:"address"`
    Latitude   *float64      `json:"latitude"`
    Longitude  *float64      `json:"longitude"`
    AreaPrefix *string       `json:"area_prefix"`
    IconURL    *string       `json:"icon_url"`
    SubSpots   *[]subSpotReq `json:"sub_spots"`
}

type subSpotItem struct {
    model.ParkingSubSpot
    Marker availability.MarkerMeta `json:"marker"`
}

type spotDetail struct {
    *model.ParkingSpot
    SubSpots []subSpotItem `json:"sub_spots"`
}

// apply copies the present fields of req onto p and validates the result.
// It returns the sub-spots to store, nil when they were not sent.
func (req spotReq) apply(p *model.ParkingSpot) ([]model.ParkingSubSpot, string) {
    if req.Name != nil {
        p.Name = strings.TrimSpace(*req.Name)
    }
    if req.Address != nil {
        p.Address = strings.TrimSpace(*req.Address)
    }
    if req.Latitude != nil {
        p.Latitude = *req.Latitude
    }
    if req.Longitude != nil {
        p.Longitude = *req.Longitude
    }
    if req.AreaPrefix != nil {
        p.AreaPrefix = strings.TrimSpace(*req.AreaPrefix)
    }
    if req.IconURL != nil {
        p.IconURL = strings.TrimSpace(*req.IconURL)
    }

    if p.Name == "" {
        return nil, "name is required"
    }
    if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
        return nil, "invalid coordinates"
    }
    if p.AreaPrefix != "" {
        if key, ok := availability.GroupKey(p.AreaPrefix); !ok || key != p.AreaPrefix {
            return nil, "area_prefix must be letters only"
        }
    }
    if req.SubSpots == nil {
        return nil, ""
    }

    subs := make([]model.ParkingSubSpot, 0, len(*req.SubSpots))
    seen := map[string]bool{}
    for _, s := range *req.SubSpots {
        id := strings.TrimSpace(s.AreaID)
        if id == "" || s.CapacityEst < 0 {
            return nil, "invalid sub_spots"
        }
        if seen[id] {
            return nil, "duplicate area_id in sub_spots"
        }
        seen[id] = true
        subs = append(subs, model.ParkingSubSpot{ParkingSpotID: p.ID, AreaID: id, CapacityEst: s.CapacityEst})
    }
    return subs, ""
}

// ListSpots handles GET /v1/parking-spots.
func (h *ParkingSpotHandler) ListSpots(c echo.Context) error {
    items, err := h.Spots.List(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetSpot handles GET /v1/parking-spots/:id and includes every sub-spot
// with its current marker.
func (h *ParkingSpotHandler) GetSpot(c echo.Context) error {
    id, ok := parseIDParam(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    ctx := c.Request().Context()
    p, err := h.Spots.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "parking spot not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
    }
    subs, err := h.Spots.SubSpots(ctx, id)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
    }

    ids := make([]string, len(subs))
    for i, s := range subs {
        ids[i] = s.AreaID
    }
    markers := h.Availability.subSpotMarkers(ctx, ids, p.IconURL)
    out := spotDetail{ParkingSpot: p, SubSpots: make([]subSpotItem, 0, len(subs))}
    for _, s := range subs {
        out.SubSpots = append(out.SubSpots, subSpotItem{ParkingSubSpot: s, Marker: markers[s.AreaID]})
    }
    return c.JSON(http.StatusOK, out)
}

// CreateSpot handles POST /v1/admin/parking-spots
func (h *ParkingSpotHandler) CreateSpot(c echo.Context) error {
    var req spotReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if req.Latitude == nil || req.Longitude == nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "latitude and longitude are required"})
    }
    p := &model.ParkingSpot{}
    subs, msg := req.apply(p)
    if msg != "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
    }
    if err := h.Spots.Create(c.Request().Context(), p, subs); err != nil {
        if errors.Is(err, repository.ErrConflict) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "area_id already assigned to another spot"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create parking spot"})
    }
    return c.JSON(http.StatusCreated, p)
}

// UpdateSpot handles PATCH and PUT /v1/admin/parking-spots/:id.  PUT must
// carry the required fields; PATCH changes only what is sent.
func (h *ParkingSpotHandler) UpdateSpot(c echo.Context) error {
    id, ok := parseIDParam(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    var req spotReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if c.Request().Method == http.MethodPut && (req.Name == nil || req.Latitude == nil || req.Longitude == nil) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, latitude and longitude are required"})
    }

    ctx := c.Request().Context()
    p, err := h.Spots.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "parking spot not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
    }
    subs, msg := req.apply(p)
    if msg != "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
    }
    if err := h.Spots.Update(ctx, p, subs); err != nil {
        switch {
        case errors.Is(err, sql.ErrNoRows):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "parking spot not found"})
        case errors.Is(err, repository.ErrConflict):
            return c.JSON(http.StatusConflict, echo.Map{"error": "area_id already assigned to another spot"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
    }
    return c.JSON(http.StatusOK, p)
}

// DeleteSpot handles DELETE /v1/admin/parking-spots/:id
func (h *ParkingSpotHandler) DeleteSpot(c echo.Context) error {
    id, ok := parseIDParam(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
    }
    if err := h.Spots.Delete(c.Request().Context(), id); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "parking spot not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
    }
    return c.NoContent(http.StatusNoContent)
}
