package handler

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parksavvy/internal/availability"
	"github.com/iliyamo/parksavvy/internal/hints"
	"github.com/iliyamo/parksavvy/internal/logger"
)

// AvailabilityHandler serves parking hints and the aggregates derived from
// them.  Aggregates are rebuilt from a fresh fetch on every request.
type AvailabilityHandler struct {
	Source  hints.Source
	Icons   availability.IconSet
	Timeout time.Duration
	Log     *logrus.Logger
}

func NewAvailabilityHandler(src hints.Source, icons availability.IconSet, timeout time.Duration, log *logrus.Logger) *AvailabilityHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &AvailabilityHandler{Source: src, Icons: icons.WithDefaults(), Timeout: timeout, Log: log}
}

type areaItem struct {
	availability.AreaAvailability
	Marker availability.MarkerMeta `json:"marker"`
}

type groupItem struct {
	availability.GroupAvailability
	Marker availability.MarkerMeta `json:"marker"`
}

func (h *AvailabilityHandler) fetch(ctx context.Context) ([]hints.Row, error) {
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	rows, err := h.Source.Fetch(ctx)
	if err != nil {
		h.Log.WithError(err).Warn("hint fetch failed")
		return nil, err
	}
	return rows, nil
}

func (h *AvailabilityHandler) aggregate(ctx context.Context) (map[string]availability.AreaAvailability, map[string]availability.GroupAvailability, error) {
	rows, err := h.fetch(ctx)
	if err != nil {
		return nil, nil, err
	}
	areas, groups := availability.Aggregate(hints.Inputs(rows))
	return areas, groups, nil
}

// upstreamFailed answers 502 for any fetch failure, whatever its kind.
func upstreamFailed(c echo.Context) error {
	return c.JSON(http.StatusBadGateway, echo.Map{"error": hints.ErrUpstream.Error()})
}

// Hints handles GET /v1/parking-hints and returns the raw rows.
func (h *AvailabilityHandler) Hints(c echo.Context) error {
	rows, err := h.fetch(c.Request().Context())
	if err != nil {
		return upstreamFailed(c)
	}
	return c.JSON(http.StatusOK, rows)
}

// Areas handles GET /v1/availability/areas.
func (h *AvailabilityHandler) Areas(c echo.Context) error {
	areas, _, err := h.aggregate(c.Request().Context())
	if err != nil {
		return upstreamFailed(c)
	}
	ids := make([]string, 0, len(areas))
	for id := range areas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	items := make([]areaItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, areaItem{
			AreaAvailability: areas[id],
			Marker:           h.Icons.PickAreaMarkerMeta(id, areas, ""),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Groups handles GET /v1/availability/groups.
func (h *AvailabilityHandler) Groups(c echo.Context) error {
	_, groups, err := h.aggregate(c.Request().Context())
	if err != nil {
		return upstreamFailed(c)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]groupItem, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		items = append(items, groupItem{GroupAvailability: g, Marker: h.Icons.PickGroupMarkerMeta(k, &g)})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Group handles GET /v1/availability/groups/:key.  An unknown key is not an
// error: the map still needs a marker for it.
func (h *AvailabilityHandler) Group(c echo.Context) error {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "group key required"})
	}
	_, groups, err := h.aggregate(c.Request().Context())
	if err != nil {
		return upstreamFailed(c)
	}
	resp := echo.Map{"group": key}
	if g, ok := groups[key]; ok {
		resp["availability"] = g
		resp["marker"] = h.Icons.PickGroupMarkerMeta(key, &g)
	} else {
		resp["availability"] = nil
		resp["marker"] = h.Icons.PickGroupMarkerMeta(key, nil)
	}
	return c.JSON(http.StatusOK, resp)
}

// subSpotMarkers returns the marker of every area id.  When the source is
// down every area gets the unknown marker (or fallbackIcon).
func (h *AvailabilityHandler) subSpotMarkers(ctx context.Context, areaIDs []string, fallbackIcon string) map[string]availability.MarkerMeta {
	var areas map[string]availability.AreaAvailability
	if h != nil && h.Source != nil {
		areas, _, _ = h.aggregate(ctx)
	}
	icons := availability.DefaultIcons
	if h != nil {
		icons = h.Icons
	}
	out := make(map[string]availability.MarkerMeta, len(areaIDs))
	for _, id := range areaIDs {
		out[id] = icons.PickAreaMarkerMeta(id, areas, fallbackIcon)
	}
	return out
}
