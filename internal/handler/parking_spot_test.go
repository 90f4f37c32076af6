package handler

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parksavvy/internal/availability"
	"github.com/iliyamo/parksavvy/internal/hints"
	"github.com/iliyamo/parksavvy/internal/model"
	"github.com/iliyamo/parksavvy/internal/repository"
)

type parkingFixture struct {
	e   *echo.Echo
	src *fakeSource
}

func newParkingServer(t *testing.T) *parkingFixture {
	db := newDB(t)
	spots := repository.NewParkingSpotRepo(db)
	src := &fakeSource{rows: []hints.Row{row("A01", 2, intp(1))}}
	avail := NewAvailabilityHandler(src, availability.IconSet{}, time.Second, nil)
	p := NewParkingSpotHandler(spots, avail)
	f := NewFavoriteHandler(repository.NewFavoriteRepo(db), spots)

	e := echo.New()
	e.GET("/v1/parking-spots", p.ListSpots)
	e.GET("/v1/parking-spots/:id", p.GetSpot)
	e.POST("/v1/admin/parking-spots", p.CreateSpot)
	e.PUT("/v1/admin/parking-spots/:id", p.UpdateSpot)
	e.PATCH("/v1/admin/parking-spots/:id", p.UpdateSpot)
	e.DELETE("/v1/admin/parking-spots/:id", p.DeleteSpot)

	uid, err := repository.NewUserRepo(db).Create(context.Background(), "fav", "fav@example.com", "password123", model.RoleUser, 4)
	require.NoError(t, err)
	me := asUser(uid, model.RoleUser)
	e.GET("/v1/favorites", f.ListFavorites, me)
	e.POST("/v1/favorites", f.AddFavorite, me)
	e.DELETE("/v1/favorites/:parkingSpotId", f.RemoveFavorite, me)
	return &parkingFixture{e: e, src: src}
}

func createSpot(t *testing.T, e *echo.Echo, body echo.Map) uint64 {
	t.Helper()
	rec := call(e, http.MethodPost, "/v1/admin/parking-spots", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return uint64(decode(t, rec)["id"].(float64))
}

func spotPath(id uint64) string { return "/v1/admin/parking-spots/" + strconv.FormatUint(id, 10) }

func TestCreateAndGetSpot(t *testing.T) {
	fx := newParkingServer(t)
	id := createSpot(t, fx.e, echo.Map{
		"name": "Station Lot", "latitude": 25.04, "longitude": 121.51, "area_prefix": "A",
		"icon_url": "https://example.com/lot.png",
		"sub_spots": []echo.Map{{"area_id": "A01", "capacity_est": 2}, {"area_id": "A02", "capacity_est": 3}},
	})

	rec := call(fx.e, http.MethodGet, "/v1/parking-spots/"+strconv.FormatUint(id, 10), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Station Lot", body["name"])
	subs := body["sub_spots"].([]any)
	require.Len(t, subs, 2)

	a01 := subs[0].(map[string]any)["marker"].(map[string]any)
	assert.Equal(t, "A01 | 空位: 1/2", a01["title"])
	a02 := subs[1].(map[string]any)["marker"].(map[string]any)
	assert.Equal(t, "A02 | 狀態: 未知", a02["title"])
	assert.Equal(t, "https://example.com/lot.png", a02["icon_url"])

	rec = call(fx.e, http.MethodGet, "/v1/parking-spots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 1)
}

func TestGetSpot_SourceDownDegrades(t *testing.T) {
	fx := newParkingServer(t)
	id := createSpot(t, fx.e, echo.Map{"name": "Lot", "latitude": 1, "longitude": 2,
		"sub_spots": []echo.Map{{"area_id": "A01", "capacity_est": 2}}})
	fx.src.err = hints.ErrUpstream

	rec := call(fx.e, http.MethodGet, "/v1/parking-spots/"+strconv.FormatUint(id, 10), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	marker := decode(t, rec)["sub_spots"].([]any)[0].(map[string]any)["marker"].(map[string]any)
	assert.Equal(t, availability.DefaultIcons.Unknown, marker["icon_url"])
}

func TestCreateSpot_Validation(t *testing.T) {
	fx := newParkingServer(t)
	cases := []echo.Map{
		{"latitude": 1, "longitude": 2},
		{"name": "x"},
		{"name": "x", "latitude": 91, "longitude": 2},
		{"name": "x", "latitude": 1, "longitude": 2, "area_prefix": "A1"},
		{"name": "x", "latitude": 1, "longitude": 2, "sub_spots": []echo.Map{{"area_id": "A01"}, {"area_id": "A01"}}},
	}
	for _, c := range cases {
		rec := call(fx.e, http.MethodPost, "/v1/admin/parking-spots", c)
		assert.Equal(t, http.StatusBadRequest, rec.Code, c)
	}
}

func TestCreateSpot_AreaTakenConflicts(t *testing.T) {
	fx := newParkingServer(t)
	createSpot(t, fx.e, echo.Map{"name": "One", "latitude": 1, "longitude": 2,
		"sub_spots": []echo.Map{{"area_id": "A01", "capacity_est": 2}}})
	rec := call(fx.e, http.MethodPost, "/v1/admin/parking-spots", echo.Map{"name": "Two", "latitude": 1, "longitude": 2,
		"sub_spots": []echo.Map{{"area_id": "A01", "capacity_est": 2}}})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateAndDeleteSpot(t *testing.T) {
	fx := newParkingServer(t)
	id := createSpot(t, fx.e, echo.Map{"name": "Old", "address": "1 Road", "latitude": 1, "longitude": 2})

	rec := call(fx.e, http.MethodPatch, spotPath(id), echo.Map{"name": "New"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "New", body["name"])
	assert.Equal(t, "1 Road", body["address"])

	rec = call(fx.e, http.MethodPut, spotPath(id), echo.Map{"name": "Only name"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(fx.e, http.MethodPatch, spotPath(999), echo.Map{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(fx.e, http.MethodDelete, spotPath(id), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = call(fx.e, http.MethodDelete, spotPath(id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = call(fx.e, http.MethodGet, "/v1/parking-spots/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFavorites(t *testing.T) {
	fx := newParkingServer(t)
	id := createSpot(t, fx.e, echo.Map{"name": "Fav Lot", "latitude": 1, "longitude": 2})

	rec := call(fx.e, http.MethodPost, "/v1/favorites", echo.Map{"parking_spot_id": id})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = call(fx.e, http.MethodPost, "/v1/favorites", echo.Map{"parking_spot_id": id})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = call(fx.e, http.MethodPost, "/v1/favorites", echo.Map{"parking_spot_id": 999})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = call(fx.e, http.MethodPost, "/v1/favorites", echo.Map{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(fx.e, http.MethodGet, "/v1/favorites", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["items"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "Fav Lot", list[0].(map[string]any)["name"])

	path := "/v1/favorites/" + strconv.FormatUint(id, 10)
	rec = call(fx.e, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = call(fx.e, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
