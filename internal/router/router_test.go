package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/parksavvy/internal/availability"
	"github.com/iliyamo/parksavvy/internal/handler"
	"github.com/iliyamo/parksavvy/internal/hints"
)

type staticSource []hints.Row

func (s staticSource) Fetch(context.Context) ([]hints.Row, error) { return s, nil }

// markCache stands in for the Redis cache and tags every response it wraps.
func markCache(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("X-Cache", "MISS")
		return next(c)
	}
}

func TestRegisterAvailability_CachesOnlyHints(t *testing.T) {
	src := staticSource{{AreaID: "A01", CapacityEst: hints.Int(2), CurrentCount: hints.Int(0)}}
	h := handler.NewAvailabilityHandler(src, availability.DefaultIcons, 0, nil)
	e := echo.New()
	RegisterAvailability(e, h, markCache)

	cases := map[string]bool{
		"/v1/parking-hints":         true,
		"/v1/availability/areas":    false,
		"/v1/availability/groups":   false,
		"/v1/availability/groups/A": false,
	}
	for path, cached := range cases {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		if cached {
			assert.Equal(t, "MISS", rec.Header().Get("X-Cache"), path)
		} else {
			assert.Empty(t, rec.Header().Get("X-Cache"), path)
		}
	}
}

func TestRegisterAvailability_NilCache(t *testing.T) {
	h := handler.NewAvailabilityHandler(staticSource{}, availability.DefaultIcons, 0, nil)
	e := echo.New()
	RegisterAvailability(e, h, nil)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/parking-hints", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}
