package hints

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parksavvy/internal/availability"
)

const samplePayload = `[
  {"area_id":"A01","capacity_est":2,"current_count":0,"free_slots":2,"state":"has_space","updated_at":"2025-06-01T08:00:00+00:00"},
  {"area_id":"A02","capacity_est":"2","current_count":2,"free_slots":0,"state":"no_space","updated_at":null},
  {"area_id":"A03","capacity_est":2,"current_count":null,"free_slots":0,"state":"unknown","updated_at":"not a time"},
  {"area_id":"B01","capacity_est":{"oops":1},"current_count":"x","free_slots":null,"state":"unknown"}
]`

func TestNumber_Lenient(t *testing.T) {
	var rows []Row
	require.NoError(t, json.Unmarshal([]byte(samplePayload), &rows))
	require.Len(t, rows, 4)

	assert.Equal(t, Int(2), rows[0].CapacityEst)
	assert.Equal(t, Int(2), rows[1].CapacityEst)
	assert.False(t, rows[2].CurrentCount.Valid)
	assert.False(t, rows[3].CapacityEst.Valid)
	assert.False(t, rows[3].CurrentCount.Valid)
}

func TestRow_Input(t *testing.T) {
	var rows []Row
	require.NoError(t, json.Unmarshal([]byte(samplePayload), &rows))
	ins := Inputs(rows)
	require.Len(t, ins, 4)

	require.NotNil(t, ins[0].UpdatedAt)
	assert.True(t, ins[0].UpdatedAt.Equal(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)))
	assert.Nil(t, ins[1].UpdatedAt)
	assert.Nil(t, ins[2].UpdatedAt)
	assert.Nil(t, ins[2].CurrentCount)
	assert.Equal(t, 0, ins[3].CapacityEstimate)

	_, groups := availability.Aggregate(ins)
	assert.Equal(t, availability.StateUnknown, groups["A"].State)
	assert.Equal(t, 6, groups["A"].CapacityEstimate)
	assert.Equal(t, availability.StateUnknown, groups["B"].State)
}

func TestNumber_RejectsOutOfRange(t *testing.T) {
	payload := `[
	  {"area_id":"A01","capacity_est":1e30,"current_count":0},
	  {"area_id":"A02","capacity_est":2,"current_count":0},
	  {"area_id":"B01","capacity_est":-5,"current_count":0},
	  {"area_id":"B02","capacity_est":2,"current_count":"-1"}
	]`
	var rows []Row
	require.NoError(t, json.Unmarshal([]byte(payload), &rows))
	assert.False(t, rows[0].CapacityEst.Valid)
	assert.False(t, rows[2].CapacityEst.Valid)
	assert.False(t, rows[3].CurrentCount.Valid)

	areas, groups := availability.Aggregate(Inputs(rows))
	assert.Equal(t, 0, areas["A01"].CapacityEstimate)
	assert.Equal(t, availability.StateNoSpace, areas["A01"].State)
	assert.Equal(t, 2, groups["A"].CapacityEstimate)
	assert.Equal(t, 2, groups["A"].FreeSlots)
	assert.Equal(t, availability.StateHasSpace, groups["A"].State)
	assert.Equal(t, availability.StateUnknown, groups["B"].State)
	assert.Equal(t, 2, groups["B"].CapacityEstimate)
}

func TestInputs_DropsBlankIDs(t *testing.T) {
	ins := Inputs([]Row{{AreaID: "  "}, {AreaID: "C01", CapacityEst: Int(1), CurrentCount: Int(0)}})
	require.Len(t, ins, 1)
	assert.Equal(t, "C01", ins[0].AreaID)
}

func TestNumber_MarshalRoundTrip(t *testing.T) {
	b, err := json.Marshal(Row{AreaID: "A01", CapacityEst: Int(3)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"area_id":"A01","capacity_est":3,"current_count":null,"free_slots":null,"state":"","updated_at":null}`, string(b))
}

func TestHTTPSource_Fetch(t *testing.T) {
	var gotKey, gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/", "anon-key", time.Second)
	rows, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, "anon-key", gotKey)
	assert.Equal(t, "Bearer anon-key", gotAuth)
	assert.Equal(t, "/rest/v1/area_availability?select=*", gotPath)
}

func TestHTTPSource_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	}))
	defer srv.Close()

	rows, err := NewHTTPSource(srv.URL, "", time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestHTTPSource_UpstreamErrors(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusServiceUnavailable)
		}))
		defer srv.Close()
		_, err := NewHTTPSource(srv.URL, "", time.Second).Fetch(context.Background())
		assert.ErrorIs(t, err, ErrUpstream)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("bad json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"not":"an array"}`))
		}))
		defer srv.Close()
		_, err := NewHTTPSource(srv.URL, "", time.Second).Fetch(context.Background())
		assert.ErrorIs(t, err, ErrUpstream)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()
		_, err := NewHTTPSource(url, "", time.Second).Fetch(context.Background())
		assert.ErrorIs(t, err, ErrUpstream)
	})
}
