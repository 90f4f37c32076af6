package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parksavvy/internal/database"
	"github.com/iliyamo/parksavvy/internal/hints"
)

const testSecret = "handler-test-secret"

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// asUser stands in for JWTAuth.
func asUser(uid uint64, role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", uid)
			c.Set("role", role)
			return next(c)
		}
	}
}

func call(e *echo.Echo, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var rdr *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

type fakeSource struct {
	rows []hints.Row
	err  error
}

func (f *fakeSource) Fetch(context.Context) ([]hints.Row, error) { return f.rows, f.err }

func row(id string, capacity int, count *int) hints.Row {
	r := hints.Row{AreaID: id, CapacityEst: hints.Int(capacity)}
	if count != nil {
		r.CurrentCount = hints.Int(*count)
	}
	return r
}

func intp(v int) *int { return &v }
