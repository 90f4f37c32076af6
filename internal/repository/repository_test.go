package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/parksavvy/internal/database"
	"github.com/iliyamo/parksavvy/internal/hints"
	"github.com/iliyamo/parksavvy/internal/model"
)

// newTestDB opens a private in-memory database with the schema applied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func createUser(t *testing.T, db *sql.DB, username string) uint64 {
	t.Helper()
	users := NewUserRepo(db)
	id, err := users.Create(context.Background(), username, username+"@example.com", "secret", model.RoleUser, bcrypt.MinCost)
	require.NoError(t, err)
	return id
}

func setPoints(t *testing.T, db *sql.DB, userID uint64, points int) {
	t.Helper()
	_, err := db.Exec("UPDATE user_points SET points=? WHERE user_id=?", points, userID)
	require.NoError(t, err)
}

func TestUserRepo_CreateAndLookup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := NewUserRepo(db)

	id, err := users.Create(ctx, "alice", " Alice@Example.com ", "pw", model.RoleUser, bcrypt.MinCost)
	require.NoError(t, err)

	u, err := users.GetByLogin(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, u.IsActive)

	u, err = users.GetByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	_, err = users.GetByID(ctx, 999)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	points := NewPointsRepo(db)
	bal, err := points.Balance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, bal)
}

func TestUserRepo_Duplicates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := NewUserRepo(db)

	_, err := users.Create(ctx, "bob", "bob@example.com", "pw", model.RoleUser, bcrypt.MinCost)
	require.NoError(t, err)

	_, err = users.Create(ctx, "bob", "other@example.com", "pw", model.RoleUser, bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrUsernameExists)

	_, err = users.Create(ctx, "bobby", "BOB@example.com", "pw", model.RoleUser, bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestTokenRepo_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	uid := createUser(t, db, "carol")
	tokens := NewTokenRepo(db)

	require.NoError(t, tokens.StoreRefresh(ctx, uid, "h1", time.Now().Add(time.Hour)))
	require.NoError(t, tokens.StoreRefresh(ctx, uid, "h2", time.Now().Add(time.Hour)))
	require.NoError(t, tokens.StoreRefresh(ctx, uid, "old", time.Now().Add(-time.Hour)))

	got, err := tokens.ValidateRefresh(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, uid, got)

	_, err = tokens.ValidateRefresh(ctx, "old")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, tokens.RevokeByHash(ctx, "h1"))
	_, err = tokens.ValidateRefresh(ctx, "h1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, tokens.RevokeAllForUser(ctx, uid))
	_, err = tokens.ValidateRefresh(ctx, "h2")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPointsRepo_DebitCorrectness(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	uid := createUser(t, db, "dave")
	setPoints(t, db, uid, 35)
	points := NewPointsRepo(db)

	got, err := points.ApplyEntry(ctx, LedgerEntry{UserID: uid, Type: model.PointsTypeUse, Change: -10, Description: "點擊地圖使用功能"})
	require.NoError(t, err)
	assert.Equal(t, 25, got)

	hist, err := points.History(ctx, uid, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, -10, hist[0].Change)
	assert.Equal(t, model.PointsTypeUse, hist[0].Type)
	assert.Equal(t, "點擊地圖使用功能", hist[0].Description)
}

func TestPointsRepo_InsufficientLeavesNoTrace(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	uid := createUser(t, db, "erin")
	setPoints(t, db, uid, 25)
	points := NewPointsRepo(db)

	_, err := points.ApplyEntry(ctx, LedgerEntry{UserID: uid, Type: model.PointsTypeUse, Change: -30, Description: "使用導航功能"})
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	bal, err := points.Balance(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 25, bal)
	hist, err := points.History(ctx, uid, 0)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestPointsRepo_UnknownUser(t *testing.T) {
	db := newTestDB(t)
	points := NewPointsRepo(db)

	_, err := points.ApplyEntry(context.Background(), LedgerEntry{UserID: 42, Type: model.PointsTypeUse, Change: -10})
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = points.ApplyEntry(context.Background(), LedgerEntry{UserID: 42, Type: model.PointsTypeUpload, Change: 50})
	assert.ErrorIs(t, err, ErrUserNotFound)

	ok, err := points.UserExists(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPointsRepo_CreditWithoutBalanceRow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	uid := createUser(t, db, "frank")
	_, err := db.Exec("DELETE FROM user_points WHERE user_id=?", uid)
	require.NoError(t, err)
	points := NewPointsRepo(db)

	bal, err := points.Balance(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 0, bal)

	_, err = points.ApplyEntry(ctx, LedgerEntry{UserID: uid, Type: model.PointsTypeUse, Change: -10})
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	got, err := points.ApplyEntry(ctx, LedgerEntry{UserID: uid, Type: model.PointsTypeUpload, Change: 50, Description: "上傳照片"})
	require.NoError(t, err)
	assert.Equal(t, 50, got)
}

func TestPointsRepo_DuplicateRef(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	uid := createUser(t, db, "gina")
	points := NewPointsRepo(db)

	e := LedgerEntry{UserID: uid, Type: model.PointsTypeUpload, Change: 50, Description: "上傳照片", Ref: "evt-1"}
	got, err := points.ApplyEntry(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, 50, got)

	_, err = points.ApplyEntry(ctx, e)
	assert.ErrorIs(t, err, ErrDuplicateRef)

	bal, err := points.Balance(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 50, bal)

	hist, err := points.History(ctx, uid, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "evt-1", hist[0].Ref)
}

func TestPointsRepo_HistoryNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	uid := createUser(t, db, "hank")
	points := NewPointsRepo(db)
	points.Now = stepClock()

	_, err := points.ApplyEntry(ctx, LedgerEntry{UserID: uid, Type: model.PointsTypeUpload, Change: 50, Description: "上傳照片"})
	require.NoError(t, err)
	_, err = points.ApplyEntry(ctx, LedgerEntry{UserID: uid, Type: model.PointsTypeUse, Change: -10, Description: "點擊地圖使用功能"})
	require.NoError(t, err)
	_, err = points.ApplyEntry(ctx, LedgerEntry{UserID: uid, Type: model.PointsTypeUse, Change: -30, Description: "使用導航功能"})
	require.NoError(t, err)

	hist, err := points.History(ctx, uid, 0)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, []int{-30, -10, 50}, []int{hist[0].Change, hist[1].Change, hist[2].Change})
	assert.True(t, hist[0].CreatedAt.After(hist[1].CreatedAt))

	limited, err := points.History(ctx, uid, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestPointsRepo_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	uid := createUser(t, db, "ivy")
	setPoints(t, db, uid, 50)
	points := NewPointsRepo(db)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := points.ApplyEntry(ctx, LedgerEntry{UserID: uid, Type: model.PointsTypeUse, Change: -10})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInsufficientPoints):
				fail++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 7, fail)
	bal, err := points.Balance(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 0, bal)
	hist, err := points.History(ctx, uid, 0)
	require.NoError(t, err)
	assert.Len(t, hist, 5)
}

func TestAreaRepo_Fetch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	spots := NewParkingSpotRepo(db)
	spot := &model.ParkingSpot{Name: "North lot", Latitude: 25.03, Longitude: 121.56, AreaPrefix: "A"}
	require.NoError(t, spots.Create(ctx, spot, []model.ParkingSubSpot{
		{AreaID: "A01", CapacityEst: 2},
		{AreaID: "A02", CapacityEst: 3},
	}))
	ts := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	_, err := db.Exec("INSERT INTO sensor_counts (area_id, current_count, updated_at) VALUES (?,?,?)", "A01", 1, ts)
	require.NoError(t, err)

	rows, err := NewAreaRepo(db).Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "A01", rows[0].AreaID)
	assert.Equal(t, hints.Int(2), rows[0].CapacityEst)
	assert.Equal(t, hints.Int(1), rows[0].CurrentCount)
	require.NotNil(t, rows[0].UpdatedAt)
	in := rows[0].Input()
	require.NotNil(t, in.UpdatedAt)
	assert.True(t, in.UpdatedAt.Equal(ts))

	assert.Equal(t, "A02", rows[1].AreaID)
	assert.False(t, rows[1].CurrentCount.Valid)
	assert.Nil(t, rows[1].UpdatedAt)
}

func TestAreaRepo_FetchFailureIsUpstream(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Exec("DROP VIEW area_availability")
	require.NoError(t, err)

	_, err = NewAreaRepo(db).Fetch(context.Background())
	assert.ErrorIs(t, err, hints.ErrUpstream)
}

func TestParkingSpotRepo_CRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	spots := NewParkingSpotRepo(db)

	p := &model.ParkingSpot{Name: "Station", Address: "1 Main St", Latitude: 1.5, Longitude: 2.5, AreaPrefix: "B"}
	require.NoError(t, spots.Create(ctx, p, []model.ParkingSubSpot{{AreaID: "B01", CapacityEst: 4}}))
	require.NotZero(t, p.ID)

	got, err := spots.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Station", got.Name)
	assert.Empty(t, got.IconURL)

	got.Name = "Station East"
	got.IconURL = "https://example.com/i.png"
	require.NoError(t, spots.Update(ctx, got, []model.ParkingSubSpot{{AreaID: "B01", CapacityEst: 4}, {AreaID: "B02", CapacityEst: 2}}))

	subs, err := spots.SubSpots(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "B02", subs[1].AreaID)

	// nil sub-spots keep the existing ones
	got.Address = "2 Main St"
	require.NoError(t, spots.Update(ctx, got, nil))
	subs, err = spots.SubSpots(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	list, err := spots.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Station East", list[0].Name)
	assert.Equal(t, "https://example.com/i.png", list[0].IconURL)

	require.NoError(t, spots.Delete(ctx, p.ID))
	assert.ErrorIs(t, spots.Delete(ctx, p.ID), sql.ErrNoRows)
	ok, err := spots.Exists(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	missing := &model.ParkingSpot{ID: 999, Name: "x"}
	assert.ErrorIs(t, spots.Update(ctx, missing, nil), sql.ErrNoRows)
}

func TestParkingSpotRepo_DuplicateAreaID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	spots := NewParkingSpotRepo(db)

	require.NoError(t, spots.Create(ctx, &model.ParkingSpot{Name: "one"}, []model.ParkingSubSpot{{AreaID: "C01"}}))
	err := spots.Create(ctx, &model.ParkingSpot{Name: "two"}, []model.ParkingSubSpot{{AreaID: "C01"}})
	assert.ErrorIs(t, err, ErrConflict)

	list, err := spots.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1, "failed create must roll back the spot row")
}

func TestFavoriteRepo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	uid := createUser(t, db, "jack")
	spots := NewParkingSpotRepo(db)
	a := &model.ParkingSpot{Name: "A"}
	b := &model.ParkingSpot{Name: "B"}
	require.NoError(t, spots.Create(ctx, a, nil))
	require.NoError(t, spots.Create(ctx, b, nil))

	favs := NewFavoriteRepo(db)
	favs.Now = stepClock()
	_, err := favs.Add(ctx, uid, a.ID)
	require.NoError(t, err)
	_, err = favs.Add(ctx, uid, b.ID)
	require.NoError(t, err)
	_, err = favs.Add(ctx, uid, a.ID)
	assert.ErrorIs(t, err, ErrConflict)

	list, err := favs.ListSpots(ctx, uid)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "B", list[0].Name)

	require.NoError(t, favs.Remove(ctx, uid, a.ID))
	assert.ErrorIs(t, favs.Remove(ctx, uid, a.ID), sql.ErrNoRows)

	require.NoError(t, spots.Delete(ctx, b.ID))
	list, err = favs.ListSpots(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, list)
}
