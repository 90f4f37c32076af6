package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/parksavvy/internal/model"
)

// FavoriteRepo manages user_favorites.
type FavoriteRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewFavoriteRepo(db *sql.DB) *FavoriteRepo { return &FavoriteRepo{DB: db, Now: utcNow} }

// Add favorites a spot.  A second add of the same pair returns ErrConflict.
func (r *FavoriteRepo) Add(ctx context.Context, userID, spotID uint64) (model.Favorite, error) {
	now := utcNow()
	if r.Now != nil {
		now = r.Now()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO user_favorites (user_id, parking_spot_id, created_at) VALUES (?,?,?)",
		userID, spotID, now)
	if err != nil {
		if isDuplicate(err) {
			return model.Favorite{}, ErrConflict
		}
		return model.Favorite{}, err
	}
	return model.Favorite{UserID: userID, ParkingSpotID: spotID, CreatedAt: now}, nil
}

// Remove returns sql.ErrNoRows when the pair was not favorited.
func (r *FavoriteRepo) Remove(ctx context.Context, userID, spotID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM user_favorites WHERE user_id=? AND parking_spot_id=?", userID, spotID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListSpots returns the user's favorite spots, most recently added first.
func (r *FavoriteRepo) ListSpots(ctx context.Context, userID uint64) ([]*model.ParkingSpot, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT p.id, p.name, p.address, p.latitude, p.longitude, p.area_prefix, p.icon_url, p.created_at, p.updated_at
		FROM user_favorites f
		JOIN parking_spots p ON p.id = f.parking_spot_id
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC, p.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.ParkingSpot{}
	for rows.Next() {
		p, err := scanSpot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
