package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/parksavvy/internal/model"
)

// ParkingSpotRepo provides CRUD operations for parking_spots and their
// parking_sub_spots.  Sub-spots are owned by their spot: they are replaced
// as a whole and deleted with it.
type ParkingSpotRepo struct {
    db  *sql.DB
    Now func() time.Time
}

// NewParkingSpotRepo returns a ParkingSpotRepo bound to db.
func NewParkingSpotRepo(db *sql.DB) *ParkingSpotRepo { return &ParkingSpotRepo{db: db, Now: utcNow} }

const spotColumns = "id, name, address, latitude, longitude, area_prefix, icon_url, created_at, updated_at"

func (r *ParkingSpotRepo) now() time.Time {
    if r.Now == nil {
        return utcNow()
    }
    return r.Now()
}

type rowScanner interface {
    Scan(dest ...any) error
}

func scanSpot(s rowScanner) (*model.ParkingSpot, error) {
    var (
        p    model.ParkingSpot
        icon sql.NullString
    )
    if err := s.Scan(&p.ID, &p.Name, &p.Address, &p.Latitude, &p.Longitude, &p.AreaPrefix, &icon, &p.CreatedAt, &p.UpdatedAt); err != nil {
        return nil, err
    }
    p.IconURL = icon.String
    return &p, nil
}

// Create inserts the spot and its sub-spots in one transaction and fills
// in the generated ID and timestamps on p.
func (r *ParkingSpotRepo) Create(ctx context.Context, p *model.ParkingSpot, subs []model.ParkingSubSpot) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    now := r.now()
    res, err := tx.ExecContext(ctx,
        "INSERT INTO parking_spots (name, address, latitude, longitude, area_prefix, icon_url, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?)",
        p.Name, p.Address, p.Latitude, p.Longitude, p.AreaPrefix, nullString(p.IconURL), now, now)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    p.ID = uint64(id)
    p.CreatedAt, p.UpdatedAt = now, now

    if err := r.replaceSubSpotsTx(ctx, tx, p.ID, subs); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// GetByID returns sql.ErrNoRows when the spot does not exist.
func (r *ParkingSpotRepo) GetByID(ctx context.Context, id uint64) (*model.ParkingSpot, error) {
    return scanSpot(r.db.QueryRowContext(ctx, "SELECT "+spotColumns+" FROM parking_spots WHERE id = ?", id))
}

// Exists reports whether the spot exists.
func (r *ParkingSpotRepo) Exists(ctx context.Context, id uint64) (bool, error) {
    _, err := r.GetByID(ctx, id)
    if errors.Is(err, sql.ErrNoRows) {
        return false, nil
    }
    return err == nil, err
}

// List returns all spots ordered by id.
func (r *ParkingSpotRepo) List(ctx context.Context) ([]*model.ParkingSpot, error) {
    rows, err := r.db.QueryContext(ctx, "SELECT "+spotColumns+" FROM parking_spots ORDER BY id")
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

// SubSpots lists the sub-areas of a spot ordered by area id.
func (r *ParkingSpotRepo) SubSpots(ctx context.Context, spotID uint64) ([]model.ParkingSubSpot, error) {
    rows, err := r.db.QueryContext(ctx,
        "SELECT id, parking_spot_id, area_id, capacity_est FROM parking_sub_spots WHERE parking_spot_id = ? ORDER BY area_id", spotID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.ParkingSubSpot{}
    for rows.Next() {
        var s model.ParkingSubSpot
        if err := rows.Scan(&s.ID, &s.ParkingSpotID, &s.AreaID, &s.CapacityEst); err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    return out, rows.Err()
}

// Update overwrites the mutable columns of p.  When subs is non-nil the
// sub-spots are replaced too.  It returns sql.ErrNoRows when the spot does
// not exist.
func (r *ParkingSpotRepo) Update(ctx context.Context, p *model.ParkingSpot, subs []model.ParkingSubSpot) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    now := r.now()
    res, err := tx.ExecContext(ctx,
        "UPDATE parking_spots SET name=?, address=?, latitude=?, longitude=?, area_prefix=?, icon_url=?, updated_at=? WHERE id=?",
        p.Name, p.Address, p.Latitude, p.Longitude, p.AreaPrefix, nullString(p.IconURL), now, p.ID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return sql.ErrNoRows
    }
    p.UpdatedAt = now
    if subs != nil {
        if err := r.replaceSubSpotsTx(ctx, tx, p.ID, subs); err != nil {
            return err
        }
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// Delete removes the spot with its sub-spots and favorites.  It returns
// sql.ErrNoRows when the spot does not exist.
func (r *ParkingSpotRepo) Delete(ctx context.Context, id uint64) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    if _, err := tx.ExecContext(ctx, "DELETE FROM parking_sub_spots WHERE parking_spot_id = ?", id); err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx, "DELETE FROM user_favorites WHERE parking_spot_id = ?", id); err != nil {
        return err
    }
    res, err := tx.ExecContext(ctx, "DELETE FROM parking_spots WHERE id = ?", id)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return sql.ErrNoRows
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

func (r *ParkingSpotRepo) replaceSubSpotsTx(ctx context.Context, tx *sql.Tx, spotID uint64, subs []model.ParkingSubSpot) error {
    if _, err := tx.ExecContext(ctx, "DELETE FROM parking_sub_spots WHERE parking_spot_id = ?", spotID); err != nil {
        return err
    }
    if len(subs) == 0 {
        return nil
    }
    query := "INSERT INTO parking_sub_spots (parking_spot_id, area_id, capacity_est) VALUES "
    args := make([]any, 0, len(subs)*3)
    for i, s := range subs {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?)"
        args = append(args, spotID, s.AreaID, s.CapacityEst)
    }
    if _, err := tx.ExecContext(ctx, query, args...); err != nil {
        if isDuplicate(err) {
            return ErrConflict
        }
        return err
    }
    return nil
}

func nullString(s string) sql.NullString {
    return sql.NullString{String: s, Valid: s != ""}
}
