package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/iliyamo/parksavvy/internal/model"
)

// PointsRepo stores balances (user_points) and the append-only history
// (points_history).  All balance changes go through ApplyEntry so the
// balance row and its history row are written together or not at all.
type PointsRepo struct {
    DB  *sql.DB
    Now func() time.Time
}

// NewPointsRepo returns a PointsRepo bound to db.
func NewPointsRepo(db *sql.DB) *PointsRepo { return &PointsRepo{DB: db, Now: utcNow} }

// LedgerEntry is one signed balance change.  Change < 0 is a debit and is
// applied only when the balance covers it.  Ref, when set, must be unique
// across all history rows.
type LedgerEntry struct {
    UserID      uint64
    Type        string
    Change      int
    Description string
    Ref         string
}

func (r *PointsRepo) now() time.Time {
    if r.Now == nil {
        return utcNow()
    }
    return r.Now()
}

// UserExists reports whether the user row exists.
func (r *PointsRepo) UserExists(ctx context.Context, userID uint64) (bool, error) {
    return userExists(ctx, r.DB, userID)
}

type queryer interface {
    QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func userExists(ctx context.Context, q queryer, userID uint64) (bool, error) {
    var one int
    err := q.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=? LIMIT 1", userID).Scan(&one)
    if errors.Is(err, sql.ErrNoRows) {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}

// Balance returns the current points.  A user without a balance row has 0.
func (r *PointsRepo) Balance(ctx context.Context, userID uint64) (int, error) {
    var points int
    err := r.DB.QueryRowContext(ctx, "SELECT points FROM user_points WHERE user_id=?", userID).Scan(&points)
    if errors.Is(err, sql.ErrNoRows) {
        return 0, nil
    }
    return points, err
}

// History lists entries newest first.  limit <= 0 means no limit.
func (r *PointsRepo) History(ctx context.Context, userID uint64, limit int) ([]model.PointsHistoryEntry, error) {
    q := `SELECT id, user_id, type, points_change, description, ref, created_at
          FROM points_history WHERE user_id=? ORDER BY created_at DESC, id DESC`
    args := []any{userID}
    if limit > 0 {
        q += " LIMIT ?"
        args = append(args, limit)
    }
    rows, err := r.DB.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := []model.PointsHistoryEntry{}
    for rows.Next() {
        var (
            e   model.PointsHistoryEntry
            ref sql.NullString
        )
        if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &e.Change, &e.Description, &ref, &e.CreatedAt); err != nil {
            return nil, err
        }
        e.Ref = ref.String
        out = append(out, e)
    }
    return out, rows.Err()
}

// ApplyEntry applies e in its own transaction and returns the new balance.
func (r *PointsRepo) ApplyEntry(ctx context.Context, e LedgerEntry) (int, error) {
    tx, err := r.DB.BeginTx(ctx, nil)
    if err != nil {
        return 0, fmt.Errorf("begin: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    points, err := r.ApplyEntryTx(ctx, tx, e)
    if err != nil {
        return 0, err
    }
    if err := tx.Commit(); err != nil {
        return 0, fmt.Errorf("commit: %w", err)
    }
    committed = true
    return points, nil
}

// ApplyEntryTx applies e within the scope of an existing transaction.  A
// debit uses a conditional decrement so concurrent debits of the same user
// can never overdraw: the row lock taken by the UPDATE serializes them.
func (r *PointsRepo) ApplyEntryTx(ctx context.Context, tx *sql.Tx, e LedgerEntry) (int, error) {
    if e.Change == 0 {
        return 0, errors.New("ledger entry with zero change")
    }
    if e.Ref != "" {
        var one int
        err := tx.QueryRowContext(ctx, "SELECT 1 FROM points_history WHERE ref=? LIMIT 1", e.Ref).Scan(&one)
        if err == nil {
            return 0, ErrDuplicateRef
        }
        if !errors.Is(err, sql.ErrNoRows) {
            return 0, fmt.Errorf("check ref: %w", err)
        }
    }

    now := r.now()
    var (
        res sql.Result
        err error
    )
    if e.Change < 0 {
        res, err = tx.ExecContext(ctx,
            "UPDATE user_points SET points = points + ?, updated_at = ? WHERE user_id = ? AND points >= ?",
            e.Change, now, e.UserID, -e.Change)
    } else {
        res, err = tx.ExecContext(ctx,
            "UPDATE user_points SET points = points + ?, updated_at = ? WHERE user_id = ?",
            e.Change, now, e.UserID)
    }
    if err != nil {
        return 0, fmt.Errorf("update balance: %w", err)
    }
    n, err := res.RowsAffected()
    if err != nil {
        return 0, fmt.Errorf("update balance: %w", err)
    }
    if n == 0 {
        exists, err := userExists(ctx, tx, e.UserID)
        if err != nil {
            return 0, fmt.Errorf("lookup user: %w", err)
        }
        if !exists {
            return 0, ErrUserNotFound
        }
        if e.Change < 0 {
            return 0, ErrInsufficientPoints
        }
        // Positive change for a user that predates the balance table.
        if _, err := tx.ExecContext(ctx,
            "INSERT INTO user_points (user_id, points, updated_at) VALUES (?,?,?)",
            e.UserID, e.Change, now); err != nil {
            return 0, fmt.Errorf("insert balance: %w", err)
        }
    }

    ref := sql.NullString{String: e.Ref, Valid: e.Ref != ""}
    if _, err := tx.ExecContext(ctx,
        "INSERT INTO points_history (user_id, type, points_change, description, ref, created_at) VALUES (?,?,?,?,?,?)",
        e.UserID, e.Type, e.Change, e.Description, ref, now); err != nil {
        if ref.Valid && isDuplicate(err) {
            return 0, ErrDuplicateRef
        }
        return 0, fmt.Errorf("insert history: %w", err)
    }

    var points int
    if err := tx.QueryRowContext(ctx, "SELECT points FROM user_points WHERE user_id=?", e.UserID).Scan(&points); err != nil {
        return 0, fmt.Errorf("read balance: %w", err)
    }
    return points, nil
}
