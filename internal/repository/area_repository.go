package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/parksavvy/internal/hints"
)

// AreaRepo reads the area_availability view, which joins the configured
// sub-areas with the latest sensor counts.  It satisfies hints.Source.
type AreaRepo struct{ DB *sql.DB }

func NewAreaRepo(db *sql.DB) *AreaRepo { return &AreaRepo{DB: db} }

var _ hints.Source = (*AreaRepo)(nil)

// Fetch returns every row of the view ordered by area id.  Failures are
// reported as hints.ErrUpstream so callers treat both sources alike.
func (r *AreaRepo) Fetch(ctx context.Context) ([]hints.Row, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT area_id, capacity_est, current_count, updated_at FROM area_availability ORDER BY area_id")
	if err != nil {
		return nil, upstream(err)
	}
	defer rows.Close()

	out := []hints.Row{}
	for rows.Next() {
		var (
			areaID    string
			capacity  sql.NullInt64
			count     sql.NullInt64
			updatedAt sql.NullString
		)
		if err := rows.Scan(&areaID, &capacity, &count, &updatedAt); err != nil {
			return nil, upstream(err)
		}
		row := hints.Row{AreaID: strings.TrimSpace(areaID)}
		if capacity.Valid {
			row.CapacityEst = hints.Int(int(capacity.Int64))
		}
		if count.Valid {
			row.CurrentCount = hints.Int(int(count.Int64))
		}
		if updatedAt.Valid {
			ts := updatedAt.String
			row.UpdatedAt = &ts
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream(err)
	}
	return out, nil
}

func upstream(err error) error {
	return fmt.Errorf("%w: %w", hints.ErrUpstream, err)
}
