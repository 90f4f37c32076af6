package model

import "time"

// History entry types.
const (
    PointsTypeUpload = "upload"
    PointsTypeUse    = "use"
)

// PointsHistoryEntry is one append-only row of `points_history`.  Change is
// signed: credits are positive, debits negative.  Ref is an optional
// idempotency key (the upload event id for upload rewards).
type PointsHistoryEntry struct {
    ID          uint64    `json:"-"`
    UserID      uint64    `json:"-"`
    Type        string    `json:"type"`
    Change      int       `json:"change"`
    Description string    `json:"description"`
    Ref         string    `json:"-"`
    CreatedAt   time.Time `json:"created_at"`
}
