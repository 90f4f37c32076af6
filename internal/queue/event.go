// Package queue defines message payloads exchanged over the message broker
// and the consumer of upload completions.
package queue

import (
    "errors"
    "strings"
)

// Queue names.
const (
    UploadCompletedQueue = "upload.completed"
    PointsLedgerQueue    = "points.ledger"
)

// UploadCompletedEvent is published by the image pipeline once an uploaded
// parking photo has been processed.  EventID is the idempotency key of the
// reward credit.
type UploadCompletedEvent struct {
    EventID     string `json:"event_id"`
    UserID      uint64 `json:"user_id"`
    UploadID    uint64 `json:"upload_id"`
    CompletedAt string `json:"completed_at"`
}

// Validate reports missing required fields.
func (e UploadCompletedEvent) Validate() error {
    var missing []string
    if strings.TrimSpace(e.EventID) == "" {
        missing = append(missing, "event_id")
    }
    if e.UserID == 0 {
        missing = append(missing, "user_id")
    }
    if e.UploadID == 0 {
        missing = append(missing, "upload_id")
    }
    if len(missing) > 0 {
        return errors.New("missing " + strings.Join(missing, ", "))
    }
    return nil
}
