package model

import "time"

// Favorite is a row of `user_favorites`; one per (user, parking spot).
type Favorite struct {
    UserID        uint64    `json:"user_id"`
    ParkingSpotID uint64    `json:"parking_spot_id"`
    CreatedAt     time.Time `json:"created_at"`
}
