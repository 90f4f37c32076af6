package model

import "time"

// ParkingSpot is a parking lot shown on the map.  AreaPrefix links the spot
// to an availability group ("A" covers sub-areas A01, A02, ...).
//
// Fields:
//  ID         – primary key identifier.
//  Name       – display name.
//  Address    – street address, may be empty.
//  Latitude   – WGS84 latitude.
//  Longitude  – WGS84 longitude.
//  AreaPrefix – availability group key, may be empty.
//  IconURL    – optional fallback marker icon.
type ParkingSpot struct {
    ID         uint64    `json:"id"`
    Name       string    `json:"name"`
    Address    string    `json:"address"`
    Latitude   float64   `json:"latitude"`
    Longitude  float64   `json:"longitude"`
    AreaPrefix string    `json:"area_prefix"`
    IconURL    string    `json:"icon_url,omitempty"`
    CreatedAt  time.Time `json:"created_at"`
    UpdatedAt  time.Time `json:"updated_at"`
}

// ParkingSubSpot is one sensor-covered sub-area of a parking spot.  Its
// AreaID matches area_availability.area_id.
type ParkingSubSpot struct {
    ID            uint64 `json:"id"`
    ParkingSpotID uint64 `json:"parking_spot_id"`
    AreaID        string `json:"area_id"`
    CapacityEst   int    `json:"capacity_est"`
}
