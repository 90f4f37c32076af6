// Package availability turns per-area occupancy estimates into map-ready
// state: a classification for every sub-area ("A01", "A02", ...), a rollup
// for every group of areas ("A", "B", ...) and the marker title/icon the map
// layer renders for each of them.
//
// Everything here is a pure function of its inputs.  Aggregates are rebuilt
// from the raw rows on every request and never cached; bad or missing data
// degrades to StateUnknown instead of returning an error.
package availability

import (
    "strings"
    "time"
)

// State is the availability classification of an area or a group.
type State string

const (
    StateHasSpace State = "has_space"
    StateNoSpace  State = "no_space"
    StateUnknown  State = "unknown"
)

// Input is one raw occupancy row as delivered by a hint source.
//
// Fields:
//  AreaID           – sub-area identifier, e.g. "A01".
//  CapacityEstimate – estimated number of slots in the area.
//  CurrentCount     – detected vehicles; nil means no recent detection.
//  UpdatedAt        – time of the detection, nil when unknown.
type Input struct {
    AreaID           string
    CapacityEstimate int
    CurrentCount     *int
    UpdatedAt        *time.Time
}

// AreaAvailability is the derived state of a single sub-area.
type AreaAvailability struct {
    AreaID           string     `json:"area_id"`
    CapacityEstimate int        `json:"capacity_est"`
    CurrentCount     *int       `json:"current_count"`
    FreeSlots        int        `json:"free_slots"`
    State            State      `json:"state"`
    UpdatedAt        *time.Time `json:"updated_at"`
}

// ComputeAreaState derives free slots and state for one row.  A nil count
// yields StateUnknown with zero free slots regardless of capacity.  Negative
// capacities and counts are read as zero.
func ComputeAreaState(in Input) AreaAvailability {
    capacity := max(in.CapacityEstimate, 0)
    count := copyInt(in.CurrentCount)
    if count != nil && *count < 0 {
        *count = 0
    }
    free, state := derive(capacity, count)
    return AreaAvailability{
        AreaID:           in.AreaID,
        CapacityEstimate: capacity,
        CurrentCount:     count,
        FreeSlots:        free,
        State:            state,
        UpdatedAt:        copyTime(in.UpdatedAt),
    }
}

// derive is shared by areas and groups so both follow the same rule.
func derive(capacity int, count *int) (int, State) {
    if count == nil {
        return 0, StateUnknown
    }
    free := capacity - *count
    if free < 0 {
        free = 0
    }
    if free >= 1 {
        return free, StateHasSpace
    }
    return free, StateNoSpace
}

// ByArea computes the state of every row and indexes it by area id.  When
// the same area id appears more than once, the row with the latest
// UpdatedAt wins; on a tie the later row wins.
func ByArea(rows []Input) map[string]AreaAvailability {
    out := make(map[string]AreaAvailability, len(rows))
    for _, r := range rows {
        a := ComputeAreaState(r)
        if prev, ok := out[a.AreaID]; ok && after(prev.UpdatedAt, a.UpdatedAt) {
            continue
        }
        out[a.AreaID] = a
    }
    return out
}

// timestampLayouts lists the formats accepted from upstream sources, most
// specific first.
var timestampLayouts = []string{
    time.RFC3339Nano,
    time.RFC3339,
    "2006-01-02T15:04:05.999999999",
    "2006-01-02 15:04:05.999999999Z07:00",
    "2006-01-02 15:04:05.999999999-07",
    "2006-01-02 15:04:05.999999999",
    "2006-01-02 15:04:05",
}

// ParseTimestamp parses an upstream timestamp.  Values without a zone are
// read as UTC.  The second result is false for empty or unparseable input.
func ParseTimestamp(s string) (time.Time, bool) {
    s = strings.TrimSpace(s)
    if s == "" {
        return time.Time{}, false
    }
    for _, layout := range timestampLayouts {
        if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
            return t.UTC(), true
        }
    }
    return time.Time{}, false
}

// after reports whether a is strictly later than b.  A nil value is older
// than any timestamp.
func after(a, b *time.Time) bool {
    if a == nil {
        return false
    }
    if b == nil {
        return true
    }
    return a.After(*b)
}

func copyInt(p *int) *int {
    if p == nil {
        return nil
    }
    v := *p
    return &v
}

func copyTime(p *time.Time) *time.Time {
    if p == nil {
        return nil
    }
    v := *p
    return &v
}
