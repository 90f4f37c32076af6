// Package hints fetches raw parking-occupancy rows ("parking hints") from an
// upstream source and converts them into aggregator input.
package hints

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/iliyamo/parksavvy/internal/availability"
)

// ErrUpstream is returned when the hint source cannot be reached or answers
// with something other than a JSON array.
var ErrUpstream = errors.New("hint source unavailable")

// Source yields the latest occupancy rows.  Implementations do not retry.
type Source interface {
	Fetch(ctx context.Context) ([]Row, error)
}

// Number is a lenient non-negative integer.  It decodes JSON numbers,
// numeric strings and null; any other value, including a negative or
// out-of-range one, decodes as not Valid instead of failing the whole
// payload.
type Number struct {
	Value int
	Valid bool
}

// Int returns a valid Number.
func Int(v int) Number { return Number{Value: v, Valid: true} }

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		s = strings.TrimSpace(str)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > math.MaxInt32 {
		return nil
	}
	*n = Number{Value: int(math.Round(f)), Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(n.Value)), nil
}

// Ptr returns nil for an invalid number.
func (n Number) Ptr() *int {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// Row mirrors one element of the area_availability payload.  FreeSlots and
// State are carried through for display but recomputed by the aggregator.
type Row struct {
	AreaID       string  `json:"area_id"`
	CapacityEst  Number  `json:"capacity_est"`
	CurrentCount Number  `json:"current_count"`
	FreeSlots    Number  `json:"free_slots"`
	State        string  `json:"state"`
	UpdatedAt    *string `json:"updated_at"`
}

// Input converts the row for the aggregator.  A missing capacity counts as
// zero; a missing count or an unparseable timestamp becomes nil.
func (r Row) Input() availability.Input {
	in := availability.Input{
		AreaID:       strings.TrimSpace(r.AreaID),
		CurrentCount: r.CurrentCount.Ptr(),
	}
	if r.CapacityEst.Valid {
		in.CapacityEstimate = r.CapacityEst.Value
	}
	if r.UpdatedAt != nil {
		if t, ok := availability.ParseTimestamp(*r.UpdatedAt); ok {
			in.UpdatedAt = &t
		}
	}
	return in
}

// Inputs converts a batch of rows, dropping rows without an area id.
func Inputs(rows []Row) []availability.Input {
	out := make([]availability.Input, 0, len(rows))
	for _, r := range rows {
		in := r.Input()
		if in.AreaID == "" {
			continue
		}
		out = append(out, in)
	}
	return out
}
