package availability

import (
	"time"
	"unicode"
	"unicode/utf8"
)

// GroupAvailability is the rollup of every area sharing a group key.
type GroupAvailability struct {
	GroupKey         string     `json:"group"`
	Members          int        `json:"members"`
	CapacityEstimate int        `json:"capacity_est"`
	CurrentCount     *int       `json:"current_count"`
	FreeSlots        int        `json:"free_slots"`
	State            State      `json:"state"`
	UpdatedAt        *time.Time `json:"updated_at"`
}

// GroupKey returns the maximal leading run of letters of an area id, as
// given (no case folding): "A01" -> "A", "BB12" -> "BB".  Ids that do not
// start with a letter have no group and ok is false.
func GroupKey(areaID string) (key string, ok bool) {
	end := 0
	for end < len(areaID) {
		r, size := utf8.DecodeRuneInString(areaID[end:])
		if r == utf8.RuneError || !unicode.IsLetter(r) {
			break
		}
		end += size
	}
	if end == 0 {
		return "", false
	}
	return areaID[:end], true
}

// groupAcc accumulates one group.  unknown is sticky: once any member has
// no count the group count stays unknown whatever order members arrive in.
type groupAcc struct {
	members   int
	capacity  int
	count     int
	unknown   bool
	updatedAt *time.Time
}

// BuildGroupAvailability rolls areas up into groups.  Capacity is summed;
// the count is the sum of member counts only when every member has one.
// Free slots and state follow the area rule applied to the group totals, so
// a group reports no_space only when its total free-slot count is zero,
// never because a single member is full.  Areas without a group key are
// left out.  The result does not depend on map iteration order.
func BuildGroupAvailability(byArea map[string]AreaAvailability) map[string]GroupAvailability {
	accs := make(map[string]*groupAcc)
	for id, a := range byArea {
		if a.AreaID != "" {
			id = a.AreaID
		}
		key, ok := GroupKey(id)
		if !ok {
			continue
		}
		acc := accs[key]
		if acc == nil {
			acc = &groupAcc{}
			accs[key] = acc
		}
		acc.members++
		acc.capacity += a.CapacityEstimate
		if a.CurrentCount == nil {
			acc.unknown = true
		} else {
			acc.count += *a.CurrentCount
		}
		if after(a.UpdatedAt, acc.updatedAt) {
			acc.updatedAt = copyTime(a.UpdatedAt)
		}
	}

	out := make(map[string]GroupAvailability, len(accs))
	for key, acc := range accs {
		var count *int
		if !acc.unknown {
			c := acc.count
			count = &c
		}
		free, state := derive(acc.capacity, count)
		out[key] = GroupAvailability{
			GroupKey:         key,
			Members:          acc.members,
			CapacityEstimate: acc.capacity,
			CurrentCount:     count,
			FreeSlots:        free,
			State:            state,
			UpdatedAt:        acc.updatedAt,
		}
	}
	return out
}

// Aggregate is the full rebuild used by request handlers: rows to areas to
// groups in one pass.
func Aggregate(rows []Input) (map[string]AreaAvailability, map[string]GroupAvailability) {
	areas := ByArea(rows)
	return areas, BuildGroupAvailability(areas)
}
