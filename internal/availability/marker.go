package availability

import "fmt"

// MarkerMeta is what the map layer needs to draw one marker.
type MarkerMeta struct {
	Title   string `json:"title"`
	IconURL string `json:"icon_url"`
}

// IconSet maps each state to a marker icon URL.
type IconSet struct {
	HasSpace string `yaml:"has_space" json:"has_space"`
	NoSpace  string `yaml:"no_space" json:"no_space"`
	Unknown  string `yaml:"unknown" json:"unknown"`
}

const iconBase = "https://polqjhuklxclnvgpjckf.supabase.co/storage/v1/object/public/icons/"

// DefaultIcons are the icons served from the project's storage bucket.
var DefaultIcons = IconSet{
	HasSpace: iconBase + "parking.png",   // green
	NoSpace:  iconBase + "parking-2.png", // red
	Unknown:  iconBase + "parking-3.png", // gray
}

// WithDefaults fills empty entries from DefaultIcons.
func (s IconSet) WithDefaults() IconSet {
	if s.HasSpace == "" {
		s.HasSpace = DefaultIcons.HasSpace
	}
	if s.NoSpace == "" {
		s.NoSpace = DefaultIcons.NoSpace
	}
	if s.Unknown == "" {
		s.Unknown = DefaultIcons.Unknown
	}
	return s
}

// For returns the icon of a state; anything unrecognised gets the unknown icon.
func (s IconSet) For(st State) string {
	switch st {
	case StateHasSpace:
		return s.HasSpace
	case StateNoSpace:
		return s.NoSpace
	default:
		return s.Unknown
	}
}

func unknownTitle(key string) string { return fmt.Sprintf("%s | 狀態: 未知", key) }

func countTitle(key string, free, capacity int) string {
	return fmt.Sprintf("%s | 空位: %d/%d", key, free, capacity)
}

// PickGroupMarkerMeta selects the marker of a group.  A missing group, or
// one whose count is unknown, gets the unknown title and icon.  Otherwise
// the icon follows the group's aggregate state and the title shows
// free/total slots.
func (s IconSet) PickGroupMarkerMeta(groupKey string, g *GroupAvailability) MarkerMeta {
	if g == nil || g.State == StateUnknown {
		return MarkerMeta{Title: unknownTitle(groupKey), IconURL: s.Unknown}
	}
	return MarkerMeta{
		Title:   countTitle(groupKey, g.FreeSlots, g.CapacityEstimate),
		IconURL: s.For(g.State),
	}
}

// PickAreaMarkerMeta selects the marker of a single sub-area.  When the area
// has no availability row the fallback icon is used if given.
func (s IconSet) PickAreaMarkerMeta(areaID string, byArea map[string]AreaAvailability, fallbackIcon string) MarkerMeta {
	a, ok := byArea[areaID]
	if !ok {
		icon := fallbackIcon
		if icon == "" {
			icon = s.Unknown
		}
		return MarkerMeta{Title: unknownTitle(areaID), IconURL: icon}
	}
	return MarkerMeta{
		Title:   countTitle(areaID, a.FreeSlots, a.CapacityEstimate),
		IconURL: s.For(a.State),
	}
}
