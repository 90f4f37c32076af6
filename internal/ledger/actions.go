package ledger

import "sort"

// Action is a paid feature.  Using it costs Cost points and records
// Description in the history.
type Action struct {
	Name        string `json:"name"`
	Cost        int    `json:"cost"`
	Description string `json:"description"`
}

var actions = map[string]Action{
	"map":        {Name: "map", Cost: 10, Description: "點擊地圖使用功能"},
	"navigation": {Name: "navigation", Cost: 30, Description: "使用導航功能"},
	"streetview": {Name: "streetview", Cost: 50, Description: "使用街景功能"},
}

// UploadDescription is the history text of an upload reward.
const UploadDescription = "上傳照片"

// LookupAction returns the action registered under name.
func LookupAction(name string) (Action, bool) {
	a, ok := actions[name]
	return a, ok
}

// Actions lists every action, cheapest first.
func Actions() []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cost < out[j].Cost })
	return out
}
