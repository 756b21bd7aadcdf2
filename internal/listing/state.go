package listing

import (
	"encoding/json"
	"reflect"
	"strings"
)

// ViewState is the screen-local presentation state: active tab, query and
// current page. It is persisted per screen in the user's session.
type ViewState struct {
	Tab   string `json:"tab"`
	Query Query  `json:"query"`
	Page  int    `json:"page"`
}

// NewViewState returns the all-pass-through state on the given tab.
func NewViewState(tab string) ViewState {
	return ViewState{Tab: tab, Query: Query{Filters: FilterState{}}, Page: 1}
}

// WithTab switches tabs. Any change of tab lands on page 1.
func (v ViewState) WithTab(tab string) ViewState {
	if tab != v.Tab {
		v.Tab = tab
		v.Page = 1
	}
	return v
}

// WithQuery replaces the query wholesale. When the resulting collection may
// differ (search, field, order or filters changed) the page resets to 1.
func (v ViewState) WithQuery(q Query) ViewState {
	if q.Filters == nil {
		q.Filters = FilterState{}
	}
	if !sameQuery(v.Query, q) {
		v.Page = 1
	}
	v.Query = q
	return v
}

// WithPage moves to page; clamping against the collection happens in Paginate.
func (v ViewState) WithPage(page int) ViewState {
	if page < 1 {
		page = 1
	}
	v.Page = page
	return v
}

// Clear resets search, filters and order, keeping the active tab.
func (v ViewState) Clear() ViewState {
	return NewViewState(v.Tab)
}

// Encode serialises the state for session storage.
func (v ViewState) Encode() string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// DecodeViewState restores a state, falling back to the pass-through state on
// the default tab when raw is empty or corrupt.
func DecodeViewState(raw, defaultTab string) ViewState {
	if strings.TrimSpace(raw) == "" {
		return NewViewState(defaultTab)
	}
	var v ViewState
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return NewViewState(defaultTab)
	}
	if v.Query.Filters == nil {
		v.Query.Filters = FilterState{}
	}
	if v.Page < 1 {
		v.Page = 1
	}
	if v.Tab == "" {
		v.Tab = defaultTab
	}
	return v
}

func sameQuery(a, b Query) bool {
	if strings.TrimSpace(a.Search) != strings.TrimSpace(b.Search) || a.SearchField != b.SearchField || a.Order != b.Order {
		return false
	}
	return reflect.DeepEqual(activeOnly(a.Filters), activeOnly(b.Filters))
}

func activeOnly(f FilterState) map[string]string {
	out := make(map[string]string, len(f))
	for k := range f {
		if f.Active(k) {
			out[k] = f.Value(k)
		}
	}
	return out
}
