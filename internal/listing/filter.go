// Package listing filters, orders and paginates fetched collections.
package listing

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Pass-through sentinels: a filter key holding either value constrains nothing.
const (
	All  = "all"
	None = ""
)

// Order values accepted by Query.Order.
const (
	OrderRecent = "recent"
	OrderOldest = "oldest"
)

// FilterState maps a filter key to its selected value.
type FilterState map[string]string

// Active reports whether key carries a real constraint.
func (f FilterState) Active(key string) bool {
	v := strings.TrimSpace(f[key])
	return v != None && v != All
}

// Value returns the trimmed value for key.
func (f FilterState) Value(key string) string {
	return strings.TrimSpace(f[key])
}

// Clone copies the state so callers can mutate it freely.
func (f FilterState) Clone() FilterState {
	out := make(FilterState, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Only keeps the entries whose key is listed.
func (f FilterState) Only(keys ...string) FilterState {
	out := make(FilterState, len(keys))
	for _, k := range keys {
		if v, ok := f[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Query is the user's search and filter input for one screen.
type Query struct {
	Search      string      `json:"search"`
	SearchField string      `json:"search_field"`
	Filters     FilterState `json:"filters"`
	Order       string      `json:"order"`
}

// Accessor extracts a textual field; ok is false when the item lacks it.
type Accessor[T any] func(item T) (value string, ok bool)

// Dimension is one AND-ed filter criterion.
type Dimension[T any] struct {
	// Keys lists the FilterState keys the dimension reads.
	Keys  []string
	match func(item T, filters FilterState, now time.Time) bool
}

// Spec declares how a screen's collection can be searched, filtered and ordered.
type Spec[T any] struct {
	SearchFields map[string]Accessor[T]
	Dimensions   []Dimension[T]
	// Timestamp feeds recent/oldest ordering.
	Timestamp func(item T) (time.Time, bool)
}

// Apply returns the items matching q, preserving input order unless q asks
// for chronological ordering. The input slice is never modified.
func (s Spec[T]) Apply(items []T, q Query, now time.Time) []T {
	folder := cases.Fold()
	needle := folder.String(strings.TrimSpace(q.Search))
	var search Accessor[T]
	if needle != "" {
		search = s.SearchFields[q.SearchField]
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		if needle != "" {
			if search == nil {
				continue
			}
			value, ok := search(item)
			if !ok || !strings.Contains(folder.String(value), needle) {
				continue
			}
		}
		if !s.matches(item, q.Filters, now) {
			continue
		}
		out = append(out, item)
	}

	if s.Timestamp != nil && (q.Order == OrderRecent || q.Order == OrderOldest) {
		s.sortByTime(out, q.Order == OrderRecent)
	}
	return out
}

func (s Spec[T]) matches(item T, filters FilterState, now time.Time) bool {
	for _, dim := range s.Dimensions {
		active := false
		for _, key := range dim.Keys {
			if filters.Active(key) {
				active = true
				break
			}
		}
		if !active {
			continue
		}
		if !dim.match(item, filters, now) {
			return false
		}
	}
	return true
}

func (s Spec[T]) sortByTime(items []T, desc bool) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, okI := s.Timestamp(items[i])
		tj, okJ := s.Timestamp(items[j])
		switch {
		case !okI:
			return false
		case !okJ:
			return true
		case desc:
			return ti.After(tj)
		default:
			return ti.Before(tj)
		}
	})
}
