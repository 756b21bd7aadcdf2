package listing

import (
	"strconv"
	"strings"
	"time"
)

// Age categories derived from a birth date.
const (
	AgeChild      = "enfant"
	AgeAdolescent = "adolescent"
	AgeYoung      = "jeune"
	AgeAdult      = "adulte"
)

// DateLayout is the wire format of date filters and form dates.
const DateLayout = "2006-01-02"

// Equals keeps items whose field equals the selected value, ignoring case.
func Equals[T any](key string, field Accessor[T]) Dimension[T] {
	return Dimension[T]{
		Keys: []string{key},
		match: func(item T, filters FilterState, _ time.Time) bool {
			value, ok := field(item)
			return ok && strings.EqualFold(strings.TrimSpace(value), filters.Value(key))
		},
	}
}

// OneOf keeps items whose field is any of the comma separated selected values.
func OneOf[T any](key string, field Accessor[T]) Dimension[T] {
	return Dimension[T]{
		Keys: []string{key},
		match: func(item T, filters FilterState, _ time.Time) bool {
			value, ok := field(item)
			if !ok {
				return false
			}
			for _, candidate := range strings.Split(filters.Value(key), ",") {
				if strings.EqualFold(strings.TrimSpace(candidate), strings.TrimSpace(value)) {
					return true
				}
			}
			return false
		},
	}
}

// AgeCategory buckets items by the age derived from birth at filter time.
func AgeCategory[T any](key string, birth func(item T) (time.Time, bool)) Dimension[T] {
	return Dimension[T]{
		Keys: []string{key},
		match: func(item T, filters FilterState, now time.Time) bool {
			born, ok := birth(item)
			if !ok {
				return false
			}
			return AgeBucket(Age(born, now)) == filters.Value(key)
		},
	}
}

// DateRange keeps items whose date lies within [from, to]; either bound may
// be left at its sentinel.
func DateRange[T any](fromKey, toKey string, date func(item T) (time.Time, bool)) Dimension[T] {
	return Dimension[T]{
		Keys: []string{fromKey, toKey},
		match: func(item T, filters FilterState, _ time.Time) bool {
			when, ok := date(item)
			if !ok {
				return false
			}
			day := truncateDay(when)
			if filters.Active(fromKey) {
				from, err := time.Parse(DateLayout, filters.Value(fromKey))
				if err == nil && day.Before(from) {
					return false
				}
			}
			if filters.Active(toKey) {
				to, err := time.Parse(DateLayout, filters.Value(toKey))
				if err == nil && day.After(to) {
					return false
				}
			}
			return true
		},
	}
}

// AmountRange keeps items whose amount lies within [min, max].
func AmountRange[T any](minKey, maxKey string, amount func(item T) (float64, bool)) Dimension[T] {
	return Dimension[T]{
		Keys: []string{minKey, maxKey},
		match: func(item T, filters FilterState, _ time.Time) bool {
			value, ok := amount(item)
			if !ok {
				return false
			}
			if filters.Active(minKey) {
				lo, err := strconv.ParseFloat(filters.Value(minKey), 64)
				if err == nil && value < lo {
					return false
				}
			}
			if filters.Active(maxKey) {
				hi, err := strconv.ParseFloat(filters.Value(maxKey), 64)
				if err == nil && value > hi {
					return false
				}
			}
			return true
		},
	}
}

// Custom wraps an arbitrary predicate on the selected value of key.
func Custom[T any](key string, fn func(item T, value string, now time.Time) bool) Dimension[T] {
	return Dimension[T]{
		Keys: []string{key},
		match: func(item T, filters FilterState, now time.Time) bool {
			return fn(item, filters.Value(key), now)
		},
	}
}

// Age is the number of whole years between birth and now: the calendar-year
// difference, minus one when this year's birthday has not been reached yet.
func Age(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

// AgeBucket maps an age onto its category.
func AgeBucket(age int) string {
	switch {
	case age <= 12:
		return AgeChild
	case age <= 17:
		return AgeAdolescent
	case age <= 35:
		return AgeYoung
	default:
		return AgeAdult
	}
}

// ParseDate accepts the API's date encodings: RFC3339 timestamps and plain
// YYYY-MM-DD dates.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", DateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Text adapts a plain string getter; empty strings count as missing.
func Text[T any](get func(item T) string) Accessor[T] {
	return func(item T) (string, bool) {
		value := get(item)
		return value, strings.TrimSpace(value) != ""
	}
}

// Date adapts a raw date getter into a parsed-time accessor.
func Date[T any](get func(item T) string) func(item T) (time.Time, bool) {
	return func(item T) (time.Time, bool) {
		return ParseDate(get(item))
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today is the current date in DateLayout.
func Today() string {
	return time.Now().Format(DateLayout)
}
