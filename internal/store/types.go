package store

import "strings"

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
	PriorityNone   Priority = "none"
)

// Rank orders priorities for sorting: high=3 > medium=2 > low=1 > none=0.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow, PriorityNone:
		return true
	default:
		return false
	}
}

// Next cycles none -> low -> medium -> high -> none.
func (p Priority) Next() Priority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	case PriorityHigh:
		return PriorityNone
	default:
		return PriorityLow
	}
}

func ParsePriority(s string) (Priority, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "high", "h":
		return PriorityHigh, true
	case "medium", "med", "m":
		return PriorityMedium, true
	case "low", "l":
		return PriorityLow, true
	case "none", "n", "":
		return PriorityNone, true
	default:
		return PriorityNone, false
	}
}

type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

var Filters = []Filter{FilterAll, FilterActive, FilterCompleted}

func ParseFilter(s string) (Filter, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "all", "":
		return FilterAll, true
	case "active", "open", "pending":
		return FilterActive, true
	case "completed", "done":
		return FilterCompleted, true
	default:
		return FilterAll, false
	}
}

type SortMode string

const (
	SortCreated  SortMode = "created"
	SortDue      SortMode = "due"
	SortPriority SortMode = "priority"
	SortTitle    SortMode = "title"
	SortManual   SortMode = "manual"
)

var SortModes = []SortMode{SortCreated, SortDue, SortPriority, SortTitle, SortManual}

func ParseSort(s string) (SortMode, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "created", "":
		return SortCreated, true
	case "due":
		return SortDue, true
	case "priority":
		return SortPriority, true
	case "title":
		return SortTitle, true
	case "manual":
		return SortManual, true
	default:
		return SortCreated, false
	}
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

func ParseTheme(s string) (Theme, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "light":
		return ThemeLight, true
	case "dark":
		return ThemeDark, true
	case "auto", "":
		return ThemeAuto, true
	default:
		return ThemeAuto, false
	}
}

// Next cycles light -> dark -> auto -> light.
func (t Theme) Next() Theme {
	switch t {
	case ThemeLight:
		return ThemeDark
	case ThemeDark:
		return ThemeAuto
	default:
		return ThemeLight
	}
}

// next returns the element after cur in list, wrapping around.
func next[T comparable](list []T, cur T) T {
	for i, v := range list {
		if v == cur {
			return list[(i+1)%len(list)]
		}
	}
	return list[0]
}

func (f Filter) Next() Filter     { return next(Filters, f) }
func (s SortMode) Next() SortMode { return next(SortModes, s) }
