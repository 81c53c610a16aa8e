// Package projection derives the visible task list from the full list and
// the current view preferences.
package projection

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/amirbrooks/tasker/internal/store"
)

// Query is the set of view preferences applied by Project.
type Query struct {
	Filter store.Filter
	Search string
	Tags   []string
	Sort   store.SortMode
	// Locale selects the collation used by the title sort. Zero means English.
	Locale language.Tag
}

// Project filters and sorts tasks. The input is never modified; the result
// holds clones.
func Project(tasks []store.Task, q Query) []store.Task {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	var want []string
	for _, tag := range q.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			want = append(want, tag)
		}
	}

	out := make([]store.Task, 0, len(tasks))
	for _, t := range tasks {
		if !matchFilter(t, q.Filter) {
			continue
		}
		if search != "" && !matchSearch(t, search) {
			continue
		}
		if !matchTags(t, want) {
			continue
		}
		out = append(out, t.Clone())
	}
	sortTasks(out, q.Sort, q.Locale)
	return out
}

func matchFilter(t store.Task, f store.Filter) bool {
	switch f {
	case store.FilterActive:
		return !t.Completed
	case store.FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

func matchSearch(t store.Task, needle string) bool {
	if strings.Contains(strings.ToLower(t.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(t.Notes), needle) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// matchTags requires every wanted tag to be present on the task.
func matchTags(t store.Task, want []string) bool {
	for _, tag := range want {
		if !store.HasTag(t.Tags, tag) {
			return false
		}
	}
	return true
}

func sortTasks(tasks []store.Task, mode store.SortMode, locale language.Tag) {
	var primary func(a, b store.Task) int
	switch mode {
	case store.SortDue:
		primary = compareDue
	case store.SortPriority:
		primary = func(a, b store.Task) int { return b.Priority.Rank() - a.Priority.Rank() }
	case store.SortTitle:
		if locale == language.Und {
			locale = language.English
		}
		col := collate.New(locale, collate.IgnoreCase)
		primary = func(a, b store.Task) int { return col.CompareString(a.Title, b.Title) }
	case store.SortManual:
		primary = func(a, b store.Task) int { return a.Order - b.Order }
	default:
		primary = func(a, b store.Task) int { return 0 }
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if c := primary(tasks[i], tasks[j]); c != 0 {
			return c < 0
		}
		return tiebreak(tasks[i], tasks[j]) < 0
	})
}

// compareDue puts dated tasks first, earliest due first.
func compareDue(a, b store.Task) int {
	switch {
	case a.DueAt == nil && b.DueAt == nil:
		return 0
	case a.DueAt == nil:
		return 1
	case b.DueAt == nil:
		return -1
	}
	return compareTime(*a.DueAt, *b.DueAt)
}

// tiebreak orders newest first, then by id, so every sort is total.
func tiebreak(a, b store.Task) int {
	if c := compareTime(b.CreatedAt, a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// Counts summarizes a task list for status bars.
type Counts struct {
	All       int `json:"all"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
}

func Count(tasks []store.Task, now time.Time) Counts {
	c := Counts{All: len(tasks)}
	for i := range tasks {
		if tasks[i].Completed {
			c.Completed++
			continue
		}
		c.Active++
		if store.ClassifyDue(tasks[i].DueAt, now) == store.DueOverdue {
			c.Overdue++
		}
	}
	return c
}

// Tags lists the distinct tags in use, first spelling wins.
func Tags(tasks []store.Task) []string {
	var all []string
	for i := range tasks {
		all = append(all, tasks[i].Tags...)
	}
	out := store.UniqueTags(all)
	if out == nil {
		out = []string{}
	}
	return out
}
