package store

import (
	"context"
	"strings"
)

// SnapshotVersion is written into every saved snapshot.
const SnapshotVersion = 1

// Snapshot is the durable form of the task list and its view preferences.
type Snapshot struct {
	Version          int      `yaml:"version" json:"version"`
	Tasks            []Task   `yaml:"tasks" json:"tasks"`
	CurrentFilter    Filter   `yaml:"current_filter" json:"currentFilter"`
	CurrentSort      SortMode `yaml:"current_sort" json:"currentSort"`
	ActiveTagFilters []string `yaml:"active_tag_filters" json:"activeTagFilters"`
	SearchQuery      string   `yaml:"search_query" json:"searchQuery"`
	Theme            Theme    `yaml:"theme" json:"theme"`
}

// Gateway loads and saves snapshots. Save replaces everything that was
// stored before; readers never observe a partial write.
type Gateway interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

func DefaultSnapshot() Snapshot {
	return Snapshot{
		Version:          SnapshotVersion,
		Tasks:            []Task{},
		CurrentFilter:    FilterAll,
		CurrentSort:      SortCreated,
		ActiveTagFilters: []string{},
		Theme:            ThemeAuto,
	}
}

// Normalize fills fields missing from older snapshot versions with defaults.
func (s Snapshot) Normalize() Snapshot {
	if s.Version == 0 {
		s.Version = SnapshotVersion
	}
	if s.Tasks == nil {
		s.Tasks = []Task{}
	}
	for i := range s.Tasks {
		s.Tasks[i] = normalizeTask(s.Tasks[i])
	}
	if f, ok := ParseFilter(string(s.CurrentFilter)); ok {
		s.CurrentFilter = f
	} else {
		s.CurrentFilter = FilterAll
	}
	if m, ok := ParseSort(string(s.CurrentSort)); ok {
		s.CurrentSort = m
	} else {
		s.CurrentSort = SortCreated
	}
	if t, ok := ParseTheme(string(s.Theme)); ok {
		s.Theme = t
	} else {
		s.Theme = ThemeAuto
	}
	if s.ActiveTagFilters == nil {
		s.ActiveTagFilters = []string{}
	}
	s.ActiveTagFilters = NormalizeTags(s.ActiveTagFilters)
	s.SearchQuery = strings.TrimSpace(s.SearchQuery)
	return s
}

func normalizeTask(t Task) Task {
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if p, ok := ParsePriority(string(t.Priority)); ok {
		t.Priority = p
	} else {
		t.Priority = PriorityNone
	}
	if t.UpdatedAt.Before(t.CreatedAt) {
		t.UpdatedAt = t.CreatedAt
	}
	return t
}
