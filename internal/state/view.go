package state

import (
	"sort"

	"github.com/amirbrooks/tasker/internal/projection"
	"github.com/amirbrooks/tasker/internal/store"
)

// View is a read-only copy of the Manager's state.
type View struct {
	Tasks         []store.Task
	Filtered      []store.Task
	Selected      []string
	Filter        store.Filter
	Sort          store.SortMode
	Search        string
	TagFilters    []string
	Theme         store.Theme
	Editing       *store.Task
	Loading       bool
	// LoadFailed means saved tasks could not be read and saving is paused.
	LoadFailed    bool
	Counts        projection.Counts
	AvailableTags []string
	CanUndo       bool
	CanRedo       bool
	// Message is transient feedback from the change that produced this view.
	Message string
}

func (v View) IsSelected(id string) bool {
	i := sort.SearchStrings(v.Selected, id)
	return i < len(v.Selected) && v.Selected[i] == id
}

// Visible returns the index of id in Filtered, or -1.
func (v View) Visible(id string) int {
	return store.IndexOf(v.Filtered, id)
}
