package state

import (
	"fmt"
	"time"

	"github.com/amirbrooks/tasker/internal/store"
)

// Action describes a recorded mutation. Applying an action to the state it
// was recorded against reproduces the mutation exactly, which is how redo
// works.
type Action interface {
	Kind() string
	Describe() string
	apply(tasks []store.Task) []store.Task
}

type AddTask struct {
	Task store.Task
}

func (AddTask) Kind() string       { return "add_task" }
func (a AddTask) Describe() string { return fmt.Sprintf("Add %q", a.Task.Title) }
func (a AddTask) apply(tasks []store.Task) []store.Task {
	return append(tasks, a.Task.Clone())
}

type UpdateTask struct {
	ID    string
	Title string
	Patch store.Patch
	At    time.Time
}

func (UpdateTask) Kind() string       { return "update_task" }
func (a UpdateTask) Describe() string { return fmt.Sprintf("Edit %q", a.Title) }
func (a UpdateTask) apply(tasks []store.Task) []store.Task {
	if i := store.IndexOf(tasks, a.ID); i >= 0 {
		tasks[i] = a.Patch.Apply(tasks[i], a.At)
	}
	return tasks
}

type DeleteTask struct {
	ID    string
	Title string
}

func (DeleteTask) Kind() string       { return "delete_task" }
func (a DeleteTask) Describe() string { return fmt.Sprintf("Delete %q", a.Title) }
func (a DeleteTask) apply(tasks []store.Task) []store.Task {
	if i := store.IndexOf(tasks, a.ID); i >= 0 {
		tasks = append(tasks[:i], tasks[i+1:]...)
	}
	return tasks
}

type ToggleComplete struct {
	ID    string
	Title string
	At    time.Time
}

func (ToggleComplete) Kind() string       { return "toggle_complete" }
func (a ToggleComplete) Describe() string { return fmt.Sprintf("Toggle %q", a.Title) }
func (a ToggleComplete) apply(tasks []store.Task) []store.Task {
	if i := store.IndexOf(tasks, a.ID); i >= 0 {
		done := !tasks[i].Completed
		tasks[i] = store.Patch{Completed: &done}.Apply(tasks[i], a.At)
	}
	return tasks
}

type BulkComplete struct {
	IDs []string
	At  time.Time
}

func (BulkComplete) Kind() string       { return "bulk_complete" }
func (a BulkComplete) Describe() string { return fmt.Sprintf("Complete %s", plural(len(a.IDs), "task")) }
func (a BulkComplete) apply(tasks []store.Task) []store.Task {
	done := true
	for _, id := range a.IDs {
		if i := store.IndexOf(tasks, id); i >= 0 {
			tasks[i] = store.Patch{Completed: &done}.Apply(tasks[i], a.At)
		}
	}
	return tasks
}

type BulkDelete struct {
	IDs []string
}

func (BulkDelete) Kind() string       { return "bulk_delete" }
func (a BulkDelete) Describe() string { return fmt.Sprintf("Delete %s", plural(len(a.IDs), "task")) }
func (a BulkDelete) apply(tasks []store.Task) []store.Task {
	drop := make(map[string]bool, len(a.IDs))
	for _, id := range a.IDs {
		drop[id] = true
	}
	out := tasks[:0]
	for _, t := range tasks {
		if !drop[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

type BulkSetPriority struct {
	IDs      []string
	Priority store.Priority
	At       time.Time
}

func (BulkSetPriority) Kind() string { return "bulk_set_priority" }
func (a BulkSetPriority) Describe() string {
	return fmt.Sprintf("Set %s to %s priority", plural(len(a.IDs), "task"), a.Priority)
}
func (a BulkSetPriority) apply(tasks []store.Task) []store.Task {
	p := a.Priority
	for _, id := range a.IDs {
		if i := store.IndexOf(tasks, id); i >= 0 {
			tasks[i] = store.Patch{Priority: &p}.Apply(tasks[i], a.At)
		}
	}
	return tasks
}

type ClearCompleted struct {
	Count int
}

func (ClearCompleted) Kind() string { return "clear_completed" }
func (a ClearCompleted) Describe() string {
	return fmt.Sprintf("Clear %s", plural(a.Count, "completed task"))
}
func (a ClearCompleted) apply(tasks []store.Task) []store.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
