package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
	timeNow     = func() time.Time { return time.Now().UTC() }
)

// MatchConflictError provides details when a selector matches multiple tasks.
// It still satisfies errors.Is(err, ErrConflict).
type MatchConflictError struct {
	Reason  string
	Matches []Task
}

func (e *MatchConflictError) Error() string {
	if e == nil || strings.TrimSpace(e.Reason) == "" {
		return "conflict"
	}
	return "conflict: " + e.Reason
}

func (e *MatchConflictError) Is(target error) bool {
	return target == ErrConflict
}

type Task struct {
	ID        string     `yaml:"id" json:"id"`
	Title     string     `yaml:"title" json:"title"`
	Notes     string     `yaml:"notes,omitempty" json:"notes"`
	Completed bool       `yaml:"completed" json:"completed"`
	CreatedAt time.Time  `yaml:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `yaml:"updated_at" json:"updatedAt"`
	DueAt     *time.Time `yaml:"due_at,omitempty" json:"dueAt"`
	Priority  Priority   `yaml:"priority" json:"priority"`
	Tags      []string   `yaml:"tags" json:"tags"`
	ParentID  string     `yaml:"parent_id,omitempty" json:"parentId,omitempty"`
	Order     int        `yaml:"order" json:"order"`
}

// Clone returns a copy that shares no mutable state with t.
func (t Task) Clone() Task {
	out := t
	if t.Tags != nil {
		out.Tags = make([]string, len(t.Tags))
		copy(out.Tags, t.Tags)
	}
	if t.DueAt != nil {
		due := *t.DueAt
		out.DueAt = &due
	}
	return out
}

func (t *Task) IDShort(n int) string {
	s := t.ID
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (t *Task) StatusAbbrev() string {
	if t.Completed {
		return "✓"
	}
	return "o"
}

func (t *Task) PriorityAbbrev() string {
	switch t.Priority {
	case PriorityHigh:
		return "H"
	case PriorityMedium:
		return "M"
	case PriorityLow:
		return "L"
	default:
		return "-"
	}
}

func (t *Task) RenderHuman(now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s\n", t.Title))
	b.WriteString(fmt.Sprintf("ID: %s\n", t.ID))
	if t.Completed {
		b.WriteString("Status: completed\n")
	} else {
		b.WriteString("Status: active\n")
	}
	b.WriteString(fmt.Sprintf("Priority: %s\n", t.Priority))
	if t.DueAt != nil {
		b.WriteString(fmt.Sprintf("Due: %s (%s)\n", t.DueAt.Format("2006-01-02"), FormatDue(t.DueAt, now)))
	}
	if len(t.Tags) > 0 {
		b.WriteString(fmt.Sprintf("Tags: %s\n", strings.Join(t.Tags, ", ")))
	}
	if t.ParentID != "" {
		b.WriteString(fmt.Sprintf("Parent: %s\n", t.ParentID))
	}
	b.WriteString(fmt.Sprintf("Created: %s\n", FormatTimestamp(t.CreatedAt)))
	b.WriteString(fmt.Sprintf("Updated: %s\n", FormatTimestamp(t.UpdatedAt)))
	if strings.TrimSpace(t.Notes) != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(t.Notes, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// Draft carries the user-supplied fields of a task that does not exist yet.
type Draft struct {
	Title    string
	Notes    string
	DueAt    *time.Time
	Priority Priority
	Tags     []string
	ParentID string
}

// Patch represents a partial update.
// nil pointer => "no change"; ClearDue removes the due date.
type Patch struct {
	Title     *string    `json:"title,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
	DueAt     *time.Time `json:"dueAt,omitempty"`
	ClearDue  bool       `json:"clearDue,omitempty"`
	Priority  *Priority  `json:"priority,omitempty"`
	Tags      *[]string  `json:"tags,omitempty"`
	ParentID  *string    `json:"parentId,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Notes == nil && p.Completed == nil && p.DueAt == nil &&
		!p.ClearDue && p.Priority == nil && p.Tags == nil && p.ParentID == nil
}

// Validate reports patches that would break a task invariant.
func (p Patch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, string(*p.Priority))
	}
	return nil
}

// Apply returns t with the patch merged in and UpdatedAt set to at.
// The patch is assumed to be valid.
func (p Patch) Apply(t Task, at time.Time) Task {
	out := t.Clone()
	if p.Title != nil {
		out.Title = strings.TrimSpace(*p.Title)
	}
	if p.Notes != nil {
		out.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.Completed != nil {
		out.Completed = *p.Completed
	}
	if p.ClearDue {
		out.DueAt = nil
	} else if p.DueAt != nil {
		due := *p.DueAt
		out.DueAt = &due
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.Tags != nil {
		out.Tags = NormalizeTags(*p.Tags)
	}
	if p.ParentID != nil {
		out.ParentID = strings.TrimSpace(*p.ParentID)
	}
	out.UpdatedAt = at
	if out.UpdatedAt.Before(out.CreatedAt) {
		out.UpdatedAt = out.CreatedAt
	}
	return out
}

// IndexOf returns the position of the task with id, or -1.
func IndexOf(tasks []Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// CloneTasks deep-copies a task slice.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}

// ResolvePrefix returns every task whose id starts with selector.
// Matching is case-insensitive and the "tsk_" prefix is optional.
func ResolvePrefix(tasks []Task, selector string) ([]Task, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrInvalid)
	}
	norm := strings.ToUpper(selector)
	if !strings.HasPrefix(norm, "TSK_") {
		norm = "TSK_" + norm
	}
	var hits []Task
	for _, t := range tasks {
		if strings.ToUpper(t.ID) == strings.ToUpper(selector) {
			return []Task{t}, nil
		}
		if strings.HasPrefix(strings.ToUpper(t.ID), norm) || strings.HasPrefix(strings.ToUpper(t.ID), strings.ToUpper(selector)) {
			hits = append(hits, t)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	return hits, nil
}

// ResolveOne resolves selector to exactly one task.
func ResolveOne(tasks []Task, selector string) (Task, error) {
	hits, err := ResolvePrefix(tasks, selector)
	if err != nil {
		return Task{}, err
	}
	switch len(hits) {
	case 0:
		return Task{}, ErrNotFound
	case 1:
		return hits[0], nil
	default:
		return Task{}, &MatchConflictError{Reason: "prefix", Matches: hits}
	}
}

// NormalizeTags trims tags and drops empty ones. Order and duplicates are kept.
func NormalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = cleanTag(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// UniqueTags dedupes case-insensitively (first spelling wins) and sorts.
func UniqueTags(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

// HasTag reports whether list contains v, ignoring case.
func HasTag(list []string, v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	for _, s := range list {
		if strings.ToLower(strings.TrimSpace(s)) == v {
			return true
		}
	}
	return false
}

func cleanTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	tag = strings.TrimLeft(tag, "#+")
	return strings.TrimSpace(tag)
}

// Truncate shortens s to n runes, marking the cut with an ellipsis.
func Truncate(s string, n int, ascii bool) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	if ascii {
		return string(r[:n-2]) + ".."
	}
	return string(r[:n-1]) + "…"
}

// CleanTitle flattens a title onto one line.
func CleanTitle(title string) string {
	title = strings.ReplaceAll(title, "\n", " ")
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.TrimSpace(title)
	if title == "" {
		return "(untitled)"
	}
	return title
}
