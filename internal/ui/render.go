package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/amirbrooks/tasker/internal/store"
)

// chrome is the number of lines around the task list.
const chrome = 7

func (m *Model) listHeight() int {
	if m.height <= 0 {
		return 0
	}
	h := m.height - chrome
	if m.help.ShowAll {
		h -= 6
	}
	if m.view.LoadFailed {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	switch {
	case m.view.Loading:
		b.WriteString(m.spin.View() + " Loading tasks...\n")
	case len(m.view.Filtered) == 0:
		b.WriteString(m.style.muted.Render(m.emptyText()) + "\n")
	default:
		b.WriteString(m.renderList())
	}

	b.WriteString("\n")
	if m.mode != modeNormal {
		b.WriteString(m.style.prompt.Render(m.mode.prompt()) + m.input.View() + "\n")
	} else {
		b.WriteString(m.renderStatus() + "\n")
	}
	if m.mode != modeNormal {
		b.WriteString(m.help.View(inputKeys{m.keys}))
	} else {
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

func (m *Model) emptyText() string {
	if m.view.Counts.All == 0 {
		return "No tasks yet. Press a to add one."
	}
	return "No tasks match the current view."
}

func (m *Model) renderHeader() string {
	c := m.view.Counts
	title := m.style.title.Render("Tasks")
	counts := fmt.Sprintf("%d active, %d done", c.Active, c.Completed)
	if c.Overdue > 0 {
		counts += ", " + m.style.overdue.Render(fmt.Sprintf("%d overdue", c.Overdue))
	}
	parts := []string{
		"filter: " + string(m.view.Filter),
		"sort: " + string(m.view.Sort),
	}
	if m.view.Search != "" {
		parts = append(parts, fmt.Sprintf("search: %q", m.view.Search))
	}
	if len(m.view.TagFilters) > 0 {
		parts = append(parts, "tags: "+m.style.tag.Render(hashTags(m.view.TagFilters)))
	}
	if n := len(m.view.Selected); n > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", n))
	}
	lines := []string{
		title + "  " + m.style.header.Render(counts),
		m.style.muted.Render(strings.Join(parts, "  ")),
	}
	if m.view.LoadFailed {
		lines = append(lines, m.style.statusErr.Render("Saving paused: saved tasks could not be loaded. Press W to overwrite them."))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) renderList() string {
	tasks := m.view.Filtered
	start, end := 0, len(tasks)
	if rows := m.listHeight(); rows > 0 && end > rows {
		start = m.offset
		end = start + rows
		if end > len(tasks) {
			end = len(tasks)
		}
	}
	now := m.now()
	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(m.renderRow(tasks[i], i == m.cursor, now))
		b.WriteString("\n")
	}
	if start > 0 || end < len(tasks) {
		b.WriteString(m.style.muted.Render(fmt.Sprintf("  %d-%d of %d", start+1, end, len(tasks))) + "\n")
	}
	return b.String()
}

func (m *Model) renderRow(t store.Task, isCursor bool, now time.Time) string {
	pointer := "  "
	if isCursor {
		pointer = m.style.cursor.Render("> ")
	}
	check := "[ ]"
	if t.Completed {
		check = "[x]"
	}
	pri := m.style.priority(t.Priority).Render(t.PriorityAbbrev())

	width := m.width - 40
	if width < 20 {
		width = 60
	}
	title := store.Truncate(store.CleanTitle(t.Title), width, false)
	if t.Completed {
		title = m.style.done.Render(title)
	}
	if m.view.Editing != nil && m.view.Editing.ID == t.ID {
		title = m.style.prompt.Render("(editing) ") + title
	}

	row := fmt.Sprintf("%s%s %s %s", pointer, check, pri, title)
	if len(t.Tags) > 0 {
		row += " " + m.style.tag.Render(hashTags(t.Tags))
	}
	if t.DueAt != nil {
		style := m.style.dueClass(store.ClassifyDue(t.DueAt, now))
		if t.Completed {
			style = m.style.muted
		}
		row += " " + style.Render(store.FormatDue(t.DueAt, now))
	}
	if m.view.IsSelected(t.ID) {
		row = m.style.selected.Render(row)
	}
	return row
}

func (m *Model) renderStatus() string {
	if m.status == "" {
		parts := []string{}
		if m.view.CanUndo {
			parts = append(parts, "u undo")
		}
		if m.view.CanRedo {
			parts = append(parts, "r redo")
		}
		return m.style.muted.Render(strings.Join(parts, "  "))
	}
	if m.statusErr {
		return m.style.statusErr.Render(m.status)
	}
	return m.style.status.Render(m.status)
}

func hashTags(tags []string) string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = "#" + t
	}
	return strings.Join(out, " ")
}
