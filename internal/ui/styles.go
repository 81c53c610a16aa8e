package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/amirbrooks/tasker/internal/store"
)

type styles struct {
	title     lipgloss.Style
	header    lipgloss.Style
	muted     lipgloss.Style
	cursor    lipgloss.Style
	selected  lipgloss.Style
	done      lipgloss.Style
	tag       lipgloss.Style
	overdue   lipgloss.Style
	today     lipgloss.Style
	due       lipgloss.Style
	high      lipgloss.Style
	medium    lipgloss.Style
	low       lipgloss.Style
	status    lipgloss.Style
	statusErr lipgloss.Style
	prompt    lipgloss.Style
}

// newStyles builds the palette for theme. Auto defers to the terminal
// background.
func newStyles(theme store.Theme) styles {
	c := func(light, dark string) lipgloss.TerminalColor {
		switch theme {
		case store.ThemeLight:
			return lipgloss.Color(light)
		case store.ThemeDark:
			return lipgloss.Color(dark)
		}
		return lipgloss.AdaptiveColor{Light: light, Dark: dark}
	}
	accent := c("#5A4FCF", "#A99BFF")
	return styles{
		title:     lipgloss.NewStyle().Bold(true).Foreground(accent),
		header:    lipgloss.NewStyle().Foreground(c("#4B4B4B", "#C8C8C8")),
		muted:     lipgloss.NewStyle().Foreground(c("#8A8A8A", "#6C6C6C")),
		cursor:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		selected:  lipgloss.NewStyle().Background(c("#E8E4FF", "#2E2950")),
		done:      lipgloss.NewStyle().Strikethrough(true).Foreground(c("#9A9A9A", "#5F5F5F")),
		tag:       lipgloss.NewStyle().Foreground(c("#0F7B8A", "#5FD7D7")),
		overdue:   lipgloss.NewStyle().Bold(true).Foreground(c("#C62828", "#FF6B6B")),
		today:     lipgloss.NewStyle().Foreground(c("#B26A00", "#FFB347")),
		due:       lipgloss.NewStyle().Foreground(c("#4B4B4B", "#B0B0B0")),
		high:      lipgloss.NewStyle().Bold(true).Foreground(c("#C62828", "#FF6B6B")),
		medium:    lipgloss.NewStyle().Foreground(c("#B26A00", "#FFB347")),
		low:       lipgloss.NewStyle().Foreground(c("#2E7D32", "#8BD17C")),
		status:    lipgloss.NewStyle().Foreground(accent),
		statusErr: lipgloss.NewStyle().Bold(true).Foreground(c("#C62828", "#FF6B6B")),
		prompt:    lipgloss.NewStyle().Bold(true).Foreground(accent),
	}
}

func (s styles) priority(p store.Priority) lipgloss.Style {
	switch p {
	case store.PriorityHigh:
		return s.high
	case store.PriorityMedium:
		return s.medium
	case store.PriorityLow:
		return s.low
	}
	return s.muted
}

func (s styles) dueClass(c store.DueClass) lipgloss.Style {
	switch c {
	case store.DueOverdue:
		return s.overdue
	case store.DueToday:
		return s.today
	}
	return s.due
}
