package store

import (
	"math"
	"strconv"
	"strings"
	"time"
)

type DueClass string

const (
	DueNone     DueClass = "none"
	DueOverdue  DueClass = "overdue"
	DueToday    DueClass = "today"
	DueTomorrow DueClass = "tomorrow"
	DueThisWeek DueClass = "this_week"
	DueLater    DueClass = "later"
)

// FormatTimestamp renders t as RFC3339 in UTC.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysUntil counts calendar days from now's date to due's date in now's location.
func daysUntil(due time.Time, now time.Time) int {
	d := startOfDay(due.In(now.Location()))
	n := startOfDay(now)
	return int(math.Round(d.Sub(n).Hours() / 24))
}

// ClassifyDue buckets a due date relative to now by calendar day.
func ClassifyDue(due *time.Time, now time.Time) DueClass {
	if due == nil {
		return DueNone
	}
	days := daysUntil(*due, now)
	switch {
	case days < 0:
		return DueOverdue
	case days == 0:
		return DueToday
	case days == 1:
		return DueTomorrow
	case days <= 6:
		return DueThisWeek
	default:
		return DueLater
	}
}

// FormatDue renders a due date for people: "Today", "Friday", "Mar 04".
func FormatDue(due *time.Time, now time.Time) string {
	if due == nil {
		return ""
	}
	local := due.In(now.Location())
	days := daysUntil(*due, now)
	switch {
	case days == 0:
		return "Today"
	case days == 1:
		return "Tomorrow"
	case days == -1:
		return "Yesterday"
	case days > 1 && days <= 6:
		return local.Weekday().String()
	}
	if local.Year() == now.Year() {
		return local.Format("Jan 02")
	}
	return local.Format("Jan 02 2006")
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var monthDayLayouts = []string{"Jan 2", "January 2", "1/2"}

var fullDateLayouts = []string{"Jan 2 2006", "January 2 2006", "Jan 2, 2006", "January 2, 2006", "1/2/2006"}

// ParseDue understands the small natural-language vocabulary used when
// entering due dates ("tomorrow", "next friday", "in 3 days", "2024-05-01").
// Date-only inputs resolve to midnight in now's location.
func ParseDue(s string, now time.Time) (time.Time, bool) {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if s == "" {
		return time.Time{}, false
	}
	today := startOfDay(now)
	switch s {
	case "today", "tonight", "now":
		return today, true
	case "tomorrow", "tmr", "tmrw":
		return today.AddDate(0, 0, 1), true
	case "yesterday":
		return today.AddDate(0, 0, -1), true
	case "next week":
		return today.AddDate(0, 0, 7), true
	case "next month":
		return today.AddDate(0, 1, 0), true
	case "next year":
		return today.AddDate(1, 0, 0), true
	}
	if t, ok := parseRelative(s, today); ok {
		return t, true
	}
	if wd, ok := weekdays[strings.TrimPrefix(s, "next ")]; ok {
		delta := (int(wd) - int(today.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return today.AddDate(0, 0, delta), true
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, true
	}
	if len(s) >= 10 {
		if t, err := time.Parse(time.RFC3339, strings.ToUpper(s)); err == nil {
			return t, true
		}
	}
	for _, layout := range fullDateLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, true
		}
	}
	for _, layout := range monthDayLayouts {
		t, err := time.ParseInLocation(layout, s, now.Location())
		if err != nil {
			continue
		}
		t = time.Date(today.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
		if t.Before(today) {
			t = t.AddDate(1, 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}

// parseRelative handles "in 3 days", "2 weeks", "in 1 month".
func parseRelative(s string, today time.Time) (time.Time, bool) {
	fields := strings.Fields(strings.TrimPrefix(s, "in "))
	if len(fields) != 2 {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return time.Time{}, false
	}
	switch strings.TrimSuffix(fields[1], "s") {
	case "day", "d":
		return today.AddDate(0, 0, n), true
	case "week", "w", "wk":
		return today.AddDate(0, 0, 7*n), true
	case "month", "mo":
		return today.AddDate(0, n, 0), true
	default:
		return time.Time{}, false
	}
}
