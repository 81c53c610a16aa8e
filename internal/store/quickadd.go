package store

import (
	"strings"
	"time"
)

// ParseQuickAdd turns a one-line entry such as
//
//	Buy milk #groceries !high @tomorrow
//
// into a Draft. "#tag" and "+tag" add tags, "!<priority>" sets the priority,
// "@<date>" and "due:<date>" set the due date (up to three words, so
// "@next friday" and "@in 3 days" work). Tokens that do not parse stay in
// the title.
func ParseQuickAdd(text string, now time.Time) Draft {
	fields := strings.Fields(text)
	d := Draft{Priority: PriorityNone}
	var title []string
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		switch {
		case isTagToken(f):
			d.Tags = append(d.Tags, cleanTag(f))
			continue
		case strings.HasPrefix(f, "!") && len(f) > 1:
			if p, ok := ParsePriority(f[1:]); ok {
				d.Priority = p
				continue
			}
		case strings.HasPrefix(f, "@") && len(f) > 1:
			if due, used, ok := parseDueTokens(f[1:], fields[i+1:], now); ok {
				d.DueAt = &due
				i += used
				continue
			}
		case strings.HasPrefix(strings.ToLower(f), "due:") && len(f) > 4:
			if due, used, ok := parseDueTokens(f[4:], fields[i+1:], now); ok {
				d.DueAt = &due
				i += used
				continue
			}
		}
		title = append(title, f)
	}
	d.Title = strings.Join(title, " ")
	return d
}

func isTagToken(f string) bool {
	if len(f) < 2 || (f[0] != '#' && f[0] != '+') {
		return false
	}
	for i := 1; i < len(f); i++ {
		if !isTagChar(f[i]) {
			return false
		}
	}
	return true
}

func isTagChar(b byte) bool {
	if b >= 'a' && b <= 'z' {
		return true
	}
	if b >= 'A' && b <= 'Z' {
		return true
	}
	if b >= '0' && b <= '9' {
		return true
	}
	if b == '-' || b == '_' || b == '/' || b == '.' {
		return true
	}
	return false
}

// parseDueTokens tries the longest phrase first and reports how many of the
// following tokens it consumed.
func parseDueTokens(first string, rest []string, now time.Time) (time.Time, int, bool) {
	maxExtra := 2
	if len(rest) < maxExtra {
		maxExtra = len(rest)
	}
	for extra := maxExtra; extra >= 0; extra-- {
		phrase := strings.Join(append([]string{first}, rest[:extra]...), " ")
		if t, ok := ParseDue(phrase, now); ok {
			return t, extra, true
		}
	}
	return time.Time{}, 0, false
}
