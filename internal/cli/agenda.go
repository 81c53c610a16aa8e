package cli

import (
	"flag"
	"fmt"
	"time"

	"github.com/amirbrooks/tasker/internal/projection"
	"github.com/amirbrooks/tasker/internal/store"
)

// agendaDay groups the tasks due on one calendar day.
type agendaDay struct {
	Date  string       `json:"date"`
	Label string       `json:"label"`
	Tasks []store.Task `json:"tasks"`
}

func cmdToday(a *app, args []string) int {
	args = reorderFlags(args, map[string]bool{"--all": false})
	fs := flag.NewFlagSet("today", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	all := fs.Bool("all", false, "Include completed tasks")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if len(fs.Args()) > 0 {
		fmt.Fprintln(a.errOut, "Usage: tasker today [--all]")
		return ExitUsage
	}
	m, err := a.open(a.log)
	if err != nil {
		return a.fail("today", err)
	}
	defer m.Close()

	now := timeNow()
	var overdue, today []store.Task
	for _, t := range dueSorted(m.View().Tasks, *all, a) {
		switch store.ClassifyDue(t.DueAt, now) {
		case store.DueOverdue:
			overdue = append(overdue, t)
		case store.DueToday:
			today = append(today, t)
		}
	}

	if handled, code := a.emitNDJSON("today", "today", append(append([]store.Task{}, overdue...), today...)); handled {
		return code
	}
	if handled, code := a.emitJSON("today", "today", map[string]any{"overdue": nonNil(overdue), "today": nonNil(today)}); handled {
		return code
	}
	if len(overdue) == 0 && len(today) == 0 {
		if !a.gf.Quiet {
			fmt.Fprintln(a.out, "Nothing due today.")
		}
		return ExitOK
	}
	if len(overdue) > 0 {
		fmt.Fprintf(a.out, "Overdue (%d)\n", len(overdue))
		a.printTasks(overdue, now)
	}
	if len(today) > 0 {
		if len(overdue) > 0 {
			fmt.Fprintln(a.out)
		}
		fmt.Fprintf(a.out, "Today (%d)\n", len(today))
		a.printTasks(today, now)
	}
	return ExitOK
}

func cmdAgenda(a *app, args []string) int {
	args = reorderFlags(args, map[string]bool{"--days": true, "--all": false})
	fs := flag.NewFlagSet("week", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	days := fs.Int("days", 7, "Number of days to show, starting today")
	all := fs.Bool("all", false, "Include completed tasks")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if *days < 1 || len(fs.Args()) > 0 {
		fmt.Fprintln(a.errOut, "Usage: tasker week [--days N] [--all]")
		return ExitUsage
	}
	m, err := a.open(a.log)
	if err != nil {
		return a.fail("week", err)
	}
	defer m.Close()

	now := timeNow()
	agenda := buildAgenda(dueSorted(m.View().Tasks, *all, a), now, *days)

	if handled, code := a.emitJSON("week", "week", map[string]any{"days": agenda}); handled {
		return code
	}
	var flat []store.Task
	for _, d := range agenda {
		flat = append(flat, d.Tasks...)
	}
	if handled, code := a.emitNDJSON("week", "week", flat); handled {
		return code
	}
	if len(agenda) == 0 {
		if !a.gf.Quiet {
			fmt.Fprintf(a.out, "Nothing due in the next %d day(s).\n", *days)
		}
		return ExitOK
	}
	for i, d := range agenda {
		if i > 0 {
			fmt.Fprintln(a.out)
		}
		fmt.Fprintf(a.out, "%s (%d)\n", d.Label, len(d.Tasks))
		a.printTasks(d.Tasks, now)
	}
	return ExitOK
}

// dueSorted returns the dated tasks ordered by due date.
func dueSorted(tasks []store.Task, includeCompleted bool, a *app) []store.Task {
	filter := store.FilterActive
	if includeCompleted {
		filter = store.FilterAll
	}
	sorted := projection.Project(tasks, projection.Query{Filter: filter, Sort: store.SortDue, Locale: a.cfg.Language()})
	out := sorted[:0]
	for _, t := range sorted {
		if t.DueAt != nil {
			out = append(out, t)
		}
	}
	return out
}

// buildAgenda buckets tasks by day over [today, today+days). Overdue tasks
// are collected under a leading "Overdue" entry.
func buildAgenda(tasks []store.Task, now time.Time, days int) []agendaDay {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, days)
	var overdue agendaDay
	var out []agendaDay
	index := map[string]int{}
	for _, t := range tasks {
		due := t.DueAt.In(now.Location())
		if due.Before(start) {
			overdue.Tasks = append(overdue.Tasks, t)
			continue
		}
		if !due.Before(end) {
			continue
		}
		key := due.Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			label := store.FormatDue(t.DueAt, now)
			if label != "Today" && label != "Tomorrow" {
				label = due.Format("Mon Jan 02")
			}
			out = append(out, agendaDay{Date: key, Label: label})
		}
		out[i].Tasks = append(out[i].Tasks, t)
	}
	if len(overdue.Tasks) > 0 {
		overdue.Label = "Overdue"
		out = append([]agendaDay{overdue}, out...)
	}
	return out
}

func nonNil(tasks []store.Task) []store.Task {
	if tasks == nil {
		return []store.Task{}
	}
	return tasks
}
