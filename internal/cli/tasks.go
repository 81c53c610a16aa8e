package cli

import (
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/amirbrooks/tasker/internal/projection"
	"github.com/amirbrooks/tasker/internal/state"
	"github.com/amirbrooks/tasker/internal/store"
)

func cmdAdd(a *app, args []string) int {
	args = reorderFlags(args, map[string]bool{
		"--notes":     true,
		"--due":       true,
		"--priority":  true,
		"--tag":       true,
		"--parent":    true,
		"--today":     false,
		"--tomorrow":  false,
		"--next-week": false,
	})
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	notes := fs.String("notes", "", "Notes")
	due := fs.String("due", "", "Due date (today, friday, in 3 days, YYYY-MM-DD)")
	dueToday := fs.Bool("today", false, "Shortcut: due today")
	dueTomorrow := fs.Bool("tomorrow", false, "Shortcut: due tomorrow")
	dueNextWeek := fs.Bool("next-week", false, "Shortcut: due in 7 days")
	priority := fs.String("priority", "", "Priority (high|medium|low|none)")
	tags := multiFlag{}
	fs.Var(&tags, "tag", "Tag (repeatable)")
	parent := fs.String("parent", "", "Parent task id")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(a.errOut, "Usage: tasker add \"<title>\" [--due <date>] [--priority <p>] [--tag <t>...]")
		return ExitUsage
	}
	shortcuts := 0
	for _, set := range []bool{*dueToday, *dueTomorrow, *dueNextWeek} {
		if set {
			shortcuts++
		}
	}
	if shortcuts > 1 || (shortcuts == 1 && strings.TrimSpace(*due) != "") {
		fmt.Fprintln(a.errOut, "Usage: choose only one of --due/--today/--tomorrow/--next-week")
		return ExitUsage
	}
	now := timeNow()
	switch {
	case *dueToday:
		*due = "today"
	case *dueTomorrow:
		*due = "tomorrow"
	case *dueNextWeek:
		*due = "next week"
	}

	draft := store.ParseQuickAdd(strings.Join(rest, " "), now)
	if strings.TrimSpace(*notes) != "" {
		draft.Notes = *notes
	}
	if strings.TrimSpace(*due) != "" {
		d, ok := store.ParseDue(*due, now)
		if !ok {
			fmt.Fprintf(a.errOut, "add: could not understand due date %q\n", *due)
			return ExitUsage
		}
		draft.DueAt = &d
	}
	if strings.TrimSpace(*priority) != "" {
		p, ok := store.ParsePriority(*priority)
		if !ok {
			fmt.Fprintf(a.errOut, "add: unknown priority %q\n", *priority)
			return ExitUsage
		}
		draft.Priority = p
	}
	draft.Tags = append(draft.Tags, tags.Values...)
	draft.ParentID = *parent

	m, err := a.open(a.log)
	if err != nil {
		return a.fail("add", err)
	}
	if draft.ParentID != "" {
		p, err := m.Resolve(draft.ParentID)
		if err != nil {
			m.Close()
			return a.fail("add", err)
		}
		draft.ParentID = p.ID
	}
	task, err := m.AddTask(draft)
	if err != nil {
		m.Close()
		return a.fail("add", err)
	}
	if code := a.commit(m, "add"); code != ExitOK {
		return code
	}
	if handled, code := a.emitJSON("add", "task", map[string]any{"task": task}); handled {
		return code
	}
	if handled, code := a.emitNDJSON("add", "task", []store.Task{task}); handled {
		return code
	}
	if !a.gf.Quiet {
		fmt.Fprintf(a.out, "%s %s\n", task.ID, task.Title)
	}
	return ExitOK
}

func cmdList(a *app, args []string) int {
	args = reorderFlags(args, map[string]bool{
		"--filter": true,
		"--sort":   true,
		"--search": true,
		"--tag":    true,
		"--all":    false,
	})
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	filter := fs.String("filter", "", "Status filter (all|active|completed)")
	sortMode := fs.String("sort", "", "Sort (created|due|priority|title|manual)")
	search := fs.String("search", "", "Search query (title/notes/tags)")
	tags := multiFlag{}
	fs.Var(&tags, "tag", "Filter by tag (repeatable, all must match)")
	all := fs.Bool("all", false, "Ignore saved view preferences")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}

	m, err := a.open(a.log)
	if err != nil {
		return a.fail("ls", err)
	}
	defer m.Close()
	v := m.View()

	q := projection.Query{Filter: v.Filter, Sort: v.Sort, Search: v.Search, Tags: v.TagFilters, Locale: a.cfg.Language()}
	if *all {
		q = projection.Query{Filter: store.FilterAll, Sort: v.Sort, Locale: a.cfg.Language()}
	}
	if *filter != "" {
		f, ok := store.ParseFilter(*filter)
		if !ok {
			fmt.Fprintf(a.errOut, "ls: unknown filter %q\n", *filter)
			return ExitUsage
		}
		q.Filter = f
	}
	if *sortMode != "" {
		s, ok := store.ParseSort(*sortMode)
		if !ok {
			fmt.Fprintf(a.errOut, "ls: unknown sort %q\n", *sortMode)
			return ExitUsage
		}
		q.Sort = s
	}
	if *search != "" {
		q.Search = *search
	}
	if len(tags.Values) > 0 {
		q.Tags = store.NormalizeTags(tags.Values)
	}
	tasks := projection.Project(v.Tasks, q)

	if handled, code := a.emitNDJSON("ls", "tasks", tasks); handled {
		return code
	}
	if handled, code := a.emitJSON("ls", "tasks", map[string]any{"tasks": tasks}); handled {
		return code
	}
	a.printTasks(tasks, timeNow())
	return ExitOK
}

func (a *app) printTasks(tasks []store.Task, now time.Time) {
	if a.gf.Plain {
		fmt.Fprintln(a.out, "ID\tST\tPRI\tDUE\tTAGS\tTITLE")
		for _, t := range tasks {
			fmt.Fprintf(a.out, "%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.StatusAbbrev(), t.PriorityAbbrev(), dueCell(t, now), strings.Join(t.Tags, ","), store.CleanTitle(t.Title))
		}
		return
	}
	if len(tasks) == 0 {
		if !a.gf.Quiet {
			fmt.Fprintln(a.out, "No tasks.")
		}
		return
	}
	w := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID	ST	PRI	DUE	TAGS	TITLE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s	%s	%s	%s	%s	%s\n",
			t.IDShort(16), t.StatusAbbrev(), t.PriorityAbbrev(), dueCell(t, now), tagCell(t.Tags), store.Truncate(store.CleanTitle(t.Title), 60, false))
	}
	_ = w.Flush()
}

func dueCell(t store.Task, now time.Time) string {
	if t.DueAt == nil {
		return "-"
	}
	return store.FormatDue(t.DueAt, now)
}

func tagCell(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = "#" + t
	}
	return strings.Join(out, " ")
}

func cmdShow(a *app, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(a.errOut, "Usage: tasker show <id-or-prefix>")
		return ExitUsage
	}
	m, err := a.open(a.log)
	if err != nil {
		return a.fail("show", err)
	}
	defer m.Close()
	task, err := m.Resolve(args[0])
	if err != nil {
		return a.fail("show", err)
	}
	if handled, code := a.emitJSON("show", "task", map[string]any{"task": task}); handled {
		return code
	}
	fmt.Fprint(a.out, task.RenderHuman(timeNow()))
	return ExitOK
}

func cmdEdit(a *app, args []string) int {
	args = reorderFlags(args, map[string]bool{
		"--title":      true,
		"--notes":      true,
		"--due":        true,
		"--no-due":     false,
		"--priority":   true,
		"--tag":        true,
		"--clear-tags": false,
		"--parent":     true,
	})
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	title := fs.String("title", "", "New title")
	notes := fs.String("notes", "", "New notes")
	due := fs.String("due", "", "New due date")
	noDue := fs.Bool("no-due", false, "Remove the due date")
	priority := fs.String("priority", "", "New priority")
	tags := multiFlag{}
	fs.Var(&tags, "tag", "Replace tags (repeatable)")
	clearTags := fs.Bool("clear-tags", false, "Remove all tags")
	parent := fs.String("parent", "", "Parent task id (\"none\" clears)")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(a.errOut, "Usage: tasker edit <id-or-prefix> [--title <t>] [--notes <n>] [--due <d>|--no-due] [--priority <p>] [--tag <t>...]")
		return ExitUsage
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var p store.Patch
	if set["title"] {
		p.Title = title
	}
	if set["notes"] {
		p.Notes = notes
	}
	if *noDue {
		if set["due"] {
			fmt.Fprintln(a.errOut, "Usage: --due cannot be combined with --no-due")
			return ExitUsage
		}
		p.ClearDue = true
	} else if set["due"] {
		d, ok := store.ParseDue(*due, timeNow())
		if !ok {
			fmt.Fprintf(a.errOut, "edit: could not understand due date %q\n", *due)
			return ExitUsage
		}
		p.DueAt = &d
	}
	if set["priority"] {
		pr, ok := store.ParsePriority(*priority)
		if !ok {
			fmt.Fprintf(a.errOut, "edit: unknown priority %q\n", *priority)
			return ExitUsage
		}
		p.Priority = &pr
	}
	if *clearTags {
		empty := []string{}
		p.Tags = &empty
	} else if len(tags.Values) > 0 {
		p.Tags = &tags.Values
	}
	if p.IsEmpty() && !set["parent"] {
		fmt.Fprintln(a.errOut, "edit: nothing to change")
		return ExitUsage
	}

	m, err := a.open(a.log)
	if err != nil {
		return a.fail("edit", err)
	}
	task, err := m.Resolve(rest[0])
	if err != nil {
		m.Close()
		return a.fail("edit", err)
	}
	if set["parent"] {
		id := ""
		if v := strings.TrimSpace(*parent); v != "" && v != "none" {
			pt, err := m.Resolve(v)
			if err != nil {
				m.Close()
				return a.fail("edit", err)
			}
			id = pt.ID
		}
		p.ParentID = &id
	}
	if _, err := m.UpdateTask(task.ID, p); err != nil {
		m.Close()
		return a.fail("edit", err)
	}
	if code := a.commit(m, "edit"); code != ExitOK {
		return code
	}
	updated, _ := m.Get(task.ID)
	if handled, code := a.emitJSON("edit", "task", map[string]any{"task": updated}); handled {
		return code
	}
	if !a.gf.Quiet {
		fmt.Fprintf(a.out, "Updated %s\n", updated.ID)
	}
	return ExitOK
}

// resolveAll resolves every selector or reports the first failure.
func resolveAll(m *state.Manager, selectors []string) ([]store.Task, error) {
	out := make([]store.Task, 0, len(selectors))
	for _, s := range selectors {
		t, err := m.Resolve(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func taskIDs(tasks []store.Task) []string {
	ids := make([]string, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
	}
	return ids
}

func cmdDone(a *app, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(a.errOut, "Usage: tasker done <id-or-prefix>...")
		return ExitUsage
	}
	m, err := a.open(a.log)
	if err != nil {
		return a.fail("done", err)
	}
	tasks, err := resolveAll(m, args)
	if err != nil {
		m.Close()
		return a.fail("done", err)
	}
	m.BulkComplete(taskIDs(tasks))
	if code := a.commit(m, "done"); code != ExitOK {
		return code
	}
	if handled, code := a.emitJSON("done", "tasks", map[string]any{"completed": taskIDs(tasks)}); handled {
		return code
	}
	if !a.gf.Quiet {
		for _, t := range tasks {
			fmt.Fprintf(a.out, "Done %s\n", t.ID)
		}
	}
	return ExitOK
}

func cmdToggle(a *app, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(a.errOut, "Usage: tasker toggle <id-or-prefix>")
		return ExitUsage
	}
	m, err := a.open(a.log)
	if err != nil {
		return a.fail("toggle", err)
	}
	task, err := m.Resolve(args[0])
	if err != nil {
		m.Close()
		return a.fail("toggle", err)
	}
	m.ToggleTaskComplete(task.ID)
	if code := a.commit(m, "toggle"); code != ExitOK {
		return code
	}
	updated, _ := m.Get(task.ID)
	if handled, code := a.emitJSON("toggle", "task", map[string]any{"task": updated}); handled {
		return code
	}
	if !a.gf.Quiet {
		status := "active"
		if updated.Completed {
			status = "completed"
		}
		fmt.Fprintf(a.out, "%s is now %s\n", updated.ID, status)
	}
	return ExitOK
}

func cmdRemove(a *app, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(a.errOut, "Usage: tasker rm <id-or-prefix>...")
		return ExitUsage
	}
	m, err := a.open(a.log)
	if err != nil {
		return a.fail("rm", err)
	}
	tasks, err := resolveAll(m, args)
	if err != nil {
		m.Close()
		return a.fail("rm", err)
	}
	if len(tasks) == 1 {
		m.DeleteTask(tasks[0].ID)
	} else {
		m.BulkDelete(taskIDs(tasks))
	}
	if code := a.commit(m, "rm"); code != ExitOK {
		return code
	}
	if handled, code := a.emitJSON("rm", "tasks", map[string]any{"deleted": taskIDs(tasks)}); handled {
		return code
	}
	if !a.gf.Quiet {
		for _, t := range tasks {
			fmt.Fprintf(a.out, "Deleted %s\n", t.ID)
		}
	}
	return ExitOK
}

func cmdClear(a *app, args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(a.errOut, "Usage: tasker clear")
		return ExitUsage
	}
	m, err := a.open(a.log)
	if err != nil {
		return a.fail("clear", err)
	}
	n := m.ClearCompleted()
	if code := a.commit(m, "clear"); code != ExitOK {
		return code
	}
	if handled, code := a.emitJSON("clear", "clear", map[string]any{"removed": n}); handled {
		return code
	}
	if !a.gf.Quiet {
		fmt.Fprintf(a.out, "Removed %d completed task(s)\n", n)
	}
	return ExitOK
}

func cmdPriority(a *app, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(a.errOut, "Usage: tasker priority <high|medium|low|none> <id-or-prefix>...")
		return ExitUsage
	}
	p, ok := store.ParsePriority(args[0])
	if !ok {
		fmt.Fprintf(a.errOut, "priority: unknown priority %q\n", args[0])
		return ExitUsage
	}
	m, err := a.open(a.log)
	if err != nil {
		return a.fail("priority", err)
	}
	tasks, err := resolveAll(m, args[1:])
	if err != nil {
		m.Close()
		return a.fail("priority", err)
	}
	m.BulkSetPriority(taskIDs(tasks), p)
	if code := a.commit(m, "priority"); code != ExitOK {
		return code
	}
	if handled, code := a.emitJSON("priority", "tasks", map[string]any{"priority": p, "tasks": taskIDs(tasks)}); handled {
		return code
	}
	if !a.gf.Quiet {
		fmt.Fprintf(a.out, "Set %d task(s) to %s\n", len(tasks), p)
	}
	return ExitOK
}

func cmdMove(a *app, args []string) int {
	args = reorderFlags(args, map[string]bool{
		"--before": true,
		"--after":  true,
	})
	fs := flag.NewFlagSet("mv", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	before := fs.String("before", "", "Place before this task")
	after := fs.String("after", "", "Place after this task")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	rest := fs.Args()
	if len(rest) != 1 || (*before == "") == (*after == "") {
		fmt.Fprintln(a.errOut, "Usage: tasker mv <id-or-prefix> --before|--after <id-or-prefix>")
		return ExitUsage
	}
	m, err := a.open(a.log)
	if err != nil {
		return a.fail("mv", err)
	}
	dragged, err := m.Resolve(rest[0])
	if err != nil {
		m.Close()
		return a.fail("mv", err)
	}
	targetSel, insertAfter := *before, false
	if *after != "" {
		targetSel, insertAfter = *after, true
	}
	target, err := m.Resolve(targetSel)
	if err != nil {
		m.Close()
		return a.fail("mv", err)
	}
	if !m.Reorder(dragged.ID, target.ID, insertAfter) {
		m.Close()
		fmt.Fprintln(a.errOut, "mv: a task cannot be moved relative to itself")
		return ExitUsage
	}
	if code := a.commit(m, "mv"); code != ExitOK {
		return code
	}
	moved, _ := m.Get(dragged.ID)
	if handled, code := a.emitJSON("mv", "task", map[string]any{"task": moved}); handled {
		return code
	}
	if !a.gf.Quiet {
		fmt.Fprintf(a.out, "Moved %s to position %d\n", moved.ID, moved.Order+1)
	}
	return ExitOK
}

func cmdView(a *app, args []string) int {
	args = reorderFlags(args, map[string]bool{
		"--filter":     true,
		"--sort":       true,
		"--search":     true,
		"--tag":        true,
		"--clear-tags": false,
		"--theme":      true,
	})
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	filter := fs.String("filter", "", "Status filter")
	sortMode := fs.String("sort", "", "Sort mode")
	search := fs.String("search", "", "Search query (\"\" clears)")
	tags := multiFlag{}
	fs.Var(&tags, "tag", "Tag filter (repeatable)")
	clearTags := fs.Bool("clear-tags", false, "Remove tag filters")
	theme := fs.String("theme", "", "Theme (light|dark|auto)")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	m, err := a.open(a.log)
	if err != nil {
		return a.fail("view", err)
	}
	if set["filter"] && !m.SetFilter(store.Filter(*filter)) {
		m.Close()
		fmt.Fprintf(a.errOut, "view: unknown filter %q\n", *filter)
		return ExitUsage
	}
	if set["sort"] && !m.SetSort(store.SortMode(*sortMode)) {
		m.Close()
		fmt.Fprintf(a.errOut, "view: unknown sort %q\n", *sortMode)
		return ExitUsage
	}
	if set["theme"] && !m.SetTheme(store.Theme(*theme)) {
		m.Close()
		fmt.Fprintf(a.errOut, "view: unknown theme %q\n", *theme)
		return ExitUsage
	}
	if set["search"] {
		m.SetSearch(*search)
	}
	if *clearTags {
		m.SetTagFilters(nil)
	} else if len(tags.Values) > 0 {
		m.SetTagFilters(tags.Values)
	}
	if code := a.commit(m, "view"); code != ExitOK {
		return code
	}

	v := m.View()
	payload := map[string]any{
		"filter": v.Filter,
		"sort":   v.Sort,
		"search": v.Search,
		"tags":   v.TagFilters,
		"theme":  v.Theme,
		"counts": v.Counts,
	}
	if handled, code := a.emitJSON("view", "view", payload); handled {
		return code
	}
	w := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)
	fmt.Fprintf(w, "filter\t%s\n", v.Filter)
	fmt.Fprintf(w, "sort\t%s\n", v.Sort)
	fmt.Fprintf(w, "search\t%s\n", orDash(v.Search))
	fmt.Fprintf(w, "tags\t%s\n", orDash(strings.Join(v.TagFilters, ", ")))
	fmt.Fprintf(w, "theme\t%s\n", v.Theme)
	fmt.Fprintf(w, "visible\t%d of %d\n", len(v.Filtered), v.Counts.All)
	_ = w.Flush()
	return ExitOK
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
