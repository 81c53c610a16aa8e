package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amirbrooks/tasker/internal/store"
)

var taskerEnv = []string{
	"TASKER_ROOT", "TASKER_HISTORY_LIMIT", "TASKER_SAVE_DELAY_MS", "TASKER_DEFAULT_SORT",
	"TASKER_THEME", "TASKER_LOCALE", "TASKER_LOG_LEVEL", "TASKER_LOG_FILE",
}

func setup(t *testing.T) string {
	t.Helper()
	for _, env := range taskerEnv {
		t.Setenv(env, "")
	}
	prev := timeNow
	timeNow = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.Local) }
	t.Cleanup(func() { timeNow = prev })
	return t.TempDir()
}

func runCLI(t *testing.T, root string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(append([]string{"--root", root}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func mustRun(t *testing.T, root string, args ...string) string {
	t.Helper()
	code, out, errOut := runCLI(t, root, args...)
	if code != ExitOK {
		t.Fatalf("%v: exit %d, stderr: %s", args, code, errOut)
	}
	return out
}

func addJSON(t *testing.T, root string, args ...string) store.Task {
	t.Helper()
	out := mustRun(t, root, append([]string{"--json", "--stdout-json", "add"}, args...)...)
	var payload struct {
		Task store.Task `json:"task"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode add output: %v\n%s", err, out)
	}
	return payload.Task
}

func loadTasks(t *testing.T, root string) []store.Task {
	t.Helper()
	out := mustRun(t, root, "--json", "--stdout-json", "ls", "--all")
	var payload struct {
		Tasks []store.Task `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode ls output: %v\n%s", err, out)
	}
	return payload.Tasks
}

func TestAddQuickAddAndFlags(t *testing.T) {
	root := setup(t)
	task := addJSON(t, root, "Buy milk #errands !high", "--due", "tomorrow", "--tag", "home", "--notes", "2 litres")

	if task.Title != "Buy milk" {
		t.Fatalf("title = %q", task.Title)
	}
	if task.Priority != store.PriorityHigh {
		t.Fatalf("priority = %q", task.Priority)
	}
	if strings.Join(task.Tags, ",") != "errands,home" {
		t.Fatalf("tags = %v", task.Tags)
	}
	if task.DueAt == nil || task.DueAt.In(time.Local).Day() != 20 {
		t.Fatalf("due = %v", task.DueAt)
	}
	if task.Notes != "2 litres" {
		t.Fatalf("notes = %q", task.Notes)
	}
	if _, err := os.Stat(filepath.Join(root, store.DefaultFileName)); err != nil {
		t.Fatalf("tasks file not written: %v", err)
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	root := setup(t)
	cases := [][]string{
		{"add"},
		{"add", "x", "--priority", "urgent"},
		{"add", "x", "--due", "someday"},
		{"add", "x", "--today", "--tomorrow"},
		{"add", "#only-a-tag"},
	}
	for _, args := range cases {
		if code, _, _ := runCLI(t, root, args...); code != ExitUsage {
			t.Fatalf("%v: exit %d, want %d", args, code, ExitUsage)
		}
	}
}

func TestListPlainAndFilters(t *testing.T) {
	root := setup(t)
	mustRun(t, root, "add", "alpha #work")
	beta := addJSON(t, root, "beta")
	mustRun(t, root, "done", beta.ID)

	out := mustRun(t, root, "--plain", "ls")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "ID\tST\tPRI\tDUE\tTAGS\tTITLE") {
		t.Fatalf("unexpected plain output:\n%s", out)
	}

	out = mustRun(t, root, "--plain", "ls", "--filter", "active")
	if strings.Contains(out, "beta") || !strings.Contains(out, "alpha") {
		t.Fatalf("active filter output:\n%s", out)
	}
	out = mustRun(t, root, "--plain", "ls", "--tag", "work")
	if !strings.Contains(out, "alpha") || strings.Contains(out, "beta") {
		t.Fatalf("tag filter output:\n%s", out)
	}
	out = mustRun(t, root, "--plain", "ls", "--search", "BET")
	if !strings.Contains(out, "beta") || strings.Contains(out, "alpha") {
		t.Fatalf("search output:\n%s", out)
	}
	if code, _, _ := runCLI(t, root, "ls", "--sort", "random"); code != ExitUsage {
		t.Fatalf("bad sort exit %d", code)
	}
}

func TestViewPreferencesPersist(t *testing.T) {
	root := setup(t)
	mustRun(t, root, "add", "open task")
	done := addJSON(t, root, "finished task")
	mustRun(t, root, "done", done.ID)

	mustRun(t, root, "view", "--filter", "active", "--theme", "dark")
	out := mustRun(t, root, "--plain", "ls")
	if strings.Contains(out, "finished") {
		t.Fatalf("saved filter not applied:\n%s", out)
	}
	out = mustRun(t, root, "view")
	if !strings.Contains(out, "dark") || !strings.Contains(out, "active") {
		t.Fatalf("view output:\n%s", out)
	}
	if code, _, _ := runCLI(t, root, "view", "--theme", "neon"); code != ExitUsage {
		t.Fatalf("bad theme exit %d", code)
	}
}

func TestPrefixResolution(t *testing.T) {
	root := setup(t)
	a := addJSON(t, root, "first")
	addJSON(t, root, "second")

	code, _, errOut := runCLI(t, root, "done", "tsk_")
	if code != ExitConflict {
		t.Fatalf("ambiguous prefix exit %d", code)
	}
	if !strings.Contains(errOut, "first") || !strings.Contains(errOut, "second") {
		t.Fatalf("conflict output should list matches:\n%s", errOut)
	}
	if code, _, _ := runCLI(t, root, "show", "tsk_ZZZZZZZZ"); code != ExitNotFound {
		t.Fatalf("missing id exit %d", code)
	}

	out := mustRun(t, root, "show", strings.ToLower(a.ID[4:]))
	if !strings.Contains(out, "first") || !strings.Contains(out, a.ID) {
		t.Fatalf("show output:\n%s", out)
	}
}

func TestEditToggleRemove(t *testing.T) {
	root := setup(t)
	task := addJSON(t, root, "draft", "--due", "today", "--tag", "x")

	mustRun(t, root, "edit", task.ID, "--title", "final", "--no-due", "--clear-tags", "--priority", "low")
	tasks := loadTasks(t, root)
	got := tasks[0]
	if got.Title != "final" || got.DueAt != nil || len(got.Tags) != 0 || got.Priority != store.PriorityLow {
		t.Fatalf("edit not applied: %+v", got)
	}
	if code, _, _ := runCLI(t, root, "edit", task.ID); code != ExitUsage {
		t.Fatalf("empty edit exit %d", code)
	}
	if code, _, _ := runCLI(t, root, "edit", task.ID, "--title", "  "); code != ExitUsage {
		t.Fatalf("blank title exit %d", code)
	}

	mustRun(t, root, "toggle", task.ID)
	if !loadTasks(t, root)[0].Completed {
		t.Fatal("toggle did not complete the task")
	}
	mustRun(t, root, "toggle", task.ID)
	if loadTasks(t, root)[0].Completed {
		t.Fatal("second toggle did not reopen the task")
	}

	other := addJSON(t, root, "other")
	mustRun(t, root, "rm", task.ID, other.ID)
	if n := len(loadTasks(t, root)); n != 0 {
		t.Fatalf("rm left %d tasks", n)
	}
}

func TestClearAndPriority(t *testing.T) {
	root := setup(t)
	a := addJSON(t, root, "a")
	b := addJSON(t, root, "b")
	c := addJSON(t, root, "c")

	mustRun(t, root, "priority", "high", a.ID, b.ID)
	for _, task := range loadTasks(t, root) {
		want := store.PriorityNone
		if task.ID != c.ID {
			want = store.PriorityHigh
		}
		if task.Priority != want {
			t.Fatalf("%s priority = %s, want %s", task.Title, task.Priority, want)
		}
	}

	mustRun(t, root, "done", a.ID, b.ID)
	out := mustRun(t, root, "clear")
	if !strings.Contains(out, "Removed 2") {
		t.Fatalf("clear output: %s", out)
	}
	tasks := loadTasks(t, root)
	if len(tasks) != 1 || tasks[0].ID != c.ID {
		t.Fatalf("clear left %+v", tasks)
	}
}

func TestMove(t *testing.T) {
	root := setup(t)
	a := addJSON(t, root, "a")
	b := addJSON(t, root, "b")
	c := addJSON(t, root, "c")

	mustRun(t, root, "mv", c.ID, "--before", a.ID)
	out := mustRun(t, root, "--plain", "ls", "--sort", "manual")
	lines := strings.Split(strings.TrimSpace(out), "\n")[1:]
	want := []string{c.ID, a.ID, b.ID}
	for i, line := range lines {
		if !strings.HasPrefix(line, want[i]) {
			t.Fatalf("manual order line %d = %q, want id %s", i, line, want[i])
		}
	}
	if code, _, _ := runCLI(t, root, "mv", a.ID, "--before", a.ID); code != ExitUsage {
		t.Fatalf("self move exit %d", code)
	}
	if code, _, _ := runCLI(t, root, "mv", a.ID); code != ExitUsage {
		t.Fatalf("missing target exit %d", code)
	}
}

func TestTodayAndWeek(t *testing.T) {
	root := setup(t)
	mustRun(t, root, "add", "late", "--due", "2026-10-17")
	mustRun(t, root, "add", "now", "--today")
	mustRun(t, root, "add", "soon", "--due", "in 3 days")
	mustRun(t, root, "add", "far", "--due", "2026-12-01")
	mustRun(t, root, "add", "undated")

	out := mustRun(t, root, "today")
	for _, want := range []string{"Overdue (1)", "late", "Today (1)", "now"} {
		if !strings.Contains(out, want) {
			t.Fatalf("today output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "soon") || strings.Contains(out, "undated") {
		t.Fatalf("today output too broad:\n%s", out)
	}

	out = mustRun(t, root, "week")
	for _, want := range []string{"Overdue", "Today", "soon", "Thu Oct 22"} {
		if !strings.Contains(out, want) {
			t.Fatalf("week output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "far") {
		t.Fatalf("week output includes a task past the window:\n%s", out)
	}
	if code, _, _ := runCLI(t, root, "week", "--days", "0"); code != ExitUsage {
		t.Fatalf("zero days exit %d", code)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := setup(t)
	addJSON(t, src, "one #a")
	addJSON(t, src, "two !low")

	file := filepath.Join(t.TempDir(), "backup.json")
	mustRun(t, src, "export", "--out", file)
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	var exp store.Export
	if err := json.Unmarshal(data, &exp); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(exp.Tasks) != 2 || exp.AppVersion != Version {
		t.Fatalf("export = %+v", exp)
	}

	dst := t.TempDir()
	addJSON(t, dst, "local only")
	out := mustRun(t, dst, "import", file)
	if !strings.Contains(out, "2 added") {
		t.Fatalf("import output: %s", out)
	}
	if n := len(loadTasks(t, dst)); n != 3 {
		t.Fatalf("after import: %d tasks", n)
	}

	// importing the same file again updates in place
	out = mustRun(t, dst, "import", file)
	if !strings.Contains(out, "0 added, 2 updated") {
		t.Fatalf("second import output: %s", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"nope": true}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if code, _, _ := runCLI(t, dst, "import", bad); code != ExitUsage {
		t.Fatalf("invalid import exit %d", code)
	}
}

func TestImportFromStdin(t *testing.T) {
	root := setup(t)
	prev := stdin
	stdin = strings.NewReader(`{"tasks":[{"id":"tsk_01J00000000000000000000000","title":"piped","createdAt":"2026-10-01T00:00:00Z"}]}`)
	t.Cleanup(func() { stdin = prev })

	mustRun(t, root, "import", "-")
	tasks := loadTasks(t, root)
	if len(tasks) != 1 || tasks[0].Title != "piped" {
		t.Fatalf("stdin import: %+v", tasks)
	}
}

func TestExportDefaultsToExportDir(t *testing.T) {
	root := setup(t)
	addJSON(t, root, "x")
	out := mustRun(t, root, "export")
	entries, err := os.ReadDir(filepath.Join(root, "exports"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("exports dir: %v %v", entries, err)
	}
	if !strings.HasPrefix(entries[0].Name(), "tasks-2026") {
		t.Fatalf("export name %q", entries[0].Name())
	}
	if !strings.Contains(out, "Exported 1 task(s)") {
		t.Fatalf("export output: %s", out)
	}
}

func TestConfigCommands(t *testing.T) {
	root := setup(t)
	mustRun(t, root, "config", "set", "history_limit", "3")
	mustRun(t, root, "config", "set", "default_sort", "title")

	if out := strings.TrimSpace(mustRun(t, root, "config", "get", "history_limit")); out != "3" {
		t.Fatalf("config get = %q", out)
	}
	out := mustRun(t, root, "config", "show")
	if !strings.Contains(out, "default_sort = title  [file]") {
		t.Fatalf("config show:\n%s", out)
	}
	if code, _, _ := runCLI(t, root, "config", "set", "history_limit", "zero"); code != ExitUsage {
		t.Fatalf("bad value exit %d", code)
	}
	if code, _, _ := runCLI(t, root, "config", "get", "nope"); code != ExitUsage {
		t.Fatalf("unknown key exit %d", code)
	}

	// default_sort only seeds a fresh task file
	mustRun(t, root, "add", "x")
	if out := mustRun(t, root, "view"); !strings.Contains(out, "title") {
		t.Fatalf("default sort not applied:\n%s", out)
	}
}

func TestCorruptTaskFileIsNotOverwritten(t *testing.T) {
	root := setup(t)
	path := filepath.Join(root, store.DefaultFileName)
	garbage := []byte("tasks: [this is: not valid\n")
	if err := os.WriteFile(path, garbage, 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, errOut := runCLI(t, root, "add", "x")
	if code == ExitOK {
		t.Fatal("add succeeded over a corrupt file")
	}
	if !strings.Contains(errOut, "load tasks") {
		t.Fatalf("stderr: %s", errOut)
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(after, garbage) {
		t.Fatal("corrupt file was rewritten")
	}
}

func TestUsageErrors(t *testing.T) {
	root := setup(t)
	if code, _, _ := runCLI(t, root, "frobnicate"); code != ExitUsage {
		t.Fatalf("unknown command exit %d", code)
	}
	var out, errOut bytes.Buffer
	if code := run(nil, &out, &errOut); code != ExitUsage {
		t.Fatalf("no args exit %d", code)
	}
	if code := run([]string{"--json", "--ndjson", "ls"}, &out, &errOut); code != ExitUsage {
		t.Fatalf("json+ndjson exit %d", code)
	}
	if code := run([]string{"help"}, &out, &errOut); code != ExitOK || !strings.Contains(out.String(), "Commands:") {
		t.Fatalf("help exit %d", code)
	}
}

func TestReorderFlags(t *testing.T) {
	got := reorderFlags([]string{"title", "--tag", "x", "-", "--today", "more"}, map[string]bool{"--tag": true, "--today": false})
	want := []string{"--tag", "x", "--today", "title", "-", "more"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("reorderFlags = %v, want %v", got, want)
	}
}
