package ui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirbrooks/tasker/internal/state"
	"github.com/amirbrooks/tasker/internal/store"
)

var refNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T, tasks ...string) (*Model, *state.Manager) {
	t.Helper()
	clock := refNow
	mgr := state.New(store.NewMemoryStore(),
		state.WithClock(func() time.Time { return clock }),
		state.WithSaveDelay(time.Hour),
	)
	t.Cleanup(mgr.Close)
	require.NoError(t, mgr.Load(context.Background()))
	for _, title := range tasks {
		clock = clock.Add(time.Minute)
		_, err := mgr.AddTask(store.Draft{Title: title})
		require.NoError(t, err)
	}
	m := New(context.Background(), mgr, WithClock(func() time.Time { return refNow }))
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, mgr
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(m *Model, keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = m.Update(keyMsg(k))
	}
	return cmd
}

func typeText(m *Model, s string) {
	for _, r := range s {
		m.Update(keyMsg(string(r)))
	}
}

func titles(tasks []store.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestAddWithQuickAddSyntax(t *testing.T) {
	m, mgr := newTestModel(t)

	press(m, "a")
	assert.Equal(t, modeAdd, m.mode)
	typeText(m, "Buy milk #errands !high")
	press(m, "enter")

	assert.Equal(t, modeNormal, m.mode)
	tasks := mgr.View().Tasks
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)
	assert.Equal(t, []string{"errands"}, tasks[0].Tags)
	assert.Equal(t, store.PriorityHigh, tasks[0].Priority)
	assert.Equal(t, tasks[0].ID, m.cursorID)
	assert.Contains(t, m.View(), "Buy milk")
}

func TestAddEmptyInputIsDropped(t *testing.T) {
	m, mgr := newTestModel(t)
	press(m, "a", "enter")
	assert.Equal(t, modeNormal, m.mode)
	assert.Empty(t, mgr.View().Tasks)
}

func TestToggleDeleteUndoRedo(t *testing.T) {
	m, mgr := newTestModel(t, "one", "two")
	// created sort is newest first
	require.Equal(t, []string{"two", "one"}, titles(m.view.Filtered))

	press(m, " ")
	assert.True(t, mgr.View().Filtered[0].Completed)

	press(m, "u")
	assert.False(t, mgr.View().Filtered[0].Completed)
	assert.Equal(t, `Undid: Toggle "two"`, m.status)

	press(m, "r")
	assert.True(t, mgr.View().Filtered[0].Completed)

	press(m, "j", "d")
	assert.Equal(t, []string{"two"}, titles(mgr.View().Tasks))
	press(m, "u")
	assert.Len(t, mgr.View().Tasks, 2)
}

func TestNothingToUndoShowsMessage(t *testing.T) {
	m, _ := newTestModel(t)
	cmd := press(m, "u")
	assert.Equal(t, "Nothing to undo", m.status)
	require.NotNil(t, cmd)
}

func TestEditTitle(t *testing.T) {
	m, mgr := newTestModel(t, "draft")

	press(m, "e")
	assert.Equal(t, modeEdit, m.mode)
	require.NotNil(t, mgr.View().Editing)
	require.NotNil(t, m.view.Editing)

	for range "draft" {
		press(m, "backspace")
	}
	typeText(m, "final")
	press(m, "enter")

	assert.Equal(t, modeNormal, m.mode)
	assert.Equal(t, "final", mgr.View().Tasks[0].Title)
	assert.Nil(t, mgr.View().Editing)
}

func TestEditRejectsEmptyTitle(t *testing.T) {
	m, mgr := newTestModel(t, "keep")
	press(m, "e")
	for range "keep" {
		press(m, "backspace")
	}
	press(m, "enter")
	assert.Equal(t, modeEdit, m.mode)
	assert.True(t, m.statusErr)

	press(m, "esc")
	assert.Equal(t, modeNormal, m.mode)
	assert.Nil(t, mgr.View().Editing)
	assert.Equal(t, "keep", mgr.View().Tasks[0].Title)
}

func TestFilterAndSortCycle(t *testing.T) {
	m, mgr := newTestModel(t, "a")
	press(m, "f")
	assert.Equal(t, store.FilterActive, mgr.View().Filter)
	press(m, "s")
	assert.Equal(t, store.SortDue, mgr.View().Sort)
	assert.Contains(t, m.View(), "filter: active")
}

func TestLiveSearch(t *testing.T) {
	m, mgr := newTestModel(t, "milk", "bread")

	press(m, "/")
	typeText(m, "mi")
	assert.Equal(t, "mi", mgr.View().Search)
	assert.Equal(t, []string{"milk"}, titles(m.view.Filtered))

	press(m, "esc")
	assert.Equal(t, "", mgr.View().Search)
	assert.Len(t, m.view.Filtered, 2)
}

func TestTagFilterToggle(t *testing.T) {
	m, mgr := newTestModel(t)
	_, err := mgr.AddTask(store.Draft{Title: "x", Tags: []string{"work"}})
	require.NoError(t, err)

	press(m, "t")
	typeText(m, "work")
	press(m, "enter")
	assert.Equal(t, []string{"work"}, mgr.View().TagFilters)

	press(m, "t", "enter")
	assert.Empty(t, mgr.View().TagFilters)
}

func TestSelectionAndBulkActions(t *testing.T) {
	m, mgr := newTestModel(t, "a", "b", "c")

	press(m, "v", "v")
	assert.Len(t, mgr.View().Selected, 2)
	assert.Equal(t, 2, m.cursor)

	press(m, "C")
	v := mgr.View()
	assert.Empty(t, v.Selected)
	assert.Equal(t, 2, v.Counts.Completed)

	press(m, "V", "D")
	assert.Empty(t, mgr.View().Tasks)

	press(m, "u")
	assert.Len(t, mgr.View().Tasks, 3)
}

func TestBulkWithoutSelection(t *testing.T) {
	m, _ := newTestModel(t, "a")
	press(m, "C")
	assert.Equal(t, "Nothing selected", m.status)
}

func TestPriorityCycle(t *testing.T) {
	m, mgr := newTestModel(t, "a")
	press(m, "p")
	assert.Equal(t, store.PriorityNone.Next(), mgr.View().Tasks[0].Priority)
}

func TestReorderNeedsManualSort(t *testing.T) {
	m, mgr := newTestModel(t, "a", "b")
	press(m, "J")
	assert.Contains(t, m.status, "manual sort")

	require.True(t, mgr.SetSort(store.SortManual))
	m.refresh()
	press(m, "g")
	first := m.view.Filtered[0].ID
	press(m, "J")
	v := mgr.View()
	assert.Equal(t, first, v.Filtered[1].ID)
	assert.Equal(t, 1, m.cursor)
}

func TestClearCompleted(t *testing.T) {
	m, mgr := newTestModel(t, "a", "b")
	press(m, "X")
	assert.Equal(t, "No completed tasks", m.status)

	press(m, " ", "X")
	assert.Len(t, mgr.View().Tasks, 1)
}

func TestThemeCycle(t *testing.T) {
	m, mgr := newTestModel(t)
	press(m, "T")
	assert.Equal(t, store.ThemeLight, mgr.View().Theme)
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t)
	assert.True(t, isQuit(press(m, "q")))

	press(m, "a")
	assert.False(t, isQuit(press(m, "q")))
	assert.True(t, isQuit(press(m, "ctrl+c")))
}

func TestStatusExpires(t *testing.T) {
	m, _ := newTestModel(t)
	press(m, "u")
	seq := m.statusSeq
	m.Update(clearStatus(seq - 1))
	assert.NotEmpty(t, m.status)
	m.Update(clearStatus(seq))
	assert.Empty(t, m.status)
}

func TestLoadingView(t *testing.T) {
	mgr := state.New(store.NewMemoryStore(), state.WithSaveDelay(time.Hour))
	t.Cleanup(mgr.Close)
	m := New(context.Background(), mgr, WithLoad(mgr.Load))
	assert.True(t, m.view.Loading)
	assert.Contains(t, m.View(), "Loading")
	assert.Nil(t, press(m, "a"))
	assert.Equal(t, modeNormal, m.mode)

	m.Update(loadedMsg{err: mgr.Load(context.Background())})
	assert.False(t, m.view.Loading)
	assert.Contains(t, m.View(), "No tasks yet")
}

type failingGateway struct{}

func (failingGateway) Load(context.Context) (store.Snapshot, error) {
	return store.Snapshot{}, errors.New("disk on fire")
}

func (failingGateway) Save(context.Context, store.Snapshot) error { return nil }

func TestLoadFailureIsShown(t *testing.T) {
	mgr := state.New(failingGateway{}, state.WithSaveDelay(time.Hour))
	t.Cleanup(mgr.Close)
	m := New(context.Background(), mgr)
	m.Update(loadedMsg{err: mgr.Load(context.Background())})
	assert.True(t, m.statusErr)
	assert.True(t, strings.HasPrefix(m.status, "Could not load saved tasks"))
}

func TestLoadFailurePausesSavingUntilOverwrite(t *testing.T) {
	gw := store.NewMemoryStore()
	gw.LoadErr = errors.New("corrupt")
	mgr := state.New(gw, state.WithSaveDelay(time.Hour))
	t.Cleanup(mgr.Close)
	m := New(context.Background(), mgr)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m.Update(loadedMsg{err: mgr.Load(context.Background())})
	assert.Contains(t, m.View(), "Saving paused")

	press(m, "a")
	typeText(m, "new")
	press(m, "enter")
	require.NoError(t, mgr.Flush(context.Background()))
	assert.Equal(t, 0, gw.Saves())

	press(m, "W")
	assert.Equal(t, 1, gw.Saves())
	assert.False(t, m.view.LoadFailed)
	assert.NotContains(t, m.View(), "Saving paused")
}

func TestExportKey(t *testing.T) {
	m, _ := newTestModel(t, "a", "b")
	assert.Nil(t, press(m, "E"))

	var written []byte
	WithExport("1.0.0", func(data []byte) (string, error) {
		written = data
		return "/tmp/tasks.json", nil
	})(m)
	press(m, "E")
	assert.Equal(t, "Exported 2 task(s) to /tmp/tasks.json", m.status)

	var exp store.Export
	require.NoError(t, json.Unmarshal(written, &exp))
	assert.Equal(t, "1.0.0", exp.AppVersion)
	assert.Len(t, exp.Tasks, 2)

	WithExport("1.0.0", func([]byte) (string, error) { return "", errors.New("read-only") })(m)
	press(m, "E")
	assert.True(t, m.statusErr)
	assert.Equal(t, "Export failed: read-only", m.status)
}

func TestFeedDeliversLatestView(t *testing.T) {
	m, mgr := newTestModel(t)
	unsubscribe := mgr.Subscribe(m.feed.push)
	defer unsubscribe()

	_, err := mgr.AddTask(store.Draft{Title: "from elsewhere"})
	require.NoError(t, err)
	_, err = mgr.AddTask(store.Draft{Title: "second"})
	require.NoError(t, err)

	msg := m.feed.wait(context.Background())()
	v, ok := msg.(viewMsg)
	require.True(t, ok)
	assert.Len(t, v.Tasks, 2)

	m.Update(msg)
	assert.Len(t, m.view.Tasks, 2)
}

func TestCursorFollowsTaskAndClamps(t *testing.T) {
	m, _ := newTestModel(t, "a", "b", "c")
	press(m, "G")
	assert.Equal(t, 2, m.cursor)
	press(m, "d")
	assert.Equal(t, 1, m.cursor)
	press(m, "g", "k")
	assert.Equal(t, 0, m.cursor)
}
