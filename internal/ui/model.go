// Package ui is the interactive terminal front end over state.Manager.
package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/amirbrooks/tasker/internal/logging"
	"github.com/amirbrooks/tasker/internal/state"
	"github.com/amirbrooks/tasker/internal/store"
)

// StatusTTL is how long a transient message stays on screen.
const StatusTTL = 4 * time.Second

type mode int

const (
	modeNormal mode = iota
	modeAdd
	modeEdit
	modeSearch
	modeTag
)

func (m mode) prompt() string {
	switch m {
	case modeAdd:
		return "Add: "
	case modeEdit:
		return "Edit: "
	case modeSearch:
		return "Search: "
	case modeTag:
		return "Tag: "
	}
	return ""
}

type (
	viewMsg     state.View
	loadedMsg   struct{ err error }
	clearStatus int
)

// feed hands Manager notifications to the program without blocking the
// notifying goroutine. Only the latest view is kept.
type feed struct {
	mu     sync.Mutex
	latest state.View
	ready  chan struct{}
}

func newFeed() *feed {
	return &feed{ready: make(chan struct{}, 1)}
}

func (f *feed) push(v state.View) {
	f.mu.Lock()
	f.latest = v
	f.mu.Unlock()
	select {
	case f.ready <- struct{}{}:
	default:
	}
}

func (f *feed) wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-f.ready:
			f.mu.Lock()
			defer f.mu.Unlock()
			return viewMsg(f.latest)
		case <-ctx.Done():
			return nil
		}
	}
}

type Option func(*Model)

func WithLogger(l *log.Logger) Option {
	return func(m *Model) { m.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithLoad makes Init load the Manager in the background while a spinner
// is shown.
func WithLoad(load func(context.Context) error) Option {
	return func(m *Model) { m.load = load }
}

// WithExport enables the export key. write stores the encoded export and
// returns where it went.
func WithExport(appVersion string, write func([]byte) (string, error)) Option {
	return func(m *Model) {
		m.appVersion = appVersion
		m.writeExport = write
	}
}

type Model struct {
	mgr  *state.Manager
	ctx  context.Context
	feed *feed
	load func(context.Context) error
	log  *log.Logger
	now  func() time.Time

	appVersion  string
	writeExport func([]byte) (string, error)

	keys  keyMap
	help  help.Model
	input textinput.Model
	spin  spinner.Model
	style styles

	view     state.View
	mode     mode
	cursor   int
	cursorID string
	editID   string
	offset   int

	status    string
	statusErr bool
	statusSeq int

	width  int
	height int
}

func New(ctx context.Context, mgr *state.Manager, opts ...Option) *Model {
	ti := textinput.New()
	ti.CharLimit = 500
	ti.Width = 60
	ti.Prompt = ""

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		mgr:   mgr,
		ctx:   ctx,
		feed:  newFeed(),
		log:   logging.Discard(),
		now:   time.Now,
		keys:  defaultKeyMap(),
		help:  help.New(),
		input: ti,
		spin:  sp,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.setView(mgr.View())
	return m
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.feed.wait(m.ctx)}
	if m.load != nil {
		load, ctx := m.load, m.ctx
		cmds = append(cmds, m.spin.Tick, func() tea.Msg {
			return loadedMsg{err: load(ctx)}
		})
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.clampOffset()
		return m, nil
	case viewMsg:
		cmd := m.setView(state.View(msg))
		return m, tea.Batch(cmd, m.feed.wait(m.ctx))
	case loadedMsg:
		if msg.err != nil {
			m.log.Error("load failed", "err", msg.err)
		}
		return m, m.refresh()
	case spinner.TickMsg:
		if !m.view.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case clearStatus:
		if int(msg) == m.statusSeq {
			m.status = ""
			m.statusErr = false
		}
		return m, nil
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
		if m.mode != modeNormal {
			return m, m.updateInput(msg)
		}
		return m, m.updateNormal(msg)
	}
	return m, nil
}

func (m *Model) updateNormal(msg tea.KeyMsg) tea.Cmd {
	if m.view.Loading {
		if key.Matches(msg, m.keys.Quit) {
			return tea.Quit
		}
		return nil
	}
	cur, hasCur := m.current()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.clampOffset()
		return nil
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(m.cursor - 1)
		return nil
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(m.cursor + 1)
		return nil
	case key.Matches(msg, m.keys.Top):
		m.moveCursor(0)
		return nil
	case key.Matches(msg, m.keys.Bottom):
		m.moveCursor(len(m.view.Filtered) - 1)
		return nil
	case key.Matches(msg, m.keys.Add):
		return m.startInput(modeAdd, "")
	case key.Matches(msg, m.keys.Search):
		return m.startInput(modeSearch, m.view.Search)
	case key.Matches(msg, m.keys.Tag):
		m.input.SetSuggestions(m.view.AvailableTags)
		m.input.ShowSuggestions = true
		return m.startInput(modeTag, "")
	case key.Matches(msg, m.keys.Edit):
		if !hasCur {
			return nil
		}
		m.mgr.StartEditing(cur.ID)
		m.editID = cur.ID
		return tea.Batch(m.startInput(modeEdit, cur.Title), m.refresh())
	case key.Matches(msg, m.keys.Toggle):
		if hasCur {
			m.mgr.ToggleTaskComplete(cur.ID)
		}
	case key.Matches(msg, m.keys.Delete):
		if hasCur {
			m.mgr.DeleteTask(cur.ID)
		}
	case key.Matches(msg, m.keys.Priority):
		if !hasCur {
			return nil
		}
		next := cur.Priority.Next()
		if len(m.view.Selected) > 0 {
			m.mgr.BulkSetPriority(m.view.Selected, next)
		} else if _, err := m.mgr.UpdateTask(cur.ID, store.Patch{Priority: &next}); err != nil {
			return m.setStatus(err.Error(), true)
		}
	case key.Matches(msg, m.keys.Undo):
		m.mgr.Undo()
	case key.Matches(msg, m.keys.Redo):
		m.mgr.Redo()
	case key.Matches(msg, m.keys.Filter):
		m.mgr.SetFilter(m.view.Filter.Next())
	case key.Matches(msg, m.keys.Sort):
		m.mgr.SetSort(m.view.Sort.Next())
	case key.Matches(msg, m.keys.Select):
		if hasCur {
			m.mgr.ToggleSelect(cur.ID)
			m.moveCursor(m.cursor + 1)
		}
	case key.Matches(msg, m.keys.SelectAll):
		m.mgr.SelectAllVisible()
	case key.Matches(msg, m.keys.Deselect):
		m.mgr.ClearSelection()
	case key.Matches(msg, m.keys.BulkDone):
		if len(m.view.Selected) == 0 {
			return m.setStatus("Nothing selected", false)
		}
		m.mgr.BulkComplete(m.view.Selected)
	case key.Matches(msg, m.keys.BulkDelete):
		if len(m.view.Selected) == 0 {
			return m.setStatus("Nothing selected", false)
		}
		m.mgr.BulkDelete(m.view.Selected)
	case key.Matches(msg, m.keys.Clear):
		if m.mgr.ClearCompleted() == 0 {
			return m.setStatus("No completed tasks", false)
		}
	case key.Matches(msg, m.keys.MoveUp), key.Matches(msg, m.keys.MoveDown):
		if !hasCur {
			return nil
		}
		if m.view.Sort != store.SortManual {
			return m.setStatus("Switch to manual sort (s) to reorder", false)
		}
		if key.Matches(msg, m.keys.MoveUp) {
			if m.cursor > 0 {
				m.mgr.Reorder(cur.ID, m.view.Filtered[m.cursor-1].ID, false)
			}
		} else if m.cursor < len(m.view.Filtered)-1 {
			m.mgr.Reorder(cur.ID, m.view.Filtered[m.cursor+1].ID, true)
		}
	case key.Matches(msg, m.keys.Theme):
		m.mgr.CycleTheme()
	case key.Matches(msg, m.keys.Export):
		if m.writeExport == nil {
			return nil
		}
		return m.export()
	case key.Matches(msg, m.keys.Overwrite):
		if !m.view.LoadFailed {
			return nil
		}
		if err := m.mgr.ForceSave(m.ctx); err != nil {
			return m.refresh()
		}
		return tea.Batch(m.refresh(), m.setStatus("Saved", false))
	default:
		return nil
	}
	return m.refresh()
}

func (m *Model) export() tea.Cmd {
	exp := m.mgr.Export(m.appVersion)
	data, err := json.MarshalIndent(exp, "", "  ")
	if err == nil {
		var path string
		if path, err = m.writeExport(append(data, '\n')); err == nil {
			m.log.Info("exported tasks", "path", path, "tasks", len(exp.Tasks))
			return m.setStatus(fmt.Sprintf("Exported %d task(s) to %s", len(exp.Tasks), path), false)
		}
	}
	m.log.Error("export failed", "err", err)
	return m.setStatus("Export failed: "+err.Error(), true)
}

func (m *Model) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		switch m.mode {
		case modeEdit:
			m.mgr.StopEditing()
		case modeSearch:
			m.mgr.SetSearch("")
		}
		m.endInput()
		return m.refresh()
	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == modeSearch {
		m.mgr.SetSearch(m.input.Value())
		return tea.Batch(cmd, m.refresh())
	}
	return cmd
}

func (m *Model) submit() tea.Cmd {
	value := strings.TrimSpace(m.input.Value())
	switch m.mode {
	case modeAdd:
		if value == "" {
			m.endInput()
			return nil
		}
		t, err := m.mgr.AddTask(store.ParseQuickAdd(value, m.now()))
		if err != nil {
			return m.setStatus(err.Error(), true)
		}
		m.cursorID = t.ID
	case modeEdit:
		if m.editID == "" {
			break
		}
		ok, err := m.mgr.UpdateTask(m.editID, store.Patch{Title: &value})
		if err != nil {
			return m.setStatus("Title cannot be empty", true)
		}
		if !ok {
			m.endInput()
			return tea.Batch(m.refresh(), m.setStatus("Task no longer exists", true))
		}
		m.mgr.StopEditing()
	case modeSearch:
		m.mgr.SetSearch(value)
	case modeTag:
		if value == "" {
			m.mgr.SetTagFilters(nil)
		} else {
			m.mgr.ToggleTagFilter(value)
		}
	}
	m.endInput()
	return m.refresh()
}

func (m *Model) startInput(md mode, value string) tea.Cmd {
	m.mode = md
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Placeholder = ""
	if md == modeAdd {
		m.input.Placeholder = "Buy milk #errands !high @tomorrow"
	}
	return m.input.Focus()
}

func (m *Model) endInput() {
	m.mode = modeNormal
	m.editID = ""
	m.input.Blur()
	m.input.SetValue("")
	m.input.ShowSuggestions = false
	m.input.SetSuggestions(nil)
}

// refresh pulls the Manager's view after a local change.
func (m *Model) refresh() tea.Cmd {
	return m.setView(m.mgr.View())
}

func (m *Model) setView(v state.View) tea.Cmd {
	m.view = v
	m.style = newStyles(v.Theme)
	if i := v.Visible(m.cursorID); m.cursorID != "" && i >= 0 {
		m.cursor = i
	}
	m.moveCursor(m.cursor)
	if m.mode == modeEdit && v.Editing == nil {
		m.endInput()
	}
	if v.Message != "" {
		return m.setStatus(v.Message, isErrorMessage(v.Message))
	}
	return nil
}

func isErrorMessage(msg string) bool {
	return strings.HasPrefix(msg, "Save failed") || strings.HasPrefix(msg, "Could not load")
}

func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.status = text
	m.statusErr = isErr
	m.statusSeq++
	seq := m.statusSeq
	return tea.Tick(StatusTTL, func(time.Time) tea.Msg { return clearStatus(seq) })
}

func (m *Model) current() (store.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.view.Filtered) {
		return store.Task{}, false
	}
	return m.view.Filtered[m.cursor], true
}

func (m *Model) moveCursor(i int) {
	n := len(m.view.Filtered)
	switch {
	case n == 0:
		m.cursor, m.cursorID = 0, ""
		m.offset = 0
		return
	case i < 0:
		i = 0
	case i >= n:
		i = n - 1
	}
	m.cursor = i
	m.cursorID = m.view.Filtered[i].ID
	m.clampOffset()
}

func (m *Model) clampOffset() {
	rows := m.listHeight()
	if rows <= 0 {
		m.offset = 0
		return
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
	if last := len(m.view.Filtered) - rows; m.offset > last {
		m.offset = last
	}
	if m.offset < 0 {
		m.offset = 0
	}
}
