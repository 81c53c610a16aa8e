// Package state owns the canonical task list and view preferences. Every
// change goes through a Manager method, which records undo history,
// recomputes the visible list, notifies observers and schedules a save.
package state

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/language"

	"github.com/amirbrooks/tasker/internal/history"
	"github.com/amirbrooks/tasker/internal/logging"
	"github.com/amirbrooks/tasker/internal/projection"
	"github.com/amirbrooks/tasker/internal/store"
)

// DefaultSaveDelay is how long the Manager waits after the last change
// before saving.
const DefaultSaveDelay = 500 * time.Millisecond

// Observer receives the full view after every change. It must not keep
// references into the view's slices past the call.
type Observer func(View)

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithHistoryLimit(n int) Option {
	return func(m *Manager) { m.historyLimit = n }
}

func WithSaveDelay(d time.Duration) Option {
	return func(m *Manager) { m.saveDelay = d }
}

func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.sched = s }
}

// WithCollation sets the language used to sort titles.
func WithCollation(tag language.Tag) Option {
	return func(m *Manager) { m.locale = tag }
}

type observerEntry struct {
	id int
	fn Observer
}

type Manager struct {
	gw     store.Gateway
	log    *log.Logger
	now    func() time.Time
	sched  Scheduler
	locale language.Tag

	historyLimit int
	saveDelay    time.Duration

	mu         sync.Mutex
	tasks      []store.Task
	filtered   []store.Task
	selected   map[string]bool
	filter     store.Filter
	sortMode   store.SortMode
	search     string
	tagFilters []string
	theme      store.Theme
	editing    string
	loading    bool
	loadFailed bool
	message    string
	hist       *history.Log[[]store.Task, Action]
	observers  []observerEntry
	nextObs    int

	saveMu sync.Mutex
	saver  *Debouncer
}

func New(gw store.Gateway, opts ...Option) *Manager {
	m := &Manager{
		gw:        gw,
		log:       logging.Discard(),
		now:       time.Now,
		saveDelay: DefaultSaveDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	def := store.DefaultSnapshot()
	m.tasks = def.Tasks
	m.filter = def.CurrentFilter
	m.sortMode = def.CurrentSort
	m.tagFilters = def.ActiveTagFilters
	m.theme = def.Theme
	m.selected = map[string]bool{}
	m.loading = true
	m.hist = history.New[[]store.Task, Action](m.historyLimit)
	m.saver = NewDebouncer(m.sched, m.saveDelay, m.saveInBackground)
	m.refreshLocked()
	return m
}

// Load reads the persisted snapshot. Saves are suppressed until it returns.
// A failed load leaves the Manager empty and usable but keeps saves
// suppressed so the unreadable data is not replaced; a later successful
// Load, an Import or ForceSave lifts that. The error is returned so the
// caller can report it.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()

	snap, err := m.gw.Load(ctx)

	m.mu.Lock()
	m.loading = false
	if err != nil {
		m.loadFailed = true
		m.saver.Cancel()
		m.log.Error("load failed", "err", err)
		v, obs := m.changedLocked("Could not load saved tasks: "+err.Error(), false)
		m.mu.Unlock()
		m.emit(v, obs)
		return fmt.Errorf("load tasks: %w", err)
	}
	m.loadFailed = false
	snap = snap.Normalize()
	m.tasks = snap.Tasks
	m.filter = snap.CurrentFilter
	m.sortMode = snap.CurrentSort
	m.tagFilters = snap.ActiveTagFilters
	m.search = snap.SearchQuery
	m.theme = snap.Theme
	m.selected = map[string]bool{}
	m.editing = ""
	m.hist.Reset()
	m.log.Debug("loaded", "tasks", len(m.tasks))
	v, obs := m.changedLocked("", false)
	m.mu.Unlock()
	m.emit(v, obs)
	return nil
}

// AddTask creates a task from d. The title is required.
func (m *Manager) AddTask(d store.Draft) (store.Task, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return store.Task{}, fmt.Errorf("%w: title is required", store.ErrInvalid)
	}
	priority, ok := store.ParsePriority(string(d.Priority))
	if !ok {
		priority = store.PriorityNone
	}

	m.mu.Lock()
	now := m.now().UTC()
	t := store.Task{
		ID:        store.NewID(),
		Title:     title,
		Notes:     strings.TrimSpace(d.Notes),
		CreatedAt: now,
		UpdatedAt: now,
		Priority:  priority,
		Tags:      store.NormalizeTags(d.Tags),
		ParentID:  strings.TrimSpace(d.ParentID),
		Order:     len(m.tasks),
	}
	if d.DueAt != nil {
		due := *d.DueAt
		t.DueAt = &due
	}
	m.execLocked(AddTask{Task: t})
	v, obs := m.changedLocked("", true)
	m.mu.Unlock()
	m.emit(v, obs)
	return t.Clone(), nil
}

// UpdateTask merges p into the task with id. It reports false when no such
// task exists.
func (m *Manager) UpdateTask(id string, p store.Patch) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	m.mu.Lock()
	i := store.IndexOf(m.tasks, id)
	if i < 0 {
		m.mu.Unlock()
		return false, nil
	}
	if p.IsEmpty() {
		m.mu.Unlock()
		return true, nil
	}
	m.execLocked(UpdateTask{ID: id, Title: m.tasks[i].Title, Patch: clonePatch(p), At: m.now().UTC()})
	v, obs := m.changedLocked("", true)
	m.mu.Unlock()
	m.emit(v, obs)
	return true, nil
}

func (m *Manager) DeleteTask(id string) bool {
	m.mu.Lock()
	i := store.IndexOf(m.tasks, id)
	if i < 0 {
		m.mu.Unlock()
		return false
	}
	m.execLocked(DeleteTask{ID: id, Title: m.tasks[i].Title})
	v, obs := m.changedLocked("", true)
	m.mu.Unlock()
	m.emit(v, obs)
	return true
}

func (m *Manager) ToggleTaskComplete(id string) bool {
	m.mu.Lock()
	i := store.IndexOf(m.tasks, id)
	if i < 0 {
		m.mu.Unlock()
		return false
	}
	m.execLocked(ToggleComplete{ID: id, Title: m.tasks[i].Title, At: m.now().UTC()})
	v, obs := m.changedLocked("", true)
	m.mu.Unlock()
	m.emit(v, obs)
	return true
}

// ClearCompleted removes every completed task as one undoable step and
// returns how many were removed.
func (m *Manager) ClearCompleted() int {
	m.mu.Lock()
	n := 0
	for i := range m.tasks {
		if m.tasks[i].Completed {
			n++
		}
	}
	if n == 0 {
		m.mu.Unlock()
		return 0
	}
	m.execLocked(ClearCompleted{Count: n})
	v, obs := m.changedLocked("", true)
	m.mu.Unlock()
	m.emit(v, obs)
	return n
}

func (m *Manager) BulkComplete(ids []string) int {
	return m.bulk(ids, func(ids []string, at time.Time) Action {
		return BulkComplete{IDs: ids, At: at}
	})
}

func (m *Manager) BulkDelete(ids []string) int {
	return m.bulk(ids, func(ids []string, _ time.Time) Action {
		return BulkDelete{IDs: ids}
	})
}

func (m *Manager) BulkSetPriority(ids []string, p store.Priority) int {
	if !p.Valid() {
		return 0
	}
	return m.bulk(ids, func(ids []string, at time.Time) Action {
		return BulkSetPriority{IDs: ids, Priority: p, At: at}
	})
}

// bulk records one action over the known ids and clears the selection.
func (m *Manager) bulk(ids []string, build func([]string, time.Time) Action) int {
	m.mu.Lock()
	known := m.knownIDsLocked(ids)
	if len(known) == 0 {
		m.mu.Unlock()
		return 0
	}
	m.execLocked(build(known, m.now().UTC()))
	m.selected = map[string]bool{}
	v, obs := m.changedLocked("", true)
	m.mu.Unlock()
	m.emit(v, obs)
	return len(known)
}

func (m *Manager) knownIDsLocked(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if seen[id] || store.IndexOf(m.tasks, id) < 0 {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Undo restores the state from before the most recent action.
func (m *Manager) Undo() bool {
	m.mu.Lock()
	e, ok := m.hist.Undo()
	if !ok {
		v, obs := m.changedLocked("Nothing to undo", false)
		m.mu.Unlock()
		m.emit(v, obs)
		return false
	}
	m.tasks = store.CloneTasks(e.Prior)
	v, obs := m.changedLocked("Undid: "+e.Action.Describe(), true)
	m.mu.Unlock()
	m.emit(v, obs)
	return true
}

// Redo replays the next undone action against the current state.
func (m *Manager) Redo() bool {
	m.mu.Lock()
	e, ok := m.hist.Redo()
	if !ok {
		v, obs := m.changedLocked("Nothing to redo", false)
		m.mu.Unlock()
		m.emit(v, obs)
		return false
	}
	m.tasks = e.Action.apply(m.tasks)
	v, obs := m.changedLocked("Redid: "+e.Action.Describe(), true)
	m.mu.Unlock()
	m.emit(v, obs)
	return true
}

// Reorder moves dragged next to target and renumbers the whole list. It is
// not an undoable step of its own.
func (m *Manager) Reorder(draggedID, targetID string, insertAfter bool) bool {
	if draggedID == targetID {
		return false
	}
	m.mu.Lock()
	from := store.IndexOf(m.tasks, draggedID)
	if from < 0 || store.IndexOf(m.tasks, targetID) < 0 {
		m.mu.Unlock()
		return false
	}
	dragged := m.tasks[from]
	rest := append(m.tasks[:from:from], m.tasks[from+1:]...)
	to := store.IndexOf(rest, targetID)
	if insertAfter {
		to++
	}
	out := make([]store.Task, 0, len(m.tasks))
	out = append(out, rest[:to]...)
	out = append(out, dragged)
	out = append(out, rest[to:]...)

	now := m.now().UTC()
	for i := range out {
		out[i].Order = i
		out[i].UpdatedAt = now
		if out[i].UpdatedAt.Before(out[i].CreatedAt) {
			out[i].UpdatedAt = out[i].CreatedAt
		}
	}
	m.tasks = out
	v, obs := m.changedLocked("", true)
	m.mu.Unlock()
	m.emit(v, obs)
	return true
}

func (m *Manager) SetFilter(f store.Filter) bool {
	f, ok := store.ParseFilter(string(f))
	if !ok {
		return false
	}
	m.setPref(func() { m.filter = f })
	return true
}

func (m *Manager) SetSort(s store.SortMode) bool {
	s, ok := store.ParseSort(string(s))
	if !ok {
		return false
	}
	m.setPref(func() { m.sortMode = s })
	return true
}

func (m *Manager) SetSearch(q string) {
	q = strings.TrimSpace(q)
	m.setPref(func() { m.search = q })
}

func (m *Manager) SetTagFilters(tags []string) {
	tags = store.NormalizeTags(tags)
	m.setPref(func() { m.tagFilters = uniqueFold(tags) })
}

// AddTagFilter narrows the view to tasks that also carry tag.
func (m *Manager) AddTagFilter(tag string) bool {
	clean := store.NormalizeTags([]string{tag})
	if len(clean) == 0 {
		return false
	}
	m.mu.Lock()
	if store.HasTag(m.tagFilters, clean[0]) {
		m.mu.Unlock()
		return false
	}
	m.tagFilters = append(m.tagFilters, clean[0])
	v, obs := m.changedLocked("", true)
	m.mu.Unlock()
	m.emit(v, obs)
	return true
}

func (m *Manager) RemoveTagFilter(tag string) bool {
	m.mu.Lock()
	out := make([]string, 0, len(m.tagFilters))
	for _, t := range m.tagFilters {
		if !strings.EqualFold(t, strings.TrimSpace(tag)) {
			out = append(out, t)
		}
	}
	if len(out) == len(m.tagFilters) {
		m.mu.Unlock()
		return false
	}
	m.tagFilters = out
	v, obs := m.changedLocked("", true)
	m.mu.Unlock()
	m.emit(v, obs)
	return true
}

// ToggleTagFilter adds tag to the active filters or removes it.
func (m *Manager) ToggleTagFilter(tag string) {
	if !m.RemoveTagFilter(tag) {
		m.AddTagFilter(tag)
	}
}

func (m *Manager) SetTheme(t store.Theme) bool {
	t, ok := store.ParseTheme(string(t))
	if !ok {
		return false
	}
	m.setPref(func() { m.theme = t })
	return true
}

func (m *Manager) CycleTheme() store.Theme {
	m.mu.Lock()
	m.theme = m.theme.Next()
	t := m.theme
	v, obs := m.changedLocked("", true)
	m.mu.Unlock()
	m.emit(v, obs)
	return t
}

func (m *Manager) setPref(set func()) {
	m.mu.Lock()
	set()
	v, obs := m.changedLocked("", true)
	m.mu.Unlock()
	m.emit(v, obs)
}

// Selection and editing are session-only and never saved.

func (m *Manager) Select(id string) bool {
	return m.ui(func() bool {
		if store.IndexOf(m.tasks, id) < 0 || m.selected[id] {
			return false
		}
		m.selected[id] = true
		return true
	})
}

func (m *Manager) Deselect(id string) bool {
	return m.ui(func() bool {
		if !m.selected[id] {
			return false
		}
		delete(m.selected, id)
		return true
	})
}

func (m *Manager) ToggleSelect(id string) bool {
	return m.ui(func() bool {
		if m.selected[id] {
			delete(m.selected, id)
			return true
		}
		if store.IndexOf(m.tasks, id) < 0 {
			return false
		}
		m.selected[id] = true
		return true
	})
}

// SelectAllVisible selects every task in the current projection.
func (m *Manager) SelectAllVisible() int {
	n := 0
	m.ui(func() bool {
		for _, t := range m.filtered {
			if !m.selected[t.ID] {
				m.selected[t.ID] = true
				n++
			}
		}
		return n > 0
	})
	return n
}

func (m *Manager) ClearSelection() {
	m.ui(func() bool {
		if len(m.selected) == 0 {
			return false
		}
		m.selected = map[string]bool{}
		return true
	})
}

func (m *Manager) StartEditing(id string) bool {
	return m.ui(func() bool {
		if store.IndexOf(m.tasks, id) < 0 {
			return false
		}
		m.editing = id
		return true
	})
}

func (m *Manager) StopEditing() {
	m.ui(func() bool {
		if m.editing == "" {
			return false
		}
		m.editing = ""
		return true
	})
}

func (m *Manager) ui(change func() bool) bool {
	m.mu.Lock()
	if !change() {
		m.mu.Unlock()
		return false
	}
	v, obs := m.changedLocked("", false)
	m.mu.Unlock()
	m.emit(v, obs)
	return true
}

// Import merges an export payload into the task list and saves right away.
// History is reset because recorded snapshots predate the merge. A save
// failure is returned alongside the merge result.
func (m *Manager) Import(ctx context.Context, data []byte) (store.MergeResult, error) {
	m.mu.Lock()
	batch, err := store.DecodeImport(data, m.now().UTC())
	if err != nil {
		m.mu.Unlock()
		return store.MergeResult{}, err
	}
	res := store.MergeTasks(m.tasks, batch.Tasks)
	m.tasks = res.Tasks
	m.hist.Reset()
	m.loadFailed = false
	msg := fmt.Sprintf("Imported %s", plural(res.Added+res.Updated, "task"))
	if batch.Skipped > 0 {
		msg += fmt.Sprintf(", skipped %d", batch.Skipped)
	}
	m.log.Info("import merged", "added", res.Added, "updated", res.Updated, "skipped", batch.Skipped)
	v, obs := m.changedLocked(msg, false)
	m.mu.Unlock()
	m.emit(v, obs)

	m.saver.Cancel()
	return res, m.save(ctx)
}

// Export stamps the current state for transfer.
func (m *Manager) Export(appVersion string) store.Export {
	m.mu.Lock()
	defer m.mu.Unlock()
	return store.NewExport(m.snapshotLocked(), appVersion, m.now())
}

// Snapshot returns the persistable part of the state.
func (m *Manager) Snapshot() store.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Get returns a copy of the task with id.
func (m *Manager) Get(id string) (store.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := store.IndexOf(m.tasks, id)
	if i < 0 {
		return store.Task{}, false
	}
	return m.tasks[i].Clone(), true
}

// Resolve finds a task by id prefix.
func (m *Manager) Resolve(selector string) (store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := store.ResolveOne(m.tasks, selector)
	if err != nil {
		return store.Task{}, err
	}
	return t.Clone(), nil
}

func (m *Manager) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

// Subscribe registers fn and returns a function that removes it.
func (m *Manager) Subscribe(fn Observer) func() {
	m.mu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers = append(m.observers, observerEntry{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, o := range m.observers {
				if o.id == id {
					m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// ForceSave saves the current state even after a failed Load, replacing
// whatever the gateway holds.
func (m *Manager) ForceSave(ctx context.Context) error {
	m.mu.Lock()
	if m.loading {
		m.mu.Unlock()
		return nil
	}
	if !m.loadFailed {
		m.mu.Unlock()
		return m.Flush(ctx)
	}
	m.loadFailed = false
	v, obs := m.changedLocked("", false)
	m.mu.Unlock()
	m.emit(v, obs)
	m.log.Warn("overwriting unreadable saved tasks")
	return m.Flush(ctx)
}

// Flush cancels the pending debounced save and saves now.
func (m *Manager) Flush(ctx context.Context) error {
	m.saver.Cancel()
	return m.save(ctx)
}

// SavePending reports whether a debounced save is scheduled.
func (m *Manager) SavePending() bool {
	return m.saver.Pending()
}

// Close stops the debouncer. Unsaved changes are dropped; call Flush first.
func (m *Manager) Close() {
	m.saver.Stop()
}

func (m *Manager) saveInBackground() {
	_ = m.save(context.Background())
}

func (m *Manager) save(ctx context.Context) error {
	err := m.write(ctx)
	if err == nil {
		return nil
	}
	m.mu.Lock()
	v, obs := m.changedLocked("Save failed: "+err.Error(), false)
	m.mu.Unlock()
	m.emit(v, obs)
	return fmt.Errorf("save tasks: %w", err)
}

// write persists the current snapshot. Writes are serialized by saveMu;
// observers are never called while it is held.
func (m *Manager) write(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.Lock()
	if m.loading || m.loadFailed {
		failed := m.loadFailed
		m.mu.Unlock()
		if failed {
			m.log.Warn("save skipped: saved tasks could not be loaded")
		}
		return nil
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.gw.Save(ctx, snap); err != nil {
		m.log.Error("save failed", "err", err)
		return err
	}
	m.log.Debug("saved", "tasks", len(snap.Tasks))
	return nil
}

// execLocked applies a to the current tasks and records it with the prior
// state.
func (m *Manager) execLocked(a Action) {
	prior := store.CloneTasks(m.tasks)
	m.tasks = a.apply(m.tasks)
	m.hist.Record(prior, a)
}

// changedLocked refreshes derived state, optionally schedules a save and
// captures what observers need. The caller emits after unlocking.
func (m *Manager) changedLocked(msg string, persist bool) (View, []Observer) {
	m.pruneLocked()
	m.refreshLocked()
	m.message = msg
	if persist && !m.loading && !m.loadFailed {
		m.saver.Trigger()
	}
	obs := make([]Observer, len(m.observers))
	for i, o := range m.observers {
		obs[i] = o.fn
	}
	return m.viewLocked(), obs
}

func (m *Manager) emit(v View, obs []Observer) {
	for _, fn := range obs {
		fn(v)
	}
}

// pruneLocked drops selection and editing references to missing tasks.
func (m *Manager) pruneLocked() {
	for id := range m.selected {
		if store.IndexOf(m.tasks, id) < 0 {
			delete(m.selected, id)
		}
	}
	if m.editing != "" && store.IndexOf(m.tasks, m.editing) < 0 {
		m.editing = ""
	}
}

func (m *Manager) refreshLocked() {
	m.filtered = projection.Project(m.tasks, projection.Query{
		Filter: m.filter,
		Search: m.search,
		Tags:   m.tagFilters,
		Sort:   m.sortMode,
		Locale: m.locale,
	})
}

func (m *Manager) snapshotLocked() store.Snapshot {
	return store.Snapshot{
		Version:          store.SnapshotVersion,
		Tasks:            store.CloneTasks(m.tasks),
		CurrentFilter:    m.filter,
		CurrentSort:      m.sortMode,
		ActiveTagFilters: append([]string{}, m.tagFilters...),
		SearchQuery:      m.search,
		Theme:            m.theme,
	}
}

func (m *Manager) viewLocked() View {
	v := View{
		Tasks:         store.CloneTasks(m.tasks),
		Filtered:      store.CloneTasks(m.filtered),
		Selected:      make([]string, 0, len(m.selected)),
		Filter:        m.filter,
		Sort:          m.sortMode,
		Search:        m.search,
		TagFilters:    append([]string{}, m.tagFilters...),
		Theme:         m.theme,
		Loading:       m.loading,
		LoadFailed:    m.loadFailed,
		Counts:        projection.Count(m.tasks, m.now()),
		AvailableTags: projection.Tags(m.tasks),
		CanUndo:       m.hist.CanUndo(),
		CanRedo:       m.hist.CanRedo(),
		Message:       m.message,
	}
	for id := range m.selected {
		v.Selected = append(v.Selected, id)
	}
	sort.Strings(v.Selected)
	if i := store.IndexOf(m.tasks, m.editing); m.editing != "" && i >= 0 {
		t := m.tasks[i].Clone()
		v.Editing = &t
	}
	return v
}

func clonePatch(p store.Patch) store.Patch {
	out := p
	if p.Title != nil {
		v := *p.Title
		out.Title = &v
	}
	if p.Notes != nil {
		v := *p.Notes
		out.Notes = &v
	}
	if p.Completed != nil {
		v := *p.Completed
		out.Completed = &v
	}
	if p.DueAt != nil {
		v := *p.DueAt
		out.DueAt = &v
	}
	if p.Priority != nil {
		v := *p.Priority
		out.Priority = &v
	}
	if p.Tags != nil {
		v := append([]string{}, (*p.Tags)...)
		out.Tags = &v
	}
	if p.ParentID != nil {
		v := *p.ParentID
		out.ParentID = &v
	}
	return out
}

func uniqueFold(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if !store.HasTag(out, t) {
			out = append(out, t)
		}
	}
	return out
}
