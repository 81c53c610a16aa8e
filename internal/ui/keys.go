package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	Top         key.Binding
	Bottom      key.Binding
	Add         key.Binding
	Edit        key.Binding
	Toggle      key.Binding
	Delete      key.Binding
	Priority    key.Binding
	Undo        key.Binding
	Redo        key.Binding
	Filter      key.Binding
	Sort        key.Binding
	Search      key.Binding
	Tag         key.Binding
	Select      key.Binding
	SelectAll   key.Binding
	Deselect    key.Binding
	BulkDone    key.Binding
	BulkDelete  key.Binding
	Clear       key.Binding
	MoveUp      key.Binding
	MoveDown    key.Binding
	Theme       key.Binding
	Overwrite   key.Binding
	Export      key.Binding
	Help        key.Binding
	Quit        key.Binding
	Submit      key.Binding
	Cancel      key.Binding
	ForceQuit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Top:        key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom:     key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		Add:        key.NewBinding(key.WithKeys("a", "n"), key.WithHelp("a", "add")),
		Edit:       key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "edit")),
		Toggle:     key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "done")),
		Delete:     key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		Priority:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "priority")),
		Undo:       key.NewBinding(key.WithKeys("u", "ctrl+z"), key.WithHelp("u", "undo")),
		Redo:       key.NewBinding(key.WithKeys("r", "ctrl+y"), key.WithHelp("r", "redo")),
		Filter:     key.NewBinding(key.WithKeys("f", "tab"), key.WithHelp("f", "filter")),
		Sort:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Tag:        key.NewBinding(key.WithKeys("t", "#"), key.WithHelp("t", "tag filter")),
		Select:     key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "select")),
		SelectAll:  key.NewBinding(key.WithKeys("V", "ctrl+a"), key.WithHelp("V", "select all")),
		Deselect:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear selection")),
		BulkDone:   key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "complete selected")),
		BulkDelete: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete selected")),
		Clear:      key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "clear completed")),
		MoveUp:     key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "move up")),
		MoveDown:   key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "move down")),
		Theme:      key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "theme")),
		Overwrite:  key.NewBinding(key.WithKeys("W"), key.WithHelp("W", "overwrite saved tasks")),
		Export:     key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "export")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		ForceQuit:  key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Add, k.Toggle, k.Edit, k.Delete, k.Undo, k.Redo, k.Filter, k.Search, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.MoveUp, k.MoveDown},
		{k.Add, k.Edit, k.Toggle, k.Delete, k.Priority, k.Clear},
		{k.Undo, k.Redo, k.Filter, k.Sort, k.Search, k.Tag},
		{k.Select, k.SelectAll, k.Deselect, k.BulkDone, k.BulkDelete},
		{k.Theme, k.Export, k.Overwrite, k.Help, k.Quit},
	}
}

// inputKeys is the help shown while a text input has focus.
type inputKeys struct{ k keyMap }

func (i inputKeys) ShortHelp() []key.Binding { return []key.Binding{i.k.Submit, i.k.Cancel} }

func (i inputKeys) FullHelp() [][]key.Binding { return [][]key.Binding{i.ShortHelp()} }
