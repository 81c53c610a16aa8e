// Package history implements a bounded, linear undo/redo log.
//
// Each entry pairs the state as it was before an action with the action
// itself. Undo hands back the prior state; redo hands back the action so the
// caller can run it again.
package history

// DefaultLimit is used when a non-positive limit is configured.
const DefaultLimit = 10

// Entry is one recorded action.
type Entry[S, A any] struct {
	Prior  S
	Action A
}

// Log is not safe for concurrent use; its owner serializes access.
type Log[S, A any] struct {
	entries []Entry[S, A]
	pos     int
	limit   int
}

func New[S, A any](limit int) *Log[S, A] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log[S, A]{pos: -1, limit: limit}
}

// Record appends an entry, discarding anything that was undone. When the
// log is full the oldest entry is dropped.
func (l *Log[S, A]) Record(prior S, action A) {
	l.entries = append(l.entries[:l.pos+1], Entry[S, A]{Prior: prior, Action: action})
	if len(l.entries) > l.limit {
		copy(l.entries, l.entries[1:])
		var zero Entry[S, A]
		l.entries[len(l.entries)-1] = zero
		l.entries = l.entries[:len(l.entries)-1]
		return
	}
	l.pos++
}

// Undo returns the entry at the cursor and steps back.
func (l *Log[S, A]) Undo() (Entry[S, A], bool) {
	if l.pos < 0 {
		return Entry[S, A]{}, false
	}
	e := l.entries[l.pos]
	l.pos--
	return e, true
}

// Redo steps forward and returns the entry to re-execute.
func (l *Log[S, A]) Redo() (Entry[S, A], bool) {
	if l.pos >= len(l.entries)-1 {
		return Entry[S, A]{}, false
	}
	l.pos++
	return l.entries[l.pos], true
}

func (l *Log[S, A]) CanUndo() bool { return l.pos >= 0 }
func (l *Log[S, A]) CanRedo() bool { return l.pos < len(l.entries)-1 }
func (l *Log[S, A]) Len() int      { return len(l.entries) }
func (l *Log[S, A]) Position() int { return l.pos }
func (l *Log[S, A]) Limit() int    { return l.limit }

// Reset forgets every entry.
func (l *Log[S, A]) Reset() {
	l.entries = nil
	l.pos = -1
}
