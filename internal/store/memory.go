package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Gateway. It keeps a deep copy of the last
// saved snapshot and can be told to fail, which makes it useful for tests
// and for sessions that should never touch disk.
type MemoryStore struct {
	mu      sync.Mutex
	snap    *Snapshot
	saves   int
	LoadErr error
	SaveErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Seed primes the store as if snap had been saved earlier.
func (m *MemoryStore) Seed(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := copySnapshot(snap)
	m.snap = &cp
}

func (m *MemoryStore) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return Snapshot{}, m.LoadErr
	}
	if m.snap == nil {
		return DefaultSnapshot(), nil
	}
	return copySnapshot(*m.snap).Normalize(), nil
}

func (m *MemoryStore) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	cp := copySnapshot(snap)
	m.snap = &cp
	m.saves++
	return nil
}

// Saves reports how many successful saves happened.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Last returns the most recently saved snapshot.
func (m *MemoryStore) Last() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return Snapshot{}, false
	}
	return copySnapshot(*m.snap), true
}

func copySnapshot(s Snapshot) Snapshot {
	out := s
	out.Tasks = CloneTasks(s.Tasks)
	if s.ActiveTagFilters != nil {
		out.ActiveTagFilters = append([]string(nil), s.ActiveTagFilters...)
	}
	return out
}
