package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the snapshot document inside a store root.
const DefaultFileName = "tasks.yaml"

// FileStore persists snapshots as a single YAML document under Root.
type FileStore struct {
	Root string
	mu   sync.Mutex
}

func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root}
}

func (f *FileStore) Path() string {
	return filepath.Join(f.Root, DefaultFileName)
}

// Exists reports whether a snapshot has been saved under Root.
func (f *FileStore) Exists() bool {
	_, err := os.Stat(f.Path())
	return err == nil
}

func (f *FileStore) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := os.ReadFile(f.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSnapshot(), nil
		}
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := yaml.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: parse %s: %v", ErrInvalid, f.Path(), err)
	}
	return snap.Normalize(), nil
}

func (f *FileStore) Save(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap.Version = SnapshotVersion
	b, err := yaml.Marshal(&snap)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return atomicWriteFile(f.Path(), b, 0o644)
}

func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%d", timeNow().UnixNano()))
	if err := os.WriteFile(tmp, data, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// Rename is atomic on same filesystem.
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// WriteFileAtomic exposes the store's temp-file-and-rename write for other
// packages that write alongside the snapshot (exports, config).
func WriteFileAtomic(path string, data []byte) error {
	return atomicWriteFile(path, data, 0o644)
}
