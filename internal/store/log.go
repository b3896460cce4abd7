package store

import (
	"context"
	"log"
	"path/filepath"
	"sync"
)

// FileLog is a decision Log persisted as a JSON array.
type FileLog[T Record] struct {
	mu        sync.Mutex
	path      string
	retention Retention
}

// NewFileLog returns a log stored at path and pruned by retention on read.
func NewFileLog[T Record](path string, retention Retention) *FileLog[T] {
	return &FileLog[T]{path: path, retention: retention}
}

// Path returns the backing file path.
func (l *FileLog[T]) Path() string { return l.path }

// load returns the retained records, writing the file back when pruning
// dropped anything. Callers hold l.mu.
func (l *FileLog[T]) load() ([]T, error) {
	records, err := readJSON[[]T](l.path)
	if err != nil {
		return nil, err
	}
	kept, pruned := Filter(l.retention, records)
	if pruned > 0 {
		log.Printf("pruned %d expired records from %s", pruned, filepath.Base(l.path))
		if err := writeJSON(l.path, kept); err != nil {
			return nil, err
		}
	}
	return kept, nil
}

func (l *FileLog[T]) Append(ctx context.Context, rec T) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.Key() == rec.Key() {
			return false, nil
		}
	}
	if err := writeJSON(l.path, append(records, rec)); err != nil {
		return false, err
	}
	return true, nil
}

func (l *FileLog[T]) Contains(ctx context.Context, key string) (bool, error) {
	records, err := l.List(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.Key() == key {
			return true, nil
		}
	}
	return false, nil
}

func (l *FileLog[T]) List(ctx context.Context) ([]T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}
