package store

import (
	"context"
	"sync"
	"time"
)

// FileWatermarks persists per-source watermarks as a JSON object of
// RFC 3339 timestamps.
type FileWatermarks struct {
	mu   sync.Mutex
	path string
}

// NewFileWatermarks returns watermarks stored at path.
func NewFileWatermarks(path string) *FileWatermarks {
	return &FileWatermarks{path: path}
}

func (w *FileWatermarks) load() (map[string]time.Time, error) {
	marks, err := readJSON[map[string]time.Time](w.path)
	if err != nil {
		return nil, err
	}
	if marks == nil {
		marks = make(map[string]time.Time)
	}
	return marks, nil
}

func (w *FileWatermarks) Get(ctx context.Context, source string) (time.Time, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	marks, err := w.load()
	if err != nil {
		return time.Time{}, false, err
	}
	at, ok := marks[source]
	return at, ok, nil
}

func (w *FileWatermarks) Set(ctx context.Context, source string, at time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	marks, err := w.load()
	if err != nil {
		return err
	}
	marks[source] = at.UTC()
	return writeJSON(w.path, marks)
}

func (w *FileWatermarks) All(ctx context.Context) (map[string]time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.load()
}
