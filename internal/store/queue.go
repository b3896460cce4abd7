package store

import (
	"context"
	"sync"
)

// FileQueue is a Queue persisted as a JSON array.
type FileQueue[T Keyed] struct {
	mu   sync.Mutex
	path string
}

// NewFileQueue returns a queue stored at path. The file is created on first write.
func NewFileQueue[T Keyed](path string) *FileQueue[T] {
	return &FileQueue[T]{path: path}
}

// Path returns the backing file path.
func (q *FileQueue[T]) Path() string { return q.path }

func (q *FileQueue[T]) load() ([]T, error) {
	return readJSON[[]T](q.path)
}

func (q *FileQueue[T]) save(items []T) error {
	if items == nil {
		items = []T{}
	}
	return writeJSON(q.path, items)
}

func (q *FileQueue[T]) Push(ctx context.Context, items ...T) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	existing, err := q.load()
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(existing))
	for _, it := range existing {
		seen[it.Key()] = true
	}

	added := 0
	for _, it := range items {
		if seen[it.Key()] {
			continue
		}
		seen[it.Key()] = true
		existing = append(existing, it)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := q.save(existing); err != nil {
		return 0, err
	}
	return added, nil
}

func (q *FileQueue[T]) Peek(ctx context.Context) (T, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	items, err := q.load()
	if err != nil || len(items) == 0 {
		return zero, false, err
	}
	return items[0], true, nil
}

func (q *FileQueue[T]) Pop(ctx context.Context) (T, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	items, err := q.load()
	if err != nil || len(items) == 0 {
		return zero, false, err
	}
	head := items[0]
	if err := q.save(items[1:]); err != nil {
		return zero, false, err
	}
	return head, true, nil
}

func (q *FileQueue[T]) Ack(ctx context.Context, key string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load()
	if err != nil {
		return false, err
	}
	for i, it := range items {
		if it.Key() != key {
			continue
		}
		rest := append(items[:i:i], items[i+1:]...)
		if err := q.save(rest); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (q *FileQueue[T]) Contains(ctx context.Context, key string) (bool, error) {
	items, err := q.List(ctx)
	if err != nil {
		return false, err
	}
	for _, it := range items {
		if it.Key() == key {
			return true, nil
		}
	}
	return false, nil
}

func (q *FileQueue[T]) Len(ctx context.Context) (int, error) {
	items, err := q.List(ctx)
	return len(items), err
}

func (q *FileQueue[T]) List(ctx context.Context) ([]T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load()
}
