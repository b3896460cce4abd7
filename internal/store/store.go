package store

import (
	"context"
	"time"
)

// Keyed is anything identified by its link.
type Keyed interface {
	Key() string
}

// Record is a decision-log entry aged by its decision timestamp.
type Record interface {
	Keyed
	DecidedAt() time.Time
}

// Queue is a durable FIFO of entries unique by key.
// Every mutation is persisted before the call returns.
type Queue[T Keyed] interface {
	// Push appends items whose key is not already queued and reports how many were added.
	Push(ctx context.Context, items ...T) (int, error)
	// Peek returns the head without removing it.
	Peek(ctx context.Context) (T, bool, error)
	// Pop removes and returns the head.
	Pop(ctx context.Context) (T, bool, error)
	// Ack removes the first entry with the given key.
	Ack(ctx context.Context, key string) (bool, error)
	Contains(ctx context.Context, key string) (bool, error)
	Len(ctx context.Context) (int, error)
	List(ctx context.Context) ([]T, error)
}

// Log is an append-only decision log. Reads apply the retention filter
// and persist the pruned set when anything was dropped.
type Log[T Record] interface {
	// Append adds rec unless a record with the same key exists.
	Append(ctx context.Context, rec T) (bool, error)
	Contains(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]T, error)
}

// Watermarks holds the per-source "last checked" instants.
type Watermarks interface {
	Get(ctx context.Context, source string) (time.Time, bool, error)
	Set(ctx context.Context, source string, at time.Time) error
	All(ctx context.Context) (map[string]time.Time, error)
}

// Clock returns the current time.
type Clock func() time.Time
