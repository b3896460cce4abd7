package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	sq "github.com/Masterminds/squirrel"

	"github.com/TobiSchelling/itnewsbot/internal/store"
)

// Queue is a store.Queue kept in the queue_entries table. Entries of
// different queues share the table and are told apart by name.
type Queue[T store.Keyed] struct {
	db   *DB
	name string
}

// NewQueue returns the named queue.
func NewQueue[T store.Keyed](db *DB, name string) *Queue[T] {
	return &Queue[T]{db: db, name: name}
}

func (q *Queue[T]) Push(ctx context.Context, items ...T) (int, error) {
	tx, err := q.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin push: %w", err)
	}
	defer tx.Rollback()

	added := 0
	for _, it := range items {
		payload, err := json.Marshal(it)
		if err != nil {
			return 0, fmt.Errorf("marshaling %s: %w", it.Key(), err)
		}
		query, args, err := psql.Insert("queue_entries").
			Columns("queue", "link", "payload").
			Values(q.name, it.Key(), string(payload)).
			Suffix("ON CONFLICT(queue, link) DO NOTHING").
			ToSql()
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("inserting into %s: %w", q.name, err)
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit push: %w", err)
	}
	return added, nil
}

type runner interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// head reads the oldest entry of the queue through r. Entries that no
// longer decode are logged and deleted so they cannot block the queue.
func (q *Queue[T]) head(ctx context.Context, r runner) (int64, T, bool, error) {
	var zero T
	query, args, err := psql.Select("id", "payload").
		From("queue_entries").
		Where(sq.Eq{"queue": q.name}).
		OrderBy("id").
		Limit(1).
		ToSql()
	if err != nil {
		return 0, zero, false, err
	}

	for {
		var id int64
		var payload string
		err = r.QueryRowContext(ctx, query, args...).Scan(&id, &payload)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, zero, false, nil
		}
		if err != nil {
			return 0, zero, false, fmt.Errorf("reading %s head: %w", q.name, err)
		}

		var item T
		err = json.Unmarshal([]byte(payload), &item)
		if err == nil {
			return id, item, true, nil
		}
		log.Printf("dropping corrupt %s entry %d: %v (payload %q)", q.name, id, err, payload)
		if err := q.delete(ctx, r, id); err != nil {
			return 0, zero, false, err
		}
	}
}

func (q *Queue[T]) delete(ctx context.Context, r runner, id int64) error {
	query, args, err := psql.Delete("queue_entries").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	if _, err := r.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting %s entry %d: %w", q.name, id, err)
	}
	return nil
}

func (q *Queue[T]) Peek(ctx context.Context) (T, bool, error) {
	_, item, ok, err := q.head(ctx, q.db.conn)
	return item, ok, err
}

func (q *Queue[T]) Pop(ctx context.Context) (T, bool, error) {
	var zero T
	tx, err := q.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return zero, false, fmt.Errorf("begin pop: %w", err)
	}
	defer tx.Rollback()

	id, item, ok, err := q.head(ctx, tx)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		// commit drops of corrupt entries
		if err := tx.Commit(); err != nil {
			return zero, false, fmt.Errorf("commit pop: %w", err)
		}
		return zero, false, nil
	}

	if err := q.delete(ctx, tx, id); err != nil {
		return zero, false, err
	}
	if err := tx.Commit(); err != nil {
		return zero, false, fmt.Errorf("commit pop: %w", err)
	}
	return item, true, nil
}

func (q *Queue[T]) Ack(ctx context.Context, key string) (bool, error) {
	query, args, err := psql.Delete("queue_entries").
		Where(sq.Eq{"queue": q.name, "link": key}).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := q.db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("removing %s from %s: %w", key, q.name, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (q *Queue[T]) count(ctx context.Context, where sq.Eq) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From("queue_entries").Where(where).ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := q.db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", q.name, err)
	}
	return n, nil
}

func (q *Queue[T]) Contains(ctx context.Context, key string) (bool, error) {
	n, err := q.count(ctx, sq.Eq{"queue": q.name, "link": key})
	return n > 0, err
}

func (q *Queue[T]) Len(ctx context.Context) (int, error) {
	return q.count(ctx, sq.Eq{"queue": q.name})
}

func (q *Queue[T]) List(ctx context.Context) ([]T, error) {
	query, args, err := psql.Select("payload").
		From("queue_entries").
		Where(sq.Eq{"queue": q.name}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := q.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", q.name, err)
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var item T
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			log.Printf("skipping corrupt %s entry: %v", q.name, err)
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
