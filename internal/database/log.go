package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/TobiSchelling/itnewsbot/internal/store"
)

// Log is a store.Log kept in the decision_log table.
type Log[T store.Record] struct {
	db        *DB
	name      string
	retention store.Retention
}

// NewLog returns the named decision log.
func NewLog[T store.Record](db *DB, name string, retention store.Retention) *Log[T] {
	return &Log[T]{db: db, name: name, retention: retention}
}

// prune deletes the rows whose decided_at lies in a second wholly before
// the retention cutoff.
func (l *Log[T]) prune(ctx context.Context, tx *sql.Tx) error {
	cutoff, ok := l.retention.Cutoff()
	if !ok {
		return nil
	}
	query, args, err := psql.Delete("decision_log").
		Where(sq.Eq{"log": l.name}).
		Where(sq.NotEq{"decided_at": nil}).
		Where(sq.Lt{"decided_at": cutoff.UTC().Truncate(time.Second).Format(time.RFC3339)}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("pruning %s: %w", l.name, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("pruned %d expired records from %s", n, l.name)
	}
	return nil
}

// load reads the log inside tx after pruning it. Rows within the cutoff
// second are filtered on the decoded record.
func (l *Log[T]) load(ctx context.Context, tx *sql.Tx) ([]T, error) {
	if err := l.prune(ctx, tx); err != nil {
		return nil, err
	}

	query, args, err := psql.Select("id", "payload").
		From("decision_log").
		Where(sq.Eq{"log": l.name}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", l.name, err)
	}

	var (
		kept    []T
		expired []int64
	)
	for rows.Next() {
		var id int64
		var payload string
		if err := rows.Scan(&id, &payload); err != nil {
			rows.Close()
			return nil, err
		}
		var rec T
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decoding %s record %d: %w", l.name, id, err)
		}
		if l.retention.Keep(rec.DecidedAt()) {
			kept = append(kept, rec)
		} else {
			expired = append(expired, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(expired) > 0 {
		query, args, err := psql.Delete("decision_log").Where(sq.Eq{"id": expired}).ToSql()
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("pruning %s: %w", l.name, err)
		}
		log.Printf("pruned %d expired records from %s", len(expired), l.name)
	}
	return kept, nil
}

func (l *Log[T]) Append(ctx context.Context, rec T) (bool, error) {
	tx, err := l.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	if _, err := l.load(ctx, tx); err != nil {
		return false, err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshaling %s: %w", rec.Key(), err)
	}
	var decidedAt any
	if t := rec.DecidedAt(); !t.IsZero() {
		decidedAt = t.UTC().Format(time.RFC3339)
	}

	query, args, err := psql.Insert("decision_log").
		Columns("log", "link", "payload", "decided_at").
		Values(l.name, rec.Key(), string(payload), decidedAt).
		Suffix("ON CONFLICT(log, link) DO NOTHING").
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("appending to %s: %w", l.name, err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit append: %w", err)
	}
	return n > 0, nil
}

func (l *Log[T]) Contains(ctx context.Context, key string) (bool, error) {
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

func (l *Log[T]) List(ctx context.Context) ([]T, error) {
	tx, err := l.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin list: %w", err)
	}
	defer tx.Rollback()

	records, err := l.load(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit list: %w", err)
	}
	return records, nil
}
