package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Watermarks is a store.Watermarks kept in the watermarks table.
type Watermarks struct {
	db *DB
}

// NewWatermarks returns the watermark table accessor.
func NewWatermarks(db *DB) *Watermarks {
	return &Watermarks{db: db}
}

func (w *Watermarks) Get(ctx context.Context, source string) (time.Time, bool, error) {
	query, args, err := psql.Select("last_check").From("watermarks").Where(sq.Eq{"source": source}).ToSql()
	if err != nil {
		return time.Time{}, false, err
	}

	var raw string
	err = w.db.conn.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading watermark %s: %w", source, err)
	}

	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing watermark %s: %w", source, err)
	}
	return at, true, nil
}

func (w *Watermarks) Set(ctx context.Context, source string, at time.Time) error {
	query, args, err := psql.Insert("watermarks").
		Columns("source", "last_check").
		Values(source, at.UTC().Format(time.RFC3339)).
		Suffix("ON CONFLICT(source) DO UPDATE SET last_check = excluded.last_check").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := w.db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving watermark %s: %w", source, err)
	}
	return nil
}

func (w *Watermarks) All(ctx context.Context) (map[string]time.Time, error) {
	query, args, err := psql.Select("source", "last_check").From("watermarks").OrderBy("source").ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := w.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing watermarks: %w", err)
	}
	defer rows.Close()

	marks := make(map[string]time.Time)
	for rows.Next() {
		var source, raw string
		if err := rows.Scan(&source, &raw); err != nil {
			return nil, err
		}
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			continue
		}
		marks[source] = at
	}
	return marks, rows.Err()
}
