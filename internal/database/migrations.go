package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "queues, decision logs and watermarks",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS queue_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    queue TEXT NOT NULL,
    link TEXT NOT NULL,
    payload TEXT NOT NULL,
    enqueued_at TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
    UNIQUE (queue, link)
);

CREATE TABLE IF NOT EXISTS decision_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    log TEXT NOT NULL,
    link TEXT NOT NULL,
    payload TEXT NOT NULL,
    decided_at TEXT,
    UNIQUE (log, link)
);

CREATE TABLE IF NOT EXISTS watermarks (
    source TEXT PRIMARY KEY,
    last_check TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queue_entries_queue ON queue_entries(queue, id);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "decision log age index",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_decision_log_age ON decision_log(log, decided_at)`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
