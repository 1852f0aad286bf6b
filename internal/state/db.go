package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS plugin_data (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	status      TEXT NOT NULL,
	processed   INTEGER NOT NULL DEFAULT 0,
	deleted     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	watermark   TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at);
`

// Run statuses.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is one row of sync history.
type Run struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Processed  int       `json:"processed"`
	Deleted    int       `json:"deleted"`
	Failed     int       `json:"failed"`
	Watermark  string    `json:"watermark"`
	Error      string    `json:"error,omitempty"`
}

// DB is the SQLite-backed host data store.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("state: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("state: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("state: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database connection.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Get returns the value stored under key.
func (db *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM plugin_data WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state: get %s: %w", key, err)
	}
	return []byte(v), true, nil
}

// Put stores value under key.
func (db *DB) Put(ctx context.Context, key string, value []byte) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO plugin_data (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, key, string(value), time.Now())
	if err != nil {
		return fmt.Errorf("state: put %s: %w", key, err)
	}
	return nil
}

// RecordRun appends one sync pass to the history.
func (db *DB) RecordRun(ctx context.Context, r Run) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sync_runs (started_at, finished_at, status, processed, deleted, failed, watermark, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.StartedAt, r.FinishedAt, r.Status, r.Processed, r.Deleted, r.Failed, r.Watermark, r.Error)
	if err != nil {
		return 0, fmt.Errorf("state: record run: %w", err)
	}
	return res.LastInsertId()
}

// Runs returns the most recent sync passes, newest first.
func (db *DB) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, processed, deleted, failed, watermark, error
		FROM sync_runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("state: runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Processed, &r.Deleted, &r.Failed, &r.Watermark, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
