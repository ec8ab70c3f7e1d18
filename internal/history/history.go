// Package history keeps an optional log of probe results in SQLite, so a
// deployment can look back at what a probe reported and when.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/y0f/webprobe/internal/probe"
)

const schema = `
CREATE TABLE IF NOT EXISTS probe_results (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	probe      TEXT    NOT NULL,
	status     TEXT    NOT NULL,
	info       TEXT    NOT NULL DEFAULT '',
	created_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
);

CREATE INDEX IF NOT EXISTS idx_probe_results_probe ON probe_results(probe, created_at DESC);
`

// timeFormat is the format used for storing timestamps in SQLite.
const timeFormat = "2006-01-02T15:04:05Z"

// Entry is one stored probe result.
type Entry struct {
	ID        int64
	Probe     string
	Status    string
	Info      string
	CreatedAt time.Time
}

// Store is a SQLite-backed result log using WAL mode with a single write
// connection.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and bootstraps the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Record appends one result for the named probe.
func (s *Store) Record(ctx context.Context, name string, res probe.Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO probe_results (probe, status, info, created_at) VALUES (?, ?, ?, ?)`,
		name, res.Status.String(), res.Info, _nowFunc().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// Recent returns the latest results for the named probe, newest first.
func (s *Store) Recent(ctx context.Context, name string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, probe, status, info, created_at FROM probe_results
		 WHERE probe = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		name, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.Probe, &e.Status, &e.Info, &created); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		e.CreatedAt, _ = time.Parse(timeFormat, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune removes results older than the retention window and reports how
// many rows were removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := _nowFunc().UTC().Add(-olderThan).Format(timeFormat)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM probe_results WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune results: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// _nowFunc allows overriding time in tests.
var _nowFunc = time.Now
