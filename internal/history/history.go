// Package history records analysis runs in a SQLite database under
// .cmslens/state so trends are visible across runs (cmslens history).
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	command     TEXT NOT NULL,
	plugin      TEXT NOT NULL,
	platform    TEXT NOT NULL,
	score       INTEGER NOT NULL,
	grade       TEXT NOT NULL,
	critical    INTEGER NOT NULL,
	warning     INTEGER NOT NULL,
	info        INTEGER NOT NULL,
	files       INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	started_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at DESC);
`

// Entry is one recorded run.
type Entry struct {
	ID        string
	Command   string
	Plugin    string
	Platform  string
	Score     int
	Grade     string
	Critical  int
	Warning   int
	Info      int
	Files     int
	Duration  time.Duration
	StartedAt time.Time
}

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts one run.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("history: run id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, command, plugin, platform, score, grade,
			critical, warning, info, files, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Command, e.Plugin, e.Platform, e.Score, e.Grade,
		e.Critical, e.Warning, e.Info, e.Files,
		e.Duration.Milliseconds(), e.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("history: record run %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command, plugin, platform, score, grade,
			critical, warning, info, files, duration_ms, started_at
		FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationMS int64
		var startedAt string
		if err := rows.Scan(&e.ID, &e.Command, &e.Plugin, &e.Platform, &e.Score, &e.Grade,
			&e.Critical, &e.Warning, &e.Info, &e.Files, &durationMS, &startedAt); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
			e.StartedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
