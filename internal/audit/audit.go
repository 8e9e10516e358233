// Package audit records moderation actions in SQLite. The chat log
// itself is deliberately ephemeral; the audit trail is the one durable
// artifact, answering "who banned whom, when" after a restart.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS moderation_actions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	action     TEXT NOT NULL,
	actor      TEXT NOT NULL,
	target     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_moderation_actions_created_at
	ON moderation_actions(created_at);
`

// Moderation action kinds.
const (
	ActionBan    = "ban"
	ActionUnban  = "unban"
	ActionDelete = "delete"
)

// Entry is one recorded moderation action.
type Entry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"created_at"`
}

// Log is an append-only moderation trail backed by SQLite.
type Log struct {
	db *sql.DB
}

// Open creates or opens the trail database and ensures the schema.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Record appends one action to the trail.
func (l *Log) Record(ctx context.Context, action, actor, target string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO moderation_actions (action, actor, target, created_at) VALUES (?, ?, ?, ?)`,
		action, actor, target, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record %s action: %w", action, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, action, actor, target, created_at
		 FROM moderation_actions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Action, &e.Actor, &e.Target, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database handle.
func (l *Log) Close() error {
	return l.db.Close()
}
