// Package db provides structured access and migrations for the SQLite query history.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
	path string
}

// History entry statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// HistoryEntry is one executed query.
type HistoryEntry struct {
	ID          string    `json:"id"`
	RefID       string    `json:"refId"`
	QueryType   string    `json:"queryType"`
	DisplayText string    `json:"displayText"`
	QueryJSON   string    `json:"query"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"durationMs"`
	CreatedAt   time.Time `json:"createdAt"`
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		DB:   db,
		path: dbPath,
	}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Migrate runs database migrations
func (db *DB) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS query_history (
			id TEXT PRIMARY KEY,
			ref_id TEXT NOT NULL DEFAULT '',
			query_type TEXT NOT NULL,
			display_text TEXT NOT NULL DEFAULT '',
			query_json TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_query_history_created ON query_history(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_query_history_type ON query_history(query_type)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Record stores e, assigning an id and creation time when they are unset.
func (db *DB) Record(ctx context.Context, e HistoryEntry) (HistoryEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, `INSERT INTO query_history
		(id, ref_id, query_type, display_text, query_json, status, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RefID, e.QueryType, e.DisplayText, e.QueryJSON, e.Status, e.Error, e.DurationMS, e.CreatedAt)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("failed to record query: %w", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. A non-positive limit
// defaults to 50.
func (db *DB) List(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.QueryContext(ctx, `SELECT id, ref_id, query_type, display_text, query_json, status, error, duration_ms, created_at
		FROM query_history ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.RefID, &e.QueryType, &e.DisplayText, &e.QueryJSON,
			&e.Status, &e.Error, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
