// Package storage provides durable state for the scraper: the SQLite
// progress checkpoint and the record output sinks (JSON, CSV, SQLite).
package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	"mallcrawl/internal/crawler"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS completed (
    kind TEXT NOT NULL CHECK (kind IN ('url', 'page')),
    ident TEXT NOT NULL,
    recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (kind, ident)
);

CREATE TABLE IF NOT EXISTS checkpoint_meta (
    key TEXT PRIMARY KEY NOT NULL,
    value TEXT NOT NULL
);
`

// SQLiteCheckpoint persists completed pages and URLs. Record calls
// buffer in memory; Flush writes one transaction, so a crash loses at
// most the unflushed increment and never corrupts prior state.
type SQLiteCheckpoint struct {
	db *sql.DB

	mu           sync.Mutex
	pendingURLs  []string
	pendingPages []int
}

// NewSQLiteCheckpoint opens (or creates) the checkpoint database.
func NewSQLiteCheckpoint(path string) (*SQLiteCheckpoint, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	// Single connection prevents lock conflicts.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(checkpointSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize checkpoint schema: %w", err)
	}

	return &SQLiteCheckpoint{db: db}, nil
}

// Load reads the persisted state; a fresh database yields empty sets.
func (c *SQLiteCheckpoint) Load() (*crawler.CheckpointState, error) {
	state := &crawler.CheckpointState{
		CompletedPages: make(map[int]bool),
		CompletedURLs:  make(map[string]bool),
	}

	rows, err := c.db.Query("SELECT kind, ident FROM completed")
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var kind, ident string
		if err := rows.Scan(&kind, &ident); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		switch kind {
		case "url":
			state.CompletedURLs[ident] = true
		case "page":
			page, err := strconv.Atoi(ident)
			if err != nil {
				continue
			}
			state.CompletedPages[page] = true
		}
	}
	return state, rows.Err()
}

// RecordURL marks a detail URL complete. Idempotent; durable on Flush.
func (c *SQLiteCheckpoint) RecordURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingURLs = append(c.pendingURLs, url)
}

// RecordPage marks a list page fully processed. Durable on Flush.
func (c *SQLiteCheckpoint) RecordPage(pageIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingPages = append(c.pendingPages, pageIndex)
}

// Flush commits all buffered completions in one transaction.
func (c *SQLiteCheckpoint) Flush() error {
	c.mu.Lock()
	urls := c.pendingURLs
	pages := c.pendingPages
	c.pendingURLs = nil
	c.pendingPages = nil
	c.mu.Unlock()

	if len(urls) == 0 && len(pages) == 0 {
		return c.touch()
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin checkpoint transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO completed (kind, ident) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare checkpoint statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, url := range urls {
		if _, err := stmt.Exec("url", url); err != nil {
			return fmt.Errorf("failed to record URL %s: %w", url, err)
		}
	}
	for _, page := range pages {
		if _, err := stmt.Exec("page", strconv.Itoa(page)); err != nil {
			return fmt.Errorf("failed to record page %d: %w", page, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO checkpoint_meta (key, value) VALUES ('last_updated', ?)",
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to update checkpoint meta: %w", err)
	}

	return tx.Commit()
}

// LastUpdated returns the timestamp of the most recent flush, zero if
// the checkpoint has never been written.
func (c *SQLiteCheckpoint) LastUpdated() (time.Time, error) {
	var value string
	err := c.db.QueryRow("SELECT value FROM checkpoint_meta WHERE key = 'last_updated'").Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read checkpoint meta: %w", err)
	}
	return time.Parse(time.RFC3339, value)
}

// Close closes the underlying database.
func (c *SQLiteCheckpoint) Close() error {
	return c.db.Close()
}

func (c *SQLiteCheckpoint) touch() error {
	_, err := c.db.Exec(
		"INSERT OR REPLACE INTO checkpoint_meta (key, value) VALUES ('last_updated', ?)",
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to update checkpoint meta: %w", err)
	}
	return nil
}
