package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Row is one annotation as stored in the index.
type Row struct {
	ID         int64
	Collection string
	Path       string
	Category   string
	Line       int
	Type       string
	Body       string
	Deadline   string
	CreatedAt  time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID         int64  `json:"id"`
	Collection string `json:"collection"`
	Path       string `json:"path"`
	Category   string `json:"category,omitempty"`
	Line       int    `json:"line,omitempty"`
	Type       string `json:"type"`
	Snippet    string `json:"snippet"`
}

const checksumKey = "document_checksum"

// Rebuild replaces every row in one transaction and records the checksum of
// the document the rows came from.
func (db *DB) Rebuild(rows []Row, checksum string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM annotations`); err != nil {
		return fmt.Errorf("index: clear: %w", err)
	}
	if err := ftsClear(tx); err != nil {
		return err
	}

	if len(rows) > 0 {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO annotations
				(id, collection, path, category, line, type, body, deadline, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("index: prepare insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.Exec(r.ID, r.Collection, r.Path, r.Category, r.Line, r.Type, r.Body, r.Deadline, r.CreatedAt); err != nil {
				return fmt.Errorf("index: insert %d: %w", r.ID, err)
			}
			if err := ftsInsert(tx, r); err != nil {
				return err
			}
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, checksumKey, checksum); err != nil {
		return fmt.Errorf("index: set checksum: %w", err)
	}
	return tx.Commit()
}

// Checksum returns the checksum recorded by the last Rebuild, or "".
func (db *DB) Checksum() (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, checksumKey).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// Count returns the number of indexed annotations.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM annotations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Collection, &r.Path, &r.Category, &r.Line, &r.Type, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
