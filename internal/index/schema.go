// Package index mirrors the annotation store into SQLite for full-text search,
// using FTS5 when built with the sqlite_fts5 tag and LIKE matching otherwise.
// The JSON document stays the source of truth; the index is rebuilt from it.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS annotations (
	id         INTEGER NOT NULL,
	collection TEXT    NOT NULL,
	path       TEXT    NOT NULL,
	category   TEXT    NOT NULL DEFAULT '',
	line       INTEGER NOT NULL DEFAULT 0,
	type       TEXT    NOT NULL,
	body       TEXT    NOT NULL DEFAULT '',
	deadline   TEXT    NOT NULL DEFAULT '',
	created_at DATETIME,
	PRIMARY KEY (collection, path, id)
);

CREATE INDEX IF NOT EXISTS idx_annotations_type ON annotations(type);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
