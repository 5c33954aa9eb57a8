//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS annotations_fts USING fts5(
			id UNINDEXED,
			collection UNINDEXED,
			path,
			type,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsClear(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM annotations_fts`); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	return nil
}

func ftsInsert(tx *sql.Tx, r Row) error {
	_, err := tx.Exec(`INSERT INTO annotations_fts (id, collection, path, type, body) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Collection, r.Path, r.Type, r.Body)
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

// matchExpr quotes every term so user input cannot break FTS5 query syntax.
func matchExpr(query string) string {
	fields := strings.Fields(query)
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(fields, " ")
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT a.id, a.collection, a.path, a.category, a.line, a.type,
		       snippet(f, 4, '<b>', '</b>', '...', 32)
		FROM annotations_fts f
		JOIN annotations a
		  ON a.id = f.id AND a.collection = f.collection AND a.path = f.path
		WHERE f MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, matchExpr(query), limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}
