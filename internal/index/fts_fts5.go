//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS cells_fts USING fts5(
			path UNINDEXED,
			cell_id UNINDEXED,
			title,
			source,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, title string, cells []CellRow) error {
	_, _ = tx.Exec(`DELETE FROM cells_fts WHERE path = ?`, path)
	for _, c := range cells {
		_, err := tx.Exec(`INSERT INTO cells_fts (path, cell_id, title, source) VALUES (?, ?, ?, ?)`,
			path, c.ID, title, c.Source)
		if err != nil {
			return fmt.Errorf("index: upsert fts: %w", err)
		}
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM cells_fts WHERE path = ?`, path)
}

// Search performs an FTS5 full-text search and returns matching cells with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT path,
		       title,
		       cell_id,
		       snippet(cells_fts, 3, '<b>', '</b>', '...', 64)
		FROM cells_fts
		WHERE cells_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.CellID, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
