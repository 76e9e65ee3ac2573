//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE fallback on cells.source.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _ string, _ []CellRow) error {
	// Sources are already stored in the cells table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search performs a LIKE-based search over cell sources and notebook titles
// (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + likeEscaper.Replace(query) + "%"
	rows, err := db.conn.Query(`
		SELECT n.path, n.title, c.cell_id, substr(c.source, 1, 200)
		FROM cells c
		JOIN notebooks n ON n.path = c.path
		WHERE c.source LIKE ? ESCAPE '\' OR (c.position = 0 AND n.title LIKE ? ESCAPE '\')
		ORDER BY n.path, c.position
		LIMIT ?
	`, like, like, limit)
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
