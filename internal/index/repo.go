package index

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/nbmark/internal/apperr"
	"github.com/starford/nbmark/internal/models"
)

// NotebookRow represents a row in the notebooks table.
type NotebookRow struct {
	Path          string
	Title         string
	Checksum      string
	NBFormat      int
	NBFormatMinor int
	Cells         int
	CodeCells     int
	Outputs       int
	ErrorOutputs  int
	UpdatedAt     time.Time
}

// CellRow represents a row in the cells table.
type CellRow struct {
	Position int
	ID       string
	Type     string
	Source   string
}

// SearchResult represents one search hit. Hits are per cell.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	CellID  string `json:"cell_id"`
	Snippet string `json:"snippet"`
}

// sortColumns maps the accepted sort keys to ORDER BY clauses.
var sortColumns = map[string]string{
	"":        "path ASC",
	"path":    "path ASC",
	"title":   "title COLLATE NOCASE ASC, path ASC",
	"updated": "updated_at DESC, path ASC",
}

// Rows converts a parsed notebook into index rows. The title is the first
// Markdown heading, else the file name without extension.
func Rows(nb *models.Notebook, checksum string, updatedAt time.Time) (NotebookRow, []CellRow) {
	title := nb.Title()
	if title == "" {
		base := filepath.Base(nb.Path())
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	st := nb.Stats()
	row := NotebookRow{
		Path:          nb.Path(),
		Title:         title,
		Checksum:      checksum,
		NBFormat:      int(nb.NBFormat()),
		NBFormatMinor: int(nb.NBFormatMinor()),
		Cells:         st.Cells,
		CodeCells:     st.CodeCells,
		Outputs:       st.Outputs,
		ErrorOutputs:  st.ErrorOutputs,
		UpdatedAt:     updatedAt,
	}
	cells := make([]CellRow, 0, nb.Len())
	for i, c := range nb.Cells() {
		cells = append(cells, CellRow{
			Position: i,
			ID:       c.ID(),
			Type:     c.Type().String(),
			Source:   c.SourceText(),
		})
	}
	return row, cells
}

// UpsertNotebook inserts or replaces a notebook, its cells and FTS entries within a transaction.
func (db *DB) UpsertNotebook(n NotebookRow, cells []CellRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO notebooks (path, title, checksum, nbformat, nbformat_minor,
			cell_count, code_cell_count, output_count, error_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title           = excluded.title,
			checksum        = excluded.checksum,
			nbformat        = excluded.nbformat,
			nbformat_minor  = excluded.nbformat_minor,
			cell_count      = excluded.cell_count,
			code_cell_count = excluded.code_cell_count,
			output_count    = excluded.output_count,
			error_count     = excluded.error_count,
			updated_at      = excluded.updated_at
	`, n.Path, n.Title, n.Checksum, n.NBFormat, n.NBFormatMinor,
		n.Cells, n.CodeCells, n.Outputs, n.ErrorOutputs, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert notebook: %w", err)
	}

	// Replace cells: delete old then bulk insert.
	if _, err := tx.Exec(`DELETE FROM cells WHERE path = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear cells: %w", err)
	}
	if len(cells) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO cells (path, position, cell_id, cell_type, source) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare cell insert: %w", err)
		}
		defer stmt.Close()
		for _, c := range cells {
			if _, err := stmt.Exec(n.Path, c.Position, c.ID, c.Type, c.Source); err != nil {
				return fmt.Errorf("index: insert cell: %w", err)
			}
		}
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, n.Path, n.Title, cells); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteNotebook removes a notebook, its cells and FTS entries.
func (db *DB) DeleteNotebook(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM cells WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM notebooks WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a notebook, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notebooks WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

const notebookColumns = `path, title, checksum, nbformat, nbformat_minor,
	cell_count, code_cell_count, output_count, error_count, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanNotebook(s scanner) (NotebookRow, error) {
	var n NotebookRow
	err := s.Scan(&n.Path, &n.Title, &n.Checksum, &n.NBFormat, &n.NBFormatMinor,
		&n.Cells, &n.CodeCells, &n.Outputs, &n.ErrorOutputs, &n.UpdatedAt)
	return n, err
}

// GetNotebook returns one indexed notebook, or apperr.ErrNotFound.
func (db *DB) GetNotebook(path string) (*NotebookRow, error) {
	n, err := scanNotebook(db.conn.QueryRow(`SELECT `+notebookColumns+` FROM notebooks WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get notebook: %w", err)
	}
	return &n, nil
}

// ListNotebooks returns a page of notebooks and the total count.
// sort is one of "path" (default), "title" or "updated".
func (db *DB) ListNotebooks(limit, offset int, sort string) ([]NotebookRow, int, error) {
	order, ok := sortColumns[sort]
	if !ok {
		return nil, 0, fmt.Errorf("index: unknown sort %q: %w", sort, apperr.ErrUnsupported)
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notebooks`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notebooks: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+notebookColumns+` FROM notebooks ORDER BY `+order+` LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notebooks: %w", err)
	}
	defer rows.Close()

	var out []NotebookRow
	for rows.Next() {
		n, err := scanNotebook(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// AllChecksums returns path → checksum for every indexed notebook.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notebooks`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
