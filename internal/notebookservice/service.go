// Package notebookservice coordinates storage, index and rendering for the
// workspace surfaces (HTTP API, MCP server, watcher exports).
package notebookservice

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/nbmark/internal/apperr"
	"github.com/starford/nbmark/internal/checksum"
	"github.com/starford/nbmark/internal/index"
	"github.com/starford/nbmark/internal/models"
	"github.com/starford/nbmark/internal/notebook"
	"github.com/starford/nbmark/internal/parser"
	"github.com/starford/nbmark/internal/render"
	"github.com/starford/nbmark/internal/storage"
)

// NotebookDetail is the full representation of a notebook.
type NotebookDetail struct {
	Path          string       `json:"path"`
	Title         string       `json:"title"`
	Checksum      string       `json:"checksum"`
	NBFormat      int          `json:"nbformat"`
	NBFormatMinor int          `json:"nbformat_minor"`
	Stats         models.Stats `json:"stats"`
	Cells         []CellDetail `json:"cells"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// CellDetail is one cell of a NotebookDetail. Outputs and execution_count
// are omitted for markdown cells; code cells always carry an outputs array.
type CellDetail struct {
	ID             string         `json:"id"`
	Type           string         `json:"cell_type"`
	Source         string         `json:"source"`
	ExecutionCount *int           `json:"execution_count,omitempty"`
	Outputs        []OutputDetail `json:"outputs,omitzero"`
}

// OutputDetail is the canonical output record.
type OutputDetail struct {
	Name       string  `json:"name"`
	Type       string  `json:"output_type"`
	Text       string  `json:"text"`
	IsError    bool    `json:"error"`
	ErrorValue *string `json:"error_value,omitempty"`
}

// NotebookListItem is a lightweight item in a list response.
type NotebookListItem struct {
	Path         string    `json:"path"`
	Title        string    `json:"title"`
	Checksum     string    `json:"checksum"`
	Cells        int       `json:"cells"`
	CodeCells    int       `json:"code_cells"`
	ErrorOutputs int       `json:"error_outputs"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Option configures a Service.
type Option func(*Service)

// WithRenderer sets the Markdown renderer.
func WithRenderer(r *render.Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// WithExportDir writes exports under dir (workspace-relative), mirroring the
// notebook's directory layout. By default exports land next to the notebook.
func WithExportDir(dir string) Option {
	return func(s *Service) { s.exportDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service coordinates storage and index operations.
type Service struct {
	store     storage.Provider
	db        index.NotebookIndex
	renderer  *render.Renderer
	exportDir string
	logger    *slog.Logger
}

// NewService creates a new notebook service.
func NewService(store storage.Provider, db index.NotebookIndex, opts ...Option) *Service {
	s := &Service{
		store:    store,
		db:       db,
		renderer: render.New(),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// open loads a workspace notebook through the facade. Missing files map to
// apperr.ErrNotFound; parse errors pass through unchanged.
func (s *Service) open(p string) (*notebook.Notebook, error) {
	if !storage.IsNotebook(p) {
		return nil, apperr.ErrNotFound
	}
	nb, err := notebook.Open(p,
		notebook.WithFileIO(s.store),
		notebook.WithRenderer(s.renderer),
		notebook.WithLogger(s.logger),
	)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.ErrNotFound
	}
	return nb, err
}

// GetNotebook reads a notebook from storage and returns its full detail.
func (s *Service) GetNotebook(_ context.Context, p string) (*NotebookDetail, error) {
	if !storage.IsNotebook(p) {
		return nil, apperr.ErrNotFound
	}
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, &apperr.IOError{Op: "read", Path: p, Err: err}
	}
	nb, err := parser.Parse(p, data)
	if err != nil {
		return nil, err
	}
	cs := checksum.Sum(data)
	row, _ := index.Rows(nb, cs, time.Now())
	if indexed, err := s.db.GetNotebook(p); err == nil && indexed.Checksum == cs {
		row.UpdatedAt = indexed.UpdatedAt
	}
	return buildDetail(nb, row), nil
}

// RenderMarkdown renders a workspace notebook to Markdown.
func (s *Service) RenderMarkdown(_ context.Context, p string) (string, error) {
	nb, err := s.open(p)
	if err != nil {
		return "", err
	}
	return nb.Markdown(), nil
}

// ExportNotebook writes the Markdown rendering of a workspace notebook and
// returns the workspace-relative output path.
func (s *Service) ExportNotebook(_ context.Context, p string) (string, error) {
	nb, err := s.open(p)
	if err != nil {
		return "", err
	}
	out := s.ExportPath(p)
	if err := nb.Export(out, notebook.FormatMarkdown); err != nil {
		return "", err
	}
	return out, nil
}

// ExportPath is where ExportNotebook writes the Markdown for p.
func (s *Service) ExportPath(p string) string {
	md := strings.TrimSuffix(p, path.Ext(p)) + ".md"
	if s.exportDir == "" {
		return md
	}
	return path.Join(s.exportDir, md)
}

// ListNotebooks returns paginated notebooks from the index.
func (s *Service) ListNotebooks(_ context.Context, limit, offset int, sort string) ([]NotebookListItem, int, error) {
	rows, total, err := s.db.ListNotebooks(limit, offset, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NotebookListItem, len(rows))
	for i, r := range rows {
		items[i] = NotebookListItem{
			Path:         r.Path,
			Title:        r.Title,
			Checksum:     r.Checksum,
			Cells:        r.Cells,
			CodeCells:    r.CodeCells,
			ErrorOutputs: r.ErrorOutputs,
			UpdatedAt:    r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// ConvertBytes parses an uploaded notebook and renders it without touching
// the workspace. name is only used in error messages.
func (s *Service) ConvertBytes(_ context.Context, name string, data []byte) (string, error) {
	nb, err := parser.Parse(name, data)
	if err != nil {
		return "", err
	}
	return s.renderer.Notebook(nb), nil
}

// ImportNotebook validates data as a notebook, writes it to p and indexes
// it. Existing files are never overwritten.
func (s *Service) ImportNotebook(_ context.Context, p string, data []byte) (*NotebookDetail, error) {
	if !storage.IsNotebook(p) {
		return nil, &apperr.UnsupportedError{Feature: "import target", Reason: "path must end with " + storage.NotebookExt}
	}
	nb, err := parser.Parse(p, data)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Read(p); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(p, data); err != nil {
		return nil, &apperr.IOError{Op: "write", Path: p, Err: err}
	}
	row, cells := index.Rows(nb, checksum.Sum(data), time.Now())
	if err := s.db.UpsertNotebook(row, cells); err != nil {
		return nil, err
	}
	s.logger.Info("notebook imported", slog.String("path", p), slog.Int("cells", nb.Len()))
	return buildDetail(nb, row), nil
}

func buildDetail(nb *models.Notebook, row index.NotebookRow) *NotebookDetail {
	d := &NotebookDetail{
		Path:          row.Path,
		Title:         row.Title,
		Checksum:      row.Checksum,
		NBFormat:      row.NBFormat,
		NBFormatMinor: row.NBFormatMinor,
		Stats:         nb.Stats(),
		Cells:         make([]CellDetail, 0, nb.Len()),
		UpdatedAt:     row.UpdatedAt,
	}
	for _, c := range nb.Cells() {
		cd := CellDetail{ID: c.ID(), Type: c.Type().String(), Source: c.SourceText()}
		if n, ok := c.ExecutionCount(); ok {
			cd.ExecutionCount = &n
		}
		if outputs, ok := c.Outputs(); ok {
			cd.Outputs = make([]OutputDetail, 0, len(outputs))
			for _, o := range outputs {
				od := OutputDetail{Name: o.Name(), Type: o.Type().String(), Text: o.TextString(), IsError: o.IsError()}
				if v, ok := o.ErrorValue(); ok {
					od.ErrorValue = &v
				}
				cd.Outputs = append(cd.Outputs, od)
			}
		}
		d.Cells = append(d.Cells, cd)
	}
	return d
}
