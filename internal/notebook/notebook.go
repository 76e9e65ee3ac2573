// Package notebook owns a loaded notebook document and exposes the load and
// export entry points used by the command-line tool and the workspace services.
package notebook

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/nbmark/internal/apperr"
	"github.com/starford/nbmark/internal/models"
	"github.com/starford/nbmark/internal/parser"
	"github.com/starford/nbmark/internal/render"
	"github.com/starford/nbmark/internal/storage"
)

// Format is an export target.
type Format string

// FormatMarkdown is the only export format currently implemented.
const FormatMarkdown Format = "markdown"

// ParseFormat converts a user-supplied format name. Matching is case-insensitive.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	default:
		return "", &apperr.UnsupportedError{Feature: "export format", Reason: fmt.Sprintf("%q", s)}
	}
}

// Option configures a Notebook.
type Option func(*Notebook)

// WithFileIO sets the file backend. Defaults to storage.OS.
func WithFileIO(io storage.FileIO) Option {
	return func(n *Notebook) { n.io = io }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notebook) { n.log = l }
}

// WithRenderer sets the Markdown renderer used by Export and Markdown.
func WithRenderer(r *render.Renderer) Option {
	return func(n *Notebook) { n.renderer = r }
}

// Notebook is a loaded document plus the collaborators needed to reload and
// export it. It is single-owner: callers sharing one across goroutines must
// serialize Load themselves.
type Notebook struct {
	io       storage.FileIO
	log      *slog.Logger
	renderer *render.Renderer
	doc      *models.Notebook
}

// Open reads and parses the notebook at path.
func Open(path string, opts ...Option) (*Notebook, error) {
	n := &Notebook{
		io:       storage.OS{},
		log:      slog.Default(),
		renderer: render.New(),
	}
	for _, o := range opts {
		o(n)
	}
	if err := n.Load(path); err != nil {
		return nil, err
	}
	return n, nil
}

// Load replaces the in-memory document with the one at path. On failure the
// previously loaded document is left untouched. Parse errors are returned
// unchanged; read failures are reported as *apperr.IOError.
func (n *Notebook) Load(path string) error {
	data, err := n.io.Read(path)
	if err != nil {
		return &apperr.IOError{Op: "read", Path: path, Err: err}
	}
	doc, err := parser.Parse(path, data)
	if err != nil {
		return err
	}
	n.doc = doc
	n.log.Debug("notebook loaded",
		slog.String("path", path),
		slog.Int("cells", doc.Len()),
	)
	return nil
}

// Save would write the document back in notebook form. Re-serialization is
// not implemented, so it always reports ErrUnsupported.
func (n *Notebook) Save() error {
	return &apperr.UnsupportedError{Feature: "save", Reason: "writing notebook documents is not implemented"}
}

// Export renders the document in format and overwrites the file at path.
func (n *Notebook) Export(path string, format Format) error {
	var content string
	switch format {
	case FormatMarkdown:
		content = n.Markdown()
	default:
		return &apperr.UnsupportedError{Feature: "export format", Reason: fmt.Sprintf("%q", string(format))}
	}
	if err := n.io.Write(path, []byte(content)); err != nil {
		return &apperr.IOError{Op: "write", Path: path, Err: err}
	}
	n.log.Info("notebook exported",
		slog.String("path", n.doc.Path()),
		slog.String("output", path),
		slog.String("format", string(format)),
	)
	return nil
}

// Markdown renders the loaded document.
func (n *Notebook) Markdown() string {
	return n.renderer.Notebook(n.doc)
}

// Document returns the loaded model. The model is immutable.
func (n *Notebook) Document() *models.Notebook { return n.doc }

func (n *Notebook) Path() string { return n.doc.Path() }

func (n *Notebook) NBFormat() uint8 { return n.doc.NBFormat() }

func (n *Notebook) NBFormatMinor() uint8 { return n.doc.NBFormatMinor() }

func (n *Notebook) Metadata() models.Metadata { return n.doc.Metadata() }

// Cells returns a copy of the cell sequence in document order.
func (n *Notebook) Cells() []models.Cell { return n.doc.Cells() }
