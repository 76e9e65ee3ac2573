// Package models defines the notebook document model.
//
// Values are built once through the constructors below and are read-only
// afterwards: accessors hand out copies, never the backing slices.
package models

import (
	"slices"
	"strings"
	"time"

	"github.com/starford/nbmark/internal/apperr"
)

// CellType is the kind of a notebook cell.
type CellType string

const (
	CellMarkdown CellType = "markdown"
	CellCode     CellType = "code"
)

// ParseCellType converts a raw cell_type value. Unknown values are an error,
// never a default.
func ParseCellType(s string) (CellType, error) {
	switch CellType(s) {
	case CellMarkdown, CellCode:
		return CellType(s), nil
	}
	return "", apperr.Invalid(apperr.ErrInvalidDiscriminator, "", "invalid cell type %q", s)
}

func (t CellType) String() string { return string(t) }

// OutputType is the kind of a recorded code cell output.
type OutputType string

const (
	OutputStream        OutputType = "stream"
	OutputExecuteResult OutputType = "execute_result"
	OutputError         OutputType = "error"
)

// ParseOutputType converts a raw output_type value.
func ParseOutputType(s string) (OutputType, error) {
	switch OutputType(s) {
	case OutputStream, OutputExecuteResult, OutputError:
		return OutputType(s), nil
	}
	return "", apperr.Invalid(apperr.ErrMalformedOutput, "/output_type", "unknown output type %q", s)
}

func (t OutputType) String() string { return string(t) }

// ResultName is the name given to every execute_result output.
const ResultName = "result"

// Metadata is attached to notebooks and cells. It carries no fields yet;
// whatever the source document holds is dropped on load.
type Metadata struct{}

// Output is one recorded result of executing a code cell, in canonical shape.
type Output struct {
	name   string
	kind   OutputType
	text   []string
	evalue *string
}

// NewStreamOutput builds a stream output (stdout/stderr).
func NewStreamOutput(name string, text []string) Output {
	return Output{name: name, kind: OutputStream, text: cloneLines(text)}
}

// NewResultOutput builds an execute_result output from its text/plain lines.
func NewResultOutput(text []string) Output {
	return Output{name: ResultName, kind: OutputExecuteResult, text: cloneLines(text)}
}

// NewErrorOutput builds an error output. The traceback becomes the text.
func NewErrorOutput(ename, evalue string, traceback []string) Output {
	return Output{name: ename, kind: OutputError, text: cloneLines(traceback), evalue: &evalue}
}

// Name is the stream name, "result", or the exception name.
func (o Output) Name() string { return o.name }

func (o Output) Type() OutputType { return o.kind }

// Text returns the output lines.
func (o Output) Text() []string { return slices.Clone(o.text) }

// TextString returns the output lines concatenated without separators.
func (o Output) TextString() string { return strings.Join(o.text, "") }

func (o Output) IsError() bool { return o.kind == OutputError }

// ErrorValue returns the exception message; ok is false for non-error outputs.
func (o Output) ErrorValue() (value string, ok bool) {
	if o.evalue == nil {
		return "", false
	}
	return *o.evalue, true
}

// Traceback returns the joined traceback of an error output.
func (o Output) Traceback() (string, bool) {
	if !o.IsError() {
		return "", false
	}
	return o.TextString(), true
}

// Cell is one unit of notebook content.
type Cell struct {
	kind           CellType
	id             string
	metadata       Metadata
	source         []string
	outputs        []Output
	executionCount *int
}

// NewMarkdownCell builds a markdown cell. Markdown cells have no outputs and
// no execution count.
func NewMarkdownCell(id string, source []string) Cell {
	return Cell{kind: CellMarkdown, id: id, source: cloneLines(source)}
}

// NewCodeCell builds a code cell. outputs may be empty but is always present;
// executionCount is nil for a cell that has never run.
func NewCodeCell(id string, source []string, outputs []Output, executionCount *int) Cell {
	c := Cell{kind: CellCode, id: id, source: cloneLines(source), outputs: make([]Output, len(outputs))}
	copy(c.outputs, outputs)
	if executionCount != nil {
		n := *executionCount
		c.executionCount = &n
	}
	return c
}

func (c Cell) Type() CellType { return c.kind }

func (c Cell) ID() string { return c.id }

func (c Cell) Metadata() Metadata { return c.metadata }

// Source returns the source lines.
func (c Cell) Source() []string { return slices.Clone(c.source) }

// SourceText returns the source lines concatenated without separators.
func (c Cell) SourceText() string { return strings.Join(c.source, "") }

// Outputs returns the cell outputs. ok is false for markdown cells; for code
// cells it is always true, even when the slice is empty.
func (c Cell) Outputs() (outputs []Output, ok bool) {
	if c.kind != CellCode {
		return nil, false
	}
	return slices.Clone(c.outputs), true
}

// ExecutionCount returns the execution counter; ok is false when the cell is
// markdown or has not been executed.
func (c Cell) ExecutionCount() (count int, ok bool) {
	if c.executionCount == nil {
		return 0, false
	}
	return *c.executionCount, true
}

// Notebook is a parsed notebook document.
type Notebook struct {
	path          string
	nbformat      uint8
	nbformatMinor uint8
	metadata      Metadata
	cells         []Cell
}

// NewNotebook builds a notebook. Cells keep the given order.
func NewNotebook(path string, nbformat, nbformatMinor uint8, cells []Cell) *Notebook {
	nb := &Notebook{path: path, nbformat: nbformat, nbformatMinor: nbformatMinor, cells: make([]Cell, len(cells))}
	copy(nb.cells, cells)
	return nb
}

func (n *Notebook) Path() string { return n.path }

func (n *Notebook) NBFormat() uint8 { return n.nbformat }

func (n *Notebook) NBFormatMinor() uint8 { return n.nbformatMinor }

func (n *Notebook) Metadata() Metadata { return n.metadata }

// Cells returns the cells in document order.
func (n *Notebook) Cells() []Cell { return slices.Clone(n.cells) }

// Len returns the number of cells.
func (n *Notebook) Len() int { return len(n.cells) }

// Title returns the text of the first heading found in a markdown cell, or
// an empty string.
func (n *Notebook) Title() string {
	for _, c := range n.cells {
		if c.kind != CellMarkdown {
			continue
		}
		for _, line := range strings.Split(c.SourceText(), "\n") {
			trimmed := strings.TrimSpace(line)
			if !strings.HasPrefix(trimmed, "#") {
				continue
			}
			if title := strings.TrimSpace(strings.TrimLeft(trimmed, "#")); title != "" {
				return title
			}
		}
	}
	return ""
}

// Stats summarises a notebook for listings.
type Stats struct {
	Cells        int `json:"cells"`
	CodeCells    int `json:"code_cells"`
	Outputs      int `json:"outputs"`
	ErrorOutputs int `json:"error_outputs"`
}

// Stats counts cells and outputs.
func (n *Notebook) Stats() Stats {
	var s Stats
	s.Cells = len(n.cells)
	for _, c := range n.cells {
		if c.kind != CellCode {
			continue
		}
		s.CodeCells++
		s.Outputs += len(c.outputs)
		for _, o := range c.outputs {
			if o.IsError() {
				s.ErrorOutputs++
			}
		}
	}
	return s
}

// NotebookMetadata is a lightweight representation returned by list operations.
type NotebookMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

func cloneLines(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return slices.Clone(lines)
}
