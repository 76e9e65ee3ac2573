// Package render turns the notebook model into Markdown.
//
// Rendering is a pure function of the model: the same notebook always
// renders to the same bytes.
package render

import (
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/starford/nbmark/internal/models"
)

const (
	fence         = "```"
	outputHeading = "Output"
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithStripANSI removes terminal escape sequences (colour codes in
// tracebacks, progress bars) from output text.
func WithStripANSI(on bool) Option {
	return func(r *Renderer) {
		r.stripANSI = on
	}
}

// Renderer renders notebooks to Markdown. The zero value is ready to use.
type Renderer struct {
	stripANSI bool
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Notebook renders every cell in document order, each followed by a newline.
func (r *Renderer) Notebook(nb *models.Notebook) string {
	var b strings.Builder
	for _, c := range nb.Cells() {
		b.WriteString(r.Cell(c))
		b.WriteString("\n")
	}
	return b.String()
}

// Cell renders one cell. Markdown cells are emitted verbatim; code cells
// are fenced and followed by their outputs block.
func (r *Renderer) Cell(c models.Cell) string {
	switch c.Type() {
	case models.CellCode:
		outputs, _ := c.Outputs()
		return fenced(c.SourceText()) + "\n" + r.Outputs(outputs)
	default:
		return c.SourceText() + "\n"
	}
}

// Outputs renders the outputs block of a code cell: nothing when there are
// no outputs, otherwise the joined output text fenced once under an
// "Output" heading line.
func (r *Renderer) Outputs(outputs []models.Output) string {
	if len(outputs) == 0 {
		return ""
	}
	texts := make([]string, 0, len(outputs))
	for _, o := range outputs {
		texts = append(texts, r.OutputText(o))
	}
	body := strings.TrimSpace(strings.Join(texts, "\n"))
	return outputHeading + "\n" + fenced(body) + "\n"
}

// Output renders a single output standalone, in its own fenced block.
func (r *Renderer) Output(o models.Output) string {
	return fenced(r.OutputText(o))
}

// OutputText is the raw text of an output. Error outputs start with the
// error value on its own line, followed by the traceback.
func (r *Renderer) OutputText(o models.Output) string {
	text := o.TextString()
	if evalue, ok := o.ErrorValue(); ok {
		text = evalue + "\n" + text
	}
	if r.stripANSI {
		text = ansi.Strip(text)
	}
	return text
}

func fenced(s string) string {
	return fence + "\n" + s + "\n" + fence
}

var defaultRenderer = &Renderer{}

// Notebook renders nb with default options.
func Notebook(nb *models.Notebook) string { return defaultRenderer.Notebook(nb) }

// Cell renders c with default options.
func Cell(c models.Cell) string { return defaultRenderer.Cell(c) }

// Output renders o standalone with default options.
func Output(o models.Output) string { return defaultRenderer.Output(o) }
