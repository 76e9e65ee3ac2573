package render

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/starford/nbmark/internal/models"
	"github.com/starford/nbmark/internal/parser"
	"github.com/starford/nbmark/internal/testutil/fixture"
)

func sample(t *testing.T) *models.Notebook {
	t.Helper()
	nb, err := parser.Parse("sales.ipynb", []byte(fixture.Sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return nb
}

// fencedBlocks parses md with goldmark and returns the contents of every
// fenced code block in document order.
func fencedBlocks(t *testing.T, md string) []string {
	t.Helper()
	src := []byte(md)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	var blocks []string
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindFencedCodeBlock {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		blocks = append(blocks, b.String())
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	return blocks
}

func TestNotebook_Sample(t *testing.T) {
	got := Notebook(sample(t))
	if diff := cmp.Diff(fixture.SampleMarkdown, got); diff != "" {
		t.Errorf("markdown mismatch (-want +got):\n%s", diff)
	}
}

func TestNotebook_Idempotent(t *testing.T) {
	nb := sample(t)
	first := Notebook(nb)
	second := Notebook(nb)
	if first != second {
		t.Error("rendering the same notebook twice must be byte-identical")
	}
}

func TestNotebook_FencedStructure(t *testing.T) {
	blocks := fencedBlocks(t, Notebook(sample(t)))
	want := []string{
		"data = load()\nprint('loaded')\n",
		"loading data\nloaded\n",
		"sum(data)\n",
		"42\n",
		"1 / 0\n",
		"division by zero\nTraceback (most recent call last):\nZeroDivisionError: division by zero\n",
		"plot(data)\n",
	}
	if diff := cmp.Diff(want, blocks); diff != "" {
		t.Errorf("fenced blocks (-want +got):\n%s", diff)
	}
}

func TestCell_Markdown(t *testing.T) {
	c := models.NewMarkdownCell("m", []string{"# Title\n", "body"})
	if got := Cell(c); got != "# Title\nbody\n" {
		t.Errorf("markdown cell = %q", got)
	}
}

func TestCell_CodeWithoutOutputs(t *testing.T) {
	c := models.NewCodeCell("c", []string{"x = 1"}, nil, nil)
	got := Cell(c)
	if got != "```\nx = 1\n```\n" {
		t.Errorf("code cell = %q", got)
	}
	if strings.Contains(got, outputHeading) {
		t.Error("empty outputs must not emit an Output heading")
	}
}

func TestOutputs_JoinedAndTrimmed(t *testing.T) {
	outs := []models.Output{
		models.NewStreamOutput("stdout", []string{"\n  first\n"}),
		models.NewStreamOutput("stderr", []string{"second\n\n"}),
	}
	got := New().Outputs(outs)
	want := "Output\n```\nfirst\n\nsecond\n```\n"
	if got != want {
		t.Errorf("outputs = %q, want %q", got, want)
	}
}

func TestOutput_ErrorStartsWithValue(t *testing.T) {
	o := models.NewErrorOutput("ValueError", "bad input", []string{"line 1\n", "line 2"})
	text := New().OutputText(o)
	if !strings.HasPrefix(text, "bad input\n") {
		t.Fatalf("error text = %q, want error value first", text)
	}
	if text != "bad input\nline 1\nline 2" {
		t.Errorf("error text = %q", text)
	}
	if got := Output(o); got != "```\nbad input\nline 1\nline 2\n```" {
		t.Errorf("standalone output = %q", got)
	}
}

func TestOutput_StripANSI(t *testing.T) {
	o := models.NewErrorOutput("NameError", "name 'x' is not defined",
		[]string{"\x1b[0;31mNameError\x1b[0m: name 'x' is not defined"})

	plain := New(WithStripANSI(true)).OutputText(o)
	if strings.Contains(plain, "\x1b") {
		t.Errorf("escape sequences left in %q", plain)
	}
	if plain != "name 'x' is not defined\nNameError: name 'x' is not defined" {
		t.Errorf("stripped = %q", plain)
	}

	raw := New().OutputText(o)
	if !strings.Contains(raw, "\x1b[0;31m") {
		t.Error("default rendering must keep output text verbatim")
	}
}

func TestTerminal(t *testing.T) {
	out, err := Terminal(Notebook(sample(t)), "notty", 60)
	if err != nil {
		t.Fatalf("Terminal: %v", err)
	}
	if !strings.Contains(out, "Sales analysis") {
		t.Errorf("terminal output missing heading:\n%s", out)
	}
}
