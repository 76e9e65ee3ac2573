package notebook

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/nbmark/internal/apperr"
	"github.com/starford/nbmark/internal/render"
	"github.com/starford/nbmark/internal/testutil/fixture"
)

func openSample(t *testing.T) (*Notebook, string) {
	t.Helper()
	dir := t.TempDir()
	path := fixture.Write(t, dir, "sample.ipynb", fixture.Sample)
	nb, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return nb, dir
}

func TestOpen(t *testing.T) {
	nb, dir := openSample(t)
	if nb.Path() != filepath.Join(dir, "sample.ipynb") {
		t.Errorf("Path = %q", nb.Path())
	}
	if nb.NBFormat() != 4 || nb.NBFormatMinor() != 5 {
		t.Errorf("version = %d.%d, want 4.5", nb.NBFormat(), nb.NBFormatMinor())
	}
	if got := len(nb.Cells()); got != 7 {
		t.Errorf("cells = %d, want 7", got)
	}
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.ipynb"))
	if !errors.Is(err, apperr.ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want to unwrap to fs.ErrNotExist", err)
	}
	if apperr.IsParseError(err) {
		t.Error("read failure must not look like a parse error")
	}
}

func TestOpen_ParseErrorPropagated(t *testing.T) {
	path := fixture.Write(t, t.TempDir(), "bad.ipynb", `{"nbformat": 4, "nbformat_minor": 5, "cells": [{"cell_type": "markdown", "source": []}]}`)
	_, err := Open(path)
	if !errors.Is(err, apperr.ErrMissingField) {
		t.Fatalf("err = %v, want ErrMissingField", err)
	}
	if errors.Is(err, apperr.ErrIO) {
		t.Error("parse failure must not look like an I/O error")
	}
}

func TestLoad_FailureKeepsPreviousDocument(t *testing.T) {
	nb, dir := openSample(t)
	bad := fixture.Write(t, dir, "bad.ipynb", `not json`)
	if err := nb.Load(bad); !errors.Is(err, apperr.ErrMalformedDocument) {
		t.Fatalf("Load: err = %v, want ErrMalformedDocument", err)
	}
	if len(nb.Cells()) != 7 {
		t.Errorf("document replaced by failed load: %d cells", len(nb.Cells()))
	}
}

func TestLoad_Replaces(t *testing.T) {
	nb, dir := openSample(t)
	other := fixture.Write(t, dir, "min.ipynb", fixture.Minimal)
	if err := nb.Load(other); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if nb.Path() != other || len(nb.Cells()) != 0 || nb.NBFormatMinor() != 2 {
		t.Errorf("got path=%q cells=%d minor=%d", nb.Path(), len(nb.Cells()), nb.NBFormatMinor())
	}
}

func TestExport_Markdown(t *testing.T) {
	nb, dir := openSample(t)
	out := filepath.Join(dir, "sample.md")
	if err := os.WriteFile(out, []byte(strings.Repeat("stale ", 1000)), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := nb.Export(out, FormatMarkdown); err != nil {
		t.Fatalf("Export: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != fixture.SampleMarkdown {
		t.Errorf("exported markdown mismatch:\n%s", got)
	}
}

func TestExport_UnwritablePath(t *testing.T) {
	nb, dir := openSample(t)
	err := nb.Export(filepath.Join(dir, "no", "such", "dir", "out.md"), FormatMarkdown)
	if !errors.Is(err, apperr.ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
	var ioErr *apperr.IOError
	if !errors.As(err, &ioErr) || ioErr.Op != "write" {
		t.Errorf("err = %#v, want write IOError", err)
	}
}

func TestExport_UnsupportedFormat(t *testing.T) {
	nb, dir := openSample(t)
	out := filepath.Join(dir, "out.html")
	if err := nb.Export(out, Format("html")); !errors.Is(err, apperr.ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
	if _, err := os.Stat(out); !errors.Is(err, fs.ErrNotExist) {
		t.Error("unsupported export must not create a file")
	}
}

func TestSave_Unsupported(t *testing.T) {
	nb, _ := openSample(t)
	if err := nb.Save(); !errors.Is(err, apperr.ErrUnsupported) {
		t.Fatalf("Save: err = %v, want ErrUnsupported", err)
	}
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"markdown", "Markdown", " md "} {
		f, err := ParseFormat(in)
		if err != nil || f != FormatMarkdown {
			t.Errorf("ParseFormat(%q) = %q, %v", in, f, err)
		}
	}
	if _, err := ParseFormat("pdf"); !errors.Is(err, apperr.ErrUnsupported) {
		t.Errorf("ParseFormat(pdf): err = %v, want ErrUnsupported", err)
	}
}

type memIO map[string][]byte

func (m memIO) Read(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (m memIO) Write(path string, content []byte) error {
	m[path] = content
	return nil
}

func TestWithFileIOAndRenderer(t *testing.T) {
	files := memIO{"nb.ipynb": []byte(`{
 "nbformat": 4, "nbformat_minor": 5, "cells": [
  {"cell_type": "code", "id": "c", "source": "print()", "execution_count": 1,
   "outputs": [{"output_type": "stream", "name": "stdout", "text": "\u001b[31mred\u001b[0m\n"}]}
 ]}`)}
	nb, err := Open("nb.ipynb", WithFileIO(files), WithRenderer(render.New(render.WithStripANSI(true))))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := nb.Export("nb.md", FormatMarkdown); err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := "```\nprint()\n```\nOutput\n```\nred\n```\n\n"
	if got := string(files["nb.md"]); got != want {
		t.Errorf("markdown = %q, want %q", got, want)
	}
}
