package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/nbmark/internal/notebook"
	"github.com/starford/nbmark/internal/render"
	"github.com/starford/nbmark/internal/storage"
)

// exportNotebook writes the Markdown for the notebook at in. out defaults
// to <stem>.md in the working directory. It returns the path written.
func exportNotebook(in, out, typ string, stripANSI bool) (string, error) {
	format, err := notebook.ParseFormat(typ)
	if err != nil {
		return "", err
	}
	if fi, err := os.Stat(in); err != nil || fi.IsDir() || !strings.EqualFold(filepath.Ext(in), storage.NotebookExt) {
		return "", fmt.Errorf("the path '%s' wasn't found or is not a %s file", in, storage.NotebookExt)
	}

	nb, err := notebook.Open(in, notebook.WithRenderer(render.New(render.WithStripANSI(stripANSI))))
	if err != nil {
		return "", err
	}
	if out == "" {
		out = strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)) + ".md"
	}
	if err := nb.Export(out, format); err != nil {
		return "", err
	}
	return out, nil
}

// showNotebook renders the notebook at in for the terminal.
func showNotebook(w io.Writer, in, style string, width int, stripANSI bool) error {
	nb, err := notebook.Open(in, notebook.WithRenderer(render.New(render.WithStripANSI(stripANSI))))
	if err != nil {
		return err
	}
	out, err := render.Terminal(nb.Markdown(), style, width)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
