package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/nbmark/internal/apperr"
	"github.com/starford/nbmark/internal/models"
	"github.com/starford/nbmark/internal/testutil/fixture"
)

func TestParse_Sample(t *testing.T) {
	nb, err := Parse("sales.ipynb", []byte(fixture.Sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if nb.Path() != "sales.ipynb" {
		t.Errorf("path = %q", nb.Path())
	}
	if nb.NBFormat() != 4 || nb.NBFormatMinor() != 5 {
		t.Errorf("version = %d.%d, want 4.5", nb.NBFormat(), nb.NBFormatMinor())
	}
	cells := nb.Cells()
	if len(cells) != 7 {
		t.Fatalf("len(cells) = %d, want 7", len(cells))
	}

	var ids []string
	var kinds []models.CellType
	for _, c := range cells {
		ids = append(ids, c.ID())
		kinds = append(kinds, c.Type())
	}
	wantIDs := []string{"intro", "load", "results", "total", "broken", "pending", "outro"}
	if diff := cmp.Diff(wantIDs, ids); diff != "" {
		t.Errorf("cell order (-want +got):\n%s", diff)
	}
	wantKinds := []models.CellType{
		models.CellMarkdown, models.CellCode, models.CellMarkdown, models.CellCode,
		models.CellCode, models.CellCode, models.CellMarkdown,
	}
	if diff := cmp.Diff(wantKinds, kinds); diff != "" {
		t.Errorf("cell kinds (-want +got):\n%s", diff)
	}

	if got := cells[1].SourceText(); got != "data = load()\nprint('loaded')" {
		t.Errorf("source = %q", got)
	}
	if got := cells[6].Source(); !cmp.Equal(got, []string{"The end.\n", "Thanks."}) {
		t.Errorf("string source split = %q", got)
	}

	outs, _ := cells[1].Outputs()
	wantOuts := []models.Output{models.NewStreamOutput("stdout", []string{"loading data\n", "loaded\n"})}
	if diff := cmp.Diff(wantOuts, outs, allowOutput); diff != "" {
		t.Errorf("stream outputs (-want +got):\n%s", diff)
	}
	outs, _ = cells[4].Outputs()
	if len(outs) != 1 || !outs[0].IsError() || outs[0].Name() != "ZeroDivisionError" {
		t.Errorf("error outputs = %+v", outs)
	}

	if n, ok := cells[3].ExecutionCount(); !ok || n != 2 {
		t.Errorf("execution count = %d, %v", n, ok)
	}
	if _, ok := cells[5].ExecutionCount(); ok {
		t.Error("null execution_count must be absent")
	}
}

func TestParse_CellShape(t *testing.T) {
	nb, err := Parse("sales.ipynb", []byte(fixture.Sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, c := range nb.Cells() {
		outs, hasOutputs := c.Outputs()
		_, hasCount := c.ExecutionCount()
		switch c.Type() {
		case models.CellCode:
			if !hasOutputs || outs == nil {
				t.Errorf("code cell %s: outputs absent", c.ID())
			}
		case models.CellMarkdown:
			if hasOutputs || hasCount {
				t.Errorf("markdown cell %s: outputs=%v count=%v", c.ID(), hasOutputs, hasCount)
			}
		}
	}
}

func TestParse_Minimal(t *testing.T) {
	nb, err := Parse("empty.ipynb", []byte(fixture.Minimal))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if nb.Len() != 0 || nb.NBFormatMinor() != 2 {
		t.Errorf("nb = %d cells, minor %d", nb.Len(), nb.NBFormatMinor())
	}
}

func TestParse_ToleratesBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, fixture.Minimal...)
	if _, err := Parse("bom.ipynb", data); err != nil {
		t.Fatalf("Parse with BOM: %v", err)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name     string
		doc      string
		kind     error
		location string
	}{
		{
			name: "not json",
			doc:  `{"nbformat": 4,`,
			kind: apperr.ErrMalformedDocument,
		},
		{
			name: "invalid utf8",
			doc:  "{\"nbformat\": 4, \"x\": \"\xff\"}",
			kind: apperr.ErrMalformedDocument,
		},
		{
			name: "root is array",
			doc:  `[]`,
			kind: apperr.ErrMalformedDocument,
		},
		{
			name: "missing nbformat",
			doc:  `{"nbformat_minor": 1, "cells": []}`,
			kind: apperr.ErrMissingField,
		},
		{
			name: "nbformat out of range",
			doc:  `{"nbformat": 256, "nbformat_minor": 1, "cells": []}`,
			kind: apperr.ErrMissingField,
		},
		{
			name: "negative minor",
			doc:  `{"nbformat": 4, "nbformat_minor": -1, "cells": []}`,
			kind: apperr.ErrMissingField,
		},
		{
			name: "nbformat as string",
			doc:  `{"nbformat": "4", "nbformat_minor": 1, "cells": []}`,
			kind: apperr.ErrMissingField,
		},
		{
			name:     "cell missing id",
			doc:      `{"nbformat": 4, "nbformat_minor": 5, "cells": [{"cell_type": "markdown", "id": "a", "source": []}, {"cell_type": "markdown", "source": []}]}`,
			kind:     apperr.ErrMissingField,
			location: "/cells/1",
		},
		{
			name:     "code cell missing outputs",
			doc:      `{"nbformat": 4, "nbformat_minor": 5, "cells": [{"cell_type": "code", "id": "a", "source": [], "execution_count": null}]}`,
			kind:     apperr.ErrMissingField,
			location: "/cells/0",
		},
		{
			name:     "code cell missing execution_count",
			doc:      `{"nbformat": 4, "nbformat_minor": 5, "cells": [{"cell_type": "code", "id": "a", "source": [], "outputs": []}]}`,
			kind:     apperr.ErrMissingField,
			location: "/cells/0",
		},
		{
			name:     "invalid cell type",
			doc:      `{"nbformat": 4, "nbformat_minor": 5, "cells": [{"cell_type": "raw", "id": "a", "source": []}]}`,
			kind:     apperr.ErrInvalidDiscriminator,
			location: "/cells/0/cell_type",
		},
		{
			name:     "unknown output type",
			doc:      `{"nbformat": 4, "nbformat_minor": 5, "cells": [{"cell_type": "code", "id": "a", "source": [], "execution_count": 1, "outputs": [{"output_type": "unknown"}]}]}`,
			kind:     apperr.ErrMalformedOutput,
			location: "/cells/0/outputs/0/output_type",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			nb, err := Parse("bad.ipynb", []byte(tc.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if nb != nil {
				t.Error("a failed parse must not return a partial notebook")
			}
			if !errors.Is(err, tc.kind) {
				t.Fatalf("err = %v, want kind %v", err, tc.kind)
			}
			if tc.location != "" && !strings.Contains(err.Error(), tc.location) {
				t.Errorf("err = %q, want location %q", err.Error(), tc.location)
			}
		})
	}
}

func TestParse_MetadataDiscarded(t *testing.T) {
	doc := `{"nbformat": 4, "nbformat_minor": 5, "metadata": {"anything": [1, 2, {"x": null}]}, "cells": [
		{"cell_type": "markdown", "id": "a", "metadata": {"foreign": true}, "source": "hi"}
	]}`
	nb, err := Parse("meta.ipynb", []byte(doc))
	if err != nil {
		t.Fatalf("foreign metadata must not be rejected: %v", err)
	}
	if nb.Metadata() != (models.Metadata{}) || nb.Cells()[0].Metadata() != (models.Metadata{}) {
		t.Error("metadata must be empty")
	}
}

func TestSplitLines(t *testing.T) {
	cases := map[string][]string{
		"":           {},
		"one":        {"one"},
		"a\nb\n":     {"a\n", "b\n"},
		"a\n\nb":     {"a\n", "\n", "b"},
		"trailing\n": {"trailing\n"},
	}
	for in, want := range cases {
		got := splitLines(in)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("splitLines(%q) (-want +got):\n%s", in, diff)
		}
		if strings.Join(got, "") != in {
			t.Errorf("splitLines(%q) does not round-trip", in)
		}
	}
}
