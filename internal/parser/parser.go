// Package parser decodes notebook documents into the typed model.
//
// Decoding happens in two passes: the raw JSON tree is first checked against
// a JSON schema for required fields and their types, then decoded into typed
// records whose discriminators are converted with total parse functions.
// Any failure aborts the whole document.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/starford/nbmark/internal/apperr"
	"github.com/starford/nbmark/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type rawDocument struct {
	NBFormat      uint8     `json:"nbformat"`
	NBFormatMinor uint8     `json:"nbformat_minor"`
	Cells         []rawCell `json:"cells"`
}

type rawCell struct {
	CellType       string            `json:"cell_type"`
	ID             string            `json:"id"`
	Source         multiline         `json:"source"`
	Outputs        []json.RawMessage `json:"outputs"`
	ExecutionCount *int              `json:"execution_count"`
}

// Parse decodes a notebook document read from path. The returned errors
// match one of apperr.ErrMalformedDocument, apperr.ErrMissingField,
// apperr.ErrInvalidDiscriminator or apperr.ErrMalformedOutput.
func Parse(path string, data []byte) (*models.Notebook, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, apperr.Invalid(apperr.ErrMalformedDocument, "", "document is not valid UTF-8")
	}

	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, apperr.Invalid(apperr.ErrMalformedDocument, "", "invalid JSON: %v", err)
	}
	if _, ok := tree.(map[string]any); !ok {
		return nil, apperr.Invalid(apperr.ErrMalformedDocument, "", "document root is not an object")
	}
	if err := validateDocument(tree); err != nil {
		return nil, err
	}

	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Invalid(apperr.ErrMissingField, "", "%v", err)
	}

	cells := make([]models.Cell, 0, len(doc.Cells))
	for i, rc := range doc.Cells {
		cell, err := rc.toCell()
		if err != nil {
			return nil, locate(err, fmt.Sprintf("/cells/%d", i))
		}
		cells = append(cells, cell)
	}
	return models.NewNotebook(path, doc.NBFormat, doc.NBFormatMinor, cells), nil
}

func (c rawCell) toCell() (models.Cell, error) {
	kind, err := models.ParseCellType(c.CellType)
	if err != nil {
		return models.Cell{}, locate(err, "/cell_type")
	}

	switch kind {
	case models.CellMarkdown:
		return models.NewMarkdownCell(c.ID, c.Source), nil
	case models.CellCode:
		outputs := make([]models.Output, 0, len(c.Outputs))
		for i, raw := range c.Outputs {
			out, err := NormalizeOutput(raw)
			if err != nil {
				return models.Cell{}, locate(err, fmt.Sprintf("/outputs/%d", i))
			}
			outputs = append(outputs, out)
		}
		return models.NewCodeCell(c.ID, c.Source, outputs, c.ExecutionCount), nil
	}
	return models.Cell{}, apperr.Invalid(apperr.ErrInvalidDiscriminator, "/cell_type", "invalid cell type %q", c.CellType)
}

// locate prefixes the issue locations of a validation error with base.
func locate(err error, base string) error {
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		return verr.At(base)
	}
	return err
}
