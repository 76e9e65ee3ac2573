package parser

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/starford/nbmark/internal/apperr"
)

// documentSchema describes the structural shape the parser relies on:
// required fields and their JSON types. Discriminator values and output
// shapes are checked afterwards so they can report their own error kinds.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["nbformat", "nbformat_minor", "cells"],
  "properties": {
    "nbformat": {"$ref": "#/$defs/version"},
    "nbformat_minor": {"$ref": "#/$defs/version"},
    "cells": {"type": "array", "items": {"$ref": "#/$defs/cell"}}
  },
  "$defs": {
    "version": {"type": "integer", "minimum": 0, "maximum": 255},
    "multiline": {
      "anyOf": [
        {"type": "string"},
        {"type": "array", "items": {"type": "string"}}
      ]
    },
    "cell": {
      "type": "object",
      "required": ["cell_type", "id", "source"],
      "properties": {
        "cell_type": {"type": "string"},
        "id": {"type": "string"},
        "source": {"$ref": "#/$defs/multiline"},
        "outputs": {"type": "array"},
        "execution_count": {"type": ["integer", "null"]}
      },
      "if": {
        "required": ["cell_type"],
        "properties": {"cell_type": {"const": "code"}}
      },
      "then": {"required": ["outputs", "execution_count"]}
    }
  }
}`

const schemaURL = "notebook.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, strings.NewReader(documentSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile(schemaURL)
})

// validateDocument checks a decoded JSON tree against documentSchema. Any
// violation is reported as apperr.ErrMissingField: a required field is
// absent or has the wrong type.
func validateDocument(tree any) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("parser: compile schema: %w", err)
	}
	if err := schema.Validate(tree); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return &apperr.ValidationError{Kind: apperr.ErrMissingField, Issues: schemaIssues(verr)}
		}
		return apperr.Invalid(apperr.ErrMalformedDocument, "", "%v", err)
	}
	return nil
}

func schemaIssues(err *jsonschema.ValidationError) []apperr.Issue {
	var issues []apperr.Issue
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if len(node.Causes) == 0 {
			issues = append(issues, apperr.Issue{
				Location: node.InstanceLocation,
				Message:  node.Message,
			})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(err)
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Location < issues[j].Location })
	return issues
}
