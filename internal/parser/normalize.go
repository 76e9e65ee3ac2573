package parser

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/nbmark/internal/apperr"
	"github.com/starford/nbmark/internal/models"
)

// outputRecord is the closed set of raw output shapes the notebook format
// allows. Each shape reduces itself to the canonical models.Output.
type outputRecord interface {
	validation.Validatable
	canonical() models.Output
}

var (
	_ outputRecord = (*streamRecord)(nil)
	_ outputRecord = (*executeResultRecord)(nil)
	_ outputRecord = (*errorRecord)(nil)
)

type streamRecord struct {
	Name *string    `json:"name"`
	Text *multiline `json:"text"`
}

func (r *streamRecord) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.NotNil),
		validation.Field(&r.Text, validation.NotNil),
	)
}

func (r *streamRecord) canonical() models.Output {
	return models.NewStreamOutput(*r.Name, *r.Text)
}

type mimeBundle struct {
	TextPlain *multiline `json:"text/plain"`
}

func (b *mimeBundle) Validate() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.TextPlain, validation.NotNil),
	)
}

type executeResultRecord struct {
	Data *mimeBundle `json:"data"`
}

func (r *executeResultRecord) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Data, validation.NotNil),
	)
}

func (r *executeResultRecord) canonical() models.Output {
	return models.NewResultOutput(*r.Data.TextPlain)
}

type errorRecord struct {
	Ename     *string    `json:"ename"`
	Evalue    *string    `json:"evalue"`
	Traceback *multiline `json:"traceback"`
}

func (r *errorRecord) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Ename, validation.NotNil),
		validation.Field(&r.Evalue, validation.NotNil),
		validation.Field(&r.Traceback, validation.NotNil),
	)
}

func (r *errorRecord) canonical() models.Output {
	return models.NewErrorOutput(*r.Ename, *r.Evalue, *r.Traceback)
}

// NormalizeOutput converts one raw output record into the canonical output
// shape. It fails with apperr.ErrMalformedOutput for non-object records,
// unknown output types and records missing their type-specific fields, and
// with apperr.ErrMissingField when output_type itself is absent.
func NormalizeOutput(raw json.RawMessage) (models.Output, error) {
	rec, err := decodeOutput(raw)
	if err != nil {
		return models.Output{}, err
	}
	return rec.canonical(), nil
}

func decodeOutput(raw json.RawMessage) (outputRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, apperr.Invalid(apperr.ErrMalformedOutput, "", "output record is not an object")
	}

	rawKind, ok := fields["output_type"]
	if !ok {
		return nil, apperr.Invalid(apperr.ErrMissingField, "/output_type", "is required")
	}
	var name string
	if err := json.Unmarshal(rawKind, &name); err != nil {
		return nil, apperr.Invalid(apperr.ErrMissingField, "/output_type", "must be a string")
	}
	kind, err := models.ParseOutputType(name)
	if err != nil {
		return nil, err
	}

	var rec outputRecord
	switch kind {
	case models.OutputStream:
		rec = &streamRecord{}
	case models.OutputExecuteResult:
		rec = &executeResultRecord{}
	case models.OutputError:
		rec = &errorRecord{}
	default:
		return nil, apperr.Invalid(apperr.ErrMalformedOutput, "/output_type", "unknown output type %q", name)
	}

	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, apperr.Invalid(apperr.ErrMalformedOutput, "", "%s record: %v", kind, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, &apperr.ValidationError{Kind: apperr.ErrMalformedOutput, Issues: fieldIssues("", err)}
	}
	return rec, nil
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// fieldIssues flattens (possibly nested) ozzo validation errors into issues
// keyed by JSON pointer, sorted by location.
func fieldIssues(base string, err error) []apperr.Issue {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return []apperr.Issue{{Location: base, Message: err.Error()}}
	}
	var issues []apperr.Issue
	for field, fieldErr := range errs {
		issues = append(issues, fieldIssues(base+"/"+pointerEscaper.Replace(field), fieldErr)...)
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].Location < issues[j].Location })
	return issues
}
