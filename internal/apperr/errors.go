// Package apperr defines the error kinds shared across nbmark.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Notebook parse failures. Every parse error matches exactly one of these.
	ErrMalformedDocument    = errors.New("malformed document")
	ErrMissingField         = errors.New("missing required field")
	ErrInvalidDiscriminator = errors.New("invalid discriminator")
	ErrMalformedOutput      = errors.New("malformed output record")

	ErrIO          = errors.New("io failure")
	ErrUnsupported = errors.New("unsupported")
)

// Issue is a single problem found at a location inside a document.
// Location is a JSON pointer ("/cells/3/id"); empty means the document root.
type Issue struct {
	Location string
	Message  string
}

func (i Issue) String() string {
	loc := i.Location
	if loc == "" {
		loc = "/"
	}
	if i.Message == "" {
		return loc
	}
	return loc + ": " + i.Message
}

// ValidationError reports why a document was rejected. Kind is one of the
// parse sentinels above and is what errors.Is matches against.
type ValidationError struct {
	Kind   error
	Issues []Issue
}

// Invalid builds a ValidationError with a single issue.
func Invalid(kind error, location, format string, args ...any) *ValidationError {
	return &ValidationError{
		Kind:   kind,
		Issues: []Issue{{Location: location, Message: fmt.Sprintf(format, args...)}},
	}
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return e.Kind.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.String())
	}
	return e.Kind.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// At returns a copy of e with every issue location prefixed by base.
func (e *ValidationError) At(base string) *ValidationError {
	out := &ValidationError{Kind: e.Kind, Issues: make([]Issue, len(e.Issues))}
	for i, issue := range e.Issues {
		issue.Location = base + issue.Location
		out.Issues[i] = issue
	}
	return out
}

// IOError is a failed read or write. It unwraps to the underlying OS error
// (so errors.Is(err, fs.ErrNotExist) works) and also matches ErrIO.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// UnsupportedError is returned for operations or formats nbmark does not implement.
type UnsupportedError struct {
	Feature string
	Reason  string
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

// IsParseError reports whether err is one of the notebook parse kinds.
func IsParseError(err error) bool {
	return errors.Is(err, ErrMalformedDocument) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidDiscriminator) ||
		errors.Is(err, ErrMalformedOutput)
}
