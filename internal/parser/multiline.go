package parser

import (
	"encoding/json"
	"errors"
	"strings"
)

// multiline is a notebook text field. The format allows either a list of
// lines or a single string; both decode to the same line sequence.
type multiline []string

func (m *multiline) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil && list != nil {
		*m = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("expected a string or an array of strings")
	}
	*m = splitLines(s)
	return nil
}

// splitLines splits s after each newline. Joining the result without
// separators gives back s.
func splitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
