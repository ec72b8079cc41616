package coverage

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// ErrorKind classifies a non-fatal CoverageError
type ErrorKind string

const (
	KindMissingReference    ErrorKind = "missing-reference"
	KindMalformedAnnotation ErrorKind = "malformed-annotation"
	KindInvalidPattern      ErrorKind = "invalid-pattern"
	KindReadFailure         ErrorKind = "read-failure"
)

// CoverageError is a non-fatal problem found while analyzing a file.
// Line is zero when the problem is not tied to a line.
type CoverageError struct {
	File        string    `json:"file" yaml:"file"`
	Line        int       `json:"lineNumber,omitempty" yaml:"lineNumber,omitempty"`
	Kind        ErrorKind `json:"kind" yaml:"kind"`
	Description string    `json:"description" yaml:"description"`
}

func (e CoverageError) String() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Description)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Description)
}

// ErrNoProfile is wrapped by ConfigurationError
var ErrNoProfile = errors.New("no file type profile")

// ConfigurationError aborts a run: a file has an extension without a
// FileTypeProfile, so its markers are unknown
type ConfigurationError struct {
	Extension string
	File      string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v for the %q extension (%s): specify options for it in your config", ErrNoProfile, e.Extension, e.File)
}

func (e *ConfigurationError) Unwrap() error { return ErrNoProfile }

// PatternError reports a markup regex that failed to compile
type PatternError struct {
	Category string
	Pattern  string
	Err      error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid regex %q for markup %q: %v", e.Pattern, e.Category, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// MergeErrors concatenates error lists into a new slice ordered by file,
// line, kind and description, so the result does not depend on the order
// files finished in. Inputs are not modified.
func MergeErrors(lists ...[]CoverageError) []CoverageError {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	merged := make([]CoverageError, 0, n)
	for _, l := range lists {
		merged = append(merged, l...)
	}
	slices.SortStableFunc(merged, func(a, b CoverageError) int {
		return cmp.Or(
			cmp.Compare(a.File, b.File),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.Description, b.Description),
		)
	})
	return merged
}
