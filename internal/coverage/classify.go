package coverage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// LineStatus is the coverage tag of one line
type LineStatus uint8

const (
	StatusUncovered LineStatus = iota // Ordinary line outside a test block
	StatusCovered                     // Ordinary line inside a test block
	StatusIgnored                     // Annotation line, counted in neither set
)

func (s LineStatus) String() string {
	switch s {
	case StatusCovered:
		return "covered"
	case StatusIgnored:
		return "ignored"
	default:
		return "uncovered"
	}
}

// LineClassification tags every line of a file exactly once, so covered,
// uncovered and ignored always partition 1..Len()
type LineClassification struct {
	statuses []LineStatus
}

// NewLineClassification copies statuses; statuses[0] is line 1
func NewLineClassification(statuses []LineStatus) LineClassification {
	return LineClassification{statuses: append([]LineStatus(nil), statuses...)}
}

// Len returns the number of lines
func (c LineClassification) Len() int { return len(c.statuses) }

// Status returns the tag of a 1-based line
func (c LineClassification) Status(line int) (LineStatus, bool) {
	if line < 1 || line > len(c.statuses) {
		return 0, false
	}
	return c.statuses[line-1], true
}

// Covered returns the covered line numbers in ascending order
func (c LineClassification) Covered() []int { return c.collect(StatusCovered) }

// Uncovered returns the uncovered line numbers in ascending order
func (c LineClassification) Uncovered() []int { return c.collect(StatusUncovered) }

// Ignored returns the annotation line numbers in ascending order
func (c LineClassification) Ignored() []int { return c.collect(StatusIgnored) }

func (c LineClassification) collect(want LineStatus) []int {
	lines := make([]int, 0)
	for i, s := range c.statuses {
		if s == want {
			lines = append(lines, i+1)
		}
	}
	return lines
}

// TestBlockPayload is the structured content of an open-test-block marker.
// Other keys (test actions) are allowed and ignored here.
type TestBlockPayload struct {
	File string `json:"file,omitempty"`
	ID   string `json:"id,omitempty"`
}

// UnmarshalJSON accepts an id of any JSON type. A non-string id is kept
// as its raw JSON text.
func (p *TestBlockPayload) UnmarshalJSON(data []byte) error {
	var raw struct {
		File string          `json:"file"`
		ID   json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = TestBlockPayload{File: raw.File}
	if len(raw.ID) == 0 || string(raw.ID) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw.ID, &p.ID); err != nil {
		p.ID = string(raw.ID)
	}
	return nil
}

// ParseTestBlockPayload decodes the JSON object embedded in an open marker
func ParseTestBlockPayload(raw string) (TestBlockPayload, error) {
	var payload TestBlockPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return TestBlockPayload{}, fmt.Errorf("parse test annotation %q: %w", raw, err)
	}
	return payload, nil
}

// SplitLines splits content on \r\n, \r or \n. A trailing line break ends
// the last line rather than starting an empty one.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = lineBreaks.Replace(content)
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n")
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Classify runs the test-block state machine over the lines of one file.
// References to external test specs are checked through resolver when it
// is not nil.
func Classify(profile *FileTypeProfile, path string, lines []string, resolver Resolver) (LineClassification, []CoverageError) {
	statuses := make([]LineStatus, len(lines))
	var errs []CoverageError
	inside := false

	for i, line := range lines {
		lineNumber := i + 1

		switch {
		case containsMarker(line, profile.OpenTestStatement):
			inside = true
			statuses[i] = StatusIgnored

			payload, err := ParseTestBlockPayload(extractPayload(line, profile.OpenTestStatement, profile.CloseTestStatement))
			if err != nil {
				errs = append(errs, CoverageError{
					File:        path,
					Line:        lineNumber,
					Kind:        KindMalformedAnnotation,
					Description: fmt.Sprintf("Malformed test annotation: %v.", err),
				})
				continue
			}
			if payload.File == "" || resolver == nil {
				continue
			}
			if resolved, err := resolver.Resolve(filepath.Dir(path), payload); err != nil {
				errs = append(errs, CoverageError{
					File:        path,
					Line:        lineNumber,
					Kind:        KindMissingReference,
					Description: fmt.Sprintf("Referenced test spec missing: %s.", resolved),
				})
			}

		case containsMarker(line, profile.TestIgnoreStatement):
			// Content after an ignore annotation counts as covered
			inside = true
			statuses[i] = StatusIgnored

		case containsMarker(line, profile.TestEndStatement):
			inside = false
			statuses[i] = StatusIgnored

		case containsMarker(line, profile.StepStatementOpen) && containsMarker(line, profile.StepStatementClose):
			statuses[i] = StatusIgnored

		case inside:
			statuses[i] = StatusCovered

		default:
			statuses[i] = StatusUncovered
		}
	}

	return LineClassification{statuses: statuses}, errs
}

// containsMarker never matches an unset marker
func containsMarker(line, marker string) bool {
	return marker != "" && strings.Contains(line, marker)
}

// extractPayload returns the text between the open marker and the last
// close marker, or the end of the line
func extractPayload(line, open, close string) string {
	start := strings.Index(line, open) + len(open)
	end := len(line)
	if close != "" {
		if idx := strings.LastIndex(line, close); idx >= start {
			end = idx
		}
	}
	return line[start:end]
}
