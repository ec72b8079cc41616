// Package output serializes coverage reports.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/gubarz/doccov/internal/coverage"
)

// Format is a report encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for formats other than json and yaml
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat validates a format name
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case FormatJSON, FormatYAML:
		return Format(name), nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q (supported: json, yaml)", ErrUnknownFormat, name)
}

// Summary is the serialized form of coverage.Summary
type Summary struct {
	Files            int     `json:"files" yaml:"files"`
	CoveredLines     int     `json:"coveredLines" yaml:"coveredLines"`
	UncoveredLines   int     `json:"uncoveredLines" yaml:"uncoveredLines"`
	IgnoredLines     int     `json:"ignoredLines" yaml:"ignoredLines"`
	Percent          float64 `json:"percent" yaml:"percent"`
	CoveredMatches   int     `json:"coveredMatches" yaml:"coveredMatches"`
	UncoveredMatches int     `json:"uncoveredMatches" yaml:"uncoveredMatches"`
	Errors           int     `json:"errors" yaml:"errors"`
}

// Document is what gets written: the report plus a run id and summary
type Document struct {
	RunID                   string  `json:"runId" yaml:"runId"`
	Summary                 Summary `json:"summary" yaml:"summary"`
	coverage.CoverageReport `yaml:",inline"`
}

// NewDocument wraps a report for serialization
func NewDocument(report *coverage.CoverageReport) *Document {
	s := report.Summary()
	return &Document{
		RunID: uuid.NewString(),
		Summary: Summary{
			Files:            s.Files,
			CoveredLines:     s.CoveredLines,
			UncoveredLines:   s.UncoveredLines,
			IgnoredLines:     s.IgnoredLines,
			Percent:          s.Percent(),
			CoveredMatches:   s.CoveredMatches,
			UncoveredMatches: s.UncoveredMatches,
			Errors:           s.Errors,
		},
		CoverageReport: *report,
	}
}

// Write encodes doc to w
func Write(w io.Writer, doc *Document, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// WriteFile encodes doc to path, creating parent directories
func WriteFile(fs afero.Fs, path string, doc *Document, format Format) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := Write(f, doc, format); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
