package coverage

import (
	"errors"
	"fmt"
	"strings"
)

// MarkupRule describes one markup category tracked for coverage
type MarkupRule struct {
	Name                 string   `json:"name" yaml:"name" mapstructure:"name"`
	Regex                []string `json:"regex" yaml:"regex" mapstructure:"regex"`
	IncludeInCoverage    bool     `json:"includeInCoverage" yaml:"includeInCoverage" mapstructure:"includeInCoverage"`
	IncludeInSuggestions bool     `json:"includeInSuggestions" yaml:"includeInSuggestions" mapstructure:"includeInSuggestions"`
}

// FileTypeProfile holds the marker strings and markup rules for a set of
// file extensions
type FileTypeProfile struct {
	Name                string       `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Extensions          []string     `json:"extensions" yaml:"extensions" mapstructure:"extensions"`
	OpenTestStatement   string       `json:"openTestStatement" yaml:"openTestStatement" mapstructure:"openTestStatement"`
	CloseTestStatement  string       `json:"closeTestStatement" yaml:"closeTestStatement" mapstructure:"closeTestStatement"`
	TestIgnoreStatement string       `json:"testIgnoreStatement" yaml:"testIgnoreStatement" mapstructure:"testIgnoreStatement"`
	TestEndStatement    string       `json:"testEndStatement" yaml:"testEndStatement" mapstructure:"testEndStatement"`
	StepStatementOpen   string       `json:"stepStatementOpen" yaml:"stepStatementOpen" mapstructure:"stepStatementOpen"`
	StepStatementClose  string       `json:"stepStatementClose" yaml:"stepStatementClose" mapstructure:"stepStatementClose"`
	Markup              []MarkupRule `json:"markup" yaml:"markup" mapstructure:"markup"`
}

// Validate reports profiles that cannot drive the line classifier
func (p *FileTypeProfile) Validate() error {
	var errs []error
	if len(p.Extensions) == 0 {
		errs = append(errs, errors.New("no extensions"))
	}
	for _, ext := range p.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("extension %q must include the leading period", ext))
		}
	}
	if p.OpenTestStatement == "" {
		errs = append(errs, errors.New("openTestStatement is empty"))
	}
	if p.TestEndStatement == "" {
		errs = append(errs, errors.New("testEndStatement is empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("file type %s: %w", p.label(), err)
	}
	return nil
}

func (p *FileTypeProfile) label() string {
	if p.Name != "" {
		return p.Name
	}
	return strings.Join(p.Extensions, ",")
}

// Profiles is an extension to profile lookup
type Profiles struct {
	byExt map[string]*FileTypeProfile
}

// NewProfiles indexes profiles by extension. When two profiles claim the
// same extension the first one wins.
func NewProfiles(list []FileTypeProfile) Profiles {
	p := Profiles{byExt: make(map[string]*FileTypeProfile)}
	for i := range list {
		profile := list[i]
		for _, ext := range profile.Extensions {
			if _, ok := p.byExt[ext]; !ok {
				p.byExt[ext] = &profile
			}
		}
	}
	return p
}

// Lookup returns the profile for an extension (including the leading
// period), or nil
func (p Profiles) Lookup(ext string) *FileTypeProfile {
	return p.byExt[ext]
}
