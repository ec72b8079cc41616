package coverage

import (
	"cmp"
	"regexp"
	"slices"
	"sort"
	"strings"
)

// MatchOccurrence is one physical occurrence of a matched markup text
type MatchOccurrence struct {
	Line   int    `json:"line" yaml:"line"`
	Offset int    `json:"indexInFile" yaml:"indexInFile"`
	Text   string `json:"text" yaml:"text"`
}

// MarkupCoverage is the coverage of one markup category in one file
type MarkupCoverage struct {
	IncludeInCoverage    bool              `json:"includeInCoverage" yaml:"includeInCoverage"`
	IncludeInSuggestions bool              `json:"includeInSuggestions" yaml:"includeInSuggestions"`
	CoveredLines         []int             `json:"coveredLines" yaml:"coveredLines"`
	CoveredMatches       []MatchOccurrence `json:"coveredMatches" yaml:"coveredMatches"`
	UncoveredLines       []int             `json:"uncoveredLines" yaml:"uncoveredLines"`
	UncoveredMatches     []MatchOccurrence `json:"uncoveredMatches" yaml:"uncoveredMatches"`
}

// MarkupResult is the outcome of matching a profile's markup rules
// against one file
type MarkupResult struct {
	Categories map[string]*MarkupCoverage

	// Unconfigured lists categories whose patterns are all empty; they
	// are absent from Categories
	Unconfigured []string

	InvalidPatterns []*PatternError
}

// MatchMarkup finds every occurrence of every markup pattern in content
// and attributes each to the covered or uncovered side using lines.
// Occurrences on ignored lines are dropped.
func MatchMarkup(rules []MarkupRule, content string, lines LineClassification) MarkupResult {
	res := MarkupResult{Categories: make(map[string]*MarkupCoverage)}
	index := newLineIndex(content)
	recorders := make(map[string]*markupRecorder)

	for _, rule := range rules {
		patterns := nonEmpty(rule.Regex)
		if len(patterns) == 0 {
			res.Unconfigured = append(res.Unconfigured, rule.Name)
			continue
		}

		rec, ok := recorders[rule.Name]
		if !ok {
			rec = newMarkupRecorder(rule, lines)
			recorders[rule.Name] = rec
		}

		for _, pattern := range patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				res.InvalidPatterns = append(res.InvalidPatterns, &PatternError{Category: rule.Name, Pattern: pattern, Err: err})
				continue
			}
			for _, text := range re.FindAllString(content, -1) {
				if text == "" || rec.located[text] {
					continue
				}
				rec.located[text] = true
				for _, offset := range literalOffsets(content, text) {
					rec.add(MatchOccurrence{Line: index.line(offset), Offset: offset, Text: text})
				}
			}
		}
	}

	for name, rec := range recorders {
		res.Categories[name] = rec.finish()
	}
	return res
}

// literalOffsets returns the offset of every occurrence of text in
// content. Each search resumes one byte past the previous hit, so
// overlapping occurrences are all reported.
func literalOffsets(content, text string) []int {
	var offsets []int
	for start := 0; start < len(content); {
		idx := strings.Index(content[start:], text)
		if idx < 0 {
			break
		}
		offset := start + idx
		offsets = append(offsets, offset)
		start = offset + 1
	}
	return offsets
}

func nonEmpty(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ============================================================================
// Line Index
// ============================================================================

// lineIndex maps byte offsets to 1-based line numbers. A line break is
// \r\n, \r or \n, matching SplitLines.
type lineIndex struct {
	starts []int
}

func newLineIndex(content string) lineIndex {
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		switch content[i] {
		case '\n':
			starts = append(starts, i+1)
		case '\r':
			if i+1 < len(content) && content[i+1] == '\n' {
				i++
			}
			starts = append(starts, i+1)
		}
	}
	return lineIndex{starts: starts}
}

// line is 1 + the number of line breaks before offset
func (x lineIndex) line(offset int) int {
	return sort.Search(len(x.starts), func(i int) bool { return x.starts[i] > offset })
}

// ============================================================================
// Recorder
// ============================================================================

type markupRecorder struct {
	lines    LineClassification
	coverage *MarkupCoverage

	located       map[string]bool
	seenMatch     map[MatchOccurrence]bool
	seenCovered   map[int]bool
	seenUncovered map[int]bool
}

func newMarkupRecorder(rule MarkupRule, lines LineClassification) *markupRecorder {
	return &markupRecorder{
		lines: lines,
		coverage: &MarkupCoverage{
			IncludeInCoverage:    rule.IncludeInCoverage,
			IncludeInSuggestions: rule.IncludeInSuggestions,
			CoveredLines:         make([]int, 0),
			CoveredMatches:       make([]MatchOccurrence, 0),
			UncoveredLines:       make([]int, 0),
			UncoveredMatches:     make([]MatchOccurrence, 0),
		},
		located:       make(map[string]bool),
		seenMatch:     make(map[MatchOccurrence]bool),
		seenCovered:   make(map[int]bool),
		seenUncovered: make(map[int]bool),
	}
}

func (r *markupRecorder) add(occ MatchOccurrence) {
	if r.seenMatch[occ] {
		return
	}
	status, ok := r.lines.Status(occ.Line)
	if !ok {
		return
	}

	switch status {
	case StatusCovered:
		r.seenMatch[occ] = true
		r.coverage.CoveredMatches = append(r.coverage.CoveredMatches, occ)
		if !r.seenCovered[occ.Line] {
			r.seenCovered[occ.Line] = true
			r.coverage.CoveredLines = append(r.coverage.CoveredLines, occ.Line)
		}
	case StatusUncovered:
		r.seenMatch[occ] = true
		r.coverage.UncoveredMatches = append(r.coverage.UncoveredMatches, occ)
		if !r.seenUncovered[occ.Line] {
			r.seenUncovered[occ.Line] = true
			r.coverage.UncoveredLines = append(r.coverage.UncoveredLines, occ.Line)
		}
	}
}

func (r *markupRecorder) finish() *MarkupCoverage {
	byOffset := func(a, b MatchOccurrence) int {
		return cmp.Or(cmp.Compare(a.Offset, b.Offset), cmp.Compare(a.Text, b.Text))
	}
	slices.Sort(r.coverage.CoveredLines)
	slices.Sort(r.coverage.UncoveredLines)
	slices.SortFunc(r.coverage.CoveredMatches, byOffset)
	slices.SortFunc(r.coverage.UncoveredMatches, byOffset)
	return r.coverage
}
