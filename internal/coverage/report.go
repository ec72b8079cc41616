package coverage

// FileCoverageReport is the coverage of one documentation file
type FileCoverageReport struct {
	File           string                     `json:"file" yaml:"file"`
	FileType       *FileTypeProfile           `json:"fileType" yaml:"fileType"`
	CoveredLines   []int                      `json:"coveredLines" yaml:"coveredLines"`
	UncoveredLines []int                      `json:"uncoveredLines" yaml:"uncoveredLines"`
	IgnoredLines   []int                      `json:"ignoredLines" yaml:"ignoredLines"`
	Markup         map[string]*MarkupCoverage `json:"markup,omitempty" yaml:"markup,omitempty"`

	// Retained from the first pass so the markup pass reads each file once
	content string
	lines   *LineClassification
}

// CoverageReport is the result of a run
type CoverageReport struct {
	Files  []FileCoverageReport `json:"files" yaml:"files"`
	Errors []CoverageError      `json:"errors" yaml:"errors"`
}

// Aggregate builds a file report from the outputs of the classifier and
// the markup matcher. markup may be nil before the markup pass.
func Aggregate(path string, profile *FileTypeProfile, lines LineClassification, markup map[string]*MarkupCoverage) FileCoverageReport {
	return FileCoverageReport{
		File:           path,
		FileType:       profile,
		CoveredLines:   lines.Covered(),
		UncoveredLines: lines.Uncovered(),
		IgnoredLines:   lines.Ignored(),
		Markup:         markup,
		lines:          &lines,
	}
}

// Classification returns the line tags of the report. Reports decoded from
// disk carry no tags, so they are rebuilt from the line sets: every line
// up to the highest known line that is in neither set is ignored.
func (f *FileCoverageReport) Classification() LineClassification {
	if f.lines != nil {
		return *f.lines
	}

	last := 0
	for _, set := range [][]int{f.CoveredLines, f.UncoveredLines, f.IgnoredLines} {
		for _, l := range set {
			last = max(last, l)
		}
	}
	statuses := make([]LineStatus, last)
	for i := range statuses {
		statuses[i] = StatusIgnored
	}
	for _, l := range f.CoveredLines {
		if l > 0 {
			statuses[l-1] = StatusCovered
		}
	}
	for _, l := range f.UncoveredLines {
		if l > 0 {
			statuses[l-1] = StatusUncovered
		}
	}
	return LineClassification{statuses: statuses}
}

// Percent is the share of covered lines among covered and uncovered lines.
// A file with no countable lines is fully covered.
func (f *FileCoverageReport) Percent() float64 {
	return percent(len(f.CoveredLines), len(f.UncoveredLines))
}

// Summary holds report-wide totals
type Summary struct {
	Files          int
	CoveredLines   int
	UncoveredLines int
	IgnoredLines   int
	Errors         int

	// Markup totals over categories included in coverage
	CoveredMatches   int
	UncoveredMatches int
}

// Percent is the line coverage over all files
func (s Summary) Percent() float64 {
	return percent(s.CoveredLines, s.UncoveredLines)
}

// Summary computes totals over the report
func (r *CoverageReport) Summary() Summary {
	s := Summary{Files: len(r.Files), Errors: len(r.Errors)}
	for i := range r.Files {
		f := &r.Files[i]
		s.CoveredLines += len(f.CoveredLines)
		s.UncoveredLines += len(f.UncoveredLines)
		s.IgnoredLines += len(f.IgnoredLines)
		for _, m := range f.Markup {
			if !m.IncludeInCoverage {
				continue
			}
			s.CoveredMatches += len(m.CoveredMatches)
			s.UncoveredMatches += len(m.UncoveredMatches)
		}
	}
	return s
}

func percent(covered, uncovered int) float64 {
	total := covered + uncovered
	if total == 0 {
		return 100
	}
	return float64(covered) * 100 / float64(total)
}
