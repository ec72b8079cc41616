package ui

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gubarz/doccov/internal/coverage"
)

// RenderSummary renders a plain-terminal coverage table for report. Paths
// are shown relative to baseDir when possible.
func RenderSummary(report *coverage.CoverageReport, baseDir string) string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Documentation coverage"))
	b.WriteString("\n")

	width := 0
	for i := range report.Files {
		width = max(width, len(relPath(baseDir, report.Files[i].File)))
	}

	for i := range report.Files {
		f := &report.Files[i]
		pct := f.Percent()
		path := fmt.Sprintf("%-*s", width, relPath(baseDir, f.File))
		b.WriteString("  ")
		b.WriteString(styles.Path.Render(path))
		b.WriteString("  ")
		b.WriteString(styles.ForPercent(pct).Render(fmt.Sprintf("%6.1f%%", pct)))
		b.WriteString(styles.Dim.Render(fmt.Sprintf("  %d covered, %d uncovered", len(f.CoveredLines), len(f.UncoveredLines))))
		if markup := uncoveredMarkup(f); markup != "" {
			b.WriteString(styles.Dim.Render("  untested: "))
			b.WriteString(styles.Uncovered.Render(markup))
		}
		b.WriteString("\n")
	}

	if len(report.Errors) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.Error.Render(fmt.Sprintf("Errors (%d)", len(report.Errors))))
		b.WriteString("\n")
		for _, e := range report.Errors {
			e.File = relPath(baseDir, e.File)
			b.WriteString("  ")
			b.WriteString(e.String())
			b.WriteString("\n")
		}
	}

	s := report.Summary()
	b.WriteString("\n")
	b.WriteString(styles.Title.Render("Total "))
	b.WriteString(styles.ForPercent(s.Percent()).Render(fmt.Sprintf("%.1f%%", s.Percent())))
	b.WriteString(styles.Dim.Render(fmt.Sprintf(" (%d/%d lines, %d files", s.CoveredLines, s.CoveredLines+s.UncoveredLines, s.Files)))
	if total := s.CoveredMatches + s.UncoveredMatches; total > 0 {
		b.WriteString(styles.Dim.Render(fmt.Sprintf(", markup %d/%d", s.CoveredMatches, total)))
	}
	b.WriteString(styles.Dim.Render(")"))
	b.WriteString("\n")

	return b.String()
}

// uncoveredMarkup lists "name:count" for categories included in coverage
// that have uncovered matches, sorted by name
func uncoveredMarkup(f *coverage.FileCoverageReport) string {
	var parts []string
	for name, m := range f.Markup {
		if m.IncludeInCoverage && len(m.UncoveredMatches) > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", name, len(m.UncoveredMatches)))
		}
	}
	slices.Sort(parts)
	return strings.Join(parts, " ")
}

func relPath(baseDir, path string) string {
	if baseDir == "" {
		return path
	}
	rel, err := filepath.Rel(baseDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
