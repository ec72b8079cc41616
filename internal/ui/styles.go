package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// StyleManager encapsulates all styles used by the summary and the browser
type StyleManager struct {
	// Coverage styles
	Title     lipgloss.Style
	Path      lipgloss.Style
	Covered   lipgloss.Style
	Partial   lipgloss.Style
	Uncovered lipgloss.Style
	Error     lipgloss.Style
	Dim       lipgloss.Style

	// Browser styles
	Selected lipgloss.Style
	Cursor   lipgloss.Style
	Divider  lipgloss.Style

	// Colors for direct access
	SelectedBg lipgloss.Color
}

// DefaultStyles returns a StyleManager with default styles
func DefaultStyles() *StyleManager {
	return &StyleManager{
		Title:      lipgloss.NewStyle().Bold(true),
		Path:       lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		Covered:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Partial:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		Uncovered:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		Error:      lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Dim:        lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Selected:   lipgloss.NewStyle().Background(lipgloss.Color("236")),
		Cursor:     lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		Divider:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		SelectedBg: lipgloss.Color("236"),
	}
}

// WithSelection returns a copy of the given style with the selected background applied
func (s *StyleManager) WithSelection(style lipgloss.Style) lipgloss.Style {
	return style.Background(s.SelectedBg)
}

// ForPercent picks the style for a coverage percentage
func (s *StyleManager) ForPercent(p float64) lipgloss.Style {
	switch {
	case p >= 100:
		return s.Covered
	case p >= 50:
		return s.Partial
	default:
		return s.Uncovered
	}
}

// Global style manager instance
var styles = DefaultStyles()
