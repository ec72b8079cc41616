package ui

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gubarz/doccov/internal/coverage"
)

// ============================================================================
// File Item
// ============================================================================

// fileItem wraps a FileCoverageReport with display metadata
type fileItem struct {
	file    *coverage.FileCoverageReport
	display string
	search  string // lowercased display for filtering
	percent float64
	errors  []coverage.CoverageError
}

func newFileItems(report *coverage.CoverageReport, baseDir string) []fileItem {
	byFile := make(map[string][]coverage.CoverageError)
	for _, e := range report.Errors {
		byFile[e.File] = append(byFile[e.File], e)
	}

	items := make([]fileItem, len(report.Files))
	for i := range report.Files {
		f := &report.Files[i]
		display := relPath(baseDir, f.File)
		items[i] = fileItem{
			file:    f,
			display: display,
			search:  strings.ToLower(display),
			percent: f.Percent(),
			errors:  byFile[f.File],
		}
	}
	return items
}

// ============================================================================
// Debounce
// ============================================================================

// filterMsg triggers filtering after debounce
type filterMsg struct{}

// debounceFilter returns a command that triggers filtering after a delay
func debounceFilter() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return filterMsg{}
	})
}

// ============================================================================
// Browser Model
// ============================================================================

// browserModel lists analyzed files and previews the untested content of
// the selected one
type browserModel struct {
	width     int
	height    int
	textInput textinput.Model
	quitting  bool

	items         []fileItem
	filtered      []fileItem
	cursor        int
	offset        int // viewport scroll offset
	onlyUncovered bool
}

func newBrowserModel(report *coverage.CoverageReport, baseDir string) browserModel {
	ti := textinput.New()
	ti.Placeholder = "Type to filter files..."
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 50

	items := newFileItems(report, baseDir)
	return browserModel{
		items:     items,
		filtered:  items,
		textInput: ti,
	}
}

// Init implements tea.Model
func (m browserModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (m browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 4
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	case filterMsg:
		m.filter()
		return m, nil
	}

	prevQuery := m.textInput.Value()
	var tiCmd tea.Cmd
	m.textInput, tiCmd = m.textInput.Update(msg)
	cmds = append(cmds, tiCmd)

	// Only trigger debounced filter if query changed
	if m.textInput.Value() != prevQuery {
		cmds = append(cmds, debounceFilter())
	}

	return m, tea.Batch(cmds...)
}

// handleKey processes navigation keys; other keys go to the text input
func (m *browserModel) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return tea.Quit, true
	case "tab":
		m.onlyUncovered = !m.onlyUncovered
		m.filter()
	case "up", "ctrl+p":
		m.moveCursor(-1)
	case "down", "ctrl+n":
		m.moveCursor(1)
	case "pgup":
		m.moveCursor(-10)
	case "pgdown":
		m.moveCursor(10)
	case "home", "ctrl+a":
		m.cursor = 0
		m.offset = 0
	case "end", "ctrl+e":
		m.cursor = max(0, len(m.filtered)-1)
	default:
		return nil, false
	}
	return nil, true
}

// moveCursor moves the cursor by delta, clamping to valid range
func (m *browserModel) moveCursor(delta int) {
	m.cursor = clamp(m.cursor+delta, 0, max(0, len(m.filtered)-1))
}

// filter applies the query words and the uncovered-only toggle
func (m *browserModel) filter() {
	words := strings.Fields(strings.ToLower(m.textInput.Value()))

	m.filtered = make([]fileItem, 0, len(m.items))
	for _, item := range m.items {
		if m.onlyUncovered && item.percent >= 100 && len(item.errors) == 0 {
			continue
		}
		if matchesAllWords(item.search, words) {
			m.filtered = append(m.filtered, item)
		}
	}
	m.cursor = clamp(m.cursor, 0, max(0, len(m.filtered)-1))
}

// selected returns the item under the cursor
func (m browserModel) selected() (fileItem, bool) {
	if m.cursor < len(m.filtered) {
		return m.filtered[m.cursor], true
	}
	return fileItem{}, false
}

// ============================================================================
// Rendering
// ============================================================================

const previewLines = 8

// View implements tea.Model
func (m browserModel) View() string {
	if m.quitting {
		return ""
	}

	width := max(m.width, 80)
	height := max(m.height, 24)

	preview := m.renderPreview(width)
	inputLines := 3 // divider + info + input
	listHeight := max(height-countLines(preview)-inputLines, 3)
	list := m.renderList(listHeight)
	padding := max(height-countLines(preview)-countLines(list)-inputLines, 0)

	var b strings.Builder
	b.WriteString(preview)
	b.WriteString(list)
	b.WriteString(strings.Repeat("\n", padding))
	b.WriteString(m.renderInput(width))
	return b.String()
}

// renderPreview shows uncovered lines, untested markup and errors of the
// selected file
func (m browserModel) renderPreview(width int) string {
	var b strings.Builder
	lines := 0

	if item, ok := m.selected(); ok {
		b.WriteString(styles.Path.Render(item.display))
		b.WriteString("  ")
		b.WriteString(styles.ForPercent(item.percent).Render(fmt.Sprintf("%.1f%%", item.percent)))
		b.WriteString("\n")
		lines++

		if len(item.file.UncoveredLines) > 0 {
			b.WriteString(styles.Dim.Render("uncovered lines: "))
			b.WriteString(styles.Uncovered.Render(truncateString(formatRanges(item.file.UncoveredLines), width-20)))
			b.WriteString("\n")
			lines++
		}

		for _, name := range sortedKeys(item.file.Markup) {
			mc := item.file.Markup[name]
			if len(mc.UncoveredMatches) == 0 || lines >= previewLines-1 {
				continue
			}
			occ := mc.UncoveredMatches[0]
			text := fmt.Sprintf("%s: %d untested, first on line %d: %s", name, len(mc.UncoveredMatches), occ.Line, firstLine(occ.Text))
			b.WriteString(styles.Dim.Render(truncateString(text, width)))
			b.WriteString("\n")
			lines++
		}

		for _, e := range item.errors {
			if lines >= previewLines {
				break
			}
			b.WriteString(styles.Error.Render(truncateString(fmt.Sprintf("line %d: %s", e.Line, e.Description), width)))
			b.WriteString("\n")
			lines++
		}
	}

	// Pad to fixed height
	for lines < previewLines {
		b.WriteString("\n")
		lines++
	}

	b.WriteString(styles.Divider.Render(strings.Repeat("─", width)))
	b.WriteString("\n")
	return b.String()
}

// renderList renders the scrollable list of files
func (m *browserModel) renderList(maxHeight int) string {
	if len(m.filtered) == 0 {
		return ""
	}

	start, end := scrollWindow(m.cursor, len(m.filtered), maxHeight, &m.offset)

	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(m.renderListItem(m.filtered[i], i == m.cursor))
		b.WriteString("\n")
	}
	return b.String()
}

// renderListItem renders a single list item
func (m browserModel) renderListItem(item fileItem, selected bool) string {
	pathStyle, pctStyle := styles.Path, styles.ForPercent(item.percent)
	if selected {
		pathStyle = styles.WithSelection(pathStyle)
		pctStyle = styles.WithSelection(pctStyle)
	}

	line := pctStyle.Render(fmt.Sprintf("%6.1f%%", item.percent)) + " " + pathStyle.Render(item.display)
	if len(item.errors) > 0 {
		line += " " + styles.Error.Render(fmt.Sprintf("(%d errors)", len(item.errors)))
	}
	if selected {
		return styles.Cursor.Render("▶ ") + line
	}
	return "  " + line
}

// renderInput renders the input section at the bottom
func (m browserModel) renderInput(width int) string {
	var b strings.Builder
	b.WriteString(styles.Divider.Render(strings.Repeat("─", width)))
	b.WriteString("\n")
	b.WriteString(styles.Dim.Render(fmt.Sprintf("  %d/%d", len(m.filtered), len(m.items))))
	b.WriteString(" • ")
	if m.onlyUncovered {
		b.WriteString(styles.Dim.Render("TAB all files"))
	} else {
		b.WriteString(styles.Dim.Render("TAB incomplete only"))
	}
	b.WriteString(" • ")
	b.WriteString(styles.Dim.Render("ESC exit"))
	b.WriteString("\n")
	b.WriteString(m.textInput.View())
	return b.String()
}

// ============================================================================
// Run Browser
// ============================================================================

// getTTY returns file handles for TUI input/output
// Uses /dev/tty to bypass shell pipes and command substitution
func getTTY() (in *os.File, out *os.File, cleanup func()) {
	var closers []func()

	// If stdout is not a terminal (piped or captured by $()), use /dev/tty
	if fileInfo, _ := os.Stdout.Stat(); (fileInfo.Mode() & os.ModeCharDevice) == 0 {
		out, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
		if err != nil {
			out = os.Stderr // Last resort fallback
		} else {
			closers = append(closers, func() { out.Close() })
		}

		in, err := os.OpenFile("/dev/tty", os.O_RDONLY, 0)
		if err != nil {
			in = os.Stdin
		} else {
			closers = append(closers, func() { in.Close() })
		}

		// Tell lipgloss to use the TTY for color detection
		lipgloss.SetDefaultRenderer(lipgloss.NewRenderer(out))

		return in, out, func() {
			for _, c := range closers {
				c()
			}
		}
	}

	return os.Stdin, os.Stdout, func() {}
}

// Browse opens the interactive report browser
func Browse(report *coverage.CoverageReport, baseDir string) error {
	if len(report.Files) == 0 {
		return fmt.Errorf("no files to browse")
	}

	ttyIn, ttyOut, cleanup := getTTY()
	defer cleanup()
	styles = DefaultStyles() // Rebuild after getTTY sets up the renderer

	p := tea.NewProgram(newBrowserModel(report, baseDir), tea.WithAltScreen(), tea.WithOutput(ttyOut), tea.WithInput(ttyIn))
	_, err := p.Run()
	return err
}

// ============================================================================
// Helpers
// ============================================================================

// clamp restricts v to the range [minV, maxV]
func clamp(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// countLines counts the number of lines in a string
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n")
}

// scrollWindow calculates the visible range for a scrollable list
func scrollWindow(cursor, total, height int, offset *int) (start, end int) {
	if cursor < *offset {
		*offset = cursor
	}
	if cursor >= *offset+height {
		*offset = cursor - height + 1
	}
	maxOffset := max(0, total-height)
	*offset = clamp(*offset, 0, maxOffset)

	start = *offset
	end = min(start+height, total)
	return
}

// truncateString truncates a string to maxLen with ellipsis
func truncateString(s string, maxLen int) string {
	if maxLen <= 3 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// firstLine returns the first line of a string
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx] + "…"
	}
	return s
}

// matchesAllWords returns true if text contains all words
func matchesAllWords(text string, words []string) bool {
	for _, word := range words {
		if !strings.Contains(text, word) {
			return false
		}
	}
	return true
}

// formatRanges collapses sorted line numbers: 1,2,3,7 -> "1-3, 7"
func formatRanges(lines []int) string {
	var parts []string
	for i := 0; i < len(lines); {
		j := i
		for j+1 < len(lines) && lines[j+1] == lines[j]+1 {
			j++
		}
		if i == j {
			parts = append(parts, fmt.Sprint(lines[i]))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", lines[i], lines[j]))
		}
		i = j + 1
	}
	return strings.Join(parts, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
