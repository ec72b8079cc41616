package coverage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalyzer(t *testing.T, files map[string]string, profiles ...FileTypeProfile) (*Analyzer, *bytes.Buffer) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	if len(profiles) == 0 {
		profile := *testProfile()
		profile.Markup = []MarkupRule{{Name: "codeBlock", Regex: []string{"```"}, IncludeInCoverage: true}}
		profiles = []FileTypeProfile{profile}
	}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewAnalyzer(profiles, WithFs(fs), WithLogger(logger), WithConcurrency(2)), &logs
}

func TestCheckTestCoverage(t *testing.T) {
	a, _ := newTestAnalyzer(t, map[string]string{
		"/docs/guide.md": "intro\n<!--test{}-->\nstep one\n<!--endtest-->\noutro\n",
	})

	report, err := a.CheckTestCoverage(context.Background(), []string{"/docs/guide.md"})

	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	f := report.Files[0]
	assert.Equal(t, "/docs/guide.md", f.File)
	assert.Equal(t, []int{3}, f.CoveredLines)
	assert.Equal(t, []int{1, 5}, f.UncoveredLines)
	assert.Equal(t, []int{2, 4}, f.IgnoredLines)
	assert.Equal(t, "markdown", f.FileType.Name)
	assert.Nil(t, f.Markup)
	assert.Empty(t, report.Errors)
}

func TestCheckTestCoverageMissingReference(t *testing.T) {
	a, _ := newTestAnalyzer(t, map[string]string{
		"/docs/guide.md":   "<!--test{\"file\":\"./missing.json\"}-->\nstep\n<!--test{\"file\":\"../specs/ok.json\"}-->\n",
		"/specs/ok.json":   `{"tests":[]}`,
		"/docs/unused.txt": "x",
	})

	report, err := a.CheckTestCoverage(context.Background(), []string{"/docs/guide.md"})

	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	e := report.Errors[0]
	assert.Equal(t, KindMissingReference, e.Kind)
	assert.Equal(t, "/docs/guide.md", e.File)
	assert.Equal(t, 1, e.Line)
	assert.Contains(t, e.Description, "/docs/missing.json")
	assert.Equal(t, []int{2}, report.Files[0].CoveredLines)
}

func TestCheckTestCoverageSkipsSpecFiles(t *testing.T) {
	a, logs := newTestAnalyzer(t, map[string]string{
		"/docs/guide.md":  "a\n",
		"/docs/spec.json": `{"tests":[]}`,
	})

	report, err := a.CheckTestCoverage(context.Background(), []string{"/docs/guide.md", "/docs/spec.json"})

	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, "/docs/guide.md", report.Files[0].File)
	assert.Empty(t, report.Errors)
	assert.Contains(t, logs.String(), "/docs/spec.json")
}

func TestCheckTestCoverageMissingProfile(t *testing.T) {
	a, _ := newTestAnalyzer(t, map[string]string{
		"/docs/guide.md":   "a\n",
		"/docs/notes.adoc": "b\n",
	})

	report, err := a.CheckTestCoverage(context.Background(), []string{"/docs/guide.md", "/docs/notes.adoc"})

	assert.Nil(t, report)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoProfile))
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ".adoc", cfgErr.Extension)
	assert.Equal(t, "/docs/notes.adoc", cfgErr.File)
}

func TestCheckTestCoverageUnreadableFile(t *testing.T) {
	a, _ := newTestAnalyzer(t, map[string]string{"/docs/a.md": "a\n"})

	report, err := a.CheckTestCoverage(context.Background(), []string{"/docs/gone.md", "/docs/a.md"})

	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, KindReadFailure, report.Errors[0].Kind)
	assert.Equal(t, "/docs/gone.md", report.Errors[0].File)
}

func TestCheckTestCoveragePreservesFileOrder(t *testing.T) {
	files := map[string]string{}
	var paths []string
	for _, name := range []string{"e", "d", "c", "b", "a"} {
		path := "/docs/" + name + ".md"
		files[path] = "x\n"
		paths = append(paths, path)
	}
	a, _ := newTestAnalyzer(t, files)

	report, err := a.CheckTestCoverage(context.Background(), paths)

	require.NoError(t, err)
	var got []string
	for _, f := range report.Files {
		got = append(got, f.File)
	}
	assert.Equal(t, paths, got)
}

func TestCheckTestCoverageCancelled(t *testing.T) {
	a, _ := newTestAnalyzer(t, map[string]string{"/docs/a.md": "a\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.CheckTestCoverage(ctx, []string{"/docs/a.md"})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckMarkupCoverage(t *testing.T) {
	a, _ := newTestAnalyzer(t, map[string]string{"/docs/a.md": fenceDoc})
	ctx := context.Background()
	first, err := a.CheckTestCoverage(ctx, []string{"/docs/a.md"})
	require.NoError(t, err)

	report, err := a.CheckMarkupCoverage(ctx, first)

	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	cb := report.Files[0].Markup["codeBlock"]
	require.NotNil(t, cb)
	assert.Equal(t, []int{4}, cb.CoveredLines)
	assert.Equal(t, []int{10}, cb.UncoveredLines)
	assert.Nil(t, first.Files[0].Markup, "input report is not modified")
}

func TestCheckMarkupCoverageUnconfiguredWarnsOncePerExtension(t *testing.T) {
	profile := *testProfile()
	profile.Markup = []MarkupRule{
		{Name: "links", Regex: []string{""}},
		{Name: "codeBlock", Regex: []string{"```"}},
	}
	a, logs := newTestAnalyzer(t, map[string]string{
		"/docs/a.md": fenceDoc,
		"/docs/b.md": "plain\n",
	}, profile)

	report, err := a.Run(context.Background(), []string{"/docs/a.md", "/docs/b.md"})

	require.NoError(t, err)
	for _, f := range report.Files {
		assert.NotContains(t, f.Markup, "links", f.File)
		assert.Contains(t, f.Markup, "codeBlock", f.File)
	}
	assert.Equal(t, 1, strings.Count(logs.String(), "No regex for 'links'"))
	assert.Empty(t, report.Errors)
}

func TestCheckMarkupCoverageInvalidPattern(t *testing.T) {
	profile := *testProfile()
	profile.Markup = []MarkupRule{{Name: "broken", Regex: []string{"("}}}
	a, _ := newTestAnalyzer(t, map[string]string{"/docs/a.md": "a\n"}, profile)

	report, err := a.Run(context.Background(), []string{"/docs/a.md"})

	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, KindInvalidPattern, report.Errors[0].Kind)
	assert.Contains(t, report.Errors[0].Description, "broken")
}

func TestCheckMarkupCoverageRerunKeepsErrors(t *testing.T) {
	profile := *testProfile()
	profile.Markup = []MarkupRule{{Name: "broken", Regex: []string{"("}}}
	a, _ := newTestAnalyzer(t, map[string]string{
		"/docs/a.md": "<!--test{\"file\":\"./missing.json\"}-->\na\n",
	}, profile)

	first, err := a.Run(context.Background(), []string{"/docs/a.md"})
	require.NoError(t, err)
	require.Len(t, first.Errors, 2)

	second, err := a.CheckMarkupCoverage(context.Background(), first)
	require.NoError(t, err)

	assert.Equal(t, first.Errors, second.Errors)
}

func TestCheckTestCoverageReferenceWithID(t *testing.T) {
	a, logs := newTestAnalyzer(t, map[string]string{
		"/docs/guide.md":   "<!--test{\"file\":\"./login.json\",\"id\":\"t1\"}-->\nstep\n",
		"/docs/login.json": `{"tests":[]}`,
	})

	report, err := a.CheckTestCoverage(context.Background(), []string{"/docs/guide.md"})

	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, []int{2}, report.Files[0].CoveredLines)
	assert.Contains(t, logs.String(), "test id validation is not implemented")
	assert.Contains(t, logs.String(), "id=t1")
	assert.Contains(t, logs.String(), "/docs/login.json")
}

func TestCheckMarkupCoverageDecodedReport(t *testing.T) {
	a, _ := newTestAnalyzer(t, map[string]string{"/docs/a.md": fenceDoc})
	decoded := &CoverageReport{Files: []FileCoverageReport{{
		File:           "/docs/a.md",
		CoveredLines:   []int{3, 4, 5},
		UncoveredLines: []int{1, 7, 8, 9, 10},
	}}}

	report, err := a.CheckMarkupCoverage(context.Background(), decoded)

	require.NoError(t, err)
	cb := report.Files[0].Markup["codeBlock"]
	assert.Equal(t, []int{4}, cb.CoveredLines)
	assert.Equal(t, []int{10}, cb.UncoveredLines)
	assert.Equal(t, "markdown", report.Files[0].FileType.Name)
}

func TestRunIsDeterministic(t *testing.T) {
	a, _ := newTestAnalyzer(t, map[string]string{
		"/docs/a.md": fenceDoc,
		"/docs/b.md": "<!--test{\"file\":\"nope.json\"}-->\n```\n",
	})
	files := []string{"/docs/a.md", "/docs/b.md"}

	first, err := a.Run(context.Background(), files)
	require.NoError(t, err)
	second, err := a.Run(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSummary(t *testing.T) {
	report := &CoverageReport{
		Files: []FileCoverageReport{
			{
				CoveredLines:   []int{1, 2, 3},
				UncoveredLines: []int{4},
				Markup: map[string]*MarkupCoverage{
					"counted":    {IncludeInCoverage: true, CoveredMatches: make([]MatchOccurrence, 2), UncoveredMatches: make([]MatchOccurrence, 1)},
					"notCounted": {CoveredMatches: make([]MatchOccurrence, 5)},
				},
			},
			{IgnoredLines: []int{1}},
		},
		Errors: []CoverageError{{File: "x"}},
	}

	s := report.Summary()

	assert.Equal(t, Summary{Files: 2, CoveredLines: 3, UncoveredLines: 1, IgnoredLines: 1, Errors: 1, CoveredMatches: 2, UncoveredMatches: 1}, s)
	assert.InDelta(t, 75.0, s.Percent(), 0.001)
	assert.InDelta(t, 100.0, report.Files[1].Percent(), 0.001)
}

func TestMergeErrors(t *testing.T) {
	a := []CoverageError{{File: "b.md", Line: 2}, {File: "a.md", Line: 9}}
	b := []CoverageError{{File: "a.md", Line: 1}}

	merged := MergeErrors(a, nil, b)
	reversed := MergeErrors(b, a)

	assert.Equal(t, merged, reversed)
	assert.Equal(t, []CoverageError{{File: "a.md", Line: 1}, {File: "a.md", Line: 9}, {File: "b.md", Line: 2}}, merged)
	assert.Equal(t, "b.md", a[0].File, "inputs are not reordered")
}
