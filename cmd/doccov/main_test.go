package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gubarz/doccov/internal/config"
	"github.com/gubarz/doccov/internal/coverage"
)

const guideDoc = `# Title
<!-- test {"file": "spec.json"} -->
Run it.
<!-- end-test -->
Outside.
`

// execute runs a fresh root command with isolated viper state
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := executeWithLogs(t, args...)
	return stdout, err
}

// executeWithLogs also returns what the command logged to stderr
func executeWithLogs(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	viper.Reset()
	config.C = config.Config{}
	t.Setenv("HOME", t.TempDir())
	defer slog.SetDefault(slog.Default())

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guide.md"), []byte(guideDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spec.json"), []byte(`{"steps": []}`), 0o644))
	return dir
}

func TestRunCheckWritesReport(t *testing.T) {
	dir := writeDocs(t)
	out := filepath.Join(t.TempDir(), "report", "coverage.json")

	stdout, err := execute(t, dir, "--output", out, "--no-summary")
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var doc struct {
		Files  []coverage.FileCoverageReport `json:"files"`
		Errors []coverage.CoverageError      `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Files, 1)
	assert.Equal(t, []int{3}, doc.Files[0].CoveredLines)
	assert.Equal(t, []int{1, 5}, doc.Files[0].UncoveredLines)
	assert.Equal(t, []int{2, 4}, doc.Files[0].IgnoredLines)
	assert.Empty(t, doc.Errors)
}

func TestRunCheckPrintsSummary(t *testing.T) {
	dir := writeDocs(t)

	stdout, err := execute(t, dir)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Documentation coverage")
	assert.Contains(t, stdout, "guide.md")
	assert.Contains(t, stdout, "33.3%")
}

func TestRunCheckFailUnder(t *testing.T) {
	dir := writeDocs(t)

	_, err := execute(t, dir, "--no-summary", "--fail-under", "50")

	assert.ErrorIs(t, err, errBelowThreshold)
}

func TestRunCheckUnknownFormat(t *testing.T) {
	dir := writeDocs(t)

	_, err := execute(t, dir, "--format", "xml")

	assert.Error(t, err)
}

func TestRunCheckMissingProfile(t *testing.T) {
	dir := writeDocs(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("plain"), 0o644))

	_, err := execute(t, dir, "--no-summary", "--ext", ".md,.txt")

	var cfgErr *coverage.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ".txt", cfgErr.Extension)
	assert.ErrorIs(t, err, coverage.ErrNoProfile)
}

func TestRunCheckMissingReference(t *testing.T) {
	dir := writeDocs(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "spec.json")))

	stdout, err := execute(t, filepath.Join(dir, "guide.md"))
	require.NoError(t, err)

	assert.Contains(t, stdout, "Errors (1)")
	assert.Contains(t, stdout, "guide.md:2")
}

func TestRunCheckSpecExtensions(t *testing.T) {
	dir := writeDocs(t)

	_, err := execute(t, dir, "--no-summary", "--ext", ".md,.json")
	require.NoError(t, err, "spec files are skipped by default")

	cfg := filepath.Join(t.TempDir(), "doccov.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("spec_extensions: []\n"), 0o644))

	_, err = execute(t, dir, "--no-summary", "--ext", ".md,.json", "--config", cfg)

	var cfgErr *coverage.ConfigurationError
	require.ErrorAs(t, err, &cfgErr, "an empty list analyzes spec files too")
	assert.Equal(t, ".json", cfgErr.Extension)
}

func TestEnvFileWarningFollowsLogLevel(t *testing.T) {
	dir := writeDocs(t)
	missing := filepath.Join(t.TempDir(), "missing.env")

	_, logs, err := executeWithLogs(t, dir, "--no-summary", "--env", missing)
	require.NoError(t, err)
	assert.Contains(t, logs, "env file not loaded")
	assert.Contains(t, logs, missing)

	_, logs, err = executeWithLogs(t, dir, "--no-summary", "--env", missing, "--log-level", "error")
	require.NoError(t, err)
	assert.NotContains(t, logs, "env file not loaded")
}

func TestVersion(t *testing.T) {
	stdout, err := execute(t, "version")
	require.NoError(t, err)

	assert.Equal(t, "doccov "+version+"\n", stdout)
}
