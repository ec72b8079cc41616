package coverage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// DefaultSpecExtensions are extensions of pre-built test specs, which are
// not documentation and are skipped
var DefaultSpecExtensions = []string{".json"}

// Analyzer computes line and markup coverage for documentation files
type Analyzer struct {
	profiles    Profiles
	fs          afero.Fs
	logger      *slog.Logger
	resolver    Resolver
	concurrency int
	specExts    map[string]bool

	// extension + category pairs already warned about in this run
	warned sync.Map
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithFs sets the filesystem files and references are read from
func WithFs(fs afero.Fs) Option {
	return func(a *Analyzer) { a.fs = fs }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// WithResolver replaces the filesystem reference resolver
func WithResolver(r Resolver) Option {
	return func(a *Analyzer) { a.resolver = r }
}

// WithConcurrency limits how many files are analyzed at once
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithSpecExtensions replaces the extensions that are skipped as test specs
func WithSpecExtensions(exts ...string) Option {
	return func(a *Analyzer) {
		a.specExts = make(map[string]bool, len(exts))
		for _, ext := range exts {
			a.specExts[ext] = true
		}
	}
}

// NewAnalyzer creates an analyzer for the given profiles
func NewAnalyzer(profiles []FileTypeProfile, opts ...Option) *Analyzer {
	a := &Analyzer{
		profiles:    NewProfiles(profiles),
		fs:          afero.NewOsFs(),
		logger:      slog.Default(),
		concurrency: runtime.NumCPU(),
	}
	WithSpecExtensions(DefaultSpecExtensions...)(a)
	for _, opt := range opts {
		opt(a)
	}
	if a.resolver == nil {
		a.resolver = NewFSResolver(a.fs, a.logger)
	}
	return a
}

// Run performs both passes over files
func (a *Analyzer) Run(ctx context.Context, files []string) (*CoverageReport, error) {
	report, err := a.CheckTestCoverage(ctx, files)
	if err != nil {
		return nil, err
	}
	return a.CheckMarkupCoverage(ctx, report)
}

type target struct {
	path    string
	profile *FileTypeProfile
}

type fileResult struct {
	file *FileCoverageReport
	errs []CoverageError
}

// CheckTestCoverage classifies every line of every file. It fails only
// with a *ConfigurationError when a file has no profile; that check runs
// before any file is read. Every other problem is recorded in the
// report's errors.
func (a *Analyzer) CheckTestCoverage(ctx context.Context, files []string) (*CoverageReport, error) {
	targets := make([]target, 0, len(files))
	for _, file := range files {
		ext := filepath.Ext(file)
		if a.specExts[ext] {
			a.logger.Info("skipping test spec, specs are not coverage targets",
				slog.String("file", file),
			)
			continue
		}
		profile := a.profiles.Lookup(ext)
		if profile == nil {
			return nil, &ConfigurationError{Extension: ext, File: file}
		}
		targets = append(targets, target{path: file, profile: profile})
	}

	results := make([]fileResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, t := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.classifyFile(t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("check test coverage: %w", err)
	}

	report := &CoverageReport{Files: make([]FileCoverageReport, 0, len(results))}
	errLists := make([][]CoverageError, 0, len(results))
	for _, r := range results {
		if r.file != nil {
			report.Files = append(report.Files, *r.file)
		}
		errLists = append(errLists, r.errs)
	}
	report.Errors = MergeErrors(errLists...)
	return report, nil
}

func (a *Analyzer) classifyFile(t target) fileResult {
	data, err := afero.ReadFile(a.fs, t.path)
	if err != nil {
		a.logger.Warn("cannot read file", slog.String("file", t.path), slog.String("error", err.Error()))
		return fileResult{errs: []CoverageError{{
			File:        t.path,
			Kind:        KindReadFailure,
			Description: fmt.Sprintf("Cannot read file: %v.", err),
		}}}
	}

	content := string(data)
	lines, errs := Classify(t.profile, t.path, SplitLines(content), a.resolver)
	file := Aggregate(t.path, t.profile, lines, nil)
	file.content = content

	a.logger.Debug("classified file",
		slog.String("file", t.path),
		slog.Int("covered", len(file.CoveredLines)),
		slog.Int("uncovered", len(file.UncoveredLines)),
		slog.Int("errors", len(errs)),
	)
	return fileResult{file: &file, errs: errs}
}

// CheckMarkupCoverage returns a new report with markup coverage added to
// every file of report. report itself is left unchanged.
func (a *Analyzer) CheckMarkupCoverage(ctx context.Context, report *CoverageReport) (*CoverageReport, error) {
	if report == nil {
		report = &CoverageReport{}
	}

	results := make([]fileResult, len(report.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := range report.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := a.matchFile(&report.Files[i])
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("check markup coverage: %w", err)
	}

	out := &CoverageReport{Files: make([]FileCoverageReport, 0, len(results))}
	// Pattern errors are recomputed by this pass
	carried := slices.DeleteFunc(slices.Clone(report.Errors), func(e CoverageError) bool {
		return e.Kind == KindInvalidPattern
	})
	errLists := [][]CoverageError{carried}
	for _, r := range results {
		if r.file != nil {
			out.Files = append(out.Files, *r.file)
		}
		errLists = append(errLists, r.errs)
	}
	out.Errors = MergeErrors(errLists...)
	return out, nil
}

func (a *Analyzer) matchFile(in *FileCoverageReport) (fileResult, error) {
	profile := in.FileType
	ext := filepath.Ext(in.File)
	if profile == nil {
		if profile = a.profiles.Lookup(ext); profile == nil {
			return fileResult{}, &ConfigurationError{Extension: ext, File: in.File}
		}
	}

	content := in.content
	if content == "" {
		data, err := afero.ReadFile(a.fs, in.File)
		if err != nil {
			return fileResult{errs: []CoverageError{{
				File:        in.File,
				Kind:        KindReadFailure,
				Description: fmt.Sprintf("Cannot read file: %v.", err),
			}}}, nil
		}
		content = string(data)
	}

	lines := in.Classification()
	res := MatchMarkup(profile.Markup, content, lines)

	for _, name := range res.Unconfigured {
		a.warnUnconfigured(ext, name)
	}
	var errs []CoverageError
	for _, perr := range res.InvalidPatterns {
		errs = append(errs, CoverageError{
			File:        in.File,
			Kind:        KindInvalidPattern,
			Description: fmt.Sprintf("%v.", perr),
		})
	}

	file := Aggregate(in.File, profile, lines, res.Categories)
	file.content = content
	return fileResult{file: &file, errs: errs}, nil
}

// warnUnconfigured logs a category without patterns once per extension
func (a *Analyzer) warnUnconfigured(ext, category string) {
	if _, seen := a.warned.LoadOrStore(ext+"\x00"+category, true); seen {
		return
	}
	a.logger.Warn(fmt.Sprintf("No regex for '%s'. Set 'fileType.markup.%s' for the '%s' extension in your config.", category, category, ext),
		slog.String("extension", ext),
		slog.String("markup", category),
	)
}
