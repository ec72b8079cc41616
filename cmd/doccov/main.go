package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gubarz/doccov/internal/config"
	"github.com/gubarz/doccov/internal/coverage"
	"github.com/gubarz/doccov/internal/discover"
	"github.com/gubarz/doccov/internal/output"
	"github.com/gubarz/doccov/internal/ui"
)

var version = "0.1.0"

// errBelowThreshold is returned when --fail-under is not met
var errBelowThreshold = errors.New("coverage below threshold")

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "doccov [path]",
		Short: "Documentation test coverage",
		Long: `Measures how much of your documentation is covered by tests.

Lines between test annotations count as covered. Markup such as code
blocks, links and images outside annotated blocks is reported as untested.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(configFile); err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: config.GetLogLevel(),
			})))
			if err := config.EnvFileError(); err != nil {
				slog.Warn("env file not loaded", slog.String("error", err.Error()))
			}
			return nil
		},
		RunE: runCheck,
	}

	browseCmd := &cobra.Command{
		Use:   "browse [path]",
		Short: "Analyze and browse the results interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runBrowse,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "doccov %s\n", version)
		},
	}

	rootCmd.AddCommand(browseCmd, versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file (default: doccov.yaml in ~/.config/doccov, ~ or .)")
	flags.StringP("output", "o", "", "Write the report to this file")
	flags.StringP("format", "f", "json", "Report format: json, yaml")
	flags.StringSliceP("ext", "e", nil, "Only analyze files with these extensions (default: all configured)")
	flags.BoolP("recursive", "r", true, "Descend into subdirectories")
	flags.StringSlice("exclude", nil, "Glob patterns of paths to skip, relative to the input")
	flags.String("log-level", "warn", "Log level: debug, info, warn, error")
	flags.String("env", "", "Load environment variables from this file")
	flags.Float64("fail-under", 0, "Exit non-zero when line coverage is below this percentage")
	rootCmd.Flags().Bool("no-summary", false, "Don't print the summary table")

	viper.BindPFlag("output", flags.Lookup("output"))
	viper.BindPFlag("format", flags.Lookup("format"))
	viper.BindPFlag("extensions", flags.Lookup("ext"))
	viper.BindPFlag("recursive", flags.Lookup("recursive"))
	viper.BindPFlag("exclude", flags.Lookup("exclude"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("env_file", flags.Lookup("env"))
	viper.BindPFlag("fail_under", flags.Lookup("fail-under"))

	return rootCmd
}

// analysis is the outcome of one coverage run
type analysis struct {
	report  *coverage.CoverageReport
	baseDir string
}

// analyze discovers the input files and runs both coverage passes
func analyze(ctx context.Context, fs afero.Fs, args []string) (*analysis, error) {
	if len(args) > 0 {
		config.SetInput(args[0])
	}
	input, err := filepath.Abs(config.GetInput())
	if err != nil {
		return nil, fmt.Errorf("error resolving path: %w", err)
	}

	profiles, err := config.GetFileTypes()
	if err != nil {
		return nil, fmt.Errorf("invalid file_types: %w", err)
	}

	extensions := config.GetExtensions()
	if len(extensions) == 0 {
		for _, p := range profiles {
			extensions = append(extensions, p.Extensions...)
		}
	}

	files, err := discover.Files(fs, input, discover.Options{
		Recursive:  config.GetRecursive(),
		Extensions: extensions,
		Exclude:    config.GetExclude(),
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("files discovered", slog.String("input", input), slog.Int("count", len(files)))

	// An empty spec_extensions list turns spec skipping off
	analyzer := coverage.NewAnalyzer(profiles,
		coverage.WithFs(fs),
		coverage.WithLogger(slog.Default()),
		coverage.WithConcurrency(config.GetConcurrency()),
		coverage.WithSpecExtensions(config.GetSpecExtensions()...),
	)

	report, err := analyzer.Run(ctx, files)
	if err != nil {
		return nil, err
	}

	baseDir := input
	if info, err := fs.Stat(input); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(input)
	}
	return &analysis{report: report, baseDir: baseDir}, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	// Validate the format before doing any work
	format, err := output.ParseFormat(config.GetFormat())
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	res, err := analyze(cmd.Context(), fs, args)
	if err != nil {
		return err
	}

	if path := config.GetOutput(); path != "" {
		if err := output.WriteFile(fs, path, output.NewDocument(res.report), format); err != nil {
			return err
		}
		slog.Info("report written", slog.String("path", path))
	}

	if noSummary, _ := cmd.Flags().GetBool("no-summary"); !noSummary {
		io.WriteString(cmd.OutOrStdout(), ui.RenderSummary(res.report, res.baseDir))
	}

	if threshold := config.GetFailUnder(); threshold > 0 {
		if pct := res.report.Summary().Percent(); pct < threshold {
			return fmt.Errorf("%w: %.1f%% < %.1f%%", errBelowThreshold, pct, threshold)
		}
	}
	return nil
}

func runBrowse(cmd *cobra.Command, args []string) error {
	res, err := analyze(cmd.Context(), afero.NewOsFs(), args)
	if err != nil {
		return err
	}
	return ui.Browse(res.report, res.baseDir)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
