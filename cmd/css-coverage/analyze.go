package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/jupierce/css-coverage-analysis/pkg/config"
	"github.com/jupierce/css-coverage-analysis/pkg/coverage"
)

var (
	analyzeJSON    bool
	analyzeMinLine float64
	analyzeMinByte float64
	analyzeUTF16   bool
	analyzeInclude []string
	analyzeExclude []string
	analyzeNoColor bool

	analyzeCmd = &cobra.Command{
		Use:   "analyze [paths...]",
		Short: "Compute CSS coverage from coverage dumps",
		Long: `Load every *.json coverage dump from the given files and directories
(default ./` + defaultCoverageDir + `), reduce them to per-stylesheet coverage
and print a summary.

Files that are not coverage dumps are skipped with a warning. With
--min-line-coverage or --min-byte-coverage the command exits non-zero when
the overall ratio is below the threshold.`,
		RunE: runAnalyze,
	}
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the full result as JSON")
	analyzeCmd.Flags().Float64Var(&analyzeMinLine, "min-line-coverage", 0, "Fail when the line coverage ratio is below this value (0-1)")
	analyzeCmd.Flags().Float64Var(&analyzeMinByte, "min-byte-coverage", 0, "Fail when the byte coverage ratio is below this value (0-1)")
	analyzeCmd.Flags().BoolVar(&analyzeUTF16, "utf16-offsets", true, "Treat range offsets as UTF-16 code units")
	analyzeCmd.Flags().StringSliceVar(&analyzeInclude, "include", nil, "Only keep resources whose URL matches one of these globs")
	analyzeCmd.Flags().StringSliceVar(&analyzeExclude, "exclude", nil, "Drop resources whose URL matches one of these globs")
	analyzeCmd.Flags().BoolVar(&analyzeNoColor, "no-color", false, "Disable colored output")
}

// analyzeSettings applies the analyze flags that were set on top of the
// loaded settings.
func analyzeSettings(cmd *cobra.Command, cfg config.Config) (config.Config, error) {
	flags := cmd.Flags()
	if flags.Changed("min-line-coverage") {
		cfg.MinLineCoverage = analyzeMinLine
	}
	if flags.Changed("min-byte-coverage") {
		cfg.MinByteCoverage = analyzeMinByte
	}
	if flags.Changed("utf16-offsets") {
		cfg.UTF16Offsets = analyzeUTF16
	}
	if flags.Changed("include") {
		cfg.Include = analyzeInclude
	}
	if flags.Changed("exclude") {
		cfg.Exclude = analyzeExclude
	}
	return cfg, cfg.Validate()
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := analyzeSettings(cmd, settings)
	if err != nil {
		return err
	}
	if analyzeNoColor {
		color.NoColor = true
	}

	logger, err := createLogger("")
	if err != nil {
		return err
	}
	defer logger.Close()
	logger.SetOutput(cmd.ErrOrStderr(), cmd.ErrOrStderr())

	paths := args
	if len(paths) == 0 {
		paths = []string{defaultCoverageDir}
	}

	files, err := findCoverageFiles(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no coverage files found in %s", strings.Join(paths, ", "))
	}
	logger.Debug("Found %d coverage files", len(files))

	loaded, loadErr := loadCoverageFiles(cmd.Context(), files, coverage.ParseOptions{UTF16Offsets: cfg.UTF16Offsets}, cfg.MaxConcurrency)
	if loaded == nil {
		return loadErr
	}
	failed := multierr.Errors(loadErr)
	for _, err := range failed {
		logger.Warning("Skipping %v", err)
	}
	if len(failed) == len(loaded) {
		return fmt.Errorf("no coverage file could be read: %w", loadErr)
	}

	filter, err := cfg.URLFilter()
	if err != nil {
		return err
	}
	result := reduceFiles(loaded, filter)
	logger.Debug("Analyzed %d resources into %d stylesheets", result.FilesFound, len(result.CoveragePerStylesheet))
	if result.DroppedRanges > 0 {
		logger.Debug("%d ranges could not be aligned with the formatted text", result.DroppedRanges)
	}

	out := cmd.OutOrStdout()
	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	} else {
		printSummary(out, result, summaryCounts{
			Files:  len(loaded),
			Failed: len(failed),
		}, cfg)
	}

	return checkThresholds(result, cfg)
}

type summaryCounts struct {
	Files  int
	Failed int
}

// printSummary writes the human readable report.
func printSummary(w io.Writer, result coverage.Result, counts summaryCounts, cfg config.Config) {
	bold := color.New(color.Bold)

	bold.Fprintln(w, "CSS coverage")
	fmt.Fprintf(w, "  Files:        %d read, %d skipped\n", counts.Files-counts.Failed, counts.Failed)
	fmt.Fprintf(w, "  Resources:    %s\n", humanize.Comma(int64(result.FilesFound)))
	fmt.Fprintf(w, "  Stylesheets:  %s\n", humanize.Comma(int64(len(result.CoveragePerStylesheet))))
	fmt.Fprintf(w, "  Size:         %s (%s used, %s unused)\n",
		humanize.Bytes(uint64(result.TotalBytes)),
		humanize.Bytes(uint64(result.UsedBytes)),
		humanize.Bytes(uint64(result.UnusedBytes)))
	fmt.Fprintf(w, "  Lines:        %s of %s covered\n",
		humanize.Comma(int64(result.CoveredLines)),
		humanize.Comma(int64(result.TotalLines)))
	fmt.Fprintf(w, "  Line coverage %s\n", ratioColor(result.LineCoverageRatio, cfg.MinLineCoverage).Sprint(formatRatio(result.LineCoverageRatio)))
	fmt.Fprintf(w, "  Byte coverage %s\n", ratioColor(result.ByteCoverageRatio, cfg.MinByteCoverage).Sprint(formatRatio(result.ByteCoverageRatio)))

	if len(result.CoveragePerStylesheet) == 0 {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tSIZE\tLINES\tLINE %\tBYTE %")
	for _, sc := range result.CoveragePerStylesheet {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\n",
			shortenURL(sc.URL, 72),
			humanize.Bytes(uint64(sc.TotalBytes)),
			sc.CoveredLines, sc.TotalLines,
			formatRatio(sc.LineCoverageRatio),
			formatRatio(sc.ByteCoverageRatio))
	}
	tw.Flush()
}

func ratioColor(ratio, threshold float64) *color.Color {
	switch {
	case threshold > 0 && ratio < threshold:
		return color.New(color.FgRed, color.Bold)
	case threshold > 0:
		return color.New(color.FgGreen, color.Bold)
	default:
		return color.New(color.Bold)
	}
}

func formatRatio(r float64) string {
	return fmt.Sprintf("%.1f%%", r*100)
}

// shortenURL cuts long URLs, such as data: URLs, in the middle.
func shortenURL(u string, limit int) string {
	if len(u) <= limit || limit < 5 {
		return u
	}
	half := (limit - 3) / 2
	return u[:half] + "..." + u[len(u)-(limit-3-half):]
}

// checkThresholds fails when an overall ratio is below its configured
// minimum. A zero minimum disables the check.
func checkThresholds(result coverage.Result, cfg config.Config) error {
	var errs error
	if cfg.MinLineCoverage > 0 && result.LineCoverageRatio < cfg.MinLineCoverage {
		errs = multierr.Append(errs, fmt.Errorf("line coverage %s is below the minimum of %s",
			formatRatio(result.LineCoverageRatio), formatRatio(cfg.MinLineCoverage)))
	}
	if cfg.MinByteCoverage > 0 && result.ByteCoverageRatio < cfg.MinByteCoverage {
		errs = multierr.Append(errs, fmt.Errorf("byte coverage %s is below the minimum of %s",
			formatRatio(result.ByteCoverageRatio), formatRatio(cfg.MinByteCoverage)))
	}
	return errs
}
