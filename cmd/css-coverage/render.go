package main

import (
	"bufio"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gosimple/slug"
	"github.com/maruel/natural"
	"github.com/spf13/cobra"

	"github.com/jupierce/css-coverage-analysis/pkg/coverage"
	"github.com/jupierce/css-coverage-analysis/pkg/log"
)

var (
	renderOutputDir string
	renderSkipPages bool
)

// SheetReport is one row of the index and, unless pages are skipped, one
// annotated page.
type SheetReport struct {
	URL          string
	Name         string
	Page         string // file name relative to the output directory
	TotalBytes   int
	UsedBytes    int
	TotalLines   int
	CoveredLines int
	LineCoverage float64 // percentage
	ByteCoverage float64 // percentage
	Uncovered    []coverage.Chunk

	sheet coverage.StylesheetCoverage
}

// ReportStats holds the totals shown at the top of the index.
type ReportStats struct {
	RunID        string
	CompiledAt   time.Time
	Stylesheets  int
	FilesFound   int
	TotalBytes   int
	UsedBytes    int
	TotalLines   int
	CoveredLines int
	LineCoverage float64 // percentage
	ByteCoverage float64 // percentage
	Excellent    int
	Good         int
	Moderate     int
	Poor         int
	Critical     int
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Generate HTML coverage reports and interactive index",
	Long: `Generate HTML reports from the compiled collection database.

Creates an index.html with a sortable, filterable table of every stylesheet
and one page per stylesheet showing its formatted text with line numbers,
used lines highlighted and unused runs of lines listed.`,
	Example: `  css-coverage collection render --collection nightly
  css-coverage collection render --collection nightly --output-dir /tmp/report`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderOutputDir, "output-dir", "", "Output directory for HTML reports (default: <collection>/html)")
	renderCmd.Flags().BoolVar(&renderSkipPages, "skip-pages", false, "Only create the index, not the per-stylesheet pages")
	collectionCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	logger, err := createCollectionLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	outputDir := renderOutputDir
	if outputDir == "" {
		outputDir = collectionPath("html")
	}

	logger.Info("🎨 Rendering coverage reports for collection: %s", collectionDir)
	logger.Info("📁 Output directory: %s", outputDir)

	db, err := openDBReadOnly(collectionPath("coverage.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := latestRun(db)
	if err != nil {
		return err
	}
	filter, err := settings.URLFilter()
	if err != nil {
		return err
	}
	sheets, err := loadStylesheets(db, filter.Selects)
	if err != nil {
		return err
	}
	logger.Info("Found %d stylesheets", len(sheets))

	return renderReport(outputDir, run, sheets, !renderSkipPages, logger)
}

// renderReport writes index.html and, when pages is set, one page per
// stylesheet into outputDir.
func renderReport(outputDir string, run runRecord, sheets []coverage.StylesheetCoverage, pages bool, logger *log.Logger) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	reports := buildSheetReports(sheets)
	stats := calculateReportStats(run, reports)

	if pages {
		for i := range reports {
			logger.Debug("[%d/%d] %s", i+1, len(reports), reports[i].Name)
			path := filepath.Join(outputDir, reports[i].Page)
			if err := renderSheetPage(path, &reports[i]); err != nil {
				logger.Warning("Failed to render %s: %v", reports[i].Name, err)
				reports[i].Page = ""
			}
		}
	} else {
		for i := range reports {
			reports[i].Page = ""
		}
	}

	if err := renderIndex(filepath.Join(outputDir, "index.html"), reports, stats); err != nil {
		return fmt.Errorf("render index: %w", err)
	}

	logger.Success("Report written to %s", filepath.Join(outputDir, "index.html"))
	return nil
}

// buildSheetReports converts stylesheets into index rows ordered naturally
// by name.
func buildSheetReports(sheets []coverage.StylesheetCoverage) []SheetReport {
	names := profileNames(sheets)
	reports := make([]SheetReport, len(sheets))
	for i, sc := range sheets {
		r := SheetReport{
			URL:          sc.URL,
			Name:         names[i],
			TotalBytes:   sc.TotalBytes,
			UsedBytes:    sc.UsedBytes,
			TotalLines:   sc.TotalLines,
			CoveredLines: sc.CoveredLines,
			LineCoverage: sc.LineCoverageRatio * 100,
			ByteCoverage: sc.ByteCoverageRatio * 100,
			sheet:        sc,
		}
		for _, c := range sc.Chunks {
			if !c.Covered {
				r.Uncovered = append(r.Uncovered, c)
			}
		}
		reports[i] = r
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return natural.Less(reports[i].Name, reports[j].Name)
	})
	for i := range reports {
		reports[i].Page = pageFileName(i, reports[i].Name)
	}
	return reports
}

// pageFileName returns a file system safe, unique page name.
func pageFileName(index int, name string) string {
	s := slug.Make(name)
	if len(s) > 80 {
		s = s[:80]
	}
	if s == "" {
		s = "stylesheet"
	}
	return fmt.Sprintf("%04d-%s.html", index+1, s)
}

func calculateReportStats(run runRecord, reports []SheetReport) ReportStats {
	stats := ReportStats{
		RunID:       run.ID,
		CompiledAt:  run.FinishedAt,
		Stylesheets: len(reports),
		FilesFound:  run.Result.FilesFound,
	}

	for _, r := range reports {
		stats.TotalBytes += r.TotalBytes
		stats.UsedBytes += r.UsedBytes
		stats.TotalLines += r.TotalLines
		stats.CoveredLines += r.CoveredLines

		switch colorClass(r.LineCoverage) {
		case "excellent":
			stats.Excellent++
		case "good":
			stats.Good++
		case "moderate":
			stats.Moderate++
		case "poor":
			stats.Poor++
		default:
			stats.Critical++
		}
	}

	if stats.TotalLines > 0 {
		stats.LineCoverage = float64(stats.CoveredLines) / float64(stats.TotalLines) * 100
	}
	if stats.TotalBytes > 0 {
		stats.ByteCoverage = float64(stats.UsedBytes) / float64(stats.TotalBytes) * 100
	}
	return stats
}

func renderIndex(path string, reports []SheetReport, stats ReportStats) error {
	tmpl, err := template.New("index").Funcs(templateFuncs).Parse(indexTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	data := struct {
		Sheets []SheetReport
		Stats  ReportStats
	}{
		Sheets: reports,
		Stats:  stats,
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return w.Flush()
}
