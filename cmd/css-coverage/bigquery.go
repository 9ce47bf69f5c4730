package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/spf13/cobra"
	"google.golang.org/api/googleapi"

	"github.com/jupierce/css-coverage-analysis/pkg/config"
	"github.com/jupierce/css-coverage-analysis/pkg/coverage"
)

// BigQuery command flags
var (
	bqProject    string
	bqDataset    string
	bqCollection string
	bqURLs       []string
)

// BigQuery row types

type CoverageDataRow struct {
	IngestionTime time.Time `bigquery:"ingestion_time"`
	RunID         string    `bigquery:"run_id"`
	CollectionID  string    `bigquery:"collection_id"`
	StylesheetURL string    `bigquery:"stylesheet_url"`
	TextHash      string    `bigquery:"text_hash"`
	LineNumber    int       `bigquery:"line_number"`
	LineText      string    `bigquery:"line_text"`
	Covered       bool      `bigquery:"covered"`
}

type ChunkEntry struct {
	StartLine int `bigquery:"start_line"`
	EndLine   int `bigquery:"end_line"`
}

type StylesheetRow struct {
	IngestionTime     time.Time    `bigquery:"ingestion_time"`
	RunID             string       `bigquery:"run_id"`
	CollectionID      string       `bigquery:"collection_id"`
	StylesheetURL     string       `bigquery:"stylesheet_url"`
	TextHash          string       `bigquery:"text_hash"`
	TotalBytes        int          `bigquery:"total_bytes"`
	UsedBytes         int          `bigquery:"used_bytes"`
	TotalLines        int          `bigquery:"total_lines"`
	CoveredLines      int          `bigquery:"covered_lines"`
	LineCoverageRatio float64      `bigquery:"line_coverage_ratio"`
	ByteCoverageRatio float64      `bigquery:"byte_coverage_ratio"`
	UncoveredChunks   []ChunkEntry `bigquery:"uncovered_chunks"`
}

var bigqueryCmd = &cobra.Command{
	Use:   "bigquery",
	Short: "BigQuery operations",
	Long:  `Export compiled CSS coverage to Google BigQuery for cross-collection analysis.`,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest coverage data into BigQuery",
	Long: `Ingest the last compile of a collection's SQLite database into BigQuery.

Creates two tables in the specified dataset:
  - coverage_data: One row per formatted stylesheet line with its state
  - stylesheets:   One row per stylesheet with its statistics

The dataset and tables are created if they don't exist.`,
	Example: `  # Ingest every stylesheet
  css-coverage bigquery --project my-project --dataset css_coverage \
    ingest --collection nightly

  # Ingest only first-party stylesheets
  css-coverage bigquery --project my-project --dataset css_coverage \
    ingest --collection nightly --url 'https://app.example.com/*'`,
	RunE: runIngest,
}

func init() {
	bigqueryCmd.PersistentFlags().StringVar(&bqProject, "project", "", "GCP project ID (required)")
	bigqueryCmd.PersistentFlags().StringVar(&bqDataset, "dataset", "", "BigQuery dataset name (required)")
	bigqueryCmd.MarkPersistentFlagRequired("project")
	bigqueryCmd.MarkPersistentFlagRequired("dataset")

	ingestCmd.Flags().StringVar(&bqCollection, "collection", "", "Collection directory (required)")
	ingestCmd.Flags().StringArrayVar(&bqURLs, "url", nil, "Stylesheet URL glob patterns (repeatable, OR logic)")
	ingestCmd.MarkFlagRequired("collection")

	bigqueryCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(bigqueryCmd)
}

// rowPutter is the part of *bigquery.Inserter used for streaming rows.
type rowPutter interface {
	Put(ctx context.Context, src interface{}) error
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ingestionTime := time.Now().UTC()

	logger, err := createLogger(filepath.Join(bqCollection, "logs"))
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.Info("Ingesting coverage data for collection: %s", bqCollection)
	logger.Info("BigQuery target: %s.%s", bqProject, bqDataset)

	dbPath := filepath.Join(bqCollection, "coverage.db")
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database not found at %s, run 'collection compile' first", dbPath)
	}
	db, err := openDBReadOnly(dbPath)
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
	urlFilter, err := config.NewURLFilter(bqURLs, nil)
	if err != nil {
		return fmt.Errorf("--url: %w", err)
	}
	sheets, err := loadStylesheets(db, func(url string) bool {
		return filter.Selects(url) && urlFilter.Selects(url)
	})
	if err != nil {
		return err
	}
	logger.Info("Loaded %d stylesheets from run %s", len(sheets), run.ID)
	if len(sheets) == 0 {
		logger.Info("No stylesheets match the filter criteria")
		return nil
	}

	client, err := bigquery.NewClient(ctx, bqProject)
	if err != nil {
		return fmt.Errorf("create BigQuery client: %w", err)
	}
	defer client.Close()

	if err := ensureBQDatasetAndTables(ctx, client, bqDataset); err != nil {
		return fmt.Errorf("setup BigQuery: %w", err)
	}

	dataset := client.Dataset(bqDataset)
	stats, err := ingestStylesheets(ctx, dataset.Table("stylesheets").Inserter(), dataset.Table("coverage_data").Inserter(),
		sheets, run.ID, bqCollection, ingestionTime)
	for _, w := range stats.Warnings {
		logger.Warning("%s", w)
	}
	if err != nil {
		return err
	}

	logger.Success("Ingestion complete: %d stylesheets rows, %d coverage_data rows", stats.StylesheetRows, stats.DataRows)
	return nil
}

type ingestStats struct {
	StylesheetRows int
	DataRows       int
	Warnings       []string
}

// ingestStylesheets streams one stylesheet row and the line rows of every
// sheet. Failed inserts are reported as warnings; ingestion fails only when
// nothing was inserted.
func ingestStylesheets(ctx context.Context, sheetPut, dataPut rowPutter, sheets []coverage.StylesheetCoverage,
	runID, collectionID string, ingestionTime time.Time) (ingestStats, error) {
	var stats ingestStats

	names := profileNames(sheets)
	for i, sc := range sheets {
		row := buildStylesheetRow(sc, names[i], runID, collectionID, ingestionTime)
		if err := sheetPut.Put(ctx, &row); err != nil {
			stats.Warnings = append(stats.Warnings, fmt.Sprintf("failed to insert stylesheet row for %s: %v", names[i], err))
		} else {
			stats.StylesheetRows++
		}

		dataRows := buildCoverageDataRows(sc, names[i], runID, collectionID, ingestionTime)
		n, warnings := putInBatches(ctx, dataPut, dataRows, 500)
		stats.DataRows += n
		stats.Warnings = append(stats.Warnings, warnings...)
	}

	if stats.StylesheetRows == 0 && stats.DataRows == 0 {
		return stats, errors.New("no rows could be inserted")
	}
	return stats, nil
}

func buildStylesheetRow(sc coverage.StylesheetCoverage, name, runID, collectionID string, ingestionTime time.Time) StylesheetRow {
	row := StylesheetRow{
		IngestionTime:     ingestionTime,
		RunID:             runID,
		CollectionID:      collectionID,
		StylesheetURL:     name,
		TextHash:          textHash(sc.Text),
		TotalBytes:        sc.TotalBytes,
		UsedBytes:         sc.UsedBytes,
		TotalLines:        sc.TotalLines,
		CoveredLines:      sc.CoveredLines,
		LineCoverageRatio: sc.LineCoverageRatio,
		ByteCoverageRatio: sc.ByteCoverageRatio,
		UncoveredChunks:   []ChunkEntry{},
	}
	for _, c := range sc.Chunks {
		if !c.Covered {
			row.UncoveredChunks = append(row.UncoveredChunks, ChunkEntry{StartLine: c.StartLine, EndLine: c.EndLine})
		}
	}
	return row
}

// buildCoverageDataRows returns one row per line of the formatted text.
func buildCoverageDataRows(sc coverage.StylesheetCoverage, name, runID, collectionID string, ingestionTime time.Time) []CoverageDataRow {
	if sc.Text == "" {
		return nil
	}
	hash := textHash(sc.Text)
	lines := strings.Split(sc.Text, "\n")
	rows := make([]CoverageDataRow, 0, len(lines))
	for i, line := range lines {
		rows = append(rows, CoverageDataRow{
			IngestionTime: ingestionTime,
			RunID:         runID,
			CollectionID:  collectionID,
			StylesheetURL: name,
			TextHash:      hash,
			LineNumber:    i + 1,
			LineText:      line,
			Covered:       i < len(sc.LineCoverage) && sc.LineCoverage[i] == 1,
		})
	}
	return rows
}

// putInBatches inserts rows batchSize at a time and returns how many were
// inserted.
func putInBatches[T any](ctx context.Context, put rowPutter, rows []T, batchSize int) (int, []string) {
	var (
		inserted int
		warnings []string
	)
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		batch := make([]*T, 0, end-start)
		for j := start; j < end; j++ {
			batch = append(batch, &rows[j])
		}
		if err := put.Put(ctx, batch); err != nil {
			warnings = append(warnings, fmt.Sprintf("batch insert failed at offset %d: %v", start, err))
			continue
		}
		inserted += len(batch)
	}
	return inserted, warnings
}

// alreadyExists reports whether err is BigQuery's 409 for an existing
// dataset or table.
func alreadyExists(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return true
	}
	return strings.Contains(err.Error(), "Already Exists") || strings.Contains(err.Error(), "alreadyExists")
}

// ensureBQDatasetAndTables creates the dataset and tables if they don't exist.
func ensureBQDatasetAndTables(ctx context.Context, client *bigquery.Client, datasetID string) error {
	dataset := client.Dataset(datasetID)

	if err := dataset.Create(ctx, &bigquery.DatasetMetadata{}); err != nil && !alreadyExists(err) {
		return fmt.Errorf("create dataset: %w", err)
	}

	coverageDataSchema := bigquery.Schema{
		{Name: "ingestion_time", Type: bigquery.TimestampFieldType, Required: true},
		{Name: "run_id", Type: bigquery.StringFieldType, Required: true},
		{Name: "collection_id", Type: bigquery.StringFieldType, Required: true},
		{Name: "stylesheet_url", Type: bigquery.StringFieldType, Required: true},
		{Name: "text_hash", Type: bigquery.StringFieldType, Required: true},
		{Name: "line_number", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "line_text", Type: bigquery.StringFieldType},
		{Name: "covered", Type: bigquery.BooleanFieldType, Required: true},
	}
	if err := dataset.Table("coverage_data").Create(ctx, &bigquery.TableMetadata{
		Schema: coverageDataSchema,
		TimePartitioning: &bigquery.TimePartitioning{
			Field: "ingestion_time",
		},
		Clustering: &bigquery.Clustering{
			Fields: []string{"collection_id", "text_hash"},
		},
	}); err != nil && !alreadyExists(err) {
		return fmt.Errorf("create coverage_data table: %w", err)
	}

	stylesheetsSchema := bigquery.Schema{
		{Name: "ingestion_time", Type: bigquery.TimestampFieldType, Required: true},
		{Name: "run_id", Type: bigquery.StringFieldType, Required: true},
		{Name: "collection_id", Type: bigquery.StringFieldType, Required: true},
		{Name: "stylesheet_url", Type: bigquery.StringFieldType, Required: true},
		{Name: "text_hash", Type: bigquery.StringFieldType, Required: true},
		{Name: "total_bytes", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "used_bytes", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "total_lines", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "covered_lines", Type: bigquery.IntegerFieldType, Required: true},
		{Name: "line_coverage_ratio", Type: bigquery.FloatFieldType, Required: true},
		{Name: "byte_coverage_ratio", Type: bigquery.FloatFieldType, Required: true},
		{Name: "uncovered_chunks", Type: bigquery.RecordFieldType, Repeated: true, Schema: bigquery.Schema{
			{Name: "start_line", Type: bigquery.IntegerFieldType},
			{Name: "end_line", Type: bigquery.IntegerFieldType},
		}},
	}
	if err := dataset.Table("stylesheets").Create(ctx, &bigquery.TableMetadata{
		Schema: stylesheetsSchema,
		TimePartitioning: &bigquery.TimePartitioning{
			Field: "ingestion_time",
		},
		Clustering: &bigquery.Clustering{
			Fields: []string{"collection_id", "stylesheet_url"},
		},
	}); err != nil && !alreadyExists(err) {
		return fmt.Errorf("create stylesheets table: %w", err)
	}

	return nil
}
