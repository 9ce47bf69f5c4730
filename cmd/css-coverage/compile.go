package main

import (
	"context"
	"crypto/md5"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/jupierce/css-coverage-analysis/pkg/config"
	"github.com/jupierce/css-coverage-analysis/pkg/coverage"
	"github.com/jupierce/css-coverage-analysis/pkg/log"
)

var (
	compileForce bool

	compileCmd = &cobra.Command{
		Use:   "compile",
		Short: "Reduce coverage dumps into an SQLite database",
		Long: `Reduce every coverage dump in <collection>/coverage into
<collection>/coverage.db.

The compile step:
  - Records each dump with the MD5 hash of its contents
  - Filters, formats and deduplicates the stylesheets of all dumps together
  - Stores per-stylesheet text, ranges, line bitmap and statistics
  - Records the run with its totals

Change detection uses MD5 hashes of the dumps and the settings that affect
the result. An unchanged collection is not recompiled unless --force is set.`,
		Example: `  # Compile the collection (skipped when nothing changed)
  css-coverage collection compile --collection nightly

  # Recompile regardless
  css-coverage collection compile --collection nightly --force`,
		RunE: runCompile,
	}
)

func init() {
	compileCmd.Flags().BoolVar(&compileForce, "force", false, "Recompile even when no input changed")
	collectionCmd.AddCommand(compileCmd)
}

// compileStats summarises one compile invocation.
type compileStats struct {
	RunID     string // empty when skipped
	Skipped   bool
	Processed int
	Unchanged int
	Failed    int
	Stale     int
	Result    coverage.Result
}

func runCompile(cmd *cobra.Command, args []string) error {
	logger, err := createCollectionLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.Info("Compiling coverage data for collection: %s", collectionDir)

	stats, err := compileCollection(cmd.Context(), collectionDir, settings, compileForce, logger)
	if err != nil {
		return err
	}

	if stats.Skipped {
		logger.Success("Collection unchanged, nothing to compile (use --force to recompile)")
		return nil
	}
	logger.Success("Compilation complete. Run %s: %d stylesheets, %s line coverage, %s byte coverage",
		stats.RunID, len(stats.Result.CoveragePerStylesheet),
		formatRatio(stats.Result.LineCoverageRatio), formatRatio(stats.Result.ByteCoverageRatio))
	return nil
}

// compileCollection ingests the dumps of dir into its database.
func compileCollection(ctx context.Context, dir string, cfg config.Config, force bool, logger *log.Logger) (compileStats, error) {
	var stats compileStats
	started := time.Now()

	paths, err := findCoverageFiles([]string{filepath.Join(dir, "coverage")})
	if err != nil {
		return stats, err
	}

	dbLog := logger.Named("sqlite")
	dbPath := filepath.Join(dir, "coverage.db")
	db, err := openDB(dbPath)
	if err != nil {
		return stats, err
	}
	defer db.Close()
	dbLog.Debug("Opened %s (schema v%d)", dbPath, schemaVersion)

	// Phase 1: Ingest coverage files
	logger.Progress("Phase 1: Reading %d coverage files...", len(paths))
	files, loadErr := loadCoverageFiles(ctx, paths, coverage.ParseOptions{UTF16Offsets: cfg.UTF16Offsets}, cfg.MaxConcurrency)
	if files == nil && loadErr != nil {
		return stats, loadErr
	}
	failed := multierr.Errors(loadErr)
	for _, err := range failed {
		logger.Warning("Skipping %v", err)
	}
	if len(files) == 0 {
		return stats, fmt.Errorf("no coverage files found in %s", filepath.Join(dir, "coverage"))
	}
	if len(failed) == len(files) {
		return stats, fmt.Errorf("no coverage file could be read: %w", loadErr)
	}

	if err := recordCoverageFiles(db, files, &stats); err != nil {
		return stats, fmt.Errorf("record coverage files: %w", err)
	}
	logger.Info("  Processed: %d, Unchanged: %d, Errors: %d, Removed stale: %d",
		stats.Processed, stats.Unchanged, stats.Failed, stats.Stale)

	inputHash := compileInputHash(files, cfg)
	if !force {
		last, err := latestRun(db)
		switch {
		case err == nil && last.InputHash == inputHash:
			stats.Skipped = true
			stats.Result = last.Result
			return stats, nil
		case err != nil && !errors.Is(err, errNoRuns):
			return stats, err
		}
	}

	// Phase 2: Reduce
	logger.Progress("Phase 2: Computing stylesheet coverage...")
	filter, err := cfg.URLFilter()
	if err != nil {
		return stats, err
	}
	result := reduceFiles(files, filter)
	if result.DroppedRanges > 0 {
		logger.Debug("%d ranges could not be aligned with the formatted text", result.DroppedRanges)
	}

	// Phase 3: Store
	run := runRecord{
		ID:            uuid.New().String(),
		StartedAt:     started,
		FinishedAt:    time.Now(),
		InputHash:     inputHash,
		CoverageFiles: len(files),
		FailedFiles:   stats.Failed,
		Result:        result,
	}
	if err := storeRun(db, run); err != nil {
		return stats, err
	}
	dbLog.Debug("Stored run %s with %d stylesheets", run.ID, len(result.CoveragePerStylesheet))

	stats.RunID = run.ID
	stats.Result = result
	return stats, nil
}

// recordCoverageFiles upserts one row per file and removes rows of files
// that no longer exist.
func recordCoverageFiles(db *sql.DB, files []coverageFile, stats *compileStats) error {
	existing := make(map[string]string)
	rows, err := db.Query("SELECT path, input_hash FROM coverage_files")
	if err != nil {
		return err
	}
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			rows.Close()
			return err
		}
		existing[path] = hash
	}
	rows.Close()

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	onDisk := make(map[string]bool, len(files))
	for _, f := range files {
		onDisk[f.Path] = true

		errorMsg := ""
		if f.Err != nil {
			errorMsg = f.Err.Error()
			stats.Failed++
		} else if hash, ok := existing[f.Path]; ok && hash == f.Hash {
			stats.Unchanged++
		} else {
			stats.Processed++
		}

		_, err := tx.Exec(`
			INSERT INTO coverage_files (path, input_hash, entry_count, error_msg)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				input_hash = excluded.input_hash,
				entry_count = excluded.entry_count,
				error_msg = excluded.error_msg
		`, f.Path, f.Hash, len(f.Entries), errorMsg)
		if err != nil {
			return fmt.Errorf("save %s: %w", f.Path, err)
		}
	}

	// Delete stale files (no longer on disk)
	for path := range existing {
		if !onDisk[path] {
			if _, err := tx.Exec("DELETE FROM coverage_files WHERE path = ?", path); err != nil {
				return err
			}
			stats.Stale++
		}
	}

	return tx.Commit()
}

func storeRun(db *sql.DB, run runRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertRun(tx, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := replaceStylesheets(tx, run.ID, run.Result); err != nil {
		return err
	}
	return tx.Commit()
}

// compileInputHash identifies the inputs of a compile: the dumps and the
// settings that change the result.
func compileInputHash(files []coverageFile, cfg config.Config) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(fmt.Sprintf("%s|include=%s|exclude=%s|utf16=%t",
		combinedHash(files),
		strings.Join(cfg.Include, ","),
		strings.Join(cfg.Exclude, ","),
		cfg.UTF16Offsets))))
}

func textHash(text string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(text)))
}
