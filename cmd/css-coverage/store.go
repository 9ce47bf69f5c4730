package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jupierce/css-coverage-analysis/pkg/coverage"

	_ "modernc.org/sqlite"
)

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

const schemaVersion = 1

// openDB opens or creates the collection database.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// openDBReadOnly opens an existing collection database for reading.
func openDBReadOnly(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

		CREATE TABLE IF NOT EXISTS coverage_files (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			path         TEXT NOT NULL UNIQUE,
			input_hash   TEXT NOT NULL,
			entry_count  INTEGER NOT NULL DEFAULT 0,
			error_msg    TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS runs (
			id                  TEXT PRIMARY KEY,
			started_at          TEXT NOT NULL,
			finished_at         TEXT NOT NULL,
			input_hash          TEXT NOT NULL,
			coverage_files      INTEGER NOT NULL DEFAULT 0,
			failed_files        INTEGER NOT NULL DEFAULT 0,
			files_found         INTEGER NOT NULL DEFAULT 0,
			stylesheets         INTEGER NOT NULL DEFAULT 0,
			dropped_ranges      INTEGER NOT NULL DEFAULT 0,
			total_bytes         INTEGER NOT NULL DEFAULT 0,
			used_bytes          INTEGER NOT NULL DEFAULT 0,
			total_lines         INTEGER NOT NULL DEFAULT 0,
			covered_lines       INTEGER NOT NULL DEFAULT 0,
			line_coverage_ratio REAL NOT NULL DEFAULT 0.0,
			byte_coverage_ratio REAL NOT NULL DEFAULT 0.0
		);

		CREATE TABLE IF NOT EXISTS stylesheets (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id              TEXT NOT NULL REFERENCES runs(id),
			position            INTEGER NOT NULL,
			url                 TEXT NOT NULL,
			text_hash           TEXT NOT NULL UNIQUE,
			text                TEXT NOT NULL,
			ranges_json         TEXT NOT NULL DEFAULT '[]',
			line_coverage       TEXT NOT NULL DEFAULT '',
			total_bytes         INTEGER NOT NULL DEFAULT 0,
			used_bytes          INTEGER NOT NULL DEFAULT 0,
			total_lines         INTEGER NOT NULL DEFAULT 0,
			covered_lines       INTEGER NOT NULL DEFAULT 0,
			line_coverage_ratio REAL NOT NULL DEFAULT 0.0,
			byte_coverage_ratio REAL NOT NULL DEFAULT 0.0
		);

		CREATE INDEX IF NOT EXISTS idx_stylesheets_url ON stylesheets(url);
	`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	// Ensure schema version is set
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
		return err
	}

	var currentVersion int
	if err := db.QueryRow("SELECT version FROM schema_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion > schemaVersion {
		return fmt.Errorf("database schema v%d is newer than this build supports (v%d)", currentVersion, schemaVersion)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// runRecord is one compile of the collection.
type runRecord struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	InputHash     string
	CoverageFiles int
	FailedFiles   int
	Result        coverage.Result // totals only, no stylesheets
}

var errNoRuns = errors.New("collection has not been compiled")

func insertRun(tx *sql.Tx, run runRecord) error {
	r := run.Result
	_, err := tx.Exec(`
		INSERT INTO runs (id, started_at, finished_at, input_hash, coverage_files, failed_files,
			files_found, stylesheets, dropped_ranges, total_bytes, used_bytes, total_lines,
			covered_lines, line_coverage_ratio, byte_coverage_ratio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UTC().Format(time.RFC3339), run.FinishedAt.UTC().Format(time.RFC3339),
		run.InputHash, run.CoverageFiles, run.FailedFiles,
		r.FilesFound, len(r.CoveragePerStylesheet), r.DroppedRanges, r.TotalBytes, r.UsedBytes,
		r.TotalLines, r.CoveredLines, r.LineCoverageRatio, r.ByteCoverageRatio)
	return err
}

// latestRun returns the most recent run, or errNoRuns.
func latestRun(db *sql.DB) (runRecord, error) {
	var (
		run               runRecord
		started, finished string
		stylesheets       int
		r                 = &run.Result
	)
	err := db.QueryRow(`
		SELECT id, started_at, finished_at, input_hash, coverage_files, failed_files,
			files_found, stylesheets, dropped_ranges, total_bytes, used_bytes, total_lines,
			covered_lines, line_coverage_ratio, byte_coverage_ratio
		FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT 1
	`).Scan(&run.ID, &started, &finished, &run.InputHash, &run.CoverageFiles, &run.FailedFiles,
		&r.FilesFound, &stylesheets, &r.DroppedRanges, &r.TotalBytes, &r.UsedBytes, &r.TotalLines,
		&r.CoveredLines, &r.LineCoverageRatio, &r.ByteCoverageRatio)
	if errors.Is(err, sql.ErrNoRows) {
		return runRecord{}, errNoRuns
	}
	if err != nil {
		return runRecord{}, fmt.Errorf("query latest run: %w", err)
	}

	r.UnusedBytes = r.TotalBytes - r.UsedBytes
	r.UncoveredLines = r.TotalLines - r.CoveredLines
	run.StartedAt, _ = time.Parse(time.RFC3339, started)
	run.FinishedAt, _ = time.Parse(time.RFC3339, finished)
	return run, nil
}

// ---------------------------------------------------------------------------
// Stylesheets
// ---------------------------------------------------------------------------

// replaceStylesheets swaps the stored stylesheets for those of result.
func replaceStylesheets(tx *sql.Tx, runID string, result coverage.Result) error {
	if _, err := tx.Exec("DELETE FROM stylesheets"); err != nil {
		return fmt.Errorf("clear stylesheets: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO stylesheets (run_id, position, url, text_hash, text, ranges_json, line_coverage,
			total_bytes, used_bytes, total_lines, covered_lines, line_coverage_ratio, byte_coverage_ratio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, sc := range result.CoveragePerStylesheet {
		ranges, err := json.Marshal(sc.Ranges)
		if err != nil {
			return fmt.Errorf("encode ranges of %s: %w", sc.URL, err)
		}
		_, err = stmt.Exec(runID, i, sc.URL, textHash(sc.Text), sc.Text, string(ranges), sc.LineCoverage.String(),
			sc.TotalBytes, sc.UsedBytes, sc.TotalLines, sc.CoveredLines, sc.LineCoverageRatio, sc.ByteCoverageRatio)
		if err != nil {
			return fmt.Errorf("insert stylesheet %s: %w", sc.URL, err)
		}
	}
	return nil
}

// loadStylesheets reads the stored stylesheets in report order, keeping
// those whose URL passes keep. A nil keep keeps everything.
func loadStylesheets(db *sql.DB, keep func(url string) bool) ([]coverage.StylesheetCoverage, error) {
	rows, err := db.Query(`
		SELECT url, text, ranges_json, line_coverage, total_bytes, used_bytes,
			total_lines, covered_lines, line_coverage_ratio, byte_coverage_ratio
		FROM stylesheets ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("query stylesheets: %w", err)
	}
	defer rows.Close()

	var sheets []coverage.StylesheetCoverage
	for rows.Next() {
		var (
			sc             coverage.StylesheetCoverage
			ranges, bitmap string
		)
		if err := rows.Scan(&sc.URL, &sc.Text, &ranges, &bitmap, &sc.TotalBytes, &sc.UsedBytes,
			&sc.TotalLines, &sc.CoveredLines, &sc.LineCoverageRatio, &sc.ByteCoverageRatio); err != nil {
			return nil, err
		}
		if keep != nil && !keep(sc.URL) {
			continue
		}

		if err := json.Unmarshal([]byte(ranges), &sc.Ranges); err != nil {
			return nil, fmt.Errorf("decode ranges of %s: %w", sc.URL, err)
		}
		if sc.LineCoverage, err = coverage.ParseBitmap(bitmap); err != nil {
			return nil, fmt.Errorf("decode line coverage of %s: %w", sc.URL, err)
		}
		sc.UnusedBytes = sc.TotalBytes - sc.UsedBytes
		sc.UncoveredLines = sc.TotalLines - sc.CoveredLines
		sc.Chunks = coverage.Chunks(sc.LineCoverage)
		sheets = append(sheets, sc)
	}
	return sheets, rows.Err()
}

// loadResult rebuilds the report of the latest compile.
func loadResult(db *sql.DB) (coverage.Result, error) {
	run, err := latestRun(db)
	if err != nil {
		return coverage.Result{}, err
	}
	sheets, err := loadStylesheets(db, nil)
	if err != nil {
		return coverage.Result{}, err
	}
	result := run.Result
	result.CoveragePerStylesheet = sheets
	if result.CoveragePerStylesheet == nil {
		result.CoveragePerStylesheet = []coverage.StylesheetCoverage{}
	}
	return result, nil
}
