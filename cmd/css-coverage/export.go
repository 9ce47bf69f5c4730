package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jupierce/css-coverage-analysis/pkg/coverage"
)

var (
	exportFormat string
	exportOutput string

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write compiled coverage as a cover profile or JSON",
		Long: `Write the coverage stored by the last compile.

  cover  Go cover profile in set mode. Each stylesheet is a file named by its
         URL and each run of lines with the same state is one block, so the
         output works with tools that read cover profiles.
  json   The full coverage result, as printed by analyze --json.`,
		Example: `  css-coverage collection export --collection nightly --format cover -o css.cover
  css-coverage collection export --collection nightly --format json | jq .line_coverage_ratio`,
		RunE: runExport,
	}
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "cover", "Output format: cover, json")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	collectionCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "cover" && exportFormat != "json" {
		return fmt.Errorf("unknown format %q (expected cover or json)", exportFormat)
	}

	db, err := openDBReadOnly(collectionPath("coverage.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := loadResult(db)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := writeExport(w, exportFormat, result); err != nil {
		return err
	}
	if exportOutput != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d stylesheets to %s\n", len(result.CoveragePerStylesheet), exportOutput)
	}
	return nil
}

func writeExport(w io.Writer, format string, result coverage.Result) error {
	switch format {
	case "cover":
		return writeCoverProfile(w, result.CoveragePerStylesheet)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
