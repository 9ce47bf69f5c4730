package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jupierce/css-coverage-analysis/pkg/log"
)

var (
	// Collection command flags
	collectionDir string

	collectionCmd = &cobra.Command{
		Use:   "collection",
		Short: "Collection-wide coverage operations",
		Long: `Manage a collection: a directory holding coverage dumps from many
browser sessions and the database compiled from them.

Run the subcommands in this order:

  1. download  Download coverage dumps from S3 into <collection>/coverage.
  2. compile   Reduce the dumps into <collection>/coverage.db.
  3. render    Generate HTML reports from the database.
  4. export    Write the compiled coverage as a cover profile or JSON.`,
	}
)

func init() {
	rootCmd.AddCommand(collectionCmd)

	collectionCmd.PersistentFlags().StringVar(&collectionDir, "collection", "", "Collection directory (required, created if missing)")
	collectionCmd.MarkPersistentFlagRequired("collection")
}

// collectionPath joins elem onto the collection directory.
func collectionPath(elem ...string) string {
	return filepath.Join(append([]string{collectionDir}, elem...)...)
}

// createCollectionLogger creates a logger that also writes to
// <collection>/logs.
func createCollectionLogger() (*log.Logger, error) {
	return createLogger(collectionPath("logs"))
}
