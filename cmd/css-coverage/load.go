package main

import (
	"context"
	"crypto/md5"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/jupierce/css-coverage-analysis/pkg/config"
	"github.com/jupierce/css-coverage-analysis/pkg/coverage"
	"github.com/jupierce/css-coverage-analysis/pkg/htmlstyle"
)

// defaultCoverageDir is scanned when analyze is given no paths.
const defaultCoverageDir = "css-coverage"

// coverageFile is one decoded coverage dump.
type coverageFile struct {
	Path    string
	Hash    string // md5 of the file contents
	Entries []coverage.Entry[coverage.Resource]
	Err     error
}

// findCoverageFiles expands paths into the *.json files they name or
// contain, in natural order. Files named explicitly are kept whatever their
// extension.
func findCoverageFiles(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	sort.Sort(natural.StringSlice(files))
	return files, nil
}

// loadCoverageFiles reads and decodes paths with at most concurrency files
// in flight. A file that cannot be read or decoded keeps its error in Err
// and does not stop the others; all such errors are also combined into the
// returned error. Results are in the order of paths.
func loadCoverageFiles(ctx context.Context, paths []string, opts coverage.ParseOptions, concurrency int) ([]coverageFile, error) {
	files := make([]coverageFile, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			files[i] = loadCoverageFile(path, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var errs error
	for _, f := range files {
		if f.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
		}
	}
	return files, errs
}

func loadCoverageFile(path string, opts coverage.ParseOptions) coverageFile {
	f := coverageFile{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		f.Err = err
		return f
	}
	f.Hash = fmt.Sprintf("%x", md5.Sum(data))

	f.Entries, f.Err = coverage.ParseJSON(data, opts)
	return f
}

// selectEntries concatenates the entries of all successfully decoded files
// whose URL passes keep. found counts every decoded entry, selected or not.
func selectEntries(files []coverageFile, keep func(url string) bool) (entries []coverage.Entry[coverage.Resource], found int) {
	for _, f := range files {
		if f.Err != nil {
			continue
		}
		found += len(f.Entries)
		for _, e := range f.Entries {
			if keep(e.URL) {
				entries = append(entries, e)
			}
		}
	}
	return entries, found
}

// reduceFiles runs the selected entries of files through the engine.
// FilesFound reports the resources the dumps contained before the URL
// filter was applied.
func reduceFiles(files []coverageFile, filter *config.URLFilter) coverage.Result {
	entries, found := selectEntries(files, filter.Selects)
	result := coverage.CalculateCoverage(entries, htmlstyle.Parser{})
	result.FilesFound = found
	return result
}

// combinedHash identifies a set of loaded files by their paths and contents.
func combinedHash(files []coverageFile) string {
	h := md5.New()
	for _, f := range files {
		fmt.Fprintf(h, "%s\x00%s\n", f.Path, f.Hash)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
