package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/jupierce/css-coverage-analysis/pkg/coverage"
)

// fakePutter records the size of every batch and fails the calls listed in
// failOn (0-based).
type fakePutter struct {
	batches []int
	failOn  map[int]bool
}

func (f *fakePutter) Put(ctx context.Context, src interface{}) error {
	call := len(f.batches)
	switch rows := src.(type) {
	case []*CoverageDataRow:
		f.batches = append(f.batches, len(rows))
	case *StylesheetRow:
		f.batches = append(f.batches, 1)
	default:
		return fmt.Errorf("unexpected row type %T", src)
	}
	if f.failOn[call] {
		return errors.New("quota exceeded")
	}
	return nil
}

var ingestTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestBuildCoverageDataRows(t *testing.T) {
	sc := measured(t, "site.css", "a {\n\tcolor: red;\n}\n\nb {\n\tcolor: blue;\n}",
		coverage.Range[coverage.Pretty]{Start: 0, End: 18})

	rows := buildCoverageDataRows(sc, "site.css", "run-1", "nightly", ingestTime)
	require.Len(t, rows, 7)

	var covered []bool
	for i, r := range rows {
		assert.Equal(t, i+1, r.LineNumber)
		assert.Equal(t, "run-1", r.RunID)
		assert.Equal(t, "nightly", r.CollectionID)
		assert.Equal(t, textHash(sc.Text), r.TextHash)
		covered = append(covered, r.Covered)
	}
	assert.Equal(t, []bool{true, true, true, true, false, false, false}, covered)
	assert.Equal(t, "\tcolor: blue;", rows[5].LineText)

	empty := measured(t, "empty.css", "")
	assert.Empty(t, buildCoverageDataRows(empty, "empty.css", "run-1", "nightly", ingestTime))
}

func TestBuildStylesheetRow(t *testing.T) {
	sc := measured(t, "site.css", "a {\n\tcolor: red;\n}\n\nb {\n\tcolor: blue;\n}",
		coverage.Range[coverage.Pretty]{Start: 0, End: 18})

	row := buildStylesheetRow(sc, "site.css", "run-1", "nightly", ingestTime)
	assert.Equal(t, ingestTime, row.IngestionTime)
	assert.Equal(t, 7, row.TotalLines)
	assert.Equal(t, 4, row.CoveredLines)
	assert.Equal(t, sc.TotalBytes, row.TotalBytes)
	assert.Equal(t, []ChunkEntry{{StartLine: 5, EndLine: 7}}, row.UncoveredChunks)

	full := measured(t, "all.css", "a {\n}", coverage.Range[coverage.Pretty]{Start: 0, End: 5})
	assert.NotNil(t, buildStylesheetRow(full, "all.css", "run-1", "nightly", ingestTime).UncoveredChunks)
}

func TestPutInBatches(t *testing.T) {
	rows := make([]CoverageDataRow, 1203)

	put := &fakePutter{}
	n, warnings := putInBatches(context.Background(), put, rows, 500)
	assert.Equal(t, 1203, n)
	assert.Empty(t, warnings)
	assert.Equal(t, []int{500, 500, 203}, put.batches)

	put = &fakePutter{failOn: map[int]bool{1: true}}
	n, warnings = putInBatches(context.Background(), put, rows, 500)
	assert.Equal(t, 703, n)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "offset 500")
}

func TestIngestStylesheets(t *testing.T) {
	sheets := []coverage.StylesheetCoverage{
		measured(t, "a.css", "a {\n}", coverage.Range[coverage.Pretty]{Start: 0, End: 5}),
		measured(t, "b.css", "b {\n}\n\nc {\n}"),
	}

	sheetPut, dataPut := &fakePutter{}, &fakePutter{}
	stats, err := ingestStylesheets(context.Background(), sheetPut, dataPut, sheets, "run-1", "nightly", ingestTime)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.StylesheetRows)
	assert.Equal(t, 2+5, stats.DataRows)
	assert.Empty(t, stats.Warnings)

	sheetPut = &fakePutter{failOn: map[int]bool{0: true}}
	stats, err = ingestStylesheets(context.Background(), sheetPut, &fakePutter{}, sheets, "run-1", "nightly", ingestTime)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.StylesheetRows)
	assert.Len(t, stats.Warnings, 1)
}

func TestIngestStylesheetsNothingInserted(t *testing.T) {
	sheets := []coverage.StylesheetCoverage{
		measured(t, "a.css", "a {\n}", coverage.Range[coverage.Pretty]{Start: 0, End: 5}),
	}
	fail := &fakePutter{failOn: map[int]bool{0: true}}
	stats, err := ingestStylesheets(context.Background(), fail, &fakePutter{failOn: map[int]bool{0: true}},
		sheets, "run-1", "nightly", ingestTime)
	assert.EqualError(t, err, "no rows could be inserted")
	assert.Len(t, stats.Warnings, 2)
}

func TestAlreadyExists(t *testing.T) {
	assert.True(t, alreadyExists(&googleapi.Error{Code: 409, Message: "Already Exists: Dataset p:d"}))
	assert.True(t, alreadyExists(fmt.Errorf("create: %w", &googleapi.Error{Code: 409})))
	assert.True(t, alreadyExists(errors.New("googleapi: Error 409: Already Exists: Table p:d.t")))
	assert.False(t, alreadyExists(&googleapi.Error{Code: 403, Message: "Access Denied"}))
}
