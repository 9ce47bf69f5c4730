package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/cover"

	"github.com/jupierce/css-coverage-analysis/pkg/coverage"
)

func measured(t *testing.T, url, text string, ranges ...coverage.Range[coverage.Pretty]) coverage.StylesheetCoverage {
	t.Helper()
	return coverage.Measure(coverage.Sheet{URL: url, Text: text, Ranges: ranges})
}

func TestSheetProfile(t *testing.T) {
	// Lines 1-3 covered, 4-7 not.
	sc := measured(t, "site.css", "a {\n\tcolor: red;\n}\n\nb {\n\tcolor: blue;\n}",
		coverage.Range[coverage.Pretty]{Start: 0, End: 18})
	require.Equal(t, "1111000", sc.LineCoverage.String())

	p := sheetProfile("site.css", sc)
	assert.Equal(t, "set", p.Mode)
	assert.Equal(t, []cover.ProfileBlock{
		{StartLine: 1, StartCol: 1, EndLine: 4, EndCol: 1, NumStmt: 4, Count: 1},
		{StartLine: 5, StartCol: 1, EndLine: 7, EndCol: 2, NumStmt: 3, Count: 0},
	}, p.Blocks)
}

func TestProfileNames(t *testing.T) {
	sheets := []coverage.StylesheetCoverage{
		{URL: "https://example.com/a.css"},
		{URL: ""},
		{URL: "https://example.com/a.css"},
		{URL: "https://example.com/a.css"},
	}
	assert.Equal(t, []string{
		"https://example.com/a.css",
		"inline",
		"https://example.com/a.css#2",
		"https://example.com/a.css#3",
	}, profileNames(sheets))
}

func TestWriteCoverProfileParsesBack(t *testing.T) {
	sheets := []coverage.StylesheetCoverage{
		measured(t, "https://example.com/site.css", "a {\n\tcolor: red;\n}\n\nb {\n\tcolor: blue;\n}",
			coverage.Range[coverage.Pretty]{Start: 0, End: 18}),
		measured(t, "https://example.com/site.css", "p {\n\tmargin: 0;\n}",
			coverage.Range[coverage.Pretty]{Start: 0, End: 17}),
	}

	var buf bytes.Buffer
	require.NoError(t, writeCoverProfile(&buf, sheets))

	profiles, err := cover.ParseProfilesFromReader(&buf)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	byName := map[string]*cover.Profile{}
	for _, p := range profiles {
		byName[p.FileName] = p
	}

	first := byName["https://example.com/site.css"]
	require.NotNil(t, first)
	assert.Equal(t, sheetProfile(first.FileName, sheets[0]).Blocks, first.Blocks)

	second := byName["https://example.com/site.css#2"]
	require.NotNil(t, second)
	require.Len(t, second.Blocks, 1)
	assert.Equal(t, 1, second.Blocks[0].Count)
	assert.Equal(t, 3, second.Blocks[0].NumStmt)
}

func TestLineHits(t *testing.T) {
	p := &cover.Profile{Blocks: []cover.ProfileBlock{
		{StartLine: 1, EndLine: 2, Count: 0},
		{StartLine: 2, EndLine: 3, Count: 1},
		{StartLine: 9, EndLine: 12, Count: 1},
	}}
	assert.Equal(t, []int{0, 1, 1, -1, -1}, lineHits(p, 5))
}
