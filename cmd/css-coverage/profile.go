package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/tools/cover"

	"github.com/jupierce/css-coverage-analysis/pkg/coverage"
)

// sheetProfile describes the line coverage of a formatted stylesheet as a
// cover profile in set mode: one block per chunk, spanning whole lines, with
// one statement per line.
func sheetProfile(name string, sc coverage.StylesheetCoverage) *cover.Profile {
	lines := strings.Split(sc.Text, "\n")
	p := &cover.Profile{FileName: name, Mode: "set"}

	chunks := sc.Chunks
	if chunks == nil {
		chunks = coverage.Chunks(sc.LineCoverage)
	}
	for _, c := range chunks {
		if c.EndLine > len(lines) {
			break
		}
		count := 0
		if c.Covered {
			count = 1
		}
		p.Blocks = append(p.Blocks, cover.ProfileBlock{
			StartLine: c.StartLine,
			StartCol:  1,
			EndLine:   c.EndLine,
			EndCol:    len(lines[c.EndLine-1]) + 1,
			NumStmt:   c.EndLine - c.StartLine + 1,
			Count:     count,
		})
	}
	return p
}

// profileNames returns a distinct, non-blank profile file name per
// stylesheet. Different stylesheets seen under one URL get a #n suffix.
func profileNames(sheets []coverage.StylesheetCoverage) []string {
	names := make([]string, len(sheets))
	used := make(map[string]int)
	for i, sc := range sheets {
		base := sc.URL
		if strings.TrimSpace(base) == "" {
			base = "inline"
		}
		used[base]++
		if n := used[base]; n > 1 {
			names[i] = fmt.Sprintf("%s#%d", base, n)
		} else {
			names[i] = base
		}
	}
	return names
}

// writeCoverProfile writes the stylesheets in the text format read by
// cover.ParseProfiles.
func writeCoverProfile(w io.Writer, sheets []coverage.StylesheetCoverage) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "mode: set")
	for i, name := range profileNames(sheets) {
		for _, b := range sheetProfile(name, sheets[i]).Blocks {
			fmt.Fprintf(bw, "%s:%d.%d,%d.%d %d %d\n",
				name, b.StartLine, b.StartCol, b.EndLine, b.EndCol, b.NumStmt, b.Count)
		}
	}
	return bw.Flush()
}

// lineHits expands a whole-line profile into one entry per line: 1 for a
// line in a block with a non-zero count, 0 for other lines in blocks and -1
// for lines no block mentions.
func lineHits(p *cover.Profile, lines int) []int {
	hits := make([]int, lines)
	for i := range hits {
		hits[i] = -1
	}
	for _, b := range p.Blocks {
		for l := b.StartLine; l <= b.EndLine && l <= lines; l++ {
			if l < 1 {
				continue
			}
			if b.Count > 0 {
				hits[l-1] = 1
			} else if hits[l-1] < 0 {
				hits[l-1] = 0
			}
		}
	}
	return hits
}
