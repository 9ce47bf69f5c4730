package coverage

import (
	"slices"
	"strings"
)

// LineCoverage returns one entry per line of text (split on "\n"), 1 when
// the line is covered by ranges and 0 otherwise. Empty text has no lines.
//
// Browsers do not report coverage for blank lines and closing braces, so
// those lines take the state of the line before them; blank lines at the
// top of the text take the state of the first real line. Any other line is
// covered when one range spans all of it. Because reported ranges skip the
// @-keyword of at-rules, a line starting with '@' is also covered when a
// range starts inside it.
func LineCoverage(text string, ranges []Range[Pretty]) Bitmap {
	if text == "" {
		return Bitmap{}
	}
	sorted := sortRanges(ranges)
	lines := strings.Split(text, "\n")
	out := make(Bitmap, len(lines))

	leading := true
	offset := 0
	for i, line := range lines {
		start, end := offset, offset+len(line)
		offset = end + 1

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "}" {
			if !leading {
				out[i] = out[i-1]
			}
			continue
		}

		if lineCovered(trimmed, start, end, sorted) {
			out[i] = 1
		}
		if leading {
			for j := 0; j < i; j++ {
				out[j] = out[i]
			}
			leading = false
		}
	}

	return out
}

func lineCovered(trimmed string, start, end int, ranges []Range[Pretty]) bool {
	atRule := strings.HasPrefix(trimmed, "@")
	for _, r := range ranges {
		if r.Contains(start, end) {
			return true
		}
		if atRule && r.Start > start && r.Start < end+1 {
			return true
		}
	}
	return false
}

// Chunks groups consecutive lines with the same state. Line numbers are
// 1-indexed.
func Chunks(lines Bitmap) []Chunk {
	var chunks []Chunk
	for i, state := range lines {
		covered := state == 1
		if n := len(chunks); n > 0 && chunks[n-1].Covered == covered {
			chunks[n-1].EndLine = i + 1
			continue
		}
		chunks = append(chunks, Chunk{StartLine: i + 1, EndLine: i + 1, Covered: covered})
	}
	return chunks
}

// UsedBytes counts the bytes of a text of length size that at least one
// range covers. Overlapping ranges are counted once and ranges are clipped
// to the text.
func UsedBytes(size int, ranges []Range[Pretty]) int {
	used, pos := 0, 0
	for _, r := range sortRanges(ranges) {
		start, end := max(r.Start, pos), min(r.End, size)
		if end > start {
			used += end - start
			pos = end
		}
	}
	return used
}

func sortRanges(ranges []Range[Pretty]) []Range[Pretty] {
	sorted := slices.Clone(ranges)
	slices.SortStableFunc(sorted, func(a, b Range[Pretty]) int {
		return a.Start - b.Start
	})
	return sorted
}
