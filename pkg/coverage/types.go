package coverage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Space identifies the text snapshot a Range indexes into.
type Space interface {
	Resource | Raw | Pretty
}

// Resource is the text of a browser resource as delivered: an HTML document
// or a CSS file.
type Resource struct{}

// Raw is unformatted CSS: a .css file or the combined <style> buffer of a document.
type Raw struct{}

// Pretty is the formatter's output for a Raw text.
type Pretty struct{}

// Range is a half-open byte interval [Start, End) into a text of space S.
type Range[S Space] struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the range.
func (r Range[S]) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether [start, end] lies within the range.
func (r Range[S]) Contains(start, end int) bool {
	return r.Start <= start && r.End >= end
}

// Entry is a single resource observed by the browser.
// An empty Text means the browser reported no text for it.
type Entry[S Space] struct {
	URL    string     `json:"url"`
	Text   string     `json:"text,omitempty"`
	Ranges []Range[S] `json:"ranges"`
}

// Sheet is a deduplicated stylesheet. URL is the first URL it was seen under.
type Sheet struct {
	URL    string
	Text   string
	Ranges []Range[Pretty]
}

// Chunk is a run of consecutive lines sharing the same coverage state.
// Lines are 1-indexed and inclusive.
type Chunk struct {
	StartLine int  `json:"start_line"`
	EndLine   int  `json:"end_line"`
	Covered   bool `json:"covered"`
}

// StylesheetCoverage holds the statistics of one deduplicated stylesheet.
type StylesheetCoverage struct {
	URL               string          `json:"url"`
	Text              string          `json:"text"`
	Ranges            []Range[Pretty] `json:"ranges"`
	UsedBytes         int             `json:"used_bytes"`
	UnusedBytes       int             `json:"unused_bytes"`
	TotalBytes        int             `json:"total_bytes"`
	LineCoverage      Bitmap          `json:"line_coverage"`
	TotalLines        int             `json:"total_lines"`
	CoveredLines      int             `json:"covered_lines"`
	UncoveredLines    int             `json:"uncovered_lines"`
	LineCoverageRatio float64         `json:"line_coverage_ratio"`
	ByteCoverageRatio float64         `json:"byte_coverage_ratio"`
	Chunks            []Chunk         `json:"chunks"`
}

// Result is the aggregate coverage report over all stylesheets.
type Result struct {
	FilesFound            int                  `json:"files_found"`
	DroppedRanges         int                  `json:"dropped_ranges"`
	TotalBytes            int                  `json:"total_bytes"`
	UsedBytes             int                  `json:"used_bytes"`
	UnusedBytes           int                  `json:"unused_bytes"`
	TotalLines            int                  `json:"total_lines"`
	CoveredLines          int                  `json:"covered_lines"`
	UncoveredLines        int                  `json:"uncovered_lines"`
	LineCoverageRatio     float64              `json:"line_coverage_ratio"`
	ByteCoverageRatio     float64              `json:"byte_coverage_ratio"`
	CoveragePerStylesheet []StylesheetCoverage `json:"coverage_per_stylesheet"`
}

// ratio divides covered by total. Nothing to cover yields 0, never NaN.
func ratio(covered, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(covered) / float64(total)
}

// rebase moves ranges into another coordinate space without changing offsets.
// Only valid when both spaces index the same text.
func rebase[To, From Space](ranges []Range[From]) []Range[To] {
	out := make([]Range[To], len(ranges))
	for i, r := range ranges {
		out[i] = Range[To]{Start: r.Start, End: r.End}
	}
	return out
}

// Bitmap holds one 0 or 1 per line. It encodes to JSON as an array of
// numbers rather than base64.
type Bitmap []uint8

// String renders the bitmap as a string of '0' and '1'.
func (b Bitmap) String() string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, v := range b {
		if v == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// ParseBitmap parses the output of Bitmap.String.
func ParseBitmap(s string) (Bitmap, error) {
	b := make(Bitmap, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
		case '1':
			b[i] = 1
		default:
			return nil, fmt.Errorf("invalid bitmap character %q at %d", s[i], i)
		}
	}
	return b, nil
}

func (b Bitmap) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

func (b *Bitmap) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make(Bitmap, len(ints))
	for i, v := range ints {
		if v != 0 && v != 1 {
			return fmt.Errorf("invalid line state %d at %d", v, i)
		}
		out[i] = uint8(v)
	}
	*b = out
	return nil
}
