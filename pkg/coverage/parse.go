package coverage

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ParseOptions controls ParseJSON.
type ParseOptions struct {
	// UTF16Offsets converts range offsets from UTF-16 code units, as
	// reported by browsers, to byte offsets into the UTF-8 text.
	UTF16Offsets bool
}

type wireRange struct {
	Start *int `json:"start"`
	End   *int `json:"end"`
}

type wireEntry struct {
	URL    *string     `json:"url"`
	Text   *string     `json:"text"`
	Ranges []wireRange `json:"ranges"`
}

// ErrNotCoverage is returned when a document is valid JSON but not a list of
// coverage entries.
var ErrNotCoverage = errors.New("not a coverage document")

// ParseJSON decodes a browser coverage dump: a JSON array of
// {url, text?, ranges: [{start, end}]}. Range offsets are clamped to the
// text, and an end before its start is raised to the start.
func ParseJSON(data []byte, opts ParseOptions) ([]Entry[Resource], error) {
	var wire []wireEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", ErrNotCoverage, err)
		}
		return nil, fmt.Errorf("decode coverage: %w", err)
	}

	entries := make([]Entry[Resource], 0, len(wire))
	for i, w := range wire {
		if w.URL == nil {
			return nil, fmt.Errorf("%w: entry %d has no url", ErrNotCoverage, i)
		}
		entry := Entry[Resource]{
			URL:    *w.URL,
			Ranges: make([]Range[Resource], 0, len(w.Ranges)),
		}
		if w.Text != nil {
			entry.Text = *w.Text
		}

		var offsets []int
		if opts.UTF16Offsets && entry.Text != "" {
			offsets = utf16ByteOffsets(entry.Text)
		}

		for j, r := range w.Ranges {
			if r.Start == nil || r.End == nil {
				return nil, fmt.Errorf("%w: entry %d range %d needs start and end", ErrNotCoverage, i, j)
			}
			start, end := *r.Start, *r.End
			if offsets != nil {
				start, end = convertOffset(offsets, start), convertOffset(offsets, end)
			}
			entry.Ranges = append(entry.Ranges, clampRange(start, end, len(entry.Text)))
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// utf16ByteOffsets returns, for every UTF-16 offset into text, the matching
// byte offset. It returns nil when the text is ASCII and the two coincide.
func utf16ByteOffsets(text string) []int {
	ascii := true
	for i := 0; i < len(text); i++ {
		if text[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return nil
	}

	offsets := make([]int, 0, len(text)+1)
	for i, r := range text {
		offsets = append(offsets, i)
		if r >= 0x10000 {
			// Second half of a surrogate pair maps to the rune start.
			offsets = append(offsets, i)
		}
	}
	return append(offsets, len(text))
}

func convertOffset(offsets []int, off int) int {
	switch {
	case off <= 0:
		return 0
	case off >= len(offsets):
		return offsets[len(offsets)-1]
	default:
		return offsets[off]
	}
}

func clampRange(start, end, size int) Range[Resource] {
	start = min(max(start, 0), size)
	end = min(max(end, start), size)
	return Range[Resource]{Start: start, End: end}
}
