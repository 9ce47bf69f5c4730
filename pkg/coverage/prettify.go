package coverage

import "github.com/jupierce/css-coverage-analysis/pkg/cssformat"

// Formatter pretty-prints CSS. Implementations must be deterministic and
// keep the weighted tokens of the input (see TokenWeight) in their original
// order.
type Formatter interface {
	Format(css string) string
}

// FormatterFunc adapts a function to Formatter.
type FormatterFunc func(css string) string

// Format calls f(css).
func (f FormatterFunc) Format(css string) string {
	return f(css)
}

// Prettify formats every entry and moves its ranges into the formatted text.
// A nil formatter selects the built-in cssformat printer.
func Prettify(entries []Entry[Raw], f Formatter) []Entry[Pretty] {
	out := make([]Entry[Pretty], 0, len(entries))
	for _, entry := range entries {
		pretty, _ := PrettifyEntry(entry, f)
		out = append(out, pretty)
	}
	return out
}

// PrettifyEntry formats a single entry. dropped is the number of ranges
// that could not be located in the formatted text.
func PrettifyEntry(entry Entry[Raw], f Formatter) (pretty Entry[Pretty], dropped int) {
	if f == nil {
		f = cssformat.New()
	}
	if entry.Text == "" {
		return Entry[Pretty]{URL: entry.URL, Ranges: rebase[Pretty](entry.Ranges)}, 0
	}

	formatted := f.Format(entry.Text)
	ranges, dropped := Align(entry.Text, formatted, entry.Ranges)
	return Entry[Pretty]{URL: entry.URL, Text: formatted, Ranges: ranges}, dropped
}

// Align maps ranges over raw to ranges over formatted by matching weighted
// tokens by position. Each range is anchored on the first and last token it
// wholly contains; a token belongs to the first range containing it. Ranges
// that hold no weighted token (only whitespace or comments) are discarded
// silently. Ranges whose tokens are missing from formatted are dropped and
// counted.
func Align(raw, formatted string, ranges []Range[Raw]) (out []Range[Pretty], dropped int) {
	type anchor struct {
		first, last int
	}
	anchors := make([]anchor, len(ranges))

	for _, tok := range alignedTokens(raw) {
		for i, r := range ranges {
			if r.Start <= tok.Start && r.End >= tok.End {
				if anchors[i].first == 0 {
					anchors[i].first = tok.Index
				}
				anchors[i].last = tok.Index
				break
			}
		}
	}

	byIndex := make(map[int]alignedToken)
	for _, tok := range alignedTokens(formatted) {
		byIndex[tok.Index] = tok
	}

	out = make([]Range[Pretty], 0, len(ranges))
	for _, a := range anchors {
		// Token indexes start at 1, so 0 means the range held no token.
		if a.first == 0 {
			continue
		}
		first, okFirst := byIndex[a.first]
		last, okLast := byIndex[a.last]
		if !okFirst || !okLast {
			dropped++
			continue
		}
		out = append(out, Range[Pretty]{Start: first.Start, End: last.End})
	}
	return out, dropped
}
