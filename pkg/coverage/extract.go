package coverage

import "strings"

// HTMLParser finds the <style> elements of an HTML document.
type HTMLParser interface {
	// StyleTexts returns the text content of every <style> element in
	// document order.
	StyleTexts(html string) []string
}

// HTMLParserFunc adapts a function to HTMLParser.
type HTMLParserFunc func(html string) []string

// StyleTexts calls f(html).
func (f HTMLParserFunc) StyleTexts(html string) []string {
	return f(html)
}

// Extracted is the CSS of all <style> blocks of a document concatenated
// into one buffer, with coverage ranges expressed in that buffer.
type Extracted struct {
	CSS    string       `json:"css"`
	Ranges []Range[Raw] `json:"ranges"`
}

// ExtractStyles concatenates the trimmed contents of the document's <style>
// blocks and remaps ranges from document offsets to offsets in the combined
// buffer. Ranges that do not lie entirely inside one block are dropped, as
// are whitespace-only blocks.
func ExtractStyles(parser HTMLParser, html string, ranges []Range[Resource]) Extracted {
	var (
		combined strings.Builder
		out      = []Range[Raw]{}
		offset   int
		cursor   int
	)

	for _, text := range parser.StyleTexts(html) {
		content := strings.TrimSpace(text)
		if content == "" {
			continue
		}

		// Identical blocks must map to successive occurrences, so search
		// forward from the previous block first.
		start := -1
		if i := strings.Index(html[cursor:], content); i >= 0 {
			start = cursor + i
		} else {
			start = strings.Index(html, content)
		}

		combined.WriteString(content)

		if start >= 0 {
			end := start + len(content)
			for _, r := range ranges {
				if r.Start >= start && r.End <= end {
					out = append(out, Range[Raw]{
						Start: offset + (r.Start - start),
						End:   offset + (r.End - start),
					})
				}
			}
			cursor = end
		}

		offset += len(content)
	}

	return Extracted{CSS: combined.String(), Ranges: out}
}
