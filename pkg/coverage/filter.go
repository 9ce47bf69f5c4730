package coverage

import "regexp"

var htmlTagRe = regexp.MustCompile(`(?i)<(html|body|head|div|span|script|style)[\s>/]`)

// LooksLikeHTML reports whether text contains one of the structural HTML
// tags that never appear in a plain stylesheet.
func LooksLikeHTML(text string) bool {
	return htmlTagRe.MatchString(text)
}

// Filter keeps the entries that carry CSS and converts each into raw CSS
// coordinates. Entries without text and JavaScript entries are dropped.
// HTML documents are reduced to the contents of their <style> blocks; a
// document without any CSS is dropped.
func Filter(entries []Entry[Resource], parser HTMLParser) []Entry[Raw] {
	out := make([]Entry[Raw], 0, len(entries))

	for _, entry := range entries {
		if entry.Text == "" {
			continue
		}

		switch Ext(entry.URL) {
		case "js":
			continue
		case "css":
			out = append(out, Entry[Raw]{
				URL:    entry.URL,
				Text:   entry.Text,
				Ranges: rebase[Raw](entry.Ranges),
			})
			continue
		}

		// Test servers on localhost report plain CSS under page URLs, so
		// only documents that look like HTML go through the extractor.
		if !LooksLikeHTML(entry.Text) {
			out = append(out, Entry[Raw]{
				URL:    entry.URL,
				Text:   entry.Text,
				Ranges: rebase[Raw](entry.Ranges),
			})
			continue
		}

		extracted := ExtractStyles(parser, entry.Text, entry.Ranges)
		if extracted.CSS == "" {
			continue
		}
		out = append(out, Entry[Raw]{
			URL:    entry.URL,
			Text:   extracted.CSS,
			Ranges: extracted.Ranges,
		})
	}

	return out
}
