package coverage

// Option configures CalculateCoverage.
type Option func(*options)

type options struct {
	formatter Formatter
}

// WithFormatter replaces the built-in pretty-printer.
func WithFormatter(f Formatter) Option {
	return func(o *options) {
		o.formatter = f
	}
}

// CalculateCoverage reduces raw browser coverage to a report: entries are
// filtered down to CSS, pretty-printed, deduplicated by text and measured.
// Zero entries produce an all-zero result.
func CalculateCoverage(entries []Entry[Resource], parser HTMLParser, opts ...Option) Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	filtered := Filter(entries, parser)

	pretty := make([]Entry[Pretty], 0, len(filtered))
	dropped := 0
	for _, entry := range filtered {
		p, n := PrettifyEntry(entry, o.formatter)
		pretty = append(pretty, p)
		dropped += n
	}

	result := Calculate(Deduplicate(pretty), len(entries))
	result.DroppedRanges = dropped
	return result
}

// Calculate measures every sheet and sums the totals. filesFound is the
// number of raw entries the sheets were reduced from.
func Calculate(sheets []Sheet, filesFound int) Result {
	result := Result{
		FilesFound:            filesFound,
		CoveragePerStylesheet: make([]StylesheetCoverage, 0, len(sheets)),
	}

	for _, sheet := range sheets {
		sc := Measure(sheet)
		result.TotalBytes += sc.TotalBytes
		result.UsedBytes += sc.UsedBytes
		result.UnusedBytes += sc.UnusedBytes
		result.TotalLines += sc.TotalLines
		result.CoveredLines += sc.CoveredLines
		result.UncoveredLines += sc.UncoveredLines
		result.CoveragePerStylesheet = append(result.CoveragePerStylesheet, sc)
	}

	result.LineCoverageRatio = ratio(result.CoveredLines, result.TotalLines)
	result.ByteCoverageRatio = ratio(result.UsedBytes, result.TotalBytes)
	return result
}

// Measure computes byte and line statistics for one sheet.
func Measure(sheet Sheet) StylesheetCoverage {
	ranges := sortRanges(sheet.Ranges)
	total := len(sheet.Text)
	used := UsedBytes(total, ranges)

	lines := LineCoverage(sheet.Text, ranges)
	covered := 0
	for _, l := range lines {
		covered += int(l)
	}

	return StylesheetCoverage{
		URL:               sheet.URL,
		Text:              sheet.Text,
		Ranges:            ranges,
		UsedBytes:         used,
		UnusedBytes:       total - used,
		TotalBytes:        total,
		LineCoverage:      lines,
		TotalLines:        len(lines),
		CoveredLines:      covered,
		UncoveredLines:    len(lines) - covered,
		LineCoverageRatio: ratio(covered, len(lines)),
		ByteCoverageRatio: ratio(used, total),
		Chunks:            Chunks(lines),
	}
}
