package coverage

// Deduplicate merges entries with identical text. Sheets are returned in
// order of first appearance under the URL they were first seen with. The
// ranges of later duplicates are added unless the same (start, end) pair
// is already present.
func Deduplicate(entries []Entry[Pretty]) []Sheet {
	var (
		sheets []Sheet
		seen   = make(map[string]int, len(entries))
	)

	for _, entry := range entries {
		i, ok := seen[entry.Text]
		if !ok {
			seen[entry.Text] = len(sheets)
			sheets = append(sheets, Sheet{
				URL:    entry.URL,
				Text:   entry.Text,
				Ranges: append(make([]Range[Pretty], 0, len(entry.Ranges)), entry.Ranges...),
			})
			continue
		}

		sheet := &sheets[i]
		for _, r := range entry.Ranges {
			if !hasRange(sheet.Ranges, r) {
				sheet.Ranges = append(sheet.Ranges, r)
			}
		}
	}

	return sheets
}

func hasRange(ranges []Range[Pretty], r Range[Pretty]) bool {
	for _, existing := range ranges {
		if existing == r {
			return true
		}
	}
	return false
}
