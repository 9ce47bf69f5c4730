package main

import (
	"bufio"
	"fmt"
	"html"
	"html/template"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/tools/cover"
)

var templateFuncs = template.FuncMap{
	"colorClass": colorClass,
	"formatPct": func(coverage float64) string {
		return fmt.Sprintf("%.1f%%", coverage)
	},
	"showPctInBar": func(coverage float64) bool {
		return coverage >= 20
	},
	"formatInt": func(n int) string {
		return humanize.Comma(int64(n))
	},
	"formatBytes": func(n int) string {
		return humanize.Bytes(uint64(n))
	},
	"formatTime": func(t time.Time) string {
		return t.Format("2006-01-02 15:04:05 MST")
	},
}

func colorClass(coverage float64) string {
	if coverage >= 70 {
		return "excellent"
	} else if coverage >= 50 {
		return "good"
	} else if coverage >= 30 {
		return "moderate"
	} else if coverage >= 15 {
		return "poor"
	}
	return "critical"
}

// annotateStylesheet renders src as a table with line numbers, one row per
// line, classed by the line's state in profile. The first line of every
// block is marked as a chunk start.
func annotateStylesheet(src string, profile *cover.Profile) template.HTML {
	lines := strings.Split(src, "\n")
	hits := lineHits(profile, len(lines))

	starts := make(map[int]bool, len(profile.Blocks))
	for _, b := range profile.Blocks {
		starts[b.StartLine] = true
	}

	var buf strings.Builder
	buf.WriteString(`<table class="source-code"><tbody>`)
	for i, line := range lines {
		n := i + 1

		class := "cov-unknown"
		switch hits[i] {
		case 1:
			class = "cov-hit"
		case 0:
			class = "cov-none"
		}
		if starts[n] && n > 1 {
			class += " chunk-start"
		}

		fmt.Fprintf(&buf, `<tr class="%s"><td class="line-num" id="L%d"><a href="#L%d">%d</a></td><td class="line-content">`,
			class, n, n, n)
		buf.WriteString(html.EscapeString(strings.ReplaceAll(line, "\t", "    ")))
		buf.WriteString("</td></tr>\n")
	}
	buf.WriteString("</tbody></table>")

	return template.HTML(buf.String())
}

// renderSheetPage writes the annotated page of one stylesheet.
func renderSheetPage(path string, report *SheetReport) error {
	tmpl, err := template.New("sheet").Funcs(templateFuncs).Parse(sheetTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 256*1024)

	data := struct {
		Sheet *SheetReport
		Body  template.HTML
	}{
		Sheet: report,
		Body:  annotateStylesheet(report.sheet.Text, sheetProfile(report.Name, report.sheet)),
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return w.Flush()
}

const pageStyle = `
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            background: #f5f5f5;
            color: #333;
            padding: 20px;
        }
        .container { max-width: 1600px; margin: 0 auto; }
        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 24px 30px;
            border-radius: 10px;
            margin-bottom: 20px;
        }
        header h1 { font-size: 1.6em; margin-bottom: 6px; word-break: break-all; }
        header .subtitle { opacity: 0.9; font-size: 0.95em; }
        header a { color: white; }
        .stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 15px; margin-bottom: 20px; }
        .stat-card { background: white; padding: 18px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .stat-card .label { font-size: 0.8em; color: #666; text-transform: uppercase; letter-spacing: 0.5px; }
        .stat-card .value { font-size: 1.8em; font-weight: bold; margin-top: 4px; }
        .panel { background: white; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); padding: 20px; margin-bottom: 20px; }
        .excellent { color: #2e7d32; }
        .good { color: #558b2f; }
        .moderate { color: #f9a825; }
        .poor { color: #ef6c00; }
        .critical { color: #c62828; }
        .bar { background: #eee; border-radius: 4px; height: 18px; width: 160px; overflow: hidden; }
        .bar-fill { height: 100%; color: white; font-size: 0.75em; line-height: 18px; padding-left: 4px; }
        .bar-fill.excellent { background: #2e7d32; }
        .bar-fill.good { background: #7cb342; }
        .bar-fill.moderate { background: #fbc02d; }
        .bar-fill.poor { background: #fb8c00; }
        .bar-fill.critical { background: #e53935; }
`

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>CSS Coverage Report</title>
    <style>` + pageStyle + `
        .controls { display: flex; gap: 10px; margin-bottom: 15px; }
        .controls input { flex: 1; padding: 8px 12px; border: 1px solid #ccc; border-radius: 6px; font-size: 0.95em; }
        table { width: 100%; border-collapse: collapse; }
        th { text-align: left; padding: 10px; background: #fafafa; border-bottom: 2px solid #ddd; cursor: pointer; user-select: none; white-space: nowrap; }
        th.sorted-asc::after { content: " ▲"; }
        th.sorted-desc::after { content: " ▼"; }
        td { padding: 8px 10px; border-bottom: 1px solid #eee; }
        td.url { word-break: break-all; font-family: 'SF Mono', Monaco, Consolas, monospace; font-size: 0.85em; }
        td.num { text-align: right; font-variant-numeric: tabular-nums; white-space: nowrap; }
        tr:hover td { background: #f8f9ff; }
    </style>
</head>
<body>
<div class="container">
    <header>
        <h1>CSS Coverage Report</h1>
        <div class="subtitle">Run {{.Stats.RunID}} compiled {{formatTime .Stats.CompiledAt}} from {{formatInt .Stats.FilesFound}} resources</div>
    </header>

    <div class="stats">
        <div class="stat-card"><div class="label">Stylesheets</div><div class="value">{{formatInt .Stats.Stylesheets}}</div></div>
        <div class="stat-card"><div class="label">Line coverage</div><div class="value {{colorClass .Stats.LineCoverage}}">{{formatPct .Stats.LineCoverage}}</div></div>
        <div class="stat-card"><div class="label">Byte coverage</div><div class="value {{colorClass .Stats.ByteCoverage}}">{{formatPct .Stats.ByteCoverage}}</div></div>
        <div class="stat-card"><div class="label">Lines</div><div class="value">{{formatInt .Stats.CoveredLines}} / {{formatInt .Stats.TotalLines}}</div></div>
        <div class="stat-card"><div class="label">Size</div><div class="value">{{formatBytes .Stats.UsedBytes}} / {{formatBytes .Stats.TotalBytes}}</div></div>
    </div>

    <div class="stats">
        <div class="stat-card"><div class="label">Excellent (&ge;70%)</div><div class="value excellent">{{.Stats.Excellent}}</div></div>
        <div class="stat-card"><div class="label">Good (50-70%)</div><div class="value good">{{.Stats.Good}}</div></div>
        <div class="stat-card"><div class="label">Moderate (30-50%)</div><div class="value moderate">{{.Stats.Moderate}}</div></div>
        <div class="stat-card"><div class="label">Poor (15-30%)</div><div class="value poor">{{.Stats.Poor}}</div></div>
        <div class="stat-card"><div class="label">Critical (&lt;15%)</div><div class="value critical">{{.Stats.Critical}}</div></div>
    </div>

    <div class="panel">
        <div class="controls">
            <input type="text" id="filter" placeholder="Filter by URL..." oninput="applyFilter()">
        </div>
        <table id="sheets">
            <thead>
                <tr>
                    <th data-key="url" data-type="string">URL</th>
                    <th data-key="size" data-type="number">Size</th>
                    <th data-key="lines" data-type="number">Lines</th>
                    <th data-key="line" data-type="number">Line coverage</th>
                    <th data-key="byte" data-type="number">Byte coverage</th>
                    <th data-key="unused" data-type="number">Unused runs</th>
                </tr>
            </thead>
            <tbody>
            {{- range .Sheets}}
                <tr data-url="{{.Name}}" data-size="{{.TotalBytes}}" data-lines="{{.TotalLines}}" data-line="{{.LineCoverage}}" data-byte="{{.ByteCoverage}}" data-unused="{{len .Uncovered}}">
                    <td class="url">{{if .Page}}<a href="{{.Page}}">{{.Name}}</a>{{else}}{{.Name}}{{end}}</td>
                    <td class="num">{{formatBytes .TotalBytes}}</td>
                    <td class="num">{{formatInt .CoveredLines}} / {{formatInt .TotalLines}}</td>
                    <td><div class="bar"><div class="bar-fill {{colorClass .LineCoverage}}" style="width: {{printf "%.1f" .LineCoverage}}%">{{if showPctInBar .LineCoverage}}{{formatPct .LineCoverage}}{{end}}</div></div></td>
                    <td class="num {{colorClass .ByteCoverage}}">{{formatPct .ByteCoverage}}</td>
                    <td class="num">{{len .Uncovered}}</td>
                </tr>
            {{- end}}
            </tbody>
        </table>
    </div>
</div>
<script>
    let currentSort = { key: null, direction: 'asc' };

    function applyFilter() {
        const q = document.getElementById('filter').value.toLowerCase();
        document.querySelectorAll('#sheets tbody tr').forEach(row => {
            row.style.display = row.dataset.url.toLowerCase().includes(q) ? '' : 'none';
        });
    }

    function sortTable(key, type, direction) {
        const tbody = document.querySelector('#sheets tbody');
        const rows = Array.from(tbody.querySelectorAll('tr'));
        rows.sort((a, b) => {
            let va = a.dataset[key], vb = b.dataset[key];
            let cmp = type === 'number'
                ? parseFloat(va) - parseFloat(vb)
                : va.localeCompare(vb, undefined, { numeric: true });
            return direction === 'asc' ? cmp : -cmp;
        });
        rows.forEach(r => tbody.appendChild(r));
        document.querySelectorAll('#sheets th').forEach(th => th.classList.remove('sorted-asc', 'sorted-desc'));
        document.querySelector('#sheets th[data-key="' + key + '"]').classList.add('sorted-' + direction);
    }

    document.querySelectorAll('#sheets th').forEach(th => {
        th.addEventListener('click', () => {
            const key = th.dataset.key;
            const direction = currentSort.key === key && currentSort.direction === 'asc' ? 'desc' : 'asc';
            currentSort = { key, direction };
            sortTable(key, th.dataset.type, direction);
        });
    });
</script>
</body>
</html>
`

const sheetTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Coverage: {{.Sheet.Name}}</title>
    <style>` + pageStyle + `
        .chunks { list-style: none; display: flex; flex-wrap: wrap; gap: 8px; }
        .chunks a { display: inline-block; padding: 3px 8px; border-radius: 4px; background: #fdecea; color: #c62828; text-decoration: none; font-size: 0.85em; }
        .source-code { width: 100%; border-collapse: collapse; font-family: 'SF Mono', Monaco, Consolas, monospace; font-size: 0.85em; }
        .source-code td { padding: 0 10px; white-space: pre; line-height: 1.5; }
        .source-code .line-num { text-align: right; color: #999; width: 1%; user-select: none; border-right: 1px solid #eee; }
        .source-code .line-num a { color: inherit; text-decoration: none; }
        .source-code tr.cov-hit .line-content { background: #e8f5e9; }
        .source-code tr.cov-none .line-content { background: #ffebee; }
        .source-code tr.chunk-start td { border-top: 1px dashed #bbb; }
        .source-code tr:target td { outline: 2px solid #667eea; }
    </style>
</head>
<body>
<div class="container">
    <header>
        <h1>{{.Sheet.Name}}</h1>
        <div class="subtitle"><a href="index.html">&larr; All stylesheets</a></div>
    </header>

    <div class="stats">
        <div class="stat-card"><div class="label">Line coverage</div><div class="value {{colorClass .Sheet.LineCoverage}}">{{formatPct .Sheet.LineCoverage}}</div></div>
        <div class="stat-card"><div class="label">Byte coverage</div><div class="value {{colorClass .Sheet.ByteCoverage}}">{{formatPct .Sheet.ByteCoverage}}</div></div>
        <div class="stat-card"><div class="label">Lines</div><div class="value">{{formatInt .Sheet.CoveredLines}} / {{formatInt .Sheet.TotalLines}}</div></div>
        <div class="stat-card"><div class="label">Size</div><div class="value">{{formatBytes .Sheet.UsedBytes}} / {{formatBytes .Sheet.TotalBytes}}</div></div>
    </div>

    {{- if .Sheet.Uncovered}}
    <div class="panel">
        <ul class="chunks">
        {{- range .Sheet.Uncovered}}
            <li><a href="#L{{.StartLine}}">{{if eq .StartLine .EndLine}}line {{.StartLine}}{{else}}lines {{.StartLine}}-{{.EndLine}}{{end}}</a></li>
        {{- end}}
        </ul>
    </div>
    {{- end}}

    <div class="panel">
        {{.Body}}
    </div>
</div>
</body>
</html>
`
