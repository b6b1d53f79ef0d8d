package tabular

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

type reportData struct {
	Filename    string
	GeneratedAt string
	RowCount    int
	ColumnCount int
	Summaries   []ColumnSummary
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"fmtFloat": func(v float64) string { return fmt.Sprintf("%.4g", v) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>ninjapivot report &mdash; {{.Filename}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 2rem; color: #1a1a1a; }
h1 { font-size: 1.4rem; }
.meta { color: #555; margin-bottom: 1.5rem; }
table { border-collapse: collapse; margin-bottom: 2rem; width: 100%; }
th, td { border: 1px solid #ccc; padding: 0.35rem 0.6rem; text-align: left; font-size: 0.9rem; }
th { background: #f2f2f2; }
.num { text-align: right; font-variant-numeric: tabular-nums; }
.top { color: #444; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>Summary report: {{.Filename}}</h1>
<p class="meta">{{.RowCount}} rows &times; {{.ColumnCount}} columns &middot; generated {{.GeneratedAt}}</p>
<table>
<thead>
<tr><th>Column</th><th>Values</th><th>Nulls</th><th>Distinct</th><th>Min</th><th>Max</th><th>Mean</th><th>Std dev</th><th>Top values</th></tr>
</thead>
<tbody>
{{range .Summaries}}<tr>
<td>{{.Name}}</td>
<td class="num">{{.Count}}</td>
<td class="num">{{.Nulls}}</td>
<td class="num">{{.Distinct}}</td>
{{if .Numeric}}<td class="num">{{fmtFloat .Min}}</td><td class="num">{{fmtFloat .Max}}</td><td class="num">{{fmtFloat .Mean}}</td><td class="num">{{fmtFloat .StdDev}}</td><td></td>
{{else}}<td></td><td></td><td></td><td></td><td class="top">{{range $i, $v := .TopValues}}{{if $i}}, {{end}}{{$v.Value}} ({{$v.Count}}){{end}}</td>
{{end}}</tr>
{{end}}</tbody>
</table>
</body>
</html>
`))

// renderHTML produces the standalone report document.
func renderHTML(filename string, t *Table, summaries []ColumnSummary) ([]byte, error) {
	data := reportData{
		Filename:    filename,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		RowCount:    len(t.Rows),
		ColumnCount: len(t.Columns),
		Summaries:   summaries,
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
