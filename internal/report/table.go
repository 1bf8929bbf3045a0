package report

import (
	"fmt"
	"html/template"
	"io"
	"strconv"

	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/storage"
	"github.com/jedib0t/go-pretty/v6/table"
)

// WriteTable renders every record of r as a table, one row per record.
func WriteTable(w io.Writer, r RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Device", "Keyword", "Rank", "URL", "Date", "Status"})

	for _, g := range r.Groups {
		for _, rec := range g.Records {
			rank := "-"
			if rec.Rank > 0 {
				rank = strconv.Itoa(rec.Rank)
			}
			status := string(rec.Status)
			if msg := rec.Message(); msg != "" && rec.Status != serp.StatusNoMatch {
				status = msg
			}
			t.AppendRow(table.Row{g.Device, rec.Keyword, rank, rec.URL, rec.Date.Format(serp.DateLayout), status})
		}
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

// WriteHistory renders archived records, newest first as queried.
func WriteHistory(w io.Writer, records []*storage.ArchivedRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Archived", "Run", "Device", "Keyword", "Rank", "URL", "Status"})
	for _, a := range records {
		rec := a.Record
		rank := "-"
		if rec.Rank > 0 {
			rank = strconv.Itoa(rec.Rank)
		}
		t.AppendRow(table.Row{a.CreatedAt.Format("2006-01-02 15:04"), a.RunID, rec.Device, rec.Keyword, rank, rec.URL, rec.Status})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", len(records)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// WriteHTML writes a basic HTML report of the run to the provided writer.
func WriteHTML(w io.Writer, r RunResult) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Rank Tracking Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
  .failed, .rate_limited { color: red; }
</style>
</head>
<body>
  <h1>Rank Tracking Report</h1>
  <p><strong>Date:</strong> {{.Summary.Date.Format "02-01-2006"}} &middot; <strong>Window:</strong> {{.Summary.Start}} - {{.Summary.End}}</p>

  <div class="stat-card">
    <div>Keywords</div>
    <div class="stat-val">{{.Summary.Keywords}}</div>
  </div>
  <div class="stat-card">
    <div>Ranked</div>
    <div class="stat-val">{{.Summary.Ranked}}</div>
  </div>
  <div class="stat-card">
    <div>Best Position</div>
    <div class="stat-val">{{if .Summary.BestRank}}{{.Summary.BestRank}}{{else}}-{{end}}</div>
  </div>
{{range .Result.Groups}}
  <h3>{{.Device}}</h3>
  <table>
    <tr><th>Keyword</th><th>Rank</th><th>URL</th><th>Status</th></tr>
    {{- range .Records}}
    <tr class="{{.Status}}"><td>{{.Keyword}}</td><td>{{if .Rank}}{{.Rank}}{{else}}-{{end}}</td><td>{{.URL}}</td><td>{{if .Message}}{{.Message}}{{else}}{{.Status}}{{end}}</td></tr>
    {{- else}}
    <tr><td colspan="4">None</td></tr>
    {{- end}}
  </table>
{{end}}
</body>
</html>
`
	t, err := template.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("report template: %w", err)
	}

	data := struct {
		Result  RunResult
		Summary Summary
	}{r, Summarize(r)}

	if err := t.Execute(w, data); err != nil {
		return fmt.Errorf("report html: %w", err)
	}

	return nil
}
