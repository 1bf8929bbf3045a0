package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/serp"
)

// Group holds the records of one device profile.
type Group struct {
	Device  device.Name
	Records []serp.Record
}

// RunResult is the dataset of one run, grouped by device profile in the
// order the profiles were configured.
type RunResult struct {
	ID     string
	Date   time.Time
	Start  int
	End    int
	Groups []Group
}

// Aggregate groups per-device records in the given device order. Devices in
// order with no records still get an (empty) group; devices missing from
// order are dropped.
func Aggregate(id string, date time.Time, order []device.Name, perDevice map[device.Name][]serp.Record) RunResult {
	r := RunResult{ID: id, Date: date}
	for _, name := range order {
		records := perDevice[name]
		if records == nil {
			records = []serp.Record{}
		}
		r.Groups = append(r.Groups, Group{Device: name, Records: records})
	}
	return r
}

// Records returns every record of the run, device by device.
func (r RunResult) Records() []serp.Record {
	var all []serp.Record
	for _, g := range r.Groups {
		all = append(all, g.Records...)
	}
	return all
}

// PayloadKey is the sink field that carries a device's records.
func PayloadKey(name device.Name) string {
	return string(name) + "_results"
}

// Payload returns the document the sink receives, one "<device>_results"
// array per group.
func (r RunResult) Payload() map[string][]serp.Record {
	p := make(map[string][]serp.Record, len(r.Groups))
	for _, g := range r.Groups {
		records := g.Records
		if records == nil {
			records = []serp.Record{}
		}
		p[PayloadKey(g.Device)] = records
	}
	return p
}

// MarshalJSON writes the sink payload.
func (r RunResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Payload())
}

// Summary contains aggregated counts about one run.
type Summary struct {
	RunID    string
	Date     time.Time
	Start    int
	End      int
	Keywords int
	Records  int
	Ranked   int
	BestRank int
	ByStatus map[serp.Status]int
	ByDevice map[device.Name]int
	Reasons  map[string]int
}

// Summarize counts the records of r by status and device. Keywords counts
// distinct (device, keyword) pairs, since a keyword ranking twice yields two
// records.
func Summarize(r RunResult) Summary {
	s := Summary{
		RunID:    r.ID,
		Date:     r.Date,
		Start:    r.Start,
		End:      r.End,
		ByStatus: make(map[serp.Status]int),
		ByDevice: make(map[device.Name]int),
		Reasons:  make(map[string]int),
	}

	type key struct {
		device  device.Name
		keyword string
	}
	seen := make(map[key]struct{})

	for _, g := range r.Groups {
		for _, rec := range g.Records {
			s.Records++
			s.ByStatus[rec.Status]++
			s.ByDevice[g.Device]++
			if rec.Rank > 0 {
				s.Ranked++
				if s.BestRank == 0 || rec.Rank < s.BestRank {
					s.BestRank = rec.Rank
				}
			}
			if rec.Status == serp.StatusFailed || rec.Status == serp.StatusRateLimited {
				s.Reasons[rec.Message()]++
			}
			seen[key{g.Device, rec.Keyword}] = struct{}{}
		}
	}
	s.Keywords = len(seen)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report json: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Rank Tracking Summary
---------------------
Run:           {{.RunID}}
Date:          {{.Date.Format "02-01-2006"}}
Window:        {{.Start}} - {{.End}}
Keywords:      {{.Keywords}}
Records:       {{.Records}}
Ranked:        {{.Ranked}}{{if .BestRank}} (best position {{.BestRank}}){{end}}

By Status:
{{- range $status, $count := .ByStatus}}
  {{$status}}: {{$count}}
{{- else}}
  None
{{- end}}

By Device:
{{- range $device, $count := .ByDevice}}
  {{$device}}: {{$count}}
{{- else}}
  None
{{- end}}

Failures:
{{- range $reason, $count := .Reasons}}
  {{$reason}}: {{$count}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report text: %w", err)
	}

	return nil
}
