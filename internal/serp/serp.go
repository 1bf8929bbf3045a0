// Package serp turns search engine result pages into rank records.
package serp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/FranksOps/serprank/internal/device"
)

// KeywordTarget is one tracked keyword and the site to look for in its results.
type KeywordTarget struct {
	Keyword string `json:"keyword"`
	Target  string `json:"target"`
}

// Status is the outcome of tracking one keyword.
type Status string

const (
	StatusOK          Status = "ok"
	StatusRateLimited Status = "rate_limited"
	StatusFailed      Status = "failed"
	StatusNoMatch     Status = "no_match"
)

// RecordType is the report column that tells our own site's rows apart.
const RecordType = "My Site"

// DateLayout is the day-month-year layout the sink expects.
const DateLayout = "02-01-2006"

const rateLimitedMessage = "Rate limit hit, status code 429. You are Blocked From Google"

// Record is one reporting row: a ranking hit, or the reason there is none.
type Record struct {
	Keyword string
	Target  string
	// Rank is 1-based; zero means absent.
	Rank int
	// URL is the matching result URL; empty means absent.
	URL    string
	Date   time.Time
	Device device.Name
	Type   string
	Status Status
	// Reason carries the failure summary for StatusFailed.
	Reason string
}

// Message returns the human-readable status reported to the sink. It is
// empty for successful rows.
func (r Record) Message() string {
	switch r.Status {
	case StatusOK:
		return ""
	case StatusRateLimited:
		return rateLimitedMessage
	case StatusNoMatch:
		return "Target not found in results"
	case StatusFailed:
		if r.Reason == "" {
			return "Failed to retrieve data"
		}
		return r.Reason
	}
	return string(r.Status)
}

type wireRecord struct {
	Keyword string  `json:"Keyword"`
	Rank    *int    `json:"Rank"`
	URLs    *string `json:"URLs"`
	Date    string  `json:"Date"`
	Type    string  `json:"Type"`
	Status  string  `json:"Status,omitempty"`
}

// MarshalJSON writes the record in the sink's column layout.
func (r Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		Keyword: r.Keyword,
		Date:    r.Date.Format(DateLayout),
		Type:    r.Type,
		Status:  r.Message(),
	}
	if r.Rank > 0 {
		rank := r.Rank
		w.Rank = &rank
	}
	if r.URL != "" {
		u := r.URL
		w.URLs = &u
	}
	return json.Marshal(w)
}

// Failure builds the single record reported for a keyword that could not be ranked.
func Failure(kt KeywordTarget, name device.Name, date time.Time, status Status, reason string) Record {
	return Record{
		Keyword: kt.Keyword,
		Target:  kt.Target,
		Date:    date,
		Device:  name,
		Type:    RecordType,
		Status:  status,
		Reason:  reason,
	}
}

// StatusReason formats the failure reason for a non-success HTTP status.
func StatusReason(code int) string {
	return fmt.Sprintf("Failed to retrieve data, status code: %d", code)
}
