package serp

import (
	"strings"
	"time"

	"github.com/FranksOps/serprank/internal/device"
)

// Resolve ranks target within urls.
//
// Every URL containing target as a substring yields an OK record whose rank
// is its 1-based position, so a site listed twice produces two rows. Target
// may be a partial domain or a path fragment. When nothing matches a single
// NoMatch record is returned; a keyword is never dropped from the report.
func Resolve(target string, urls []string, keyword string, name device.Name, date time.Time) []Record {
	var records []Record
	for i, u := range urls {
		if !strings.Contains(u, target) {
			continue
		}
		records = append(records, Record{
			Keyword: keyword,
			Target:  target,
			Rank:    i + 1,
			URL:     u,
			Date:    date,
			Device:  name,
			Type:    RecordType,
			Status:  StatusOK,
		})
	}
	if len(records) == 0 {
		kt := KeywordTarget{Keyword: keyword, Target: target}
		return []Record{Failure(kt, name, date, StatusNoMatch, "")}
	}
	return records
}
