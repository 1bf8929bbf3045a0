package storage

import (
	"context"
	"slices"
	"time"

	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/serp"
	"github.com/google/uuid"
)

// Counter persists the single integer behind the pagination cursor.
// A counter that was never set reads as zero.
type Counter interface {
	Get(ctx context.Context) (int, error)
	Set(ctx context.Context, n int) error
	Close() error
}

// Incrementer is implemented by counters that can add one to the stored
// value atomically and return the result.
type Incrementer interface {
	Incr(ctx context.Context) (int, error)
}

// ArchivedRecord is a rank record as kept in the run history.
type ArchivedRecord struct {
	ID        string
	RunID     string
	Record    serp.Record
	CreatedAt time.Time
}

// Filter allows querying for specific ArchivedRecords.
type Filter struct {
	RunID   string
	Keyword string
	Device  device.Name
	Status  serp.Status
	Since   *time.Time
	Limit   int
	Offset  int
}

// Match reports whether r passes every set field of f, ignoring paging.
func (f Filter) Match(r *ArchivedRecord) bool {
	if f.RunID != "" && r.RunID != f.RunID {
		return false
	}
	if f.Keyword != "" && r.Record.Keyword != f.Keyword {
		return false
	}
	if f.Device != "" && r.Record.Device != f.Device {
		return false
	}
	if f.Status != "" && r.Record.Status != f.Status {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Archive stores the records of every run for later querying.
type Archive interface {
	Save(ctx context.Context, records []*ArchivedRecord) error
	Query(ctx context.Context, filter Filter) ([]*ArchivedRecord, error)
	Close() error
}

// NewArchivedRecords stamps the records of one run for archiving.
func NewArchivedRecords(runID string, records []serp.Record, createdAt time.Time) []*ArchivedRecord {
	out := make([]*ArchivedRecord, 0, len(records))
	for _, r := range records {
		out = append(out, &ArchivedRecord{
			ID:        uuid.New().String(),
			RunID:     runID,
			Record:    r,
			CreatedAt: createdAt.UTC(),
		})
	}
	return out
}

// Paginate orders records newest first, keeping the stored order of records
// created together, then applies the filter's offset and limit. File
// backends use it where a database would do the same in SQL.
func Paginate(records []*ArchivedRecord, filter Filter) []*ArchivedRecord {
	slices.SortStableFunc(records, func(a, b *ArchivedRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(records) {
			return []*ArchivedRecord{}
		}
		records = records[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(records) {
		records = records[:filter.Limit]
	}
	return records
}
