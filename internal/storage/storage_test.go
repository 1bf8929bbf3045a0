package storage

import (
	"context"
	"testing"
	"time"

	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/serp"
)

func TestNewArchivedRecords(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.FixedZone("X", 3600))
	records := []serp.Record{
		{Keyword: "a", Rank: 1, Device: device.Desktop, Status: serp.StatusOK},
		{Keyword: "b", Device: device.Mobile, Status: serp.StatusNoMatch},
	}

	got := NewArchivedRecords("run-1", records, now)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Errorf("expected distinct ids, got %q and %q", got[0].ID, got[1].ID)
	}
	if got[1].RunID != "run-1" || got[1].Record.Keyword != "b" {
		t.Errorf("unexpected record %+v", got[1])
	}
	if got[0].CreatedAt.Location() != time.UTC {
		t.Errorf("expected UTC timestamp, got %v", got[0].CreatedAt)
	}
}

func TestFilter_Match(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)
	r := &ArchivedRecord{
		RunID:     "run-1",
		Record:    serp.Record{Keyword: "kw", Device: device.Desktop, Status: serp.StatusOK},
		CreatedAt: now,
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", Filter{}, true},
		{"run", Filter{RunID: "run-1"}, true},
		{"other run", Filter{RunID: "run-2"}, false},
		{"keyword", Filter{Keyword: "kw"}, true},
		{"device", Filter{Device: device.Mobile}, false},
		{"status", Filter{Status: serp.StatusOK}, true},
		{"since before", Filter{Since: &earlier}, true},
		{"since after", Filter{Since: func() *time.Time { t := now.Add(time.Hour); return &t }()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(r); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// Ensure the interfaces stay implementable by simple in-memory doubles.
type memCounter struct{ n int }

func (m *memCounter) Get(ctx context.Context) (int, error) { return m.n, nil }
func (m *memCounter) Set(ctx context.Context, n int) error { m.n = n; return nil }
func (m *memCounter) Close() error                         { return nil }

type memArchive struct{}

func (m *memArchive) Save(ctx context.Context, records []*ArchivedRecord) error { return nil }
func (m *memArchive) Query(ctx context.Context, filter Filter) ([]*ArchivedRecord, error) {
	return nil, nil
}
func (m *memArchive) Close() error { return nil }

func TestInterfaces(t *testing.T) {
	var c Counter = &memCounter{}
	var a Archive = &memArchive{}
	_, _ = c, a
}

func TestPaginate(t *testing.T) {
	base := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	older := NewArchivedRecords("old", []serp.Record{{Keyword: "o1"}, {Keyword: "o2"}}, base)
	newer := NewArchivedRecords("new", []serp.Record{{Keyword: "n1"}, {Keyword: "n2"}}, base.Add(time.Hour))
	all := append(older, newer...)

	got := Paginate(all, Filter{})
	var keywords []string
	for _, r := range got {
		keywords = append(keywords, r.Record.Keyword)
	}
	want := []string{"n1", "n2", "o1", "o2"}
	for i := range want {
		if keywords[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, keywords)
		}
	}

	if got := Paginate(all, Filter{Offset: 1, Limit: 2}); len(got) != 2 || got[0].Record.Keyword != "n2" {
		t.Errorf("unexpected page %v", got)
	}
	if got := Paginate(all, Filter{Offset: 10}); len(got) != 0 {
		t.Errorf("expected empty page, got %d", len(got))
	}
}
