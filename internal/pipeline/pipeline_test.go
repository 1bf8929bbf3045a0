package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/serprank/internal/cursor"
	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/report"
	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/sink"
	"github.com/FranksOps/serprank/internal/source"
	"github.com/FranksOps/serprank/internal/storage"
)

var runDate = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

type memCounter struct {
	mu sync.Mutex
	n  int
}

func (m *memCounter) Get(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.n, nil
}

func (m *memCounter) Set(ctx context.Context, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n = n
	return nil
}

func (m *memCounter) Close() error { return nil }

type fakeSource struct {
	pairs      []serp.KeywordTarget
	err        error
	start, end int
	calls      int
}

func (f *fakeSource) Fetch(ctx context.Context, start, end int) ([]serp.KeywordTarget, error) {
	f.calls++
	f.start, f.end = start, end
	return f.pairs, f.err
}

// fakeRanker serves fixed result lists per keyword and rate limits the
// keywords in blocked.
type fakeRanker struct {
	mu      sync.Mutex
	serps   map[string][]string
	blocked map[string]bool
	calls   []device.Name
}

func (f *fakeRanker) FetchAll(ctx context.Context, pairs []serp.KeywordTarget, name device.Name, date time.Time) []serp.Record {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()

	var out []serp.Record
	for _, kt := range pairs {
		if f.blocked[kt.Keyword] {
			out = append(out, serp.Failure(kt, name, date, serp.StatusRateLimited, ""))
			continue
		}
		out = append(out, serp.Resolve(kt.Target, f.serps[kt.Keyword], kt.Keyword, name, date)...)
	}
	return out
}

type fakeSink struct {
	sent []report.RunResult
	err  error
}

func (f *fakeSink) Send(ctx context.Context, r report.RunResult) error {
	f.sent = append(f.sent, r)
	return f.err
}

type memArchive struct {
	saved []*storage.ArchivedRecord
}

func (m *memArchive) Save(ctx context.Context, rs []*storage.ArchivedRecord) error {
	m.saved = append(m.saved, rs...)
	return nil
}

func (m *memArchive) Query(ctx context.Context, f storage.Filter) ([]*storage.ArchivedRecord, error) {
	return m.saved, nil
}

func (m *memArchive) Close() error { return nil }

func threePairs() []serp.KeywordTarget {
	return []serp.KeywordTarget{
		{Keyword: "alpha", Target: "site.com"},
		{Keyword: "beta", Target: "site.com"},
		{Keyword: "gamma", Target: "site.com"},
	}
}

func newTestPipeline(t *testing.T, cfg Config, counter *memCounter, src Source, ranker Ranker, snk Sink, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return runDate })}, opts...)
	p, err := New(cfg, cursor.New(counter), src, ranker, snk, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.pause = func(context.Context, time.Duration) {}
	return p
}

func TestPipeline_Run(t *testing.T) {
	counter := &memCounter{n: 11}
	src := &fakeSource{pairs: threePairs()}
	ranker := &fakeRanker{serps: map[string][]string{
		"alpha": {"https://other.com/", "https://site.com/a", "https://x.com/"},
		"beta":  {"https://site.com/", "https://other.com/"},
		"gamma": {"https://other.com/"},
	}}
	snk := &fakeSink{}
	archive := &memArchive{}

	p := newTestPipeline(t, Config{WindowSize: 10, TotalSlots: 120, Devices: []device.Name{device.Desktop}},
		counter, src, ranker, snk, WithArchive(archive))

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if src.start != 110 || src.end != 120 {
		t.Errorf("expected window 110-120, got %d-%d", src.start, src.end)
	}
	if len(snk.sent) != 1 {
		t.Fatalf("expected one sink call, got %d", len(snk.sent))
	}
	if counter.n != 12 {
		t.Errorf("expected cursor 12, got %d", counter.n)
	}
	if result.ID == "" || result.Start != 110 || result.End != 120 || !result.Date.Equal(runDate) {
		t.Errorf("unexpected result header %+v", result)
	}

	records := result.Records()
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Rank != 2 || records[1].Rank != 1 || records[2].Status != serp.StatusNoMatch {
		t.Errorf("unexpected records %+v", records)
	}
	if len(archive.saved) != 3 || archive.saved[0].RunID != result.ID {
		t.Errorf("expected 3 archived records for run %s, got %d", result.ID, len(archive.saved))
	}
}

func TestPipeline_RunRateLimited(t *testing.T) {
	counter := &memCounter{}
	ranker := &fakeRanker{
		serps:   map[string][]string{"alpha": {"https://site.com/"}, "gamma": {"https://site.com/"}},
		blocked: map[string]bool{"beta": true},
	}
	snk := &fakeSink{}
	p := newTestPipeline(t, Config{WindowSize: 10, TotalSlots: 120}, counter, &fakeSource{pairs: threePairs()}, ranker, snk)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records := result.Records()
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[1].Status != serp.StatusRateLimited || !strings.Contains(records[1].Message(), "429") {
		t.Errorf("expected beta rate limited, got %+v", records[1])
	}
	if records[0].Rank != 1 || records[2].Rank != 1 {
		t.Errorf("expected other keywords unaffected, got %+v", records)
	}
	if counter.n != 1 {
		t.Errorf("expected cursor 1, got %d", counter.n)
	}
}

func TestPipeline_RunSourceError(t *testing.T) {
	counter := &memCounter{n: 5}
	ranker := &fakeRanker{}
	snk := &fakeSink{}
	src := &fakeSource{err: &source.Error{Reason: "unexpected status 500"}}
	p := newTestPipeline(t, Config{WindowSize: 10, TotalSlots: 120}, counter, src, ranker, snk)

	_, err := p.Run(context.Background())
	if !errors.Is(err, source.ErrSource) {
		t.Fatalf("expected source error, got %v", err)
	}
	if len(ranker.calls) != 0 {
		t.Errorf("expected no SERP fetches, got %v", ranker.calls)
	}
	if len(snk.sent) != 0 {
		t.Errorf("expected no sink call, got %d", len(snk.sent))
	}
	if counter.n != 5 {
		t.Errorf("expected cursor unchanged at 5, got %d", counter.n)
	}
}

func TestPipeline_RunSinkErrorStillAdvances(t *testing.T) {
	counter := &memCounter{n: 3}
	snk := &fakeSink{err: &sink.Error{StatusCode: 502}}
	ranker := &fakeRanker{serps: map[string][]string{}}
	archive := &memArchive{}
	p := newTestPipeline(t, Config{WindowSize: 10, TotalSlots: 120}, counter, &fakeSource{pairs: threePairs()}, ranker, snk, WithArchive(archive))

	result, err := p.Run(context.Background())
	if !errors.Is(err, sink.ErrSink) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(result.Records()) != 3 {
		t.Errorf("expected the full result alongside the error, got %d records", len(result.Records()))
	}
	if counter.n != 4 {
		t.Errorf("expected cursor 4, got %d", counter.n)
	}
	if len(archive.saved) != 3 {
		t.Errorf("expected the run archived, got %d", len(archive.saved))
	}
}

func TestPipeline_RunDevicesInOrder(t *testing.T) {
	ranker := &fakeRanker{serps: map[string][]string{"alpha": {"https://site.com/"}}}
	snk := &fakeSink{}
	p := newTestPipeline(t, Config{WindowSize: 10, TotalSlots: 120, Devices: []device.Name{device.Desktop, device.Mobile}, DevicePause: time.Hour},
		&memCounter{}, &fakeSource{pairs: threePairs()[:1]}, ranker, snk)

	var paused []time.Duration
	p.pause = func(_ context.Context, d time.Duration) { paused = append(paused, d) }

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranker.calls) != 2 || ranker.calls[0] != device.Desktop || ranker.calls[1] != device.Mobile {
		t.Errorf("expected desktop then mobile, got %v", ranker.calls)
	}
	if len(paused) != 1 || paused[0] != time.Hour {
		t.Errorf("expected one pause between passes, got %v", paused)
	}
	payload := result.Payload()
	if len(payload["desktop_results"]) != 1 || len(payload["mobile_results"]) != 1 {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestPipeline_RunDatesEveryRecordOnce(t *testing.T) {
	// Each clock read lands a day later, as if passes straddled midnight.
	day := time.Date(2026, 10, 14, 23, 59, 0, 0, time.UTC)
	clock := func() time.Time {
		d := day
		day = day.Add(24 * time.Hour)
		return d
	}
	ranker := &fakeRanker{serps: map[string][]string{"alpha": {"https://site.com/"}}}
	p := newTestPipeline(t, Config{WindowSize: 10, TotalSlots: 120, Devices: []device.Name{device.Desktop, device.Mobile}},
		&memCounter{}, &fakeSource{pairs: threePairs()}, ranker, &fakeSink{}, WithClock(clock))

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, rec := range result.Records() {
		if !rec.Date.Equal(result.Date) {
			t.Errorf("record %s/%s dated %v, run dated %v", rec.Device, rec.Keyword, rec.Date, result.Date)
		}
	}
}

func TestPipeline_RunSerialized(t *testing.T) {
	counter := &memCounter{}
	p := newTestPipeline(t, Config{WindowSize: 10, TotalSlots: 30}, counter, &fakeSource{}, &fakeRanker{}, &fakeSink{})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Run(context.Background())
		}()
	}
	wg.Wait()

	if counter.n != 6 {
		t.Errorf("expected 6 advances, got %d", counter.n)
	}
}

func TestNew_Validation(t *testing.T) {
	c := cursor.New(&memCounter{})
	if _, err := New(Config{WindowSize: 10, TotalSlots: 120}, nil, &fakeSource{}, &fakeRanker{}, &fakeSink{}); err == nil {
		t.Errorf("expected error for nil cursor")
	}
	if _, err := New(Config{WindowSize: 0, TotalSlots: 120}, c, &fakeSource{}, &fakeRanker{}, &fakeSink{}); !errors.Is(err, cursor.ErrInvalidWindow) {
		t.Errorf("expected invalid window error, got %v", err)
	}
}
