// Package pipeline runs one rank tracking pass end to end: it reads the
// cursor window, pulls the pairs for it, ranks them per device, delivers the
// result and advances the cursor.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/serprank/internal/cursor"
	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/metrics"
	"github.com/FranksOps/serprank/internal/report"
	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/storage"
	"github.com/google/uuid"
)

// Source returns the keyword/target pairs of a window.
type Source interface {
	Fetch(ctx context.Context, start, end int) ([]serp.KeywordTarget, error)
}

// Ranker turns pairs into rank records for one device profile, dated date.
// It never fails as a whole; per-pair failures are records.
type Ranker interface {
	FetchAll(ctx context.Context, pairs []serp.KeywordTarget, name device.Name, date time.Time) []serp.Record
}

// Sink receives the finished dataset.
type Sink interface {
	Send(ctx context.Context, result report.RunResult) error
}

// Config holds the run parameters.
type Config struct {
	WindowSize int
	TotalSlots int
	// Devices are ranked in this order and the result groups follow it.
	Devices []device.Name
	// DevicePause separates consecutive device passes.
	DevicePause time.Duration
}

// Pipeline wires the run stages together. Runs are serialized through the
// cursor lock; a Pipeline is safe to share between triggers.
type Pipeline struct {
	cfg     Config
	cursor  *cursor.Cursor
	source  Source
	ranker  Ranker
	sink    Sink
	archive storage.Archive
	logger  *slog.Logger

	now   func() time.Time
	pause func(ctx context.Context, d time.Duration)
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithArchive keeps every record of every run in a.
func WithArchive(a storage.Archive) Option {
	return func(p *Pipeline) { p.archive = a }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the clock that dates each run.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New validates cfg and builds a Pipeline.
func New(cfg Config, c *cursor.Cursor, src Source, ranker Ranker, sink Sink, opts ...Option) (*Pipeline, error) {
	if c == nil || src == nil || ranker == nil || sink == nil {
		return nil, errors.New("pipeline: cursor, source, ranker and sink are required")
	}
	if cfg.WindowSize <= 0 || cfg.TotalSlots <= 0 {
		return nil, cursor.ErrInvalidWindow
	}
	if len(cfg.Devices) == 0 {
		cfg.Devices = []device.Name{device.Desktop}
	}
	p := &Pipeline{
		cfg:    cfg,
		cursor: c,
		source: src,
		ranker: ranker,
		sink:   sink,
		logger: slog.Default(),
		now:    time.Now,
		pause:  sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run executes one pass. A source failure aborts the run before any SERP
// request and leaves the cursor where it was. A sink failure is returned
// together with the complete result, and the cursor is advanced anyway so the
// next run moves on to the next window.
func (p *Pipeline) Run(ctx context.Context) (report.RunResult, error) {
	p.cursor.Lock()
	defer p.cursor.Unlock()

	window, err := p.cursor.NextWindow(ctx, p.cfg.TotalSlots, p.cfg.WindowSize)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("cursor_error").Inc()
		return report.RunResult{}, fmt.Errorf("pipeline: %w", err)
	}
	logger := p.logger.With("start", window.Start, "end", window.End)

	pairs, err := p.source.Fetch(ctx, window.Start, window.End)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("source_error").Inc()
		logger.Error("keyword source failed", "error", err)
		return report.RunResult{}, fmt.Errorf("pipeline: %w", err)
	}
	logger.Info("run started", "pairs", len(pairs), "devices", len(p.cfg.Devices))

	date := p.now()
	perDevice := make(map[device.Name][]serp.Record, len(p.cfg.Devices))
	for i, name := range p.cfg.Devices {
		if i > 0 && p.cfg.DevicePause > 0 {
			p.pause(ctx, p.cfg.DevicePause)
		}
		perDevice[name] = p.ranker.FetchAll(ctx, pairs, name, date)
		logger.Info("device pass done", "device", name, "records", len(perDevice[name]))
	}

	result := report.Aggregate(uuid.NewString(), date, p.cfg.Devices, perDevice)
	result.Start, result.End = window.Start, window.End

	sinkErr := p.sink.Send(ctx, result)
	if sinkErr != nil {
		logger.Error("result sink failed", "error", sinkErr)
	}

	// The window has been spent whatever the sink said.
	if err := p.cursor.Advance(ctx); err != nil {
		metrics.RunsTotal.WithLabelValues("cursor_error").Inc()
		return result, errors.Join(sinkErr, fmt.Errorf("pipeline: %w", err))
	}

	if p.archive != nil {
		archived := storage.NewArchivedRecords(result.ID, result.Records(), time.Now())
		if err := p.archive.Save(ctx, archived); err != nil {
			logger.Warn("archiving run failed", "run_id", result.ID, "error", err)
		}
	}

	if sinkErr != nil {
		metrics.RunsTotal.WithLabelValues("sink_error").Inc()
		return result, fmt.Errorf("pipeline: %w", sinkErr)
	}
	metrics.RunsTotal.WithLabelValues("ok").Inc()
	s := report.Summarize(result)
	logger.Info("run finished", "run_id", result.ID, "records", s.Records, "ranked", s.Ranked)
	return result, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
