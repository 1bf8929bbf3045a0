package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/FranksOps/serprank/internal/bypass"
	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/metrics"
	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
)

// MaxConcurrency caps simultaneous in-flight SERP requests.
const MaxConcurrency = 5

// Failure reasons that are not tied to an HTTP status.
const (
	ReasonTimeout   = "timeout"
	ReasonCancelled = "cancelled"
)

// SchedulerConfig provides parameters for the SERP fetch pool.
type SchedulerConfig struct {
	Search serp.Google
	// Concurrency is clamped to [1, MaxConcurrency].
	Concurrency int
	// Pacer delays every request; nil disables pacing.
	Pacer *ratelimit.Pacer
	// Timeout bounds each fetch including reading the body.
	Timeout   time.Duration
	Detectors []bypass.Detector
}

// Scheduler fetches the SERPs of a batch of keywords for one device profile
// and turns each into rank records.
type Scheduler struct {
	cfg      SchedulerConfig
	registry *device.Registry
	fetchers map[device.Name]*Fetcher
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler. fetchers must hold one Fetcher for every
// profile the scheduler will be asked to fetch for.
func NewScheduler(cfg SchedulerConfig, registry *device.Registry, fetchers map[device.Name]*Fetcher, logger *slog.Logger) (*Scheduler, error) {
	if registry == nil {
		return nil, errors.New("scheduler: nil device registry")
	}
	if len(fetchers) == 0 {
		return nil, errors.New("scheduler: no fetchers")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Concurrency > MaxConcurrency {
		cfg.Concurrency = MaxConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:      cfg,
		registry: registry,
		fetchers: fetchers,
		logger:   logger,
	}, nil
}

// FetchAll ranks every pair on the SERPs served to the named profile. Each
// pair yields at least one record, whatever happens to its request, and the
// records come back in the order of pairs regardless of completion order.
// Failed requests are not retried within the call. Every record carries
// date, the date of the run it belongs to.
func (s *Scheduler) FetchAll(ctx context.Context, pairs []serp.KeywordTarget, name device.Name, date time.Time) []serp.Record {
	slots := make([][]serp.Record, len(pairs))

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	for i, kt := range pairs {
		g.Go(func() error {
			slots[i] = s.fetchOne(ctx, kt, name, date)
			return nil
		})
	}
	_ = g.Wait()

	var records []serp.Record
	for _, rs := range slots {
		for _, r := range rs {
			metrics.RecordsTotal.WithLabelValues(string(name), string(r.Status)).Inc()
		}
		records = append(records, rs...)
	}
	return records
}

func (s *Scheduler) fetchOne(ctx context.Context, kt serp.KeywordTarget, name device.Name, date time.Time) []serp.Record {
	logger := s.logger.With("keyword", kt.Keyword, "device", name)
	fail := func(status serp.Status, reason string) []serp.Record {
		return []serp.Record{serp.Failure(kt, name, date, status, reason)}
	}

	fetcher, ok := s.fetchers[name]
	if !ok {
		return fail(serp.StatusFailed, fmt.Sprintf("no fetcher for device %s", name))
	}
	header, err := s.registry.HeadersFor(name)
	if err != nil {
		return fail(serp.StatusFailed, err.Error())
	}
	selector, err := s.registry.SelectorFor(name)
	if err != nil {
		return fail(serp.StatusFailed, err.Error())
	}
	target, err := s.cfg.Search.QueryURL(kt.Keyword)
	if err != nil {
		return fail(serp.StatusFailed, err.Error())
	}

	if s.cfg.Pacer != nil {
		d, err := s.cfg.Pacer.Wait(ctx)
		if err != nil {
			logger.Warn("pacing interrupted", "err", err)
			return fail(serp.StatusFailed, ReasonCancelled)
		}
		logger.Debug("paced", "delay", d)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	logger.Debug("fetching serp", "url", target, "user_agent", header.Get("User-Agent"))
	page, err := fetcher.Fetch(fetchCtx, target, header)
	if err != nil {
		reason := failureReason(err)
		metrics.RecordRequest(string(name), string(serp.StatusFailed), 0)
		logger.Warn("serp request failed", "reason", reason, "err", err)
		return fail(serp.StatusFailed, reason)
	}

	if kind, blocked := bypass.Detect(bypass.Page{
		StatusCode: page.StatusCode,
		Header:     page.Header,
		Body:       page.Body,
		URL:        page.URL,
	}, s.cfg.Detectors); blocked {
		metrics.SERPBlocksTotal.WithLabelValues(string(name), kind).Inc()
		logger.Warn("block page detected", "kind", kind, "status", page.StatusCode)
		if page.StatusCode == http.StatusOK {
			metrics.RecordRequest(string(name), string(serp.StatusFailed), page.Duration)
			return fail(serp.StatusFailed, fmt.Sprintf("Blocked by %s", kind))
		}
		if page.StatusCode != http.StatusTooManyRequests {
			metrics.RecordRequest(string(name), string(serp.StatusFailed), page.Duration)
			return fail(serp.StatusFailed, fmt.Sprintf("%s (%s)", serp.StatusReason(page.StatusCode), kind))
		}
	}

	switch {
	case page.StatusCode == http.StatusOK:
		metrics.RecordRequest(string(name), string(serp.StatusOK), page.Duration)
		urls, err := serp.Extract(bytes.NewReader(page.Body), selector)
		if err != nil {
			return fail(serp.StatusFailed, err.Error())
		}
		if len(urls) == 0 {
			logger.Info("no result containers on page", "selector", selector)
		}
		return serp.Resolve(kt.Target, urls, kt.Keyword, name, date)
	case page.StatusCode == http.StatusTooManyRequests:
		metrics.RecordRequest(string(name), string(serp.StatusRateLimited), page.Duration)
		logger.Warn("rate limited")
		return fail(serp.StatusRateLimited, "")
	default:
		metrics.RecordRequest(string(name), string(serp.StatusFailed), page.Duration)
		logger.Warn("unexpected status", "status", page.StatusCode)
		return fail(serp.StatusFailed, serp.StatusReason(page.StatusCode))
	}
}

// failureReason summarises a transport error for the report.
func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCancelled
	}
	return err.Error()
}
