package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/FranksOps/serprank/internal/config"
	"github.com/FranksOps/serprank/internal/cursor"
	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/pipeline"
	"github.com/FranksOps/serprank/internal/scraper"
	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/sink"
	"github.com/FranksOps/serprank/internal/source"
	"github.com/FranksOps/serprank/internal/storage"
	"github.com/FranksOps/serprank/internal/storage/csvbackend"
	"github.com/FranksOps/serprank/internal/storage/filebackend"
	"github.com/FranksOps/serprank/internal/storage/jsonbackend"
	"github.com/FranksOps/serprank/internal/storage/postgres"
	"github.com/FranksOps/serprank/internal/storage/redisbackend"
	"github.com/FranksOps/serprank/internal/storage/sqlite"
	"github.com/FranksOps/serprank/pkg/proxy"
	"github.com/FranksOps/serprank/pkg/ratelimit"
)

// app is a fully wired pipeline plus everything that must be closed with it.
type app struct {
	pipeline *pipeline.Pipeline
	closers  []io.Closer
	fetchers []*scraper.Fetcher
}

func (a *app) Close() error {
	for _, f := range a.fetchers {
		f.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	counter, err := openCounter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, counter)

	archive, err := openArchive(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}
	if archive != nil {
		a.closers = append(a.closers, archive)
	}

	pool, err := openProxyPool(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		logger.Info("proxy rotation enabled", "proxies", pool.Len())
	}

	registry, err := device.NewRegistry(cfg.Profiles(), nil)
	if err != nil {
		return nil, err
	}

	fetchers := make(map[device.Name]*scraper.Fetcher)
	for _, name := range cfg.Devices() {
		f, err := scraper.NewFetcher(scraper.FetchConfig{
			Timeout:      cfg.Run.FetchTimeout,
			UseCookieJar: true,
			ProxyPool:    pool,
			Fingerprint:  cfg.FingerprintFor(name),
		})
		if err != nil {
			return nil, fmt.Errorf("fetcher %s: %w", name, err)
		}
		fetchers[name] = f
		a.fetchers = append(a.fetchers, f)

		profile, err := registry.Profile(name)
		if err != nil {
			return nil, err
		}
		logger.Info("device profile ready",
			"device", name,
			"user_agents", len(profile.UserAgents),
			"selector", profile.Selector,
			"fingerprint", cfg.FingerprintFor(name),
		)
	}

	pacer := ratelimit.NewPacer(ratelimit.Config{
		MinDelay: cfg.Pace.Min,
		MaxDelay: cfg.Pace.Max,
		MinGap:   cfg.Pace.Gap,
	}, nil)

	scheduler, err := scraper.NewScheduler(scraper.SchedulerConfig{
		Search:      serp.Google{Endpoint: cfg.Search.Endpoint, Num: cfg.Search.Num},
		Concurrency: cfg.Run.Concurrency,
		Pacer:       pacer,
		Timeout:     cfg.Run.FetchTimeout,
	}, registry, fetchers, logger)
	if err != nil {
		return nil, err
	}

	src, err := source.New(source.Config{URL: cfg.Source.URL, Timeout: cfg.Source.Timeout})
	if err != nil {
		return nil, err
	}
	snk, err := sink.New(sink.Config{URL: cfg.Sink.URL, Timeout: cfg.Sink.Timeout})
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if archive != nil {
		opts = append(opts, pipeline.WithArchive(archive))
	}
	a.pipeline, err = pipeline.New(pipeline.Config{
		WindowSize:  cfg.Run.WindowSize,
		TotalSlots:  cfg.Run.TotalSlots,
		Devices:     cfg.Devices(),
		DevicePause: cfg.Run.DevicePause,
	}, cursor.New(counter), src, scheduler, snk, opts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func openCounter(ctx context.Context, cfg *config.Config) (storage.Counter, error) {
	switch cfg.Cursor.Backend {
	case config.CursorFile:
		return filebackend.New(cfg.Cursor.DSN), nil
	case config.CursorSQLite:
		return sqlite.New(cfg.Cursor.DSN)
	case config.CursorPostgres:
		return postgres.New(ctx, cfg.Cursor.DSN)
	case config.CursorRedis:
		return redisbackend.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key)
	}
	return nil, fmt.Errorf("unknown cursor backend %q", cfg.Cursor.Backend)
}

// openArchive returns nil when archiving is disabled.
func openArchive(ctx context.Context, cfg config.StoreConfig) (storage.Archive, error) {
	switch cfg.Backend {
	case config.ArchiveNone, "":
		return nil, nil
	case config.ArchiveSQLite:
		return sqlite.New(cfg.DSN)
	case config.ArchivePostgres:
		return postgres.New(ctx, cfg.DSN)
	case config.ArchiveCSV:
		return csvbackend.New(cfg.DSN)
	case config.ArchiveJSON:
		return jsonbackend.New(cfg.DSN)
	}
	return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
}

// openProxyPool returns nil when no proxies are configured.
func openProxyPool(cfg config.ProxyConfig) (*proxy.Pool, error) {
	if len(cfg.URLs) == 0 && cfg.File == "" {
		return nil, nil
	}
	pool := proxy.NewPool(proxy.Config{MaxFailures: cfg.MaxFailures, Cooldown: cfg.Cooldown})
	if err := pool.Add(cfg.URLs...); err != nil {
		return nil, err
	}
	if cfg.File != "" {
		if err := pool.LoadFile(cfg.File); err != nil {
			return nil, err
		}
	}
	return pool, nil
}
