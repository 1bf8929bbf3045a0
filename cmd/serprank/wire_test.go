package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/serprank/internal/config"
	"github.com/FranksOps/serprank/internal/storage"
)

func TestOpenProxyPool(t *testing.T) {
	pool, err := openProxyPool(config.ProxyConfig{})
	if err != nil || pool != nil {
		t.Fatalf("expected no pool without proxies, got %v %v", pool, err)
	}

	file := filepath.Join(t.TempDir(), "proxies.txt")
	if err := os.WriteFile(file, []byte("10.0.0.2:3128\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pool, err = openProxyPool(config.ProxyConfig{URLs: []string{"10.0.0.1:3128"}, File: file})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.Len() != 2 {
		t.Errorf("expected 2 proxies, got %d", pool.Len())
	}
}

func TestOpenArchive(t *testing.T) {
	ctx := context.Background()
	a, err := openArchive(ctx, config.StoreConfig{Backend: config.ArchiveNone})
	if err != nil || a != nil {
		t.Fatalf("expected no archive, got %v %v", a, err)
	}

	dir := t.TempDir()
	for _, backend := range []string{config.ArchiveCSV, config.ArchiveJSON, config.ArchiveSQLite} {
		a, err := openArchive(ctx, config.StoreConfig{Backend: backend, DSN: filepath.Join(dir, "runs."+backend)})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", backend, err)
		}
		if _, err := a.Query(ctx, storage.Filter{}); err != nil {
			t.Errorf("%s: query failed: %v", backend, err)
		}
		_ = a.Close()
	}

	if _, err := openArchive(ctx, config.StoreConfig{Backend: "s3"}); err == nil {
		t.Errorf("expected error for unknown backend")
	}
}

func TestBuildAndRun(t *testing.T) {
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<div class="yuRUbf"><a href="https://site.com/&ved=1">r</a></div>`)
	}))
	defer engine.Close()
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"keywords":["kw"],"urls":[{"url":"site.com"}]}`)
	}))
	defer src.Close()
	snk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer snk.Close()

	t.Setenv("SERPRANK_SOURCE_URL", src.URL)
	t.Setenv("SERPRANK_SINK_URL", snk.URL)
	t.Setenv("SERPRANK_SEARCH_ENDPOINT", engine.URL+"/search")
	t.Setenv("SERPRANK_RUN_MOBILE", "false")
	t.Setenv("SERPRANK_PACE_MIN", "0s")
	t.Setenv("SERPRANK_PACE_MAX", "0s")
	t.Setenv("SERPRANK_FINGERPRINT_DESKTOP", "go")
	t.Setenv("SERPRANK_CURSOR_DSN", filepath.Join(t.TempDir(), "request_counter.txt"))

	cfg, err := config.Load(config.New(), "")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.Run.FetchTimeout = 5 * time.Second

	var logs bytes.Buffer
	a, err := build(context.Background(), cfg, slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()

	if !strings.Contains(logs.String(), "device profile ready") || !strings.Contains(logs.String(), "selector=div.yuRUbf") {
		t.Errorf("expected the desktop profile to be logged, got %s", logs.String())
	}

	result, err := a.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	records := result.Records()
	if len(records) != 1 || records[0].Rank != 1 || records[0].URL != "https://site.com/" {
		t.Errorf("unexpected records %+v", records)
	}

	data, err := os.ReadFile(cfg.Cursor.DSN)
	if err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if string(data) != "1" && string(data) != "1\n" {
		t.Errorf("expected counter 1, got %q", data)
	}
}
