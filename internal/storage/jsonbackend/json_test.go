package jsonbackend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/storage"
	"github.com/google/go-cmp/cmp"
)

func TestJSONBackend(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "rankings.ndjson")

	b, err := New(filePath)
	if err != nil {
		t.Fatalf("Failed to create JSON backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	runDate := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

	saved := storage.NewArchivedRecords("run-1", []serp.Record{
		{Keyword: "kw", Target: "site.com", Rank: 1, URL: "https://site.com/", Date: runDate, Device: device.Desktop, Type: serp.RecordType, Status: serp.StatusOK},
		{Keyword: "kw", Target: "site.com", Rank: 7, URL: "https://site.com/blog", Date: runDate, Device: device.Desktop, Type: serp.RecordType, Status: serp.StatusOK},
		{Keyword: "slow", Target: "site.com", Date: runDate, Device: device.Desktop, Type: serp.RecordType, Status: serp.StatusFailed, Reason: "timeout"},
	}, now)

	if err := b.Save(ctx, saved); err != nil {
		t.Fatalf("Failed to save records: %v", err)
	}

	results, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if diff := cmp.Diff(saved, results); diff != "" {
		t.Errorf("round trip mismatch (-saved +queried):\n%s", diff)
	}

	kw, err := b.Query(ctx, storage.Filter{Keyword: "kw", Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query by keyword: %v", err)
	}
	if len(kw) != 1 || kw[0].Record.Rank != 7 {
		t.Errorf("Expected the second kw record, got %v", kw)
	}

	failed, err := b.Query(ctx, storage.Filter{Status: serp.StatusFailed})
	if err != nil {
		t.Fatalf("Failed to query by status: %v", err)
	}
	if len(failed) != 1 || failed[0].Record.Reason != "timeout" {
		t.Errorf("Expected one failed record, got %v", failed)
	}
}

func TestJSONBackend_Empty(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "empty.ndjson"))
	if err != nil {
		t.Fatalf("Failed to create JSON backend: %v", err)
	}
	defer b.Close()

	results, err := b.Query(context.Background(), storage.Filter{})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}
