package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/storage"
	"github.com/google/uuid"
)

func TestPostgresBackend(t *testing.T) {
	// Only run this test if SERPRANK_TEST_PG_DSN is set
	dsn := os.Getenv("SERPRANK_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: SERPRANK_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	b, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres backend: %v", err)
	}
	defer b.Close()

	if err := b.Set(ctx, 11); err != nil {
		t.Fatalf("Failed to set counter: %v", err)
	}
	n, err := b.Get(ctx)
	if err != nil {
		t.Fatalf("Failed to read counter: %v", err)
	}
	if n != 11 {
		t.Errorf("Expected counter 11, got %d", n)
	}

	runID := uuid.New().String()
	runDate := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	records := storage.NewArchivedRecords(runID, []serp.Record{
		{Keyword: "kw", Target: "site.com", Rank: 3, URL: "https://site.com/", Date: runDate, Device: device.Desktop, Type: serp.RecordType, Status: serp.StatusOK},
		{Keyword: "kw", Target: "site.com", Date: runDate, Device: device.Mobile, Type: serp.RecordType, Status: serp.StatusRateLimited},
	}, time.Now())

	if err := b.Save(ctx, records); err != nil {
		t.Fatalf("Failed to save records: %v", err)
	}

	results, err := b.Query(ctx, storage.Filter{RunID: runID})
	if err != nil {
		t.Fatalf("Failed to query records: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(results))
	}
	if results[0].Record.Rank != 3 || results[0].Record.Device != device.Desktop {
		t.Errorf("Expected desktop rank 3 first, got %+v", results[0].Record)
	}
	if results[1].Record.Rank != 0 || results[1].Record.Status != serp.StatusRateLimited {
		t.Errorf("Expected rate limited record without rank, got %+v", results[1].Record)
	}

	mobile, err := b.Query(ctx, storage.Filter{RunID: runID, Device: device.Mobile})
	if err != nil {
		t.Fatalf("Failed to query by device: %v", err)
	}
	if len(mobile) != 1 {
		t.Fatalf("Expected 1 mobile record, got %d", len(mobile))
	}
}
