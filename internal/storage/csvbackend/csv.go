package csvbackend

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/storage"
)

// ensure csvBackend implements storage.Archive
var _ storage.Archive = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order. The leading columns match the
// report's Keyword/Rank/URLs/Date/Type layout so the file opens cleanly in a
// spreadsheet.
var headers = []string{
	"Keyword",
	"Rank",
	"URLs",
	"Date",
	"Type",
	"Status",
	"device",
	"target",
	"reason",
	"run_id",
	"id",
	"created_at",
}

// New creates a new CSV-backed storage.Archive.
func New(filePath string) (storage.Archive, error) {
	// Open file for appending, create if it doesn't exist
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csv stat: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, records []*storage.ArchivedRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Ensure we're at the end of the file for appending (just in case)
	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("csv seek: %w", err)
	}

	w := csv.NewWriter(b.file)
	for _, r := range records {
		rank := ""
		if r.Record.Rank > 0 {
			rank = strconv.Itoa(r.Record.Rank)
		}
		row := []string{
			r.Record.Keyword,
			rank,
			r.Record.URL,
			r.Record.Date.Format(serp.DateLayout),
			r.Record.Type,
			string(r.Record.Status),
			string(r.Record.Device),
			r.Record.Target,
			r.Record.Reason,
			r.RunID,
			r.ID,
			r.CreatedAt.Format(time.RFC3339Nano),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv write: %w", err)
		}
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("csv flush: %w", err)
	}

	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.ArchivedRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Seek to the beginning of the file to read all entries
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csv seek: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)

	// Read headers
	_, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return []*storage.ArchivedRecord{}, nil
		}
		return nil, fmt.Errorf("csv read header: %w", err)
	}

	var allFiltered []*storage.ArchivedRecord

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}

		if len(row) != len(headers) {
			continue // skip malformed rows
		}

		rank, _ := strconv.Atoi(row[1])
		date, _ := time.Parse(serp.DateLayout, row[3])
		createdAt, _ := time.Parse(time.RFC3339Nano, row[11])

		res := &storage.ArchivedRecord{
			ID:    row[10],
			RunID: row[9],
			Record: serp.Record{
				Keyword: row[0],
				Rank:    rank,
				URL:     row[2],
				Date:    date,
				Type:    row[4],
				Status:  serp.Status(row[5]),
				Device:  device.Name(row[6]),
				Target:  row[7],
				Reason:  row[8],
			},
			CreatedAt: createdAt,
		}

		if !filter.Match(res) {
			continue
		}
		allFiltered = append(allFiltered, res)
	}

	return storage.Paginate(allFiltered, filter), nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
