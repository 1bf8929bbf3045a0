package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/serp"
	"github.com/FranksOps/serprank/internal/storage"
)

// ensure jsonBackend implements storage.Archive
var _ storage.Archive = (*jsonBackend)(nil)

type jsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// line is one NDJSON entry. Records are stored field by field rather than in
// the sink layout so nothing is lost on the way back.
type line struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id"`
	Keyword   string      `json:"keyword"`
	Target    string      `json:"target"`
	Rank      int         `json:"rank,omitempty"`
	URL       string      `json:"url,omitempty"`
	Date      string      `json:"date"`
	Device    device.Name `json:"device"`
	Type      string      `json:"type"`
	Status    serp.Status `json:"status"`
	Reason    string      `json:"reason,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// New creates a new NDJSON-backed storage.Archive.
func New(filePath string) (storage.Archive, error) {
	// Open file for appending, create if it doesn't exist
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("ndjson open: %w", err)
	}

	return &jsonBackend{file: f}, nil
}

func (b *jsonBackend) Save(ctx context.Context, records []*storage.ArchivedRecord) error {
	var buf []byte
	for _, r := range records {
		data, err := json.Marshal(line{
			ID:        r.ID,
			RunID:     r.RunID,
			Keyword:   r.Record.Keyword,
			Target:    r.Record.Target,
			Rank:      r.Record.Rank,
			URL:       r.Record.URL,
			Date:      r.Record.Date.Format(time.DateOnly),
			Device:    r.Record.Device,
			Type:      r.Record.Type,
			Status:    r.Record.Status,
			Reason:    r.Record.Reason,
			CreatedAt: r.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("ndjson encode: %w", err)
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Write(buf); err != nil {
		return fmt.Errorf("ndjson write: %w", err)
	}

	return nil
}

func (b *jsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.ArchivedRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Seek to the beginning of the file to read all entries
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("ndjson seek: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	scanner := bufio.NewScanner(b.file)

	// For NDJSON, we read everything, filter in memory, and then order and slice.
	var allFiltered []*storage.ArchivedRecord

	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("ndjson decode: %w", err)
		}
		date, err := time.Parse(time.DateOnly, l.Date)
		if err != nil {
			return nil, fmt.Errorf("ndjson date: %w", err)
		}

		r := &storage.ArchivedRecord{
			ID:    l.ID,
			RunID: l.RunID,
			Record: serp.Record{
				Keyword: l.Keyword,
				Target:  l.Target,
				Rank:    l.Rank,
				URL:     l.URL,
				Date:    date,
				Device:  l.Device,
				Type:    l.Type,
				Status:  l.Status,
				Reason:  l.Reason,
			},
			CreatedAt: l.CreatedAt,
		}
		if !filter.Match(r) {
			continue
		}
		allFiltered = append(allFiltered, r)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ndjson scan: %w", err)
	}

	return storage.Paginate(allFiltered, filter), nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
