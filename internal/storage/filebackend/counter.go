// Package filebackend keeps the pagination counter in a plain text file, one
// decimal integer, as the first deployments did with request_counter.txt.
package filebackend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/FranksOps/serprank/internal/storage"
)

// DefaultPath is the counter file used when none is configured.
const DefaultPath = "request_counter.txt"

// ensure Counter implements storage.Counter
var _ storage.Counter = (*Counter)(nil)

// Counter is a file-backed storage.Counter. Writes go to a temporary file
// that is renamed over the counter so a crash never leaves it half written.
type Counter struct {
	mu   sync.Mutex
	path string
}

// New returns a Counter stored at path. The file is created on first Set.
func New(path string) *Counter {
	if path == "" {
		path = DefaultPath
	}
	return &Counter{path: path}
}

func (c *Counter) Get(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counter read: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("counter %s: %w", c.path, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("counter %s: negative value %d", c.path, n)
	}
	return n, nil
}

func (c *Counter) Set(ctx context.Context, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*")
	if err != nil {
		return fmt.Errorf("counter write: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(strconv.Itoa(n)); err != nil {
		tmp.Close()
		return fmt.Errorf("counter write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("counter write: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("counter write: %w", err)
	}
	return nil
}

func (c *Counter) Close() error { return nil }
