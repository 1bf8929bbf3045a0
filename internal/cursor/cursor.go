// Package cursor selects which slice of the keyword set a run processes.
//
// The cursor is a single persisted request count. Each run covers
// windowSize keywords starting at (count*windowSize) mod totalSlots, so the
// window walks the keyword set and wraps instead of growing.
package cursor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/FranksOps/serprank/internal/storage"
)

// ErrInvalidWindow is returned for non-positive slot or window sizes.
var ErrInvalidWindow = errors.New("cursor: total slots and window size must be positive")

// Window is the half-open keyword range [Start, End) of one run.
type Window struct {
	Start int
	End   int
}

// Compute returns the window for a request count.
func Compute(count, totalSlots, windowSize int) (Window, error) {
	if totalSlots <= 0 || windowSize <= 0 {
		return Window{}, ErrInvalidWindow
	}
	if count < 0 {
		return Window{}, fmt.Errorf("cursor: negative request count %d", count)
	}
	start := (count * windowSize) % totalSlots
	return Window{Start: start, End: start + windowSize}, nil
}

// Cursor reads and advances the persisted request count.
type Cursor struct {
	mu      sync.Mutex
	counter storage.Counter
}

// New returns a Cursor over counter.
func New(counter storage.Counter) *Cursor {
	return &Cursor{counter: counter}
}

// Lock takes the exclusive section a run holds from reading the window to
// advancing it, so concurrent triggers neither repeat nor skip a window.
func (c *Cursor) Lock() { c.mu.Lock() }

// Unlock releases the section taken by Lock.
func (c *Cursor) Unlock() { c.mu.Unlock() }

// Count returns the persisted request count.
func (c *Cursor) Count(ctx context.Context) (int, error) {
	n, err := c.counter.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("cursor: %w", err)
	}
	return n, nil
}

// NextWindow returns the window for the current request count.
func (c *Cursor) NextWindow(ctx context.Context, totalSlots, windowSize int) (Window, error) {
	n, err := c.Count(ctx)
	if err != nil {
		return Window{}, err
	}
	return Compute(n, totalSlots, windowSize)
}

// Advance increments the request count by one and persists it. Counters
// that implement storage.Incrementer are incremented in a single step.
func (c *Cursor) Advance(ctx context.Context) error {
	if inc, ok := c.counter.(storage.Incrementer); ok {
		if _, err := inc.Incr(ctx); err != nil {
			return fmt.Errorf("cursor: %w", err)
		}
		return nil
	}
	n, err := c.Count(ctx)
	if err != nil {
		return err
	}
	if err := c.counter.Set(ctx, n+1); err != nil {
		return fmt.Errorf("cursor: %w", err)
	}
	return nil
}
