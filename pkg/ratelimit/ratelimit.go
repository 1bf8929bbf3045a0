package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Config sets the pacing applied before each request.
type Config struct {
	// MinDelay and MaxDelay bound the random delay drawn per request.
	// MaxDelay below MinDelay is raised to MinDelay.
	MinDelay time.Duration
	MaxDelay time.Duration
	// MinGap is the minimum spacing between any two requests across all
	// callers sharing the Pacer. Zero disables it.
	MinGap time.Duration
}

// Pacer spaces requests with a randomized delay. It is safe for concurrent use
// by multiple goroutines.
type Pacer struct {
	cfg Config

	mu   sync.Mutex
	rng  *rand.Rand
	last time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a Pacer. rng may be nil to use the global source; tests
// pass a seeded generator to assert exact delays.
func NewPacer(cfg Config, rng *rand.Rand) *Pacer {
	if cfg.MinDelay < 0 {
		cfg.MinDelay = 0
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return &Pacer{
		cfg:   cfg,
		rng:   rng,
		now:   time.Now,
		sleep: sleepContext,
	}
}

// Delay draws the next random delay in [MinDelay, MaxDelay].
func (p *Pacer) Delay() time.Duration {
	span := int64(p.cfg.MaxDelay - p.cfg.MinDelay)
	if span <= 0 {
		return p.cfg.MinDelay
	}
	var n int64
	if p.rng == nil {
		n = rand.Int64N(span + 1)
	} else {
		p.mu.Lock()
		n = p.rng.Int64N(span + 1)
		p.mu.Unlock()
	}
	return p.cfg.MinDelay + time.Duration(n)
}

// Wait blocks for a freshly drawn delay, then for whatever remains of MinGap
// since the previous request, or until ctx is done. It returns the total time
// it chose to wait.
func (p *Pacer) Wait(ctx context.Context) (time.Duration, error) {
	d := p.Delay()
	if d > 0 {
		if err := p.sleep(ctx, d); err != nil {
			return d, err
		}
	}
	if p.cfg.MinGap <= 0 {
		return d, nil
	}

	p.mu.Lock()
	now := p.now()
	slot := p.last.Add(p.cfg.MinGap)
	if slot.Before(now) {
		slot = now
	}
	p.last = slot
	p.mu.Unlock()

	gap := slot.Sub(now)
	if gap > 0 {
		if err := p.sleep(ctx, gap); err != nil {
			return d + gap, err
		}
	}
	return d + gap, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
