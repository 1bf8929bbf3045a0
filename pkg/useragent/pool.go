package useragent

import (
	"math/rand/v2"
	"sync"
)

// DesktopPool holds desktop browser User-Agents.
var DesktopPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:105.0) Gecko/20100101 Firefox/105.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:15.0) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Safari/605.1.15",
}

// MobilePool holds iPhone browser User-Agents. Google serves its mobile
// layout to these.
var MobilePool = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/114.0.5735.99 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) FxiOS/114.1 Mobile/15E148 Safari/605.1.15",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Mobile/15E148 EdgiOS/114.0.5735.99",
}

// Pool is a fixed set of User-Agents drawn from at random.
// It is safe for concurrent use.
type Pool struct {
	uas []string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPool creates a pool over a copy of uas, falling back to DesktopPool when
// uas is empty. rng may be nil, in which case the runtime's global source is used.
// Tests pass a seeded generator to make GetRandom deterministic.
func NewPool(uas []string, rng *rand.Rand) *Pool {
	if len(uas) == 0 {
		uas = DesktopPool
	}
	copied := make([]string, len(uas))
	copy(copied, uas)
	return &Pool{
		uas: copied,
		rng: rng,
	}
}

// GetRandom returns a User-Agent chosen uniformly at random.
func (p *Pool) GetRandom() string {
	if len(p.uas) == 0 {
		return ""
	}
	if p.rng == nil {
		return p.uas[rand.IntN(len(p.uas))]
	}
	p.mu.Lock()
	idx := p.rng.IntN(len(p.uas))
	p.mu.Unlock()
	return p.uas[idx]
}

// GetAll returns a copy of the pool contents.
func (p *Pool) GetAll() []string {
	copied := make([]string, len(p.uas))
	copy(copied, p.uas)
	return copied
}
