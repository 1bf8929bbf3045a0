package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrUnknownProxy is returned when marking a proxy the pool never handed out.
var ErrUnknownProxy = errors.New("proxy: not in pool")

type endpoint struct {
	url           *url.URL
	failures      int
	successes     int
	disabledUntil time.Time
}

// Pool rotates requests across proxies and benches the ones that keep failing.
// A search engine throttles per source address, so a rate-limited proxy is
// reported as a failure and rested for the cooldown.
type Pool struct {
	mu          sync.Mutex
	endpoints   []*endpoint
	index       map[string]*endpoint
	next        int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// Config defines settings for the Proxy Pool.
type Config struct {
	// MaxFailures before a proxy is benched.
	MaxFailures int
	// Cooldown is how long a benched proxy stays out of rotation.
	Cooldown time.Duration
}

// NewPool creates an empty pool. Zero config values get defaults of 3
// failures and a 5 minute cooldown.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		index:       make(map[string]*endpoint),
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// LoadFile adds proxies from a file with one URL per line. Blank lines and
// lines starting with '#' are skipped.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	defer f.Close()

	var raws []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raws = append(raws, line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	return p.Add(raws...)
}

// Add parses proxy URLs, defaulting to http:// when no scheme is given.
// Duplicates are ignored.
func (p *Pool) Add(raws ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, raw := range raws {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("proxy: %w", err)
		}
		key := u.String()
		if _, dup := p.index[key]; dup {
			continue
		}
		e := &endpoint{url: u}
		p.endpoints = append(p.endpoints, e)
		p.index[key] = e
	}
	return nil
}

// Len reports how many proxies the pool holds, benched or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Next returns the next proxy in rotation that is not benched, or nil if the
// pool is empty or every proxy is cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for i := 0; i < len(p.endpoints); i++ {
		e := p.endpoints[p.next]
		p.next = (p.next + 1) % len(p.endpoints)

		if !e.disabledUntil.IsZero() {
			if now.Before(e.disabledUntil) {
				continue
			}
			e.disabledUntil = time.Time{}
			e.failures = 0
		}
		return e.url
	}
	return nil
}

type ctxKey struct{}

// WithProxy returns a context that routes requests made with it through u.
func WithProxy(ctx context.Context, u *url.URL) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromRequest is an http.Transport.Proxy function that honours the proxy set
// with WithProxy and otherwise connects directly.
func FromRequest(req *http.Request) (*url.URL, error) {
	if u, ok := req.Context().Value(ctxKey{}).(*url.URL); ok {
		return u, nil
	}
	return nil, nil
}

// MarkSuccess records a good response through proxyURL and forgives one failure.
func (p *Pool) MarkSuccess(proxyURL *url.URL) error {
	return p.mark(proxyURL, func(e *endpoint) {
		e.successes++
		if e.failures > 0 {
			e.failures--
		}
	})
}

// MarkFailure records a failed or throttled request through proxyURL and
// benches the proxy once it reaches the failure limit.
func (p *Pool) MarkFailure(proxyURL *url.URL) error {
	return p.mark(proxyURL, func(e *endpoint) {
		e.failures++
		if e.failures >= p.maxFailures {
			e.disabledUntil = p.now().Add(p.cooldown)
		}
	})
}

func (p *Pool) mark(proxyURL *url.URL, fn func(*endpoint)) error {
	if proxyURL == nil {
		return errors.New("proxy: nil url")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.index[proxyURL.String()]
	if !ok {
		return ErrUnknownProxy
	}
	fn(e)
	return nil
}
