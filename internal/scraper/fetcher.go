package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/serprank/internal/fingerprint"
	"github.com/FranksOps/serprank/internal/metrics"
	"github.com/FranksOps/serprank/pkg/httpclient"
	"github.com/FranksOps/serprank/pkg/proxy"
)

// FetchConfig configures how SERP pages are requested.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	Fingerprint  fingerprint.Profile
	// InsecureSkipVerify is only for tests against self-signed servers.
	InsecureSkipVerify bool
}

// Page is one fetched SERP response.
type Page struct {
	StatusCode int
	URL        string
	Header     http.Header
	Body       []byte
	Duration   time.Duration
	// Proxy is the proxy the request went through, empty for direct requests.
	Proxy string
}

// Fetcher performs single SERP requests over a fingerprinted transport.
// Holding one client keeps the connection pool and cookie jar alive between
// searches.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher initializes a Fetcher with the given configuration.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, fingerprint.Options{
		Proxy:              proxy.FromRequest,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client}, nil
}

// Fetch issues a GET for targetURL with header. Any HTTP status is returned
// as a Page; only transport failures are errors.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string, header http.Header) (*Page, error) {
	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}
	if activeProxy != nil {
		ctx = proxy.WithProxy(ctx, activeProxy)
	}

	resp, err := f.client.Get(ctx, targetURL, header)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.String()).Inc()
		}
		return nil, err
	}

	page := &Page{
		StatusCode: resp.StatusCode,
		URL:        resp.URL,
		Header:     resp.Header,
		Body:       resp.Body,
		Duration:   resp.Duration,
	}
	if activeProxy != nil {
		page.Proxy = activeProxy.String()
		// A throttled proxy is as good as a dead one for the next few searches.
		if resp.StatusCode == http.StatusTooManyRequests {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(page.Proxy).Inc()
		} else {
			_ = f.config.ProxyPool.MarkSuccess(activeProxy)
		}
	}
	return page, nil
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}
