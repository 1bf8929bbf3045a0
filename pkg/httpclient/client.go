package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultMaxBodyBytes caps how much of a response body Get reads.
const DefaultMaxBodyBytes = 8 << 20

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	// UseCookieJar keeps consent and session cookies between requests, which
	// makes a sequence of searches look like one browser.
	UseCookieJar bool
	MaxBodyBytes int64
	// Transport is optional, e.g. for proxies or uTLS fingerprinting.
	Transport http.RoundTripper
}

// Client wraps http.Client with timeouts, redirect policy and cookie handling.
type Client struct {
	*http.Client
	maxBody int64
}

// Response is a fully read HTTP response. URL is the final URL after
// redirects.
type Response struct {
	StatusCode int
	URL        string
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	c := &http.Client{
		Timeout: cfg.Timeout,
	}

	if cfg.MaxRedirects >= 0 {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		c.Jar = jar
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c, maxBody: cfg.MaxBodyBytes}, nil
}

// Do executes req under ctx, which bounds the request independently of the
// client timeout.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}
	resp, err := c.Client.Do(req.Clone(ctx))
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}

// Get issues a GET with the given headers and reads the body. Non-2xx
// statuses are not errors; callers classify them.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		URL:        resp.Request.URL.String(),
		Header:     resp.Header,
		Body:       body,
		Duration:   time.Since(start),
	}, nil
}
