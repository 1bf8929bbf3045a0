// Package source fetches the tracked keyword/target pairs for a window.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/serprank/internal/serp"
	"github.com/go-resty/resty/v2"
)

// ErrSource matches every keyword source failure with errors.Is.
var ErrSource = errors.New("keyword source")

// Error is a keyword source failure. It is fatal to a run.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("keyword source: %s: %v", e.Reason, e.Err)
	}
	return "keyword source: " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSource) hold for any *Error.
func (e *Error) Is(target error) bool { return target == ErrSource }

// Config configures the keyword source client.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client calls the keyword source endpoint.
type Client struct {
	url  string
	http *resty.Client
}

// New creates a Client for cfg.URL.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("source: url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")
	return &Client{url: cfg.URL, http: client}, nil
}

type response struct {
	Keywords *[]string `json:"keywords"`
	URLs     *[]struct {
		URL string `json:"url"`
	} `json:"urls"`
}

// Fetch returns the pairs in [start, end). The source answers with parallel
// keywords and urls arrays; anything else is an *Error.
func (c *Client) Fetch(ctx context.Context, start, end int) ([]serp.KeywordTarget, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"start": strconv.Itoa(start),
			"end":   strconv.Itoa(end),
		}).
		Get(c.url)
	if err != nil {
		return nil, &Error{Reason: "request failed", Err: err}
	}
	if !res.IsSuccess() {
		return nil, &Error{Reason: fmt.Sprintf("unexpected status %d", res.StatusCode())}
	}

	var body response
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return nil, &Error{Reason: "invalid json", Err: err}
	}
	if body.Keywords == nil || body.URLs == nil {
		return nil, &Error{Reason: "response has no keywords or urls"}
	}
	keywords, urls := *body.Keywords, *body.URLs
	if len(keywords) != len(urls) {
		return nil, &Error{Reason: fmt.Sprintf("%d keywords but %d urls", len(keywords), len(urls))}
	}

	pairs := make([]serp.KeywordTarget, 0, len(keywords))
	for i, kw := range keywords {
		kw = strings.TrimSpace(kw)
		target := strings.TrimSpace(urls[i].URL)
		if kw == "" || target == "" {
			return nil, &Error{Reason: fmt.Sprintf("entry %d has an empty keyword or url", i)}
		}
		pairs = append(pairs, serp.KeywordTarget{Keyword: kw, Target: target})
	}
	return pairs, nil
}
