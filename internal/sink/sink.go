// Package sink delivers a run's dataset to the downstream endpoint.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/serprank/internal/report"
	"github.com/go-resty/resty/v2"
)

// ErrSink matches every delivery failure with errors.Is.
var ErrSink = errors.New("result sink")

// Error is a failed delivery. StatusCode is zero when no response arrived.
type Error struct {
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("result sink: %v", e.Err)
	}
	return fmt.Sprintf("result sink: unexpected status %d", e.StatusCode)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSink) hold for any *Error.
func (e *Error) Is(target error) bool { return target == ErrSink }

// Config configures the sink client.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client posts run results to the sink endpoint.
type Client struct {
	url  string
	http *resty.Client
}

// New creates a Client for cfg.URL.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("sink: url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	return &Client{url: cfg.URL, http: client}, nil
}

// Send posts the whole result in one request. Any transport error or non-2xx
// status is an *Error; nothing is delivered partially.
func (c *Client) Send(ctx context.Context, result report.RunResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return &Error{Err: fmt.Errorf("encode payload: %w", err)}
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.url)
	if err != nil {
		return &Error{Err: err}
	}
	if !res.IsSuccess() {
		return &Error{StatusCode: res.StatusCode()}
	}
	return nil
}
