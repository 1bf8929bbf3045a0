package serp

import (
	"fmt"
	"net/url"
	"strconv"
)

// Search endpoints for the global and UK Google front ends.
const (
	GoogleEndpoint   = "https://www.google.com/search"
	GoogleUKEndpoint = "https://www.google.co.uk/search"
)

// DefaultResultCount asks for the first hundred results on one page.
const DefaultResultCount = 100

// Google builds search requests against a Google-shaped endpoint.
type Google struct {
	Endpoint string
	// Num is the requested number of results per page; zero uses DefaultResultCount.
	Num int
}

// QueryURL returns the search URL for keyword.
func (g Google) QueryURL(keyword string) (string, error) {
	endpoint := g.Endpoint
	if endpoint == "" {
		endpoint = GoogleEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("search endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("search endpoint %q is not absolute", endpoint)
	}

	num := g.Num
	if num <= 0 {
		num = DefaultResultCount
	}
	q := u.Query()
	q.Set("num", strconv.Itoa(num))
	q.Set("q", keyword)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
