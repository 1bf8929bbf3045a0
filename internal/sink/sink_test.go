package sink

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/serprank/internal/device"
	"github.com/FranksOps/serprank/internal/report"
	"github.com/FranksOps/serprank/internal/serp"
)

func sampleResult() report.RunResult {
	date := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	return report.Aggregate("run-1", date, []device.Name{device.Desktop}, map[device.Name][]serp.Record{
		device.Desktop: {{Keyword: "kw", Rank: 1, URL: "https://site.com/", Date: date, Type: serp.RecordType, Status: serp.StatusOK}},
	})
}

func TestClient_Send(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		want := `{"desktop_results":[{"Keyword":"kw","Rank":1,"URLs":"https://site.com/","Date":"14-10-2026","Type":"My Site"}]}`
		if string(body) != want {
			t.Errorf("expected body %s, got %s", want, body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c, err := New(Config{URL: ts.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Send(context.Background(), sampleResult()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly one request, got %d", calls.Load())
	}
}

func TestClient_SendRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c, _ := New(Config{URL: ts.URL})
	err := c.Send(context.Background(), sampleResult())
	if !errors.Is(err, ErrSink) {
		t.Fatalf("expected sink error, got %v", err)
	}
	var se *Error
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502 in error, got %v", err)
	}
}

func TestClient_SendUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c, _ := New(Config{URL: url, Timeout: time.Second})
	if err := c.Send(context.Background(), sampleResult()); !errors.Is(err, ErrSink) {
		t.Errorf("expected sink error, got %v", err)
	}
}
