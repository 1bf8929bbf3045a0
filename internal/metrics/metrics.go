package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SERPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serprank_serp_requests_total",
			Help: "Total number of SERP requests by device profile and outcome",
		},
		[]string{"device", "outcome"},
	)

	SERPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serprank_serp_duration_seconds",
			Help:    "Duration of SERP requests in seconds, excluding pacing",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"device"},
	)

	SERPBlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serprank_serp_blocks_total",
			Help: "SERP responses recognised as block or interstitial pages",
		},
		[]string{"device", "kind"},
	)

	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serprank_records_total",
			Help: "Rank records produced by device profile and status",
		},
		[]string{"device", "status"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serprank_runs_total",
			Help: "Pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serprank_proxy_failures_total",
			Help: "Total number of proxy failures during SERP requests",
		},
		[]string{"proxy_url"},
	)
)

// RecordRequest counts one SERP request. outcome is the HTTP status class
// the scheduler assigned ("ok", "rate_limited", "failed").
func RecordRequest(device, outcome string, d time.Duration) {
	SERPRequestsTotal.WithLabelValues(device, outcome).Inc()
	if d > 0 {
		SERPDuration.WithLabelValues(device).Observe(d.Seconds())
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins serving /metrics on addr in the background.
func Start(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
