// Package server is the HTTP front door that triggers pipeline runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/FranksOps/serprank/internal/report"
	"github.com/FranksOps/serprank/internal/sink"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) (report.RunResult, error)
}

type Handler struct {
	runner Runner
	logger *slog.Logger
}

// New returns the routed handler with logging and CORS applied.
func New(runner Runner, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{runner: runner, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rankings", h.HandleRankings)
	mux.HandleFunc("GET /healthz", h.HandleHealth)

	var chained http.Handler = mux
	chained = CORS(chained)
	chained = Logging(logger, chained)
	return chained
}

// HandleRankings runs the pipeline and answers with the payload the sink
// received. A failed delivery still returns the computed records under
// "results" next to the error.
//
// The run outlives the request: a client that gives up must not turn the
// rest of the window into cancelled records that the cursor then skips.
func (h *Handler) HandleRankings(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.Run(context.WithoutCancel(r.Context()))
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, result)
	case errors.Is(err, sink.ErrSink):
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   err.Error(),
			"results": result.Payload(),
		})
	default:
		h.writeJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// CORS allows any origin, as browser dashboards call /rankings directly.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func Logging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("HTTP Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}
