package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/hierselect/internal/metrics"
)

// readyThreshold is the load-queue utilization above which /readyz fails.
const readyThreshold = 0.8

// Handler serves read-only diagnostics for a running CLI session.
type Handler struct {
	state *State
	log   *slog.Logger
	mux   *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(state *State, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{state: state, log: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /v1/tree", h.tree)
	h.mux.HandleFunc("GET /v1/rules", h.rules)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h.logging(h.mux)
}

// GET /v1/tree: the latest snapshot.
func (h *Handler) tree(w http.ResponseWriter, r *http.Request) {
	snap := h.state.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, nil, "no tree loaded yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GET /v1/rules: rule names of the latest snapshot, in dispatch order.
func (h *Handler) rules(w http.ResponseWriter, r *http.Request) {
	snap := h.state.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, nil, "no tree loaded yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source": snap.Source,
		"rules":  snap.Rules,
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 before the first snapshot or while the lazy-load queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	snap := h.state.Current()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "loading"})
		return
	}
	util := snap.LoadQueueUtilization
	metrics.LoadQueueUtilization.Set(util)
	if util > readyThreshold {
		writeError(w, http.StatusServiceUnavailable, snap,
			fmt.Sprintf("lazy-load queue %.0f%% full", util*100))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                 "ready",
		"load_queue_utilization": util,
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.log.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur", time.Since(start))
	})
}
