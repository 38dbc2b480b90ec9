package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pickcal/internal/config"
	appLog "pickcal/internal/log"
	"pickcal/internal/picker"
)

// Server exposes the picker service as a small JSON API.
type Server struct {
	cfg *config.Config
	svc *picker.Service
	mux *http.ServeMux

	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	queries  *prometheus.CounterVec

	clients *clientLimiters
}

// NewServer wires routes and metrics. cfg supplies auth and rate limits.
func NewServer(cfg *config.Config, svc *picker.Service) *Server {
	s := &Server{
		cfg:      cfg,
		svc:      svc,
		mux:      http.NewServeMux(),
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pickcal_queries_total",
				Help: "Picker queries by kind and outcome",
			},
			[]string{"kind", "result"},
		),
		clients: newClientLimiters(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}
	s.registry.MustRegister(s.requests, s.duration, s.queries)
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/date", s.handleDate)
	s.mux.HandleFunc("GET /api/time", s.handleTime)
	s.mux.HandleFunc("GET /api/convert", s.handleConvert)
	s.mux.HandleFunc("GET /api/days", s.handleDays)
	s.mux.HandleFunc("POST /api/reload", s.handleReload)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

// Handler returns the mux wrapped in request id, metrics, rate limiting
// and (when configured) basic auth, outermost first.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		h = s.basicAuthMiddleware(h)
	}
	h = s.rateLimitMiddleware(h)
	h = s.metricsMiddleware(h)
	return requestIDMiddleware(h)
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down with a
// 10s grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "basic_auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
