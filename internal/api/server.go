// Package api serves the status and control HTTP interface of serve mode.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smalyshev/TabulistBot/pkg/logging"
	"github.com/smalyshev/TabulistBot/pkg/version"
)

// NewRouter wires all endpoints. gatherer may be nil to omit /metrics.
func NewRouter(pages *PagesHandler, stats *StatsHandler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	// 1. Health and version
	r.Get("/health", handleHealth)
	r.Get("/api/version", handleVersion)

	// 2. Pages
	r.Route("/api/pages", func(r chi.Router) {
		r.Get("/", pages.HandleList)
		r.Get("/{id}", pages.HandleGet)
		r.Post("/{id}/update", pages.HandleUpdate)
	})

	// 3. Stats and logs
	r.Get("/api/stats", stats.ServeHTTP)
	r.Get("/api/log", handleLog)
	r.Get("/api/log/latest", handleLatestLog)

	// 4. Metrics
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// 5. Plain text index, with the ?update=<title> entry point
	r.Get("/", pages.HandleIndex)

	return r
}

// NewServer creates and configures the HTTP server.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // single page updates run inside the request
		IdleTimeout:  60 * time.Second,
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.RequestLogger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
