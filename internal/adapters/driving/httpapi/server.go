// Package httpapi exposes ingestion over HTTP: a trigger endpoint, a
// health check and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/ragsync/internal/core/domain"
	"github.com/custodia-labs/ragsync/internal/core/ports/driving"
	"github.com/custodia-labs/ragsync/internal/logger"
)

// Server serves the ingestion HTTP API.
type Server struct {
	runner driving.IngestionRunner
	addr   string

	registry       *prometheus.Registry
	runsTotal      *prometheus.CounterVec
	documentsTotal prometheus.Counter
	runDuration    prometheus.Histogram
}

// NewServer creates a server driving the given runner.
func NewServer(runner driving.IngestionRunner, addr string) *Server {
	registry := prometheus.NewRegistry()

	s := &Server{
		runner:   runner,
		addr:     addr,
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ragsync_runs_total",
			Help: "Ingestion passes by outcome status.",
		}, []string{"status"}),
		documentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ragsync_documents_processed_total",
			Help: "Documents successfully processed across all passes.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragsync_run_duration_seconds",
			Help:    "Wall-clock duration of ingestion passes.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}

	registry.MustRegister(s.runsTotal, s.documentsTotal, s.runDuration)
	return s
}

// Handler returns the API routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleIngest triggers a pass. Form fields: force_reprocess, dry_run,
// document_ids (comma-separated), days_back.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	opts, err := parseRunOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := s.runner.Run(r.Context(), opts)

	s.runsTotal.WithLabelValues(string(result.Status)).Inc()
	s.documentsTotal.Add(float64(result.DocumentsProcessed))
	s.runDuration.Observe(result.ProcessingTime)

	status := http.StatusOK
	switch result.Status {
	case domain.RunLocked:
		status = http.StatusConflict
	case domain.RunFailed:
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.Error("encoding run result: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func parseRunOptions(r *http.Request) (driving.RunOptions, error) {
	if err := r.ParseForm(); err != nil {
		return driving.RunOptions{}, err
	}

	opts := driving.RunOptions{
		ForceReprocess: parseBool(r.FormValue("force_reprocess")),
		DryRun:         parseBool(r.FormValue("dry_run")),
	}

	if ids := r.FormValue("document_ids"); ids != "" {
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				opts.DocumentIDs = append(opts.DocumentIDs, id)
			}
		}
	}

	if daysBack := r.FormValue("days_back"); daysBack != "" {
		days, err := strconv.Atoi(daysBack)
		if err != nil || days < 0 {
			return driving.RunOptions{}, &badFieldError{field: "days_back", value: daysBack}
		}
		opts.ModifiedSince = time.Now().UTC().AddDate(0, 0, -days)
	}

	return opts, nil
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

type badFieldError struct {
	field string
	value string
}

func (e *badFieldError) Error() string {
	return "invalid " + e.field + ": " + strconv.Quote(e.value)
}
