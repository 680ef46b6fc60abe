package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/FranksOps/listcrawl/internal/listing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listcrawl_fetch_requests_total",
			Help: "Total number of page fetches executed",
		},
		[]string{"domain", "status", "detected", "detection_src"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listcrawl_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listcrawl_pages_total",
			Help: "Pages handed to the controller, by classification",
		},
		[]string{"kind"},
	)

	RequestsEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listcrawl_requests_emitted_total",
			Help: "Follow-up requests emitted from results pages",
		},
	)

	RecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listcrawl_records_total",
			Help: "Service records extracted from detail pages",
		},
	)

	MissingFields = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listcrawl_missing_fields_total",
			Help: "Record fields that could not be found on a detail page",
		},
		[]string{"field"},
	)
)

// RecordFetch updates the fetch metrics. A non-empty fetchErr labels the
// status as "error".
func RecordFetch(domain string, status int, d time.Duration, detectedSrc string, fetchErr string) {
	statusStr := strconv.Itoa(status)
	if fetchErr != "" {
		statusStr = "error"
	}
	detected := strconv.FormatBool(detectedSrc != "")

	FetchRequestsTotal.WithLabelValues(domain, statusStr, detected, detectedSrc).Inc()
	FetchDuration.WithLabelValues(domain).Observe(d.Seconds())
}

// RecordOutcome counts what the controller made of one page.
func RecordOutcome(kind listing.PageKind, out listing.Outcome) {
	PagesTotal.WithLabelValues(kind.String()).Inc()
	RequestsEmitted.Add(float64(len(out.Requests)))
	if out.Record == nil {
		return
	}
	RecordsTotal.Inc()
	for _, f := range out.Record.Missing() {
		MissingFields.WithLabelValues(f).Inc()
	}
}

// Server exposes /metrics over HTTP.
type Server struct {
	srv *http.Server
}

// Start begins listening on port in the background.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "port", port, "err", err)
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
