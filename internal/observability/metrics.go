// Package observability exposes the runner's Prometheus metrics. The
// teacher hand-rolled a text exporter; this replaces it with real
// prometheus/client_golang collectors registered against a private
// registry, still served the same way (an HTTP handler the caller mounts).
package observability

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks the runner's operational counters and gauges (§4.2-§4.5
// events: claims, terminals, backoff sleeps, cache activity, breaker
// state, per-worker liveness).
type Metrics struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	ClaimsAttempted  prometheus.Counter
	ClaimsEmpty      prometheus.Counter
	TerminalsTotal   *prometheus.CounterVec // labeled by error_code ("" for success)
	BackoffSleeps    prometheus.Counter
	BackoffSeconds   prometheus.Histogram
	ClassifierHits   prometheus.Counter
	ClassifierMisses prometheus.Counter
	BreakerOpen      prometheus.Gauge
	WorkerHeartbeat  *prometheus.GaugeVec // labeled by worker_id, unix seconds
}

// NewMetrics registers a fresh set of collectors against a private
// registry, so multiple Metrics instances never collide in tests.
func NewMetrics(logger *slog.Logger) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		logger:   logger.With("component", "metrics"),
		ClaimsAttempted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formsender_claims_attempted_total",
			Help: "Total claim_next calls issued.",
		}),
		ClaimsEmpty: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formsender_claims_empty_total",
			Help: "Total claim_next calls that returned no company.",
		}),
		TerminalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsender_terminals_total",
			Help: "Total mark_done terminals written, labeled by error_code (empty for success).",
		}, []string{"error_code"}),
		BackoffSleeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formsender_backoff_sleeps_total",
			Help: "Total idle-backoff sleeps taken by workers.",
		}),
		BackoffSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "formsender_backoff_seconds",
			Help:    "Distribution of idle-backoff sleep durations.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 6),
		}),
		ClassifierHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formsender_classifier_cache_hits_total",
			Help: "Total FailureClassifier cache hits.",
		}),
		ClassifierMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formsender_classifier_cache_misses_total",
			Help: "Total FailureClassifier cache misses.",
		}),
		BreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "formsender_claim_breaker_open",
			Help: "1 if the claim protocol circuit breaker is currently open, else 0.",
		}),
		WorkerHeartbeat: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "formsender_worker_last_alive_unixtime",
			Help: "Unix timestamp of each worker's last observed liveness.",
		}, []string{"worker_id"}),
	}

	reg.MustRegister(
		m.ClaimsAttempted, m.ClaimsEmpty, m.TerminalsTotal,
		m.BackoffSleeps, m.BackoffSeconds,
		m.ClassifierHits, m.ClassifierMisses,
		m.BreakerOpen, m.WorkerHeartbeat,
	)
	return m
}

// Handler returns the HTTP handler serving this instance's metrics in
// Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server on a background goroutine.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}
