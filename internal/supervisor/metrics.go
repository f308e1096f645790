package supervisor

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the dashboard service.
type Metrics struct {
	predictionsTotal   *prometheus.CounterVec
	predictionDuration prometheus.Histogram
	backendRequests    *prometheus.CounterVec
	retryAttempts      prometheus.Counter
	rowsInFlight       prometheus.Gauge
	backendHealthy     prometheus.Gauge
	top100Fetches      *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *Metrics
)

// NewMetrics creates the metrics collector. Collectors register with the
// default registry once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInst = &Metrics{
			predictionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "partsdash_predictions_total",
					Help: "Single-part predictions by final row status",
				},
				[]string{"status"},
			),
			predictionDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "partsdash_prediction_duration_seconds",
					Help:    "Time from submit to a terminal row state, retries included",
					Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
				},
			),
			backendRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "partsdash_backend_requests_total",
					Help: "Backend calls by endpoint and outcome",
				},
				[]string{"endpoint", "outcome"},
			),
			retryAttempts: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "partsdash_retry_attempts_total",
					Help: "Prediction attempts made after a failed first attempt",
				},
			),
			rowsInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "partsdash_rows_in_flight",
					Help: "Prediction rows still loading",
				},
			),
			backendHealthy: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "partsdash_backend_healthy",
					Help: "Backend reachability (1 = healthy, 0 = unhealthy)",
				},
			),
			top100Fetches: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "partsdash_top100_fetches_total",
					Help: "Top-100 fetches by outcome",
				},
				[]string{"outcome"},
			),
		}
	})
	return metricsInst
}

// RecordPrediction records a row reaching a terminal state.
func (m *Metrics) RecordPrediction(status string, duration time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.predictionsTotal.WithLabelValues(status).Inc()
	m.predictionDuration.Observe(duration.Seconds())
}

// RecordBackend records one backend call.
func (m *Metrics) RecordBackend(endpoint, outcome string) {
	if m == nil {
		return
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	m.backendRequests.WithLabelValues(endpoint, outcome).Inc()
}

// RecordRetry records one retried attempt.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.retryAttempts.Inc()
}

// RecordTop100 records a bulk fetch outcome (loaded|empty|failed|superseded).
func (m *Metrics) RecordTop100(outcome string) {
	if m == nil {
		return
	}
	m.top100Fetches.WithLabelValues(outcome).Inc()
}

// UpdateInFlight updates the loading-rows gauge.
func (m *Metrics) UpdateInFlight(count int) {
	if m == nil {
		return
	}
	m.rowsInFlight.Set(float64(count))
}

// UpdateBackendHealth updates the backend health gauge.
func (m *Metrics) UpdateBackendHealth(healthy bool) {
	if m == nil {
		return
	}
	if healthy {
		m.backendHealthy.Set(1)
	} else {
		m.backendHealthy.Set(0)
	}
}
