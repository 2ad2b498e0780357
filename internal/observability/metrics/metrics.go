package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	metricPrefix = "noise_"

	resultSuccess = "success"
	resultError   = "error"
	resultSkipped = "skipped"
)

var (
	registerOnce sync.Once

	evaluationsTotal  *prometheus.CounterVec
	evaluationLatency *prometheus.HistogramVec
	windowReadings    prometheus.Histogram

	notificationsTotal *prometheus.CounterVec

	ingestTotal *prometheus.CounterVec
	prunedTotal prometheus.Counter
)

// Init registers metrics with the default registry. When db is non-nil a gauge
// of currently latched devices is registered too.
func Init(db *sql.DB, logger zerolog.Logger) {
	registerOnce.Do(func() {
		evaluationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "evaluations_total",
				Help: "Total window evaluations by outcome",
			},
			[]string{"outcome"},
		)
		evaluationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "evaluation_latency_seconds",
				Help:    "Window evaluation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)
		windowReadings = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "window_readings",
				Help:    "Number of readings inspected per sustained check",
				Buckets: []float64{0, 1, 5, 10, 30, 60, 120, 300},
			},
		)

		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total alert notifications by channel and result",
			},
			[]string{"channel", "result"},
		)

		ingestTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_total",
				Help: "Total ingested readings by source and result",
			},
			[]string{"source", "result"},
		)
		prunedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "pruned_total",
				Help: "Total readings removed by retention",
			},
		)

		prometheus.MustRegister(
			evaluationsTotal,
			evaluationLatency,
			windowReadings,
			notificationsTotal,
			ingestTotal,
			prunedTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveEvaluation records one evaluator invocation.
func ObserveEvaluation(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	if evaluationsTotal != nil {
		evaluationsTotal.WithLabelValues(outcome).Inc()
	}
	if evaluationLatency != nil {
		evaluationLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// ObserveWindow records the size of a sustained-check window.
func ObserveWindow(count int) {
	if windowReadings != nil {
		windowReadings.Observe(float64(count))
	}
}

// IncNotification increments the notification counter.
func IncNotification(channel, result string) {
	if channel == "" {
		channel = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(channel, result).Inc()
	}
}

// IncIngest increments the ingest counter.
func IncIngest(source, result string) {
	if source == "" {
		source = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if ingestTotal != nil {
		ingestTotal.WithLabelValues(source, result).Inc()
	}
}

// AddPruned adds to the retention counter.
func AddPruned(count int) {
	if count <= 0 {
		return
	}
	if prunedTotal != nil {
		prunedTotal.Add(float64(count))
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultSkipped = resultSkipped
)
