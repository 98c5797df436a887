package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the grading worker: per-page recognition outcomes,
// batch runs end to end, and the throttle events that shrink chunk width.
type WorkerMetrics struct {
	registry *prometheus.Registry

	pageTotal      *prometheus.CounterVec
	pageDuration   *prometheus.HistogramVec
	batchTotal     *prometheus.CounterVec
	batchDuration  *prometheus.HistogramVec
	batchInFlight  prometheus.Gauge
	throttleEvents *prometheus.CounterVec
	queueLag       *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	pageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quizpix",
			Subsystem: "worker",
			Name:      "page_grade_total",
			Help:      "Total graded pages by outcome.",
		},
		[]string{"service", "status"},
	)
	pageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quizpix",
			Subsystem: "worker",
			Name:      "page_grade_duration_seconds",
			Help:      "Per-page grading duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quizpix",
			Subsystem: "worker",
			Name:      "batch_grade_total",
			Help:      "Total graded batches by status.",
		},
		[]string{"service", "status"},
	)
	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quizpix",
			Subsystem: "worker",
			Name:      "batch_grade_duration_seconds",
			Help:      "Whole-batch grading duration in seconds by status.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 3600},
		},
		[]string{"service", "status"},
	)
	batchInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "quizpix",
			Subsystem: "worker",
			Name:      "batch_grade_in_flight",
			Help:      "Number of batches currently being graded.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	throttleEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quizpix",
			Subsystem: "worker",
			Name:      "throttle_events_total",
			Help:      "Total rate-limit backoffs engaged by the scheduler.",
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quizpix",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between batch ingestion and grading start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(pageTotal, pageDuration, batchTotal, batchDuration, batchInFlight, throttleEvents, queueLag)

	return &WorkerMetrics{
		registry:       registry,
		pageTotal:      pageTotal,
		pageDuration:   pageDuration,
		batchTotal:     batchTotal,
		batchDuration:  batchDuration,
		batchInFlight:  batchInFlight,
		throttleEvents: throttleEvents,
		queueLag:       queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBatch() {
	m.batchInFlight.Inc()
}

func (m *WorkerMetrics) FinishBatch(service string, duration time.Duration, err error) {
	m.batchInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.batchTotal.WithLabelValues(service, status).Inc()
	m.batchDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

// PageGraded records one page outcome: "ok", "rate_limited" or "failed".
func (m *WorkerMetrics) PageGraded(service, status string, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.pageTotal.WithLabelValues(service, status).Inc()
	m.pageDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ThrottleEngaged(service string) {
	m.throttleEvents.WithLabelValues(service).Inc()
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
