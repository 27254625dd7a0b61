package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	batchTotal       *prometheus.CounterVec
	batchDuration    *prometheus.HistogramVec
	batchInFlight    prometheus.Gauge
	sectionsEmbedded *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pmwiki",
			Subsystem: "worker",
			Name:      "embed_batch_total",
			Help:      "Total processed embedding batches by status.",
		},
		[]string{"service", "status"},
	)
	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pmwiki",
			Subsystem: "worker",
			Name:      "embed_batch_duration_seconds",
			Help:      "Embedding batch duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	batchInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pmwiki",
			Subsystem: "worker",
			Name:      "embed_batch_in_flight",
			Help:      "Number of in-flight embedding batches.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	sectionsEmbedded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pmwiki",
			Subsystem: "worker",
			Name:      "sections_embedded_total",
			Help:      "Total sections embedded and upserted into the vector index.",
		},
		[]string{"service"},
	)

	registry.MustRegister(batchTotal, batchDuration, batchInFlight, sectionsEmbedded)

	return &WorkerMetrics{
		registry:         registry,
		batchTotal:       batchTotal,
		batchDuration:    batchDuration,
		batchInFlight:    batchInFlight,
		sectionsEmbedded: sectionsEmbedded,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBatch() {
	m.batchInFlight.Inc()
}

func (m *WorkerMetrics) FinishBatch(service string, duration time.Duration, embedded int, err error) {
	m.batchInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.batchTotal.WithLabelValues(service, status).Inc()
	m.batchDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if embedded > 0 {
		m.sectionsEmbedded.WithLabelValues(service).Add(float64(embedded))
	}
}
