package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	buildTotal     *prometheus.CounterVec
	buildDuration  *prometheus.HistogramVec
	buildInFlight  prometheus.Gauge
	graphRelations *prometheus.GaugeVec
	graphQuality   *prometheus.GaugeVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	buildTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lqa",
			Subsystem: "worker",
			Name:      "graph_builds_total",
			Help:      "Total graph rebuild attempts by status.",
		},
		[]string{"service", "status"},
	)
	buildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lqa",
			Subsystem: "worker",
			Name:      "graph_build_duration_seconds",
			Help:      "Graph rebuild duration in seconds by status.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	buildInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lqa",
			Subsystem: "worker",
			Name:      "graph_build_in_flight",
			Help:      "Number of in-flight graph rebuilds.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	graphRelations := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lqa",
			Subsystem: "worker",
			Name:      "graph_relations",
			Help:      "Relation count of the last successfully built graph.",
		},
		[]string{"service"},
	)
	graphQuality := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lqa",
			Subsystem: "worker",
			Name:      "graph_quality",
			Help:      "Extraction quality of the last successfully built graph.",
		},
		[]string{"service"},
	)

	registry.MustRegister(buildTotal, buildDuration, buildInFlight, graphRelations, graphQuality)

	return &WorkerMetrics{
		registry:       registry,
		buildTotal:     buildTotal,
		buildDuration:  buildDuration,
		buildInFlight:  buildInFlight,
		graphRelations: graphRelations,
		graphQuality:   graphQuality,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBuild() {
	m.buildInFlight.Inc()
}

func (m *WorkerMetrics) FinishBuild(service string, report domain.GraphBuildReport, duration time.Duration, err error) {
	m.buildInFlight.Dec()

	status := "success"
	switch {
	case err != nil:
		status = "error"
	case report.Skipped:
		status = "skipped"
	}

	m.buildTotal.WithLabelValues(service, status).Inc()
	m.buildDuration.WithLabelValues(service, status).Observe(duration.Seconds())

	if err == nil && !report.Skipped {
		m.graphRelations.WithLabelValues(service).Set(float64(report.RelationCount))
		m.graphQuality.WithLabelValues(service).Set(report.Quality)
	}
}
