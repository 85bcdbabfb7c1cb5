package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qinyuanle/legal-qa-engine/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	pathOutcomeTotal *prometheus.CounterVec
	pathDuration     *prometheus.HistogramVec
	fusedResults     *prometheus.HistogramVec
	degradedTotal    *prometheus.CounterVec
	answerDuration   *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lqa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pathOutcomeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lqa",
			Subsystem: "retrieval",
			Name:      "path_outcomes_total",
			Help:      "Total per-path executions by path and outcome.",
		},
		[]string{"service", "path", "status"},
	)
	pathDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lqa",
			Subsystem: "retrieval",
			Name:      "path_duration_seconds",
			Help:      "Per-path retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "path"},
	)
	fusedResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lqa",
			Subsystem: "retrieval",
			Name:      "fused_results",
			Help:      "Distribution of fused result counts per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "doc_type"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lqa",
			Subsystem: "retrieval",
			Name:      "degraded_total",
			Help:      "Total answers produced below path quorum.",
		},
		[]string{"service"},
	)
	answerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lqa",
			Subsystem: "retrieval",
			Name:      "answer_duration_seconds",
			Help:      "End-to-end answer duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		pathOutcomeTotal,
		pathDuration,
		fusedResults,
		degradedTotal,
		answerDuration,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		pathOutcomeTotal: pathOutcomeTotal,
		pathDuration:     pathDuration,
		fusedResults:     fusedResults,
		degradedTotal:    degradedTotal,
		answerDuration:   answerDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/graph/relations/"):
		return "/v1/graph/relations/{crime}/{article}"
	default:
		return path
	}
}

// RecordAnswer feeds the per-path and fusion series from one finished answer.
func (m *HTTPServerMetrics) RecordAnswer(service string, answer *domain.Answer, duration time.Duration) {
	if answer == nil {
		return
	}
	for _, outcome := range answer.Outcomes {
		status := "ok"
		switch {
		case outcome.TimedOut:
			status = "timeout"
		case outcome.Err != "":
			status = "error"
		}
		m.pathOutcomeTotal.WithLabelValues(service, string(outcome.Path), status).Inc()
		m.pathDuration.WithLabelValues(service, string(outcome.Path)).Observe(outcome.Elapsed.Seconds())
	}
	m.fusedResults.WithLabelValues(service, string(domain.DocTypeArticle)).Observe(float64(len(answer.Articles)))
	m.fusedResults.WithLabelValues(service, string(domain.DocTypeCase)).Observe(float64(len(answer.Cases)))
	if answer.Degraded {
		m.degradedTotal.WithLabelValues(service).Inc()
	}
	m.answerDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// statusRecorder only needs the status code; the API serves buffered JSON
// and never streams.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
