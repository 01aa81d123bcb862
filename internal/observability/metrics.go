package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	identityAttemptsTotal *prometheus.CounterVec
	sessionStreamsActive  prometheus.Gauge
	documentReadsTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizzy",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quizzy",
			Name:      "http_latency_seconds",
			Help:      "Latency distribution for HTTP requests.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizzy",
			Name:      "http_errors_total",
			Help:      "Total number of error responses.",
		}, []string{"method", "route", "status"})

		identityAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizzy",
			Subsystem: "identity",
			Name:      "attempts_total",
			Help:      "Identity operations by outcome.",
		}, []string{"operation", "outcome"})

		sessionStreamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quizzy",
			Subsystem: "identity",
			Name:      "session_streams_active",
			Help:      "Open session event streams.",
		})

		documentReadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizzy",
			Subsystem: "files",
			Name:      "document_reads_total",
			Help:      "Document reads by cache result.",
		}, []string{"cache"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			identityAttemptsTotal,
			sessionStreamsActive,
			documentReadsTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// IdentityAttempts exposes the identity operation counter.
func IdentityAttempts() *prometheus.CounterVec {
	RegisterMetrics()
	return identityAttemptsTotal
}

// SessionStreamsActive exposes the gauge of open session streams.
func SessionStreamsActive() prometheus.Gauge {
	RegisterMetrics()
	return sessionStreamsActive
}

// DocumentReads exposes the document read counter.
func DocumentReads() *prometheus.CounterVec {
	RegisterMetrics()
	return documentReadsTotal
}
