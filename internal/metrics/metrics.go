// Package metrics holds the Prometheus collectors exported by jaegerds.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jaegerds"

// Query outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

// Metrics holds all Prometheus metrics of the data source
type Metrics struct {
	// Executed queries by query type and outcome
	QueriesTotal *prometheus.CounterVec

	// End to end query latency by query type
	QueryDuration *prometheus.HistogramVec

	// Outbound Jaeger API latency by endpoint and status code
	JaegerRequestDuration *prometheus.HistogramVec

	// Connection tests by resulting status
	ConnectionTests *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total queries executed",
		}, []string{"query_type", "outcome"}),

		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query_type"}),

		JaegerRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jaeger",
			Name:      "request_duration_seconds",
			Help:      "Jaeger query API latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "status_code"}),

		ConnectionTests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_tests_total",
			Help:      "Total connection tests by result",
		}, []string{"status"}),
	}
}

// ObserveQuery records one executed query.
func (m *Metrics) ObserveQuery(queryType, outcome string, elapsed time.Duration) {
	m.QueriesTotal.WithLabelValues(queryType, outcome).Inc()
	m.QueryDuration.WithLabelValues(queryType).Observe(elapsed.Seconds())
}

// ObserveJaegerRequest records one outbound request. A zero status means the
// request failed before a response arrived.
func (m *Metrics) ObserveJaegerRequest(endpoint string, status int, elapsed time.Duration) {
	code := "error"
	if status != 0 {
		code = strconv.Itoa(status)
	}
	m.JaegerRequestDuration.WithLabelValues(endpoint, code).Observe(elapsed.Seconds())
}

// ObserveConnectionTest records the status of a connection test.
func (m *Metrics) ObserveConnectionTest(status string) {
	m.ConnectionTests.WithLabelValues(status).Inc()
}
