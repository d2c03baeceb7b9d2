package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveQuery(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveQuery("search", OutcomeSuccess, 10*time.Millisecond)
	m.ObserveQuery("search", OutcomeSuccess, 20*time.Millisecond)
	m.ObserveQuery("lookup", OutcomeError, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("search", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("lookup", OutcomeError)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.QueryDuration))
}

func TestObserveJaegerRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveJaegerRequest("/api/services", 200, time.Millisecond)
	m.ObserveJaegerRequest("/api/services", 0, time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(m.JaegerRequestDuration))
}

func TestObserveConnectionTest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveConnectionTest("success")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionTests.WithLabelValues("success")))
}
