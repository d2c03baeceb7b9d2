package jaeger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const traceBody = `{
	"data": [{
		"traceID": "abc123",
		"spans": [{
			"traceID": "abc123",
			"spanID": "s1",
			"operationName": "GET /cart",
			"references": [],
			"startTime": 1700000000000000,
			"duration": 1500,
			"tags": [{"key": "http.method", "type": "string", "value": "GET"}],
			"logs": [],
			"processID": "p1"
		}],
		"processes": {"p1": {"serviceName": "cart", "tags": []}}
	}],
	"total": 0, "limit": 0, "offset": 0, "errors": null
}`

func TestGetTrace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/traces/abc123", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("start"))
		assert.Equal(t, "20", r.URL.Query().Get("end"))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(traceBody))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, zaptest.NewLogger(t))
	trace, err := client.GetTrace(context.Background(), "abc123", TimeParams(10, 20))

	require.NoError(t, err)
	require.NotNil(t, trace)
	assert.Equal(t, "abc123", trace.TraceID)
	require.Len(t, trace.Spans, 1)
	assert.Equal(t, int64(1500), trace.Spans[0].Duration)
	assert.Equal(t, "cart", trace.ServiceName(&trace.Spans[0]))
}

func TestGetTraceEscapesID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/traces/a%2Fb%20c", r.URL.EscapedPath())
		w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)
	trace, err := client.GetTrace(context.Background(), "a/b c", nil)

	require.NoError(t, err)
	assert.Nil(t, trace)
}

func TestGetTraceNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": null}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)
	trace, err := client.GetTrace(context.Background(), "missing", nil)

	require.NoError(t, err)
	assert.Nil(t, trace)
}

func TestFetchErrorStructuredBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"message": "upstream unavailable"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)
	_, err := client.Services(context.Background())
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusBadGateway, fe.Status)
	assert.Equal(t, "Bad Gateway", fe.StatusText)
	msg, ok := fe.Message()
	assert.True(t, ok)
	assert.Equal(t, "upstream unavailable", msg)
}

func TestFetchErrorTextBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)
	_, err := client.SearchTraces(context.Background(), url.Values{"service": {"cart"}})

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "boom", fe.Data)
	_, ok := fe.Message()
	assert.False(t, ok)
}

func TestFetchErrorUndecodableSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>login</body></html>"))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, nil)
	_, err := client.Services(context.Background())

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusOK, fe.Status)
	msg, ok := fe.Message()
	require.True(t, ok)
	assert.Contains(t, msg, "failed to parse response")
	assert.Error(t, fe.Unwrap())
}

func TestFetchErrorNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, time.Second, nil)
	_, err := client.Services(context.Background())

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.Status)
	assert.Nil(t, fe.Data)
	assert.Error(t, fe.Unwrap())
}

func TestServicesAndOperations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/services":
			w.Write([]byte(`{"data": ["cart", "checkout"]}`))
		case "/api/services/cart/operations":
			w.Write([]byte(`{"data": ["GET /cart", "POST /cart"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", 5*time.Second, nil)

	services, err := client.Services(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"cart", "checkout"}, services)

	ops, err := client.Operations(context.Background(), "cart")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /cart", "POST /cart"}, ops)

	_, err = client.Operations(context.Background(), "")
	assert.Error(t, err)
}

func TestObserver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	var endpoints []string
	var statuses []int
	client := NewClient(server.URL, 5*time.Second, nil, WithObserver(func(endpoint string, status int, _ time.Duration) {
		endpoints = append(endpoints, endpoint)
		statuses = append(statuses, status)
	}))

	_, err := client.GetTrace(context.Background(), "abc", nil)
	require.NoError(t, err)
	_, err = client.Services(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"/api/traces/{id}", "/api/services"}, endpoints)
	assert.Equal(t, []int{http.StatusOK, http.StatusOK}, statuses)
}
