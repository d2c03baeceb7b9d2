// Package jaeger provides a client for interacting with the Jaeger query service HTTP API.
package jaeger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// FetchError is returned for every failed request. Status is zero when the
// request never produced an HTTP response.
type FetchError struct {
	Status     int
	StatusText string
	// Data holds the decoded JSON body of an error status, or the raw body
	// text when it is not JSON. A 2xx body that fails to decode is reported
	// as {"message": <parse error>}.
	Data any
	Err  error
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("jaeger request failed: %v", e.Err)
	}
	return fmt.Sprintf("unexpected status code from jaeger: %d %s", e.Status, e.StatusText)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Message returns the "message" field of a structured error body, if any.
func (e *FetchError) Message() (string, bool) {
	m, ok := e.Data.(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := m["message"].(string)
	return msg, ok
}

// ObserveFunc receives the outcome of every request. status is zero for
// network errors.
type ObserveFunc func(endpoint string, status int, elapsed time.Duration)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithObserver registers a hook called after every request.
func WithObserver(fn ObserveFunc) Option {
	return func(c *Client) {
		c.observe = fn
	}
}

// Client implements HTTP interaction with the Jaeger query API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	observe    ObserveFunc
}

// NewClient creates a new Jaeger client
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured Jaeger query URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Fetch issues a GET for apiPath, which must already be escaped, and decodes
// the JSON body into out.
func (c *Client) Fetch(ctx context.Context, apiPath string, params url.Values, out any) error {
	u := c.baseURL + apiPath
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &FetchError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(apiPath, 0, start)
		return &FetchError{Err: err}
	}
	defer resp.Body.Close()
	c.record(apiPath, resp.StatusCode, start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Err:        fmt.Errorf("failed to read response: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &FetchError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Data:       decodeErrorBody(body),
		}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		err = fmt.Errorf("failed to parse response: %w", err)
		return &FetchError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Data:       map[string]any{"message": err.Error()},
			Err:        err,
		}
	}
	return nil
}

func (c *Client) record(apiPath string, status int, start time.Time) {
	elapsed := time.Since(start)
	c.logger.Debug("jaeger request",
		zap.String("path", apiPath),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed),
	)
	if c.observe != nil {
		c.observe(endpointOf(apiPath), status, elapsed)
	}
}

// endpointOf collapses ids out of a path so it can be used as a metric label.
func endpointOf(apiPath string) string {
	switch {
	case strings.HasPrefix(apiPath, "/api/traces/"):
		return "/api/traces/{id}"
	case strings.HasPrefix(apiPath, "/api/services/"):
		return "/api/services/{service}/operations"
	default:
		return apiPath
	}
}

func decodeErrorBody(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return string(trimmed)
	}
	return v
}

// GetTrace fetches a single complete trace by its ID. A nil trace with a nil
// error means Jaeger answered without trace data.
func (c *Client) GetTrace(ctx context.Context, traceID string, params url.Values) (*Trace, error) {
	var resp Response[[]Trace]
	if err := c.Fetch(ctx, "/api/traces/"+url.PathEscape(traceID), params, &resp); err != nil {
		c.logger.Error("Failed to fetch trace by ID", zap.String("traceID", traceID), zap.Error(err))
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return &resp.Data[0], nil
}

// SearchTraces runs a trace search with already serialized search parameters.
func (c *Client) SearchTraces(ctx context.Context, params url.Values) ([]Trace, error) {
	var resp Response[[]Trace]
	if err := c.Fetch(ctx, "/api/traces", params, &resp); err != nil {
		c.logger.Error("Failed to search traces", zap.String("query", params.Encode()), zap.Error(err))
		return nil, err
	}
	return resp.Data, nil
}

// Services lists the services known to Jaeger.
func (c *Client) Services(ctx context.Context) ([]string, error) {
	var resp Response[[]string]
	if err := c.Fetch(ctx, "/api/services", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Operations lists the operation names reported for a service.
func (c *Client) Operations(ctx context.Context, service string) ([]string, error) {
	if service == "" {
		return nil, errors.New("service is required")
	}
	var resp Response[[]string]
	if err := c.Fetch(ctx, "/api/services/"+url.PathEscape(service)+"/operations", nil, &resp); err != nil {
		c.logger.Error("Failed to fetch operations", zap.String("service", service), zap.Error(err))
		return nil, err
	}
	return resp.Data, nil
}
