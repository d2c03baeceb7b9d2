// Package datasource implements the Jaeger data source: it turns trace
// lookups, searches and uploaded documents into data frames.
package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/grafana/grafana-plugin-sdk-go/data"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"jaegerds/internal/clients/jaeger"
	"jaegerds/internal/metrics"
	"jaegerds/internal/models"
	"jaegerds/internal/templating"
	"jaegerds/internal/timerange"
	"jaegerds/internal/transform"
)

// User facing messages.
const (
	MsgServiceRequired = "You must select a service."
	MsgInvalidUpload   = "The JSON file uploaded is not in a valid Jaeger format"
	MsgServicesFound   = "Data source connected and services found."
	MsgNoServices      = "Data source connected, but no services received. Verify that Jaeger is configured properly."
	msgErrorPrefix     = "Jaeger: "
	msgCannotConnect   = "Cannot connect to Jaeger"
)

var tracer = otel.Tracer("jaegerds/internal/datasource")

// TraceClient is the request-issuing side of the data source.
type TraceClient interface {
	GetTrace(ctx context.Context, traceID string, params url.Values) (*jaeger.Trace, error)
	SearchTraces(ctx context.Context, params url.Values) ([]jaeger.Trace, error)
	Services(ctx context.Context) ([]string, error)
	Operations(ctx context.Context, service string) ([]string, error)
}

// Settings are the per-instance options of the data source.
type Settings struct {
	UID  string
	Name string
	// TraceIDTimeParams adds start/end to trace id lookups.
	TraceIDTimeParams bool
	// NodeGraph adds node graph frames to trace results.
	NodeGraph bool
}

// Option configures a Datasource.
type Option func(*Datasource)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Datasource) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records query outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Datasource) {
		d.metrics = m
	}
}

// WithClock replaces time.Now when resolving relative time ranges.
func WithClock(now func() time.Time) Option {
	return func(d *Datasource) {
		d.now = now
	}
}

// Datasource executes queries against Jaeger. It keeps no per-query state;
// the only shared state is the last uploaded document.
type Datasource struct {
	settings  Settings
	client    TraceClient
	timeRange timerange.Source
	templates templating.Replacer
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	uploaded  *atomic.String
}

// New creates a data source. timeRange decides where the current time range
// comes from, templates expands dashboard variables.
func New(settings Settings, client TraceClient, timeRange timerange.Source, templates templating.Replacer, opts ...Option) *Datasource {
	if timeRange == nil {
		timeRange = timerange.NewDefaultSource()
	}
	if templates == nil {
		templates = templating.NewInterpolator(nil)
	}
	d := &Datasource{
		settings:  settings,
		client:    client,
		timeRange: timeRange,
		templates: templates,
		logger:    zap.NewNop(),
		now:       time.Now,
		uploaded:  atomic.NewString(""),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Settings returns the instance settings.
func (d *Datasource) Settings() Settings {
	return d.settings
}

// Query executes a single query. Failures are reported in the response,
// never as an error.
func (d *Datasource) Query(ctx context.Context, q models.Query, scopedVars templating.ScopedVars) models.QueryResponse {
	if q == nil {
		return emptyTrace()
	}

	ctx, span := tracer.Start(ctx, "datasource.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("query.type", string(q.Type())),
		attribute.String("query.ref_id", q.Ref()),
	)

	start := time.Now()
	var resp models.QueryResponse
	switch q := q.(type) {
	case models.LookupQuery:
		resp = d.lookup(ctx, q, scopedVars)
	case models.SearchQuery:
		resp = d.search(ctx, q, scopedVars)
	case models.UploadQuery:
		resp = d.upload(q)
	default:
		resp = failed(fmt.Sprintf("unsupported query type %q", q.Type()))
	}

	outcome := outcomeOf(resp)
	span.SetAttributes(attribute.String("query.outcome", outcome))
	if d.metrics != nil {
		d.metrics.ObserveQuery(string(q.Type()), outcome, time.Since(start))
	}

	fields := []zap.Field{
		zap.String("refId", q.Ref()),
		zap.String("queryType", string(q.Type())),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", time.Since(start)),
	}
	if resp.Failed() {
		d.logger.Warn("query failed", append(fields, zap.String("error", resp.Error.Message))...)
	} else {
		d.logger.Debug("query executed", fields...)
	}

	return resp
}

func (d *Datasource) lookup(ctx context.Context, q models.LookupQuery, scopedVars templating.ScopedVars) models.QueryResponse {
	traceID := d.templates.Replace(q.ID, scopedVars)
	if traceID == "" {
		return emptyTrace()
	}

	var params url.Values
	if d.settings.TraceIDTimeParams {
		w, err := d.TimeWindow(ctx)
		if err != nil {
			return failed(err.Error())
		}
		params = jaeger.TimeParams(w.Start, w.End)
	}

	trace, err := d.client.GetTrace(ctx, traceID, params)
	if err != nil {
		return failed(errorMessage(err))
	}
	if trace == nil {
		return emptyTrace()
	}
	return d.traceResponse(trace)
}

func (d *Datasource) upload(q models.UploadQuery) models.QueryResponse {
	doc := q.Document
	if doc == "" {
		doc = d.uploaded.Load()
	}
	if doc == "" {
		return models.QueryResponse{Frames: data.Frames{}}
	}

	trace, err := parseUpload(doc)
	if err != nil {
		d.logger.Debug("rejected uploaded document", zap.Error(err))
		return failed(MsgInvalidUpload)
	}
	return d.traceResponse(trace)
}

// parseUpload extracts the first trace of a {"data": [...]} document.
func parseUpload(doc string) (*jaeger.Trace, error) {
	var payload jaeger.Response[[]jaeger.Trace]
	if err := json.Unmarshal([]byte(doc), &payload); err != nil {
		return nil, err
	}
	if len(payload.Data) == 0 {
		return nil, errors.New("document has no traces")
	}
	trace := payload.Data[0]
	if trace.Spans == nil {
		return nil, errors.New("first trace has no spans")
	}
	return &trace, nil
}

func (d *Datasource) search(ctx context.Context, q models.SearchQuery, scopedVars templating.ScopedVars) models.QueryResponse {
	if !q.Valid() {
		return failed(MsgServiceRequired)
	}

	q = d.applyVariables(q, scopedVars)

	w, err := d.TimeWindow(ctx)
	if err != nil {
		return failed(err.Error())
	}

	params, err := jaeger.SearchParams{
		Service:     q.Service,
		Operation:   q.Operation,
		Tags:        q.Tags,
		MinDuration: q.MinDuration,
		MaxDuration: q.MaxDuration,
		Limit:       q.Limit,
		Start:       w.Start,
		End:         w.End,
	}.Values()
	if err != nil {
		return failed(err.Error())
	}

	traces, err := d.client.SearchTraces(ctx, params)
	if err != nil {
		return failed(errorMessage(err))
	}

	frame := transform.TableFrame(traces, transform.LinkTarget{
		DatasourceUID:  d.settings.UID,
		DatasourceName: d.settings.Name,
	})
	return models.QueryResponse{Frames: data.Frames{frame}}
}

func (d *Datasource) traceResponse(trace *jaeger.Trace) models.QueryResponse {
	frames := data.Frames{transform.TraceFrame(trace)}
	if d.settings.NodeGraph {
		frames = append(frames, transform.GraphFrames(trace)...)
	}
	return models.QueryResponse{Frames: frames}
}

// applyVariables expands variables in the string fields of a search. Tags
// are only touched when they reference a variable.
func (d *Datasource) applyVariables(q models.SearchQuery, scopedVars templating.ScopedVars) models.SearchQuery {
	if d.templates.ContainsTemplate(q.Tags) {
		q.Tags = d.templates.Replace(q.Tags, scopedVars)
	}
	q.Service = d.templates.Replace(q.Service, scopedVars)
	q.Operation = d.templates.Replace(q.Operation, scopedVars)
	q.MinDuration = d.templates.Replace(q.MinDuration, scopedVars)
	q.MaxDuration = d.templates.Replace(q.MaxDuration, scopedVars)
	return q
}

// InterpolateVariablesInQueries returns copies of queries with variables
// expanded, as they would be sent.
func (d *Datasource) InterpolateVariablesInQueries(queries []models.Query, scopedVars templating.ScopedVars) []models.Query {
	out := make([]models.Query, 0, len(queries))
	for _, q := range queries {
		switch q := q.(type) {
		case models.SearchQuery:
			out = append(out, d.applyVariables(q, scopedVars))
		case models.LookupQuery:
			q.ID = d.templates.Replace(q.ID, scopedVars)
			out = append(out, q)
		default:
			out = append(out, q)
		}
	}
	return out
}

// TestConnection probes the service list. An empty list is reported apart
// from a failed request.
func (d *Datasource) TestConnection(ctx context.Context) models.TestResult {
	ctx, span := tracer.Start(ctx, "datasource.TestConnection")
	defer span.End()

	var result models.TestResult
	services, err := d.client.Services(ctx)
	switch {
	case err != nil:
		result = models.TestResult{Status: models.TestStatusError, Message: errorMessage(err)}
	case len(services) > 0:
		result = models.TestResult{Status: models.TestStatusSuccess, Message: MsgServicesFound}
	default:
		result = models.TestResult{Status: models.TestStatusError, Message: MsgNoServices}
	}

	if d.metrics != nil {
		d.metrics.ObserveConnectionTest(string(result.Status))
	}
	d.logger.Info("connection test", zap.String("status", string(result.Status)), zap.String("message", result.Message))
	return result
}

// TimeWindow resolves the current time range into microseconds.
func (d *Datasource) TimeWindow(ctx context.Context) (timerange.Window, error) {
	r, err := d.timeRange.CurrentRange(ctx)
	if err != nil {
		return timerange.Window{}, fmt.Errorf("failed to get time range: %w", err)
	}
	return r.Resolve(d.now())
}

// DisplayText returns the text shown for a query in history and headers.
func (d *Datasource) DisplayText(q models.Query) string {
	return models.DisplayText(q)
}

// SetUploadedDocument stores the document used by upload queries without
// their own document.
func (d *Datasource) SetUploadedDocument(doc string) {
	d.uploaded.Store(doc)
}

// UploadedDocument returns the last uploaded document.
func (d *Datasource) UploadedDocument() string {
	return d.uploaded.Load()
}

// Services lists the services known to Jaeger.
func (d *Datasource) Services(ctx context.Context) ([]string, error) {
	return d.client.Services(ctx)
}

// Operations lists the operations of a service.
func (d *Datasource) Operations(ctx context.Context, service string) ([]string, error) {
	return d.client.Operations(ctx, service)
}

// errorMessage renders a request error as prefix, status text, status code
// and body detail.
func errorMessage(err error) string {
	var fe *jaeger.FetchError
	if !errors.As(err, &fe) {
		return msgErrorPrefix + err.Error()
	}

	msg := msgErrorPrefix
	if fe.StatusText != "" {
		msg += fe.StatusText
	} else {
		msg += msgCannotConnect
	}

	if fe.Status != 0 {
		msg += fmt.Sprintf(". %d", fe.Status)
	}

	if m, ok := fe.Message(); ok {
		msg += ". " + m
	} else if fe.Data != nil {
		if b, err := json.Marshal(fe.Data); err == nil {
			msg += ". " + string(b)
		}
	}
	return msg
}

func failed(message string) models.QueryResponse {
	return models.QueryResponse{Frames: data.Frames{}, Error: models.NewFailure(message)}
}

func emptyTrace() models.QueryResponse {
	return models.QueryResponse{Frames: data.Frames{transform.EmptyTraceFrame()}}
}

func outcomeOf(resp models.QueryResponse) string {
	switch {
	case resp.Failed():
		return metrics.OutcomeError
	case len(resp.Frames) == 0 || resp.Frames[0].Rows() == 0:
		return metrics.OutcomeEmpty
	default:
		return metrics.OutcomeSuccess
	}
}
