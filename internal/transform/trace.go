// Package transform converts Jaeger API payloads into data frames. All
// functions are pure: they take decoded payloads and never touch the network.
package transform

import (
	"encoding/json"

	"github.com/grafana/grafana-plugin-sdk-go/data"

	"jaegerds/internal/clients/jaeger"
)

// TraceFormat is the custom meta value telling the trace view how to read the frame.
const TraceFormat = "jaeger"

func traceMeta() *data.FrameMeta {
	return &data.FrameMeta{
		PreferredVisualization: data.VisTypeTrace,
		Custom:                 map[string]any{"traceFormat": TraceFormat},
	}
}

type logRow struct {
	Timestamp float64           `json:"timestamp"`
	Fields    []jaeger.KeyValue `json:"fields"`
}

type referenceRow struct {
	RefType string `json:"refType"`
	TraceID string `json:"traceID"`
	SpanID  string `json:"spanID"`
}

// EmptyTraceFrame is returned when a lookup found nothing. It is a valid,
// empty result rather than an error.
func EmptyTraceFrame() *data.Frame {
	frame := data.NewFrame("Trace", data.NewField("trace", nil, []json.RawMessage{}))
	frame.Meta = traceMeta()
	return frame
}

// TraceFrame converts a trace into one row per span. Times are in
// milliseconds.
func TraceFrame(trace *jaeger.Trace) *data.Frame {
	frame := data.NewFrame("Trace",
		data.NewField("traceID", nil, []string{}),
		data.NewField("spanID", nil, []string{}),
		data.NewField("parentSpanID", nil, []*string{}),
		data.NewField("operationName", nil, []string{}),
		data.NewField("serviceName", nil, []string{}),
		data.NewField("serviceTags", nil, []json.RawMessage{}),
		data.NewField("startTime", nil, []float64{}),
		data.NewField("duration", nil, []float64{}),
		data.NewField("logs", nil, []json.RawMessage{}),
		data.NewField("references", nil, []json.RawMessage{}),
		data.NewField("tags", nil, []json.RawMessage{}),
		data.NewField("warnings", nil, []json.RawMessage{}),
		data.NewField("stackTraces", nil, []json.RawMessage{}),
	)
	frame.Meta = traceMeta()

	for i := range trace.Spans {
		span := &trace.Spans[i]
		process := trace.Processes[span.ProcessID]

		var parent *string
		if id, ok := span.ParentSpanID(); ok {
			parent = &id
		}

		frame.AppendRow(
			span.TraceID,
			span.SpanID,
			parent,
			span.OperationName,
			process.ServiceName,
			rawJSON(keyValues(process.Tags)),
			float64(span.StartTime)/1000,
			float64(span.Duration)/1000,
			rawJSON(logRows(span.Logs)),
			rawJSON(otherReferences(span)),
			rawJSON(keyValues(span.Tags)),
			rawJSON(span.Warnings),
			rawJSON(span.StackTraces),
		)
	}

	return frame
}

func keyValues(kvs []jaeger.KeyValue) []jaeger.KeyValue {
	if kvs == nil {
		return []jaeger.KeyValue{}
	}
	return kvs
}

func logRows(logs []jaeger.Log) []logRow {
	rows := make([]logRow, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, logRow{
			Timestamp: float64(l.Timestamp) / 1000,
			Fields:    keyValues(l.Fields),
		})
	}
	return rows
}

// otherReferences drops the parent reference, which is already a column.
func otherReferences(span *jaeger.Span) []referenceRow {
	parent, hasParent := span.ParentSpanID()
	rows := make([]referenceRow, 0, len(span.References))
	for _, ref := range span.References {
		if hasParent && ref.RefType == jaeger.RefChildOf && ref.SpanID == parent {
			hasParent = false
			continue
		}
		rows = append(rows, referenceRow{RefType: ref.RefType, TraceID: ref.TraceID, SpanID: ref.SpanID})
	}
	return rows
}

func rawJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return json.RawMessage(b)
}
