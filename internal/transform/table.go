package transform

import (
	"fmt"
	"sort"
	"time"

	"github.com/grafana/grafana-plugin-sdk-go/data"

	"jaegerds/internal/clients/jaeger"
)

// LinkTarget identifies the data source trace ids in a table link back to.
type LinkTarget struct {
	DatasourceUID  string
	DatasourceName string
}

type traceSummary struct {
	traceID   string
	traceName string
	startTime time.Time
	duration  float64
}

// TableFrame lists search results, most recent first. Every trace id links
// to a lookup query on the same data source.
func TableFrame(traces []jaeger.Trace, target LinkTarget) *data.Frame {
	traceID := data.NewField("traceID", nil, []string{})
	traceID.Config = &data.FieldConfig{
		DisplayNameFromDS: "Trace ID",
		Links: []data.DataLink{{
			Title: "Trace: ${__value.raw}",
			URL:   "",
			Internal: &data.InternalDataLink{
				Query:          map[string]any{"query": "${__value.raw}"},
				DatasourceUID:  target.DatasourceUID,
				DatasourceName: target.DatasourceName,
			},
		}},
	}
	traceName := data.NewField("traceName", nil, []string{})
	traceName.Config = &data.FieldConfig{DisplayNameFromDS: "Trace name"}
	startTime := data.NewField("startTime", nil, []time.Time{})
	startTime.Config = &data.FieldConfig{DisplayNameFromDS: "Start time"}
	duration := data.NewField("duration", nil, []float64{})
	duration.Config = &data.FieldConfig{DisplayNameFromDS: "Duration", Unit: "µs"}

	frame := data.NewFrame("Traces", traceID, traceName, startTime, duration)
	frame.Meta = &data.FrameMeta{PreferredVisualization: data.VisTypeTable}

	summaries := make([]traceSummary, 0, len(traces))
	for i := range traces {
		summaries = append(summaries, summarize(&traces[i]))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].startTime.After(summaries[j].startTime)
	})

	for _, s := range summaries {
		frame.AppendRow(s.traceID, s.traceName, s.startTime, s.duration)
	}
	return frame
}

func summarize(trace *jaeger.Trace) traceSummary {
	s := traceSummary{traceID: trace.TraceID}
	root := rootSpan(trace)
	if root == nil {
		return s
	}
	s.traceName = fmt.Sprintf("%s: %s", trace.ServiceName(root), root.OperationName)
	s.startTime = time.UnixMicro(root.StartTime).UTC()
	s.duration = float64(root.Duration)
	return s
}

// rootSpan returns the first span whose parent is not part of the trace,
// or the first span when every span has a parent.
func rootSpan(trace *jaeger.Trace) *jaeger.Span {
	if len(trace.Spans) == 0 {
		return nil
	}
	ids := make(map[string]struct{}, len(trace.Spans))
	for _, s := range trace.Spans {
		ids[s.SpanID] = struct{}{}
	}
	for i := range trace.Spans {
		parent, ok := trace.Spans[i].ParentSpanID()
		if !ok {
			return &trace.Spans[i]
		}
		if _, known := ids[parent]; !known {
			return &trace.Spans[i]
		}
	}
	return &trace.Spans[0]
}
