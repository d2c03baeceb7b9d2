package transform

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/grafana/grafana-plugin-sdk-go/data"

	"jaegerds/internal/clients/jaeger"
)

// Node graph field names understood by the node graph panel.
const (
	FieldID            = "id"
	FieldTitle         = "title"
	FieldSubtitle      = "subtitle"
	FieldMainStat      = "mainstat"
	FieldSecondaryStat = "secondarystat"
	FieldColor         = "color"
	FieldSource        = "source"
	FieldTarget        = "target"
)

// GraphFrames derives the node graph of a trace: one node per span and one
// edge from every parent to its child.
func GraphFrames(trace *jaeger.Trace) data.Frames {
	nodes, edges := graphFrames()

	traceDuration := findTraceDuration(trace.Spans)
	children := childrenOf(trace.Spans)

	for i := range trace.Spans {
		span := &trace.Spans[i]

		self := span.Duration - childrenDuration(span, children[span.SpanID])
		main, secondary := stats(span.Duration, traceDuration, self)

		nodes.AppendRow(
			span.SpanID,
			trace.ServiceName(span),
			span.OperationName,
			main,
			secondary,
			ratio(self, traceDuration),
		)

		if parent, ok := span.ParentSpanID(); ok {
			edges.AppendRow(parent+"--"+span.SpanID, span.SpanID, parent)
		}
	}

	return data.Frames{nodes, edges}
}

func graphFrames() (*data.Frame, *data.Frame) {
	mainStat := data.NewField(FieldMainStat, nil, []string{})
	mainStat.Config = &data.FieldConfig{DisplayNameFromDS: "Total time (% of trace)"}
	secondaryStat := data.NewField(FieldSecondaryStat, nil, []string{})
	secondaryStat.Config = &data.FieldConfig{DisplayNameFromDS: "Self time (% of total)"}
	color := data.NewField(FieldColor, nil, []float64{})
	color.Config = &data.FieldConfig{
		DisplayNameFromDS: "Self time / Trace duration",
		Color:             map[string]any{"mode": "continuous-GrYlRd"},
	}

	nodes := data.NewFrame("Nodes",
		data.NewField(FieldID, nil, []string{}),
		data.NewField(FieldTitle, nil, []string{}),
		data.NewField(FieldSubtitle, nil, []string{}),
		mainStat,
		secondaryStat,
		color,
	)
	nodes.Meta = &data.FrameMeta{PreferredVisualization: data.VisTypeNodeGraph}

	edges := data.NewFrame("Edges",
		data.NewField(FieldID, nil, []string{}),
		data.NewField(FieldTarget, nil, []string{}),
		data.NewField(FieldSource, nil, []string{}),
	)
	edges.Meta = &data.FrameMeta{PreferredVisualization: data.VisTypeNodeGraph}

	return nodes, edges
}

func childrenOf(spans []jaeger.Span) map[string][]*jaeger.Span {
	children := make(map[string][]*jaeger.Span)
	for i := range spans {
		if parent, ok := spans[i].ParentSpanID(); ok {
			children[parent] = append(children[parent], &spans[i])
		}
	}
	return children
}

// findTraceDuration returns the span between the earliest start and the
// latest end, in microseconds.
func findTraceDuration(spans []jaeger.Span) int64 {
	if len(spans) == 0 {
		return 0
	}
	start, end := int64(math.MaxInt64), int64(math.MinInt64)
	for _, s := range spans {
		start = min(start, s.StartTime)
		end = max(end, s.StartTime+s.Duration)
	}
	return end - start
}

// childrenDuration is the time covered by at least one child, clipped to the
// parent so self time never goes negative.
func childrenDuration(parent *jaeger.Span, children []*jaeger.Span) int64 {
	lo, hi := parent.StartTime, parent.StartTime+parent.Duration
	ranges := make([][2]int64, 0, len(children))
	for _, c := range children {
		start, end := max(c.StartTime, lo), min(c.StartTime+c.Duration, hi)
		if end > start {
			ranges = append(ranges, [2]int64{start, end})
		}
	}
	return nonOverlappingDuration(ranges)
}

func nonOverlappingDuration(ranges [][2]int64) int64 {
	if len(ranges) == 0 {
		return 0
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i][0] < ranges[j][0] })

	var total int64
	cur := ranges[0]
	for _, r := range ranges[1:] {
		if r[0] <= cur[1] {
			cur[1] = max(cur[1], r[1])
			continue
		}
		total += cur[1] - cur[0]
		cur = r
	}
	return total + cur[1] - cur[0]
}

func stats(duration, traceDuration, self int64) (string, string) {
	main := fmt.Sprintf("%sms (%s%%)", fixed(float64(duration)/1000), fixed(ratio(duration, traceDuration)*100))
	secondary := fmt.Sprintf("%sms (%s%%)", fixed(float64(self)/1000), fixed(ratio(self, duration)*100))
	return main, secondary
}

func ratio(a, b int64) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// fixed rounds to two decimals and drops trailing zeros.
func fixed(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
