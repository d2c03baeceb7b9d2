package jaeger

// Response is the envelope every Jaeger query API endpoint answers with.
type Response[T any] struct {
	Data   T                 `json:"data"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
	Errors []StructuredError `json:"errors"`
}

// StructuredError is an error entry reported inside a Jaeger response body.
type StructuredError struct {
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	TraceID string `json:"traceID,omitempty"`
}

// Trace represents a complete distributed trace containing multiple spans.
type Trace struct {
	TraceID   string             `json:"traceID"`
	Spans     []Span             `json:"spans"`
	Processes map[string]Process `json:"processes"`
	Warnings  []string           `json:"warnings"`
}

// Span represents a single timed operation within a larger trace.
// StartTime is in microseconds since epoch and Duration in microseconds.
type Span struct {
	TraceID       string      `json:"traceID"`
	SpanID        string      `json:"spanID"`
	OperationName string      `json:"operationName"`
	References    []Reference `json:"references"`
	StartTime     int64       `json:"startTime"`
	Duration      int64       `json:"duration"`
	Tags          []KeyValue  `json:"tags"`
	Logs          []Log       `json:"logs"`
	ProcessID     string      `json:"processID"`
	Warnings      []string    `json:"warnings"`
	Flags         int         `json:"flags"`
	StackTraces   []string    `json:"stackTraces,omitempty"`
}

// Process describes the service that emitted a span.
type Process struct {
	ServiceName string     `json:"serviceName"`
	Tags        []KeyValue `json:"tags"`
}

// KeyValue is a typed tag.
type KeyValue struct {
	Key   string `json:"key"`
	Type  string `json:"type,omitempty"`
	Value any    `json:"value"`
}

// Log is a timestamped set of fields attached to a span.
type Log struct {
	Timestamp int64      `json:"timestamp"`
	Fields    []KeyValue `json:"fields"`
}

// Reference links a span to another span.
type Reference struct {
	RefType string `json:"refType"`
	TraceID string `json:"traceID"`
	SpanID  string `json:"spanID"`
}

// Reference types.
const (
	RefChildOf     = "CHILD_OF"
	RefFollowsFrom = "FOLLOWS_FROM"
)

// ParentSpanID returns the span id of the first CHILD_OF reference.
func (s *Span) ParentSpanID() (string, bool) {
	for _, ref := range s.References {
		if ref.RefType == RefChildOf {
			return ref.SpanID, true
		}
	}
	return "", false
}

// ServiceName resolves the service of a span through the trace processes.
func (t *Trace) ServiceName(s *Span) string {
	if p, ok := t.Processes[s.ProcessID]; ok {
		return p.ServiceName
	}
	return ""
}
