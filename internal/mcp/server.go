// Package mcp exposes the Jaeger data source as Model Context Protocol (MCP) tools.
package mcp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"jaegerds/internal/datasource"
	"jaegerds/internal/models"
	"jaegerds/internal/timerange"
)

const (
	maxTableRows = 50
	maxFields    = 12
)

// Server binds data source operations to MCP tool handlers.
type Server struct {
	ds     *datasource.Datasource
	logger *zap.Logger
}

// New creates a new MCP server wrapper
func New(ds *datasource.Datasource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		ds:     ds,
		logger: logger,
	}
}

// RegisterTools registers the trace tools with the MCP server
func (s *Server) RegisterTools(mcpServer *server.MCPServer) {
	lookupTool := mcp.NewTool("lookup_trace",
		mcp.WithDescription("Fetches a single trace by id and returns its spans."),
		mcp.WithString("trace_id", mcp.Required(), mcp.Description("Trace id to look up")),
	)
	mcpServer.AddTool(lookupTool, s.HandleLookupTrace)

	searchTool := mcp.NewTool("search_traces",
		mcp.WithDescription("Searches traces of a service within a time range."),
		mcp.WithString("service", mcp.Required(), mcp.Description("Service name")),
		mcp.WithString("operation", mcp.Description("Operation name, or All")),
		mcp.WithString("tags", mcp.Description("logfmt tags, e.g. error=true http.status_code=500")),
		mcp.WithString("min_duration", mcp.Description("Minimum duration, e.g. 100ms")),
		mcp.WithString("max_duration", mcp.Description("Maximum duration, e.g. 1.2s")),
		mcp.WithString("limit", mcp.Description("Maximum number of traces")),
		mcp.WithString("from", mcp.Description("Range start, e.g. now-1h")),
		mcp.WithString("to", mcp.Description("Range end, e.g. now")),
	)
	mcpServer.AddTool(searchTool, s.HandleSearchTraces)

	testTool := mcp.NewTool("test_connection",
		mcp.WithDescription("Checks that Jaeger is reachable and reports services."),
	)
	mcpServer.AddTool(testTool, s.HandleTestConnection)
}

// HandleLookupTrace runs a trace id lookup.
func (s *Server) HandleLookupTrace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	traceID := stringArg(request, "trace_id")
	if traceID == "" {
		return mcp.NewToolResultError("trace_id is required"), nil
	}

	resp := s.ds.Query(ctx, models.LookupQuery{ID: traceID}, nil)
	return s.render(fmt.Sprintf("Trace %s", traceID), resp), nil
}

// HandleSearchTraces runs a trace search.
func (s *Server) HandleSearchTraces(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := models.SearchQuery{
		Service:     stringArg(request, "service"),
		Operation:   stringArg(request, "operation"),
		Tags:        stringArg(request, "tags"),
		MinDuration: stringArg(request, "min_duration"),
		MaxDuration: stringArg(request, "max_duration"),
		Limit:       stringArg(request, "limit"),
	}

	from, to := stringArg(request, "from"), stringArg(request, "to")
	if from != "" || to != "" {
		if from == "" {
			from = "now-6h"
		}
		if to == "" {
			to = "now"
		}
		ctx = timerange.WithRange(ctx, timerange.Range{From: timerange.Expr(from), To: timerange.Expr(to)})
	}

	resp := s.ds.Query(ctx, q, nil)
	return s.render(fmt.Sprintf("Traces for %s", q.Service), resp), nil
}

// HandleTestConnection runs a connection test.
func (s *Server) HandleTestConnection(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := s.ds.TestConnection(ctx)
	if result.Status != models.TestStatusSuccess {
		return mcp.NewToolResultError(result.Message), nil
	}
	return mcp.NewToolResultText(result.Message), nil
}

func (s *Server) render(title string, resp models.QueryResponse) *mcp.CallToolResult {
	if resp.Failed() {
		return mcp.NewToolResultError(resp.Error.Message)
	}
	if len(resp.Frames) == 0 || resp.Frames[0].Rows() == 0 {
		return mcp.NewToolResultText(title + ": no data")
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	for _, frame := range resp.Frames {
		table, err := frame.StringTable(maxFields, maxTableRows)
		if err != nil {
			s.logger.Warn("Failed to render frame", zap.String("frame", frame.Name), zap.Error(err))
			continue
		}
		b.WriteString("\n")
		b.WriteString(table)
	}
	return mcp.NewToolResultText(b.String())
}

// stringArg reads a tool argument as text. Numbers are accepted for
// arguments like limit.
func stringArg(request mcp.CallToolRequest, name string) string {
	switch v := request.Params.Arguments[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
