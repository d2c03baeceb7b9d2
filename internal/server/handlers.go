package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"jaegerds/internal/datasource"
	"jaegerds/internal/db"
	"jaegerds/internal/models"
	"jaegerds/internal/templating"
	"jaegerds/internal/timerange"
)

const maxUploadBytes = 32 << 20

// HistoryStore records executed queries.
type HistoryStore interface {
	Record(ctx context.Context, e db.HistoryEntry) (db.HistoryEntry, error)
	List(ctx context.Context, limit int) ([]db.HistoryEntry, error)
}

// Handler holds the server dependencies
type Handler struct {
	ds      *datasource.Datasource
	history HistoryStore
	logger  *zap.Logger
}

// NewHandler creates a new handler. history may be nil.
func NewHandler(ds *datasource.Datasource, history HistoryStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		ds:      ds,
		history: history,
		logger:  logger,
	}
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReady)

	r.Route("/api", func(r chi.Router) {
		r.Post("/query", h.HandleQuery)
		r.Post("/upload", h.HandleUpload)
		r.Get("/test", h.HandleTest)
		r.Get("/services", h.HandleServices)
		r.Get("/services/{service}/operations", h.HandleOperations)
		r.Get("/history", h.HandleHistory)
	})
}

// RangeRequest is a time range as sent by a client: date math or absolute times.
type RangeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Queries    models.Queries        `json:"queries"`
	ScopedVars templating.ScopedVars `json:"scopedVars,omitempty"`
	Range      *RangeRequest         `json:"range,omitempty"`
}

// QueryResults maps each refId to its response.
type QueryResults struct {
	Results map[string]models.QueryResponse `json:"results"`
}

// HandleQuery executes a batch of queries.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to parse query request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid query request: "+err.Error())
		return
	}
	if len(req.Queries) == 0 {
		writeError(w, http.StatusBadRequest, "No queries in request")
		return
	}

	ctx := r.Context()
	if req.Range != nil {
		ctx = timerange.WithRange(ctx, timerange.Range{
			From: timerange.Expr(req.Range.From),
			To:   timerange.Expr(req.Range.To),
		})
	}

	refIDs, err := resultKeys(req.Queries)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := QueryResults{Results: make(map[string]models.QueryResponse, len(req.Queries))}
	for i, q := range req.Queries {
		start := time.Now()
		resp := h.ds.Query(ctx, q, req.ScopedVars)
		h.record(ctx, q, resp, time.Since(start))
		results.Results[refIDs[i]] = resp
	}

	writeJSON(w, http.StatusOK, results)
}

// resultKeys returns the result key of every query: its refId, or its index
// when the refId is empty. Keys must be unique.
func resultKeys(queries models.Queries) ([]string, error) {
	keys := make([]string, len(queries))
	seen := make(map[string]struct{}, len(queries))
	for i, q := range queries {
		key := q.Ref()
		if key == "" {
			key = strconv.Itoa(i)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate refId %q", key)
		}
		seen[key] = struct{}{}
		keys[i] = key
	}
	return keys, nil
}

// HandleUpload stores a Jaeger JSON document and renders it.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Uploaded document is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, "Empty document")
		return
	}

	q := models.UploadQuery{Document: string(body)}
	start := time.Now()
	resp := h.ds.Query(r.Context(), q, nil)
	h.record(r.Context(), q, resp, time.Since(start))
	if resp.Failed() {
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	h.ds.SetUploadedDocument(q.Document)
	writeJSON(w, http.StatusOK, resp)
}

// HandleTest runs a connection test. The outcome is in the body.
func (h *Handler) HandleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ds.TestConnection(r.Context()))
}

// HandleServices lists the services known to Jaeger.
func (h *Handler) HandleServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.ds.Services(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": nonNil(services)})
}

// HandleOperations lists the operations of one service.
func (h *Handler) HandleOperations(w http.ResponseWriter, r *http.Request) {
	operations, err := h.ds.Operations(r.Context(), chi.URLParam(r, "service"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": nonNil(operations)})
}

// HandleHistory returns the most recent queries.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "Query history is disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list query history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list query history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}

// HandleHealth returns health status
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReady reports ready once Jaeger answers with at least one service.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	result := h.ds.TestConnection(r.Context())
	if result.Status != models.TestStatusSuccess {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "not ready",
			"message": result.Message,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

func (h *Handler) record(ctx context.Context, q models.Query, resp models.QueryResponse, elapsed time.Duration) {
	if h.history == nil {
		return
	}

	stored := q
	if u, ok := q.(models.UploadQuery); ok {
		// Documents can be large; history keeps the query shape only.
		stored = models.UploadQuery{QueryMeta: u.QueryMeta}
	}
	raw, err := models.EncodeQuery(stored)
	if err != nil {
		h.logger.Warn("Failed to encode query for history", zap.Error(err))
		return
	}

	entry := db.HistoryEntry{
		RefID:       q.Ref(),
		QueryType:   string(q.Type()),
		DisplayText: h.ds.DisplayText(q),
		QueryJSON:   string(raw),
		Status:      db.StatusSuccess,
		DurationMS:  elapsed.Milliseconds(),
	}
	if resp.Failed() {
		entry.Status = db.StatusError
		entry.Error = resp.Error.Message
	}
	if _, err := h.history.Record(ctx, entry); err != nil {
		h.logger.Warn("Failed to record query history", zap.Error(err))
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
