// Package models defines the queries and results exchanged with the Jaeger data source.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// QueryType discriminates the Query variants on the wire.
type QueryType string

const (
	QueryTypeLookup QueryType = "lookup"
	QueryTypeSearch QueryType = "search"
	QueryTypeUpload QueryType = "upload"
)

// Query is one of LookupQuery, SearchQuery or UploadQuery. The set is closed:
// only this package can add variants.
type Query interface {
	Ref() string
	Type() QueryType
	isQuery()
}

// QueryMeta carries the fields common to every query.
type QueryMeta struct {
	RefID string `json:"refId,omitempty"`
}

// Ref returns the identifier used to match a query with its result.
func (m QueryMeta) Ref() string {
	return m.RefID
}

// LookupQuery fetches a single trace by id.
type LookupQuery struct {
	QueryMeta
	ID string
}

// SearchQuery finds traces matching service, operation, tags and durations.
type SearchQuery struct {
	QueryMeta
	Service     string
	Operation   string
	Tags        string
	MinDuration string
	MaxDuration string
	Limit       string
}

// UploadQuery renders a user supplied Jaeger JSON document. An empty
// Document refers to the last document uploaded to the data source.
type UploadQuery struct {
	QueryMeta
	Document string
}

func (LookupQuery) Type() QueryType { return QueryTypeLookup }
func (SearchQuery) Type() QueryType { return QueryTypeSearch }
func (UploadQuery) Type() QueryType { return QueryTypeUpload }

func (LookupQuery) isQuery() {}
func (SearchQuery) isQuery() {}
func (UploadQuery) isQuery() {}

// Valid reports whether the search can be sent; a service is mandatory.
func (q SearchQuery) Valid() bool {
	return q.Service != ""
}

// DisplayText returns the raw text a user typed for the query.
func DisplayText(q Query) string {
	switch q := q.(type) {
	case LookupQuery:
		return q.ID
	case SearchQuery:
		return q.Service
	default:
		return ""
	}
}

// queryJSON is the flat wire shape shared by all variants.
type queryJSON struct {
	RefID       string          `json:"refId,omitempty"`
	QueryType   QueryType       `json:"queryType,omitempty"`
	Query       string          `json:"query,omitempty"`
	Service     string          `json:"service,omitempty"`
	Operation   string          `json:"operation,omitempty"`
	Tags        string          `json:"tags,omitempty"`
	MinDuration string          `json:"minDuration,omitempty"`
	MaxDuration string          `json:"maxDuration,omitempty"`
	Limit       json.RawMessage `json:"limit,omitempty"`
	Document    string          `json:"document,omitempty"`
}

// DecodeQuery parses a query. A missing queryType means a trace id lookup.
func DecodeQuery(data []byte) (Query, error) {
	var raw queryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse query: %w", err)
	}

	meta := QueryMeta{RefID: raw.RefID}
	switch raw.QueryType {
	case "", QueryTypeLookup:
		return LookupQuery{QueryMeta: meta, ID: raw.Query}, nil
	case QueryTypeSearch:
		limit, err := decodeLimit(raw.Limit)
		if err != nil {
			return nil, err
		}
		return SearchQuery{
			QueryMeta:   meta,
			Service:     raw.Service,
			Operation:   raw.Operation,
			Tags:        raw.Tags,
			MinDuration: raw.MinDuration,
			MaxDuration: raw.MaxDuration,
			Limit:       limit,
		}, nil
	case QueryTypeUpload:
		return UploadQuery{QueryMeta: meta, Document: raw.Document}, nil
	default:
		return nil, fmt.Errorf("unsupported query type %q", raw.QueryType)
	}
}

// EncodeQuery renders a query in the wire shape accepted by DecodeQuery.
func EncodeQuery(q Query) ([]byte, error) {
	raw := queryJSON{RefID: q.Ref(), QueryType: q.Type()}
	switch q := q.(type) {
	case LookupQuery:
		raw.Query = q.ID
	case SearchQuery:
		raw.Service = q.Service
		raw.Operation = q.Operation
		raw.Tags = q.Tags
		raw.MinDuration = q.MinDuration
		raw.MaxDuration = q.MaxDuration
		if q.Limit != "" {
			raw.Limit = json.RawMessage(strconv.Quote(q.Limit))
		}
	case UploadQuery:
		raw.Document = q.Document
	default:
		return nil, fmt.Errorf("unsupported query %T", q)
	}
	return json.Marshal(raw)
}

// decodeLimit accepts both 20 and "20".
func decodeLimit(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("invalid limit: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid limit: %w", err)
	}
	return n.String(), nil
}

// Queries decodes a JSON array of queries.
type Queries []Query

// UnmarshalJSON implements json.Unmarshaler.
func (qs *Queries) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("failed to parse queries: %w", err)
	}
	out := make(Queries, 0, len(raws))
	for _, raw := range raws {
		q, err := DecodeQuery(raw)
		if err != nil {
			return err
		}
		out = append(out, q)
	}
	*qs = out
	return nil
}

// MarshalJSON implements json.Marshaler.
func (qs Queries) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(qs))
	for _, q := range qs {
		b, err := EncodeQuery(q)
		if err != nil {
			return nil, err
		}
		raws = append(raws, b)
	}
	return json.Marshal(raws)
}
