package jaeger

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-logfmt/logfmt"
)

// AllOperations is the operation value the query editor uses for "any operation".
const AllOperations = "All"

// SearchParams are the already interpolated fields of a trace search.
type SearchParams struct {
	Service     string
	Operation   string
	Tags        string
	MinDuration string
	MaxDuration string
	Limit       string

	// Start and End bound the search, in microseconds since epoch.
	Start int64
	End   int64
}

// Values serializes the search for GET /api/traces. Empty fields are left out,
// the all-operations sentinel drops the operation and tags are re-encoded from
// logfmt into the JSON object Jaeger expects.
func (p SearchParams) Values() (url.Values, error) {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}

	set("service", p.Service)
	if p.Operation != AllOperations {
		set("operation", p.Operation)
	}
	if p.Tags != "" {
		tags, err := ConvertTagsLogfmt(p.Tags)
		if err != nil {
			return nil, err
		}
		set("tags", tags)
	}
	set("minDuration", p.MinDuration)
	set("maxDuration", p.MaxDuration)
	set("limit", p.Limit)

	v.Set("start", strconv.FormatInt(p.Start, 10))
	v.Set("end", strconv.FormatInt(p.End, 10))
	v.Set("lookback", "custom")

	return v, nil
}

// TimeParams returns the start/end parameters used to bound a trace id lookup.
func TimeParams(start, end int64) url.Values {
	return url.Values{
		"start": []string{strconv.FormatInt(start, 10)},
		"end":   []string{strconv.FormatInt(end, 10)},
	}
}

// ConvertTagsLogfmt turns `error=true http.status_code=500` into
// `{"error":"true","http.status_code":"500"}`. A key without a value is
// treated as "true".
func ConvertTagsLogfmt(tags string) (string, error) {
	if strings.TrimSpace(tags) == "" {
		return "", nil
	}

	out := map[string]string{}
	d := logfmt.NewDecoder(strings.NewReader(tags))
	for d.ScanRecord() {
		for d.ScanKeyval() {
			key := string(d.Key())
			if d.Value() == nil {
				out[key] = "true"
				continue
			}
			out[key] = string(d.Value())
		}
	}
	if err := d.Err(); err != nil {
		return "", fmt.Errorf("invalid tags %q: %w", tags, err)
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(b), nil
}
