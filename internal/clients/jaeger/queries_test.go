package jaeger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertTagsLogfmt(t *testing.T) {
	tests := []struct {
		name     string
		tags     string
		expected map[string]string
	}{
		{"single pair", "error=true", map[string]string{"error": "true"}},
		{"multiple pairs", `http.status_code=500 component="net/http"`, map[string]string{"http.status_code": "500", "component": "net/http"}},
		{"bare key", "error", map[string]string{"error": "true"}},
		{"quoted spaces", `db.statement="select 1"`, map[string]string{"db.statement": "select 1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ConvertTagsLogfmt(tt.tags)
			require.NoError(t, err)

			var got map[string]string
			require.NoError(t, json.Unmarshal([]byte(out), &got))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestConvertTagsLogfmtEmpty(t *testing.T) {
	out, err := ConvertTagsLogfmt("   ")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestConvertTagsLogfmtInvalid(t *testing.T) {
	_, err := ConvertTagsLogfmt(`error="unterminated`)
	assert.Error(t, err)
}

func TestSearchParamsValues(t *testing.T) {
	p := SearchParams{
		Service:     "cart",
		Operation:   "GET /cart",
		Tags:        "error=true",
		MinDuration: "10ms",
		Limit:       "20",
		Start:       1000,
		End:         2000,
	}

	v, err := p.Values()
	require.NoError(t, err)

	assert.Equal(t, "cart", v.Get("service"))
	assert.Equal(t, "GET /cart", v.Get("operation"))
	assert.JSONEq(t, `{"error":"true"}`, v.Get("tags"))
	assert.Equal(t, "10ms", v.Get("minDuration"))
	assert.Equal(t, "20", v.Get("limit"))
	assert.Equal(t, "1000", v.Get("start"))
	assert.Equal(t, "2000", v.Get("end"))
	assert.Equal(t, "custom", v.Get("lookback"))
	assert.NotContains(t, v, "maxDuration")
}

func TestSearchParamsAllOperations(t *testing.T) {
	v, err := SearchParams{Service: "cart", Operation: AllOperations}.Values()
	require.NoError(t, err)

	assert.NotContains(t, v, "operation")
	assert.NotContains(t, v, "tags")
	assert.Equal(t, "cart", v.Get("service"))
}
