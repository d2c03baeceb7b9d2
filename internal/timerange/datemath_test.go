package timerange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday.
var now = time.Date(2024, time.March, 13, 14, 35, 42, 123_000_000, time.UTC)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		roundUp  bool
		expected time.Time
	}{
		{"now", "now", false, now},
		{"minus hour", "now-1h", false, now.Add(-time.Hour)},
		{"minus hour round up ignored", "now-1h", true, now.Add(-time.Hour)},
		{"plus without number", "now+m", false, now.Add(time.Minute)},
		{"chained", "now-1d+2h", false, now.AddDate(0, 0, -1).Add(2 * time.Hour)},
		{"start of day", "now/d", false, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)},
		{"end of day", "now/d", true, time.Date(2024, 3, 13, 23, 59, 59, 999_000_000, time.UTC)},
		{"yesterday start", "now-1d/d", false, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)},
		{"start of week", "now/w", false, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"end of month", "now/M", true, time.Date(2024, 3, 31, 23, 59, 59, 999_000_000, time.UTC)},
		{"start of year", "now/y", false, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"end of hour", "now/h", true, time.Date(2024, 3, 13, 14, 59, 59, 999_000_000, time.UTC)},
		{"rfc3339", "2024-01-02T03:04:05Z", false, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"date only", "2024-01-02", false, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"epoch millis", "1700000000000", false, time.UnixMilli(1700000000000)},
		{"anchored math", "2024-01-02||+1d", false, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.expr, tt.roundUp, now)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestParseClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		now      time.Time
		expected time.Time
	}{
		{"month back from 31st", "now-1M", time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)},
		{"month forward from 31st", "now+1M", time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)},
		{"three months back", "now-3M", time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"across year", "now-2M", time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC), time.Date(2023, 11, 15, 8, 30, 0, 0, time.UTC)},
		{"year back from leap day", "now-1y", time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), time.Date(2023, 2, 28, 12, 0, 0, 0, time.UTC)},
		{"mid month unchanged", "now-1M", time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 13, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.expr, false, tt.now)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestRangeResolveMonthEndWindow(t *testing.T) {
	end := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

	w, err := Range{From: Expr("now-1M"), To: Expr("now")}.Resolve(end)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC).UnixMicro(), w.Start)
	assert.Equal(t, end.UnixMicro(), w.End)
}

func TestParseErrors(t *testing.T) {
	for _, expr := range []string{"", "yesterday", "now-", "now-1q", "now/", "now*2h", "now/x"} {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr, false, now)
			assert.Error(t, err)
		})
	}
}

func TestRangeResolveRounding(t *testing.T) {
	r := Range{From: Expr("now/d"), To: Expr("now/d")}

	w, err := r.Resolve(now)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC).UnixMilli()*1000, w.Start)
	assert.Equal(t, time.Date(2024, 3, 13, 23, 59, 59, 999_000_000, time.UTC).UnixMilli()*1000, w.End)
	assert.LessOrEqual(t, w.Start, w.End)
}

func TestRangeResolveRelativeOrdering(t *testing.T) {
	for _, from := range []string{"now-5m", "now-1h/h", "now-7d/d", "now/w", "now-1M/M", "now"} {
		for _, to := range []string{"now", "now/d", "now/h", "now/s"} {
			w, err := Range{From: Expr(from), To: Expr(to)}.Resolve(now)
			require.NoError(t, err, "%s to %s", from, to)
			assert.LessOrEqual(t, w.Start, w.End, "%s to %s", from, to)
			assert.Zero(t, w.Start%1000)
			assert.Zero(t, w.End%1000)
		}
	}
}

func TestRangeResolveAbsolute(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 500_000_000, time.UTC)
	to := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	w, err := Range{From: At(from), To: At(to)}.Resolve(now)
	require.NoError(t, err)
	assert.Equal(t, from.UnixMilli()*1000, w.Start)
	assert.Equal(t, to.UnixMilli()*1000, w.End)
}

func TestRangeResolveInverted(t *testing.T) {
	_, err := Range{From: Expr("now"), To: Expr("now-1h")}.Resolve(now)
	assert.Error(t, err)

	_, err = Range{From: Instant{}, To: Expr("now")}.Resolve(now)
	assert.Error(t, err)
}

func TestContextSource(t *testing.T) {
	src := ContextSource{Fallback: DefaultSource{From: "now-1h", To: "now"}}

	r, err := src.CurrentRange(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "now-1h", r.From.Raw)

	attached := Range{From: Expr("now-15m"), To: Expr("now")}
	r, err = src.CurrentRange(WithRange(context.Background(), attached))
	require.NoError(t, err)
	assert.Equal(t, attached, r)

	r, err = ContextSource{}.CurrentRange(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "now-6h", r.From.Raw)
}
