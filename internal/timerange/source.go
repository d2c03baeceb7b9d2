package timerange

import (
	"context"
	"fmt"
	"time"
)

// Instant is one boundary of a range: either a raw expression such as
// "now-1h" or an already resolved time.
type Instant struct {
	Raw  string
	Time time.Time
}

// Expr returns an Instant holding a raw date math expression.
func Expr(raw string) Instant {
	return Instant{Raw: raw}
}

// At returns an Instant holding an absolute time.
func At(t time.Time) Instant {
	return Instant{Time: t}
}

// Resolve returns the absolute time of the instant.
func (i Instant) Resolve(roundUp bool, now time.Time) (time.Time, error) {
	if i.Raw == "" {
		if i.Time.IsZero() {
			return time.Time{}, fmt.Errorf("empty time boundary")
		}
		return i.Time, nil
	}
	return Parse(i.Raw, roundUp, now)
}

// Range is a from/to pair as selected by a user.
type Range struct {
	From Instant
	To   Instant
}

// Window is a resolved range in microseconds since epoch.
type Window struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Resolve turns the range into a Window. From rounds down and To rounds up, so
// a relative boundary never excludes data it was meant to include.
func (r Range) Resolve(now time.Time) (Window, error) {
	from, err := r.From.Resolve(false, now)
	if err != nil {
		return Window{}, fmt.Errorf("invalid from: %w", err)
	}
	to, err := r.To.Resolve(true, now)
	if err != nil {
		return Window{}, fmt.Errorf("invalid to: %w", err)
	}

	w := Window{
		Start: from.UnixMilli() * 1000,
		End:   to.UnixMilli() * 1000,
	}
	if w.Start > w.End {
		return Window{}, fmt.Errorf("time range start %d is after end %d", w.Start, w.End)
	}
	return w, nil
}

// Source supplies the range that is current when a query runs.
type Source interface {
	CurrentRange(ctx context.Context) (Range, error)
}

// DefaultSource always answers with the same configured range.
type DefaultSource struct {
	From string
	To   string
}

// NewDefaultSource returns the "last 6 hours" range used when nothing else is selected.
func NewDefaultSource() DefaultSource {
	return DefaultSource{From: "now-6h", To: "now"}
}

// CurrentRange implements Source.
func (s DefaultSource) CurrentRange(context.Context) (Range, error) {
	return Range{From: Expr(s.From), To: Expr(s.To)}, nil
}

// ContextSource prefers a range attached to the context with WithRange, for
// example one taken from the request being served, and falls back otherwise.
type ContextSource struct {
	Fallback Source
}

// CurrentRange implements Source.
func (s ContextSource) CurrentRange(ctx context.Context) (Range, error) {
	if r, ok := FromContext(ctx); ok {
		return r, nil
	}
	if s.Fallback == nil {
		return NewDefaultSource().CurrentRange(ctx)
	}
	return s.Fallback.CurrentRange(ctx)
}

type rangeKey struct{}

// WithRange attaches r to ctx for ContextSource.
func WithRange(ctx context.Context, r Range) context.Context {
	return context.WithValue(ctx, rangeKey{}, r)
}

// FromContext returns the range attached with WithRange.
func FromContext(ctx context.Context) (Range, bool) {
	r, ok := ctx.Value(rangeKey{}).(Range)
	return r, ok
}
