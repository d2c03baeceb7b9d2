// Package timerange resolves dashboard time ranges, such as "now-1h" to "now",
// into absolute query windows.
package timerange

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var absoluteLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse evaluates a date math expression relative to now. Supported forms are
// "now", "now-5m", "now-1d/d", "now/w", chained offsets like "now-1d+2h",
// absolute timestamps (RFC 3339, "2006-01-02 15:04:05", "2006-01-02"),
// epoch milliseconds, and an absolute anchor followed by "||" and math.
//
// Rounding with "/unit" snaps to the start of the unit, or to its last
// millisecond when roundUp is set.
func Parse(text string, roundUp bool, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("empty time expression")
	}

	var anchor time.Time
	var math string
	switch {
	case strings.HasPrefix(text, "now"):
		anchor = now
		math = text[len("now"):]
	default:
		abs, rest, _ := strings.Cut(text, "||")
		t, err := parseAbsolute(abs, now.Location())
		if err != nil {
			return time.Time{}, err
		}
		anchor = t
		math = rest
	}

	return applyMath(anchor, math, roundUp)
}

func parseAbsolute(text string, loc *time.Location) (time.Time, error) {
	if ms, err := strconv.ParseInt(text, 10, 64); err == nil {
		return time.UnixMilli(ms).In(loc), nil
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time expression %q", text)
}

func applyMath(t time.Time, math string, roundUp bool) (time.Time, error) {
	i := 0
	for i < len(math) {
		op := math[i]
		i++

		switch op {
		case '/':
			if i >= len(math) {
				return time.Time{}, fmt.Errorf("missing unit after '/' in %q", math)
			}
			unit := math[i]
			i++
			start, err := startOf(t, unit)
			if err != nil {
				return time.Time{}, err
			}
			t = start
			if roundUp {
				next, err := add(start, 1, unit)
				if err != nil {
					return time.Time{}, err
				}
				t = next.Add(-time.Millisecond)
			}
		case '+', '-':
			j := i
			for j < len(math) && math[j] >= '0' && math[j] <= '9' {
				j++
			}
			n := 1
			if j > i {
				v, err := strconv.Atoi(math[i:j])
				if err != nil {
					return time.Time{}, fmt.Errorf("invalid number in %q: %w", math, err)
				}
				n = v
			}
			if j >= len(math) {
				return time.Time{}, fmt.Errorf("missing unit in %q", math)
			}
			if op == '-' {
				n = -n
			}
			next, err := add(t, n, math[j])
			if err != nil {
				return time.Time{}, err
			}
			t = next
			i = j + 1
		default:
			return time.Time{}, fmt.Errorf("unexpected %q in %q", op, math)
		}
	}
	return t, nil
}

func add(t time.Time, n int, unit byte) (time.Time, error) {
	switch unit {
	case 'y':
		return addMonths(t, 12*n), nil
	case 'M':
		return addMonths(t, n), nil
	case 'w':
		return t.AddDate(0, 0, 7*n), nil
	case 'd':
		return t.AddDate(0, 0, n), nil
	case 'h':
		return t.Add(time.Duration(n) * time.Hour), nil
	case 'm':
		return t.Add(time.Duration(n) * time.Minute), nil
	case 's':
		return t.Add(time.Duration(n) * time.Second), nil
	}
	return time.Time{}, fmt.Errorf("unknown time unit %q", unit)
}

// addMonths moves t by n calendar months, clamping the day to the last day
// of the target month: Mar 31 minus one month is Feb 29, not Mar 2.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// startOf truncates t to the unit in t's own location. Weeks start on Sunday.
func startOf(t time.Time, unit byte) (time.Time, error) {
	y, mo, d := t.Date()
	loc := t.Location()
	switch unit {
	case 'y':
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc), nil
	case 'M':
		return time.Date(y, mo, 1, 0, 0, 0, 0, loc), nil
	case 'w':
		return time.Date(y, mo, d-int(t.Weekday()), 0, 0, 0, 0, loc), nil
	case 'd':
		return time.Date(y, mo, d, 0, 0, 0, 0, loc), nil
	case 'h':
		return time.Date(y, mo, d, t.Hour(), 0, 0, 0, loc), nil
	case 'm':
		return time.Date(y, mo, d, t.Hour(), t.Minute(), 0, 0, loc), nil
	case 's':
		return time.Date(y, mo, d, t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("unknown time unit %q", unit)
}
