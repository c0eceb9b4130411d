package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are the absolute formats ParseTime accepts, tried in
// order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime turns a user-supplied time string into epoch seconds. It accepts
// raw epoch seconds ("1717171717" or with a fraction), absolute timestamps
// (RFC 3339 or "2006-01-02 15:04:05" in the local zone), and offsets
// relative to now ("-5m", "-2h", "-1d").
func ParseTime(s string, now time.Time) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time")
	}

	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		d, err := parseOffset(s)
		if err != nil {
			return 0, err
		}
		t := now.Add(d)
		return float64(t.UnixNano()) / 1e9, nil
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return float64(t.UnixNano()) / 1e9, nil
		}
	}
	return 0, fmt.Errorf("unrecognized time %q", s)
}

// parseOffset parses a signed duration, extending the stdlib syntax with a
// "d" day unit ("-1d" = 24 hours ago).
func parseOffset(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.ParseFloat(strings.TrimSuffix(s, "d"), 64)
		if err != nil {
			return 0, fmt.Errorf("bad day offset %q", s)
		}
		return time.Duration(days * 24 * float64(time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("bad time offset %q", s)
	}
	return d, nil
}
