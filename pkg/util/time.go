package util

import (
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseTime parses a single point in time. Accepts a 10-digit unix timestamp
// or one of the supported date layouts in local time.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if IsNumeric(s) {
		ts, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		// 13-digit timestamps carry milliseconds
		if ts > 1e12 {
			ts /= 1000
		}
		return time.Unix(ts, 0), true
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TimeRangeOf parses a time expression into an inclusive range.
// Supported forms: "" (everything), a single point (expanded to its natural
// span, e.g. a date covers the whole day), and "start~end".
func TimeRangeOf(s string) (start, end time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Unix(0, 0), time.Now(), true
	}

	if idx := strings.Index(s, "~"); idx >= 0 {
		start, ok1 := ParseTime(s[:idx])
		end, ok2 := ParseTime(s[idx+1:])
		if !ok1 && !ok2 {
			return time.Time{}, time.Time{}, false
		}
		if !ok1 {
			start = time.Unix(0, 0)
		}
		if !ok2 {
			end = time.Now()
		}
		return start, spanEnd(s[idx+1:], end), true
	}

	t, ok := ParseTime(s)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return t, spanEnd(s, t), true
}

// spanEnd widens a point to the end of its natural span based on how much of
// the layout was supplied.
func spanEnd(s string, t time.Time) time.Time {
	s = strings.TrimSpace(s)
	switch len(s) {
	case 4: // year
		return t.AddDate(1, 0, 0).Add(-time.Second)
	case 7: // month
		return t.AddDate(0, 1, 0).Add(-time.Second)
	case 10: // day
		if !IsNumeric(s) {
			return t.AddDate(0, 0, 1).Add(-time.Second)
		}
	}
	return t
}

// PerfectTimeFormat picks a display layout wide enough to distinguish
// timestamps inside the given range.
func PerfectTimeFormat(start, end time.Time) string {
	if start.Year() != end.Year() {
		return "2006-01-02 15:04:05"
	}
	return "01-02 15:04:05"
}
