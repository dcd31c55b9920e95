package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const layoutDateTime = "2006-01-02 15:04:05"

var clockPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// FormatDateTime formats time to "YYYY-MM-DD HH:MM:SS" in local timezone.
func FormatDateTime(t time.Time) string {
	return t.In(time.Local).Format(layoutDateTime)
}

// IsClock reports whether s is a 24h "H:MM" / "HH:MM" value.
func IsClock(s string) bool {
	return clockPattern.MatchString(strings.TrimSpace(s))
}

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !clockPattern.MatchString(s) {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, m, _ := strings.Cut(s, ":")
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	return hh*60 + mm, nil
}

// ParseClockList parses "06:00,07:30 ; 09:15" style schedules.
func ParseClockList(raw string) ([]int, error) {
	parts := SplitList(raw)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := ParseClock(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// FormatClock renders minutes after midnight as HH:MM, wrapping past 24h.
func FormatClock(minutes int) string {
	if minutes < 0 {
		return ""
	}
	minutes %= 24 * 60
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// FormatClockList is the inverse of ParseClockList.
func FormatClockList(mins []int) string {
	out := make([]string, 0, len(mins))
	for _, m := range mins {
		out = append(out, FormatClock(m))
	}
	return strings.Join(out, ",")
}
