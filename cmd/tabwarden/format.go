package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// minInterval is the shortest interval the daemon accepts
const minInterval = time.Second

// ParseInterval parses a reload interval given as whole seconds ("45"),
// a clock value ("2:30", "1:00:00") or a Go duration ("90s", "1h").
// Values below one second are raised to one second.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("interval is required")
	}

	var d time.Duration
	switch {
	case strings.Contains(s, ":"):
		parsed, err := parseClock(s)
		if err != nil {
			return 0, err
		}
		d = parsed
	default:
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			d = time.Duration(secs) * time.Second
			break
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q", s)
		}
		d = parsed
	}

	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %q", s)
	}
	if d < minInterval {
		d = minInterval
	}
	return d, nil
}

func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid interval %q", s)
	}

	var total int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid interval %q", s)
		}
		// Every field after the first is a sexagesimal digit
		if i > 0 && n >= 60 {
			return 0, fmt.Errorf("invalid interval %q", s)
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}

// FormatRemaining renders a duration as h:mm:ss, m:ss or Ns, rounding
// partial seconds up.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	secs := int64((d + time.Second - 1) / time.Second)

	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	case m > 0:
		return fmt.Sprintf("%d:%02d", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func secDuration(s int64) time.Duration {
	return time.Duration(s) * time.Second
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
