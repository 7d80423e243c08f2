package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var durationUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// maxDuration caps parsed durations well below time.Duration overflow.
const maxDuration = 10 * 365 * 24 * time.Hour

// ParseDuration parses moderator durations such as "30m", "7d" or "1w2d".
// Units are s, m, h, d and w; every number needs a unit.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	var total time.Duration
	for len(s) > 0 {
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 || i == len(s) {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, fmt.Errorf("invalid duration value %q: %w", s[:i], err)
		}
		unit, ok := durationUnits[s[i]]
		if !ok {
			return 0, fmt.Errorf("unknown duration unit %q", s[i])
		}
		if time.Duration(n) > (maxDuration-total)/unit {
			return 0, fmt.Errorf("duration longer than %d days", maxDuration/(24*time.Hour))
		}
		total += time.Duration(n) * unit
		s = s[i+1:]
	}
	if total <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return total, nil
}

// FormatRemaining renders a countdown rounded to the second, e.g. "2d3h4m5s".
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	if days == 0 {
		return d.String()
	}
	if d == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd%s", days, d.String())
}
