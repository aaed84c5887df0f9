package handlers

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxTimeout is the longest communication timeout Discord accepts.
const MaxTimeout = 28 * 24 * time.Hour

var durationToken = regexp.MustCompile(`(\d+)\s*([dhms])`)

var unitSeconds = map[string]int64{
	"d": 86400,
	"h": 3600,
	"m": 60,
	"s": 1,
}

// maxDurationSeconds keeps the sum well inside time.Duration.
const maxDurationSeconds = int64(100 * 365 * 86400)

// ParseDuration reads durations such as "10m", "1d2h" or "1d 2h 30m".
// Tokens may repeat and are summed. It reports false when no token is
// found or the total is not positive.
func ParseDuration(s string) (time.Duration, bool) {
	matches := durationToken.FindAllStringSubmatch(strings.ToLower(s), -1)
	if len(matches) == 0 {
		return 0, false
	}

	var total int64
	for _, m := range matches {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n > maxDurationSeconds {
			return 0, false
		}
		total += n * unitSeconds[m[2]]
		if total > maxDurationSeconds {
			return 0, false
		}
	}
	if total <= 0 {
		return 0, false
	}
	return time.Duration(total) * time.Second, true
}

// FormatDuration renders d as "1d 2h 30m", dropping zero units.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return "0s"
	}
	var parts []string
	for _, unit := range []string{"d", "h", "m", "s"} {
		size := unitSeconds[unit]
		if n := secs / size; n > 0 {
			parts = append(parts, strconv.FormatInt(n, 10)+unit)
			secs -= n * size
		}
	}
	return strings.Join(parts, " ")
}
