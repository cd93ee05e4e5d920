// Package timespec parses the relative and absolute times accepted by
// duel listing filters.
package timespec

import (
	"fmt"
	"time"
)

// Parse parses a time specification into a Unix timestamp (milliseconds).
// Supports two formats:
//   - Go duration format: "1h", "30m", "1h30m", meaning that long ago
//   - RFC3339 timestamps: "2025-10-29T13:00:00Z"
func Parse(spec string) (int64, error) {
	return ParseAt(spec, time.Now())
}

// ParseAt is Parse with durations resolved against now.
func ParseAt(spec string, now time.Time) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("invalid time specification: %s (duration must not be negative)", spec)
		}
		return now.Add(-d).UnixMilli(), nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use duration like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z')", spec)
}

// ParseRange parses optional since and until specs into a time range.
// Zero values indicate "no bound" for that end of the range.
func ParseRange(since, until string) (int64, int64, error) {
	var sinceMS, untilMS int64
	var err error

	if since != "" {
		sinceMS, err = Parse(since)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid since: %w", err)
		}
	}

	if until != "" {
		untilMS, err = Parse(until)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid until: %w", err)
		}
	}

	if sinceMS > 0 && untilMS > 0 && sinceMS >= untilMS {
		return 0, 0, fmt.Errorf("since must be before until")
	}

	return sinceMS, untilMS, nil
}

// Format renders a Unix millisecond timestamp as RFC3339 in UTC.
func Format(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
