package model

import (
	"fmt"
	"math"
	"time"
)

// Card display window sentinels for malformed input: a start that never
// arrives and an end that has already passed.
const (
	NeverDisplayedStart int64 = math.MaxInt64
	NeverDisplayedEnd   int64 = 0
)

// ParseInstant converts an RFC 3339 timestamp into epoch milliseconds.
func ParseInstant(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UnixMilli(), nil
}

// FormatInstant renders epoch milliseconds as an RFC 3339 UTC timestamp.
func FormatInstant(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
