package record

import (
	"fmt"
	"strings"
	"time"
)

// Default analysis window bounds: the smallest and largest instants an
// ISO-8601 calendar timestamp can express.
var (
	MinTime = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	MaxTime = time.Date(9999, time.December, 31, 23, 59, 59, 999999000, time.UTC)
)

var isoLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04-0700",
	"2006-01-02T15:04Z07",
	"2006-01-02T15:04",
	"2006-01-02 15:04Z07:00",
	"2006-01-02 15:04-0700",
	"2006-01-02 15:04Z07",
	"2006-01-02 15:04",
	"2006-01-02T15Z07:00",
	"2006-01-02T15Z07",
	"2006-01-02T15",
	"2006-01-02 15Z07:00",
	"2006-01-02 15",
	"2006-01-02",
}

// ParseTime parses an ISO-8601 timestamp and returns it in UTC. A trailing
// "Z" is the UTC offset; timestamps without an offset are assumed UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}
