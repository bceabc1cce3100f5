package format

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Ratio formats num/den as a percentage with one decimal, or "undefined"
// when den is zero.
func Ratio(num, den int) string {
	if den == 0 {
		return "undefined"
	}
	return fmt.Sprintf("%.1f%%", float64(num)/float64(den)*100)
}

// Timestamp formats t as RFC 3339 in UTC. The window sentinels print as "-".
func Timestamp(t time.Time, sentinels ...time.Time) string {
	for _, s := range sentinels {
		if t.Equal(s) {
			return "-"
		}
	}
	return t.UTC().Format(time.RFC3339)
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// OrNA returns s, or "n/a" when s is empty.
func OrNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
