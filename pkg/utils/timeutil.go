package utils

import (
	"strings"
	"time"
)

// DateLayout is the ISO date layout used by EDGAR.
const DateLayout = "2006-01-02"

// ParseDate parses an EDGAR date. Timestamps such as "2024-02-01T00:00:00"
// are accepted and truncated to the date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	return time.Parse(DateLayout, s)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// NowISO returns the current UTC time in RFC 3339 form.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// FormatStamp renders t as "2006-01-02 15:04 UTC".
func FormatStamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04") + " UTC"
}

// DaysBetween returns the whole number of days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// MonthsAgo returns the date n months of 30 days before now, as YYYY-MM-DD.
func MonthsAgo(now time.Time, n int) string {
	return FormatDate(now.AddDate(0, 0, -30*n))
}
