package utils

import (
	"regexp"
	"strings"
)

var tickerRe = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,4}$`)

// NormalizeTicker upper-cases and trims a ticker symbol.
// e.g., " brk.b " → "BRK.B"
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// IsValidTicker reports whether a normalized ticker looks like a US listing
// symbol: 1-5 characters, leading letter, letters/digits/dot/dash.
func IsValidTicker(ticker string) bool {
	return tickerRe.MatchString(ticker)
}
