// Package utils provides formatting and date helpers shared by DiligenceOps.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatUSD formats a whole-dollar amount with US grouping ($12,345,678).
func FormatUSD(amount float64) string {
	if amount < 0 {
		return "-$" + GroupThousands(math.Abs(amount))
	}
	return "$" + GroupThousands(amount)
}

// GroupThousands rounds to an integer and inserts comma separators.
func GroupThousands(n float64) string {
	neg := n < 0
	s := fmt.Sprintf("%.0f", math.Abs(n))
	var b strings.Builder
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// FormatPct renders a fraction as a percentage, e.g. 0.1234 → "12.3%" with one decimal.
func FormatPct(fraction float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, fraction*100)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
