// Package events classifies 8-K filings by SEC item code.
package events

import (
	"strings"
	"unicode/utf8"

	"github.com/seenimoa/diligenceops/pkg/models"
)

// Item codes referenced by downstream correlation rules.
const (
	CodeAuditorChange    = "4.01"
	CodeNonReliance      = "4.02"
	CodeLeadershipChange = "5.02"
	CodeOtherEvents      = "8.01"
)

const (
	maxSummary     = 200
	defaultSummary = "8-K filing"
)

// Item is one row of the 8-K item-code table.
type Item struct {
	Code     string
	Label    string
	Severity int
}

// Items is the ordered item-code table. Classification takes the first match.
var Items = []Item{
	{"1.01", "Entry into Material Agreement", 3},
	{"1.02", "Termination of Material Agreement", 4},
	{"2.01", "Completion of Acquisition/Disposition", 3},
	{"2.02", "Results of Operations", 2},
	{"2.04", "Triggering Events (Default)", 5},
	{"2.05", "Costs from Exit/Disposal", 3},
	{"2.06", "Material Impairment", 4},
	{"3.01", "Delisting/Transfer/Failure to Satisfy", 5},
	{CodeAuditorChange, "Changes in Accountant", 4},
	{CodeNonReliance, "Non-Reliance on Financial Statements", 5},
	{"5.01", "Changes in Control", 5},
	{CodeLeadershipChange, "Departure/Appointment of Officers", 3},
	{"5.03", "Amendments to Articles/Bylaws", 2},
	{"7.01", "Regulation FD Disclosure", 1},
	{CodeOtherEvents, "Other Events", 2},
	{"9.01", "Financial Statements and Exhibits", 1},
}

// Lookup returns the table entry for code.
func Lookup(code string) (Item, bool) {
	for _, it := range Items {
		if it.Code == code {
			return it, true
		}
	}
	return Item{}, false
}

// Match finds the item for a filing description. Only the description is
// inspected; filing dates never participate.
func Match(description string) Item {
	lower := strings.ToLower(description)
	for _, it := range Items {
		if strings.Contains(description, "Item "+it.Code) ||
			strings.HasPrefix(description, it.Code) ||
			strings.Contains(lower, strings.ToLower(it.Label)) {
			return it
		}
	}
	other, _ := Lookup(CodeOtherEvents)
	return other
}

// Classify maps each filing to a MaterialEvent, preserving input order.
func Classify(filings []models.EightKFiling) []models.MaterialEvent {
	out := make([]models.MaterialEvent, 0, len(filings))
	for _, f := range filings {
		it := Match(f.Description)
		summary := defaultSummary
		if f.Description != "" {
			summary = truncate(f.Description, maxSummary)
		}
		out = append(out, models.MaterialEvent{
			FilingDate:      f.FilingDate,
			ItemCode:        it.Code,
			ItemDescription: it.Label,
			Severity:        it.Severity,
			Summary:         summary,
		})
	}
	return out
}

// Count returns how many events carry code.
func Count(evs []models.MaterialEvent, code string) int {
	n := 0
	for _, e := range evs {
		if e.ItemCode == code {
			n++
		}
	}
	return n
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
