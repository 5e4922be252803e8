// Package ownership classifies and ranks institutional holders.
package ownership

import (
	"sort"
	"strings"

	"github.com/seenimoa/diligenceops/pkg/models"
)

// TopN is the number of holders kept after ranking.
const TopN = 10

// passiveManagers are name fragments of index and passive managers.
var passiveManagers = []string{
	"vanguard", "blackrock", "state street", "ishares",
	"fidelity index", "schwab", "spdr", "invesco",
}

// IsPassive reports whether name belongs to a well-known passive manager.
func IsPassive(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range passiveManagers {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Classify labels each holder passive or active and returns the TopN by
// shares, descending. Ties keep input order. The input slice is not modified.
func Classify(holders []models.InstitutionalHolder) []models.InstitutionalHolder {
	out := make([]models.InstitutionalHolder, len(holders))
	copy(out, holders)
	for i := range out {
		if IsPassive(out[i].HolderName) {
			out[i].HolderType = models.HolderPassive
		} else {
			out[i].HolderType = models.HolderActive
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Shares > out[j].Shares })
	if len(out) > TopN {
		out = out[:TopN]
	}
	return out
}
