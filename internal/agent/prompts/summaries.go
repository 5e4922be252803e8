package prompts

import (
	"fmt"
	"strings"

	"github.com/seenimoa/diligenceops/pkg/models"
	"github.com/seenimoa/diligenceops/pkg/utils"
)

// Summary list caps.
const (
	MaxRiskFactors = 10
	MaxHolders     = 5
	MaxEvents      = 10
	MaxGovFlags    = 3
)

// RiskDetails renders one line per scored dimension.
func RiskDetails(r *models.RiskAssessment) string {
	if r == nil {
		return ""
	}
	lines := make([]string, 0, len(r.Dimensions))
	for _, d := range r.Dimensions {
		lines = append(lines, fmt.Sprintf("- %s: %d/5 — %s", d.Dimension, d.Score, d.Reasoning))
	}
	return strings.Join(lines, "\n")
}

// RedFlags renders the assessment's financial red flags.
func RedFlags(r *models.RiskAssessment) string {
	if r == nil || len(r.RedFlags) == 0 {
		return "No critical red flags identified."
	}
	lines := make([]string, 0, len(r.RedFlags))
	for _, f := range r.RedFlags {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", f.Flag, f.Severity, f.Evidence))
	}
	return strings.Join(lines, "\n")
}

// RiskFactorList renders up to MaxRiskFactors classified risk factors.
func RiskFactorList(rfs []models.RiskFactor) string {
	if len(rfs) == 0 {
		return "No risk factor data available."
	}
	var lines []string
	for _, rf := range rfs[:min(len(rfs), MaxRiskFactors)] {
		novel := ""
		if rf.IsNovel {
			novel = ", NOVEL"
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s (severity %d/5%s)", rf.Category, rf.Title, rf.Summary, rf.Severity, novel))
	}
	return strings.Join(lines, "\n")
}

// Insider renders the insider signal.
func Insider(s *models.InsiderSignal) string {
	if s == nil {
		return "Signal: N/A, Buys: 0, Sells: 0, Buy/Sell Ratio: N/A"
	}
	ratio := "N/A"
	if s.BuySellRatio != nil {
		ratio = fmt.Sprintf("%.2f", *s.BuySellRatio)
	}
	out := fmt.Sprintf("Signal: %s, Buys: %d, Sells: %d, Buy/Sell Ratio: %s", s.Signal, s.TotalBuys, s.TotalSells, ratio)
	if s.ClusterDetected {
		out += "\nCLUSTER: " + s.ClusterDescription
	}
	return out
}

// Holders renders the top MaxHolders institutional holders.
func Holders(hs []models.InstitutionalHolder) string {
	if len(hs) == 0 {
		return "No institutional data available."
	}
	return strings.Join(HolderLines(hs, MaxHolders), "\n")
}

// HolderLines renders up to n holders as markdown list items.
func HolderLines(hs []models.InstitutionalHolder, n int) []string {
	var lines []string
	for _, h := range hs[:min(len(hs), n)] {
		lines = append(lines, fmt.Sprintf("- %s: %s shares (%s)", h.HolderName, utils.GroupThousands(h.Shares), h.HolderType))
	}
	return lines
}

// EventList renders up to MaxEvents classified 8-K events.
func EventList(evs []models.MaterialEvent) string {
	if len(evs) == 0 {
		return "No material events in the past 12 months."
	}
	return strings.Join(EventLines(evs, MaxEvents), "\n")
}

// EventLines renders up to n events as markdown list items.
func EventLines(evs []models.MaterialEvent, n int) []string {
	var lines []string
	for _, e := range evs[:min(len(evs), n)] {
		lines = append(lines, fmt.Sprintf("- %s: %s %s (severity %d/5)", e.FilingDate, e.ItemCode, e.ItemDescription, e.Severity))
	}
	return lines
}

// GovernanceSummary renders the headline governance facts.
func GovernanceSummary(g *models.GovernanceData) string {
	if g == nil {
		return "No governance data available."
	}
	var parts []string
	if g.CEOName != "" {
		parts = append(parts, "CEO: "+g.CEOName)
	}
	if g.CEOTotalComp != nil && *g.CEOTotalComp != 0 {
		parts = append(parts, "CEO Comp: "+utils.FormatUSD(*g.CEOTotalComp))
	}
	if g.BoardIndependencePct != nil {
		parts = append(parts, "Board Independence: "+utils.FormatPct(*g.BoardIndependencePct, 0))
	}
	if len(g.GovernanceFlags) > 0 {
		parts = append(parts, "Flags: "+strings.Join(g.GovernanceFlags[:min(len(g.GovernanceFlags), MaxGovFlags)], ", "))
	}
	if len(parts) == 0 {
		return "No governance data available."
	}
	return strings.Join(parts, "\n")
}

// CrossFlags renders the cross-workstream flags.
func CrossFlags(flags []models.CrossWorkstreamFlag) string {
	if len(flags) == 0 {
		return "No cross-workstream red flags identified."
	}
	lines := make([]string, 0, len(flags))
	for _, f := range flags {
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s", f.Severity, f.RuleName, f.Description))
	}
	return strings.Join(lines, "\n")
}
