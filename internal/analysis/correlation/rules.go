// Package correlation evaluates cross-workstream red-flag rules and derives
// the deal recommendation.
package correlation

import (
	"fmt"
	"strings"

	"github.com/seenimoa/diligenceops/internal/analysis/events"
	"github.com/seenimoa/diligenceops/pkg/models"
	"github.com/seenimoa/diligenceops/pkg/utils"
)

// Workstream names used in flag provenance.
const (
	WorkstreamInsider       = "insider_signal"
	WorkstreamKPIs          = "financial_kpis"
	WorkstreamEvents        = "material_events"
	WorkstreamGovernance    = "governance"
	WorkstreamRiskFactors   = "risk_factors"
	WorkstreamInstitutional = "institutional"
)

// Rule thresholds.
const (
	revenueDeclineThreshold = -0.10
	weakBoardThreshold      = 0.67
	payGrowthMultiple       = 3.0
	holderExodusThreshold   = -0.20
	minExodusHolders        = 2
	minLeadershipChanges    = 2
	maxGovernanceEvidence   = 3
)

// Input is the merged workstream output the rules read. Nil pointers mean
// the workstream produced nothing.
type Input struct {
	KPIs        *models.FinancialKPIs
	Insider     *models.InsiderSignal
	Events      []models.MaterialEvent
	Governance  *models.GovernanceData
	Holders     []models.InstitutionalHolder
	RiskFactors []models.RiskFactor
	Risk        *models.RiskAssessment
}

// Rule is one named correlation check.
type Rule struct {
	Name        string
	Severity    string
	Description string
	Workstreams []string
	// Check returns the evidence strings and whether the rule fired.
	Check func(in Input) ([]string, bool)
}

// Rules is the fixed rule set, evaluated in order.
var Rules = []Rule{
	{
		Name:        "Insider+Revenue+Auditor",
		Severity:    models.SeverityCritical,
		Description: "Insider cluster selling coincides with >10% revenue decline and an auditor change.",
		Workstreams: []string{WorkstreamInsider, WorkstreamKPIs, WorkstreamEvents},
		Check:       insiderRevenueAuditor,
	},
	{
		Name:        "Non-Reliance on Financials",
		Severity:    models.SeverityCritical,
		Description: "Company issued non-reliance statement. All financial analysis may be unreliable.",
		Workstreams: []string{WorkstreamEvents, WorkstreamKPIs},
		Check:       nonReliance,
	},
	{
		Name:        "Pay-Performance Mismatch + Weak Board",
		Severity:    models.SeverityHigh,
		Description: "CEO pay growth significantly exceeds revenue growth with low board independence.",
		Workstreams: []string{WorkstreamGovernance, WorkstreamKPIs},
		Check:       payPerformance,
	},
	{
		Name:        "Novel Regulatory Risk + Insider Selling",
		Severity:    models.SeverityHigh,
		Description: "New regulatory risk factor identified alongside insider selling activity.",
		Workstreams: []string{WorkstreamRiskFactors, WorkstreamInsider},
		Check:       regulatoryInsider,
	},
	{
		Name:        "Institutional Exodus + Margin Pressure",
		Severity:    models.SeverityMedium,
		Description: "Multiple institutional holders reducing positions alongside margin concerns.",
		Workstreams: []string{WorkstreamInstitutional, WorkstreamKPIs},
		Check:       institutionalExodus,
	},
	{
		Name:        "Leadership Instability + Governance Concerns",
		Severity:    models.SeverityMedium,
		Description: "Multiple executive changes alongside governance red flags signal instability.",
		Workstreams: []string{WorkstreamEvents, WorkstreamGovernance},
		Check:       leadershipInstability,
	},
}

// Evaluate runs every rule and returns the flags that fired. The result is
// never nil.
func Evaluate(in Input) []models.CrossWorkstreamFlag {
	flags := []models.CrossWorkstreamFlag{}
	for _, r := range Rules {
		evidence, ok := r.Check(in)
		if !ok {
			continue
		}
		flags = append(flags, models.CrossWorkstreamFlag{
			RuleName:            r.Name,
			Severity:            r.Severity,
			Description:         r.Description,
			WorkstreamsInvolved: append([]string(nil), r.Workstreams...),
			Evidence:            evidence,
		})
	}
	return flags
}

func bearish(in Input) bool {
	return in.Insider != nil && in.Insider.Signal == models.SignalBearish
}

func insiderRevenueAuditor(in Input) ([]string, bool) {
	if !bearish(in) || !in.Insider.ClusterDetected {
		return nil, false
	}
	if in.KPIs == nil || in.KPIs.RevenueYoYChange == nil || *in.KPIs.RevenueYoYChange >= revenueDeclineThreshold {
		return nil, false
	}
	if events.Count(in.Events, events.CodeAuditorChange) == 0 {
		return nil, false
	}
	return []string{
		"Revenue decline: " + utils.FormatPct(*in.KPIs.RevenueYoYChange, 1),
		"Insider: " + in.Insider.ClusterDescription,
		"8-K Item 4.01: auditor change filed",
	}, true
}

func nonReliance(in Input) ([]string, bool) {
	if in.KPIs == nil || events.Count(in.Events, events.CodeNonReliance) == 0 {
		return nil, false
	}
	return []string{"8-K Item 4.02 filed", "All financial metrics should be treated with caution"}, true
}

func payPerformance(in Input) ([]string, bool) {
	g, k := in.Governance, in.KPIs
	if g == nil || k == nil || g.CEOPayGrowth == nil || k.RevenueYoYChange == nil || g.BoardIndependencePct == nil {
		return nil, false
	}
	pay, rev, indep := *g.CEOPayGrowth, *k.RevenueYoYChange, *g.BoardIndependencePct
	if pay <= 0 || indep >= weakBoardThreshold {
		return nil, false
	}
	if rev > 0 && pay <= payGrowthMultiple*rev {
		return nil, false
	}
	return []string{
		"CEO pay growth: " + utils.FormatPct(pay, 1),
		"Revenue growth: " + utils.FormatPct(rev, 1),
		"Board independence: " + utils.FormatPct(indep, 0),
	}, true
}

func regulatoryInsider(in Input) ([]string, bool) {
	if !bearish(in) {
		return nil, false
	}
	for _, rf := range in.RiskFactors {
		if rf.IsNovel && rf.Category == "regulatory" {
			return []string{"Novel regulatory risk factor in 10-K", "Insider signal: " + in.Insider.Signal}, true
		}
	}
	return nil, false
}

func institutionalExodus(in Input) ([]string, bool) {
	if in.KPIs == nil || in.KPIs.GrossMargin == nil {
		return nil, false
	}
	n := 0
	for _, h := range in.Holders {
		if h.ChangePct != nil && *h.ChangePct < holderExodusThreshold {
			n++
		}
	}
	if n < minExodusHolders {
		return nil, false
	}
	return []string{
		fmt.Sprintf("%d holders reduced >20%% QoQ", n),
		"Gross margin: " + utils.FormatPct(*in.KPIs.GrossMargin, 1),
	}, true
}

func leadershipInstability(in Input) ([]string, bool) {
	changes := events.Count(in.Events, events.CodeLeadershipChange)
	if changes < minLeadershipChanges || in.Governance == nil || len(in.Governance.GovernanceFlags) == 0 {
		return nil, false
	}
	gf := in.Governance.GovernanceFlags
	if len(gf) > maxGovernanceEvidence {
		gf = gf[:maxGovernanceEvidence]
	}
	return []string{
		fmt.Sprintf("%d leadership changes (8-K Item 5.02)", changes),
		"Governance flags: " + strings.Join(gf, ", "),
	}, true
}
