package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/diligenceops/pkg/models"
)

func kpis(yoy, gm *float64) *models.FinancialKPIs {
	return &models.FinancialKPIs{Revenue: models.Float(100), RevenueYoYChange: yoy, GrossMargin: gm, Currency: "USD"}
}

func riskAt(composite float64) *models.RiskAssessment {
	return &models.RiskAssessment{CompositeScore: composite, RiskLevel: "Medium"}
}

func names(flags []models.CrossWorkstreamFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = f.RuleName
	}
	return out
}

// ════════════════════════════════════════════════════════════════════
// Scenarios
// ════════════════════════════════════════════════════════════════════

func TestScenarioPayMismatchWeakBoard(t *testing.T) {
	in := Input{
		KPIs: kpis(models.Float(-0.15), nil),
		Governance: &models.GovernanceData{
			CEOPayGrowth:         models.Float(0.50),
			BoardIndependencePct: models.Float(0.50),
		},
		Risk: riskAt(3.0),
	}
	flags := Evaluate(in)
	require.Len(t, flags, 1)
	assert.Equal(t, "Pay-Performance Mismatch + Weak Board", flags[0].RuleName)
	assert.Equal(t, models.SeverityHigh, flags[0].Severity)
	assert.Equal(t, 0, Count(flags, models.SeverityCritical))
	assert.Equal(t, []string{"CEO pay growth: 50.0%", "Revenue growth: -15.0%", "Board independence: 50%"}, flags[0].Evidence)
	assert.Equal(t, models.RecommendWithConditions, Recommend(flags, in.Risk))
}

func TestNonRelianceFiresIndependently(t *testing.T) {
	base := Input{
		KPIs:   &models.FinancialKPIs{},
		Events: []models.MaterialEvent{{ItemCode: "4.02", Severity: 5}},
	}
	variants := map[string]Input{
		"bare": base,
		"with bullish insiders": func() Input {
			in := base
			in.Insider = &models.InsiderSignal{Signal: models.SignalBullish}
			return in
		}(),
		"with strong board": func() Input {
			in := base
			in.Governance = &models.GovernanceData{BoardIndependencePct: models.Float(1)}
			return in
		}(),
		"with low risk": func() Input {
			in := base
			in.Risk = riskAt(1.0)
			return in
		}(),
	}
	for name, in := range variants {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, names(Evaluate(in)), "Non-Reliance on Financials")
		})
	}

	noKPIs := base
	noKPIs.KPIs = nil
	assert.Empty(t, Evaluate(noKPIs))
}

func TestCriticalOverridesComposite(t *testing.T) {
	flags := []models.CrossWorkstreamFlag{{RuleName: "x", Severity: models.SeverityCritical}}
	assert.Equal(t, models.RecommendDoNotProceed, Recommend(flags, riskAt(1.0)))
}

func TestRecommendThresholds(t *testing.T) {
	tests := []struct {
		name  string
		flags []models.CrossWorkstreamFlag
		risk  *models.RiskAssessment
		want  string
	}{
		{"no risk defaults to 2.5", nil, nil, models.RecommendProceed},
		{"composite 4.5", nil, riskAt(4.5), models.RecommendDoNotProceed},
		{"composite 3.5", nil, riskAt(3.5), models.RecommendWithConditions},
		{"composite 3.49", nil, riskAt(3.49), models.RecommendProceed},
		{"high flag", []models.CrossWorkstreamFlag{{Severity: models.SeverityHigh}}, riskAt(1), models.RecommendWithConditions},
		{"medium flag", []models.CrossWorkstreamFlag{{Severity: models.SeverityMedium}}, riskAt(1), models.RecommendProceed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Recommend(tt.flags, tt.risk))
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Individual rules
// ════════════════════════════════════════════════════════════════════

func TestInsiderRevenueAuditor(t *testing.T) {
	in := Input{
		KPIs: kpis(models.Float(-0.2), nil),
		Insider: &models.InsiderSignal{
			Signal: models.SignalBearish, ClusterDetected: true,
			ClusterDescription: "Cluster sell: 3 insiders within 30 days starting 2024-03-01",
		},
		Events: []models.MaterialEvent{{ItemCode: "4.01"}},
	}
	flags := Evaluate(in)
	require.Equal(t, []string{"Insider+Revenue+Auditor"}, names(flags))
	assert.Equal(t, "Revenue decline: -20.0%", flags[0].Evidence[0])
	assert.Equal(t, "Insider: Cluster sell: 3 insiders within 30 days starting 2024-03-01", flags[0].Evidence[1])

	in.KPIs = kpis(models.Float(-0.10), nil)
	assert.Empty(t, Evaluate(in), "exactly -10% is not a >10% decline")
}

func TestRegulatoryInsider(t *testing.T) {
	in := Input{
		Insider: &models.InsiderSignal{Signal: models.SignalBearish},
		RiskFactors: []models.RiskFactor{
			{Category: "regulatory", IsNovel: false},
			{Category: "technology", IsNovel: true},
		},
	}
	assert.Empty(t, Evaluate(in))

	in.RiskFactors = append(in.RiskFactors, models.RiskFactor{Category: "regulatory", IsNovel: true})
	flags := Evaluate(in)
	require.Len(t, flags, 1)
	assert.Equal(t, []string{"Novel regulatory risk factor in 10-K", "Insider signal: bearish"}, flags[0].Evidence)
}

func TestInstitutionalExodus(t *testing.T) {
	cut := func(p float64) models.InstitutionalHolder {
		return models.InstitutionalHolder{HolderName: "h", ChangePct: models.Float(p)}
	}
	in := Input{
		KPIs:    kpis(nil, models.Float(0.3)),
		Holders: []models.InstitutionalHolder{cut(-0.25), cut(-0.20), {HolderName: "unknown"}},
	}
	assert.Empty(t, Evaluate(in))

	in.Holders = append(in.Holders, cut(-0.5))
	flags := Evaluate(in)
	require.Len(t, flags, 1)
	assert.Equal(t, []string{"2 holders reduced >20% QoQ", "Gross margin: 30.0%"}, flags[0].Evidence)
}

func TestLeadershipInstability(t *testing.T) {
	in := Input{
		Events:     []models.MaterialEvent{{ItemCode: "5.02"}, {ItemCode: "5.02"}},
		Governance: &models.GovernanceData{GovernanceFlags: []string{"a", "b", "c", "d"}},
	}
	flags := Evaluate(in)
	require.Len(t, flags, 1)
	assert.Equal(t, "Governance flags: a, b, c", flags[0].Evidence[1])

	in.Governance.GovernanceFlags = nil
	assert.Empty(t, Evaluate(in))
}

func TestPayPerformancePositiveRevenue(t *testing.T) {
	gov := &models.GovernanceData{CEOPayGrowth: models.Float(0.31), BoardIndependencePct: models.Float(0.6)}
	assert.Len(t, Evaluate(Input{KPIs: kpis(models.Float(0.1), nil), Governance: gov}), 1)

	gov.CEOPayGrowth = models.Float(0.3)
	assert.Empty(t, Evaluate(Input{KPIs: kpis(models.Float(0.1), nil), Governance: gov}), "pay growth must exceed 3x")

	gov.CEOPayGrowth = models.Float(0.9)
	gov.BoardIndependencePct = models.Float(0.67)
	assert.Empty(t, Evaluate(Input{KPIs: kpis(models.Float(0.1), nil), Governance: gov}))
}

func TestEvaluateEmptyInput(t *testing.T) {
	flags := Evaluate(Input{})
	assert.NotNil(t, flags)
	assert.Empty(t, flags)
	assert.Equal(t, models.RecommendProceed, Recommend(flags, nil))
}
