// Package confidence scores how complete a diligence run's data is.
package confidence

import (
	"github.com/seenimoa/diligenceops/pkg/models"
	"github.com/seenimoa/diligenceops/pkg/utils"
)

// Component weights; they sum to 1.
const (
	WeightKPIs        = 0.25
	WeightRisk        = 0.15
	WeightNarrative   = 0.15
	WeightWorkstreams = 0.45
)

const expectedDimensions = 5

// Input is the subset of a finished run the score depends on.
type Input struct {
	KPIs          *models.FinancialKPIs
	Risk          *models.RiskAssessment
	Memo          *models.DiligenceMemo
	RiskFactors   int
	InsiderTrades int
	Holders       int
	Events        int
	CEOName       string
}

// Score returns the weighted completeness in [0,1], rounded to 2 decimals.
func Score(in Input) float64 {
	var score float64

	if k := in.KPIs; k != nil {
		fields := []*float64{
			k.Revenue, k.NetIncome, k.GrossMargin, k.OperatingMargin,
			k.TotalAssets, k.TotalLiabilities, k.StockholdersEquity,
			k.DebtToEquity, k.CashAndEquivalents, k.OperatingCashFlow,
		}
		n := 0
		for _, f := range fields {
			if f != nil {
				n++
			}
		}
		score += WeightKPIs * float64(n) / float64(len(fields))
	}

	if in.Risk != nil && len(in.Risk.Dimensions) > 0 {
		score += WeightRisk * float64(len(in.Risk.Dimensions)) / expectedDimensions
	}

	if m := in.Memo; m != nil {
		fields := []string{m.ExecutiveSummary, m.CompanyOverview, m.FinancialAnalysis, m.RiskAssessment, m.Recommendation}
		n := 0
		for _, f := range fields {
			if f != "" {
				n++
			}
		}
		score += WeightNarrative * float64(n) / float64(len(fields))
	}

	checks := []bool{
		in.RiskFactors > 0,
		in.InsiderTrades > 0,
		in.Holders > 0,
		in.Events > 0,
		in.CEOName != "",
	}
	n := 0
	for _, c := range checks {
		if c {
			n++
		}
	}
	score += WeightWorkstreams * float64(n) / float64(len(checks))

	return utils.Round2(score)
}
