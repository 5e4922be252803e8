package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seenimoa/diligenceops/pkg/models"
)

func fullKPIs() *models.FinancialKPIs {
	f := models.Float
	return &models.FinancialKPIs{
		Revenue: f(1), NetIncome: f(1), GrossMargin: f(1), OperatingMargin: f(1),
		TotalAssets: f(1), TotalLiabilities: f(1), StockholdersEquity: f(1),
		DebtToEquity: f(1), CashAndEquivalents: f(1), OperatingCashFlow: f(1),
	}
}

func fullMemo() *models.DiligenceMemo {
	return &models.DiligenceMemo{
		ExecutiveSummary: "s", CompanyOverview: "o", FinancialAnalysis: "f",
		RiskAssessment: "r", Recommendation: "rec",
	}
}

func TestScoreEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Score(Input{}))
}

func TestScoreComplete(t *testing.T) {
	in := Input{
		KPIs:          fullKPIs(),
		Risk:          &models.RiskAssessment{Dimensions: make([]models.RiskDimension, 5)},
		Memo:          fullMemo(),
		RiskFactors:   3,
		InsiderTrades: 10,
		Holders:       4,
		Events:        2,
		CEOName:       "Jane Doe",
	}
	assert.Equal(t, 1.0, Score(in))
}

func TestScorePartial(t *testing.T) {
	k := &models.FinancialKPIs{Revenue: models.Float(1), NetIncome: models.Float(2), FreeCashFlow: models.Float(3)}
	// 0.25*2/10 + 0.15 + 0.15*2/5 + 0.45*1/5
	in := Input{
		KPIs:   k,
		Risk:   &models.RiskAssessment{Dimensions: make([]models.RiskDimension, 5)},
		Memo:   &models.DiligenceMemo{ExecutiveSummary: "x", Recommendation: "y"},
		Events: 1,
	}
	assert.Equal(t, 0.35, Score(in))
}

func TestScoreIgnoresUntrackedKPIs(t *testing.T) {
	k := &models.FinancialKPIs{EPSBasic: models.Float(1), FreeCashFlow: models.Float(1), CurrentRatio: models.Float(1)}
	assert.Equal(t, 0.0, Score(Input{KPIs: k}))
}

func TestScoreWorkstreamsOnly(t *testing.T) {
	assert.Equal(t, 0.45, Score(Input{RiskFactors: 1, InsiderTrades: 1, Holders: 1, Events: 1, CEOName: "x"}))
	assert.Equal(t, 0.18, Score(Input{Holders: 1, CEOName: "x"}))
}
