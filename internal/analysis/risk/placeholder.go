// Package risk scores the five diligence risk dimensions from KPIs.
package risk

import (
	"fmt"

	"github.com/seenimoa/diligenceops/pkg/models"
	"github.com/seenimoa/diligenceops/pkg/utils"
)

// Dimension names, in scoring order.
const (
	FinancialHealth = "Financial Health"
	MarketPosition  = "Market Position"
	OperationalRisk = "Operational Risk"
	Governance      = "Governance"
	Liquidity       = "Liquidity"
)

// Dimensions lists every scored dimension.
var Dimensions = []string{FinancialHealth, MarketPosition, OperationalRisk, Governance, Liquidity}

// Risk levels.
const (
	LevelLow      = "Low"
	LevelMedium   = "Medium"
	LevelHigh     = "High"
	LevelCritical = "Critical"
)

// Placeholder scores each dimension with fixed thresholds over k. It is the
// deterministic substitute for narrative risk analysis.
func Placeholder(k *models.FinancialKPIs) *models.RiskAssessment {
	if k == nil {
		k = &models.FinancialKPIs{}
	}
	dims := []models.RiskDimension{
		financialHealth(k.GrossMargin),
		marketPosition(k.RevenueYoYChange),
		operational(k.OperatingMargin),
		governance(k.DebtToEquity),
		liquidity(k.CurrentRatio),
	}
	composite := Composite(dims)
	return &models.RiskAssessment{
		Dimensions:     dims,
		CompositeScore: composite,
		RiskLevel:      Level(composite),
		RedFlags:       []models.RedFlag{},
	}
}

// Composite is the mean dimension score rounded to 2 decimals.
func Composite(dims []models.RiskDimension) float64 {
	if len(dims) == 0 {
		return 2.5
	}
	sum := 0
	for _, d := range dims {
		sum += d.Score
	}
	return utils.Round2(float64(sum) / float64(len(dims)))
}

// Level maps a composite score onto a risk level.
func Level(composite float64) string {
	switch {
	case composite <= 2:
		return LevelLow
	case composite <= 3:
		return LevelMedium
	case composite <= 4:
		return LevelHigh
	default:
		return LevelCritical
	}
}

func financialHealth(gm *float64) models.RiskDimension {
	d := models.RiskDimension{
		Dimension: FinancialHealth, Score: 1, Reasoning: "No margin data available.",
		KeyMetrics: []string{"gross_margin", "operating_margin", "net_income"},
	}
	if gm == nil {
		return d
	}
	switch {
	case *gm < 0.2:
		d.Score = 4
	case *gm < 0.35:
		d.Score = 3
	case *gm < 0.5:
		d.Score = 2
	}
	d.Reasoning = fmt.Sprintf("Gross margin is %s.", utils.FormatPct(*gm, 1))
	return d
}

func marketPosition(yoy *float64) models.RiskDimension {
	d := models.RiskDimension{
		Dimension: MarketPosition, Score: 2, Reasoning: "No YoY data.",
		KeyMetrics: []string{"revenue", "revenue_yoy_change"},
	}
	if yoy == nil {
		return d
	}
	switch {
	case *yoy < -0.1:
		d.Score = 5
	case *yoy < 0:
		d.Score = 3
	case *yoy > 0.1:
		d.Score = 1
	}
	d.Reasoning = fmt.Sprintf("Revenue YoY change: %s.", utils.FormatPct(*yoy, 1))
	return d
}

func operational(om *float64) models.RiskDimension {
	d := models.RiskDimension{
		Dimension: OperationalRisk, Score: 2, Reasoning: "No operating margin data.",
		KeyMetrics: []string{"operating_margin", "operating_income"},
	}
	if om == nil {
		return d
	}
	switch {
	case *om < 0:
		d.Score = 5
	case *om < 0.1:
		d.Score = 3
	}
	d.Reasoning = fmt.Sprintf("Operating margin: %s.", utils.FormatPct(*om, 1))
	return d
}

func governance(de *float64) models.RiskDimension {
	d := models.RiskDimension{
		Dimension: Governance, Score: 2, Reasoning: "No D/E data.",
		KeyMetrics: []string{"debt_to_equity", "long_term_debt"},
	}
	if de == nil {
		return d
	}
	switch {
	case *de > 5:
		d.Score = 4
	case *de > 2:
		d.Score = 3
	}
	d.Reasoning = fmt.Sprintf("Debt-to-equity: %.2f.", *de)
	return d
}

func liquidity(cr *float64) models.RiskDimension {
	d := models.RiskDimension{
		Dimension: Liquidity, Score: 2, Reasoning: "No current ratio data.",
		KeyMetrics: []string{"current_ratio", "cash_and_equivalents"},
	}
	if cr == nil {
		return d
	}
	switch {
	case *cr < 1:
		d.Score = 4
	case *cr < 1.5:
		d.Score = 3
	}
	d.Reasoning = fmt.Sprintf("Current ratio: %.2f.", *cr)
	return d
}
