// Package fundamental extracts financial KPIs from XBRL company facts.
package fundamental

import (
	"sort"

	"github.com/seenimoa/diligenceops/pkg/models"
)

// Derived-metric provenance strings.
const (
	SourceGrossMargin     = "derived: gross_profit / revenue"
	SourceOperatingMargin = "derived: operating_income / revenue"
	SourceDebtToEquity    = "derived: total_liabilities / stockholders_equity"
	SourceRevenueYoY      = "derived: YoY change"
	SourceCurrentRatio    = "derived: assets_current / liabilities_current"
	SourceFreeCashFlow    = "derived: operating_cash_flow - capex"
)

const primaryTaxonomy = "us-gaap"

// Internal metrics that feed derived ratios but are not reported.
const (
	assetsCurrent      = "_assets_current"
	liabilitiesCurrent = "_liabilities_current"
	capex              = "_capex"
)

type tagMapping struct {
	tag    string
	metric string
}

// kpiTags maps XBRL tags to metrics. Order matters: the first tag found
// for a metric wins.
var kpiTags = []tagMapping{
	{"RevenueFromContractWithCustomerExcludingAssessedTax", "revenue"},
	{"Revenues", "revenue"},
	{"SalesRevenueNet", "revenue"},
	{"NetIncomeLoss", "net_income"},
	{"GrossProfit", "gross_profit"},
	{"OperatingIncomeLoss", "operating_income"},
	{"Assets", "total_assets"},
	{"Liabilities", "total_liabilities"},
	{"StockholdersEquity", "stockholders_equity"},
	{"LongTermDebt", "long_term_debt"},
	{"LongTermDebtNoncurrent", "long_term_debt"},
	{"CashAndCashEquivalentsAtCarryingValue", "cash_and_equivalents"},
	{"NetCashProvidedByUsedInOperatingActivities", "operating_cash_flow"},
	{"EarningsPerShareBasic", "eps_basic"},
	{"AssetsCurrent", assetsCurrent},
	{"LiabilitiesCurrent", liabilitiesCurrent},
	{"PaymentsToAcquirePropertyPlantAndEquipment", capex},
}

// ExtractKPIs computes the KPI record for the most recent fiscal year in facts.
// The result is never nil; with no annual facts every metric is nil.
func ExtractKPIs(facts []models.FinancialFact) *models.FinancialKPIs {
	kpis := &models.FinancialKPIs{Currency: "USD", SourceTags: map[string]string{}}

	ends := annualEndDates(facts)
	if len(ends) == 0 {
		return kpis
	}
	latest := ends[0]
	prior := ""
	if len(ends) > 1 {
		prior = ends[1]
	}

	for _, f := range facts {
		if f.End == latest && f.FY > kpis.FiscalYear {
			kpis.FiscalYear = f.FY
		}
	}
	kpis.PeriodEnd = latest

	raw := make(map[string]float64)
	for _, m := range kpiTags {
		if _, ok := raw[m.metric]; ok {
			continue
		}
		if v, ok := valueAt(facts, m.tag, latest); ok {
			raw[m.metric] = v
			if !isOperand(m.metric) {
				kpis.SourceTags[m.metric] = m.tag
			}
		}
	}

	if prior != "" {
		for _, m := range kpiTags {
			if m.metric != "revenue" {
				continue
			}
			if v, ok := valueAt(facts, m.tag, prior); ok {
				kpis.RevenuePrior = models.Float(v)
				break
			}
		}
		if v, ok := valueAt(facts, "NetIncomeLoss", prior); ok {
			kpis.NetIncomePrior = models.Float(v)
		}
	}

	get := func(metric string) *float64 {
		if v, ok := raw[metric]; ok {
			return models.Float(v)
		}
		return nil
	}

	kpis.Revenue = get("revenue")
	kpis.NetIncome = get("net_income")
	kpis.GrossProfit = get("gross_profit")
	kpis.OperatingIncome = get("operating_income")
	kpis.TotalAssets = get("total_assets")
	kpis.TotalLiabilities = get("total_liabilities")
	kpis.StockholdersEquity = get("stockholders_equity")
	kpis.LongTermDebt = get("long_term_debt")
	kpis.CashAndEquivalents = get("cash_and_equivalents")
	kpis.OperatingCashFlow = get("operating_cash_flow")
	kpis.EPSBasic = get("eps_basic")

	// Margins
	kpis.GrossMargin = ratio(kpis.GrossProfit, kpis.Revenue)
	kpis.OperatingMargin = ratio(kpis.OperatingIncome, kpis.Revenue)

	// Leverage and liquidity
	kpis.DebtToEquity = ratio(kpis.TotalLiabilities, kpis.StockholdersEquity)
	kpis.CurrentRatio = ratio(get(assetsCurrent), get(liabilitiesCurrent))

	// Growth
	kpis.RevenueYoYChange = yoyChange(kpis.Revenue, kpis.RevenuePrior)

	// FCF
	if ocf, cx := kpis.OperatingCashFlow, get(capex); ocf != nil && cx != nil {
		kpis.FreeCashFlow = models.Float(*ocf - *cx)
	}

	for _, d := range []struct {
		metric string
		value  *float64
		source string
	}{
		{"gross_margin", kpis.GrossMargin, SourceGrossMargin},
		{"operating_margin", kpis.OperatingMargin, SourceOperatingMargin},
		{"debt_to_equity", kpis.DebtToEquity, SourceDebtToEquity},
		{"revenue_yoy_change", kpis.RevenueYoYChange, SourceRevenueYoY},
		{"current_ratio", kpis.CurrentRatio, SourceCurrentRatio},
		{"free_cash_flow", kpis.FreeCashFlow, SourceFreeCashFlow},
	} {
		if d.value != nil {
			kpis.SourceTags[d.metric] = d.source
		}
	}

	return kpis
}

// annualEndDates returns distinct full-year period ends, newest first.
// Duration facts (with an explicit start) are preferred; instant-only
// filers fall back to any FY fact.
func annualEndDates(facts []models.FinancialFact) []string {
	seen := make(map[string]bool)
	for _, f := range facts {
		if f.FP == "FY" && f.Taxonomy == primaryTaxonomy && f.Start != nil {
			seen[f.End] = true
		}
	}
	if len(seen) == 0 {
		for _, f := range facts {
			if f.FP == "FY" && f.Taxonomy == primaryTaxonomy {
				seen[f.End] = true
			}
		}
	}

	ends := make([]string, 0, len(seen))
	for e := range seen {
		ends = append(ends, e)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ends)))
	return ends
}

// valueAt returns the value of tag at period end. Restated values win:
// among duplicates the most recently filed fact is used.
func valueAt(facts []models.FinancialFact, tag, end string) (float64, bool) {
	var best *models.FinancialFact
	for i := range facts {
		f := &facts[i]
		if f.Tag != tag || f.End != end {
			continue
		}
		if best == nil || f.Filed > best.Filed {
			best = f
		}
	}
	if best == nil {
		return 0, false
	}
	return best.Value, true
}

// ratio returns num/den, or nil when an operand is missing or den is zero.
func ratio(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	return models.Float(*num / *den)
}

// yoyChange returns (cur-prev)/|prev|, or nil when prev is missing or zero.
func yoyChange(cur, prev *float64) *float64 {
	if cur == nil || prev == nil || *prev == 0 {
		return nil
	}
	v := (*cur - *prev) / abs(*prev)
	return &v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// isOperand reports whether metric only feeds a derived ratio and is not a
// reported KPI.
func isOperand(metric string) bool {
	switch metric {
	case assetsCurrent, liabilitiesCurrent, capex:
		return true
	}
	return false
}
