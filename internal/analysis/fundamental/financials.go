package fundamental

import (
	"fmt"
	"strings"

	"github.com/seenimoa/diligenceops/pkg/models"
	"github.com/seenimoa/diligenceops/pkg/utils"
)

// Summary renders the populated KPIs as one metric per line, for prompts
// and reports.
func Summary(k *models.FinancialKPIs) string {
	if k == nil {
		return "No financial data available."
	}
	lines := []string{
		fmt.Sprintf("Fiscal Year: %d", k.FiscalYear),
		"Period End: " + k.PeriodEnd,
	}
	usd := func(label string, v *float64) {
		if v != nil {
			lines = append(lines, label+": "+utils.FormatUSD(*v))
		}
	}
	pct := func(label string, v *float64) {
		if v != nil {
			lines = append(lines, label+": "+utils.FormatPct(*v, 1))
		}
	}
	num := func(label string, v *float64) {
		if v != nil {
			lines = append(lines, fmt.Sprintf("%s: %.2f", label, *v))
		}
	}

	usd("Revenue", k.Revenue)
	usd("Revenue (Prior Year)", k.RevenuePrior)
	pct("Revenue YoY Change", k.RevenueYoYChange)
	usd("Net Income", k.NetIncome)
	pct("Gross Margin", k.GrossMargin)
	pct("Operating Margin", k.OperatingMargin)
	usd("Total Assets", k.TotalAssets)
	usd("Total Liabilities", k.TotalLiabilities)
	usd("Stockholders' Equity", k.StockholdersEquity)
	num("Debt-to-Equity", k.DebtToEquity)
	usd("Long-term Debt", k.LongTermDebt)
	usd("Cash & Equivalents", k.CashAndEquivalents)
	num("Current Ratio", k.CurrentRatio)
	usd("Operating Cash Flow", k.OperatingCashFlow)
	usd("Free Cash Flow", k.FreeCashFlow)
	if k.EPSBasic != nil {
		lines = append(lines, fmt.Sprintf("EPS (Basic): $%.2f", *k.EPSBasic))
	}
	return strings.Join(lines, "\n")
}

// Headline is the one-line progress description of an extraction.
func Headline(k *models.FinancialKPIs) string {
	if k.Revenue != nil && *k.Revenue != 0 {
		return fmt.Sprintf("Extracted KPIs for FY%d: revenue=%s", k.FiscalYear, utils.FormatUSD(*k.Revenue))
	}
	return "Extracted KPIs (some metrics unavailable)"
}
