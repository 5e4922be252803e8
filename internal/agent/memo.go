package agent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/seenimoa/diligenceops/internal/agent/prompts"
	"github.com/seenimoa/diligenceops/internal/pipeline"
	"github.com/seenimoa/diligenceops/pkg/models"
	"github.com/seenimoa/diligenceops/pkg/utils"
)

// ReportVersion is stamped in the report footer.
const ReportVersion = "v0.3"

// reportListCap caps the holder and event lists in the markdown report.
const reportListCap = 5

// PlaceholderMemo builds the memo from KPIs, risk scores and the deal
// recommendation alone. Missing amounts read "N/A".
func PlaceholderMemo(rec *pipeline.Record) *models.DiligenceMemo {
	k := rec.KPIs
	if k == nil {
		k = &models.FinancialKPIs{}
	}
	ra := rec.Risk
	if ra == nil {
		ra = &models.RiskAssessment{}
	}
	company, ticker, deal := rec.CompanyName(), rec.Ticker, recommendation(rec)
	revenue, netIncome := usdOrNA(k.Revenue), usdOrNA(k.NetIncome)
	composite := formatScore(ra.CompositeScore)

	var fin strings.Builder
	fmt.Fprintf(&fin, "Revenue: %s. Net income: %s. ", revenue, netIncome)
	if k.GrossMargin != nil && *k.GrossMargin != 0 {
		fmt.Fprintf(&fin, "Gross margin: %s. ", utils.FormatPct(*k.GrossMargin, 1))
	}
	if k.OperatingMargin != nil && *k.OperatingMargin != 0 {
		fmt.Fprintf(&fin, "Operating margin: %s. ", utils.FormatPct(*k.OperatingMargin, 1))
	}
	fin.WriteString("Full financial analysis requires LLM processing.")

	return &models.DiligenceMemo{
		ExecutiveSummary: fmt.Sprintf(
			"%s (%s) has been analyzed based on their FY%d 10-K filing and 5 additional workstreams. "+
				"Revenue: %s, Net income: %s. Overall risk: %s (%s/5.0). Deal recommendation: %s.",
			company, ticker, k.FiscalYear, revenue, netIncome, ra.RiskLevel, composite, deal),
		CompanyOverview: fmt.Sprintf(
			"%s is a publicly traded company (ticker: %s). This analysis is based on SEC EDGAR filings.",
			company, ticker),
		FinancialAnalysis: fin.String(),
		RiskAssessment: fmt.Sprintf(
			"Composite risk score: %s/5.0 (%s). Detailed risk reasoning requires LLM processing.",
			composite, ra.RiskLevel),
		KeyFindings: []string{
			fmt.Sprintf("Revenue: %s (FY%d)", revenue, k.FiscalYear),
			"Risk level: " + ra.RiskLevel,
			"Deal recommendation: " + deal,
		},
		Recommendation: fmt.Sprintf("Deal recommendation: %s. Set OPENAI_API_KEY for complete report generation.", deal),
		Sections:       []models.MemoSection{},
	}
}

// RenderReport lays out the ten-section markdown report.
func RenderReport(rec *pipeline.Record, memo *models.DiligenceMemo, confidence float64) string {
	riskLevel := "N/A"
	if rec.Risk != nil {
		riskLevel = rec.Risk.RiskLevel
	}
	deal := recommendation(rec)

	lines := []string{
		fmt.Sprintf("# Due Diligence Report: %s (%s)", rec.CompanyName(), rec.Ticker),
		"\n**Generated:** " + memo.GeneratedAt,
		fmt.Sprintf("**Confidence:** %.2f", confidence),
		"**Risk Level:** " + riskLevel,
		"**Deal Recommendation:** " + deal,
		"\n---\n",
		"## 1. Executive Summary\n", memo.ExecutiveSummary,
		"\n## 2. Company Overview\n", memo.CompanyOverview,
		"\n## 3. Financial Analysis\n", memo.FinancialAnalysis,
		"\n## 4. Risk Factor Analysis\n", memo.RiskAssessment,
		"\n## 5. Insider Trading Signals\n",
	}
	if s := rec.InsiderSignal; s != nil {
		lines = append(lines, fmt.Sprintf("Signal: %s, Buys: %d, Sells: %d", s.Signal, s.TotalBuys, s.TotalSells))
	} else {
		lines = append(lines, "No insider trading data available.")
	}

	lines = append(lines, "\n## 6. Institutional Ownership\n")
	lines = append(lines, prompts.HolderLines(rec.Holders, reportListCap)...)

	lines = append(lines, "\n## 7. Material Events\n")
	lines = append(lines, prompts.EventLines(rec.Events, reportListCap)...)

	lines = append(lines, "\n## 8. Governance & Compensation\n")
	if g := rec.Governance; g != nil && g.CEOName != "" {
		lines = append(lines, "CEO: "+g.CEOName)
	} else {
		lines = append(lines, "No governance data available.")
	}

	lines = append(lines, "\n## 9. Cross-Workstream Red Flags\n")
	if len(rec.Flags) == 0 {
		lines = append(lines, "No cross-workstream red flags identified.")
	}
	for _, f := range rec.Flags {
		lines = append(lines, fmt.Sprintf("- **[%s] %s**: %s", f.Severity, f.RuleName, f.Description))
	}

	lines = append(lines,
		"\n## 10. Recommendation & Caveats\n",
		fmt.Sprintf("**Deal Recommendation: %s**\n", deal), memo.Recommendation,
		"\n## Key Findings\n",
	)
	for _, finding := range memo.KeyFindings {
		lines = append(lines, "- "+finding)
	}
	lines = append(lines, fmt.Sprintf("\n---\n*Generated by DiligenceOps %s | Confidence: %.2f | %s*", ReportVersion, confidence, memo.GeneratedAt))
	return strings.Join(lines, "\n")
}

func usdOrNA(v *float64) string {
	if v == nil || *v == 0 {
		return "N/A"
	}
	return utils.FormatUSD(*v)
}

// formatScore prints a score with at least one decimal, e.g. 2.0 or 2.4.
func formatScore(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
