package prompts

import (
	"fmt"
	"strings"

	"github.com/seenimoa/diligenceops/pkg/models"
)

// ── Task Templates ──
//
// Each template ends with the JSON shape the narrator decodes. The shapes
// mirror the pkg/models field names.

// RiskFactors asks for classification of 10-K Item 1A text.
func RiskFactors(company, riskText string, categories []string) string {
	return fmt.Sprintf(`Analyze the following risk factor disclosures from %s's 10-K filing (Item 1A).

## Item 1A Risk Factors Text
%s

## Instructions
Classify each distinct risk factor into one of these categories: %s

For each risk factor provide:
1. **category** — from the list above
2. **title** — short descriptive name (5-10 words)
3. **summary** — 1-2 sentence explanation of the risk
4. **severity** — 1 to 5 (1=low impact, 5=existential threat to the business)
5. **is_novel** — true if this risk appears specific to the company rather than boilerplate

Identify the 15-20 most significant risk factors. Prioritize by severity.

Return JSON: {"risk_factors": [{"category": "...", "title": "...", "summary": "...", "severity": 3, "is_novel": false}]}`,
		company, riskText, strings.Join(categories, ", "))
}

// Anomalies asks for a review of extracted KPIs.
func Anomalies(company, kpiSummary string) string {
	return fmt.Sprintf(`Review these KPIs for %s and identify any anomalies, red flags, or concerns. Focus on: negative margins, declining revenue, high leverage, low liquidity, or unusual ratios.

%s

Each anomaly is one concise sentence referencing specific metrics.

Return JSON: {"anomalies": ["..."]}`, company, kpiSummary)
}

// Governance asks for structured data from DEF 14A excerpts.
func Governance(company, proxyText string) string {
	return fmt.Sprintf(`Extract governance and compensation data from this DEF 14A proxy statement for %s.

## Proxy Statement Text
%s

## Instructions
Extract as many of these fields as you can find in the text:

1. **ceo_name** — name of the CEO
2. **ceo_total_comp** — CEO's total compensation (current year, in dollars)
3. **ceo_comp_prior** — CEO's total compensation (prior year, if available)
4. **ceo_pay_growth** — change in CEO pay as a decimal (0.15 for 15%%)
5. **median_employee_pay** — median employee annual compensation
6. **ceo_pay_ratio** — CEO pay ratio to median employee (e.g. 256)
7. **board_size** — total number of board directors
8. **independent_directors** — number of independent directors
9. **board_independence_pct** — fraction of independent directors (decimal, e.g. 0.80)
10. **directors** — name, is_independent, committees, role, age, director_since (year)
11. **has_poison_pill** — true if a poison pill or shareholder rights plan exists
12. **has_staggered_board** — true if the board is classified/staggered
13. **has_dual_class** — true if a dual-class share structure exists
14. **anti_takeover_provisions** — any anti-takeover provisions found
15. **neo_compensation** — named executive officers with name, title, total_comp, salary, stock_awards, non_equity_incentive, other_comp, fiscal_year
16. **governance_flags** — any governance concerns

Compute ceo_pay_growth and board_independence_pct only when both operands are stated.
Set fields to null if not found. Do not guess values.

Return JSON with exactly these top-level fields: ceo_name, ceo_total_comp, ceo_comp_prior, ceo_pay_growth, median_employee_pay, ceo_pay_ratio, board_size, independent_directors, board_independence_pct, directors, has_poison_pill, has_staggered_board, has_dual_class, anti_takeover_provisions, neo_compensation, governance_flags.`,
		company, proxyText)
}

// Events asks for classification of 8-K filings against the item-code table.
func Events(company string, filings []models.EightKFiling, itemCodes string) string {
	var lines []string
	for _, f := range filings {
		desc := f.Description
		if desc == "" {
			desc = "No description"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", f.FilingDate, desc))
	}
	return fmt.Sprintf(`Classify each of these 8-K filings for %s.

## 8-K Filings (last 12 months)
%s

## Standard 8-K Item Codes
%s

For each event provide:
1. **filing_date** — the filing date
2. **item_code** — the most relevant 8-K item code (e.g. "1.01", "5.02")
3. **item_description** — brief description of the event type
4. **severity** — 1 to 5 (1=routine disclosure, 5=critical corporate event)
5. **summary** — 1-2 sentences about the significance for due diligence

Flag any Item 4.01, 4.02, or 5.02 events with severity >= 4.

Return JSON: {"events": [{"filing_date": "YYYY-MM-DD", "item_code": "...", "item_description": "...", "severity": 2, "summary": "..."}]}`,
		company, strings.Join(lines, "\n"), itemCodes)
}

// RiskContext is the input to the risk-scoring template.
type RiskContext struct {
	Company       string
	Ticker        string
	SIC           string
	FiscalYearEnd string
	KPISummary    string
}

// RiskScoring asks for the five-dimension risk assessment.
func RiskScoring(c RiskContext) string {
	return fmt.Sprintf(`Score %s (%s) across five risk dimensions, based on the following financial KPIs extracted from their latest SEC 10-K filing.

## Financial KPIs
%s

## Company Information
- Ticker: %s
- Company: %s
- SIC: %s
- Fiscal Year End: %s

## Instructions
For each risk dimension, provide:
1. A score from 1 to 5 (1 = very low risk, 5 = critical risk)
2. A reasoning paragraph (2-4 sentences) citing specific numbers from the KPIs
3. The key metrics you used for this assessment

Score these five dimensions:
1. **Financial Health**: Profitability, margins, earnings quality
2. **Market Position**: Revenue growth, competitive indicators
3. **Operational Risk**: Cost structure, operational efficiency
4. **Governance**: Leverage, capital structure, financial transparency
5. **Liquidity**: Cash position, current ratio, cash flow adequacy

Also identify the top 3 red flags (if any) with severity (Low/Medium/High/Critical) and specific evidence from the data.

Return JSON: {"dimensions": [{"dimension": "Financial Health", "score": 2, "reasoning": "...", "key_metrics": ["gross_margin"]}], "red_flags": [{"flag": "...", "severity": "Medium", "evidence": "..."}]}`,
		c.Company, c.Ticker, c.KPISummary, c.Ticker, c.Company, orUnknown(c.SIC), orUnknown(c.FiscalYearEnd))
}

// MemoContext holds the pre-rendered workstream summaries for the memo.
type MemoContext struct {
	Company        string
	Ticker         string
	FiscalYear     int
	KPISummary     string
	RiskLevel      string
	Composite      float64
	RiskDetails    string
	RedFlags       string
	RiskFactors    string
	Insider        string
	Institutional  string
	Events         string
	Governance     string
	CrossFlags     string
	Recommendation string
}

// Memo asks for the ten-section due diligence report.
func Memo(c MemoContext) string {
	return fmt.Sprintf(`Write a comprehensive due diligence report for %s (%s).

## Financial KPIs (from SEC 10-K XBRL data)
%s

## Risk Assessment
Composite Risk: %s (%.2f/5.0)
%s

## Red Flags (Financial)
%s

## Risk Factors (10-K Item 1A)
%s

## Insider Trading Signal
%s

## Institutional Ownership
%s

## Material Events (8-K)
%s

## Governance & Compensation
%s

## Cross-Workstream Red Flags
%s

## Deal Recommendation: %s

## Instructions
Write a professional 10-section due diligence report:

1. **Executive Summary** (4-6 sentences): Key takeaway, deal recommendation (%s), top 3 risks, confidence level
2. **Company Overview** (3-5 sentences): Business description, market position
3. **Financial Analysis** (paragraph): Revenue, profitability, balance sheet. Cite [source: TagName, FY%d].
4. **Risk Factor Analysis** (paragraph): Summarize key risks by category
5. **Insider Trading Signals** (paragraph): Buy/sell patterns, cluster activity
6. **Institutional Ownership** (paragraph): Major holders, notable changes
7. **Material Events** (paragraph): Significant 8-K filings
8. **Governance & Compensation** (paragraph): CEO pay, board independence
9. **Cross-Workstream Red Flags** (paragraph): Correlated signals
10. **Recommendation & Caveats** (paragraph): Final verdict with conditions

Return JSON: {"executive_summary": "...", "company_overview": "...", "financial_analysis": "...", "risk_assessment": "...", "key_findings": ["..."], "recommendation": "...", "sections": [{"title": "Insider Trading Signals", "content": "...", "citations": ["..."]}]}`,
		c.Company, c.Ticker, c.KPISummary,
		c.RiskLevel, c.Composite, c.RiskDetails, c.RedFlags,
		c.RiskFactors, c.Insider, c.Institutional, c.Events, c.Governance, c.CrossFlags,
		c.Recommendation, c.Recommendation, c.FiscalYear)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
