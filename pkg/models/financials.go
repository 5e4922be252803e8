// Package models holds the data types shared by the pipeline stages, the
// EDGAR client and the API.
package models

// --- XBRL facts ---

// FinancialFact is a single XBRL disclosure from the SEC companyfacts API.
type FinancialFact struct {
	Tag       string  `json:"tag"`                // e.g. "NetIncomeLoss"
	Label     string  `json:"label,omitempty"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`               // "USD", "USD/shares", "shares", "pure"
	Start     *string `json:"start,omitempty"`    // nil for instant facts
	End       string  `json:"end"`
	FY        int     `json:"fy"`
	FP        string  `json:"fp"`                 // "FY", "Q1".."Q4"
	Form      string  `json:"form"`               // "10-K", "10-Q"
	Filed     string  `json:"filed"`
	Accession string  `json:"accession"`
	Frame     *string `json:"frame,omitempty"`
	Taxonomy  string  `json:"taxonomy"`           // "us-gaap" or "dei"
}

// CompanyInfo is company metadata from the SEC submissions API.
type CompanyInfo struct {
	Ticker         string   `json:"ticker"`
	CompanyName    string   `json:"company_name"`
	CIK            string   `json:"cik"` // 10-digit zero-padded
	SIC            string   `json:"sic,omitempty"`
	SICDescription string   `json:"sic_description,omitempty"`
	FiscalYearEnd  string   `json:"fiscal_year_end,omitempty"`
	Exchanges      []string `json:"exchanges,omitempty"`
	EntityType     string   `json:"entity_type,omitempty"`
	Category       string   `json:"category,omitempty"`
	Latest10KDate  *string  `json:"latest_10k_date,omitempty"`
}

// OfflineCIK marks a company that could not be resolved against EDGAR.
const OfflineCIK = "0000000000"

// Resolved reports whether the company carries a real CIK.
func (c *CompanyInfo) Resolved() bool {
	return c != nil && c.CIK != "" && c.CIK != OfflineCIK
}

// --- KPIs ---

// FinancialKPIs are the ratios extracted from the latest annual facts.
// Nil pointers mean the metric could not be sourced or derived.
type FinancialKPIs struct {
	Revenue            *float64 `json:"revenue"`
	RevenuePrior       *float64 `json:"revenue_prior"`
	RevenueYoYChange   *float64 `json:"revenue_yoy_change"`
	NetIncome          *float64 `json:"net_income"`
	NetIncomePrior     *float64 `json:"net_income_prior"`
	GrossProfit        *float64 `json:"gross_profit"`
	GrossMargin        *float64 `json:"gross_margin"`
	OperatingIncome    *float64 `json:"operating_income"`
	OperatingMargin    *float64 `json:"operating_margin"`
	TotalAssets        *float64 `json:"total_assets"`
	TotalLiabilities   *float64 `json:"total_liabilities"`
	StockholdersEquity *float64 `json:"stockholders_equity"`
	DebtToEquity       *float64 `json:"debt_to_equity"`
	LongTermDebt       *float64 `json:"long_term_debt"`
	CashAndEquivalents *float64 `json:"cash_and_equivalents"`
	CurrentRatio       *float64 `json:"current_ratio"`
	OperatingCashFlow  *float64 `json:"operating_cash_flow"`
	FreeCashFlow       *float64 `json:"free_cash_flow"`
	EPSBasic           *float64 `json:"eps_basic"`

	FiscalYear int               `json:"fiscal_year"`
	PeriodEnd  string            `json:"period_end"`
	Currency   string            `json:"currency"`
	SourceTags map[string]string `json:"source_tags"` // metric -> XBRL tag or "derived: ..."
	Anomalies  []string          `json:"anomalies,omitempty"`
}

// KPIMetric is one named metric of a KPI record, used for tabular output.
type KPIMetric struct {
	Name  string
	Value *float64
}

// Metrics lists the numeric fields in display order.
func (k *FinancialKPIs) Metrics() []KPIMetric {
	return []KPIMetric{
		{"revenue", k.Revenue},
		{"revenue_prior", k.RevenuePrior},
		{"revenue_yoy_change", k.RevenueYoYChange},
		{"net_income", k.NetIncome},
		{"net_income_prior", k.NetIncomePrior},
		{"gross_profit", k.GrossProfit},
		{"gross_margin", k.GrossMargin},
		{"operating_income", k.OperatingIncome},
		{"operating_margin", k.OperatingMargin},
		{"total_assets", k.TotalAssets},
		{"total_liabilities", k.TotalLiabilities},
		{"stockholders_equity", k.StockholdersEquity},
		{"debt_to_equity", k.DebtToEquity},
		{"long_term_debt", k.LongTermDebt},
		{"cash_and_equivalents", k.CashAndEquivalents},
		{"current_ratio", k.CurrentRatio},
		{"operating_cash_flow", k.OperatingCashFlow},
		{"free_cash_flow", k.FreeCashFlow},
		{"eps_basic", k.EPSBasic},
	}
}

// Float returns a pointer to v. Handy for literals in records with optional numbers.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
