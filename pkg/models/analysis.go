package models

// --- Risk factors (10-K Item 1A) ---

// RiskCategories enumerates the allowed risk-factor categories.
var RiskCategories = []string{
	"regulatory", "competitive", "operational", "financial",
	"legal", "technology", "macroeconomic", "esg",
}

// RiskFactor is a classified risk factor from 10-K Item 1A.
type RiskFactor struct {
	Category string `json:"category" validate:"required,oneof=regulatory competitive operational financial legal technology macroeconomic esg"`
	Title    string `json:"title" validate:"required"`
	Summary  string `json:"summary"`
	Severity int    `json:"severity" validate:"min=1,max=5"`
	IsNovel  bool   `json:"is_novel"`
}

// --- Insider signal ---

// Insider signal values.
const (
	SignalBullish = "bullish"
	SignalBearish = "bearish"
	SignalNeutral = "neutral"
)

// InsiderSignal aggregates Form 4 activity into a directional signal.
type InsiderSignal struct {
	TotalBuys          int      `json:"total_buys"`
	TotalSells         int      `json:"total_sells"`
	NetShares          float64  `json:"net_shares"`
	BuySellRatio       *float64 `json:"buy_sell_ratio"` // nil when no shares were sold
	ClusterDetected    bool     `json:"cluster_detected"`
	ClusterDescription string   `json:"cluster_description"`
	Signal             string   `json:"signal"`
}

// --- Material events ---

// MaterialEvent is a classified 8-K filing.
type MaterialEvent struct {
	FilingDate      string `json:"filing_date"`
	ItemCode        string `json:"item_code" validate:"required"`
	ItemDescription string `json:"item_description"`
	Severity        int    `json:"severity" validate:"min=1,max=5"`
	Summary         string `json:"summary"`
}

// --- Governance (DEF 14A) ---

// DirectorInfo describes one board member.
type DirectorInfo struct {
	Name          string   `json:"name"`
	IsIndependent *bool    `json:"is_independent"`
	Committees    []string `json:"committees"`
	Role          *string  `json:"role"`
	Age           *int     `json:"age"`
	DirectorSince *int     `json:"director_since"`
}

// NEOCompensation is a named executive officer's pay breakdown.
type NEOCompensation struct {
	Name               string   `json:"name"`
	Title              *string  `json:"title"`
	TotalComp          *float64 `json:"total_comp"`
	Salary             *float64 `json:"salary"`
	StockAwards        *float64 `json:"stock_awards"`
	NonEquityIncentive *float64 `json:"non_equity_incentive"`
	OtherComp          *float64 `json:"other_comp"`
	FiscalYear         *int     `json:"fiscal_year"`
}

// GovernanceData holds compensation, board and anti-takeover data.
type GovernanceData struct {
	// CEO compensation
	CEOName           string   `json:"ceo_name"`
	CEOTotalComp      *float64 `json:"ceo_total_comp"`
	CEOCompPrior      *float64 `json:"ceo_comp_prior"`
	CEOPayGrowth      *float64 `json:"ceo_pay_growth"`
	MedianEmployeePay *float64 `json:"median_employee_pay"`
	CEOPayRatio       *float64 `json:"ceo_pay_ratio"`

	// Board composition
	BoardSize            *int           `json:"board_size"`
	IndependentDirectors *int           `json:"independent_directors"`
	BoardIndependencePct *float64       `json:"board_independence_pct" validate:"omitempty,min=0,max=1"`
	Directors            []DirectorInfo `json:"directors"`

	// Anti-takeover provisions
	HasPoisonPill          *bool    `json:"has_poison_pill"`
	HasStaggeredBoard      *bool    `json:"has_staggered_board"`
	HasDualClass           *bool    `json:"has_dual_class"`
	AntiTakeoverProvisions []string `json:"anti_takeover_provisions"`

	NEOCompensation []NEOCompensation `json:"neo_compensation"`
	GovernanceFlags []string          `json:"governance_flags"`
}

// --- Risk assessment ---

// RiskDimension is one scored risk dimension.
type RiskDimension struct {
	Dimension  string   `json:"dimension" validate:"required"`
	Score      int      `json:"score" validate:"min=1,max=5"`
	Reasoning  string   `json:"reasoning"`
	KeyMetrics []string `json:"key_metrics"`
}

// RedFlag is an issue spotted in the financial data.
type RedFlag struct {
	Flag     string `json:"flag"`
	Severity string `json:"severity"` // Low / Medium / High / Critical
	Evidence string `json:"evidence"`
}

// RiskAssessment is the five-dimension risk score.
type RiskAssessment struct {
	Dimensions     []RiskDimension `json:"dimensions" validate:"required,min=1,dive"`
	CompositeScore float64         `json:"composite_score" validate:"min=1,max=5"`
	RiskLevel      string          `json:"risk_level" validate:"oneof=Low Medium High Critical"`
	RedFlags       []RedFlag       `json:"red_flags"`
}

// --- Cross-workstream ---

// Flag severities.
const (
	SeverityCritical = "Critical"
	SeverityHigh     = "High"
	SeverityMedium   = "Medium"
)

// CrossWorkstreamFlag is a red flag raised by a multi-signal correlation rule.
type CrossWorkstreamFlag struct {
	RuleName            string   `json:"rule_name"`
	Severity            string   `json:"severity"`
	Description         string   `json:"description"`
	WorkstreamsInvolved []string `json:"workstreams_involved"`
	Evidence            []string `json:"evidence"`
}

// Deal recommendations.
const (
	RecommendDoNotProceed   = "DO_NOT_PROCEED"
	RecommendWithConditions = "PROCEED_WITH_CONDITIONS"
	RecommendProceed        = "PROCEED"
)

// --- Memo ---

// MemoSection is a free-form memo section with citations.
type MemoSection struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Citations []string `json:"citations"`
}

// DiligenceMemo is the final due diligence write-up.
type DiligenceMemo struct {
	ExecutiveSummary  string        `json:"executive_summary" validate:"required"`
	CompanyOverview   string        `json:"company_overview"`
	FinancialAnalysis string        `json:"financial_analysis"`
	RiskAssessment    string        `json:"risk_assessment"`
	KeyFindings       []string      `json:"key_findings"`
	Recommendation    string        `json:"recommendation" validate:"required"`
	Sections          []MemoSection `json:"sections"`
	GeneratedAt       string        `json:"generated_at"`
}

// --- Progress ---

// Progress is a pipeline progress event, one per completed stage.
type Progress struct {
	RunID     string `json:"run_id"`
	StageID   string `json:"stage_id"`
	Stage     string `json:"stage"` // layer: bronze / silver / gold / complete / error
	Agent     string `json:"agent"`
	Message   string `json:"message"`
	Percent   int    `json:"progress_pct"`
	Timestamp string `json:"timestamp"`
}
