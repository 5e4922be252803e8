package pipeline

import (
	"maps"
	"slices"

	"github.com/seenimoa/diligenceops/pkg/models"
)

// Stage statuses recorded in Record.Statuses. A stage that handled a
// missing precondition reports StatusError; the run continues.
const (
	StatusBronze   = "bronze"
	StatusSilver   = "silver"
	StatusGold     = "gold"
	StatusComplete = "complete"
	StatusError    = "error"
)

// Record is the result of one pipeline run. Every non-list field has exactly
// one writing stage; Errors and ProgressMessages are appended to by all.
type Record struct {
	RunID  string `json:"run_id"`
	Ticker string `json:"ticker"`

	// Bronze
	CompanyInfo *models.CompanyInfo          `json:"company_info"`
	Facts       []models.FinancialFact       `json:"bronze_facts,omitempty"`
	RiskText    string                       `json:"-"`
	Form4       []models.InsiderTransaction  `json:"bronze_form4_transactions,omitempty"`
	Holdings    []models.InstitutionalHolder `json:"bronze_13f_holdings,omitempty"`
	EightK      []models.EightKFiling        `json:"bronze_8k_filings,omitempty"`
	Proxy       *models.ProxyDocument        `json:"-"`

	// Silver
	KPIs          *models.FinancialKPIs        `json:"kpis"`
	RiskFactors   []models.RiskFactor          `json:"risk_factors"`
	InsiderTrades []models.InsiderTransaction  `json:"insider_trades"`
	InsiderSignal *models.InsiderSignal        `json:"insider_signal"`
	Holders       []models.InstitutionalHolder `json:"institutional_holders"`
	Events        []models.MaterialEvent       `json:"material_events"`
	Governance    *models.GovernanceData       `json:"governance"`

	// Gold
	Risk           *models.RiskAssessment       `json:"risk_scores"`
	Flags          []models.CrossWorkstreamFlag `json:"cross_workstream_flags"`
	Recommendation string                       `json:"deal_recommendation"`
	Memo           *models.DiligenceMemo        `json:"memo"`
	Report         string                       `json:"report,omitempty"`
	Confidence     float64                      `json:"confidence"`

	// Run metadata
	Artifacts        map[StageID][]string `json:"artifacts"`
	Statuses         map[StageID]string   `json:"statuses"`
	CurrentStage     string               `json:"current_stage"`
	Errors           []string             `json:"errors"`
	ProgressMessages []string             `json:"progress_messages"`
}

// NewRecord returns an empty record for ticker.
func NewRecord(runID, ticker string) *Record {
	return &Record{
		RunID:            runID,
		Ticker:           ticker,
		Artifacts:        map[StageID][]string{},
		Statuses:         map[StageID]string{},
		Errors:           []string{},
		ProgressMessages: []string{},
	}
}

// Snapshot returns a copy that is safe to read while r keeps merging.
// Entities are never mutated after creation, so they are shared.
func (r *Record) Snapshot() *Record {
	s := *r
	s.Artifacts = maps.Clone(r.Artifacts)
	s.Statuses = maps.Clone(r.Statuses)
	s.Errors = slices.Clip(r.Errors)
	s.ProgressMessages = slices.Clip(r.ProgressMessages)
	return &s
}

// CompanyName returns the resolved company name, or the ticker.
func (r *Record) CompanyName() string {
	if r.CompanyInfo != nil && r.CompanyInfo.CompanyName != "" {
		return r.CompanyInfo.CompanyName
	}
	return r.Ticker
}

// Update is the partial output of one stage. Zero-valued fields are not
// written; a nil slice means "unset" while an empty slice overwrites.
type Update struct {
	CompanyInfo *models.CompanyInfo
	Facts       []models.FinancialFact
	RiskText    string
	Form4       []models.InsiderTransaction
	Holdings    []models.InstitutionalHolder
	EightK      []models.EightKFiling
	Proxy       *models.ProxyDocument

	KPIs          *models.FinancialKPIs
	RiskFactors   []models.RiskFactor
	InsiderTrades []models.InsiderTransaction
	InsiderSignal *models.InsiderSignal
	Holders       []models.InstitutionalHolder
	Events        []models.MaterialEvent
	Governance    *models.GovernanceData

	Risk           *models.RiskAssessment
	Flags          []models.CrossWorkstreamFlag
	Recommendation string
	Memo           *models.DiligenceMemo
	Report         string
	Confidence     float64

	// Artifacts are lineage strings for tables written by the stage.
	Artifacts []string
	// Status marks the stage's outcome and becomes the record's current stage.
	Status           string
	Errors           []string
	ProgressMessages []string
}

// LastProgress returns the update's final progress message, if any.
func (u Update) LastProgress() (string, bool) {
	if len(u.ProgressMessages) == 0 {
		return "", false
	}
	return u.ProgressMessages[len(u.ProgressMessages)-1], true
}
