package pipeline

import (
	"errors"
	"fmt"
)

// ErrOwnership is returned when a stage writes a field it does not own.
var ErrOwnership = errors.New("pipeline: field written by non-owner stage")

// MergeFunc folds a stage's update into the record.
type MergeFunc func(rec *Record, stage StageID, u Update) error

// field binds one Update field to its owning stage.
type field struct {
	name  string
	owner StageID
	set   func(u *Update) bool
	apply func(r *Record, u *Update)
}

// fields is the owner table. Each single-writer field appears once.
var fields = []field{
	{"company_info", StageResolver, func(u *Update) bool { return u.CompanyInfo != nil }, func(r *Record, u *Update) { r.CompanyInfo = u.CompanyInfo }},
	{"bronze_facts", StageXBRL, func(u *Update) bool { return u.Facts != nil }, func(r *Record, u *Update) { r.Facts = u.Facts }},
	{"bronze_10k_risk_text", StageTenK, func(u *Update) bool { return u.RiskText != "" }, func(r *Record, u *Update) { r.RiskText = u.RiskText }},
	{"bronze_form4_transactions", StageForm4, func(u *Update) bool { return u.Form4 != nil }, func(r *Record, u *Update) { r.Form4 = u.Form4 }},
	{"bronze_13f_holdings", Stage13F, func(u *Update) bool { return u.Holdings != nil }, func(r *Record, u *Update) { r.Holdings = u.Holdings }},
	{"bronze_8k_filings", StageEightK, func(u *Update) bool { return u.EightK != nil }, func(r *Record, u *Update) { r.EightK = u.EightK }},
	{"bronze_def14a_proxy", StageDEF14A, func(u *Update) bool { return u.Proxy != nil }, func(r *Record, u *Update) { r.Proxy = u.Proxy }},

	{"silver_kpis", StageKPIs, func(u *Update) bool { return u.KPIs != nil }, func(r *Record, u *Update) { r.KPIs = u.KPIs }},
	{"silver_risk_factors", StageRiskFactors, func(u *Update) bool { return u.RiskFactors != nil }, func(r *Record, u *Update) { r.RiskFactors = u.RiskFactors }},
	{"silver_insider_trades", StageInsider, func(u *Update) bool { return u.InsiderTrades != nil }, func(r *Record, u *Update) { r.InsiderTrades = u.InsiderTrades }},
	{"silver_insider_signal", StageInsider, func(u *Update) bool { return u.InsiderSignal != nil }, func(r *Record, u *Update) { r.InsiderSignal = u.InsiderSignal }},
	{"silver_institutional_holders", StageInstitutional, func(u *Update) bool { return u.Holders != nil }, func(r *Record, u *Update) { r.Holders = u.Holders }},
	{"silver_material_events", StageMaterialEvents, func(u *Update) bool { return u.Events != nil }, func(r *Record, u *Update) { r.Events = u.Events }},
	{"silver_governance", StageGovernance, func(u *Update) bool { return u.Governance != nil }, func(r *Record, u *Update) { r.Governance = u.Governance }},

	{"gold_risk_scores", StageRiskAssessment, func(u *Update) bool { return u.Risk != nil }, func(r *Record, u *Update) { r.Risk = u.Risk }},
	{"gold_cross_workstream_flags", StageCrossWorkstream, func(u *Update) bool { return u.Flags != nil }, func(r *Record, u *Update) { r.Flags = u.Flags }},
	{"deal_recommendation", StageCrossWorkstream, func(u *Update) bool { return u.Recommendation != "" }, func(r *Record, u *Update) { r.Recommendation = u.Recommendation }},
	{"result_memo", StageMemo, func(u *Update) bool { return u.Memo != nil }, func(r *Record, u *Update) { r.Memo = u.Memo }},
	{"result_report", StageMemo, func(u *Update) bool { return u.Report != "" }, func(r *Record, u *Update) { r.Report = u.Report }},
	{"confidence", StageMemo, func(u *Update) bool { return u.Confidence != 0 }, func(r *Record, u *Update) { r.Confidence = u.Confidence }},
}

// Owner returns the stage that owns the named record field.
func Owner(name string) (StageID, bool) {
	for _, f := range fields {
		if f.name == name {
			return f.owner, true
		}
	}
	return "", false
}

// Merge is the default MergeFunc. Single-writer fields are overwritten after
// the owner check; Errors and ProgressMessages are concatenated. Per-stage
// artifacts and status are keyed by stage. On an ownership violation rec is
// left unchanged.
func Merge(rec *Record, stage StageID, u Update) error {
	for _, f := range fields {
		if f.set(&u) && f.owner != stage {
			return fmt.Errorf("%w: %s wrote %s (owner %s)", ErrOwnership, stage, f.name, f.owner)
		}
	}
	for _, f := range fields {
		if f.set(&u) {
			f.apply(rec, &u)
		}
	}
	if len(u.Artifacts) > 0 {
		if rec.Artifacts == nil {
			rec.Artifacts = map[StageID][]string{}
		}
		rec.Artifacts[stage] = u.Artifacts
	}
	if u.Status != "" {
		if rec.Statuses == nil {
			rec.Statuses = map[StageID]string{}
		}
		rec.Statuses[stage] = u.Status
		rec.CurrentStage = u.Status
	}
	rec.Errors = append(rec.Errors, u.Errors...)
	rec.ProgressMessages = append(rec.ProgressMessages, u.ProgressMessages...)
	return nil
}
