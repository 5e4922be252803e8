package agent

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/seenimoa/diligenceops/internal/analysis/confidence"
	"github.com/seenimoa/diligenceops/internal/analysis/correlation"
	"github.com/seenimoa/diligenceops/internal/analysis/risk"
	"github.com/seenimoa/diligenceops/internal/pipeline"
	"github.com/seenimoa/diligenceops/internal/store"
	"github.com/seenimoa/diligenceops/pkg/models"
	"github.com/seenimoa/diligenceops/pkg/utils"
)

func (s *stages) writeGold(table string, t *store.Table, sourceTables string) (string, error) {
	path, err := s.Artifacts.WriteGold(table, t, sourceTables)
	if err != nil {
		return "", fmt.Errorf("write gold %s: %w", table, err)
	}
	return path, nil
}

// ════════════════════════════════════════════════════════════════════
// Risk assessment
// ════════════════════════════════════════════════════════════════════

func (s *stages) riskAssessment(ctx context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	var u pipeline.Update
	if rec.KPIs == nil {
		u.Errors = []string{"No silver KPIs available for risk analysis"}
		u.Status = pipeline.StatusError
		u.ProgressMessages = []string{"Gold risk: no KPI data"}
		return u, nil
	}

	var ra *models.RiskAssessment
	if !s.Narrator.Remote() {
		ra = risk.Placeholder(rec.KPIs)
		u.Errors = append(u.Errors, "Risk analysis used placeholder scores (no API key)")
	} else {
		var err error
		ra, err = s.Narrator.AssessRisk(ctx, rec)
		failed, cerr := narrationFailed(ctx, err)
		if cerr != nil {
			return u, cerr
		}
		if failed {
			s.logFor(ctx, rec, pipeline.StageRiskAssessment).Error("risk scoring failed", zap.Error(err))
			ra = risk.Placeholder(rec.KPIs)
			u.Errors = append(u.Errors, fmt.Sprintf("LLM risk analysis failed, using placeholder: %v", err))
		}
	}

	path, err := s.writeGold("risk_assessment", RiskTable(ra), "silver_financial_kpis.csv")
	if err != nil {
		return u, err
	}
	u.Risk = ra
	u.Artifacts = lineage(path)
	u.Status = pipeline.StatusGold
	u.ProgressMessages = []string{fmt.Sprintf("Risk analysis: %s (%.1f/5.0)", ra.RiskLevel, ra.CompositeScore)}
	return u, nil
}

// RiskTable renders the dimensions, a COMPOSITE row and one row per red flag.
func RiskTable(ra *models.RiskAssessment) *store.Table {
	t := store.NewTable("dimension", "score", "reasoning", "key_metrics")
	for _, d := range ra.Dimensions {
		t.Add(d.Dimension, strconv.Itoa(d.Score), d.Reasoning, strings.Join(d.KeyMetrics, "; "))
	}
	t.Add("COMPOSITE", strconv.FormatFloat(utils.Round2(ra.CompositeScore), 'f', -1, 64), "Risk Level: "+ra.RiskLevel, "")
	for _, f := range ra.RedFlags {
		t.Add("RED_FLAG: "+f.Flag, f.Severity, f.Evidence, "")
	}
	return t
}

// ════════════════════════════════════════════════════════════════════
// Cross-workstream correlation
// ════════════════════════════════════════════════════════════════════

func (s *stages) crossWorkstream(ctx context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	var u pipeline.Update
	flags := correlation.Evaluate(correlation.Input{
		KPIs:        rec.KPIs,
		Insider:     rec.InsiderSignal,
		Events:      rec.Events,
		Governance:  rec.Governance,
		Holders:     rec.Holders,
		RiskFactors: rec.RiskFactors,
		Risk:        rec.Risk,
	})
	deal := correlation.Recommend(flags, rec.Risk)
	s.logFor(ctx, rec, pipeline.StageCrossWorkstream).Debug("correlation rules evaluated",
		zap.Int("flags", len(flags)), zap.String("recommendation", deal))

	path, err := s.writeGold("cross_workstream_flags", FlagsTable(flags), "all silver tables + gold_risk_assessment.csv")
	if err != nil {
		return u, err
	}
	u.Flags = flags
	u.Recommendation = deal
	u.Artifacts = lineage(path)
	u.ProgressMessages = []string{fmt.Sprintf("Cross-workstream: %d flags, recommendation=%s", len(flags), deal)}
	return u, nil
}

// FlagsTable renders one row per triggered correlation rule.
func FlagsTable(flags []models.CrossWorkstreamFlag) *store.Table {
	t := store.NewTable("rule_name", "severity", "description", "workstreams_involved", "evidence")
	for _, f := range flags {
		t.Add(f.RuleName, f.Severity, f.Description, store.List(f.WorkstreamsInvolved, "; "), store.List(f.Evidence, "; "))
	}
	return t
}

// ════════════════════════════════════════════════════════════════════
// Memo
// ════════════════════════════════════════════════════════════════════

func (s *stages) memo(ctx context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	var u pipeline.Update
	if rec.KPIs == nil || rec.Risk == nil {
		u.Errors = []string{"Missing KPIs or risk scores for report generation"}
		u.Status = pipeline.StatusError
		u.ProgressMessages = []string{"Gold memo: insufficient data for report"}
		return u, nil
	}

	var memo *models.DiligenceMemo
	if !s.Narrator.Remote() {
		memo = PlaceholderMemo(rec)
	} else {
		var err error
		memo, err = s.Narrator.WriteMemo(ctx, rec)
		failed, cerr := narrationFailed(ctx, err)
		if cerr != nil {
			return u, cerr
		}
		if failed {
			s.logFor(ctx, rec, pipeline.StageMemo).Error("memo generation failed", zap.Error(err))
			memo = PlaceholderMemo(rec)
			u.Errors = append(u.Errors, fmt.Sprintf("LLM memo generation failed: %v", err))
		}
	}
	memo.GeneratedAt = utils.FormatStamp(s.Now())

	in := confidence.Input{
		KPIs:          rec.KPIs,
		Risk:          rec.Risk,
		Memo:          memo,
		RiskFactors:   len(rec.RiskFactors),
		InsiderTrades: len(rec.InsiderTrades),
		Holders:       len(rec.Holders),
		Events:        len(rec.Events),
	}
	if rec.Governance != nil {
		in.CEOName = rec.Governance.CEOName
	}
	score := confidence.Score(in)

	report := RenderReport(rec, memo, score)
	path, err := s.Artifacts.WriteResult("diligence_memo", report)
	if err != nil {
		return u, fmt.Errorf("write result diligence_memo: %w", err)
	}
	u.Memo = memo
	u.Report = report
	u.Confidence = score
	u.Artifacts = lineage(path)
	u.Status = pipeline.StatusComplete
	u.ProgressMessages = []string{fmt.Sprintf("DD report generated: %s (confidence: %d%%)",
		recommendation(rec), int(math.Round(score*100)))}
	return u, nil
}
