package agent

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/seenimoa/diligenceops/internal/analysis/fundamental"
	"github.com/seenimoa/diligenceops/internal/analysis/insider"
	"github.com/seenimoa/diligenceops/internal/analysis/ownership"
	"github.com/seenimoa/diligenceops/internal/pipeline"
	"github.com/seenimoa/diligenceops/internal/store"
	"github.com/seenimoa/diligenceops/pkg/models"
)

func (s *stages) writeSilver(table string, t *store.Table, sourceBronze string) (string, error) {
	path, err := s.Artifacts.WriteSilver(table, t, sourceBronze)
	if err != nil {
		return "", fmt.Errorf("write silver %s: %w", table, err)
	}
	return path, nil
}

// narrationFailed reports whether err should fall back to rules. A
// cancelled context is not a narration failure.
func narrationFailed(ctx context.Context, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return true, nil
}

// truncateText cuts s to at most n bytes on a rune boundary.
func truncateText(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ════════════════════════════════════════════════════════════════════
// Financial KPIs
// ════════════════════════════════════════════════════════════════════

func (s *stages) kpis(ctx context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	var u pipeline.Update
	if len(rec.Facts) == 0 {
		u.Errors = []string{"No bronze facts available for KPI extraction"}
		u.Status = pipeline.StatusError
		u.ProgressMessages = []string{"Silver KPIs: no bronze data to extract from"}
		return u, nil
	}

	k := fundamental.ExtractKPIs(rec.Facts)
	if s.Narrator.Remote() {
		anomalies, err := s.Narrator.FlagAnomalies(ctx, rec.CompanyName(), k)
		failed, cerr := narrationFailed(ctx, err)
		if cerr != nil {
			return u, cerr
		}
		if failed {
			s.logFor(ctx, rec, pipeline.StageKPIs).Warn("anomaly detection failed", zap.Error(err))
			u.Errors = append(u.Errors, fmt.Sprintf("Anomaly detection skipped: %v", err))
		} else {
			k.Anomalies = anomalies
		}
	}

	path, err := s.writeSilver("financial_kpis", KPITable(k), "bronze_xbrl_facts.csv")
	if err != nil {
		return u, err
	}
	u.KPIs = k
	u.Artifacts = lineage(path)
	u.Status = pipeline.StatusSilver
	u.ProgressMessages = []string{fundamental.Headline(k)}
	return u, nil
}

// KPITable renders one row per metric.
func KPITable(k *models.FinancialKPIs) *store.Table {
	t := store.NewTable("metric", "value", "source_tag", "fiscal_year", "period_end", "currency")
	for _, m := range k.Metrics() {
		tag := k.SourceTags[m.Name]
		if tag == "" {
			tag = "derived"
		}
		t.Add(m.Name, store.Float(m.Value), tag, strconv.Itoa(k.FiscalYear), k.PeriodEnd, k.Currency)
	}
	return t
}

// ════════════════════════════════════════════════════════════════════
// Risk factors
// ════════════════════════════════════════════════════════════════════

func (s *stages) riskFactors(ctx context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	var u pipeline.Update
	if rec.RiskText == "" {
		u.RiskFactors = []models.RiskFactor{}
		u.ProgressMessages = []string{"Silver risk factors: no bronze 10-K data"}
		return u, nil
	}

	text := truncateText(rec.RiskText, s.Settings.RiskTextLimit)
	var factors []models.RiskFactor
	if !s.Narrator.Remote() {
		factors, _ = RuleNarrator{}.AnalyzeRiskFactors(ctx, rec.CompanyName(), text)
		u.Errors = append(u.Errors, "Risk factors used placeholder mode (no API key)")
	} else {
		var err error
		factors, err = s.Narrator.AnalyzeRiskFactors(ctx, rec.CompanyName(), text)
		failed, cerr := narrationFailed(ctx, err)
		if cerr != nil {
			return u, cerr
		}
		if failed {
			s.logFor(ctx, rec, pipeline.StageRiskFactors).Warn("risk factor classification failed", zap.Error(err))
			factors, _ = RuleNarrator{}.AnalyzeRiskFactors(ctx, rec.CompanyName(), text)
			u.Errors = append(u.Errors, fmt.Sprintf("Risk factors LLM failed: %v", err))
		}
	}

	t := store.NewTable("category", "title", "summary", "severity", "is_novel")
	for _, rf := range factors {
		t.Add(rf.Category, rf.Title, rf.Summary, strconv.Itoa(rf.Severity), strconv.FormatBool(rf.IsNovel))
	}
	path, err := s.writeSilver("risk_factors", t, "bronze_10k_risk_text.csv")
	if err != nil {
		return u, err
	}
	u.RiskFactors = factors
	u.Artifacts = lineage(path)
	u.ProgressMessages = []string{fmt.Sprintf("Classified %d risk factors", len(factors))}
	return u, nil
}

// ════════════════════════════════════════════════════════════════════
// Insider signal
// ════════════════════════════════════════════════════════════════════

func (s *stages) insider(_ context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	var u pipeline.Update
	if len(rec.Form4) == 0 {
		sig := insider.Signal(nil)
		u.InsiderTrades = []models.InsiderTransaction{}
		u.InsiderSignal = &sig
		u.ProgressMessages = []string{"Silver insider: no bronze Form 4 data"}
		return u, nil
	}

	sig := insider.Signal(rec.Form4)
	path, err := s.writeSilver("insider_transactions", TradesTable(rec.Form4), "bronze_form4_transactions.csv")
	if err != nil {
		return u, err
	}
	u.InsiderTrades = rec.Form4
	u.InsiderSignal = &sig
	u.Artifacts = lineage(path)
	u.ProgressMessages = []string{fmt.Sprintf("Insider signal: %d buys, %d sells, signal=%s", sig.TotalBuys, sig.TotalSells, sig.Signal)}
	return u, nil
}

// ════════════════════════════════════════════════════════════════════
// Institutional holders
// ════════════════════════════════════════════════════════════════════

func (s *stages) institutional(_ context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	var u pipeline.Update
	if len(rec.Holdings) == 0 {
		u.Holders = []models.InstitutionalHolder{}
		u.ProgressMessages = []string{"Silver institutional: no bronze 13F data"}
		return u, nil
	}

	top := ownership.Classify(rec.Holdings)
	path, err := s.writeSilver("institutional_holders", HoldersTable(top), "bronze_13f_holdings.csv")
	if err != nil {
		return u, err
	}
	u.Holders = top
	u.Artifacts = lineage(path)
	u.ProgressMessages = []string{fmt.Sprintf("Institutional: %d top holders classified", len(top))}
	return u, nil
}

// ════════════════════════════════════════════════════════════════════
// Material events
// ════════════════════════════════════════════════════════════════════

func (s *stages) materialEvents(ctx context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	var u pipeline.Update
	if len(rec.EightK) == 0 {
		u.Events = []models.MaterialEvent{}
		u.ProgressMessages = []string{"Silver events: no bronze 8-K data"}
		return u, nil
	}

	var evs []models.MaterialEvent
	if !s.Narrator.Remote() {
		evs, _ = RuleNarrator{}.ClassifyEvents(ctx, rec.CompanyName(), rec.EightK)
		u.Errors = append(u.Errors, "Material events used rule-based mode (no API key)")
	} else {
		var err error
		evs, err = s.Narrator.ClassifyEvents(ctx, rec.CompanyName(), rec.EightK)
		failed, cerr := narrationFailed(ctx, err)
		if cerr != nil {
			return u, cerr
		}
		if failed {
			s.logFor(ctx, rec, pipeline.StageMaterialEvents).Warn("event classification failed", zap.Error(err))
			evs, _ = RuleNarrator{}.ClassifyEvents(ctx, rec.CompanyName(), rec.EightK)
			u.Errors = append(u.Errors, fmt.Sprintf("Material events LLM failed: %v", err))
		}
	}

	t := store.NewTable("filing_date", "item_code", "item_description", "severity", "summary")
	for _, e := range evs {
		t.Add(e.FilingDate, e.ItemCode, e.ItemDescription, strconv.Itoa(e.Severity), e.Summary)
	}
	path, err := s.writeSilver("material_events", t, "bronze_8k_filings.csv")
	if err != nil {
		return u, err
	}
	u.Events = evs
	u.Artifacts = lineage(path)
	u.ProgressMessages = []string{fmt.Sprintf("Classified %d material events", len(evs))}
	return u, nil
}

// ════════════════════════════════════════════════════════════════════
// Governance
// ════════════════════════════════════════════════════════════════════

func (s *stages) governance(ctx context.Context, rec *pipeline.Record) (pipeline.Update, error) {
	var u pipeline.Update
	if rec.Proxy == nil || rec.Proxy.Text == "" {
		u.Governance = emptyGovernance()
		u.ProgressMessages = []string{"Silver governance: no bronze DEF 14A data"}
		return u, nil
	}

	var g *models.GovernanceData
	if !s.Narrator.Remote() {
		g = emptyGovernance()
		u.Errors = append(u.Errors, "Governance used placeholder mode (no API key)")
	} else {
		var err error
		g, err = s.Narrator.ExtractGovernance(ctx, rec.CompanyName(), rec.Proxy.Text)
		failed, cerr := narrationFailed(ctx, err)
		if cerr != nil {
			return u, cerr
		}
		if failed {
			s.logFor(ctx, rec, pipeline.StageGovernance).Warn("governance extraction failed", zap.Error(err))
			g = emptyGovernance()
			u.Errors = append(u.Errors, fmt.Sprintf("Governance LLM failed: %v", err))
		}
	}

	path, err := s.writeSilver("governance", GovernanceTable(g), "bronze_def14a_proxy.csv")
	if err != nil {
		return u, err
	}
	paths := []string{path}
	if len(g.Directors) > 0 {
		dpath, err := s.writeSilver("governance_directors", DirectorsTable(g.Directors), "bronze_def14a_proxy.csv")
		if err != nil {
			return u, err
		}
		paths = append(paths, dpath)
	}
	u.Governance = g
	u.Artifacts = lineage(paths...)
	u.ProgressMessages = []string{fmt.Sprintf("Governance analysis complete for %s", rec.CompanyName())}
	return u, nil
}

// GovernanceTable flattens the governance record into one row, leaving out
// the director and NEO lists.
func GovernanceTable(g *models.GovernanceData) *store.Table {
	t := store.NewTable("ceo_name", "ceo_total_comp", "ceo_comp_prior", "ceo_pay_growth", "median_employee_pay",
		"ceo_pay_ratio", "board_size", "independent_directors", "board_independence_pct",
		"has_poison_pill", "has_staggered_board", "has_dual_class", "anti_takeover_provisions", "governance_flags")
	t.Add(g.CEOName, store.Float(g.CEOTotalComp), store.Float(g.CEOCompPrior), store.Float(g.CEOPayGrowth),
		store.Float(g.MedianEmployeePay), store.Float(g.CEOPayRatio), store.Int(g.BoardSize),
		store.Int(g.IndependentDirectors), store.Float(g.BoardIndependencePct),
		store.Bool(g.HasPoisonPill), store.Bool(g.HasStaggeredBoard), store.Bool(g.HasDualClass),
		store.List(g.AntiTakeoverProvisions, "; "), store.List(g.GovernanceFlags, "; "))
	return t
}

// DirectorsTable renders the board roster.
func DirectorsTable(ds []models.DirectorInfo) *store.Table {
	t := store.NewTable("name", "is_independent", "committees", "role", "age", "director_since")
	for _, d := range ds {
		t.Add(d.Name, store.Bool(d.IsIndependent), store.List(d.Committees, "; "), store.Str(d.Role),
			store.Int(d.Age), store.Int(d.DirectorSince))
	}
	return t
}
