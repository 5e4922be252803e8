package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/seenimoa/diligenceops/internal/agent/prompts"
	"github.com/seenimoa/diligenceops/internal/analysis/events"
	"github.com/seenimoa/diligenceops/internal/analysis/fundamental"
	"github.com/seenimoa/diligenceops/internal/analysis/proxy"
	"github.com/seenimoa/diligenceops/internal/analysis/risk"
	"github.com/seenimoa/diligenceops/internal/llm"
	"github.com/seenimoa/diligenceops/internal/pipeline"
	"github.com/seenimoa/diligenceops/pkg/models"
)

// ErrInvalidOutput means the narrator's reply could not be decoded or
// failed validation.
var ErrInvalidOutput = errors.New("invalid narrator output")

// Narrator produces the judgement-based parts of a run: classification,
// extraction, scoring and prose. Remote reports whether it calls out to a
// language model; when it does not, stages record that they ran in
// rule-based mode.
type Narrator interface {
	Remote() bool
	AnalyzeRiskFactors(ctx context.Context, company, riskText string) ([]models.RiskFactor, error)
	FlagAnomalies(ctx context.Context, company string, k *models.FinancialKPIs) ([]string, error)
	ExtractGovernance(ctx context.Context, company, proxyText string) (*models.GovernanceData, error)
	ClassifyEvents(ctx context.Context, company string, filings []models.EightKFiling) ([]models.MaterialEvent, error)
	AssessRisk(ctx context.Context, rec *pipeline.Record) (*models.RiskAssessment, error)
	WriteMemo(ctx context.Context, rec *pipeline.Record) (*models.DiligenceMemo, error)
}

// NewNarrator picks the LLM narrator when a provider is available and the
// rule-based one otherwise.
func NewNarrator(p llm.Provider, opts ...NarratorOption) Narrator {
	if p == nil {
		return RuleNarrator{}
	}
	return NewLLMNarrator(p, opts...)
}

// ════════════════════════════════════════════════════════════════════
// Rule-based narrator
// ════════════════════════════════════════════════════════════════════

// RuleNarrator is the deterministic substitute used without an API key
// and as the fallback when model calls fail.
type RuleNarrator struct{}

// PlaceholderRiskFactor stands in for classification without a model.
var PlaceholderRiskFactor = models.RiskFactor{
	Category: "operational",
	Title:    "General Business Risk",
	Summary:  "Risk factors were identified but require LLM for classification.",
	Severity: 3,
}

func (RuleNarrator) Remote() bool { return false }

func (RuleNarrator) AnalyzeRiskFactors(context.Context, string, string) ([]models.RiskFactor, error) {
	return []models.RiskFactor{PlaceholderRiskFactor}, nil
}

func (RuleNarrator) FlagAnomalies(context.Context, string, *models.FinancialKPIs) ([]string, error) {
	return []string{}, nil
}

func (RuleNarrator) ExtractGovernance(context.Context, string, string) (*models.GovernanceData, error) {
	return emptyGovernance(), nil
}

func (RuleNarrator) ClassifyEvents(_ context.Context, _ string, filings []models.EightKFiling) ([]models.MaterialEvent, error) {
	return events.Classify(filings), nil
}

func (RuleNarrator) AssessRisk(_ context.Context, rec *pipeline.Record) (*models.RiskAssessment, error) {
	return risk.Placeholder(rec.KPIs), nil
}

func (RuleNarrator) WriteMemo(_ context.Context, rec *pipeline.Record) (*models.DiligenceMemo, error) {
	return PlaceholderMemo(rec), nil
}

func emptyGovernance() *models.GovernanceData {
	return &models.GovernanceData{
		Directors:              []models.DirectorInfo{},
		AntiTakeoverProvisions: []string{},
		NEOCompensation:        []models.NEOCompensation{},
		GovernanceFlags:        []string{},
	}
}

// ════════════════════════════════════════════════════════════════════
// LLM narrator
// ════════════════════════════════════════════════════════════════════

// Sampling temperatures.
const (
	extractionTemperature = 0.0
	memoTemperature       = 0.3
)

// NarratorOption configures an LLMNarrator.
type NarratorOption func(*LLMNarrator)

// WithProxyBudget sets the excerpt size handed to governance extraction.
func WithProxyBudget(n int) NarratorOption {
	return func(l *LLMNarrator) {
		if n > 0 {
			l.proxyBudget = n
		}
	}
}

// WithNarratorLogger sets the narrator's logger.
func WithNarratorLogger(log *zap.Logger) NarratorOption {
	return func(l *LLMNarrator) {
		if log != nil {
			l.log = log
		}
	}
}

// LLMNarrator asks a language model for JSON and validates the reply.
type LLMNarrator struct {
	provider    llm.Provider
	validate    *validator.Validate
	proxyBudget int
	log         *zap.Logger
}

// NewLLMNarrator wraps p.
func NewLLMNarrator(p llm.Provider, opts ...NarratorOption) *LLMNarrator {
	l := &LLMNarrator{
		provider:    p,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		proxyBudget: proxy.DefaultBudget,
		log:         zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *LLMNarrator) Remote() bool { return true }

// complete runs one JSON-mode exchange for task and decodes the reply into out.
func (l *LLMNarrator) complete(ctx context.Context, task, prompt string, temperature float64, out any) error {
	resp, err := l.provider.Chat(ctx, []llm.Message{
		llm.SystemMessage(prompts.SystemPrompt(task)),
		llm.UserMessage(prompt),
	}, &llm.ChatOptions{Temperature: llm.Temperature(temperature), JSON: true})
	if err != nil {
		return err
	}
	l.log.Debug("narrator reply",
		zap.String("task", task),
		zap.String("model", resp.Model),
		zap.Int("tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", resp.Latency),
	)
	if err := decodeJSON(resp.Content, out); err != nil {
		return fmt.Errorf("%s: %w", task, err)
	}
	return nil
}

// decodeJSON unmarshals the JSON object in content, tolerating markdown
// code fences and prose around it.
func decodeJSON(content string, out any) error {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("%w: no JSON object in reply", ErrInvalidOutput)
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return nil
}

// AnalyzeRiskFactors classifies Item 1A text. Factors that fail validation
// are dropped; a reply with none left is an error.
func (l *LLMNarrator) AnalyzeRiskFactors(ctx context.Context, company, riskText string) ([]models.RiskFactor, error) {
	var out struct {
		RiskFactors []models.RiskFactor `json:"risk_factors"`
	}
	if err := l.complete(ctx, prompts.TaskRiskFactors, prompts.RiskFactors(company, riskText, models.RiskCategories), extractionTemperature, &out); err != nil {
		return nil, err
	}
	factors := make([]models.RiskFactor, 0, len(out.RiskFactors))
	for _, rf := range out.RiskFactors {
		rf.Category = strings.ToLower(strings.TrimSpace(rf.Category))
		if err := l.validate.Struct(rf); err != nil {
			l.log.Debug("dropping risk factor", zap.String("title", rf.Title), zap.Error(err))
			continue
		}
		factors = append(factors, rf)
	}
	if len(factors) == 0 {
		return nil, fmt.Errorf("%w: no valid risk factors", ErrInvalidOutput)
	}
	return factors, nil
}

// FlagAnomalies reviews the KPIs for red flags.
func (l *LLMNarrator) FlagAnomalies(ctx context.Context, company string, k *models.FinancialKPIs) ([]string, error) {
	var out struct {
		Anomalies []string `json:"anomalies"`
	}
	if err := l.complete(ctx, prompts.TaskAnomalies, prompts.Anomalies(company, fundamental.Summary(k)), extractionTemperature, &out); err != nil {
		return nil, err
	}
	anomalies := []string{}
	for _, a := range out.Anomalies {
		if a = strings.TrimSpace(a); a != "" {
			anomalies = append(anomalies, a)
		}
	}
	return anomalies, nil
}

// ExtractGovernance reads compensation and board data from the proxy
// sections that fit the budget. Ratios the text implies but the reply
// omits are derived.
func (l *LLMNarrator) ExtractGovernance(ctx context.Context, company, proxyText string) (*models.GovernanceData, error) {
	excerpt, tags := proxy.Extract(proxyText, l.proxyBudget)
	l.log.Debug("proxy excerpt", zap.Int("chars", len(excerpt)), zap.Strings("sections", tags))

	g := emptyGovernance()
	if err := l.complete(ctx, prompts.TaskGovernance, prompts.Governance(company, excerpt), extractionTemperature, g); err != nil {
		return nil, err
	}
	if g.BoardIndependencePct == nil && g.BoardSize != nil && g.IndependentDirectors != nil && *g.BoardSize > 0 {
		g.BoardIndependencePct = models.Float(float64(*g.IndependentDirectors) / float64(*g.BoardSize))
	}
	if g.CEOPayGrowth == nil && g.CEOTotalComp != nil && g.CEOCompPrior != nil && *g.CEOCompPrior != 0 {
		g.CEOPayGrowth = models.Float((*g.CEOTotalComp - *g.CEOCompPrior) / *g.CEOCompPrior)
	}
	if err := l.validate.Struct(g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if g.Directors == nil {
		g.Directors = []models.DirectorInfo{}
	}
	if g.NEOCompensation == nil {
		g.NEOCompensation = []models.NEOCompensation{}
	}
	if g.AntiTakeoverProvisions == nil {
		g.AntiTakeoverProvisions = []string{}
	}
	if g.GovernanceFlags == nil {
		g.GovernanceFlags = []string{}
	}
	return g, nil
}

// ItemCodeTable renders the 8-K item table for prompts.
func ItemCodeTable() string {
	lines := make([]string, 0, len(events.Items))
	for _, it := range events.Items {
		lines = append(lines, fmt.Sprintf("- %s: %s (default severity %d)", it.Code, it.Label, it.Severity))
	}
	return strings.Join(lines, "\n")
}

// ClassifyEvents assigns item codes and severities to 8-K filings.
func (l *LLMNarrator) ClassifyEvents(ctx context.Context, company string, filings []models.EightKFiling) ([]models.MaterialEvent, error) {
	var out struct {
		Events []models.MaterialEvent `json:"events"`
	}
	if err := l.complete(ctx, prompts.TaskEvents, prompts.Events(company, filings, ItemCodeTable()), extractionTemperature, &out); err != nil {
		return nil, err
	}
	classified := make([]models.MaterialEvent, 0, len(out.Events))
	for _, e := range out.Events {
		if err := l.validate.Struct(e); err != nil {
			l.log.Debug("dropping event", zap.String("date", e.FilingDate), zap.Error(err))
			continue
		}
		if e.ItemDescription == "" {
			if it, ok := events.Lookup(e.ItemCode); ok {
				e.ItemDescription = it.Label
			}
		}
		classified = append(classified, e)
	}
	if len(classified) == 0 && len(filings) > 0 {
		return nil, fmt.Errorf("%w: no valid events", ErrInvalidOutput)
	}
	return classified, nil
}

// AssessRisk scores the five risk dimensions. The composite and level are
// computed locally from the dimension scores.
func (l *LLMNarrator) AssessRisk(ctx context.Context, rec *pipeline.Record) (*models.RiskAssessment, error) {
	c := prompts.RiskContext{
		Company:    rec.CompanyName(),
		Ticker:     rec.Ticker,
		KPISummary: fundamental.Summary(rec.KPIs),
	}
	if info := rec.CompanyInfo; info != nil {
		c.SIC = strings.TrimSpace(strings.Join([]string{info.SIC, info.SICDescription}, " "))
		c.FiscalYearEnd = info.FiscalYearEnd
	}

	var out struct {
		Dimensions []models.RiskDimension `json:"dimensions"`
		RedFlags   []models.RedFlag       `json:"red_flags"`
	}
	if err := l.complete(ctx, prompts.TaskRiskScoring, prompts.RiskScoring(c), extractionTemperature, &out); err != nil {
		return nil, err
	}
	if out.RedFlags == nil {
		out.RedFlags = []models.RedFlag{}
	}
	composite := risk.Composite(out.Dimensions)
	ra := &models.RiskAssessment{
		Dimensions:     out.Dimensions,
		CompositeScore: composite,
		RiskLevel:      risk.Level(composite),
		RedFlags:       out.RedFlags,
	}
	if err := l.validate.Struct(ra); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return ra, nil
}

// WriteMemo drafts the ten-section report from every workstream.
func (l *LLMNarrator) WriteMemo(ctx context.Context, rec *pipeline.Record) (*models.DiligenceMemo, error) {
	c := prompts.MemoContext{
		Company:        rec.CompanyName(),
		Ticker:         rec.Ticker,
		KPISummary:     fundamental.Summary(rec.KPIs),
		RiskDetails:    prompts.RiskDetails(rec.Risk),
		RedFlags:       prompts.RedFlags(rec.Risk),
		RiskFactors:    prompts.RiskFactorList(rec.RiskFactors),
		Insider:        prompts.Insider(rec.InsiderSignal),
		Institutional:  prompts.Holders(rec.Holders),
		Events:         prompts.EventList(rec.Events),
		Governance:     prompts.GovernanceSummary(rec.Governance),
		CrossFlags:     prompts.CrossFlags(rec.Flags),
		Recommendation: recommendation(rec),
	}
	if rec.KPIs != nil {
		c.FiscalYear = rec.KPIs.FiscalYear
	}
	if rec.Risk != nil {
		c.RiskLevel = rec.Risk.RiskLevel
		c.Composite = rec.Risk.CompositeScore
	}

	var memo models.DiligenceMemo
	if err := l.complete(ctx, prompts.TaskMemo, prompts.Memo(c), memoTemperature, &memo); err != nil {
		return nil, err
	}
	if err := l.validate.Struct(memo); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if memo.KeyFindings == nil {
		memo.KeyFindings = []string{}
	}
	return &memo, nil
}

// recommendation returns the run's deal recommendation, defaulting to
// PROCEED when the cross-workstream stage set none.
func recommendation(rec *pipeline.Record) string {
	if rec.Recommendation == "" {
		return models.RecommendProceed
	}
	return rec.Recommendation
}
