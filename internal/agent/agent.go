// Package agent implements the sixteen diligence stages: seven bronze
// fetchers over SEC EDGAR, six silver transforms and three gold analytics
// stages. Stages are wired into a pipeline.Executor by Stages.
package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/diligenceops/internal/analysis/proxy"
	"github.com/seenimoa/diligenceops/internal/config"
	"github.com/seenimoa/diligenceops/internal/pipeline"
	"github.com/seenimoa/diligenceops/internal/store"
	"github.com/seenimoa/diligenceops/pkg/models"
)

// ── Collaborators ──

// Filings is the SEC EDGAR surface the bronze stages read from.
// *sec.Client satisfies it.
type Filings interface {
	ResolveCIK(ctx context.Context, ticker string) (string, error)
	CompanyInfo(ctx context.Context, cik string) (*models.CompanyInfo, error)
	CompanyFacts(ctx context.Context, cik string) ([]models.FinancialFact, error)
	RiskFactorText(ctx context.Context, cik string) (string, error)
	Form4Transactions(ctx context.Context, cik string, months, limit int) ([]models.InsiderTransaction, error)
	InstitutionalHolders(ctx context.Context, cik string, limit int) ([]models.InstitutionalHolder, error)
	EightKFilings(ctx context.Context, cik string, months int) ([]models.EightKFiling, error)
	ProxyStatement(ctx context.Context, cik string) (*models.ProxyDocument, error)
}

// Artifacts persists per-stage tables. Each write returns the lineage path
// recorded in Record.Artifacts. *store.CSVWriter satisfies it.
type Artifacts interface {
	WriteBronze(table string, t *store.Table, sourceURL string) (string, error)
	WriteSilver(table string, t *store.Table, sourceBronze string) (string, error)
	WriteGold(table string, t *store.Table, sourceTables string) (string, error)
	WriteResult(name, content string) (string, error)
}

// discardArtifacts drops every table; lineage paths come back empty.
type discardArtifacts struct{}

func (discardArtifacts) WriteBronze(string, *store.Table, string) (string, error) { return "", nil }
func (discardArtifacts) WriteSilver(string, *store.Table, string) (string, error) { return "", nil }
func (discardArtifacts) WriteGold(string, *store.Table, string) (string, error)   { return "", nil }
func (discardArtifacts) WriteResult(string, string) (string, error)              { return "", nil }

// ── Settings ──

// Settings are the ingestion limits the stages apply.
type Settings struct {
	LookbackMonths int
	MaxForm4       int
	Max13G         int
	ProxyBudget    int
	RiskTextLimit  int
	OfflineDir     string
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		LookbackMonths: 12,
		MaxForm4:       50,
		Max13G:         30,
		ProxyBudget:    proxy.DefaultBudget,
		RiskTextLimit:  45_000,
		OfflineDir:     "examples",
	}
}

// SettingsFromConfig copies the ingestion limits out of cfg, keeping the
// defaults for unset values.
func SettingsFromConfig(cfg config.EDGARConfig) Settings {
	s := DefaultSettings()
	if cfg.LookbackMonths > 0 {
		s.LookbackMonths = cfg.LookbackMonths
	}
	if cfg.MaxForm4 > 0 {
		s.MaxForm4 = cfg.MaxForm4
	}
	if cfg.Max13G > 0 {
		s.Max13G = cfg.Max13G
	}
	if cfg.ProxyBudget > 0 {
		s.ProxyBudget = cfg.ProxyBudget
	}
	if cfg.RiskTextLimit > 0 {
		s.RiskTextLimit = cfg.RiskTextLimit
	}
	if cfg.OfflineDir != "" {
		s.OfflineDir = cfg.OfflineDir
	}
	return s
}

// Deps bundles everything the stages need for one run.
type Deps struct {
	Filings   Filings
	Narrator  Narrator
	Artifacts Artifacts
	Settings  Settings
	Log       *zap.Logger
	// Now stamps memo generation; defaults to time.Now.
	Now func() time.Time
}

func (d *Deps) defaults() {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Narrator == nil {
		d.Narrator = RuleNarrator{}
	}
	if d.Artifacts == nil {
		d.Artifacts = discardArtifacts{}
	}
	if d.Settings == (Settings{}) {
		d.Settings = DefaultSettings()
	}
}

// Stages binds one implementation to every stage of the default graph.
func Stages(d Deps) map[pipeline.StageID]pipeline.Stage {
	d.defaults()
	s := &stages{Deps: d}
	return map[pipeline.StageID]pipeline.Stage{
		pipeline.StageResolver:        pipeline.StageFunc(s.resolver),
		pipeline.StageXBRL:            pipeline.StageFunc(s.xbrl),
		pipeline.StageTenK:            pipeline.StageFunc(s.tenK),
		pipeline.StageForm4:           pipeline.StageFunc(s.form4),
		pipeline.Stage13F:             pipeline.StageFunc(s.thirteenG),
		pipeline.StageEightK:          pipeline.StageFunc(s.eightK),
		pipeline.StageDEF14A:          pipeline.StageFunc(s.def14a),
		pipeline.StageKPIs:            pipeline.StageFunc(s.kpis),
		pipeline.StageRiskFactors:     pipeline.StageFunc(s.riskFactors),
		pipeline.StageInsider:         pipeline.StageFunc(s.insider),
		pipeline.StageInstitutional:   pipeline.StageFunc(s.institutional),
		pipeline.StageMaterialEvents:  pipeline.StageFunc(s.materialEvents),
		pipeline.StageGovernance:      pipeline.StageFunc(s.governance),
		pipeline.StageRiskAssessment:  pipeline.StageFunc(s.riskAssessment),
		pipeline.StageCrossWorkstream: pipeline.StageFunc(s.crossWorkstream),
		pipeline.StageMemo:            pipeline.StageFunc(s.memo),
	}
}

// NewPipeline returns an executor over the default graph with d's stages.
func NewPipeline(d Deps, opts ...pipeline.Option) (*pipeline.Executor, error) {
	return pipeline.NewExecutor(pipeline.DefaultGraph(), Stages(d), opts...)
}

// stages carries the shared dependencies of every stage method.
type stages struct {
	Deps
}

func (s *stages) logFor(ctx context.Context, rec *pipeline.Record, stage pipeline.StageID) *zap.Logger {
	return s.Log.With(
		zap.String("run_id", pipeline.RunIDFrom(ctx)),
		zap.String("ticker", rec.Ticker),
		zap.String("stage", string(stage)),
	)
}
