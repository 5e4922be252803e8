package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/diligenceops/internal/config"
	"github.com/seenimoa/diligenceops/internal/llm"
	"github.com/seenimoa/diligenceops/internal/pipeline"
	"github.com/seenimoa/diligenceops/internal/providers/sec"
	"github.com/seenimoa/diligenceops/internal/store"
)

// Runner executes diligence runs over shared collaborators. Each run gets
// its own artifact directory under OutputDir.
type Runner struct {
	Filings   Filings
	Narrator  Narrator
	Settings  Settings
	OutputDir string
	Log       *zap.Logger
	Now       func() time.Time
}

// Result is the outcome of one run.
type Result struct {
	Record    *pipeline.Record
	Metadata  *store.RunMetadata
	OutputDir string
}

// NewRunnerFromConfig wires the EDGAR client and the narrator from cfg.
// Without an LLM key the rule-based narrator is used.
func NewRunnerFromConfig(cfg *config.Config, log *zap.Logger) (*Runner, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var narrator Narrator = RuleNarrator{}
	router, err := llm.NewRouterFromConfig(cfg, log)
	switch {
	case errors.Is(err, llm.ErrNoAPIKey):
		log.Warn("no LLM API key configured, narration runs in rule-based mode")
	case err != nil:
		return nil, fmt.Errorf("llm setup: %w", err)
	default:
		narrator = NewLLMNarrator(router,
			WithProxyBudget(cfg.EDGAR.ProxyBudget),
			WithNarratorLogger(log.Named("narrator")),
		)
	}

	return &Runner{
		Filings:   sec.NewFromConfig(cfg.EDGAR, log.Named("sec")),
		Narrator:  narrator,
		Settings:  SettingsFromConfig(cfg.EDGAR),
		OutputDir: cfg.Output.Dir,
		Log:       log,
	}, nil
}

// Run executes the pipeline for ticker and writes the run metadata, also
// when the run aborted. The partial result is returned with the error.
func (r *Runner) Run(ctx context.Context, runID, ticker string, sink pipeline.Sink) (*Result, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	w := store.NewCSVWriter(r.OutputDir, ticker).WithClock(now)
	exec, err := NewPipeline(Deps{
		Filings:   r.Filings,
		Narrator:  r.Narrator,
		Artifacts: w,
		Settings:  r.Settings,
		Log:       log,
		Now:       now,
	}, pipeline.WithLogger(log.Named("pipeline")), pipeline.WithClock(now))
	if err != nil {
		return nil, err
	}

	started := now()
	rec, runErr := exec.Run(pipeline.WithRunID(ctx, runID), ticker, sink)
	res := &Result{Record: rec, OutputDir: w.Dir()}

	errs := rec.Errors
	if runErr != nil {
		errs = append(errs[:len(errs):len(errs)], runErr.Error())
	}
	meta, err := w.WriteRunMetadata(runID, started, errs)
	if err != nil {
		log.Error("write run metadata", zap.String("run_id", runID), zap.Error(err))
	}
	res.Metadata = meta
	return res, runErr
}
