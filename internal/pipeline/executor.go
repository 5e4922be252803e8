package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/diligenceops/pkg/models"
)

// ErrStagePanic wraps a panic recovered from a stage.
var ErrStagePanic = errors.New("pipeline: stage panicked")

// Stage is one unit of pipeline work. Run receives a read-only snapshot of
// the record taken when the stage became runnable. A returned error aborts
// the run; recoverable failures belong in Update.Errors.
type Stage interface {
	Run(ctx context.Context, rec *Record) (Update, error)
}

// StageFunc adapts a function to Stage.
type StageFunc func(ctx context.Context, rec *Record) (Update, error)

// Run implements Stage.
func (f StageFunc) Run(ctx context.Context, rec *Record) (Update, error) { return f(ctx, rec) }

// Sink receives progress events. It is always called from a single
// goroutine, in merge order.
type Sink func(models.Progress)

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMerge replaces the default merge function.
func WithMerge(m MergeFunc) Option {
	return func(e *Executor) { e.merge = m }
}

// WithClock overrides the timestamp source for progress events.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// Executor runs stages in dependency order. Every stage whose dependencies
// have all merged is launched immediately; there is no concurrency cap.
type Executor struct {
	graph  *Graph
	stages map[StageID]Stage
	merge  MergeFunc
	log    *zap.Logger
	now    func() time.Time
}

// NewExecutor binds a stage implementation to every node of g.
func NewExecutor(g *Graph, stages map[StageID]Stage, opts ...Option) (*Executor, error) {
	for _, id := range g.Order() {
		if stages[id] == nil {
			return nil, fmt.Errorf("%w: no implementation for %s", ErrUnknownStage, id)
		}
	}
	for id := range stages {
		if _, ok := g.Node(id); !ok {
			return nil, fmt.Errorf("%w: %s is not in the graph", ErrUnknownStage, id)
		}
	}
	e := &Executor{
		graph:  g,
		stages: stages,
		merge:  Merge,
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

type runIDKey struct{}

// WithRunID attaches a run identifier that Run stamps on the record and on
// every progress event.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFrom returns the run identifier attached to ctx.
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

type completion struct {
	id     StageID
	update Update
	err    error
	took   time.Duration
}

// Run executes the pipeline for ticker and returns the merged record. A
// stage error, a panic, a merge failure or cancellation of ctx aborts the
// run; the partial record is returned alongside the error. sink may be nil.
func (e *Executor) Run(ctx context.Context, ticker string, sink Sink) (*Record, error) {
	runID := RunIDFrom(ctx)
	rec := NewRecord(runID, ticker)
	log := e.log.With(zap.String("run_id", runID), zap.String("ticker", ticker))
	if sink == nil {
		sink = func(models.Progress) {}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	done := make(chan completion)
	launch := func(id StageID) {
		snap := rec.Snapshot()
		stage := e.stages[id]
		g.Go(func() error {
			start := time.Now()
			u, err := runStage(gctx, id, stage, snap)
			select {
			case done <- completion{id: id, update: u, err: err, took: time.Since(start)}:
			case <-gctx.Done():
			}
			return err
		})
	}

	remaining := e.graph.Indegrees()
	for _, id := range e.graph.Order() {
		if remaining[id] == 0 {
			launch(id)
		}
	}

	log.Info("pipeline: run started", zap.Int("stages", e.graph.Len()))
	var runErr error
	var last int
loop:
	for {
		select {
		case c := <-done:
			node, _ := e.graph.Node(c.id)
			if c.err != nil {
				runErr = fmt.Errorf("stage %s: %w", c.id, c.err)
				break loop
			}
			if err := e.merge(rec, c.id, c.update); err != nil {
				runErr = fmt.Errorf("merge %s: %w", c.id, err)
				break loop
			}
			log.Debug("pipeline: stage merged",
				zap.String("stage", string(c.id)),
				zap.Duration("took", c.took),
				zap.Int("errors", len(c.update.Errors)),
			)

			msg, ok := c.update.LastProgress()
			if !ok {
				msg = "Completed " + string(c.id)
			}
			last = node.Percent
			sink(e.event(runID, string(c.id), node.Layer, node.Agent, msg, node.Percent))

			if c.id == e.graph.Terminal() {
				break loop
			}
			for _, d := range e.graph.Dependents(c.id) {
				remaining[d]--
				if remaining[d] == 0 {
					launch(d)
				}
			}
		case <-gctx.Done():
			runErr = context.Cause(gctx)
			break loop
		}
	}

	cancel()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}

	if runErr != nil {
		log.Error("pipeline: run aborted", zap.Error(runErr))
		sink(e.event(runID, "", LayerError, "pipeline", runErr.Error(), last))
		return rec, runErr
	}

	log.Info("pipeline: run complete", zap.Int("errors", len(rec.Errors)))
	sink(e.event(runID, "", LayerComplete, "pipeline", "Pipeline complete for "+ticker, 100))
	return rec, nil
}

func (e *Executor) event(runID, stage, layer, agent, msg string, pct int) models.Progress {
	return models.Progress{
		RunID:     runID,
		StageID:   stage,
		Stage:     layer,
		Agent:     agent,
		Message:   msg,
		Percent:   pct,
		Timestamp: e.now().UTC().Format(time.RFC3339),
	}
}

// runStage invokes s, converting a panic into an error.
func runStage(ctx context.Context, id StageID, s Stage, snap *Record) (u Update, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrStagePanic, id, r)
		}
	}()
	return s.Run(ctx, snap)
}
