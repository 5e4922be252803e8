// Package pipeline runs the diligence stages over a static dependency graph
// and merges their updates into a single Record.
package pipeline

import (
	"errors"
	"fmt"
)

// StageID identifies a pipeline stage.
type StageID string

// Stage identifiers.
const (
	StageResolver        StageID = "bronze_resolver"
	StageXBRL            StageID = "bronze_xbrl"
	StageTenK            StageID = "bronze_10k"
	StageForm4           StageID = "bronze_form4"
	Stage13F             StageID = "bronze_13f"
	StageEightK          StageID = "bronze_8k"
	StageDEF14A          StageID = "bronze_def14a"
	StageKPIs            StageID = "silver_financial_kpis"
	StageRiskFactors     StageID = "silver_risk_factors"
	StageInsider         StageID = "silver_insider_signal"
	StageInstitutional   StageID = "silver_institutional"
	StageMaterialEvents  StageID = "silver_material_events"
	StageGovernance      StageID = "silver_governance"
	StageRiskAssessment  StageID = "gold_risk_assessment"
	StageCrossWorkstream StageID = "gold_cross_workstream"
	StageMemo            StageID = "gold_memo"
)

// Layer tags.
const (
	LayerBronze   = "bronze"
	LayerSilver   = "silver"
	LayerGold     = "gold"
	LayerComplete = "complete"
	LayerError    = "error"
)

var (
	ErrUnknownStage   = errors.New("pipeline: unknown stage")
	ErrDuplicateStage = errors.New("pipeline: duplicate stage")
	ErrCycle          = errors.New("pipeline: dependency cycle")
	ErrNoTerminal     = errors.New("pipeline: graph must have exactly one terminal stage")
)

// Node declares one stage and its dependencies.
type Node struct {
	ID      StageID
	Agent   string
	Layer   string
	Percent int
	Deps    []StageID
}

// Graph is a validated, acyclic stage graph with a single terminal stage.
type Graph struct {
	nodes      map[StageID]Node
	order      []StageID
	dependents map[StageID][]StageID
	terminal   StageID
}

// NewGraph validates nodes and computes a topological order.
func NewGraph(nodes []Node) (*Graph, error) {
	g := &Graph{
		nodes:      make(map[StageID]Node, len(nodes)),
		dependents: make(map[StageID][]StageID, len(nodes)),
	}
	declared := make([]StageID, 0, len(nodes))
	for _, n := range nodes {
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStage, n.ID)
		}
		g.nodes[n.ID] = n
		declared = append(declared, n.ID)
	}
	for _, id := range declared {
		for _, dep := range g.nodes[id].Deps {
			if _, ok := g.nodes[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownStage, id, dep)
			}
			g.dependents[dep] = append(g.dependents[dep], id)
		}
	}

	// Kahn's algorithm, seeded in declaration order.
	indegree := g.Indegrees()
	queue := make([]StageID, 0, len(declared))
	for _, id := range declared {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		g.order = append(g.order, id)
		for _, d := range g.dependents[id] {
			indegree[d]--
			if indegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}
	if len(g.order) != len(declared) {
		return nil, ErrCycle
	}

	var sinks []StageID
	for _, id := range declared {
		if len(g.dependents[id]) == 0 {
			sinks = append(sinks, id)
		}
	}
	if len(sinks) != 1 {
		return nil, fmt.Errorf("%w: found %v", ErrNoTerminal, sinks)
	}
	g.terminal = sinks[0]
	return g, nil
}

// Node returns the declaration for id.
func (g *Graph) Node(id StageID) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Order returns the stages in a dependency-respecting order.
func (g *Graph) Order() []StageID {
	return append([]StageID(nil), g.order...)
}

// Dependents returns the stages that declare id as a dependency.
func (g *Graph) Dependents(id StageID) []StageID {
	return g.dependents[id]
}

// Terminal returns the stage whose completion ends a run.
func (g *Graph) Terminal() StageID { return g.terminal }

// Indegrees returns the unsatisfied-dependency count of every stage.
func (g *Graph) Indegrees() map[StageID]int {
	out := make(map[StageID]int, len(g.nodes))
	for id, n := range g.nodes {
		out[id] = len(n.Deps)
	}
	return out
}

// Len returns the number of stages.
func (g *Graph) Len() int { return len(g.nodes) }

// DefaultNodes is the diligence pipeline: one resolver fanning out to six
// bronze fetchers, one silver transform per fetcher, and a gold tail that
// fans in on every silver output.
func DefaultNodes() []Node {
	root := []StageID{StageResolver}
	fanIn := []StageID{
		StageKPIs, StageRiskFactors, StageInsider, StageInstitutional,
		StageMaterialEvents, StageGovernance, StageRiskAssessment,
	}
	return []Node{
		{StageResolver, "resolver", LayerBronze, 5, nil},
		{StageXBRL, "xbrl", LayerBronze, 10, root},
		{StageTenK, "10k", LayerBronze, 13, root},
		{StageForm4, "form4", LayerBronze, 16, root},
		{Stage13F, "13f", LayerBronze, 19, root},
		{StageEightK, "8k", LayerBronze, 22, root},
		{StageDEF14A, "def14a", LayerBronze, 25, root},
		{StageKPIs, "financial_kpis", LayerSilver, 35, []StageID{StageXBRL}},
		{StageRiskFactors, "risk_factors", LayerSilver, 42, []StageID{StageTenK}},
		{StageInsider, "insider_signal", LayerSilver, 49, []StageID{StageForm4}},
		{StageInstitutional, "institutional", LayerSilver, 53, []StageID{Stage13F}},
		{StageMaterialEvents, "material_events", LayerSilver, 57, []StageID{StageEightK}},
		{StageGovernance, "governance", LayerSilver, 61, []StageID{StageDEF14A}},
		{StageRiskAssessment, "risk_assessment", LayerGold, 75, []StageID{StageKPIs}},
		{StageCrossWorkstream, "cross_workstream", LayerGold, 88, fanIn},
		{StageMemo, "memo_writer", LayerGold, 100, []StageID{StageCrossWorkstream}},
	}
}

// DefaultGraph returns the validated diligence pipeline graph.
func DefaultGraph() *Graph {
	g, err := NewGraph(DefaultNodes())
	if err != nil {
		panic(err)
	}
	return g
}
