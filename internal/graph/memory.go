package graph

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/factsync/internal/ir"
)

type successorKey struct {
	pred ir.FactReference
	role string
}

type storedFact struct {
	fact ir.Fact
	seq  int64
}

// MemoryGraph is an in-memory fact graph with a successor index.
//
// Facts may reference predecessors the graph does not yet hold, as a
// partially synced replica would; traversals that need such a fact report
// ErrFactNotFound.
//
// Thread-safety: all methods are safe for concurrent use. Readers see a
// consistent snapshot per call.
type MemoryGraph struct {
	mu         sync.RWMutex
	clock      Sequencer
	facts      map[ir.FactReference]storedFact
	order      []ir.FactReference
	successors map[successorKey][]ir.FactReference
}

// MemoryOption configures a MemoryGraph.
type MemoryOption func(*MemoryGraph)

// WithSequencer replaces the default clock, typically with a
// deterministic one in tests.
func WithSequencer(s Sequencer) MemoryOption {
	return func(g *MemoryGraph) {
		g.clock = s
	}
}

// NewMemoryGraph creates an empty graph.
func NewMemoryGraph(opts ...MemoryOption) *MemoryGraph {
	g := &MemoryGraph{
		clock:      NewClock(),
		facts:      make(map[ir.FactReference]storedFact),
		successors: make(map[successorKey][]ir.FactReference),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Add stores a fact and returns its reference. Adding a fact that is
// already present is a no-op reported by added=false.
func (g *MemoryGraph) Add(f ir.Fact) (ref ir.FactReference, added bool, err error) {
	if err := f.Validate(); err != nil {
		return ir.FactReference{}, false, err
	}
	ref, err = f.Reference()
	if err != nil {
		return ir.FactReference{}, false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.facts[ref]; ok {
		return ref, false, nil
	}
	g.facts[ref] = storedFact{fact: f, seq: g.clock.Next()}
	g.order = append(g.order, ref)
	for _, role := range f.Roles() {
		seen := map[ir.FactReference]bool{}
		for _, pred := range f.Predecessors[role] {
			if seen[pred] {
				continue
			}
			seen[pred] = true
			key := successorKey{pred: pred, role: role}
			g.successors[key] = append(g.successors[key], ref)
		}
	}
	return ref, true, nil
}

// MustAdd is like Add but panics on error.
// Use only in tests or when inputs are known to be valid.
func (g *MemoryGraph) MustAdd(f ir.Fact) ir.FactReference {
	ref, _, err := g.Add(f)
	if err != nil {
		panic(err)
	}
	return ref
}

// Fact implements FactGraph.
func (g *MemoryGraph) Fact(_ context.Context, ref ir.FactReference) (ir.Fact, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sf, ok := g.facts[ref]
	if !ok {
		return ir.Fact{}, fmt.Errorf("%s: %w", ref, ErrFactNotFound)
	}
	return sf.fact, nil
}

// PredecessorsByRole implements FactGraph.
func (g *MemoryGraph) PredecessorsByRole(_ context.Context, ref ir.FactReference, role string) ([]ir.FactReference, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sf, ok := g.facts[ref]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, ErrFactNotFound)
	}
	preds := slices.Clone(sf.fact.Predecessors[role])
	slices.SortFunc(preds, ir.CompareRefs)
	return slices.Compact(preds), nil
}

// SuccessorsByRole implements FactGraph. Successors are returned in
// insertion order.
func (g *MemoryGraph) SuccessorsByRole(_ context.Context, ref ir.FactReference, role, successorType string) ([]ir.FactReference, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []ir.FactReference
	for _, succ := range g.successors[successorKey{pred: ref, role: role}] {
		if succ.Type == successorType {
			out = append(out, succ)
		}
	}
	return out, nil
}

// Seq returns the insertion sequence number of ref.
func (g *MemoryGraph) Seq(ref ir.FactReference) (int64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sf, ok := g.facts[ref]
	return sf.seq, ok
}

// Facts returns every fact in insertion order.
func (g *MemoryGraph) Facts() []ir.Fact {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]ir.Fact, len(g.order))
	for i, ref := range g.order {
		out[i] = g.facts[ref].fact
	}
	return out
}

// Len is the number of facts held.
func (g *MemoryGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}
