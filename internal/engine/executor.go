package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/factsync/internal/graph"
	"github.com/roach88/factsync/internal/ir"
	"github.com/roach88/factsync/internal/spec"
)

// Executor evaluates specifications against a fact graph.
//
// Thread-safety: an Executor is immutable after construction and safe for
// concurrent use. Its correctness under concurrent writes depends on the
// graph returning consistent answers per call.
type Executor struct {
	graph  graph.FactGraph
	logger *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger traces evaluation at debug level. Logging never affects
// results.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = l
	}
}

// NewExecutor creates an executor over g.
func NewExecutor(g graph.FactGraph, opts ...ExecutorOption) *Executor {
	e := &Executor{
		graph:  g,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the backing graph.
func (e *Executor) Graph() graph.FactGraph {
	return e.graph
}

// Execute runs s from given and projects every resulting tuple.
//
// s must have passed validation. given must bind every given label; the
// facts it names must be present or Execute reports ErrIncompleteGraph.
func (e *Executor) Execute(ctx context.Context, s spec.Specification, given ir.FactReferenceTuple) ([]Product, error) {
	tuples, err := e.Read(ctx, s, given)
	if err != nil {
		return nil, err
	}
	return e.Project(ctx, tuples, s.Projection)
}

// Read runs s from given and returns the bound tuples without projecting
// them.
func (e *Executor) Read(ctx context.Context, s spec.Specification, given ir.FactReferenceTuple) ([]ir.FactReferenceTuple, error) {
	start, err := e.bindGivens(ctx, s.Givens, given)
	if err != nil {
		return nil, err
	}
	ok, err := e.givenConditions(ctx, s.Givens, start)
	if err != nil || !ok {
		return nil, err
	}
	tuples, err := e.matches(ctx, []ir.FactReferenceTuple{start}, s.Matches)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("specification read",
		"givens", len(s.Givens),
		"matches", len(s.Matches),
		"tuples", len(tuples))
	return tuples, nil
}

// Satisfies reports whether tuple, which binds every given and every
// unknown of matches, is a result of the match chain: the givens' guards
// hold, and each unknown meets all of its path and existential conditions.
func (e *Executor) Satisfies(ctx context.Context, givens []spec.Given, matches []spec.Match, tuple ir.FactReferenceTuple) (bool, error) {
	for _, g := range givens {
		if !tuple.Has(g.Label.Name) {
			return false, unbound(g.Label.Name, "satisfaction check")
		}
	}
	ok, err := e.givenConditions(ctx, givens, tuple)
	if err != nil || !ok {
		return false, err
	}
	for _, m := range matches {
		candidate, bound := tuple.Get(m.Unknown.Name)
		if !bound {
			return false, unbound(m.Unknown.Name, "satisfaction check")
		}
		if candidate.Type != m.Unknown.Type {
			return false, nil
		}
		ok, err := e.conditions(ctx, tuple, m, candidate, m.PathConditions)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// bindGivens restricts the caller's tuple to the givens, checking that each
// is bound, typed as declared, and present in the graph.
func (e *Executor) bindGivens(ctx context.Context, givens []spec.Given, given ir.FactReferenceTuple) (ir.FactReferenceTuple, error) {
	start := make(ir.FactReferenceTuple, 0, len(givens))
	for _, g := range givens {
		ref, ok := given.Get(g.Label.Name)
		if !ok {
			return nil, unbound(g.Label.Name, "given tuple")
		}
		if ref.Type != g.Label.Type {
			return nil, fmt.Errorf("given %s: expected %s, got %s", g.Label.Name, g.Label.Type, ref.Type)
		}
		if _, err := e.graph.Fact(ctx, ref); err != nil {
			return nil, e.missing(ref, err)
		}
		start = start.With(g.Label.Name, ref)
	}
	return start, nil
}

func (e *Executor) givenConditions(ctx context.Context, givens []spec.Given, tuple ir.FactReferenceTuple) (bool, error) {
	for _, g := range givens {
		for _, ec := range g.ExistentialConditions {
			ok, err := e.existential(ctx, tuple, ec)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	return true, nil
}

// matches folds a match chain over a tuple set. Each match fans every
// tuple out into one tuple per surviving candidate.
func (e *Executor) matches(ctx context.Context, tuples []ir.FactReferenceTuple, ms []spec.Match) ([]ir.FactReferenceTuple, error) {
	for _, m := range ms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var next []ir.FactReferenceTuple
		for _, t := range tuples {
			extended, err := e.match(ctx, t, m)
			if err != nil {
				return nil, err
			}
			next = append(next, extended...)
		}
		tuples = next
		if len(tuples) == 0 {
			break
		}
	}
	return tuples, nil
}

func (e *Executor) match(ctx context.Context, t ir.FactReferenceTuple, m spec.Match) ([]ir.FactReferenceTuple, error) {
	if len(m.PathConditions) == 0 {
		return nil, fmt.Errorf("match %s has no path conditions", m.Unknown.Name)
	}
	candidates, err := e.enumerate(ctx, t, m.Unknown, m.PathConditions[0])
	if err != nil {
		return nil, err
	}
	var out []ir.FactReferenceTuple
	for _, c := range candidates {
		ok, err := e.conditions(ctx, t, m, c, m.PathConditions[1:])
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t.With(m.Unknown.Name, c))
		}
	}
	return out, nil
}

// conditions checks the given path conditions and every existential
// condition of m for candidate.
func (e *Executor) conditions(ctx context.Context, t ir.FactReferenceTuple, m spec.Match, candidate ir.FactReference, pcs []spec.PathCondition) (bool, error) {
	for _, pc := range pcs {
		ok, err := e.pathHolds(ctx, t, candidate, pc)
		if err != nil || !ok {
			return false, err
		}
	}
	if len(m.ExistentialConditions) == 0 {
		return true, nil
	}
	extended := t.With(m.Unknown.Name, candidate)
	for _, ec := range m.ExistentialConditions {
		ok, err := e.existential(ctx, extended, ec)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (e *Executor) existential(ctx context.Context, t ir.FactReferenceTuple, ec spec.ExistentialCondition) (bool, error) {
	tuples, err := e.matches(ctx, []ir.FactReferenceTuple{t}, ec.Matches)
	if err != nil {
		return false, err
	}
	return (len(tuples) > 0) == ec.Exists, nil
}

// enumerate produces candidates for unknown from the first path condition:
// walk rolesRight up from labelRight to a set of pivots, then walk rolesLeft
// down from the pivots in reverse, through successor edges.
func (e *Executor) enumerate(ctx context.Context, t ir.FactReferenceTuple, unknown spec.Label, pc spec.PathCondition) ([]ir.FactReference, error) {
	pivots, err := e.rightEnd(ctx, t, pc)
	if err != nil {
		return nil, err
	}
	current := pivots
	for i := len(pc.RolesLeft) - 1; i >= 0; i-- {
		r := pc.RolesLeft[i]
		successorType := unknown.Type
		if i > 0 {
			successorType = pc.RolesLeft[i-1].TargetType
		}
		var next []ir.FactReference
		for _, p := range current {
			if p.Type != r.TargetType {
				continue
			}
			succs, err := e.graph.SuccessorsByRole(ctx, p, r.Name, successorType)
			if err != nil {
				return nil, e.missing(p, err)
			}
			next = append(next, succs...)
		}
		current = dedupe(next)
	}
	out := current[:0:0]
	for _, c := range current {
		if c.Type == unknown.Type {
			out = append(out, c)
		}
	}
	return out, nil
}

// pathHolds checks one path condition for a known candidate by walking
// both sides up to their pivots and intersecting.
func (e *Executor) pathHolds(ctx context.Context, t ir.FactReferenceTuple, candidate ir.FactReference, pc spec.PathCondition) (bool, error) {
	right, err := e.rightEnd(ctx, t, pc)
	if err != nil {
		return false, err
	}
	if len(right) == 0 {
		return false, nil
	}
	left, err := e.walkUp(ctx, []ir.FactReference{candidate}, pc.RolesLeft)
	if err != nil {
		return false, err
	}
	set := make(map[ir.FactReference]bool, len(right))
	for _, r := range right {
		set[r] = true
	}
	for _, l := range left {
		if set[l] {
			return true, nil
		}
	}
	return false, nil
}

func (e *Executor) rightEnd(ctx context.Context, t ir.FactReferenceTuple, pc spec.PathCondition) ([]ir.FactReference, error) {
	start, ok := t.Get(pc.LabelRight)
	if !ok {
		return nil, unbound(pc.LabelRight, "path condition")
	}
	return e.walkUp(ctx, []ir.FactReference{start}, pc.RolesRight)
}

// walkUp follows roles predecessor-wards. A fact that lacks a role simply
// contributes nothing; a fact the graph does not hold is an incomplete
// graph.
func (e *Executor) walkUp(ctx context.Context, from []ir.FactReference, roles []spec.Role) ([]ir.FactReference, error) {
	current := from
	for _, r := range roles {
		var next []ir.FactReference
		for _, f := range current {
			preds, err := e.graph.PredecessorsByRole(ctx, f, r.Name)
			if err != nil {
				return nil, e.missing(f, err)
			}
			for _, p := range preds {
				if p.Type == r.TargetType {
					next = append(next, p)
				}
			}
		}
		current = dedupe(next)
		if len(current) == 0 {
			break
		}
	}
	return current, nil
}

func (e *Executor) missing(ref ir.FactReference, err error) error {
	if errors.Is(err, graph.ErrFactNotFound) {
		e.logger.Debug("fact missing from graph", "ref", ref.String())
		return &IncompleteGraphError{Missing: ref, Err: err}
	}
	return fmt.Errorf("read %s: %w", ref, err)
}

func dedupe(refs []ir.FactReference) []ir.FactReference {
	if len(refs) < 2 {
		return refs
	}
	seen := make(map[ir.FactReference]bool, len(refs))
	out := refs[:0:0]
	for _, r := range refs {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
