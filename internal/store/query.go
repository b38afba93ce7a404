package store

import (
	"context"
	"fmt"

	"github.com/roach88/factsync/internal/graph"
	"github.com/roach88/factsync/internal/ir"
	"github.com/roach88/factsync/internal/queryir"
	"github.com/roach88/factsync/internal/querysql"
	"github.com/roach88/factsync/internal/spec"
)

// ReadTuples evaluates s's match list from given in a single SQL
// statement. The result is the same tuple set the match executor produces
// over this store, ordered by the insertion sequence of each bound fact.
//
// A given that is not stored is reported with graph.ErrFactNotFound rather
// than as an empty result.
func (s *Store) ReadTuples(ctx context.Context, sp spec.Specification, given ir.FactReferenceTuple) ([]ir.FactReferenceTuple, error) {
	plan, err := queryir.Plan(sp)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	compiler := querysql.NewSQLCompiler()
	for _, g := range sp.Givens {
		ref, ok := given.Get(g.Label.Name)
		if !ok {
			return nil, fmt.Errorf("given %q is not bound", g.Label.Name)
		}
		if ref.Type != g.Label.Type {
			return nil, fmt.Errorf("given %s: expected %s, got %s", g.Label.Name, g.Label.Type, ref.Type)
		}
		if _, found, err := lookupFactID(ctx, s.db, ref); err != nil {
			return nil, err
		} else if !found {
			return nil, fmt.Errorf("%s: %w", ref, graph.ErrFactNotFound)
		}
		compiler.BoundValues[g.Label.Name] = ref.Hash
	}

	query, params, err := compiler.Compile(plan)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query tuples: %w", err)
	}
	defer rows.Close()

	n := len(plan.Outputs)
	tuples := []ir.FactReferenceTuple{}
	for rows.Next() {
		hashes := make([]string, n)
		seqs := make([]int64, n)
		dest := make([]any, 0, 2*n)
		for i := range n {
			dest = append(dest, &hashes[i], &seqs[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan tuple: %w", err)
		}
		t := make(ir.FactReferenceTuple, 0, n)
		for i, out := range plan.Outputs {
			t = t.With(out.Label, ir.FactReference{Type: out.Type, Hash: hashes[i]})
		}
		tuples = append(tuples, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tuples: %w", err)
	}
	return tuples, nil
}
