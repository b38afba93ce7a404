package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/factsync/internal/graph"
	"github.com/roach88/factsync/internal/ir"
)

var _ graph.FactGraph = (*Store)(nil)

// Fact implements graph.FactGraph.
// Returns graph.ErrFactNotFound if ref is not stored.
func (s *Store) Fact(ctx context.Context, ref ir.FactReference) (ir.Fact, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT f.data
		FROM fact f
		JOIN fact_type t ON t.fact_type_id = f.fact_type_id
		WHERE t.name = ? AND f.hash = ?
	`, ref.Type, ref.Hash).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Fact{}, fmt.Errorf("%s: %w", ref, graph.ErrFactNotFound)
	}
	if err != nil {
		return ir.Fact{}, fmt.Errorf("read fact %s: %w", ref, err)
	}
	return unmarshalFact(ref.Type, data)
}

// PredecessorsByRole implements graph.FactGraph. References are sorted by
// (type, hash), matching MemoryGraph.
func (s *Store) PredecessorsByRole(ctx context.Context, ref ir.FactReference, role string) ([]ir.FactReference, error) {
	id, found, err := lookupFactID(ctx, s.db, ref)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", ref, graph.ErrFactNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pt.name, p.hash
		FROM edge e
		JOIN role r ON r.role_id = e.role_id
		JOIN fact p ON p.fact_id = e.predecessor_fact_id
		JOIN fact_type pt ON pt.fact_type_id = p.fact_type_id
		WHERE e.successor_fact_id = ? AND r.name = ?
		ORDER BY pt.name COLLATE BINARY ASC, p.hash COLLATE BINARY ASC
	`, id, role)
	if err != nil {
		return nil, fmt.Errorf("query predecessors of %s: %w", ref, err)
	}
	return scanRefs(rows)
}

// SuccessorsByRole implements graph.FactGraph. Successors are returned in
// insertion order. An unknown predecessor has no successors.
func (s *Store) SuccessorsByRole(ctx context.Context, ref ir.FactReference, role, successorType string) ([]ir.FactReference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT st.name, sf.hash
		FROM fact p
		JOIN fact_type pt ON pt.fact_type_id = p.fact_type_id
		JOIN edge e ON e.predecessor_fact_id = p.fact_id
		JOIN role r ON r.role_id = e.role_id
		JOIN fact sf ON sf.fact_id = e.successor_fact_id
		JOIN fact_type st ON st.fact_type_id = sf.fact_type_id
		WHERE pt.name = ? AND p.hash = ? AND r.name = ? AND st.name = ?
		ORDER BY sf.seq ASC
	`, ref.Type, ref.Hash, role, successorType)
	if err != nil {
		return nil, fmt.Errorf("query successors of %s: %w", ref, err)
	}
	return scanRefs(rows)
}

func scanRefs(rows *sql.Rows) ([]ir.FactReference, error) {
	defer rows.Close()
	var refs []ir.FactReference
	for rows.Next() {
		var r ir.FactReference
		if err := rows.Scan(&r.Type, &r.Hash); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	return refs, nil
}

// StoredFact is a fact together with its insertion sequence.
type StoredFact struct {
	Seq  int64
	Fact ir.Fact
}

// ReadFacts returns every fact in insertion order.
// Returns an empty slice (not nil) for an empty store.
func (s *Store) ReadFacts(ctx context.Context) ([]StoredFact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.seq, t.name, f.data
		FROM fact f
		JOIN fact_type t ON t.fact_type_id = f.fact_type_id
		ORDER BY f.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	facts := []StoredFact{}
	for rows.Next() {
		var (
			seq      int64
			typeName string
			data     string
		)
		if err := rows.Scan(&seq, &typeName, &data); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f, err := unmarshalFact(typeName, data)
		if err != nil {
			return nil, err
		}
		facts = append(facts, StoredFact{Seq: seq, Fact: f})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return facts, nil
}

// Seq returns the insertion sequence of ref.
func (s *Store) Seq(ctx context.Context, ref ir.FactReference) (int64, bool, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT f.seq
		FROM fact f
		JOIN fact_type t ON t.fact_type_id = f.fact_type_id
		WHERE t.name = ? AND f.hash = ?
	`, ref.Type, ref.Hash).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read seq of %s: %w", ref, err)
	}
	return seq, true, nil
}

// Count returns the number of stored facts.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fact`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count facts: %w", err)
	}
	return n, nil
}
