package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/factsync/internal/ir"
)

// ErrMissingPredecessor is returned by SaveFact when a predecessor has not
// been saved yet.
var ErrMissingPredecessor = errors.New("missing predecessor")

// SaveFact stores f and its edges in one transaction. Returns the fact's
// reference and whether a new row was inserted.
//
// Saving a fact that is already present is a no-op (inserted=false). Every
// predecessor must already be stored; otherwise SaveFact fails with
// ErrMissingPredecessor and stores nothing.
func (s *Store) SaveFact(ctx context.Context, f ir.Fact) (ir.FactReference, bool, error) {
	if err := f.Validate(); err != nil {
		return ir.FactReference{}, false, fmt.Errorf("save fact: %w", err)
	}
	ref, err := f.Reference()
	if err != nil {
		return ir.FactReference{}, false, fmt.Errorf("save fact: %w", err)
	}
	data, err := marshalFact(f)
	if err != nil {
		return ir.FactReference{}, false, fmt.Errorf("save fact %s: %w", ref, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.FactReference{}, false, fmt.Errorf("save fact: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, found, err := lookupFactID(ctx, tx, ref); err != nil {
		return ir.FactReference{}, false, err
	} else if found {
		return ref, false, nil
	}

	// Resolve predecessors before writing anything.
	type edgeRow struct {
		role string
		pred int64
	}
	var edges []edgeRow
	for _, role := range f.Roles() {
		seen := map[ir.FactReference]bool{}
		for _, pred := range f.Predecessors[role] {
			if seen[pred] {
				continue
			}
			seen[pred] = true
			id, found, err := lookupFactID(ctx, tx, pred)
			if err != nil {
				return ir.FactReference{}, false, err
			}
			if !found {
				return ir.FactReference{}, false, fmt.Errorf("save fact %s: role %s: %s: %w", ref, role, pred, ErrMissingPredecessor)
			}
			edges = append(edges, edgeRow{role: role, pred: id})
		}
	}

	typeID, err := ensureFactType(ctx, tx, f.Type)
	if err != nil {
		return ir.FactReference{}, false, err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO fact (fact_type_id, hash, data, seq)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM fact))
	`, typeID, ref.Hash, data)
	if err != nil {
		return ir.FactReference{}, false, fmt.Errorf("save fact %s: %w", ref, err)
	}
	factID, err := result.LastInsertId()
	if err != nil {
		return ir.FactReference{}, false, fmt.Errorf("save fact %s: get fact id: %w", ref, err)
	}

	for _, e := range edges {
		roleID, err := ensureRole(ctx, tx, typeID, e.role)
		if err != nil {
			return ir.FactReference{}, false, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO edge (role_id, successor_fact_id, predecessor_fact_id)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING
		`, roleID, factID, e.pred)
		if err != nil {
			return ir.FactReference{}, false, fmt.Errorf("save fact %s: edge %s: %w", ref, e.role, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ir.FactReference{}, false, fmt.Errorf("save fact %s: commit: %w", ref, err)
	}
	return ref, true, nil
}

// SaveFacts stores facts in order, stopping at the first error. Returns
// the number of newly inserted facts.
func (s *Store) SaveFacts(ctx context.Context, facts []ir.Fact) (int, error) {
	inserted := 0
	for _, f := range facts {
		_, ok, err := s.SaveFact(ctx, f)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lookupFactID(ctx context.Context, q queryer, ref ir.FactReference) (int64, bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		SELECT f.fact_id
		FROM fact f
		JOIN fact_type t ON t.fact_type_id = f.fact_type_id
		WHERE t.name = ? AND f.hash = ?
	`, ref.Type, ref.Hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup %s: %w", ref, err)
	}
	return id, true, nil
}

func ensureFactType(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fact_type (name) VALUES (?)
		ON CONFLICT(name) DO NOTHING
	`, name); err != nil {
		return 0, fmt.Errorf("ensure fact type %s: %w", name, err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT fact_type_id FROM fact_type WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("ensure fact type %s: %w", name, err)
	}
	return id, nil
}

func ensureRole(ctx context.Context, tx *sql.Tx, definingTypeID int64, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO role (defining_fact_type_id, name) VALUES (?, ?)
		ON CONFLICT(defining_fact_type_id, name) DO NOTHING
	`, definingTypeID, name); err != nil {
		return 0, fmt.Errorf("ensure role %s: %w", name, err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `
		SELECT role_id FROM role WHERE defining_fact_type_id = ? AND name = ?
	`, definingTypeID, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("ensure role %s: %w", name, err)
	}
	return id, nil
}
