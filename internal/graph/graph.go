package graph

import (
	"context"
	"errors"

	"github.com/roach88/factsync/internal/ir"
)

// ErrFactNotFound is returned when a reference names a fact the backend
// does not hold. Callers treat it as a sign of an incomplete graph, never
// as an empty result.
var ErrFactNotFound = errors.New("fact not found")

// FactGraph is the traversal primitive a backend must provide.
//
// Implementations return references in a stable order (insertion order
// for the built-in backends). PredecessorsByRole returns an empty slice
// when the fact has no such role; it returns ErrFactNotFound only when the
// fact itself is absent. SuccessorsByRole never fails for a fact with no
// successors.
type FactGraph interface {
	Fact(ctx context.Context, ref ir.FactReference) (ir.Fact, error)
	PredecessorsByRole(ctx context.Context, ref ir.FactReference, role string) ([]ir.FactReference, error)
	SuccessorsByRole(ctx context.Context, ref ir.FactReference, role, successorType string) ([]ir.FactReference, error)
}

// Contains reports whether g holds ref.
func Contains(ctx context.Context, g FactGraph, ref ir.FactReference) (bool, error) {
	_, err := g.Fact(ctx, ref)
	if errors.Is(err, ErrFactNotFound) {
		return false, nil
	}
	return err == nil, err
}
