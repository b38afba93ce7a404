package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/factsync/internal/ir"
)

var (
	// ErrIncompleteGraph signals that evaluation needed a fact the graph
	// does not hold. It is distinct from an empty result: the graph is
	// partially synced and the answer may change once the fact arrives.
	ErrIncompleteGraph = errors.New("incomplete fact graph")

	// ErrUnboundLabel signals a label read before it was bound. Validation
	// rules this out, so seeing it means an unvalidated specification or a
	// given tuple that does not cover the givens.
	ErrUnboundLabel = errors.New("unbound label")

	// ErrObserverStopped is returned by Notify after the observer's queue
	// has been closed.
	ErrObserverStopped = errors.New("observer stopped")
)

// IncompleteGraphError names the fact that was missing.
type IncompleteGraphError struct {
	Missing ir.FactReference
	Err     error
}

// Error implements the error interface.
func (e *IncompleteGraphError) Error() string {
	return fmt.Sprintf("incomplete fact graph: %s is not present", e.Missing)
}

// Unwrap exposes the backend error, typically graph.ErrFactNotFound.
func (e *IncompleteGraphError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrIncompleteGraph) hold.
func (e *IncompleteGraphError) Is(target error) bool {
	return target == ErrIncompleteGraph
}

// IsIncomplete reports whether err signals missing graph data.
// Uses errors.Is to handle wrapped errors.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrIncompleteGraph)
}

// MissingFact extracts the missing reference from an incomplete-graph
// error.
func MissingFact(err error) (ir.FactReference, bool) {
	var ie *IncompleteGraphError
	if errors.As(err, &ie) {
		return ie.Missing, true
	}
	return ir.FactReference{}, false
}

func unbound(label, context string) error {
	return fmt.Errorf("%w: %q in %s", ErrUnboundLabel, label, context)
}
