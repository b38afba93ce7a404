package inverse

// Operation tells an observer how a result set changes when an inverse
// produces a tuple.
type Operation int

const (
	// Add inserts the result.
	Add Operation = iota + 1
	// Remove deletes the result.
	Remove
	// MaybeAdd re-checks the result and inserts it if it now qualifies.
	MaybeAdd
	// MaybeRemove re-checks the result and deletes it if it no longer
	// qualifies.
	MaybeRemove
)

// String implements fmt.Stringer.
func (o Operation) String() string {
	switch o {
	case Add:
		return "Add"
	case Remove:
		return "Remove"
	case MaybeAdd:
		return "MaybeAdd"
	case MaybeRemove:
		return "MaybeRemove"
	default:
		return "Unknown"
	}
}

// IsRecheck reports whether the operation requires re-evaluating the
// result instead of applying the change directly.
func (o Operation) IsRecheck() bool {
	return o == MaybeAdd || o == MaybeRemove
}

// InferOperation computes the effect on an enclosing result of a new fact
// inside an existential condition, given the effect parent would have had
// one level up and the condition's polarity.
//
//	parent        exists   !exists
//	Add           MaybeAdd Remove
//	Remove        MaybeRemove MaybeAdd
//	MaybeRemove   MaybeRemove MaybeAdd
//	MaybeAdd      MaybeAdd MaybeRemove
func InferOperation(parent Operation, exists bool) Operation {
	switch parent {
	case Add:
		if exists {
			return MaybeAdd
		}
		return Remove
	case Remove, MaybeRemove:
		if exists {
			return MaybeRemove
		}
		return MaybeAdd
	default:
		if exists {
			return MaybeAdd
		}
		return MaybeRemove
	}
}
