package ir

import (
	"slices"
	"strings"
)

// Binding pairs a label name with the fact bound to it.
type Binding struct {
	Label string        `json:"label"`
	Ref   FactReference `json:"ref"`
}

// FactReferenceTuple is the binding environment built up while matches
// are evaluated. Order is the order in which labels were bound. Tuples are
// treated as immutable: With returns a fresh copy.
type FactReferenceTuple []Binding

// NewTuple builds a tuple from bindings; later bindings of a label win.
func NewTuple(bindings ...Binding) FactReferenceTuple {
	t := make(FactReferenceTuple, 0, len(bindings))
	for _, b := range bindings {
		t = t.With(b.Label, b.Ref)
	}
	return t
}

// Get returns the reference bound to label.
func (t FactReferenceTuple) Get(label string) (FactReference, bool) {
	for _, b := range t {
		if b.Label == label {
			return b.Ref, true
		}
	}
	return FactReference{}, false
}

// Has reports whether label is bound.
func (t FactReferenceTuple) Has(label string) bool {
	_, ok := t.Get(label)
	return ok
}

// Labels returns the bound label names in binding order.
func (t FactReferenceTuple) Labels() []string {
	labels := make([]string, len(t))
	for i, b := range t {
		labels[i] = b.Label
	}
	return labels
}

// With returns a copy of t with label bound to ref. Rebinding an existing
// label replaces its reference in place.
func (t FactReferenceTuple) With(label string, ref FactReference) FactReferenceTuple {
	out := make(FactReferenceTuple, len(t), len(t)+1)
	copy(out, t)
	for i := range out {
		if out[i].Label == label {
			out[i].Ref = ref
			return out
		}
	}
	return append(out, Binding{Label: label, Ref: ref})
}

// Restrict keeps only the bindings whose label satisfies keep.
func (t FactReferenceTuple) Restrict(keep func(label string) bool) FactReferenceTuple {
	out := make(FactReferenceTuple, 0, len(t))
	for _, b := range t {
		if keep(b.Label) {
			out = append(out, b)
		}
	}
	return out
}

// Agrees reports whether every label bound in both tuples is bound to the
// same reference.
func (t FactReferenceTuple) Agrees(other FactReferenceTuple) bool {
	for _, b := range t {
		if ref, ok := other.Get(b.Label); ok && ref != b.Ref {
			return false
		}
	}
	return true
}

// Equal reports whether both tuples bind the same labels to the same
// references, regardless of binding order.
func (t FactReferenceTuple) Equal(other FactReferenceTuple) bool {
	return len(t) == len(other) && t.Key() == other.Key()
}

// Key renders an order-independent identity string, suitable as a map key.
func (t FactReferenceTuple) Key() string {
	sorted := slices.Clone(t)
	slices.SortFunc(sorted, func(a, b Binding) int {
		return strings.Compare(a.Label, b.Label)
	})
	var sb strings.Builder
	for i, b := range sorted {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(b.Label)
		sb.WriteByte('=')
		sb.WriteString(b.Ref.String())
	}
	return sb.String()
}

// String renders the tuple in binding order.
func (t FactReferenceTuple) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, b := range t {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.Label)
		sb.WriteString(": ")
		sb.WriteString(b.Ref.String())
	}
	sb.WriteByte('}')
	return sb.String()
}
