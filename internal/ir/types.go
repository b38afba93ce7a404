package ir

import (
	"cmp"
	"fmt"
	"slices"
)

// FactReference is the content address of a fact: its type plus its hash.
// Two references are equal iff both fields are equal.
type FactReference struct {
	Type string `json:"type" yaml:"type"`
	Hash string `json:"hash" yaml:"hash"`
}

// String renders the reference as "Type:hash".
func (r FactReference) String() string {
	return r.Type + ":" + r.Hash
}

// CompareRefs orders references by type, then hash.
func CompareRefs(a, b FactReference) int {
	if c := cmp.Compare(a.Type, b.Type); c != 0 {
		return c
	}
	return cmp.Compare(a.Hash, b.Hash)
}

// Fact is an immutable record in the provenance graph. Its identity is
// HashFact(f); predecessor references point at facts that must have been
// created before it, so the graph is acyclic by construction.
type Fact struct {
	Type         string                     `json:"type"`
	Fields       IRObject                   `json:"fields"`
	Predecessors map[string][]FactReference `json:"predecessors,omitempty"`
}

// Reference computes the fact's content address.
func (f Fact) Reference() (FactReference, error) {
	h, err := HashFact(f)
	if err != nil {
		return FactReference{}, err
	}
	return FactReference{Type: f.Type, Hash: h}, nil
}

// MustReference is like Reference but panics on error.
// Use only in tests or when inputs are known to be valid.
func (f Fact) MustReference() FactReference {
	ref, err := f.Reference()
	if err != nil {
		panic(err)
	}
	return ref
}

// Roles returns the predecessor role names in sorted order.
func (f Fact) Roles() []string {
	roles := make([]string, 0, len(f.Predecessors))
	for role := range f.Predecessors {
		roles = append(roles, role)
	}
	slices.Sort(roles)
	return roles
}

// Validate checks the structural rules every stored fact obeys.
func (f Fact) Validate() error {
	if f.Type == "" {
		return fmt.Errorf("fact type is required")
	}
	for role, refs := range f.Predecessors {
		if role == "" {
			return fmt.Errorf("fact %s: empty predecessor role name", f.Type)
		}
		for _, r := range refs {
			if r.Type == "" || r.Hash == "" {
				return fmt.Errorf("fact %s: role %q has an incomplete reference", f.Type, role)
			}
		}
	}
	if _, err := MarshalCanonical(f.Fields); f.Fields != nil && err != nil {
		return fmt.Errorf("fact %s: %w", f.Type, err)
	}
	return nil
}
