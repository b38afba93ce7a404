package spec

import "slices"

// Label is a variable bound during evaluation. Compared by value.
type Label struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Role is one predecessor-edge traversal step: follow the role named Name
// to a fact of type TargetType.
type Role struct {
	Name       string `json:"name"`
	TargetType string `json:"targetType"`
}

// PathCondition is a join predicate. Walking RolesLeft predecessor-wards
// from the match's unknown must reach the same fact as walking RolesRight
// predecessor-wards from the fact bound to LabelRight.
type PathCondition struct {
	RolesLeft  []Role `json:"rolesLeft,omitempty"`
	LabelRight string `json:"labelRight"`
	RolesRight []Role `json:"rolesRight,omitempty"`
}

// Reversed swaps the two role chains. The caller is responsible for
// pairing the result with the correct unknown and labelRight.
func (pc PathCondition) Reversed(labelRight string) PathCondition {
	return PathCondition{
		RolesLeft:  slices.Clone(pc.RolesRight),
		LabelRight: labelRight,
		RolesRight: slices.Clone(pc.RolesLeft),
	}
}

// ExistentialCondition holds iff its nested matches, evaluated from the
// enclosing tuple, yield at least one tuple. Exists=false negates it.
type ExistentialCondition struct {
	Exists  bool    `json:"exists"`
	Matches []Match `json:"matches"`
}

// Match is one join step. Its first path condition produces candidates for
// Unknown; the remaining conditions filter them.
type Match struct {
	Unknown               Label                  `json:"unknown"`
	PathConditions        []PathCondition        `json:"pathConditions"`
	ExistentialConditions []ExistentialCondition `json:"existentialConditions,omitempty"`
}

// Given is a query-time parameter, optionally guarded by existential
// conditions evaluated against the given tuple alone.
type Given struct {
	Label                 Label                  `json:"label"`
	ExistentialConditions []ExistentialCondition `json:"existentialConditions,omitempty"`
}

// Specification is a complete query: givens, a match chain, and the shape
// of each result.
type Specification struct {
	Givens     []Given    `json:"givens"`
	Matches    []Match    `json:"matches"`
	Projection Projection `json:"-"`
}

// GivenLabels returns the given labels in declaration order.
func (s Specification) GivenLabels() []Label {
	labels := make([]Label, len(s.Givens))
	for i, g := range s.Givens {
		labels[i] = g.Label
	}
	return labels
}

// Equal reports whether two specifications are structurally identical.
// The canonical rendering is a complete encoding, so equality of renderings
// is equality of values.
func Equal(a, b Specification) bool {
	return Render(a) == Render(b)
}

// ReferencedLabels returns the label names a match list reads from its
// enclosing scope: every labelRight (including those in nested
// existentials) that is not introduced inside the list itself. The result
// is sorted and deduplicated.
func ReferencedLabels(matches []Match) []string {
	local := map[string]bool{}
	var refs []string
	var walk func(ms []Match)
	walk = func(ms []Match) {
		for _, m := range ms {
			local[m.Unknown.Name] = true
		}
		for _, m := range ms {
			for _, pc := range m.PathConditions {
				refs = append(refs, pc.LabelRight)
			}
			for _, ec := range m.ExistentialConditions {
				walk(ec.Matches)
			}
		}
	}
	walk(matches)

	out := refs[:0:0]
	for _, r := range refs {
		if !local[r] {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
