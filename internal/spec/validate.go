package spec

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Validation error codes (E200-E299)
const (
	ErrNoPathConditions  = "E201" // match (or existential) without a path condition
	ErrUnboundLabel      = "E202" // labelRight not bound by an earlier given or match
	ErrConflictingType   = "E203" // one label name declared with two types
	ErrDuplicateLabel    = "E204" // label declared twice in one scope
	ErrUnboundProjection = "E205" // projection reads a label that is not in scope
	ErrCollectionName    = "E206" // collection not a named component, or name reused
	ErrRoleTypeMismatch  = "E207" // role chains of a path condition meet at different types
	ErrNoGivens          = "E208" // specification declares no givens
)

// ValidationError is a construction-time defect in a specification. Label
// names the offending label.
type ValidationError struct {
	Code    string `json:"code"`
	Label   string `json:"label"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Label, e.Message)
}

// Check validates s and returns every defect joined into one error, or nil.
func (s Specification) Check() error {
	errs := Validate(s)
	if len(errs) == 0 {
		return nil
	}
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return errors.Join(joined...)
}

// Validate checks the binding invariant and the structural rules every
// specification must satisfy before execution or inversion. It returns
// all defects found rather than stopping at the first.
func Validate(s Specification) []ValidationError {
	v := &validator{declared: map[string]string{}}

	if len(s.Givens) == 0 {
		v.add(ErrNoGivens, "", "specification has no givens")
	}

	scope := map[string]string{}
	for _, g := range s.Givens {
		v.declare(scope, g.Label)
	}
	for _, g := range s.Givens {
		for _, ec := range g.ExistentialConditions {
			v.existential(scope, g.Label.Name, ec)
		}
	}
	scope = v.matches(scope, s.Matches)
	v.projection(scope, s.Projection, true)
	return v.errs
}

type validator struct {
	errs []ValidationError
	// declared records the first type seen for every label name anywhere
	// in the specification.
	declared map[string]string
}

func (v *validator) add(code, label, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Code:    code,
		Label:   label,
		Message: fmt.Sprintf(format, args...),
	})
}

func (v *validator) declare(scope map[string]string, l Label) {
	if prev, ok := v.declared[l.Name]; ok && prev != l.Type {
		v.add(ErrConflictingType, l.Name, "declared as both %s and %s", prev, l.Type)
	} else if !ok {
		v.declared[l.Name] = l.Type
	}
	if _, ok := scope[l.Name]; ok {
		v.add(ErrDuplicateLabel, l.Name, "label is already bound in this scope")
		return
	}
	scope[l.Name] = l.Type
}

// matches validates a match chain and returns the extended scope. The
// input scope is not modified.
func (v *validator) matches(outer map[string]string, ms []Match) map[string]string {
	scope := maps.Clone(outer)
	for _, m := range ms {
		if len(m.PathConditions) == 0 {
			v.add(ErrNoPathConditions, m.Unknown.Name, "match has no path conditions")
		}
		for _, pc := range m.PathConditions {
			v.pathCondition(scope, m.Unknown, pc)
		}
		v.declare(scope, m.Unknown)
		for _, ec := range m.ExistentialConditions {
			v.existential(scope, m.Unknown.Name, ec)
		}
	}
	return scope
}

func (v *validator) existential(scope map[string]string, host string, ec ExistentialCondition) {
	if len(ec.Matches) == 0 {
		v.add(ErrNoPathConditions, host, "existential condition has no matches")
		return
	}
	v.matches(scope, ec.Matches)
}

func (v *validator) pathCondition(scope map[string]string, unknown Label, pc PathCondition) {
	rightType, ok := scope[pc.LabelRight]
	if !ok {
		if pc.LabelRight == unknown.Name {
			v.add(ErrUnboundLabel, unknown.Name, "path condition refers to its own unknown")
		} else {
			v.add(ErrUnboundLabel, unknown.Name, "path condition references unbound label %q", pc.LabelRight)
		}
		return
	}
	leftEnd := unknown.Type
	if n := len(pc.RolesLeft); n > 0 {
		leftEnd = pc.RolesLeft[n-1].TargetType
	}
	rightEnd := rightType
	if n := len(pc.RolesRight); n > 0 {
		rightEnd = pc.RolesRight[n-1].TargetType
	}
	if leftEnd != rightEnd {
		v.add(ErrRoleTypeMismatch, unknown.Name,
			"path to %s reaches %s but path from %s reaches %s",
			pc.LabelRight, leftEnd, pc.LabelRight, rightEnd)
	}
	for _, r := range slices.Concat(pc.RolesLeft, pc.RolesRight) {
		if r.Name == "" || r.TargetType == "" {
			v.add(ErrRoleTypeMismatch, unknown.Name, "role step needs both a name and a target type")
		}
	}
}

// projection checks tags and collections. top is set for the outermost
// projection of a depth, where collection names must be unique.
func (v *validator) projection(scope map[string]string, p Projection, top bool) {
	switch pr := p.(type) {
	case nil:
	case SimpleProjection:
		v.tag(scope, pr.Tag)
	case FieldProjection:
		v.tag(scope, pr.Tag)
		if pr.Field == "" {
			v.add(ErrUnboundProjection, pr.Tag, "field projection needs a field name")
		}
	case HashProjection:
		v.tag(scope, pr.Tag)
	case CompoundProjection:
		names := map[string]bool{}
		for _, comp := range pr.Components {
			if comp.Name == "" || names[comp.Name] {
				v.add(ErrCollectionName, comp.Name, "component names must be present and unique")
			}
			names[comp.Name] = true
		}
		for _, comp := range pr.Components {
			if c, ok := comp.Projection.(CollectionProjection); ok {
				v.collection(scope, c)
				continue
			}
			v.projection(scope, comp.Projection, false)
		}
		if top {
			v.collectionNames(pr)
		}
	case CollectionProjection:
		v.add(ErrCollectionName, "", "collection projection must be a named component of a compound")
		v.collection(scope, pr)
	}
}

func (v *validator) collection(scope map[string]string, c CollectionProjection) {
	if len(c.Matches) == 0 {
		v.add(ErrNoPathConditions, "", "collection has no matches")
	}
	inner := v.matches(scope, c.Matches)
	v.projection(inner, c.Projection, true)
}

// collectionNames rejects two collections at one depth sharing a name,
// which would make their paths ambiguous.
func (v *validator) collectionNames(p CompoundProjection) {
	seen := map[string]bool{}
	for _, nc := range Collections(p) {
		if seen[nc.Name] {
			v.add(ErrCollectionName, nc.Name, "collection name is used twice at one depth")
		}
		seen[nc.Name] = true
	}
}

func (v *validator) tag(scope map[string]string, tag string) {
	if _, ok := scope[tag]; !ok {
		v.add(ErrUnboundProjection, tag, "projection references unbound label")
	}
}
