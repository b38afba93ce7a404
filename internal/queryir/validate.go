package queryir

import (
	"fmt"
)

// ValidationResult reports structural problems in a query.
type ValidationResult struct {
	// Valid is true when Errors is empty.
	Valid  bool
	Errors []string
}

// Validate checks that a query is well formed before it reaches a backend:
//  1. Aliases are unique across the whole query, subqueries included
//  2. Every alias referenced by an edge, predicate, output, or order key
//     is declared in the current Select or an enclosing one
//  3. Edge endpoints name fact sources, not edges
//  4. A Select with outputs has a deterministic ORDER BY
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		declared: map[string]bool{},
	}
	switch q := query.(type) {
	case nil:
		v.addError("nil query")
	case Select:
		v.validateSelect(q, nil)
	case *Select:
		v.validateSelect(*q, nil)
	default:
		v.addError("unknown query type: %T", query)
	}
	return ValidationResult{
		Valid:  len(v.errors) == 0,
		Errors: v.errors,
	}
}

type validator struct {
	declared map[string]bool
	errors   []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

// validateSelect checks sel with outer holding the fact aliases visible
// from enclosing Selects.
func (v *validator) validateSelect(sel Select, outer map[string]bool) {
	facts := make(map[string]bool, len(outer)+len(sel.Sources))
	for a := range outer {
		facts[a] = true
	}
	for _, src := range sel.Sources {
		switch s := src.(type) {
		case FactSource:
			v.declare(s.Alias)
			if s.Type == "" {
				v.addError("fact source %s has no type", s.Alias)
			}
			facts[s.Alias] = true
		case EdgeSource:
			v.declare(s.Alias)
		default:
			v.addError("unknown source type: %T", src)
		}
	}
	for _, src := range sel.Sources {
		if e, ok := src.(EdgeSource); ok {
			if e.Role == "" {
				v.addError("edge %s has no role", e.Alias)
			}
			v.reference(facts, e.Successor, "edge "+e.Alias+" successor")
			v.reference(facts, e.Predecessor, "edge "+e.Alias+" predecessor")
		}
	}
	v.validatePredicate(sel.Filter, facts)
	for _, out := range sel.Outputs {
		v.reference(facts, out.Alias, "output "+out.Label)
	}
	for _, key := range sel.OrderBy {
		v.reference(facts, key, "order key")
	}
	if len(sel.Outputs) > 0 && len(sel.OrderBy) == 0 {
		v.addError("select with outputs has no ORDER BY")
	}
}

func (v *validator) declare(alias string) {
	if alias == "" {
		v.addError("source has an empty alias")
		return
	}
	if v.declared[alias] {
		v.addError("alias %s declared twice", alias)
	}
	v.declared[alias] = true
}

func (v *validator) reference(facts map[string]bool, alias, where string) {
	if !facts[alias] {
		v.addError("%s references undeclared fact alias %q", where, alias)
	}
}

func (v *validator) validatePredicate(p Predicate, facts map[string]bool) {
	switch pred := p.(type) {
	case nil:
	case BoundFact:
		v.reference(facts, pred.Alias, "bound fact "+pred.Label)
		if pred.Label == "" {
			v.addError("bound fact %s has no label", pred.Alias)
		}
	case SameFact:
		v.reference(facts, pred.Left, "same-fact predicate")
		v.reference(facts, pred.Right, "same-fact predicate")
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub, facts)
		}
	case Exists:
		v.validateSelect(pred.Query, facts)
	default:
		v.addError("unknown predicate type: %T", p)
	}
}
