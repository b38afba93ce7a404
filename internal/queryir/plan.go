package queryir

import (
	"fmt"
	"maps"

	"github.com/roach88/factsync/internal/spec"
)

// Plan builds the relational plan of s's match list. Outputs bind every
// given and every top-level unknown, in binding order; the projection is
// not part of the plan.
func Plan(s spec.Specification) (Select, error) {
	p := &planner{}
	scope := map[string]string{}
	sel := Select{Distinct: true}
	var filter []Predicate

	for _, g := range s.Givens {
		alias := p.fact(&sel, g.Label.Type)
		scope[g.Label.Name] = alias
		filter = append(filter, BoundFact{Alias: alias, Label: g.Label.Name})
		sel.Outputs = append(sel.Outputs, Output{Label: g.Label.Name, Alias: alias, Type: g.Label.Type})
		sel.OrderBy = append(sel.OrderBy, alias)
	}
	for _, g := range s.Givens {
		for _, ec := range g.ExistentialConditions {
			pred, err := p.existential(scope, ec)
			if err != nil {
				return Select{}, fmt.Errorf("given %s: %w", g.Label.Name, err)
			}
			filter = append(filter, pred)
		}
	}
	for _, m := range s.Matches {
		preds, alias, err := p.match(&sel, scope, m)
		if err != nil {
			return Select{}, err
		}
		filter = append(filter, preds...)
		sel.Outputs = append(sel.Outputs, Output{Label: m.Unknown.Name, Alias: alias, Type: m.Unknown.Type})
		sel.OrderBy = append(sel.OrderBy, alias)
	}
	if len(filter) > 0 {
		sel.Filter = And{Predicates: filter}
	}
	return sel, nil
}

type planner struct {
	facts int
	edges int
}

func (p *planner) fact(sel *Select, typ string) string {
	alias := fmt.Sprintf("f%d", p.facts)
	p.facts++
	sel.Sources = append(sel.Sources, FactSource{Alias: alias, Type: typ})
	return alias
}

func (p *planner) edge(sel *Select, role, successor, predecessor string) {
	alias := fmt.Sprintf("e%d", p.edges)
	p.edges++
	sel.Sources = append(sel.Sources, EdgeSource{
		Alias:       alias,
		Role:        role,
		Successor:   successor,
		Predecessor: predecessor,
	})
}

// match adds m's unknown to sel and binds it in scope.
func (p *planner) match(sel *Select, scope map[string]string, m spec.Match) ([]Predicate, string, error) {
	if len(m.PathConditions) == 0 {
		return nil, "", fmt.Errorf("match %s has no path conditions", m.Unknown.Name)
	}
	alias := p.fact(sel, m.Unknown.Type)
	var preds []Predicate
	for _, pc := range m.PathConditions {
		pred, err := p.path(sel, scope, alias, pc)
		if err != nil {
			return nil, "", fmt.Errorf("match %s: %w", m.Unknown.Name, err)
		}
		preds = append(preds, pred)
	}
	scope[m.Unknown.Name] = alias
	for _, ec := range m.ExistentialConditions {
		pred, err := p.existential(scope, ec)
		if err != nil {
			return nil, "", fmt.Errorf("match %s: %w", m.Unknown.Name, err)
		}
		preds = append(preds, pred)
	}
	return preds, alias, nil
}

// path walks both sides of pc up to their pivots and joins the pivots.
func (p *planner) path(sel *Select, scope map[string]string, unknown string, pc spec.PathCondition) (Predicate, error) {
	right, ok := scope[pc.LabelRight]
	if !ok {
		return nil, fmt.Errorf("path condition references unbound label %q", pc.LabelRight)
	}
	left := unknown
	for _, r := range pc.RolesLeft {
		next := p.fact(sel, r.TargetType)
		p.edge(sel, r.Name, left, next)
		left = next
	}
	for _, r := range pc.RolesRight {
		next := p.fact(sel, r.TargetType)
		p.edge(sel, r.Name, right, next)
		right = next
	}
	return SameFact{Left: left, Right: right}, nil
}

// existential plans ec as a correlated subquery. Labels bound inside it
// do not leak into scope.
func (p *planner) existential(scope map[string]string, ec spec.ExistentialCondition) (Predicate, error) {
	inner := maps.Clone(scope)
	sub := Select{}
	var filter []Predicate
	for _, m := range ec.Matches {
		preds, _, err := p.match(&sub, inner, m)
		if err != nil {
			return nil, err
		}
		filter = append(filter, preds...)
	}
	if len(filter) > 0 {
		sub.Filter = And{Predicates: filter}
	}
	return Exists{Negated: !ec.Exists, Query: sub}, nil
}
