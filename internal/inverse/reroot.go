package inverse

import (
	"slices"

	"github.com/roach88/factsync/internal/spec"
)

// node is one entry of the flat match list. Givens are nodes with no path
// conditions.
type node struct {
	label  spec.Label
	conds  []spec.PathCondition
	exists []spec.ExistentialCondition
	given  bool
}

func (n node) withoutExistential(k int) node {
	n.exists = slices.Delete(slices.Clone(n.exists), k, k+1)
	return n
}

// flatten lists givens followed by matches as uniform nodes.
func flatten(givens []spec.Given, matches []spec.Match) []node {
	nodes := make([]node, 0, len(givens)+len(matches))
	for _, g := range givens {
		nodes = append(nodes, node{label: g.Label, exists: g.ExistentialConditions, given: true})
	}
	for _, m := range matches {
		nodes = append(nodes, node{label: m.Unknown, conds: m.PathConditions, exists: m.ExistentialConditions})
	}
	return nodes
}

// edge is one path condition viewed as an undirected link between the
// unknown that declares it and its labelRight.
type edge struct {
	owner string
	other string
	pc    spec.PathCondition
}

// orient returns the path condition as read from x, the endpoint visited
// later. An edge declared by the other endpoint has its role chains
// swapped so it reads outward from the already-visited label.
func (e edge) orient(x string) spec.PathCondition {
	if e.owner == x {
		return e.pc
	}
	return e.pc.Reversed(e.owner)
}

func (e edge) touches(x string) bool {
	return e.owner == x || e.other == x
}

func (e edge) far(x string) string {
	if e.owner == x {
		return e.other
	}
	return e.owner
}

type rerooted struct {
	givens  []spec.Given
	matches []spec.Match
}

// reroot rewrites the flat node list so evaluation starts at target.
//
// Nodes are visited depth-first from target along path conditions. Each
// edge lands in the match of whichever endpoint is visited second, oriented
// from that endpoint. Original givens not reachable from target become
// additional givens of the result and are explored after it. Existential
// conditions attach, unchanged, to the last visited label they refer to.
//
// reroot reports false when the target is not among the nodes.
func reroot(nodes []node, target spec.Label) (rerooted, bool) {
	byName := map[string]node{}
	var edges []edge
	for _, n := range nodes {
		byName[n.label.Name] = n
		for _, pc := range n.conds {
			edges = append(edges, edge{owner: n.label.Name, other: pc.LabelRight, pc: pc})
		}
	}
	if _, ok := byName[target.Name]; !ok {
		return rerooted{}, false
	}

	index := map[string]int{}
	var order []string
	discovered := map[string]int{}

	var visit func(x string)
	visit = func(x string) {
		for i, e := range edges {
			if !e.touches(x) {
				continue
			}
			y := e.far(x)
			if _, seen := index[y]; seen {
				continue
			}
			if _, known := byName[y]; !known {
				continue
			}
			index[y] = len(order)
			order = append(order, y)
			discovered[y] = i
			visit(y)
		}
	}

	roots := []string{target.Name}
	index[target.Name] = 0
	order = append(order, target.Name)
	visit(target.Name)
	for _, n := range nodes {
		if !n.given {
			continue
		}
		if _, seen := index[n.label.Name]; seen {
			continue
		}
		roots = append(roots, n.label.Name)
		index[n.label.Name] = len(order)
		order = append(order, n.label.Name)
		visit(n.label.Name)
	}
	if len(order) != len(nodes) {
		return rerooted{}, false
	}

	// Existentials attach to the last visited label they read.
	attached := map[string][]spec.ExistentialCondition{}
	for _, n := range nodes {
		for _, ec := range n.exists {
			host := n.label.Name
			refs := spec.ReferencedLabels(ec.Matches)
			if len(refs) > 0 {
				host = refs[0]
				for _, r := range refs[1:] {
					if index[r] > index[host] {
						host = r
					}
				}
			}
			attached[host] = append(attached[host], ec)
		}
	}

	var out rerooted
	isRoot := map[string]bool{}
	for _, r := range roots {
		isRoot[r] = true
		out.givens = append(out.givens, spec.Given{
			Label:                 byName[r].label,
			ExistentialConditions: attached[r],
		})
	}
	for _, x := range order {
		if isRoot[x] {
			continue
		}
		first := discovered[x]
		conds := []spec.PathCondition{edges[first].orient(x)}
		for i, e := range edges {
			if i == first || !e.touches(x) {
				continue
			}
			y := e.far(x)
			if j, ok := index[y]; ok && j < index[x] {
				conds = append(conds, e.orient(x))
			}
		}
		out.matches = append(out.matches, spec.Match{
			Unknown:               byName[x].label,
			PathConditions:        conds,
			ExistentialConditions: attached[x],
		})
	}
	return out, true
}
