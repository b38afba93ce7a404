package spec

import "slices"

// NamedCollection is a collection together with the compound component
// name it is published under.
type NamedCollection struct {
	Name       string
	Collection CollectionProjection
}

// Collections returns the collections directly reachable from p through
// compounds, in component-name order. Collections nested inside another
// collection's projection are not included.
func Collections(p Projection) []NamedCollection {
	var out []NamedCollection
	var walk func(p Projection)
	walk = func(p Projection) {
		c, ok := p.(CompoundProjection)
		if !ok {
			return
		}
		for _, comp := range c.Sorted() {
			switch v := comp.Projection.(type) {
			case CollectionProjection:
				out = append(out, NamedCollection{Name: comp.Name, Collection: v})
			case CompoundProjection:
				walk(v)
			}
		}
	}
	walk(p)
	return out
}

// FindCollection looks up a collection by component name.
func FindCollection(p Projection, name string) (CollectionProjection, bool) {
	for _, nc := range Collections(p) {
		if nc.Name == name {
			return nc.Collection, true
		}
	}
	return CollectionProjection{}, false
}

// Level describes one nesting depth of a specification's output.
type Level struct {
	Path Path
	// Matches is the full match chain from the givens to this depth: the
	// top-level matches followed by each enclosing collection's matches.
	Matches []Match
	// Own is the part of Matches introduced at this depth.
	Own        []Match
	Projection Projection
	// ResultSubset identifies one row at this depth.
	ResultSubset Subset
	// ParentSubset identifies the row this depth is nested under. Empty at
	// the root.
	ParentSubset Subset
}

// Levels enumerates every nesting depth of s in pre-order, starting with
// the root.
func Levels(s Specification) []Level {
	root := NewSubset()
	for _, g := range s.Givens {
		root = root.Add(g.Label.Name)
	}
	for _, m := range s.Matches {
		root = root.Add(m.Unknown.Name)
	}

	var out []Level
	var walk func(path Path, matches, own []Match, proj Projection, result, parent Subset)
	walk = func(path Path, matches, own []Match, proj Projection, result, parent Subset) {
		out = append(out, Level{
			Path:         path,
			Matches:      matches,
			Own:          own,
			Projection:   proj,
			ResultSubset: result,
			ParentSubset: parent,
		})
		for _, nc := range Collections(proj) {
			childResult := result
			for _, m := range nc.Collection.Matches {
				childResult = childResult.Add(m.Unknown.Name)
			}
			childMatches := append(slices.Clone(matches), nc.Collection.Matches...)
			walk(path.Child(nc.Name), childMatches, nc.Collection.Matches, nc.Collection.Projection, childResult, result)
		}
	}
	walk(Root, s.Matches, s.Matches, s.Projection, root, Subset{})
	return out
}

// LevelAt returns the level addressed by path.
func LevelAt(s Specification, path Path) (Level, bool) {
	for _, l := range Levels(s) {
		if l.Path == path {
			return l, true
		}
	}
	return Level{}, false
}
