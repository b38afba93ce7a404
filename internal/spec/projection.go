package spec

import (
	"slices"
	"strings"
)

// Projection is a sealed interface over the output shapes a result can
// take. Only SimpleProjection, FieldProjection, HashProjection,
// CompoundProjection, and CollectionProjection implement it.
type Projection interface {
	projection()
}

// SimpleProjection emits the fact bound to Tag.
type SimpleProjection struct {
	Tag string
}

func (SimpleProjection) projection() {}

// FieldProjection emits one field of the fact bound to Tag.
type FieldProjection struct {
	Tag   string
	Field string
}

func (FieldProjection) projection() {}

// HashProjection emits the content hash of the fact bound to Tag.
type HashProjection struct {
	Tag string
}

func (HashProjection) projection() {}

// Component is one named entry of a CompoundProjection.
type Component struct {
	Name       string
	Projection Projection
}

// CompoundProjection emits a record. Components render and evaluate in
// name order regardless of construction order.
type CompoundProjection struct {
	Components []Component
}

func (CompoundProjection) projection() {}

// Compound builds a CompoundProjection with components sorted by name.
func Compound(components ...Component) CompoundProjection {
	sorted := slices.Clone(components)
	slices.SortStableFunc(sorted, func(a, b Component) int {
		return strings.Compare(a.Name, b.Name)
	})
	return CompoundProjection{Components: sorted}
}

// Sorted returns the components in name order.
func (c CompoundProjection) Sorted() []Component {
	return Compound(c.Components...).Components
}

// Component looks up a component by name.
func (c CompoundProjection) Component(name string) (Projection, bool) {
	for _, comp := range c.Components {
		if comp.Name == name {
			return comp.Projection, true
		}
	}
	return nil, false
}

// CollectionProjection emits a nested list by running Matches from the
// enclosing tuple and projecting each resulting tuple with Projection.
type CollectionProjection struct {
	Matches    []Match
	Projection Projection
}

func (CollectionProjection) projection() {}

// IsEmpty reports whether p produces no output: nil or a compound with no
// components. An empty projection is how feeds are represented.
func IsEmpty(p Projection) bool {
	if p == nil {
		return true
	}
	c, ok := p.(CompoundProjection)
	return ok && len(c.Components) == 0
}

// FeedProjection keeps only the collection-shaped portion of p. Scalar and
// fact leaves are dropped; compounds keep only the components that still
// contain a collection.
func FeedProjection(p Projection) Projection {
	switch v := p.(type) {
	case CompoundProjection:
		var kept []Component
		for _, comp := range v.Components {
			reduced := FeedProjection(comp.Projection)
			if !IsEmpty(reduced) {
				kept = append(kept, Component{Name: comp.Name, Projection: reduced})
			}
		}
		return Compound(kept...)
	case CollectionProjection:
		return CollectionProjection{
			Matches:    v.Matches,
			Projection: FeedProjection(v.Projection),
		}
	default:
		return CompoundProjection{}
	}
}

// Feed returns s with its projection reduced to the collection-shaped
// portion. This lossy form is what replicas exchange to request feeds.
func Feed(s Specification) Specification {
	return Specification{
		Givens:     s.Givens,
		Matches:    s.Matches,
		Projection: FeedProjection(s.Projection),
	}
}

// ProjectionTags returns every label a projection reads directly, not
// counting labels introduced inside nested collections.
func ProjectionTags(p Projection) []string {
	var tags []string
	switch v := p.(type) {
	case SimpleProjection:
		tags = append(tags, v.Tag)
	case FieldProjection:
		tags = append(tags, v.Tag)
	case HashProjection:
		tags = append(tags, v.Tag)
	case CompoundProjection:
		for _, comp := range v.Components {
			tags = append(tags, ProjectionTags(comp.Projection)...)
		}
	}
	return tags
}
