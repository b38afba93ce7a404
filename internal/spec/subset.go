package spec

import (
	"slices"
	"strings"

	"github.com/roach88/factsync/internal/ir"
)

// Subset is a set of label names that jointly identify one result at a
// given nesting depth. The zero value is the empty set. Subsets are values:
// Add returns a new Subset and never modifies the receiver.
type Subset struct {
	names []string // sorted, unique
}

// NewSubset builds a Subset from names.
func NewSubset(names ...string) Subset {
	var s Subset
	for _, n := range names {
		s = s.Add(n)
	}
	return s
}

// Add returns the subset extended with name.
func (s Subset) Add(name string) Subset {
	i, found := slices.BinarySearch(s.names, name)
	if found {
		return s
	}
	return Subset{names: slices.Insert(slices.Clone(s.names), i, name)}
}

// Contains reports membership.
func (s Subset) Contains(name string) bool {
	_, found := slices.BinarySearch(s.names, name)
	return found
}

// Names returns the members in sorted order.
func (s Subset) Names() []string {
	return slices.Clone(s.names)
}

// Len is the number of members.
func (s Subset) Len() int {
	return len(s.names)
}

// Restrict keeps only the tuple entries whose label is in the subset.
func (s Subset) Restrict(t ir.FactReferenceTuple) ir.FactReferenceTuple {
	return t.Restrict(s.Contains)
}

// Equal reports whether both subsets have the same members.
func (s Subset) Equal(other Subset) bool {
	return slices.Equal(s.names, other.names)
}

// String renders the subset as "[a, b]".
func (s Subset) String() string {
	return "[" + strings.Join(s.names, ", ") + "]"
}

// Path addresses a nesting depth by dotted collection names. The root is
// the empty path.
type Path string

// Root is the top-level result path.
const Root Path = ""

// Child appends one collection name.
func (p Path) Child(name string) Path {
	if p == Root {
		return Path(name)
	}
	return p + "." + Path(name)
}

// Segments splits the path into collection names. Root has none.
func (p Path) Segments() []string {
	if p == Root {
		return nil
	}
	return strings.Split(string(p), ".")
}

// Parent drops the last segment.
func (p Path) Parent() Path {
	i := strings.LastIndexByte(string(p), '.')
	if i < 0 {
		return Root
	}
	return p[:i]
}
