package queryir

// Query represents an abstract relational query over the fact store.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
type Query interface {
	queryNode()
}

// Source is one FROM item of a Select.
//
// Sealed: FactSource and EdgeSource are the only implementations.
type Source interface {
	sourceNode()
}

// Predicate represents a filter condition.
//
// Sealed: BoundFact, SameFact, And, and Exists are the only
// implementations.
type Predicate interface {
	predicateNode()
}

// Select is a conjunctive query over fact rows and edge rows.
//
// Semantics:
//
//	SELECT [DISTINCT] <outputs> FROM <sources> WHERE <filter> ORDER BY <order>
//
// Every FactSource is implicitly filtered to its declared type, and every
// EdgeSource joins its two endpoint fact sources through one role. A Select
// nested in an Exists may reference fact aliases of the enclosing Select.
//
// Example: the match "office: Office [ office->company: Company = company ]"
// from a given company plans as
//
//	Select{
//	  Distinct: true,
//	  Sources: []Source{
//	    FactSource{Alias: "f0", Type: "Company"},
//	    FactSource{Alias: "f1", Type: "Office"},
//	    FactSource{Alias: "f2", Type: "Company"},
//	    EdgeSource{Alias: "e0", Role: "company", Successor: "f1", Predecessor: "f2"},
//	  },
//	  Filter: And{Predicates: []Predicate{
//	    BoundFact{Alias: "f0", Label: "company"},
//	    SameFact{Left: "f2", Right: "f0"},
//	  }},
//	  Outputs: []Output{
//	    {Label: "company", Alias: "f0", Type: "Company"},
//	    {Label: "office", Alias: "f1", Type: "Office"},
//	  },
//	  OrderBy: []string{"f0", "f1"},
//	}
type Select struct {
	Distinct bool
	Sources  []Source
	Filter   Predicate // nil = no filter
	Outputs  []Output  // empty for existential subqueries
	OrderBy  []string  // fact aliases, ordered by insertion sequence
}

func (Select) queryNode() {}

// Output binds one label to the fact row under Alias.
type Output struct {
	Label string
	Alias string
	Type  string
}

// FactSource is one row of the fact table of the given type.
type FactSource struct {
	Alias string
	Type  string
}

func (FactSource) sourceNode() {}

// EdgeSource is one row of the edge table linking the fact under Successor
// to the fact under Predecessor through Role. The role is defined by the
// successor's type.
type EdgeSource struct {
	Alias       string
	Role        string
	Successor   string
	Predecessor string
}

func (EdgeSource) sourceNode() {}

// BoundFact pins the fact under Alias to the reference bound to Label at
// execution time.
type BoundFact struct {
	Alias string
	Label string
}

func (BoundFact) predicateNode() {}

// SameFact requires two fact aliases to be the same row. It is how the two
// walks of a path condition meet at their pivot.
type SameFact struct {
	Left  string
	Right string
}

func (SameFact) predicateNode() {}

// And is a conjunction. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Exists holds iff Query yields at least one row, negated when Negated is
// set. Query is correlated: it may reference aliases of the enclosing
// Select.
type Exists struct {
	Negated bool
	Query   Select
}

func (Exists) predicateNode() {}

// Conjuncts flattens nested And predicates.
func Conjuncts(p Predicate) []Predicate {
	switch v := p.(type) {
	case nil:
		return nil
	case And:
		var out []Predicate
		for _, sub := range v.Predicates {
			out = append(out, Conjuncts(sub)...)
		}
		return out
	default:
		return []Predicate{p}
	}
}
