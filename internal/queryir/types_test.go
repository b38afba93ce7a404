package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelect_ImplementsQuery(t *testing.T) {
	var q Query = Select{}
	switch q.(type) {
	case Select:
	default:
		t.Fatal("unexpected type")
	}
}

func TestSources_AreSealed(t *testing.T) {
	sources := []Source{
		FactSource{Alias: "f0", Type: "Company"},
		EdgeSource{Alias: "e0", Role: "company", Successor: "f1", Predecessor: "f0"},
	}
	for _, s := range sources {
		switch s.(type) {
		case FactSource, EdgeSource:
		default:
			t.Fatalf("unexpected source %T", s)
		}
	}
}

func TestConjuncts_FlattensNestedAnd(t *testing.T) {
	p := And{Predicates: []Predicate{
		BoundFact{Alias: "f0", Label: "company"},
		And{Predicates: []Predicate{
			SameFact{Left: "f2", Right: "f0"},
			And{},
		}},
		Exists{Negated: true},
	}}

	got := Conjuncts(p)
	assert.Equal(t, []Predicate{
		BoundFact{Alias: "f0", Label: "company"},
		SameFact{Left: "f2", Right: "f0"},
		Exists{Negated: true},
	}, got)
	assert.Nil(t, Conjuncts(nil))
}
