package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func company() Fact {
	return Fact{Type: "Company", Fields: IRObject{"identifier": IRString("acme")}}
}

func TestHashFactDeterminism(t *testing.T) {
	h1, err := HashFact(company())
	require.NoError(t, err)
	h2, err := HashFact(company())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestHashFactSensitivity(t *testing.T) {
	base := company()
	c := base.MustReference()

	office := Fact{
		Type:         "Office",
		Fields:       IRObject{"identifier": IRString("hq")},
		Predecessors: map[string][]FactReference{"company": {c}},
	}

	tests := []struct {
		name string
		fact Fact
	}{
		{"different type", Fact{Type: "Vendor", Fields: base.Fields}},
		{"different field", Fact{Type: "Company", Fields: IRObject{"identifier": IRString("other")}}},
		{"with predecessor", office},
		{"different role", Fact{Type: "Office", Fields: office.Fields, Predecessors: map[string][]FactReference{"owner": {c}}}},
	}

	seen := map[string]string{"base": MustHashFact(base), "office": MustHashFact(office)}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := MustHashFact(tt.fact)
			for name, other := range seen {
				if name == "office" && tt.name == "with predecessor" {
					continue
				}
				assert.NotEqual(t, other, h, "collides with %s", name)
			}
		})
	}
}

func TestHashFactPredecessorOrderIrrelevant(t *testing.T) {
	a := FactReference{Type: "User", Hash: "aaaa"}
	b := FactReference{Type: "User", Hash: "bbbb"}

	f1 := Fact{Type: "Meeting", Fields: IRObject{}, Predecessors: map[string][]FactReference{"attendees": {a, b}}}
	f2 := Fact{Type: "Meeting", Fields: IRObject{}, Predecessors: map[string][]FactReference{"attendees": {b, a, b}}}

	assert.Equal(t, MustHashFact(f1), MustHashFact(f2))
}

func TestHashFactNilAndEmptyFieldsAgree(t *testing.T) {
	assert.Equal(t,
		MustHashFact(Fact{Type: "Root"}),
		MustHashFact(Fact{Type: "Root", Fields: IRObject{}}))
}

func TestHashFactErrors(t *testing.T) {
	_, err := HashFact(Fact{})
	require.Error(t, err)

	_, err = HashFact(Fact{Type: "X", Fields: IRObject{"n": IRNull{}}})
	require.Error(t, err)
}

func TestFactValidate(t *testing.T) {
	assert.NoError(t, company().Validate())
	assert.Error(t, Fact{}.Validate())
	assert.Error(t, Fact{Type: "X", Predecessors: map[string][]FactReference{"r": {{Type: "Y"}}}}.Validate())
	assert.Error(t, Fact{Type: "X", Predecessors: map[string][]FactReference{"": {{Type: "Y", Hash: "h"}}}}.Validate())
}
