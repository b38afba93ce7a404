package spec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/factsync/internal/ir"
	"github.com/roach88/factsync/internal/spec"
	"github.com/roach88/factsync/internal/testutil"
)

func TestSubset(t *testing.T) {
	s := spec.NewSubset("office", "company")
	grown := s.Add("name")

	assert.Equal(t, []string{"company", "office"}, s.Names(), "Add must not modify the receiver")
	assert.Equal(t, []string{"company", "name", "office"}, grown.Names())
	assert.True(t, grown.Contains("name"))
	assert.False(t, grown.Contains("manager"))
	assert.True(t, s.Add("office").Equal(s))
	assert.Equal(t, "[company, office]", s.String())

	c := ir.FactReference{Type: "Company", Hash: "c"}
	o := ir.FactReference{Type: "Office", Hash: "o"}
	n := ir.FactReference{Type: "Office.Name", Hash: "n"}
	restricted := s.Restrict(testutil.Tuple("company", c, "office", o, "name", n))
	assert.Equal(t, []string{"company", "office"}, restricted.Labels())
}

func TestPath(t *testing.T) {
	assert.Nil(t, spec.Root.Segments())
	p := spec.Root.Child("managers").Child("names")
	assert.Equal(t, spec.Path("managers.names"), p)
	assert.Equal(t, []string{"managers", "names"}, p.Segments())
	assert.Equal(t, spec.Path("managers"), p.Parent())
	assert.Equal(t, spec.Root, p.Parent().Parent())
}

func TestLevels(t *testing.T) {
	levels := spec.Levels(testutil.CurrentManagerNamesSpec())
	paths := make([]spec.Path, len(levels))
	for i, l := range levels {
		paths[i] = l.Path
	}
	assert.Equal(t, []spec.Path{"", "managers", "managers.names"}, paths)

	root, names := levels[0], levels[2]
	assert.Equal(t, []string{"company", "office"}, root.ResultSubset.Names())
	assert.Equal(t, 0, root.ParentSubset.Len())

	assert.Equal(t, []string{"company", "manager", "name", "office"}, names.ResultSubset.Names())
	assert.Equal(t, []string{"company", "manager", "office"}, names.ParentSubset.Names())
	assert.Len(t, names.Matches, 3)
	assert.Len(t, names.Own, 1)
	assert.Equal(t, spec.FieldProjection{Tag: "name", Field: "value"}, names.Projection)

	_, ok := spec.LevelAt(testutil.OfficeNamesSpec(), "names")
	assert.True(t, ok)
	_, ok = spec.LevelAt(testutil.OfficeNamesSpec(), "managers")
	assert.False(t, ok)
}

func TestReferencedLabels(t *testing.T) {
	s := testutil.CurrentManagerNamesSpec()
	names, _ := spec.FindCollection(s.Projection, "managers")
	inner, _ := spec.FindCollection(names.Projection, "names")

	assert.Equal(t, []string{"office"}, spec.ReferencedLabels(names.Matches))
	assert.Equal(t, []string{"manager"}, spec.ReferencedLabels(inner.Matches))
	assert.Equal(t, []string{"company"}, spec.ReferencedLabels(s.Matches))
}
