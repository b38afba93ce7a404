package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factsync/internal/ir"
	"github.com/roach88/factsync/internal/testutil"
)

func TestMemoryGraph_AddIsIdempotent(t *testing.T) {
	g := NewMemoryGraph()
	company := testutil.Company("acme")

	ref1, added, err := g.Add(company)
	require.NoError(t, err)
	assert.True(t, added)

	ref2, added, err := g.Add(company)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, ref1, ref2)
	assert.Equal(t, 1, g.Len())
}

func TestMemoryGraph_Traversal(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGraph(WithSequencer(testutil.NewDeterministicClock()))

	c := g.MustAdd(testutil.Company("acme"))
	o1 := g.MustAdd(testutil.Office(c, "hq"))
	o2 := g.MustAdd(testutil.Office(c, "branch"))
	closure := g.MustAdd(testutil.OfficeClosed(o1))

	preds, err := g.PredecessorsByRole(ctx, o1, "company")
	require.NoError(t, err)
	assert.Equal(t, []ir.FactReference{c}, preds)

	none, err := g.PredecessorsByRole(ctx, o1, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)

	succs, err := g.SuccessorsByRole(ctx, c, "company", "Office")
	require.NoError(t, err)
	assert.Equal(t, []ir.FactReference{o1, o2}, succs, "successors come back in insertion order")

	wrongType, err := g.SuccessorsByRole(ctx, c, "company", "Office.Closed")
	require.NoError(t, err)
	assert.Empty(t, wrongType)

	closures, err := g.SuccessorsByRole(ctx, o1, "office", "Office.Closed")
	require.NoError(t, err)
	assert.Equal(t, []ir.FactReference{closure}, closures)

	seq, ok := g.Seq(o2)
	require.True(t, ok)
	assert.Equal(t, int64(3), seq)
}

func TestMemoryGraph_DanglingPredecessor(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGraph()

	missing := testutil.Company("elsewhere").MustReference()
	office := g.MustAdd(testutil.Office(missing, "remote"))

	preds, err := g.PredecessorsByRole(ctx, office, "company")
	require.NoError(t, err)
	assert.Equal(t, []ir.FactReference{missing}, preds)

	_, err = g.Fact(ctx, missing)
	assert.ErrorIs(t, err, ErrFactNotFound)

	_, err = g.PredecessorsByRole(ctx, missing, "company")
	assert.ErrorIs(t, err, ErrFactNotFound)

	ok, err := Contains(ctx, g, missing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryGraph_RejectsInvalidFacts(t *testing.T) {
	g := NewMemoryGraph()
	_, _, err := g.Add(ir.Fact{})
	assert.Error(t, err)
}
