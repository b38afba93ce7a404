package store

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factsync/internal/engine"
	"github.com/roach88/factsync/internal/graph"
	"github.com/roach88/factsync/internal/ir"
	"github.com/roach88/factsync/internal/spec"
	"github.com/roach88/factsync/internal/testutil"
)

// directory is a small populated company used by the read tests.
type directory struct {
	company, nyc, sfo, closure ir.FactReference
	alice, aliceRenamed        ir.FactReference
}

func seedDirectory(t *testing.T, s *Store) directory {
	t.Helper()
	ctx := context.Background()
	save := func(f ir.Fact) ir.FactReference {
		ref, _, err := s.SaveFact(ctx, f)
		require.NoError(t, err)
		return ref
	}

	var d directory
	d.company = save(testutil.Company("acme"))
	save(testutil.Company("globex"))
	d.nyc = save(testutil.Office(d.company, "nyc"))
	d.sfo = save(testutil.Office(d.company, "sfo"))
	d.closure = save(testutil.OfficeClosed(d.sfo))
	first := save(testutil.OfficeName(d.nyc, "Midtown"))
	save(testutil.OfficeName(d.nyc, "Hudson Yards", first))
	save(testutil.OfficeName(d.sfo, "SoMa"))
	d.alice = save(testutil.Manager(d.nyc, 1001))
	save(testutil.Manager(d.sfo, 2002))
	name := save(testutil.ManagerName(d.alice, "Alice"))
	d.aliceRenamed = save(testutil.ManagerName(d.alice, "Alice Smith", name))
	return d
}

func TestFact_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	company := testutil.Company("acme")
	office := testutil.Office(company.MustReference(), "nyc")

	_, err := s.SaveFacts(ctx, []ir.Fact{company, office})
	require.NoError(t, err)

	got, err := s.Fact(ctx, office.MustReference())
	require.NoError(t, err)
	assert.Equal(t, office.MustReference(), got.MustReference(), "reloaded fact hashes the same")
	assert.Equal(t, ir.IRString("nyc"), got.Fields["identifier"])
}

func TestFact_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Fact(context.Background(), testutil.Company("acme").MustReference())
	assert.ErrorIs(t, err, graph.ErrFactNotFound)
}

func TestPredecessorsByRole(t *testing.T) {
	s := createTestStore(t)
	d := seedDirectory(t, s)
	ctx := context.Background()

	preds, err := s.PredecessorsByRole(ctx, d.sfo, "company")
	require.NoError(t, err)
	assert.Equal(t, []ir.FactReference{d.company}, preds)

	preds, err = s.PredecessorsByRole(ctx, d.sfo, "prior")
	require.NoError(t, err)
	assert.Empty(t, preds)

	_, err = s.PredecessorsByRole(ctx, testutil.Company("initech").MustReference(), "company")
	assert.ErrorIs(t, err, graph.ErrFactNotFound)
}

func TestSuccessorsByRole_InsertionOrder(t *testing.T) {
	s := createTestStore(t)
	d := seedDirectory(t, s)
	ctx := context.Background()

	offices, err := s.SuccessorsByRole(ctx, d.company, "company", "Office")
	require.NoError(t, err)
	assert.Equal(t, []ir.FactReference{d.nyc, d.sfo}, offices)

	closures, err := s.SuccessorsByRole(ctx, d.nyc, "office", "Office.Closed")
	require.NoError(t, err)
	assert.Empty(t, closures)

	closures, err = s.SuccessorsByRole(ctx, d.sfo, "office", "Office.Closed")
	require.NoError(t, err)
	assert.Equal(t, []ir.FactReference{d.closure}, closures)
}

func TestReadFacts_Order(t *testing.T) {
	s := createTestStore(t)

	facts, err := s.ReadFacts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, facts)
	assert.Empty(t, facts)

	seedDirectory(t, s)
	facts, err = s.ReadFacts(context.Background())
	require.NoError(t, err)
	require.Len(t, facts, 12)
	for i, sf := range facts {
		assert.Equal(t, int64(i+1), sf.Seq)
	}
	assert.Equal(t, "Company", facts[0].Fact.Type)
}

func TestReadTuples_AgreesWithExecutor(t *testing.T) {
	s := createTestStore(t)
	d := seedDirectory(t, s)
	exec := engine.NewExecutor(s)

	tests := []struct {
		name  string
		spec  spec.Specification
		given ir.FactReferenceTuple
	}{
		{"open_offices", testutil.OpenOfficesSpec(), testutil.Tuple("company", d.company)},
		{"office_names", testutil.OfficeNamesSpec(), testutil.Tuple("company", d.company)},
		{"current_manager_names", testutil.CurrentManagerNamesSpec(), testutil.Tuple("company", d.company)},
		{"company_of_office", testutil.CompanyOfOfficeSpec(), testutil.Tuple("office", d.sfo)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			want, err := exec.Read(ctx, tt.spec, tt.given)
			require.NoError(t, err)
			got, err := s.ReadTuples(ctx, tt.spec, tt.given)
			require.NoError(t, err)
			assert.ElementsMatch(t, keys(want), keys(got))
		})
	}
}

func TestReadTuples_OpenOffices(t *testing.T) {
	s := createTestStore(t)
	d := seedDirectory(t, s)

	got, err := s.ReadTuples(context.Background(), testutil.OpenOfficesSpec(), testutil.Tuple("company", d.company))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(testutil.Tuple("company", d.company, "office", d.nyc)))
}

func TestReadTuples_EmptyResult(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	globex, _, err := s.SaveFact(ctx, testutil.Company("globex"))
	require.NoError(t, err)

	got, err := s.ReadTuples(ctx, testutil.OpenOfficesSpec(), testutil.Tuple("company", globex))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReadTuples_GivenErrors(t *testing.T) {
	s := createTestStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	_, err := s.ReadTuples(ctx, testutil.OpenOfficesSpec(), testutil.Tuple("company", testutil.Company("initech").MustReference()))
	assert.ErrorIs(t, err, graph.ErrFactNotFound)

	_, err = s.ReadTuples(ctx, testutil.OpenOfficesSpec(), ir.FactReferenceTuple{})
	assert.ErrorContains(t, err, `given "company" is not bound`)

	office := testutil.Office(testutil.Company("acme").MustReference(), "nyc").MustReference()
	_, err = s.ReadTuples(ctx, testutil.OpenOfficesSpec(), testutil.Tuple("company", office))
	assert.ErrorContains(t, err, "expected Company")
}

func keys(tuples []ir.FactReferenceTuple) []string {
	out := make([]string, len(tuples))
	for i, t := range tuples {
		out[i] = t.Key()
	}
	slices.Sort(out)
	return out
}
