package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factsync/internal/graph"
	"github.com/roach88/factsync/internal/inverse"
	"github.com/roach88/factsync/internal/ir"
	"github.com/roach88/factsync/internal/spec"
	"github.com/roach88/factsync/internal/testutil"
)

type recordingListener struct {
	mu      sync.Mutex
	added   []string
	removed []string
}

func (l *recordingListener) Added(path spec.Path, p Product) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.added = append(l.added, string(path)+" "+p.Tuple.Key())
}

func (l *recordingListener) Removed(path spec.Path, t ir.FactReferenceTuple) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removed = append(l.removed, string(path)+" "+t.Key())
}

func startObserver(t *testing.T, g graph.FactGraph, s spec.Specification, given ir.FactReferenceTuple, opts ...ObserverOption) *Observer {
	t.Helper()
	opts = append([]ObserverOption{WithIDGenerator(testutil.NewSequentialIDs("obs"))}, opts...)
	o, err := NewObserver(g, s, given, opts...)
	require.NoError(t, err)
	require.NoError(t, o.Start(context.Background()))
	return o
}

// assertConsistent checks the observer against a fresh execution.
func assertConsistent(t *testing.T, o *Observer, g graph.FactGraph, given ir.FactReferenceTuple) {
	t.Helper()
	want, err := NewExecutor(g).Execute(context.Background(), o.Specification(), given)
	require.NoError(t, err)
	assert.Equal(t, Canonical(want), Canonical(o.Results()))
}

func TestObserver_ClosureRemovesOffice(t *testing.T) {
	ctx := context.Background()
	g := graph.NewMemoryGraph()
	company := g.MustAdd(testutil.Company("acme"))
	office := g.MustAdd(testutil.Office(company, "nyc"))
	given := testutil.Tuple("company", company)

	listener := &recordingListener{}
	o := startObserver(t, g, testutil.OpenOfficesSpec(), given, WithListener(listener))
	require.Len(t, o.Results(), 1)
	assert.Equal(t, SimpleElement{Ref: office}, o.Results()[0].Result)

	closure := g.MustAdd(testutil.OfficeClosed(office))
	changes, err := o.Apply(ctx, closure)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.False(t, changes[0].Added)
	assert.True(t, changes[0].Tuple.Equal(testutil.Tuple("company", company, "office", office)))

	assert.Empty(t, o.Results())
	assert.Equal(t, []string{" " + testutil.Tuple("company", company, "office", office).Key()}, listener.removed)
	assertConsistent(t, o, g, given)
}

func TestObserver_NewOfficeIsAdded(t *testing.T) {
	ctx := context.Background()
	g := graph.NewMemoryGraph()
	company := g.MustAdd(testutil.Company("acme"))
	other := g.MustAdd(testutil.Company("globex"))
	given := testutil.Tuple("company", company)
	o := startObserver(t, g, testutil.OpenOfficesSpec(), given)
	require.Empty(t, o.Results())

	office := g.MustAdd(testutil.Office(company, "nyc"))
	changes, err := o.Apply(ctx, office)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].Added)
	assert.Equal(t, SimpleElement{Ref: office}, changes[0].Product.Result)

	// Re-applying the same fact is idempotent.
	changes, err = o.Apply(ctx, office)
	require.NoError(t, err)
	assert.Empty(t, changes)

	// Offices of other companies disagree with the given.
	foreign := g.MustAdd(testutil.Office(other, "ber"))
	changes, err = o.Apply(ctx, foreign)
	require.NoError(t, err)
	assert.Empty(t, changes)

	assert.Len(t, o.Results(), 1)
	assertConsistent(t, o, g, given)
}

func TestObserver_NestedNameTargetsOneOffice(t *testing.T) {
	ctx := context.Background()
	g := graph.NewMemoryGraph()
	company := g.MustAdd(testutil.Company("acme"))
	nyc := g.MustAdd(testutil.Office(company, "nyc"))
	sfo := g.MustAdd(testutil.Office(company, "sfo"))
	given := testutil.Tuple("company", company)
	o := startObserver(t, g, testutil.OfficeNamesSpec(), given)
	before := o.Results()

	name := g.MustAdd(testutil.OfficeName(nyc, "New York"))
	changes, err := o.Apply(ctx, name)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, spec.Path("names"), changes[0].Path)
	assert.True(t, changes[0].Tuple.Equal(testutil.Tuple("company", company, "office", nyc, "name", name)))

	names := func(office ir.FactReference) []Product {
		for _, p := range o.Results() {
			if ref, _ := p.Tuple.Get("office"); ref == office {
				el, ok := p.Result.(CompoundElement).Field("names")
				require.True(t, ok)
				return el.(CollectionElement).Products
			}
		}
		t.Fatalf("office %s missing", office)
		return nil
	}
	require.Len(t, names(nyc), 1)
	assert.Equal(t, FieldElement{Value: ir.IRString("New York")}, names(nyc)[0].Result)
	assert.Empty(t, names(sfo))

	// The earlier snapshot is untouched.
	for _, p := range before {
		el, _ := p.Result.(CompoundElement).Field("names")
		assert.Empty(t, el.(CollectionElement).Products)
	}
	assertConsistent(t, o, g, given)
}

func TestObserver_ConsistentWithReexecution(t *testing.T) {
	ctx := context.Background()
	g := graph.NewMemoryGraph()
	company := g.MustAdd(testutil.Company("acme"))
	given := testutil.Tuple("company", company)
	o := startObserver(t, g, testutil.CurrentManagerNamesSpec(), given)

	nyc := testutil.Office(company, "nyc").MustReference()
	sfo := testutil.Office(company, "sfo").MustReference()
	alice := testutil.Manager(nyc, 1).MustReference()
	bob := testutil.Manager(sfo, 2).MustReference()
	first := testutil.ManagerName(alice, "Alice").MustReference()

	steps := []struct {
		name string
		fact ir.Fact
	}{
		{"office nyc", testutil.Office(company, "nyc")},
		{"office sfo", testutil.Office(company, "sfo")},
		{"manager alice", testutil.Manager(nyc, 1)},
		{"alice named", testutil.ManagerName(alice, "Alice")},
		{"alice renamed", testutil.ManagerName(alice, "Alicia", first)},
		{"unrelated office name", testutil.OfficeName(nyc, "New York")},
		{"sfo closed", testutil.OfficeClosed(sfo)},
		{"manager bob in closed office", testutil.Manager(sfo, 2)},
		{"bob named", testutil.ManagerName(bob, "Bob")},
		{"second manager in nyc", testutil.Manager(nyc, 3)},
		{"nyc closed", testutil.OfficeClosed(nyc)},
	}
	for _, step := range steps {
		ref := g.MustAdd(step.fact)
		_, err := o.Apply(ctx, ref)
		require.NoError(t, err, step.name)
		assertConsistent(t, o, g, given)
	}
	assert.Empty(t, o.Results())
}

func TestObserver_RenameReplacesCurrentName(t *testing.T) {
	ctx := context.Background()
	g := graph.NewMemoryGraph()
	company := g.MustAdd(testutil.Company("acme"))
	office := g.MustAdd(testutil.Office(company, "nyc"))
	manager := g.MustAdd(testutil.Manager(office, 1))
	first := g.MustAdd(testutil.ManagerName(manager, "Alice"))
	o := startObserver(t, g, testutil.CurrentManagerNamesSpec(), testutil.Tuple("company", company))

	second := g.MustAdd(testutil.ManagerName(manager, "Alicia", first))
	changes, err := o.Apply(ctx, second)
	require.NoError(t, err)

	var added, removed int
	for _, c := range changes {
		assert.Equal(t, spec.Path("managers.names"), c.Path)
		if c.Added {
			added++
		} else {
			removed++
		}
	}
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)

	value := ElementValue(o.Results()[0].Result).(ir.IRObject)
	assert.True(t, ir.Equal(ir.IRArray{ir.IRObject{
		"employeeNumber": ir.IRInt(1),
		"names":          ir.IRArray{ir.IRString("Alicia")},
	}}, value["managers"]))
}

func TestObserver_MaybeOperationsRecheck(t *testing.T) {
	// Offices qualify once they have at least one name; a superseding name
	// must not remove the office while another name still exists.
	named := spec.ExistentialCondition{
		Exists: true,
		Matches: []spec.Match{{
			Unknown: spec.Label{Name: "name", Type: "Office.Name"},
			PathConditions: []spec.PathCondition{{
				RolesLeft:  []spec.Role{{Name: "office", TargetType: "Office"}},
				LabelRight: "office",
			}},
		}},
	}
	s := spec.Specification{
		Givens:     testutil.CompanyGiven(),
		Matches:    []spec.Match{testutil.OfficeMatch(named)},
		Projection: spec.SimpleProjection{Tag: "office"},
	}
	invs, err := inverse.Invert(s)
	require.NoError(t, err)
	var ops []inverse.Operation
	for _, inv := range invs {
		ops = append(ops, inv.Operation)
	}
	assert.Contains(t, ops, inverse.MaybeAdd)

	ctx := context.Background()
	g := graph.NewMemoryGraph()
	company := g.MustAdd(testutil.Company("acme"))
	office := g.MustAdd(testutil.Office(company, "nyc"))
	given := testutil.Tuple("company", company)
	o := startObserver(t, g, s, given)
	require.Empty(t, o.Results())

	name := g.MustAdd(testutil.OfficeName(office, "New York"))
	changes, err := o.Apply(ctx, name)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, changes[0].Added)

	second := g.MustAdd(testutil.OfficeName(office, "NYC", name))
	changes, err = o.Apply(ctx, second)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assertConsistent(t, o, g, given)
}

func TestObserver_Errors(t *testing.T) {
	g := graph.NewMemoryGraph()
	company := g.MustAdd(testutil.Company("acme"))

	t.Run("invalid specification", func(t *testing.T) {
		s := testutil.OpenOfficesSpec()
		s.Givens = nil
		_, err := NewObserver(g, s, testutil.Tuple("company", company))
		var verr spec.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("unbound given", func(t *testing.T) {
		_, err := NewObserver(g, testutil.OpenOfficesSpec(), ir.FactReferenceTuple{})
		assert.ErrorIs(t, err, ErrUnboundLabel)
	})

	t.Run("mistyped given", func(t *testing.T) {
		office := g.MustAdd(testutil.Office(company, "nyc"))
		_, err := NewObserver(g, testutil.OpenOfficesSpec(), testutil.Tuple("company", office))
		assert.ErrorContains(t, err, "expected Company")
	})

	t.Run("apply before start", func(t *testing.T) {
		o, err := NewObserver(g, testutil.OpenOfficesSpec(), testutil.Tuple("company", company))
		require.NoError(t, err)
		_, err = o.Apply(context.Background(), company)
		assert.ErrorIs(t, err, ErrObserverNotStarted)
	})

	t.Run("incomplete graph", func(t *testing.T) {
		o := startObserver(t, g, testutil.OpenOfficesSpec(), testutil.Tuple("company", company))
		absent := testutil.Office(company, "ghost").MustReference()
		_, err := o.Apply(context.Background(), absent)
		assert.True(t, IsIncomplete(err))
		missing, ok := MissingFact(err)
		require.True(t, ok)
		assert.Equal(t, absent, missing)

		// Facts no inverse targets are still checked against the graph.
		stray := testutil.Company("initech").MustReference()
		_, err = o.Apply(context.Background(), stray)
		assert.ErrorIs(t, err, graph.ErrFactNotFound)
	})
}

func TestObserver_SharedCacheAndIDs(t *testing.T) {
	g := graph.NewMemoryGraph()
	company := g.MustAdd(testutil.Company("acme"))
	cache, err := inverse.NewCache(0)
	require.NoError(t, err)
	ids := testutil.NewSequentialIDs("obs")

	a, err := NewObserver(g, testutil.OpenOfficesSpec(), testutil.Tuple("company", company), WithInverseCache(cache), WithIDGenerator(ids))
	require.NoError(t, err)
	b, err := NewObserver(g, testutil.OpenOfficesSpec(), testutil.Tuple("company", company), WithInverseCache(cache), WithIDGenerator(ids))
	require.NoError(t, err)
	assert.Equal(t, "obs-1", a.ID())
	assert.Equal(t, "obs-2", b.ID())

	ia, err := a.Inverses()
	require.NoError(t, err)
	ib, err := b.Inverses()
	require.NoError(t, err)
	assert.Equal(t, ia, ib)
	assert.Equal(t, 1, cache.Len())
}

func TestObserver_RunDrainsNotifications(t *testing.T) {
	g := graph.NewMemoryGraph()
	company := g.MustAdd(testutil.Company("acme"))
	given := testutil.Tuple("company", company)
	listener := &recordingListener{}
	o := startObserver(t, g, testutil.OpenOfficesSpec(), given, WithListener(listener))

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()

	nyc := g.MustAdd(testutil.Office(company, "nyc"))
	sfo := g.MustAdd(testutil.Office(company, "sfo"))
	require.NoError(t, o.Notify(nyc))
	require.NoError(t, o.Notify(sfo))
	o.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.ErrorIs(t, o.Notify(nyc), ErrObserverStopped)
	assert.Len(t, listener.added, 2)
	assertConsistent(t, o, g, given)
}

func TestObserver_RunStopsOnCancel(t *testing.T) {
	g := graph.NewMemoryGraph()
	company := g.MustAdd(testutil.Company("acme"))
	o := startObserver(t, g, testutil.OpenOfficesSpec(), testutil.Tuple("company", company))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
