package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/factsync/internal/graph"
	"github.com/roach88/factsync/internal/inverse"
	"github.com/roach88/factsync/internal/ir"
	"github.com/roach88/factsync/internal/spec"
)

// ErrObserverNotStarted is returned by Apply before Start has seeded the
// result set.
var ErrObserverNotStarted = errors.New("observer not started")

// Listener receives result-set changes. Calls are made from the goroutine
// applying the fact, after the change is visible through Results.
type Listener interface {
	Added(path spec.Path, product Product)
	Removed(path spec.Path, tuple ir.FactReferenceTuple)
}

// Change is one result-set change, as reported by Apply.
type Change struct {
	Path    spec.Path
	Added   bool
	Tuple   ir.FactReferenceTuple
	Product Product // zero for removals
}

// ObserverOption configures an Observer.
type ObserverOption func(*Observer)

// WithObserverLogger traces inverse evaluation at debug level.
func WithObserverLogger(l *slog.Logger) ObserverOption {
	return func(o *Observer) {
		o.logger = l
	}
}

// WithInverseCache shares inverse lists with other observers of the same
// specification.
func WithInverseCache(c *inverse.Cache) ObserverOption {
	return func(o *Observer) {
		o.cache = c
	}
}

// WithListener registers l for change notifications.
func WithListener(l Listener) ObserverOption {
	return func(o *Observer) {
		o.listener = l
	}
}

// WithIDGenerator overrides the UUIDv7 identifier source. Tests use it for
// stable log output.
func WithIDGenerator(g IDGenerator) ObserverOption {
	return func(o *Observer) {
		o.ids = g
	}
}

// Observer keeps the result of one specification current as facts arrive.
//
// Start executes the specification once. Each later fact is routed through
// the specification's inverses: only those rooted at the fact's type run,
// and their results patch the live set instead of re-executing it.
//
// Thread-safety: Apply calls are serialized internally; Results may be
// called from any goroutine. Notify may be called from any goroutine while
// Run drains the queue (single writer).
type Observer struct {
	id       string
	spec     spec.Specification
	given    ir.FactReferenceTuple
	exec     *Executor
	logger   *slog.Logger
	listener Listener
	cache    *inverse.Cache
	ids      IDGenerator
	levels   map[spec.Path]spec.Level
	inverses func() ([]inverse.Inverse, error)
	queue    *factQueue

	applyMu sync.Mutex

	mu      sync.RWMutex
	started bool
	results []Product
}

// NewObserver creates an observer of s from given. s is validated, and
// given must bind every given label to a reference of the declared type.
func NewObserver(g graph.FactGraph, s spec.Specification, given ir.FactReferenceTuple, opts ...ObserverOption) (*Observer, error) {
	if err := s.Check(); err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	o := &Observer{
		spec:   s,
		logger: slog.New(slog.DiscardHandler),
		ids:    UUIDv7Generator{},
		levels: make(map[spec.Path]spec.Level),
		queue:  newFactQueue(),
	}
	for _, opt := range opts {
		opt(o)
	}

	bound := make(ir.FactReferenceTuple, 0, len(s.Givens))
	for _, gv := range s.Givens {
		ref, ok := given.Get(gv.Label.Name)
		if !ok {
			return nil, unbound(gv.Label.Name, "observer given")
		}
		if ref.Type != gv.Label.Type {
			return nil, fmt.Errorf("observer given %s: expected %s, got %s", gv.Label.Name, gv.Label.Type, ref.Type)
		}
		bound = bound.With(gv.Label.Name, ref)
	}
	o.given = bound
	o.id = o.ids.Generate()
	o.logger = o.logger.With("observer", o.id)
	o.exec = NewExecutor(g, WithLogger(o.logger))
	for _, l := range spec.Levels(s) {
		o.levels[l.Path] = l
	}
	o.inverses = sync.OnceValues(func() ([]inverse.Inverse, error) {
		if o.cache != nil {
			return o.cache.Get(s)
		}
		return inverse.Invert(s, inverse.WithLogger(o.logger))
	})
	return o, nil
}

// ID returns the observer's identifier.
func (o *Observer) ID() string {
	return o.id
}

// Specification returns the observed specification.
func (o *Observer) Specification() spec.Specification {
	return o.spec
}

// Inverses returns the inverses the observer routes facts through,
// computing them on first use.
func (o *Observer) Inverses() ([]inverse.Inverse, error) {
	return o.inverses()
}

// Start executes the specification and seeds the result set. Calling Start
// again re-executes and replaces the results.
func (o *Observer) Start(ctx context.Context) error {
	o.applyMu.Lock()
	defer o.applyMu.Unlock()

	if _, err := o.inverses(); err != nil {
		return err
	}
	products, err := o.exec.Execute(ctx, o.spec, o.given)
	if err != nil {
		return fmt.Errorf("observer %s: initial execution: %w", o.id, err)
	}
	o.mu.Lock()
	o.results = products
	o.started = true
	o.mu.Unlock()

	o.logger.Debug("observer started", "results", len(products))
	return nil
}

// Results returns a snapshot of the live result set. The snapshot is never
// modified by later updates.
func (o *Observer) Results() []Product {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.results
}

// Apply processes one fact that has just been added to the graph and
// returns the changes it caused. Facts whose type appears nowhere in the
// specification cost one map of inverse targets and change nothing.
func (o *Observer) Apply(ctx context.Context, ref ir.FactReference) ([]Change, error) {
	o.applyMu.Lock()
	defer o.applyMu.Unlock()

	o.mu.RLock()
	started := o.started
	o.mu.RUnlock()
	if !started {
		return nil, ErrObserverNotStarted
	}

	// Inverses start from the new fact, so it must already be in the graph.
	present, err := graph.Contains(ctx, o.exec.Graph(), ref)
	if err != nil {
		return nil, fmt.Errorf("observer %s: apply %s: %w", o.id, ref, err)
	}
	if !present {
		return nil, &IncompleteGraphError{Missing: ref, Err: graph.ErrFactNotFound}
	}

	invs, err := o.inverses()
	if err != nil {
		return nil, err
	}

	var changes []Change
	for _, inv := range invs {
		if inv.Target().Type != ref.Type {
			continue
		}
		c, err := o.applyInverse(ctx, inv, ref)
		if err != nil {
			return changes, fmt.Errorf("observer %s: apply %s: %w", o.id, ref, err)
		}
		changes = append(changes, c...)
	}
	o.notify(changes)
	return changes, nil
}

func (o *Observer) applyInverse(ctx context.Context, inv inverse.Inverse, ref ir.FactReference) ([]Change, error) {
	start := ir.NewTuple(ir.Binding{Label: inv.Target().Name, Ref: ref})
	for _, l := range inv.ExtraGivens() {
		bound, ok := o.given.Get(l.Name)
		if !ok {
			return nil, unbound(l.Name, "inverse given")
		}
		start = start.With(l.Name, bound)
	}

	tuples, err := o.exec.Read(ctx, inv.InverseSpecification, start)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("inverse evaluated",
		"target", inv.Target().Name,
		"operation", inv.Operation.String(),
		"path", string(inv.Path),
		"tuples", len(tuples))

	level, ok := o.levels[inv.Path]
	if !ok {
		return nil, fmt.Errorf("inverse path %q is not a level of the specification", inv.Path)
	}

	var changes []Change
	for _, t := range tuples {
		if !inv.GivenSubset.Restrict(t).Agrees(o.given) {
			continue
		}
		row := inv.ResultSubset.Restrict(t)
		parent := inv.ParentSubset.Restrict(t)

		var c *Change
		switch {
		case inv.Operation.IsRecheck():
			c, err = o.recheck(ctx, inv.Operation, level, parent, row)
		case inv.Operation == inverse.Add:
			c, err = o.insert(ctx, level, parent, row)
		default:
			c = o.remove(level, parent, row)
		}
		if err != nil {
			return changes, err
		}
		if c != nil {
			changes = append(changes, *c)
		}
	}
	return changes, nil
}

// recheck settles a MaybeAdd or MaybeRemove by testing row against the
// level's full match chain. MaybeAdd only inserts absent rows and
// MaybeRemove only deletes present ones.
func (o *Observer) recheck(ctx context.Context, op inverse.Operation, level spec.Level, parent, row ir.FactReferenceTuple) (*Change, error) {
	present := o.contains(level.Path, parent, row)
	if present != (op == inverse.MaybeRemove) {
		return nil, nil
	}
	ok, err := o.exec.Satisfies(ctx, o.spec.Givens, level.Matches, row)
	if err != nil {
		return nil, err
	}
	switch {
	case ok && !present:
		return o.insert(ctx, level, parent, row)
	case !ok && present:
		return o.remove(level, parent, row), nil
	}
	return nil, nil
}

func (o *Observer) insert(ctx context.Context, level spec.Level, parent, row ir.FactReferenceTuple) (*Change, error) {
	if o.contains(level.Path, parent, row) {
		return nil, nil
	}
	products, err := o.exec.Project(ctx, []ir.FactReferenceTuple{row}, level.Projection)
	if err != nil {
		return nil, err
	}
	product := products[0]
	inserted := o.update(level.Path, parent, func(ps []Product) []Product {
		for _, p := range ps {
			if p.Tuple.Equal(row) {
				return ps
			}
		}
		out := make([]Product, len(ps), len(ps)+1)
		copy(out, ps)
		return append(out, product)
	})
	if !inserted {
		return nil, nil
	}
	return &Change{Path: level.Path, Added: true, Tuple: row, Product: product}, nil
}

func (o *Observer) remove(level spec.Level, parent, row ir.FactReferenceTuple) *Change {
	removed := o.update(level.Path, parent, func(ps []Product) []Product {
		out := make([]Product, 0, len(ps))
		for _, p := range ps {
			if !p.Tuple.Equal(row) {
				out = append(out, p)
			}
		}
		if len(out) == len(ps) {
			return ps
		}
		return out
	})
	if !removed {
		return nil
	}
	return &Change{Path: level.Path, Tuple: row}
}

func (o *Observer) contains(path spec.Path, parent, row ir.FactReferenceTuple) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	found := false
	visit(o.results, path.Segments(), parent, func(ps []Product) {
		for _, p := range ps {
			if p.Tuple.Equal(row) {
				found = true
			}
		}
	})
	return found
}

// update replaces the product list at path under parent by fn's result and
// reports whether anything changed. Lists are copied, never modified, so
// earlier snapshots stay valid.
func (o *Observer) update(path spec.Path, parent ir.FactReferenceTuple, fn func([]Product) []Product) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	changed := false
	apply := func(ps []Product) []Product {
		out := fn(ps)
		if len(out) != len(ps) {
			changed = true
		}
		return out
	}
	o.results = rewrite(o.results, path.Segments(), parent, apply)
	return changed
}

// rewrite descends through the collections named by segments, following
// only products that belong to parent.
func rewrite(ps []Product, segments []string, parent ir.FactReferenceTuple, fn func([]Product) []Product) []Product {
	if len(segments) == 0 {
		return fn(ps)
	}
	var out []Product
	for i, p := range ps {
		if !within(p.Tuple, parent) {
			continue
		}
		result, ok := withCollection(p.Result, segments[0], func(children []Product) []Product {
			return rewrite(children, segments[1:], parent, fn)
		})
		if !ok {
			continue
		}
		if out == nil {
			out = make([]Product, len(ps))
			copy(out, ps)
		}
		out[i] = Product{Tuple: p.Tuple, Result: result}
	}
	if out == nil {
		return ps
	}
	return out
}

func visit(ps []Product, segments []string, parent ir.FactReferenceTuple, fn func([]Product)) {
	if len(segments) == 0 {
		fn(ps)
		return
	}
	for _, p := range ps {
		if !within(p.Tuple, parent) {
			continue
		}
		if children, ok := collectionOf(p.Result, segments[0]); ok {
			visit(children, segments[1:], parent, fn)
		}
	}
}

// within reports whether every binding of t also appears in parent.
func within(t, parent ir.FactReferenceTuple) bool {
	for _, b := range t {
		ref, ok := parent.Get(b.Label)
		if !ok || ref != b.Ref {
			return false
		}
	}
	return true
}

func collectionOf(el Element, name string) ([]Product, bool) {
	c, ok := el.(CompoundElement)
	if !ok {
		return nil, false
	}
	for _, f := range c.Fields {
		switch v := f.Element.(type) {
		case CollectionElement:
			if f.Name == name {
				return v.Products, true
			}
		case CompoundElement:
			if ps, ok := collectionOf(v, name); ok {
				return ps, true
			}
		}
	}
	return nil, false
}

func (o *Observer) notify(changes []Change) {
	if o.listener == nil {
		return
	}
	for _, c := range changes {
		if c.Added {
			o.listener.Added(c.Path, c.Product)
		} else {
			o.listener.Removed(c.Path, c.Tuple)
		}
	}
}

// Notify enqueues a new fact for the Run loop.
func (o *Observer) Notify(ref ir.FactReference) error {
	if !o.queue.Enqueue(ref) {
		return ErrObserverStopped
	}
	return nil
}

// Run drains notified facts until ctx is cancelled or Stop is called.
// A fact that fails to apply is logged and skipped; the next fact is still
// processed so one bad fact cannot wedge the observer.
func (o *Observer) Run(ctx context.Context) error {
	o.logger.Debug("observer running")
	for {
		ref, ok := o.queue.TryDequeue()
		if ok {
			if _, err := o.Apply(ctx, ref); err != nil {
				o.logger.Error("fact application failed",
					"fact", ref.String(),
					"error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			o.queue.Close()
			return ctx.Err()
		case <-o.queue.Wait():
			if o.queue.Drained() {
				o.logger.Debug("observer stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once every queued fact is applied.
func (o *Observer) Stop() {
	o.queue.Close()
}
