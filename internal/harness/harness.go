package harness

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/factsync/internal/compiler"
	"github.com/roach88/factsync/internal/engine"
	"github.com/roach88/factsync/internal/graph"
	"github.com/roach88/factsync/internal/inverse"
	"github.com/roach88/factsync/internal/ir"
	"github.com/roach88/factsync/internal/spec"
	"github.com/roach88/factsync/internal/store"
	"github.com/roach88/factsync/internal/testutil"
)

// backend is a fact graph the harness can also write to.
type backend interface {
	graph.FactGraph
	add(ctx context.Context, f ir.Fact) (ir.FactReference, error)
	Close() error
}

type memoryBackend struct {
	*graph.MemoryGraph
}

func (m memoryBackend) add(_ context.Context, f ir.Fact) (ir.FactReference, error) {
	ref, _, err := m.Add(f)
	return ref, err
}

func (memoryBackend) Close() error { return nil }

type sqliteBackend struct {
	*store.Store
}

func (s sqliteBackend) add(ctx context.Context, f ir.Fact) (ir.FactReference, error) {
	ref, _, err := s.SaveFact(ctx, f)
	return ref, err
}

func openBackend(name string) (backend, error) {
	switch name {
	case "", BackendMemory:
		return memoryBackend{graph.NewMemoryGraph(graph.WithSequencer(testutil.NewDeterministicClock()))}, nil
	case BackendSQLite:
		// Each scenario runs in a fresh in-memory database for isolation.
		st, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		return sqliteBackend{st}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

// Option configures a harness run.
type Option func(*Harness)

// WithLogger routes observer and harness logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithInverseCache shares inverse lists with other runs using the same
// cache, so scenarios over one specification invert it once.
func WithInverseCache(c *inverse.Cache) Option {
	return func(h *Harness) {
		h.inverses = c
	}
}

// Harness runs one scenario: it owns the graph, the alias tables, and the
// observer under test.
type Harness struct {
	graph   backend
	spec    spec.Specification
	given   ir.FactReferenceTuple
	refs    map[string]ir.FactReference // alias -> reference
	aliases map[string]string           // hash -> alias
	logger  *slog.Logger

	inverses *inverse.Cache
}

// Run executes a scenario with a background context.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext executes a scenario and returns the result.
//
// Execution flow:
//  1. Parse and check the specification
//  2. Add seed facts and start an observer over the given tuple
//  3. Add each remaining fact and apply it to the observer
//  4. After Start and after every arrival, compare the observer's results
//     with a fresh execution over the same graph
//  5. Evaluate assertions against the final results and trace
//
// Returned errors are setup failures; consistency and assertion failures
// are reported in the Result.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	s, err := compiler.Parse(scenario.Specification)
	if err != nil {
		return nil, fmt.Errorf("specification: %w", err)
	}
	if err := s.Check(); err != nil {
		return nil, fmt.Errorf("specification: %w", err)
	}

	g, err := openBackend(scenario.Backend)
	if err != nil {
		return nil, err
	}
	defer g.Close()

	h := &Harness{
		graph:   g,
		spec:    s,
		refs:    map[string]ir.FactReference{},
		aliases: map[string]string{},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}

	facts := make([]ir.Fact, len(scenario.Facts))
	for i, step := range scenario.Facts {
		if facts[i], err = h.buildFact(step); err != nil {
			return nil, err
		}
	}

	for i, step := range scenario.Facts {
		if !step.Seed {
			continue
		}
		if _, err := g.add(ctx, facts[i]); err != nil {
			return nil, fmt.Errorf("seed %s: %w", step.ID, err)
		}
	}

	if h.given, err = h.bindGiven(scenario.Given); err != nil {
		return nil, err
	}

	obsOpts := []engine.ObserverOption{
		engine.WithObserverLogger(h.logger),
		engine.WithIDGenerator(testutil.NewSequentialIDs("scenario")),
	}
	if h.inverses != nil {
		obsOpts = append(obsOpts, engine.WithInverseCache(h.inverses))
	}
	obs, err := engine.NewObserver(g, s, h.given, obsOpts...)
	if err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	if err := obs.Start(ctx); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	result := NewResult()
	if err := h.checkConsistent(ctx, obs, "start", result); err != nil {
		return nil, err
	}

	for i, step := range scenario.Facts {
		if step.Seed {
			continue
		}
		ref, err := g.add(ctx, facts[i])
		if err != nil {
			return nil, fmt.Errorf("fact %s: %w", step.ID, err)
		}
		changes, err := obs.Apply(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("fact %s: %w", step.ID, err)
		}
		result.Steps++
		for _, c := range changes {
			result.AddChange(ChangeEvent{
				Fact:  step.ID,
				Added: c.Added,
				Path:  string(c.Path),
				Tuple: h.tupleAliases(c.Tuple),
			})
		}
		h.logger.Debug("fact applied", "fact", step.ID, "changes", len(changes))
		if err := h.checkConsistent(ctx, obs, step.ID, result); err != nil {
			return nil, err
		}
	}

	result.Results = h.aliasValue(engine.ProductsValue(obs.Results())).(ir.IRArray)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// buildFact converts a scenario fact and records its alias.
func (h *Harness) buildFact(step FactStep) (ir.Fact, error) {
	fields, err := ir.FromAny(mapOrEmpty(step.Fields))
	if err != nil {
		return ir.Fact{}, fmt.Errorf("fact %s: fields: %w", step.ID, err)
	}
	f := ir.Fact{Type: step.Type, Fields: fields.(ir.IRObject)}
	if len(step.Predecessors) > 0 {
		f.Predecessors = map[string][]ir.FactReference{}
		for _, role := range slices.Sorted(maps.Keys(step.Predecessors)) {
			for _, alias := range step.Predecessors[role] {
				ref, ok := h.refs[alias]
				if !ok {
					return ir.Fact{}, fmt.Errorf("fact %s: role %s: unknown fact %q", step.ID, role, alias)
				}
				f.Predecessors[role] = append(f.Predecessors[role], ref)
			}
		}
	}
	ref, err := f.Reference()
	if err != nil {
		return ir.Fact{}, fmt.Errorf("fact %s: %w", step.ID, err)
	}
	h.refs[step.ID] = ref
	h.aliases[ref.Hash] = step.ID
	return f, nil
}

func mapOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func (h *Harness) bindGiven(given map[string]string) (ir.FactReferenceTuple, error) {
	t := ir.FactReferenceTuple{}
	for _, g := range h.spec.Givens {
		alias, ok := given[g.Label.Name]
		if !ok {
			return nil, fmt.Errorf("given %s is not bound", g.Label.Name)
		}
		t = t.With(g.Label.Name, h.refs[alias])
	}
	return t, nil
}

// checkConsistent compares the observer's live results with a fresh
// execution of the specification over the current graph.
func (h *Harness) checkConsistent(ctx context.Context, obs *engine.Observer, after string, result *Result) error {
	fresh, err := engine.NewExecutor(h.graph).Execute(ctx, h.spec, h.given)
	if err != nil {
		return fmt.Errorf("re-execute after %s: %w", after, err)
	}
	live := engine.Canonical(obs.Results())
	want := engine.Canonical(fresh)
	if live != want {
		result.AddError(fmt.Sprintf("after %s: observer results diverge from re-execution\n  observer:\n%s\n  executed:\n%s", after, live, want))
	}
	return nil
}

func (h *Harness) tupleAliases(t ir.FactReferenceTuple) map[string]string {
	out := make(map[string]string, len(t))
	for _, b := range t {
		if alias, ok := h.aliases[b.Ref.Hash]; ok {
			out[b.Label] = alias
		} else {
			out[b.Label] = b.Ref.String()
		}
	}
	return out
}

// aliasValue replaces projected references with "@alias" and projected
// hashes with "#alias".
func (h *Harness) aliasValue(v ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case ir.IRString:
		if alias, ok := h.aliases[string(val)]; ok {
			return ir.IRString("#" + alias)
		}
		return val
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			out[i] = h.aliasValue(elem)
		}
		return out
	case ir.IRObject:
		if len(val) == 2 {
			hash, okHash := val["hash"].(ir.IRString)
			_, okType := val["type"].(ir.IRString)
			if alias, known := h.aliases[string(hash)]; okHash && okType && known {
				return ir.IRString("@" + alias)
			}
		}
		out := make(ir.IRObject, len(val))
		for k, elem := range val {
			out[k] = h.aliasValue(elem)
		}
		return out
	default:
		return v
	}
}
