package cli

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/factsync/internal/harness"
	"github.com/roach88/factsync/internal/ir"
	"github.com/roach88/factsync/internal/spec"
	"github.com/roach88/factsync/internal/store"
)

// factFile is the YAML shape read by load and watch:
//
//	facts:
//	  - id: acme
//	    type: Company
//	    fields: {identifier: acme}
//	  - id: nyc
//	    type: Office
//	    fields: {identifier: nyc}
//	    predecessors: {company: [acme]}
//
// Predecessors name earlier facts in the file by id, or facts already in
// the database as "Type:hash".
type factFile struct {
	Facts []harness.FactStep `yaml:"facts"`
}

// loadedFacts are the facts of one file in file order, with the alias
// table used to resolve ids.
type loadedFacts struct {
	Steps []harness.FactStep
	Facts []ir.Fact
	Refs  map[string]ir.FactReference // id -> reference
}

// alias returns the id of a fact from the file, or its reference string.
func (l *loadedFacts) alias(ref ir.FactReference) string {
	for id, r := range l.Refs {
		if r == ref {
			return id
		}
	}
	return ref.String()
}

func readFactFile(path string) (*loadedFacts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ff factFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ff); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(ff.Facts) == 0 {
		return nil, fmt.Errorf("%s: no facts", path)
	}

	lf := &loadedFacts{Steps: ff.Facts, Refs: map[string]ir.FactReference{}}
	for i, step := range ff.Facts {
		if step.ID == "" || step.Type == "" {
			return nil, fmt.Errorf("facts[%d]: id and type are required", i)
		}
		if _, dup := lf.Refs[step.ID]; dup {
			return nil, fmt.Errorf("facts[%d]: duplicate id %q", i, step.ID)
		}
		f, err := lf.build(step)
		if err != nil {
			return nil, err
		}
		ref, err := f.Reference()
		if err != nil {
			return nil, fmt.Errorf("fact %s: %w", step.ID, err)
		}
		lf.Facts = append(lf.Facts, f)
		lf.Refs[step.ID] = ref
	}
	return lf, nil
}

func (l *loadedFacts) build(step harness.FactStep) (ir.Fact, error) {
	raw := step.Fields
	if raw == nil {
		raw = map[string]any{}
	}
	fields, err := ir.FromAny(raw)
	if err != nil {
		return ir.Fact{}, fmt.Errorf("fact %s: fields: %w", step.ID, err)
	}
	f := ir.Fact{Type: step.Type, Fields: fields.(ir.IRObject)}
	if len(step.Predecessors) == 0 {
		return f, nil
	}
	f.Predecessors = map[string][]ir.FactReference{}
	for _, role := range slices.Sorted(maps.Keys(step.Predecessors)) {
		for _, name := range step.Predecessors[role] {
			ref, err := l.resolve(name)
			if err != nil {
				return ir.Fact{}, fmt.Errorf("fact %s: role %s: %w", step.ID, role, err)
			}
			f.Predecessors[role] = append(f.Predecessors[role], ref)
		}
	}
	return f, nil
}

// resolve accepts an id declared earlier in the file or a "Type:hash"
// reference.
func (l *loadedFacts) resolve(name string) (ir.FactReference, error) {
	if l != nil {
		if ref, ok := l.Refs[name]; ok {
			return ref, nil
		}
	}
	if ref, ok := parseRef(name); ok {
		return ref, nil
	}
	return ir.FactReference{}, fmt.Errorf("unknown fact %q", name)
}

func parseRef(s string) (ir.FactReference, bool) {
	typ, hash, ok := strings.Cut(s, ":")
	if !ok || typ == "" || hash == "" {
		return ir.FactReference{}, false
	}
	return ir.FactReference{Type: typ, Hash: hash}, true
}

// bindGivens parses repeated --given label=ref flags into a tuple over s's
// givens. A ref is "Type:hash", or a fact id when facts is non-nil.
func bindGivens(s spec.Specification, flags []string, facts *loadedFacts) (ir.FactReferenceTuple, error) {
	bound := map[string]ir.FactReference{}
	for _, flag := range flags {
		label, value, ok := strings.Cut(flag, "=")
		if !ok || label == "" || value == "" {
			return nil, fmt.Errorf("--given %q: expected label=Type:hash", flag)
		}
		ref, err := facts.resolve(value)
		if err != nil {
			return nil, fmt.Errorf("--given %s: %w", label, err)
		}
		bound[label] = ref
	}

	t := ir.FactReferenceTuple{}
	for _, g := range s.Givens {
		ref, ok := bound[g.Label.Name]
		if !ok {
			return nil, fmt.Errorf("given %s (%s) is not bound", g.Label.Name, g.Label.Type)
		}
		if ref.Type != g.Label.Type {
			return nil, fmt.Errorf("given %s: expected %s, got %s", g.Label.Name, g.Label.Type, ref.Type)
		}
		t = t.With(g.Label.Name, ref)
		delete(bound, g.Label.Name)
	}
	if len(bound) > 0 {
		return nil, fmt.Errorf("--given names labels the specification does not declare: %s",
			strings.Join(slices.Sorted(maps.Keys(bound)), ", "))
	}
	return t, nil
}

// dbFlag is the --db flag shared by commands that open a store. It
// defaults to $FACTSYNC_DB.
type dbFlag struct {
	Path string
}

func (d *dbFlag) open(f *OutputFormatter) (*store.Store, error) {
	if d.Path == "" {
		return nil, f.Fail(ExitCommandError, ErrCodeDatabase,
			fmt.Sprintf("no database: pass --db or set %s", EnvDatabase), nil)
	}
	st, err := store.Open(d.Path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	f.VerboseLog("opened database %s", d.Path)
	return st, nil
}
