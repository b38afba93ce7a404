package inverse

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/factsync/internal/spec"
)

// Inverse pairs an inverse specification with the bookkeeping an observer
// needs to map its results back onto a live result set.
type Inverse struct {
	// InverseSpecification is rooted at the new fact: its first given is
	// the target label. Any further givens are original givens that cannot
	// be reached from the target; the observer binds them from its own
	// given tuple.
	InverseSpecification spec.Specification
	// GivenSubset names the original givens. A produced tuple applies to an
	// observer only if it agrees with the observer's givens on these labels.
	GivenSubset spec.Subset
	Operation   Operation
	// ResultSubset identifies the affected row at Path.
	ResultSubset spec.Subset
	Path         spec.Path
	// ParentSubset identifies the row Path is nested under. Empty at the
	// root.
	ParentSubset spec.Subset
}

// Target is the label the inverse is rooted at.
func (inv Inverse) Target() spec.Label {
	return inv.InverseSpecification.Givens[0].Label
}

// ExtraGivens returns the original givens the inverse expects to be bound
// alongside the target.
func (inv Inverse) ExtraGivens() []spec.Label {
	givens := inv.InverseSpecification.GivenLabels()
	return givens[1:]
}

// Option configures an inversion.
type Option func(*inverter)

// WithLogger traces candidate derivation and pruning at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(iv *inverter) {
		iv.logger = l
	}
}

type inverter struct {
	logger *slog.Logger
}

// Invert computes every inverse of s. The specification must be valid;
// Invert returns its validation errors otherwise.
//
// The result is a pure function of s. Candidates that can never match a
// brand-new fact are pruned and do not appear.
func Invert(s spec.Specification, opts ...Option) ([]Inverse, error) {
	if err := s.Check(); err != nil {
		return nil, fmt.Errorf("invert: %w", err)
	}
	iv := &inverter{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(iv)
	}

	givenSubset := spec.NewSubset()
	for _, g := range s.Givens {
		givenSubset = givenSubset.Add(g.Label.Name)
	}

	var out []Inverse
	for _, level := range spec.Levels(s) {
		for _, c := range candidates(s.Givens, level) {
			inv, ok := iv.invert(c)
			if !ok {
				continue
			}
			inv.GivenSubset = givenSubset
			out = append(out, inv)
		}
	}
	return out, nil
}

// candidate is one label to root an inverse at, together with the flat
// node list it is re-rooted over.
type candidate struct {
	level  spec.Level
	nodes  []node
	target spec.Label
	op     Operation
}

// candidates enumerates every label introduced at level. At the root that
// includes unknowns inside the givens' guards.
func candidates(givens []spec.Given, level spec.Level) []candidate {
	nodes := flatten(givens, level.Matches)
	own := map[string]bool{}
	for _, m := range level.Own {
		own[m.Unknown.Name] = true
	}

	var out []candidate
	for i, n := range nodes {
		hostsHere := own[n.label.Name] || (n.given && level.Path == spec.Root)
		if !hostsHere {
			continue
		}
		if !n.given {
			out = append(out, candidate{level: level, nodes: nodes, target: n.label, op: Add})
		}
		for k := range n.exists {
			out = append(out, existentialCandidates(level, nodes, i, k, Add)...)
		}
	}
	return out
}

// existentialCandidates flattens the existential condition at
// nodes[host].exists[k] into the node list and enumerates the labels it
// introduces, recursing into conditions nested inside it.
func existentialCandidates(level spec.Level, nodes []node, host, k int, parent Operation) []candidate {
	ec := nodes[host].exists[k]
	op := InferOperation(parent, ec.Exists)

	flat := make([]node, len(nodes), len(nodes)+len(ec.Matches))
	copy(flat, nodes)
	flat[host] = flat[host].withoutExistential(k)
	start := len(flat)
	flat = append(flat, flatten(nil, ec.Matches)...)

	var out []candidate
	for j := start; j < len(flat); j++ {
		out = append(out, candidate{level: level, nodes: flat, target: flat[j].label, op: op})
		for kk := range flat[j].exists {
			out = append(out, existentialCandidates(level, flat, j, kk, op)...)
		}
	}
	return out
}

func (iv *inverter) invert(c candidate) (Inverse, bool) {
	rooted, ok := reroot(c.nodes, c.target)
	if !ok {
		iv.logger.Debug("inverse discarded: target is not in the match list",
			"target", c.target.Name, "path", string(c.level.Path))
		return Inverse{}, false
	}
	if reason, bad := unsatisfiable(rooted, c.target.Name); bad {
		iv.logger.Debug("inverse pruned",
			"target", c.target.Name,
			"type", c.target.Type,
			"path", string(c.level.Path),
			"reason", reason)
		return Inverse{}, false
	}

	inv := Inverse{
		InverseSpecification: spec.Specification{
			Givens:     rooted.givens,
			Matches:    rooted.matches,
			Projection: c.level.Projection,
		},
		Operation:    c.op,
		ResultSubset: c.level.ResultSubset,
		Path:         c.level.Path,
		ParentSubset: c.level.ParentSubset,
	}
	iv.logger.Debug("inverse derived",
		"target", c.target.Name,
		"type", c.target.Type,
		"path", string(c.level.Path),
		"operation", c.op.String())
	return inv, true
}

// unsatisfiable reports whether a re-rooted specification requires the
// target to already have a successor. The target is brand-new, so no
// such successor can exist.
func unsatisfiable(r rerooted, target string) (string, bool) {
	for _, m := range r.matches {
		for _, pc := range m.PathConditions {
			if needsSuccessor(pc, target) {
				return fmt.Sprintf("%s must be a successor of %s", m.Unknown.Name, target), true
			}
		}
		for _, ec := range m.ExistentialConditions {
			if existentialNeedsSuccessor(ec, target) {
				return fmt.Sprintf("condition on %s requires a successor of %s", m.Unknown.Name, target), true
			}
		}
	}
	for _, g := range r.givens {
		for _, ec := range g.ExistentialConditions {
			if existentialNeedsSuccessor(ec, target) {
				return fmt.Sprintf("condition on %s requires a successor of %s", g.Label.Name, target), true
			}
		}
	}
	return "", false
}

func needsSuccessor(pc spec.PathCondition, target string) bool {
	return pc.LabelRight == target && len(pc.RolesRight) == 0 && len(pc.RolesLeft) > 0
}

// existentialNeedsSuccessor reports whether a positive condition can only
// hold if the target has a successor. Negative conditions are trivially
// satisfied in that case and never prune.
func existentialNeedsSuccessor(ec spec.ExistentialCondition, target string) bool {
	if !ec.Exists {
		return false
	}
	for _, m := range ec.Matches {
		for _, pc := range m.PathConditions {
			if needsSuccessor(pc, target) {
				return true
			}
		}
		for _, nested := range m.ExistentialConditions {
			if existentialNeedsSuccessor(nested, target) {
				return true
			}
		}
	}
	return false
}

// Render describes an inverse for diagnostics and golden files.
func Render(inv Inverse) string {
	var b strings.Builder
	target := inv.Target()
	fmt.Fprintf(&b, "target: %s: %s\n", target.Name, target.Type)
	fmt.Fprintf(&b, "operation: %s\n", inv.Operation)
	fmt.Fprintf(&b, "path: %q\n", string(inv.Path))
	fmt.Fprintf(&b, "given subset: %s\n", inv.GivenSubset)
	fmt.Fprintf(&b, "result subset: %s\n", inv.ResultSubset)
	fmt.Fprintf(&b, "parent subset: %s\n", inv.ParentSubset)
	b.WriteString(spec.Render(inv.InverseSpecification))
	return b.String()
}

// RenderAll describes a list of inverses separated by blank lines.
func RenderAll(invs []Inverse) string {
	parts := make([]string, len(invs))
	for i, inv := range invs {
		parts[i] = Render(inv)
	}
	return strings.Join(parts, "\n")
}
