package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/factsync/internal/queryir"
)

// SQLCompiler compiles queryir plans to parameterized SQL for SQLite.
//
// CRITICAL: every top-level query includes ORDER BY on fact insertion
// sequence so results are deterministic.
// CRITICAL: all values are parameterized, never interpolated. Type and role
// names are parameters too.
type SQLCompiler struct {
	// BoundValues maps given labels to the hash of the bound fact.
	// Must be set before compiling a plan with BoundFact predicates.
	BoundValues map[string]any
}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{
		BoundValues: make(map[string]any),
	}
}

// Compile converts a plan to SQL. Returns (sql, params, error).
//
// Result columns are (hash, seq) pairs, one per output, in output order.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	var sel queryir.Select
	switch query := q.(type) {
	case queryir.Select:
		sel = query
	case *queryir.Select:
		sel = *query
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
	if result := queryir.Validate(sel); !result.Valid {
		return "", nil, fmt.Errorf("invalid plan: %s", strings.Join(result.Errors, "; "))
	}
	if len(sel.Outputs) == 0 {
		return "", nil, fmt.Errorf("top-level select has no outputs")
	}

	b := &builder{}
	b.WriteString("SELECT ")
	if sel.Distinct {
		b.WriteString("DISTINCT ")
	}
	for i, out := range sel.Outputs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%s.hash, %s.seq", out.Alias, out.Alias)
	}
	if err := c.body(b, sel); err != nil {
		return "", nil, err
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(stableOrderKey(sel))
	return b.String(), b.params, nil
}

// builder accumulates SQL text and its parameters in lockstep.
type builder struct {
	strings.Builder
	params []any
}

func (b *builder) param(v any) {
	b.WriteByte('?')
	b.params = append(b.params, v)
}

// body writes the FROM and WHERE clauses of sel.
func (c *SQLCompiler) body(b *builder, sel queryir.Select) error {
	if len(sel.Sources) == 0 {
		return fmt.Errorf("select has no sources")
	}
	b.WriteString(" FROM ")
	for i, src := range sel.Sources {
		if i > 0 {
			b.WriteString(", ")
		}
		switch s := src.(type) {
		case queryir.FactSource:
			fmt.Fprintf(b, "fact AS %s", s.Alias)
		case queryir.EdgeSource:
			fmt.Fprintf(b, "edge AS %s", s.Alias)
		default:
			return fmt.Errorf("unsupported source type: %T", src)
		}
	}

	b.WriteString(" WHERE ")
	first := true
	and := func() {
		if !first {
			b.WriteString(" AND ")
		}
		first = false
	}
	for _, src := range sel.Sources {
		switch s := src.(type) {
		case queryir.FactSource:
			and()
			fmt.Fprintf(b, "%s.fact_type_id = (SELECT fact_type_id FROM fact_type WHERE name = ", s.Alias)
			b.param(s.Type)
			b.WriteByte(')')
		case queryir.EdgeSource:
			and()
			fmt.Fprintf(b, "%s.successor_fact_id = %s.fact_id AND %s.predecessor_fact_id = %s.fact_id",
				s.Alias, s.Successor, s.Alias, s.Predecessor)
			fmt.Fprintf(b, " AND %s.role_id IN (SELECT role_id FROM role WHERE name = ", s.Alias)
			b.param(s.Role)
			fmt.Fprintf(b, " AND defining_fact_type_id = %s.fact_type_id)", s.Successor)
		}
	}
	for _, pred := range queryir.Conjuncts(sel.Filter) {
		and()
		if err := c.predicate(b, pred); err != nil {
			return err
		}
	}
	return nil
}

// predicate writes one non-And predicate.
// CRITICAL: bound values are NEVER interpolated.
func (c *SQLCompiler) predicate(b *builder, p queryir.Predicate) error {
	switch pred := p.(type) {
	case queryir.BoundFact:
		val, ok := c.BoundValues[pred.Label]
		if !ok {
			return fmt.Errorf("no value bound for label %q", pred.Label)
		}
		fmt.Fprintf(b, "%s.hash = ", pred.Alias)
		b.param(val)
	case queryir.SameFact:
		fmt.Fprintf(b, "%s.fact_id = %s.fact_id", pred.Left, pred.Right)
	case queryir.Exists:
		if pred.Negated {
			b.WriteString("NOT ")
		}
		b.WriteString("EXISTS (SELECT 1")
		if err := c.body(b, pred.Query); err != nil {
			return fmt.Errorf("compile subquery: %w", err)
		}
		b.WriteByte(')')
	case queryir.And:
		if len(pred.Predicates) == 0 {
			b.WriteString("1 = 1")
			return nil
		}
		b.WriteByte('(')
		for i, sub := range pred.Predicates {
			if i > 0 {
				b.WriteString(" AND ")
			}
			if err := c.predicate(b, sub); err != nil {
				return err
			}
		}
		b.WriteByte(')')
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
	return nil
}

// stableOrderKey returns the ORDER BY clause. Every top-level query MUST
// use it. Fact sequence numbers are unique, so no tiebreaker is needed.
func stableOrderKey(sel queryir.Select) string {
	keys := make([]string, len(sel.OrderBy))
	for i, alias := range sel.OrderBy {
		keys[i] = alias + ".seq ASC"
	}
	return strings.Join(keys, ", ")
}
