package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/factsync/internal/spec"
)

// ParseError is a syntax error in canonical specification text. Line and
// Column are 1-based. File is set when the text came from a file.
type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// Parse reads the canonical textual form produced by spec.Render,
// including feeds (no projection) and guarded givens. It checks syntax
// only; call Check on the result for binding and type rules.
//
// For any well-formed specification s, Parse(spec.Render(s)) is
// spec.Equal to s.
func Parse(text string) (spec.Specification, error) {
	p, err := newParser(text)
	if err != nil {
		return spec.Specification{}, err
	}
	s, err := p.specification()
	if err != nil {
		return spec.Specification{}, err
	}
	if _, err := p.expect(tokEOF); err != nil {
		return spec.Specification{}, err
	}
	return s, nil
}

// ParseProjection reads a projection as it appears after "=>".
func ParseProjection(text string) (spec.Projection, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	p, err := newParser(text)
	if err != nil {
		return nil, err
	}
	proj, err := p.projection()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEOF); err != nil {
		return nil, err
	}
	return proj, nil
}

type parser struct {
	toks []token
	pos  int
}

func newParser(text string) (*parser, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	return &parser{toks: toks}, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

// peekAt looks ahead n tokens, clamped to EOF.
func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(kind tokenKind) bool {
	if p.peek().kind == kind {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.peek()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, found %s", kind, t.describe())
	}
	return p.next(), nil
}

func (p *parser) errorf(at token, format string, args ...any) error {
	return &ParseError{Line: at.line, Column: at.column, Message: fmt.Sprintf(format, args...)}
}

// simpleName reads an identifier that must not contain dots.
func (p *parser) simpleName(what string) (token, error) {
	t, err := p.expect(tokIdent)
	if err != nil {
		return t, err
	}
	if strings.Contains(t.text, ".") {
		return t, p.errorf(t, "%s %q must not contain '.'", what, t.text)
	}
	return t, nil
}

// label reads "name: Type".
func (p *parser) label() (spec.Label, error) {
	name, err := p.simpleName("label name")
	if err != nil {
		return spec.Label{}, err
	}
	if _, err := p.expect(tokColon); err != nil {
		return spec.Label{}, err
	}
	typ, err := p.expect(tokIdent)
	if err != nil {
		return spec.Label{}, err
	}
	return spec.Label{Name: name.text, Type: typ.text}, nil
}

func (p *parser) specification() (spec.Specification, error) {
	var s spec.Specification
	if _, err := p.expect(tokLParen); err != nil {
		return s, err
	}
	if p.peek().kind != tokRParen {
		for {
			g, err := p.given()
			if err != nil {
				return s, err
			}
			s.Givens = append(s.Givens, g)
			if !p.accept(tokComma) {
				break
			}
		}
	}
	if _, err := p.expect(tokRParen); err != nil {
		return s, err
	}

	if _, err := p.expect(tokLBrace); err != nil {
		return s, err
	}
	matches, err := p.matches()
	if err != nil {
		return s, err
	}
	s.Matches = matches
	if _, err := p.expect(tokRBrace); err != nil {
		return s, err
	}

	if p.accept(tokArrow) {
		proj, err := p.projection()
		if err != nil {
			return s, err
		}
		s.Projection = proj
	}
	return s, nil
}

func (p *parser) given() (spec.Given, error) {
	l, err := p.label()
	if err != nil {
		return spec.Given{}, err
	}
	g := spec.Given{Label: l}
	if !p.accept(tokLBracket) {
		return g, nil
	}
	for p.peek().kind != tokRBracket {
		if !p.atExistential() {
			t := p.peek()
			return g, p.errorf(t, "given %s may only carry existential conditions, found %s", l.Name, t.describe())
		}
		ec, err := p.existential()
		if err != nil {
			return g, err
		}
		g.ExistentialConditions = append(g.ExistentialConditions, ec)
	}
	p.next()
	return g, nil
}

// matches reads match clauses until a closing brace, which is left for
// the caller.
func (p *parser) matches() ([]spec.Match, error) {
	var ms []spec.Match
	for p.peek().kind == tokIdent {
		m, err := p.match()
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, nil
}

func (p *parser) match() (spec.Match, error) {
	l, err := p.label()
	if err != nil {
		return spec.Match{}, err
	}
	m := spec.Match{Unknown: l}
	if _, err := p.expect(tokLBracket); err != nil {
		return m, err
	}
	for p.peek().kind != tokRBracket {
		if p.atExistential() {
			ec, err := p.existential()
			if err != nil {
				return m, err
			}
			m.ExistentialConditions = append(m.ExistentialConditions, ec)
			continue
		}
		pc, err := p.pathCondition(l.Name)
		if err != nil {
			return m, err
		}
		m.PathConditions = append(m.PathConditions, pc)
	}
	p.next()
	return m, nil
}

// atExistential reports whether the next tokens open "E {" or "!E {". A
// label may itself be named E, so the brace decides.
func (p *parser) atExistential() bool {
	i := 0
	if p.peek().kind == tokBang {
		i = 1
	}
	t := p.peekAt(i)
	return t.kind == tokIdent && t.text == "E" && p.peekAt(i+1).kind == tokLBrace
}

func (p *parser) existential() (spec.ExistentialCondition, error) {
	ec := spec.ExistentialCondition{Exists: !p.accept(tokBang)}
	p.next() // E
	if _, err := p.expect(tokLBrace); err != nil {
		return ec, err
	}
	matches, err := p.matches()
	if err != nil {
		return ec, err
	}
	ec.Matches = matches
	if _, err := p.expect(tokRBrace); err != nil {
		return ec, err
	}
	return ec, nil
}

func (p *parser) pathCondition(unknown string) (spec.PathCondition, error) {
	var pc spec.PathCondition
	left, err := p.simpleName("label name")
	if err != nil {
		return pc, err
	}
	if left.text != unknown {
		return pc, p.errorf(left, "path condition must start from %q, found %q", unknown, left.text)
	}
	if pc.RolesLeft, err = p.roles(); err != nil {
		return pc, err
	}
	if _, err := p.expect(tokEquals); err != nil {
		return pc, err
	}
	right, err := p.simpleName("label name")
	if err != nil {
		return pc, err
	}
	pc.LabelRight = right.text
	if pc.RolesRight, err = p.roles(); err != nil {
		return pc, err
	}
	return pc, nil
}

func (p *parser) roles() ([]spec.Role, error) {
	var rs []spec.Role
	for p.accept(tokRole) {
		name, err := p.simpleName("role name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokColon); err != nil {
			return nil, err
		}
		typ, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		rs = append(rs, spec.Role{Name: name.text, TargetType: typ.text})
	}
	return rs, nil
}

func (p *parser) projection() (spec.Projection, error) {
	t := p.peek()
	switch t.kind {
	case tokHash:
		p.next()
		tag, err := p.simpleName("label name")
		if err != nil {
			return nil, err
		}
		return spec.HashProjection{Tag: tag.text}, nil
	case tokIdent:
		p.next()
		tag, field, ok := strings.Cut(t.text, ".")
		if !ok {
			return spec.SimpleProjection{Tag: tag}, nil
		}
		if strings.Contains(field, ".") {
			return nil, p.errorf(t, "field projection %q reads more than one field", t.text)
		}
		return spec.FieldProjection{Tag: tag, Field: field}, nil
	case tokLBrace:
		p.next()
		switch {
		case p.accept(tokRBrace):
			return spec.CompoundProjection{}, nil
		case p.peek().kind == tokIdent && p.peekAt(1).kind == tokEquals:
			return p.compound()
		case p.peek().kind == tokIdent && p.peekAt(1).kind == tokColon:
			return p.collection()
		default:
			n := p.peek()
			return nil, p.errorf(n, "expected a component or a match, found %s", n.describe())
		}
	default:
		return nil, p.errorf(t, "expected a projection, found %s", t.describe())
	}
}

// compound reads "name = projection" lines up to the closing brace.
func (p *parser) compound() (spec.Projection, error) {
	var comps []spec.Component
	for p.peek().kind != tokRBrace {
		name, err := p.simpleName("component name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokEquals); err != nil {
			return nil, err
		}
		proj, err := p.projection()
		if err != nil {
			return nil, err
		}
		comps = append(comps, spec.Component{Name: name.text, Projection: proj})
	}
	p.next()
	return spec.Compound(comps...), nil
}

func (p *parser) collection() (spec.Projection, error) {
	matches, err := p.matches()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRBrace); err != nil {
		return nil, err
	}
	c := spec.CollectionProjection{Matches: matches}
	if p.accept(tokArrow) {
		if c.Projection, err = p.projection(); err != nil {
			return nil, err
		}
	}
	return c, nil
}
