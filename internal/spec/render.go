package spec

import "strings"

const indentUnit = "    "

// Render produces the canonical multi-line form of a specification:
//
//	(company: Company) {
//	    office: Office [
//	        office->company: Company = company
//	        !E {
//	            closure: Office.Closed [
//	                closure->office: Office = office
//	            ]
//	        }
//	    ]
//	} => office.identifier
//
// Compound components are written in name order. An empty projection is
// omitted along with its arrow.
func Render(s Specification) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, g := range s.Givens {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(g.Label.Name)
		b.WriteString(": ")
		b.WriteString(g.Label.Type)
		if len(g.ExistentialConditions) > 0 {
			b.WriteString(" [\n")
			for _, ec := range g.ExistentialConditions {
				writeExistential(&b, ec, 1)
			}
			b.WriteByte(']')
		}
	}
	b.WriteString(") {\n")
	writeMatches(&b, s.Matches, 1)
	b.WriteByte('}')
	if !IsEmpty(s.Projection) {
		b.WriteString(" => ")
		writeProjection(&b, s.Projection, 0)
	}
	b.WriteByte('\n')
	return b.String()
}

// RenderFeed renders the wire form of s: the canonical text with only the
// collection-shaped part of the projection retained.
func RenderFeed(s Specification) string {
	return Render(Feed(s))
}

func indent(b *strings.Builder, depth int) {
	for range depth {
		b.WriteString(indentUnit)
	}
}

func writeMatches(b *strings.Builder, matches []Match, depth int) {
	for _, m := range matches {
		indent(b, depth)
		b.WriteString(m.Unknown.Name)
		b.WriteString(": ")
		b.WriteString(m.Unknown.Type)
		b.WriteString(" [\n")
		for _, pc := range m.PathConditions {
			indent(b, depth+1)
			b.WriteString(m.Unknown.Name)
			writeRoles(b, pc.RolesLeft)
			b.WriteString(" = ")
			b.WriteString(pc.LabelRight)
			writeRoles(b, pc.RolesRight)
			b.WriteByte('\n')
		}
		for _, ec := range m.ExistentialConditions {
			writeExistential(b, ec, depth+1)
		}
		indent(b, depth)
		b.WriteString("]\n")
	}
}

func writeRoles(b *strings.Builder, roles []Role) {
	for _, r := range roles {
		b.WriteString("->")
		b.WriteString(r.Name)
		b.WriteString(": ")
		b.WriteString(r.TargetType)
	}
}

func writeExistential(b *strings.Builder, ec ExistentialCondition, depth int) {
	indent(b, depth)
	if !ec.Exists {
		b.WriteByte('!')
	}
	b.WriteString("E {\n")
	writeMatches(b, ec.Matches, depth+1)
	indent(b, depth)
	b.WriteString("}\n")
}

func writeProjection(b *strings.Builder, p Projection, depth int) {
	switch v := p.(type) {
	case SimpleProjection:
		b.WriteString(v.Tag)
	case FieldProjection:
		b.WriteString(v.Tag)
		b.WriteByte('.')
		b.WriteString(v.Field)
	case HashProjection:
		b.WriteByte('#')
		b.WriteString(v.Tag)
	case CompoundProjection:
		b.WriteString("{\n")
		for _, comp := range v.Sorted() {
			indent(b, depth+1)
			b.WriteString(comp.Name)
			b.WriteString(" = ")
			writeProjection(b, comp.Projection, depth+1)
			b.WriteByte('\n')
		}
		indent(b, depth)
		b.WriteByte('}')
	case CollectionProjection:
		b.WriteString("{\n")
		writeMatches(b, v.Matches, depth+1)
		indent(b, depth)
		b.WriteByte('}')
		if !IsEmpty(v.Projection) {
			b.WriteString(" => ")
			writeProjection(b, v.Projection, depth)
		}
	case nil:
		b.WriteString("{\n")
		indent(b, depth)
		b.WriteByte('}')
	}
}
