package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/factsync/internal/ir"
	"github.com/roach88/factsync/internal/spec"
)

// Element is a sealed interface over projected output values. Only
// SimpleElement, FieldElement, HashElement, CompoundElement, and
// CollectionElement implement it.
type Element interface {
	element()
}

// SimpleElement is a projected fact reference.
type SimpleElement struct {
	Ref ir.FactReference
}

func (SimpleElement) element() {}

// FieldElement is one projected field. Absent fields project as IRNull.
type FieldElement struct {
	Value ir.IRValue
}

func (FieldElement) element() {}

// HashElement is a projected content hash.
type HashElement struct {
	Hash string
}

func (HashElement) element() {}

// NamedElement is one entry of a CompoundElement.
type NamedElement struct {
	Name    string
	Element Element
}

// CompoundElement is a projected record, fields in name order.
type CompoundElement struct {
	Fields []NamedElement
}

func (CompoundElement) element() {}

// Field looks up a component by name.
func (c CompoundElement) Field(name string) (Element, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f.Element, true
		}
	}
	return nil, false
}

// CollectionElement is a projected nested list.
type CollectionElement struct {
	Products []Product
}

func (CollectionElement) element() {}

// Product is one output row: the tuple it was projected from and the
// projected value. Tuple binds exactly the labels that identify the row at
// its depth.
type Product struct {
	Tuple  ir.FactReferenceTuple
	Result Element
}

// Project maps each tuple through p. Projecting the same tuples twice
// yields identical output.
func (e *Executor) Project(ctx context.Context, tuples []ir.FactReferenceTuple, p spec.Projection) ([]Product, error) {
	products := make([]Product, 0, len(tuples))
	for _, t := range tuples {
		el, err := e.project(ctx, t, p)
		if err != nil {
			return nil, err
		}
		products = append(products, Product{Tuple: t, Result: el})
	}
	return products, nil
}

func (e *Executor) project(ctx context.Context, t ir.FactReferenceTuple, p spec.Projection) (Element, error) {
	switch v := p.(type) {
	case nil:
		return CompoundElement{}, nil
	case spec.SimpleProjection:
		ref, ok := t.Get(v.Tag)
		if !ok {
			return nil, unbound(v.Tag, "projection")
		}
		return SimpleElement{Ref: ref}, nil
	case spec.HashProjection:
		ref, ok := t.Get(v.Tag)
		if !ok {
			return nil, unbound(v.Tag, "projection")
		}
		return HashElement{Hash: ref.Hash}, nil
	case spec.FieldProjection:
		ref, ok := t.Get(v.Tag)
		if !ok {
			return nil, unbound(v.Tag, "projection")
		}
		fact, err := e.graph.Fact(ctx, ref)
		if err != nil {
			return nil, e.missing(ref, err)
		}
		value, ok := fact.Fields[v.Field]
		if !ok {
			value = ir.IRNull{}
		}
		return FieldElement{Value: value}, nil
	case spec.CompoundProjection:
		sorted := v.Sorted()
		if len(sorted) == 0 {
			return CompoundElement{}, nil
		}
		fields := make([]NamedElement, 0, len(sorted))
		for _, comp := range sorted {
			el, err := e.project(ctx, t, comp.Projection)
			if err != nil {
				return nil, fmt.Errorf("component %s: %w", comp.Name, err)
			}
			fields = append(fields, NamedElement{Name: comp.Name, Element: el})
		}
		return CompoundElement{Fields: fields}, nil
	case spec.CollectionProjection:
		tuples, err := e.matches(ctx, []ir.FactReferenceTuple{t}, v.Matches)
		if err != nil {
			return nil, err
		}
		products, err := e.Project(ctx, tuples, v.Projection)
		if err != nil {
			return nil, err
		}
		return CollectionElement{Products: products}, nil
	default:
		return nil, fmt.Errorf("unsupported projection %T", p)
	}
}

// ElementValue converts a projected element to a field value for JSON
// output. Fact references become {"type", "hash"} objects.
func ElementValue(el Element) ir.IRValue {
	switch v := el.(type) {
	case SimpleElement:
		return ir.IRObject{"type": ir.IRString(v.Ref.Type), "hash": ir.IRString(v.Ref.Hash)}
	case FieldElement:
		if v.Value == nil {
			return ir.IRNull{}
		}
		return v.Value
	case HashElement:
		return ir.IRString(v.Hash)
	case CompoundElement:
		obj := make(ir.IRObject, len(v.Fields))
		for _, f := range v.Fields {
			obj[f.Name] = ElementValue(f.Element)
		}
		return obj
	case CollectionElement:
		return ProductsValue(v.Products)
	default:
		return ir.IRNull{}
	}
}

// ProductsValue converts a product list to an array of results.
func ProductsValue(products []Product) ir.IRArray {
	arr := make(ir.IRArray, len(products))
	for i, p := range products {
		arr[i] = ElementValue(p.Result)
	}
	return arr
}

// withCollection returns el with the collection published under name
// replaced by update's result. Compounds are searched depth-first; el is
// never modified.
func withCollection(el Element, name string, update func([]Product) []Product) (Element, bool) {
	c, ok := el.(CompoundElement)
	if !ok {
		return el, false
	}
	for i, f := range c.Fields {
		switch v := f.Element.(type) {
		case CollectionElement:
			if f.Name != name {
				continue
			}
			fields := make([]NamedElement, len(c.Fields))
			copy(fields, c.Fields)
			fields[i] = NamedElement{Name: f.Name, Element: CollectionElement{Products: update(v.Products)}}
			return CompoundElement{Fields: fields}, true
		case CompoundElement:
			replaced, ok := withCollection(v, name, update)
			if !ok {
				continue
			}
			fields := make([]NamedElement, len(c.Fields))
			copy(fields, c.Fields)
			fields[i] = NamedElement{Name: f.Name, Element: replaced}
			return CompoundElement{Fields: fields}, true
		}
	}
	return el, false
}

// Canonical renders products independently of their order, recursively.
// Two result sets are equal as sets iff their canonical forms are equal.
func Canonical(products []Product) string {
	rows := make([]string, len(products))
	for i, p := range products {
		rows[i] = p.Tuple.Key() + " => " + canonicalElement(p.Result)
	}
	slices.Sort(rows)
	return "[" + strings.Join(rows, "; ") + "]"
}

func canonicalElement(el Element) string {
	switch v := el.(type) {
	case SimpleElement:
		return v.Ref.String()
	case FieldElement:
		b, err := ir.MarshalIRValue(v.Value)
		if err != nil {
			return fmt.Sprintf("<%v>", err)
		}
		return string(b)
	case HashElement:
		return "#" + v.Hash
	case CompoundElement:
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = f.Name + ": " + canonicalElement(f.Element)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case CollectionElement:
		return Canonical(v.Products)
	default:
		return "<nil>"
	}
}
