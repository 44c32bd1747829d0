// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ir

import (
	"fmt"
	"strings"
)

// ProjectionElem is one step of a place's projection path.
type ProjectionElem interface {
	isProjectionElem()
	elemKey() string
}

// FieldElem selects field Index of an aggregate.
type FieldElem struct {
	Index int
}

// DerefElem dereferences a pointer-typed place.
type DerefElem struct{}

// DowncastElem refines an enum place to one of its variants.
type DowncastElem struct {
	Variant int
}

// IndexElem indexes a sequence with a runtime index local.
type IndexElem struct {
	Index Local
}

// ConstantIndexElem indexes a sequence at a constant offset.
type ConstantIndexElem struct {
	Offset    int
	MinLength int
	FromEnd   bool
}

// SubsliceElem selects a contiguous range of a sequence.
type SubsliceElem struct {
	From    int
	To      int
	FromEnd bool
}

func (FieldElem) isProjectionElem()         {}
func (DerefElem) isProjectionElem()         {}
func (DowncastElem) isProjectionElem()      {}
func (IndexElem) isProjectionElem()         {}
func (ConstantIndexElem) isProjectionElem() {}
func (SubsliceElem) isProjectionElem()      {}

func (e FieldElem) elemKey() string    { return fmt.Sprintf(".%d", e.Index) }
func (DerefElem) elemKey() string      { return "*" }
func (e DowncastElem) elemKey() string { return fmt.Sprintf("@%d", e.Variant) }
func (e IndexElem) elemKey() string    { return fmt.Sprintf("[%v]", e.Index) }
func (e ConstantIndexElem) elemKey() string {
	if e.FromEnd {
		return fmt.Sprintf("[-%d of %d]", e.Offset, e.MinLength)
	}
	return fmt.Sprintf("[%d of %d]", e.Offset, e.MinLength)
}
func (e SubsliceElem) elemKey() string {
	if e.FromEnd {
		return fmt.Sprintf("[%d:-%d]", e.From, e.To)
	}
	return fmt.Sprintf("[%d:%d]", e.From, e.To)
}

// Place is a memory path: a local followed by a projection path. Places are
// value types; the projection slice is never mutated after construction.
type Place struct {
	Local      Local
	Projection []ProjectionElem
}

// PlaceOf builds a place from a local and projection elements.
func PlaceOf(l Local, proj ...ProjectionElem) Place {
	return Place{Local: l, Projection: proj}
}

// Project returns p extended with one more projection element.
func (p Place) Project(elem ProjectionElem) Place {
	proj := make([]ProjectionElem, len(p.Projection)+1)
	copy(proj, p.Projection)
	proj[len(p.Projection)] = elem
	return Place{Local: p.Local, Projection: proj}
}

// Deref returns *p.
func (p Place) Deref() Place {
	return p.Project(DerefElem{})
}

// Field returns p.i.
func (p Place) Field(i int) Place {
	return p.Project(FieldElem{Index: i})
}

// Downcast returns p viewed as variant v.
func (p Place) Downcast(v int) Place {
	return p.Project(DowncastElem{Variant: v})
}

// IsLocal reports whether p has an empty projection.
func (p Place) IsLocal() bool {
	return len(p.Projection) == 0
}

// Parent returns p with its last projection element removed. Panics when p
// is a bare local.
func (p Place) Parent() Place {
	if p.IsLocal() {
		panic("parent of bare local")
	}
	return Place{Local: p.Local, Projection: p.Projection[:len(p.Projection)-1]}
}

// LastElem returns the final projection element of p, or nil for a local.
func (p Place) LastElem() ProjectionElem {
	if p.IsLocal() {
		return nil
	}
	return p.Projection[len(p.Projection)-1]
}

// IsPrefixOf reports whether p is a (non-strict) prefix of q.
func (p Place) IsPrefixOf(q Place) bool {
	if p.Local != q.Local || len(p.Projection) > len(q.Projection) {
		return false
	}
	for i, e := range p.Projection {
		if e.elemKey() != q.Projection[i].elemKey() {
			return false
		}
	}
	return true
}

// IsStrictPrefixOf reports whether p is a strict prefix of q.
func (p Place) IsStrictPrefixOf(q Place) bool {
	return len(p.Projection) < len(q.Projection) && p.IsPrefixOf(q)
}

// Eq reports place equality.
func (p Place) Eq(q Place) bool {
	return len(p.Projection) == len(q.Projection) && p.IsPrefixOf(q)
}

// Related reports whether one of p, q is a prefix of the other.
func (p Place) Related(q Place) bool {
	return p.IsPrefixOf(q) || q.IsPrefixOf(p)
}

// Key returns a canonical string identifying p, usable as a map key.
func (p Place) Key() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "_%d", int(p.Local))
	for _, e := range p.Projection {
		sb.WriteString(e.elemKey())
	}
	return sb.String()
}

func (p Place) String() string {
	s := p.Local.String()
	for _, e := range p.Projection {
		switch elem := e.(type) {
		case DerefElem:
			s = "(*" + s + ")"
		case FieldElem:
			s = fmt.Sprintf("%s.%d", s, elem.Index)
		case DowncastElem:
			s = fmt.Sprintf("(%s as %d)", s, elem.Variant)
		default:
			s += e.elemKey()
		}
	}
	return s
}

// TypeIn resolves the type of p in body. Returns an error when the
// projection path does not fit the local's declared type.
func (p Place) TypeIn(body *Body) (Type, error) {
	t := body.LocalType(p.Local)
	for i, e := range p.Projection {
		next, err := projectType(t, e)
		if err != nil {
			return nil, fmt.Errorf("place %v: projection %d: %w", p, i, err)
		}
		t = next
	}
	return t, nil
}

func projectType(t Type, e ProjectionElem) (Type, error) {
	switch elem := e.(type) {
	case DerefElem:
		pt := Pointee(t)
		if pt == nil {
			return nil, fmt.Errorf("deref of non-pointer type %v", t)
		}
		return pt, nil
	case FieldElem:
		switch u := t.(type) {
		case TupleType:
			if elem.Index >= len(u.Elems) {
				return nil, fmt.Errorf("field %d out of range for %v", elem.Index, t)
			}
			return u.Elems[elem.Index], nil
		case AdtType:
			if len(u.Variants) != 1 {
				return nil, fmt.Errorf("field access on multi-variant adt %v without downcast", t)
			}
			if elem.Index >= len(u.Variants[0].Fields) {
				return nil, fmt.Errorf("field %d out of range for %v", elem.Index, t)
			}
			return u.Variants[0].Fields[elem.Index].Type, nil
		case variantView:
			fields := u.Adt.Variants[u.Variant].Fields
			if elem.Index >= len(fields) {
				return nil, fmt.Errorf("field %d out of range for %v", elem.Index, u)
			}
			return fields[elem.Index].Type, nil
		}
		return nil, fmt.Errorf("field access on non-aggregate type %v", t)
	case DowncastElem:
		u, ok := t.(AdtType)
		if !ok || elem.Variant >= len(u.Variants) {
			return nil, fmt.Errorf("downcast %d on type %v", elem.Variant, t)
		}
		// the downcast place keeps the adt type; field projections after
		// a downcast resolve against the chosen variant
		return variantView{Adt: u, Variant: elem.Variant}, nil
	case IndexElem, ConstantIndexElem:
		switch u := t.(type) {
		case ArrayType:
			return u.Elem, nil
		case SliceType:
			return u.Elem, nil
		}
		return nil, fmt.Errorf("index on non-sequence type %v", t)
	case SubsliceElem:
		switch u := t.(type) {
		case ArrayType:
			return SliceType{Elem: u.Elem}, nil
		case SliceType:
			return u, nil
		}
		return nil, fmt.Errorf("subslice on non-sequence type %v", t)
	}
	return nil, fmt.Errorf("unknown projection element %T", e)
}

// FieldCount returns the number of fields of an aggregate type, or false
// for multi-variant adts without a downcast and for non-aggregates.
func FieldCount(t Type) (int, bool) {
	switch u := t.(type) {
	case TupleType:
		return len(u.Elems), true
	case AdtType:
		if len(u.Variants) == 1 {
			return len(u.Variants[0].Fields), true
		}
		return 0, false
	case variantView:
		return len(u.Adt.Variants[u.Variant].Fields), true
	}
	return 0, false
}

// VariantCount returns the number of variants of an adt, or 1 for other
// aggregate types.
func VariantCount(t Type) int {
	if u, ok := t.(AdtType); ok {
		return len(u.Variants)
	}
	return 1
}

// variantView is the type of a downcast place: the adt narrowed to one
// variant so field projections resolve against that variant's fields.
type variantView struct {
	Adt     AdtType
	Variant int
}

func (variantView) isType() {}

func (v variantView) String() string {
	return fmt.Sprintf("%s::%s", v.Adt.Name, v.Adt.Variants[v.Variant].Name)
}
