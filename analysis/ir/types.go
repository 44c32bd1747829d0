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

// Region names a lifetime region appearing in reference types and function
// signatures.
type Region int

func (r Region) String() string {
	return fmt.Sprintf("'%d", int(r))
}

// Mutability of a reference or raw pointer.
type Mutability int

const (
	Shared Mutability = iota
	Mutable
)

func (m Mutability) String() string {
	if m == Mutable {
		return "mut"
	}
	return ""
}

// Type is the interface implemented by all IR types.
type Type interface {
	isType()
	String() string
}

// ScalarType is an opaque non-aggregate, non-pointer type.
type ScalarType struct {
	Name string
}

// RefType is a reference with a region and mutability.
type RefType struct {
	Region  Region
	Mut     Mutability
	Pointee Type
}

// RawPtrType is a raw pointer. The analysis does not track capabilities
// through raw pointer derefs.
type RawPtrType struct {
	Mut     Mutability
	Pointee Type
}

// BoxType is an owning heap pointer. Dereferencing a box stays within the
// owned fragment of a place.
type BoxType struct {
	Elem Type
}

// FieldDecl is one field of an Adt variant or tuple.
type FieldDecl struct {
	Name string
	Type Type
}

// VariantDecl is one variant of an Adt.
type VariantDecl struct {
	Name   string
	Fields []FieldDecl
}

// AdtType is a nominal aggregate with one or more variants. Single-variant
// Adts model structs; multi-variant Adts model enums and require Downcast
// projections to reach their fields.
type AdtType struct {
	Name     string
	Variants []VariantDecl
}

// TupleType is a positional aggregate.
type TupleType struct {
	Elems []Type
}

// ArrayType is a fixed-length sequence.
type ArrayType struct {
	Elem Type
	Len  int
}

// SliceType is a dynamically sized sequence, only reachable behind a pointer.
type SliceType struct {
	Elem Type
}

func (ScalarType) isType() {}
func (RefType) isType()    {}
func (RawPtrType) isType() {}
func (BoxType) isType()    {}
func (AdtType) isType()    {}
func (TupleType) isType()  {}
func (ArrayType) isType()  {}
func (SliceType) isType()  {}

func (t ScalarType) String() string { return t.Name }

func (t RefType) String() string {
	if t.Mut == Mutable {
		return fmt.Sprintf("&%v mut %v", t.Region, t.Pointee)
	}
	return fmt.Sprintf("&%v %v", t.Region, t.Pointee)
}

func (t RawPtrType) String() string {
	if t.Mut == Mutable {
		return fmt.Sprintf("*mut %v", t.Pointee)
	}
	return fmt.Sprintf("*const %v", t.Pointee)
}

func (t BoxType) String() string { return fmt.Sprintf("box %v", t.Elem) }

func (t AdtType) String() string { return t.Name }

func (t TupleType) String() string {
	elems := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		elems[i] = e.String()
	}
	return "(" + strings.Join(elems, ", ") + ")"
}

func (t ArrayType) String() string { return fmt.Sprintf("[%v; %d]", t.Elem, t.Len) }

func (t SliceType) String() string { return fmt.Sprintf("[%v]", t.Elem) }

// IsRef reports whether t is a reference type.
func IsRef(t Type) bool {
	_, ok := t.(RefType)
	return ok
}

// IsMutRef reports whether t is a mutable reference.
func IsMutRef(t Type) bool {
	r, ok := t.(RefType)
	return ok && r.Mut == Mutable
}

// IsBox reports whether t is an owning box.
func IsBox(t Type) bool {
	_, ok := t.(BoxType)
	return ok
}

// Pointee returns the type behind a reference, raw pointer or box, or nil.
func Pointee(t Type) Type {
	switch p := t.(type) {
	case RefType:
		return p.Pointee
	case RawPtrType:
		return p.Pointee
	case BoxType:
		return p.Elem
	}
	return nil
}

// RegionsOf collects every region appearing in t, outermost first.
func RegionsOf(t Type) []Region {
	var regions []Region
	var walk func(Type)
	walk = func(t Type) {
		switch u := t.(type) {
		case RefType:
			regions = append(regions, u.Region)
			walk(u.Pointee)
		case RawPtrType:
			walk(u.Pointee)
		case BoxType:
			walk(u.Elem)
		case TupleType:
			for _, e := range u.Elems {
				walk(e)
			}
		case ArrayType:
			walk(u.Elem)
		case SliceType:
			walk(u.Elem)
		case AdtType:
			for _, v := range u.Variants {
				for _, f := range v.Fields {
					walk(f.Type)
				}
			}
		}
	}
	walk(t)
	return regions
}
