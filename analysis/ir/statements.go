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

// Statement is one non-terminating instruction of a basic block.
type Statement interface {
	isStatement()
	String() string
}

// Assign evaluates Rvalue and stores it into Place.
type Assign struct {
	Place  Place
	Rvalue Rvalue
}

// FakeRead asserts that Place is readable without consuming it.
type FakeRead struct {
	Place Place
}

// PlaceMention mentions Place without reading or writing it.
type PlaceMention struct {
	Place Place
}

// SetDiscriminant writes the discriminant of the enum at Place.
type SetDiscriminant struct {
	Place   Place
	Variant int
}

// Deinit marks Place as uninitialized.
type Deinit struct {
	Place Place
}

// StorageLive allocates storage for Local.
type StorageLive struct {
	Local Local
}

// StorageDead deallocates storage for Local.
type StorageDead struct {
	Local Local
}

// Retag re-tags the pointer at Place. A no-op for this analysis.
type Retag struct {
	Place Place
}

// Nop does nothing.
type Nop struct{}

func (Assign) isStatement()          {}
func (FakeRead) isStatement()        {}
func (PlaceMention) isStatement()    {}
func (SetDiscriminant) isStatement() {}
func (Deinit) isStatement()          {}
func (StorageLive) isStatement()     {}
func (StorageDead) isStatement()     {}
func (Retag) isStatement()           {}
func (Nop) isStatement()             {}

func (s Assign) String() string          { return fmt.Sprintf("%v = %v", s.Place, s.Rvalue) }
func (s FakeRead) String() string        { return fmt.Sprintf("FakeRead(%v)", s.Place) }
func (s PlaceMention) String() string    { return fmt.Sprintf("PlaceMention(%v)", s.Place) }
func (s SetDiscriminant) String() string { return fmt.Sprintf("discriminant(%v) = %d", s.Place, s.Variant) }
func (s Deinit) String() string          { return fmt.Sprintf("Deinit(%v)", s.Place) }
func (s StorageLive) String() string     { return fmt.Sprintf("StorageLive(%v)", s.Local) }
func (s StorageDead) String() string     { return fmt.Sprintf("StorageDead(%v)", s.Local) }
func (s Retag) String() string           { return fmt.Sprintf("Retag(%v)", s.Place) }
func (Nop) String() string               { return "nop" }

// Operand is an input to an rvalue or call.
type Operand interface {
	isOperand()
	String() string
}

// Copy reads Place non-destructively.
type Copy struct {
	Place Place
}

// Move reads Place and deinitializes it.
type Move struct {
	Place Place
}

// Constant is a literal of the given type.
type Constant struct {
	Type  Type
	Value string
}

func (Copy) isOperand()     {}
func (Move) isOperand()     {}
func (Constant) isOperand() {}

func (o Copy) String() string     { return fmt.Sprintf("copy %v", o.Place) }
func (o Move) String() string     { return fmt.Sprintf("move %v", o.Place) }
func (o Constant) String() string { return fmt.Sprintf("const %s", o.Value) }

// OperandPlace returns the place read by o, if any.
func OperandPlace(o Operand) (Place, bool) {
	switch op := o.(type) {
	case Copy:
		return op.Place, true
	case Move:
		return op.Place, true
	}
	return Place{}, false
}

// Rvalue is the right-hand side of an assignment.
type Rvalue interface {
	isRvalue()
	String() string
}

// UseRvalue forwards a single operand.
type UseRvalue struct {
	Operand Operand
}

// RefRvalue takes a reference to Place.
type RefRvalue struct {
	Region Region
	Mut    Mutability
	Place  Place
}

// AddressOf takes a raw pointer to Place.
type AddressOf struct {
	Mut   Mutability
	Place Place
}

// AggregateRvalue builds a tuple, struct or enum variant from operands.
type AggregateRvalue struct {
	Type     Type
	Variant  int
	Operands []Operand
}

// CastRvalue converts an operand to another type.
type CastRvalue struct {
	Operand Operand
	Type    Type
}

// BinaryOpRvalue applies a binary operator to two operands.
type BinaryOpRvalue struct {
	Op    string
	Left  Operand
	Right Operand
}

// DiscriminantRvalue reads the discriminant of the enum at Place.
type DiscriminantRvalue struct {
	Place Place
}

// LenRvalue reads the length of the sequence at Place.
type LenRvalue struct {
	Place Place
}

// ShallowInitBox allocates a box whose contents are not yet initialized.
type ShallowInitBox struct {
	Operand Operand
	Type    Type
}

func (UseRvalue) isRvalue()          {}
func (RefRvalue) isRvalue()          {}
func (AddressOf) isRvalue()          {}
func (AggregateRvalue) isRvalue()    {}
func (CastRvalue) isRvalue()         {}
func (BinaryOpRvalue) isRvalue()     {}
func (DiscriminantRvalue) isRvalue() {}
func (LenRvalue) isRvalue()          {}
func (ShallowInitBox) isRvalue()     {}

func (r UseRvalue) String() string { return r.Operand.String() }

func (r RefRvalue) String() string {
	if r.Mut == Mutable {
		return fmt.Sprintf("&%v mut %v", r.Region, r.Place)
	}
	return fmt.Sprintf("&%v %v", r.Region, r.Place)
}

func (r AddressOf) String() string {
	if r.Mut == Mutable {
		return fmt.Sprintf("&raw mut %v", r.Place)
	}
	return fmt.Sprintf("&raw const %v", r.Place)
}

func (r AggregateRvalue) String() string {
	ops := make([]string, len(r.Operands))
	for i, o := range r.Operands {
		ops[i] = o.String()
	}
	return fmt.Sprintf("%v { %s }", r.Type, strings.Join(ops, ", "))
}

func (r CastRvalue) String() string { return fmt.Sprintf("%v as %v", r.Operand, r.Type) }

func (r BinaryOpRvalue) String() string {
	return fmt.Sprintf("%s(%v, %v)", r.Op, r.Left, r.Right)
}

func (r DiscriminantRvalue) String() string { return fmt.Sprintf("discriminant(%v)", r.Place) }
func (r LenRvalue) String() string          { return fmt.Sprintf("len(%v)", r.Place) }
func (r ShallowInitBox) String() string     { return fmt.Sprintf("ShallowInitBox(%v, %v)", r.Operand, r.Type) }

// RvalueOperands returns the operands consumed by r.
func RvalueOperands(r Rvalue) []Operand {
	switch rv := r.(type) {
	case UseRvalue:
		return []Operand{rv.Operand}
	case AggregateRvalue:
		return rv.Operands
	case CastRvalue:
		return []Operand{rv.Operand}
	case BinaryOpRvalue:
		return []Operand{rv.Left, rv.Right}
	case ShallowInitBox:
		return []Operand{rv.Operand}
	}
	return nil
}
