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

package freepcs

import (
	"fmt"

	"github.com/awslabs/pcs-go-tools/analysis/ir"
)

// CondKind discriminates triple conditions.
type CondKind int

const (
	// CondCapability requires or ensures a capability on an owned place
	CondCapability CondKind = iota

	// CondAllocates ensures a local becomes allocated with Write
	CondAllocates

	// CondUnalloc requires or ensures a local has no storage
	CondUnalloc

	// CondAnyAlloc requires a local in any allocation state, used by
	// StorageDead which is legal on dead storage
	CondAnyAlloc
)

// Cond is one pre- or postcondition of an instruction triple.
type Cond struct {
	Kind  CondKind
	Place ir.Place
	Cap   CapabilityKind
	Local ir.Local
}

func capCond(p ir.Place, k CapabilityKind) Cond {
	return Cond{Kind: CondCapability, Place: p, Cap: k}
}

func (c Cond) String() string {
	switch c.Kind {
	case CondCapability:
		return fmt.Sprintf("%v(%v)", c.Cap, c.Place)
	case CondAllocates:
		return fmt.Sprintf("alloc(%v)", c.Local)
	case CondUnalloc:
		return fmt.Sprintf("unalloc(%v)", c.Local)
	case CondAnyAlloc:
		return fmt.Sprintf("anyalloc(%v)", c.Local)
	}
	return fmt.Sprintf("Cond(%d)", int(c.Kind))
}

// Triple is the capability footprint of one instruction: what it requires
// before executing and what it guarantees after.
type Triple struct {
	Pre  []Cond
	Post []Cond
}

// OwnedTarget truncates place to the longest prefix lying in the owned
// fragment: capability conditions on a place behind a reference fall on
// the reference itself.
func OwnedTarget(place ir.Place, body *ir.Body) (ir.Place, error) {
	t := body.LocalType(place.Local)
	for i, e := range place.Projection {
		if _, isDeref := e.(ir.DerefElem); isDeref {
			switch t.(type) {
			case ir.RefType, ir.RawPtrType:
				return ir.Place{Local: place.Local, Projection: place.Projection[:i]}, nil
			}
		}
		prefix := ir.Place{Local: place.Local, Projection: place.Projection[:i+1]}
		var err error
		t, err = prefix.TypeIn(body)
		if err != nil {
			return ir.Place{}, err
		}
	}
	return place, nil
}

// ProducedCapability is the capability an rvalue's result grants: boxes
// with uninitialized contents grant only ShallowExclusive.
func ProducedCapability(rv ir.Rvalue) CapabilityKind {
	if _, ok := rv.(ir.ShallowInitBox); ok {
		return ShallowExclusive
	}
	return Exclusive
}

type tripleBuilder struct {
	body *ir.Body
	t    Triple
	err  error
}

func (b *tripleBuilder) require(place ir.Place, kind CapabilityKind) {
	if b.err != nil {
		return
	}
	owned, err := OwnedTarget(place, b.body)
	if err != nil {
		b.err = err
		return
	}
	b.t.Pre = append(b.t.Pre, capCond(owned, kind))
}

func (b *tripleBuilder) ensure(c Cond) {
	if b.err == nil {
		b.t.Post = append(b.t.Post, c)
	}
}

func (b *tripleBuilder) ensureCap(place ir.Place, kind CapabilityKind) {
	if b.err != nil {
		return
	}
	owned, err := OwnedTarget(place, b.body)
	if err != nil {
		b.err = err
		return
	}
	// capability through a reference belongs to the reference; the write
	// leaves it unchanged
	if owned.Eq(place) {
		b.ensure(capCond(owned, kind))
	}
}

func (b *tripleBuilder) operand(op ir.Operand) {
	switch o := op.(type) {
	case ir.Copy:
		b.require(o.Place, Exclusive)
	case ir.Move:
		b.require(o.Place, Exclusive)
		b.ensureCap(o.Place, Write)
	}
}

func (b *tripleBuilder) rvalue(rv ir.Rvalue) {
	for _, op := range ir.RvalueOperands(rv) {
		b.operand(op)
	}
	switch r := rv.(type) {
	case ir.RefRvalue:
		b.require(r.Place, Exclusive)
		if r.Mut == ir.Mutable {
			// the value is lent out; only overwriting the place remains legal
			b.ensureCap(r.Place, Write)
		}
	case ir.AddressOf:
		b.require(r.Place, Exclusive)
	case ir.DiscriminantRvalue:
		b.require(r.Place, Exclusive)
	case ir.LenRvalue:
		b.require(r.Place, Exclusive)
	}
}

// StatementTriple computes the triple of stmt.
func StatementTriple(stmt ir.Statement, body *ir.Body) (Triple, error) {
	b := &tripleBuilder{body: body}
	switch s := stmt.(type) {
	case ir.Assign:
		b.rvalue(s.Rvalue)
		b.require(s.Place, Write)
		b.ensureCap(s.Place, ProducedCapability(s.Rvalue))
	case ir.FakeRead:
		b.require(s.Place, Exclusive)
	case ir.PlaceMention:
		b.require(s.Place, Write)
	case ir.SetDiscriminant:
		b.require(s.Place, Exclusive)
	case ir.Deinit:
		b.require(s.Place, Exclusive)
		b.ensureCap(s.Place, Write)
	case ir.StorageLive:
		b.t.Pre = append(b.t.Pre, Cond{Kind: CondUnalloc, Local: s.Local})
		b.ensure(Cond{Kind: CondAllocates, Local: s.Local})
	case ir.StorageDead:
		b.t.Pre = append(b.t.Pre, Cond{Kind: CondAnyAlloc, Local: s.Local})
		b.ensure(Cond{Kind: CondUnalloc, Local: s.Local})
	case ir.Retag, ir.Nop:
		// no capability footprint
	default:
		return Triple{}, fmt.Errorf("unknown statement %T", stmt)
	}
	return b.t, b.err
}

// TerminatorTriple computes the triple of term. The Return triple demands
// Exclusive on the return place, Write on always-live locals and
// deallocation of everything else.
func TerminatorTriple(term ir.Terminator, body *ir.Body) (Triple, error) {
	b := &tripleBuilder{body: body}
	switch t := term.(type) {
	case ir.Goto, ir.Unreachable:
		// no capability footprint
	case ir.SwitchInt:
		b.operand(t.Discr)
	case ir.Return:
		b.require(ir.PlaceOf(ir.ReturnPlace), Exclusive)
		for l, decl := range body.Locals {
			local := ir.Local(l)
			if local == ir.ReturnPlace {
				continue
			}
			if decl.AlwaysLive {
				b.require(ir.PlaceOf(local), Write)
			} else {
				// storage must already be gone; a still-allocated local
				// at return is a leak
				b.t.Pre = append(b.t.Pre, Cond{Kind: CondUnalloc, Local: local})
			}
		}
	case ir.Drop:
		b.require(t.Place, Write)
		b.ensureCap(t.Place, Write)
	case ir.Call:
		b.operand(t.Func)
		for _, arg := range t.Args {
			b.operand(arg)
		}
		b.require(t.Destination, Write)
		b.ensureCap(t.Destination, Exclusive)
	case ir.Yield:
		b.operand(t.Value)
		b.require(t.ResumePlace, Write)
		b.ensureCap(t.ResumePlace, Exclusive)
	default:
		return Triple{}, fmt.Errorf("unknown terminator %T", term)
	}
	return b.t, b.err
}
