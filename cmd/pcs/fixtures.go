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

package main

import (
	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/pcs"
)

var i32 = ir.ScalarType{Name: "i32"}

// demoInputs returns the built-in demo bodies the tool analyzes when no
// input file is given.
func demoInputs() []pcs.Input {
	return []pcs.Input{
		reborrowChain(),
		conditionalBorrow(),
		packRepack(),
		callAbstraction(),
		boxContents(),
		countdown(),
	}
}

// reborrowChain blocks x behind y behind z, writes through the chain and
// recovers x by unblocking both loans.
func reborrowChain() pcs.Input {
	b := ir.NewBuilder("demo::reborrow_chain", i32)
	x := b.NamedLocal("x", i32)
	y := b.NamedLocal("y", ir.RefType{Region: 1, Mut: ir.Mutable, Pointee: i32})
	z := b.NamedLocal("z", ir.RefType{Region: 2, Mut: ir.Mutable, Pointee: i32})
	b.Stmt(ir.StorageLive{Local: x}).
		Stmt(ir.Assign{Place: ir.PlaceOf(x), Rvalue: ir.UseRvalue{Operand: ir.Constant{Type: i32, Value: "0"}}}).
		Stmt(ir.StorageLive{Local: y}).
		Stmt(ir.Assign{Place: ir.PlaceOf(y), Rvalue: ir.RefRvalue{Region: 1, Mut: ir.Mutable, Place: ir.PlaceOf(x)}}).
		Stmt(ir.StorageLive{Local: z}).
		Stmt(ir.Assign{Place: ir.PlaceOf(z), Rvalue: ir.RefRvalue{Region: 2, Mut: ir.Mutable, Place: ir.PlaceOf(y).Deref()}}).
		Stmt(ir.Assign{Place: ir.PlaceOf(z).Deref(), Rvalue: ir.UseRvalue{Operand: ir.Constant{Type: i32, Value: "5"}}}).
		Stmt(ir.StorageDead{Local: z}).
		Stmt(ir.StorageDead{Local: y}).
		Stmt(ir.Assign{Place: ir.PlaceOf(ir.ReturnPlace), Rvalue: ir.UseRvalue{Operand: ir.Copy{Place: ir.PlaceOf(x)}}}).
		Stmt(ir.StorageDead{Local: x}).
		Term(ir.Return{})
	return pcs.Input{
		Body:   b.MustBuild(),
		Bounds: []ir.OutlivesBound{{Longer: 1, Shorter: 2}},
	}
}

// conditionalBorrow borrows a different local in each branch; the join
// carries both loans under their path conditions.
func conditionalBorrow() pcs.Input {
	b := ir.NewBuilder("demo::conditional_borrow", i32, i32)
	c := ir.Local(1)
	first := b.NamedLocal("first", i32)
	second := b.NamedLocal("second", i32)
	y := b.NamedLocal("y", ir.RefType{Region: 1, Mut: ir.Mutable, Pointee: i32})

	b.Stmt(ir.StorageLive{Local: first}).
		Stmt(ir.Assign{Place: ir.PlaceOf(first), Rvalue: ir.UseRvalue{Operand: ir.Constant{Type: i32, Value: "0"}}}).
		Stmt(ir.StorageLive{Local: second}).
		Stmt(ir.Assign{Place: ir.PlaceOf(second), Rvalue: ir.UseRvalue{Operand: ir.Constant{Type: i32, Value: "1"}}}).
		Stmt(ir.StorageLive{Local: y}).
		Term(ir.SwitchInt{
			Discr:     ir.Copy{Place: ir.PlaceOf(c)},
			Values:    []int64{0},
			Targets:   []ir.BlockIdx{1},
			Otherwise: 2,
		})

	b.Block(1)
	b.Stmt(ir.Assign{Place: ir.PlaceOf(y), Rvalue: ir.RefRvalue{Region: 1, Mut: ir.Mutable, Place: ir.PlaceOf(first)}}).
		Term(ir.Goto{Target: 3})

	b.Block(2)
	b.Stmt(ir.Assign{Place: ir.PlaceOf(y), Rvalue: ir.RefRvalue{Region: 1, Mut: ir.Mutable, Place: ir.PlaceOf(second)}}).
		Term(ir.Goto{Target: 3})

	b.Block(3)
	b.Stmt(ir.Assign{Place: ir.PlaceOf(y).Deref(), Rvalue: ir.UseRvalue{Operand: ir.Constant{Type: i32, Value: "7"}}}).
		Stmt(ir.StorageDead{Local: y}).
		Stmt(ir.Assign{Place: ir.PlaceOf(ir.ReturnPlace), Rvalue: ir.UseRvalue{Operand: ir.Copy{Place: ir.PlaceOf(first)}}}).
		Stmt(ir.StorageDead{Local: first}).
		Stmt(ir.StorageDead{Local: second}).
		Term(ir.Return{})

	return pcs.Input{Body: b.MustBuild()}
}

// packRepack fills a struct, writes one field (forcing an expand) and then
// reads the whole struct back (forcing a collapse).
func packRepack() pcs.Input {
	pair := ir.AdtType{
		Name: "Pair",
		Variants: []ir.VariantDecl{{
			Name: "Pair",
			Fields: []ir.FieldDecl{
				{Name: "x", Type: i32},
				{Name: "y", Type: i32},
			},
		}},
	}
	b := ir.NewBuilder("demo::pack_repack", i32)
	p := b.NamedLocal("p", pair)
	b.Stmt(ir.StorageLive{Local: p}).
		Stmt(ir.Assign{Place: ir.PlaceOf(p), Rvalue: ir.AggregateRvalue{
			Type: pair,
			Operands: []ir.Operand{
				ir.Constant{Type: i32, Value: "0"},
				ir.Constant{Type: i32, Value: "1"},
			},
		}}).
		Stmt(ir.Assign{Place: ir.PlaceOf(p).Field(0), Rvalue: ir.UseRvalue{Operand: ir.Constant{Type: i32, Value: "2"}}}).
		Stmt(ir.Assign{Place: ir.PlaceOf(ir.ReturnPlace), Rvalue: ir.UseRvalue{Operand: ir.Copy{Place: ir.PlaceOf(p).Field(1)}}}).
		Stmt(ir.FakeRead{Place: ir.PlaceOf(p)}).
		Stmt(ir.StorageDead{Local: p}).
		Term(ir.Return{})
	return pcs.Input{Body: b.MustBuild()}
}

// callAbstraction passes a borrowed argument to a callee whose signature
// says the input region outlives the output region, producing a region
// abstraction edge until the result dies.
func callAbstraction() pcs.Input {
	argTy := ir.RefType{Region: 1, Mut: ir.Mutable, Pointee: i32}
	outTy := ir.RefType{Region: 2, Mut: ir.Mutable, Pointee: i32}
	b := ir.NewBuilder("demo::call_abstraction", i32, argTy)
	r := ir.Local(1)
	dest := b.NamedLocal("dest", outTy)

	b.Stmt(ir.StorageLive{Local: dest}).
		Term(ir.Call{
			Func:        ir.Constant{Type: ir.ScalarType{Name: "fn"}, Value: "extend"},
			Args:        []ir.Operand{ir.Move{Place: ir.PlaceOf(r)}},
			Destination: ir.PlaceOf(dest),
			Target:      1,
			Sig: &ir.FuncSig{
				Inputs: []ir.Type{argTy},
				Output: outTy,
				Bounds: []ir.OutlivesBound{{Longer: 1, Shorter: 2}},
			},
		})

	b.Block(1)
	b.Stmt(ir.Assign{Place: ir.PlaceOf(dest).Deref(), Rvalue: ir.UseRvalue{Operand: ir.Constant{Type: i32, Value: "3"}}}).
		Stmt(ir.StorageDead{Local: dest}).
		Stmt(ir.Assign{Place: ir.PlaceOf(ir.ReturnPlace), Rvalue: ir.UseRvalue{Operand: ir.Constant{Type: i32, Value: "0"}}}).
		Term(ir.Return{})

	return pcs.Input{
		Body:   b.MustBuild(),
		Bounds: []ir.OutlivesBound{{Longer: 1, Shorter: 2}},
	}
}

// boxContents allocates a box shallowly, initializes its contents through
// the owned deref and drops it.
func boxContents() pcs.Input {
	boxed := ir.BoxType{Elem: i32}
	b := ir.NewBuilder("demo::box_contents", i32)
	bx := b.NamedLocal("bx", boxed)
	b.Stmt(ir.StorageLive{Local: bx}).
		Stmt(ir.Assign{Place: ir.PlaceOf(bx), Rvalue: ir.ShallowInitBox{
			Operand: ir.Constant{Type: ir.ScalarType{Name: "usize"}, Value: "4"},
			Type:    i32,
		}}).
		Stmt(ir.Assign{Place: ir.PlaceOf(bx).Deref(), Rvalue: ir.UseRvalue{Operand: ir.Constant{Type: i32, Value: "5"}}}).
		Stmt(ir.Assign{Place: ir.PlaceOf(ir.ReturnPlace), Rvalue: ir.UseRvalue{Operand: ir.Constant{Type: i32, Value: "5"}}}).
		Term(ir.Drop{Place: ir.PlaceOf(bx), Target: 1})

	b.Block(1)
	b.Stmt(ir.StorageDead{Local: bx}).
		Term(ir.Return{})

	return pcs.Input{Body: b.MustBuild()}
}

// countdown loops until its argument reaches zero, exercising the fixpoint
// on a cyclic control flow graph.
func countdown() pcs.Input {
	b := ir.NewBuilder("demo::countdown", i32, i32)
	n := ir.Local(1)

	b.Term(ir.Goto{Target: 1})

	b.Block(1)
	b.Term(ir.SwitchInt{
		Discr:     ir.Copy{Place: ir.PlaceOf(n)},
		Values:    []int64{0},
		Targets:   []ir.BlockIdx{3},
		Otherwise: 2,
	})

	b.Block(2)
	b.Stmt(ir.Assign{Place: ir.PlaceOf(n), Rvalue: ir.BinaryOpRvalue{
		Op:    "Sub",
		Left:  ir.Copy{Place: ir.PlaceOf(n)},
		Right: ir.Constant{Type: i32, Value: "1"},
	}}).
		Term(ir.Goto{Target: 1})

	b.Block(3)
	b.Stmt(ir.Assign{Place: ir.PlaceOf(ir.ReturnPlace), Rvalue: ir.UseRvalue{Operand: ir.Copy{Place: ir.PlaceOf(n)}}}).
		Term(ir.Return{})

	return pcs.Input{Body: b.MustBuild()}
}
