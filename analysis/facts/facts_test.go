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

package facts

import (
	"testing"

	"github.com/awslabs/pcs-go-tools/analysis/ir"
)

func borrowBody(t *testing.T) *ir.Body {
	t.Helper()
	i32 := ir.ScalarType{Name: "i32"}
	b := ir.NewBuilder("borrows", i32)
	x := b.NamedLocal("x", i32)
	y := b.NamedLocal("y", i32)
	rx := b.NamedLocal("rx", ir.RefType{Region: 1, Mut: ir.Mutable, Pointee: i32})
	ry := b.NamedLocal("ry", ir.RefType{Region: 2, Mut: ir.Shared, Pointee: i32})
	b.Stmt(ir.StorageLive{Local: x}).
		Stmt(ir.StorageLive{Local: y}).
		Stmt(ir.Assign{Place: ir.PlaceOf(rx), Rvalue: ir.RefRvalue{Region: 1, Mut: ir.Mutable, Place: ir.PlaceOf(x)}}).
		Stmt(ir.Assign{Place: ir.PlaceOf(ry), Rvalue: ir.RefRvalue{Region: 2, Mut: ir.Shared, Place: ir.PlaceOf(y)}}).
		Term(ir.Return{})
	return b.MustBuild()
}

func TestCollectBorrows(t *testing.T) {
	body := borrowBody(t)
	bs := CollectBorrows(body)

	if bs.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", bs.Len())
	}

	first := bs.Get(0)
	if !first.Borrowed.Eq(ir.PlaceOf(1)) {
		t.Errorf("first loan borrows %v, want _1", first.Borrowed)
	}
	if first.Mut != ir.Mutable || first.Region != 1 {
		t.Errorf("first loan = %v, want mutable loan in region 1", first)
	}
	if first.Reserve != (ir.Location{Block: 0, Statement: 2}) {
		t.Errorf("first loan reserved at %v, want bb0[2]", first.Reserve)
	}

	got, ok := bs.AtReserve(ir.Location{Block: 0, Statement: 3})
	if !ok || got.Mut != ir.Shared {
		t.Errorf("AtReserve(bb0[3]) = %v, %v; want the shared loan", got, ok)
	}
	if _, ok := bs.AtReserve(ir.Location{Block: 0, Statement: 0}); ok {
		t.Errorf("StorageLive should not reserve a loan")
	}

	if loans := bs.InRegion(1); len(loans) != 1 || loans[0].Index != 0 {
		t.Errorf("InRegion(1) = %v, want the first loan only", loans)
	}
	if loans := bs.InRegion(9); loans != nil {
		t.Errorf("InRegion(9) = %v, want nil", loans)
	}
}

func TestRegionContextClosure(t *testing.T) {
	rc := NewRegionContext([]ir.OutlivesBound{
		{Longer: 1, Shorter: 2},
		{Longer: 2, Shorter: 3},
	})

	cases := []struct {
		longer, shorter ir.Region
		want            bool
	}{
		{1, 2, true},
		{2, 3, true},
		{1, 3, true}, // transitivity
		{2, 2, true}, // reflexivity
		{7, 7, true},
		{3, 1, false},
		{2, 1, false},
	}
	for _, c := range cases {
		if got := rc.Outlives(c.longer, c.shorter); got != c.want {
			t.Errorf("Outlives(%v, %v) = %v, want %v", c.longer, c.shorter, got, c.want)
		}
	}

	by := rc.OutlivedBy(3)
	want := map[ir.Region]bool{1: true, 2: true, 3: true}
	if len(by) != len(want) {
		t.Fatalf("OutlivedBy(3) = %v, want regions 1, 2, 3", by)
	}
	for _, r := range by {
		if !want[r] {
			t.Errorf("OutlivedBy(3) contains unexpected region %v", r)
		}
	}
}

func TestCheckConsistency(t *testing.T) {
	body := borrowBody(t)
	bs := CollectBorrows(body)

	if err := NewRegionContext(nil).CheckConsistency(body, bs); err != nil {
		t.Errorf("loans matching their reference regions should pass: %v", err)
	}

	// mismatched region on the assigned reference
	i32 := ir.ScalarType{Name: "i32"}
	b := ir.NewBuilder("bad", i32)
	x := b.NamedLocal("x", i32)
	r := b.NamedLocal("r", ir.RefType{Region: 5, Mut: ir.Mutable, Pointee: i32})
	b.Stmt(ir.Assign{Place: ir.PlaceOf(r), Rvalue: ir.RefRvalue{Region: 4, Mut: ir.Mutable, Place: ir.PlaceOf(x)}}).
		Term(ir.Return{})
	bad := b.MustBuild()

	if err := NewRegionContext(nil).CheckConsistency(bad, CollectBorrows(bad)); err == nil {
		t.Errorf("unrelated loan and reference regions should be rejected")
	}
	rc := NewRegionContext([]ir.OutlivesBound{{Longer: 4, Shorter: 5}})
	if err := rc.CheckConsistency(bad, CollectBorrows(bad)); err != nil {
		t.Errorf("a loan whose region outlives the reference region should pass: %v", err)
	}
}
