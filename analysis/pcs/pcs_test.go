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

package pcs

import (
	"testing"

	"github.com/awslabs/pcs-go-tools/analysis/borrows"
	"github.com/awslabs/pcs-go-tools/analysis/config"
	"github.com/awslabs/pcs-go-tools/analysis/facts"
	"github.com/awslabs/pcs-go-tools/analysis/freepcs"
	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/pcserr"
	"github.com/awslabs/pcs-go-tools/analysis/places"
)

var i32t = ir.ScalarType{Name: "i32"}

func testRun(t *testing.T, body *ir.Body, bounds []ir.OutlivesBound) *Result {
	t.Helper()
	cfg := config.NewDefault()
	res := Run(Input{Body: body, Bounds: bounds}, cfg, config.NewLogGroup(cfg))
	for _, err := range res.Errors {
		t.Errorf("analysis of %s: %v", body.Name, err)
	}
	return res
}

func statementAt(t *testing.T, res *Result, loc ir.Location) *LocationResult {
	t.Helper()
	lr, _, err := res.At(loc)
	if err != nil || lr == nil {
		t.Fatalf("no statement result at %v: %v", loc, err)
	}
	return lr
}

func loansOf(s *borrows.State) []borrows.Reborrow {
	var out []borrows.Reborrow
	for _, e := range s.Graph.Edges() {
		if rb, ok := e.Kind.(borrows.Reborrow); ok {
			out = append(out, rb)
		}
	}
	return out
}

func capOf(t *testing.T, sum *freepcs.Summary, p ir.Place) freepcs.CapabilityKind {
	t.Helper()
	cl := sum.Locals[p.Local]
	if !cl.IsAllocated() {
		t.Fatalf("%v is not allocated in %v", p, sum)
	}
	k, ok := cl.Allocated.Get(p)
	if !ok {
		t.Fatalf("no capability for %v in %v", p, sum)
	}
	return k
}

func constAssign(p ir.Place, v string) ir.Statement {
	return ir.Assign{Place: p, Rvalue: ir.UseRvalue{Operand: ir.Constant{Type: i32t, Value: v}}}
}

func mutBorrow(dest, src ir.Place, region ir.Region) ir.Statement {
	return ir.Assign{Place: dest, Rvalue: ir.RefRvalue{Region: region, Mut: ir.Mutable, Place: src}}
}

// nestedReborrowBody is x borrowed by r, *r reborrowed by rr, a write
// through rr, and a read of x after both references die.
func nestedReborrowBody() *ir.Body {
	b := ir.NewBuilder("nested_reborrow", i32t)
	x := b.NamedLocal("x", i32t)
	r := b.NamedLocal("r", ir.RefType{Region: 1, Mut: ir.Mutable, Pointee: i32t})
	rr := b.NamedLocal("rr", ir.RefType{Region: 2, Mut: ir.Mutable, Pointee: i32t})
	b.Stmt(ir.StorageLive{Local: x}).
		Stmt(constAssign(ir.PlaceOf(x), "0")).
		Stmt(ir.StorageLive{Local: r}).
		Stmt(mutBorrow(ir.PlaceOf(r), ir.PlaceOf(x), 1)).
		Stmt(ir.StorageLive{Local: rr}).
		Stmt(mutBorrow(ir.PlaceOf(rr), ir.PlaceOf(r).Deref(), 2)).
		Stmt(constAssign(ir.PlaceOf(rr).Deref(), "1")).
		Stmt(ir.StorageDead{Local: rr}).
		Stmt(ir.StorageDead{Local: r}).
		Stmt(ir.Assign{Place: ir.PlaceOf(ir.ReturnPlace), Rvalue: ir.UseRvalue{Operand: ir.Copy{Place: ir.PlaceOf(x)}}}).
		Stmt(ir.StorageDead{Local: x}).
		Term(ir.Return{})
	return b.MustBuild()
}

func TestNestedReborrow(t *testing.T) {
	res := testRun(t, nestedReborrowBody(), []ir.OutlivesBound{{Longer: 1, Shorter: 2}})

	// after rr = &mut *r both loans are live
	lr := statementAt(t, res, ir.Location{Block: 0, Statement: 5})
	loans := loansOf(lr.Borrows.After)
	if len(loans) != 2 {
		t.Fatalf("got %d loans, want 2: %v", len(loans), lr.Borrows.After.Graph.Edges())
	}
	var sawBase, sawNested bool
	for _, rb := range loans {
		switch {
		case rb.BlockedPlace.Place.Place.Eq(ir.PlaceOf(1)):
			sawBase = rb.Assigned.Eq(places.Current(ir.PlaceOf(2).Deref()))
		case rb.BlockedPlace.Place.Place.Eq(ir.PlaceOf(2).Deref()):
			sawNested = rb.Assigned.Eq(places.Current(ir.PlaceOf(3).Deref()))
		}
	}
	if !sawBase {
		t.Errorf("missing loan _1 -> *_2 in %v", loans)
	}
	if !sawNested {
		t.Errorf("missing loan *_2 -> *_3 in %v", loans)
	}

	// the lent local drops to Write, both pointer words keep Exclusive
	if k := capOf(t, lr.SummaryAfter, ir.PlaceOf(1)); k != freepcs.Write {
		t.Errorf("capability of _1 = %v, want W", k)
	}
	if k := capOf(t, lr.SummaryAfter, ir.PlaceOf(2)); k != freepcs.Exclusive {
		t.Errorf("capability of _2 = %v, want E", k)
	}
	if k := capOf(t, lr.SummaryAfter, ir.PlaceOf(3)); k != freepcs.Exclusive {
		t.Errorf("capability of _3 = %v, want E", k)
	}

	// once both references are dead the read of x sees Exclusive again
	read := statementAt(t, res, ir.Location{Block: 0, Statement: 9})
	if k := capOf(t, read.SummaryBefore, ir.PlaceOf(1)); k != freepcs.Exclusive {
		t.Errorf("capability of _1 before the read = %v, want E", k)
	}
}

func TestMoveRetargetsLoan(t *testing.T) {
	b := ir.NewBuilder("move_reassign", i32t)
	a := b.NamedLocal("a", i32t)
	p := b.NamedLocal("p", ir.RefType{Region: 1, Mut: ir.Mutable, Pointee: i32t})
	q := b.NamedLocal("q", ir.RefType{Region: 1, Mut: ir.Mutable, Pointee: i32t})
	b.Stmt(ir.StorageLive{Local: a}).
		Stmt(constAssign(ir.PlaceOf(a), "0")).
		Stmt(ir.StorageLive{Local: p}).
		Stmt(mutBorrow(ir.PlaceOf(p), ir.PlaceOf(a), 1)).
		Stmt(ir.StorageLive{Local: q}).
		Stmt(ir.Assign{Place: ir.PlaceOf(q), Rvalue: ir.UseRvalue{Operand: ir.Move{Place: ir.PlaceOf(p)}}}).
		Stmt(constAssign(ir.PlaceOf(q).Deref(), "1")).
		Stmt(ir.StorageDead{Local: q}).
		Stmt(ir.StorageDead{Local: p}).
		Stmt(ir.Assign{Place: ir.PlaceOf(ir.ReturnPlace), Rvalue: ir.UseRvalue{Operand: ir.Copy{Place: ir.PlaceOf(a)}}}).
		Stmt(ir.StorageDead{Local: a}).
		Term(ir.Return{})
	res := testRun(t, b.MustBuild(), nil)

	lr := statementAt(t, res, ir.Location{Block: 0, Statement: 5})
	loans := loansOf(lr.Borrows.After)
	if len(loans) != 1 {
		t.Fatalf("got %d loans, want 1: %v", len(loans), loans)
	}
	if !loans[0].Assigned.Eq(places.Current(ir.PlaceOf(q).Deref())) {
		t.Errorf("loan assigned to %v, want *_3", loans[0].Assigned)
	}
	if !loans[0].BlockedPlace.Place.Place.Eq(ir.PlaceOf(a)) {
		t.Errorf("loan blocks %v, want _1", loans[0].BlockedPlace)
	}
}

func TestCallRegionAbstraction(t *testing.T) {
	tRef := ir.RefType{Region: 1, Mut: ir.Mutable, Pointee: i32t}
	uRef := ir.RefType{Region: 2, Mut: ir.Mutable, Pointee: i32t}
	outRef := ir.RefType{Region: 1, Mut: ir.Mutable, Pointee: i32t}
	b := ir.NewBuilder("call_abstraction", i32t, tRef, uRef)
	z := b.NamedLocal("z", outRef)
	b.Stmt(ir.StorageLive{Local: z}).
		Term(ir.Call{
			Func:        ir.Constant{Type: ir.ScalarType{Name: "fn"}, Value: "f"},
			Args:        []ir.Operand{ir.Move{Place: ir.PlaceOf(1)}, ir.Move{Place: ir.PlaceOf(2)}},
			Destination: ir.PlaceOf(z),
			Target:      1,
			Sig: &ir.FuncSig{
				Inputs: []ir.Type{tRef, uRef},
				Output: outRef,
				Bounds: []ir.OutlivesBound{{Longer: 2, Shorter: 1}},
			},
		})
	b.Block(1)
	b.Stmt(constAssign(ir.PlaceOf(z).Deref(), "3")).
		Stmt(ir.StorageDead{Local: z}).
		Stmt(constAssign(ir.PlaceOf(ir.ReturnPlace), "0")).
		Term(ir.Return{})
	res := testRun(t, b.MustBuild(), []ir.OutlivesBound{{Longer: 2, Shorter: 1}})

	br, err := res.ForBlock(1)
	if err != nil {
		t.Fatal(err)
	}
	var abs *borrows.RegionAbstraction
	for _, e := range br.EntryBorrows.Graph.Edges() {
		if a, ok := e.Kind.(borrows.RegionAbstraction); ok {
			abs = &a
			break
		}
	}
	if abs == nil {
		t.Fatalf("no abstraction after the call: %v", br.EntryBorrows.Graph.Edges())
	}
	// 'b: 'a, so both lent arguments flow into the result
	if len(abs.Inputs) != 2 {
		t.Errorf("abstraction inputs = %v, want both arguments", abs.Inputs)
	}
	if len(abs.Outputs) != 1 || !abs.Outputs[0].Eq(places.Current(ir.PlaceOf(z))) {
		t.Errorf("abstraction outputs = %v, want _3", abs.Outputs)
	}
}

func TestStorageDeadReleasesLoan(t *testing.T) {
	b := ir.NewBuilder("storage_dead_release", i32t)
	x := b.NamedLocal("x", i32t)
	r := b.NamedLocal("r", ir.RefType{Region: 1, Mut: ir.Mutable, Pointee: i32t})
	b.Stmt(ir.StorageLive{Local: x}).
		Stmt(constAssign(ir.PlaceOf(x), "0")).
		Stmt(ir.StorageLive{Local: r}).
		Stmt(mutBorrow(ir.PlaceOf(r), ir.PlaceOf(x), 1)).
		Stmt(constAssign(ir.PlaceOf(r).Deref(), "1")).
		Stmt(ir.StorageDead{Local: r}).
		Stmt(ir.Assign{Place: ir.PlaceOf(ir.ReturnPlace), Rvalue: ir.UseRvalue{Operand: ir.Copy{Place: ir.PlaceOf(x)}}}).
		Stmt(ir.StorageDead{Local: x}).
		Term(ir.Return{})
	res := testRun(t, b.MustBuild(), nil)

	dead := statementAt(t, res, ir.Location{Block: 0, Statement: 5})
	var terminated bool
	for _, a := range dead.ExtraMiddle {
		rb, ok := a.Edge.Kind.(borrows.Reborrow)
		if ok && rb.Assigned.Eq(places.Current(ir.PlaceOf(r).Deref())) {
			terminated = true
		}
	}
	if !terminated {
		t.Errorf("no termination of the loan behind *_2 at StorageDead: %v", dead.ExtraMiddle)
	}
	if k := capOf(t, dead.SummaryAfter, ir.PlaceOf(x)); k != freepcs.Exclusive {
		t.Errorf("capability of _1 after the release = %v, want E", k)
	}
	loans := loansOf(dead.Borrows.After)
	if len(loans) != 1 || !loans[0].Assigned.IsOld() {
		t.Errorf("the surviving loan must be aged, got %v", loans)
	}
}

func TestConditionalBorrowPathConditions(t *testing.T) {
	b := ir.NewBuilder("conditional_borrow", i32t, i32t)
	first := b.NamedLocal("first", i32t)
	second := b.NamedLocal("second", i32t)
	y := b.NamedLocal("y", ir.RefType{Region: 1, Mut: ir.Mutable, Pointee: i32t})
	b.Stmt(ir.StorageLive{Local: first}).
		Stmt(constAssign(ir.PlaceOf(first), "0")).
		Stmt(ir.StorageLive{Local: second}).
		Stmt(constAssign(ir.PlaceOf(second), "1")).
		Stmt(ir.StorageLive{Local: y}).
		Term(ir.SwitchInt{
			Discr:     ir.Copy{Place: ir.PlaceOf(1)},
			Values:    []int64{0},
			Targets:   []ir.BlockIdx{1},
			Otherwise: 2,
		})
	b.Block(1)
	b.Stmt(mutBorrow(ir.PlaceOf(y), ir.PlaceOf(first), 1)).
		Term(ir.Goto{Target: 3})
	b.Block(2)
	b.Stmt(mutBorrow(ir.PlaceOf(y), ir.PlaceOf(second), 1)).
		Term(ir.Goto{Target: 3})
	b.Block(3)
	b.Stmt(constAssign(ir.PlaceOf(y).Deref(), "7")).
		Stmt(ir.StorageDead{Local: y}).
		Stmt(ir.Assign{Place: ir.PlaceOf(ir.ReturnPlace), Rvalue: ir.UseRvalue{Operand: ir.Copy{Place: ir.PlaceOf(first)}}}).
		Stmt(ir.StorageDead{Local: first}).
		Stmt(ir.StorageDead{Local: second}).
		Term(ir.Return{})
	res := testRun(t, b.MustBuild(), nil)

	br, err := res.ForBlock(3)
	if err != nil {
		t.Fatal(err)
	}
	var fromThen, fromElse *borrows.Edge
	for _, e := range br.EntryBorrows.Graph.Edges() {
		rb, ok := e.Kind.(borrows.Reborrow)
		if !ok {
			continue
		}
		e := e
		switch {
		case rb.BlockedPlace.Place.Place.Eq(ir.PlaceOf(first)):
			fromThen = &e
		case rb.BlockedPlace.Place.Place.Eq(ir.PlaceOf(second)):
			fromElse = &e
		}
	}
	if fromThen == nil || fromElse == nil {
		t.Fatalf("both branch loans must survive the join: %v", br.EntryBorrows.Graph.Edges())
	}
	if !fromThen.Conditions.ValidAt(3) || !fromElse.Conditions.ValidAt(3) {
		t.Errorf("both loans must be valid at the join block")
	}
	if fromThen.Conditions.ValidAt(2) {
		t.Errorf("the then-branch loan must not be valid on the else path")
	}
	if fromElse.Conditions.ValidAt(1) {
		t.Errorf("the else-branch loan must not be valid on the then path")
	}
}

func TestLoopReborrowConverges(t *testing.T) {
	b := ir.NewBuilder("loop_reborrow", i32t, i32t)
	x := b.NamedLocal("x", i32t)
	y := b.NamedLocal("y", ir.RefType{Region: 1, Mut: ir.Mutable, Pointee: i32t})
	b.Stmt(ir.StorageLive{Local: x}).
		Stmt(constAssign(ir.PlaceOf(x), "0")).
		Term(ir.Goto{Target: 1})
	b.Block(1)
	b.Term(ir.SwitchInt{
		Discr:     ir.Copy{Place: ir.PlaceOf(1)},
		Values:    []int64{0},
		Targets:   []ir.BlockIdx{3},
		Otherwise: 2,
	})
	b.Block(2)
	b.Stmt(ir.StorageLive{Local: y}).
		Stmt(mutBorrow(ir.PlaceOf(y), ir.PlaceOf(x), 1)).
		Stmt(constAssign(ir.PlaceOf(y).Deref(), "0")).
		Stmt(ir.StorageDead{Local: y}).
		Stmt(ir.Assign{Place: ir.PlaceOf(1), Rvalue: ir.BinaryOpRvalue{
			Op:    "Sub",
			Left:  ir.Copy{Place: ir.PlaceOf(1)},
			Right: ir.Constant{Type: i32t, Value: "1"},
		}}).
		Term(ir.Goto{Target: 1})
	b.Block(3)
	b.Stmt(ir.Assign{Place: ir.PlaceOf(ir.ReturnPlace), Rvalue: ir.UseRvalue{Operand: ir.Copy{Place: ir.PlaceOf(x)}}}).
		Stmt(ir.StorageDead{Local: x}).
		Term(ir.Return{})
	res := testRun(t, b.MustBuild(), nil)

	header, err := res.ForBlock(1)
	if err != nil {
		t.Fatal(err)
	}
	if header.Iterations < 2 {
		t.Errorf("the loop header must be revisited, got %d iterations", header.Iterations)
	}
	// the loan of the prior iteration reaches the header aged, with x
	// already released back to Exclusive
	if k := capOf(t, header.EntrySummary, ir.PlaceOf(x)); k != freepcs.Exclusive {
		t.Errorf("capability of _2 at the header = %v, want E", k)
	}
	loans := loansOf(header.EntryBorrows)
	if len(loans) != 1 || !loans[0].Assigned.IsOld() {
		t.Errorf("the header must carry one aged loan, got %v", loans)
	}
}

func TestBridgeOfIdenticalStatesIsEmpty(t *testing.T) {
	s := borrows.NewState()
	s.Graph.Insert(borrows.Edge{
		Conditions: borrows.NewPathConditions(0),
		Kind: borrows.Reborrow{
			BlockedPlace: places.BlockedLocal(places.Current(ir.PlaceOf(1))),
			Assigned:     places.Current(ir.PlaceOf(2).Deref()),
			Mut:          ir.Mutable,
			Region:       1,
			Reserve:      ir.Start,
		},
	})
	b, err := NewBridge(s, s.Clone(), ir.Start, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.IsEmpty() {
		t.Errorf("bridging a state against itself must change nothing: %+v", b)
	}
}

// TestSummariesAreAntichains checks that no recorded summary holds a
// capability on both a place and one of its strict extensions.
func TestSummariesAreAntichains(t *testing.T) {
	res := testRun(t, nestedReborrowBody(), []ir.OutlivesBound{{Longer: 1, Shorter: 2}})
	check := func(loc ir.Location, sum *freepcs.Summary) {
		for _, cl := range sum.Locals {
			if !cl.IsAllocated() {
				continue
			}
			ps := cl.Allocated.Places()
			for _, p := range ps {
				for _, q := range ps {
					if p.IsStrictPrefixOf(q) {
						t.Errorf("at %v: %v and %v both held", loc, p, q)
					}
				}
			}
		}
	}
	for _, br := range res.Blocks {
		if br == nil {
			continue
		}
		check(ir.Location{Block: br.Block}, br.EntrySummary)
		for _, lr := range br.Statements {
			check(lr.Loc, lr.SummaryStart)
			check(lr.Loc, lr.SummaryAfter)
		}
		check(br.Terminator.Loc, br.Terminator.SummaryAfter)
	}
}

func TestReturnWithLiveStorageFails(t *testing.T) {
	b := ir.NewBuilder("leaked_local", i32t)
	x := b.NamedLocal("x", i32t)
	b.Stmt(ir.StorageLive{Local: x}).
		Stmt(constAssign(ir.PlaceOf(x), "0")).
		Stmt(constAssign(ir.PlaceOf(ir.ReturnPlace), "0")).
		Term(ir.Return{})
	cfg := config.NewDefault()
	res := Run(Input{Body: b.MustBuild()}, cfg, config.NewLogGroup(cfg))
	if res.Ok() {
		t.Fatal("a local still holding storage at return must be reported")
	}
	k, ok := pcserr.KindOf(res.Errors[0])
	if !ok || k != pcserr.InvalidIR {
		t.Errorf("error = %v, want invalid IR", res.Errors[0])
	}
}

func TestInvalidationFactReleasesLoan(t *testing.T) {
	b := ir.NewBuilder("invalidated_loan", i32t)
	x := b.NamedLocal("x", i32t)
	r := b.NamedLocal("r", ir.RefType{Region: 1, Mut: ir.Mutable, Pointee: i32t})
	b.Stmt(ir.StorageLive{Local: x}).
		Stmt(constAssign(ir.PlaceOf(x), "0")).
		Stmt(ir.StorageLive{Local: r}).
		Stmt(mutBorrow(ir.PlaceOf(r), ir.PlaceOf(x), 1)).
		Stmt(ir.Nop{}).
		Stmt(ir.StorageDead{Local: r}).
		Stmt(ir.Assign{Place: ir.PlaceOf(ir.ReturnPlace), Rvalue: ir.UseRvalue{Operand: ir.Copy{Place: ir.PlaceOf(x)}}}).
		Stmt(ir.StorageDead{Local: x}).
		Term(ir.Return{})
	pi := facts.NewPoloniusInput()
	pi.AddIssued(ir.MidOf(ir.Location{Block: 0, Statement: 3}), 0)
	pi.AddInvalidated(ir.MidOf(ir.Location{Block: 0, Statement: 4}), 0)
	cfg := config.NewDefault()
	res := Run(Input{Body: b.MustBuild(), Facts: pi}, cfg, config.NewLogGroup(cfg))
	if !res.Ok() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}

	// the fact ends the loan at the nop, giving x back its Exclusive
	lr := statementAt(t, res, ir.Location{Block: 0, Statement: 4})
	if loans := loansOf(lr.Borrows.After); len(loans) != 0 {
		t.Errorf("the invalidated loan must be gone, got %v", loans)
	}
	if k := capOf(t, lr.SummaryAfter, ir.PlaceOf(x)); k != freepcs.Exclusive {
		t.Errorf("capability of _1 after the invalidation = %v, want E", k)
	}
}

func TestHistoryRecordedForDotOutput(t *testing.T) {
	cfg := config.NewDefault()
	cfg.VizDot = true
	res := Run(Input{Body: nestedReborrowBody()}, cfg, config.NewLogGroup(cfg))
	if !res.Ok() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	br, err := res.ForBlock(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(br.History) == 0 {
		t.Fatal("dot output must record every fixpoint visit")
	}
	if br.History[0].Iteration != 1 {
		t.Errorf("iterations are counted from 1, got %d", br.History[0].Iteration)
	}
	if want := len(br.Statements) + 1; len(br.History[0].Domains) != want {
		t.Errorf("a visit records %d domains, want one per statement plus the terminator (%d)",
			len(br.History[0].Domains), want)
	}

	cfg = config.NewDefault()
	res = Run(Input{Body: nestedReborrowBody()}, cfg, config.NewLogGroup(cfg))
	br, err = res.ForBlock(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(br.History) != 0 {
		t.Errorf("history must stay empty without dot output, got %d visits", len(br.History))
	}
}

// boxedListBody drains a linked list behind a mutable reference, moving
// the reference to the tail on every step:
//
//	enum List { Nil, Cons(i32, Box<List>) }
//	while let List::Cons(_, tl) = cur { cur = tl }
func boxedListBody() *ir.Body {
	list := ir.AdtType{Name: "List"}
	list.Variants = []ir.VariantDecl{
		{Name: "Nil"},
		{Name: "Cons", Fields: []ir.FieldDecl{
			{Name: "elem", Type: i32t},
			{Name: "tail", Type: ir.BoxType{Elem: ir.AdtType{Name: "List"}}},
		}},
	}
	b := ir.NewBuilder("drain_list", i32t, list)
	cur := b.NamedLocal("cur", ir.RefType{Region: 1, Mut: ir.Mutable, Pointee: list})
	disc := b.NamedLocal("disc", i32t)
	next := b.NamedLocal("next", ir.RefType{Region: 1, Mut: ir.Mutable, Pointee: list})
	b.Stmt(ir.StorageLive{Local: cur}).
		Stmt(mutBorrow(ir.PlaceOf(cur), ir.PlaceOf(1), 1)).
		Term(ir.Goto{Target: 1})
	b.Block(1)
	b.Stmt(ir.StorageLive{Local: disc}).
		Stmt(ir.Assign{Place: ir.PlaceOf(disc), Rvalue: ir.DiscriminantRvalue{Place: ir.PlaceOf(cur).Deref()}}).
		Term(ir.SwitchInt{
			Discr:     ir.Copy{Place: ir.PlaceOf(disc)},
			Values:    []int64{0},
			Targets:   []ir.BlockIdx{3},
			Otherwise: 2,
		})
	b.Block(2)
	b.Stmt(ir.StorageDead{Local: disc}).
		Stmt(ir.StorageLive{Local: next}).
		Stmt(mutBorrow(ir.PlaceOf(next), ir.PlaceOf(cur).Deref().Downcast(1).Field(1).Deref(), 1)).
		Stmt(ir.Assign{Place: ir.PlaceOf(cur), Rvalue: ir.UseRvalue{Operand: ir.Move{Place: ir.PlaceOf(next)}}}).
		Stmt(ir.StorageDead{Local: next}).
		Term(ir.Goto{Target: 1})
	b.Block(3)
	b.Stmt(ir.StorageDead{Local: disc}).
		Stmt(ir.StorageDead{Local: cur}).
		Stmt(constAssign(ir.PlaceOf(ir.ReturnPlace), "0")).
		Term(ir.Return{})
	return b.MustBuild()
}

func TestListTraversalLoop(t *testing.T) {
	res := testRun(t, boxedListBody(), nil)
	header, err := res.ForBlock(1)
	if err != nil {
		t.Fatal(err)
	}
	if header.Iterations < 2 {
		t.Errorf("the loop header must be revisited, got %d iterations", header.Iterations)
	}

	// the header joins the fresh borrow of the list with the aged tail
	// reborrow of the prior iteration, both living through the reference
	deref := ir.PlaceOf(2).Deref()
	tail := deref.Downcast(1).Field(1).Deref()
	loans := loansOf(header.EntryBorrows)
	if len(loans) != 2 {
		t.Fatalf("loop header carries %d loans, want 2: %v", len(loans), loans)
	}
	var sawList, sawTail bool
	for _, rb := range loans {
		if !rb.Assigned.Eq(places.Current(deref)) {
			t.Errorf("loan %v must live through %v", rb, deref)
		}
		bp := rb.BlockedPlace.Place
		switch {
		case bp.IsCurrent() && bp.Place.Eq(ir.PlaceOf(1)):
			sawList = true
		case bp.IsOld() && bp.Place.Eq(tail):
			sawTail = true
		}
	}
	if !sawList {
		t.Errorf("missing the loan of _1 in %v", loans)
	}
	if !sawTail {
		t.Errorf("missing the aged tail reborrow in %v", loans)
	}
	if k := capOf(t, header.EntrySummary, ir.PlaceOf(2)); k != freepcs.Exclusive {
		t.Errorf("capability of _2 at the header = %v, want E", k)
	}
	if k := capOf(t, header.EntrySummary, ir.PlaceOf(1)); k != freepcs.Write {
		t.Errorf("capability of _1 at the header = %v, want W", k)
	}

	// once the reference dies on the exit path the loans terminate and
	// the list recovers Exclusive
	dead := statementAt(t, res, ir.Location{Block: 3, Statement: 1})
	if len(dead.ExtraMiddle) == 0 {
		t.Error("the reference's death must terminate the loop loans")
	}
	ret := statementAt(t, res, ir.Location{Block: 3, Statement: 2})
	if k := capOf(t, ret.SummaryBefore, ir.PlaceOf(1)); k != freepcs.Exclusive {
		t.Errorf("capability of _1 after the loop = %v, want E", k)
	}
}

// assertDerefsExpanded checks that whenever the graph mentions a current
// blocked place projected through a reference deref, the expansion edge
// for the prefix is present in the same state.
func assertDerefsExpanded(t *testing.T, body *ir.Body, res *Result) {
	t.Helper()
	check := func(s *borrows.State, loc ir.Location, ph borrows.Phase) {
		for _, e := range s.Graph.Edges() {
			switch e.Kind.(type) {
			case borrows.Reborrow, borrows.DerefExpansion:
			default:
				continue
			}
			for _, bp := range e.Kind.Blocked() {
				if bp.Remote || bp.Place.IsOld() {
					continue
				}
				p := bp.Place.Place
				for i := range p.Projection {
					if _, ok := p.Projection[i].(ir.DerefElem); !ok {
						continue
					}
					prefix := ir.Place{Local: p.Local, Projection: p.Projection[:i]}
					pt, err := prefix.TypeIn(body)
					if err != nil {
						t.Fatalf("%v: %v", loc, err)
					}
					if _, ok := pt.(ir.RefType); !ok {
						continue
					}
					if !hasCurrentExpansion(s, prefix) {
						t.Errorf("at %v (%v): %v mentioned without an expansion of %v", loc, ph, p, prefix)
					}
				}
			}
		}
	}
	phases := []borrows.Phase{borrows.BeforeStart, borrows.BeforeAfter, borrows.Start, borrows.After}
	for _, br := range res.Blocks {
		if br == nil {
			continue
		}
		for _, lr := range br.Statements {
			for _, ph := range phases {
				check(lr.Borrows.At(ph), lr.Loc, ph)
			}
		}
		for _, ph := range phases {
			check(br.Terminator.Borrows.At(ph), br.Terminator.Loc, ph)
		}
	}
}

func hasCurrentExpansion(s *borrows.State, base ir.Place) bool {
	for _, e := range s.Graph.Edges() {
		if de, ok := e.Kind.(borrows.DerefExpansion); ok && de.Base.Eq(places.Current(base)) {
			return true
		}
	}
	return false
}

func TestDerefMentionsStayExpanded(t *testing.T) {
	res := testRun(t, nestedReborrowBody(), []ir.OutlivesBound{{Longer: 1, Shorter: 2}})
	assertDerefsExpanded(t, res.Body, res)

	res = testRun(t, boxedListBody(), nil)
	assertDerefsExpanded(t, res.Body, res)
}
