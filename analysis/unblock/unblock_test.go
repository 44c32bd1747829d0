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

package unblock

import (
	"testing"

	"github.com/awslabs/pcs-go-tools/analysis/borrows"
	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/pcserr"
	"github.com/awslabs/pcs-go-tools/analysis/places"
)

// loan builds a mutable reborrow of borrowed living behind the deref of ref.
func loan(borrowed, ref ir.Place) borrows.Edge {
	return borrows.Edge{
		Conditions: borrows.NewPathConditions(0),
		Kind: borrows.Reborrow{
			BlockedPlace: places.BlockedLocal(places.Current(borrowed)),
			Assigned:     places.Current(ref.Deref()),
			Mut:          ir.Mutable,
			Region:       1,
			Reserve:      ir.Start,
		},
	}
}

// chainState is x borrowed by y, *y reborrowed by z.
func chainState() (*borrows.State, borrows.Edge, borrows.Edge) {
	s := borrows.NewState()
	first := loan(ir.PlaceOf(1), ir.PlaceOf(2))
	second := loan(ir.PlaceOf(2).Deref(), ir.PlaceOf(3))
	s.Graph.Insert(first)
	s.Graph.Insert(second)
	return s, first, second
}

func TestUnblockPlaceWalksChain(t *testing.T) {
	s, _, _ := chainState()
	g := NewGraph(s, ir.Start)
	if err := g.UnblockPlace(places.BlockedLocal(places.Current(ir.PlaceOf(1)))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("freeing the root must terminate the whole chain, got %d edges", g.Len())
	}
}

func TestUnblockPlaceLeavesUnrelatedLoans(t *testing.T) {
	s, _, _ := chainState()
	other := loan(ir.PlaceOf(4), ir.PlaceOf(5))
	s.Graph.Insert(other)

	g := NewGraph(s, ir.Start)
	if err := g.UnblockPlace(places.BlockedLocal(places.Current(ir.PlaceOf(1)))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("unrelated loans must stay, got %d edges", g.Len())
	}
	for _, e := range g.Edges() {
		if e.Key() == other.Key() {
			t.Errorf("loan of _4 selected for termination")
		}
	}
}

func TestUnblockEdgeIncludesBlockers(t *testing.T) {
	s, first, second := chainState()
	g := NewGraph(s, ir.Start)
	if err := g.UnblockEdge(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("terminating the first loan requires the reborrow too, got %d edges", g.Len())
	}
	found := false
	for _, e := range g.Edges() {
		if e.Key() == second.Key() {
			found = true
		}
	}
	if !found {
		t.Errorf("reborrow of *_2 not selected")
	}
}

func TestActionsOrderLeafFirst(t *testing.T) {
	s, first, second := chainState()
	g := NewGraph(s, ir.Start)
	if err := g.UnblockPlace(places.BlockedLocal(places.Current(ir.PlaceOf(1)))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	actions, err := g.Actions()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(actions))
	}
	if actions[0].Edge.Key() != second.Key() {
		t.Errorf("the reborrow must terminate first, got %v", actions[0].Edge.Kind)
	}
	if actions[1].Edge.Key() != first.Key() {
		t.Errorf("the root loan must terminate last, got %v", actions[1].Edge.Kind)
	}
}

func TestActionsRejectsCycle(t *testing.T) {
	s := borrows.NewState()
	s.Graph.Insert(loan(ir.PlaceOf(1), ir.PlaceOf(2)))
	s.Graph.Insert(loan(ir.PlaceOf(2), ir.PlaceOf(1)))

	g := NewGraph(s, ir.Start)
	if err := g.UnblockPlace(places.BlockedLocal(places.Current(ir.PlaceOf(1)))); err != nil {
		t.Fatalf("unexpected error during selection: %v", err)
	}
	_, err := g.Actions()
	if err == nil {
		t.Fatal("mutually blocking loans must not be orderable")
	}
	if kind, ok := pcserr.KindOf(err); !ok || kind != pcserr.CyclicUnblockGraph {
		t.Errorf("error kind = %v, want CyclicUnblockGraph", err)
	}
}

// branchBody builds the cfg bb0 -> {bb1, bb2} -> bb3.
func branchBody(t *testing.T) *ir.Body {
	t.Helper()
	i32 := ir.ScalarType{Name: "i32"}
	b := ir.NewBuilder("branch", i32, i32)
	b.Term(ir.SwitchInt{
		Discr:     ir.Copy{Place: ir.PlaceOf(1)},
		Values:    []int64{0},
		Targets:   []ir.BlockIdx{1},
		Otherwise: 2,
	})
	b.Block(1)
	b.Term(ir.Goto{Target: 3})
	b.Block(2)
	b.Term(ir.Goto{Target: 3})
	b.Block(3)
	b.Term(ir.Return{})
	return b.MustBuild()
}

func TestFilterForPathDropsOtherBranch(t *testing.T) {
	body := branchBody(t)
	s := borrows.NewState()
	left := loan(ir.PlaceOf(2), ir.PlaceOf(3))
	left.Conditions.InsertEdge(0, 1)
	right := loan(ir.PlaceOf(4), ir.PlaceOf(5))
	right.Conditions.InsertEdge(0, 2)
	s.Graph.Insert(left)
	s.Graph.Insert(right)

	g := NewGraph(s, ir.Start)
	if err := g.UnblockEdge(left); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.UnblockEdge(right); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g.FilterForPath(body, 1)
	if g.Len() != 1 {
		t.Fatalf("only the taken branch's loan can be live, got %d edges", g.Len())
	}
	if g.Edges()[0].Key() != left.Key() {
		t.Errorf("the loan conditioned on the other branch survived: %v", g.Edges()[0].Kind)
	}

	// at the join both branches reach the block and nothing is dropped
	g = NewGraph(s, ir.Start)
	if err := g.UnblockEdge(left); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.UnblockEdge(right); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g.FilterForPath(body, 3)
	if g.Len() != 2 {
		t.Errorf("both loans can reach the join, got %d edges", g.Len())
	}
}

func TestFilterForPathKeepsLatestMutableReborrow(t *testing.T) {
	body := branchBody(t)
	s := borrows.NewState()
	early := loan(ir.PlaceOf(1), ir.PlaceOf(2))
	late := loan(ir.PlaceOf(1), ir.PlaceOf(3))
	kind := late.Kind.(borrows.Reborrow)
	kind.Reserve = ir.Location{Block: 0, Statement: 2}
	late.Kind = kind
	s.Graph.Insert(early)
	s.Graph.Insert(late)

	g := NewGraph(s, ir.Start)
	if err := g.UnblockPlace(places.BlockedLocal(places.Current(ir.PlaceOf(1)))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("both reborrows block _1, got %d edges", g.Len())
	}
	g.FilterForPath(body, 0)
	if g.Len() != 1 {
		t.Fatalf("only the latest mutable reborrow of _1 can be live, got %d edges", g.Len())
	}
	got := g.Edges()[0].Kind.(borrows.Reborrow)
	if got.Reserve != kind.Reserve {
		t.Errorf("the earlier reborrow survived: %v", got)
	}
}

func TestApplyRemovesInOrder(t *testing.T) {
	s, _, _ := chainState()
	g := NewGraph(s, ir.Start)
	if err := g.UnblockPlace(places.BlockedLocal(places.Current(ir.PlaceOf(1)))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	actions, err := g.Actions()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Apply(s, actions, ir.Start); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Graph.Len() != 0 {
		t.Errorf("all selected loans must be gone, %d left", s.Graph.Len())
	}
}

func TestApplyVerifiesLeafInvariant(t *testing.T) {
	s, first, second := chainState()
	// root first is the wrong order: the reborrow still blocks *_2
	actions := []Action{{Edge: first}, {Edge: second}}
	err := Apply(s, actions, ir.Start)
	if err == nil {
		t.Fatal("terminating the root before the reborrow must fail")
	}
	if kind, ok := pcserr.KindOf(err); !ok || kind != pcserr.CyclicUnblockGraph {
		t.Errorf("error kind = %v, want CyclicUnblockGraph", err)
	}
}
