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

import "testing"

// diamond builds the cfg bb0 -> {bb1, bb2} -> bb3, with a loop back edge
// bb3 -> bb1 when loop is set.
func diamond(t *testing.T, loop bool) *Body {
	t.Helper()
	i32 := ScalarType{Name: "i32"}
	b := NewBuilder("diamond", i32, i32)
	b.Term(SwitchInt{
		Discr:     Copy{Place: PlaceOf(1)},
		Values:    []int64{0},
		Targets:   []BlockIdx{1},
		Otherwise: 2,
	})
	b.Block(1)
	b.Term(Goto{Target: 3})
	b.Block(2)
	b.Term(Goto{Target: 3})
	b.Block(3)
	if loop {
		b.Term(SwitchInt{
			Discr:     Copy{Place: PlaceOf(1)},
			Values:    []int64{0},
			Targets:   []BlockIdx{1},
			Otherwise: 4,
		})
		b.Block(4)
		b.Term(Return{})
	} else {
		b.Term(Return{})
	}
	return b.MustBuild()
}

func TestReversePostOrder(t *testing.T) {
	body := diamond(t, false)
	order := ReversePostOrder(body)
	if len(order) != 4 {
		t.Fatalf("expected 4 blocks in order, got %v", order)
	}
	pos := make(map[BlockIdx]int)
	for i, b := range order {
		pos[b] = i
	}
	if pos[0] != 0 {
		t.Errorf("entry block must come first, got %v", order)
	}
	if pos[3] != 3 {
		t.Errorf("join block must come last, got %v", order)
	}
}

func TestReversePostOrderUnreachable(t *testing.T) {
	i32 := ScalarType{Name: "i32"}
	b := NewBuilder("unreachable", i32)
	b.Term(Return{})
	b.Block(1)
	b.Term(Unreachable{})
	body := b.MustBuild()

	order := ReversePostOrder(body)
	if len(order) != 2 || order[0] != 0 || order[1] != 1 {
		t.Errorf("unreachable blocks should be appended, got %v", order)
	}
}

func TestHasPathTo(t *testing.T) {
	body := diamond(t, true)
	cases := []struct {
		a, b BlockIdx
		want bool
	}{
		{0, 3, true},
		{1, 2, false},
		{3, 1, true}, // back edge
		{4, 0, false},
		{2, 2, true},
	}
	for _, c := range cases {
		if got := HasPathTo(body, c.a, c.b); got != c.want {
			t.Errorf("HasPathTo(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestDominators(t *testing.T) {
	body := diamond(t, true)
	dom := ComputeDominators(body)

	cases := []struct {
		a, b BlockIdx
		want bool
	}{
		{0, 1, true},
		{0, 4, true},
		{1, 3, false}, // bb3 reachable through bb2 too
		{2, 3, false},
		{3, 4, true},
		{3, 3, true},
		{1, 0, false},
	}
	for _, c := range cases {
		if got := dom.Dominates(c.a, c.b); got != c.want {
			t.Errorf("Dominates(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}

	early := Location{Block: 0, Statement: 0}
	late := Location{Block: 4, Statement: 0}
	if !dom.DominatesLoc(early, late) {
		t.Errorf("entry location should dominate exit location")
	}
	if dom.DominatesLoc(Location{Block: 3, Statement: 1}, Location{Block: 3, Statement: 0}) {
		t.Errorf("later statement should not dominate earlier one in the same block")
	}
}

func TestCommonDominator(t *testing.T) {
	body := diamond(t, true)
	dom := ComputeDominators(body)

	cases := []struct {
		a, b, want BlockIdx
	}{
		{1, 2, 0}, // sibling branches meet at the entry
		{1, 3, 0},
		{3, 4, 3}, // a dominator of the other wins
		{0, 4, 0},
		{2, 2, 2},
	}
	for _, c := range cases {
		if got := dom.CommonDominator(c.a, c.b); got != c.want {
			t.Errorf("CommonDominator(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestFinalizeErrors(t *testing.T) {
	body := &Body{
		Name:   "broken",
		Locals: []LocalDecl{{Type: ScalarType{Name: "i32"}, AlwaysLive: true}},
		Blocks: []*BasicBlock{{Index: 0, Terminator: Goto{Target: 7}}},
	}
	if err := body.Finalize(); err == nil {
		t.Errorf("expected an error for an out-of-range successor")
	}

	body = &Body{
		Name:   "noterm",
		Locals: []LocalDecl{{Type: ScalarType{Name: "i32"}, AlwaysLive: true}},
		Blocks: []*BasicBlock{{Index: 0}},
	}
	if err := body.Finalize(); err == nil {
		t.Errorf("expected an error for a missing terminator")
	}
}

func TestBuilderRejectsDoubleTerminator(t *testing.T) {
	b := NewBuilder("bad", ScalarType{Name: "i32"})
	b.Term(Return{})
	b.Term(Return{})
	if _, err := b.Build(); err == nil {
		t.Errorf("expected an error for a second terminator")
	}
}
