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

package borrows

import (
	"fmt"

	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/pcserr"
	"github.com/awslabs/pcs-go-tools/analysis/places"
)

// State is the borrow tracker's knowledge at one program point: the
// reborrow graph plus the last-write record used to label snapshots.
type State struct {
	Graph  *Graph
	Latest Latest
}

// NewState returns the empty state at function entry.
func NewState() *State {
	return &State{Graph: NewGraph(), Latest: NewLatest()}
}

// InitialState returns the entry state of body: every reference-typed
// argument carries a loan of remote memory.
func InitialState(body *ir.Body) *State {
	s := NewState()
	for _, arg := range body.Args() {
		t := body.LocalType(arg)
		ref, ok := t.(ir.RefType)
		if !ok {
			continue
		}
		s.Graph.Insert(Edge{
			Conditions: NewPathConditions(ir.StartBlock),
			Kind: Reborrow{
				BlockedPlace: places.BlockedRemote(arg),
				Assigned:     places.Current(ir.PlaceOf(arg).Deref()),
				Mut:          ref.Mut,
				Region:       ref.Region,
				Reserve:      ir.Start,
			},
		})
	}
	return s
}

// Clone deep-copies the state.
func (s *State) Clone() *State {
	return &State{Graph: s.Graph.Clone(), Latest: s.Latest.Clone()}
}

// Eq reports state equality.
func (s *State) Eq(o *State) bool {
	return s.Graph.Eq(o.Graph) && s.Latest.Eq(o.Latest)
}

// MergeFrom joins the state of predecessor block from into s, which is the
// entry state of block to. Edges arriving from the predecessor gain the
// crossed control-flow edge as a path condition; last-write records are
// joined by the dominator rule when dom is given. Returns whether s
// changed.
func (s *State) MergeFrom(other *State, from, to ir.BlockIdx, dom *ir.Dominators) bool {
	changed := false
	for _, e := range other.Graph.Edges() {
		cond := e.Conditions.Clone()
		cond.InsertEdge(from, to)
		if s.Graph.Insert(Edge{Conditions: cond, Kind: e.Kind}) {
			changed = true
		}
	}
	if s.Latest.Merge(other.Latest, to, dom) {
		changed = true
	}
	return changed
}

// CheckSnapshots verifies that every snapshot referenced by the graph is
// covered by the last-write record: the recorded write location of a
// snapshotted place must dominate or equal the location the snapshot was
// taken at.
func (s *State) CheckSnapshots(dom *ir.Dominators, loc ir.Location) error {
	for _, e := range s.Graph.Edges() {
		for _, bp := range e.Kind.Blocked() {
			if err := s.checkSnapshot(bp.Place, dom, loc); err != nil {
				return err
			}
		}
		for _, mp := range e.Kind.Blocking() {
			if err := s.checkSnapshot(mp, dom, loc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *State) checkSnapshot(m places.MaybeOldPlace, dom *ir.Dominators, loc ir.Location) error {
	if m.IsCurrent() {
		return nil
	}
	latest := s.Latest.Get(m.Place)
	if latest == *m.At || dominatesSnapshot(dom, latest, *m.At) {
		return nil
	}
	return pcserr.At(pcserr.InvalidIR, loc,
		fmt.Errorf("snapshot %v of %v not covered by last write %v", *m.At, m.Place, latest))
}

// MakePlaceOld ages place in the graph.
func (s *State) MakePlaceOld(place ir.Place) {
	s.Graph.MakePlaceOld(place, s.Latest)
}

// RemoveEdge removes an edge payload from the graph.
func (s *State) RemoveEdge(kind EdgeKind) bool {
	return s.Graph.Remove(kind)
}
