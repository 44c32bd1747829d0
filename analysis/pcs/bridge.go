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

// Package pcs couples the owned-capability summary with the reborrow
// graph into one analysis: a fixpoint over the body's control-flow graph
// producing, per location, the capability states, the repacks between
// them, and the bridges describing how borrow state changes from one
// point to the next.
package pcs

import (
	"github.com/awslabs/pcs-go-tools/analysis/borrows"
	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/unblock"
)

// Bridge describes how the reborrow graph changes between two adjacent
// states: the loans and expansions that appear, and the ordered
// terminations releasing edges that disappear.
type Bridge struct {
	AddedReborrows []borrows.Reborrow
	Expands        []borrows.DerefExpansion
	UnblockActions []unblock.Action
}

// IsEmpty reports whether the bridge changes nothing.
func (b *Bridge) IsEmpty() bool {
	return len(b.AddedReborrows) == 0 && len(b.Expands) == 0 && len(b.UnblockActions) == 0
}

// NewBridge diffs from against to at loc. Removed edges become an ordered
// unblock plan, filtered to the edges that can be live on a path through
// loc's block when body is given; added edges are classified by kind.
func NewBridge(from, to *borrows.State, loc ir.Location, body *ir.Body) (*Bridge, error) {
	b := &Bridge{}

	ubg := unblock.NewGraph(from, loc)
	for _, e := range from.Graph.Edges() {
		if to.Graph.Contains(e.Kind) {
			continue
		}
		if err := ubg.UnblockEdge(e); err != nil {
			return nil, err
		}
	}
	if body != nil {
		ubg.FilterForPath(body, loc.Block)
	}
	if ubg.Len() > 0 {
		actions, err := ubg.Actions()
		if err != nil {
			return nil, err
		}
		b.UnblockActions = actions
	}

	for _, e := range to.Graph.Edges() {
		if from.Graph.Contains(e.Kind) {
			continue
		}
		switch k := e.Kind.(type) {
		case borrows.Reborrow:
			b.AddedReborrows = append(b.AddedReborrows, k)
		case borrows.DerefExpansion:
			b.Expands = append(b.Expands, k)
		}
	}
	return b, nil
}
