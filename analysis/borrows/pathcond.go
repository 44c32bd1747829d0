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

// Package borrows tracks the reborrow graph of a body: conditioned edges
// relating lent places to the places that block them, aged place
// snapshots, and the per-local record of last modification.
package borrows

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/internal/funcutil"
)

// PathCondition is one control-flow edge a conditioned fact travelled
// along.
type PathCondition struct {
	From ir.BlockIdx
	To   ir.BlockIdx
}

func (p PathCondition) String() string {
	return fmt.Sprintf("%v->%v", p.From, p.To)
}

// PathConditions records where an edge is valid: either at the block it
// was created in, or along the set of control-flow edges it has crossed
// since.
type PathConditions struct {
	// atBlock is valid when paths is empty
	atBlock ir.BlockIdx
	paths   map[PathCondition]struct{}
}

// NewPathConditions returns conditions valid exactly at block b.
func NewPathConditions(b ir.BlockIdx) PathConditions {
	return PathConditions{atBlock: b}
}

// Clone deep-copies the conditions.
func (pc PathConditions) Clone() PathConditions {
	if pc.paths == nil {
		return pc
	}
	c := PathConditions{atBlock: pc.atBlock, paths: make(map[PathCondition]struct{}, len(pc.paths))}
	for p := range pc.paths {
		c.paths[p] = struct{}{}
	}
	return c
}

// InsertEdge records that the fact crossed the control-flow edge from->to.
func (pc *PathConditions) InsertEdge(from, to ir.BlockIdx) {
	if pc.paths == nil {
		pc.paths = make(map[PathCondition]struct{})
	}
	pc.paths[PathCondition{From: from, To: to}] = struct{}{}
}

// ValidAt reports whether the fact holds at block b: either it was created
// there and never crossed an edge, or some crossed edge ends at b.
func (pc PathConditions) ValidAt(b ir.BlockIdx) bool {
	if len(pc.paths) == 0 {
		return pc.atBlock == b
	}
	for p := range pc.paths {
		if p.To == b {
			return true
		}
	}
	return false
}

// Targets returns the blocks the crossed edges end at; for a fact that
// never crossed an edge, the block it was created in.
func (pc PathConditions) Targets() []ir.BlockIdx {
	if len(pc.paths) == 0 {
		return []ir.BlockIdx{pc.atBlock}
	}
	set := make(map[ir.BlockIdx]bool, len(pc.paths))
	for p := range pc.paths {
		set[p.To] = true
	}
	return funcutil.SetToOrderedSlice(set)
}

// Merge unions other's crossed edges into pc, returning whether pc grew.
// Both sides must describe the same underlying fact.
func (pc *PathConditions) Merge(other PathConditions) bool {
	changed := false
	for p := range other.paths {
		if pc.paths == nil {
			pc.paths = make(map[PathCondition]struct{})
		}
		if _, ok := pc.paths[p]; !ok {
			pc.paths[p] = struct{}{}
			changed = true
		}
	}
	return changed
}

// Key returns a canonical string identifying the conditions.
func (pc PathConditions) Key() string {
	if len(pc.paths) == 0 {
		return fmt.Sprintf("at(%v)", pc.atBlock)
	}
	edges := make([]string, 0, len(pc.paths))
	for p := range pc.paths {
		edges = append(edges, p.String())
	}
	sort.Strings(edges)
	return "paths(" + strings.Join(edges, ",") + ")"
}

func (pc PathConditions) String() string { return pc.Key() }
