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
	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/places"
)

// Latest records, per local, the location of the last write into it. A
// local never written since function entry maps to the entry location.
// Snapshots taken when aging a place are labelled with these locations.
type Latest struct {
	m map[ir.Local]places.SnapshotLocation
}

// NewLatest returns an empty record.
func NewLatest() Latest {
	return Latest{m: make(map[ir.Local]places.SnapshotLocation)}
}

// Clone deep-copies the record.
func (l Latest) Clone() Latest {
	c := Latest{m: make(map[ir.Local]places.SnapshotLocation, len(l.m))}
	for k, v := range l.m {
		c.m[k] = v
	}
	return c
}

// Get returns the last-write snapshot location of the local of p,
// defaulting to the function entry.
func (l Latest) Get(p ir.Place) places.SnapshotLocation {
	if at, ok := l.m[p.Local]; ok {
		return at
	}
	return places.Start
}

// Record notes a write into p at loc.
func (l Latest) Record(p ir.Place, loc ir.Location) {
	l.m[p.Local] = places.SnapshotAt(loc)
}

// Merge joins other into l for the join forming block b. Locals the two
// sides disagree on are joined by the dominator rule: the side dominating
// the other wins, and when neither dominates, the entry of the deepest
// common dominator block. Without dominators the join snapshot of b is
// used. Returns whether l changed.
func (l Latest) Merge(other Latest, b ir.BlockIdx, dom *ir.Dominators) bool {
	changed := false
	for local, at := range other.m {
		mine, ok := l.m[local]
		if !ok {
			l.m[local] = at
			changed = true
			continue
		}
		if mine != at {
			joined := joinLocations(mine, at, b, dom)
			if mine != joined {
				l.m[local] = joined
				changed = true
			}
		}
	}
	return changed
}

func joinLocations(a, b places.SnapshotLocation, blk ir.BlockIdx, dom *ir.Dominators) places.SnapshotLocation {
	if dom == nil {
		return places.SnapshotAtJoin(blk)
	}
	if dominatesSnapshot(dom, a, b) {
		return a
	}
	if dominatesSnapshot(dom, b, a) {
		return b
	}
	common := dom.CommonDominator(a.Loc.Block, b.Loc.Block)
	return places.SnapshotAt(ir.Location{Block: common})
}

// dominatesSnapshot compares snapshot locations by dominance. A join
// snapshot sits at the entry of its block, before every statement.
func dominatesSnapshot(dom *ir.Dominators, a, b places.SnapshotLocation) bool {
	if a.Loc.Block == b.Loc.Block {
		if a.AtJoin {
			return true
		}
		if b.AtJoin {
			return false
		}
		return a.Loc.Statement <= b.Loc.Statement
	}
	return dom.Dominates(a.Loc.Block, b.Loc.Block)
}

// Eq reports equality of the records.
func (l Latest) Eq(other Latest) bool {
	if len(l.m) != len(other.m) {
		return false
	}
	for k, v := range l.m {
		if ov, ok := other.m[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
