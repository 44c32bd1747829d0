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

// Package facts holds the borrow-checker facts the capability analysis
// consumes: the set of loans created by a body with their reserve
// locations, the region outlives relation, and the liveness of loans at
// each program point.
package facts

import (
	"fmt"

	"golang.org/x/tools/container/intsets"

	"github.com/awslabs/pcs-go-tools/analysis/ir"
)

// BorrowIdx identifies one loan of a body.
type BorrowIdx int

func (b BorrowIdx) String() string {
	return fmt.Sprintf("bw%d", int(b))
}

// BorrowData describes one loan.
type BorrowData struct {
	Index BorrowIdx
	// Region the loan lives for
	Region ir.Region
	// Borrowed is the place the loan borrows
	Borrowed ir.Place
	// Assigned is the place the reference was stored into
	Assigned ir.Place
	Mut      ir.Mutability
	// Reserve is the location of the Ref rvalue that created the loan
	Reserve ir.Location
}

func (b BorrowData) String() string {
	return fmt.Sprintf("%v: &%v %v %v at %v", b.Index, b.Region, b.Mut, b.Borrowed, b.Reserve)
}

// BorrowSet indexes every loan of a body.
type BorrowSet struct {
	borrows   []BorrowData
	byReserve map[ir.Location]BorrowIdx
	byRegion  map[ir.Region]*intsets.Sparse
}

// CollectBorrows scans body and builds its borrow set. Every Ref rvalue
// creates exactly one loan.
func CollectBorrows(body *ir.Body) *BorrowSet {
	bs := &BorrowSet{
		byReserve: make(map[ir.Location]BorrowIdx),
		byRegion:  make(map[ir.Region]*intsets.Sparse),
	}
	for _, block := range body.Blocks {
		for i, stmt := range block.Statements {
			assign, ok := stmt.(ir.Assign)
			if !ok {
				continue
			}
			ref, ok := assign.Rvalue.(ir.RefRvalue)
			if !ok {
				continue
			}
			loc := ir.Location{Block: block.Index, Statement: i}
			idx := BorrowIdx(len(bs.borrows))
			bs.borrows = append(bs.borrows, BorrowData{
				Index:    idx,
				Region:   ref.Region,
				Borrowed: ref.Place,
				Assigned: assign.Place,
				Mut:      ref.Mut,
				Reserve:  loc,
			})
			bs.byReserve[loc] = idx
			set := bs.byRegion[ref.Region]
			if set == nil {
				set = new(intsets.Sparse)
				bs.byRegion[ref.Region] = set
			}
			set.Insert(int(idx))
		}
	}
	return bs
}

// Len returns the number of loans.
func (bs *BorrowSet) Len() int { return len(bs.borrows) }

// Get returns the loan with index idx.
func (bs *BorrowSet) Get(idx BorrowIdx) BorrowData {
	return bs.borrows[idx]
}

// AtReserve returns the loan created at loc, if any.
func (bs *BorrowSet) AtReserve(loc ir.Location) (BorrowData, bool) {
	idx, ok := bs.byReserve[loc]
	if !ok {
		return BorrowData{}, false
	}
	return bs.borrows[idx], true
}

// InRegion returns the loans whose region is r, in index order.
func (bs *BorrowSet) InRegion(r ir.Region) []BorrowData {
	set := bs.byRegion[r]
	if set == nil {
		return nil
	}
	var out []BorrowData
	for _, i := range set.AppendTo(nil) {
		out = append(out, bs.borrows[i])
	}
	return out
}

// All returns every loan in index order.
func (bs *BorrowSet) All() []BorrowData {
	out := make([]BorrowData, len(bs.borrows))
	copy(out, bs.borrows)
	return out
}
