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

package freepcs

import (
	"fmt"

	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/pcserr"
)

// Engine applies instruction triples to summaries and joins summaries at
// control-flow merges.
type Engine struct {
	body *ir.Body
}

// NewEngine returns an engine over body.
func NewEngine(body *ir.Body) *Engine {
	return &Engine{body: body}
}

// Prepare repacks s so the preconditions of t hold, returning the repack
// operations performed.
func (e *Engine) Prepare(s *Summary, t Triple, loc ir.Location) ([]RepackOp, error) {
	rep := NewRepacker(e.body)
	for _, pre := range t.Pre {
		switch pre.Kind {
		case CondCapability:
			cl := s.Locals[pre.Place.Local]
			if !cl.IsAllocated() {
				return nil, pcserr.At(pcserr.CapabilityUnderflow, loc,
					fmt.Errorf("need %v on %v but %v has no storage", pre.Cap, pre.Place, pre.Place.Local))
			}
			if err := rep.Obtain(cl.Allocated, pre.Place, pre.Cap); err != nil {
				return nil, pcserr.At(pcserr.CapabilityUnderflow, loc, err)
			}
		case CondUnalloc:
			if s.Locals[pre.Local].IsAllocated() {
				return nil, pcserr.At(pcserr.InvalidIR, loc,
					fmt.Errorf("%v already has storage", pre.Local))
			}
		case CondAnyAlloc:
			// any state accepted
		}
	}
	return rep.TakeOps(), nil
}

// Apply installs the postconditions of t into s, returning any repacks
// performed along the way. Prepare must have run on s for the same triple.
func (e *Engine) Apply(s *Summary, t Triple, loc ir.Location) ([]RepackOp, error) {
	rep := NewRepacker(e.body)
	for _, post := range t.Post {
		switch post.Kind {
		case CondCapability:
			cl := s.Locals[post.Place.Local]
			if !cl.IsAllocated() {
				return nil, pcserr.At(pcserr.InvalidIR, loc,
					fmt.Errorf("postcondition on unallocated %v", post.Place.Local))
			}
			// the prepared state holds the place exactly; overwrite its kind
			if !cl.Allocated.Contains(post.Place) {
				if err := rep.ObtainShape(cl.Allocated, post.Place); err != nil {
					return nil, pcserr.At(pcserr.CapabilityUnderflow, loc, err)
				}
			}
			cl.Allocated.set(post.Place, post.Cap)
		case CondAllocates:
			s.Locals[post.Local] = CapabilityLocal{Allocated: NewProjections(post.Local, Write)}
		case CondUnalloc:
			s.Locals[post.Local] = CapabilityLocal{}
		}
	}
	return rep.TakeOps(), nil
}

// Join merges other into s, returning whether s changed and the repack
// operations applied to the other side to reach the merged shape. Locals
// allocated on only one path end up deallocated, recorded as a Dealloc
// op so the demotion is visible downstream.
func (e *Engine) Join(s, other *Summary) (bool, []RepackOp, error) {
	changed := false
	rep := NewRepacker(e.body)
	for i := range s.Locals {
		mine, theirs := s.Locals[i], other.Locals[i]
		switch {
		case !mine.IsAllocated() && !theirs.IsAllocated():
			// agree
		case mine.IsAllocated() && !theirs.IsAllocated():
			s.Locals[i] = CapabilityLocal{}
			rep.Dealloc(ir.Local(i))
			changed = true
		case !mine.IsAllocated():
			// the other side loses its storage at the join
			rep.Dealloc(ir.Local(i))
		default:
			c, err := e.joinProjections(mine.Allocated, theirs.Allocated.Clone(), rep)
			if err != nil {
				return false, nil, err
			}
			changed = changed || c
		}
	}
	return changed, rep.TakeOps(), nil
}

// joinProjections repacks theirs to mine's packing, then meets the
// capabilities place by place.
func (e *Engine) joinProjections(mine, theirs *Projections, rep *Repacker) (bool, error) {
	// first reshape both sides to a common antichain: for every place of
	// mine, collapse or expand theirs to cover it
	for _, p := range mine.Places() {
		related, _, ok := theirs.Related(p)
		if !ok {
			continue
		}
		switch {
		case related.Eq(p):
			// shapes agree here
		case related.IsStrictPrefixOf(p):
			if err := rep.ObtainShape(theirs, p); err != nil {
				return false, err
			}
		default:
			if err := rep.Collapse(theirs, p); err != nil {
				return false, err
			}
		}
	}
	// places where theirs is now coarser than mine force mine to collapse
	changed := false
	for _, p := range theirs.Places() {
		related, _, ok := mine.Related(p)
		if !ok {
			continue
		}
		if p.IsStrictPrefixOf(related) {
			my := NewRepacker(e.body)
			if err := my.Collapse(mine, p); err != nil {
				return false, err
			}
			changed = true
		}
	}
	// meet capabilities on the now-common domain
	for _, p := range mine.Places() {
		myKind, _ := mine.Get(p)
		theirKind, ok := theirs.Get(p)
		if !ok {
			continue
		}
		met, ok := myKind.Glb(theirKind)
		if !ok {
			met = Write
		}
		if met != myKind {
			mine.set(p, met)
			changed = true
		}
	}
	return changed, nil
}
