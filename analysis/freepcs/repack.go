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
	"github.com/awslabs/pcs-go-tools/analysis/places"
)

// RepackKind discriminates repack operations.
type RepackKind int

const (
	// RepackWeaken lowers the capability on a place
	RepackWeaken RepackKind = iota

	// RepackExpand unpacks a place into its children
	RepackExpand

	// RepackCollapse packs children back into their parent
	RepackCollapse

	// RepackDealloc drops the storage of a local allocated on only one
	// side of a join
	RepackDealloc
)

// RepackOp is one reshaping step of a capability summary. Expand and
// Collapse carry the base place and the guide child the operation moves
// toward or from; Weaken carries the place and both capability kinds.
type RepackOp struct {
	Kind  RepackKind
	Place ir.Place
	// Guide is the child place on the expansion path, for Expand/Collapse
	Guide ir.Place
	// From and To are the capabilities before and after, for Weaken; for
	// Expand/Collapse, From is the capability transferred
	From CapabilityKind
	To   CapabilityKind
}

func (op RepackOp) String() string {
	switch op.Kind {
	case RepackWeaken:
		return fmt.Sprintf("weaken(%v, %v -> %v)", op.Place, op.From, op.To)
	case RepackExpand:
		return fmt.Sprintf("expand(%v -> %v, %v)", op.Place, op.Guide, op.From)
	case RepackCollapse:
		return fmt.Sprintf("collapse(%v <- %v, %v)", op.Place, op.Guide, op.From)
	case RepackDealloc:
		return fmt.Sprintf("dealloc(%v)", op.Place)
	}
	return fmt.Sprintf("RepackOp(%d)", int(op.Kind))
}

// Repacker reshapes the capability set of a single local, recording the
// operations it performs.
type Repacker struct {
	body *ir.Body
	ops  []RepackOp
}

// NewRepacker returns a repacker over body.
func NewRepacker(body *ir.Body) *Repacker {
	return &Repacker{body: body}
}

// Ops returns the operations recorded so far.
func (r *Repacker) Ops() []RepackOp { return r.ops }

// TakeOps returns the recorded operations and resets the log.
func (r *Repacker) TakeOps() []RepackOp {
	ops := r.ops
	r.ops = nil
	return ops
}

// Dealloc records the storage drop of a local demoted at a join.
func (r *Repacker) Dealloc(l ir.Local) {
	r.ops = append(r.ops, RepackOp{Kind: RepackDealloc, Place: ir.PlaceOf(l)})
}

// Expand unpacks from one level toward target, transferring from's
// capability to every child. Dereferencing a shallowly initialized box
// yields only Write on the contents.
func (r *Repacker) Expand(p *Projections, from, target ir.Place) error {
	kind, ok := p.Get(from)
	if !ok {
		return fmt.Errorf("expand: no capability on %v", from)
	}
	exp, err := places.ExpandOneLevel(from, target, r.body)
	if err != nil {
		return err
	}
	childKind := kind
	if kind == ShallowExclusive {
		if _, isDeref := exp.Guide.LastElem().(ir.DerefElem); isDeref {
			childKind = Write
		}
	}
	p.remove(from)
	for _, child := range exp.Children {
		p.set(child, childKind)
	}
	r.ops = append(r.ops, RepackOp{Kind: RepackExpand, Place: from, Guide: exp.Guide, From: kind})
	return nil
}

// Collapse packs every capability under to back into to. The resulting
// capability is the weakest among the collapsed children.
func (r *Repacker) Collapse(p *Projections, to ir.Place) error {
	kind := Exclusive
	found := false
	for _, place := range p.Places() {
		if !to.IsPrefixOf(place) {
			continue
		}
		found = true
		k, _ := p.Get(place)
		if g, ok := kind.Glb(k); ok {
			kind = g
		} else {
			kind = Write
		}
		p.remove(place)
	}
	if !found {
		return fmt.Errorf("collapse: no capability under %v", to)
	}
	p.set(to, kind)
	r.ops = append(r.ops, RepackOp{Kind: RepackCollapse, Place: to, Guide: to, From: kind})
	return nil
}

// Weaken lowers the capability on place to kind.
func (r *Repacker) Weaken(p *Projections, place ir.Place, to CapabilityKind) error {
	kind, ok := p.Get(place)
	if !ok {
		return fmt.Errorf("weaken: no capability on %v", place)
	}
	if !kind.IsAtLeast(to) {
		return fmt.Errorf("weaken: %v on %v does not cover %v", kind, place, to)
	}
	if kind == to {
		return nil
	}
	p.set(place, to)
	r.ops = append(r.ops, RepackOp{Kind: RepackWeaken, Place: place, From: kind, To: to})
	return nil
}

// Obtain repacks p so that place is exactly in the domain with capability
// at least need. It expands prefixes and collapses extensions as required.
func (r *Repacker) Obtain(p *Projections, place ir.Place, need CapabilityKind) error {
	if err := r.ObtainShape(p, place); err != nil {
		return err
	}
	kind, _ := p.Get(place)
	if !kind.IsAtLeast(need) {
		return fmt.Errorf("obtain: %v on %v does not cover %v", kind, place, need)
	}
	return nil
}

// ObtainShape repacks p so that place is exactly in the domain, whatever
// capability ends up on it.
func (r *Repacker) ObtainShape(p *Projections, place ir.Place) error {
	for {
		related, _, ok := p.Related(place)
		if !ok {
			return fmt.Errorf("obtain: no capability related to %v", place)
		}
		switch {
		case related.Eq(place):
			return nil
		case related.IsStrictPrefixOf(place):
			if err := r.Expand(p, related, place); err != nil {
				return err
			}
		default:
			if err := r.Collapse(p, place); err != nil {
				return err
			}
		}
	}
}
