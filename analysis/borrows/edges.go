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
	"strings"

	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/places"
)

// EdgeKind is the payload of one reborrow-graph edge. Every kind relates
// the places it blocks (which cannot be used while the edge lives) to the
// places that block them (whose termination releases the blocked side).
type EdgeKind interface {
	isEdgeKind()
	// Key canonically identifies the edge payload
	Key() string
	// Blocked returns the places the edge blocks
	Blocked() []places.BlockedPlace
	// Blocking returns the places holding the blocked ones hostage
	Blocking() []places.MaybeOldPlace
	String() string
}

// Reborrow records a loan: Blocked is lent out and unavailable until the
// reference whose target is Assigned is terminated.
type Reborrow struct {
	BlockedPlace places.BlockedPlace
	Assigned     places.MaybeOldPlace
	Mut          ir.Mutability
	Region       ir.Region
	// Reserve is where the loan was created
	Reserve ir.Location
}

func (Reborrow) isEdgeKind() {}

func (r Reborrow) Key() string {
	return fmt.Sprintf("reborrow(%s,%s,%v,%v,%v)",
		r.BlockedPlace.Key(), r.Assigned.Key(), r.Mut, r.Region, r.Reserve)
}

func (r Reborrow) Blocked() []places.BlockedPlace {
	return []places.BlockedPlace{r.BlockedPlace}
}

func (r Reborrow) Blocking() []places.MaybeOldPlace {
	return []places.MaybeOldPlace{r.Assigned}
}

func (r Reborrow) String() string {
	kind := "shared"
	if r.Mut == ir.Mutable {
		kind = "mut"
	}
	return fmt.Sprintf("%v -%s-> %v at %v", r.BlockedPlace, kind, r.Assigned, r.Reserve)
}

// DerefExpansion records that a place behind a pointer has been unpacked
// into child projections: the base blocks nothing by itself but cannot be
// repacked while the children are in use.
type DerefExpansion struct {
	Base places.MaybeOldPlace
	// Owned marks expansions within the owned fragment (through boxes)
	Owned bool
	// Elems are the projection steps the base was expanded by; owned
	// expansions always expand by a single deref
	Elems []ir.ProjectionElem
	Loc   ir.Location
}

func (DerefExpansion) isEdgeKind() {}

// Expansion returns the child places the base was unpacked into.
func (d DerefExpansion) Expansion() []places.MaybeOldPlace {
	if d.Owned || len(d.Elems) == 0 {
		return []places.MaybeOldPlace{d.Base.Deref()}
	}
	out := make([]places.MaybeOldPlace, 0, len(d.Elems))
	for _, e := range d.Elems {
		out = append(out, d.Base.Project(e))
	}
	return out
}

func (d DerefExpansion) Key() string {
	var elems []string
	for _, c := range d.Expansion() {
		elems = append(elems, c.Key())
	}
	return fmt.Sprintf("expansion(%s,[%s],%v,%v)", d.Base.Key(), strings.Join(elems, ","), d.Owned, d.Loc)
}

func (d DerefExpansion) Blocked() []places.BlockedPlace {
	return []places.BlockedPlace{places.BlockedLocal(d.Base)}
}

func (d DerefExpansion) Blocking() []places.MaybeOldPlace {
	return d.Expansion()
}

func (d DerefExpansion) String() string {
	var elems []string
	for _, c := range d.Expansion() {
		elems = append(elems, c.String())
	}
	return fmt.Sprintf("%v expanded to {%s} at %v", d.Base, strings.Join(elems, ", "), d.Loc)
}

// RegionAbstraction summarizes a call: the loans flowing into the callee
// stay blocked for as long as the results that may hold them live.
type RegionAbstraction struct {
	Loc ir.Location
	// Inputs are the places lent into the call
	Inputs []places.BlockedPlace
	// Outputs are the result places that may keep the inputs blocked
	Outputs []places.MaybeOldPlace
}

func (RegionAbstraction) isEdgeKind() {}

func (a RegionAbstraction) Key() string {
	var in, out []string
	for _, p := range a.Inputs {
		in = append(in, p.Key())
	}
	for _, p := range a.Outputs {
		out = append(out, p.Key())
	}
	return fmt.Sprintf("abstraction(%v,[%s],[%s])", a.Loc, strings.Join(in, ","), strings.Join(out, ","))
}

func (a RegionAbstraction) Blocked() []places.BlockedPlace { return a.Inputs }

func (a RegionAbstraction) Blocking() []places.MaybeOldPlace { return a.Outputs }

func (a RegionAbstraction) String() string {
	return fmt.Sprintf("abstraction at %v: %v blocked by %v", a.Loc, a.Inputs, a.Outputs)
}

// RegionProjectionMember records that a loan-carrying place was moved into
// an aggregate: the member stays blocked through the region projection of
// the aggregate place.
type RegionProjectionMember struct {
	// Member is the place carrying the loan
	Member places.BlockedPlace
	// Host is the aggregate place whose region projection holds it
	Host   places.MaybeOldPlace
	Region ir.Region
	Loc    ir.Location
}

func (RegionProjectionMember) isEdgeKind() {}

func (m RegionProjectionMember) Key() string {
	return fmt.Sprintf("member(%s,%s,%v,%v)", m.Member.Key(), m.Host.Key(), m.Region, m.Loc)
}

func (m RegionProjectionMember) Blocked() []places.BlockedPlace {
	return []places.BlockedPlace{m.Member}
}

func (m RegionProjectionMember) Blocking() []places.MaybeOldPlace {
	return []places.MaybeOldPlace{m.Host}
}

func (m RegionProjectionMember) String() string {
	return fmt.Sprintf("%v in %v under %v at %v", m.Member, m.Host, m.Region, m.Loc)
}

// Edge is one conditioned edge of the reborrow graph.
type Edge struct {
	Conditions PathConditions
	Kind       EdgeKind
}

// Key identifies the edge by its payload; conditions are merged, not
// part of identity.
func (e Edge) Key() string { return e.Kind.Key() }

func (e Edge) String() string {
	return fmt.Sprintf("%v under %v", e.Kind, e.Conditions)
}
