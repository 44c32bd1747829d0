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
	"sort"
	"strings"

	"github.com/awslabs/pcs-go-tools/analysis/ir"
)

// Projections is the capability set of one allocated local: a map from
// owned places to the capability held on them. The domain is an antichain,
// no place in it is a prefix of another.
type Projections struct {
	caps map[string]entry
}

type entry struct {
	place ir.Place
	kind  CapabilityKind
}

// NewProjections returns the capability set holding kind on the bare local.
func NewProjections(l ir.Local, kind CapabilityKind) *Projections {
	p := &Projections{caps: make(map[string]entry)}
	p.set(ir.PlaceOf(l), kind)
	return p
}

func (p *Projections) set(place ir.Place, kind CapabilityKind) {
	p.caps[place.Key()] = entry{place: place, kind: kind}
}

// Put installs kind on place, replacing any capability held exactly there.
// Callers are responsible for keeping the antichain invariant.
func (p *Projections) Put(place ir.Place, kind CapabilityKind) {
	p.set(place, kind)
}

func (p *Projections) remove(place ir.Place) {
	delete(p.caps, place.Key())
}

// Get returns the capability held exactly on place.
func (p *Projections) Get(place ir.Place) (CapabilityKind, bool) {
	e, ok := p.caps[place.Key()]
	return e.kind, ok
}

// Contains reports whether place is exactly in the domain.
func (p *Projections) Contains(place ir.Place) bool {
	_, ok := p.caps[place.Key()]
	return ok
}

// Related returns the entry whose place is a prefix or extension of place.
// With the antichain invariant there is at most one prefix entry; extension
// entries may be several, in which case the shortest is returned.
func (p *Projections) Related(place ir.Place) (ir.Place, CapabilityKind, bool) {
	var best *entry
	for _, e := range p.caps {
		if !e.place.Related(place) {
			continue
		}
		if best == nil || len(e.place.Projection) < len(best.place.Projection) {
			e := e
			best = &e
		}
	}
	if best == nil {
		return ir.Place{}, 0, false
	}
	return best.place, best.kind, true
}

// Places returns the domain in deterministic order.
func (p *Projections) Places() []ir.Place {
	out := make([]ir.Place, 0, len(p.caps))
	for _, e := range p.caps {
		out = append(out, e.place)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Clone deep-copies the capability set.
func (p *Projections) Clone() *Projections {
	c := &Projections{caps: make(map[string]entry, len(p.caps))}
	for k, e := range p.caps {
		c.caps[k] = e
	}
	return c
}

// Eq reports equality of domains and capabilities.
func (p *Projections) Eq(o *Projections) bool {
	if len(p.caps) != len(o.caps) {
		return false
	}
	for k, e := range p.caps {
		oe, ok := o.caps[k]
		if !ok || oe.kind != e.kind {
			return false
		}
	}
	return true
}

func (p *Projections) String() string {
	var parts []string
	for _, place := range p.Places() {
		e := p.caps[place.Key()]
		parts = append(parts, fmt.Sprintf("%v: %v", e.place, e.kind))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// CapabilityLocal is the state of one local: deallocated, or allocated
// with a capability set over its owned places.
type CapabilityLocal struct {
	// Allocated is nil when the local has no storage
	Allocated *Projections
}

// IsAllocated reports whether the local has storage.
func (c CapabilityLocal) IsAllocated() bool { return c.Allocated != nil }

func (c CapabilityLocal) String() string {
	if c.Allocated == nil {
		return "unalloc"
	}
	return c.Allocated.String()
}

// Summary is the free place-capability summary: the capability state of
// every local at one program point.
type Summary struct {
	Locals []CapabilityLocal
}

// NewSummary returns the summary at function entry: arguments and the
// return place allocated, everything else deallocated. Arguments hold
// Exclusive, the return place holds Write.
func NewSummary(body *ir.Body) *Summary {
	s := &Summary{Locals: make([]CapabilityLocal, len(body.Locals))}
	s.Locals[ir.ReturnPlace] = CapabilityLocal{Allocated: NewProjections(ir.ReturnPlace, Write)}
	for _, arg := range body.Args() {
		s.Locals[arg] = CapabilityLocal{Allocated: NewProjections(arg, Exclusive)}
	}
	return s
}

// Clone deep-copies the summary.
func (s *Summary) Clone() *Summary {
	c := &Summary{Locals: make([]CapabilityLocal, len(s.Locals))}
	for i, l := range s.Locals {
		if l.Allocated != nil {
			c.Locals[i] = CapabilityLocal{Allocated: l.Allocated.Clone()}
		}
	}
	return c
}

// Eq reports summary equality.
func (s *Summary) Eq(o *Summary) bool {
	if len(s.Locals) != len(o.Locals) {
		return false
	}
	for i, l := range s.Locals {
		ol := o.Locals[i]
		if (l.Allocated == nil) != (ol.Allocated == nil) {
			return false
		}
		if l.Allocated != nil && !l.Allocated.Eq(ol.Allocated) {
			return false
		}
	}
	return true
}

func (s *Summary) String() string {
	var parts []string
	for i, l := range s.Locals {
		if l.Allocated != nil {
			parts = append(parts, fmt.Sprintf("%v: %v", ir.Local(i), l.Allocated))
		}
	}
	return strings.Join(parts, "; ")
}
