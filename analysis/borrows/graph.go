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
	"sort"

	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/pcserr"
	"github.com/awslabs/pcs-go-tools/analysis/places"
	"github.com/awslabs/pcs-go-tools/internal/funcutil"
	"github.com/awslabs/pcs-go-tools/internal/graphutil"
)

// Graph is the reborrow graph: a set of conditioned edges keyed by their
// payload. Inserting an existing payload merges path conditions.
type Graph struct {
	edges map[string]*Edge
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{edges: make(map[string]*Edge)}
}

// Clone deep-copies the graph.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	for k, e := range g.edges {
		ce := Edge{Conditions: e.Conditions.Clone(), Kind: e.Kind}
		c.edges[k] = &ce
	}
	return c
}

// Len returns the number of edges.
func (g *Graph) Len() int { return len(g.edges) }

// Insert adds e, merging path conditions when the payload is already
// present. Returns whether the graph changed.
func (g *Graph) Insert(e Edge) bool {
	k := e.Key()
	if existing, ok := g.edges[k]; ok {
		return existing.Conditions.Merge(e.Conditions)
	}
	ce := Edge{Conditions: e.Conditions.Clone(), Kind: e.Kind}
	g.edges[k] = &ce
	return true
}

// Remove deletes the edge with the given payload.
func (g *Graph) Remove(kind EdgeKind) bool {
	k := kind.Key()
	if _, ok := g.edges[k]; !ok {
		return false
	}
	delete(g.edges, k)
	return true
}

// Contains reports whether an edge with the payload exists.
func (g *Graph) Contains(kind EdgeKind) bool {
	_, ok := g.edges[kind.Key()]
	return ok
}

// Edges returns every edge in deterministic order.
func (g *Graph) Edges() []Edge {
	keys := make([]string, 0, len(g.edges))
	for k := range g.edges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return funcutil.Map(keys, func(k string) Edge { return *g.edges[k] })
}

// Eq reports whether both graphs hold the same edges under the same
// conditions.
func (g *Graph) Eq(o *Graph) bool {
	if len(g.edges) != len(o.edges) {
		return false
	}
	for k, e := range g.edges {
		oe, ok := o.edges[k]
		if !ok || e.Conditions.Key() != oe.Conditions.Key() {
			return false
		}
	}
	return true
}

// blocksPlace reports whether blocked place q covers p: same remote-ness
// and snapshot label with prefix-related places.
func blocksPlace(q places.BlockedPlace, p places.BlockedPlace) bool {
	if q.Remote != p.Remote {
		return false
	}
	if q.Remote {
		return q.Place.Place.Local == p.Place.Place.Local
	}
	if (q.Place.At == nil) != (p.Place.At == nil) {
		return false
	}
	if q.Place.At != nil && *q.Place.At != *p.Place.At {
		return false
	}
	return q.Place.Place.Related(p.Place.Place)
}

// EdgesBlocking returns the edges blocking p or a place related to it.
func (g *Graph) EdgesBlocking(p places.BlockedPlace) []Edge {
	var out []Edge
	for _, e := range g.Edges() {
		for _, q := range e.Kind.Blocked() {
			if blocksPlace(q, p) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// EdgesBlockedBy returns the edges whose blocking side covers p.
func (g *Graph) EdgesBlockedBy(p places.MaybeOldPlace) []Edge {
	target := places.BlockedLocal(p)
	var out []Edge
	for _, e := range g.Edges() {
		for _, q := range e.Kind.Blocking() {
			if blocksPlace(places.BlockedLocal(q), target) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// HasBlocker reports whether any edge blocks p.
func (g *Graph) HasBlocker(p places.BlockedPlace) bool {
	return len(g.EdgesBlocking(p)) > 0
}

// mapEdgePlaces rewrites every place of kind through f (for the local
// sides) and fb (for blocked places), returning the rewritten payload.
func mapEdgePlaces(kind EdgeKind, fb func(places.BlockedPlace) places.BlockedPlace, f func(places.MaybeOldPlace) places.MaybeOldPlace) EdgeKind {
	switch k := kind.(type) {
	case Reborrow:
		k.BlockedPlace = fb(k.BlockedPlace)
		k.Assigned = f(k.Assigned)
		return k
	case DerefExpansion:
		k.Base = f(k.Base)
		return k
	case RegionAbstraction:
		in := make([]places.BlockedPlace, len(k.Inputs))
		for i, p := range k.Inputs {
			in[i] = fb(p)
		}
		out := make([]places.MaybeOldPlace, len(k.Outputs))
		for i, p := range k.Outputs {
			out[i] = f(p)
		}
		k.Inputs, k.Outputs = in, out
		return k
	case RegionProjectionMember:
		k.Member = fb(k.Member)
		k.Host = f(k.Host)
		return k
	}
	return kind
}

// MakePlaceOld ages every current occurrence of place or an extension of
// it, labelling the snapshots with the local's last write.
func (g *Graph) MakePlaceOld(place ir.Place, latest Latest) bool {
	at := latest.Get(place)
	age := func(p places.MaybeOldPlace) places.MaybeOldPlace {
		if p.IsCurrent() && place.IsPrefixOf(p.Place) {
			return places.Old(p.Place, at)
		}
		return p
	}
	ageBlocked := func(p places.BlockedPlace) places.BlockedPlace {
		if p.Remote {
			return p
		}
		return places.BlockedPlace{Place: age(p.Place)}
	}
	return g.rewrite(func(kind EdgeKind) EdgeKind {
		return mapEdgePlaces(kind, ageBlocked, age)
	})
}

// RetargetAssigned redirects every blocking occurrence of from (or an
// extension) onto the corresponding extension of to. Used when a mutable
// reference is moved: reborrows through the old reference now live through
// the new one.
func (g *Graph) RetargetAssigned(from, to ir.Place) bool {
	move := func(p places.MaybeOldPlace) places.MaybeOldPlace {
		if p.IsCurrent() && from.IsPrefixOf(p.Place) {
			proj := p.Place.Projection[len(from.Projection):]
			np := to
			for _, e := range proj {
				np = np.Project(e)
			}
			return places.Current(np)
		}
		return p
	}
	return g.rewrite(func(kind EdgeKind) EdgeKind {
		switch k := kind.(type) {
		case Reborrow:
			k.Assigned = move(k.Assigned)
			return k
		case RegionAbstraction:
			out := make([]places.MaybeOldPlace, len(k.Outputs))
			for i, p := range k.Outputs {
				out[i] = move(p)
			}
			k.Outputs = out
			return k
		case RegionProjectionMember:
			k.Host = move(k.Host)
			return k
		}
		return kind
	})
}

func (g *Graph) rewrite(f func(EdgeKind) EdgeKind) bool {
	changed := false
	next := make(map[string]*Edge, len(g.edges))
	for _, e := range g.edges {
		nk := f(e.Kind)
		key := nk.Key()
		if key != e.Kind.Key() {
			changed = true
		}
		if existing, ok := next[key]; ok {
			existing.Conditions.Merge(e.Conditions)
			continue
		}
		ne := Edge{Conditions: e.Conditions, Kind: nk}
		next[key] = &ne
	}
	g.edges = next
	return changed
}

// CheckAcyclic verifies that reborrow and expansion edges form a dag over
// places. The returned error names one offending cycle.
func (g *Graph) CheckAcyclic(loc ir.Location) error {
	idx := make(map[string]int)
	var names []string
	nodeOf := func(key string) int {
		if i, ok := idx[key]; ok {
			return i
		}
		i := len(names)
		idx[key] = i
		names = append(names, key)
		return i
	}
	var arcs []graphutil.Arc
	for _, e := range g.Edges() {
		switch e.Kind.(type) {
		case Reborrow, DerefExpansion:
		default:
			continue
		}
		for _, b := range e.Kind.Blocked() {
			for _, a := range e.Kind.Blocking() {
				arcs = append(arcs, graphutil.Arc{From: nodeOf(b.Key()), To: nodeOf(a.Key())})
			}
		}
	}
	cycle := graphutil.FindCycle(len(names), arcs)
	if cycle == nil {
		return nil
	}
	var path []string
	for _, n := range cycle {
		path = append(path, names[n])
	}
	return pcserr.At(pcserr.CyclicReborrowGraph, loc,
		fmt.Errorf("cycle through %v", path))
}
