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

// Package unblock plans the release of blocked places: given a reborrow
// graph and a set of places to free, it selects the edges that must be
// terminated and orders them so every edge is a leaf when its turn comes.
package unblock

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/awslabs/pcs-go-tools/analysis/borrows"
	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/pcserr"
	"github.com/awslabs/pcs-go-tools/analysis/places"
	"github.com/awslabs/pcs-go-tools/internal/funcutil"
	"github.com/awslabs/pcs-go-tools/internal/graphutil"
)

// Action terminates one edge of the reborrow graph.
type Action struct {
	Edge borrows.Edge
}

func (a Action) String() string {
	return fmt.Sprintf("terminate %v", a.Edge.Kind)
}

// Graph is the set of edges selected for termination.
type Graph struct {
	state *borrows.State
	edges map[string]borrows.Edge
	// inProgress guards the recursive construction against revisits
	inProgress map[string]bool
	loc        ir.Location
}

// NewGraph starts an empty plan over state, reported at loc on failure.
func NewGraph(state *borrows.State, loc ir.Location) *Graph {
	return &Graph{
		state:      state,
		edges:      make(map[string]borrows.Edge),
		inProgress: make(map[string]bool),
		loc:        loc,
	}
}

// Len returns the number of selected edges.
func (g *Graph) Len() int { return len(g.edges) }

// Edges returns the selected edges.
func (g *Graph) Edges() []borrows.Edge {
	return funcutil.Map(sortedKeys(g.edges), func(k string) borrows.Edge { return g.edges[k] })
}

func sortedKeys(m map[string]borrows.Edge) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnblockPlace selects every edge that must terminate for p to become
// usable again, walking the blockers transitively.
func (g *Graph) UnblockPlace(p places.BlockedPlace) error {
	key := "p:" + p.Key()
	if g.inProgress[key] {
		return pcserr.At(pcserr.CyclicUnblockGraph, g.loc,
			fmt.Errorf("place %v depends on its own release", p))
	}
	g.inProgress[key] = true
	defer delete(g.inProgress, key)
	for _, e := range g.state.Graph.EdgesBlocking(p) {
		if err := g.addEdge(e); err != nil {
			return err
		}
	}
	return nil
}

// UnblockEdge selects e and everything blocking its blocking side.
func (g *Graph) UnblockEdge(e borrows.Edge) error {
	return g.addEdge(e)
}

func (g *Graph) addEdge(e borrows.Edge) error {
	key := e.Key()
	if _, ok := g.edges[key]; ok {
		return nil
	}
	if g.inProgress["e:"+key] {
		return pcserr.At(pcserr.CyclicUnblockGraph, g.loc,
			fmt.Errorf("edge %v depends on its own termination", e.Kind))
	}
	g.inProgress["e:"+key] = true
	defer delete(g.inProgress, "e:"+key)
	g.edges[key] = e
	// an edge can terminate only once its blocking places are free
	for _, q := range e.Kind.Blocking() {
		if err := g.UnblockPlace(places.BlockedLocal(q)); err != nil {
			return err
		}
	}
	return nil
}

// FilterForPath narrows the plan to the edges that can still be live on a
// path through block b: edges whose path conditions are incompatible with
// every path reaching b are dropped, and of several mutable reborrows of
// the same blocked place only the one reserved latest on the path is kept.
func (g *Graph) FilterForPath(body *ir.Body, b ir.BlockIdx) {
	for _, key := range sortedKeys(g.edges) {
		if !validTowards(body, g.edges[key], b) {
			delete(g.edges, key)
		}
	}
	g.dropStaleReborrows(body)
}

// validTowards reports whether the edge's conditions admit a path to b.
func validTowards(body *ir.Body, e borrows.Edge, b ir.BlockIdx) bool {
	if e.Conditions.ValidAt(b) {
		return true
	}
	for _, to := range e.Conditions.Targets() {
		if ir.HasPathTo(body, to, b) {
			return true
		}
	}
	return false
}

func (g *Graph) dropStaleReborrows(body *ir.Body) {
	groups := make(map[string][]string)
	for _, key := range sortedKeys(g.edges) {
		rb, ok := g.edges[key].Kind.(borrows.Reborrow)
		if !ok || rb.Mut != ir.Mutable {
			continue
		}
		bk := rb.BlockedPlace.Key()
		groups[bk] = append(groups[bk], key)
	}
	for _, keys := range groups {
		if len(keys) < 2 {
			continue
		}
		for _, ka := range keys {
			a, ok := g.edges[ka]
			if !ok {
				continue
			}
			for _, kb := range keys {
				other, stillIn := g.edges[kb]
				if ka == kb || !stillIn {
					continue
				}
				ra := a.Kind.(borrows.Reborrow)
				rb := other.Kind.(borrows.Reborrow)
				if reservedAfter(body, rb.Reserve, ra.Reserve) {
					delete(g.edges, ka)
					break
				}
			}
		}
	}
}

// reservedAfter reports whether location a strictly follows location b on
// some path without b being reachable back from a.
func reservedAfter(body *ir.Body, a, b ir.Location) bool {
	if a.Block == b.Block {
		return a.Statement > b.Statement
	}
	return ir.HasPathTo(body, b.Block, a.Block) && !ir.HasPathTo(body, a.Block, b.Block)
}

// Actions orders the selected edges so each is a leaf when terminated: no
// remaining edge blocks its blocking side. The ordering is a topological
// sort of the dependency graph between edges.
func (g *Graph) Actions() ([]Action, error) {
	keys := sortedKeys(g.edges)
	index := make(map[string]int64, len(keys))
	for i, k := range keys {
		index[k] = int64(i)
	}

	dg := simple.NewDirectedGraph()
	for i := range keys {
		dg.AddNode(simple.Node(i))
	}
	// arc a -> b when a blocks a place b needs free, so a terminates first
	for _, ka := range keys {
		a := g.edges[ka]
		for _, kb := range keys {
			if ka == kb {
				continue
			}
			b := g.edges[kb]
			if blocksBlockingSide(a, b) {
				dg.SetEdge(dg.NewEdge(simple.Node(index[ka]), simple.Node(index[kb])))
			}
		}
	}

	order, err := topo.Sort(dg)
	if err != nil {
		return nil, g.cycleError()
	}
	actions := make([]Action, 0, len(order))
	for _, n := range order {
		actions = append(actions, Action{Edge: g.edges[keys[n.ID()]]})
	}
	return actions, nil
}

// blocksBlockingSide reports whether a blocks one of the places b relies
// on as a blocker.
func blocksBlockingSide(a, b borrows.Edge) bool {
	for _, blocked := range a.Kind.Blocked() {
		for _, blocking := range b.Kind.Blocking() {
			q := places.BlockedLocal(blocking)
			if blocked.Eq(q) {
				return true
			}
			if !blocked.Remote && !q.Remote &&
				(blocked.Place.At == nil) == (q.Place.At == nil) &&
				(blocked.Place.At == nil || *blocked.Place.At == *q.Place.At) &&
				blocked.Place.Place.Related(q.Place.Place) {
				return true
			}
		}
	}
	return false
}

// cycleError names one strongly connected group of edges that cannot be
// ordered.
func (g *Graph) cycleError() error {
	keys := sortedKeys(g.edges)
	succ := func(k string) []string {
		var out []string
		for _, other := range keys {
			if other != k && blocksBlockingSide(g.edges[k], g.edges[other]) {
				out = append(out, other)
			}
		}
		return out
	}
	for _, scc := range graphutil.StronglyConnectedComponents(keys, succ) {
		if len(scc) < 2 && !(len(scc) == 1 && funcutil.Contains(succ(scc[0]), scc[0])) {
			continue
		}
		var members []string
		for _, k := range scc {
			members = append(members, g.edges[k].Kind.String())
		}
		return pcserr.At(pcserr.CyclicUnblockGraph, g.loc,
			fmt.Errorf("edges cannot be ordered: %v", members))
	}
	return pcserr.At(pcserr.CyclicUnblockGraph, g.loc,
		fmt.Errorf("edges cannot be ordered"))
}

// Apply executes the plan on state, removing each edge in order. It
// verifies the leaf invariant: when an edge terminates, nothing still in
// the plan blocks its blocking side.
func Apply(state *borrows.State, actions []Action, loc ir.Location) error {
	remaining := make(map[string]borrows.Edge, len(actions))
	for _, a := range actions {
		remaining[a.Edge.Key()] = a.Edge
	}
	for _, a := range actions {
		delete(remaining, a.Edge.Key())
		for _, other := range remaining {
			if blocksBlockingSide(other, a.Edge) {
				return pcserr.At(pcserr.CyclicUnblockGraph, loc,
					fmt.Errorf("%v terminated before its blocker %v", a.Edge.Kind, other.Kind))
			}
		}
		state.RemoveEdge(a.Edge.Kind)
	}
	return nil
}
