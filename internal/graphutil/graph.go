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

// Package graphutil provides a small directed-graph representation over
// dense integer node ids, usable with yourbasic/graph's iterator-based
// algorithms, plus cycle detection and strongly connected components.
package graphutil

import (
	"sort"
)

// Arc is one directed edge between integer node ids.
type Arc struct {
	From int
	To   int
}

// DGraph is a directed graph over node ids 0..order-1. It implements the
// methods to satisfy yourbasic graph.Iterator.
type DGraph struct {
	// The order of the graph
	order int

	// Keys are all the node IDs
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed edge from x to y
	Edges map[int64]map[int64]bool
}

// NewDirected builds a graph with nodes 0..order-1 and the given arcs.
func NewDirected(order int, arcs []Arc) DGraph {
	edges := make(map[int64]map[int64]bool, order)
	keys := make([]int64, order)
	for i := 0; i < order; i++ {
		keys[i] = int64(i)
		edges[int64(i)] = map[int64]bool{}
	}
	for _, a := range arcs {
		edges[int64(a.From)][int64(a.To)] = true
	}
	return DGraph{order: order, Keys: keys, Edges: edges}
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order is the same as in original, meaning that node indices stay consistent across subgraphs.
func Subgraph(original DGraph, include []int64) DGraph {
	inset := make(map[int64]bool, len(include))
	edges := make(map[int64]map[int64]bool, len(include))
	keys := make([]int64, len(include))

	for j, i := range include {
		keys[j] = i
		inset[i] = true
	}

	for _, i := range include {
		edges[i] = map[int64]bool{}
		for e := range original.Edges[i] {
			if inset[e] {
				edges[i][e] = true
			}
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return DGraph{
		order: original.Order(),
		Edges: edges,
		Keys:  keys,
	}
}

// Order implements the order of the graph.Iterator interface for the DGraph
func (c DGraph) Order() int {
	return c.order
}

// Visit implements the graph.Iterator interface for the DGraph
func (c DGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if _, ok := c.Edges[int64(v)]; !ok {
		return false
	}
	for w := range c.Edges[int64(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}
