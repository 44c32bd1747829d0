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

// Package viz renders analysis results for inspection: dot graphs of the
// reborrow state per statement phase and json dumps of per-block results.
package viz

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/awslabs/pcs-go-tools/analysis/borrows"
	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/internal/formatutil"
)

// WriteGraphDot renders the reborrow graph of one state as a dot digraph.
func WriteGraphDot(w io.Writer, name string, s *borrows.State) error {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", name)
	b.WriteString("  rankdir=LR;\n  node [shape=box, fontname=\"monospace\"];\n")

	nodes := make(map[string]string)
	nodeID := func(label string) string {
		if id, ok := nodes[label]; ok {
			return id
		}
		id := fmt.Sprintf("n%d", len(nodes))
		nodes[label] = id
		return id
	}

	type arc struct{ from, to, label, style string }
	var arcs []arc
	for _, e := range s.Graph.Edges() {
		style := "solid"
		label := ""
		switch k := e.Kind.(type) {
		case borrows.Reborrow:
			if k.Mut == ir.Mutable {
				label = "mut"
			} else {
				label = "shared"
			}
		case borrows.DerefExpansion:
			style = "dashed"
			label = "expand"
		case borrows.RegionAbstraction:
			style = "dotted"
			label = fmt.Sprintf("call %v", k.Loc)
		case borrows.RegionProjectionMember:
			style = "dotted"
			label = fmt.Sprintf("member %v", k.Region)
		}
		for _, blocked := range e.Kind.Blocked() {
			for _, blocking := range e.Kind.Blocking() {
				arcs = append(arcs, arc{
					from:  blocked.String(),
					to:    blocking.String(),
					label: label,
					style: style,
				})
			}
		}
	}

	for _, a := range arcs {
		nodeID(a.from)
		nodeID(a.to)
	}
	labels := make([]string, 0, len(nodes))
	for l := range nodes {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Fprintf(&b, "  %s [label=%q];\n", nodes[l], formatutil.Sanitize(l))
	}
	for _, a := range arcs {
		fmt.Fprintf(&b, "  %s -> %s [label=%q, style=%s];\n",
			nodes[a.from], nodes[a.to], a.label, a.style)
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}
