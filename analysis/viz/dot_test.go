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

package viz

import (
	"strings"
	"testing"

	"github.com/awslabs/pcs-go-tools/analysis/borrows"
	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/places"
)

func TestWriteGraphDot(t *testing.T) {
	s := borrows.NewState()
	s.Graph.Insert(borrows.Edge{
		Conditions: borrows.NewPathConditions(0),
		Kind: borrows.Reborrow{
			BlockedPlace: places.BlockedLocal(places.Current(ir.PlaceOf(1))),
			Assigned:     places.Current(ir.PlaceOf(2).Deref()),
			Mut:          ir.Mutable,
			Region:       1,
			Reserve:      ir.Start,
		},
	})
	s.Graph.Insert(borrows.Edge{
		Conditions: borrows.NewPathConditions(0),
		Kind: borrows.DerefExpansion{
			Base:  places.Current(ir.PlaceOf(2)),
			Elems: []ir.ProjectionElem{ir.DerefElem{}},
			Loc:   ir.Start,
		},
	})

	var b strings.Builder
	if err := WriteGraphDot(&b, "test", s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		"digraph \"test\"",
		"label=\"mut\"",
		"label=\"expand\", style=dashed",
		ir.PlaceOf(1).String(),
		ir.PlaceOf(2).Deref().String(),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dot output missing %q:\n%s", want, out)
		}
	}
}
