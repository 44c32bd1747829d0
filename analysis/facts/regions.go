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

package facts

import (
	"fmt"

	"golang.org/x/tools/container/intsets"

	"github.com/awslabs/pcs-go-tools/analysis/ir"
)

// RegionContext is the outlives oracle: the reflexive transitive closure
// of the region outlives bounds a body was checked under.
type RegionContext struct {
	// outlives[r] holds every region s with r: s (r outlives s)
	outlives map[ir.Region]*intsets.Sparse
	regions  *intsets.Sparse
}

// NewRegionContext builds the oracle from explicit bounds. The closure is
// computed eagerly so queries are set lookups.
func NewRegionContext(bounds []ir.OutlivesBound) *RegionContext {
	rc := &RegionContext{
		outlives: make(map[ir.Region]*intsets.Sparse),
		regions:  new(intsets.Sparse),
	}
	for _, b := range bounds {
		rc.regions.Insert(int(b.Longer))
		rc.regions.Insert(int(b.Shorter))
		rc.edge(b.Longer).Insert(int(b.Shorter))
	}
	// reflexivity
	for _, r := range rc.regions.AppendTo(nil) {
		rc.edge(ir.Region(r)).Insert(r)
	}
	// transitive closure, Floyd-Warshall style over the sparse rows
	changed := true
	for changed {
		changed = false
		for _, r := range rc.regions.AppendTo(nil) {
			row := rc.edge(ir.Region(r))
			var next intsets.Sparse
			next.Copy(row)
			for _, s := range row.AppendTo(nil) {
				next.UnionWith(rc.edge(ir.Region(s)))
			}
			if !next.Equals(row) {
				row.Copy(&next)
				changed = true
			}
		}
	}
	return rc
}

func (rc *RegionContext) edge(r ir.Region) *intsets.Sparse {
	set := rc.outlives[r]
	if set == nil {
		set = new(intsets.Sparse)
		rc.outlives[r] = set
	}
	return set
}

// Outlives reports whether longer: shorter holds. Every region outlives
// itself.
func (rc *RegionContext) Outlives(longer, shorter ir.Region) bool {
	if longer == shorter {
		return true
	}
	set := rc.outlives[longer]
	return set != nil && set.Has(int(shorter))
}

// OutlivedBy returns every region that outlives r, including r.
func (rc *RegionContext) OutlivedBy(r ir.Region) []ir.Region {
	out := []ir.Region{r}
	for _, s := range rc.regions.AppendTo(nil) {
		if ir.Region(s) != r && rc.Outlives(ir.Region(s), r) {
			out = append(out, ir.Region(s))
		}
	}
	return out
}

// CheckConsistency verifies the oracle against the loans of body: the
// region of every loan stored into a reference-typed place must outlive
// the region of that place's type. A violation means the input facts do
// not describe a body the borrow checker accepted.
func (rc *RegionContext) CheckConsistency(body *ir.Body, borrows *BorrowSet) error {
	for _, b := range borrows.All() {
		t, err := b.Assigned.TypeIn(body)
		if err != nil {
			return fmt.Errorf("loan %v: %w", b.Index, err)
		}
		ref, ok := t.(ir.RefType)
		if !ok {
			return fmt.Errorf("loan %v assigned to non-reference place %v of type %v", b.Index, b.Assigned, t)
		}
		if !rc.Outlives(b.Region, ref.Region) && !rc.Outlives(ref.Region, b.Region) {
			return fmt.Errorf("loan %v: region %v of borrow unrelated to region %v of %v",
				b.Index, b.Region, ref.Region, b.Assigned)
		}
	}
	return nil
}
