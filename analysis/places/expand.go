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

package places

import (
	"fmt"

	"github.com/awslabs/pcs-go-tools/analysis/ir"
)

// IsOwned reports whether p lies in the owned fragment of its local: no
// projection step dereferences a reference or raw pointer. Dereferencing
// a box stays owned.
func IsOwned(p ir.Place, body *ir.Body) (bool, error) {
	t := body.LocalType(p.Local)
	for i, e := range p.Projection {
		if _, isDeref := e.(ir.DerefElem); isDeref {
			switch t.(type) {
			case ir.RefType, ir.RawPtrType:
				return false, nil
			}
		}
		prefix := ir.Place{Local: p.Local, Projection: p.Projection[:i+1]}
		var err error
		t, err = prefix.TypeIn(body)
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// FirstRefPrefix returns the shortest strict prefix of p whose type is a
// reference, if any. The place one deref past that prefix is where the
// owned fragment of p ends.
func FirstRefPrefix(p ir.Place, body *ir.Body) (ir.Place, bool, error) {
	for i := 0; i < len(p.Projection); i++ {
		prefix := ir.Place{Local: p.Local, Projection: p.Projection[:i]}
		t, err := prefix.TypeIn(body)
		if err != nil {
			return ir.Place{}, false, err
		}
		if ir.IsRef(t) {
			return prefix, true, nil
		}
	}
	return ir.Place{}, false, nil
}

// Expansion is one step of unpacking a place into children: the base, the
// children produced, and the child lying on the path being expanded toward.
type Expansion struct {
	Base     ir.Place
	Children []ir.Place
	// Guide is the child on the expansion path
	Guide ir.Place
}

// ExpandOneLevel unpacks base one projection step toward target, which
// must be a strict extension of base. Field expansions produce all sibling
// fields; deref, downcast and sequence expansions produce only the guide
// child.
func ExpandOneLevel(base, target ir.Place, body *ir.Body) (Expansion, error) {
	if !base.IsStrictPrefixOf(target) {
		return Expansion{}, fmt.Errorf("%v is not a strict prefix of %v", base, target)
	}
	elem := target.Projection[len(base.Projection)]
	guide := base.Project(elem)
	exp := Expansion{Base: base, Guide: guide}
	switch e := elem.(type) {
	case ir.FieldElem:
		t, err := base.TypeIn(body)
		if err != nil {
			return Expansion{}, err
		}
		n, ok := ir.FieldCount(t)
		if !ok {
			return Expansion{}, fmt.Errorf("field expansion of %v (type %v)", base, t)
		}
		if e.Index >= n {
			return Expansion{}, fmt.Errorf("field %d out of range expanding %v", e.Index, base)
		}
		for i := 0; i < n; i++ {
			exp.Children = append(exp.Children, base.Field(i))
		}
	default:
		exp.Children = []ir.Place{guide}
	}
	return exp, nil
}

// ExpandTo unpacks base step by step until target is reached, returning
// every intermediate expansion in order.
func ExpandTo(base, target ir.Place, body *ir.Body) ([]Expansion, error) {
	var steps []Expansion
	cur := base
	for !cur.Eq(target) {
		exp, err := ExpandOneLevel(cur, target, body)
		if err != nil {
			return nil, err
		}
		steps = append(steps, exp)
		cur = exp.Guide
	}
	return steps, nil
}
