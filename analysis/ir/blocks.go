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

package ir

// RichLocation distinguishes the start and mid point of a location, the
// granularity at which borrow facts are indexed.
type RichLocation struct {
	Loc Location
	Mid bool
}

// StartOf returns the start point of loc.
func StartOf(loc Location) RichLocation {
	return RichLocation{Loc: loc}
}

// MidOf returns the mid point of loc.
func MidOf(loc Location) RichLocation {
	return RichLocation{Loc: loc, Mid: true}
}

func (r RichLocation) String() string {
	if r.Mid {
		return "Mid(" + r.Loc.String() + ")"
	}
	return "Start(" + r.Loc.String() + ")"
}

// ReversePostOrder returns the blocks of body in reverse post-order from
// the entry block. Unreachable blocks are appended at the end in index
// order so every block gets visited by the fixpoint.
func ReversePostOrder(body *Body) []BlockIdx {
	seen := make([]bool, len(body.Blocks))
	var post []BlockIdx
	var visit func(BlockIdx)
	visit = func(b BlockIdx) {
		if seen[b] {
			return
		}
		seen[b] = true
		for _, succ := range body.Succs(b) {
			visit(succ)
		}
		post = append(post, b)
	}
	visit(StartBlock)
	order := make([]BlockIdx, 0, len(body.Blocks))
	for i := len(post) - 1; i >= 0; i-- {
		order = append(order, post[i])
	}
	for i := range body.Blocks {
		if !seen[i] {
			order = append(order, BlockIdx(i))
		}
	}
	return order
}

// HasPathTo returns whether there is a path in the cfg from block a to
// block b. Memoize the result if you call this often.
func HasPathTo(body *Body, a, b BlockIdx) bool {
	if a == b {
		return true
	}
	seen := make([]bool, len(body.Blocks))
	queue := []BlockIdx{a}
	seen[a] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, succ := range body.Succs(cur) {
			if succ == b {
				return true
			}
			if !seen[succ] {
				seen[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	return false
}

// Dominators holds the immediate dominator of every reachable block.
type Dominators struct {
	idom   []BlockIdx
	rpo    []BlockIdx
	rpoNum []int
}

// ComputeDominators builds the dominator tree of body using the standard
// iterative algorithm over reverse post-order.
func ComputeDominators(body *Body) *Dominators {
	n := len(body.Blocks)
	const undef = BlockIdx(-1)
	idom := make([]BlockIdx, n)
	for i := range idom {
		idom[i] = undef
	}
	idom[StartBlock] = StartBlock

	rpo := ReversePostOrder(body)
	rpoNum := make([]int, n)
	for i, b := range rpo {
		rpoNum[b] = i
	}

	intersect := func(a, b BlockIdx) BlockIdx {
		for a != b {
			for rpoNum[a] > rpoNum[b] {
				a = idom[a]
			}
			for rpoNum[b] > rpoNum[a] {
				b = idom[b]
			}
		}
		return a
	}

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == StartBlock {
				continue
			}
			newIdom := undef
			for _, p := range body.Blocks[b].Preds {
				if idom[p] == undef {
					continue
				}
				if newIdom == undef {
					newIdom = p
				} else {
					newIdom = intersect(newIdom, p)
				}
			}
			if newIdom != undef && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return &Dominators{idom: idom, rpo: rpo, rpoNum: rpoNum}
}

// Dominates reports whether block a dominates block b.
func (d *Dominators) Dominates(a, b BlockIdx) bool {
	if a == b {
		return true
	}
	for b != StartBlock {
		b = d.idom[b]
		if b == BlockIdx(-1) {
			return false
		}
		if a == b {
			return true
		}
	}
	return a == StartBlock
}

// DominatesLoc reports whether location a dominates location b.
func (d *Dominators) DominatesLoc(a, b Location) bool {
	if a.Block == b.Block {
		return a.Statement <= b.Statement
	}
	return d.Dominates(a.Block, b.Block)
}

// CommonDominator returns the deepest block dominating both a and b.
// Unreachable blocks fall back to the start block.
func (d *Dominators) CommonDominator(a, b BlockIdx) BlockIdx {
	if d.idom[a] == BlockIdx(-1) || d.idom[b] == BlockIdx(-1) {
		return StartBlock
	}
	for a != b {
		for d.rpoNum[a] > d.rpoNum[b] {
			a = d.idom[a]
		}
		for d.rpoNum[b] > d.rpoNum[a] {
			b = d.idom[b]
		}
	}
	return a
}
