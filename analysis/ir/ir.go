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

// Package ir defines the lowered procedural intermediate representation the
// place-capability analysis runs on: function bodies made of basic blocks,
// statements and terminators operating on locals, together with the type
// and location vocabulary shared by all analysis packages.
package ir

import "fmt"

// Local identifies a local variable of a function body. Local 0 is always
// the return place.
type Local int

// ReturnPlace is the local holding the function's return value.
const ReturnPlace Local = 0

func (l Local) String() string {
	return fmt.Sprintf("_%d", int(l))
}

// BlockIdx identifies a basic block within a body.
type BlockIdx int

// StartBlock is the entry block of every body.
const StartBlock BlockIdx = 0

func (b BlockIdx) String() string {
	return fmt.Sprintf("bb%d", int(b))
}

// Location is a program point: a statement position within a basic block.
// The position just past the last statement denotes the terminator.
type Location struct {
	Block     BlockIdx
	Statement int
}

// Start is the first location of the entry block.
var Start = Location{Block: StartBlock, Statement: 0}

func (l Location) String() string {
	return fmt.Sprintf("%v[%d]", l.Block, l.Statement)
}

// LocalDecl describes one local of a body.
type LocalDecl struct {
	// Name is the debug name of the local, empty for temporaries
	Name string

	// Type of the local
	Type Type

	// AlwaysLive is true for locals whose storage is live for the whole
	// body (arguments and the return place)
	AlwaysLive bool
}

// BasicBlock is a sequence of statements ending in a terminator.
type BasicBlock struct {
	Index      BlockIdx
	Statements []Statement
	Terminator Terminator

	// Preds is computed by Body.Finalize
	Preds []BlockIdx
}

// TerminatorLoc returns the location denoting this block's terminator.
func (b *BasicBlock) TerminatorLoc() Location {
	return Location{Block: b.Index, Statement: len(b.Statements)}
}

// Body is the IR of a single function. The analysis borrows it immutably;
// no component mutates a Body after Finalize.
type Body struct {
	// Name of the function, for diagnostics and visualization
	Name string

	// Locals indexed by Local. Locals[0] is the return place, and
	// Locals[1..ArgCount] are the arguments.
	Locals []LocalDecl

	// ArgCount is the number of argument locals
	ArgCount int

	Blocks []*BasicBlock
}

// Args returns the argument locals of the body.
func (b *Body) Args() []Local {
	args := make([]Local, 0, b.ArgCount)
	for i := 1; i <= b.ArgCount; i++ {
		args = append(args, Local(i))
	}
	return args
}

// LocalType returns the declared type of local l.
func (b *Body) LocalType(l Local) Type {
	return b.Locals[l].Type
}

// Finalize computes predecessor lists and checks block indices. It must be
// called once after construction and before any analysis runs.
func (b *Body) Finalize() error {
	for i, block := range b.Blocks {
		if block.Index != BlockIdx(i) {
			return fmt.Errorf("block at position %d has index %v", i, block.Index)
		}
		if block.Terminator == nil {
			return fmt.Errorf("block %v has no terminator", block.Index)
		}
		block.Preds = nil
	}
	for _, block := range b.Blocks {
		for _, succ := range block.Terminator.Successors() {
			if int(succ) >= len(b.Blocks) {
				return fmt.Errorf("block %v has out-of-range successor %v", block.Index, succ)
			}
			b.Blocks[succ].Preds = append(b.Blocks[succ].Preds, block.Index)
		}
	}
	return nil
}

// Succs returns the successor blocks of block idx.
func (b *Body) Succs(idx BlockIdx) []BlockIdx {
	return b.Blocks[idx].Terminator.Successors()
}

// StatementAt returns the statement at loc, or nil if loc denotes the
// terminator of its block.
func (b *Body) StatementAt(loc Location) Statement {
	block := b.Blocks[loc.Block]
	if loc.Statement >= len(block.Statements) {
		return nil
	}
	return block.Statements[loc.Statement]
}
