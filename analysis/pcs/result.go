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

package pcs

import (
	"fmt"

	"github.com/awslabs/pcs-go-tools/analysis/borrows"
	"github.com/awslabs/pcs-go-tools/analysis/freepcs"
	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/unblock"
)

// LocationResult holds everything the analysis derived for one statement:
// the capability summaries around it, the repacks reshaping them, the
// borrow-driven extra operations and the four-phase borrow state.
type LocationResult struct {
	Loc ir.Location

	// Statement is the rendered instruction, for reports
	Statement string

	// RepacksStart reshapes the incoming summary to satisfy the
	// statement's preconditions
	RepacksStart []freepcs.RepackOp

	// RepacksMiddle reshapes the summary while installing postconditions
	RepacksMiddle []freepcs.RepackOp

	// ExtraStart terminates loans that die before the statement runs
	ExtraStart []unblock.Action

	// ExtraMiddle terminates loans killed by the statement itself
	ExtraMiddle []unblock.Action

	// SummaryBefore is the owned-capability state entering the statement
	SummaryBefore *freepcs.Summary

	// SummaryStart is the state after RepacksStart, before the effect
	SummaryStart *freepcs.Summary

	// SummaryAfter is the state after the statement
	SummaryAfter *freepcs.Summary

	// Borrows is the four-phase borrow state of the location
	Borrows *borrows.Domain
}

// SuccBridge is the transition into one successor block.
type SuccBridge struct {
	Block  ir.BlockIdx
	Bridge *Bridge
	// Repacks reshapes this block's final summary into the successor's
	// entry summary
	Repacks []freepcs.RepackOp
}

// TerminatorResult holds the analysis output for a block's terminator.
type TerminatorResult struct {
	Loc ir.Location

	Terminator string

	RepacksStart []freepcs.RepackOp
	ExtraStart   []unblock.Action

	SummaryBefore *freepcs.Summary
	SummaryAfter  *freepcs.Summary

	Borrows *borrows.Domain

	// Succs describes the bridge into each successor block
	Succs []SuccBridge
}

// IterationResult is the borrow state of one fixpoint visit of a block:
// one four-phase domain per statement, the terminator's last.
type IterationResult struct {
	// Iteration counts fixpoint visits of the block, starting at 1
	Iteration int
	Domains   []*borrows.Domain
}

// BlockResult is the converged analysis of one basic block.
type BlockResult struct {
	Block ir.BlockIdx

	// EntrySummary and EntryBorrows are the fixpoint entry states
	EntrySummary *freepcs.Summary
	EntryBorrows *borrows.State

	// Iterations is how many times the fixpoint visited the block
	Iterations int

	// History holds the borrow domains of every fixpoint visit; populated
	// only when dot output is enabled
	History []IterationResult

	Statements []LocationResult
	Terminator TerminatorResult
}

// Result is the output of analyzing one body.
type Result struct {
	Body *ir.Body

	// Blocks indexed by block
	Blocks []*BlockResult

	// Errors accumulated during the run; a non-empty list means the
	// remaining results are partial
	Errors []error
}

// ForBlock returns the result of block b.
func (r *Result) ForBlock(b ir.BlockIdx) (*BlockResult, error) {
	if int(b) >= len(r.Blocks) || r.Blocks[b] == nil {
		return nil, fmt.Errorf("no result for block %v", b)
	}
	return r.Blocks[b], nil
}

// At returns the result of the statement at loc, or the terminator result
// when loc denotes a terminator.
func (r *Result) At(loc ir.Location) (*LocationResult, *TerminatorResult, error) {
	br, err := r.ForBlock(loc.Block)
	if err != nil {
		return nil, nil, err
	}
	if loc.Statement < len(br.Statements) {
		return &br.Statements[loc.Statement], nil, nil
	}
	if loc.Statement == len(br.Statements) {
		return nil, &br.Terminator, nil
	}
	return nil, nil, fmt.Errorf("no statement at %v", loc)
}

// Ok reports whether the run finished without errors.
func (r *Result) Ok() bool { return len(r.Errors) == 0 }
