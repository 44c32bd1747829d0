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
	"github.com/awslabs/pcs-go-tools/analysis/config"
	"github.com/awslabs/pcs-go-tools/analysis/facts"
	"github.com/awslabs/pcs-go-tools/analysis/freepcs"
	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/pcserr"
	"github.com/awslabs/pcs-go-tools/analysis/places"
	"github.com/awslabs/pcs-go-tools/analysis/unblock"
)

// engine couples the two analyses over one body.
type engine struct {
	body    *ir.Body
	cfg     *config.Config
	logger  *config.LogGroup
	free    *freepcs.Engine
	visitor *borrows.Visitor
	dom     *ir.Dominators

	entryFree    []*freepcs.Summary
	entryBorrows []*borrows.State
	iterations   []int

	// history holds the borrow domains of every fixpoint visit per block,
	// captured only when dot output is enabled
	history [][]IterationResult
	// domains collects the borrow domains of the block currently being
	// transferred
	domains []*borrows.Domain

	result *Result
}

// Run analyzes the input's body under its region bounds and facts.
// Errors are accumulated in the result rather than aborting the run,
// except for inconsistent input facts which fail immediately.
func Run(in Input, cfg *config.Config, logger *config.LogGroup) *Result {
	body := in.Body
	result := &Result{Body: body, Blocks: make([]*BlockResult, len(body.Blocks))}

	borrowSet := facts.CollectBorrows(body)
	regions := facts.NewRegionContext(in.Bounds)
	if !cfg.SkipRegionCheck {
		if err := regions.CheckConsistency(body, borrowSet); err != nil {
			result.Errors = append(result.Errors, pcserr.New(pcserr.RegionOracleInconsistent, err))
			return result
		}
		if err := in.Facts.CheckIssued(borrowSet); err != nil {
			result.Errors = append(result.Errors, pcserr.New(pcserr.RegionOracleInconsistent, err))
			return result
		}
	}

	e := &engine{
		body:         body,
		cfg:          cfg,
		logger:       logger,
		free:         freepcs.NewEngine(body),
		visitor:      borrows.NewVisitor(body, borrowSet, regions, in.Facts),
		dom:          ir.ComputeDominators(body),
		entryFree:    make([]*freepcs.Summary, len(body.Blocks)),
		entryBorrows: make([]*borrows.State, len(body.Blocks)),
		iterations:   make([]int, len(body.Blocks)),
		history:      make([][]IterationResult, len(body.Blocks)),
		result:       result,
	}
	e.entryFree[ir.StartBlock] = freepcs.NewSummary(body)
	e.entryBorrows[ir.StartBlock] = borrows.InitialState(body)

	e.fixpoint()
	if len(result.Errors) == 0 {
		e.record()
	}
	return result
}

// fixpoint drives the worklist until entry states stop changing.
func (e *engine) fixpoint() {
	order := ir.ReversePostOrder(e.body)
	pos := make(map[ir.BlockIdx]int, len(order))
	for i, b := range order {
		pos[b] = i
	}
	inQueue := make([]bool, len(e.body.Blocks))
	queue := []ir.BlockIdx{ir.StartBlock}
	inQueue[ir.StartBlock] = true

	for len(queue) > 0 {
		// pick the earliest block in reverse post-order
		best := 0
		for i := range queue {
			if pos[queue[i]] < pos[queue[best]] {
				best = i
			}
		}
		b := queue[best]
		queue = append(queue[:best], queue[best+1:]...)
		inQueue[b] = false

		e.iterations[b]++
		if e.cfg.ExceedsMaxIterations(e.iterations[b]) {
			e.result.Errors = append(e.result.Errors,
				fmt.Errorf("fixpoint did not converge at block %v after %d iterations", b, e.iterations[b]))
			return
		}
		e.logger.Tracef("visiting %v (iteration %d)", b, e.iterations[b])

		free, bor, err := e.transferBlock(b, nil)
		if err != nil {
			e.result.Errors = append(e.result.Errors, err)
			return
		}
		if e.cfg.VizDot {
			e.history[b] = append(e.history[b], IterationResult{
				Iteration: e.iterations[b],
				Domains:   e.domains,
			})
		}
		for _, succ := range e.body.Succs(b) {
			changed, err := e.joinInto(succ, b, free, bor)
			if err != nil {
				e.result.Errors = append(e.result.Errors, err)
				return
			}
			if changed && !inQueue[succ] {
				queue = append(queue, succ)
				inQueue[succ] = true
			}
		}
	}
}

// transferBlock runs the block's statements and terminator from its entry
// states. When rec is non-nil the per-location results are recorded there.
func (e *engine) transferBlock(b ir.BlockIdx, rec *BlockResult) (*freepcs.Summary, *borrows.State, error) {
	if e.entryFree[b] == nil {
		return nil, nil, fmt.Errorf("block %v reached without entry state", b)
	}
	free := e.entryFree[b].Clone()
	bor := e.entryBorrows[b].Clone()
	block := e.body.Blocks[b]
	e.domains = nil

	for i, stmt := range block.Statements {
		loc := ir.Location{Block: b, Statement: i}
		var lr *LocationResult
		if rec != nil {
			rec.Statements = append(rec.Statements, LocationResult{Loc: loc, Statement: stmt.String()})
			lr = &rec.Statements[len(rec.Statements)-1]
			lr.SummaryBefore = free.Clone()
		}
		if err := e.transferInstruction(free, &bor, stmt, nil, loc, lr); err != nil {
			return nil, nil, err
		}
		if lr != nil {
			lr.SummaryAfter = free.Clone()
		}
	}

	loc := block.TerminatorLoc()
	var lr *LocationResult
	if rec != nil {
		lr = &LocationResult{Loc: loc}
	}
	beforeTerm := free.Clone()
	if err := e.transferInstruction(free, &bor, nil, block.Terminator, loc, lr); err != nil {
		return nil, nil, err
	}
	if rec != nil {
		rec.Terminator = TerminatorResult{
			Loc:           loc,
			Terminator:    block.Terminator.String(),
			RepacksStart:  lr.RepacksStart,
			ExtraStart:    lr.ExtraStart,
			SummaryBefore: beforeTerm,
			SummaryAfter:  free.Clone(),
			Borrows:       lr.Borrows,
		}
	}
	return free, bor, nil
}

// transferInstruction applies one instruction to both analyses. Exactly
// one of stmt and term is non-nil.
func (e *engine) transferInstruction(free *freepcs.Summary, bor **borrows.State, stmt ir.Statement, term ir.Terminator, loc ir.Location, lr *LocationResult) error {
	dom, err := borrows.Transfer(e.visitor, *bor, stmt, term, loc)
	if err != nil {
		return err
	}
	e.domains = append(e.domains, dom)
	if err := dom.After.CheckSnapshots(e.dom, loc); err != nil {
		return err
	}

	var triple freepcs.Triple
	if stmt != nil {
		triple, err = freepcs.StatementTriple(stmt, e.body)
	} else {
		triple, err = freepcs.TerminatorTriple(term, e.body)
	}
	if err != nil {
		return pcserr.At(pcserr.InvalidIR, loc, err)
	}

	repacks, err := e.free.Prepare(free, triple, loc)
	if err != nil {
		return err
	}
	if lr != nil {
		lr.RepacksStart = repacks
		lr.SummaryStart = free.Clone()
		lr.Borrows = dom
		pre, err := NewBridge(dom.BeforeStart, dom.Start, loc, e.body)
		if err != nil {
			return err
		}
		lr.ExtraStart = pre.UnblockActions
	}

	// loans the instruction killed release their blocked places
	released, err := e.releaseDeadLoans(free, dom, loc)
	if err != nil {
		return err
	}
	if lr != nil {
		lr.ExtraMiddle = released
	}

	midOps, err := e.free.Apply(free, triple, loc)
	if err != nil {
		return err
	}
	if lr != nil {
		lr.RepacksMiddle = midOps
	}
	*bor = dom.After
	return nil
}

// releaseDeadLoans diffs the borrow phases of the location and restores
// Exclusive on owned places whose mutable loans ended here.
func (e *engine) releaseDeadLoans(free *freepcs.Summary, dom *borrows.Domain, loc ir.Location) ([]unblock.Action, error) {
	bridge, err := NewBridge(dom.Start, dom.After, loc, e.body)
	if err != nil {
		return nil, err
	}
	for _, a := range bridge.UnblockActions {
		rb, ok := a.Edge.Kind.(borrows.Reborrow)
		if !ok || rb.Mut != ir.Mutable {
			continue
		}
		bp := rb.BlockedPlace
		if bp.Remote || bp.Place.IsOld() {
			continue
		}
		place := bp.Place.Place
		owned, err := places.IsOwned(place, e.body)
		if err != nil || !owned {
			continue
		}
		cl := free.Locals[place.Local]
		if !cl.IsAllocated() {
			continue
		}
		rep := freepcs.NewRepacker(e.body)
		if err := rep.ObtainShape(cl.Allocated, place); err != nil {
			continue
		}
		cl.Allocated.Put(place, freepcs.Exclusive)
	}
	return bridge.UnblockActions, nil
}

// joinInto merges the block-exit states of from into the entry states of
// succ. Returns whether the entry states changed.
func (e *engine) joinInto(succ, from ir.BlockIdx, free *freepcs.Summary, bor *borrows.State) (bool, error) {
	changed := false
	if e.entryFree[succ] == nil {
		e.entryFree[succ] = free.Clone()
		e.entryBorrows[succ] = borrows.NewState()
		changed = true
	} else {
		c, ops, err := e.free.Join(e.entryFree[succ], free)
		if err != nil {
			return false, err
		}
		for _, op := range ops {
			if op.Kind == freepcs.RepackDealloc {
				e.logger.Warnf("%s: %v allocated on only one side of the join into %v", e.body.Name, op.Place, succ)
			}
		}
		changed = changed || c
	}
	if e.entryBorrows[succ].MergeFrom(bor, from, succ, e.dom) {
		changed = true
	}
	if err := e.trimDeallocated(succ); err != nil {
		return false, err
	}
	return changed, nil
}

// trimDeallocated terminates edges rooted in places whose local lost its
// storage across the join.
func (e *engine) trimDeallocated(b ir.BlockIdx) error {
	free := e.entryFree[b]
	bor := e.entryBorrows[b]
	loc := ir.Location{Block: b}
	ubg := unblock.NewGraph(bor, loc)
	for _, edge := range bor.Graph.Edges() {
		for _, bp := range edge.Kind.Blocked() {
			if bp.Remote || bp.Place.IsOld() {
				continue
			}
			if !free.Locals[bp.Place.Place.Local].IsAllocated() {
				if err := ubg.UnblockEdge(edge); err != nil {
					return err
				}
				break
			}
		}
	}
	ubg.FilterForPath(e.body, b)
	if ubg.Len() == 0 {
		return nil
	}
	actions, err := ubg.Actions()
	if err != nil {
		return err
	}
	return unblock.Apply(bor, actions, loc)
}

// record replays every reachable block once against the converged entry
// states, capturing per-location results and the bridges into successors.
func (e *engine) record() {
	for _, b := range ir.ReversePostOrder(e.body) {
		if e.entryFree[b] == nil {
			continue
		}
		rec := &BlockResult{
			Block:        b,
			EntrySummary: e.entryFree[b].Clone(),
			EntryBorrows: e.entryBorrows[b].Clone(),
			Iterations:   e.iterations[b],
			History:      e.history[b],
		}
		free, bor, err := e.transferBlock(b, rec)
		if err != nil {
			e.result.Errors = append(e.result.Errors, err)
			continue
		}
		for _, succ := range e.body.Succs(b) {
			sb, err := e.succBridge(b, succ, free, bor)
			if err != nil {
				e.result.Errors = append(e.result.Errors, err)
				continue
			}
			rec.Terminator.Succs = append(rec.Terminator.Succs, sb)
		}
		e.result.Blocks[b] = rec
	}
}

// succBridge computes the transition from the end of block b into the
// entry state of succ.
func (e *engine) succBridge(b, succ ir.BlockIdx, free *freepcs.Summary, bor *borrows.State) (SuccBridge, error) {
	loc := e.body.Blocks[b].TerminatorLoc()
	bridge, err := NewBridge(bor, e.entryBorrows[succ], loc, e.body)
	if err != nil {
		return SuccBridge{}, err
	}
	// replay the join to collect the repacks reshaping this block's final
	// summary into the successor entry
	target := e.entryFree[succ].Clone()
	_, ops, err := e.free.Join(target, free.Clone())
	if err != nil {
		return SuccBridge{}, err
	}
	return SuccBridge{Block: succ, Bridge: bridge, Repacks: ops}, nil
}
