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

import (
	"fmt"
	"strings"
)

// Terminator ends a basic block and names its successors.
type Terminator interface {
	isTerminator()
	Successors() []BlockIdx
	String() string
}

// Goto jumps unconditionally.
type Goto struct {
	Target BlockIdx
}

// SwitchInt branches on the value of an operand.
type SwitchInt struct {
	Discr   Operand
	Values  []int64
	Targets []BlockIdx
	// Otherwise receives all unmatched values
	Otherwise BlockIdx
}

// Return ends the function, yielding the return place.
type Return struct{}

// Drop destroys the value at Place, then jumps to Target.
type Drop struct {
	Place  Place
	Target BlockIdx
}

// Call invokes Func with Args, storing the result in Destination.
type Call struct {
	Func        Operand
	Args        []Operand
	Destination Place
	Target      BlockIdx
	// Sig describes the callee's regions and outlives bounds, when known
	Sig *FuncSig
}

// Yield suspends a generator, yielding Value and resuming at Resume with
// the resume argument stored in ResumePlace.
type Yield struct {
	Value       Operand
	Resume      BlockIdx
	ResumePlace Place
}

// Unreachable marks a block that control flow never reaches.
type Unreachable struct{}

func (Goto) isTerminator()        {}
func (SwitchInt) isTerminator()   {}
func (Return) isTerminator()      {}
func (Drop) isTerminator()        {}
func (Call) isTerminator()        {}
func (Yield) isTerminator()       {}
func (Unreachable) isTerminator() {}

func (t Goto) Successors() []BlockIdx { return []BlockIdx{t.Target} }

func (t SwitchInt) Successors() []BlockIdx {
	succs := make([]BlockIdx, 0, len(t.Targets)+1)
	succs = append(succs, t.Targets...)
	succs = append(succs, t.Otherwise)
	return succs
}

func (Return) Successors() []BlockIdx      { return nil }
func (t Drop) Successors() []BlockIdx      { return []BlockIdx{t.Target} }
func (t Call) Successors() []BlockIdx      { return []BlockIdx{t.Target} }
func (t Yield) Successors() []BlockIdx     { return []BlockIdx{t.Resume} }
func (Unreachable) Successors() []BlockIdx { return nil }

func (t Goto) String() string { return fmt.Sprintf("goto -> %v", t.Target) }

func (t SwitchInt) String() string {
	arms := make([]string, 0, len(t.Values)+1)
	for i, v := range t.Values {
		arms = append(arms, fmt.Sprintf("%d: %v", v, t.Targets[i]))
	}
	arms = append(arms, fmt.Sprintf("otherwise: %v", t.Otherwise))
	return fmt.Sprintf("switchInt(%v) -> [%s]", t.Discr, strings.Join(arms, ", "))
}

func (Return) String() string { return "return" }

func (t Drop) String() string { return fmt.Sprintf("drop(%v) -> %v", t.Place, t.Target) }

func (t Call) String() string {
	args := make([]string, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%v = %v(%s) -> %v", t.Destination, t.Func, strings.Join(args, ", "), t.Target)
}

func (t Yield) String() string {
	return fmt.Sprintf("%v = yield(%v) -> %v", t.ResumePlace, t.Value, t.Resume)
}

func (Unreachable) String() string { return "unreachable" }

// OutlivesBound states that Longer outlives Shorter.
type OutlivesBound struct {
	Longer  Region
	Shorter Region
}

// FuncSig describes a callee as seen at a call site: the regions of its
// inputs and output, plus the outlives bounds relating them.
type FuncSig struct {
	Inputs []Type
	Output Type
	Bounds []OutlivesBound
}
