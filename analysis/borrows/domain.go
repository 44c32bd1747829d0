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

package borrows

import (
	"github.com/awslabs/pcs-go-tools/analysis/ir"
)

// Phase names one of the four states recorded per location.
type Phase int

const (
	// BeforeStart is the state before the pre-effect of the instruction
	BeforeStart Phase = iota

	// BeforeAfter is the state after the pre-effect
	BeforeAfter

	// Start is the state before the main effect
	Start

	// After is the state after the main effect
	After
)

func (p Phase) String() string {
	switch p {
	case BeforeStart:
		return "before_start"
	case BeforeAfter:
		return "before_after"
	case Start:
		return "start"
	case After:
		return "after"
	}
	return "unknown"
}

// Domain is the borrow state of one location across its four phases. The
// pre-effect installs deref expansions; the main effect applies the
// instruction itself.
type Domain struct {
	BeforeStart *State
	BeforeAfter *State
	Start       *State
	After       *State
}

// At returns the state of the given phase.
func (d *Domain) At(p Phase) *State {
	switch p {
	case BeforeStart:
		return d.BeforeStart
	case BeforeAfter:
		return d.BeforeAfter
	case Start:
		return d.Start
	}
	return d.After
}

// Transfer runs the four-phase sequence for the instruction at loc,
// starting from entry: snapshot, pre-effect, snapshot, snapshot, main
// effect. entry is not mutated.
func Transfer(v *Visitor, entry *State, stmt ir.Statement, term ir.Terminator, loc ir.Location) (*Domain, error) {
	d := &Domain{}
	work := entry.Clone()
	d.BeforeStart = work.Clone()
	var err error
	if stmt != nil {
		err = v.PrepareStatement(work, stmt, loc)
	} else {
		err = v.PrepareTerminator(work, term, loc)
	}
	if err != nil {
		return nil, err
	}
	d.BeforeAfter = work.Clone()
	d.Start = work.Clone()
	if stmt != nil {
		err = v.ApplyStatement(work, stmt, loc)
	} else {
		err = v.ApplyTerminator(work, term, loc)
	}
	if err != nil {
		return nil, err
	}
	d.After = work
	return d, nil
}
