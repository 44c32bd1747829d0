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

// Package pcserr defines the classified errors the capability analysis
// reports. Analyses accumulate these instead of failing fast, so one run
// can surface every problem a body has.
package pcserr

import (
	"errors"
	"fmt"

	"github.com/awslabs/pcs-go-tools/analysis/ir"
)

// Kind classifies an analysis error.
type Kind int

const (
	// InvalidIR marks a body the analysis cannot make sense of
	InvalidIR Kind = iota

	// CapabilityUnderflow marks an instruction requiring a capability the
	// summary does not hold
	CapabilityUnderflow

	// CyclicReborrowGraph marks a reborrow graph whose reborrow and
	// expansion edges form a cycle
	CyclicReborrowGraph

	// CyclicUnblockGraph marks an unblock request whose dependencies
	// cannot be ordered
	CyclicUnblockGraph

	// RegionOracleInconsistent marks region facts contradicting the loans
	// of the body
	RegionOracleInconsistent
)

func (k Kind) String() string {
	switch k {
	case InvalidIR:
		return "invalid-ir"
	case CapabilityUnderflow:
		return "capability-underflow"
	case CyclicReborrowGraph:
		return "cyclic-reborrow-graph"
	case CyclicUnblockGraph:
		return "cyclic-unblock-graph"
	case RegionOracleInconsistent:
		return "region-oracle-inconsistent"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified analysis error, optionally located at a program
// point of the analyzed body.
type Error struct {
	Kind Kind
	// Loc is the location the error was detected at; nil for errors not
	// tied to one point
	Loc *ir.Location
	Err error
}

func (e *Error) Error() string {
	if e.Loc != nil {
		return fmt.Sprintf("%v at %v: %v", e.Kind, *e.Loc, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Newf builds a classified error in the manner of fmt.Errorf.
func Newf(kind Kind, format string, v ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, v...)}
}

// At wraps err with a kind and the location it was detected at.
func At(kind Kind, loc ir.Location, err error) *Error {
	return &Error{Kind: kind, Loc: &loc, Err: err}
}

// KindOf extracts the kind of err, if err is or wraps an analysis error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
