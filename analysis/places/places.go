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

// Package places builds the place vocabulary of the borrow tracker on top
// of the raw IR places: snapshot locations, places labelled with the
// snapshot they were taken at, and the blocked-place union covering both
// local places and the opaque targets of function-input loans.
package places

import (
	"fmt"

	"github.com/awslabs/pcs-go-tools/analysis/ir"
)

// SnapshotLocation identifies the program point a place snapshot was taken
// at: either a concrete location or the join point at the start of a block.
type SnapshotLocation struct {
	Loc ir.Location
	// AtJoin marks a snapshot taken at the join forming the entry state
	// of Loc.Block; Loc.Statement is 0 in that case.
	AtJoin bool
}

// SnapshotAt returns the snapshot location for a concrete location.
func SnapshotAt(loc ir.Location) SnapshotLocation {
	return SnapshotLocation{Loc: loc}
}

// SnapshotAtJoin returns the snapshot location for the join into block b.
func SnapshotAtJoin(b ir.BlockIdx) SnapshotLocation {
	return SnapshotLocation{Loc: ir.Location{Block: b}, AtJoin: true}
}

// Start is the snapshot location of the function entry.
var Start = SnapshotAt(ir.Start)

func (s SnapshotLocation) String() string {
	if s.AtJoin {
		return fmt.Sprintf("join(%v)", s.Loc.Block)
	}
	return s.Loc.String()
}

// Key returns a canonical string identifying s.
func (s SnapshotLocation) Key() string { return s.String() }

// PlaceSnapshot is a place whose value is the one it held at a specific
// snapshot location, not the current one.
type PlaceSnapshot struct {
	Place ir.Place
	At    SnapshotLocation
}

func (p PlaceSnapshot) String() string {
	return fmt.Sprintf("%v@%v", p.Place, p.At)
}

// MaybeOldPlace is either a current place or a snapshot of one.
type MaybeOldPlace struct {
	Place ir.Place
	// At is the snapshot the place was taken at; nil means current
	At *SnapshotLocation
}

// Current wraps a place holding its present value.
func Current(p ir.Place) MaybeOldPlace {
	return MaybeOldPlace{Place: p}
}

// Old wraps a place snapshot.
func Old(p ir.Place, at SnapshotLocation) MaybeOldPlace {
	return MaybeOldPlace{Place: p, At: &at}
}

// IsCurrent reports whether m holds the present value of its place.
func (m MaybeOldPlace) IsCurrent() bool { return m.At == nil }

// IsOld reports whether m is a snapshot.
func (m MaybeOldPlace) IsOld() bool { return m.At != nil }

func (m MaybeOldPlace) String() string {
	if m.At != nil {
		return fmt.Sprintf("%v@%v", m.Place, *m.At)
	}
	return m.Place.String()
}

// Key returns a canonical string identifying m.
func (m MaybeOldPlace) Key() string {
	if m.At != nil {
		return m.Place.Key() + "@" + m.At.Key()
	}
	return m.Place.Key()
}

// Eq reports equality of place and snapshot label.
func (m MaybeOldPlace) Eq(o MaybeOldPlace) bool {
	if !m.Place.Eq(o.Place) {
		return false
	}
	if (m.At == nil) != (o.At == nil) {
		return false
	}
	return m.At == nil || *m.At == *o.At
}

// Project returns m extended with one projection element, keeping the
// snapshot label.
func (m MaybeOldPlace) Project(elem ir.ProjectionElem) MaybeOldPlace {
	return MaybeOldPlace{Place: m.Place.Project(elem), At: m.At}
}

// Deref returns *m.
func (m MaybeOldPlace) Deref() MaybeOldPlace {
	return m.Project(ir.DerefElem{})
}

// IsPrefixOf reports whether m's place is a prefix of o's place and both
// carry the same snapshot label.
func (m MaybeOldPlace) IsPrefixOf(o MaybeOldPlace) bool {
	if (m.At == nil) != (o.At == nil) {
		return false
	}
	if m.At != nil && *m.At != *o.At {
		return false
	}
	return m.Place.IsPrefixOf(o.Place)
}

// WithPlace returns m with its place replaced, keeping the label.
func (m MaybeOldPlace) WithPlace(p ir.Place) MaybeOldPlace {
	return MaybeOldPlace{Place: p, At: m.At}
}

// BlockedPlace is the target of a blocking edge: a place of the analyzed
// body, or the opaque remote memory a function-input loan refers to.
type BlockedPlace struct {
	// Remote is true for the memory behind an input reference; Place is
	// then the bare argument local the loan came in through.
	Remote bool
	Place  MaybeOldPlace
}

// BlockedLocal wraps a place of the analyzed body.
func BlockedLocal(p MaybeOldPlace) BlockedPlace {
	return BlockedPlace{Place: p}
}

// BlockedRemote wraps the remote memory behind argument local l.
func BlockedRemote(l ir.Local) BlockedPlace {
	return BlockedPlace{Remote: true, Place: Current(ir.PlaceOf(l))}
}

func (b BlockedPlace) String() string {
	if b.Remote {
		return fmt.Sprintf("remote(%v)", b.Place.Place.Local)
	}
	return b.Place.String()
}

// Key returns a canonical string identifying b.
func (b BlockedPlace) Key() string {
	if b.Remote {
		return "remote:" + b.Place.Key()
	}
	return b.Place.Key()
}

// Eq reports equality.
func (b BlockedPlace) Eq(o BlockedPlace) bool {
	return b.Remote == o.Remote && b.Place.Eq(o.Place)
}
