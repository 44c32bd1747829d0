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
	"fmt"

	"github.com/awslabs/pcs-go-tools/analysis/facts"
	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/pcserr"
	"github.com/awslabs/pcs-go-tools/analysis/places"
)

// Visitor applies the borrow effects of instructions to a state.
type Visitor struct {
	body    *ir.Body
	borrows *facts.BorrowSet
	regions *facts.RegionContext
	// inval holds the borrow-checker fact bundle; nil means no
	// invalidation facts were supplied
	inval *facts.PoloniusInput
}

// NewVisitor returns a visitor over body with the given facts. inval may
// be nil.
func NewVisitor(body *ir.Body, borrows *facts.BorrowSet, regions *facts.RegionContext, inval *facts.PoloniusInput) *Visitor {
	return &Visitor{body: body, borrows: borrows, regions: regions, inval: inval}
}

// PrepareStatement kills the loans invalidated at the start point of loc,
// then installs the deref expansions the statement needs to reach the
// places it uses. This is the effect applied before the statement's own.
func (v *Visitor) PrepareStatement(s *State, stmt ir.Statement, loc ir.Location) error {
	v.killInvalidated(s, ir.StartOf(loc))
	for _, p := range statementPlaces(stmt) {
		if err := v.ensureExpansionTo(s, p, loc); err != nil {
			return err
		}
	}
	return nil
}

// ApplyStatement applies the main borrow effect of stmt at loc.
func (v *Visitor) ApplyStatement(s *State, stmt ir.Statement, loc ir.Location) error {
	v.killInvalidated(s, ir.MidOf(loc))
	block := loc.Block
	switch st := stmt.(type) {
	case ir.Assign:
		v.killReborrowsAssignedTo(s, st.Place)
		s.Latest.Record(st.Place, loc)
		if st.Place.IsLocal() {
			// surviving occurrences of the local now name its previous value
			s.MakePlaceOld(st.Place)
		}
		if err := v.applyRvalue(s, st.Place, st.Rvalue, loc, block); err != nil {
			return err
		}
	case ir.StorageDead:
		t := v.body.LocalType(st.Local)
		if ir.IsRef(t) {
			s.MakePlaceOld(ir.PlaceOf(st.Local))
		}
	}
	return s.Graph.CheckAcyclic(loc)
}

// PrepareTerminator kills the loans invalidated at the start point of loc
// and installs expansions for the places the terminator uses.
func (v *Visitor) PrepareTerminator(s *State, term ir.Terminator, loc ir.Location) error {
	v.killInvalidated(s, ir.StartOf(loc))
	for _, p := range terminatorPlaces(term) {
		if err := v.ensureExpansionTo(s, p, loc); err != nil {
			return err
		}
	}
	return nil
}

// ApplyTerminator applies the borrow effect of term at loc. Calls build a
// region abstraction relating lent arguments to the destination.
func (v *Visitor) ApplyTerminator(s *State, term ir.Terminator, loc ir.Location) error {
	v.killInvalidated(s, ir.MidOf(loc))
	call, ok := term.(ir.Call)
	if !ok {
		return nil
	}
	return v.applyCall(s, call, loc)
}

// killInvalidated removes every reborrow whose loan the fact bundle
// invalidates at the given point. Indices naming no loan of the borrow
// set are skipped.
func (v *Visitor) killInvalidated(s *State, at ir.RichLocation) {
	for _, idx := range v.inval.InvalidatedAt(at) {
		if int(idx) < 0 || int(idx) >= v.borrows.Len() {
			continue
		}
		reserve := v.borrows.Get(idx).Reserve
		for _, e := range s.Graph.Edges() {
			if rb, ok := e.Kind.(Reborrow); ok && rb.Reserve == reserve {
				s.Graph.Remove(rb)
			}
		}
	}
}

// applyRvalue handles the loan-shaping right-hand sides of an assignment.
func (v *Visitor) applyRvalue(s *State, dest ir.Place, rv ir.Rvalue, loc ir.Location, block ir.BlockIdx) error {
	switch r := rv.(type) {
	case ir.RefRvalue:
		region := r.Region
		if loan, ok := v.borrows.AtReserve(loc); ok {
			region = loan.Region
		}
		s.Graph.Insert(Edge{
			Conditions: NewPathConditions(block),
			Kind: Reborrow{
				BlockedPlace: places.BlockedLocal(places.Current(r.Place)),
				Assigned:     places.Current(dest.Deref()),
				Mut:          r.Mut,
				Region:       region,
				Reserve:      loc,
			},
		})
	case ir.UseRvalue:
		switch op := r.Operand.(type) {
		case ir.Move:
			t, err := op.Place.TypeIn(v.body)
			if err != nil {
				return pcserr.At(pcserr.InvalidIR, loc, err)
			}
			if ir.IsRef(t) {
				// loans through the moved reference now live through dest
				s.Graph.RetargetAssigned(op.Place.Deref(), dest.Deref())
				s.MakePlaceOld(op.Place)
			}
		case ir.Copy:
			t, err := op.Place.TypeIn(v.body)
			if err != nil {
				return pcserr.At(pcserr.InvalidIR, loc, err)
			}
			if ref, ok := t.(ir.RefType); ok && ref.Mut == ir.Shared {
				// a copied shared reference aliases the same loan
				s.Graph.Insert(Edge{
					Conditions: NewPathConditions(block),
					Kind: Reborrow{
						BlockedPlace: places.BlockedLocal(places.Current(op.Place.Deref())),
						Assigned:     places.Current(dest.Deref()),
						Mut:          ir.Shared,
						Region:       ref.Region,
						Reserve:      loc,
					},
				})
			}
		}
	case ir.AggregateRvalue:
		for _, op := range r.Operands {
			p, ok := ir.OperandPlace(op)
			if !ok {
				continue
			}
			t, err := p.TypeIn(v.body)
			if err != nil {
				return pcserr.At(pcserr.InvalidIR, loc, err)
			}
			for _, region := range ir.RegionsOf(t) {
				s.Graph.Insert(Edge{
					Conditions: NewPathConditions(block),
					Kind: RegionProjectionMember{
						Member: places.BlockedLocal(places.Current(p)),
						Host:   places.Current(dest),
						Region: region,
						Loc:    loc,
					},
				})
			}
		}
	}
	return nil
}

// applyCall summarizes the callee: every reference argument whose region
// may flow into the result blocks behind the destination until the
// destination dies.
func (v *Visitor) applyCall(s *State, call ir.Call, loc ir.Location) error {
	var inputs []places.BlockedPlace
	outRegions := ir.RegionsOf(v.destType(call))
	for _, arg := range call.Args {
		p, ok := ir.OperandPlace(arg)
		if !ok {
			continue
		}
		t, err := p.TypeIn(v.body)
		if err != nil {
			return pcserr.At(pcserr.InvalidIR, loc, err)
		}
		for _, argRegion := range ir.RegionsOf(t) {
			if v.flowsIntoResult(argRegion, outRegions, call.Sig) {
				inputs = append(inputs, places.BlockedLocal(places.Current(p.Deref())))
				break
			}
		}
	}
	// the callee consumes moved arguments; reborrows living through them
	// end at the call
	for _, arg := range call.Args {
		mv, ok := arg.(ir.Move)
		if !ok {
			continue
		}
		v.killReborrowsThroughArg(s, mv.Place)
	}
	if len(inputs) == 0 {
		return nil
	}
	s.Graph.Insert(Edge{
		Conditions: NewPathConditions(loc.Block),
		Kind: RegionAbstraction{
			Loc:     loc,
			Inputs:  inputs,
			Outputs: []places.MaybeOldPlace{places.Current(call.Destination)},
		},
	})
	return s.Graph.CheckAcyclic(loc)
}

// killReborrowsThroughArg removes loans whose reference lives in or under
// the moved argument arg.
func (v *Visitor) killReborrowsThroughArg(s *State, arg ir.Place) {
	for _, e := range s.Graph.Edges() {
		rb, ok := e.Kind.(Reborrow)
		if !ok {
			continue
		}
		if rb.Assigned.IsCurrent() && arg.IsPrefixOf(rb.Assigned.Place) {
			s.Graph.Remove(rb)
		}
	}
}

func (v *Visitor) destType(call ir.Call) ir.Type {
	t, err := call.Destination.TypeIn(v.body)
	if err != nil {
		return ir.ScalarType{Name: "unknown"}
	}
	return t
}

// flowsIntoResult decides whether a loan in argRegion can survive the call
// through one of the result regions, per the outlives oracle.
func (v *Visitor) flowsIntoResult(argRegion ir.Region, outRegions []ir.Region, sig *ir.FuncSig) bool {
	if len(outRegions) == 0 {
		return false
	}
	oracle := v.regions
	if sig != nil {
		oracle = facts.NewRegionContext(sig.Bounds)
	}
	for _, out := range outRegions {
		if argRegion == out || oracle.Outlives(argRegion, out) {
			return true
		}
	}
	return false
}

// killReborrowsAssignedTo removes loans whose reference lived in place:
// overwriting the reference ends them.
func (v *Visitor) killReborrowsAssignedTo(s *State, place ir.Place) {
	for _, e := range s.Graph.Edges() {
		rb, ok := e.Kind.(Reborrow)
		if !ok {
			continue
		}
		if rb.Assigned.IsCurrent() && place.Deref().IsPrefixOf(rb.Assigned.Place) {
			s.Graph.Remove(rb)
		}
	}
}

// ensureExpansionTo walks the projection of place and inserts the deref
// expansions needed so every step past a pointer is present in the graph.
func (v *Visitor) ensureExpansionTo(s *State, place ir.Place, loc ir.Location) error {
	t := v.body.LocalType(place.Local)
	for i, e := range place.Projection {
		base := ir.Place{Local: place.Local, Projection: place.Projection[:i]}
		if _, isDeref := e.(ir.DerefElem); isDeref {
			switch t.(type) {
			case ir.RefType:
				exp := DerefExpansion{
					Base:  places.Current(base),
					Elems: []ir.ProjectionElem{ir.DerefElem{}},
					Loc:   loc,
				}
				if !v.hasExpansionFor(s, places.Current(base)) {
					s.Graph.Insert(Edge{Conditions: NewPathConditions(loc.Block), Kind: exp})
				}
			case ir.BoxType:
				exp := DerefExpansion{
					Base:  places.Current(base),
					Owned: true,
					Loc:   loc,
				}
				if !v.hasExpansionFor(s, places.Current(base)) {
					s.Graph.Insert(Edge{Conditions: NewPathConditions(loc.Block), Kind: exp})
				}
			case ir.RawPtrType:
				// capabilities are not tracked through raw pointers
				return nil
			default:
				return pcserr.At(pcserr.InvalidIR, loc,
					fmt.Errorf("deref of non-pointer %v in %v", base, place))
			}
		}
		next, err := ir.Place{Local: place.Local, Projection: place.Projection[:i+1]}.TypeIn(v.body)
		if err != nil {
			return pcserr.At(pcserr.InvalidIR, loc, err)
		}
		t = next
	}
	return s.Graph.CheckAcyclic(loc)
}

func (v *Visitor) hasExpansionFor(s *State, base places.MaybeOldPlace) bool {
	for _, e := range s.Graph.Edges() {
		de, ok := e.Kind.(DerefExpansion)
		if !ok {
			continue
		}
		if de.Base.Eq(base) {
			return true
		}
	}
	return false
}

func statementPlaces(stmt ir.Statement) []ir.Place {
	var out []ir.Place
	add := func(p ir.Place) { out = append(out, p) }
	addOperand := func(op ir.Operand) {
		if p, ok := ir.OperandPlace(op); ok {
			add(p)
		}
	}
	switch s := stmt.(type) {
	case ir.Assign:
		add(s.Place)
		for _, op := range ir.RvalueOperands(s.Rvalue) {
			addOperand(op)
		}
		switch r := s.Rvalue.(type) {
		case ir.RefRvalue:
			add(r.Place)
		case ir.AddressOf:
			add(r.Place)
		case ir.DiscriminantRvalue:
			add(r.Place)
		case ir.LenRvalue:
			add(r.Place)
		}
	case ir.FakeRead:
		add(s.Place)
	case ir.PlaceMention:
		add(s.Place)
	case ir.SetDiscriminant:
		add(s.Place)
	case ir.Deinit:
		add(s.Place)
	case ir.Retag:
		add(s.Place)
	}
	return out
}

func terminatorPlaces(term ir.Terminator) []ir.Place {
	var out []ir.Place
	addOperand := func(op ir.Operand) {
		if p, ok := ir.OperandPlace(op); ok {
			out = append(out, p)
		}
	}
	switch t := term.(type) {
	case ir.SwitchInt:
		addOperand(t.Discr)
	case ir.Drop:
		out = append(out, t.Place)
	case ir.Call:
		addOperand(t.Func)
		for _, a := range t.Args {
			addOperand(a)
		}
		out = append(out, t.Destination)
	case ir.Yield:
		addOperand(t.Value)
		out = append(out, t.ResumePlace)
	}
	return out
}
