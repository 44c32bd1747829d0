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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/awslabs/pcs-go-tools/analysis/facts"
	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/pcs"
	"github.com/awslabs/pcs-go-tools/internal/funcutil"
)

// The input file is a JSON bundle of lowered function bodies. Every union
// (types, places, operands, rvalues, statements, terminators) is encoded as
// an object with a "kind" discriminator next to the variant's fields.

type inputFile struct {
	Functions []functionInput `json:"functions"`
}

type functionInput struct {
	Name     string       `json:"name"`
	ArgCount int          `json:"arg_count"`
	Locals   []localInput `json:"locals"`
	Blocks   []blockInput `json:"blocks"`
	Bounds   []boundInput `json:"bounds,omitempty"`
	Facts    *factsInput  `json:"facts,omitempty"`
}

// factsInput carries borrow checker facts keyed by rich location: the
// start phase of the statement unless mid is set.
type factsInput struct {
	LoanIssuedAt      []loanFactInput `json:"loan_issued_at,omitempty"`
	LoanInvalidatedAt []loanFactInput `json:"loan_invalidated_at,omitempty"`
}

type loanFactInput struct {
	Block     int  `json:"block"`
	Statement int  `json:"statement"`
	Mid       bool `json:"mid,omitempty"`
	Loan      int  `json:"loan"`
}

func (f loanFactInput) richLocation() ir.RichLocation {
	loc := ir.Location{Block: ir.BlockIdx(f.Block), Statement: f.Statement}
	if f.Mid {
		return ir.MidOf(loc)
	}
	return ir.StartOf(loc)
}

type localInput struct {
	Name       string          `json:"name,omitempty"`
	Type       json.RawMessage `json:"type"`
	AlwaysLive bool            `json:"always_live,omitempty"`
}

type blockInput struct {
	Statements []json.RawMessage `json:"statements"`
	Terminator json.RawMessage   `json:"terminator"`
}

type boundInput struct {
	Longer  int `json:"longer"`
	Shorter int `json:"shorter"`
}

// loadInputs reads a JSON bundle of function bodies and region bounds.
func loadInputs(path string) ([]pcs.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file inputFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	inputs := make([]pcs.Input, 0, len(file.Functions))
	for _, fn := range file.Functions {
		in, err := buildInput(fn)
		if err != nil {
			return nil, fmt.Errorf("%s: function %q: %w", path, fn.Name, err)
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func buildInput(fn functionInput) (pcs.Input, error) {
	body := &ir.Body{Name: fn.Name, ArgCount: fn.ArgCount}
	for i, l := range fn.Locals {
		typ, err := decodeType(l.Type)
		if err != nil {
			return pcs.Input{}, fmt.Errorf("local _%d: %w", i, err)
		}
		body.Locals = append(body.Locals, ir.LocalDecl{
			Name:       l.Name,
			Type:       typ,
			AlwaysLive: l.AlwaysLive || i <= fn.ArgCount,
		})
	}
	for i, blk := range fn.Blocks {
		block := &ir.BasicBlock{Index: ir.BlockIdx(i)}
		for j, raw := range blk.Statements {
			stmt, err := decodeStatement(raw)
			if err != nil {
				return pcs.Input{}, fmt.Errorf("bb%d[%d]: %w", i, j, err)
			}
			block.Statements = append(block.Statements, stmt)
		}
		term, err := decodeTerminator(blk.Terminator)
		if err != nil {
			return pcs.Input{}, fmt.Errorf("bb%d terminator: %w", i, err)
		}
		block.Terminator = term
		body.Blocks = append(body.Blocks, block)
	}
	if err := body.Finalize(); err != nil {
		return pcs.Input{}, err
	}
	bounds := funcutil.Map(fn.Bounds, func(b boundInput) ir.OutlivesBound {
		return ir.OutlivesBound{Longer: ir.Region(b.Longer), Shorter: ir.Region(b.Shorter)}
	})
	return pcs.Input{Body: body, Bounds: bounds, Facts: decodeFacts(fn.Facts)}, nil
}

func decodeFacts(f *factsInput) *facts.PoloniusInput {
	if f == nil {
		return nil
	}
	pi := facts.NewPoloniusInput()
	for _, fact := range f.LoanIssuedAt {
		pi.AddIssued(fact.richLocation(), facts.BorrowIdx(fact.Loan))
	}
	for _, fact := range f.LoanInvalidatedAt {
		pi.AddInvalidated(fact.richLocation(), facts.BorrowIdx(fact.Loan))
	}
	return pi
}

// kindOf peeks at the discriminator of a union object.
func kindOf(raw json.RawMessage) (string, error) {
	var tag struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return "", err
	}
	if tag.Kind == "" {
		return "", fmt.Errorf("missing kind in %s", raw)
	}
	return tag.Kind, nil
}

func decodeMut(mut bool) ir.Mutability {
	if mut {
		return ir.Mutable
	}
	return ir.Shared
}

func decodeType(raw json.RawMessage) (ir.Type, error) {
	kind, err := kindOf(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "scalar":
		var t struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		return ir.ScalarType{Name: t.Name}, nil
	case "ref":
		var t struct {
			Region  int             `json:"region"`
			Mut     bool            `json:"mut"`
			Pointee json.RawMessage `json:"pointee"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		pointee, err := decodeType(t.Pointee)
		if err != nil {
			return nil, err
		}
		return ir.RefType{Region: ir.Region(t.Region), Mut: decodeMut(t.Mut), Pointee: pointee}, nil
	case "raw_ptr":
		var t struct {
			Mut     bool            `json:"mut"`
			Pointee json.RawMessage `json:"pointee"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		pointee, err := decodeType(t.Pointee)
		if err != nil {
			return nil, err
		}
		return ir.RawPtrType{Mut: decodeMut(t.Mut), Pointee: pointee}, nil
	case "box":
		var t struct {
			Elem json.RawMessage `json:"elem"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		elem, err := decodeType(t.Elem)
		if err != nil {
			return nil, err
		}
		return ir.BoxType{Elem: elem}, nil
	case "adt":
		var t struct {
			Name     string `json:"name"`
			Variants []struct {
				Name   string `json:"name,omitempty"`
				Fields []struct {
					Name string          `json:"name,omitempty"`
					Type json.RawMessage `json:"type"`
				} `json:"fields"`
			} `json:"variants"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		adt := ir.AdtType{Name: t.Name}
		for _, v := range t.Variants {
			variant := ir.VariantDecl{Name: v.Name}
			for _, f := range v.Fields {
				ft, err := decodeType(f.Type)
				if err != nil {
					return nil, err
				}
				variant.Fields = append(variant.Fields, ir.FieldDecl{Name: f.Name, Type: ft})
			}
			adt.Variants = append(adt.Variants, variant)
		}
		return adt, nil
	case "tuple":
		var t struct {
			Elems []json.RawMessage `json:"elems"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		tup := ir.TupleType{}
		for _, e := range t.Elems {
			et, err := decodeType(e)
			if err != nil {
				return nil, err
			}
			tup.Elems = append(tup.Elems, et)
		}
		return tup, nil
	case "array":
		var t struct {
			Elem json.RawMessage `json:"elem"`
			Len  int             `json:"len"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		elem, err := decodeType(t.Elem)
		if err != nil {
			return nil, err
		}
		return ir.ArrayType{Elem: elem, Len: t.Len}, nil
	case "slice":
		var t struct {
			Elem json.RawMessage `json:"elem"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		elem, err := decodeType(t.Elem)
		if err != nil {
			return nil, err
		}
		return ir.SliceType{Elem: elem}, nil
	}
	return nil, fmt.Errorf("unknown type kind %q", kind)
}

type placeInput struct {
	Local      int               `json:"local"`
	Projection []json.RawMessage `json:"projection,omitempty"`
}

func decodePlaceInput(p placeInput) (ir.Place, error) {
	place := ir.PlaceOf(ir.Local(p.Local))
	for _, raw := range p.Projection {
		kind, err := kindOf(raw)
		if err != nil {
			return ir.Place{}, err
		}
		switch kind {
		case "deref":
			place = place.Deref()
		case "field":
			var e struct {
				Index int `json:"index"`
			}
			if err := json.Unmarshal(raw, &e); err != nil {
				return ir.Place{}, err
			}
			place = place.Field(e.Index)
		case "downcast":
			var e struct {
				Variant int `json:"variant"`
			}
			if err := json.Unmarshal(raw, &e); err != nil {
				return ir.Place{}, err
			}
			place = place.Downcast(e.Variant)
		case "index":
			var e struct {
				Local int `json:"local"`
			}
			if err := json.Unmarshal(raw, &e); err != nil {
				return ir.Place{}, err
			}
			place = place.Project(ir.IndexElem{Index: ir.Local(e.Local)})
		case "constant_index":
			var e struct {
				Offset    int  `json:"offset"`
				MinLength int  `json:"min_length"`
				FromEnd   bool `json:"from_end,omitempty"`
			}
			if err := json.Unmarshal(raw, &e); err != nil {
				return ir.Place{}, err
			}
			place = place.Project(ir.ConstantIndexElem{Offset: e.Offset, MinLength: e.MinLength, FromEnd: e.FromEnd})
		case "subslice":
			var e struct {
				From    int  `json:"from"`
				To      int  `json:"to"`
				FromEnd bool `json:"from_end,omitempty"`
			}
			if err := json.Unmarshal(raw, &e); err != nil {
				return ir.Place{}, err
			}
			place = place.Project(ir.SubsliceElem{From: e.From, To: e.To, FromEnd: e.FromEnd})
		default:
			return ir.Place{}, fmt.Errorf("unknown projection kind %q", kind)
		}
	}
	return place, nil
}

func decodePlace(raw json.RawMessage) (ir.Place, error) {
	var p placeInput
	if err := json.Unmarshal(raw, &p); err != nil {
		return ir.Place{}, err
	}
	return decodePlaceInput(p)
}

func decodeOperand(raw json.RawMessage) (ir.Operand, error) {
	kind, err := kindOf(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "copy", "move":
		var o struct {
			Place placeInput `json:"place"`
		}
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
		place, err := decodePlaceInput(o.Place)
		if err != nil {
			return nil, err
		}
		if kind == "move" {
			return ir.Move{Place: place}, nil
		}
		return ir.Copy{Place: place}, nil
	case "const":
		var o struct {
			Type  json.RawMessage `json:"type"`
			Value string          `json:"value"`
		}
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, err
		}
		typ, err := decodeType(o.Type)
		if err != nil {
			return nil, err
		}
		return ir.Constant{Type: typ, Value: o.Value}, nil
	}
	return nil, fmt.Errorf("unknown operand kind %q", kind)
}

func decodeOperands(raws []json.RawMessage) ([]ir.Operand, error) {
	ops := make([]ir.Operand, 0, len(raws))
	for _, raw := range raws {
		op, err := decodeOperand(raw)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func decodeRvalue(raw json.RawMessage) (ir.Rvalue, error) {
	kind, err := kindOf(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "use":
		var r struct {
			Operand json.RawMessage `json:"operand"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		op, err := decodeOperand(r.Operand)
		if err != nil {
			return nil, err
		}
		return ir.UseRvalue{Operand: op}, nil
	case "ref":
		var r struct {
			Region int        `json:"region"`
			Mut    bool       `json:"mut"`
			Place  placeInput `json:"place"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		place, err := decodePlaceInput(r.Place)
		if err != nil {
			return nil, err
		}
		return ir.RefRvalue{Region: ir.Region(r.Region), Mut: decodeMut(r.Mut), Place: place}, nil
	case "address_of":
		var r struct {
			Mut   bool       `json:"mut"`
			Place placeInput `json:"place"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		place, err := decodePlaceInput(r.Place)
		if err != nil {
			return nil, err
		}
		return ir.AddressOf{Mut: decodeMut(r.Mut), Place: place}, nil
	case "aggregate":
		var r struct {
			Type     json.RawMessage   `json:"type"`
			Variant  int               `json:"variant,omitempty"`
			Operands []json.RawMessage `json:"operands"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		typ, err := decodeType(r.Type)
		if err != nil {
			return nil, err
		}
		ops, err := decodeOperands(r.Operands)
		if err != nil {
			return nil, err
		}
		return ir.AggregateRvalue{Type: typ, Variant: r.Variant, Operands: ops}, nil
	case "cast":
		var r struct {
			Operand json.RawMessage `json:"operand"`
			Type    json.RawMessage `json:"type"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		op, err := decodeOperand(r.Operand)
		if err != nil {
			return nil, err
		}
		typ, err := decodeType(r.Type)
		if err != nil {
			return nil, err
		}
		return ir.CastRvalue{Operand: op, Type: typ}, nil
	case "binary_op":
		var r struct {
			Op    string          `json:"op"`
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		left, err := decodeOperand(r.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeOperand(r.Right)
		if err != nil {
			return nil, err
		}
		return ir.BinaryOpRvalue{Op: r.Op, Left: left, Right: right}, nil
	case "discriminant":
		var r struct {
			Place placeInput `json:"place"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		place, err := decodePlaceInput(r.Place)
		if err != nil {
			return nil, err
		}
		return ir.DiscriminantRvalue{Place: place}, nil
	case "len":
		var r struct {
			Place placeInput `json:"place"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		place, err := decodePlaceInput(r.Place)
		if err != nil {
			return nil, err
		}
		return ir.LenRvalue{Place: place}, nil
	case "shallow_init_box":
		var r struct {
			Operand json.RawMessage `json:"operand"`
			Type    json.RawMessage `json:"type"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		op, err := decodeOperand(r.Operand)
		if err != nil {
			return nil, err
		}
		typ, err := decodeType(r.Type)
		if err != nil {
			return nil, err
		}
		return ir.ShallowInitBox{Operand: op, Type: typ}, nil
	}
	return nil, fmt.Errorf("unknown rvalue kind %q", kind)
}

func decodeStatement(raw json.RawMessage) (ir.Statement, error) {
	kind, err := kindOf(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "assign":
		var s struct {
			Place  placeInput      `json:"place"`
			Rvalue json.RawMessage `json:"rvalue"`
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		place, err := decodePlaceInput(s.Place)
		if err != nil {
			return nil, err
		}
		rv, err := decodeRvalue(s.Rvalue)
		if err != nil {
			return nil, err
		}
		return ir.Assign{Place: place, Rvalue: rv}, nil
	case "fake_read":
		place, err := decodeStatementPlace(raw)
		if err != nil {
			return nil, err
		}
		return ir.FakeRead{Place: place}, nil
	case "place_mention":
		place, err := decodeStatementPlace(raw)
		if err != nil {
			return nil, err
		}
		return ir.PlaceMention{Place: place}, nil
	case "set_discriminant":
		var s struct {
			Place   placeInput `json:"place"`
			Variant int        `json:"variant"`
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		place, err := decodePlaceInput(s.Place)
		if err != nil {
			return nil, err
		}
		return ir.SetDiscriminant{Place: place, Variant: s.Variant}, nil
	case "deinit":
		place, err := decodeStatementPlace(raw)
		if err != nil {
			return nil, err
		}
		return ir.Deinit{Place: place}, nil
	case "storage_live", "storage_dead":
		var s struct {
			Local int `json:"local"`
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if kind == "storage_live" {
			return ir.StorageLive{Local: ir.Local(s.Local)}, nil
		}
		return ir.StorageDead{Local: ir.Local(s.Local)}, nil
	case "retag":
		place, err := decodeStatementPlace(raw)
		if err != nil {
			return nil, err
		}
		return ir.Retag{Place: place}, nil
	case "nop":
		return ir.Nop{}, nil
	}
	return nil, fmt.Errorf("unknown statement kind %q", kind)
}

func decodeStatementPlace(raw json.RawMessage) (ir.Place, error) {
	var s struct {
		Place placeInput `json:"place"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return ir.Place{}, err
	}
	return decodePlaceInput(s.Place)
}

func decodeTerminator(raw json.RawMessage) (ir.Terminator, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing terminator")
	}
	kind, err := kindOf(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "goto":
		var t struct {
			Target int `json:"target"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		return ir.Goto{Target: ir.BlockIdx(t.Target)}, nil
	case "switch_int":
		var t struct {
			Discr     json.RawMessage `json:"discr"`
			Values    []int64         `json:"values"`
			Targets   []int           `json:"targets"`
			Otherwise int             `json:"otherwise"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		discr, err := decodeOperand(t.Discr)
		if err != nil {
			return nil, err
		}
		targets := funcutil.Map(t.Targets, func(b int) ir.BlockIdx { return ir.BlockIdx(b) })
		return ir.SwitchInt{
			Discr:     discr,
			Values:    t.Values,
			Targets:   targets,
			Otherwise: ir.BlockIdx(t.Otherwise),
		}, nil
	case "return":
		return ir.Return{}, nil
	case "drop":
		var t struct {
			Place  placeInput `json:"place"`
			Target int        `json:"target"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		place, err := decodePlaceInput(t.Place)
		if err != nil {
			return nil, err
		}
		return ir.Drop{Place: place, Target: ir.BlockIdx(t.Target)}, nil
	case "call":
		var t struct {
			Func        json.RawMessage   `json:"func"`
			Args        []json.RawMessage `json:"args"`
			Destination placeInput        `json:"destination"`
			Target      int               `json:"target"`
			Sig         *struct {
				Inputs []json.RawMessage `json:"inputs"`
				Output json.RawMessage   `json:"output"`
				Bounds []boundInput      `json:"bounds,omitempty"`
			} `json:"sig,omitempty"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		fn, err := decodeOperand(t.Func)
		if err != nil {
			return nil, err
		}
		args, err := decodeOperands(t.Args)
		if err != nil {
			return nil, err
		}
		dest, err := decodePlaceInput(t.Destination)
		if err != nil {
			return nil, err
		}
		call := ir.Call{Func: fn, Args: args, Destination: dest, Target: ir.BlockIdx(t.Target)}
		if t.Sig != nil {
			sig := &ir.FuncSig{}
			for _, in := range t.Sig.Inputs {
				it, err := decodeType(in)
				if err != nil {
					return nil, err
				}
				sig.Inputs = append(sig.Inputs, it)
			}
			if len(t.Sig.Output) != 0 {
				out, err := decodeType(t.Sig.Output)
				if err != nil {
					return nil, err
				}
				sig.Output = out
			}
			sig.Bounds = funcutil.Map(t.Sig.Bounds, func(b boundInput) ir.OutlivesBound {
				return ir.OutlivesBound{Longer: ir.Region(b.Longer), Shorter: ir.Region(b.Shorter)}
			})
			call.Sig = sig
		}
		return call, nil
	case "yield":
		var t struct {
			Value       json.RawMessage `json:"value"`
			Resume      int             `json:"resume"`
			ResumePlace placeInput      `json:"resume_place"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, err
		}
		value, err := decodeOperand(t.Value)
		if err != nil {
			return nil, err
		}
		place, err := decodePlaceInput(t.ResumePlace)
		if err != nil {
			return nil, err
		}
		return ir.Yield{Value: value, Resume: ir.BlockIdx(t.Resume), ResumePlace: place}, nil
	case "unreachable":
		return ir.Unreachable{}, nil
	}
	return nil, fmt.Errorf("unknown terminator kind %q", kind)
}
