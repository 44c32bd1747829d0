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
	"path/filepath"
	"testing"

	"github.com/awslabs/pcs-go-tools/analysis/config"
	"github.com/awslabs/pcs-go-tools/analysis/facts"
	"github.com/awslabs/pcs-go-tools/analysis/ir"
	"github.com/awslabs/pcs-go-tools/analysis/pcs"
)

func TestLoadInputs(t *testing.T) {
	inputs, err := loadInputs(filepath.Join("testdata", "reborrow.json"))
	if err != nil {
		t.Fatalf("loadInputs: %v", err)
	}
	if len(inputs) != 2 {
		t.Fatalf("expected 2 functions, got %d", len(inputs))
	}

	body := inputs[0].Body
	if body.Name != "demo::json_reborrow" {
		t.Errorf("unexpected name %q", body.Name)
	}
	if len(body.Locals) != 3 || len(body.Blocks) != 1 {
		t.Fatalf("unexpected shape: %d locals, %d blocks", len(body.Locals), len(body.Blocks))
	}
	if got := len(body.Blocks[0].Statements); got != 8 {
		t.Fatalf("expected 8 statements, got %d", got)
	}
	assign, ok := body.Blocks[0].Statements[3].(ir.Assign)
	if !ok {
		t.Fatalf("statement 3 is %T, expected assign", body.Blocks[0].Statements[3])
	}
	ref, ok := assign.Rvalue.(ir.RefRvalue)
	if !ok {
		t.Fatalf("rvalue is %T, expected ref", assign.Rvalue)
	}
	if ref.Region != 1 || ref.Mut != ir.Mutable || !ref.Place.Eq(ir.PlaceOf(1)) {
		t.Errorf("unexpected ref rvalue %v", ref)
	}
	if _, ok := body.Blocks[0].Terminator.(ir.Return); !ok {
		t.Errorf("terminator is %T, expected return", body.Blocks[0].Terminator)
	}
	if inputs[0].Facts == nil {
		t.Fatalf("expected loan facts on the first function")
	}
	issued := inputs[0].Facts.IssuedAt(ir.MidOf(ir.Location{Block: 0, Statement: 3}))
	if len(issued) != 1 || issued[0] != facts.BorrowIdx(0) {
		t.Errorf("unexpected issuance facts %v", issued)
	}
	inval := inputs[0].Facts.InvalidatedAt(ir.StartOf(ir.Location{Block: 0, Statement: 6}))
	if len(inval) != 1 || inval[0] != facts.BorrowIdx(0) {
		t.Errorf("unexpected invalidation facts %v", inval)
	}
	if inputs[1].Facts != nil {
		t.Errorf("functions without a facts object carry none")
	}

	callBody := inputs[1].Body
	call, ok := callBody.Blocks[0].Terminator.(ir.Call)
	if !ok {
		t.Fatalf("terminator is %T, expected call", callBody.Blocks[0].Terminator)
	}
	if call.Sig == nil || len(call.Sig.Bounds) != 1 {
		t.Fatalf("expected a sig with one bound, got %+v", call.Sig)
	}
	if call.Sig.Bounds[0] != (ir.OutlivesBound{Longer: 1, Shorter: 2}) {
		t.Errorf("unexpected bound %v", call.Sig.Bounds[0])
	}
	if len(callBody.Blocks[1].Preds) != 1 || callBody.Blocks[1].Preds[0] != 0 {
		t.Errorf("expected bb1 preds [bb0], got %v", callBody.Blocks[1].Preds)
	}
	if !callBody.Locals[1].AlwaysLive {
		t.Errorf("argument local should be always live")
	}
}

func TestLoadedInputsAnalyze(t *testing.T) {
	inputs, err := loadInputs(filepath.Join("testdata", "reborrow.json"))
	if err != nil {
		t.Fatalf("loadInputs: %v", err)
	}
	cfg := config.NewDefault()
	logger := config.NewLogGroup(cfg)
	for name, res := range pcs.RunAll(inputs, cfg, logger) {
		if !res.Ok() {
			t.Errorf("%s: %v", name, res.Errors)
		}
	}
}

func TestLoadInputsMissingFile(t *testing.T) {
	if _, err := loadInputs(filepath.Join("testdata", "no-such.json")); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}

func TestDecodeRejectsUnknownKinds(t *testing.T) {
	if _, err := decodeStatement(json.RawMessage(`{"kind":"frob"}`)); err == nil {
		t.Errorf("expected an error for an unknown statement kind")
	}
	if _, err := decodeTerminator(json.RawMessage(`{"kind":"frob"}`)); err == nil {
		t.Errorf("expected an error for an unknown terminator kind")
	}
	if _, err := decodeType(json.RawMessage(`{"name":"i32"}`)); err == nil {
		t.Errorf("expected an error for a missing type kind")
	}
}
