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

import "fmt"

// Builder constructs a Body incrementally. Blocks are created on demand;
// Build finalizes the body and reports construction errors.
type Builder struct {
	body *Body
	cur  *BasicBlock
	err  error
}

// NewBuilder starts a body named name with the given argument types and
// return type. Locals 1..len(args) are the arguments.
func NewBuilder(name string, ret Type, args ...Type) *Builder {
	locals := make([]LocalDecl, 0, len(args)+1)
	locals = append(locals, LocalDecl{Name: "ret", Type: ret, AlwaysLive: true})
	for i, at := range args {
		locals = append(locals, LocalDecl{Name: fmt.Sprintf("arg%d", i+1), Type: at, AlwaysLive: true})
	}
	b := &Builder{body: &Body{Name: name, Locals: locals, ArgCount: len(args)}}
	b.cur = b.Block(StartBlock)
	return b
}

// Local declares a new temporary of type t and returns it.
func (b *Builder) Local(t Type) Local {
	b.body.Locals = append(b.body.Locals, LocalDecl{Type: t})
	return Local(len(b.body.Locals) - 1)
}

// NamedLocal declares a new named local of type t.
func (b *Builder) NamedLocal(name string, t Type) Local {
	b.body.Locals = append(b.body.Locals, LocalDecl{Name: name, Type: t})
	return Local(len(b.body.Locals) - 1)
}

// Block returns the block with index idx, creating it and any blocks with
// smaller indices as needed. Subsequent Stmt calls append to it.
func (b *Builder) Block(idx BlockIdx) *BasicBlock {
	for len(b.body.Blocks) <= int(idx) {
		b.body.Blocks = append(b.body.Blocks, &BasicBlock{Index: BlockIdx(len(b.body.Blocks))})
	}
	b.cur = b.body.Blocks[idx]
	return b.cur
}

// Stmt appends a statement to the current block.
func (b *Builder) Stmt(s Statement) *Builder {
	if b.cur.Terminator != nil {
		b.fail("statement after terminator in %v", b.cur.Index)
		return b
	}
	b.cur.Statements = append(b.cur.Statements, s)
	return b
}

// Term sets the terminator of the current block.
func (b *Builder) Term(t Terminator) *Builder {
	if b.cur.Terminator != nil {
		b.fail("second terminator in %v", b.cur.Index)
		return b
	}
	b.cur.Terminator = t
	return b
}

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
}

// Build finalizes and returns the body.
func (b *Builder) Build() (*Body, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.body.Finalize(); err != nil {
		return nil, err
	}
	return b.body, nil
}

// MustBuild is Build for fixtures where construction cannot fail.
func (b *Builder) MustBuild() *Body {
	body, err := b.Build()
	if err != nil {
		panic(err)
	}
	return body
}
