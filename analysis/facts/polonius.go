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

package facts

import (
	"fmt"

	"github.com/awslabs/pcs-go-tools/analysis/ir"
)

// PoloniusInput is the loan fact bundle the upstream borrow checker emits
// for one body: the rich locations each loan is issued and invalidated at.
// Facts are bucketed at the start and mid point of a location separately,
// so the pre-effect and the main effect of an instruction each see their
// own rows. Indices that name no loan of the borrow set are ignored.
type PoloniusInput struct {
	issuedAt      map[ir.RichLocation][]BorrowIdx
	invalidatedAt map[ir.RichLocation][]BorrowIdx
}

// NewPoloniusInput returns an empty fact bundle.
func NewPoloniusInput() *PoloniusInput {
	return &PoloniusInput{
		issuedAt:      make(map[ir.RichLocation][]BorrowIdx),
		invalidatedAt: make(map[ir.RichLocation][]BorrowIdx),
	}
}

// AddIssued records that loan is issued at the given point.
func (p *PoloniusInput) AddIssued(at ir.RichLocation, loan BorrowIdx) {
	p.issuedAt[at] = append(p.issuedAt[at], loan)
}

// AddInvalidated records that loan is invalidated at the given point.
func (p *PoloniusInput) AddInvalidated(at ir.RichLocation, loan BorrowIdx) {
	p.invalidatedAt[at] = append(p.invalidatedAt[at], loan)
}

// IssuedAt returns the loans issued at the given point.
func (p *PoloniusInput) IssuedAt(at ir.RichLocation) []BorrowIdx {
	if p == nil {
		return nil
	}
	return p.issuedAt[at]
}

// InvalidatedAt returns the loans invalidated at the given point.
func (p *PoloniusInput) InvalidatedAt(at ir.RichLocation) []BorrowIdx {
	if p == nil {
		return nil
	}
	return p.invalidatedAt[at]
}

// CheckIssued verifies the issuance facts against the borrow set: a known
// loan index issued at some point must name the loan reserved at that
// point's location. Unknown indices are skipped, matching how the
// analysis consumes invalidation facts.
func (p *PoloniusInput) CheckIssued(bs *BorrowSet) error {
	if p == nil {
		return nil
	}
	for at, loans := range p.issuedAt {
		for _, idx := range loans {
			if int(idx) < 0 || int(idx) >= bs.Len() {
				continue
			}
			if reserve := bs.Get(idx).Reserve; reserve != at.Loc {
				return fmt.Errorf("loan %v issued at %v but reserved at %v", idx, at, reserve)
			}
		}
	}
	return nil
}
