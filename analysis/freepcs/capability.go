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

// Package freepcs computes the owned-place capability summary: a forward
// dataflow over the capabilities a body holds on the owned fragments of
// its locals, together with the repack operations that reshape summaries
// between program points.
package freepcs

import "fmt"

// CapabilityKind is the capability held on one owned place.
type CapabilityKind int

const (
	// Write permits overwriting the place but not reading it
	Write CapabilityKind = iota

	// ShallowExclusive permits writing through the place one level deep,
	// held on shallowly initialized boxes
	ShallowExclusive

	// Exclusive permits reading, writing and moving out of the place
	Exclusive
)

func (k CapabilityKind) String() string {
	switch k {
	case Write:
		return "W"
	case ShallowExclusive:
		return "e"
	case Exclusive:
		return "E"
	}
	return fmt.Sprintf("CapabilityKind(%d)", int(k))
}

// IsAtLeast reports whether k grants everything o grants. Write and
// ShallowExclusive are incomparable; Exclusive is above both.
func (k CapabilityKind) IsAtLeast(o CapabilityKind) bool {
	if k == o {
		return true
	}
	return k == Exclusive
}

// Glb returns the greatest lower bound of k and o, or false when the two
// have no common lower bound.
func (k CapabilityKind) Glb(o CapabilityKind) (CapabilityKind, bool) {
	if k == o {
		return k, true
	}
	if k == Exclusive {
		return o, true
	}
	if o == Exclusive {
		return k, true
	}
	// Write and ShallowExclusive meet nowhere
	return 0, false
}
