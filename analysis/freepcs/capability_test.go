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

package freepcs

import "testing"

func TestCapabilityIsAtLeast(t *testing.T) {
	cases := []struct {
		k, o CapabilityKind
		want bool
	}{
		{Exclusive, Exclusive, true},
		{Exclusive, Write, true},
		{Exclusive, ShallowExclusive, true},
		{Write, Write, true},
		{Write, Exclusive, false},
		{Write, ShallowExclusive, false},
		{ShallowExclusive, Write, false},
		{ShallowExclusive, Exclusive, false},
		{ShallowExclusive, ShallowExclusive, true},
	}
	for _, c := range cases {
		if got := c.k.IsAtLeast(c.o); got != c.want {
			t.Errorf("%v.IsAtLeast(%v) = %v, want %v", c.k, c.o, got, c.want)
		}
	}
}

func TestCapabilityGlb(t *testing.T) {
	cases := []struct {
		k, o  CapabilityKind
		want  CapabilityKind
		hasIt bool
	}{
		{Exclusive, Exclusive, Exclusive, true},
		{Exclusive, Write, Write, true},
		{Write, Exclusive, Write, true},
		{Exclusive, ShallowExclusive, ShallowExclusive, true},
		{ShallowExclusive, Exclusive, ShallowExclusive, true},
		{Write, ShallowExclusive, 0, false},
		{ShallowExclusive, Write, 0, false},
	}
	for _, c := range cases {
		got, ok := c.k.Glb(c.o)
		if ok != c.hasIt || (ok && got != c.want) {
			t.Errorf("%v.Glb(%v) = %v, %v; want %v, %v", c.k, c.o, got, ok, c.want, c.hasIt)
		}
	}
}
