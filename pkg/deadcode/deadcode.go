// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package deadcode implements C8: dead-code elimination over an assembled
// item list (spec §4.8). It builds a control-flow graph over labels —
// treating the run of items between one Label and the next as that label's
// "region" — and removes any region unreachable from a given set of roots.
package deadcode

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/vylang/corec/pkg/codegen"
)

// entryRegion is the synthetic label naming the item list's leading,
// unlabeled region (code preceding the first Label item) — always a root,
// since it is where execution begins (spec §4.8: "the deploy entry
// (implicit PC 0)").
const entryRegion = ""

// region is one contiguous run of items between two Label boundaries
// (inclusive of its own leading Label item, if any).
type region struct {
	label string
	items []codegen.Item
	// fallsThrough is true unless the region's last real opcode is an
	// unconditional terminator (JUMP, RETURN, REVERT, STOP, INVALID,
	// SELFDESTRUCT), meaning control can reach the next region in program
	// order without an explicit jump.
	fallsThrough bool
}

var terminators = map[string]bool{
	"JUMP": true, "RETURN": true, "REVERT": true, "STOP": true,
	"INVALID": true, "SELFDESTRUCT": true,
}

// splitRegions partitions a flat item list into label-bounded regions.
func splitRegions(items []codegen.Item) []region {
	var regions []region

	cur := region{label: entryRegion}

	for _, it := range items {
		if it.Kind == codegen.ItemLabel {
			regions = append(regions, cur)
			cur = region{label: it.Label}
		}

		cur.items = append(cur.items, it)
	}

	regions = append(regions, cur)

	return regions
}

// lastOpcode returns the mnemonic of a region's last Opcode item, ignoring
// any trailing Tagged/Immediate items, or "" if the region has none.
func lastOpcode(items []codegen.Item) string {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Kind == codegen.ItemOpcode {
			return items[i].Mnemonic
		}
	}

	return ""
}

// outgoingLabels returns every label a region references through a
// PushLabel, PushOffset or DataLabel item, whether or not a JUMP/JUMPI
// follows it: an internal call pushes its return label well before the
// jump that eventually uses it, and that label must stay reachable.
func outgoingLabels(items []codegen.Item) []string {
	var targets []string

	for _, it := range items {
		switch it.Kind {
		case codegen.ItemPushLabel, codegen.ItemPushOffset, codegen.ItemDataLabel:
			targets = append(targets, it.Label)
		}
	}

	return targets
}

func (r *region) finalize() {
	r.fallsThrough = !terminators[lastOpcode(r.items)]
}

// Eliminate removes every region unreachable from roots (plus the implicit
// entry region), preserving the original item order of surviving regions
// (spec §4.8). roots should include, for the runtime program, the
// fallback/default handler and every method entry reachable from the
// selector table; the deploy program's only root is its own entry.
func Eliminate(items []codegen.Item, roots []string) []codegen.Item {
	regions := splitRegions(items)
	for i := range regions {
		regions[i].finalize()
	}

	indexByLabel := make(map[string]int, len(regions))
	for i, r := range regions {
		indexByLabel[r.label] = i
	}

	reachable := bitset.New(uint(len(regions)))

	var visit func(idx int)
	visit = func(idx int) {
		if reachable.Test(uint(idx)) {
			return
		}

		reachable.Set(uint(idx))

		r := &regions[idx]

		for _, target := range outgoingLabels(r.items) {
			if j, ok := indexByLabel[target]; ok {
				visit(j)
			}
		}

		if r.fallsThrough && idx+1 < len(regions) {
			visit(idx + 1)
		}
	}

	visit(0) // entryRegion is always regions[0]

	for _, root := range roots {
		if j, ok := indexByLabel[root]; ok {
			visit(j)
		}
	}

	var out []codegen.Item

	for i, r := range regions {
		if reachable.Test(uint(i)) {
			out = append(out, r.items...)
		}
	}

	return out
}
