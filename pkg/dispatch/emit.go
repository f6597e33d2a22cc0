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
package dispatch

import (
	"math/big"

	"github.com/vylang/corec/pkg/abi"
	"github.com/vylang/corec/pkg/codegen"
)

// methodEntry emits a single method's prologue (spec §4.7): a payable check
// for nonpayable methods, a calldatasize check gating the required argument
// words (relaxed by default_args), then an unconditional jump to the
// method's own entry label. Methods accepting dynamic bytes/strings only get
// the selector-table's own gate here; their prologue validates pointers and
// lengths itself.
func methodEntry(e *codegen.Emitter, m abi.Method, fallback string) []codegen.Item {
	var items []codegen.Item

	if m.Mutability != abi.Payable {
		items = append(items, e.Op("CALLVALUE"))
		items = append(items, e.PushLabelItem(fallback), e.Op("JUMPI"))
	}

	minWords := m.MinCalldataWords - m.DefaultArgs
	if minWords < 0 {
		minWords = 0
	}

	items = append(items, e.PushLiteral(big.NewInt(int64(4+32*minWords)))...)
	items = append(items, e.Op("CALLDATASIZE"))
	items = append(items, e.Op("LT"))
	items = append(items, e.PushLabelItem(fallback), e.Op("JUMPI"))

	items = append(items, e.PushLabelItem(m.EntryLabel), e.Op("JUMP"))

	return items
}

// Prologues builds one shared prologue block per method — labeled, rather
// than inlined at every table entry that references it, since a method can
// appear as a single dense-table candidate but the prologue itself (payable
// + calldatasize checks) is identical work regardless of how dispatch got
// there. Returns the emitted items (each prefixed by its own Label) and a
// map from method selector to that label, for EmitSparse/EmitDense to jump
// into.
func Prologues(e *codegen.Emitter, methods []abi.Method, fallback string) ([]codegen.Item, map[uint32]string) {
	var items []codegen.Item

	labels := make(map[uint32]string, len(methods))

	for _, m := range methods {
		label := e.FreshLabel("dispatch_prologue")
		labels[m.Selector] = label

		items = append(items, codegen.NewLabel(label))
		items = append(items, methodEntry(e, m, fallback)...)
	}

	return items, labels
}

// EmitSparse lowers a built SparseTable to its runtime dispatch code (spec
// §4.7): compute `b = selector mod N`, compare against each non-empty
// bucket id in ascending order (spec §5's determinism requirement) and
// branch into that bucket's body, which walks its entries comparing
// selectors directly before jumping to the matching method's prologue.
// Falls through to fallback on a full miss at either layer.
//
// Assumes the 4-byte selector (as a uint32) is already on top of the stack,
// e.g. via the standard `calldataload(0) >> 224` extraction idiom.
func EmitSparse(e *codegen.Emitter, t SparseTable, prologues map[uint32]string, fallback string) []codegen.Item {
	var items []codegen.Item

	items = append(items, e.Op("DUP1"))
	items = append(items, e.PushLiteral(big.NewInt(int64(t.N)))...)
	items = append(items, e.Op("SWAP1"), e.Op("MOD")) // [selector, bucket_id]

	ids := t.SortedBucketIDs()
	bucketLabels := make([]string, len(ids))

	for i, id := range ids {
		bucketLabels[i] = e.FreshLabel("dispatch_bucket")

		items = append(items, e.Op("DUP1"))
		items = append(items, e.PushLiteral(big.NewInt(int64(id)))...)
		items = append(items, e.Op("EQ"))
		items = append(items, e.PushLabelItem(bucketLabels[i]), e.Op("JUMPI"))
	}

	items = append(items, e.Op("POP"), e.Op("POP"))
	items = append(items, e.PushLabelItem(fallback), e.Op("JUMP"))

	for i, id := range ids {
		items = append(items, codegen.NewLabel(bucketLabels[i]))
		items = append(items, e.Op("POP")) // discard bucket_id, leaving [selector]

		for _, m := range t.Buckets[id].Methods {
			items = append(items, e.Op("DUP1"))
			items = append(items, e.PushLiteral(big.NewInt(int64(m.Selector)))...)
			items = append(items, e.Op("EQ"))
			items = append(items, e.PushLabelItem(prologues[m.Selector]), e.Op("JUMPI"))
		}

		items = append(items, e.Op("POP"))
		items = append(items, e.PushLabelItem(fallback), e.Op("JUMP"))
	}

	return items
}

// EmitDense lowers a built DenseTable to its runtime dispatch code (spec
// §4.7): compute the outer index, branch into the matching bucket, then
// compare the selector against each of that bucket's entries in turn,
// jumping to the matching method's prologue. The inner permutation index is
// not computed at runtime: a bucket of k entries costs up to k comparisons.
// Falls through to fallback on a mismatch at either layer.
//
// Assumes the 4-byte selector is already on top of the stack.
func EmitDense(e *codegen.Emitter, t DenseTable, prologues map[uint32]string, fallback string) []codegen.Item {
	var items []codegen.Item

	items = append(items, e.Op("DUP1"))
	items = append(items, e.PushLiteral(big.NewInt(int64(t.N)))...)
	items = append(items, e.Op("SWAP1"), e.Op("MOD")) // [selector, outer_id]

	outerLabels := make([]string, len(t.Buckets))

	for i := range t.Buckets {
		outerLabels[i] = e.FreshLabel("dispatch_outer")

		items = append(items, e.Op("DUP1"))
		items = append(items, e.PushLiteral(big.NewInt(int64(i)))...)
		items = append(items, e.Op("EQ"))
		items = append(items, e.PushLabelItem(outerLabels[i]), e.Op("JUMPI"))
	}

	items = append(items, e.Op("POP"), e.Op("POP"))
	items = append(items, e.PushLabelItem(fallback), e.Op("JUMP"))

	for i, bucket := range t.Buckets {
		items = append(items, codegen.NewLabel(outerLabels[i]))
		items = append(items, e.Op("POP")) // discard outer_id, leaving [selector]

		// bucket.Entries is ordered by image() (spec §4.7's per-bucket
		// permutation); every entry is compared by value in that order
		// rather than dispatched via an indirect jump table, since that
		// would require a jump-table data section codegen does not model
		// (see DESIGN.md's C7 entry).
		for _, m := range bucket.Entries {
			items = append(items, e.Op("DUP1"))
			items = append(items, e.PushLiteral(big.NewInt(int64(m.Selector)))...)
			items = append(items, e.Op("EQ"))
			items = append(items, e.PushLabelItem(prologues[m.Selector]), e.Op("JUMPI"))
		}

		items = append(items, e.Op("POP"))
		items = append(items, e.PushLabelItem(fallback), e.Op("JUMP"))
	}

	return items
}
