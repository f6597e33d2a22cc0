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

// Package dispatch builds the selector-dispatch table (spec §4.7): a sparse
// mod-N bucket table for optimize=gas, or a dense two-layer perfect-hash
// table for optimize=codesize. Both take the same []abi.Method input, run
// entirely deterministically (no process-random source, per spec §5), and
// produce a bucket-assignment result that pkg/compiler lowers to
// pkg/codegen items.
package dispatch

import (
	"fmt"
	"math"
	"sort"

	"github.com/vylang/corec/pkg/abi"
)

// SparseBucket is one bucket of a sparse mod-N table: the set of methods
// whose selector maps to this bucket id, in input order (spec §4.7:
// "selectors are processed in input order").
type SparseBucket struct {
	Methods []abi.Method
}

// SparseTable is the sparse dispatch table's shape: N buckets, selected via
// `selector mod N`.
type SparseTable struct {
	N       int
	Buckets []SparseBucket
}

// bucketSizes returns the number of methods in each of the n buckets for a
// trial N; BuildSparse takes their maximum to pick the minimizing N within
// spec §4.7's search window.
func bucketSizes(methods []abi.Method, n int) []int {
	sizes := make([]int, n)

	for _, m := range methods {
		sizes[int(m.Selector)%n]++
	}

	return sizes
}

func worstBucket(sizes []int) int {
	w := 0
	for _, s := range sizes {
		if s > w {
			w = s
		}
	}

	return w
}

// BuildSparse chooses N in [ceil(0.85k), ceil(1.15k)] minimizing the
// worst-bucket size (spec §4.7), then assigns every method to its
// `selector mod N` bucket in input order.
func BuildSparse(methods []abi.Method) SparseTable {
	k := len(methods)
	if k == 0 {
		return SparseTable{N: 1, Buckets: []SparseBucket{{}}}
	}

	lo := int(math.Ceil(0.85 * float64(k)))
	hi := int(math.Ceil(1.15 * float64(k)))

	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}

	bestN := lo
	bestWorst := math.MaxInt

	for n := lo; n <= hi; n++ {
		w := worstBucket(bucketSizes(methods, n))
		if w < bestWorst {
			bestWorst = w
			bestN = n
		}
	}

	buckets := make([]SparseBucket, bestN)
	for _, m := range methods {
		b := int(m.Selector) % bestN
		buckets[b].Methods = append(buckets[b].Methods, m)
	}

	return SparseTable{N: bestN, Buckets: buckets}
}

// SortedBucketIDs returns bucket indices in ascending order, per spec §4.7's
// determinism requirement ("the returned bucket map is iterated by bucket id
// in ascending order when emitting").
func (t SparseTable) SortedBucketIDs() []int {
	ids := make([]int, 0, len(t.Buckets))
	for i, b := range t.Buckets {
		if len(b.Methods) > 0 {
			ids = append(ids, i)
		}
	}

	sort.Ints(ids)

	return ids
}

// String is a debug rendering, not used by any codegen path.
func (t SparseTable) String() string {
	return fmt.Sprintf("SparseTable{N=%d, buckets=%d}", t.N, len(t.Buckets))
}
