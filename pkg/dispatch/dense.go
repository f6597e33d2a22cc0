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
	"fmt"

	"github.com/vylang/corec/pkg/abi"
)

// DenseBucket is one outer bucket of the dense two-layer table: a magic
// constant that makes `image_i = ((selector_i * magic) >> 24) mod size` a
// permutation of [0, size), and the methods ordered by that image (spec
// §4.7: "per-bucket entries whose order within a bucket is given by
// image_i").
type DenseBucket struct {
	Magic   uint32
	Entries []abi.Method
}

// DenseTable is the dense perfect-hash table's shape: N outer buckets,
// selected via `selector mod N`.
type DenseTable struct {
	N       int
	Buckets []DenseBucket
}

// ErrDenseTableUnsatisfiable is returned when no outer bucket count in the
// search range admits a per-bucket magic for every bucket (spec §4.7: "the
// compiler is expected to raise an internal error").
type ErrDenseTableUnsatisfiable struct {
	K int
}

func (e ErrDenseTableUnsatisfiable) Error() string {
	return fmt.Sprintf("dispatch: no dense perfect-hash table found for %d methods", e.K)
}

// image computes the inner index for a selector under a candidate magic and
// bucket size (spec §4.7 step 2).
func image(selector uint32, magic uint32, size int) int {
	return int((uint64(selector) * uint64(magic)) >> 24 % uint64(size))
}

// findMagic exhaustively searches magic in [0, 2^16) for one under which
// image() is a permutation of [0, len(methods)) (spec §4.7 step 2).
func findMagic(methods []abi.Method) (uint32, bool) {
	size := len(methods)
	if size == 0 {
		return 0, true
	}

	seen := make([]bool, size)

	for magic := uint32(0); magic < 1<<16; magic++ {
		for i := range seen {
			seen[i] = false
		}

		ok := true

		for _, m := range methods {
			idx := image(m.Selector, magic, size)
			if seen[idx] {
				ok = false
				break
			}

			seen[idx] = true
		}

		if ok {
			return magic, true
		}
	}

	return 0, false
}

// bucketOuterIndex computes step 1's outer bucket assignment.
func bucketOuterIndex(methods []abi.Method, n int) [][]abi.Method {
	buckets := make([][]abi.Method, n)
	for _, m := range methods {
		b := int(m.Selector) % n
		buckets[b] = append(buckets[b], m)
	}

	return buckets
}

// BuildDense implements spec §4.7's dense perfect-hash search: an initial
// outer bucket count guess of ceil(k/5), decreased until every bucket admits
// a magic; if the search is exhausted without success, returns
// ErrDenseTableUnsatisfiable.
func BuildDense(methods []abi.Method) (DenseTable, error) {
	k := len(methods)
	if k == 0 {
		return DenseTable{N: 1, Buckets: []DenseBucket{{Magic: 0}}}, nil
	}

	n := (k + 4) / 5
	if n < 1 {
		n = 1
	}

	for ; n >= 1; n-- {
		outer := bucketOuterIndex(methods, n)

		magics := make([]uint32, n)
		allOk := true

		for i, bucket := range outer {
			magic, ok := findMagic(bucket)
			if !ok {
				allOk = false
				break
			}

			magics[i] = magic
		}

		if !allOk {
			continue
		}

		buckets := make([]DenseBucket, n)

		for i, bucket := range outer {
			ordered := make([]abi.Method, len(bucket))

			for _, m := range bucket {
				idx := image(m.Selector, magics[i], len(bucket))
				ordered[idx] = m
			}

			buckets[i] = DenseBucket{Magic: magics[i], Entries: ordered}
		}

		return DenseTable{N: n, Buckets: buckets}, nil
	}

	return DenseTable{}, ErrDenseTableUnsatisfiable{K: k}
}
