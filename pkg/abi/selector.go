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

// Package abi computes ABI v2 method selectors and builds the method
// identifiers map the compiled-artifact bundle exposes (spec §6's `abi`
// output and the `method_id` helper §4.7's dispatch table builder consumes).
package abi

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Mutability classifies a function's state-mutability for both the ABI JSON
// entry and the selector table's payable check (spec §4.7).
type Mutability uint8

const (
	Pure Mutability = iota
	View
	Nonpayable
	Payable
)

func (m Mutability) String() string {
	switch m {
	case Pure:
		return "pure"
	case View:
		return "view"
	case Payable:
		return "payable"
	default:
		return "nonpayable"
	}
}

// Selector returns the 4-byte method selector for a canonical signature
// (`name(type1,type2,...)`), computed as `keccak256(signature)[:4]`
// interpreted as a big-endian uint32 (spec §4.7).
func Selector(signature string) uint32 {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	sum := h.Sum(nil)

	return binary.BigEndian.Uint32(sum[:4])
}

// MethodID is Selector's 4-byte form, as used in calldata and in
// `utils.method_id`-style fixtures.
func MethodID(signature string) [4]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	sum := h.Sum(nil)

	var id [4]byte
	copy(id[:], sum[:4])

	return id
}

// Method describes one externally callable function, as consumed by
// pkg/dispatch's table builders and surfaced in the ABI JSON array.
type Method struct {
	// Name is the function's declared name.
	Name string
	// Signature is the canonical ABI signature used to derive Selector.
	Signature string
	// Selector is Selector(Signature), cached at construction time since
	// both dispatch table variants hash it many times during bucket search.
	Selector uint32
	// Mutability gates the payable check (spec §4.7).
	Mutability Mutability
	// EntryLabel names the function's assembly entry point (pkg/codegen's
	// InternalCall target).
	EntryLabel string
	// MinCalldataWords is the number of required 32-byte argument words,
	// excluding the 4-byte selector prefix.
	MinCalldataWords int
	// DefaultArgs is the number of trailing parameters with default values;
	// a call may omit up to this many trailing words (spec §4.7).
	DefaultArgs int
	// DynamicArgs marks a method that accepts dynamic bytes/strings, whose
	// prologue (not the selector table) validates calldata pointers/lengths.
	DynamicArgs bool
	// Outputs holds the ABI type strings of this method's return values, for
	// JSON rendering (spec §6's `abi` output). Not derivable from Signature,
	// which only ever encodes input types.
	Outputs []string
}

// WithOutputs attaches this method's ABI output types, returning a copy for
// chaining at the construction site.
func (m Method) WithOutputs(outputs []string) Method {
	m.Outputs = outputs
	return m
}

// NewMethod constructs a Method, computing its selector from signature.
func NewMethod(name, signature, entryLabel string, mutability Mutability, minWords, defaultArgs int, dynamicArgs bool) Method {
	return Method{
		Name:             name,
		Signature:        signature,
		Selector:         Selector(signature),
		Mutability:       mutability,
		EntryLabel:       entryLabel,
		MinCalldataWords: minWords,
		DefaultArgs:      defaultArgs,
		DynamicArgs:      dynamicArgs,
	}
}
