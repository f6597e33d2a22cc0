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

// Package codegen implements C6: recursively lowering the typed IR (package
// ir) into the variable-width assembly item list that the assembler (C9,
// package assembler) resolves into bytes (spec §4.6).
package codegen

import (
	"math/big"

	"github.com/vylang/corec/pkg/ast"
)

// ItemKind discriminates the shape of a single Item; spec §4.9's own
// assembler-pass-1 item vocabulary is reproduced here verbatim, since C6 is
// the package responsible for producing exactly these shapes.
type ItemKind uint8

const (
	ItemOpcode ItemKind = iota
	ItemImmediate
	ItemLabel
	ItemPushLabel
	ItemPushOffset
	ItemDataHeader
	ItemDataBytes
	ItemDataLabel
	ItemConstDef
	ItemConstAdd
	ItemConstMax
	ItemTagged
)

// Item is one entry of the assembly list. A single struct carries every
// kind, mirroring ir.Node's own shape (package ir's doc comment gives the
// same rationale: items are produced and consumed by tree-shaped passes that
// only care about a handful of fields at a time).
type Item struct {
	Kind ItemKind

	// Mnemonic is ItemOpcode's instruction name, as looked up in pkg/evm.
	Mnemonic string
	// Byte is ItemImmediate's single raw byte, always preceded by the
	// ItemOpcode items of the PUSHk instruction it belongs to.
	Byte byte

	// Label names the target of ItemLabel, ItemPushLabel, ItemDataHeader and
	// ItemDataLabel.
	Label string
	// Offset is ItemPushOffset's constant delta n (PushOffset(label, n),
	// spec §4.9).
	Offset int64

	// Bytes is ItemDataBytes's literal payload.
	Bytes []byte

	// ConstName is the name ItemConstDef/ItemConstAdd/ItemConstMax define.
	ConstName string
	// ConstA and ConstB are ItemConstAdd/ItemConstMax's operands: each is
	// either another named constant or empty (meaning ConstValue is used
	// directly as a literal operand instead).
	ConstA, ConstB string
	// ConstValue is ItemConstDef's literal value.
	ConstValue *big.Int

	// Src and ErrorMsg are ItemTagged's source-map (pc_raw_ast_map) and
	// error-map payload (spec §4.9).
	Src      *ast.Node
	ErrorMsg string
}

// Opcode constructs a single-byte (plus any following ItemImmediate bytes)
// instruction item.
func Opcode(mnemonic string) Item {
	return Item{Kind: ItemOpcode, Mnemonic: mnemonic}
}

// Immediate constructs a single raw payload byte following a PUSHk opcode.
func Immediate(b byte) Item {
	return Item{Kind: ItemImmediate, Byte: b}
}

// NewLabel constructs a jump-target marker (emits one JUMPDEST byte,
// spec §4.9).
func NewLabel(name string) Item {
	return Item{Kind: ItemLabel, Label: name}
}

// PushLabel constructs a reference to a code label's address, resolved to a
// fixed-width PUSH2 by the assembler (SYMBOL_SIZE = 2, spec §4.9).
func PushLabel(name string) Item {
	return Item{Kind: ItemPushLabel, Label: name}
}

// PushOffset constructs `PushOffset(label, n)`: push `label`'s resolved
// value plus n, at the minimal width that fits (spec §4.9).
func PushOffset(name string, n int64) Item {
	return Item{Kind: ItemPushOffset, Label: name, Offset: n}
}

// DataHeader records a data-section symbol with no PC effect.
func DataHeader(name string) Item {
	return Item{Kind: ItemDataHeader, Label: name}
}

// DataBytes emits a literal data-section payload.
func DataBytes(b []byte) Item {
	return Item{Kind: ItemDataBytes, Bytes: b}
}

// DataLabel emits a data-section reference to a label's resolved address (a
// fixed SYMBOL_SIZE-wide field, spec §4.9).
func DataLabel(name string) Item {
	return Item{Kind: ItemDataLabel, Label: name}
}

// ConstDef defines a named constant's literal value; it emits nothing (spec
// §4.9's "Const* fold to integer ... emits nothing").
func ConstDef(name string, v *big.Int) Item {
	return Item{Kind: ItemConstDef, ConstName: name, ConstValue: v}
}

// ConstAdd defines name as the sum of two other named constants, resolved to
// a fixpoint during assembly pass 1 (spec §4.9).
func ConstAdd(name, a, b string) Item {
	return Item{Kind: ItemConstAdd, ConstName: name, ConstA: a, ConstB: b}
}

// ConstMax defines name as the max of two other named constants.
func ConstMax(name, a, b string) Item {
	return Item{Kind: ItemConstMax, ConstName: name, ConstA: a, ConstB: b}
}

// Tagged attaches source-map and error-map payload to the position it
// occupies in the item list (spec §4.6: "the region is prefixed with a
// Tagged item carrying the source position of the node's AST").
func Tagged(src *ast.Node, errMsg string) Item {
	return Item{Kind: ItemTagged, Src: src, ErrorMsg: errMsg}
}
