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

// Package assembler implements C9: the two-pass symbol-resolution and
// bytecode-emission stage that turns pkg/codegen's variable-width item list
// into a concrete byte sequence (spec §4.9). Pass 1 tracks a running PC to
// resolve every label and named constant to a ground value; label
// references take a fixed SymbolSize-wide PUSH, and only a PushOffset
// against a named constant uses the minimal PUSH width for its value. Pass 2
// walks the same list again and emits the final bytes.
package assembler

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/vylang/corec/pkg/ast"
	"github.com/vylang/corec/pkg/codegen"
	"github.com/vylang/corec/pkg/evm"
	"github.com/vylang/corec/pkg/source"
)

// SymbolSize is the fixed width, in bytes, of a resolved label reference
// emitted by PushLabel (spec §4.9: "SYMBOL_SIZE = 2").
const SymbolSize = 2

// CodeEnd is the sentinel label the assembler appends at PC = final length
// of the program, so later passes (e.g. the deploy program's data-section
// copy) can reference "one past the last byte" without a magic constant.
const CodeEnd = "code_end"

// JumpTag is the pc_jump_map classification of a JUMP/JUMPI instruction
// (spec §4.9): "i" for an internal-call invocation, "o" for an internal-call
// return, "-" for everything else (including every JUMPI).
type JumpTag string

const (
	JumpInternalCall   JumpTag = "i"
	JumpInternalReturn JumpTag = "o"
	JumpOther          JumpTag = "-"
)

// Program is the fully resolved output of assembling one item list: the
// final bytes plus every side table spec §4.9 requires downstream (the
// disassembler, source-map compression in pkg/output, and error reporting).
type Program struct {
	Bytes []byte

	// SymbolMap gives every Label's resolved PC.
	SymbolMap map[string]int
	// ConstMap gives every Const*'s resolved ground value.
	ConstMap map[string]*big.Int

	// PCJumpMap classifies every JUMP/JUMPI's PC (spec §4.9).
	PCJumpMap map[int]JumpTag
	// PCRawASTMap records the AST node a Tagged item attached to each PC at
	// or after which it applies, until superseded by the next Tagged.
	PCRawASTMap map[int]*ast.Node
	// ErrorMap records the Tagged.ErrorMsg in effect at each PC.
	ErrorMap map[int]string
}

// constExpr is the small symbolic-arithmetic sublanguage spec §9 calls for:
// a named constant resolves to either a literal value or the fold of two
// other named constants via Add/Max.
type constExpr struct {
	kind constKind
	a, b string
	lit  *big.Int
}

type constKind uint8

const (
	constLit constKind = iota
	constAdd
	constMax
)

// resolveConsts folds every Const* item to a ground integer, iterating to a
// fixpoint since ConstAdd/ConstMax may reference a constant defined later in
// program order (spec §4.9: "Also resolve ConstAdd and ConstMax to
// fixpoint").
func resolveConsts(items []codegen.Item) (map[string]*big.Int, error) {
	exprs := make(map[string]constExpr)
	order := make([]string, 0)

	for _, it := range items {
		switch it.Kind {
		case codegen.ItemConstDef:
			exprs[it.ConstName] = constExpr{kind: constLit, lit: it.ConstValue}
			order = append(order, it.ConstName)
		case codegen.ItemConstAdd:
			exprs[it.ConstName] = constExpr{kind: constAdd, a: it.ConstA, b: it.ConstB}
			order = append(order, it.ConstName)
		case codegen.ItemConstMax:
			exprs[it.ConstName] = constExpr{kind: constMax, a: it.ConstA, b: it.ConstB}
			order = append(order, it.ConstName)
		}
	}

	resolved := make(map[string]*big.Int, len(exprs))

	for pass := 0; pass < len(exprs)+1; pass++ {
		progress := false

		for _, name := range order {
			if _, done := resolved[name]; done {
				continue
			}

			e := exprs[name]

			switch e.kind {
			case constLit:
				resolved[name] = e.lit
				progress = true
			case constAdd, constMax:
				av, aok := resolved[e.a]
				bv, bok := resolved[e.b]

				if !aok || !bok {
					continue
				}

				if e.kind == constAdd {
					resolved[name] = new(big.Int).Add(av, bv)
				} else {
					if av.Cmp(bv) >= 0 {
						resolved[name] = new(big.Int).Set(av)
					} else {
						resolved[name] = new(big.Int).Set(bv)
					}
				}

				progress = true
			}
		}

		if len(resolved) == len(exprs) {
			break
		}

		if !progress {
			return nil, fmt.Errorf("assembler: unresolvable constant expression among %v", order)
		}
	}

	if len(resolved) != len(exprs) {
		return nil, fmt.Errorf("assembler: unresolvable constant expression among %v", order)
	}

	return resolved, nil
}

// pushWidth is spec §4.9's push_width(v): 1 + byte_length(v), minimum 1 for
// zero when PUSH0 is available, else 2 (a PUSH1 of one zero byte).
func pushWidth(v *big.Int, version evm.Version) int {
	if v.Sign() == 0 {
		if version.HasPush0() {
			return 1
		}

		return 2
	}

	n := (v.BitLen() + 7) / 8

	return 1 + n
}

// Assemble runs both passes over items and returns the resolved Program
// (spec §4.9). version gates PUSH0 eligibility for zero-valued PushOffset
// constants.
func Assemble(items []codegen.Item, version evm.Version) (*Program, error) {
	constMap, err := resolveConsts(items)
	if err != nil {
		return nil, err
	}

	symbolMap, err := pass1Resolve(items, constMap, version)
	if err != nil {
		return nil, err
	}

	bytes, pcJumpMap, pcRawASTMap, errorMap := pass2Emit(items, symbolMap, constMap, version)

	return &Program{
		Bytes:       bytes,
		SymbolMap:   symbolMap,
		ConstMap:    constMap,
		PCJumpMap:   pcJumpMap,
		PCRawASTMap: pcRawASTMap,
		ErrorMap:    errorMap,
	}, nil
}

// pass1Resolve walks the item list tracking a running PC, assigning every
// Label a resolved address (spec §4.9 pass 1). A duplicate label is a
// compiler panic (spec §4.9: "Duplicate label is a compiler panic"), since
// it can only arise from a pkg/codegen bug, never from user input.
func pass1Resolve(items []codegen.Item, constMap map[string]*big.Int, version evm.Version) (map[string]int, error) {
	symbolMap := make(map[string]int)
	pc := 0

	for _, it := range items {
		switch it.Kind {
		case codegen.ItemOpcode, codegen.ItemImmediate:
			pc++
		case codegen.ItemLabel:
			if _, dup := symbolMap[it.Label]; dup {
				panic(source.NewError(source.CompilerPanic, fmt.Sprintf("duplicate label %q", it.Label)))
			}

			symbolMap[it.Label] = pc
			pc++
		case codegen.ItemPushLabel:
			pc += SymbolSize + 1
		case codegen.ItemPushOffset:
			if v, isConst := constMap[it.Label]; isConst {
				pc += pushWidth(new(big.Int).Add(v, big.NewInt(it.Offset)), version)
			} else {
				pc += SymbolSize + 1
			}
		case codegen.ItemDataHeader:
			if _, dup := symbolMap[it.Label]; dup {
				panic(source.NewError(source.CompilerPanic, fmt.Sprintf("duplicate label %q", it.Label)))
			}

			symbolMap[it.Label] = pc
		case codegen.ItemDataBytes:
			pc += len(it.Bytes)
		case codegen.ItemDataLabel:
			pc += SymbolSize
		case codegen.ItemConstDef, codegen.ItemConstAdd, codegen.ItemConstMax, codegen.ItemTagged:
			// no PC effect
		}
	}

	symbolMap[CodeEnd] = pc

	return symbolMap, nil
}

// precedingPushLabel looks back from index i (exclusive), skipping
// ItemTagged markers, and returns the label of the nearest item if it is a
// PushLabel, or false otherwise ("a JUMP whose preceding item is
// PushLabel(l)").
func precedingPushLabel(items []codegen.Item, i int) (string, bool) {
	for j := i - 1; j >= 0; j-- {
		switch items[j].Kind {
		case codegen.ItemTagged:
			continue
		case codegen.ItemPushLabel:
			return items[j].Label, true
		default:
			return "", false
		}
	}

	return "", false
}

// pass2Emit walks the item list a second time, now that every symbol and
// constant is resolved, and emits the concrete byte sequence plus the
// pc_jump_map/pc_raw_ast_map/error_map side tables (spec §4.9 pass 2).
func pass2Emit(
	items []codegen.Item,
	symbolMap map[string]int,
	constMap map[string]*big.Int,
	version evm.Version,
) ([]byte, map[int]JumpTag, map[int]*ast.Node, map[int]string) {
	var out []byte

	pcJumpMap := make(map[int]JumpTag)
	pcRawASTMap := make(map[int]*ast.Node)
	errorMap := make(map[int]string)

	var curTag *ast.Node

	var curErr string

	for i, it := range items {
		pc := len(out)

		switch it.Kind {
		case codegen.ItemOpcode:
			op, ok := evm.Lookup(it.Mnemonic)
			if !ok {
				panic(source.NewError(source.CompilerPanic, fmt.Sprintf("unknown opcode %q", it.Mnemonic)))
			}

			out = append(out, op.Byte)

			if it.Mnemonic == "JUMP" || it.Mnemonic == "JUMPI" {
				pcJumpMap[pc] = classifyJump(it.Mnemonic, items, i)
			}
		case codegen.ItemImmediate:
			out = append(out, it.Byte)
		case codegen.ItemLabel:
			jumpdest, _ := evm.Lookup("JUMPDEST")
			out = append(out, jumpdest.Byte)
		case codegen.ItemPushLabel:
			out = appendPushN(out, big.NewInt(int64(symbolMap[it.Label])), SymbolSize)
		case codegen.ItemPushOffset:
			if v, isConst := constMap[it.Label]; isConst {
				val := new(big.Int).Add(v, big.NewInt(it.Offset))
				out = appendPush(out, val, version)
			} else {
				val := big.NewInt(int64(symbolMap[it.Label]) + it.Offset)
				out = appendPushN(out, val, SymbolSize)
			}
		case codegen.ItemDataHeader:
			// emits nothing
		case codegen.ItemDataBytes:
			out = append(out, it.Bytes...)
		case codegen.ItemDataLabel:
			b := big.NewInt(int64(symbolMap[it.Label])).Bytes()
			out = append(out, make([]byte, SymbolSize-len(b))...)
			out = append(out, b...)
		case codegen.ItemConstDef, codegen.ItemConstAdd, codegen.ItemConstMax:
			// emits nothing
		case codegen.ItemTagged:
			curTag = it.Src
			curErr = it.ErrorMsg
		}

		if it.Kind != codegen.ItemTagged && curTag != nil {
			if _, already := pcRawASTMap[pc]; !already {
				pcRawASTMap[pc] = curTag

				if curErr != "" {
					errorMap[pc] = curErr
				}
			}
		}
	}

	return out, pcJumpMap, pcRawASTMap, errorMap
}

func classifyJump(mnemonic string, items []codegen.Item, i int) JumpTag {
	if mnemonic == "JUMPI" {
		return JumpOther
	}

	label, ok := precedingPushLabel(items, i)
	if !ok || !strings.HasPrefix(label, "internal") {
		return JumpOther
	}

	if strings.HasSuffix(label, "cleanup") {
		return JumpInternalReturn
	}

	return JumpInternalCall
}

// appendPushN appends a PUSHn opcode (n fixed, zero-padded) followed by v's
// big-endian bytes — used for SYMBOL_SIZE-wide label/offset references,
// which are always fixed-width regardless of the label's actual value.
func appendPushN(out []byte, v *big.Int, n int) []byte {
	op, ok := evm.Lookup(evm.Push(n))
	if !ok {
		panic(source.NewError(source.CompilerPanic, fmt.Sprintf("no PUSH%d opcode", n)))
	}

	out = append(out, op.Byte)

	b := v.Bytes()
	if len(b) > n {
		panic(source.NewError(source.CompilerPanic, "symbol value exceeds fixed push width"))
	}

	out = append(out, make([]byte, n-len(b))...)
	out = append(out, b...)

	return out
}

// appendPush appends a minimal-width PUSH (PUSH0 when eligible) for a
// compile-time-resolved constant expression value.
func appendPush(out []byte, v *big.Int, version evm.Version) []byte {
	if v.Sign() == 0 && version.HasPush0() {
		op, _ := evm.Lookup("PUSH0")
		return append(out, op.Byte)
	}

	b := v.Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}

	op, ok := evm.Lookup(evm.Push(len(b)))
	if !ok {
		panic(source.NewError(source.CompilerPanic, "constant too large for any PUSH width"))
	}

	out = append(out, op.Byte)
	out = append(out, b...)

	return out
}

// SortedSymbols returns every resolved label name in ascending-PC order,
// useful for deterministic debug dumps (pkg/cmd's `asm` subcommand).
func (p *Program) SortedSymbols() []string {
	names := make([]string, 0, len(p.SymbolMap))
	for name := range p.SymbolMap {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		return p.SymbolMap[names[i]] < p.SymbolMap[names[j]]
	})

	return names
}
