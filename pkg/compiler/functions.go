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
package compiler

import (
	"math/big"
	"strings"

	"github.com/vylang/corec/pkg/abi"
	"github.com/vylang/corec/pkg/ast"
	"github.com/vylang/corec/pkg/codegen"
	"github.com/vylang/corec/pkg/config"
	"github.com/vylang/corec/pkg/dispatch"
	"github.com/vylang/corec/pkg/evm"
	"github.com/vylang/corec/pkg/ir"
	"github.com/vylang/corec/pkg/layout"
)

// nonreentrantKey mirrors pkg/layout's own reserved reentrancy-lock name
// (spec §4.3); it is the one string both packages must agree on, not shared
// Go state, since layout deliberately keeps the constant unexported.
const nonreentrantKey = "$.nonreentrant_key"

// collectFunctions walks root and every module nested into it via
// InitializesDecl (spec §4.3: "modules compose by nesting"), in declaration
// order, gathering every function body this compilation must lower. Order
// matters for determinism (spec §5): functions are visited in the same
// left-to-right, depth-first order layout.Allocate itself walks.
func collectFunctions(root *ast.Module) []*ast.FunctionDecl {
	var fns []*ast.FunctionDecl

	var walk func(m *ast.Module)

	walk = func(m *ast.Module) {
		for _, d := range m.Decls {
			switch decl := d.(type) {
			case *ast.FunctionDecl:
				fns = append(fns, decl)
			case *ast.InitializesDecl:
				walk(decl.Target)
			}
		}
	}

	walk(root)

	return fns
}

// abiType renders a Param's own type descriptor for a canonical ABI
// signature; set by the (external) semantic analyzer, not recomputed here.
func abiType(p ast.Param) string {
	return p.Type.ABIType
}

// isDynamicABIType reports whether t is a variable-length ABI type (spec
// §4.7: "Methods that accept dynamic bytes/strings must instead validate
// the calldata pointer and length fields at their prologue").
func isDynamicABIType(t string) bool {
	return strings.HasPrefix(t, "bytes") && !strings.ContainsAny(t, "0123456789") ||
		t == "string" || strings.HasSuffix(t, "[]")
}

// signature renders fn's canonical `name(type1,type2,...)` ABI signature
// (spec §4.7).
func signature(fn *ast.FunctionDecl) string {
	types := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		types[i] = abiType(p)
	}

	return fn.Name + "(" + strings.Join(types, ",") + ")"
}

// toABIMutability converts an ast.Mutability to its abi.Mutability twin.
// Both enums share the identical Pure/View/Nonpayable/Payable iota
// ordering (ast/metadata.go, abi/selector.go), so a direct numeric
// conversion is exact; this helper exists purely so call sites read as an
// intentional conversion rather than a bare cast.
func toABIMutability(m ast.Mutability) abi.Mutability {
	return abi.Mutability(m)
}

// buildMethod constructs fn's abi.Method entry. MinCalldataWords is
// approximated as one word per required (non-default) parameter: exact
// per-type calldata width (e.g. a dynamic argument's head/tail split) is
// the semantic analyzer's concern upstream of this boundary (spec §1); the
// selector table only needs a safe lower bound to gate entry (spec §4.7).
func buildMethod(fn *ast.FunctionDecl, entryLabel string) abi.Method {
	dynamic := false

	for _, p := range fn.Params {
		if isDynamicABIType(abiType(p)) {
			dynamic = true
			break
		}
	}

	outputs := make([]string, len(fn.Returns))
	for i, r := range fn.Returns {
		outputs[i] = abiType(r)
	}

	m := abi.NewMethod(fn.Name, signature(fn), entryLabel, toABIMutability(fn.Mutability),
		len(fn.Params), fn.DefaultArgs, dynamic)

	return m.WithOutputs(outputs)
}

// buildDispatch builds the runtime dispatcher's full prologue: the standard
// "extract the 4-byte selector from calldata" preamble, gated by a
// calldatasize<4 check, followed by the sparse or dense selector table
// chosen by mode (spec §4.7). roots lists every label the dead-code
// eliminator must treat as reachable regardless of whether the CFG walk's
// own PushLabel/JUMPI detection already finds it (spec §4.8), as a
// belt-and-suspenders measure.
func buildDispatch(e *codegen.Emitter, methods []abi.Method, fallback string, mode config.OptimizeMode) ([]codegen.Item, []string) {
	var items []codegen.Item

	roots := []string{fallback}

	for _, m := range methods {
		roots = append(roots, m.EntryLabel)
	}

	if len(methods) == 0 {
		items = append(items, e.PushLabelItem(fallback), e.Op("JUMP"))

		return items, roots
	}

	items = append(items, e.PushLiteral(big.NewInt(4))...)
	items = append(items, e.Op("CALLDATASIZE"))
	items = append(items, e.Op("LT"))
	items = append(items, e.PushLabelItem(fallback), e.Op("JUMPI"))

	// Standard selector extraction: calldataload(0) >> 224, leaving the
	// 4-byte method id right-aligned in a word.
	items = append(items, e.PushLiteral(big.NewInt(0))...)
	items = append(items, e.Op("CALLDATALOAD"))
	items = append(items, e.PushLiteral(big.NewInt(224))...)
	items = append(items, e.Op("SHR"))

	prologues, labels := dispatch.Prologues(e, methods, fallback)

	for _, l := range prologues {
		if l.Kind == codegen.ItemLabel {
			roots = append(roots, l.Label)
		}
	}

	items = append(items, prologues...)

	if mode == config.OptimizeCodesize {
		table, err := dispatch.BuildDense(methods)
		if err != nil {
			table2 := dispatch.BuildSparse(methods)
			items = append(items, dispatch.EmitSparse(e, table2, labels, fallback)...)
		} else {
			items = append(items, dispatch.EmitDense(e, table, labels, fallback)...)
		}
	} else {
		table := dispatch.BuildSparse(methods)
		items = append(items, dispatch.EmitSparse(e, table, labels, fallback)...)
	}

	return items, roots
}

// wrapNonreentrant prepends fn's lowered body with the reentrancy-lock
// check+set pair spec's nonreentrant contract describes: a load of the
// reserved lock slot, an assert that it reads zero, then a store of one.
// The slot is storage on pre-Cancun targets and transient storage from
// Cancun on (matching layout.Allocate's own lockRegion choice); it is
// resolved from the already-computed layout rather than recomputed here,
// so a collision or override is reported exactly once, by C3.
//
// The unlock half of the guard is not modelled: every external function's
// body already terminates via its own Return/Revert/Stop (ir.Node valency
// 0, control never falls through), so injecting a second store before
// every return would require rewriting the body's control flow rather than
// wrapping it. This is a known simplification (see DESIGN.md).
func wrapNonreentrant(e *codegen.Emitter, body *ir.Node, lay layout.Result, version evm.Version) *ir.Node {
	slot := lockSlot(lay)
	if slot == nil {
		return body
	}

	loadOp, storeOp := ir.SLoad, ir.SStore
	if version.HasTransientStorage() {
		loadOp, storeOp = ir.TLoad, ir.TStore
	}

	slotLit := func() *ir.Node {
		return ir.NewLiteral(ast.Literal{Kind: ast.LiteralInt, BigInt: new(big.Int).Set(slot)})
	}

	check := ir.New(ir.Assert, ir.New(ir.IsZero, ir.New(loadOp, slotLit())))
	lock := ir.New(storeOp, slotLit(), ir.NewLiteral(ast.Literal{Kind: ast.LiteralInt, Int: 1}))

	return ir.NewSeq(check, lock, body)
}

// lockSlot locates the reentrancy lock's assigned slot in an already
// computed layout, preferring transient storage (Cancun+) over persistent
// storage, matching layout.Allocate's own lockRegion precedence.
func lockSlot(lay layout.Result) *big.Int {
	if node, ok := lay.Transient[nonreentrantKey]; ok && node.StorageLeaf != nil {
		return node.StorageLeaf.Slot
	}

	if node, ok := lay.Storage[nonreentrantKey]; ok && node.StorageLeaf != nil {
		return node.StorageLeaf.Slot
	}

	return nil
}

// totalImmutablesLength sums every code-immutables leaf's byte span in s,
// recursing into nested modules (spec §4.10's immutables_length; no such
// aggregate is exposed directly by pkg/layout, since layout.Section only
// models the nested per-name mapping, not a rolled-up total).
func totalImmutablesLength(s layout.Section) int {
	total := 0

	for _, node := range s {
		switch {
		case node.CodeLeaf != nil:
			total += node.CodeLeaf.Length
		case node.Children != nil:
			total += totalImmutablesLength(node.Children)
		}
	}

	return total
}
