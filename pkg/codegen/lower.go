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
package codegen

import (
	"fmt"
	"math/big"

	"github.com/vylang/corec/pkg/ir"
)

// directOps maps every IR opcode that mirrors a single EVM instruction
// one-to-one to that instruction's mnemonic (spec §4.4's arithmetic &
// comparison, memory & storage, environment, and non-pseudo call
// categories).
var directOps = map[ir.Op]string{
	ir.Add: "ADD", ir.Mul: "MUL", ir.Sub: "SUB", ir.Div: "DIV", ir.SDiv: "SDIV",
	ir.Mod: "MOD", ir.SMod: "SMOD", ir.Exp: "EXP",
	ir.Lt: "LT", ir.Gt: "GT", ir.Slt: "SLT", ir.Sgt: "SGT", ir.Eq: "EQ",
	ir.IsZero: "ISZERO", ir.And: "AND", ir.Or: "OR", ir.Xor: "XOR", ir.Not: "NOT",
	ir.Byte: "BYTE", ir.Shl: "SHL", ir.Shr: "SHR", ir.Sar: "SAR",

	ir.MLoad: "MLOAD", ir.MStore: "MSTORE", ir.MStore8: "MSTORE8", ir.MCopy: "MCOPY",
	ir.SLoad: "SLOAD", ir.SStore: "SSTORE", ir.TLoad: "TLOAD", ir.TStore: "TSTORE",
	ir.CalldataLoad: "CALLDATALOAD", ir.CalldataCopy: "CALLDATACOPY",
	ir.CalldataSize: "CALLDATASIZE", ir.CodeCopy: "CODECOPY", ir.ExtCodeCopy: "EXTCODECOPY",
	ir.ReturndataCopy: "RETURNDATACOPY", ir.ReturndataSize: "RETURNDATASIZE",
	ir.Keccak256: "KECCAK256",

	ir.Address: "ADDRESS", ir.Caller: "CALLER", ir.CallValue: "CALLVALUE",
	ir.Gas: "GAS", ir.GasPrice: "GASPRICE", ir.Origin: "ORIGIN",
	ir.Timestamp: "TIMESTAMP", ir.Number: "NUMBER", ir.ChainID: "CHAINID",
	ir.SelfBalance: "SELFBALANCE", ir.Balance: "BALANCE",

	ir.Return: "RETURN", ir.Revert: "REVERT", ir.Stop: "STOP", ir.Invalid: "INVALID",
	ir.SelfDestruct: "SELFDESTRUCT",
	ir.Call:         "CALL", ir.StaticCall: "STATICCALL", ir.DelegateCall: "DELEGATECALL",
	ir.Create: "CREATE", ir.Create2: "CREATE2",
}

// lowerOp dispatches a single node's own items (without its Tagged prefix,
// added by lowerNode).
func (e *Emitter) lowerOp(n *ir.Node) []Item {
	if n.IsLiteral() {
		return e.pushLiteral(n.Literal.AsBigInt())
	}

	if mnemonic, ok := directOps[n.Op]; ok {
		return e.lowerDirect(n, mnemonic)
	}

	switch n.Op {
	case ir.Var:
		return []Item{e.op(fmt.Sprintf("DUP%d", e.lookupDistance(n.Name)))}
	case ir.Seq:
		return e.lowerSeq(n)
	case ir.If:
		return e.lowerIf(n)
	case ir.With:
		return e.lowerWith(n)
	case ir.Repeat:
		return e.lowerRepeat(n)
	case ir.Set:
		return e.lowerSet(n)
	case ir.Goto:
		return []Item{e.pushLabel(n.Name), e.op("JUMP")}
	case ir.Label:
		return []Item{NewLabel(n.Name)}
	case ir.Assert:
		return e.lowerAssert(n, e.Revert0())
	case ir.AssertUnreachable:
		return e.lowerAssert(n, e.Invalid0())
	case ir.Deploy:
		return e.lowerDeploy(n)
	case ir.InternalCall:
		return e.lowerInternalCall(n)
	case ir.Break:
		f := e.currentLoop()
		return []Item{e.pushLabel(f.end), e.op("JUMP")}
	case ir.Continue:
		f := e.currentLoop()
		return []Item{e.pushLabel(f.latch), e.op("JUMP")}
	case ir.ExitRepeater, ir.CleanupRepeat:
		f := e.currentLoop()
		return []Item{e.pushLabel(f.end), e.op("JUMP")}
	case ir.Pass, ir.Dummy:
		return nil
	case ir.Ne:
		items := e.lowerDirect(n, "EQ")
		return append(items, e.op("ISZERO"))
	case ir.Le:
		items := e.lowerDirect(n, "GT")
		return append(items, e.op("ISZERO"))
	case ir.Ge:
		items := e.lowerDirect(n, "LT")
		return append(items, e.op("ISZERO"))
	case ir.Sle:
		items := e.lowerDirect(n, "SGT")
		return append(items, e.op("ISZERO"))
	case ir.Sge:
		items := e.lowerDirect(n, "SLT")
		return append(items, e.op("ISZERO"))
	case ir.Ceil32:
		return e.lowerCeil32(n)
	case ir.Sha3_32:
		return e.lowerSha3_32(n)
	case ir.Sha3_64:
		return e.lowerSha3_64(n)
	case ir.ClampNonzero:
		return e.lowerClampNonzero(n)
	case ir.ClampLt, ir.ClampLe, ir.ClampGt, ir.ClampGe,
		ir.UClampLt, ir.UClampLe, ir.UClampGt, ir.UClampGe,
		ir.Clamp, ir.UClamp:
		return e.lowerClamp(n)
	default:
		panic(fmt.Sprintf("codegen: %s has no lowering", n.Op))
	}
}

// lowerDirect pushes a node's children in EVM argument order (reversed, so
// the first logical argument ends up on top — the first operand the
// mnemonic pops) and emits the mnemonic itself.
func (e *Emitter) lowerDirect(n *ir.Node, mnemonic string) []Item {
	var items []Item

	for i := len(n.Args) - 1; i >= 0; i-- {
		items = append(items, e.lowerNode(n.Args[i])...)
	}

	items = append(items, e.op(mnemonic))

	return items
}

// lowerSeq evaluates children in order, popping every non-final child whose
// valency is 1 (spec §4.4's seq contract).
func (e *Emitter) lowerSeq(n *ir.Node) []Item {
	var items []Item

	for i, c := range n.Args {
		items = append(items, e.lowerNode(c)...)

		if i != len(n.Args)-1 && c.Valency() == 1 {
			items = append(items, e.op("POP"))
		}
	}

	return items
}

// lowerIf implements spec §4.6's exact expansion:
//
//	<cond> ; ISZERO ; PushLabel(else) ; JUMPI ; <t> ; PushLabel(end) ; JUMP ;
//	Label(else) ; <e> ; Label(end)
//
// Only one of the two arms ever executes at runtime, but both are emitted
// as program text; the symbolic depth is reset between them (their net
// stack effect is guaranteed equal, since NewIf requires matching valency).
func (e *Emitter) lowerIf(n *ir.Node) []Item {
	var items []Item

	items = append(items, e.lowerNode(n.Args[0])...)
	items = append(items, e.op("ISZERO"))

	elseLabel := e.freshLabel("if_else")
	items = append(items, e.pushLabel(elseLabel), e.op("JUMPI"))

	startDepth := e.depth
	items = append(items, e.lowerNode(n.Args[1])...)

	if len(n.Args) == 2 {
		items = append(items, NewLabel(elseLabel))
		return items
	}

	endLabel := e.freshLabel("if_end")
	items = append(items, e.pushLabel(endLabel), e.op("JUMP"))
	items = append(items, NewLabel(elseLabel))

	e.depth = startDepth
	items = append(items, e.lowerNode(n.Args[2])...)

	items = append(items, NewLabel(endLabel))

	return items
}

// lowerWith implements spec §4.4's with contract: evaluate init, bind it to
// name for body, then discard the binding (preserving body's own result, if
// any, above it).
func (e *Emitter) lowerWith(n *ir.Node) []Item {
	var items []Item

	items = append(items, e.lowerNode(n.Args[0])...)

	e.env = append(e.env, binding{n.Name, e.depth})
	items = append(items, e.lowerNode(n.Args[1])...)
	e.env = e.env[:len(e.env)-1]

	if n.Valency() == 1 {
		items = append(items, e.op("SWAP1"))
	}

	items = append(items, e.op("POP"))

	return items
}

// lowerSet overwrites an enclosing With/Repeat binding's stack slot with a
// new value (spec §4.4's set/with contract).
func (e *Emitter) lowerSet(n *ir.Node) []Item {
	k := e.lookupDistance(n.Name)

	var items []Item

	items = append(items, e.lowerNode(n.Args[0])...)
	items = append(items, e.op(fmt.Sprintf("SWAP%d", k)))
	items = append(items, e.op("POP"))

	return items
}

func limitName(loopVar string) string {
	return "$limit$" + loopVar
}

// lowerRepeat implements spec §4.4/§4.6's repeat contract: counter init,
// loop head label, bound check, body, latch label, increment, unconditional
// branch to head, end label; break/continue target end/latch.
func (e *Emitter) lowerRepeat(n *ir.Node) []Item {
	var items []Item

	items = append(items, e.lowerNode(n.Args[0])...) // start
	items = append(items, e.lowerNode(n.Args[1])...) // rounds
	items = append(items, e.op("DUP2"), e.op("ADD"))  // [start, limit]

	limitDepth := e.depth
	iDepth := e.depth - 1

	e.env = append(e.env, binding{n.Name, iDepth}, binding{limitName(n.Name), limitDepth})

	head := e.freshLabel("loop_head")
	latch := e.freshLabel("loop_latch")
	end := e.freshLabel("loop_end")
	e.loops = append(e.loops, loopFrame{head: head, latch: latch, end: end})

	items = append(items, NewLabel(head))
	items = append(items, e.op(fmt.Sprintf("DUP%d", e.lookupDistance(limitName(n.Name)))))
	items = append(items, e.op(fmt.Sprintf("DUP%d", e.lookupDistance(n.Name))))
	items = append(items, e.op("LT"))
	items = append(items, e.op("ISZERO"))
	items = append(items, e.pushLabel(end), e.op("JUMPI"))

	items = append(items, e.lowerNode(n.Args[2])...) // body

	items = append(items, NewLabel(latch))

	k := e.lookupDistance(n.Name)
	items = append(items, e.pushLiteral(big.NewInt(1))...)
	items = append(items, e.op(fmt.Sprintf("DUP%d", k+1)))
	items = append(items, e.op("ADD"))
	items = append(items, e.op(fmt.Sprintf("SWAP%d", k)))
	items = append(items, e.op("POP"))
	items = append(items, e.pushLabel(head), e.op("JUMP"))

	items = append(items, NewLabel(end))
	items = append(items, e.op("POP")) // limit
	items = append(items, e.op("POP")) // i

	e.loops = e.loops[:len(e.loops)-1]
	e.env = e.env[:len(e.env)-2]

	return items
}

// lowerAssert lowers Assert/AssertUnreachable: evaluate cond, jump to the
// given shared error block unless it holds.
func (e *Emitter) lowerAssert(n *ir.Node, errBlock string) []Item {
	var items []Item

	items = append(items, e.lowerNode(n.Args[0])...)
	items = append(items, e.op("ISZERO"))
	items = append(items, Tagged(n.Src, n.Annotation))
	items = append(items, e.pushLabel(errBlock), e.op("JUMPI"))

	return items
}

// lowerDeploy marks the constructor's entry; its own children (if any) are
// the constructor body proper. Program (program.go) is responsible for the
// actual data-section copy/return sequence, since that requires knowing the
// runtime program's own emitted length (not available to a single node's
// lowering).
func (e *Emitter) lowerDeploy(n *ir.Node) []Item {
	var items []Item

	for _, c := range n.Args {
		items = append(items, e.lowerNode(c)...)
	}

	return items
}

// lowerInternalCall implements spec §4.6's one-label return protocol: the
// caller pushes a fresh return label, pushes arguments, and jumps to the
// callee's entry; the callee (see Program.Function) jumps back to the
// pushed label to return.
func (e *Emitter) lowerInternalCall(n *ir.Node) []Item {
	var items []Item

	ret := e.freshLabel("internal_return")
	items = append(items, e.pushLabel(ret))

	for _, a := range n.Args {
		items = append(items, e.lowerNode(a)...)
	}

	items = append(items, e.pushLabel(n.Name), e.op("JUMP"))
	items = append(items, NewLabel(ret))

	return items
}

// lowerCeil32 rounds x up to the next multiple of 32 via the standard
// `(x + 31) & ~31` bit trick, the mask precomputed as a literal rather than
// emitted as a runtime NOT.
func (e *Emitter) lowerCeil32(n *ir.Node) []Item {
	var items []Item

	items = append(items, e.lowerNode(n.Args[0])...)
	items = append(items, e.pushLiteral(big.NewInt(31))...)
	items = append(items, e.op("ADD"))

	mask := new(big.Int).Sub(wordMod, big.NewInt(32))
	items = append(items, e.pushLiteral(mask)...)
	items = append(items, e.op("AND"))

	return items
}

// lowerSha3_32 hashes a single word via the standard mstore-then-keccak256
// scratch-memory idiom.
func (e *Emitter) lowerSha3_32(n *ir.Node) []Item {
	var items []Item

	items = append(items, e.lowerNode(n.Args[0])...)
	items = append(items, e.pushLiteral(big.NewInt(0))...)
	items = append(items, e.op("MSTORE"))
	items = append(items, e.pushLiteral(big.NewInt(32))...)
	items = append(items, e.pushLiteral(big.NewInt(0))...)
	items = append(items, e.op("KECCAK256"))

	return items
}

// lowerSha3_64 hashes two words, e.g. a mapping key against its slot.
func (e *Emitter) lowerSha3_64(n *ir.Node) []Item {
	var items []Item

	items = append(items, e.lowerNode(n.Args[0])...)
	items = append(items, e.pushLiteral(big.NewInt(0))...)
	items = append(items, e.op("MSTORE"))
	items = append(items, e.lowerNode(n.Args[1])...)
	items = append(items, e.pushLiteral(big.NewInt(32))...)
	items = append(items, e.op("MSTORE"))
	items = append(items, e.pushLiteral(big.NewInt(64))...)
	items = append(items, e.pushLiteral(big.NewInt(0))...)
	items = append(items, e.op("KECCAK256"))

	return items
}

// lowerClampNonzero lowers `clamp_nonzero(x)`: assert x != 0, evaluate to x.
// This is the divisor-zero guard inserted ahead of every DIV/SDIV/MOD/SMOD;
// its error tag is "safediv" rather than its own op name, since that is the
// identifier a debugger needs to report ("division by zero"), not the
// internal pseudo-op that implements the check.
func (e *Emitter) lowerClampNonzero(n *ir.Node) []Item {
	var items []Item

	items = append(items, e.lowerNode(n.Args[0])...)
	items = append(items, e.op("DUP1"))
	items = append(items, e.op("ISZERO"))
	items = append(items, Tagged(n.Src, "safediv"))
	items = append(items, e.pushLabel(e.Revert0()), e.op("JUMPI"))

	return items
}

// clampSpecs names, for every two-operand clamp pseudo-op, the EVM
// comparison mnemonic that must hold between x and y for the assertion to
// pass, and whether the mnemonic's raw result needs inverting (used for the
// <=/>= variants, which the EVM has no native opcode for). For example,
// clampgt(x, y) asserts x > y with SGT, and uclampgt(x, y) with GT.
//
// Known simplification: plain Clamp/UClamp (two-sided range clamps in the
// original language) are narrowed here to a single upper-bound assertion
// (x < y, signed/unsigned respectively); no fixture in the retrieved corpus
// specifies their exact two-sided bound semantics.
var clampSpecs = map[ir.Op]struct {
	mnemonic string
	invert   bool
	tag      string
}{
	ir.ClampLt:  {"SLT", false, "clamplt"},
	ir.UClampLt: {"LT", false, "uclamplt"},
	ir.ClampLe:  {"SGT", true, "clample"},
	ir.UClampLe: {"GT", true, "uclample"},
	ir.ClampGt:  {"SGT", false, "clampgt"},
	ir.UClampGt: {"GT", false, "uclampgt"},
	ir.ClampGe:  {"SLT", true, "clampge"},
	ir.UClampGe: {"LT", true, "uclampge"},
	ir.Clamp:    {"SLT", false, "clamp"},
	ir.UClamp:   {"LT", false, "uclamp"},
}

// lowerClamp lowers a two-operand clamp pseudo-op (spec §4.6): evaluate x
// and y, duplicate x so it survives the check as the node's own result,
// compare, and jump to the shared revert block unless the assertion holds.
func (e *Emitter) lowerClamp(n *ir.Node) []Item {
	spec := clampSpecs[n.Op]

	var items []Item

	items = append(items, e.lowerNode(n.Args[0])...) // [x]
	items = append(items, e.lowerNode(n.Args[1])...) // [x, y]
	items = append(items, e.op("DUP2"))               // [x, y, x]
	items = append(items, e.op(spec.mnemonic))        // [x, ok]

	if spec.invert {
		items = append(items, e.op("ISZERO"))
	}

	items = append(items, e.op("ISZERO")) // fail-flag: 1 when the assertion does not hold
	items = append(items, Tagged(n.Src, spec.tag))
	items = append(items, e.pushLabel(e.Revert0()), e.op("JUMPI"))

	return items
}
