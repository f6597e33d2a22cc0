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

	"github.com/vylang/corec/pkg/evm"
	"github.com/vylang/corec/pkg/ir"
)

// wordMod is 2^256, used to fold a literal into the EVM word range before
// choosing its minimal PUSH width.
var wordMod = new(big.Int).Lsh(big.NewInt(1), 256)

// binding records a With/Repeat-bound name's symbolic stack depth at the
// moment it was pushed, so a later Var/Set can compute the DUP/SWAP distance
// to it (spec §4.4's with/repeat contract: "binds it to name (a stack
// slot)").
type binding struct {
	name  string
	depth int
}

// loopFrame names a Repeat's head/latch/end labels, so Break/Continue/
// ExitRepeater/CleanupRepeat occurring in its body know where to jump (spec
// §4.4's repeat contract).
type loopFrame struct {
	head, latch, end string
}

// Emitter lowers IR to assembly items (spec §4.6), threading the
// deterministic label counter (spec §5: "seeded deterministically, e.g.
// per-compilation zero"), the lexical stack-slot scope introduced by
// With/Repeat bindings, and the program's shared error blocks.
type Emitter struct {
	version evm.Version
	counter int
	// depth is a symbolic running stack height, incremented/decremented by
	// every item this Emitter produces; it exists purely so Var/Set can
	// compute a DUP/SWAP distance to an enclosing binding, not to model the
	// EVM stack's actual runtime contents.
	depth int
	env   []binding
	loops []loopFrame

	revert0Used  bool
	invalid0Used bool
}

// NewEmitter constructs an Emitter targeting the given EVM version, which
// gates whether literal-zero pushes use PUSH0 (spec §6).
func NewEmitter(version evm.Version) *Emitter {
	return &Emitter{version: version}
}

// freshLabel returns a new, compilation-unique label with the given prefix.
// Internal-call labels use the "internal" prefix so the assembler's jump
// classifier can tag them `i`/`o` (spec §4.6, §4.9).
func (e *Emitter) freshLabel(prefix string) string {
	e.counter++
	return fmt.Sprintf("%s_%d", prefix, e.counter)
}

// op constructs an opcode item and updates the symbolic depth by the
// opcode's net stack effect, looked up from the shared EVM opcode table
// (pkg/evm) rather than hardcoded per call site.
func (e *Emitter) op(mnemonic string) Item {
	if info, ok := evm.Lookup(mnemonic); ok {
		e.depth += info.Pushes - info.Pops
	}

	return Opcode(mnemonic)
}

func (e *Emitter) pushLabel(name string) Item {
	e.depth++
	return PushLabel(name)
}

// pushLiteral emits a minimal-width push for a known constant (spec §4.9's
// push_width: `1 + byte_length(v)`, minimum 1; PUSH0 when available and v is
// zero).
func (e *Emitter) pushLiteral(v *big.Int) []Item {
	v = new(big.Int).Mod(v, wordMod)

	if v.Sign() == 0 && e.version.HasPush0() {
		return []Item{e.op("PUSH0")}
	}

	b := v.Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}

	items := []Item{e.op(evm.Push(len(b)))}
	for _, by := range b {
		items = append(items, Immediate(by))
	}

	return items
}

// PushLiteral is pushLiteral's exported form, for callers outside this
// package that build item sequences against a shared Emitter (e.g.
// pkg/dispatch's selector-table runtime prologues).
func (e *Emitter) PushLiteral(v *big.Int) []Item {
	return e.pushLiteral(v)
}

// Op is op's exported form.
func (e *Emitter) Op(mnemonic string) Item {
	return e.op(mnemonic)
}

// PushLabelItem is pushLabel's exported form.
func (e *Emitter) PushLabelItem(name string) Item {
	return e.pushLabel(name)
}

// FreshLabel is freshLabel's exported form.
func (e *Emitter) FreshLabel(prefix string) string {
	return e.freshLabel(prefix)
}

// Revert0 returns the shared revert block's label, marking it used so
// SharedBlocks (and, through it, Program.Runtime in program.go) appends its
// body exactly once (spec §4.6: "a single shared revert0 block ... is
// emitted once per program; every failed assertion jumps there").
func (e *Emitter) Revert0() string {
	e.revert0Used = true
	return "revert0"
}

// Invalid0 is Revert0's counterpart for assert_unreachable, which fails via
// INVALID rather than REVERT.
func (e *Emitter) Invalid0() string {
	e.invalid0Used = true
	return "invalid0"
}

// SharedBlocks returns the error blocks actually referenced during emission,
// to be appended once at the end of the program.
func (e *Emitter) SharedBlocks() []Item {
	var items []Item

	if e.revert0Used {
		items = append(items, NewLabel("revert0"))
		items = append(items, e.pushLiteral(big.NewInt(0))...)
		items = append(items, e.op("DUP1"), e.op("REVERT"))
	}

	if e.invalid0Used {
		items = append(items, NewLabel("invalid0"))
		items = append(items, e.op("INVALID"))
	}

	return items
}

// lookupDistance returns the DUP/SWAP distance (1 = top of stack) to the
// nearest enclosing binding of name, using the current symbolic depth.
func (e *Emitter) lookupDistance(name string) int {
	for i := len(e.env) - 1; i >= 0; i-- {
		if e.env[i].name == name {
			return e.depth - e.env[i].depth + 1
		}
	}

	panic(fmt.Sprintf("codegen: unbound name %q", name))
}

func (e *Emitter) currentLoop() loopFrame {
	if len(e.loops) == 0 {
		panic("codegen: break/continue/exit_repeater outside a repeat")
	}

	return e.loops[len(e.loops)-1]
}

// Lower recursively lowers an IR tree to its assembly items (spec §4.6).
func (e *Emitter) Lower(n *ir.Node) []Item {
	return e.lowerNode(n)
}

// lowerNode prefixes every node's own items with a Tagged item carrying its
// source position (spec §4.6: "Every IR node's bytecode region begins with
// its assembly items; the region is prefixed with a Tagged item").
func (e *Emitter) lowerNode(n *ir.Node) []Item {
	var items []Item

	if n.Src != nil {
		items = append(items, Tagged(n.Src, n.Annotation))
	}

	items = append(items, e.lowerOp(n)...)

	return items
}
