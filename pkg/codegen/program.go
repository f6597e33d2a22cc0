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

import "math/big"

// Program assembles the deploy/runtime item lists out of a compilation's
// already-lowered pieces (spec §4.6: "Two programs are produced: deploy
// (constructor + runtime copy) and runtime ... The runtime program is
// emitted into a data section of the deploy program"). It shares its
// Emitter with every function it stitches together, so label uniqueness and
// the once-per-program shared error blocks hold across the whole
// compilation rather than per function.
type Program struct {
	Emitter *Emitter
}

// NewProgram constructs a Program sharing e with every function and
// dispatch block that will be stitched into it.
func NewProgram(e *Emitter) *Program {
	return &Program{Emitter: e}
}

// Function wraps an internally-callable function's own body with spec
// §4.6's one-label return protocol. It is the callee's half of the protocol
// whose caller side lives in lowerInternalCall: the caller has already
// pushed a return label followed by each argument (in listed order, so the
// last-listed argument sits nearest the top); Function binds each
// parameter to its stack slot exactly as With does, lowers the body, then
// unwinds those bindings and jumps to the return label now exposed on top.
//
// Externally dispatched methods do not go through Function: they are
// entered by a plain label (see pkg/dispatch's prologues, which jump
// straight to a method's entry label) and terminate via their own
// Return/Revert/Stop, never by jumping back to a caller.
//
// Only 0- and 1-valent bodies are supported, matching ir.Node's own valency
// domain (spec §3); lowerBody must already reflect that arity.
func (p *Program) Function(entryLabel string, params []string, returnValency int, lowerBody func() []Item) []Item {
	e := p.Emitter

	var items []Item

	items = append(items, NewLabel(entryLabel))

	for _, name := range params {
		e.depth++
		e.env = append(e.env, binding{name, e.depth})
	}

	items = append(items, lowerBody()...)

	// Unwind: bring the return value (if any) down past every parameter,
	// leaving [returnLabel, value?] with the label exposed last.
	for range params {
		if returnValency == 1 {
			items = append(items, e.op("SWAP1"))
		}

		items = append(items, e.op("POP"))
	}

	if returnValency == 1 {
		items = append(items, e.op("SWAP1"))
	}

	items = append(items, e.op("JUMP"))

	e.env = e.env[:len(e.env)-len(params)]

	return items
}

// Runtime concatenates a runtime program's own pieces, in the order spec
// §4.6 describes: the dispatcher/selector-table prologue (§4.7, built by
// pkg/dispatch against this same Emitter), then every externally- and
// internally-callable function's own lowered body, then this Emitter's
// shared error blocks — appended exactly once regardless of how many call
// sites or asserts referenced them.
func (p *Program) Runtime(dispatch []Item, functions ...[]Item) []Item {
	var items []Item

	items = append(items, dispatch...)

	for _, f := range functions {
		items = append(items, f...)
	}

	items = append(items, p.Emitter.SharedBlocks()...)

	return items
}

// runtimeDataLabel names the deploy program's data-section symbol the
// constructor's copy sequence reads from.
const runtimeDataLabel = "runtime_code"

// Deploy builds the constructor program: ctorBody (the lowered ir.Deploy
// node, i.e. any `initializes`/constructor-argument handling), followed by
// the standard copy-and-return sequence that copies the already-assembled
// runtime program's bytes into memory and returns them, followed by the
// data section itself — the runtime bytes, then trailerBytes appended
// immediately after (spec §4.10: "After the deploy program, append a
// CBOR-encoded array ..."). trailerBytes is part of the deploy program's
// own bytecode but, since it sits after the copied length, is never
// returned to the caller of a CREATE.
func (p *Program) Deploy(ctorBody []Item, runtimeBytes, trailerBytes []byte) []Item {
	e := p.Emitter

	var items []Item

	items = append(items, ctorBody...)

	size := big.NewInt(int64(len(runtimeBytes)))

	// CODECOPY(destOffset, offset, size): push size, offset, destOffset so
	// destOffset ends up on top (the first operand CODECOPY pops).
	items = append(items, e.pushLiteral(size)...)
	items = append(items, PushOffset(runtimeDataLabel, 0))
	items = append(items, e.pushLiteral(big.NewInt(0))...)
	items = append(items, e.op("CODECOPY"))

	// RETURN(offset, size): push size, then offset.
	items = append(items, e.pushLiteral(size)...)
	items = append(items, e.pushLiteral(big.NewInt(0))...)
	items = append(items, e.op("RETURN"))

	items = append(items, DataHeader(runtimeDataLabel))
	items = append(items, DataBytes(runtimeBytes))

	if len(trailerBytes) > 0 {
		items = append(items, DataBytes(trailerBytes))
	}

	return items
}
