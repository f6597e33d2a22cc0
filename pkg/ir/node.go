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
package ir

import (
	"fmt"

	"github.com/vylang/corec/pkg/ast"
)

// Node is a single IR tree node (spec §3): a tag from the closed Op set,
// its ordered children, an optional semantic type and storage location, its
// valency (0 or 1, whether evaluating it leaves one word on the operand
// stack), and optional source/diagnostic metadata.
//
// A single struct carries every opcode rather than one Go type per opcode:
// this is a direct rendering of spec §3's own data model ("a tagged tree
// with op/args/typ/location/valency/src/annotation"), not a simplification
// of it.
type Node struct {
	Op         Op
	Args       []*Node
	Typ        *ast.TypeInfo
	Location   ast.Region
	valency    int
	Src        *ast.Node
	Annotation string

	// Name is used by With (the bound variable), Label/Goto (the target
	// name), Set (the assignment target), and Repeat (the loop variable).
	Name string
	// Literal is the immediate operand of a literal leaf (no Op tag; see
	// NewLiteral).
	Literal *ast.Literal
	// Bound is Repeat's compile-time maximum round count (spec §4.4).
	Bound int64
}

// IsIRBody marks Node as implementing ast.Body, so annotated function
// declarations can carry an IR tree directly as their body (see
// ast.FunctionDecl.Body and DESIGN.md's "AST/IR boundary" note).
func (n *Node) IsIRBody() {}

// Valency returns whether evaluating this node leaves a value on the
// operand stack (spec §3 invariant ii).
func (n *Node) Valency() int {
	return n.valency
}

// New constructs an interior node, validating arity against the opcode's
// signature and propagating the required valency of consumed children.
// Variadic/special-shaped ops (Seq, If, With, Repeat, Set, Goto/Label) are
// validated by their own constructors below instead.
func New(op Op, args ...*Node) *Node {
	sig, ok := signatures[op]
	if !ok {
		panic(fmt.Sprintf("ir: %s is not a fixed-arity opcode; use its dedicated constructor", op))
	}

	if len(args) != sig.arity {
		panic(fmt.Sprintf("ir: %s expects %d args, got %d", op, sig.arity, len(args)))
	}

	for i, a := range args {
		if a.valency != 1 {
			panic(fmt.Sprintf("ir: %s arg %d has valency %d, want 1", op, i, a.valency))
		}
	}

	return &Node{Op: op, Args: args, valency: sig.valency}
}

// NewLiteral constructs a leaf node carrying a compile-time constant.
func NewLiteral(lit ast.Literal) *Node {
	return &Node{Op: opInvalid, Literal: &lit, valency: 1}
}

// IsLiteral reports whether this node is a constant leaf, as produced by
// NewLiteral or by constant folding (spec §4.5).
func (n *Node) IsLiteral() bool {
	return n.Op == opInvalid && n.Literal != nil
}

// NewSeq constructs a `seq` node (spec §4.4): evaluates children in order,
// popping the result of every non-final child with valency 1; the final
// child's valency becomes the seq's own.
func NewSeq(children ...*Node) *Node {
	v := 0
	if n := len(children); n > 0 {
		v = children[n-1].valency
	}

	return &Node{Op: Seq, Args: children, valency: v}
}

// NewIf constructs a two- or three-arm `if` (spec §4.4). A two-arm if has
// valency 0 (it is a statement); a three-arm if takes its valency from its
// arms, which must agree.
func NewIf(cond, then *Node, els ...*Node) *Node {
	if cond.valency != 1 {
		panic("ir: if condition must have valency 1")
	}

	switch len(els) {
	case 0:
		if then.valency != 0 {
			panic("ir: two-arm if body must have valency 0")
		}

		return &Node{Op: If, Args: []*Node{cond, then}, valency: 0}
	case 1:
		if then.valency != els[0].valency {
			panic("ir: if arms must agree in valency")
		}

		return &Node{Op: If, Args: []*Node{cond, then, els[0]}, valency: then.valency}
	default:
		panic("ir: if takes at most one else arm")
	}
}

// NewWith constructs a `with` let-binding (spec §4.4): `(with name init
// body)`. init must have valency 1 (it is bound to name); body's valency
// becomes the with's own.
func NewWith(name string, init, body *Node) *Node {
	if init.valency != 1 {
		panic("ir: with init must have valency 1")
	}

	return &Node{Op: With, Name: name, Args: []*Node{init, body}, valency: body.valency}
}

// NewRepeat constructs a counted loop (spec §4.4): `(repeat i start rounds
// bound body)`. bound is stored in Bound; codegen does not read it, and
// rounds, evaluated at runtime, is not checked against it.
func NewRepeat(loopVar string, start, rounds *Node, bound int64, body *Node) *Node {
	if start.valency != 1 || rounds.valency != 1 {
		panic("ir: repeat start/rounds must have valency 1")
	}

	return &Node{Op: Repeat, Name: loopVar, Bound: bound, Args: []*Node{start, rounds, body}, valency: 0}
}

// NewInternalCall constructs a call to another function in this compilation
// (spec §4.6's one-label return protocol): callee names the target
// function's entry label and valency is 0 or 1 depending on whether the
// callee leaves a return value. Codegen (pkg/codegen) is the only consumer
// that lowers this node; it alone knows how the return label is threaded.
func NewInternalCall(callee string, valency int, args ...*Node) *Node {
	if valency < 0 || valency > 1 {
		panic("ir: internal call valency must be 0 or 1")
	}

	for i, a := range args {
		if a.valency != 1 {
			panic(fmt.Sprintf("ir: internal call arg %d has valency %d, want 1", i, a.valency))
		}
	}

	return &Node{Op: InternalCall, Name: callee, Args: args, valency: valency}
}

// NewVar constructs a reference to a name bound by an enclosing With or
// Repeat.
func NewVar(name string) *Node {
	return &Node{Op: Var, Name: name, valency: 1}
}

// NewLabel constructs a jump-target marker.
func NewLabel(name string) *Node {
	return &Node{Op: Label, Name: name, valency: 0}
}

// NewGoto constructs an unconditional jump to a named label.
func NewGoto(name string) *Node {
	return &Node{Op: Goto, Name: name, valency: 0}
}

// NewSet constructs an assignment to a `with`-bound name (spec §4.4's
// optimisation of spilling cross-loop bindings to a named memory cell routes
// through this node).
func NewSet(name string, value *Node) *Node {
	if value.valency != 1 {
		panic("ir: set value must have valency 1")
	}

	return &Node{Op: Set, Name: name, Args: []*Node{value}, valency: 0}
}

// WithSource attaches the AST node this IR node originated from, for
// source-mapping (spec §3 `src` field), returning the same node for
// chaining at construction sites.
func (n *Node) WithSource(src *ast.Node) *Node {
	n.Src = src
	return n
}

// WithAnnotation attaches a diagnostic annotation (e.g. a revert-reason
// tag), returning the same node for chaining.
func (n *Node) WithAnnotation(msg string) *Node {
	n.Annotation = msg
	return n
}

// WithArgs returns a shallow copy of n with its children replaced by args,
// preserving n's Op, Name, Typ, Location, Literal, Bound and valency. Used
// by tree-rewriting passes (e.g. the optimizer) that only ever replace a
// node's children, never its shape or arity.
func (n *Node) WithArgs(args ...*Node) *Node {
	cp := *n
	cp.Args = args

	return &cp
}

// Walk applies visit to every node in the tree rooted at n, in pre-order.
func (n *Node) Walk(visit func(*Node)) {
	if n == nil {
		return
	}

	visit(n)

	for _, a := range n.Args {
		a.Walk(visit)
	}
}
