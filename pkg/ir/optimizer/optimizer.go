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

// Package optimizer implements C5, the IR optimizer (spec §4.5): a fixpoint
// of local rewrites over the IR tree (package ir) — constant folding,
// algebraic identities, dead-branch elimination, seq merging, and
// jump-target shortening. Every rule preserves observable semantics.
package optimizer

import (
	"math/big"

	"github.com/vylang/corec/pkg/ast"
	"github.com/vylang/corec/pkg/ir"
)

// maxPasses bounds the fixpoint loop; a rewrite rule that never converges is
// an internal bug, not a user-triggerable condition, so exceeding this is a
// panic rather than a returned error.
const maxPasses = 10_000

// wordMod is 2^256, the EVM word's modulus (spec §4.5 "truncation at
// 2^256").
var wordMod = new(big.Int).Lsh(big.NewInt(1), 256)

// signBit is 2^255, the threshold above which a truncated word represents a
// negative two's-complement value.
var signBit = new(big.Int).Lsh(big.NewInt(1), 255)

// Optimize runs every local rewrite rule to a fixpoint (spec §4.5): each
// pass rewrites the tree bottom-up and shortens jump chains; the loop exits
// as soon as a pass makes no change.
func Optimize(root *ir.Node) *ir.Node {
	for i := 0; i < maxPasses; i++ {
		next, changedLocal := rewriteTree(root)
		next, changedJumps := shortenJumps(next)

		if !changedLocal && !changedJumps {
			return next
		}

		root = next
	}

	panic("ir optimizer: exceeded max passes without reaching a fixpoint")
}

// rules is applied, in order, to every node once its children have already
// been rewritten; the first rule that fires wins for that node.
var rules = []func(*ir.Node) (*ir.Node, bool){
	foldArith,
	simplifyAlgebraic,
	simplifyIf,
	mergeSeq,
}

// rewriteTree applies rules bottom-up over the whole tree in a single pass,
// reporting whether anything changed.
func rewriteTree(n *ir.Node) (*ir.Node, bool) {
	if n == nil {
		return nil, false
	}

	changed := false

	newArgs := make([]*ir.Node, len(n.Args))

	for i, a := range n.Args {
		r, c := rewriteTree(a)
		newArgs[i] = r
		changed = changed || c
	}

	node := n
	if changed {
		node = n.WithArgs(newArgs...)
	}

	for _, rule := range rules {
		if replaced, ok := rule(node); ok {
			return replaced, true
		}
	}

	return node, changed
}

// trunc reduces v into the EVM word range [0, 2^256).
func trunc(v *big.Int) *big.Int {
	return new(big.Int).Mod(v, wordMod)
}

// signed interprets a truncated word as a two's-complement signed value.
func signed(v *big.Int) *big.Int {
	v = trunc(v)
	if v.Cmp(signBit) >= 0 {
		return new(big.Int).Sub(v, wordMod)
	}

	return v
}

func boolInt(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}

	return big.NewInt(0)
}

func literalInt(v *big.Int) *ir.Node {
	return ir.NewLiteral(ast.Literal{Kind: ast.LiteralInt, BigInt: v})
}

// foldArith constant-folds an arithmetic, bitwise, comparison, or shift op
// whose operands are all integer literals (spec §4.5 "constant folding over
// arithmetic"). Shift ops follow the EVM opcode's own argument order: the
// shift amount first, the shifted value second.
func foldArith(n *ir.Node) (*ir.Node, bool) {
	args := make([]*big.Int, len(n.Args))

	for i, a := range n.Args {
		if !a.IsLiteral() || a.Literal.Kind != ast.LiteralInt {
			return nil, false
		}

		args[i] = a.Literal.AsBigInt()
	}

	switch n.Op {
	case ir.Add:
		return literalInt(trunc(new(big.Int).Add(args[0], args[1]))), true
	case ir.Sub:
		return literalInt(trunc(new(big.Int).Sub(args[0], args[1]))), true
	case ir.Mul:
		return literalInt(trunc(new(big.Int).Mul(args[0], args[1]))), true
	case ir.Div:
		if args[1].Sign() == 0 {
			return literalInt(big.NewInt(0)), true
		}

		return literalInt(trunc(new(big.Int).Div(args[0], args[1]))), true
	case ir.Mod:
		if args[1].Sign() == 0 {
			return literalInt(big.NewInt(0)), true
		}

		return literalInt(trunc(new(big.Int).Mod(args[0], args[1]))), true
	case ir.SDiv:
		a, b := signed(args[0]), signed(args[1])
		if b.Sign() == 0 {
			return literalInt(big.NewInt(0)), true
		}

		return literalInt(trunc(new(big.Int).Quo(a, b))), true
	case ir.SMod:
		a, b := signed(args[0]), signed(args[1])
		if b.Sign() == 0 {
			return literalInt(big.NewInt(0)), true
		}

		return literalInt(trunc(new(big.Int).Rem(a, b))), true
	case ir.Lt:
		return literalInt(boolInt(args[0].Cmp(args[1]) < 0)), true
	case ir.Gt:
		return literalInt(boolInt(args[0].Cmp(args[1]) > 0)), true
	case ir.Slt:
		return literalInt(boolInt(signed(args[0]).Cmp(signed(args[1])) < 0)), true
	case ir.Sgt:
		return literalInt(boolInt(signed(args[0]).Cmp(signed(args[1])) > 0)), true
	case ir.Eq:
		return literalInt(boolInt(args[0].Cmp(args[1]) == 0)), true
	case ir.IsZero:
		return literalInt(boolInt(args[0].Sign() == 0)), true
	case ir.And:
		return literalInt(trunc(new(big.Int).And(args[0], args[1]))), true
	case ir.Or:
		return literalInt(trunc(new(big.Int).Or(args[0], args[1]))), true
	case ir.Xor:
		return literalInt(trunc(new(big.Int).Xor(args[0], args[1]))), true
	case ir.Not:
		return literalInt(trunc(new(big.Int).Not(args[0]))), true
	case ir.Byte:
		return literalInt(foldByte(args[0], args[1])), true
	case ir.Shl:
		return literalInt(foldShl(args[0], args[1])), true
	case ir.Shr:
		return literalInt(foldShr(args[0], args[1])), true
	case ir.Sar:
		return literalInt(foldSar(args[0], args[1])), true
	default:
		return nil, false
	}
}

func foldByte(index, value *big.Int) *big.Int {
	if index.Cmp(big.NewInt(32)) >= 0 {
		return big.NewInt(0)
	}

	shift := uint((31 - index.Int64()) * 8)

	return new(big.Int).And(new(big.Int).Rsh(value, shift), big.NewInt(0xff))
}

func foldShl(shift, value *big.Int) *big.Int {
	if shift.Cmp(big.NewInt(256)) >= 0 {
		return big.NewInt(0)
	}

	return trunc(new(big.Int).Lsh(value, uint(shift.Uint64())))
}

func foldShr(shift, value *big.Int) *big.Int {
	if shift.Cmp(big.NewInt(256)) >= 0 {
		return big.NewInt(0)
	}

	return new(big.Int).Rsh(value, uint(shift.Uint64()))
}

func foldSar(shift, value *big.Int) *big.Int {
	sv := signed(value)

	if shift.Cmp(big.NewInt(256)) >= 0 {
		if sv.Sign() < 0 {
			return trunc(big.NewInt(-1))
		}

		return big.NewInt(0)
	}

	return trunc(new(big.Int).Rsh(sv, uint(shift.Uint64())))
}

func isIntLiteral(n *ir.Node) bool {
	return n.IsLiteral() && n.Literal.Kind == ast.LiteralInt
}

func isZeroLiteral(n *ir.Node) bool {
	return isIntLiteral(n) && n.Literal.AsBigInt().Sign() == 0
}

func isOneLiteral(n *ir.Node) bool {
	return isIntLiteral(n) && n.Literal.AsBigInt().Cmp(big.NewInt(1)) == 0
}

// isComparisonOp reports whether op always produces a 0/1 value, the
// precondition spec §4.5 states for `(iszero (iszero x)) -> x`.
func isComparisonOp(op ir.Op) bool {
	switch op {
	case ir.Lt, ir.Gt, ir.Slt, ir.Sgt, ir.Eq, ir.IsZero, ir.Ne, ir.Le, ir.Ge, ir.Sle, ir.Sge:
		return true
	default:
		return false
	}
}

// isAllOnesMask reports whether v has the form 2^n-1 for some n >= 1: every
// low bit set, nothing above it.
func isAllOnesMask(v *big.Int) bool {
	if v.Sign() <= 0 {
		return false
	}

	succ := new(big.Int).Add(v, big.NewInt(1))

	return new(big.Int).And(v, succ).Sign() == 0
}

// simplifyAlgebraic applies the non-folding identities of spec §4.5:
// x+0->x, x*1->x, x*0->0, (iszero (iszero x))->x when x is 0/1-typed, and
// (and x 2^n-1) elimination when x provably fits in n bits (restricted here
// to x itself being a comparison, the one case this pass can prove without a
// separate range-analysis pass).
func simplifyAlgebraic(n *ir.Node) (*ir.Node, bool) {
	switch n.Op {
	case ir.Add:
		if isZeroLiteral(n.Args[1]) {
			return n.Args[0], true
		}

		if isZeroLiteral(n.Args[0]) {
			return n.Args[1], true
		}
	case ir.Mul:
		if isZeroLiteral(n.Args[0]) || isZeroLiteral(n.Args[1]) {
			return literalInt(big.NewInt(0)), true
		}

		if isOneLiteral(n.Args[1]) {
			return n.Args[0], true
		}

		if isOneLiteral(n.Args[0]) {
			return n.Args[1], true
		}
	case ir.IsZero:
		inner := n.Args[0]
		if inner.Op == ir.IsZero && isComparisonOp(inner.Args[0].Op) {
			return inner.Args[0], true
		}
	case ir.And:
		pairs := [2][2]*ir.Node{{n.Args[0], n.Args[1]}, {n.Args[1], n.Args[0]}}
		for _, p := range pairs {
			mask, other := p[0], p[1]
			if isIntLiteral(mask) && isAllOnesMask(mask.Literal.AsBigInt()) && isComparisonOp(other.Op) {
				return other, true
			}
		}
	}

	return nil, false
}

// simplifyIf implements dead-branch elimination (spec §4.5): if an `if`'s
// condition folds to a constant, the chosen arm replaces the whole node.
func simplifyIf(n *ir.Node) (*ir.Node, bool) {
	if n.Op != ir.If || !isIntLiteral(n.Args[0]) {
		return nil, false
	}

	if n.Args[0].Literal.AsBigInt().Sign() != 0 {
		return n.Args[1], true
	}

	if len(n.Args) == 3 {
		return n.Args[2], true
	}

	return ir.New(ir.Pass), true
}

// mergeSeq flattens a directly nested `seq` into its parent (spec §4.5
// "merging adjacent seqs").
func mergeSeq(n *ir.Node) (*ir.Node, bool) {
	if n.Op != ir.Seq {
		return nil, false
	}

	var flat []*ir.Node

	changed := false

	for _, c := range n.Args {
		if c.Op == ir.Seq {
			flat = append(flat, c.Args...)
			changed = true
		} else {
			flat = append(flat, c)
		}
	}

	if !changed {
		return nil, false
	}

	return ir.NewSeq(flat...), true
}

// shortenJumps implements jump-target shortening (spec §4.5): if a label's
// body is a single unconditional jump, every `goto` of that label is
// redirected straight to the final target. This is a whole-tree pass rather
// than a per-node rule, since a label and the gotos that reference it can be
// arbitrarily far apart in the tree.
func shortenJumps(root *ir.Node) (*ir.Node, bool) {
	redirects := collectRedirects(root)
	if len(redirects) == 0 {
		return root, false
	}

	changed := false
	result := rewriteGotos(root, redirects, &changed)

	return result, changed
}

// collectRedirects scans every `seq` in the tree for a `label L` immediately
// followed by a lone `goto M` (nothing else before the next label or the end
// of the seq), recording L -> M.
func collectRedirects(n *ir.Node) map[string]string {
	redirects := map[string]string{}

	var walk func(*ir.Node)

	walk = func(n *ir.Node) {
		if n == nil {
			return
		}

		if n.Op == ir.Seq {
			for i, child := range n.Args {
				if child.Op != ir.Label {
					continue
				}

				if i+1 >= len(n.Args) || n.Args[i+1].Op != ir.Goto {
					continue
				}

				if i+2 < len(n.Args) && n.Args[i+2].Op != ir.Label {
					continue
				}

				redirects[child.Name] = n.Args[i+1].Name
			}
		}

		for _, c := range n.Args {
			walk(c)
		}
	}

	walk(n)

	return redirects
}

// resolveRedirect follows a chain of redirects to its final target, guarding
// against a cycle by giving up and returning the last name seen.
func resolveRedirect(name string, redirects map[string]string) string {
	seen := map[string]bool{name: true}

	for {
		next, ok := redirects[name]
		if !ok || seen[next] {
			return name
		}

		seen[next] = true
		name = next
	}
}

func rewriteGotos(n *ir.Node, redirects map[string]string, changed *bool) *ir.Node {
	if n == nil {
		return nil
	}

	newArgs := make([]*ir.Node, len(n.Args))
	argsChanged := false

	for i, c := range n.Args {
		r := rewriteGotos(c, redirects, changed)
		newArgs[i] = r

		if r != c {
			argsChanged = true
		}
	}

	node := n
	if argsChanged {
		node = n.WithArgs(newArgs...)
	}

	if node.Op == ir.Goto {
		target := resolveRedirect(node.Name, redirects)
		if target != node.Name {
			*changed = true

			return ir.NewGoto(target)
		}
	}

	return node
}
