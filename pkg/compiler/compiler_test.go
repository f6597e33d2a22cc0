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
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vylang/corec/pkg/abi"
	"github.com/vylang/corec/pkg/assembler"
	"github.com/vylang/corec/pkg/ast"
	"github.com/vylang/corec/pkg/codegen"
	"github.com/vylang/corec/pkg/config"
	"github.com/vylang/corec/pkg/dispatch"
	"github.com/vylang/corec/pkg/evm"
	"github.com/vylang/corec/pkg/ir"
	"github.com/vylang/corec/pkg/layout"
)

func uint256Param(name string) ast.Param {
	return ast.Param{Name: name, Type: ast.TypeInfo{Name: "uint256", ABIType: "uint256", SizeInBytes: 32, StorageSizeInWords: 1}}
}

func emptyLayout() layout.Result {
	return layout.Result{Storage: layout.Section{}, Transient: layout.Section{}, Code: layout.Section{}}
}

func litInt(v int64) *ir.Node {
	return ir.NewLiteral(ast.Literal{Kind: ast.LiteralInt, Int: v})
}

// S1 Trivial returner: `foo() -> uint256: return 42`.
func TestCompileModuleTrivialReturner(t *testing.T) {
	body := ir.NewSeq(
		ir.New(ir.MStore, litInt(0), litInt(42)),
		ir.New(ir.Return, litInt(0), litInt(32)),
	)

	fn := &ast.FunctionDecl{
		Name:       "foo",
		External:   true,
		Mutability: ast.Nonpayable,
		Returns:    []ast.Param{uint256Param("")},
		Body:       body,
	}

	root := &ast.Module{Decls: []ast.Decl{fn}}

	c := New(nil, nil, nil, config.DefaultConfig())

	art, cerr := c.compileModule(root, emptyLayout(), config.DefaultConfig())
	require.Nil(t, cerr)

	assert.Equal(t, map[string]string{"foo()": "0xc2985578"}, art.MethodIdentifiers)

	runtime := art.OpcodesRuntime
	pushIdx := strings.Index(runtime, "PUSH1 0x2a")
	require.GreaterOrEqual(t, pushIdx, 0, "expected exactly one PUSH1 0x2a in the runtime disassembly")
	assert.Equal(t, -1, strings.Index(runtime[pushIdx+1:], "PUSH1 0x2a"), "expected exactly one PUSH1 0x2a")

	mstoreIdx := strings.Index(runtime, "MSTORE")
	returnIdx := strings.Index(runtime, "RETURN")
	assert.Greater(t, mstoreIdx, pushIdx, "MSTORE must follow the PUSH1 0x2a literal")
	assert.Greater(t, returnIdx, mstoreIdx, "RETURN must follow MSTORE")

	for _, tag := range art.SourceMap.PCJumpMap {
		assert.NotEqual(t, assembler.JumpTag("i"), tag)
		assert.NotEqual(t, assembler.JumpTag("o"), tag)
	}

	require.NotNil(t, art.Metadata)
	assert.Equal(t, 0, art.Metadata.ImmutablesLength)
}

// S2 Nonreentrant pair: two external functions annotated @nonreentrant share
// one lock slot and each guard their body with a load/assert/store sequence.
func TestCompileModuleNonreentrantPairSharesLock(t *testing.T) {
	mkBody := func(v int64) *ir.Node {
		return ir.NewSeq(
			ir.New(ir.MStore, litInt(0), litInt(v)),
			ir.New(ir.Return, litInt(0), litInt(32)),
		)
	}

	fn1 := &ast.FunctionDecl{Name: "a", External: true, Nonreentrant: true, Mutability: ast.Nonpayable,
		Returns: []ast.Param{uint256Param("")}, Body: mkBody(1)}
	fn2 := &ast.FunctionDecl{Name: "b", External: true, Nonreentrant: true, Mutability: ast.Nonpayable,
		Returns: []ast.Param{uint256Param("")}, Body: mkBody(2)}

	root := &ast.Module{Decls: []ast.Decl{fn1, fn2}}

	lay := layout.Result{
		Storage: layout.Section{
			nonreentrantKey: {StorageLeaf: &layout.StorageLeaf{Type: "nonreentrant", Slot: big.NewInt(0), NSlots: 1}},
		},
		Transient: layout.Section{},
		Code:      layout.Section{},
	}

	c := New(nil, nil, nil, config.DefaultConfig())

	art, cerr := c.compileModule(root, lay, config.DefaultConfig())
	require.Nil(t, cerr)

	storageView, ok := art.StorageLayout["$.nonreentrant_key"].(map[string]any)
	require.True(t, ok, "storage_layout must expose the nonreentrant lock under its reserved name")
	assert.Equal(t, big.NewInt(0), storageView["slot"])
	assert.Equal(t, 1, storageView["n_slots"])

	// shanghai has no transient storage: the guard uses SLOAD/ISZERO/.../SSTORE.
	sloadCount := strings.Count(art.OpcodesRuntime, "SLOAD")
	sstoreCount := strings.Count(art.OpcodesRuntime, "SSTORE")
	assert.Equal(t, 2, sloadCount, "one SLOAD guard per nonreentrant function")
	assert.Equal(t, 2, sstoreCount, "one SSTORE lock-set per nonreentrant function")
}

// S2b: the same pair on cancun uses TLOAD/TSTORE instead.
func TestCompileModuleNonreentrantUsesTransientStorageOnCancun(t *testing.T) {
	body := ir.NewSeq(
		ir.New(ir.MStore, litInt(0), litInt(1)),
		ir.New(ir.Return, litInt(0), litInt(32)),
	)

	fn := &ast.FunctionDecl{Name: "a", External: true, Nonreentrant: true, Mutability: ast.Nonpayable,
		Returns: []ast.Param{uint256Param("")}, Body: body}

	root := &ast.Module{Decls: []ast.Decl{fn}}

	lay := layout.Result{
		Storage:   layout.Section{},
		Transient: layout.Section{nonreentrantKey: {StorageLeaf: &layout.StorageLeaf{Type: "nonreentrant", Slot: big.NewInt(0), NSlots: 1}}},
		Code:      layout.Section{},
	}

	cfg := config.DefaultConfig()
	cfg.EVMVersion = evm.Cancun

	c := New(nil, nil, nil, cfg)

	art, cerr := c.compileModule(root, lay, cfg)
	require.Nil(t, cerr)

	assert.Contains(t, art.OpcodesRuntime, "TLOAD")
	assert.Contains(t, art.OpcodesRuntime, "TSTORE")
	assert.NotContains(t, art.OpcodesRuntime, "SLOAD")
}

// S3 Dense selector table: 30 external functions compiled with
// optimize=codesize must all remain reachable through the dense dispatcher.
func TestCompileModuleDenseSelectorTableCoversEveryMethod(t *testing.T) {
	var decls []ast.Decl

	for i := 0; i < 30; i++ {
		name := fmt.Sprintf("foo%d", i)
		body := ir.NewSeq(
			ir.New(ir.MStore, litInt(0), litInt(int64(i))),
			ir.New(ir.Return, litInt(0), litInt(32)),
		)

		decls = append(decls, &ast.FunctionDecl{
			Name: name, External: true, Mutability: ast.View,
			Returns: []ast.Param{uint256Param("")}, Body: body,
		})
	}

	root := &ast.Module{Decls: decls}

	cfg := config.DefaultConfig()
	cfg.Optimize = config.OptimizeCodesize

	c := New(nil, nil, nil, cfg)

	art, cerr := c.compileModule(root, emptyLayout(), cfg)
	require.Nil(t, cerr)

	require.Len(t, art.MethodIdentifiers, 30)

	for i := 0; i < 30; i++ {
		sig := fmt.Sprintf("foo%d()", i)
		_, ok := art.MethodIdentifiers[sig]
		assert.True(t, ok, "missing selector for %s", sig)
	}

	// the dense path is only reachable when dispatch.BuildDense itself
	// succeeds for this method set; confirm it does (pkg/dispatch's own
	// tests cover the bucket-size/perfect-hash details).
	methods := make([]abi.Method, 30)
	for i := range methods {
		sig := fmt.Sprintf("foo%d()", i)
		methods[i] = abi.NewMethod(fmt.Sprintf("foo%d", i), sig, "fn_foo", abi.View, 0, 0, false)
	}

	_, err := dispatch.BuildDense(methods)
	assert.NoError(t, err, "fixture must exercise the dense table path this test wires through buildDispatch")
}

// S4 Division by zero revert: `g(x, y) -> uint256: return x // y`.
func TestCompileModuleDivisionByZeroRevertTagged(t *testing.T) {
	node := &ast.Node{ID: 1}

	divisor := ir.NewVar("y").WithSource(node)
	guarded := ir.New(ir.ClampNonzero, divisor).WithSource(node)
	quotient := ir.New(ir.Div, ir.NewVar("x"), guarded)

	body := ir.NewSeq(
		ir.New(ir.MStore, litInt(0), quotient),
		ir.New(ir.Return, litInt(0), litInt(32)),
	)

	fn := &ast.FunctionDecl{
		Name: "g", External: true, Mutability: ast.Pure,
		Params:  []ast.Param{uint256Param("x"), uint256Param("y")},
		Returns: []ast.Param{uint256Param("")},
		Body:    wrapWithVars(body, "x", "y"),
	}

	root := &ast.Module{Decls: []ast.Decl{fn}}

	c := New(nil, nil, nil, config.DefaultConfig())

	_, cerr := c.compileModule(root, emptyLayout(), config.DefaultConfig())
	require.Nil(t, cerr)

	// Re-run the same lowering directly against a fresh emitter to inspect
	// the runtime-level error_map: pkg/output's compiled artifact only
	// exposes a source map over the deploy program (the runtime program is
	// embedded in it as an opaque data section), so the per-instruction tag
	// this scenario asks about is only observable at the assembler level.
	e := codegen.NewEmitter(evm.Shanghai)
	items := e.Lower(wrapWithVars(body, "x", "y"))
	items = append(items, e.SharedBlocks()...)

	prog, err := assembler.Assemble(items, evm.Shanghai)
	require.NoError(t, err)

	var tags []string
	for _, tag := range prog.ErrorMap {
		tags = append(tags, tag)
	}

	assert.Contains(t, tags, "safediv")
	assert.NotEmpty(t, prog.PCJumpMap, "expected the divisor-zero check's JUMPI to be classified")
}

// wrapWithVars binds each name to itself via With, so lowerNode's lexical
// env has bindings for Var("x")/Var("y") without needing a full function
// calling-convention fixture.
func wrapWithVars(body *ir.Node, names ...string) *ir.Node {
	n := body
	for i := len(names) - 1; i >= 0; i-- {
		n = ir.NewWith(names[i], litInt(0), n)
	}

	return n
}

// S5 Dead internal function: `@internal def dead(): pass`, referenced only
// from `__init__`, must be eliminated from the runtime program (whose
// dead-code roots are the fallback, the dispatch prologues and every
// external method — never the constructor) while surviving in the deploy
// program, which the constructor's own call keeps reachable.
//
// This is checked black-box, by comparing a compilation that declares and
// calls `dead` from the constructor against one that never declares it at
// all: since buildDispatch's runtime roots never include the constructor,
// an internal function unreachable from them contributes nothing to the
// runtime program either way, so bytecode_runtime must be byte-identical
// between the two, while bytecode (deploy) must differ (grows to include
// dead's body in the first compilation).
func TestCompileModuleDeadInternalFunctionRemovedFromRuntimeOnly(t *testing.T) {
	live := func() *ast.FunctionDecl {
		return &ast.FunctionDecl{
			Name: "foo", External: true, Mutability: ast.Nonpayable,
			Returns: []ast.Param{uint256Param("")},
			Body: ir.NewSeq(
				ir.New(ir.MStore, litInt(0), litInt(1)),
				ir.New(ir.Return, litInt(0), litInt(32)),
			),
		}
	}

	cfg := config.DefaultConfig()

	// Compilation A: dead is declared and invoked from __init__.
	dead := &ast.FunctionDecl{Name: "dead", Internal: true, Body: ir.New(ir.Stop)}
	ctorWithCall := &ast.FunctionDecl{
		Name: constructorName,
		Body: ir.NewSeq(ir.NewInternalCall("internal_dead", 0), ir.New(ir.Stop)),
	}

	rootWithDead := &ast.Module{Decls: []ast.Decl{dead, ctorWithCall, live()}}

	cWithDead := New(nil, nil, nil, cfg)

	artWithDead, cerr := cWithDead.compileModule(rootWithDead, emptyLayout(), cfg)
	require.Nil(t, cerr)

	// Compilation B: no dead function at all, same constructor shape minus
	// the call (nothing left to call).
	ctorPlain := &ast.FunctionDecl{Name: constructorName, Body: ir.New(ir.Stop)}
	rootWithoutDead := &ast.Module{Decls: []ast.Decl{ctorPlain, live()}}

	cWithoutDead := New(nil, nil, nil, cfg)

	artWithoutDead, cerr := cWithoutDead.compileModule(rootWithoutDead, emptyLayout(), cfg)
	require.Nil(t, cerr)

	assert.Equal(t, artWithoutDead.BytecodeRuntime, artWithDead.BytecodeRuntime,
		"an internal function reachable only from __init__ must not change the runtime program at all")
	assert.NotEqual(t, artWithoutDead.Bytecode, artWithDead.Bytecode,
		"the deploy program must retain dead's body since the constructor calls it")
}

// S6 Integrity sum stability is exercised at the import-resolution layer
// (pkg/resolve's own test suite), which is where the integrity hash this
// property describes is actually computed; pkg/compiler has no fixture of
// its own for it since Compile's entry point always delegates hashing to
// the resolver.
func TestCompileModuleIsDeterministic(t *testing.T) {
	mkRoot := func() *ast.Module {
		body := ir.NewSeq(
			ir.New(ir.MStore, litInt(0), litInt(7)),
			ir.New(ir.Return, litInt(0), litInt(32)),
		)

		fn := &ast.FunctionDecl{
			Name: "foo", External: true, Mutability: ast.Nonpayable,
			Returns: []ast.Param{uint256Param("")}, Body: body,
		}

		return &ast.Module{Decls: []ast.Decl{fn}}
	}

	cfg := config.DefaultConfig()
	c := New(nil, nil, nil, cfg)

	a1, cerr := c.compileModule(mkRoot(), emptyLayout(), cfg)
	require.Nil(t, cerr)

	a2, cerr := c.compileModule(mkRoot(), emptyLayout(), cfg)
	require.Nil(t, cerr)

	assert.Equal(t, a1.Bytecode, a2.Bytecode)
	assert.Equal(t, a1.BytecodeRuntime, a2.BytecodeRuntime)
	assert.Equal(t, a1.MethodIdentifiers, a2.MethodIdentifiers)
}
