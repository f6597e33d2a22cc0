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

// Package compiler implements the top-level orchestration of C1 through
// C11: given an entry module path, it drives pre-parsing, import
// resolution, storage-layout allocation, per-function IR optimization and
// assembly lowering, selector-dispatch synthesis, dead-code elimination,
// two-pass assembly, and metadata-trailer encoding, and renders the result
// into a single compiled-artifact bundle.
package compiler

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/vylang/corec/pkg/abi"
	"github.com/vylang/corec/pkg/assembler"
	"github.com/vylang/corec/pkg/ast"
	"github.com/vylang/corec/pkg/bundle"
	"github.com/vylang/corec/pkg/codegen"
	"github.com/vylang/corec/pkg/config"
	"github.com/vylang/corec/pkg/deadcode"
	"github.com/vylang/corec/pkg/ir"
	"github.com/vylang/corec/pkg/ir/optimizer"
	"github.com/vylang/corec/pkg/layout"
	"github.com/vylang/corec/pkg/metadata"
	"github.com/vylang/corec/pkg/output"
	"github.com/vylang/corec/pkg/preparse"
	"github.com/vylang/corec/pkg/resolve"
	"github.com/vylang/corec/pkg/source"
)

// constructorName is the reserved function name of a module's constructor
// body (the original implementation's own convention, carried through
// unchanged by the pre-parser/semantic-analyzer boundary). Its FunctionDecl
// is neither External nor Internal; its Body is an ir.Deploy node.
const constructorName = "__init__"

// Compiler drives one compilation end to end against an injected Bundle
// (spec §6's InputBundle) and Parser (the external parser/semantic-analyzer
// boundary, spec §1 — this module implements everything downstream of the
// annotated AST that boundary hands back).
type Compiler struct {
	Bundle   bundle.Bundle
	Builtins bundle.Bundle
	Parse    resolve.Parser
	Config   config.CompilationConfig
}

// New constructs a Compiler.
func New(b, builtins bundle.Bundle, parse resolve.Parser, cfg config.CompilationConfig) *Compiler {
	return &Compiler{Bundle: b, Builtins: builtins, Parse: parse, Config: cfg}
}

func (c *Compiler) compilerVersionString() string {
	v := c.Config.CompilerVersion
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

// Compile runs the full pipeline against entryPath. Every stage below
// returns a typed *source.CompilerError rather than panicking; the single
// recover here exists only to catch a genuine internal-invariant violation
// (a CompilerPanic raised deliberately, or any other Go panic) and surface
// it in the same typed form, so callers never see a bare runtime panic
// cross this package's boundary.
func (c *Compiler) Compile(entryPath string) (art output.CompilationArtifact, cerr *source.CompilerError) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*source.CompilerError); ok {
				cerr = ce
				return
			}

			cerr = source.NewError(source.CompilerPanic, fmt.Sprintf("%v", r))
		}
	}()

	return c.compile(entryPath)
}

func (c *Compiler) compile(entryPath string) (output.CompilationArtifact, *source.CompilerError) {
	log.Debugf("compiling %s (evm=%s, optimize=%s)", entryPath, c.Config.EVMVersion, c.Config.Optimize)

	fi, err := c.Bundle.LoadFile(entryPath, 0)
	if err != nil {
		return output.CompilationArtifact{}, source.NewError(source.ModuleNotFound, err.Error())
	}

	file := source.NewFile(0, fi.ResolvedPath, fi.Contents)

	pp, cerr := preparse.PreParse(file, c.compilerVersionString())
	if cerr != nil {
		return output.CompilationArtifact{}, cerr
	}

	cfg := c.Config
	if pp.Settings.HasOptimize {
		cfg.Optimize = pp.Settings.Optimize
	}

	if pp.Settings.HasEVMVersion {
		cfg.EVMVersion = pp.Settings.EVMVersion
	}

	entryInput := bundle.FileInput{SourceID: 0, Path: fi.Path, ResolvedPath: fi.ResolvedPath, Contents: pp.Rewritten}

	root, err := c.Parse.Parse(entryInput)
	if err != nil {
		rewritten := source.NewFile(0, fi.ResolvedPath, pp.Rewritten)
		return output.CompilationArtifact{}, rewritten.SyntaxError(source.NewSpan(0, 0, 0), err.Error())
	}

	resolver := resolve.New(c.Bundle, c.Parse, 1)
	resolver.Builtins = c.Builtins

	resolved, cerr := resolver.Resolve(root)
	if cerr != nil {
		return output.CompilationArtifact{}, cerr
	}

	lay, cerr := layout.Allocate(resolved.Root, cfg.EVMVersion, nil)
	if cerr != nil {
		return output.CompilationArtifact{}, cerr
	}

	return c.compileModule(resolved.Root, lay, cfg)
}

// compileModule lowers every function declaration reachable from root into
// the two assembled programs and assembles the final artifact (spec §4.6
// through §4.11). Split from compile so fixtures that already have an
// annotated root module (i.e. tests, which stand in for the external
// parser+semantic-analyzer+C2+C3 stages) can drive it directly.
func (c *Compiler) compileModule(root *ast.Module, lay layout.Result, cfg config.CompilationConfig) (output.CompilationArtifact, *source.CompilerError) {
	fns := collectFunctions(root)

	e := codegen.NewEmitter(cfg.EVMVersion)
	prog := codegen.NewProgram(e)

	var (
		methods        []abi.Method
		functionBlk    [][]codegen.Item
		internalBlocks [][]codegen.Item
		deployBody     []codegen.Item
	)

	for _, fn := range fns {
		body, ok := fn.Body.(*ir.Node)
		if !ok || body == nil {
			continue
		}

		optimized := optimizer.Optimize(body)

		switch {
		case fn.Name == constructorName:
			deployBody = append(deployBody, e.Lower(optimized)...)
		case fn.External:
			if fn.Nonreentrant {
				optimized = wrapNonreentrant(e, optimized, lay, cfg.EVMVersion)
			}

			entryLabel := "fn_" + fn.Name

			var block []codegen.Item

			block = append(block, codegen.NewLabel(entryLabel))
			block = append(block, e.Lower(optimized)...)
			functionBlk = append(functionBlk, block)

			methods = append(methods, buildMethod(fn, entryLabel))
		case fn.Internal:
			entryLabel := "internal_" + fn.Name

			params := make([]string, len(fn.Params))
			for i, p := range fn.Params {
				params[i] = p.Name
			}

			returnValency := 0
			if len(fn.Returns) > 0 {
				returnValency = 1
			}

			block := prog.Function(entryLabel, params, returnValency, func() []codegen.Item {
				return e.Lower(optimized)
			})

			functionBlk = append(functionBlk, block)
			internalBlocks = append(internalBlocks, block)
		}
	}

	sort.Slice(methods, func(i, j int) bool { return methods[i].Selector < methods[j].Selector })

	fallback := e.Revert0()

	dispatchItems, roots := buildDispatch(e, methods, fallback, cfg.Optimize)

	runtimeItems := prog.Runtime(dispatchItems, functionBlk...)
	runtimeItems = deadcode.Eliminate(runtimeItems, roots)

	runtimeProg, err := assembler.Assemble(runtimeItems, cfg.EVMVersion)
	if err != nil {
		return output.CompilationArtifact{}, source.NewError(source.CompilerPanic, err.Error())
	}

	trailer := metadata.Trailer{
		RuntimeLength:    len(runtimeProg.Bytes),
		ImmutablesLength: totalImmutablesLength(lay.Code),
		Version: metadata.CompilerVersion{
			Major: int(cfg.CompilerVersion[0]),
			Minor: int(cfg.CompilerVersion[1]),
			Patch: int(cfg.CompilerVersion[2]),
		},
	}

	trailerBytes, err := trailer.Encode()
	if err != nil {
		return output.CompilationArtifact{}, source.NewError(source.CompilerPanic, err.Error())
	}

	// Internal functions are lowered once but may be called from both the
	// constructor and any external method; the runtime program already has
	// its own copy above, and the deploy program needs its own copy too
	// (spec §4.8's S5 scenario: an internal function called only from
	// __init__ must survive deploy dead-code elimination while being
	// eliminated from runtime). They're placed after an unconditional jump
	// over them so the constructor's own fall-through path never enters
	// one by accident.
	ctorItems := deployBody

	if len(internalBlocks) > 0 {
		skip := e.FreshLabel("ctor_skip")

		ctorItems = append(ctorItems, e.PushLabelItem(skip), e.Op("JUMP"))

		for _, blk := range internalBlocks {
			ctorItems = append(ctorItems, blk...)
		}

		ctorItems = append(ctorItems, codegen.NewLabel(skip))
	}

	deployItems := prog.Deploy(ctorItems, runtimeProg.Bytes, trailerBytes)
	deployItems = deadcode.Eliminate(deployItems, nil)

	deployProg, err := assembler.Assemble(deployItems, cfg.EVMVersion)
	if err != nil {
		return output.CompilationArtifact{}, source.NewError(source.CompilerPanic, err.Error())
	}

	return output.Build(output.BuildInput{
		Deploy:  deployProg,
		Runtime: runtimeProg,
		Methods: methods,
		Layout:  lay,
		Trailer: trailer,
		EVMVer:  cfg.EVMVersion,
	}), nil
}
