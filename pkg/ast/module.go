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
package ast

import (
	"math/big"

	"github.com/vylang/corec/pkg/source"
)

// Module is the unit of compilation (spec §3). Its SourceID is a small
// integer, unique within a compilation and stable across it; ResolvedPath
// and Source are as loaded by the import resolver's InputBundle.
type Module struct {
	SourceID    source.ID
	ResolvedPath string
	Source      string
	Imports     []*ImportEdge
	Decls       []Decl
}

// ImportEdge is a directed edge from a module to an imported module (spec
// §3). Alias holds the `z` of `import x.y as z` (required unless y has no
// dot); Level carries the relative depth of `from ... import name` (0 is
// absolute).
type ImportEdge struct {
	Node
	Alias    string
	Qualname string
	Level    int
	Target   *Module
	// ABI holds the parsed interface when this edge resolves to a `.json`
	// compiler input rather than a `.vy`/`.vyi` module (spec §4.2); Target is
	// nil in that case.
	ABI any
	// Digest is the sha256 of the resolved compiler input's own contents
	// (the child module's source, or the JSON file's bytes for an ABI
	// import); used by the integrity hash (spec §4.2).
	Digest [32]byte
}

// Decl is implemented by every top-level module declaration.
type Decl interface {
	declNode() Node
}

// ImportDecl is the declaration-level occurrence of an import; the actual
// resolved edge lives on the enclosing Module's Imports slice and is linked
// here for the declaration's ImportInfo metadata.
type ImportDecl struct {
	Node
	Edge *ImportEdge
}

func (d *ImportDecl) declNode() Node { return d.Node }

// InitializesDecl records `initializes N`: nests N's state-variable
// allocation into the enclosing module's sequence at this declaration's
// position (spec §4.3).
type InitializesDecl struct {
	Node
	Target *Module
}

func (d *InitializesDecl) declNode() Node { return d.Node }

// ConstDecl is a compile-time named constant.
type ConstDecl struct {
	Node
	Name  string
	Value Literal
}

func (d *ConstDecl) declNode() Node { return d.Node }

// Literal is a compile-time constant value (integer, bool, bytes or
// string), as produced by constant folding in the semantic analyzer or by
// the IR optimizer's own constant-folding pass (spec §4.5).
type Literal struct {
	Kind LiteralKind
	Int  int64 // valid when Kind == LiteralInt and the value fits in 64 bits
	// BigInt carries the full 256-bit value when Int cannot (e.g. the
	// result of folding an EVM word-width multiplication); nil otherwise.
	// AsBigInt is the authoritative accessor.
	BigInt *big.Int
	Bytes  []byte
}

// AsBigInt returns this literal's integer value with full 256-bit range,
// regardless of whether it was constructed via Int or BigInt.
func (l Literal) AsBigInt() *big.Int {
	if l.BigInt != nil {
		return l.BigInt
	}

	return big.NewInt(l.Int)
}

// LiteralKind discriminates Literal's payload.
type LiteralKind uint8

const (
	LiteralInt LiteralKind = iota
	LiteralBool
	LiteralBytes
	LiteralString
)

// VariableDecl is a state variable (persistent, transient, or
// code-immutable depending on its VarInfo metadata, set separately).
type VariableDecl struct {
	Node
	Name string
	Info VarInfo
}

func (d *VariableDecl) declNode() Node { return d.Node }

// Param is a single function parameter or return value.
type Param struct {
	Name string
	Type TypeInfo
}

// FunctionDecl is a function declaration. Body is expressed directly in the
// core IR (package ir) rather than as a separate expression-AST grammar: the
// boundary documented in spec §6 leaves the exact shape of "annotated AST"
// function bodies to the external semantic analyzer, and spec §4.6 only
// specifies the IR-to-assembly lowering contract, not an AST-to-IR
// translation grammar. Modelling the boundary at IR keeps this package
// faithful to the parts of the contract that are actually specified (see
// DESIGN.md, "AST/IR boundary").
type FunctionDecl struct {
	Node
	Name         string
	External     bool
	Internal     bool
	Mutability   Mutability
	Nonreentrant bool
	DefaultArgs  int
	Params       []Param
	Returns      []Param
	Body         Body
}

func (d *FunctionDecl) declNode() Node { return d.Node }

// Body is implemented by ir.Node; declared here as an interface (rather than
// importing package ir directly) to avoid a dependency cycle, since package
// ir in turn references ast.Node for source-mapping (spec §3 IR node
// `src` field).
type Body interface {
	IsIRBody()
}

// EventDecl is a loggable event declaration (source-level `event`/`log`,
// rewritten by the pre-parser to `yield`, spec §4.1).
type EventDecl struct {
	Node
	Name   string
	Fields []Param
}

func (d *EventDecl) declNode() Node { return d.Node }

// StructDecl is a struct type declaration.
type StructDecl struct {
	Node
	Name   string
	Fields []Param
}

func (d *StructDecl) declNode() Node { return d.Node }

// FlagDecl is an enum-like flag-set declaration.
type FlagDecl struct {
	Node
	Name    string
	Members []string
}

func (d *FlagDecl) declNode() Node { return d.Node }

// InterfaceDecl declares an external interface's function signatures.
type InterfaceDecl struct {
	Node
	Name      string
	Functions []FunctionDecl
}

func (d *InterfaceDecl) declNode() Node { return d.Node }
