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

// Package ast defines the annotated-AST boundary the core consumes (spec
// §6). The lexer/parser and semantic analyzer which produce this structure
// are external collaborators (spec §1); this package only describes their
// output shape.
//
// The original source attaches analysis results to AST nodes via dynamic
// attribute assignment (`node._metadata[...]`). Per the Design Notes (spec
// §9) that pattern is replaced here with a typed, node-id-keyed side table
// (Metadata) rather than any form of dynamic lookup.
package ast

import "github.com/vylang/corec/pkg/source"

// NodeID stably identifies an AST node within a single compilation.
type NodeID uint64

// Node is the position information every AST node carries (spec §6): a
// stable id and the source span it was parsed from.
type Node struct {
	ID   NodeID
	Span source.Span
}
