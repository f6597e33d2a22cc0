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

// Package source provides the shared position and error machinery used
// across the compiler pipeline: a Span over a SourceID's text, a Position
// (line/column) view of a span, and the typed CompilerError taxonomy raised
// by every pipeline stage.
package source

import "fmt"

// ID uniquely identifies a compiler input (module or JSON/ABI file) within a
// single compilation.  IDs are assigned by the import resolver and are stable
// for the lifetime of the compilation.
type ID uint32

// Span represents a contiguous slice of a module's source text, identified
// by byte offsets rather than a substring so it remains cheap to pass around
// and to re-render against the original text on demand.
type Span struct {
	Source ID
	Start  int
	End    int
}

// NewSpan constructs a span, panicking if the bounds are inverted.
func NewSpan(src ID, start, end int) Span {
	if start > end {
		panic("source: invalid span")
	}

	return Span{Source: src, Start: start, End: end}
}

// Length returns the number of bytes covered by this span.
func (s Span) Length() int {
	return s.End - s.Start
}

// String renders the canonical "<start>:<length>:<source_id>" form used in
// the annotated AST's `src` field (spec §6).
func (s Span) String() string {
	return fmt.Sprintf("%d:%d:%d", s.Start, s.Length(), s.Source)
}

// Position is a human-facing line/column pair, counting from 1.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}
