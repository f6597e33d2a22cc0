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
package source

import "strings"

// File is a single compiler input held in memory: its assigned ID, the path
// it was resolved from, and its raw contents.  Line lookups are computed
// lazily from the contents on first use.
type File struct {
	id       ID
	path     string
	contents string
	lines    []int // byte offset of the start of each line; computed lazily
}

// NewFile constructs a source file for the given id, path and contents.
func NewFile(id ID, path string, contents string) *File {
	return &File{id: id, path: path, contents: contents}
}

// ID returns this file's source id.
func (f *File) ID() ID {
	return f.id
}

// Path returns the resolved path this file was loaded from.
func (f *File) Path() string {
	return f.path
}

// Contents returns the raw source text.
func (f *File) Contents() string {
	return f.contents
}

func (f *File) lineStarts() []int {
	if f.lines != nil {
		return f.lines
	}

	starts := []int{0}

	for i, c := range f.contents {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}

	f.lines = starts

	return f.lines
}

// PositionOf converts a byte offset into this file into a 1-indexed
// line/column position.  An offset beyond the end of the file resolves to
// the final line, matching the teacher's "clamp to last line" behaviour for
// FindFirstEnclosingLine.
func (f *File) PositionOf(offset int) Position {
	starts := f.lineStarts()
	// Binary search for the last line start <= offset.
	lo, hi := 0, len(starts)-1

	for lo < hi {
		mid := (lo + hi + 1) / 2
		if starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	col := offset - starts[lo] + 1

	return Position{Line: lo + 1, Column: col}
}

// SyntaxError constructs a syntax error over the given span of this file.
func (f *File) SyntaxError(span Span, msg string) *CompilerError {
	return &CompilerError{kind: SyntaxException, file: f, span: span, msg: msg}
}

// Snippet returns the text covered by a span, clamped to this file's bounds.
func (f *File) Snippet(span Span) string {
	start, end := span.Start, span.End
	if start < 0 {
		start = 0
	}

	if end > len(f.contents) {
		end = len(f.contents)
	}

	if start > end {
		return ""
	}

	return strings.TrimRight(f.contents[start:end], "\n")
}
