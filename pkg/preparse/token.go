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
package preparse

// Kind identifies the lexical class of a pre-parser token. Only the
// categories the pre-parser contract (spec §4.1) actually inspects are
// distinguished; everything else collapses to Other and is passed through
// verbatim.
type Kind uint8

const (
	// EOF signals end of input.
	EOF Kind = iota
	// Comment is a `#...` run to end of line.
	Comment
	// Name is an identifier.
	Name
	// Semicolon is the literal ';' (rejected as a statement separator).
	Semicolon
	// Colon is the literal ':'.
	Colon
	// Other is a run of spaces/tabs/carriage returns, a string literal, or
	// any other single character, passed through unchanged.
	Other
	// Newline marks a line break.
	Newline
)

// Token is a single lexed unit with its source position (0-indexed byte
// offset, and 1-indexed line/column for diagnostics).
type Token struct {
	Kind   Kind
	Text   string
	Offset int
	Line   int
	Col    int
}
