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
package assembler

import "github.com/vylang/corec/pkg/source"

// SourceMapEntry is one uncompressed 4-tuple of spec §4.9's source map:
// [start, length, source_id, jump] describing the span of original source
// text the instruction at a given PC originated from.
type SourceMapEntry struct {
	Start    int
	Length   int
	SourceID source.ID
	Jump     JumpTag
}

// RawSourceMap builds one entry per PC of the assembled program, run-length
// merging consecutive PCs that share an identical (Start, Length, SourceID,
// Jump) tuple — the pre-compression form spec §4.9 describes before
// "omitting trailing fields when unchanged" is applied.
func (p *Program) RawSourceMap() []SourceMapEntry {
	var entries []SourceMapEntry

	for pc := 0; pc < len(p.Bytes); pc++ {
		entry := SourceMapEntry{Jump: JumpOther}

		if n, ok := p.PCRawASTMap[pc]; ok {
			entry.Start = n.Span.Start
			entry.Length = n.Span.Length()
			entry.SourceID = n.Span.Source
		}

		if j, ok := p.PCJumpMap[pc]; ok {
			entry.Jump = j
		}

		if len(entries) > 0 && entries[len(entries)-1] == entry {
			continue
		}

		entries = append(entries, entry)
	}

	return entries
}

// CompactEntry is one run-length-compressed source-map tuple (spec §4.9:
// "omitting trailing fields when unchanged from the previous entry"). Each
// field is nil exactly when it is identical to the previous entry's
// corresponding field, so a decoder reconstructs the full tuple by carrying
// forward the last explicit value of any nil field. Since CompactEntry is a
// named-field struct rather than a positional array, omission is tracked
// per field independently rather than as a single contiguous trailing run
// (the array-only form Solidity's source-map string uses has no equivalent
// ambiguity to avoid here).
type CompactEntry struct {
	Start, Length *int
	SourceID      *source.ID
	Jump          *JumpTag
}

// Compress converts a RawSourceMap into its compact form.
func Compress(entries []SourceMapEntry) []CompactEntry {
	out := make([]CompactEntry, len(entries))

	var prev SourceMapEntry

	havePrev := false

	for i, e := range entries {
		var c CompactEntry

		if !havePrev || e.Start != prev.Start {
			s := e.Start
			c.Start = &s
		}

		if !havePrev || e.Length != prev.Length {
			l := e.Length
			c.Length = &l
		}

		if !havePrev || e.SourceID != prev.SourceID {
			s := e.SourceID
			c.SourceID = &s
		}

		if !havePrev || e.Jump != prev.Jump {
			j := e.Jump
			c.Jump = &j
		}

		out[i] = c
		prev = e
		havePrev = true
	}

	return out
}
