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

// Package output implements C11: assembling the deploy/runtime assembler
// Programs, the dispatch table's ABI methods, and the layout allocator's
// storage sections into the single compiled-artifact bundle spec §6
// describes, and rendering it to JSON.
package output

import (
	"fmt"
	"sort"

	"github.com/segmentio/encoding/json"

	"github.com/vylang/corec/pkg/abi"
	"github.com/vylang/corec/pkg/assembler"
	"github.com/vylang/corec/pkg/evm"
	"github.com/vylang/corec/pkg/layout"
	"github.com/vylang/corec/pkg/metadata"
)

// SourceMap is spec §6's `source_map` output shape:
// {pc_pos_map, pc_jump_map, pc_pos_map_compressed, error_map, breakpoints, pc_breakpoints}.
type SourceMap struct {
	PCPosMap           map[int]string            `json:"pc_pos_map"`
	PCJumpMap          map[int]assembler.JumpTag `json:"pc_jump_map"`
	PCPosMapCompressed []CompactTuple            `json:"pc_pos_map_compressed"`
	ErrorMap           map[int]string            `json:"error_map"`
	Breakpoints        []string                  `json:"breakpoints"`
	PCBreakpoints      []int                     `json:"pc_breakpoints"`
}

// CompactTuple is one JSON-renderable entry of PCPosMapCompressed: the
// array form of an assembler.CompactEntry, using JSON null for an omitted
// field (spec §4.9's "omitting trailing fields when unchanged").
type CompactTuple struct {
	Start    *int               `json:"start,omitempty"`
	Length   *int               `json:"length,omitempty"`
	SourceID *int               `json:"source_id,omitempty"`
	Jump     *assembler.JumpTag `json:"jump,omitempty"`
}

// buildSourceMap derives spec §6's source_map object from an assembled
// Program. pc_breakpoints lists, in ascending order, every PC that has an
// AST node in PCRawASTMap; breakpoints lists the distinct source positions
// of those PCs, in order of first appearance.
func buildSourceMap(p *assembler.Program) SourceMap {
	posMap := make(map[int]string, len(p.PCRawASTMap))
	for pc, n := range p.PCRawASTMap {
		posMap[pc] = n.Span.String()
	}

	raw := p.RawSourceMap()
	compact := assembler.Compress(raw)

	tuples := make([]CompactTuple, len(compact))

	for i, c := range compact {
		var t CompactTuple

		t.Start = c.Start
		t.Length = c.Length

		if c.SourceID != nil {
			v := int(*c.SourceID)
			t.SourceID = &v
		}

		t.Jump = c.Jump
		tuples[i] = t
	}

	breakpointPCs := make([]int, 0, len(p.PCRawASTMap))
	for pc := range p.PCRawASTMap {
		breakpointPCs = append(breakpointPCs, pc)
	}

	sort.Ints(breakpointPCs)

	breakpoints := make([]string, 0, len(breakpointPCs))
	seen := make(map[string]bool, len(breakpointPCs))

	for _, pc := range breakpointPCs {
		pos := posMap[pc]
		if !seen[pos] {
			seen[pos] = true
			breakpoints = append(breakpoints, pos)
		}
	}

	return SourceMap{
		PCPosMap:           posMap,
		PCJumpMap:          p.PCJumpMap,
		PCPosMapCompressed: tuples,
		ErrorMap:           p.ErrorMap,
		Breakpoints:        breakpoints,
		PCBreakpoints:      breakpointPCs,
	}
}

// MetadataView is spec §6's `metadata` output shape.
type MetadataView struct {
	RuntimeLength      int            `json:"runtime_length"`
	DataSectionLengths []int          `json:"data_section_lengths"`
	ImmutablesLength   int            `json:"immutables_length"`
	Compiler           map[string]any `json:"compiler"`
}

func buildMetadataView(t metadata.Trailer) MetadataView {
	return MetadataView{
		RuntimeLength:      t.RuntimeLength,
		DataSectionLengths: t.DataSectionLengths,
		ImmutablesLength:   t.ImmutablesLength,
		Compiler: map[string]any{
			"vyper": []int{t.Version.Major, t.Version.Minor, t.Version.Patch},
		},
	}
}

// CompilationArtifact is the full compiled-output bundle spec §6 describes,
// with every field optional per "any requested subset" — Build always
// populates everything passed to it, and Select trims the result down to a
// caller-chosen subset of top-level keys before JSON rendering.
type CompilationArtifact struct {
	Bytecode          string            `json:"bytecode,omitempty"`
	BytecodeRuntime   string            `json:"bytecode_runtime,omitempty"`
	ABI               []abi.Entry       `json:"abi,omitempty"`
	SourceMap         *SourceMap        `json:"source_map,omitempty"`
	StorageLayout     map[string]any    `json:"storage_layout,omitempty"`
	TransientLayout   map[string]any    `json:"transient_storage_layout,omitempty"`
	CodeLayout        map[string]any    `json:"code_layout,omitempty"`
	Metadata          *MetadataView     `json:"metadata,omitempty"`
	MethodIdentifiers map[string]string `json:"method_identifiers,omitempty"`
	Opcodes           string            `json:"opcodes,omitempty"`
	OpcodesRuntime    string            `json:"opcodes_runtime,omitempty"`
}

// BuildInput bundles everything Build needs from the rest of the pipeline:
// the two assembled programs (deploy includes the runtime's bytes as its own
// data section plus the metadata trailer; runtime is the bare dispatch +
// method bodies), the ABI method list, the computed storage layout, and the
// metadata trailer.
type BuildInput struct {
	Deploy  *assembler.Program
	Runtime *assembler.Program
	Methods []abi.Method
	Layout  layout.Result
	Trailer metadata.Trailer
	EVMVer  evm.Version
}

// Build assembles a complete CompilationArtifact from one compilation's
// intermediate results (spec §6).
func Build(in BuildInput) CompilationArtifact {
	deploySM := buildSourceMap(in.Deploy)
	runtimeView := buildMetadataView(in.Trailer)

	return CompilationArtifact{
		Bytecode:          fmt.Sprintf("0x%x", in.Deploy.Bytes),
		BytecodeRuntime:   fmt.Sprintf("0x%x", in.Runtime.Bytes),
		ABI:               abi.JSON(in.Methods),
		SourceMap:         &deploySM,
		StorageLayout:     in.Layout.Storage.ToMap(),
		TransientLayout:   in.Layout.Transient.ToMap(),
		CodeLayout:        in.Layout.Code.ToMap(),
		Metadata:          &runtimeView,
		MethodIdentifiers: abi.MethodIdentifiers(in.Methods),
		Opcodes:           Disassemble(in.Deploy.Bytes),
		OpcodesRuntime:    Disassemble(in.Runtime.Bytes),
	}
}

// Select returns a copy of a with every top-level field not named in keys
// cleared, implementing spec §6's "any requested subset". Unknown keys are
// ignored.
func Select(a CompilationArtifact, keys []string) CompilationArtifact {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}

	var out CompilationArtifact

	if want["bytecode"] {
		out.Bytecode = a.Bytecode
	}

	if want["bytecode_runtime"] {
		out.BytecodeRuntime = a.BytecodeRuntime
	}

	if want["abi"] {
		out.ABI = a.ABI
	}

	if want["source_map"] {
		out.SourceMap = a.SourceMap
	}

	if want["storage_layout"] {
		out.StorageLayout = a.StorageLayout
	}

	if want["transient_storage_layout"] {
		out.TransientLayout = a.TransientLayout
	}

	if want["code_layout"] {
		out.CodeLayout = a.CodeLayout
	}

	if want["metadata"] {
		out.Metadata = a.Metadata
	}

	if want["method_identifiers"] {
		out.MethodIdentifiers = a.MethodIdentifiers
	}

	if want["opcodes"] {
		out.Opcodes = a.Opcodes
	}

	if want["opcodes_runtime"] {
		out.OpcodesRuntime = a.OpcodesRuntime
	}

	return out
}

// MarshalJSON renders a into the wire bundle, using segmentio/encoding's
// faster encoder since this payload (ABI plus a per-PC source map) can be
// large for real contracts.
func MarshalJSON(a CompilationArtifact) ([]byte, error) {
	return json.Marshal(a)
}
