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

// Region identifies one of the EVM's addressable storage classes (spec
// §4.3). It is the value every VarInfo and IR memory/storage node carries
// as its `location`.
type Region uint8

const (
	// RegionNone denotes a value with no storage location (e.g. an
	// immediate or a stack temporary).
	RegionNone Region = iota
	// RegionMemory is the byte-addressable scratch region, reset between
	// external calls.
	RegionMemory
	// RegionStorage is persistent, word-addressable contract storage.
	RegionStorage
	// RegionTransient is EIP-1153 transient storage, word-addressable and
	// reset between transactions.
	RegionTransient
	// RegionCalldata is the read-only input buffer of the current call.
	RegionCalldata
	// RegionCode is the deployed code itself, used for code-immutables.
	RegionCode
)

func (r Region) String() string {
	switch r {
	case RegionMemory:
		return "memory"
	case RegionStorage:
		return "storage"
	case RegionTransient:
		return "transient"
	case RegionCalldata:
		return "calldata"
	case RegionCode:
		return "code"
	default:
		return "none"
	}
}

// TypeInfo is the minimal type descriptor spec §6 requires AST nodes to
// carry: the ABI type string, its byte width when packed, and its width in
// 32-byte storage words.
type TypeInfo struct {
	Name               string
	ABIType            string
	SizeInBytes         int
	StorageSizeInWords int
}

// Mutability classifies an externally callable function (spec §4.7).
type Mutability uint8

const (
	Pure Mutability = iota
	View
	Nonpayable
	Payable
)

func (m Mutability) String() string {
	switch m {
	case Pure:
		return "pure"
	case View:
		return "view"
	case Payable:
		return "payable"
	default:
		return "nonpayable"
	}
}

// VarInfo records the resolved storage classification of a state or local
// variable, set by the (external) semantic analyzer and consumed by the
// layout allocator (C3) and codegen (C6).
type VarInfo struct {
	Name       string
	Type       TypeInfo
	Region     Region
	IsConstant bool
	IsPublic   bool
	IsHashMap  bool // consumes exactly one slot; elements addressed via salted hash (spec §4.3)
}

// ImportInfo records the resolved target of an import declaration, attached
// by the import resolver (C2) to the declaration node that introduced it.
type ImportInfo struct {
	Alias        string
	ResolvedPath string
	Module       *Module
}

// InitializesInfo records an `initializes N` declaration: module M nests
// module N's variables into its own allocation sequence at this point (spec
// §4.3).
type InitializesInfo struct {
	Module *Module
}

// MetadataKind names one of the well-known metadata slots of spec §6.
type MetadataKind uint8

const (
	MetaType MetadataKind = iota
	MetaFuncType
	MetaVarInfo
	MetaImportInfo
	MetaInitializesInfo
)

// Metadata is the node-id-keyed side table standing in for the source
// language's dynamic `_metadata` attribute. Each node id maps to a small
// fixed-size slot set; callers fetch a single kind and type-assert, never an
// open-ended attribute lookup.
type Metadata struct {
	entries map[NodeID]map[MetadataKind]any
}

// NewMetadata constructs an empty metadata table.
func NewMetadata() *Metadata {
	return &Metadata{entries: make(map[NodeID]map[MetadataKind]any)}
}

// Set attaches a metadata value of the given kind to a node.
func (m *Metadata) Set(id NodeID, kind MetadataKind, value any) {
	slot, ok := m.entries[id]
	if !ok {
		slot = make(map[MetadataKind]any)
		m.entries[id] = slot
	}

	slot[kind] = value
}

// Get retrieves a metadata value, reporting whether it was present.
func (m *Metadata) Get(id NodeID, kind MetadataKind) (any, bool) {
	slot, ok := m.entries[id]
	if !ok {
		return nil, false
	}

	v, ok := slot[kind]

	return v, ok
}

// VarInfoOf is a typed convenience accessor for the common MetaVarInfo slot.
func (m *Metadata) VarInfoOf(id NodeID) (*VarInfo, bool) {
	v, ok := m.Get(id, MetaVarInfo)
	if !ok {
		return nil, false
	}

	vi, ok := v.(*VarInfo)

	return vi, ok
}

// TypeOf is a typed convenience accessor for the common MetaType slot.
func (m *Metadata) TypeOf(id NodeID) (*TypeInfo, bool) {
	v, ok := m.Get(id, MetaType)
	if !ok {
		return nil, false
	}

	ti, ok := v.(*TypeInfo)

	return ti, ok
}
