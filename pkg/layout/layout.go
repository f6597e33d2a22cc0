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

// Package layout implements C3, the data-position allocator (spec §4.3): it
// assigns offsets to state variables across three independent regions —
// persistent storage, transient storage, and code-immutables — honoring
// module nesting via `initializes` and an optional caller-supplied storage
// layout override.
package layout

import (
	"fmt"
	"math/big"

	"github.com/vylang/corec/pkg/ast"
	"github.com/vylang/corec/pkg/evm"
	"github.com/vylang/corec/pkg/source"
)

// CodeImmutablesLimit is the maximum byte offset a code-immutable may occupy
// (EIP-170's 24576-byte deploy-code limit, taken as the ceiling for the
// immutables region since it shares the same bytecode).
const CodeImmutablesLimit = 24576

// nonreentrantKey is the reserved name of the global reentrancy lock, per
// spec §4.3.
const nonreentrantKey = "$.nonreentrant_key"

// maxSlot is 2^256, the exclusive upper bound on a storage or transient slot.
var maxSlot = new(big.Int).Lsh(big.NewInt(1), 256)

// Allocator is a monotonic offset allocator for a single region (spec §4.3):
// each call to Allocate returns the current offset and advances it by n.
type Allocator struct {
	next uint64
}

// Allocate reserves n units (words for storage/transient, bytes for code)
// starting at the allocator's current offset.
func (a *Allocator) Allocate(n uint64) (uint64, *source.CompilerError) {
	start := a.next
	end := start + n

	if end < start {
		return 0, source.NewError(source.StorageLayoutException, "storage allocator overflowed")
	}

	a.next = end

	return start, nil
}

// StorageLeaf is a persistent- or transient-storage leaf entry (spec §3).
type StorageLeaf struct {
	Type   string
	Slot   *big.Int
	NSlots int
}

// CodeLeaf is a code-immutables leaf entry (spec §3).
type CodeLeaf struct {
	Type   string
	Offset uint64
	Length int
}

// Node is either a leaf (StorageLeaf or CodeLeaf set) or a nested module's
// Section (Children set), mirroring the nested-mapping layout shape of spec
// §3.
type Node struct {
	StorageLeaf *StorageLeaf
	CodeLeaf    *CodeLeaf
	Children    Section
}

// Section is one region's layout: variable (or nested module alias) name to
// Node.
type Section map[string]*Node

// ToMap renders a Section into the plain nested-map shape the spec's JSON
// layout output uses (spec §3): leaves become `{type,slot,n_slots}` or
// `{type,offset,length}` maps, nested modules become nested maps.
func (s Section) ToMap() map[string]any {
	out := make(map[string]any, len(s))

	for name, node := range s {
		switch {
		case node.StorageLeaf != nil:
			out[name] = map[string]any{
				"type":    node.StorageLeaf.Type,
				"slot":    node.StorageLeaf.Slot,
				"n_slots": node.StorageLeaf.NSlots,
			}
		case node.CodeLeaf != nil:
			out[name] = map[string]any{
				"type":   node.CodeLeaf.Type,
				"offset": node.CodeLeaf.Offset,
				"length": node.CodeLeaf.Length,
			}
		default:
			out[name] = node.Children.ToMap()
		}
	}

	return out
}

// OverrideEntry pins one persistent-storage variable (or the reentrancy key)
// to a caller-chosen slot (spec §4.3 override mode). Type and word count are
// always derived from the variable's own resolved type, never from the
// override, so a collision is reported even when the override omits n_slots.
type OverrideEntry struct {
	Slot *big.Int
}

// Result is the full computed layout (spec §3).
type Result struct {
	Storage   Section
	Transient Section
	Code      Section
}

// committedRange records one already-placed storage range, for collision
// detection in override mode.
type committedRange struct {
	name  string
	start *big.Int
	end   *big.Int // exclusive
}

// walker holds the allocation state threaded through a single Allocate call,
// including its recursive descent into `initializes`-nested modules.
type walker struct {
	override   map[string]OverrideEntry
	lockRegion ast.Region

	storageAlloc   Allocator
	transientAlloc Allocator
	codeAlloc      Allocator

	committed []committedRange
}

// Allocate computes the persistent-storage, transient-storage, and
// code-immutables layout of root and every module it transitively
// `initializes` (spec §4.3).
//
// override, when non-nil, switches persistent-storage allocation to override
// mode: every storage variable (and the reentrancy key, if one is used) must
// have a matching entry, and the allocator only verifies bounds and
// non-overlap instead of assigning slots itself. Transient storage and
// code-immutables are always computed normally.
func Allocate(root *ast.Module, version evm.Version, override map[string]OverrideEntry) (Result, *source.CompilerError) {
	lockRegion := ast.RegionStorage
	if version.HasTransientStorage() {
		lockRegion = ast.RegionTransient
	}

	w := &walker{override: override, lockRegion: lockRegion}

	if lockRegion == ast.RegionStorage && override == nil {
		if _, err := w.storageAlloc.Allocate(1); err != nil {
			return Result{}, err
		}
	}

	if lockRegion == ast.RegionTransient {
		if _, err := w.transientAlloc.Allocate(1); err != nil {
			return Result{}, err
		}
	}

	storage, transient, code, err := w.walkDecls(root)
	if err != nil {
		return Result{}, err
	}

	if scanNonreentrant(root) {
		if err := w.placeNonreentrantKey(lockRegion, storage, transient); err != nil {
			return Result{}, err
		}
	}

	return Result{Storage: storage, Transient: transient, Code: code}, nil
}

func (w *walker) placeNonreentrantKey(lockRegion ast.Region, storage, transient Section) *source.CompilerError {
	switch lockRegion {
	case ast.RegionStorage:
		var slot *big.Int

		if w.override == nil {
			slot = big.NewInt(0)
		} else {
			s, err := w.assignStorageSlot(nonreentrantKey, 1)
			if err != nil {
				return err
			}

			slot = s
		}

		storage[nonreentrantKey] = &Node{StorageLeaf: &StorageLeaf{Type: "nonreentrant lock", Slot: slot, NSlots: 1}}
	case ast.RegionTransient:
		transient[nonreentrantKey] = &Node{StorageLeaf: &StorageLeaf{Type: "nonreentrant lock", Slot: big.NewInt(0), NSlots: 1}}
	}

	return nil
}

// walkDecls allocates every state variable declared directly in m, in
// declaration order, recursing into `initializes`-nested modules at the
// point their declaration appears (spec §4.3 "modules compose by nesting").
func (w *walker) walkDecls(m *ast.Module) (storage, transient, code Section, cerr *source.CompilerError) {
	storage = Section{}
	transient = Section{}
	code = Section{}

	for _, d := range m.Decls {
		switch decl := d.(type) {
		case *ast.VariableDecl:
			if err := w.allocateVariable(decl, storage, transient, code); err != nil {
				return nil, nil, nil, err
			}
		case *ast.InitializesDecl:
			alias := findAlias(m, decl.Target)

			subStorage, subTransient, subCode, err := w.walkDecls(decl.Target)
			if err != nil {
				return nil, nil, nil, err
			}

			if len(subStorage) > 0 {
				storage[alias] = &Node{Children: subStorage}
			}

			if len(subTransient) > 0 {
				transient[alias] = &Node{Children: subTransient}
			}

			if len(subCode) > 0 {
				code[alias] = &Node{Children: subCode}
			}
		}
	}

	return storage, transient, code, nil
}

func (w *walker) allocateVariable(decl *ast.VariableDecl, storage, transient, code Section) *source.CompilerError {
	vi := decl.Info

	switch vi.Region {
	case ast.RegionStorage:
		nslots := storageWords(vi)

		slot, err := w.assignStorageSlot(decl.Name, nslots)
		if err != nil {
			return err
		}

		storage[decl.Name] = &Node{StorageLeaf: &StorageLeaf{Type: vi.Type.Name, Slot: slot, NSlots: nslots}}

	case ast.RegionTransient:
		nslots := storageWords(vi)

		off, err := w.transientAlloc.Allocate(uint64(nslots))
		if err != nil {
			return err
		}

		transient[decl.Name] = &Node{StorageLeaf: &StorageLeaf{
			Type: vi.Type.Name, Slot: new(big.Int).SetUint64(off), NSlots: nslots,
		}}

	case ast.RegionCode:
		length := vi.Type.SizeInBytes

		off, err := w.codeAlloc.Allocate(uint64(length))
		if err != nil {
			return err
		}

		if off+uint64(length) > CodeImmutablesLimit {
			return source.NewError(source.StorageLayoutException,
				fmt.Sprintf("immutable %s exceeds the code size limit: offset %d + length %d > %d",
					decl.Name, off, length, CodeImmutablesLimit))
		}

		code[decl.Name] = &Node{CodeLeaf: &CodeLeaf{Type: vi.Type.Name, Offset: off, Length: length}}
	}

	return nil
}

// storageWords is the word count a variable consumes in storage or transient
// storage; hash maps always consume exactly one slot regardless of their
// declared type's own width (spec §4.3).
func storageWords(vi ast.VarInfo) int {
	if vi.IsHashMap {
		return 1
	}

	return vi.Type.StorageSizeInWords
}

// assignStorageSlot resolves the slot for a persistent-storage variable:
// the next monotonic offset in natural mode, or the caller-supplied slot
// (bounds- and collision-checked) in override mode.
func (w *walker) assignStorageSlot(name string, nslots int) (*big.Int, *source.CompilerError) {
	if w.override == nil {
		off, err := w.storageAlloc.Allocate(uint64(nslots))
		if err != nil {
			return nil, err
		}

		return new(big.Int).SetUint64(off), nil
	}

	entry, ok := w.override[name]
	if !ok {
		return nil, source.NewError(source.StorageLayoutException,
			fmt.Sprintf("Could not find storage_slot for %s. Have you used the correct storage layout file?", name))
	}

	if err := w.checkBoundsAndCollision(name, entry.Slot, nslots); err != nil {
		return nil, err
	}

	return entry.Slot, nil
}

func (w *walker) checkBoundsAndCollision(name string, slot *big.Int, nslots int) *source.CompilerError {
	last := new(big.Int).Add(slot, big.NewInt(int64(nslots-1)))
	if last.Cmp(maxSlot) >= 0 {
		return source.NewError(source.StorageLayoutException,
			fmt.Sprintf("Invalid storage slot for var %s, out of bounds: %s", name, last.String()))
	}

	end := new(big.Int).Add(slot, big.NewInt(int64(nslots)))

	for _, c := range w.committed {
		if slot.Cmp(c.end) < 0 && c.start.Cmp(end) < 0 {
			return source.NewError(source.StorageLayoutException,
				fmt.Sprintf("Storage collision! Tried to assign '%s' to slot %s but it has already been reserved by '%s'",
					name, slot.String(), c.name))
		}
	}

	w.committed = append(w.committed, committedRange{name: name, start: slot, end: end})

	return nil
}

// findAlias returns the name m's `initializes` declaration should use for
// target in its own layout sections: the alias (or qualified name) under
// which target was imported.
func findAlias(m *ast.Module, target *ast.Module) string {
	for _, d := range m.Decls {
		id, ok := d.(*ast.ImportDecl)
		if !ok || id.Edge == nil || id.Edge.Target != target {
			continue
		}

		if id.Edge.Alias != "" {
			return id.Edge.Alias
		}

		return id.Edge.Qualname
	}

	return ""
}

// scanNonreentrant reports whether m, or any module it transitively
// `initializes`, declares a non-reentrant function — the reentrancy key is
// only ever emitted into the layout when it's actually used (spec §4.3).
func scanNonreentrant(m *ast.Module) bool {
	for _, d := range m.Decls {
		switch decl := d.(type) {
		case *ast.FunctionDecl:
			if decl.Nonreentrant {
				return true
			}
		case *ast.InitializesDecl:
			if scanNonreentrant(decl.Target) {
				return true
			}
		}
	}

	return false
}
