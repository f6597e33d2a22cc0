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

// Package bundle implements the InputBundle abstraction of spec §6: a
// virtual filesystem the import resolver uses to load module and JSON/ABI
// sources, with two implementations (a real filesystem and an in-memory
// map), matching the dual-representation idiom the teacher uses for its own
// binary-vs-JSON artifact pair (pkg/binfile).
package bundle

import "fmt"

// FileInput is a single resolved compiler input (spec §6).
type FileInput struct {
	SourceID     uint32
	Path         string
	ResolvedPath string
	Contents     string
}

// JSONInput extends FileInput with its parsed JSON payload, used for ABI
// imports (`.json` files, spec §4.2).
type JSONInput struct {
	FileInput
	Data any
}

// Bundle is a virtual filesystem the import resolver reads module sources
// and ABI files through (spec §6).
type Bundle interface {
	// LoadFile reads path, assigning it the given source id.
	LoadFile(path string, id uint32) (FileInput, error)
	// LoadJSONFile reads and parses path as a JSON document.
	LoadJSONFile(path string, id uint32) (JSONInput, error)
	// Exists reports whether path can be loaded from this bundle.
	Exists(path string) bool
	// WithSearchPath returns a bundle that additionally searches root,
	// scoped to the call (spec §6 "search_path(path) → scoped context").
	WithSearchPath(root string) Bundle
}

// ErrNotFound is returned by LoadFile/LoadJSONFile when path does not exist
// within the bundle.
type ErrNotFound struct {
	Path string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("bundle: not found: %s", e.Path)
}
