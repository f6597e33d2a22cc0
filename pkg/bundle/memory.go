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
package bundle

import "encoding/json"

// MemoryBundle is the in-memory InputBundle implementation used for
// "standard JSON" style invocations (spec §6), where every input is
// supplied up-front as a path→contents map rather than read from disk.
type MemoryBundle struct {
	Files map[string]string
}

// NewMemoryBundle constructs an in-memory bundle from a path→contents map.
func NewMemoryBundle(files map[string]string) *MemoryBundle {
	return &MemoryBundle{Files: files}
}

// Exists implements Bundle.
func (b *MemoryBundle) Exists(path string) bool {
	_, ok := b.Files[path]
	return ok
}

// LoadFile implements Bundle.
func (b *MemoryBundle) LoadFile(path string, id uint32) (FileInput, error) {
	contents, ok := b.Files[path]
	if !ok {
		return FileInput{}, &ErrNotFound{Path: path}
	}

	return FileInput{SourceID: id, Path: path, ResolvedPath: path, Contents: contents}, nil
}

// LoadJSONFile implements Bundle.
func (b *MemoryBundle) LoadJSONFile(path string, id uint32) (JSONInput, error) {
	f, err := b.LoadFile(path, id)
	if err != nil {
		return JSONInput{}, err
	}

	var data any
	if err := json.Unmarshal([]byte(f.Contents), &data); err != nil {
		return JSONInput{}, err
	}

	return JSONInput{FileInput: f, Data: data}, nil
}

// WithSearchPath implements Bundle. MemoryBundle has no directory structure
// to scope a search path against, so this returns the receiver unchanged;
// all lookups are by the exact logical path supplied in Files.
func (b *MemoryBundle) WithSearchPath(string) Bundle {
	return b
}
