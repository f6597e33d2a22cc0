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

// Package resolve implements C2, the import resolver (spec §4.2): it walks
// the import graph from a root module, detects cycles and duplicate
// imports, loads each child through an InputBundle, and computes the
// integrity hash over the transitive closure.
package resolve

import (
	"crypto/sha256"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/vylang/corec/pkg/ast"
	"github.com/vylang/corec/pkg/bundle"
	"github.com/vylang/corec/pkg/source"
)

// Parser is the external collaborator (spec §1, §6) that turns a loaded
// file into a module whose import edges are declared (Alias, Qualname,
// Level, Span) but not yet resolved (Target == nil). The resolver never
// parses source itself; it only walks and resolves the edges the parser
// has already recorded on Module.Imports.
type Parser interface {
	Parse(file bundle.FileInput) (*ast.Module, error)
}

// ParserFunc adapts a plain function to Parser.
type ParserFunc func(bundle.FileInput) (*ast.Module, error)

// Parse implements Parser.
func (f ParserFunc) Parse(file bundle.FileInput) (*ast.Module, error) {
	return f(file)
}

// builtinRule maps a builtin module prefix to where its files live under
// the builtins bundle, and which suffix they carry (spec §4.2).
type builtinRule struct {
	removePrefix string
	targetPrefix string
	suffix       string
}

// builtinRules is the fixed prefix table naming which module strings
// resolve against the embedded builtins bundle instead of the caller's
// search paths.
var builtinRules = map[string]builtinRule{
	"ethereum.ercs": {removePrefix: "ethereum.ercs", targetPrefix: "ethereum/ercs", suffix: ".vyi"},
	"math":          {removePrefix: "", targetPrefix: "builtins", suffix: ".vy"},
}

func builtinPrefix(qualname string) (string, builtinRule, bool) {
	for prefix, rule := range builtinRules {
		if qualname == prefix || strings.HasPrefix(qualname, prefix+".") {
			return prefix, rule, true
		}
	}

	return "", builtinRule{}, false
}

func isBuiltin(level int, qualname string) bool {
	_, _, ok := builtinPrefix(qualname)
	return level == 0 && ok
}

// builtinCache is shared across every Resolver, mirroring the teacher
// contract that builtin modules are globally cached and share object
// identity across compilations (spec §4.2).
var builtinCache = struct {
	sync.Mutex
	modules map[string]*ast.Module
	digests map[string][32]byte
}{modules: map[string]*ast.Module{}, digests: map[string][32]byte{}}

// Result is everything C2 produces for a compilation (spec §4.2).
type Result struct {
	Root *ast.Module
	// IntegrityHash is sha256(sha256(root source) || H(child1) || ... ||
	// H(childN)) computed recursively over the transitive closure.
	IntegrityHash [32]byte
	// Inputs lists every resolved compiler input (the root plus every
	// distinct module reached through it) in first-resolution order,
	// independent of map iteration (spec §4.9 determinism note).
	Inputs []*ast.Module
}

// Resolver walks the import graph of a root module.
type Resolver struct {
	Bundle   bundle.Bundle
	Builtins bundle.Bundle
	Parse    Parser

	nextSourceID  uint32
	parsedByPath  map[string]*ast.Module
	digestByPath  map[string][32]byte
	inputs        []*ast.Module
	inputSeen     map[*ast.Module]bool
	fullyResolved map[*ast.Module]bool
}

// New constructs a Resolver. firstSourceID is the source id to assign to
// the first child module loaded (the root module's own id is assumed
// already assigned by the caller before parsing it).
func New(b bundle.Bundle, p Parser, firstSourceID uint32) *Resolver {
	return &Resolver{
		Bundle:        b,
		Parse:         p,
		nextSourceID:  firstSourceID,
		parsedByPath:  map[string]*ast.Module{},
		digestByPath:  map[string][32]byte{},
		inputSeen:     map[*ast.Module]bool{},
		fullyResolved: map[*ast.Module]bool{},
	}
}

func (r *Resolver) allocSourceID() uint32 {
	id := r.nextSourceID
	r.nextSourceID++

	return id
}

// Resolve walks root's import graph, resolving every ImportEdge it (and
// transitively its children) declares, and computes the integrity hash.
func (r *Resolver) Resolve(root *ast.Module) (Result, *source.CompilerError) {
	if err := r.resolveModule(root, nil, map[string]*ast.ImportEdge{}); err != nil {
		return Result{}, err
	}

	digest := r.integritySum(root)

	return Result{Root: root, IntegrityHash: digest, Inputs: r.inputs}, nil
}

// resolveModule resolves every import edge declared on m, unless m has
// already been fully resolved (modules reachable by more than one import
// path are only walked once). path is the stack of modules currently being
// traversed (for cycle detection) — checked on every visit, even a cached
// one, since the same module object can legitimately be re-entered through
// a different path while it is still being resolved. importedHere tracks,
// within m alone, which resolved import paths have already been claimed
// (for duplicate-import detection).
func (r *Resolver) resolveModule(m *ast.Module, path []*ast.Module, importedHere map[string]*ast.ImportEdge) *source.CompilerError {
	for _, p := range path {
		if p == m {
			return cycleError(append(path, m))
		}
	}

	if !r.inputSeen[m] {
		r.inputSeen[m] = true
		r.inputs = append(r.inputs, m)
	}

	if r.fullyResolved[m] {
		return nil
	}

	r.fullyResolved[m] = true
	path = append(path, m)

	for _, edge := range m.Imports {
		if err := r.resolveEdge(m, edge, path, importedHere); err != nil {
			return err
		}
	}

	return nil
}

func cycleError(path []*ast.Module) *source.CompilerError {
	names := make([]string, len(path))
	for i, m := range path {
		names[i] = m.ResolvedPath
	}

	return source.NewError(source.ImportCycle, strings.Join(names, " imports "))
}

func (r *Resolver) resolveEdge(current *ast.Module, edge *ast.ImportEdge, path []*ast.Module,
	importedHere map[string]*ast.ImportEdge) *source.CompilerError {
	if isBuiltin(edge.Level, edge.Qualname) {
		target, digest, err := r.loadBuiltin(edge.Qualname)
		if err != nil {
			return err
		}

		if cerr := r.resolveModule(target, path, map[string]*ast.ImportEdge{}); cerr != nil {
			return cerr
		}

		edge.Target = target
		edge.Digest = digest

		return nil
	}

	relPath := importToPath(edge.Level, edge.Qualname)

	if _, ok := importedHere[relPath]; ok {
		return source.NewError(source.DuplicateImport, edge.Alias+" imported more than once!")
	}

	importedHere[relPath] = edge

	target, digest, abi, err := r.loadModule(current, edge, relPath, path)
	if err != nil {
		return err
	}

	edge.Target = target
	edge.Digest = digest
	edge.ABI = abi

	return nil
}

// loadModule tries, in order, path.vy, path.vyi and path.json, mirroring
// the teacher's own fallback order (spec §4.2).
func (r *Resolver) loadModule(current *ast.Module, edge *ast.ImportEdge, relPath string,
	path []*ast.Module) (*ast.Module, [32]byte, any, *source.CompilerError) {
	b := r.scopedBundle(current, edge.Level)

	if m, digest, err := r.loadVyperFile(b, relPath+".vy"); err == nil {
		if cerr := r.resolveModule(m, path, map[string]*ast.ImportEdge{}); cerr != nil {
			return nil, [32]byte{}, nil, cerr
		}

		return m, digest, nil, nil
	} else if _, ok := err.(*bundle.ErrNotFound); !ok {
		return nil, [32]byte{}, nil, wrapLoadError(err, edge.Qualname)
	}

	if m, digest, err := r.loadVyperFile(b, relPath+".vyi"); err == nil {
		if cerr := r.resolveModule(m, path, map[string]*ast.ImportEdge{}); cerr != nil {
			return nil, [32]byte{}, nil, cerr
		}

		return m, digest, nil, nil
	} else if _, ok := err.(*bundle.ErrNotFound); !ok {
		return nil, [32]byte{}, nil, wrapLoadError(err, edge.Qualname)
	}

	if abi, digest, err := r.loadABIFile(b, relPath+".json"); err == nil {
		return nil, digest, abi, nil
	} else if _, ok := err.(*bundle.ErrNotFound); !ok {
		return nil, [32]byte{}, nil, wrapLoadError(err, edge.Qualname)
	}

	return nil, [32]byte{}, nil, source.NewError(source.ModuleNotFound, edge.Qualname)
}

func wrapLoadError(err error, qualname string) *source.CompilerError {
	if cerr, ok := err.(*source.CompilerError); ok {
		return cerr
	}

	return source.NewError(source.ModuleNotFound, fmt.Sprintf("%s: %s", qualname, err))
}

func (r *Resolver) scopedBundle(current *ast.Module, level int) bundle.Bundle {
	if level == 0 {
		return r.Bundle
	}
	// Relative imports search the current module's own directory with the
	// highest precedence (spec §4.2); our Bundle abstraction only supports
	// layering an additional path rather than a full replacement, so the
	// absolute search paths remain reachable as a fallback.
	return r.Bundle.WithSearchPath(path.Dir(current.ResolvedPath))
}

// loadVyperFile parses relPath (or returns the already-parsed module if
// another import edge already reached it), without walking its import
// edges — that happens in the caller via resolveModule, so a module
// re-entered through a second path still gets a cycle check against the
// path currently being traversed.
func (r *Resolver) loadVyperFile(b bundle.Bundle, relPath string) (*ast.Module, [32]byte, error) {
	if existing, ok := r.parsedByPath[relPath]; ok {
		return existing, r.digestByPath[relPath], nil
	}

	if !b.Exists(relPath) {
		return nil, [32]byte{}, &bundle.ErrNotFound{Path: relPath}
	}

	file, err := b.LoadFile(relPath, r.allocSourceID())
	if err != nil {
		return nil, [32]byte{}, err
	}

	m, err := r.Parse.Parse(file)
	if err != nil {
		return nil, [32]byte{}, source.NewError(source.ModuleNotFound, err.Error())
	}

	digest := sha256.Sum256([]byte(file.Contents))
	r.parsedByPath[relPath] = m
	r.digestByPath[relPath] = digest

	return m, digest, nil
}

func (r *Resolver) loadABIFile(b bundle.Bundle, relPath string) (any, [32]byte, error) {
	if !b.Exists(relPath) {
		return nil, [32]byte{}, &bundle.ErrNotFound{Path: relPath}
	}

	file, err := b.LoadJSONFile(relPath, r.allocSourceID())
	if err != nil {
		return nil, [32]byte{}, err
	}

	data := file.Data
	if obj, ok := data.(map[string]any); ok {
		if abi, ok := obj["abi"]; ok {
			data = abi
		}
	}

	return data, sha256.Sum256([]byte(file.Contents)), nil
}

func (r *Resolver) loadBuiltin(qualname string) (*ast.Module, [32]byte, *source.CompilerError) {
	_, rule, _ := builtinPrefix(qualname)

	base := strings.TrimPrefix(qualname, rule.removePrefix)
	base = strings.TrimPrefix(base, ".")

	remapped := rule.targetPrefix
	if base != "" {
		remapped = rule.targetPrefix + "/" + strings.ReplaceAll(base, ".", "/")
	}

	relPath := remapped + rule.suffix

	builtinCache.Lock()
	if m, ok := builtinCache.modules[relPath]; ok {
		digest := builtinCache.digests[relPath]
		builtinCache.Unlock()

		return m, digest, nil
	}
	builtinCache.Unlock()

	if r.Builtins == nil || !r.Builtins.Exists(relPath) {
		return nil, [32]byte{}, source.NewError(source.ModuleNotFound, qualname)
	}

	file, err := r.Builtins.LoadFile(relPath, r.allocSourceID())
	if err != nil {
		return nil, [32]byte{}, source.NewError(source.ModuleNotFound, qualname)
	}

	m, perr := r.Parse.Parse(file)
	if perr != nil {
		return nil, [32]byte{}, source.NewError(source.ModuleNotFound, perr.Error())
	}

	digest := sha256.Sum256([]byte(file.Contents))

	builtinCache.Lock()
	builtinCache.modules[relPath] = m
	builtinCache.digests[relPath] = digest
	builtinCache.Unlock()

	return m, digest, nil
}

// integritySum computes sha256(sha256(m source) || H(child1) || ... ||
// H(childN)) recursively (spec §4.2); interface and JSON children
// contribute their own file digest rather than recursing further.
func (r *Resolver) integritySum(m *ast.Module) [32]byte {
	h := sha256.New()
	selfSum := sha256.Sum256([]byte(m.Source))
	h.Write(selfSum[:])

	for _, edge := range m.Imports {
		if edge.Target == nil {
			h.Write(edge.Digest[:])
			continue
		}

		if strings.HasSuffix(edge.Target.ResolvedPath, ".vyi") {
			h.Write(edge.Digest[:])
			continue
		}

		child := r.integritySum(edge.Target)
		h.Write(child[:])
	}

	var sum [32]byte
	copy(sum[:], h.Sum(nil))

	return sum
}

// importToPath converts an import's (level, qualname) pair into a
// slash-separated path with no suffix (spec §4.2). level > 1 walks up
// level-1 parent directories; level == 1 is the current directory; level
// == 0 is absolute.
func importToPath(level int, qualname string) string {
	var base string

	switch {
	case level > 1:
		base = strings.Repeat("../", level-1)
	case level == 1:
		base = "./"
	}

	return base + strings.ReplaceAll(qualname, ".", "/")
}
