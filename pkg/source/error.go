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

import "fmt"

// Kind is the typed error taxonomy surfaced to callers (spec §7).  The core
// never returns bare strings for failures that originate from a known
// category; callers switch on Kind to decide how to present a diagnostic.
type Kind int

const (
	// SyntaxException is raised by the pre-parser when it encounters a token
	// the lexical grammar rejects outright (e.g. a bare ';').
	SyntaxException Kind = iota
	// StructureException covers malformed/duplicate pragmas, non-DAG module
	// structure, and malformed import forms.
	StructureException
	// VersionException is raised when a version pragma is incompatible with,
	// or unparseable against, the compiler's own version.
	VersionException
	// ImportCycle is raised when the import graph is not a DAG.
	ImportCycle
	// DuplicateImport is raised when a module imports the same name twice.
	DuplicateImport
	// ModuleNotFound is raised when an import cannot be resolved against any
	// search path or the builtin package set.
	ModuleNotFound
	// StorageLayoutException covers override collisions and out-of-bounds
	// slot/offset assignment.
	StorageLayoutException
	// CompilerPanic denotes violation of an internal invariant (e.g. a
	// duplicate assembly label). Distinct from a Go panic: this is the typed
	// form surfaced once the pipeline's single recover point has caught one.
	CompilerPanic
)

// String renders the taxonomy tag exactly as spec §7 names it.
func (k Kind) String() string {
	switch k {
	case SyntaxException:
		return "SyntaxException"
	case StructureException:
		return "StructureException"
	case VersionException:
		return "VersionException"
	case ImportCycle:
		return "ImportCycle"
	case DuplicateImport:
		return "DuplicateImport"
	case ModuleNotFound:
		return "ModuleNotFound"
	case StorageLayoutException:
		return "StorageLayoutException"
	case CompilerPanic:
		return "CompilerPanic"
	default:
		return "UnknownException"
	}
}

// CompilerError is the single error type raised by every pipeline stage. It
// always carries a Kind and a human message, and optionally a source span
// when one is available (not every failure, e.g. ModuleNotFound for a root
// module, has an enclosing file).
type CompilerError struct {
	kind Kind
	file *File
	span Span
	msg  string
}

// NewError constructs a CompilerError with no attached source position, for
// failures (missing root module, internal panics recovered outside any
// parse) that have none to offer.
func NewError(kind Kind, msg string) *CompilerError {
	return &CompilerError{kind: kind, msg: msg}
}

// Kind returns this error's taxonomy tag.
func (e *CompilerError) Kind() Kind {
	return e.kind
}

// WithKind overrides this error's taxonomy tag, returning the same error for
// chaining. File.SyntaxError always starts an error as SyntaxException;
// callers needing a more specific tag (StructureException, VersionException,
// ...) adjust it at the call site rather than threading the tag through
// every constructor.
func (e *CompilerError) WithKind(k Kind) *CompilerError {
	e.kind = k
	return e
}

// Span returns the span this error is reported against. Only meaningful when
// File() is non-nil.
func (e *CompilerError) Span() Span {
	return e.span
}

// File returns the source file this error was raised against, or nil.
func (e *CompilerError) File() *File {
	return e.file
}

// Error implements the error interface.
func (e *CompilerError) Error() string {
	if e.file == nil {
		return fmt.Sprintf("%s: %s", e.kind, e.msg)
	}

	pos := e.file.PositionOf(e.span.Start)

	return fmt.Sprintf("%s: %s:%s: %s", e.kind, e.file.Path(), pos, e.msg)
}

// Warning is a non-fatal diagnostic record (spec §7). No pipeline stage
// constructs or collects one.
type Warning struct {
	Kind string
	Msg  string
	Span *Span
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Msg)
}
