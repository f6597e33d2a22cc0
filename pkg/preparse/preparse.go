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

// Package preparse implements C1, the pre-parser (spec §4.1): it scans
// source for pragmas, rewrites compound keywords into tokens the base
// parser accepts, and captures for-loop type annotations into a side table.
package preparse

import (
	"strings"

	"github.com/vylang/corec/pkg/config"
	"github.com/vylang/corec/pkg/evm"
	"github.com/vylang/corec/pkg/source"
)

// classKeywords are source-level compound declarations rewritten to `class
// <Kind>Def` so a generic block-statement parser can handle them uniformly
// (spec §4.1).
var classKeywords = map[string]string{
	"interface": "InterfaceDef",
	"struct":    "StructDef",
	"flag":      "FlagDef",
	"enum":      "FlagDef",
	"event":     "EventDef",
}

// ModificationOffsets maps a byte offset in the rewritten source to the
// original keyword that was rewritten there, so downstream tooling can
// recover which surface-level kind (`interface`, `struct`, ...) a `class`
// token stands for.
type ModificationOffsets map[int]string

// LoopAnnotation is the captured type-annotation source text for a typed
// `for i: T in ...` loop (spec §4.1), keyed by line number.
type LoopAnnotation struct {
	SourceCode string
}

// Result is everything the pre-parser contract produces (spec §4.1).
type Result struct {
	Settings     Settings
	LoopAnnos    map[int]LoopAnnotation
	Modification ModificationOffsets
	Rewritten    string
}

// Settings holds the pragma-derived overrides a module may declare.
type Settings struct {
	CompilerVersionSpec string
	HasCompilerVersion  bool
	Optimize            config.OptimizeMode
	HasOptimize         bool
	EVMVersion          evm.Version
	HasEVMVersion       bool
}

// PreParse implements the C1 contract. file is only used to build source
// spans on errors; compilerVersion is the running compiler's own "X.Y.Z".
func PreParse(file *source.File, compilerVersion string) (Result, *source.CompilerError) {
	toks := lex(file.Contents())

	var (
		settings     Settings
		modification = ModificationOffsets{}
		loopAnnos    = map[int]LoopAnnotation{}
		out          strings.Builder

		inForHeader    bool
		afterLoopVar   bool
		loopAnnoTokens []Token
		loopAnnoLine   int
	)

	flushLoopAnno := func() {
		if loopAnnoLine != 0 {
			var b strings.Builder
			for _, t := range loopAnnoTokens {
				b.WriteString(t.Text)
			}

			loopAnnos[loopAnnoLine] = LoopAnnotation{SourceCode: strings.TrimSpace(b.String())}
		}

		loopAnnoTokens = nil
		loopAnnoLine = 0
	}

	for _, tok := range toks {
		switch tok.Kind {
		case EOF:
			continue
		case Comment:
			if err := applyPragma(&settings, file, tok, compilerVersion); err != nil {
				return Result{}, err
			}

			out.WriteString(tok.Text)
			continue
		case Semicolon:
			return Result{}, file.SyntaxError(source.NewSpan(file.ID(), tok.Offset, tok.Offset+1),
				"semi-colon statements not allowed")
		case Name:
			switch tok.Text {
			case "class", "yield":
				return Result{}, file.SyntaxError(source.NewSpan(file.ID(), tok.Offset, tok.Offset+len(tok.Text)),
					"the `"+tok.Text+"` keyword is not allowed")
			case "log":
				modification[out.Len()] = "Log"
				out.WriteString("yield")
				continue
			}

			if kind, ok := classKeywords[tok.Text]; ok && tok.Col == 1 {
				modification[out.Len()] = kind
				out.WriteString("class")
				continue
			}

			if tok.Text == "for" {
				inForHeader = true
			}

			if inForHeader && tok.Text == "in" {
				loopAnnoLine = tok.Line
				flushLoopAnno()
				inForHeader = false
				afterLoopVar = false

				out.WriteString(tok.Text)
				continue
			}

			if inForHeader && afterLoopVar {
				loopAnnoTokens = append(loopAnnoTokens, tok)
				continue
			}

			out.WriteString(tok.Text)
		case Colon:
			if inForHeader {
				afterLoopVar = true
				// The colon and the annotation tokens following it are
				// dropped from the rewritten source entirely; keep a single
				// separating space so the loop variable and the "in" that
				// follows don't end up glued together.
				out.WriteByte(' ')
				continue
			}

			out.WriteString(tok.Text)
		default:
			if inForHeader && afterLoopVar && tok.Kind != Newline {
				loopAnnoTokens = append(loopAnnoTokens, tok)
				continue
			}

			out.WriteString(tok.Text)
		}
	}

	return Result{
		Settings:     settings,
		LoopAnnos:    loopAnnos,
		Modification: modification,
		Rewritten:    out.String(),
	}, nil
}

func applyPragma(settings *Settings, file *source.File, tok Token, compilerVersion string) *source.CompilerError {
	contents := strings.TrimSpace(tok.Text[1:])
	span := source.NewSpan(file.ID(), tok.Offset, tok.Offset+len(tok.Text))

	var body string

	switch {
	case strings.HasPrefix(contents, "@version"):
		body = "version " + strings.TrimSpace(strings.TrimPrefix(contents, "@version"))
	case strings.HasPrefix(contents, "pragma "):
		body = strings.TrimSpace(strings.TrimPrefix(contents, "pragma"))
	default:
		return nil
	}

	switch {
	case strings.HasPrefix(body, "version "):
		if settings.HasCompilerVersion {
			return file.SyntaxError(span, "pragma version specified twice!").WithKind(source.StructureException)
		}

		spec := strings.TrimSpace(strings.TrimPrefix(body, "version"))

		ok, err := satisfies(spec, compilerVersion)
		if err != nil {
			return versionError(file, span, err.Error())
		}

		if !ok {
			return versionError(file, span, "version specification \""+spec+
				"\" is not compatible with compiler version \""+compilerVersion+"\"")
		}

		settings.CompilerVersionSpec = spec
		settings.HasCompilerVersion = true

	case strings.HasPrefix(body, "optimize "):
		if settings.HasOptimize {
			return file.SyntaxError(span, "pragma optimize specified twice!").WithKind(source.StructureException)
		}

		mode := strings.TrimSpace(strings.TrimPrefix(body, "optimize"))

		m, ok := config.ParseOptimizeMode(mode)
		if !ok {
			return file.SyntaxError(span, "invalid optimization mode `"+mode+"`").WithKind(source.StructureException)
		}

		settings.Optimize = m
		settings.HasOptimize = true

	case strings.HasPrefix(body, "evm-version "):
		if settings.HasEVMVersion {
			return file.SyntaxError(span, "pragma evm-version specified twice!").WithKind(source.StructureException)
		}

		name := strings.TrimSpace(strings.TrimPrefix(body, "evm-version"))

		v, ok := evm.ParseVersion(name)
		if !ok {
			return file.SyntaxError(span, "invalid evm version: `"+name+"`").WithKind(source.StructureException)
		}

		settings.EVMVersion = v
		settings.HasEVMVersion = true

	default:
		return file.SyntaxError(span, "unknown pragma `"+body+"`").WithKind(source.StructureException)
	}

	return nil
}

func versionError(file *source.File, span source.Span, msg string) *source.CompilerError {
	return file.SyntaxError(span, msg).WithKind(source.VersionException)
}

