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

// Package config holds the settings that parameterise a single compilation,
// mirroring corset.CompilationConfig's role in the teacher (populated either
// programmatically or from cmd/corec's cobra flags).
package config

import "github.com/vylang/corec/pkg/evm"

// OptimizeMode selects the dispatcher and IR-optimizer strategy (spec §2,
// §4.7).
type OptimizeMode uint8

const (
	OptimizeNone OptimizeMode = iota
	OptimizeGas
	OptimizeCodesize
)

func (m OptimizeMode) String() string {
	switch m {
	case OptimizeGas:
		return "gas"
	case OptimizeCodesize:
		return "codesize"
	default:
		return "none"
	}
}

// ParseOptimizeMode maps an `optimize` pragma argument to an OptimizeMode.
func ParseOptimizeMode(name string) (OptimizeMode, bool) {
	switch name {
	case "none":
		return OptimizeNone, true
	case "gas":
		return OptimizeGas, true
	case "codesize":
		return OptimizeCodesize, true
	default:
		return OptimizeNone, false
	}
}

// CompilationConfig parameterises one compilation end to end: the target
// EVM version, optimisation strategy, module search paths, and a couple of
// strictness/debug toggles threaded through from the CLI.
type CompilationConfig struct {
	// EVMVersion is the target hardfork; gates opcode availability (spec §6).
	EVMVersion evm.Version
	// Optimize selects the dispatcher/optimizer strategy.
	Optimize OptimizeMode
	// SearchPaths are additional absolute import search roots, lowest
	// precedence first (spec §4.2).
	SearchPaths []string
	// Strict is recorded from --strict. No contract-size check is
	// performed, so it has no effect on compilation.
	Strict bool
	// Debug enables verbose (debug-level) pipeline logging.
	Debug bool
	// CompilerVersion is stamped into the metadata trailer (spec §4.10).
	CompilerVersion [3]uint8
}

// DefaultConfig returns the configuration used when no pragmas or flags
// override it: no optimisation, Shanghai target, current compiler version.
func DefaultConfig() CompilationConfig {
	return CompilationConfig{
		EVMVersion:      evm.Shanghai,
		Optimize:        OptimizeNone,
		CompilerVersion: [3]uint8{0, 1, 0},
	}
}
