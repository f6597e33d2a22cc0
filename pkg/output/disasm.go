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
package output

import (
	"fmt"
	"strings"

	"github.com/vylang/corec/pkg/evm"
)

// Disassemble renders raw bytecode as spec §6's `opcodes`/`opcodes_runtime`
// output: a space-separated list of mnemonics, with a PUSHk's immediate
// bytes rendered as a single trailing "0x..." token (mirroring common EVM
// disassembler output, e.g. evm.codes / geth's `evm disasm`).
func Disassemble(code []byte) string {
	var tokens []string

	for i := 0; i < len(code); {
		op, ok := evm.LookupByte(code[i])
		if !ok {
			tokens = append(tokens, fmt.Sprintf("UNKNOWN(0x%02x)", code[i]))
			i++

			continue
		}

		tokens = append(tokens, op.Mnemonic)
		i++

		n := pushWidthOf(op.Mnemonic)
		if n > 0 {
			end := i + n
			if end > len(code) {
				end = len(code)
			}

			tokens = append(tokens, fmt.Sprintf("0x%x", code[i:end]))
			i = end
		}
	}

	return strings.Join(tokens, " ")
}

// pushWidthOf returns the number of immediate bytes a PUSHk mnemonic
// consumes, or 0 for every other opcode (including PUSH0).
func pushWidthOf(mnemonic string) int {
	if !strings.HasPrefix(mnemonic, "PUSH") || mnemonic == "PUSH0" {
		return 0
	}

	var n int
	if _, err := fmt.Sscanf(mnemonic, "PUSH%d", &n); err != nil {
		return 0
	}

	return n
}
