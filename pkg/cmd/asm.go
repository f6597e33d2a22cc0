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
package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vylang/corec/pkg/output"
)

// asmCmd disassembles already-compiled bytecode, mirroring the debug-dump
// idea of the teacher's "print assembly" commands but operating directly on
// raw EVM bytes rather than a macro/micro assembly program: corec has no
// register-allocated assembly level of its own, only the item list pkg/codegen
// lowers straight to bytes, so the only thing worth inspecting after the
// fact is the disassembly.
var asmCmd = &cobra.Command{
	Use:   "asm [flags] bytecode_file",
	Short: "disassemble a compiled bytecode file.",
	Long: `Read a file containing hex-encoded EVM bytecode (an optional leading "0x" is
stripped) and print its disassembly, one instruction per line.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		text := strings.TrimSpace(string(raw))
		text = strings.TrimPrefix(text, "0x")

		code, err := hex.DecodeString(text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "corec asm: malformed hex bytecode: %s\n", err.Error())
			os.Exit(1)
		}

		lines := output.DisassembleLines(output.Disassemble(code))

		if GetFlag(cmd, "interactive") {
			if err := output.Page(lines, os.Stdout, os.Stdin, int(os.Stdout.Fd())); err != nil {
				fmt.Fprintln(os.Stderr, err.Error())
				os.Exit(1)
			}

			return
		}

		for _, l := range lines {
			fmt.Println(l)
		}
	},
}

func init() {
	rootCmd.AddCommand(asmCmd)
	asmCmd.Flags().Bool("interactive", false, "page the disassembly one screenful at a time")
}
