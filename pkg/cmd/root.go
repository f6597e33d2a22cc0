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

// Package cmd implements corec's cobra command tree (cmd/corec's Execute
// entry point lives here). It is deliberately thin: every command only
// wires pkg/bundle and pkg/compiler together and formats their output; no
// pipeline logic lives in this package.
package cmd

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/vylang/corec/pkg/resolve"
)

// Version is filled when building with make, but *not* when installing via "go
// install".
var Version string

// Parser is the annotated-AST boundary this binary links against. corec
// ships no lexer/parser/semantic analyzer itself — that stage sits outside
// this module's scope — so Parser is nil until an embedding build sets it;
// compileCmd reports a clear diagnostic rather than silently compiling
// nothing if it is still nil when invoked.
var Parser resolve.Parser

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "corec",
	Short: "A compiler for the core EVM contract language.",
	Long:  "corec compiles an annotated module AST into EVM bytecode, a source map, an ABI and a storage layout.",
	Run: func(cmd *cobra.Command, args []string) {
		if GetFlag(cmd, "version") {
			fmt.Print("corec ")
			if Version != "" {
				// Built via "make"
				fmt.Printf("%s", Version)
			} else if info, ok := debug.ReadBuildInfo(); ok {
				// Built via "go install"
				fmt.Printf("%s", info.Main.Version)
			} else {
				// Unknown, perhaps "go run"
				fmt.Printf("(unknown version)")
			}
			fmt.Println()

			return
		}

		fmt.Println(cmd.UsageString())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().Bool("version", false, "Report version of this executable")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug-level pipeline logging")
	rootCmd.PersistentFlags().String("evm-version", "shanghai", "target EVM hardfork (paris, shanghai, cancun)")
	rootCmd.PersistentFlags().String("optimize", "none", "optimisation strategy (none, gas, codesize)")
	rootCmd.PersistentFlags().Bool("strict", false, "recorded in the config; no contract-size check is performed")
	rootCmd.PersistentFlags().StringArrayP("search-path", "I", []string{}, "additional module import search path")
}
