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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vylang/corec/pkg/bundle"
	"github.com/vylang/corec/pkg/compiler"
	"github.com/vylang/corec/pkg/config"
	"github.com/vylang/corec/pkg/evm"
	"github.com/vylang/corec/pkg/output"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] module_file",
	Short: "compile an annotated module into a bytecode artifact bundle.",
	Long: `Compile runs the full pipeline (layout allocation, IR optimisation, codegen,
selector dispatch, dead-code elimination, assembly and metadata framing) against a
single entry module, and writes the resulting artifact bundle as JSON.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if GetFlag(cmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}

		if Parser == nil {
			fmt.Fprintln(os.Stderr,
				"corec compile: no annotated-AST parser is linked into this binary; "+
					"lexing/parsing/semantic analysis sit outside this module's pipeline "+
					"(see pkg/resolve.Parser) and must be supplied by an embedding build")
			os.Exit(1)
		}

		cfg := buildConfig(cmd)

		entry := args[0]
		dir := filepath.Dir(entry)
		name := filepath.Base(entry)

		fsBundle := bundle.NewFSBundle(dir)
		for _, p := range cfg.SearchPaths {
			fsBundle.Extra = append(fsBundle.Extra, p)
		}

		var builtinsBundle bundle.Bundle = bundle.NewMemoryBundle(nil)
		if root := GetString(cmd, "builtins"); root != "" {
			builtinsBundle = bundle.NewFSBundle(root)
		}

		c := compiler.New(fsBundle, builtinsBundle, Parser, cfg)

		art, cerr := c.Compile(name)
		if cerr != nil {
			fmt.Fprintln(os.Stderr, cerr.Error())
			os.Exit(1)
		}

		if keys := GetStringArray(cmd, "select"); len(keys) > 0 {
			art = output.Select(art, keys)
		}

		data, err := output.MarshalJSON(art)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		writeOutput(cmd, data)
	},
}

// buildConfig assembles a config.CompilationConfig from corec's persistent
// flags, mirroring pkg/cmd/compile.go's flag-to-CompilationConfig wiring.
func buildConfig(cmd *cobra.Command) config.CompilationConfig {
	cfg := config.DefaultConfig()

	if v, ok := evm.ParseVersion(strings.ToLower(GetString(cmd, "evm-version"))); ok {
		cfg.EVMVersion = v
	} else {
		fmt.Fprintf(os.Stderr, "corec: unknown evm-version %q\n", GetString(cmd, "evm-version"))
		os.Exit(2)
	}

	if m, ok := config.ParseOptimizeMode(strings.ToLower(GetString(cmd, "optimize"))); ok {
		cfg.Optimize = m
	} else {
		fmt.Fprintf(os.Stderr, "corec: unknown optimize mode %q\n", GetString(cmd, "optimize"))
		os.Exit(2)
	}

	cfg.Strict = GetFlag(cmd, "strict")
	cfg.Debug = GetFlag(cmd, "verbose")
	cfg.SearchPaths = GetStringArray(cmd, "search-path")

	return cfg
}

func writeOutput(cmd *cobra.Command, data []byte) {
	out := GetString(cmd, "output")
	if out == "" || out == "-" {
		os.Stdout.Write(data)
		fmt.Println()

		return
	}

	if err := os.WriteFile(out, data, 0644); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringP("output", "o", "-", "output file for the JSON artifact bundle (\"-\" for stdout)")
	compileCmd.Flags().StringArray("select", nil, "restrict the artifact to these top-level keys (e.g. bytecode, abi)")
	compileCmd.Flags().String("builtins", "", "directory backing the builtin-module bundle (defaults to an empty in-memory bundle)")
}
