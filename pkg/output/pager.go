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
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// Page writes lines to out, stopping after every screenful to wait for a
// keypress on in — the same "how many rows fit" question the teacher's own
// interactive inspector (pkg/util/termio.Terminal.GetSize) answers via
// term.GetSize, scaled down here to a plain disassembly pager rather than a
// full widget screen. If out is not backed by a terminal (fd not a TTY, as
// when piped to a file), Page falls back to writing every line straight
// through without pausing.
func Page(lines []string, out io.Writer, in io.Reader, fd int) error {
	height := pagerHeight(fd)
	if height <= 0 {
		return writeAll(lines, out)
	}

	reader := bufio.NewReader(in)

	for i := 0; i < len(lines); i++ {
		if _, err := fmt.Fprintln(out, lines[i]); err != nil {
			return err
		}

		atBoundary := (i+1)%height == 0
		if atBoundary && i < len(lines)-1 {
			if _, err := fmt.Fprint(out, "-- more --"); err != nil {
				return err
			}

			if _, err := reader.ReadByte(); err != nil && err != io.EOF {
				return err
			}

			fmt.Fprint(out, "\r           \r")
		}
	}

	return nil
}

// DisassembleLines splits a Disassemble-style mnemonic stream into one
// numbered line per instruction, the shape Page expects.
func DisassembleLines(opcodes string) []string {
	tokens := strings.Fields(opcodes)

	var lines []string

	for i := 0; i < len(tokens); i++ {
		line := tokens[i]
		if strings.HasPrefix(tokens[i], "PUSH") && i+1 < len(tokens) && strings.HasPrefix(tokens[i+1], "0x") {
			i++
			line += " " + tokens[i]
		}

		lines = append(lines, fmt.Sprintf("%4d  %s", len(lines), line))
	}

	return lines
}

func pagerHeight(fd int) int {
	if !term.IsTerminal(fd) {
		return 0
	}

	_, h, err := term.GetSize(fd)
	if err != nil {
		return 0
	}

	return h - 1
}

func writeAll(lines []string, out io.Writer) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(out, l); err != nil {
			return err
		}
	}

	return nil
}
