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
package abi

import (
	"fmt"
	"strings"
)

// Param is one entry of an ABI JSON entry's "inputs"/"outputs" array. Tuple
// (struct) component breakdown is out of scope — signatures here only ever
// carry the flat, already-canonicalized type names codegen itself consumes.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Entry is one function's ABI v2 JSON object (spec §6: "a JSON array per ABI
// v2 spec").
type Entry struct {
	Type            string  `json:"type"`
	Name            string  `json:"name"`
	Inputs          []Param `json:"inputs"`
	Outputs         []Param `json:"outputs"`
	StateMutability string  `json:"stateMutability"`
}

// inputTypes splits a canonical signature's parenthesized argument list into
// its individual top-level type strings. It tracks parenthesis depth, so a
// comma inside a nested tuple type is not split on.
func inputTypes(signature string) []string {
	open := strings.IndexByte(signature, '(')
	closeIdx := strings.LastIndexByte(signature, ')')

	if open < 0 || closeIdx < open {
		return nil
	}

	body := signature[open+1 : closeIdx]
	if body == "" {
		return nil
	}

	var (
		types []string
		depth int
		start int
	)

	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				types = append(types, body[start:i])
				start = i + 1
			}
		}
	}

	types = append(types, body[start:])

	return types
}

// JSONEntry renders one Method into its ABI v2 JSON entry, deriving Inputs
// from Signature and naming each one positionally (arg0, arg1, ...) since
// the canonical signature carries no parameter names.
func (m Method) JSONEntry() Entry {
	types := inputTypes(m.Signature)

	inputs := make([]Param, len(types))
	for i, t := range types {
		inputs[i] = Param{Name: fmt.Sprintf("arg%d", i), Type: t}
	}

	outputs := make([]Param, len(m.Outputs))
	for i, t := range m.Outputs {
		outputs[i] = Param{Name: "", Type: t}
	}

	return Entry{
		Type:            "function",
		Name:            m.Name,
		Inputs:          inputs,
		Outputs:         outputs,
		StateMutability: m.Mutability.String(),
	}
}

// JSON renders every method into the ABI v2 JSON array spec §6 names.
func JSON(methods []Method) []Entry {
	entries := make([]Entry, len(methods))
	for i, m := range methods {
		entries[i] = m.JSONEntry()
	}

	return entries
}

// MethodIdentifiers builds the `method_identifiers` map spec §6 names:
// function signature to its 8-hex-digit selector, "0x"-prefixed.
func MethodIdentifiers(methods []Method) map[string]string {
	out := make(map[string]string, len(methods))
	for _, m := range methods {
		out[m.Signature] = fmt.Sprintf("0x%08x", m.Selector)
	}

	return out
}
