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

// Package metadata implements C10: the CBOR-encoded trailer appended after
// the deploy program (spec §4.10), mirroring the framing idiom
// pkg/binfile.Header uses for its own fixed-layout prefix — a compact,
// self-describing blob followed by a fixed-width length field, here trailing
// rather than leading since it is read back-to-front from the end of the
// deployed bytecode.
package metadata

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CompilerVersion is the [major, minor, patch] triple embedded in every
// trailer's "vyper" field.
type CompilerVersion struct {
	Major, Minor, Patch int
}

// Trailer is the CBOR-encoded array spec §4.10 describes:
// [runtime_length, [data_section_lengths], immutables_length, {"vyper": [maj, min, patch]}].
type Trailer struct {
	// RuntimeLength must equal the length of the runtime bytecode, not
	// including immutables (spec §4.10).
	RuntimeLength int
	// DataSectionLengths is derived from the order and size of emitted data
	// sections in the runtime program.
	DataSectionLengths []int
	ImmutablesLength   int
	Version            CompilerVersion
}

// Encode produces the CBOR blob followed by its own 2-byte big-endian length
// (spec §4.10). The length prefix lets a disassembler locate and strip the
// trailer without parsing CBOR first.
func (t Trailer) Encode() ([]byte, error) {
	lengths := t.DataSectionLengths
	if lengths == nil {
		lengths = []int{}
	}

	arr := []any{
		t.RuntimeLength,
		lengths,
		t.ImmutablesLength,
		map[string]any{
			"vyper": []int{t.Version.Major, t.Version.Minor, t.Version.Patch},
		},
	}

	blob, err := cbor.Marshal(arr)
	if err != nil {
		return nil, fmt.Errorf("metadata: encode trailer: %w", err)
	}

	if len(blob) > 0xffff {
		return nil, fmt.Errorf("metadata: trailer blob of %d bytes exceeds 2-byte length field", len(blob))
	}

	out := make([]byte, 0, len(blob)+2)
	out = append(out, blob...)

	var lenField [2]byte

	binary.BigEndian.PutUint16(lenField[:], uint16(len(blob)))
	out = append(out, lenField[:]...)

	return out, nil
}

// Decode parses a trailer previously produced by Encode, given the full
// byte sequence it was appended to. It reads the final 2 bytes as the CBOR
// blob's length, then decodes that many bytes immediately preceding them.
func Decode(bytecode []byte) (Trailer, error) {
	if len(bytecode) < 2 {
		return Trailer{}, fmt.Errorf("metadata: too short to contain a length field")
	}

	n := binary.BigEndian.Uint16(bytecode[len(bytecode)-2:])
	if int(n)+2 > len(bytecode) {
		return Trailer{}, fmt.Errorf("metadata: declared blob length %d exceeds available bytes", n)
	}

	blob := bytecode[len(bytecode)-2-int(n) : len(bytecode)-2]

	var raw []cbor.RawMessage

	if err := cbor.Unmarshal(blob, &raw); err != nil {
		return Trailer{}, fmt.Errorf("metadata: decode trailer: %w", err)
	}

	if len(raw) != 4 {
		return Trailer{}, fmt.Errorf("metadata: expected a 4-element array, got %d", len(raw))
	}

	var (
		t        Trailer
		versions map[string][]int
	)

	if err := cbor.Unmarshal(raw[0], &t.RuntimeLength); err != nil {
		return Trailer{}, err
	}

	if err := cbor.Unmarshal(raw[1], &t.DataSectionLengths); err != nil {
		return Trailer{}, err
	}

	if err := cbor.Unmarshal(raw[2], &t.ImmutablesLength); err != nil {
		return Trailer{}, err
	}

	if err := cbor.Unmarshal(raw[3], &versions); err != nil {
		return Trailer{}, err
	}

	v, ok := versions["vyper"]
	if !ok || len(v) != 3 {
		return Trailer{}, fmt.Errorf("metadata: missing or malformed \"vyper\" version field")
	}

	t.Version = CompilerVersion{Major: v[0], Minor: v[1], Patch: v[2]}

	return t, nil
}

// Len returns the total byte length Encode produces for this trailer, by
// encoding it and measuring the result.
func (t Trailer) Len() (int, error) {
	blob, err := t.Encode()
	if err != nil {
		return 0, err
	}

	return len(blob), nil
}
