package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisassembleRendersPushImmediateAsSingleToken(t *testing.T) {
	// PUSH1 0x2a; STOP
	code := []byte{0x60, 0x2a, 0x00}

	assert.Equal(t, "PUSH1 0x2a STOP", Disassemble(code))
}

func TestDisassembleHandlesPush0WithNoImmediate(t *testing.T) {
	// PUSH0; PUSH0; ADD
	code := []byte{0x5f, 0x5f, 0x01}

	assert.Equal(t, "PUSH0 PUSH0 ADD", Disassemble(code))
}

func TestDisassembleTruncatesImmediateAtEndOfCode(t *testing.T) {
	// PUSH2 with only one immediate byte present before the buffer ends.
	code := []byte{0x61, 0xab}

	assert.Equal(t, "PUSH2 0xab", Disassemble(code))
}

func TestDisassembleMarksUnknownOpcodeBytes(t *testing.T) {
	// 0x0c/0x0d/0x0e/0x0f are unassigned in every EVM version.
	code := []byte{0x0c}

	assert.Equal(t, "UNKNOWN(0x0c)", Disassemble(code))
}

func TestPushWidthOfIgnoresNonPushMnemonics(t *testing.T) {
	assert.Equal(t, 0, pushWidthOf("ADD"))
	assert.Equal(t, 0, pushWidthOf("PUSH0"))
}

func TestPushWidthOfParsesPushWidthFromMnemonic(t *testing.T) {
	assert.Equal(t, 1, pushWidthOf("PUSH1"))
	assert.Equal(t, 32, pushWidthOf("PUSH32"))
}
