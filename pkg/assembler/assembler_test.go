package assembler

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vylang/corec/pkg/ast"
	"github.com/vylang/corec/pkg/codegen"
	"github.com/vylang/corec/pkg/evm"
	"github.com/vylang/corec/pkg/source"
)

func TestAssembleSimpleOpcodeSequence(t *testing.T) {
	items := []codegen.Item{
		codegen.Opcode("PUSH1"),
		codegen.Immediate(1),
		codegen.Opcode("PUSH1"),
		codegen.Immediate(2),
		codegen.Opcode("ADD"),
		codegen.Opcode("STOP"),
	}

	p, err := Assemble(items, evm.Shanghai)
	require.NoError(t, err)

	push1, _ := evm.Lookup("PUSH1")
	add, _ := evm.Lookup("ADD")
	stop, _ := evm.Lookup("STOP")

	assert.Equal(t, []byte{push1.Byte, 1, push1.Byte, 2, add.Byte, stop.Byte}, p.Bytes)
}

func TestAssembleResolvesForwardLabel(t *testing.T) {
	items := []codegen.Item{
		codegen.PushLabel("dest"),
		codegen.Opcode("JUMP"),
		codegen.NewLabel("dest"),
		codegen.Opcode("STOP"),
	}

	p, err := Assemble(items, evm.Shanghai)
	require.NoError(t, err)

	// PUSH2 + 2 symbol bytes + JUMP = 4 bytes before "dest".
	assert.Equal(t, 4, p.SymbolMap["dest"])

	push2, _ := evm.Lookup("PUSH2")
	jump, _ := evm.Lookup("JUMP")
	jumpdest, _ := evm.Lookup("JUMPDEST")
	stop, _ := evm.Lookup("STOP")

	assert.Equal(t, []byte{push2.Byte, 0, 4, jump.Byte, jumpdest.Byte, stop.Byte}, p.Bytes)
}

func TestAssembleDuplicateLabelPanics(t *testing.T) {
	items := []codegen.Item{
		codegen.NewLabel("dup"),
		codegen.Opcode("STOP"),
		codegen.NewLabel("dup"),
		codegen.Opcode("STOP"),
	}

	assert.Panics(t, func() {
		_, _ = Assemble(items, evm.Shanghai)
	})
}

func TestAssembleAppendsCodeEndSentinel(t *testing.T) {
	items := []codegen.Item{
		codegen.Opcode("STOP"),
	}

	p, err := Assemble(items, evm.Shanghai)
	require.NoError(t, err)

	assert.Equal(t, len(p.Bytes), p.SymbolMap[CodeEnd])
}

func TestAssembleResolvesConstAddAndMax(t *testing.T) {
	items := []codegen.Item{
		codegen.ConstDef("a", big.NewInt(3)),
		codegen.ConstDef("b", big.NewInt(5)),
		codegen.ConstAdd("sum", "a", "b"),
		codegen.ConstMax("biggest", "a", "b"),
	}

	p, err := Assemble(items, evm.Shanghai)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(8), p.ConstMap["sum"])
	assert.Equal(t, big.NewInt(5), p.ConstMap["biggest"])
}

func TestAssemblePushOffsetAgainstConstUsesMinimalWidth(t *testing.T) {
	items := []codegen.Item{
		codegen.ConstDef("base", big.NewInt(0)),
		codegen.PushOffset("base", 10),
	}

	p, err := Assemble(items, evm.Shanghai)
	require.NoError(t, err)

	push1, _ := evm.Lookup("PUSH1")
	assert.Equal(t, []byte{push1.Byte, 10}, p.Bytes)
}

func TestAssemblePushOffsetAgainstLabelIsFixedWidth(t *testing.T) {
	items := []codegen.Item{
		codegen.PushOffset("dest", 1),
		codegen.NewLabel("dest"),
		codegen.Opcode("JUMPDEST"),
	}

	p, err := Assemble(items, evm.Shanghai)
	require.NoError(t, err)

	push2, _ := evm.Lookup("PUSH2")
	assert.Equal(t, push2.Byte, p.Bytes[0])
}

func TestPCJumpMapClassifiesInternalCallAndReturn(t *testing.T) {
	items := []codegen.Item{
		codegen.PushLabel("internal_foo_1"),
		codegen.Opcode("JUMP"),
		codegen.NewLabel("internal_foo_1"),
		codegen.PushLabel("internal_foo_1_cleanup"),
		codegen.Opcode("JUMP"),
		codegen.NewLabel("internal_foo_1_cleanup"),
		codegen.Opcode("JUMPDEST"),
	}

	p, err := Assemble(items, evm.Shanghai)
	require.NoError(t, err)

	var calls, returns int

	for _, tag := range p.PCJumpMap {
		switch tag {
		case JumpInternalCall:
			calls++
		case JumpInternalReturn:
			returns++
		}
	}

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, returns)
}

func TestPCJumpMapTagsJumpiAsOther(t *testing.T) {
	items := []codegen.Item{
		codegen.Opcode("PUSH1"),
		codegen.Immediate(1),
		codegen.PushLabel("dest"),
		codegen.Opcode("JUMPI"),
		codegen.NewLabel("dest"),
		codegen.Opcode("JUMPDEST"),
	}

	p, err := Assemble(items, evm.Shanghai)
	require.NoError(t, err)

	for pc, tag := range p.PCJumpMap {
		_ = pc
		assert.Equal(t, JumpOther, tag)
	}
}

func TestPCRawASTMapTracksTaggedRegion(t *testing.T) {
	n := &ast.Node{ID: 7, Span: source.NewSpan(0, 10, 20)}

	items := []codegen.Item{
		codegen.Tagged(n, "division by zero"),
		codegen.Opcode("PUSH1"),
		codegen.Immediate(0),
	}

	p, err := Assemble(items, evm.Shanghai)
	require.NoError(t, err)

	assert.Equal(t, n, p.PCRawASTMap[0])
	assert.Equal(t, "division by zero", p.ErrorMap[0])
}

func TestZeroPushesMinimalWidthWithPush0(t *testing.T) {
	items := []codegen.Item{
		codegen.ConstDef("z", big.NewInt(0)),
		codegen.PushOffset("z", 0),
	}

	p, err := Assemble(items, evm.Shanghai)
	require.NoError(t, err)

	push0, _ := evm.Lookup("PUSH0")
	assert.Equal(t, []byte{push0.Byte}, p.Bytes)
}

func TestZeroPushFallsBackPrePush0(t *testing.T) {
	items := []codegen.Item{
		codegen.ConstDef("z", big.NewInt(0)),
		codegen.PushOffset("z", 0),
	}

	p, err := Assemble(items, evm.London)
	require.NoError(t, err)

	push1, _ := evm.Lookup("PUSH1")
	assert.Equal(t, []byte{push1.Byte, 0}, p.Bytes)
}

func TestRawSourceMapMergesIdenticalConsecutiveEntries(t *testing.T) {
	n := &ast.Node{ID: 1, Span: source.NewSpan(0, 5, 9)}

	items := []codegen.Item{
		codegen.Tagged(n, ""),
		codegen.Opcode("PUSH1"),
		codegen.Immediate(0),
		codegen.Opcode("POP"),
	}

	p, err := Assemble(items, evm.Shanghai)
	require.NoError(t, err)

	raw := p.RawSourceMap()
	assert.Len(t, raw, 1)
	assert.Equal(t, 5, raw[0].Start)
	assert.Equal(t, 4, raw[0].Length)
}

func TestCompressOmitsUnchangedFields(t *testing.T) {
	entries := []SourceMapEntry{
		{Start: 0, Length: 5, SourceID: 1, Jump: JumpOther},
		{Start: 0, Length: 5, SourceID: 1, Jump: JumpOther},
		{Start: 10, Length: 5, SourceID: 1, Jump: JumpOther},
	}

	compact := Compress(entries)

	require.Len(t, compact, 3)
	assert.NotNil(t, compact[0].Start)
	assert.Nil(t, compact[1].Start)
	assert.Nil(t, compact[1].Length)
	assert.Nil(t, compact[1].SourceID)
	assert.Nil(t, compact[1].Jump)
	assert.NotNil(t, compact[2].Start)
	assert.Nil(t, compact[2].Length)
}

func TestSortedSymbolsAscendingByPC(t *testing.T) {
	items := []codegen.Item{
		codegen.PushLabel("b"),
		codegen.Opcode("JUMP"),
		codegen.NewLabel("a"),
		codegen.Opcode("STOP"),
		codegen.NewLabel("b"),
		codegen.Opcode("STOP"),
	}

	p, err := Assemble(items, evm.Shanghai)
	require.NoError(t, err)

	names := p.SortedSymbols()
	aIdx, bIdx := -1, -1

	for i, n := range names {
		if n == "a" {
			aIdx = i
		}

		if n == "b" {
			bIdx = i
		}
	}

	assert.Less(t, aIdx, bIdx)
}
