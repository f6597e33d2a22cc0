package codegen

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vylang/corec/pkg/ast"
	"github.com/vylang/corec/pkg/evm"
	"github.com/vylang/corec/pkg/ir"
)

func lit(v int64) *ir.Node {
	return ir.NewLiteral(ast.Literal{Kind: ast.LiteralInt, Int: v})
}

func mnemonics(items []Item) []string {
	var out []string

	for _, it := range items {
		if it.Kind == ItemOpcode {
			out = append(out, it.Mnemonic)
		}
	}

	return out
}

func TestLowerLiteralChoosesMinimalPushWidth(t *testing.T) {
	e := NewEmitter(evm.Shanghai)

	items := e.Lower(lit(1))

	require.Len(t, items, 2)
	assert.Equal(t, "PUSH1", items[0].Mnemonic)
	assert.Equal(t, byte(1), items[1].Byte)
}

func TestLowerLiteralZeroUsesPush0OnShanghai(t *testing.T) {
	e := NewEmitter(evm.Shanghai)

	items := e.Lower(lit(0))

	require.Len(t, items, 1)
	assert.Equal(t, "PUSH0", items[0].Mnemonic)
}

func TestLowerLiteralZeroFallsBackPreShanghai(t *testing.T) {
	e := NewEmitter(evm.London)

	items := e.Lower(lit(0))

	require.Len(t, items, 2)
	assert.Equal(t, "PUSH1", items[0].Mnemonic)
	assert.Equal(t, byte(0), items[1].Byte)
}

func TestLowerSubPushesArgsReversed(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	n := ir.New(ir.Sub, lit(5), lit(3))

	items := e.Lower(n)

	// push 3, push 5, SUB -> stack [.., 3, 5] -> SUB pops (5,3) computing 5-3
	mn := mnemonics(items)
	assert.Equal(t, []string{"PUSH1", "PUSH1", "SUB"}, mn)
	assert.Equal(t, byte(3), items[1].Byte)
	assert.Equal(t, byte(5), items[3].Byte)
}

func TestLowerIfTwoArm(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	n := ir.NewIf(lit(1), ir.New(ir.Stop))

	items := e.Lower(n)

	var kinds []ItemKind
	for _, it := range items {
		kinds = append(kinds, it.Kind)
	}

	assert.Contains(t, mnemonics(items), "ISZERO")
	assert.Contains(t, mnemonics(items), "JUMPI")
	assert.Contains(t, mnemonics(items), "STOP")

	found := false
	for _, it := range items {
		if it.Kind == ItemLabel {
			found = true
		}
	}
	assert.True(t, found, "two-arm if must emit the else label")
}

func TestLowerIfThreeArmResetsDepthBetweenArms(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	then := ir.New(ir.Gas)
	els := ir.New(ir.GasPrice)
	n := ir.NewIf(lit(1), then, els)

	startDepth := e.depth
	e.Lower(n)

	// net effect of a three-arm if is the arms' own (equal) valency; depth
	// must not have accumulated both arms' pushes.
	assert.Equal(t, startDepth+1, e.depth)
}

func TestLowerSeqPopsNonFinalValencyOne(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	n := ir.NewSeq(ir.New(ir.Gas), ir.New(ir.GasPrice))

	items := e.Lower(n)

	mn := mnemonics(items)
	assert.Equal(t, []string{"GAS", "POP", "GASPRICE"}, mn)
}

func TestLowerWithBindsAndUnbinds(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	body := ir.NewVar("x")
	n := ir.NewWith("x", lit(7), body)

	items := e.Lower(n)

	mn := mnemonics(items)
	// push 7, DUP1 (read x), SWAP1, POP
	assert.Equal(t, []string{"PUSH1", "DUP1", "SWAP1", "POP"}, mn)
	assert.Empty(t, e.env, "with must unbind after lowering its body")
}

func TestLowerSetOverwritesBinding(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	body := ir.NewSet("x", lit(9))
	n := ir.NewWith("x", lit(7), body)

	items := e.Lower(n)

	mn := mnemonics(items)
	assert.Contains(t, mn, "SWAP1")
	assert.Equal(t, "POP", mn[len(mn)-1])
}

func TestLowerRepeatStructure(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	body := ir.New(ir.Pass)
	n := ir.NewRepeat("i", lit(0), lit(3), 3, body)

	items := e.Lower(n)

	var labels []string
	for _, it := range items {
		if it.Kind == ItemLabel {
			labels = append(labels, it.Label)
		}
	}

	require.Len(t, labels, 3)
	assert.Contains(t, mnemonics(items), "LT")
	assert.Contains(t, mnemonics(items), "JUMPI")
	assert.Empty(t, e.env)
	assert.Empty(t, e.loops)
}

func TestLowerBreakContinueTargetLoopLabels(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	body := ir.NewSeq(ir.New(ir.Break), ir.New(ir.Continue))
	n := ir.NewRepeat("i", lit(0), lit(1), 1, body)

	items := e.Lower(n)

	var pushLabels []string
	for _, it := range items {
		if it.Kind == ItemPushLabel {
			pushLabels = append(pushLabels, it.Label)
		}
	}

	require.GreaterOrEqual(t, len(pushLabels), 2)
}

func TestLowerInternalCallOneLabelProtocol(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	n := ir.NewInternalCall("fn_add", 1, lit(1), lit(2))

	items := e.Lower(n)

	require.GreaterOrEqual(t, len(items), 3)
	assert.Equal(t, ItemPushLabel, items[0].Kind)

	var sawEntryJump, sawReturnLabel bool
	for i, it := range items {
		if it.Kind == ItemPushLabel && it.Label == "fn_add" {
			require.Less(t, i+1, len(items))
			assert.Equal(t, "JUMP", items[i+1].Mnemonic)
			sawEntryJump = true
		}
		if it.Kind == ItemLabel {
			sawReturnLabel = true
		}
	}

	assert.True(t, sawEntryJump)
	assert.True(t, sawReturnLabel)
}

func TestSharedBlocksEmittedOnlyWhenUsed(t *testing.T) {
	e := NewEmitter(evm.Shanghai)

	assert.Empty(t, e.SharedBlocks())

	e.Lower(ir.New(ir.Assert, lit(1)))

	blocks := e.SharedBlocks()
	require.NotEmpty(t, blocks)
	assert.Equal(t, ItemLabel, blocks[0].Kind)
	assert.Equal(t, "revert0", blocks[0].Label)

	mn := mnemonics(blocks)
	assert.Contains(t, mn, "REVERT")
	assert.NotContains(t, mn, "INVALID")
}

func TestSharedBlocksEmittedExactlyOnceAcrossManyAsserts(t *testing.T) {
	e := NewEmitter(evm.Shanghai)

	e.Lower(ir.New(ir.Assert, lit(1)))
	e.Lower(ir.New(ir.Assert, lit(0)))

	blocks := e.SharedBlocks()

	count := 0
	for _, it := range blocks {
		if it.Kind == ItemLabel && it.Label == "revert0" {
			count++
		}
	}

	assert.Equal(t, 1, count)
}

func TestLowerClampGtUsesRevert0(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	n := ir.New(ir.UClampGt, lit(5), lit(1))

	items := e.Lower(n)

	mn := mnemonics(items)
	assert.Contains(t, mn, "GT")
	assert.Contains(t, mn, "JUMPI")
	assert.True(t, e.revert0Used)
}

func TestLowerCeil32(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	n := ir.New(ir.Ceil32, lit(33))

	items := e.Lower(n)

	mn := mnemonics(items)
	assert.Equal(t, []string{"PUSH1", "PUSH1", "ADD", "PUSH32", "AND"}, mn)
}

func TestLowerSha3_32UsesScratchMemory(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	n := ir.New(ir.Sha3_32, lit(42))

	items := e.Lower(n)

	mn := mnemonics(items)
	assert.Equal(t, "MSTORE", mn[len(mn)-4])
	assert.Equal(t, "KECCAK256", mn[len(mn)-1])
}

func TestLowerNeIsEqThenIsZero(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	n := ir.New(ir.Ne, lit(1), lit(2))

	items := e.Lower(n)

	mn := mnemonics(items)
	assert.Equal(t, []string{"PUSH1", "PUSH1", "EQ", "ISZERO"}, mn)
}

func TestPushLiteralFoldsNegativeIntoWordRange(t *testing.T) {
	e := NewEmitter(evm.Shanghai)

	items := e.pushLiteral(big.NewInt(-1))

	assert.Equal(t, "PUSH32", items[0].Mnemonic)
}
