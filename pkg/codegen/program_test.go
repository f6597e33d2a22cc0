package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vylang/corec/pkg/ast"
	"github.com/vylang/corec/pkg/evm"
	"github.com/vylang/corec/pkg/ir"
)

func TestFunctionOneValentUnwindsParamsAndJumpsBack(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	p := NewProgram(e)

	items := p.Function("fn_double", []string{"x"}, 1, func() []Item {
		return e.Lower(ir.New(ir.Mul, ir.NewVar("x"), ir.NewLiteral(ast.Literal{Kind: ast.LiteralInt, Int: 2})))
	})

	require.NotEmpty(t, items)
	assert.Equal(t, ItemLabel, items[0].Kind)
	assert.Equal(t, "fn_double", items[0].Label)

	last := items[len(items)-1]
	assert.Equal(t, ItemOpcode, last.Kind)
	assert.Equal(t, "JUMP", last.Mnemonic)

	// one param to unwind: SWAP1, POP, then the final SWAP1 before JUMP.
	var mn []string
	for _, it := range items {
		if it.Kind == ItemOpcode {
			mn = append(mn, it.Mnemonic)
		}
	}

	assert.Equal(t, []string{"SWAP1", "POP", "SWAP1", "JUMP"}, mn[len(mn)-4:])
	assert.Empty(t, e.env, "Function must unbind its parameters after lowering")
}

func TestFunctionZeroValentJustPopsParams(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	p := NewProgram(e)

	items := p.Function("fn_log", []string{"a", "b"}, 0, func() []Item {
		return []Item{e.op("POP")} // pretend body consumes something itself
	})

	var mn []string
	for _, it := range items {
		if it.Kind == ItemOpcode {
			mn = append(mn, it.Mnemonic)
		}
	}

	// two params unwound with plain POPs (no SWAP, since there is no return
	// value to preserve), then JUMP back.
	assert.Equal(t, []string{"POP", "POP", "POP", "JUMP"}, mn[len(mn)-4:])
}

func TestRuntimeAppendsSharedBlocksExactlyOnce(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	p := NewProgram(e)

	fn1 := e.Lower(ir.New(ir.Assert, ir.NewLiteral(ast.Literal{Kind: ast.LiteralInt, Int: 1})))
	fn2 := e.Lower(ir.New(ir.Assert, ir.NewLiteral(ast.Literal{Kind: ast.LiteralInt, Int: 0})))

	items := p.Runtime([]Item{Opcode("JUMPDEST")}, fn1, fn2)

	count := 0

	for _, it := range items {
		if it.Kind == ItemLabel && it.Label == "revert0" {
			count++
		}
	}

	assert.Equal(t, 1, count)
}

func TestDeployEmitsCodecopyReturnAndDataSection(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	p := NewProgram(e)

	runtime := []byte{0x60, 0x00, 0x60, 0x00}
	trailer := []byte{0xca, 0xfe}

	items := p.Deploy(nil, runtime, trailer)

	var mn []string

	var dataBytes [][]byte

	var sawHeader bool

	for _, it := range items {
		switch it.Kind {
		case ItemOpcode:
			mn = append(mn, it.Mnemonic)
		case ItemDataHeader:
			assert.Equal(t, runtimeDataLabel, it.Label)
			sawHeader = true
		case ItemDataBytes:
			dataBytes = append(dataBytes, it.Bytes)
		}
	}

	assert.Contains(t, mn, "CODECOPY")
	assert.Contains(t, mn, "RETURN")
	assert.True(t, sawHeader)
	require.Len(t, dataBytes, 2)
	assert.Equal(t, runtime, dataBytes[0])
	assert.Equal(t, trailer, dataBytes[1])
}

func TestDeployOmitsEmptyTrailer(t *testing.T) {
	e := NewEmitter(evm.Shanghai)
	p := NewProgram(e)

	items := p.Deploy(nil, []byte{0x00}, nil)

	count := 0

	for _, it := range items {
		if it.Kind == ItemDataBytes {
			count++
		}
	}

	assert.Equal(t, 1, count)
}
