package optimizer

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vylang/corec/pkg/ast"
	"github.com/vylang/corec/pkg/ir"
)

func lit(v int64) *ir.Node {
	return ir.NewLiteral(ast.Literal{Kind: ast.LiteralInt, Int: v})
}

func TestOptimizeConstantFoldsArithmetic(t *testing.T) {
	n := ir.New(ir.Add, lit(2), ir.New(ir.Mul, lit(3), lit(4)))

	out := Optimize(n)

	require.True(t, out.IsLiteral())
	assert.Equal(t, big.NewInt(14), out.Literal.AsBigInt())
}

func TestOptimizeAddZeroIdentity(t *testing.T) {
	x := ir.New(ir.Gas)
	n := ir.New(ir.Add, x, lit(0))

	out := Optimize(n)

	assert.Equal(t, ir.Gas, out.Op)
}

func TestOptimizeMulByZero(t *testing.T) {
	x := ir.New(ir.Gas)
	n := ir.New(ir.Mul, x, lit(0))

	out := Optimize(n)

	require.True(t, out.IsLiteral())
	assert.Equal(t, big.NewInt(0), out.Literal.AsBigInt())
}

func TestOptimizeDoubleIsZeroOnComparison(t *testing.T) {
	cmp := ir.New(ir.Lt, ir.New(ir.Gas), ir.New(ir.Gas))
	n := ir.New(ir.IsZero, ir.New(ir.IsZero, cmp))

	out := Optimize(n)

	assert.Same(t, cmp, out)
}

func TestOptimizeDeadBranchElimination(t *testing.T) {
	then := ir.New(ir.Stop)
	els := ir.New(ir.Invalid)
	n := ir.NewIf(lit(1), then, els)

	out := Optimize(n)

	assert.Same(t, then, out)
}

func TestOptimizeSeqFlattensNested(t *testing.T) {
	a := ir.New(ir.Pass)
	b := ir.New(ir.Dummy)
	nested := ir.NewSeq(a, b)
	n := ir.NewSeq(nested, ir.New(ir.Stop))

	out := Optimize(n)

	require.Equal(t, ir.Seq, out.Op)
	assert.Len(t, out.Args, 3)
}

func TestOptimizeJumpShortening(t *testing.T) {
	n := ir.NewSeq(
		ir.NewLabel("L1"),
		ir.NewGoto("L2"),
		ir.NewLabel("L2"),
		ir.New(ir.Stop),
		ir.NewGoto("L1"),
	)

	out := Optimize(n)

	last := out.Args[len(out.Args)-1]
	require.Equal(t, ir.Goto, last.Op)
	assert.Equal(t, "L2", last.Name)
}
